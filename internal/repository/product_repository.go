package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository reads the local mirror of the product catalog
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetProduct returns a product by id or domain.ErrProductNotFound
func (r *ProductRepository) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var product domain.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByArticle looks an article up in one seller's catalog
func (r *ProductRepository) FindByArticle(ctx context.Context, sellerID uuid.UUID, article string) (*domain.Product, error) {
	var product domain.Product
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND article = ?", sellerID, article).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Upsert inserts a product or refreshes the catalog fields of an existing one
func (r *ProductRepository) Upsert(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"company_id", "article", "name", "description", "item_type", "unit", "price", "updated_at"}),
		}).
		Create(product).Error
}
