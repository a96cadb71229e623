package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
)

type DealItemRepository struct {
	db *gorm.DB
}

func NewDealItemRepository(db *gorm.DB) *DealItemRepository {
	return &DealItemRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *DealItemRepository) WithTx(tx *gorm.DB) *DealItemRepository {
	return &DealItemRepository{db: tx}
}

// ListByVersion returns the items of one version row in position order
func (r *DealItemRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.DealItem, error) {
	var items []domain.DealItem
	err := r.db.WithContext(ctx).
		Where("deal_version_id = ?", versionID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

// ReplaceAll deletes the items of a version and inserts the given list.
// Must run inside a transaction so the old and new sets never mix.
func (r *DealItemRepository) ReplaceAll(ctx context.Context, versionID uuid.UUID, items []domain.DealItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("deal_version_id = ?", versionID).Delete(&domain.DealItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = uuid.Nil
		items[i].DealVersionID = versionID
	}
	return db.Create(&items).Error
}
