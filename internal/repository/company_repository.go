package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
)

// CompanyRepository reads the local mirror of the company directory
type CompanyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository creates a new CompanyRepository
func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// GetCompany returns an active company or domain.ErrCompanyNotFound
func (r *CompanyRepository) GetCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	var company domain.Company
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// Upsert inserts or refreshes a mirrored company
func (r *CompanyRepository) Upsert(ctx context.Context, company *domain.Company) error {
	return r.db.WithContext(ctx).Save(company).Error
}
