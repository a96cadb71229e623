package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
)

// DealHistoryRepository appends and lists deal history. There is no update
// or delete path; records go away only with their version row.
type DealHistoryRepository struct {
	db *gorm.DB
}

func NewDealHistoryRepository(db *gorm.DB) *DealHistoryRepository {
	return &DealHistoryRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *DealHistoryRepository) WithTx(tx *gorm.DB) *DealHistoryRepository {
	return &DealHistoryRepository{db: tx}
}

func (r *DealHistoryRepository) Append(ctx context.Context, entry *domain.DealHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByDeal returns the history of all versions of a deal in chronological order
func (r *DealHistoryRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.DealHistory, error) {
	var entries []domain.DealHistory
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at ASC, version ASC").
		Find(&entries).Error
	return entries, err
}
