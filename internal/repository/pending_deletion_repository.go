package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingDeletionRepository queues storage objects whose delete failed
type PendingDeletionRepository struct {
	db *gorm.DB
}

func NewPendingDeletionRepository(db *gorm.DB) *PendingDeletionRepository {
	return &PendingDeletionRepository{db: db}
}

// Enqueue records a key for a later retry. Keys already queued are left alone.
func (r *PendingDeletionRepository) Enqueue(ctx context.Context, key string, reason error) error {
	entry := domain.PendingObjectDeletion{StorageKey: key, Attempts: 1}
	if reason != nil {
		entry.LastError = reason.Error()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

// ListDue returns up to limit queued keys with fewer than maxAttempts tries, oldest first
func (r *PendingDeletionRepository) ListDue(ctx context.Context, limit, maxAttempts int) ([]domain.PendingObjectDeletion, error) {
	var entries []domain.PendingObjectDeletion
	err := r.db.WithContext(ctx).
		Where("attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *PendingDeletionRepository) Remove(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.PendingObjectDeletion{}, "id = ?", id).Error
}

// MarkFailed bumps the attempt counter of an entry
func (r *PendingDeletionRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason error) error {
	return r.db.WithContext(ctx).
		Model(&domain.PendingObjectDeletion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason.Error(),
		}).Error
}

// Count returns the number of queued keys
func (r *PendingDeletionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.PendingObjectDeletion{}).Count(&n).Error
	return n, err
}
