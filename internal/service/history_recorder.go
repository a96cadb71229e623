package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"gorm.io/gorm"
)

// HistoryEntry describes one mutation to record
type HistoryEntry struct {
	Version     *domain.Deal
	Actor       uuid.UUID
	ChangeType  domain.HistoryChangeType
	Description string
	Old         domain.Snapshotter
	New         domain.Snapshotter
}

// HistoryRecorder appends deal history inside the transaction of the mutation
// it describes, so a failed write rolls the mutation back as well.
type HistoryRecorder struct {
	repo *repository.DealHistoryRepository
}

func NewHistoryRecorder(repo *repository.DealHistoryRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo}
}

// Record appends the entry using tx
func (h *HistoryRecorder) Record(ctx context.Context, tx *gorm.DB, e HistoryEntry) error {
	oldValues, err := encodeSnapshot(e.Old)
	if err != nil {
		return err
	}
	newValues, err := encodeSnapshot(e.New)
	if err != nil {
		return err
	}

	entry := &domain.DealHistory{
		DealVersionID:  e.Version.ID,
		DealID:         e.Version.DealID,
		Version:        e.Version.Version,
		ActorCompanyID: e.Actor,
		ChangeType:     e.ChangeType,
		Description:    e.Description,
		OldValues:      oldValues,
		NewValues:      newValues,
	}
	if err := h.repo.WithTx(tx).Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %s history: %w", e.ChangeType, err)
	}
	return nil
}

func encodeSnapshot(s domain.Snapshotter) (*string, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to encode history snapshot: %w", err)
	}
	out := string(b)
	return &out, nil
}
