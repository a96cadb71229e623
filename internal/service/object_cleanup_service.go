package service

import (
	"context"
	"time"

	"github.com/straye-as/deal-engine/internal/metrics"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cleanupParallelism bounds concurrent storage deletes
const cleanupParallelism = 4

// ObjectCleanupService deletes stored objects after their metadata is gone.
// A failed delete never fails the caller; the key is queued and retried by
// Sweep.
type ObjectCleanupService struct {
	storage storage.Storage
	pending *repository.PendingDeletionRepository
	logger  *zap.Logger
}

func NewObjectCleanupService(store storage.Storage, pending *repository.PendingDeletionRepository, logger *zap.Logger) *ObjectCleanupService {
	return &ObjectCleanupService{storage: store, pending: pending, logger: logger}
}

// DeleteObjects removes keys from storage, queueing the ones that fail
func (s *ObjectCleanupService) DeleteObjects(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	// the request may already be finishing; deletes must not be cut short by it
	ctx = context.WithoutCancel(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cleanupParallelism)
	for _, key := range keys {
		g.Go(func() error {
			err := s.storage.Delete(gctx, key)
			metrics.StorageOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
			if err == nil {
				return nil
			}
			s.logger.Warn("Failed to delete stored object, queued for retry",
				zap.String("storage_key", key),
				zap.Error(err),
			)
			if qerr := s.pending.Enqueue(ctx, key, err); qerr != nil {
				s.logger.Error("Failed to queue object deletion",
					zap.String("storage_key", key),
					zap.Error(qerr),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.refreshGauge(ctx)
}

// SweepResult summarizes one Sweep run
type SweepResult struct {
	Deleted int
	Failed  int
}

// Sweep retries up to batchSize queued deletions with fewer than maxAttempts tries
func (s *ObjectCleanupService) Sweep(ctx context.Context, batchSize, maxAttempts int) (SweepResult, error) {
	var result SweepResult
	start := time.Now()

	due, err := s.pending.ListDue(ctx, batchSize, maxAttempts)
	if err != nil {
		return result, err
	}

	for _, entry := range due {
		err := s.storage.Delete(ctx, entry.StorageKey)
		metrics.StorageOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
		if err != nil {
			result.Failed++
			if merr := s.pending.MarkFailed(ctx, entry.ID, err); merr != nil {
				return result, merr
			}
			continue
		}
		if err := s.pending.Remove(ctx, entry.ID); err != nil {
			return result, err
		}
		result.Deleted++
	}

	s.refreshGauge(ctx)
	if len(due) > 0 {
		s.logger.Info("Swept pending object deletions",
			zap.Int("deleted", result.Deleted),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return result, nil
}

func (s *ObjectCleanupService) refreshGauge(ctx context.Context) {
	if n, err := s.pending.Count(ctx); err == nil {
		metrics.PendingDeletions.Set(float64(n))
	}
}
