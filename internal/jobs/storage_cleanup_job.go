package jobs

import (
	"context"
	"time"

	"github.com/straye-as/deal-engine/internal/service"
	"go.uber.org/zap"
)

// StorageCleanupJobName is the name of the pending object deletion sweeper
const StorageCleanupJobName = "storage_cleanup"

const storageCleanupTimeout = 5 * time.Minute

// ObjectSweeper retries storage deletes that failed after a commit
type ObjectSweeper interface {
	Sweep(ctx context.Context, batchSize, maxAttempts int) (service.SweepResult, error)
}

// StorageCleanupJob drains the pending object deletion queue
type StorageCleanupJob struct {
	sweeper     ObjectSweeper
	logger      *zap.Logger
	batchSize   int
	maxAttempts int
}

func NewStorageCleanupJob(sweeper ObjectSweeper, logger *zap.Logger, batchSize, maxAttempts int) *StorageCleanupJob {
	return &StorageCleanupJob{
		sweeper:     sweeper,
		logger:      logger,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Run sweeps one batch
func (j *StorageCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), storageCleanupTimeout)
	defer cancel()

	start := time.Now()
	result, err := j.sweeper.Sweep(ctx, j.batchSize, j.maxAttempts)
	if err != nil {
		j.logger.Error("storage cleanup failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	if result.Deleted > 0 || result.Failed > 0 {
		j.logger.Info("storage cleanup completed",
			zap.Int("objects_deleted", result.Deleted),
			zap.Int("objects_failed", result.Failed),
			zap.Duration("duration", time.Since(start)))
	}
}

// RegisterStorageCleanupJob registers the sweeper with the scheduler
func RegisterStorageCleanupJob(scheduler *Scheduler, sweeper ObjectSweeper, logger *zap.Logger, cronExpr string, batchSize, maxAttempts int) error {
	job := NewStorageCleanupJob(sweeper, logger, batchSize, maxAttempts)
	return scheduler.AddJob(StorageCleanupJobName, cronExpr, job.Run)
}
