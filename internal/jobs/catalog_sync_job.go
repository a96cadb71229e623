package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CatalogSyncJobName is the name of the warehouse catalog sync job
const CatalogSyncJobName = "catalog_sync"

// ProductSyncer mirrors the warehouse product catalog locally
type ProductSyncer interface {
	SyncProducts(ctx context.Context) (synced int, failed int, err error)
}

// CatalogSyncJob copies warehouse products into the local products table
type CatalogSyncJob struct {
	syncer  ProductSyncer
	logger  *zap.Logger
	timeout time.Duration
}

// NewCatalogSyncJob creates the job. The timeout bounds one run.
func NewCatalogSyncJob(syncer ProductSyncer, logger *zap.Logger, timeout time.Duration) *CatalogSyncJob {
	return &CatalogSyncJob{
		syncer:  syncer,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes one sync. Called by the scheduler.
func (j *CatalogSyncJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting catalog sync job")

	synced, failed, err := j.syncer.SyncProducts(ctx)
	if err != nil {
		j.logger.Error("catalog sync failed",
			zap.Error(err),
			zap.Int("products_synced", synced),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("catalog sync job completed",
		zap.Int("products_synced", synced),
		zap.Int("products_failed", failed),
		zap.Duration("duration", time.Since(start)))
}

// RegisterCatalogSyncJob registers the catalog sync with the scheduler. When
// runOnStartup is set a first sync runs in the background so it doesn't block
// API startup.
func RegisterCatalogSyncJob(scheduler *Scheduler, syncer ProductSyncer, logger *zap.Logger, cronExpr string, timeout time.Duration, runOnStartup bool) error {
	job := NewCatalogSyncJob(syncer, logger, timeout)

	if runOnStartup {
		go job.Run()
	}

	return scheduler.AddJob(CatalogSyncJobName, cronExpr, job.Run)
}
