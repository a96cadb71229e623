package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/straye-as/deal-engine/internal/jobs"
	"github.com/straye-as/deal-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSweeper struct {
	calls       int
	batchSize   int
	maxAttempts int
	err         error
}

func (f *fakeSweeper) Sweep(_ context.Context, batchSize, maxAttempts int) (service.SweepResult, error) {
	f.calls++
	f.batchSize = batchSize
	f.maxAttempts = maxAttempts
	return service.SweepResult{Deleted: 1}, f.err
}

type fakeSyncer struct {
	calls chan struct{}
}

func (f *fakeSyncer) SyncProducts(ctx context.Context) (int, int, error) {
	_, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return 0, 0, errors.New("sync ran without a deadline")
	}
	f.calls <- struct{}{}
	return 3, 0, nil
}

func TestScheduler_AddJob(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("five-field", "*/10 * * * *", func() {}))
	require.NoError(t, s.AddJob("six-field", "0 15 * * * *", func() {}))
	require.NoError(t, s.AddJob("descriptor", "@every 1h", func() {}))

	assert.Error(t, s.AddJob("five-field", "@hourly", func() {}), "duplicate name")
	assert.Error(t, s.AddJob("broken", "not a schedule", func() {}))
	assert.ElementsMatch(t, []string{"five-field", "six-field", "descriptor"}, s.GetJobNames())

	require.NoError(t, s.RemoveJob("descriptor"))
	assert.Error(t, s.RemoveJob("descriptor"))
	assert.Len(t, s.GetJobNames(), 2)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("tick", "@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestStorageCleanupJob_Run(t *testing.T) {
	sweeper := &fakeSweeper{}
	jobs.NewStorageCleanupJob(sweeper, zap.NewNop(), 50, 7).Run()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 50, sweeper.batchSize)
	assert.Equal(t, 7, sweeper.maxAttempts)

	failing := &fakeSweeper{err: errors.New("db down")}
	assert.NotPanics(t, jobs.NewStorageCleanupJob(failing, zap.NewNop(), 10, 3).Run)
}

func TestRegisterStorageCleanupJob(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	require.NoError(t, jobs.RegisterStorageCleanupJob(s, &fakeSweeper{}, zap.NewNop(), "*/10 * * * *", 100, 10))
	assert.Contains(t, s.GetJobNames(), jobs.StorageCleanupJobName)
}

func TestRegisterCatalogSyncJob_StartupRun(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	syncer := &fakeSyncer{calls: make(chan struct{}, 1)}

	require.NoError(t, jobs.RegisterCatalogSyncJob(s, syncer, zap.NewNop(), "0 15 * * * *", time.Minute, true))
	assert.Contains(t, s.GetJobNames(), jobs.CatalogSyncJobName)

	select {
	case <-syncer.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("startup sync did not run")
	}
}
