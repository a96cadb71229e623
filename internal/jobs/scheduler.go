// Package jobs provides background job scheduling for the deal engine.
// It uses robfig/cron for cron-based job scheduling.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages background jobs using cron scheduling.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	mu     sync.Mutex
	jobs   map[string]cron.EntryID
}

// parser accepts both 5-field and 6-field (leading seconds) expressions
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// cronLogger routes cron's own messages into zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler creates a new job scheduler with the given logger.
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(cron.WithParser(parser), cron.WithLogger(cl), cron.WithChain(
			cron.SkipIfStillRunning(cl),
			cron.Recover(cl),
		)),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler. Jobs added before this call will begin running.
func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler")
	s.cron.Start()
}

// Stop gracefully stops the scheduler. Running jobs will complete.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping job scheduler")
	return s.cron.Stop()
}

// AddJob adds a job with the given name and cron expression.
// The cronExpr follows standard cron format with optional seconds field.
// Examples:
//   - "0 15 * * * *" - At minute 15 of every hour (with seconds field)
//   - "*/10 * * * *" - Every ten minutes (standard 5-field format)
//   - "@every 1h"    - Every hour
func (s *Scheduler) AddJob(name string, cronExpr string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if job already exists
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.logger.Debug("running scheduled job",
			zap.String("job_name", name))
		job()
		s.logger.Debug("completed scheduled job",
			zap.String("job_name", name))
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("added scheduled job",
		zap.String("job_name", name),
		zap.String("cron_expr", cronExpr))

	return nil
}

// RemoveJob removes a job by name.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(entryID)
	delete(s.jobs, name)

	s.logger.Info("removed scheduled job",
		zap.String("job_name", name))

	return nil
}

// GetJobNames returns the names of all registered jobs.
func (s *Scheduler) GetJobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
