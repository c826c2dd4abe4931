package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
)

// Maintenance job schedules.
const (
	pruneSchedule      = "@every 6h"
	checkpointSchedule = "@hourly"
	usageSchedule      = "@every 30m"
	vacuumSchedule     = "@weekly"

	snapshotRetention = 30 * 24 * time.Hour
	jobTimeout        = time.Minute
)

// MaintenanceStore is the database surface used by maintenance jobs.
type MaintenanceStore interface {
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
	Checkpoint(ctx context.Context) error
	Vacuum(ctx context.Context) error
}

// Jobs holds the maintenance job bodies.
type Jobs struct {
	store   MaintenanceStore
	usage   func(ctx context.Context)
	now     func() time.Time
	logger  *slog.Logger
	timeout time.Duration
}

// PruneSnapshots deletes credit snapshots past the retention period.
func (j *Jobs) PruneSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.store.PruneSnapshots(ctx, j.now().Add(-snapshotRetention))
	if err != nil {
		j.logger.Error("failed to prune credit snapshots", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("pruned credit snapshots", "rows", n)
	}
}

// Checkpoint folds the write-ahead log into the database file.
func (j *Jobs) Checkpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.store.Checkpoint(ctx); err != nil {
		j.logger.Error("failed to checkpoint database", "error", err)
	}
}

// Vacuum reclaims the space freed by pruning.
func (j *Jobs) Vacuum() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.store.Vacuum(ctx); err != nil {
		j.logger.Error("failed to vacuum database", "error", err)
	}
}

// RefreshUsage refreshes the usage trend.
func (j *Jobs) RefreshUsage() {
	if j.usage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.usage(ctx)
}

// newMaintenance registers the maintenance jobs on a new cron scheduler.
func newMaintenance(m *Manager) *cron.Cron {
	log := logger.With("maintenance")
	jobs := &Jobs{
		store:   m.database,
		usage:   m.RefreshUsage,
		now:     time.Now,
		logger:  log,
		timeout: jobTimeout,
	}
	return scheduleJobs(jobs, log)
}

func scheduleJobs(jobs *Jobs, log *slog.Logger) *cron.Cron {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	for _, job := range []struct {
		name     string
		schedule string
		fn       func()
	}{
		{"prune snapshots", pruneSchedule, jobs.PruneSnapshots},
		{"checkpoint", checkpointSchedule, jobs.Checkpoint},
		{"vacuum", vacuumSchedule, jobs.Vacuum},
		{"usage trend", usageSchedule, jobs.RefreshUsage},
	} {
		if _, err := c.AddFunc(job.schedule, job.fn); err != nil {
			log.Error("failed to schedule maintenance job", "job", job.name, "error", err)
		} else {
			log.Debug("scheduled maintenance job", "job", job.name, "schedule", job.schedule)
		}
	}

	return c
}
