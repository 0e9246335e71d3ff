/**
 * @description
 * Cron scheduler for the portfolio-service maintenance jobs.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/transfa/portfolio-service/internal/store"
)

const maintenanceJobTimeout = 2 * time.Minute

// MaintenanceJobs holds the periodic housekeeping tasks.
type MaintenanceJobs struct {
	institutions store.InstitutionCache
	logger       *slog.Logger
}

func NewMaintenanceJobs(institutions store.InstitutionCache, logger *slog.Logger) *MaintenanceJobs {
	return &MaintenanceJobs{institutions: institutions, logger: logger}
}

// ClearExpiredInstitutions removes institution cache entries past their expiry.
func (j *MaintenanceJobs) ClearExpiredInstitutions() {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceJobTimeout)
	defer cancel()

	removed, err := j.institutions.ClearExpiredInstitutions(ctx)
	if err != nil {
		j.logger.Error("institution cache cleanup failed", "error", err)
		return
	}
	j.logger.Info("institution cache cleanup finished", "removed", removed)
}

// Scheduler runs MaintenanceJobs on cron schedules.
type Scheduler struct {
	cron                   *cron.Cron
	jobs                   *MaintenanceJobs
	institutionCleanupSpec string
	logger                 *slog.Logger
}

func NewScheduler(jobs *MaintenanceJobs, institutionCleanupSpec string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:                   c,
		jobs:                   jobs,
		institutionCleanupSpec: institutionCleanupSpec,
		logger:                 logger,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.institutionCleanupSpec, s.jobs.ClearExpiredInstitutions); err != nil {
		s.logger.Error("failed to schedule institution cache cleanup", "schedule", s.institutionCleanupSpec, "error", err)
		return err
	}
	s.logger.Info("scheduled institution cache cleanup", "schedule", s.institutionCleanupSpec)

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
