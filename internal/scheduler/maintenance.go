package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/structura/internal/database"
	"github.com/rs/zerolog"
)

// MaintenanceJob keeps the SQLite databases healthy: integrity checks plus
// WAL truncation so the write-ahead logs never grow unbounded.
type MaintenanceJob struct {
	dbs []*database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates the maintenance job over the given databases.
func NewMaintenanceJob(log zerolog.Logger, dbs ...*database.DB) *MaintenanceJob {
	return &MaintenanceJob{
		dbs: dbs,
		log: log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name implements Job.
func (j *MaintenanceJob) Name() string { return "db_maintenance" }

// Run implements Job. Each database is checked independently; the first
// failure is reported after all databases have been visited.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var firstErr error
	for _, db := range j.dbs {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("health check %s: %w", db.Name(), err)
			}
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		j.log.Debug().Str("database", db.Name()).Msg("Database maintenance done")
	}
	return firstErr
}
