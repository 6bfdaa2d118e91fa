package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/wisewhisper/internal/config"
)

// newStatsRetentionTask creates the task that drops expired generation stats
// and then compacts the database file.
func newStatsRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stats_retention")

	retention := config.DefaultStatsRetention
	if deps.Config != nil && deps.Config.Database.StatsRetention > 0 {
		retention = deps.Config.Database.StatsRetention
	}

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled stats retention task...", "retention", retention)
		startTime := time.Now()

		deleted, err := deps.Store.DeleteGenerationsBefore(ctx, startTime.Add(-retention))
		if err != nil {
			log.ErrorContext(ctx, "Failed to delete expired generation stats", "error", err)
			return fmt.Errorf("stats retention failed: %w", err)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled stats retention task completed successfully",
			"deleted", deleted,
			"duration", time.Since(startTime))
		return nil
	}
}
