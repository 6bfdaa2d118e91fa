package tasks

import (
	"context"
	"fmt"
	"time"
)

// statsReportWindow matches the default hourly schedule of the task.
const statsReportWindow = time.Hour

// newStatsReportTask creates the task that logs a summary of recent generations.
func newStatsReportTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stats_report")

	return func(ctx context.Context) error {
		since := time.Now().Add(-statsReportWindow)

		summary, err := deps.Store.SummarizeGenerations(ctx, since)
		if err != nil {
			log.ErrorContext(ctx, "Failed to summarize generations", "error", err)
			return fmt.Errorf("stats report failed: %w", err)
		}

		if summary.Total == 0 {
			log.InfoContext(ctx, "No messages answered in the report window", "window", statsReportWindow)
			return nil
		}

		log.InfoContext(ctx, "Generation stats",
			"window", statsReportWindow,
			"total", summary.Total,
			"fallbacks", summary.Fallbacks,
			"fallback_rate", fmt.Sprintf("%.2f", summary.FallbackRate()),
			"avg_duration_ms", int64(summary.AvgDurationMS),
			"max_duration_ms", summary.MaxDurationMS)
		return nil
	}
}
