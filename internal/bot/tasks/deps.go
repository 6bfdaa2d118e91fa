// Package tasks implements the scheduled tasks of the bot: periodic reports
// and retention of the generation stats.
package tasks

import (
	"log/slog"

	"github.com/edgard/wisewhisper/internal/config"
	"github.com/edgard/wisewhisper/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
