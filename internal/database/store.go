package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the database operations used by the bot.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveGeneration inserts one generation record.
	SaveGeneration(ctx context.Context, g *Generation) error

	// SummarizeGenerations aggregates the generations created at or after since.
	SummarizeGenerations(ctx context.Context, since time.Time) (*Summary, error)

	// DeleteGenerationsBefore removes generations older than before and
	// returns the number of deleted rows.
	DeleteGenerationsBefore(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveGeneration(ctx context.Context, g *Generation) error {
	if g == nil {
		return fmt.Errorf("cannot save nil generation")
	}
	if g.Backend == "" {
		return fmt.Errorf("generation must have a backend")
	}
	if g.Outcome != OutcomeOK && g.Outcome != OutcomeFallback {
		return fmt.Errorf("invalid generation outcome %q", g.Outcome)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	} else {
		g.CreatedAt = g.CreatedAt.UTC()
	}

	query := `
        INSERT INTO generation_stats (created_at, backend, outcome, duration_ms, prompt_chars, reply_chars)
        VALUES (:created_at, :backend, :outcome, :duration_ms, :prompt_chars, :reply_chars);
    `

	result, err := s.db.NamedExecContext(ctx, query, g)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving generation", "outcome", g.Outcome, "error", err)
		return fmt.Errorf("failed to save generation: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // row ids are positive
		g.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving generation", "error", err)
	}

	s.logger.DebugContext(ctx, "Generation saved", "id", g.ID, "outcome", g.Outcome, "duration_ms", g.DurationMS)
	return nil
}

func (s *sqlxStore) SummarizeGenerations(ctx context.Context, since time.Time) (*Summary, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
        SELECT
            COUNT(*) AS total,
            COALESCE(SUM(CASE WHEN outcome = 'fallback' THEN 1 ELSE 0 END), 0) AS fallbacks,
            COALESCE(AVG(duration_ms), 0) AS avg_duration_ms,
            COALESCE(MAX(duration_ms), 0) AS max_duration_ms
        FROM generation_stats
        WHERE created_at >= ?;
    `

	var summary Summary
	err := s.db.GetContext(ctx, &summary, query, since.UTC())

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while summarizing generations", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error summarizing generations", "error", err)
		return nil, fmt.Errorf("failed to summarize generations: %w", err)
	}

	return &summary, nil
}

func (s *sqlxStore) DeleteGenerationsBefore(ctx context.Context, before time.Time) (int64, error) {
	if before.IsZero() {
		return 0, fmt.Errorf("cutoff time cannot be zero")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM generation_stats WHERE created_at < ?;`, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old generations", "before", before, "error", err)
		return 0, fmt.Errorf("failed to delete generations: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}

	s.logger.InfoContext(ctx, "Deleted old generations", "before", before, "count", deleted)
	return deleted, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
