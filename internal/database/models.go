package database

import "time"

// Outcome classifies how a message was answered.
type Outcome string

const (
	// OutcomeOK means the reply came from the model.
	OutcomeOK Outcome = "ok"
	// OutcomeFallback means the fixed fallback reply was sent.
	OutcomeFallback Outcome = "fallback"
)

// Generation is one answered message. Only sizes and timings are kept.
type Generation struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	Backend     string  `db:"backend"`
	Outcome     Outcome `db:"outcome"`
	DurationMS  int64   `db:"duration_ms"`
	PromptChars int     `db:"prompt_chars"`
	ReplyChars  int     `db:"reply_chars"`
}

// Summary aggregates generations over a time window.
type Summary struct {
	Total         int     `db:"total"`
	Fallbacks     int     `db:"fallbacks"`
	AvgDurationMS float64 `db:"avg_duration_ms"`
	MaxDurationMS int64   `db:"max_duration_ms"`
}

// FallbackRate is the share of generations that ended in the fallback reply.
func (s Summary) FallbackRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.Total)
}
