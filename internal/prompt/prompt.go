// Package prompt turns one user message into one reply using a language model.
// It owns the prompt template, the extraction of the assistant's turn from
// the raw model output, and the conversion of every failure into a fixed
// fallback reply.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/wisewhisper/internal/database"
	"github.com/edgard/wisewhisper/internal/llm"
)

const (
	// Template wraps the user message into a single-turn transcript.
	Template = "User: %s\nAssistant:"
	// Marker precedes the assistant's turn in the raw model output.
	Marker = "Assistant:"
	// FallbackReply is returned whenever generation fails.
	FallbackReply = "I'm sorry, I couldn't process your request."

	defaultMaxTokens = 150
)

// ErrEmptyReply is returned when the extracted reply is blank.
var ErrEmptyReply = errors.New("model output has no reply text")

// StatsRecorder persists one row per handled message.
type StatsRecorder interface {
	SaveGeneration(ctx context.Context, g *database.Generation) error
}

// Options tunes an Adapter. Zero values fall back to the defaults.
type Options struct {
	MaxTokens  int
	Candidates int
	// Timeout bounds a single generation; zero means no timeout.
	Timeout  time.Duration
	Fallback string
	// Stats is optional.
	Stats StatsRecorder
}

// Adapter is the only first-party logic between the bot and the model.
// It holds no per-request state and is safe for concurrent use.
type Adapter struct {
	gen        llm.Generator
	stats      StatsRecorder
	log        *slog.Logger
	maxTokens  int
	candidates int
	timeout    time.Duration
	fallback   string
}

// New creates an Adapter around an already initialized generator.
func New(gen llm.Generator, opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &Adapter{
		gen:        gen,
		stats:      opts.Stats,
		log:        logger.With("component", "prompt_adapter"),
		maxTokens:  opts.MaxTokens,
		candidates: opts.Candidates,
		timeout:    opts.Timeout,
		fallback:   opts.Fallback,
	}
	if a.maxTokens <= 0 {
		a.maxTokens = defaultMaxTokens
	}
	if a.candidates <= 0 {
		a.candidates = 1
	}
	if a.fallback == "" {
		a.fallback = FallbackReply
	}
	return a
}

// Format substitutes the user message into Template.
func Format(userMessage string) string {
	return fmt.Sprintf(Template, userMessage)
}

// Extract returns the text after the last Marker, trimmed. Without a marker
// the whole output is returned, trimmed.
func Extract(raw string) string {
	parts := strings.Split(raw, Marker)
	return strings.TrimSpace(parts[len(parts)-1])
}

// Respond returns the model's reply to userMessage, or the fallback reply if
// anything goes wrong. It never returns an empty string.
func (a *Adapter) Respond(ctx context.Context, userMessage string) string {
	a.log.InfoContext(ctx, "Received message", "message", userMessage)
	startTime := time.Now()

	formatted := Format(userMessage)
	reply, err := a.generate(ctx, formatted)

	outcome := database.OutcomeOK
	if err != nil {
		a.log.ErrorContext(ctx, "Error in LLM processing", "error", err, "backend", a.gen.Name())
		reply = a.fallback
		outcome = database.OutcomeFallback
	}

	a.record(ctx, &database.Generation{
		Backend:     a.gen.Name(),
		Outcome:     outcome,
		DurationMS:  time.Since(startTime).Milliseconds(),
		PromptChars: len([]rune(formatted)),
		ReplyChars:  len([]rune(reply)),
	})
	return reply
}

func (a *Adapter) generate(ctx context.Context, formatted string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.gen.Generate(ctx, llm.Request{
		Prompt:     formatted,
		MaxTokens:  a.maxTokens,
		Candidates: a.candidates,
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	reply := Extract(raw)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func (a *Adapter) record(ctx context.Context, g *database.Generation) {
	if a.stats == nil {
		return
	}
	// Recording must outlive a cancelled request context.
	if err := a.stats.SaveGeneration(context.WithoutCancel(ctx), g); err != nil {
		a.log.WarnContext(ctx, "Failed to record generation stats", "error", err)
	}
}
