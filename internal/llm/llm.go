// Package llm wraps the language model runtimes WiseWhisper can talk to.
// Every backend exposes the same Generator contract: one prompt in, one
// decoded text out.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyResponse is returned when the runtime produced no text.
	ErrEmptyResponse = errors.New("model returned empty response")
	// ErrNoCandidates is returned when the runtime returned no candidates at all.
	ErrNoCandidates = errors.New("model returned no candidates")
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown model backend")
)

// Request describes a single generation call.
type Request struct {
	Prompt string
	// MaxTokens caps the number of generated tokens.
	MaxTokens int
	// Candidates is the number of outputs requested; only the first is used.
	Candidates int
}

// Generator produces a continuation for a prompt.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Name identifies the backend in logs and stats.
	Name() string
}

// StripSpecialTokens removes control tokens such as "</s>" from decoded text.
func StripSpecialTokens(text string, special []string) string {
	if len(special) == 0 {
		return text
	}
	pairs := make([]string, 0, len(special)*2)
	for _, tok := range special {
		if tok == "" {
			continue
		}
		pairs = append(pairs, tok, "")
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
