package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgard/wisewhisper/internal/database"
	"github.com/edgard/wisewhisper/internal/llm"
)

// stubGenerator returns output(prompt) or err, recording every request.
type stubGenerator struct {
	mu       sync.Mutex
	output   func(prompt string) string
	err      error
	requests []llm.Request
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return g.output(req.Prompt), nil
}

func (g *stubGenerator) Name() string { return "stub" }

// echo mimics a decoder-only runtime: prompt followed by continuation.
func echo(continuation string) func(string) string {
	return func(prompt string) string { return prompt + continuation }
}

// blockingGenerator waits for the context to end.
type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _ llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingGenerator) Name() string { return "blocking" }

type recorder struct {
	mu   sync.Mutex
	rows []*database.Generation
	err  error
}

func (r *recorder) SaveGeneration(_ context.Context, g *database.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, g)
	return r.err
}

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"Hello", "User: Hello\nAssistant:"},
		{"", "User: \nAssistant:"},
		{"100% sure", "User: 100% sure\nAssistant:"},
		{"line one\nline two", "User: line one\nline two\nAssistant:"},
	}
	for _, tt := range tests {
		if got := Format(tt.input); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	testGroups := map[string][]struct {
		name string
		raw  string
		want string
	}{
		"Marker": {
			{"echoed prompt", "User: Hi\nAssistant: Hello there!  ", "Hello there!"},
			{"leading newline", "User: Hi\nAssistant:\n\nHello", "Hello"},
			{"marker only", "Assistant:", ""},
			{"model continues the transcript", "User: Hi\nAssistant: Hey\nUser: bye\nAssistant: Goodbye", "Goodbye"},
		},
		"NoMarker": {
			{"plain continuation", "  The sky is blue.\n", "The sky is blue."},
			{"empty", "", ""},
			{"lowercase marker is not a marker", "assistant: hi", "assistant: hi"},
		},
		"LastMarkerGap": {
			// The user's own text can contain the marker; only the last one counts.
			{"marker inside user message", "User: say Assistant: now\nAssistant: ok", "ok"},
			{"marker in reply truncates it", "User: Hi\nAssistant: I am your Assistant: friend", "friend"},
		},
	}

	for groupName, tests := range testGroups {
		t.Run(groupName, func(t *testing.T) {
			t.Parallel()
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					if got := Extract(tt.raw); got != tt.want {
						t.Errorf("Extract(%q) = %q, want %q", tt.raw, got, tt.want)
					}
				})
			}
		})
	}
}

func TestRespond(t *testing.T) {
	t.Parallel()

	t.Run("returns the assistant turn", func(t *testing.T) {
		t.Parallel()
		gen := &stubGenerator{output: echo(" Hello! How can I help?")}
		a := New(gen, Options{}, nil)

		if got := a.Respond(context.Background(), "Hi"); got != "Hello! How can I help?" {
			t.Errorf("Respond = %q", got)
		}
		if len(gen.requests) != 1 {
			t.Fatalf("expected one generation, got %d", len(gen.requests))
		}
		req := gen.requests[0]
		if req.Prompt != "User: Hi\nAssistant:" || req.MaxTokens != 150 || req.Candidates != 1 {
			t.Errorf("unexpected request %+v", req)
		}
	})

	t.Run("cat fact", func(t *testing.T) {
		t.Parallel()
		gen := &stubGenerator{output: echo(" Cats sleep for around 13 to 16 hours a day. A cat's nose print is unique.")}
		a := New(gen, Options{}, nil)

		got := a.Respond(context.Background(), "Tell me a fun fact about cats.")
		if !strings.Contains(strings.ToLower(got), "cat") {
			t.Errorf("expected reply about cats, got %q", got)
		}
	})

	t.Run("options are forwarded", func(t *testing.T) {
		t.Parallel()
		gen := &stubGenerator{output: echo(" ok")}
		a := New(gen, Options{MaxTokens: 32, Candidates: 2}, nil)
		a.Respond(context.Background(), "x")

		if req := gen.requests[0]; req.MaxTokens != 32 || req.Candidates != 2 {
			t.Errorf("unexpected request %+v", req)
		}
	})

	t.Run("no marker returns whole output", func(t *testing.T) {
		t.Parallel()
		gen := &stubGenerator{output: func(string) string { return "  just text  " }}
		a := New(gen, Options{}, nil)

		if got := a.Respond(context.Background(), "Hi"); got != "just text" {
			t.Errorf("Respond = %q, want %q", got, "just text")
		}
	})
}

func TestRespondFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		gen      llm.Generator
		opts     Options
		want     string
		wantLogs string
	}{
		{
			name:     "generator error",
			gen:      &stubGenerator{err: errors.New("out of memory")},
			want:     FallbackReply,
			wantLogs: "out of memory",
		},
		{
			name:     "wrapped empty response",
			gen:      &stubGenerator{err: fmt.Errorf("decode: %w", llm.ErrEmptyResponse)},
			want:     FallbackReply,
			wantLogs: llm.ErrEmptyResponse.Error(),
		},
		{
			name:     "blank assistant turn",
			gen:      &stubGenerator{output: echo("   \n")},
			want:     FallbackReply,
			wantLogs: ErrEmptyReply.Error(),
		},
		{
			name:     "custom fallback",
			gen:      &stubGenerator{err: errors.New("boom")},
			opts:     Options{Fallback: "try again later"},
			want:     "try again later",
			wantLogs: "boom",
		},
		{
			name:     "timeout",
			gen:      blockingGenerator{},
			opts:     Options{Timeout: 20 * time.Millisecond},
			want:     FallbackReply,
			wantLogs: "deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger, buf := newBufferLogger()
			a := New(tt.gen, tt.opts, logger)

			if got := a.Respond(context.Background(), "Hi"); got != tt.want {
				t.Errorf("Respond = %q, want %q", got, tt.want)
			}
			logs := buf.String()
			if !strings.Contains(logs, "level=ERROR") || !strings.Contains(logs, tt.wantLogs) {
				t.Errorf("expected error log containing %q, got %q", tt.wantLogs, logs)
			}
		})
	}
}

func TestRespondNeverEmpty(t *testing.T) {
	t.Parallel()

	outputs := []string{
		"",
		"Assistant:",
		"User: x\nAssistant:   ",
		"<unk>",
		"a",
		"User: x\nAssistant: y",
		"Assistant: Assistant: Assistant:",
	}
	inputs := []string{"a", "Hello", "Assistant:", "🙂", strings.Repeat("long ", 200)}

	for _, out := range outputs {
		gen := &stubGenerator{output: func(string) string { return out }}
		a := New(gen, Options{}, nil)
		for _, in := range inputs {
			if got := a.Respond(context.Background(), in); got == "" {
				t.Errorf("Respond(%q) with output %q returned empty reply", in, out)
			}
		}
	}
}

func TestRespondIsRepeatable(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{output: echo(" same answer")}
	a := New(gen, Options{}, nil)

	var wg sync.WaitGroup
	replies := make([]string, 16)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i] = a.Respond(context.Background(), "question")
		}(i)
	}
	wg.Wait()

	for i, r := range replies {
		if r != "same answer" {
			t.Errorf("reply %d = %q, want %q", i, r, "same answer")
		}
	}
	for _, req := range gen.requests {
		if req.Prompt != "User: question\nAssistant:" {
			t.Errorf("prompt mutated between calls: %q", req.Prompt)
		}
	}
}

func TestRespondRecordsStats(t *testing.T) {
	t.Parallel()

	t.Run("outcomes", func(t *testing.T) {
		t.Parallel()
		rec := &recorder{}
		ok := New(&stubGenerator{output: echo(" fine")}, Options{Stats: rec}, nil)
		failed := New(&stubGenerator{err: errors.New("down")}, Options{Stats: rec}, nil)

		ok.Respond(context.Background(), "Hi")
		failed.Respond(context.Background(), "Hi")

		if len(rec.rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rec.rows))
		}
		first, second := rec.rows[0], rec.rows[1]
		if first.Outcome != database.OutcomeOK || first.Backend != "stub" || first.ReplyChars != len("fine") {
			t.Errorf("unexpected ok row %+v", first)
		}
		if first.PromptChars != len("User: Hi\nAssistant:") {
			t.Errorf("prompt chars = %d", first.PromptChars)
		}
		if second.Outcome != database.OutcomeFallback || second.ReplyChars != len([]rune(FallbackReply)) {
			t.Errorf("unexpected fallback row %+v", second)
		}
	})

	t.Run("recording failure keeps the reply", func(t *testing.T) {
		t.Parallel()
		logger, buf := newBufferLogger()
		rec := &recorder{err: errors.New("disk full")}
		a := New(&stubGenerator{output: echo(" still here")}, Options{Stats: rec}, logger)

		if got := a.Respond(context.Background(), "Hi"); got != "still here" {
			t.Errorf("Respond = %q", got)
		}
		if !strings.Contains(buf.String(), "disk full") {
			t.Errorf("expected stats failure to be logged, got %q", buf.String())
		}
	})

	t.Run("cancelled request still records", func(t *testing.T) {
		t.Parallel()
		rec := &recorder{}
		a := New(&stubGenerator{err: context.Canceled}, Options{Stats: rec}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if got := a.Respond(ctx, "Hi"); got != FallbackReply {
			t.Errorf("Respond = %q", got)
		}
		if len(rec.rows) != 1 {
			t.Errorf("expected stats row for cancelled request, got %d", len(rec.rows))
		}
	})
}
