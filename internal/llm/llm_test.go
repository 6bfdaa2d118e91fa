package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edgard/wisewhisper/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStripSpecialTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		special []string
		want    string
	}{
		{"no tokens configured", "<s>hello</s>", nil, "<s>hello</s>"},
		{"llama markers", "<s> User: hi\nAssistant: hello</s>", config.DefaultSpecialTokens, " User: hi\nAssistant: hello"},
		{"chatml markers", "<|im_start|>assistant\nhey<|im_end|>", config.DefaultSpecialTokens, "assistant\nhey"},
		{"empty token ignored", "abc", []string{""}, "abc"},
		{"plain text untouched", "Cats sleep a lot.", config.DefaultSpecialTokens, "Cats sleep a lot."},
		{"only tokens", "</s></s>", config.DefaultSpecialTokens, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripSpecialTokens(tt.input, tt.special); got != tt.want {
				t.Errorf("StripSpecialTokens(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
	N         int    `json:"n"`
	Echo      bool   `json:"echo"`
}

// newCompletionServer fakes the completions endpoint of an OpenAI-compatible server.
func newCompletionServer(t *testing.T, status int, choices []map[string]any, seen chan<- completionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			http.NotFound(w, r)
			return
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil {
			seen <- req
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"model crashed","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "text_completion",
			"created": 1,
			"model":   req.Model,
			"choices": choices,
			"usage":   map[string]int{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalGenerate(t *testing.T) {
	t.Parallel()

	seen := make(chan completionRequest, 1)
	srv := newCompletionServer(t, http.StatusOK, []map[string]any{
		{"text": "<s> User: Tell me about cats.\nAssistant: Cats purr.</s>", "index": 0, "finish_reason": "stop"},
	}, seen)

	gen, err := NewLocal(LocalConfig{
		BaseURL:       srv.URL + "/v1",
		Model:         config.DefaultModelName,
		EchoPrompt:    true,
		SpecialTokens: config.DefaultSpecialTokens,
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if gen.Name() != "local" {
		t.Errorf("Name() = %q, want local", gen.Name())
	}

	prompt := "User: Tell me about cats.\nAssistant:"
	text, err := gen.Generate(context.Background(), Request{Prompt: prompt, MaxTokens: 150, Candidates: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := " User: Tell me about cats.\nAssistant: Cats purr."; text != want {
		t.Errorf("Generate() = %q, want %q", text, want)
	}

	req := <-seen
	if req.Prompt != prompt || req.MaxTokens != 150 || req.N != 1 || !req.Echo || req.Model != config.DefaultModelName {
		t.Errorf("unexpected request sent to server: %+v", req)
	}
}

func TestLocalGenerateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		choices []map[string]any
		target  error
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "no choices", status: http.StatusOK, choices: []map[string]any{}, target: ErrNoCandidates},
		{name: "empty text", status: http.StatusOK, choices: []map[string]any{{"text": "", "index": 0}}, target: ErrEmptyResponse},
		{name: "only special tokens", status: http.StatusOK, choices: []map[string]any{{"text": "</s>", "index": 0}}, target: ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newCompletionServer(t, tt.status, tt.choices, nil)
			gen, err := NewLocal(LocalConfig{
				BaseURL:       srv.URL + "/v1",
				Model:         config.DefaultModelName,
				SpecialTokens: config.DefaultSpecialTokens,
			}, discardLogger())
			if err != nil {
				t.Fatalf("NewLocal: %v", err)
			}

			text, err := gen.Generate(context.Background(), Request{Prompt: "User: x\nAssistant:", MaxTokens: 10, Candidates: 1})
			if err == nil {
				t.Fatalf("expected error, got %q", text)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.ModelConfig
		wantErr  bool
		target   error
		wantName string
	}{
		{
			name:     "local backend",
			cfg:      config.ModelConfig{Backend: "local", Name: config.DefaultModelName, BaseURL: config.DefaultModelBaseURL},
			wantName: "local",
		},
		{
			name:    "local backend without url",
			cfg:     config.ModelConfig{Backend: "local", Name: config.DefaultModelName},
			wantErr: true,
		},
		{
			name:    "gemini backend without key",
			cfg:     config.ModelConfig{Backend: "gemini", Name: "gemini-2.0-flash"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     config.ModelConfig{Backend: "onnx", Name: "x"},
			wantErr: true,
			target:  ErrUnknownBackend,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gen, err := New(context.Background(), tt.cfg, discardLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got generator %v", gen)
				}
				if tt.target != nil && !errors.Is(err, tt.target) {
					t.Errorf("expected %v, got %v", tt.target, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if gen.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", gen.Name(), tt.wantName)
			}
		})
	}
}

// newGeminiServer fakes the generateContent endpoint of the Gemini API.
func newGeminiServer(t *testing.T, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiGenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    map[string]any
		want    string
		wantErr bool
		target  error
	}{
		{
			name: "text",
			body: map[string]any{"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": "Cats purr.<|endoftext|>"}}},
				"finishReason": "STOP",
			}}},
			want: "Cats purr.",
		},
		{
			name:    "no candidates",
			body:    map[string]any{"candidates": []map[string]any{}},
			wantErr: true,
			target:  ErrNoCandidates,
		},
		{
			name: "blocked prompt",
			body: map[string]any{
				"promptFeedback": map[string]any{"blockReason": "SAFETY"},
			},
			wantErr: true,
		},
		{
			name: "empty text",
			body: map[string]any{"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": ""}}},
				"finishReason": "MAX_TOKENS",
			}}},
			wantErr: true,
			target:  ErrEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newGeminiServer(t, tt.body)
			gen, err := NewGemini(context.Background(), GeminiConfig{
				APIKey:        "test-key",
				BaseURL:       srv.URL,
				Model:         "gemini-2.0-flash",
				SpecialTokens: config.DefaultSpecialTokens,
			}, discardLogger())
			if err != nil {
				t.Fatalf("NewGemini: %v", err)
			}
			if gen.Name() != "gemini" {
				t.Errorf("Name() = %q, want gemini", gen.Name())
			}

			text, err := gen.Generate(context.Background(), Request{Prompt: "User: cats?\nAssistant:", MaxTokens: 150, Candidates: 1})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", text)
				}
				if tt.target != nil && !errors.Is(err, tt.target) {
					t.Errorf("expected %v, got %v", tt.target, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if text != tt.want {
				t.Errorf("Generate() = %q, want %q", text, tt.want)
			}
		})
	}
}
