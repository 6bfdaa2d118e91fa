package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// LocalConfig configures the client of a locally hosted checkpoint.
type LocalConfig struct {
	// BaseURL of an OpenAI-compatible server (llama.cpp server, vLLM, TGI).
	BaseURL string
	// APIKey is optional; most local servers ignore it.
	APIKey string
	// Model is the checkpoint identifier the server resolves.
	Model       string
	Temperature float32
	// EchoPrompt asks the server to include the prompt in the output, the
	// way a decoder-only generate call returns prompt and continuation.
	EchoPrompt    bool
	SpecialTokens []string
}

type localClient struct {
	client        *openai.Client
	model         string
	temperature   float32
	echo          bool
	specialTokens []string
	log           *slog.Logger
}

// NewLocal creates a Generator backed by the completions endpoint of an
// OpenAI-compatible inference server.
func NewLocal(cfg LocalConfig, logger *slog.Logger) (Generator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("local model base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("local model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	oaiCfg.BaseURL = cfg.BaseURL

	log := logger.With("component", "llm_local")
	log.Info("Local model client initialized", "base_url", cfg.BaseURL, "model", cfg.Model)

	return &localClient{
		client:        openai.NewClientWithConfig(oaiCfg),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		echo:          cfg.EchoPrompt,
		specialTokens: cfg.SpecialTokens,
		log:           log,
	}, nil
}

func (c *localClient) Name() string { return "local" }

func (c *localClient) Generate(ctx context.Context, req Request) (string, error) {
	c.log.DebugContext(ctx, "Requesting completion", "prompt_length", len(req.Prompt), "max_tokens", req.MaxTokens)

	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		N:           req.Candidates,
		Temperature: c.temperature,
		Echo:        c.echo,
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoCandidates
	}

	text := StripSpecialTokens(resp.Choices[0].Text, c.specialTokens)
	if text == "" {
		return "", ErrEmptyResponse
	}

	c.log.DebugContext(ctx, "Completion received",
		"finish_reason", resp.Choices[0].FinishReason,
		"completion_tokens", resp.Usage.CompletionTokens)
	return text, nil
}
