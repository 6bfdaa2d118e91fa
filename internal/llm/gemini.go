package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, for proxies. Empty uses the default.
	BaseURL       string
	Model         string
	Temperature   float32
	SpecialTokens []string
}

type geminiClient struct {
	genaiClient   *genai.Client
	model         string
	temperature   float32
	specialTokens []string
	log           *slog.Logger
}

// NewGemini creates a Generator backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "llm_gemini")
	log.Info("Gemini client initialized successfully", "model", cfg.Model)

	return &geminiClient{
		genaiClient:   gi,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		specialTokens: cfg.SpecialTokens,
		log:           log,
	}, nil
}

func (c *geminiClient) Name() string { return "gemini" }

func (c *geminiClient) Generate(ctx context.Context, req Request) (string, error) {
	c.log.DebugContext(ctx, "Requesting content", "prompt_length", len(req.Prompt), "max_tokens", req.MaxTokens)

	genCfg := &genai.GenerateContentConfig{
		//nolint:gosec // bounded by config validation
		MaxOutputTokens: int32(req.MaxTokens),
		//nolint:gosec // bounded by config validation
		CandidateCount: int32(req.Candidates),
	}
	if c.temperature > 0 {
		temp := c.temperature
		genCfg.Temperature = &temp
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("gemini request blocked: %v", fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	text := StripSpecialTokens(resp.Text(), c.specialTokens)
	if text == "" {
		return "", fmt.Errorf("%w (finish reason %v)", ErrEmptyResponse, resp.Candidates[0].FinishReason)
	}
	return text, nil
}
