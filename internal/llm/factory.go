package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/wisewhisper/internal/config"
)

// New builds the Generator selected by cfg.Backend.
func New(ctx context.Context, cfg config.ModelConfig, logger *slog.Logger) (Generator, error) {
	switch cfg.Backend {
	case "local":
		return NewLocal(LocalConfig{
			BaseURL:       cfg.BaseURL,
			APIKey:        cfg.APIKey,
			Model:         cfg.Name,
			Temperature:   cfg.Temperature,
			EchoPrompt:    cfg.EchoPrompt,
			SpecialTokens: cfg.SpecialTokens,
		}, logger)
	case "gemini":
		return NewGemini(ctx, GeminiConfig{
			APIKey:        cfg.APIKey,
			Model:         cfg.Name,
			Temperature:   cfg.Temperature,
			SpecialTokens: cfg.SpecialTokens,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
