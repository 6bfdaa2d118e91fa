package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/wisewhisper/internal/config"
)

// Responder turns a user message into a reply. It never fails; errors are
// already folded into a fallback reply.
type Responder interface {
	Respond(ctx context.Context, userMessage string) string
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Responder Responder
}
