// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"log/slog"
	"runtime/debug"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Recover creates a middleware that turns a panic in any downstream handler
// into a logged dispatch failure. No reply is sent for that update and the
// polling loop keeps running.
func Recover(logger *slog.Logger) tgbot.Middleware {
	log := logger.With("middleware", "Recover")

	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			var updateID int64
			if update != nil {
				updateID = update.ID
			}
			defer func() {
				if r := recover(); r != nil {
					log.ErrorContext(ctx, "Dispatch failure: handler panicked",
						"update_id", updateID,
						"panic", r,
						"stack", string(debug.Stack()))
				}
			}()

			next(ctx, bot, update)
		}
	}
}
