package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/wisewhisper/internal/config"
)

const sendMessageTimeout = 10 * time.Second

type messageHandler struct {
	deps HandlerDeps
}

// NewMessageHandler creates the catch-all handler that answers any plain text
// message with the Responder's reply. Commands without a registered handler
// are ignored.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update without message text", "update_id", update.ID)
		return
	}
	if isCommand(msg) {
		log.DebugContext(ctx, "Ignoring unknown command", "update_id", update.ID, "chat_id", msg.Chat.ID)
		return
	}

	chatID := msg.Chat.ID

	sendTyping(ctx, b, h.deps, chatID)
	typingCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	go keepTyping(typingCtx, b, h.deps, chatID)

	reply := h.deps.Responder.Respond(ctx, msg.Text)
	stopTyping()

	if ctx.Err() != nil {
		log.WarnContext(ctx, "Context cancelled before sending reply", "error", ctx.Err(), "chat_id", chatID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	sent, err := b.SendMessage(sendCtx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            reply,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID, AllowSendingWithoutReply: true},
	})
	if err != nil {
		log.ErrorContext(ctx, "Dispatch failure: failed to send reply", "error", err, "chat_id", chatID)
		return
	}
	log.InfoContext(ctx, "Sent reply", "chat_id", chatID, "message_id", sent.ID)
}

// isCommand reports whether msg starts with a bot command entity. Text that
// merely begins with "/" is not a command.
func isCommand(msg *models.Message) bool {
	_, ok := leadingCommand(msg)
	return ok
}

// keepTyping re-sends the typing indicator until ctx is done. Telegram
// clears the indicator after about five seconds.
func keepTyping(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64) {
	interval := config.DefaultTypingInterval
	if deps.Config != nil && deps.Config.Telegram.TypingInterval > 0 {
		interval = deps.Config.Telegram.TypingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendTyping(ctx, b, deps, chatID)
		}
	}
}

func sendTyping(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64) {
	if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
		if ctx.Err() != nil {
			return
		}
		deps.Logger.DebugContext(ctx, "Typing action failed", "error", err, "chat_id", chatID)
	}
}
