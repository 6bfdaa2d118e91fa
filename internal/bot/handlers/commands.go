package handlers

import (
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// leadingCommand returns the bot command at the start of msg, without the
// leading slash, such as "start" or "start@wisewhisper_bot".
func leadingCommand(msg *models.Message) (string, bool) {
	if msg == nil {
		return "", false
	}
	for _, e := range msg.Entities {
		if e.Type != models.MessageEntityTypeBotCommand || e.Offset != 0 {
			continue
		}
		// Commands and usernames are ASCII, so UTF-16 length equals byte length.
		if e.Length < 2 || e.Length > len(msg.Text) {
			return "", true
		}
		return msg.Text[1:e.Length], true
	}
	return "", false
}

// commandMatch matches "/name" and "/name@<bot username>", the form clients
// send in group chats. A command addressed to another bot does not match.
func commandMatch(deps HandlerDeps, name string) tgbot.MatchFunc {
	return func(update *models.Update) bool {
		cmd, ok := leadingCommand(update.Message)
		if !ok {
			return false
		}
		command, target, addressed := strings.Cut(cmd, "@")
		if !strings.EqualFold(command, name) {
			return false
		}
		if !addressed {
			return true
		}
		username := botUsername(deps)
		return username == "" || strings.EqualFold(target, username)
	}
}

// botUsername is empty until the serve command has called getMe.
func botUsername(deps HandlerDeps) string {
	if deps.Config == nil || deps.Config.Telegram.BotInfo == nil {
		return ""
	}
	return deps.Config.Telegram.BotInfo.Username
}
