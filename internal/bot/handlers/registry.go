package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Description string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	// MatchFunc, when set, replaces HandlerType, Pattern and MatchType for matching.
	MatchFunc tgbot.MatchFunc
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// Plain text is not a command; it goes to the default handler from NewMessageHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Description: "Say hello to WiseWhisper",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		MatchFunc:   commandMatch(deps, "start"),
	}

	return handlers
}
