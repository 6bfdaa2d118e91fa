// Package main contains the entrypoint for the WiseWhisper Telegram bot.
package main

import (
	"log/slog"
	"os"

	"github.com/edgard/wisewhisper/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
