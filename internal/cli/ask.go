package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgard/wisewhisper/internal/config"
	"github.com/edgard/wisewhisper/internal/llm"
	"github.com/edgard/wisewhisper/internal/logger"
	"github.com/edgard/wisewhisper/internal/prompt"
)

func newAskCommand(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Answer one message from the terminal, as the bot would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*opts)
			if err != nil {
				return err
			}

			// Logs go to stderr so stdout carries only the reply.
			log := logger.NewLogger(cmd.ErrOrStderr(), cfg.Logger.Level, cfg.Logger.JSON)

			gen, err := llm.New(cmd.Context(), cfg.Model, log)
			if err != nil {
				return fmt.Errorf("failed to initialize language model: %w", err)
			}

			adapter := prompt.New(gen, adapterOptions(cfg, nil), log)
			fmt.Fprintln(cmd.OutOrStdout(), adapter.Respond(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}
