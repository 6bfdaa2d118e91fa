// Package cli wires the WiseWhisper components into the command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/edgard/wisewhisper/internal/config"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

// NewRoot builds the wisewhisper command tree.
func NewRoot() *cobra.Command {
	opts := config.Options{}

	root := &cobra.Command{
		Use:           "wisewhisper",
		Short:         "WiseWhisper is a Telegram bot that answers messages with a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.yaml", "Path to the optional YAML configuration file")
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "Path to the optional dotenv file")

	root.AddCommand(newServeCommand(&opts))
	root.AddCommand(newAskCommand(&opts))
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
