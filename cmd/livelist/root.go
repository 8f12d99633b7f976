package main

import (
	"strings"

	"github.com/spf13/cobra"

	"livelist/pkg/logger"
)

func newRootCommand() *cobra.Command {
	var flags rootFlags

	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "livelist",
		Short:         "Shared checklists that stay in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Logging goes to stdout, so it stays off unless asked for.
			if level := strings.TrimSpace(flags.logLevel); level != "" {
				logger.Init(level)
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.server, "server", "", "List server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Directory for local lists and identity (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Enable logging at this level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&flags.password, "password", "p", "", "Room password")

	rootCmd.AddCommand(newJoinCommand(ctx))
	rootCmd.AddCommand(newListsCommand(ctx))
	rootCmd.AddCommand(newSeedCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newAvatarCommand(ctx))

	return rootCmd
}
