// Package command contains the CLI command constructors.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"useradmin/config"
	"useradmin/logger"
)

const defaultConfigFile = "config.json"

// RootCommand instantiates the root command, with all sub-commands bound.
func RootCommand() *cobra.Command {
	configFilePath := defaultConfigFile
	cmd := &cobra.Command{
		Use:          "useradmin [command] [flags]",
		Short:        "Web administration of the userinfo table",
		Version:      version(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := configFilePath
			// A missing config.json in the working directory means defaults,
			// an explicitly named file must exist.
			if !cmd.Flags().Changed("config") {
				if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
					path = ""
				}
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			log := logger.New(cfg.LogLevel, os.Stderr)
			if cfg.GeneratedSessionKey {
				log.Warn().Msg("no session_key configured; using a random key, sessions end on restart")
			}
			log.Debug().
				Str("config", path).
				Str("db_driver", cfg.DBDriver).
				Str("password_scheme", cfg.PasswordScheme).
				Msg("configuration loaded")

			cmd.SetContext(context.WithValue(cmd.Context(), environmentKey{}, &environment{cfg: cfg, log: log}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(
		&configFilePath,
		"config", "c",
		configFilePath,
		"path to the JSON configuration file",
	)

	cmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		userCommand(),
	)

	return cmd
}
