package command

import (
	"errors"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			env, handle, err := openDatabase(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() {
				if err := handle.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()
			env.log.Info().Str("db_driver", env.cfg.DBDriver).Msg("database is up to date")
			return nil
		},
	}
}
