package command

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"useradmin/credential"
	"useradmin/store"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands",
	}
	cmd.AddCommand(
		userCreateCommand(),
		userDeleteCommand(),
	)
	return cmd
}

func userCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create user",
		Long: "Creates a userinfo record for the provided username. The password may be\n" +
			"provided via stdin or through the interactive prompt.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			env, handle, err := openDatabase(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() {
				if err := handle.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("username must not be empty")
			}
			passwd, err := prompt(cmd.InOrStdin(), cmd.ErrOrStderr(), "password: ", true)
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password := strings.TrimSpace(string(passwd))
			if password == "" {
				return errors.New("password must not be empty")
			}

			hasher, err := credential.ForScheme(env.cfg.PasswordScheme, env.cfg.BcryptCost)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(password)
			if err != nil {
				return err
			}
			id, err := store.NewSQLStore(handle).Create(cmd.Context(), name, hash)
			if err != nil {
				return err
			}

			env.log.Info().Int64("user_id", id).Str("username", name).Msg("created user")
			return nil
		},
	}
}

func userDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete user",
		Long:  "Permanently deletes the userinfo record with the given username.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			env, handle, err := openDatabase(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() {
				if err := handle.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := args[0]
			log := env.log.With().Str("username", name).Logger()
			users := store.NewSQLStore(handle)
			user, err := users.GetByUsername(cmd.Context(), name)
			if err != nil {
				return err
			}

			if !yes {
				resp, err := prompt(cmd.InOrStdin(), cmd.ErrOrStderr(), "Are you sure you want to delete this user? [y|N] ", false)
				if err != nil || !bytes.Equal(bytes.TrimSpace(resp), []byte{'y'}) {
					log.Info().Msg("aborted user deletion")
					return err
				}
			}
			if err := users.Delete(cmd.Context(), user.ID); err != nil {
				return err
			}
			log.Info().Int64("user_id", user.ID).Msg("user deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
