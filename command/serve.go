package command

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"useradmin/config"
	"useradmin/credential"
	"useradmin/handlers"
	"useradmin/invite"
	"useradmin/server"
	"useradmin/store"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web interface",
		Long: "Serves the web interface. A fresh invite code for self-registration is\n" +
			"printed to stdout at startup unless invite_code is configured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			env, handle, err := openDatabase(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() {
				if err := handle.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			hasher, err := credential.ForScheme(env.cfg.PasswordScheme, env.cfg.BcryptCost)
			if err != nil {
				return err
			}
			gate, err := inviteGate(env.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invite code: %s\n", gate.Code())

			app, err := handlers.New(env.cfg, env.log, store.NewSQLStore(handle), gate, hasher)
			if err != nil {
				return err
			}

			grp, ctx := errgroup.WithContext(cmd.Context())
			listener, err := server.Listen(ctx, env.cfg.Addr())
			if err != nil {
				return err
			}
			env.log.Info().
				Str("address", listener.Addr().String()).
				Str("app", env.cfg.AppName).
				Msg("starting server")

			srv := &http.Server{Handler: app.Handler()}
			server.Serve(ctx, grp, srv, listener, server.ShutdownTimeout)
			err = grp.Wait()
			env.log.Info().Msg("server stopped")
			return err
		},
	}
}

func inviteGate(cfg *config.Config) (*invite.Gate, error) {
	if cfg.InviteCode != "" {
		return invite.Fixed(cfg.InviteCode)
	}
	return invite.New(invite.DefaultLength)
}
