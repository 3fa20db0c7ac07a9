package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hivedesk/hivedesk/internal/logging"
	"github.com/hivedesk/hivedesk/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen, dbPath, jwtSecret string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local development backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if dbPath != "" {
				cfg.Server.DatabasePath = dbPath
			}
			if jwtSecret != "" {
				cfg.Server.JWTSecret = jwtSecret
			}
			if cfg.Server.JWTSecret == "" {
				// Ephemeral secret: tokens do not survive a restart.
				cfg.Server.JWTSecret = uuid.NewString()
				serveLog := logging.Component("serve")
				serveLog.Warn().Msg("server.jwt_secret not set, using an ephemeral secret")
			}

			store, err := server.Open(cfg.Server.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if seed {
				if err := store.Seed(ctx, server.DemoUsers()); err != nil {
					return err
				}
				serveLog := logging.Component("serve")
				serveLog.Info().Msg("seeded demo users")
			}

			srv, err := server.New(cfg.Server, store)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address override")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path override")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "token signing secret override")
	cmd.Flags().BoolVar(&seed, "seed", false, "create demo users on startup")
	return cmd
}
