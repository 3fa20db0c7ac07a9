package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hivedesk/hivedesk/internal/chattui"
	"github.com/hivedesk/hivedesk/internal/engine"
	"github.com/hivedesk/hivedesk/internal/transport/rest"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var baseURL, token string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.API.BaseURL = baseURL
			}
			if token != "" {
				cfg.API.Token = token
			}
			if cfg.API.Token == "" {
				cfg.API.Token = readStoredToken()
			}
			if cfg.API.Token == "" {
				return fmt.Errorf("no API token: run `hivedesk login` or set api.token")
			}

			client, err := rest.NewClient(rest.Config{
				BaseURL: cfg.API.BaseURL,
				Token:   cfg.API.Token,
				Timeout: cfg.API.RequestTimeout,
			})
			if err != nil {
				return err
			}

			loop := engine.NewSyncLoop(engine.Config{PollInterval: cfg.Sync.PollInterval}, client)
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := loop.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = loop.Stop() }()

			return chattui.Run(loop, chattui.Config{TUI: cfg.TUI})
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "portal API root override")
	cmd.Flags().StringVar(&token, "token", "", "API token override")
	return cmd
}
