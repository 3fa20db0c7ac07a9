package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hivedesk/hivedesk/internal/transport/rest"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var baseURL, username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store an API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.API.BaseURL = baseURL
			}

			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "username: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read username: %w", err)
				}
				username = strings.TrimSpace(line)
			}
			if username == "" {
				return fmt.Errorf("username required")
			}

			password, err := promptPassword(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			token, err := rest.Login(ctx, cfg.API.BaseURL, username, password)
			if err != nil {
				return err
			}

			path, err := writeStoredToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s, token stored at %s\n", username, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "portal API root override")
	cmd.Flags().StringVar(&username, "username", "", "username to authenticate as")
	return cmd
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// Piped input, e.g. scripts and tests.
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(cmd.OutOrStdout(), "password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.API.BaseURL = baseURL
			}
			token := cfg.API.Token
			if token == "" {
				token = readStoredToken()
			}

			if token != "" {
				client, err := rest.NewClient(rest.Config{BaseURL: cfg.API.BaseURL, Token: token})
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				defer cancel()
				if err := client.Logout(ctx); err != nil {
					// The token file is removed regardless so a stale
					// server session never wedges the client.
					fmt.Fprintf(cmd.ErrOrStderr(), "server logout failed: %v\n", err)
				}
			}

			path, err := tokenPath()
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove token file: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "portal API root override")
	return cmd
}
