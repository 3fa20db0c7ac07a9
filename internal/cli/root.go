// Package cli wires the hivedesk commands together.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hivedesk/hivedesk/internal/config"
	"github.com/hivedesk/hivedesk/internal/logging"
)

// Execute runs the root command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "hivedesk",
		Short:         "Terminal chat client for the parent portal",
		Long:          "hivedesk keeps a polled message feed reconciled into per-counterpart conversations\nand renders it as a terminal chat client.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/hivedesk/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newChatCmd(opts),
		newServeCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newVersionCmd(version),
	)
	return cmd
}

// loadConfig resolves configuration and initializes logging. Every
// subcommand goes through here first.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	loader := config.NewLoader()
	if opts.configFile != "" {
		loader.SetConfigFile(opts.configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	return cfg, nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hivedesk version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "hivedesk "+version)
		},
	}
}

// tokenPath is where login stores the API token for later sessions.
func tokenPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "hivedesk", "token"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "hivedesk", "token"), nil
}

func readStoredToken() string {
	path, err := tokenPath()
	if err != nil {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func writeStoredToken(token string) (string, error) {
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write token file: %w", err)
	}
	return path, nil
}
