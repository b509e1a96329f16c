// Package command holds the tweetsync CLI.
package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/tweetsync/internal/config"
)

const AppName = "tweetsync"

// DefaultConfigPath is used when neither --config nor TWEETSYNC_CONFIG is set.
const DefaultConfigPath = "tweetsync.yaml"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Sync tweets into SQLite and moderate them",
		Long:          "tweetsync periodically pulls tweets from configured Twitter API endpoints, stores each one once, and serves a moderation API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	defaultPath := DefaultConfigPath
	if env := os.Getenv("TWEETSYNC_CONFIG"); env != "" {
		defaultPath = env
	}
	cmd.PersistentFlags().String("config", defaultPath, "path to the YAML config file")
	cmd.PersistentFlags().String("log-format", "", "log format: text or json (overrides config)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(
		NewServeCmd(),
		NewSyncCmd(),
		NewInitCmd(),
		NewOAuthCmd(),
		NewHashPasswordCmd(),
	)
	return cmd
}

// loadConfig reads and validates the config named by --config and applies
// the logging flags.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, path, err
	}
	if f, _ := cmd.Flags().GetString("log-format"); f != "" {
		cfg.Log.Format = f
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		cfg.Log.Level = l
	}
	if err := cfg.Validate(); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

// newLogger builds the process logger. Logs go to stderr so command output
// on stdout stays machine readable.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func writeLine(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
