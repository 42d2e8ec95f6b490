package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ttsdeck/internal/common/fsutil"
	"ttsdeck/internal/config"
)

// rootOpts carries the persistent flag values shared by every subcommand.
type rootOpts struct {
	configPath string
	serverURL  string
	logLevel   string
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	opts := &rootOpts{}
	root := &cobra.Command{
		Use:           "ttsdeck",
		Short:         "Companion client for a local speech synthesis server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags with environment variable defaults
	root.PersistentFlags().StringVar(&opts.configPath, "config", envStr("TTSDECK_CONFIG", ""), "Path to a yaml/json/toml config file")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", envStr("TTSDECK_SERVER", ""), "Base URL of the speech server")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envStr("TTSDECK_LOG_LEVEL", ""), "Log level: debug|info|warn|error")

	root.AddCommand(buildServeCmd(opts), buildModelsCmd(opts), buildSayCmd(opts))
	return root
}

// loadConfig resolves defaults, then the optional file, then flag overrides.
func (o *rootOpts) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		path, err := fsutil.ExpandHome(o.configPath)
		if err != nil {
			return cfg, err
		}
		over, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = config.Merge(cfg, over)
	}
	if o.serverURL != "" {
		cfg.ServerURL = o.serverURL
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
