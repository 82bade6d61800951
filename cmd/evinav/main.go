package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/evinav/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "evinav",
	Short: "Evi, an NHS navigation companion",
	Long: `Evi helps international students find their way around the NHS:
GP registration, urgent care routing, and guided answers grounded in
official sources. Run "evinav serve" to start the daemon or
"evinav chat" for a local terminal session.`,
	SilenceUsage: true,
}

func init() {
	defaultPath := filepath.Join(os.Getenv("HOME"), ".evinav", "config.json")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "config file path")
}

// loadConfig loads the config file, exiting on failure. Commands call this
// after flag parsing so --config has already taken effect.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
