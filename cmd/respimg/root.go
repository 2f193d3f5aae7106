package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aellingwood/respimg/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "respimg",
	Short: "Responsive image derivatives for static sites",
	Long: "respimg builds a static site and replaces its <img> elements with <picture>\n" +
		"elements backed by resized WebP and JPEG derivatives.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "respimg.yaml", "path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger returns a text logger on stderr. --verbose enables debug output.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the file named by --config and applies overrides.
func loadConfig(cmd *cobra.Command, overrides map[string]any) (*config.SiteConfig, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if len(overrides) > 0 {
		cfg = cfg.WithOverrides(overrides)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating overrides: %w", err)
		}
	}
	return cfg, nil
}

// projectRoot is the directory relative paths in the config resolve against.
func projectRoot() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determining project root: %w", err)
	}
	return root, nil
}
