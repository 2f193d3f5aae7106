package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aellingwood/respimg/internal/build"
	"github.com/aellingwood/respimg/internal/config"
	"github.com/aellingwood/respimg/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the site whenever sources change",
	Long: "Watch builds the site once, then rebuilds it after changes to content,\n" +
		"layouts, themes, static files, image assets or the config file.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, opts, err := buildSetup(cmd)
		if err != nil {
			return err
		}
		result, err := build.NewBuilder(cfg, opts).Build()
		if err != nil {
			return fmt.Errorf("building site: %w", err)
		}
		printBuildSummary(cmd.OutOrStdout(), result, opts.OutputDir)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchSite(ctx, cmd, cfg, opts, nil)
	},
}

// watchSite rebuilds the site after source changes until ctx is cancelled.
// afterBuild, when set, runs after each successful rebuild.
func watchSite(ctx context.Context, cmd *cobra.Command, cfg *config.SiteConfig, opts build.BuildOptions, afterBuild func()) error {
	logger := opts.Logger
	out := cmd.OutOrStdout()

	var mu sync.Mutex
	rebuild := func() {
		mu.Lock()
		defer mu.Unlock()

		cfg, opts, err := buildSetup(cmd)
		if err != nil {
			logger.Error("reloading config", "err", err)
			return
		}
		result, err := build.NewBuilder(cfg, opts).Build()
		if err != nil {
			logger.Error("rebuild failed", "err", err)
			return
		}
		printBuildSummary(out, result, opts.OutputDir)
		if afterBuild != nil {
			afterBuild()
		}
	}

	root := opts.ProjectRoot
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(root, configPath)
	}
	paths := []string{
		filepath.Join(root, "content"),
		filepath.Join(root, "layouts"),
		filepath.Join(root, "themes"),
		filepath.Join(root, "static"),
		filepath.Join(root, cfg.Images.AssetsDir),
		configPath,
	}
	ignore := []string{
		opts.OutputDir,
		filepath.Join(root, cfg.Images.OutputDir),
		filepath.Join(root, cfg.Cache.Path),
	}

	debounce, _ := cmd.Flags().GetDuration("debounce")
	logger.Info("watching for changes", "root", root)
	return watch.New(paths, ignore, debounce, rebuild, logger).Run(ctx)
}

func addWatchFlags(cmd *cobra.Command) {
	addBuildFlags(cmd)
	cmd.Flags().Duration("debounce", 300*time.Millisecond, "quiet period before a rebuild")
}

func init() {
	addWatchFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
