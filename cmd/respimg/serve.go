package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aellingwood/respimg/internal/build"
	"github.com/aellingwood/respimg/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build, serve and live-reload the site",
	Long: "Serve builds the site, serves the output directory over HTTP and\n" +
		"rebuilds on source changes, reloading connected browsers.",
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

		port, _ := cmd.Flags().GetInt("port")
		bind, _ := cmd.Flags().GetString("bind")
		noReload, _ := cmd.Flags().GetBool("no-live-reload")
		srv := server.NewServer(server.ServeOptions{
			Bind:       bind,
			Port:       port,
			OutputDir:  opts.OutputDir,
			LiveReload: !noReload,
			Logger:     opts.Logger,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Start(ctx) })
		g.Go(func() error { return watchSite(ctx, cmd, cfg, opts, srv.NotifyReload) })
		return g.Wait()
	},
}

func init() {
	addWatchFlags(serveCmd)
	serveCmd.Flags().IntP("port", "p", 1313, "port to listen on")
	serveCmd.Flags().String("bind", "localhost", "interface to bind to")
	serveCmd.Flags().Bool("no-live-reload", false, "disable browser live reload")
	rootCmd.AddCommand(serveCmd)
}
