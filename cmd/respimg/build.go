package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aellingwood/respimg/internal/build"
	"github.com/aellingwood/respimg/internal/config"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the site and its responsive images",
	Long: "Build renders content into a static site, generating WebP and JPEG\n" +
		"derivatives for every responsive image it encounters.",
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
		return nil
	},
}

// buildSetup resolves the config and builder options shared by build and
// watch from the command's flags.
func buildSetup(cmd *cobra.Command) (*config.SiteConfig, build.BuildOptions, error) {
	flags := cmd.Flags()
	overrides := make(map[string]any)
	if flags.Changed("minify") {
		overrides["minify"], _ = flags.GetBool("minify")
	}
	if flags.Changed("workers") {
		overrides["workers"], _ = flags.GetInt("workers")
	}

	cfg, err := loadConfig(cmd, overrides)
	if err != nil {
		return nil, build.BuildOptions{}, err
	}
	root, err := projectRoot()
	if err != nil {
		return nil, build.BuildOptions{}, err
	}

	dest, _ := flags.GetString("destination")
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(root, dest)
	}
	drafts, _ := flags.GetBool("drafts")
	future, _ := flags.GetBool("future")

	return cfg, build.BuildOptions{
		IncludeDrafts: drafts,
		IncludeFuture: future,
		OutputDir:     dest,
		Minify:        cfg.Build.Minify,
		Workers:       cfg.Build.Workers,
		ProjectRoot:   root,
		Logger:        newLogger(cmd),
	}, nil
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("drafts", false, "include draft content")
	cmd.Flags().Bool("future", false, "include future-dated content")
	cmd.Flags().StringP("destination", "d", "public", "output directory")
	cmd.Flags().Bool("minify", false, "minify output")
	cmd.Flags().Int("workers", 0, "parallel render workers (0 uses all CPUs)")
}

func init() {
	addBuildFlags(buildCmd)
	rootCmd.AddCommand(buildCmd)
}
