package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/aellingwood/respimg/internal/responsive"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the configured image presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		presets := responsive.NewCollator(cfg.Images, newLogger(cmd)).Presets()
		if len(presets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No presets configured.")
			return nil
		}

		table := newTable(cmd.OutOrStdout())
		table.Header([]string{"Preset", "Options"})
		var rows [][]string
		for _, name := range slices.Sorted(maps.Keys(presets)) {
			rows = append(rows, []string{name, formatOptions(presets[name])})
		}
		if err := table.Bulk(rows); err != nil {
			return err
		}
		return table.Render()
	},
}

// formatOptions renders preset options as sorted key=value pairs.
func formatOptions(opts map[string]any) string {
	parts := make([]string, 0, len(opts))
	for _, k := range slices.Sorted(maps.Keys(opts)) {
		parts = append(parts, k+"="+cast.ToString(opts[k]))
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
