package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aellingwood/respimg/internal/content"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List content by status",
}

var listDraftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List draft content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPages(cmd, "No drafts found.", func(p *content.Page) bool {
			return p.Draft
		})
	},
}

var listFutureCmd = &cobra.Command{
	Use:   "future",
	Short: "List future-dated content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		return listPages(cmd, "No future-dated content found.", func(p *content.Page) bool {
			return p.Date.After(now)
		})
	},
}

// listPages prints a table of the discovered pages that match keep.
func listPages(cmd *cobra.Command, empty string, keep func(*content.Page) bool) error {
	if _, err := loadConfig(cmd, nil); err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}
	pages, err := content.Discover(filepath.Join(root, "content"))
	if err != nil {
		return fmt.Errorf("discovering content: %w", err)
	}

	var rows [][]string
	for _, p := range pages {
		if !keep(p) {
			continue
		}
		date := ""
		if !p.Date.IsZero() {
			date = p.Date.Format("2006-01-02")
		}
		title := p.Title
		if title == "" {
			title = "(untitled)"
		}
		rows = append(rows, []string{date, title, p.URL})
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), empty)
		return nil
	}

	table := newTable(cmd.OutOrStdout())
	table.Header([]string{"Date", "Title", "URL"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func init() {
	listCmd.AddCommand(listDraftsCmd)
	listCmd.AddCommand(listFutureCmd)
	rootCmd.AddCommand(listCmd)
}
