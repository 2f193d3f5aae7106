package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/aellingwood/respimg/internal/build"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	labelColor   = color.New(color.FgCyan)
)

// newTable returns a borderless, left-aligned table writing to w.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func printBuildSummary(w io.Writer, result *build.BuildResult, outputDir string) {
	successColor.Fprintf(w, "Built site in %s\n", result.Duration.Round(time.Millisecond))
	labelColor.Fprint(w, "  pages:   ")
	fmt.Fprintln(w, result.PagesRendered)
	labelColor.Fprint(w, "  files:   ")
	fmt.Fprintf(w, "%d written, %d copied\n", result.FilesWritten, result.FilesCopied)
	labelColor.Fprint(w, "  size:    ")
	fmt.Fprintf(w, "%s in %d files\n", formatBytes(result.OutputSize), result.OutputFiles)
	labelColor.Fprint(w, "  output:  ")
	fmt.Fprintln(w, outputDir)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
