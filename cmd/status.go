package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atlasforge/gazetteer/internal/gpkg"
	"github.com/atlasforge/gazetteer/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is downloaded, extracted, and built",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		printArchiveStatus()
		printExtractStatus()
		printOutputStatus(cmd.Context())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printArchiveStatus() {
	fmt.Println("Archives:")
	entries, err := os.ReadDir(pipeline.ArchiveDir(cfg))
	if err != nil || len(entries) == 0 {
		fmt.Println("  none downloaded")
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Printf("  %-40s %10s  %s\n", e.Name(), humanSize(info.Size()),
			info.ModTime().Format("2006-01-02 15:04"))
	}
}

func printExtractStatus() {
	fmt.Println("Extracted:")
	for _, dir := range []string{pipeline.BoundariesDir(cfg), pipeline.GazetteerDir(cfg)} {
		n := countFiles(dir)
		if n == 0 {
			fmt.Printf("  %-40s missing\n", dir)
			continue
		}
		fmt.Printf("  %-40s %d files\n", dir, n)
	}
}

func printOutputStatus(ctx context.Context) {
	fmt.Println("Outputs:")
	for _, path := range []string{cfg.Output.RegionsPath(), cfg.Output.PlacesPath()} {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Printf("  %-40s missing\n", path)
			continue
		}
		fmt.Printf("  %-40s %10s  %s  %s\n", path, humanSize(info.Size()),
			info.ModTime().Format("2006-01-02 15:04"), layerCounts(ctx, path))
	}
}

// layerCounts summarizes the feature tables of an output container.
func layerCounts(ctx context.Context, path string) string {
	g, err := gpkg.Open(path)
	if err != nil {
		return "unreadable"
	}
	defer g.Close() //nolint:errcheck

	tables, err := g.FeatureTables(ctx)
	if err != nil {
		return "unreadable"
	}
	parts := make([]string, 0, len(tables))
	for _, table := range tables {
		n, err := g.CountRows(ctx, table)
		if err != nil {
			parts = append(parts, table+": ?")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d", table, n))
	}
	return strings.Join(parts, ", ")
}

func countFiles(dir string) int {
	var n int
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
