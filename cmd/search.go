package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"fastsearch/internal/catalog"

	"github.com/spf13/cobra"
)

var (
	flagMode      string
	flagLimit     int
	flagFiletypes []string
	flagSizes     []string
	flagDates     []string
	flagLocations []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot search against the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cat, err := catalog.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer cat.Close()

		q := ""
		if len(args) == 1 {
			q = args[0]
		}
		mode := catalog.Mode(flagMode)
		switch mode {
		case catalog.ModeFilename, catalog.ModeContent, catalog.ModeAll:
		default:
			return fmt.Errorf("invalid mode %q (want filename, content, or all)", flagMode)
		}

		filters := catalog.Filters{
			Filetypes:   flagFiletypes,
			SizeBuckets: flagSizes,
			DateBuckets: flagDates,
		}
		if len(flagLocations) > 0 {
			paths := make([]string, len(flagLocations))
			for i, l := range flagLocations {
				if paths[i], err = filepath.Abs(l); err != nil {
					return err
				}
			}
			if filters.LocationIDs, err = cat.LocationIDsForPaths(paths); err != nil {
				return err
			}
			if len(filters.LocationIDs) == 0 {
				return fmt.Errorf("no indexed location matches %v", flagLocations)
			}
		}
		rows, facets, err := cat.Search(q, filters, flagLimit, mode)
		if err != nil {
			return err
		}

		for _, r := range rows {
			mt := time.Unix(0, r.MtimeNS).Format("2006-01-02 15:04")
			fmt.Printf("%-12s %10d  %s  %s\n", r.Filetype, r.SizeBytes, mt, r.Path)
		}
		fmt.Printf("\n%d results\n", len(rows))
		printFacet("filetype", facets)
		printFacet("size_bucket", facets)
		printFacet("date_bucket", facets)
		printFacet("location", facets)
		return nil
	},
}

func printFacet(dim string, facets catalog.FacetCounts) {
	counts := facets[dim]
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("  %s:", dim)
	for _, k := range keys {
		fmt.Printf(" %s=%d", k, counts[k])
	}
	fmt.Println()
}

func init() {
	searchCmd.Flags().StringVar(&flagMode, "mode", "all", "search mode: filename, content, or all")
	searchCmd.Flags().IntVar(&flagLimit, "limit", 50, "maximum rows returned")
	searchCmd.Flags().StringSliceVar(&flagFiletypes, "filetype", nil, "filter by filetype facet (repeatable)")
	searchCmd.Flags().StringSliceVar(&flagSizes, "size", nil, "filter by size bucket (repeatable)")
	searchCmd.Flags().StringSliceVar(&flagDates, "date", nil, "filter by date bucket (repeatable)")
	searchCmd.Flags().StringSliceVar(&flagLocations, "location", nil, "filter by watched root path (repeatable)")
	rootCmd.AddCommand(searchCmd)
}
