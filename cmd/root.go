package cmd

import (
	"os"
	"path/filepath"

	"fastsearch/internal/config"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDB     string
	flagRoots  []string
)

var rootCmd = &cobra.Command{
	Use:   "fastsearch",
	Short: "Live filename and full-text search over watched directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.fastsearch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "catalog database path (default ~/.fastsearch/catalog.db)")
	rootCmd.PersistentFlags().StringSliceVar(&flagRoots, "root", nil, "watch root (repeatable, overrides config)")
}

// loadConfig resolves the effective configuration from the config file
// overlaid with command-line flags.
func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		base, err := config.BaseDir()
		if err != nil {
			return config.Config{}, err
		}
		path = filepath.Join(base, "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if len(flagRoots) > 0 {
		cfg.Roots = nil
		for _, r := range flagRoots {
			abs, err := filepath.Abs(r)
			if err != nil {
				return config.Config{}, err
			}
			cfg.Roots = append(cfg.Roots, abs)
		}
	}
	return cfg, nil
}
