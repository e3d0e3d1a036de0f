package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fastsearch/internal/catalog"
	"fastsearch/internal/extract"
	"fastsearch/internal/pool"
	"fastsearch/internal/watch"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the indexing service headless",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Roots) == 0 {
			return fmt.Errorf("no watch roots configured; set roots in the config file or pass --root")
		}

		log := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cat, err := catalog.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer cat.Close()
		cat.SetLogger(log)

		p := pool.New(cat, extract.NewRouter(), pool.Config{
			Workers:         cfg.Workers,
			QueueCapacity:   cfg.QueueCapacity,
			MaxExtractBytes: cfg.MaxExtractBytes,
		}, log)
		p.Start()
		defer p.Stop()

		svc := watch.New(cat, p, watch.Config{
			Roots:                     cfg.Roots,
			ExcludeDirs:               cfg.ExcludeSet(),
			SkipInitialIfIndexPresent: cfg.SkipInitialScanIfIndexed,
		}, log)
		svc.Start()
		defer svc.Stop()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
