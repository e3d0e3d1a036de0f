package cmd

import (
	"fmt"

	"fastsearch/internal/tui"
)

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Roots) == 0 {
		return fmt.Errorf("no watch roots configured; set roots in the config file or pass --root")
	}
	return tui.Run(cfg)
}
