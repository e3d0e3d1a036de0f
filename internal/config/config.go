package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultExcludeDirs are directory names pruned from scans when the config
// does not supply its own list. Matching is case-insensitive.
var DefaultExcludeDirs = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor",
	"venv", ".venv", "__pycache__",
	".idea", ".vscode",
}

const (
	// DefaultQueueCapacity bounds the extraction work queue.
	DefaultQueueCapacity = 10000
	// DefaultMaxExtractBytes is the largest file the extractors will read.
	DefaultMaxExtractBytes = 2_000_000
)

// Config holds all settings for the indexing service. It is constructed once
// (Load or Default), validated, and passed by value into the catalog, pool,
// and watch service. Nothing reads it from ambient global state.
type Config struct {
	// Roots are the watched directory roots. Paths are made absolute on load.
	Roots []string `toml:"roots"`

	// ExcludeDirs are directory names skipped during scans, compared
	// case-insensitively against each directory's base name.
	ExcludeDirs []string `toml:"exclude_dirs"`

	// DBPath is the catalog database file. Empty means <base>/catalog.db.
	DBPath string `toml:"db_path"`

	// Workers is the extraction worker count. Zero selects the default:
	// NumCPU-1 clamped to [1,4].
	Workers int `toml:"workers"`

	// QueueCapacity bounds the extraction queue. Zero selects the default.
	QueueCapacity int `toml:"queue_capacity"`

	// MaxExtractBytes refuses content extraction for larger files.
	MaxExtractBytes int64 `toml:"max_extract_bytes"`

	// EnableOCR turns on image OCR when an OCR-capable extractor is wired in.
	EnableOCR bool `toml:"enable_ocr"`

	// SkipInitialScanIfIndexed skips the initial walk for roots whose
	// previous scan completed, resuming from the persisted catalog.
	SkipInitialScanIfIndexed bool `toml:"skip_initial_scan_if_indexed"`
}

// Default returns a Config with every field at its default value.
func Default() Config {
	return Config{
		ExcludeDirs:              append([]string(nil), DefaultExcludeDirs...),
		Workers:                  DefaultWorkers(),
		QueueCapacity:            DefaultQueueCapacity,
		MaxExtractBytes:          DefaultMaxExtractBytes,
		SkipInitialScanIfIndexed: true,
	}
}

// DefaultWorkers derives the worker count from available parallelism,
// keeping one CPU free and clamping to [1,4].
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}

// BaseDir returns the directory holding the catalog and config files.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".fastsearch"), nil
}

// Read decodes a Config from the reader, layered over the defaults.
func Read(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at path and normalizes it. A missing file is not
// an error: the defaults are returned.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			return cfg, cfg.normalize()
		}
		return Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return Config{}, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, cfg.normalize()
}

// Write encodes the Config as TOML.
func Write(w io.Writer, cfg Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// normalize applies defaults for zero fields, makes roots absolute, and
// validates the result. Invalid configuration is the one error class that
// propagates to the caller at construction time.
func (c *Config) normalize() error {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers()
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.MaxExtractBytes == 0 {
		c.MaxExtractBytes = DefaultMaxExtractBytes
	}
	if c.MaxExtractBytes < 0 {
		return fmt.Errorf("max_extract_bytes must be positive, got %d", c.MaxExtractBytes)
	}
	if len(c.ExcludeDirs) == 0 {
		c.ExcludeDirs = append([]string(nil), DefaultExcludeDirs...)
	}
	for i, root := range c.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("root %q: %w", root, err)
		}
		c.Roots[i] = abs
	}
	if c.DBPath == "" {
		base, err := BaseDir()
		if err != nil {
			return err
		}
		c.DBPath = filepath.Join(base, "catalog.db")
	}
	return nil
}

// ExcludeSet returns the exclusion names lower-cased for scanner lookups.
func (c Config) ExcludeSet() map[string]bool {
	set := make(map[string]bool, len(c.ExcludeDirs))
	for _, name := range c.ExcludeDirs {
		set[strings.ToLower(name)] = true
	}
	return set
}
