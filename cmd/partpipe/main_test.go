package main

import (
	"testing"
	"time"

	"partpipe/internal/config"
)

func TestWatchOptions(t *testing.T) {
	t.Run("maps configured source settings", func(t *testing.T) {
		cfg := config.NewConfig("host-1", t.TempDir())
		cfg.Source.Extensions = []string{".ipt", ".iam"}
		cfg.Source.ExportDir = "Exports"
		cfg.Watch.DebounceMS = 500

		opts := watchOptions(cfg)

		if len(opts.Extensions) != 2 || opts.Extensions[0] != ".ipt" || opts.Extensions[1] != ".iam" {
			t.Errorf("Extensions = %v, want [.ipt .iam]", opts.Extensions)
		}
		if len(opts.SkipDirs) != 2 || opts.SkipDirs[0] != "Exports" || opts.SkipDirs[1] != ".git" {
			t.Errorf("SkipDirs = %v, want [Exports .git]", opts.SkipDirs)
		}
		if opts.Debounce != 500*time.Millisecond {
			t.Errorf("Debounce = %v, want 500ms", opts.Debounce)
		}
	})

	t.Run("unset extensions fall back to the pipeline default", func(t *testing.T) {
		cfg := config.NewConfig("host-1", t.TempDir())
		cfg.Source.Extensions = nil
		cfg.Source.ExportDir = ""

		opts := watchOptions(cfg)

		if len(opts.Extensions) != 1 || opts.Extensions[0] != ".ipt" {
			t.Errorf("Extensions = %v, want [.ipt]", opts.Extensions)
		}
		if len(opts.SkipDirs) == 0 || opts.SkipDirs[0] != "STEP_Exports" {
			t.Errorf("SkipDirs = %v, want STEP_Exports first", opts.SkipDirs)
		}
	})
}
