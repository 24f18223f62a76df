package slicer

import (
	"fmt"
	"time"

	"partpipe/internal/config"
	"partpipe/internal/pipeline"
)

// NewSlicerFromConfig creates a Slicer based on the configuration type.
// Type "none" returns a nil Slicer; the pipeline treats that as slicing
// being unavailable.
func NewSlicerFromConfig(cfg config.SlicerConfig) (pipeline.Slicer, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "prusa":
		if cfg.Command == "" {
			return nil, fmt.Errorf("prusa slicer requires command to be set")
		}
		if cfg.ProfilePath == "" {
			return nil, fmt.Errorf("prusa slicer requires profile_path to be set")
		}
		return NewPrusaSlicer(cfg.Command, cfg.ProfilePath, cfg.SupportsEnabled,
			time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown slicer type: %q", cfg.Type)
	}
}
