package exporter

import (
	"fmt"
	"time"

	"partpipe/internal/config"
	"partpipe/internal/pipeline"
)

// NewExporterFromConfig creates an Exporter based on the configuration type.
func NewExporterFromConfig(cfg config.ExporterConfig) (pipeline.Exporter, error) {
	switch cfg.Type {
	case "process", "":
		if cfg.Command == "" {
			return nil, fmt.Errorf("process exporter requires command to be set")
		}
		return NewProcessExporter(cfg.Command, cfg.Args,
			time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.SkipExitCode), nil
	default:
		return nil, fmt.Errorf("unknown exporter type: %q", cfg.Type)
	}
}
