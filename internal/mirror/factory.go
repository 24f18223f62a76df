// Package mirror provides off-repository artifact storage backends.
package mirror

import (
	"fmt"

	"partpipe/internal/config"
	"partpipe/internal/pipeline"
)

// NewMirrorFromConfig creates a Mirror implementation based on the mirror
// config type. Type "none" returns a nil Mirror; the pipeline treats that
// as mirroring being disabled.
func NewMirrorFromConfig(cfg config.MirrorConfig) (pipeline.Mirror, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryMirror(cfg.Name), nil
	case "s3":
		return NewS3Mirror(cfg)
	case "filesystem":
		if cfg.FSMirrorRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires fs_mirror_root to be set")
		}
		return NewFileSystemMirror(cfg.Name, cfg.FSMirrorRoot)
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
