package encryption

import (
	"fmt"

	"partpipe/internal/config"
	"partpipe/internal/pipeline"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" returns a nil Encryptor; source mirroring is then unavailable.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (pipeline.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "none":
		return nil, nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
