package encryption

import (
	"fmt"

	"github.com/spf13/afero"

	"tidy-go/internal/config"
	"tidy-go/internal/snapshot"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(fsys afero.Fs, cfg config.EncryptionConfig) (snapshot.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(fsys, cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
