package snapshot

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"tidy-go/internal/config"
)

// NewStoreFromConfig returns nil, nil when snapshots are disabled.
func NewStoreFromConfig(ctx context.Context, cfg config.SnapshotConfig, fsys afero.Fs) (Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem snapshot store requires fs_root to be set")
		}
		return NewFileSystemStore(fsys, cfg.FSRoot)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown snapshot type: %s", cfg.Type)
	}
}
