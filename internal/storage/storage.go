package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-suggest/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the suggestion
// service needs: pulling input snapshots and publishing exports.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// New builds the client selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio", "s3":
		return NewMinioClient(ctx, cfg)
	case "sevalla":
		return NewSevallaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
