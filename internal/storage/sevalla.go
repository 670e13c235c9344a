package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/autopo-suggest/internal/config"
	"github.com/chartmuseum/storage"
)

const defaultRegion = "us-east-1"

// SevallaClient implements ObjectStorage on chartmuseum's Amazon S3 backend,
// which is what Sevalla object storage speaks.
type SevallaClient struct {
	backend storage.Backend
}

// NewSevallaClient needs static credentials: the backend reads them from the
// AWS environment variables, which are set here.
func NewSevallaClient(cfg config.StorageConfig) (*SevallaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials must be provided")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	for key, value := range map[string]string{
		"AWS_ACCESS_KEY_ID":     cfg.AccessKey,
		"AWS_SECRET_ACCESS_KEY": cfg.SecretKey,
		"AWS_REGION":            region,
		"AWS_DEFAULT_REGION":    region,
	} {
		if err := os.Setenv(key, value); err != nil {
			return nil, fmt.Errorf("sevalla client: %w", err)
		}
	}

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"",
		region,
		endpointURL(cfg.Endpoint, cfg.UseSSL),
		"",
		&storage.AmazonS3Options{S3ForcePathStyle: awsBool(true)},
	)

	return &SevallaClient{backend: backend}, nil
}

// ListObjects lists all objects for a given prefix. The backend reports paths
// relative to prefix; keys are returned in full.
func (c *SevallaClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("sevalla list failed: %w", err)
	}
	results := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		results = append(results, ObjectInfo{
			Key:  ResolveObjectKey(prefix, object.Path),
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *SevallaClient) DownloadObject(ctx context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	object, err := c.backend.GetObject(key)
	if err != nil {
		return fmt.Errorf("sevalla download %s failed: %w", key, err)
	}
	if err := os.WriteFile(destPath, object.Content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

// UploadObject stores data under key.
func (c *SevallaClient) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("sevalla upload %s failed: %w", key, err)
	}
	return nil
}

// endpointURL adds a scheme to a bare host, https unless useSSL is off.
func endpointURL(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + strings.TrimPrefix(endpoint, "//")
}

func awsBool(v bool) *bool {
	return &v
}

var _ ObjectStorage = (*SevallaClient)(nil)
