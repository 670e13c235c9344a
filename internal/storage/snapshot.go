package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// DownloadSnapshot copies every CSV object under prefix into destDir,
// keeping the path relative to prefix, and returns the local paths.
func DownloadSnapshot(ctx context.Context, client ObjectStorage, prefix, destDir string) ([]string, error) {
	listPrefix := strings.TrimSpace(prefix)
	objects, err := client.ListObjects(ctx, listPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects for prefix %s: %w", listPrefix, err)
	}

	var keys []string
	for _, obj := range objects {
		if strings.HasSuffix(strings.ToLower(obj.Key), ".csv") {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no CSV files found for prefix %s", prefix)
	}

	localPaths := make([]string, 0, len(keys))
	for _, key := range keys {
		localPath := filepath.Join(destDir, objectRelativePath(prefix, key))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare directory for %s: %w", localPath, err)
		}
		if err := client.DownloadObject(ctx, key, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	log.Info().Str("prefix", prefix).Int("files", len(localPaths)).Msg("snapshot downloaded")
	return localPaths, nil
}

// Upload stores data as name under prefix and returns the object key.
func Upload(ctx context.Context, client ObjectStorage, prefix, name string, data []byte) (string, error) {
	key := ResolveObjectKey(prefix, name)
	if err := client.UploadObject(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// ResolveObjectKey joins name onto prefix unless name already carries it.
func ResolveObjectKey(prefix, name string) string {
	if name == "" {
		return strings.TrimSpace(prefix)
	}
	if prefix == "" {
		return strings.TrimPrefix(name, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	nameTrimmed := strings.TrimPrefix(strings.TrimSpace(name), "/")

	if strings.HasPrefix(nameTrimmed, prefixTrimmed+"/") {
		return nameTrimmed
	}
	return fmt.Sprintf("%s/%s", prefixTrimmed, nameTrimmed)
}

func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return filepath.Base(key)
	}
	return rel
}
