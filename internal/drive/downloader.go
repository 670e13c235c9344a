package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileSource is the part of the Drive API the downloader needs.
type FileSource interface {
	ListFiles(folderID string) ([]*File, error)
	DownloadFile(fileID string, w io.Writer) error
}

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls an input snapshot out of a Drive folder.
type Downloader struct {
	source FileSource
}

// NewDownloader creates a new Downloader.
func NewDownloader(s FileSource) *Downloader {
	return &Downloader{source: s}
}

// DownloadSnapshot downloads every CSV and XLSX file of the folder into
// DownloadDir and returns the local CSV paths.
//
// XLSX files are downloaded next to the CSVs, their first sheet is rewritten
// as a semicolon separated CSV with the same base name and the workbook is
// removed. A folder holding sales.xlsx therefore yields sales.csv.
func (d *Downloader) DownloadSnapshot(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(f.Name))
		if err := d.download(f, localPath); err != nil {
			return nil, err
		}

		if ext == ".csv" {
			localPaths = append(localPaths, localPath)
			continue
		}

		csvName := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name)) + ".csv"
		csvPath := filepath.Join(opts.DownloadDir, csvName)
		if err := convertXLSXToCSV(localPath, csvPath); err != nil {
			return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
		}
		_ = os.Remove(localPath)
		localPaths = append(localPaths, csvPath)
	}

	log.Info().Str("folder_id", opts.FolderID).Int("files", len(localPaths)).Msg("drive snapshot downloaded")
	return localPaths, nil
}

func (d *Downloader) download(f *File, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer out.Close()

	if err := d.source.DownloadFile(f.ID, out); err != nil {
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	return nil
}
