package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/drive"
	"github.com/andresuchdata/autopo-suggest/internal/ingest"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/andresuchdata/autopo-suggest/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Source kinds.
const (
	SourceDB    = "db"
	SourceCSV   = "csv"
	SourceS3    = "s3"
	SourceDrive = "drive"
)

// Source produces the input snapshot of a run.
type Source interface {
	Kind() string
	// Location is the directory, bucket prefix or folder read by the source.
	Location() string
	Load(ctx context.Context) (*ingest.Dataset, error)
}

// DBSource reads the snapshot from the SQL store.
type DBSource struct {
	repo repository.SourceRepository
}

func NewDBSource(repo repository.SourceRepository) *DBSource {
	return &DBSource{repo: repo}
}

func (s *DBSource) Kind() string { return SourceDB }

func (s *DBSource) Location() string { return "" }

// Load reads the four tables concurrently.
func (s *DBSource) Load(ctx context.Context) (*ingest.Dataset, error) {
	ds := &ingest.Dataset{Dropped: make(map[ingest.Kind]int)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ds.Sales, err = s.repo.LoadSales(gctx, time.Time{})
		return err
	})
	g.Go(func() error {
		var err error
		ds.Purchases, err = s.repo.LoadPurchases(gctx, time.Time{})
		return err
	})
	g.Go(func() error {
		var err error
		ds.Products, err = s.repo.LoadProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Packaging, err = s.repo.LoadPackaging(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

// DirSource reads CSV files from a local directory.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Kind() string { return SourceCSV }

func (s *DirSource) Location() string { return s.dir }

func (s *DirSource) Load(ctx context.Context) (*ingest.Dataset, error) {
	return ingest.LoadDir(s.dir)
}

// ObjectSource downloads the CSV files under a bucket prefix and reads them.
type ObjectSource struct {
	client  storage.ObjectStorage
	prefix  string
	workDir string
}

func NewObjectSource(client storage.ObjectStorage, prefix, workDir string) *ObjectSource {
	return &ObjectSource{client: client, prefix: prefix, workDir: workDir}
}

func (s *ObjectSource) Kind() string { return SourceS3 }

func (s *ObjectSource) Location() string { return s.prefix }

func (s *ObjectSource) Load(ctx context.Context) (*ingest.Dataset, error) {
	dir, cleanup, err := snapshotDir(s.workDir, "s3-")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := storage.DownloadSnapshot(ctx, s.client, s.prefix, dir); err != nil {
		return nil, err
	}
	return ingest.LoadDir(dir)
}

// DriveSource downloads a Drive folder and reads it.
type DriveSource struct {
	downloader *drive.Downloader
	folderID   string
	workDir    string
}

func NewDriveSource(downloader *drive.Downloader, folderID, workDir string) *DriveSource {
	return &DriveSource{downloader: downloader, folderID: folderID, workDir: workDir}
}

func (s *DriveSource) Kind() string { return SourceDrive }

func (s *DriveSource) Location() string { return s.folderID }

func (s *DriveSource) Load(ctx context.Context) (*ingest.Dataset, error) {
	dir, cleanup, err := snapshotDir(s.workDir, "drive-")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	_, err = s.downloader.DownloadSnapshot(ctx, drive.DownloadOptions{FolderID: s.folderID, DownloadDir: dir})
	if err != nil {
		return nil, err
	}
	return ingest.LoadDir(dir)
}

// snapshotDir creates a scratch directory under base (or the system temp dir).
func snapshotDir(base, pattern string) (string, func(), error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create work dir %s: %w", base, err)
		}
	}
	dir, err := os.MkdirTemp(base, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return filepath.Clean(dir), func() { _ = os.RemoveAll(dir) }, nil
}

// Sources builds a Source from a kind and an optional location. Backends that
// are not configured are left nil and rejected when requested.
type Sources struct {
	DB         repository.SourceRepository
	Storage    storage.ObjectStorage
	Downloader *drive.Downloader
	// Defaults used when the request carries no location.
	CSVDir      string
	InputPrefix string
	FolderID    string
	WorkDir     string
}

func (s *Sources) New(kind, location string) (Source, error) {
	switch kind {
	case "", SourceDB:
		if s.DB == nil {
			return nil, fmt.Errorf("source %q is not configured", SourceDB)
		}
		return NewDBSource(s.DB), nil
	case SourceCSV:
		dir := firstNonEmpty(location, s.CSVDir)
		if dir == "" {
			return nil, fmt.Errorf("source %q needs a directory", SourceCSV)
		}
		return NewDirSource(dir), nil
	case SourceS3:
		if s.Storage == nil {
			return nil, fmt.Errorf("source %q is not configured", SourceS3)
		}
		return NewObjectSource(s.Storage, firstNonEmpty(location, s.InputPrefix), s.WorkDir), nil
	case SourceDrive:
		if s.Downloader == nil {
			return nil, fmt.Errorf("source %q is not configured", SourceDrive)
		}
		folderID := firstNonEmpty(location, s.FolderID)
		if folderID == "" {
			return nil, fmt.Errorf("source %q needs a folder id", SourceDrive)
		}
		return NewDriveSource(s.Downloader, folderID, s.WorkDir), nil
	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
