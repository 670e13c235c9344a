package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/cache"
	"github.com/andresuchdata/autopo-suggest/internal/config"
	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/drive"
	"github.com/andresuchdata/autopo-suggest/internal/export"
	"github.com/andresuchdata/autopo-suggest/internal/ingest"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/andresuchdata/autopo-suggest/internal/repository/sqlstore"
	"github.com/andresuchdata/autopo-suggest/internal/service"
	"github.com/andresuchdata/autopo-suggest/internal/storage"
	"github.com/andresuchdata/autopo-suggest/internal/suggest"
	"github.com/andresuchdata/autopo-suggest/pkg/logger"
	"github.com/urfave/cli/v2"
)

type ctxKey string

const dbKey ctxKey = "db"

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-driver",
			Usage:   "Database driver (postgres, pgx or sqlite3)",
			EnvVars: []string{"DB_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "Database connection string",
			EnvVars: []string{"DB_DSN", "DATABASE_URL"},
		},
	}
}

func initDB(c *cli.Context) error {
	cfg := config.Load().Database
	if driver := c.String("db-driver"); driver != "" {
		cfg.Driver = driver
	}
	if dsn := c.String("db-url"); dsn != "" {
		cfg.DSN = dsn
	}

	db, err := sqlstore.NewDB(&cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(c.Context); err != nil {
		db.Close()
		return err
	}

	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*sqlstore.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *sqlstore.DB {
	db, _ := c.Context.Value(dbKey).(*sqlstore.DB)
	return db
}

// runNeedsDB reports whether the run command reads from or writes to the SQL store.
func runNeedsDB(c *cli.Context) bool {
	return c.String("source") == service.SourceDB || c.Bool("persist")
}

func main() {
	cfg := config.Load()
	logger.Configure(cfg.Log.Level, cfg.Log.Format)

	app := &cli.App{
		Name:  "suggest",
		Usage: "Compute purchase suggestions from sales, purchases and stock",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create the database tables",
				Flags:  dbFlags(),
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					logger.Log.Info().Msg("Database schema is up to date")
					return nil
				},
			},
			{
				Name:  "import",
				Usage: "Load a directory of CSV files into the database",
				Flags: append(dbFlags(),
					&cli.StringFlag{
						Name:    "dir",
						Usage:   "Directory containing sales.csv, purchases.csv, products.csv and packaging.csv",
						Value:   cfg.App.UploadDir,
						EnvVars: []string{"IMPORT_DIR"},
					},
				),
				Before: initDB,
				After:  closeDB,
				Action: runImport,
			},
			{
				Name:  "run",
				Usage: "Compute suggestions and write them to a file",
				Flags: append(dbFlags(),
					&cli.StringFlag{
						Name:  "source",
						Usage: "Input source: db, csv, s3 or drive",
						Value: service.SourceCSV,
					},
					&cli.StringFlag{
						Name:  "location",
						Usage: "Directory, bucket prefix or Drive folder id of the input",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output file (defaults to the data dir)",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: xlsx or csv",
						Value: string(export.FormatXLSX),
					},
					&cli.StringFlag{
						Name:  "method",
						Usage: "Forecast method: mean, rolling, weighted or trend",
						Value: cfg.Suggest.ForecastMethod,
					},
					&cli.IntFlag{
						Name:  "coverage-days",
						Usage: "Days of demand to cover",
						Value: cfg.Suggest.ForecastPeriodDays,
					},
					&cli.IntFlag{
						Name:  "safety-days",
						Usage: "Days of safety stock",
						Value: cfg.Suggest.SafetyDays,
					},
					&cli.StringFlag{
						Name:  "reference-date",
						Usage: "Reference date (YYYY-MM-DD), defaults to today",
					},
					&cli.BoolFlag{
						Name:  "persist",
						Usage: "Store the run in the database",
					},
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Upload the export to object storage",
					},
				),
				Before: func(c *cli.Context) error {
					if runNeedsDB(c) {
						return initDB(c)
					}
					return nil
				},
				After:  closeDB,
				Action: runSuggest,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("suggest failed")
	}
}

func runImport(c *cli.Context) error {
	dir := c.String("dir")
	ds, err := ingest.LoadDir(dir)
	if err != nil {
		return err
	}

	if err := sqlstore.NewSourceRepository(dbFrom(c)).ImportDataset(c.Context, ds); err != nil {
		return fmt.Errorf("failed to import %s: %w", dir, err)
	}

	logger.Log.Info().
		Str("dir", dir).
		Int("sales", len(ds.Sales)).
		Int("purchases", len(ds.Purchases)).
		Int("products", len(ds.Products)).
		Int("packaging", len(ds.Packaging)).
		Interface("dropped", ds.Dropped).
		Msg("Import complete")
	return nil
}

func runSuggest(c *cli.Context) error {
	cfg := config.Load()
	ctx := c.Context

	format, err := export.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}

	suggestCfg := cfg.Suggest
	suggestCfg.ForecastMethod = c.String("method")
	suggestCfg.ForecastPeriodDays = c.Int("coverage-days")
	suggestCfg.SafetyDays = c.Int("safety-days")

	reference := time.Now()
	if raw := c.String("reference-date"); raw != "" {
		reference, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid reference date %q: %w", raw, err)
		}
	}
	params, err := suggestCfg.Params(reference)
	if err != nil {
		return err
	}

	sources, err := buildSources(c, cfg)
	if err != nil {
		return err
	}
	source, err := sources.New(strings.ToLower(c.String("source")), c.String("location"))
	if err != nil {
		return err
	}

	var runs repository.SuggestionRepository
	if db := dbFrom(c); db != nil && c.Bool("persist") {
		runs = sqlstore.NewSuggestionRepository(db)
	}
	svc := service.NewSuggestionService(suggest.NewSuggester(cfg.Suggest.Workers), runs, cache.NewNoopRunCache())

	run, err := svc.Run(ctx, service.RunRequest{Source: source, Params: params})
	if err != nil {
		return err
	}

	data, err := service.ExportRun(run, format)
	if err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		output = filepath.Join(cfg.App.DataDir, export.FileName(run.Params.ReferenceTime.Format("20060102"), format))
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	logRun(run, output)

	if c.Bool("upload") {
		if sources.Storage == nil {
			return fmt.Errorf("upload requested but object storage is not configured")
		}
		key, err := service.Publish(ctx, sources.Storage, cfg.Storage.ExportPrefix, run, format)
		if err != nil {
			return err
		}
		logger.Log.Info().Str("key", key).Msg("Export uploaded")
	}
	return nil
}

// buildSources wires only the backends the selected source or flags need.
func buildSources(c *cli.Context, cfg *config.Config) (*service.Sources, error) {
	sources := &service.Sources{
		CSVDir:      cfg.App.UploadDir,
		InputPrefix: cfg.Storage.InputPrefix,
		FolderID:    cfg.Drive.FolderID,
		WorkDir:     cfg.Drive.DownloadDir,
	}
	if db := dbFrom(c); db != nil {
		sources.DB = sqlstore.NewSourceRepository(db)
	}

	kind := c.String("source")
	if (kind == service.SourceS3 || c.Bool("upload")) && cfg.Storage.Enabled() {
		client, err := storage.New(c.Context, cfg.Storage)
		if err != nil {
			return nil, err
		}
		sources.Storage = client
	}
	if kind == service.SourceDrive && cfg.Drive.Enabled() {
		driveService, err := drive.NewServiceFromFile(c.Context, cfg.Drive.CredentialsPath)
		if err != nil {
			return nil, err
		}
		sources.Downloader = drive.NewDownloader(driveService)
	}
	return sources, nil
}

func logRun(run *domain.SuggestionRun, output string) {
	logger.Log.Info().
		Str("run_id", run.ID).
		Str("source", run.Source).
		Int("products", run.Stats.ProductsEvaluated).
		Int("suggested", run.Stats.Suggested).
		Int("below_threshold", run.Stats.BelowThreshold).
		Int("unquoted", run.Stats.Unquoted).
		Int("dropped_sales", run.Stats.DroppedSales).
		Int("dropped_purchases", run.Stats.DroppedPurchases).
		Str("output", output).
		Msg("Suggestion run complete")
}
