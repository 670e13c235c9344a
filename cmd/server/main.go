package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/api"
	"github.com/andresuchdata/autopo-suggest/internal/cache"
	"github.com/andresuchdata/autopo-suggest/internal/config"
	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/drive"
	"github.com/andresuchdata/autopo-suggest/internal/repository/sqlstore"
	"github.com/andresuchdata/autopo-suggest/internal/service"
	"github.com/andresuchdata/autopo-suggest/internal/storage"
	"github.com/andresuchdata/autopo-suggest/internal/suggest"
	"github.com/andresuchdata/autopo-suggest/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	defaults, err := cfg.Suggest.Params(time.Time{})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid suggestion parameters")
	}

	// Initialize database
	db, err := sqlstore.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	runCache, err := cache.NewRunCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Run cache unavailable, continuing without it")
		runCache = cache.NewNoopRunCache()
	}

	sources := &service.Sources{
		DB:          sqlstore.NewSourceRepository(db),
		CSVDir:      cfg.App.UploadDir,
		InputPrefix: cfg.Storage.InputPrefix,
		FolderID:    cfg.Drive.FolderID,
		WorkDir:     cfg.Drive.DownloadDir,
	}

	if cfg.Storage.Enabled() {
		client, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Object storage unavailable, s3 source disabled")
		} else {
			sources.Storage = client
		}
	}

	// Initialize services
	suggestionService := service.NewSuggestionService(
		suggest.NewSuggester(cfg.Suggest.Workers),
		sqlstore.NewSuggestionRepository(db),
		runCache,
	)

	services := &api.Services{
		Suggestions: suggestionService,
		Sources:     sources.New,
		Defaults:    defaults,
	}

	if cfg.Drive.Enabled() {
		driveService, err := drive.NewServiceFromFile(ctx, cfg.Drive.CredentialsPath)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Drive unavailable, drive routes disabled")
		} else {
			sources.Downloader = drive.NewDownloader(driveService)
			runFromFolder := func(ctx context.Context, folderID string) (*domain.SuggestionRun, error) {
				source, err := sources.New(service.SourceDrive, folderID)
				if err != nil {
					return nil, err
				}
				return suggestionService.Run(ctx, service.RunRequest{Source: source, Params: defaults})
			}
			services.Drive = drive.NewHandler(driveService, runFromFolder).Router()
		}
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("db_driver", cfg.Database.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
