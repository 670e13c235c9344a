package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/cache"
	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/export"
	"github.com/andresuchdata/autopo-suggest/internal/ingest"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/andresuchdata/autopo-suggest/internal/storage"
	"github.com/andresuchdata/autopo-suggest/internal/suggest"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoRunStore is returned by lookups when runs are not persisted.
	ErrNoRunStore = errors.New("suggestion runs are not persisted")
	// ErrRunIncomplete is returned when exporting a run that did not complete.
	ErrRunIncomplete = errors.New("run not completed")
)

// RunRequest describes one suggestion run. A zero Params.ReferenceTime means
// now. UseCache returns an earlier run with the same source and parameters
// when one is cached.
type RunRequest struct {
	Source   Source
	Params   domain.SuggestParams
	UseCache bool
}

type SuggestionService struct {
	suggester *suggest.Suggester
	runs      repository.SuggestionRepository
	cache     cache.RunCache
	now       func() time.Time
}

// NewSuggestionService wires the engine to its stores. runs may be nil, in
// which case runs are computed but not persisted.
func NewSuggestionService(suggester *suggest.Suggester, runs repository.SuggestionRepository, cacheImpl cache.RunCache) *SuggestionService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopRunCache()
	}
	return &SuggestionService{
		suggester: suggester,
		runs:      runs,
		cache:     cacheImpl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run loads the snapshot, computes the suggestions and records the run.
func (s *SuggestionService) Run(ctx context.Context, req RunRequest) (*domain.SuggestionRun, error) {
	if req.Source == nil {
		return nil, domain.NewContractError("orchestrator", "source", "")
	}

	params := suggest.WithDefaults(req.Params)
	if params.ReferenceTime.IsZero() {
		params.ReferenceTime = s.now()
	}
	if err := suggest.ValidateParams(params); err != nil {
		return nil, err
	}

	kind := req.Source.Kind()
	location := req.Source.Location()
	if req.UseCache {
		if run, ok, err := s.cache.GetByParams(ctx, domain.SourceKey(kind, location), params); err == nil && ok {
			log.Debug().Str("run_id", run.ID).Msg("suggestions: served from cache")
			return run, nil
		} else if err != nil {
			log.Warn().Err(err).Msg("suggestions: cache get failed")
		}
	}

	run := &domain.SuggestionRun{
		ID:        uuid.NewString(),
		Source:    kind,
		Location:  location,
		Status:    domain.RunPending,
		Params:    params,
		StartedAt: s.now(),
	}
	if s.runs != nil {
		if err := s.runs.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	logger := log.With().Str("run_id", run.ID).Str("source", kind).Logger()

	ds, err := req.Source.Load(ctx)
	if err != nil {
		return nil, s.fail(ctx, run, fmt.Errorf("load %s snapshot: %w", kind, err))
	}

	res, err := s.suggester.Suggest(ds.Input(), params)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	completedAt := s.now()
	run.Status = domain.RunCompleted
	run.CompletedAt = &completedAt
	run.Stats = res.Stats
	run.Stats.DroppedSales += ds.Dropped[ingest.KindSales]
	run.Stats.DroppedPurchases += ds.Dropped[ingest.KindPurchases]
	run.Suggestions = res.Suggestions

	if s.runs != nil {
		if err := s.runs.CompleteRun(ctx, run); err != nil {
			return nil, fmt.Errorf("complete run: %w", err)
		}
	}
	if err := s.cache.SetRun(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("suggestions: cache set failed")
	}

	logger.Info().
		Int("suggested", run.Stats.Suggested).
		Int("evaluated", run.Stats.ProductsEvaluated).
		Dur("elapsed", completedAt.Sub(run.StartedAt)).
		Msg("suggestion run completed")

	return run, nil
}

func (s *SuggestionService) fail(ctx context.Context, run *domain.SuggestionRun, cause error) error {
	log.Error().Err(cause).Str("run_id", run.ID).Msg("suggestion run failed")
	if s.runs != nil {
		if err := s.runs.FailRun(ctx, run.ID, cause); err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Msg("could not mark run failed")
		}
	}
	return cause
}

// Get returns a run with its suggestions.
func (s *SuggestionService) Get(ctx context.Context, id string) (*domain.SuggestionRun, error) {
	if run, ok, err := s.cache.GetRun(ctx, id); err == nil && ok {
		return run, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("suggestions: cache get run failed")
	}

	if s.runs == nil {
		return nil, ErrNoRunStore
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	if run.Status == domain.RunCompleted {
		if err := s.cache.SetRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("suggestions: cache set failed")
		}
	}
	return run, nil
}

// Latest returns the most recent completed run.
func (s *SuggestionService) Latest(ctx context.Context) (*domain.SuggestionRun, error) {
	if s.runs == nil {
		return nil, ErrNoRunStore
	}
	return s.runs.LatestRun(ctx)
}

// List returns run headers, newest first.
func (s *SuggestionService) List(ctx context.Context, limit int) ([]domain.SuggestionRun, error) {
	if s.runs == nil {
		return nil, ErrNoRunStore
	}
	return s.runs.ListRuns(ctx, limit)
}

// Export renders the run id in format f.
func (s *SuggestionService) Export(ctx context.Context, id string, f export.Format) ([]byte, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ExportRun(run, f)
}

// ExportRun renders the suggestions of run in format f.
func ExportRun(run *domain.SuggestionRun, f export.Format) ([]byte, error) {
	if run.Status != domain.RunCompleted {
		return nil, fmt.Errorf("run %s is %s: %w", run.ID, run.Status, ErrRunIncomplete)
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, f, run.Suggestions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Publish uploads the export of run under prefix and returns the object key.
func Publish(ctx context.Context, client storage.ObjectStorage, prefix string, run *domain.SuggestionRun, f export.Format) (string, error) {
	data, err := ExportRun(run, f)
	if err != nil {
		return "", err
	}
	key, err := storage.Upload(ctx, client, prefix, export.FileName(run.ID, f), data)
	if err != nil {
		return "", err
	}
	log.Info().Str("run_id", run.ID).Str("key", key).Msg("export published")
	return key, nil
}
