package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/andresuchdata/autopo-suggest/internal/export"
	"github.com/andresuchdata/autopo-suggest/internal/repository"
	"github.com/andresuchdata/autopo-suggest/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SourceFactory resolves a source kind and an optional location (directory,
// bucket prefix or Drive folder id) to a snapshot source.
type SourceFactory func(kind, location string) (service.Source, error)

type SuggestionHandler struct {
	service  *service.SuggestionService
	sources  SourceFactory
	defaults domain.SuggestParams
}

func NewSuggestionHandler(svc *service.SuggestionService, sources SourceFactory, defaults domain.SuggestParams) *SuggestionHandler {
	return &SuggestionHandler{service: svc, sources: sources, defaults: defaults}
}

// runRequest overrides the configured parameters field by field.
type runRequest struct {
	Source              string   `json:"source"`
	Location            string   `json:"location"`
	ForecastPeriodDays  *int     `json:"forecast_period_days"`
	SafetyDays          *int     `json:"safety_days"`
	ForecastMethod      *string  `json:"forecast_method"`
	ForecastWindow      *int     `json:"forecast_window"`
	LookbackDays        *int     `json:"lookback_days"`
	TotalUnitsThreshold *float64 `json:"total_units_threshold"`
	SafetyRecencyDays   *int     `json:"safety_recency_days"`
	SupplierRecencyDays *int     `json:"supplier_recency_days"`
	ReferenceDate       string   `json:"reference_date"`
	UseCache            bool     `json:"use_cache"`
}

func (r runRequest) params(defaults domain.SuggestParams) (domain.SuggestParams, error) {
	p := defaults
	p.ReferenceTime = time.Time{}

	if r.ForecastPeriodDays != nil {
		p.ForecastPeriodDays = *r.ForecastPeriodDays
	}
	if r.SafetyDays != nil {
		p.SafetyDays = *r.SafetyDays
	}
	if r.ForecastMethod != nil {
		method, ok := domain.ParseForecastMethod(*r.ForecastMethod)
		if !ok {
			return p, domain.NewContractError("orchestrator", "forecast_method", "unknown forecast method "+*r.ForecastMethod)
		}
		p.ForecastMethod = method
	}
	if r.ForecastWindow != nil {
		p.ForecastWindow = *r.ForecastWindow
	}
	if r.LookbackDays != nil {
		p.LookbackDays = *r.LookbackDays
	}
	if r.TotalUnitsThreshold != nil {
		p.TotalUnitsThreshold = *r.TotalUnitsThreshold
	}
	if r.SafetyRecencyDays != nil {
		p.SafetyRecencyDays = *r.SafetyRecencyDays
	}
	if r.SupplierRecencyDays != nil {
		p.SupplierRecencyDays = *r.SupplierRecencyDays
	}
	if r.ReferenceDate != "" {
		t, err := time.Parse("2006-01-02", r.ReferenceDate)
		if err != nil {
			return p, domain.NewContractError("orchestrator", "reference_date", "expected YYYY-MM-DD")
		}
		p.ReferenceTime = t
	}
	return p, nil
}

func (h *SuggestionHandler) Run(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Source == "" {
		req.Source = service.SourceDB
	}

	params, err := req.params(h.defaults)
	if err != nil {
		h.fail(c, err)
		return
	}

	source, err := h.sources(strings.ToLower(req.Source), req.Location)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.service.Run(c.Request.Context(), service.RunRequest{
		Source:   source,
		Params:   params,
		UseCache: req.UseCache,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, run)
}

func (h *SuggestionHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if runs == nil {
		runs = make([]domain.SuggestionRun, 0)
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *SuggestionHandler) Latest(c *gin.Context) {
	run, err := h.service.Latest(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *SuggestionHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *SuggestionHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	id := c.Param("id")
	data, err := h.service.Export(c.Request.Context(), id, format)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+export.FileName(id, format))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *SuggestionHandler) fail(c *gin.Context, err error) {
	var ce *domain.ContractError
	switch {
	case errors.As(err, &ce):
		errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRunIncomplete):
		errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoRunStore):
		errorResponse(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("suggestion request failed")
		errorResponse(c, http.StatusInternalServerError, "internal server error")
	}
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}
