package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Browser lists, resolves and downloads Drive files.
type Browser interface {
	FileSource
	FindFolderByPath(path string) (string, error)
}

// RunFunc computes a suggestion run from the snapshot held in a Drive folder.
type RunFunc func(ctx context.Context, folderID string) (*domain.SuggestionRun, error)

type Handler struct {
	browser Browser
	run     RunFunc
}

func NewHandler(browser Browser, run RunFunc) *Handler {
	return &Handler{
		browser: browser,
		run:     run,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/files/download", h.DownloadFile).Methods(http.MethodGet)
	if h.run != nil {
		router.HandleFunc("/api/drive/suggestions", h.RunSuggestions).Methods(http.MethodPost)
	}
}

// Router returns a mux router serving the Drive routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) resolveFolder(r *http.Request) (string, error) {
	query := r.URL.Query()
	if folderPath := query.Get("path"); folderPath != "" {
		return h.browser.FindFolderByPath(folderPath)
	}
	return query.Get("folderId"), nil
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	files, err := h.browser.ListFiles(folderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if files == nil {
		files = []*File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, errors.New("fileId parameter is required"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=data.csv")

	if err := h.browser.DownloadFile(fileID, w); err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("drive download failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// RunSuggestions runs the suggestion engine over a Drive folder snapshot and
// answers with the run header.
func (h *Handler) RunSuggestions(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if folderID == "" {
		writeError(w, http.StatusBadRequest, errors.New("folderId or path parameter is required"))
		return
	}

	run, err := h.run(r.Context(), folderID)
	if err != nil {
		var ce *domain.ContractError
		if errors.As(err, &ce) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		log.Error().Err(err).Str("folder_id", folderID).Msg("drive suggestion run failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     run.ID,
		"status": run.Status,
		"stats":  run.Stats,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode drive response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
