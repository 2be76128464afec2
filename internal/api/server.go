// Package api exposes a small localhost ops surface: health, queue
// statistics, ingested documents, and recent answers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coursebot/coursebot/internal/dispatch"
	"github.com/coursebot/coursebot/internal/storage"
)

const defaultInteractionLimit = 50

// StatsSource reports dispatcher activity.
type StatsSource interface {
	Stats() dispatch.Stats
}

// Deps holds everything the ops handlers read from.
type Deps struct {
	Store      *storage.Store
	Dispatcher StatsSource
	Token      string
}

// NewHandler builds the ops HTTP handler. Everything except /healthz
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/v1/queue", handleQueue(deps))
		r.Get("/v1/documents", handleDocuments(deps))
		r.Get("/v1/interactions", handleInteractions(deps))
	})

	return r
}

func handleQueue(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Dispatcher.Stats())
	}
}

func handleDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		docs, err := deps.Store.ListDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing documents: %v", err)
			return
		}

		type docView struct {
			ID        int64  `json:"id"`
			Filename  string `json:"filename"`
			Filetype  string `json:"filetype"`
			Uploader  string `json:"uploader_id"`
			CreatedAt string `json:"created_at"`
		}
		out := make([]docView, 0, len(docs))
		for _, d := range docs {
			out = append(out, docView{
				ID:        d.ID,
				Filename:  d.Filename,
				Filetype:  d.Filetype,
				Uploader:  d.UploaderID,
				CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": out})
	}
}

func handleInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultInteractionLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", v)
				return
			}
			limit = n
		}

		items, err := deps.Store.GetRecentInteractions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing interactions: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"interactions": items})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
