// Package api serves stored boundaries to map clients over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/store"
)

// Handler serves the read-only boundary API:
//
//	GET /health
//	GET /boundaries
//	GET /boundaries/{slug}
type Handler struct {
	store store.Store
	log   *zap.Logger
}

// NewRouter returns the API routes with CORS for allowedOrigins.
func NewRouter(st store.Store, allowedOrigins []string) http.Handler {
	h := &Handler{store: st, log: zap.L().With(zap.String("component", "api"))}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Get("/boundaries", h.list)
	r.Get("/boundaries/{slug}", h.get)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListBoundaries(r.Context())
	if err != nil {
		h.log.Error("list boundaries failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list boundaries")
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !store.ValidSlug(slug) {
		writeError(w, http.StatusBadRequest, "invalid slug")
		return
	}

	rec, err := h.store.GetBoundary(r.Context(), slug)
	if err != nil {
		h.log.Error("get boundary failed", zap.String("slug", slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load boundary")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "boundary not found")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Last-Modified", rec.GeneratedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Feature)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
