package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/matatena/internal/catalog"
	"github.com/fortuna/matatena/internal/reconciliation"
	"github.com/fortuna/matatena/internal/render"
	"github.com/fortuna/matatena/internal/service"
	"github.com/fortuna/matatena/internal/store"
	"github.com/gorilla/mux"
)

const healthTimeout = 3 * time.Second

// Collections resolves collection pages and exports
type Collections interface {
	Page(ctx context.Context, username string, page int) (*service.PageView, error)
	Export(ctx context.Context, username string, ids []string, all bool) ([]store.GameRecord, error)
}

// HealthChecker is a dependency probed by /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsSource exposes reconciliation statistics
type StatsSource interface {
	Stats() reconciliation.Stats
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	collections Collections
	templates   *render.Templates
	pdf         render.PDFRenderer
	checks      map[string]HealthChecker
	stats       StatsSource
	logger      *slog.Logger
}

// HandlerConfig groups the handler dependencies. Checks and Stats are
// optional.
type HandlerConfig struct {
	Collections Collections
	Templates   *render.Templates
	PDF         render.PDFRenderer
	Checks      map[string]HealthChecker
	Stats       StatsSource
	Logger      *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		collections: cfg.Collections,
		templates:   cfg.Templates,
		pdf:         cfg.PDF,
		checks:      cfg.Checks,
		stats:       cfg.Stats,
		logger:      logger.With(slog.String("component", "http")),
	}
}

// Index renders the username form
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
		return h.templates.Index(buf, render.IndexView{
			Username: r.URL.Query().Get("username"),
			Notice:   r.URL.Query().Get("notice"),
		})
	})
}

// Collection renders one page of a user's collection
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	if username == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = p
	}

	view, err := h.collections.Page(r.Context(), username, page)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrRetryLater):
		h.renderProcessing(w, r, username)
		return
	case errors.Is(err, catalog.ErrNoSuchUser), errors.Is(err, service.ErrEmptyCollection):
		redirectWithNotice(w, r, fmt.Sprintf("No games found for user '%s' or user does not exist.", username))
		return
	default:
		h.logger.WarnContext(r.Context(), "collection page failed", slog.String("username", username), slog.Any("err", err))
		redirectWithNotice(w, r, "BoardGameGeek is not responding right now. Please try again later.")
		return
	}

	h.renderPage(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
		return h.templates.Collection(buf, render.CollectionView{
			Username:   view.Username,
			Games:      view.Games,
			Page:       view.Page,
			TotalPages: view.TotalPages,
			TotalItems: view.TotalItems,
		})
	})
}

// DownloadPDF renders the selected games, or the whole collection, as a PDF deck
func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	if username == "" {
		http.Error(w, "Username required", http.StatusBadRequest)
		return
	}

	all := r.FormValue("download_all") == "true"
	var ids []string
	if !all {
		ids = parseSelectedIDs(r.FormValue("selected_ids"))
	}

	games, err := h.collections.Export(r.Context(), username, ids, all)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrRetryLater):
		http.Error(w, "BoardGameGeek is still preparing this collection, try again shortly", http.StatusAccepted)
		return
	case errors.Is(err, catalog.ErrNoSuchUser), errors.Is(err, service.ErrEmptyCollection):
		http.Error(w, "No games found", http.StatusNotFound)
		return
	default:
		h.logger.WarnContext(r.Context(), "export failed", slog.String("username", username), slog.Any("err", err))
		http.Error(w, "BoardGameGeek is not responding", http.StatusBadGateway)
		return
	}
	if len(games) == 0 {
		http.Error(w, "No games found", http.StatusNotFound)
		return
	}

	var doc bytes.Buffer
	if err := h.templates.Deck(&doc, username, games); err != nil {
		h.logger.ErrorContext(r.Context(), "deck template failed", slog.Any("err", err))
		http.Error(w, "Failed to render deck", http.StatusInternalServerError)
		return
	}

	pdf, err := h.pdf.Render(r.Context(), doc.String())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "pdf rendering failed", slog.String("username", username), slog.Any("err", err))
		http.Error(w, "Failed to render PDF", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=bgg_deck_%s.pdf", username))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// GetCollection returns one collection page as JSON
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(mux.Vars(r)["username"])

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = p
	}

	view, err := h.collections.Page(r.Context(), username, page)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, view)
	case errors.Is(err, catalog.ErrRetryLater):
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":  "processing",
			"message": "BoardGameGeek queued the collection, retry shortly",
		})
	case errors.Is(err, catalog.ErrNoSuchUser), errors.Is(err, service.ErrEmptyCollection):
		respondError(w, http.StatusNotFound, "No games found", err)
	default:
		respondError(w, http.StatusBadGateway, "Failed to fetch collection", err)
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, checker := range h.checks {
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  "healthy",
		"service": "matatena",
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	if h.stats != nil {
		body["reconciliation"] = h.stats.Stats()
	}

	respondJSON(w, status, body)
}

func (h *Handler) renderProcessing(w http.ResponseWriter, r *http.Request, username string) {
	h.renderPage(w, r, http.StatusAccepted, func(buf *bytes.Buffer) error {
		return h.templates.Processing(buf, render.ProcessingView{
			Username:   username,
			RetryURL:   "/collection?username=" + url.QueryEscape(username),
			StatusPath: "/ws/collection/" + url.PathEscape(username),
		})
	})
}

// renderPage buffers a template so a failure can still become a 500
func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, exec func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := exec(&buf); err != nil {
		h.logger.ErrorContext(r.Context(), "template failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, "/?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

// parseSelectedIDs reads the JSON array posted by the collection page.
// Malformed input yields no ids, which exports the whole collection.
func parseSelectedIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []interface{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				ids = append(ids, s)
			}
		case float64:
			ids = append(ids, strconv.FormatFloat(t, 'f', -1, 64))
		}
	}
	return ids
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
