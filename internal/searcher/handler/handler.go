// Package handler serves the search HTTP API: period-sum search, explain
// by document id, the explain audit trail, and result cache control.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/interval-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/middleware"
)

const (
	RouteSearch          = "/api/v1/search"
	RouteExplain         = "/api/v1/explain"
	RouteAudit           = "/api/v1/audit"
	RouteCacheStats      = "/api/v1/cache/stats"
	RouteCacheInvalidate = "/api/v1/cache/invalidate"
)

type SearchExecutor interface {
	Execute(ctx context.Context, q search.Query, limit int) (*executor.SearchResult, error)
	Explain(ctx context.Context, q search.Query, docID string) (*executor.ExplainResult, error)
}

// Auditor is satisfied by *audit.Store.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (int64, error)
	Recent(ctx context.Context, docID string, limit int) ([]audit.Entry, error)
}

type Config struct {
	Parser       parser.Config
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	executor SearchExecutor
	cache    *cache.QueryCache
	auditor  Auditor
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New wires a handler. queryCache, auditor and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, auditor Auditor, cfg Config, m *metrics.Metrics) *Handler {
	return &Handler{
		executor: exec,
		cache:    queryCache,
		auditor:  auditor,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+RouteSearch, h.Search)
	mux.HandleFunc("GET "+RouteExplain, h.Explain)
	mux.HandleFunc("GET "+RouteAudit, h.Audit)
	mux.HandleFunc("GET "+RouteCacheStats, h.CacheStats)
	mux.HandleFunc("POST "+RouteCacheInvalidate, h.CacheInvalidate)
}

// Routes lists the registered paths, for metric labels.
func Routes() []string {
	return []string{RouteSearch, RouteExplain, RouteAudit, RouteCacheStats, RouteCacheInvalidate}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := parser.ParsePeriodSum(r.URL.Query(), h.cfg.Parser)
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var result *executor.SearchResult
	cacheStatus := "disabled"
	if h.cache != nil {
		var hit bool
		result, hit, err = h.cache.GetOrCompute(ctx, req.Query, limit, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, req.Query, limit)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Execute(ctx, req.Query, limit)
	}
	if err != nil {
		log.Error("search execution failed", "query", req.Query.String(), "error", err)
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", req.Plan.RawQuery,
		"range", req.Range.String(),
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// Explain answers with the score tree of one document. format=text returns
// the indented plain-text rendering instead of JSON.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	docID := r.URL.Query().Get("id")
	if docID == "" {
		h.writeError(w, apperrors.New(apperrors.ErrSyntax, http.StatusBadRequest, "parameter 'id' is required"))
		return
	}
	req, err := parser.ParsePeriodSum(r.URL.Query(), h.cfg.Parser)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.executor.Explain(ctx, req.Query, docID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			log.Error("explain failed", "query", req.Query.String(), "doc_id", docID, "error", err)
		}
		h.writeError(w, err)
		return
	}

	if h.auditor != nil {
		entry := audit.NewEntry(middleware.GetRequestID(ctx), req.Range, res)
		if id, err := h.auditor.Record(ctx, entry); err != nil {
			log.Error("recording explanation failed", "doc_id", docID, "error", err)
		} else {
			log.Debug("explanation recorded", "audit_id", id)
		}
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, res.Explanation.String())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	if h.auditor == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "audit is disabled"))
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries, err := h.auditor.Recent(r.Context(), r.URL.Query().Get("id"), limit)
	if err != nil {
		h.logger.Error("listing audit entries failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// limit reads the limit parameter, clamped to MaxResults.
func (h *Handler) limit(r *http.Request) (int, error) {
	limit := h.cfg.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	if h.cfg.MaxResults > 0 && limit > h.cfg.MaxResults {
		limit = h.cfg.MaxResults
	}
	return limit, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError reports AppError messages to the client verbatim and hides
// the details of anything else.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
