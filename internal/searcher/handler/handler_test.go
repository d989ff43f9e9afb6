package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/interval-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/middleware"
)

type fakeExecutor struct {
	mu        sync.Mutex
	queries   []string
	limits    []int
	err       error
	explained *executor.ExplainResult
}

func (f *fakeExecutor) Execute(_ context.Context, q search.Query, limit int) (*executor.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q.String())
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return &executor.SearchResult{
		Query:     q.String(),
		TotalHits: 1,
		MaxScore:  6,
		Results:   []executor.ScoredDoc{{DocID: "second", Score: 6}},
	}, nil
}

func (f *fakeExecutor) Explain(_ context.Context, q search.Query, docID string) (*executor.ExplainResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q.String())
	if f.err != nil {
		return nil, f.err
	}
	if f.explained != nil {
		return f.explained, nil
	}
	return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %q not found", docID)
}

type fakeAuditor struct {
	entries []audit.Entry
	err     error
}

func (f *fakeAuditor) Record(_ context.Context, e audit.Entry) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

func (f *fakeAuditor) Recent(_ context.Context, docID string, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if docID == "" || f.entries[i].DocID == docID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

var testConfig = Config{
	Parser:       parser.Config{DefaultField: "text"},
	DefaultLimit: 10,
	MaxResults:   50,
}

func serve(t *testing.T, h *Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSearch(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(exec, nil, nil, testConfig, metrics.New(prometheus.NewRegistry()))

	rec := serve(t, h, http.MethodGet, "/api/v1/search?q=contract&interval_start=0&interval_end=13")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.TotalHits)
	assert.Equal(t, "period_sum(+text:contract, intervals:[0 TO 13])", res.Query)
	assert.Equal(t, []int{10}, exec.limits)
}

func TestSearchLimit(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(exec, nil, nil, testConfig, nil)

	rec := serve(t, h, http.MethodGet, "/api/v1/search?q=contract&interval_start=0&interval_end=13&limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(t, h, http.MethodGet, "/api/v1/search?q=contract&interval_start=0&interval_end=13&limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{50, 3}, exec.limits)

	rec = serve(t, h, http.MethodGet, "/api/v1/search?q=contract&interval_start=0&interval_end=13&limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchBadRequests(t *testing.T) {
	h := New(&fakeExecutor{}, nil, nil, testConfig, nil)
	tests := []struct {
		name   string
		target string
	}{
		{"missing query", "/api/v1/search?interval_start=0&interval_end=13"},
		{"missing start", "/api/v1/search?q=contract&interval_end=13"},
		{"non numeric end", "/api/v1/search?q=contract&interval_start=0&interval_end=x"},
		{"inverted range", "/api/v1/search?q=contract&interval_start=20&interval_end=13"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestSearchExecutorError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("segment unreadable")}
	h := New(exec, nil, nil, testConfig, nil)
	rec := serve(t, h, http.MethodGet, "/api/v1/search?q=contract&interval_start=0&interval_end=13")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decode(t, rec)["error"])
}

func TestSearchCached(t *testing.T) {
	exec := &fakeExecutor{}
	qc := cache.New(&memStore{data: map[string][]byte{}}, time.Minute, nil)
	h := New(exec, qc, nil, testConfig, metrics.New(prometheus.NewRegistry()))

	target := "/api/v1/search?q=contract&interval_start=0&interval_end=13"
	for range 3 {
		rec := serve(t, h, http.MethodGet, target)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, exec.queries, 1)

	rec := serve(t, h, http.MethodGet, "/api/v1/cache/stats")
	body := decode(t, rec)
	assert.Equal(t, 2.0, body["hits"])
	assert.Equal(t, 1.0, body["misses"])

	rec = serve(t, h, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["keys_deleted"])

	serve(t, h, http.MethodGet, target)
	assert.Len(t, exec.queries, 2)
}

func TestCacheDisabled(t *testing.T) {
	h := New(&fakeExecutor{}, nil, nil, testConfig, nil)
	rec := serve(t, h, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, "disabled", decode(t, rec)["status"])

	rec = serve(t, h, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func explained() *executor.ExplainResult {
	return &executor.ExplainResult{
		DocID:   "second",
		Query:   "period_sum(text:contract, intervals:[0 TO 13])",
		Matched: true,
		Score:   6,
		Explanation: search.Match(6, "period_sum, product of:",
			search.Match(6, "score sum of:"),
			search.Match(1, "queryBoost"),
		),
	}
}

func TestExplain(t *testing.T) {
	exec := &fakeExecutor{explained: explained()}
	auditor := &fakeAuditor{}
	h := New(exec, nil, auditor, testConfig, nil)

	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/explain?q=contract&interval_start=0&interval_end=13&id=second", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	middleware.RequestID(mux).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res executor.ExplainResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Matched)
	assert.Equal(t, 6.0, res.Explanation.Value)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "req-42", auditor.entries[0].RequestID)
	assert.Equal(t, int64(13), auditor.entries[0].Range.End)

	rec = serve(t, h, http.MethodGet, "/api/v1/audit?id=second")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode(t, rec)["entries"].([]any)
	assert.Len(t, entries, 1)
}

func TestExplainText(t *testing.T) {
	h := New(&fakeExecutor{explained: explained()}, nil, nil, testConfig, nil)
	rec := serve(t, h, http.MethodGet, "/api/v1/explain?q=contract&interval_start=0&interval_end=13&id=second&format=text")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "6 = period_sum, product of:\n  6 = score sum of:\n  1 = queryBoost\n", rec.Body.String())
}

func TestExplainErrors(t *testing.T) {
	h := New(&fakeExecutor{}, nil, nil, testConfig, nil)

	rec := serve(t, h, http.MethodGet, "/api/v1/explain?q=contract&interval_start=0&interval_end=13")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/v1/explain?q=contract&interval_start=0&interval_end=13&id=missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `document "missing" not found`, decode(t, rec)["error"])
}

func TestExplainAuditFailureStillAnswers(t *testing.T) {
	h := New(&fakeExecutor{explained: explained()}, nil, &fakeAuditor{err: errors.New("db down")}, testConfig, nil)
	rec := serve(t, h, http.MethodGet, "/api/v1/explain?q=contract&interval_start=0&interval_end=13&id=second")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditDisabled(t *testing.T) {
	h := New(&fakeExecutor{}, nil, nil, testConfig, nil)
	rec := serve(t, h, http.MethodGet, "/api/v1/audit")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(&fakeExecutor{}, nil, nil, testConfig, nil)
	rec := serve(t, h, http.MethodPost, "/api/v1/search?q=contract&interval_start=0&interval_end=13")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
