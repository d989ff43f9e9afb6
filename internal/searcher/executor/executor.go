package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/periodsum"
	apperrors "github.com/Adithya-Monish-Kumar-K/interval-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
)

// SegmentSource hands out the segments a search runs over. The engine
// returns a fresh slice per call, so a search sees one consistent view.
type SegmentSource interface {
	Segments() []search.Segment
}

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

type SearchResult struct {
	Query     string      `json:"query"`
	TotalHits int         `json:"total_hits"`
	MaxScore  float64     `json:"max_score"`
	Results   []ScoredDoc `json:"results"`
}

type ExplainResult struct {
	DocID       string              `json:"doc_id"`
	Query       string              `json:"query"`
	Matched     bool                `json:"matched"`
	Score       float64             `json:"score"`
	Explanation *search.Explanation `json:"explanation"`
	// Intervals lists each stored interval's overlap when a period-sum
	// query matched.
	Intervals []interval.Contribution `json:"intervals,omitempty"`
}

type Executor struct {
	source  SegmentSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns an executor over source. m may be nil.
func New(source SegmentSource, m *metrics.Metrics) *Executor {
	return &Executor{
		source:  source,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, q search.Query, limit int) (*SearchResult, error) {
	start := time.Now()
	segs := e.source.Segments()
	searcher := search.NewSearcher(segs)
	td, err := searcher.Search(ctx, q, limit)
	if err != nil {
		e.recordQuery("error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("executing %s: %w: %w", q, apperrors.ErrTimeout, ctxErr)
		}
		return nil, fmt.Errorf("executing %s: %w", q, err)
	}

	results := make([]ScoredDoc, 0, len(td.ScoreDocs))
	for _, sd := range td.ScoreDocs {
		seg, local, err := searcher.Resolve(sd.Doc)
		if err != nil {
			return nil, fmt.Errorf("resolving hit %d: %w", sd.Doc, err)
		}
		results = append(results, ScoredDoc{
			DocID: seg.ExternalID(local),
			Score: round(sd.Score),
		})
	}

	if len(results) == 0 {
		e.recordQuery("zero_result")
	} else {
		e.recordQuery("hit")
	}
	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	e.logger.Info("query executed",
		"query", q.String(),
		"segments", len(segs),
		"total_hits", td.TotalHits,
		"results", len(results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return &SearchResult{
		Query:     q.String(),
		TotalHits: td.TotalHits,
		MaxScore:  round(td.MaxScore),
		Results:   results,
	}, nil
}

// Explain describes how q scores the document with external id docID.
// Ingestion is append-only, so if the id was indexed more than once the
// most recent copy is explained.
func (e *Executor) Explain(ctx context.Context, q search.Query, docID string) (*ExplainResult, error) {
	if err := ctx.Err(); err != nil {
		e.recordExplain("error")
		return nil, err
	}
	segs := e.source.Segments()
	searcher := search.NewSearcher(segs)
	global, local := -1, 0
	var seg search.Segment
	for i := len(segs) - 1; i >= 0; i-- {
		if l, ok := segs[i].LookupID(docID); ok {
			seg, local = segs[i], l
			global = searcher.DocBase(i) + l
			break
		}
	}
	if global < 0 {
		e.recordExplain("not_found")
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %q is not indexed", docID)
	}

	expl, err := searcher.Explain(q, global)
	if err != nil {
		e.recordExplain("error")
		return nil, fmt.Errorf("explaining %s for %q: %w", q, docID, err)
	}
	res := &ExplainResult{
		DocID:       docID,
		Query:       q.String(),
		Matched:     expl.Matched,
		Score:       expl.Value,
		Explanation: expl,
	}
	outcome := "unmatched"
	if expl.Matched {
		outcome = "matched"
		if pq, ok := q.(*periodsum.Query); ok {
			values, err := seg.SortedNumeric(pq.Field(), local)
			if err != nil {
				e.recordExplain("error")
				return nil, fmt.Errorf("reading %s of %q: %w", pq.Field(), docID, err)
			}
			_, res.Intervals = interval.ComputeSum(values, pq.Range())
		}
	}
	e.recordExplain(outcome)
	e.logger.Debug("explain executed", "query", q.String(), "doc_id", docID, "matched", expl.Matched, "score", expl.Value)
	return res, nil
}

func (e *Executor) recordQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (e *Executor) recordExplain(outcome string) {
	if e.metrics != nil {
		e.metrics.ExplainRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

func round(score float64) float64 {
	return math.Round(score*10000) / 10000
}
