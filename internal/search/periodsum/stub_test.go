package periodsum

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
)

// stubQuery matches a fixed doc list with fixed scores.
type stubQuery struct {
	name     string
	docs     []int
	scores   []float64
	scoreErr error
	boost    float64

	// Weights are created concurrently, one per segment goroutine.
	log *weightLog
}

type weightLog struct {
	mu      sync.Mutex
	weights []*stubWeight
}

func newStub(name string, docs ...int) *stubQuery {
	scores := make([]float64, len(docs))
	for i := range scores {
		scores[i] = float64(100 + i)
	}
	return &stubQuery{name: name, docs: docs, scores: scores, boost: 1, log: &weightLog{}}
}

func (q *stubQuery) Rewrite(*search.Searcher) (search.Query, error) { return q, nil }
func (q *stubQuery) ExtractTerms(terms search.TermSet) {
	terms.Add(search.Term{Field: "stub", Text: q.name})
}
func (q *stubQuery) Boost() float64 { return q.boost }
func (q *stubQuery) WithBoost(b float64) search.Query {
	c := *q
	c.boost = b
	return &c
}
func (q *stubQuery) Equal(other search.Query) bool {
	o, ok := other.(*stubQuery)
	return ok && o.name == q.name && o.boost == q.boost
}
func (q *stubQuery) Hash() uint64   { return search.NewHasher("stub").String(q.name).Float64(q.boost).Sum() }
func (q *stubQuery) String() string { return "stub:" + q.name }

func (q *stubQuery) CreateWeight(*search.Searcher) (search.Weight, error) {
	w := &stubWeight{query: q, normArgs: [2]float64{-1, -1}}
	q.log.mu.Lock()
	q.log.weights = append(q.log.weights, w)
	q.log.mu.Unlock()
	return w, nil
}

func (q *stubQuery) weights() []*stubWeight {
	q.log.mu.Lock()
	defer q.log.mu.Unlock()
	return append([]*stubWeight(nil), q.log.weights...)
}

type stubWeight struct {
	query    *stubQuery
	normArgs [2]float64
	scorers  []*stubScorer
}

func (w *stubWeight) Query() search.Query                     { return w.query }
func (w *stubWeight) ValueForNormalization() (float64, error) { return 4, nil }
func (w *stubWeight) Normalize(norm, topLevelBoost float64)   { w.normArgs = [2]float64{norm, topLevelBoost} }

func (w *stubWeight) Scorer(search.Segment) (search.Scorer, error) {
	if len(w.query.docs) == 0 {
		return nil, nil
	}
	s := &stubScorer{q: w.query, pos: -1}
	w.scorers = append(w.scorers, s)
	return s, nil
}

func (w *stubWeight) Explain(_ search.Segment, doc int) (*search.Explanation, error) {
	for i, d := range w.query.docs {
		if d == doc {
			return search.Match(w.query.scores[i], "stub match"), nil
		}
	}
	return search.NoMatch("stub no match"), nil
}

type stubScorer struct {
	q          *stubQuery
	pos        int
	scoreCalls int
}

func (s *stubScorer) DocID() int {
	switch {
	case s.pos < 0:
		return -1
	case s.pos >= len(s.q.docs):
		return search.NoMoreDocs
	}
	return s.q.docs[s.pos]
}

func (s *stubScorer) NextDoc() int {
	if s.pos < len(s.q.docs) {
		s.pos++
	}
	return s.DocID()
}

func (s *stubScorer) Advance(target int) int {
	for s.NextDoc() < target {
	}
	return s.DocID()
}

func (s *stubScorer) Score() (float64, error) {
	s.scoreCalls++
	if s.q.scoreErr != nil {
		return 0, s.q.scoreErr
	}
	return s.q.scores[s.pos], nil
}

func (s *stubScorer) Freq() int                      { return 7 }
func (s *stubScorer) Cost() int64                    { return int64(len(s.q.docs)) }
func (s *stubScorer) Children() []search.ChildScorer { return nil }

// intervalSegment builds a segment whose doc i carries intervals[i], each
// given as (period, offset) pairs.
func intervalSegment(t testing.TB, intervals ...[][2]int64) search.Segment {
	t.Helper()
	mi := index.NewMemoryIndex()
	for i, pairs := range intervals {
		doc := index.Document{ID: fmt.Sprintf("doc-%d", i), Fields: map[string]string{"text": "period"}}
		for _, p := range pairs {
			require.NoError(t, doc.AddInterval(DefaultField, p[0], p[1]))
		}
		require.NoError(t, mi.AddDocument(doc))
	}
	return mi.Snapshot()
}

// demoSegment holds the three documents of the walkthrough: (10,5);
// (10,5)+(15,12); (1000,500).
func demoSegment(t testing.TB) search.Segment {
	return intervalSegment(t,
		[][2]int64{{10, 5}},
		[][2]int64{{10, 5}, {15, 12}},
		[][2]int64{{1000, 500}},
	)
}
