package search

import "fmt"

// MatchAllQuery matches every document with a constant score.
type MatchAllQuery struct {
	boost float64
}

func NewMatchAllQuery() *MatchAllQuery {
	return &MatchAllQuery{boost: 1}
}

func (q *MatchAllQuery) Boost() float64 { return q.boost }

func (q *MatchAllQuery) WithBoost(b float64) Query {
	return &MatchAllQuery{boost: b}
}

func (q *MatchAllQuery) Rewrite(*Searcher) (Query, error) { return q, nil }

func (q *MatchAllQuery) ExtractTerms(TermSet) {}

func (q *MatchAllQuery) Equal(other Query) bool {
	o, ok := other.(*MatchAllQuery)
	return ok && o.boost == q.boost
}

func (q *MatchAllQuery) Hash() uint64 {
	return NewHasher("match_all").Float64(q.boost).Sum()
}

func (q *MatchAllQuery) String() string {
	return "*:*" + BoostString(q.boost)
}

func (q *MatchAllQuery) CreateWeight(*Searcher) (Weight, error) {
	return &constantWeight{query: q, queryWeight: q.boost, queryNorm: 1}, nil
}

type constantWeight struct {
	query       *MatchAllQuery
	queryWeight float64
	queryNorm   float64
}

func (w *constantWeight) Query() Query { return w.query }

func (w *constantWeight) ValueForNormalization() (float64, error) {
	return w.queryWeight * w.queryWeight, nil
}

func (w *constantWeight) Normalize(norm, topLevelBoost float64) {
	w.queryNorm = norm * topLevelBoost
	w.queryWeight = w.query.boost * w.queryNorm
}

func (w *constantWeight) Scorer(seg Segment) (Scorer, error) {
	if seg.MaxDoc() == 0 {
		return nil, nil
	}
	return &allScorer{maxDoc: seg.MaxDoc(), score: w.queryWeight, doc: -1}, nil
}

func (w *constantWeight) Explain(seg Segment, doc int) (*Explanation, error) {
	if doc < 0 || doc >= seg.MaxDoc() {
		return NoMatch(fmt.Sprintf("doc %d out of range", doc)), nil
	}
	return Match(w.queryWeight, fmt.Sprintf("%s, product of:", w.query),
		Match(w.query.boost, "boost"),
		Match(w.queryNorm, "queryNorm"),
	), nil
}

type allScorer struct {
	maxDoc int
	score  float64
	doc    int
}

func (s *allScorer) DocID() int { return s.doc }

func (s *allScorer) NextDoc() int {
	return s.Advance(s.doc + 1)
}

func (s *allScorer) Advance(target int) int {
	if target >= s.maxDoc {
		s.doc = NoMoreDocs
	} else {
		s.doc = max(target, 0)
	}
	return s.doc
}

func (s *allScorer) Score() (float64, error) { return s.score, nil }
func (s *allScorer) Freq() int               { return 1 }
func (s *allScorer) Cost() int64             { return int64(s.maxDoc) }
func (s *allScorer) Children() []ChildScorer { return nil }
