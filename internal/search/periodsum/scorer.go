package periodsum

import "github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"

// scorer visits exactly the inner scorer's documents and replaces their
// scores with queryWeight times the interval overlap sum.
type scorer struct {
	inner       search.Scorer
	provider    *provider
	queryWeight float64
}

func (s *scorer) DocID() int {
	return s.inner.DocID()
}

func (s *scorer) NextDoc() int {
	return s.inner.NextDoc()
}

func (s *scorer) Advance(target int) int {
	return s.inner.Advance(target)
}

// Score still asks the inner scorer for its score so its errors surface,
// then discards the value.
func (s *scorer) Score() (float64, error) {
	if _, err := s.inner.Score(); err != nil {
		return 0, err
	}
	sum, err := s.provider.Score(s.inner.DocID())
	if err != nil {
		return 0, err
	}
	return s.queryWeight * sum, nil
}

func (s *scorer) Freq() int {
	return s.inner.Freq()
}

func (s *scorer) Cost() int64 {
	return s.inner.Cost()
}

func (s *scorer) Children() []search.ChildScorer {
	return []search.ChildScorer{{Scorer: s.inner, Relationship: "CUSTOM"}}
}
