package periodsum

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
)

// weight is bound to one search. It must not be shared between goroutines.
type weight struct {
	query       *Query
	inner       search.Weight
	queryWeight float64
}

func (w *weight) Query() search.Query {
	return w.query
}

func (w *weight) ValueForNormalization() (float64, error) {
	return w.inner.ValueForNormalization()
}

// Normalize hands the norm to the inner weight with a neutral top-level
// boost. The boosts are applied to the interval score in Score instead;
// the inner score never reaches the result.
func (w *weight) Normalize(norm, topLevelBoost float64) {
	w.inner.Normalize(norm, 1)
	w.queryWeight = topLevelBoost * w.query.boost
}

func (w *weight) Scorer(seg search.Segment) (search.Scorer, error) {
	inner, err := w.inner.Scorer(seg)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, nil
	}
	return &scorer{
		inner:       inner,
		provider:    newProvider(seg, w.query.field, w.query.rng),
		queryWeight: w.queryWeight,
	}, nil
}

// Explain returns the inner explanation unchanged when the inner query does
// not match doc.
func (w *weight) Explain(seg search.Segment, doc int) (*search.Explanation, error) {
	innerExpl, err := w.inner.Explain(seg, doc)
	if err != nil {
		return nil, err
	}
	if !innerExpl.Matched {
		return innerExpl, nil
	}
	custom, err := newProvider(seg, w.query.field, w.query.rng).Explain(doc)
	if err != nil {
		return nil, err
	}
	boost := w.query.boost
	return search.Match(boost*custom.Value, fmt.Sprintf("%s, product of:", w.query),
		custom,
		search.Match(boost, "queryBoost"),
	), nil
}
