// Package periodsum re-scores the matches of any query by how much of a
// requested range the documents' stored intervals cover.
//
// The query decorates an inner query: the inner query decides which
// documents match and in what order, and each match's score is replaced by
// the sum of the overlaps between its intervals and the range, multiplied
// by the query's boost.
package periodsum

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
)

// DefaultField is the numeric field intervals are read from unless
// WithField says otherwise.
const DefaultField = "intervals"

var ErrNilSubQuery = errors.New("periodsum: sub query is required")

// Query is immutable once built and may be shared across searches.
type Query struct {
	sub   search.Query
	rng   interval.Range
	field string
	boost float64
}

type Option func(*Query)

// WithField reads intervals from field instead of DefaultField.
func WithField(field string) Option {
	return func(q *Query) {
		q.field = field
	}
}

func New(sub search.Query, r interval.Range, opts ...Option) (*Query, error) {
	if sub == nil {
		return nil, ErrNilSubQuery
	}
	q := &Query{sub: sub, rng: r, field: DefaultField, boost: 1}
	for _, opt := range opts {
		opt(q)
	}
	if q.field == "" {
		return nil, fmt.Errorf("periodsum: interval field must not be empty")
	}
	return q, nil
}

func (q *Query) SubQuery() search.Query {
	return q.sub
}

func (q *Query) Range() interval.Range {
	return q.rng
}

func (q *Query) Field() string {
	return q.field
}

func (q *Query) Boost() float64 {
	return q.boost
}

func (q *Query) WithBoost(b float64) search.Query {
	c := *q
	c.boost = b
	return &c
}

// Rewrite rewrites the sub query and returns a copy only when it changed.
func (q *Query) Rewrite(s *search.Searcher) (search.Query, error) {
	sub, err := q.sub.Rewrite(s)
	if err != nil {
		return nil, err
	}
	if sub == q.sub {
		return q, nil
	}
	c := *q
	c.sub = sub
	return &c, nil
}

func (q *Query) ExtractTerms(terms search.TermSet) {
	q.sub.ExtractTerms(terms)
}

// Equal compares boost, range, field and sub query. Queries over different
// ranges are different queries.
func (q *Query) Equal(other search.Query) bool {
	o, ok := other.(*Query)
	if !ok {
		return false
	}
	return o.boost == q.boost &&
		o.rng == q.rng &&
		o.field == q.field &&
		q.sub.Equal(o.sub)
}

func (q *Query) Hash() uint64 {
	return search.NewHasher("period_sum").
		Float64(q.boost).
		Int64(q.rng.Start).
		Int64(q.rng.End).
		String(q.field).
		Uint64(q.sub.Hash()).
		Sum()
}

func (q *Query) String() string {
	return fmt.Sprintf("period_sum(%s, %s:%s)%s", q.sub, q.field, q.rng, search.BoostString(q.boost))
}

func (q *Query) CreateWeight(s *search.Searcher) (search.Weight, error) {
	inner, err := q.sub.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	return &weight{query: q, inner: inner, queryWeight: q.boost}, nil
}
