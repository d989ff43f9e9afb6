package search

import (
	"fmt"
	"strings"
)

// Occur says how a clause takes part in a BooleanQuery.
type Occur int

const (
	Must Occur = iota
	Should
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

type Clause struct {
	Query Query
	Occur Occur
}

// BooleanQuery combines clauses. A document matches when it matches every
// Must clause, no MustNot clause, and (absent Must clauses) at least one
// Should clause. Its score is the sum of the matching clauses' scores.
type BooleanQuery struct {
	clauses []Clause
	boost   float64
}

func NewBooleanQuery(clauses ...Clause) *BooleanQuery {
	return &BooleanQuery{clauses: append([]Clause(nil), clauses...), boost: 1}
}

// Clauses returns a copy of the clause list.
func (q *BooleanQuery) Clauses() []Clause {
	return append([]Clause(nil), q.clauses...)
}

func (q *BooleanQuery) Boost() float64 {
	return q.boost
}

func (q *BooleanQuery) WithBoost(b float64) Query {
	c := *q
	c.boost = b
	return &c
}

// Rewrite collapses a lone non-excluding clause into the clause itself and
// otherwise rewrites each clause, copying the query only if one changed.
func (q *BooleanQuery) Rewrite(s *Searcher) (Query, error) {
	if len(q.clauses) == 1 && q.clauses[0].Occur != MustNot {
		inner, err := q.clauses[0].Query.Rewrite(s)
		if err != nil {
			return nil, err
		}
		return inner.WithBoost(inner.Boost() * q.boost), nil
	}
	var clone *BooleanQuery
	for i, c := range q.clauses {
		rewritten, err := c.Query.Rewrite(s)
		if err != nil {
			return nil, err
		}
		if rewritten != c.Query {
			if clone == nil {
				clone = &BooleanQuery{clauses: q.Clauses(), boost: q.boost}
			}
			clone.clauses[i].Query = rewritten
		}
	}
	if clone != nil {
		return clone, nil
	}
	return q, nil
}

func (q *BooleanQuery) ExtractTerms(terms TermSet) {
	for _, c := range q.clauses {
		if c.Occur != MustNot {
			c.Query.ExtractTerms(terms)
		}
	}
}

func (q *BooleanQuery) Equal(other Query) bool {
	o, ok := other.(*BooleanQuery)
	if !ok || o.boost != q.boost || len(o.clauses) != len(q.clauses) {
		return false
	}
	for i, c := range q.clauses {
		if c.Occur != o.clauses[i].Occur || !c.Query.Equal(o.clauses[i].Query) {
			return false
		}
	}
	return true
}

func (q *BooleanQuery) Hash() uint64 {
	h := NewHasher("bool").Float64(q.boost)
	for _, c := range q.clauses {
		h.Int64(int64(c.Occur)).Uint64(c.Query.Hash())
	}
	return h.Sum()
}

func (q *BooleanQuery) String() string {
	parts := make([]string, len(q.clauses))
	for i, c := range q.clauses {
		s := c.Query.String()
		if _, nested := c.Query.(*BooleanQuery); nested {
			s = "(" + s + ")"
		}
		parts[i] = c.Occur.String() + s
	}
	joined := strings.Join(parts, " ")
	if q.boost != 1 {
		return "(" + joined + ")" + BoostString(q.boost)
	}
	return joined
}

func (q *BooleanQuery) CreateWeight(s *Searcher) (Weight, error) {
	weights := make([]Weight, len(q.clauses))
	for i, c := range q.clauses {
		w, err := c.Query.CreateWeight(s)
		if err != nil {
			return nil, err
		}
		weights[i] = w
	}
	return &booleanWeight{query: q, weights: weights}, nil
}

type booleanWeight struct {
	query   *BooleanQuery
	weights []Weight
}

func (w *booleanWeight) Query() Query {
	return w.query
}

func (w *booleanWeight) ValueForNormalization() (float64, error) {
	var sum float64
	for i, sub := range w.weights {
		if w.query.clauses[i].Occur == MustNot {
			continue
		}
		v, err := sub.ValueForNormalization()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum * w.query.boost * w.query.boost, nil
}

func (w *booleanWeight) Normalize(norm, topLevelBoost float64) {
	topLevelBoost *= w.query.boost
	for _, sub := range w.weights {
		sub.Normalize(norm, topLevelBoost)
	}
}

func (w *booleanWeight) Scorer(seg Segment) (Scorer, error) {
	var required, optional, prohibited []Scorer
	for i, sub := range w.weights {
		sc, err := sub.Scorer(seg)
		if err != nil {
			return nil, err
		}
		switch w.query.clauses[i].Occur {
		case Must:
			if sc == nil {
				return nil, nil
			}
			required = append(required, sc)
		case Should:
			if sc != nil {
				optional = append(optional, sc)
			}
		case MustNot:
			if sc != nil {
				prohibited = append(prohibited, sc)
			}
		}
	}
	if len(required) == 0 && len(optional) == 0 {
		return nil, nil
	}

	var main Scorer
	switch {
	case len(required) == 0:
		main = disjunction(optional)
	case len(optional) == 0:
		main = conjunction(required)
	default:
		main = &reqOptScorer{req: conjunction(required), opt: disjunction(optional)}
	}
	if len(prohibited) > 0 {
		main = &reqExclScorer{req: main, excl: disjunction(prohibited)}
	}
	return main, nil
}

func (w *booleanWeight) Explain(seg Segment, doc int) (*Explanation, error) {
	var (
		sum     float64
		details []*Explanation
	)
	for i, sub := range w.weights {
		c := w.query.clauses[i]
		e, err := sub.Explain(seg, doc)
		if err != nil {
			return nil, err
		}
		switch {
		case c.Occur == MustNot && e.Matched:
			return NoMatch(fmt.Sprintf("match on prohibited clause (%s)", c.Query), e), nil
		case c.Occur == Must && !e.Matched:
			return NoMatch(fmt.Sprintf("no match on required clause (%s)", c.Query), e), nil
		case c.Occur != MustNot && e.Matched:
			sum += e.Value
			details = append(details, e)
		}
	}
	if len(details) == 0 {
		return NoMatch("no matching clause"), nil
	}
	return Match(sum, "sum of:", details...), nil
}
