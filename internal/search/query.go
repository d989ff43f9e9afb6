// Package search is the matcher framework queries run on. A Query is an
// immutable description that can be shared across goroutines; CreateWeight
// binds it to a Searcher's statistics, and the resulting Weight produces one
// Scorer per segment. Weights and scorers are not safe for concurrent use.
package search

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
)

// NoMoreDocs is returned by a Scorer once it is exhausted.
const NoMoreDocs = math.MaxInt32

// Query describes which documents match and how they score.
type Query interface {
	// Rewrite returns a simpler equivalent query, or the receiver itself
	// when nothing changes.
	Rewrite(s *Searcher) (Query, error)
	// ExtractTerms adds the terms the query matches on to terms.
	ExtractTerms(terms TermSet)
	CreateWeight(s *Searcher) (Weight, error)
	Boost() float64
	// WithBoost returns a copy carrying boost b.
	WithBoost(b float64) Query
	Equal(other Query) bool
	Hash() uint64
	String() string
}

// Weight is a query bound to searcher-wide statistics. Normalize must be
// called before Scorer or Explain.
type Weight interface {
	Query() Query
	ValueForNormalization() (float64, error)
	Normalize(norm, topLevelBoost float64)
	// Scorer returns nil, nil when no document of seg can match.
	Scorer(seg Segment) (Scorer, error)
	Explain(seg Segment, doc int) (*Explanation, error)
}

// Scorer iterates the matching documents of one segment in increasing doc
// order. DocID is -1 before the first call to NextDoc or Advance.
type Scorer interface {
	DocID() int
	NextDoc() int
	// Advance moves to the first document >= target.
	Advance(target int) int
	Score() (float64, error)
	Freq() int
	Cost() int64
	Children() []ChildScorer
}

// ChildScorer names a sub-scorer and its relation to its parent.
type ChildScorer struct {
	Scorer       Scorer
	Relationship string
}

// Term is a field-qualified, analysed token.
type Term struct {
	Field string
	Text  string
}

func (t Term) String() string {
	return t.Field + ":" + t.Text
}

// TermSet collects the distinct terms of a query tree.
type TermSet map[Term]struct{}

func (ts TermSet) Add(t Term) {
	ts[t] = struct{}{}
}

// Sorted returns the terms ordered by field, then text.
func (ts TermSet) Sorted() []Term {
	out := make([]Term, 0, len(ts))
	for t := range ts {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Term) int {
		return cmp.Or(strings.Compare(a.Field, b.Field), strings.Compare(a.Text, b.Text))
	})
	return out
}

// BoostString renders a boost suffix for String methods; a boost of 1 is
// omitted.
func BoostString(b float64) string {
	if b == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(b, 'g', -1, 64)
}
