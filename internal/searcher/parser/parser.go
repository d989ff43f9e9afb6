// Package parser turns request text into queries: a small boolean syntax for
// the matching part, and the interval parameters that wrap it in a
// period-sum query.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

type QueryPlan struct {
	Terms        []search.Term
	Type         QueryType
	ExcludeTerms []search.Term
	MatchAll     bool
	RawQuery     string
}

// Parse reads whitespace separated words. AND and OR switch the combining
// mode for the whole query, NOT excludes the next word, and field:word
// targets a field other than defaultField. "*" and "*:*" match every
// document.
func Parse(query, defaultField string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]search.Term, 0),
		ExcludeTerms: make([]search.Term, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	words := strings.Fields(query)
	excludeNext := false
	for _, word := range words {
		switch strings.ToUpper(word) {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		case "*", "*:*":
			plan.MatchAll = true
			continue
		}
		field, text := defaultField, word
		if i := strings.IndexByte(word, ':'); i > 0 && i < len(word)-1 {
			field, text = word[:i], word[i+1:]
		}
		analysed, ok := tokenizer.Term(text)
		if !ok {
			excludeNext = false
			continue
		}
		term := search.Term{Field: field, Text: analysed}
		if excludeNext {
			plan.ExcludeTerms = append(plan.ExcludeTerms, term)
			excludeNext = false
		} else {
			plan.Terms = append(plan.Terms, term)
		}
	}
	return plan
}

// Empty reports whether no word of the query survived analysis.
func (p *QueryPlan) Empty() bool {
	return !p.MatchAll && len(p.Terms) == 0 && len(p.ExcludeTerms) == 0
}

// Query builds the boolean query for the plan. A plan with only exclusions
// matches every document not excluded.
func (p *QueryPlan) Query() search.Query {
	occur := search.Must
	if p.Type == QueryOR {
		occur = search.Should
	}
	clauses := make([]search.Clause, 0, len(p.Terms)+len(p.ExcludeTerms)+1)
	if p.MatchAll || (len(p.Terms) == 0 && len(p.ExcludeTerms) > 0) {
		clauses = append(clauses, search.Clause{Query: search.NewMatchAllQuery(), Occur: search.Must})
	}
	for _, t := range p.Terms {
		clauses = append(clauses, search.Clause{Query: search.NewTermQuery(t.Field, t.Text), Occur: occur})
	}
	for _, t := range p.ExcludeTerms {
		clauses = append(clauses, search.Clause{Query: search.NewTermQuery(t.Field, t.Text), Occur: search.MustNot})
	}
	return search.NewBooleanQuery(clauses...)
}
