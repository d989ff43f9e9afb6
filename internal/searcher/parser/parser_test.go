package parser

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
	apperrors "github.com/Adithya-Monish-Kumar-K/interval-search/pkg/errors"
)

func term(text string) search.Term {
	return search.Term{Field: "text", Text: text}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		terms    []search.Term
		excludes []search.Term
		typ      QueryType
		matchAll bool
	}{
		{name: "single", query: "contract", terms: []search.Term{term("contract")}},
		{name: "analysed", query: "Contracts", terms: []search.Term{term("contract")}},
		{name: "implicit and", query: "lease rental", terms: []search.Term{term("lease"), term("rental")}},
		{name: "or", query: "lease OR rental", terms: []search.Term{term("lease"), term("rental")}, typ: QueryOR},
		{name: "not", query: "lease NOT rental", terms: []search.Term{term("lease")}, excludes: []search.Term{term("rental")}},
		{name: "stop words dropped", query: "the lease", terms: []search.Term{term("lease")}},
		{name: "fielded", query: "title:lease", terms: []search.Term{{Field: "title", Text: "lease"}}},
		{name: "trailing colon is not a field", query: "lease:", terms: []search.Term{term("lease")}},
		{name: "match all", query: "*:*", matchAll: true},
		{name: "star", query: "*", matchAll: true},
		{name: "blank", query: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query, "text")
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, tt.typ, plan.Type)
			assert.Equal(t, tt.matchAll, plan.MatchAll)
			if tt.terms == nil {
				assert.Empty(t, plan.Terms)
			} else {
				assert.Equal(t, tt.terms, plan.Terms)
			}
			if tt.excludes == nil {
				assert.Empty(t, plan.ExcludeTerms)
			} else {
				assert.Equal(t, tt.excludes, plan.ExcludeTerms)
			}
		})
	}
}

func TestNotBeforeDroppedWordDoesNotLeak(t *testing.T) {
	plan := Parse("NOT the lease", "text")
	assert.Equal(t, []search.Term{term("lease")}, plan.Terms)
	assert.Empty(t, plan.ExcludeTerms)
}

func TestPlanQuery(t *testing.T) {
	single := Parse("lease", "text").Query()
	assert.Equal(t, "+text:lease", single.String())

	or := Parse("lease OR rental", "text").Query()
	assert.Equal(t, "text:lease text:rental", or.String())

	not := Parse("lease NOT rental", "text").Query()
	assert.Equal(t, "+text:lease -text:rental", not.String())

	onlyNot := Parse("NOT rental", "text").Query()
	assert.Equal(t, "+*:* -text:rental", onlyNot.String())

	assert.True(t, Parse("the", "text").Empty())
	assert.False(t, Parse("NOT rental", "text").Empty())
}

func TestPlanQuerySingleClauseRewritesToTerm(t *testing.T) {
	s := search.NewSearcher(nil)
	rewritten, err := s.Rewrite(Parse("lease", "text").Query())
	require.NoError(t, err)
	assert.True(t, rewritten.Equal(search.NewTermQuery("text", "lease")))
}

func values(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestParsePeriodSum(t *testing.T) {
	cfg := Config{DefaultField: "text", IntervalField: "spans"}
	req, err := ParsePeriodSum(values("q", "lease", "interval_start", "10", "interval_end", "600"), cfg)
	require.NoError(t, err)

	assert.Equal(t, interval.Range{Start: 10, End: 600}, req.Range)
	assert.Equal(t, "lease", req.Plan.RawQuery)
	assert.Equal(t, "spans", req.Query.Field())
	assert.Equal(t, interval.Range{Start: 10, End: 600}, req.Query.Range())
	assert.Equal(t, "period_sum(+text:lease, spans:[10 TO 600])", req.Query.String())
}

func TestParsePeriodSumOverrides(t *testing.T) {
	req, err := ParsePeriodSum(values(
		"q", "lease rental", "interval_start", "-5", "interval_end", "5",
		"df", "title", "q.op", "or",
	), Config{DefaultField: "text"})
	require.NoError(t, err)
	assert.Equal(t, QueryOR, req.Plan.Type)
	assert.Equal(t, []search.Term{{Field: "title", Text: "lease"}, {Field: "title", Text: "rental"}}, req.Plan.Terms)
	assert.Equal(t, "lease rental", req.Plan.RawQuery)
	assert.Equal(t, "intervals", req.Query.Field())
}

func TestParsePeriodSumErrors(t *testing.T) {
	cfg := Config{DefaultField: "text"}
	tests := []struct {
		name     string
		params   url.Values
		sentinel error
	}{
		{"missing q", values("interval_start", "1", "interval_end", "2"), apperrors.ErrSyntax},
		{"missing start", values("q", "lease", "interval_end", "2"), apperrors.ErrSyntax},
		{"missing end", values("q", "lease", "interval_start", "1"), apperrors.ErrSyntax},
		{"non integer", values("q", "lease", "interval_start", "x", "interval_end", "2"), apperrors.ErrSyntax},
		{"float", values("q", "lease", "interval_start", "1.5", "interval_end", "2"), apperrors.ErrSyntax},
		{"bad operator", values("q", "lease", "interval_start", "1", "interval_end", "2", "q.op", "xor"), apperrors.ErrSyntax},
		{"only stop words", values("q", "the", "interval_start", "1", "interval_end", "2"), apperrors.ErrSyntax},
		{"inverted range", values("q", "lease", "interval_start", "9", "interval_end", "2"), apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePeriodSum(tt.params, cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))
		})
	}
}

func BenchmarkParsePeriodSum(b *testing.B) {
	values := url.Values{
		"q":              {"lease AND rental NOT invoice"},
		"interval_start": {"10"},
		"interval_end":   {"600"},
	}
	cfg := Config{DefaultField: "text"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParsePeriodSum(values, cfg); err != nil {
			b.Fatal(err)
		}
	}
}
