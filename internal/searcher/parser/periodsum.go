package parser

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/periodsum"
	apperrors "github.com/Adithya-Monish-Kumar-K/interval-search/pkg/errors"
)

// Request parameter names.
const (
	ParamQuery         = "q"
	ParamIntervalStart = "interval_start"
	ParamIntervalEnd   = "interval_end"
	ParamDefaultField  = "df"
	ParamOperator      = "q.op"
)

type Config struct {
	DefaultField  string
	IntervalField string
}

// PeriodSumRequest is a parsed period-sum search: the plan for the inner
// query and the query that wraps it.
type PeriodSumRequest struct {
	Plan  *QueryPlan
	Range interval.Range
	Query *periodsum.Query
}

// ParsePeriodSum builds a period-sum query from request parameters. q,
// interval_start and interval_end are required; df overrides the default
// search field and q.op the default operator.
func ParsePeriodSum(values url.Values, cfg Config) (*PeriodSumRequest, error) {
	q := strings.TrimSpace(values.Get(ParamQuery))
	if q == "" {
		return nil, apperrors.New(apperrors.ErrSyntax, http.StatusBadRequest, "query parameter 'q' is required")
	}
	start, err := intParam(values, ParamIntervalStart)
	if err != nil {
		return nil, err
	}
	end, err := intParam(values, ParamIntervalEnd)
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"%s %d is after %s %d", ParamIntervalStart, start, ParamIntervalEnd, end)
	}

	field := cfg.DefaultField
	if df := values.Get(ParamDefaultField); df != "" {
		field = df
	}
	op := strings.ToUpper(values.Get(ParamOperator))
	if op != "" && op != "AND" && op != "OR" {
		return nil, apperrors.Newf(apperrors.ErrSyntax, http.StatusBadRequest,
			"%s must be AND or OR, got %q", ParamOperator, values.Get(ParamOperator))
	}
	if op != "" {
		q = op + " " + q
	}

	plan := Parse(q, field)
	plan.RawQuery = values.Get(ParamQuery)
	if plan.Empty() {
		return nil, apperrors.Newf(apperrors.ErrSyntax, http.StatusBadRequest,
			"query %q has no searchable terms", plan.RawQuery)
	}

	rng := interval.Range{Start: start, End: end}
	var opts []periodsum.Option
	if cfg.IntervalField != "" {
		opts = append(opts, periodsum.WithField(cfg.IntervalField))
	}
	query, err := periodsum.New(plan.Query(), rng, opts...)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err)
	}
	return &PeriodSumRequest{Plan: plan, Range: rng, Query: query}, nil
}

func intParam(values url.Values, name string) (int64, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, apperrors.Newf(apperrors.ErrSyntax, http.StatusBadRequest, "parameter '%s' is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrSyntax, http.StatusBadRequest, "parameter '%s' must be an integer, got %q", name, raw)
	}
	return v, nil
}
