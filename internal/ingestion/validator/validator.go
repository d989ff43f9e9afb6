// Package validator checks ingestion requests before they are published,
// reporting every failing field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
)

const (
	maxIDLength     = 255
	maxFieldLength  = 1048576
	maxFields       = 64
	maxIntervals    = 4096
	maxFieldNameLen = 128
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(req.ID)
	switch {
	case id == "":
		errs["id"] = "id is required"
	case id != req.ID:
		errs["id"] = "id must not have leading or trailing whitespace"
	case len(id) > maxIDLength:
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}

	if len(req.Fields) == 0 && len(req.Intervals) == 0 {
		errs["fields"] = "at least one text field or interval is required"
	}
	if len(req.Fields) > maxFields {
		errs["fields"] = fmt.Sprintf("at most %d fields are allowed", maxFields)
	}
	for name, text := range req.Fields {
		key := "fields." + name
		switch {
		case name == "" || len(name) > maxFieldNameLen || strings.ContainsAny(name, ": \t"):
			errs[key] = "field names must be 1-128 characters without spaces or colons"
		case len(text) > maxFieldLength:
			errs[key] = fmt.Sprintf("field must be at most %d bytes", maxFieldLength)
		}
	}

	if len(req.Intervals) > maxIntervals {
		errs["intervals"] = fmt.Sprintf("at most %d intervals are allowed", maxIntervals)
	}
	for i, iv := range req.Intervals {
		if _, err := interval.Encode(iv.Period, iv.Offset); err != nil {
			errs[fmt.Sprintf("intervals[%d]", i)] = fmt.Sprintf(
				"period must be >= 0 and offset in [0, %d), got period=%d offset=%d",
				interval.PeriodWidth, iv.Period, iv.Offset)
		}
	}
	if req.IntervalField != "" {
		if _, clash := req.Fields[req.IntervalField]; clash {
			errs["interval_field"] = "interval field must not also be a text field"
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
