package index

import (
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
)

// Document is the unit of ingestion. Fields are analysed text; Numeric
// holds multi-valued numeric fields such as packed interval keys.
type Document struct {
	ID      string             `json:"id"`
	Fields  map[string]string  `json:"fields,omitempty"`
	Numeric map[string][]int64 `json:"numeric,omitempty"`
}

// Validate checks the document can be indexed.
func (d Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if len(d.Fields) == 0 && len(d.Numeric) == 0 {
		return fmt.Errorf("document %q has no fields", d.ID)
	}
	return nil
}

// AddInterval encodes (period, offset) and appends it to the numeric field.
func (d *Document) AddInterval(field string, period, offset int64) error {
	key, err := interval.Encode(period, offset)
	if err != nil {
		return fmt.Errorf("document %q field %s: %w", d.ID, field, err)
	}
	if d.Numeric == nil {
		d.Numeric = make(map[string][]int64)
	}
	d.Numeric[field] = append(d.Numeric[field], int64(key))
	return nil
}

// sortedSet returns a sorted, de-duplicated copy of values.
func sortedSet(values []int64) []int64 {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
