package index

import "fmt"

// Docs is the per-document data of a segment: external ids, field lengths
// and sorted-set numeric fields. It is immutable once built.
type Docs struct {
	IDs     []string             `json:"ids"`
	Norms   map[string][]uint32  `json:"norms"`
	Numeric map[string][][]int64 `json:"numeric"`

	lookup map[string]int
	stats  map[string]FieldStats
}

// NewDocs builds lookup tables over the given columns.
func NewDocs(ids []string, norms map[string][]uint32, numeric map[string][][]int64) *Docs {
	d := &Docs{IDs: ids, Norms: norms, Numeric: numeric}
	d.Init()
	return d
}

// Init rebuilds the id lookup and field statistics. It must be called
// after decoding a Docs from its serialized form.
func (d *Docs) Init() {
	if d.Norms == nil {
		d.Norms = make(map[string][]uint32)
	}
	if d.Numeric == nil {
		d.Numeric = make(map[string][][]int64)
	}
	d.lookup = make(map[string]int, len(d.IDs))
	for doc, id := range d.IDs {
		d.lookup[id] = doc
	}
	d.stats = make(map[string]FieldStats, len(d.Norms))
	for field, norms := range d.Norms {
		var s FieldStats
		for _, n := range norms {
			if n > 0 {
				s.DocCount++
				s.SumLength += int64(n)
			}
		}
		d.stats[field] = s
	}
}

// MaxDoc returns the number of documents; local ids are [0, MaxDoc).
func (d *Docs) MaxDoc() int {
	return len(d.IDs)
}

// ExternalID maps a local doc id to the ingested document id.
func (d *Docs) ExternalID(doc int) string {
	if doc < 0 || doc >= len(d.IDs) {
		return ""
	}
	return d.IDs[doc]
}

// LookupID maps an ingested document id to its local doc id.
func (d *Docs) LookupID(id string) (int, bool) {
	doc, ok := d.lookup[id]
	return doc, ok
}

// FieldLength returns the analysed length of field in doc.
func (d *Docs) FieldLength(field string, doc int) int {
	norms := d.Norms[field]
	if doc < 0 || doc >= len(norms) {
		return 0
	}
	return int(norms[doc])
}

// FieldStats returns the length statistics of field.
func (d *Docs) FieldStats(field string) FieldStats {
	return d.stats[field]
}

// SortedNumeric returns the sorted, de-duplicated values of a multi-valued
// numeric field for doc. A document without the field yields no values.
func (d *Docs) SortedNumeric(field string, doc int) ([]int64, error) {
	if doc < 0 || doc >= len(d.IDs) {
		return nil, fmt.Errorf("doc %d out of range [0, %d)", doc, len(d.IDs))
	}
	values := d.Numeric[field]
	if doc >= len(values) {
		return nil, nil
	}
	return values[doc], nil
}
