package search

import "github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"

// Segment is an immutable, independently searchable slice of the index.
// Doc ids are local to the segment and lie in [0, MaxDoc). Both the
// in-memory snapshot and on-disk segment readers implement it.
type Segment interface {
	Name() string
	MaxDoc() int
	// Postings returns nil when the term does not occur in the segment.
	Postings(field, term string) (*index.PostingList, error)
	DocFreq(field, term string) (int, error)
	FieldLength(field string, doc int) int
	FieldStats(field string) index.FieldStats
	// SortedNumeric returns the ascending, de-duplicated values of a
	// multi-valued numeric field. Documents without the field yield none.
	SortedNumeric(field string, doc int) ([]int64, error)
	ExternalID(doc int) string
	LookupID(id string) (int, bool)
}
