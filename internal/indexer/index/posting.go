package index

import "github.com/RoaringBitmap/roaring/v2"

// PostingList holds the local documents containing a term and the term
// frequency in each. Freqs is aligned with the ascending order of Docs.
type PostingList struct {
	Docs  *roaring.Bitmap
	Freqs []uint32
}

// DocFreq returns the number of documents in the list.
func (p *PostingList) DocFreq() int {
	return int(p.Docs.GetCardinality())
}

// Freq returns the term frequency for doc, or 0 when doc is not listed.
func (p *PostingList) Freq(doc uint32) uint32 {
	if !p.Docs.Contains(doc) {
		return 0
	}
	idx := int(p.Docs.Rank(doc)) - 1
	if idx < 0 || idx >= len(p.Freqs) {
		return 1
	}
	return p.Freqs[idx]
}

// TermEntry is one (field, term) row of a segment's dictionary.
type TermEntry struct {
	Field    string
	Term     string
	Postings *PostingList
}

// FieldStats aggregates field lengths over the documents that have the field.
type FieldStats struct {
	DocCount  int
	SumLength int64
}

// Add merges two FieldStats.
func (s FieldStats) Add(o FieldStats) FieldStats {
	return FieldStats{DocCount: s.DocCount + o.DocCount, SumLength: s.SumLength + o.SumLength}
}

// AvgLength returns the mean field length, or 0 when no document has the field.
func (s FieldStats) AvgLength() float64 {
	if s.DocCount == 0 {
		return 0
	}
	return float64(s.SumLength) / float64(s.DocCount)
}
