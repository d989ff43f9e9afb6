package search

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
)

// TermQuery matches documents containing an analysed term and scores them
// with BM25.
type TermQuery struct {
	term  Term
	boost float64
}

func NewTermQuery(field, text string) *TermQuery {
	return &TermQuery{term: Term{Field: field, Text: text}, boost: 1}
}

func (q *TermQuery) Term() Term {
	return q.term
}

func (q *TermQuery) Boost() float64 {
	return q.boost
}

func (q *TermQuery) WithBoost(b float64) Query {
	c := *q
	c.boost = b
	return &c
}

func (q *TermQuery) Rewrite(*Searcher) (Query, error) {
	return q, nil
}

func (q *TermQuery) ExtractTerms(terms TermSet) {
	terms.Add(q.term)
}

func (q *TermQuery) Equal(other Query) bool {
	o, ok := other.(*TermQuery)
	return ok && o.term == q.term && o.boost == q.boost
}

func (q *TermQuery) Hash() uint64 {
	return NewHasher("term").String(q.term.Field).String(q.term.Text).Float64(q.boost).Sum()
}

func (q *TermQuery) String() string {
	return q.term.String() + BoostString(q.boost)
}

func (q *TermQuery) CreateWeight(s *Searcher) (Weight, error) {
	docFreq, err := s.DocFreq(q.term)
	if err != nil {
		return nil, fmt.Errorf("term %s: %w", q.term, err)
	}
	maxDoc := s.MaxDoc()
	return &termWeight{
		query:         q,
		docFreq:       docFreq,
		maxDoc:        maxDoc,
		idf:           computeIDF(int64(maxDoc), int64(docFreq)),
		avgLength:     s.FieldStats(q.term.Field).AvgLength(),
		topLevelBoost: 1,
	}, nil
}

// termWeight ignores the query norm; BM25 scores are not normalized.
type termWeight struct {
	query         *TermQuery
	docFreq       int
	maxDoc        int
	idf           float64
	avgLength     float64
	topLevelBoost float64
}

func (w *termWeight) Query() Query {
	return w.query
}

func (w *termWeight) ValueForNormalization() (float64, error) {
	v := w.idf * w.query.boost
	return v * v, nil
}

func (w *termWeight) Normalize(_, topLevelBoost float64) {
	w.topLevelBoost = topLevelBoost
}

func (w *termWeight) boost() float64 {
	return w.query.boost * w.topLevelBoost
}

func (w *termWeight) Scorer(seg Segment) (Scorer, error) {
	pl, err := seg.Postings(w.query.term.Field, w.query.term.Text)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", seg.Name(), err)
	}
	if pl == nil || pl.Docs.IsEmpty() {
		return nil, nil
	}
	return &termScorer{
		weight:   w,
		seg:      seg,
		postings: pl,
		it:       pl.Docs.Iterator(),
		doc:      -1,
	}, nil
}

func (w *termWeight) Explain(seg Segment, doc int) (*Explanation, error) {
	sc, err := w.Scorer(seg)
	if err != nil {
		return nil, err
	}
	if sc == nil || sc.Advance(doc) != doc {
		return NoMatch(fmt.Sprintf("no matching term %s", w.query.term)), nil
	}
	ts := sc.(*termScorer)
	freq := float64(ts.Freq())
	length := float64(seg.FieldLength(w.query.term.Field, doc))
	tfNorm := computeTFNorm(freq, length, w.avgLength)
	boost := w.boost()
	score := boost * w.idf * tfNorm
	return Match(score, fmt.Sprintf("weight(%s in %d), product of:", w.query, doc),
		Match(boost, "boost"),
		Match(w.idf, fmt.Sprintf("idf(docFreq=%d, maxDocs=%d)", w.docFreq, w.maxDoc)),
		Match(tfNorm, "tfNorm, computed from:",
			Match(freq, "termFreq"),
			Match(k1, "parameter k1"),
			Match(b, "parameter b"),
			Match(w.avgLength, "avgFieldLength"),
			Match(length, "fieldLength"),
		),
	), nil
}

type termScorer struct {
	weight   *termWeight
	seg      Segment
	postings *index.PostingList
	it       roaring.IntPeekable
	doc      int
}

func (s *termScorer) DocID() int {
	return s.doc
}

func (s *termScorer) NextDoc() int {
	if s.doc == NoMoreDocs {
		return s.doc
	}
	if s.it.HasNext() {
		s.doc = int(s.it.Next())
	} else {
		s.doc = NoMoreDocs
	}
	return s.doc
}

func (s *termScorer) Advance(target int) int {
	if s.doc == NoMoreDocs {
		return s.doc
	}
	if target >= NoMoreDocs {
		s.doc = NoMoreDocs
		return s.doc
	}
	if target > 0 {
		s.it.AdvanceIfNeeded(uint32(target))
	}
	return s.NextDoc()
}

func (s *termScorer) Freq() int {
	return int(s.postings.Freq(uint32(s.doc)))
}

func (s *termScorer) Score() (float64, error) {
	w := s.weight
	length := float64(s.seg.FieldLength(w.query.term.Field, s.doc))
	return w.boost() * w.idf * computeTFNorm(float64(s.Freq()), length, w.avgLength), nil
}

func (s *termScorer) Cost() int64 {
	return int64(s.postings.DocFreq())
}

func (s *termScorer) Children() []ChildScorer {
	return nil
}
