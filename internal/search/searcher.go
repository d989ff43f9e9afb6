package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
)

// maxRewrites bounds the rewrite loop against queries that never settle.
const maxRewrites = 64

// Searcher runs queries over a fixed list of segments. Global doc ids are
// the segment's doc base plus its local id, in segment order.
type Searcher struct {
	segments []Segment
	bases    []int
	maxDoc   int
	logger   *slog.Logger
	// stats, when set, answers DocFreq and FieldStats without visiting
	// the segments.
	stats *termStats
}

// termStats is a snapshot of searcher-wide statistics for the terms of one
// query. It is read-only once built.
type termStats struct {
	docFreq map[Term]int
	fields  map[string]index.FieldStats
}

func NewSearcher(segments []Segment) *Searcher {
	s := &Searcher{
		segments: segments,
		bases:    make([]int, len(segments)),
		logger:   slog.Default().With("component", "searcher"),
	}
	for i, seg := range segments {
		s.bases[i] = s.maxDoc
		s.maxDoc += seg.MaxDoc()
	}
	return s
}

func (s *Searcher) Segments() []Segment {
	return s.segments
}

// MaxDoc returns the number of documents across all segments.
func (s *Searcher) MaxDoc() int {
	return s.maxDoc
}

// DocBase returns the global id of the first document of segment i.
func (s *Searcher) DocBase(i int) int {
	return s.bases[i]
}

// Resolve maps a global doc id to its segment and local id.
func (s *Searcher) Resolve(doc int) (Segment, int, error) {
	if doc < 0 || doc >= s.maxDoc {
		return nil, 0, fmt.Errorf("doc %d out of range [0, %d)", doc, s.maxDoc)
	}
	i := sort.Search(len(s.bases), func(i int) bool { return s.bases[i] > doc }) - 1
	return s.segments[i], doc - s.bases[i], nil
}

// DocFreq sums the document frequency of t over all segments.
func (s *Searcher) DocFreq(t Term) (int, error) {
	if s.stats != nil {
		if df, ok := s.stats.docFreq[t]; ok {
			return df, nil
		}
	}
	total := 0
	for _, seg := range s.segments {
		df, err := seg.DocFreq(t.Field, t.Text)
		if err != nil {
			return 0, fmt.Errorf("doc freq of %s in segment %s: %w", t, seg.Name(), err)
		}
		total += df
	}
	return total, nil
}

// FieldStats sums the field length statistics over all segments.
func (s *Searcher) FieldStats(field string) index.FieldStats {
	if s.stats != nil {
		if fs, ok := s.stats.fields[field]; ok {
			return fs
		}
	}
	var stats index.FieldStats
	for _, seg := range s.segments {
		stats = stats.Add(seg.FieldStats(field))
	}
	return stats
}

// withTermStats returns a copy of s whose DocFreq and FieldStats answer the
// terms of q from statistics gathered once, up front.
func (s *Searcher) withTermStats(q Query) (*Searcher, error) {
	terms := make(TermSet)
	q.ExtractTerms(terms)
	stats := &termStats{
		docFreq: make(map[Term]int, len(terms)),
		fields:  make(map[string]index.FieldStats),
	}
	for t := range terms {
		df, err := s.DocFreq(t)
		if err != nil {
			return nil, err
		}
		stats.docFreq[t] = df
		if _, ok := stats.fields[t.Field]; !ok {
			stats.fields[t.Field] = s.FieldStats(t.Field)
		}
	}
	c := *s
	c.stats = stats
	return &c, nil
}

// Rewrite rewrites q until it stops changing.
func (s *Searcher) Rewrite(q Query) (Query, error) {
	for i := 0; i < maxRewrites; i++ {
		rewritten, err := q.Rewrite(s)
		if err != nil {
			return nil, fmt.Errorf("rewriting %s: %w", q, err)
		}
		if rewritten == q {
			return q, nil
		}
		q = rewritten
	}
	return nil, fmt.Errorf("query %s did not settle after %d rewrites", q, maxRewrites)
}

// CreateNormalizedWeight rewrites q and returns a weight ready to score.
func (s *Searcher) CreateNormalizedWeight(q Query) (Weight, error) {
	rewritten, err := s.Rewrite(q)
	if err != nil {
		return nil, err
	}
	return s.normalizedWeight(rewritten)
}

func (s *Searcher) normalizedWeight(rewritten Query) (Weight, error) {
	w, err := rewritten.CreateWeight(s)
	if err != nil {
		return nil, fmt.Errorf("creating weight for %s: %w", rewritten, err)
	}
	v, err := w.ValueForNormalization()
	if err != nil {
		return nil, fmt.Errorf("normalizing %s: %w", rewritten, err)
	}
	w.Normalize(queryNorm(v), 1)
	return w, nil
}

// Search returns the n best hits for q. Segments are scored in parallel,
// each with its own weight; documents within a segment are scored in order.
func (s *Searcher) Search(ctx context.Context, q Query, n int) (*TopDocs, error) {
	if n <= 0 {
		return nil, fmt.Errorf("result count must be positive, got %d", n)
	}
	rewritten, err := s.Rewrite(q)
	if err != nil {
		return nil, err
	}

	stats, err := s.withTermStats(rewritten)
	if err != nil {
		return nil, err
	}

	collectors := make([]*topCollector, len(s.segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range s.segments {
		g.Go(func() error {
			w, err := stats.normalizedWeight(rewritten)
			if err != nil {
				return err
			}
			sc, err := w.Scorer(seg)
			if err != nil {
				return fmt.Errorf("segment %s: %w", seg.Name(), err)
			}
			if sc == nil {
				return nil
			}
			c := newTopCollector(n)
			base := s.bases[i]
			for doc := sc.NextDoc(); doc != NoMoreDocs; doc = sc.NextDoc() {
				if c.totalHits%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				score, err := sc.Score()
				if err != nil {
					return fmt.Errorf("scoring doc %d in segment %s: %w", doc, seg.Name(), err)
				}
				c.collect(base+doc, score)
			}
			collectors[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	td := mergeTopDocs(collectors, n)
	s.logger.Debug("search complete",
		"query", rewritten.String(),
		"segments", len(s.segments),
		"total_hits", td.TotalHits,
	)
	return td, nil
}

// Explain describes how q scores the document with global id doc.
func (s *Searcher) Explain(q Query, doc int) (*Explanation, error) {
	seg, local, err := s.Resolve(doc)
	if err != nil {
		return nil, err
	}
	w, err := s.CreateNormalizedWeight(q)
	if err != nil {
		return nil, err
	}
	return w.Explain(seg, local)
}
