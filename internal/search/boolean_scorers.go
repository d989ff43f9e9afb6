package search

import (
	"container/heap"
	"slices"
)

func conjunction(scorers []Scorer) Scorer {
	if len(scorers) == 1 {
		return scorers[0]
	}
	sorted := slices.Clone(scorers)
	slices.SortFunc(sorted, func(a, b Scorer) int {
		switch {
		case a.Cost() < b.Cost():
			return -1
		case a.Cost() > b.Cost():
			return 1
		}
		return 0
	})
	return &conjunctionScorer{scorers: sorted, doc: -1}
}

func disjunction(scorers []Scorer) Scorer {
	if len(scorers) == 1 {
		return scorers[0]
	}
	h := scorerHeap(slices.Clone(scorers))
	heap.Init(&h)
	return &disjunctionScorer{heap: h, doc: -1}
}

// conjunctionScorer leapfrogs its scorers, cheapest first, until all agree
// on a document.
type conjunctionScorer struct {
	scorers []Scorer
	doc     int
}

func (c *conjunctionScorer) DocID() int {
	return c.doc
}

func (c *conjunctionScorer) NextDoc() int {
	return c.align(c.scorers[0].NextDoc())
}

func (c *conjunctionScorer) Advance(target int) int {
	return c.align(c.scorers[0].Advance(target))
}

func (c *conjunctionScorer) align(doc int) int {
	lead := c.scorers[0]
	for {
		if doc == NoMoreDocs {
			c.doc = NoMoreDocs
			return c.doc
		}
		agreed := true
		for _, s := range c.scorers[1:] {
			d := s.DocID()
			if d < doc {
				d = s.Advance(doc)
			}
			if d > doc {
				doc = lead.Advance(d)
				agreed = false
				break
			}
		}
		if agreed {
			c.doc = doc
			return doc
		}
	}
}

func (c *conjunctionScorer) Score() (float64, error) {
	var sum float64
	for _, s := range c.scorers {
		v, err := s.Score()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}

func (c *conjunctionScorer) Freq() int {
	return len(c.scorers)
}

func (c *conjunctionScorer) Cost() int64 {
	return c.scorers[0].Cost()
}

func (c *conjunctionScorer) Children() []ChildScorer {
	children := make([]ChildScorer, len(c.scorers))
	for i, s := range c.scorers {
		children[i] = ChildScorer{Scorer: s, Relationship: "MUST"}
	}
	return children
}

// scorerHeap orders scorers by their current document.
type scorerHeap []Scorer

func (h scorerHeap) Len() int           { return len(h) }
func (h scorerHeap) Less(i, j int) bool { return h[i].DocID() < h[j].DocID() }
func (h scorerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scorerHeap) Push(x any)        { *h = append(*h, x.(Scorer)) }
func (h *scorerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// disjunctionScorer matches documents that any sub-scorer matches.
type disjunctionScorer struct {
	heap scorerHeap
	doc  int
}

func (d *disjunctionScorer) DocID() int {
	return d.doc
}

func (d *disjunctionScorer) NextDoc() int {
	if d.doc == NoMoreDocs {
		return d.doc
	}
	for d.heap[0].DocID() == d.doc {
		d.heap[0].NextDoc()
		heap.Fix(&d.heap, 0)
	}
	d.doc = d.heap[0].DocID()
	return d.doc
}

func (d *disjunctionScorer) Advance(target int) int {
	if d.doc == NoMoreDocs {
		return d.doc
	}
	for d.heap[0].DocID() < target {
		d.heap[0].Advance(target)
		heap.Fix(&d.heap, 0)
	}
	d.doc = d.heap[0].DocID()
	return d.doc
}

func (d *disjunctionScorer) Score() (float64, error) {
	var sum float64
	for _, s := range d.heap {
		if s.DocID() != d.doc {
			continue
		}
		v, err := s.Score()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}

func (d *disjunctionScorer) Freq() int {
	n := 0
	for _, s := range d.heap {
		if s.DocID() == d.doc {
			n++
		}
	}
	return n
}

func (d *disjunctionScorer) Cost() int64 {
	var sum int64
	for _, s := range d.heap {
		sum += s.Cost()
	}
	return sum
}

func (d *disjunctionScorer) Children() []ChildScorer {
	children := make([]ChildScorer, len(d.heap))
	for i, s := range d.heap {
		children[i] = ChildScorer{Scorer: s, Relationship: "SHOULD"}
	}
	return children
}

// reqOptScorer iterates req and adds opt's score where opt also matches.
type reqOptScorer struct {
	req Scorer
	opt Scorer
}

func (r *reqOptScorer) DocID() int             { return r.req.DocID() }
func (r *reqOptScorer) NextDoc() int           { return r.req.NextDoc() }
func (r *reqOptScorer) Advance(target int) int { return r.req.Advance(target) }
func (r *reqOptScorer) Cost() int64            { return r.req.Cost() }

func (r *reqOptScorer) Score() (float64, error) {
	doc := r.req.DocID()
	score, err := r.req.Score()
	if err != nil {
		return 0, err
	}
	optDoc := r.opt.DocID()
	if optDoc < doc {
		optDoc = r.opt.Advance(doc)
	}
	if optDoc == doc {
		v, err := r.opt.Score()
		if err != nil {
			return 0, err
		}
		score += v
	}
	return score, nil
}

func (r *reqOptScorer) Freq() int {
	n := r.req.Freq()
	if r.opt.DocID() == r.req.DocID() {
		n += r.opt.Freq()
	}
	return n
}

func (r *reqOptScorer) Children() []ChildScorer {
	return []ChildScorer{
		{Scorer: r.req, Relationship: "MUST"},
		{Scorer: r.opt, Relationship: "SHOULD"},
	}
}

// reqExclScorer iterates req, skipping documents excl matches.
type reqExclScorer struct {
	req  Scorer
	excl Scorer
}

func (r *reqExclScorer) DocID() int { return r.req.DocID() }

func (r *reqExclScorer) NextDoc() int {
	return r.skipExcluded(r.req.NextDoc())
}

func (r *reqExclScorer) Advance(target int) int {
	return r.skipExcluded(r.req.Advance(target))
}

func (r *reqExclScorer) skipExcluded(doc int) int {
	for doc != NoMoreDocs {
		exclDoc := r.excl.DocID()
		if exclDoc < doc {
			exclDoc = r.excl.Advance(doc)
		}
		if exclDoc != doc {
			return doc
		}
		doc = r.req.NextDoc()
	}
	return doc
}

func (r *reqExclScorer) Score() (float64, error) { return r.req.Score() }
func (r *reqExclScorer) Freq() int               { return r.req.Freq() }
func (r *reqExclScorer) Cost() int64             { return r.req.Cost() }

func (r *reqExclScorer) Children() []ChildScorer {
	return []ChildScorer{
		{Scorer: r.req, Relationship: "MUST"},
		{Scorer: r.excl, Relationship: "MUST_NOT"},
	}
}
