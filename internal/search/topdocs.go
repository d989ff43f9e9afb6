package search

import (
	"container/heap"
	"slices"
)

// ScoreDoc is a hit identified by its searcher-wide doc id.
type ScoreDoc struct {
	Doc   int
	Score float64
}

// TopDocs holds the best hits of a search, score descending then doc
// ascending.
type TopDocs struct {
	TotalHits int
	MaxScore  float64
	ScoreDocs []ScoreDoc
}

// worse reports whether a ranks below b.
func worse(a, b ScoreDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Doc > b.Doc
}

// hitQueue is a min-heap whose root is the weakest retained hit.
type hitQueue []ScoreDoc

func (q hitQueue) Len() int           { return len(q) }
func (q hitQueue) Less(i, j int) bool { return worse(q[i], q[j]) }
func (q hitQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *hitQueue) Push(x any)        { *q = append(*q, x.(ScoreDoc)) }
func (q *hitQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// topCollector keeps the n best hits seen.
type topCollector struct {
	n         int
	queue     hitQueue
	totalHits int
	maxScore  float64
}

func newTopCollector(n int) *topCollector {
	return &topCollector{n: n, queue: make(hitQueue, 0, min(n, 1024))}
}

func (c *topCollector) collect(doc int, score float64) {
	if c.totalHits == 0 || score > c.maxScore {
		c.maxScore = score
	}
	c.totalHits++
	hit := ScoreDoc{Doc: doc, Score: score}
	if len(c.queue) < c.n {
		heap.Push(&c.queue, hit)
		return
	}
	if worse(c.queue[0], hit) {
		c.queue[0] = hit
		heap.Fix(&c.queue, 0)
	}
}

// mergeTopDocs combines per-segment collectors into the final ranking.
func mergeTopDocs(collectors []*topCollector, n int) *TopDocs {
	td := &TopDocs{ScoreDocs: []ScoreDoc{}}
	for _, c := range collectors {
		if c == nil || c.totalHits == 0 {
			continue
		}
		if td.TotalHits == 0 || c.maxScore > td.MaxScore {
			td.MaxScore = c.maxScore
		}
		td.TotalHits += c.totalHits
		td.ScoreDocs = append(td.ScoreDocs, c.queue...)
	}
	slices.SortFunc(td.ScoreDocs, func(a, b ScoreDoc) int {
		switch {
		case worse(b, a):
			return -1
		case worse(a, b):
			return 1
		}
		return 0
	})
	if len(td.ScoreDocs) > n {
		td.ScoreDocs = td.ScoreDocs[:n]
	}
	return td
}
