package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
)

// buildSegment indexes texts into the "text" field of docs named by key.
func buildSegment(t testing.TB, docs ...index.Document) Segment {
	t.Helper()
	mi := index.NewMemoryIndex()
	for _, d := range docs {
		require.NoError(t, mi.AddDocument(d))
	}
	return mi.Snapshot()
}

func textDoc(id, text string) index.Document {
	return index.Document{ID: id, Fields: map[string]string{"text": text}}
}

// collectDocs drains a scorer into its doc ids.
func collectDocs(t testing.TB, sc Scorer) []int {
	t.Helper()
	var docs []int
	if sc == nil {
		return docs
	}
	for doc := sc.NextDoc(); doc != NoMoreDocs; doc = sc.NextDoc() {
		docs = append(docs, doc)
	}
	return docs
}

func weightFor(t testing.TB, s *Searcher, q Query) Weight {
	t.Helper()
	w, err := s.CreateNormalizedWeight(q)
	require.NoError(t, err)
	return w
}
