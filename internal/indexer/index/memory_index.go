package index

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/tokenizer"
)

type termBuffer struct {
	docs  []uint32
	freqs []uint32
}

// MemoryIndex buffers documents until they are flushed into a segment.
// Local doc ids are assigned in insertion order.
type MemoryIndex struct {
	mu       sync.RWMutex
	postings map[string]map[string]*termBuffer
	ids      []string
	norms    map[string][]uint32
	numeric  map[string][][]int64
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	m := &MemoryIndex{}
	m.reset()
	return m
}

// AddDocument analyses doc and appends it to the buffer.
func (m *MemoryIndex) AddDocument(doc Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("adding document: %w", err)
	}
	type fieldTerms struct {
		freqs  map[string]uint32
		length int
	}
	analysed := make(map[string]fieldTerms, len(doc.Fields))
	for field, text := range doc.Fields {
		freqs, length := tokenizer.Frequencies(text)
		analysed[field] = fieldTerms{freqs: freqs, length: length}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	local := uint32(len(m.ids))
	m.ids = append(m.ids, doc.ID)
	m.size += int64(len(doc.ID)) + 32

	for field, ft := range analysed {
		terms, ok := m.postings[field]
		if !ok {
			terms = make(map[string]*termBuffer)
			m.postings[field] = terms
		}
		for term, freq := range ft.freqs {
			buf, ok := terms[term]
			if !ok {
				buf = &termBuffer{}
				terms[term] = buf
				m.size += int64(len(field) + len(term) + 48)
			}
			buf.docs = append(buf.docs, local)
			buf.freqs = append(buf.freqs, freq)
			m.size += 8
		}
		m.norms[field] = padNorms(m.norms[field], int(local))
		m.norms[field] = append(m.norms[field], uint32(ft.length))
	}
	for field, values := range doc.Numeric {
		set := sortedSet(values)
		m.numeric[field] = padNumeric(m.numeric[field], int(local))
		m.numeric[field] = append(m.numeric[field], set)
		m.size += int64(len(set) * 8)
	}
	return nil
}

// DocCount returns the number of buffered documents.
func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Size returns an estimate of the buffer's memory footprint in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Snapshot returns an immutable segment view of the buffered documents.
func (m *MemoryIndex) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Drain returns a snapshot of the buffer and empties it atomically, so no
// document added concurrently is lost between the two steps.
func (m *MemoryIndex) Drain() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshotLocked()
	m.reset()
	return snap
}

// Reset discards all buffered documents.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MemoryIndex) reset() {
	m.postings = make(map[string]map[string]*termBuffer)
	m.ids = nil
	m.norms = make(map[string][]uint32)
	m.numeric = make(map[string][][]int64)
	m.size = 0
}

func (m *MemoryIndex) snapshotLocked() *Snapshot {
	maxDoc := len(m.ids)
	terms := make(map[string]map[string]*PostingList, len(m.postings))
	for field, buffers := range m.postings {
		lists := make(map[string]*PostingList, len(buffers))
		for term, buf := range buffers {
			lists[term] = &PostingList{
				Docs:  roaring.BitmapOf(buf.docs...),
				Freqs: slices.Clone(buf.freqs),
			}
		}
		terms[field] = lists
	}
	norms := make(map[string][]uint32, len(m.norms))
	for field, n := range m.norms {
		norms[field] = padNorms(slices.Clone(n), maxDoc)
	}
	numeric := make(map[string][][]int64, len(m.numeric))
	for field, values := range m.numeric {
		numeric[field] = padNumeric(slices.Clone(values), maxDoc)
	}
	return &Snapshot{
		terms: terms,
		Docs:  NewDocs(slices.Clone(m.ids), norms, numeric),
	}
}

func padNorms(n []uint32, length int) []uint32 {
	for len(n) < length {
		n = append(n, 0)
	}
	return n
}

func padNumeric(v [][]int64, length int) [][]int64 {
	for len(v) < length {
		v = append(v, nil)
	}
	return v
}

// Snapshot is an immutable in-memory segment. It serves searches over
// buffered documents and is the input of the segment writer.
type Snapshot struct {
	*Docs
	terms map[string]map[string]*PostingList
}

// Name identifies the snapshot among segments.
func (s *Snapshot) Name() string {
	return "memory"
}

// Postings returns the posting list of field:term, or nil when absent.
func (s *Snapshot) Postings(field, term string) (*PostingList, error) {
	return s.terms[field][term], nil
}

// DocFreq returns the number of documents containing field:term.
func (s *Snapshot) DocFreq(field, term string) (int, error) {
	pl := s.terms[field][term]
	if pl == nil {
		return 0, nil
	}
	return pl.DocFreq(), nil
}

// Entries returns every dictionary row ordered by field, then term.
func (s *Snapshot) Entries() []TermEntry {
	entries := make([]TermEntry, 0)
	for field, lists := range s.terms {
		for term, pl := range lists {
			entries = append(entries, TermEntry{Field: field, Term: term, Postings: pl})
		}
	}
	slices.SortFunc(entries, func(a, b TermEntry) int {
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return strings.Compare(a.Term, b.Term)
	})
	return entries
}
