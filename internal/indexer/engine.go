// Package indexer owns the write path: documents are buffered in a memory
// index, flushed into immutable segment files, and exposed to searches as
// a list of segments.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
)

type Engine struct {
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	readers  []*segment.Reader
	pending  *index.Snapshot
	loaded   map[string]struct{}
	readerMu sync.RWMutex
	flushMu  sync.Mutex
	cfg      config.IndexerConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine opens every segment already in cfg.DataDir. m may be nil.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(),
		writer:   segment.NewWriter(cfg.DataDir),
		loaded:   make(map[string]struct{}),
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer"),
	}
	if _, err := e.loadNewSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", e.SegmentCount())
	return e, nil
}

// IndexDocument buffers doc and flushes once the buffer holds
// cfg.SegmentMaxDocs documents.
func (e *Engine) IndexDocument(doc index.Document) error {
	if err := e.memIndex.AddDocument(doc); err != nil {
		return err
	}
	buffered := e.memIndex.DocCount()
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
		e.metrics.BufferedDocs.Set(float64(buffered))
	}
	e.logger.Debug("document indexed in memory",
		"doc_id", doc.ID,
		"buffered", buffered,
		"mem_size", e.memIndex.Size(),
	)
	if buffered >= e.cfg.SegmentMaxDocs {
		e.logger.Info("memory index reached max docs, flushing to disk",
			"buffered", buffered,
			"threshold", e.cfg.SegmentMaxDocs,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// Flush writes the buffered documents to a new segment and opens it.
// Drained documents stay searchable as the pending snapshot until the new
// segment is open; a failed write is retried by the next Flush.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.readerMu.Lock()
	if e.pending == nil {
		if e.memIndex.DocCount() == 0 {
			e.readerMu.Unlock()
			return nil
		}
		e.pending = e.memIndex.Drain()
	}
	snapshot := e.pending
	e.readerMu.Unlock()

	segmentName, err := e.writer.Write(snapshot)
	if err != nil {
		e.recordFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}
	segPath := filepath.Join(e.cfg.DataDir, segmentName)
	reader, err := segment.OpenReader(segPath)
	if err != nil {
		os.Remove(segPath)
		e.recordFlush("error")
		return fmt.Errorf("opening new segment for reading: %w", err)
	}

	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.loaded[segmentName] = struct{}{}
	e.pending = nil
	active := len(e.readers)
	e.readerMu.Unlock()

	e.recordFlush("ok")
	if e.metrics != nil {
		e.metrics.ActiveSegments.Set(float64(active))
		e.metrics.BufferedDocs.Set(float64(e.memIndex.DocCount()))
	}
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.MaxDoc(),
		"active_segments", active,
	)
	return nil
}

func (e *Engine) recordFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

// Segments returns the searchable segments: on-disk segments oldest first,
// then the snapshot being flushed and the memory buffer, when not empty.
// The returned slice is owned by the caller.
func (e *Engine) Segments() []search.Segment {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	segs := make([]search.Segment, 0, len(e.readers)+2)
	for _, r := range e.readers {
		segs = append(segs, r)
	}
	if e.pending != nil {
		segs = append(segs, e.pending)
	}
	if e.memIndex.DocCount() > 0 {
		segs = append(segs, e.memIndex.Snapshot())
	}
	return segs
}

// SegmentCount returns the number of open on-disk segments.
func (e *Engine) SegmentCount() int {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	return len(e.readers)
}

// BufferedDocs returns the number of documents not yet flushed.
func (e *Engine) BufferedDocs() int {
	return e.memIndex.DocCount()
}

// ReloadSegments opens segment files written by another process since the
// last load and returns how many were added.
func (e *Engine) ReloadSegments() (int, error) {
	e.flushMu.Lock()
	added, err := e.loadNewSegments()
	e.flushMu.Unlock()
	if err != nil {
		return 0, err
	}
	if added > 0 {
		if e.metrics != nil {
			e.metrics.ActiveSegments.Set(float64(e.SegmentCount()))
		}
		e.logger.Info("segments reloaded", "added", added, "active_segments", e.SegmentCount())
	}
	return added, nil
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.DocCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// StartReloadLoop periodically picks up segments flushed by an indexer
// sharing the data directory.
func (e *Engine) StartReloadLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReloadInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.ReloadSegments(); err != nil {
					e.logger.Error("segment reload failed", "error", err)
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	e.loaded = make(map[string]struct{})
	return nil
}

func (e *Engine) loadNewSegments() (int, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading data directory: %w", err)
	}

	e.readerMu.Lock()
	defer e.readerMu.Unlock()

	segFiles := make([]string, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, segment.FileExt) {
			continue
		}
		if _, ok := e.loaded[name]; ok {
			continue
		}
		segFiles = append(segFiles, name)
	}
	sort.Strings(segFiles)

	added := 0
	for _, name := range segFiles {
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.readers = append(e.readers, reader)
		e.loaded[name] = struct{}{}
		added++
		e.logger.Info("loaded segment",
			"segment", name,
			"terms", reader.Terms(),
			"docs", reader.MaxDoc(),
		)
	}
	return added, nil
}
