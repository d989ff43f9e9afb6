// Package consumer indexes the documents published on the ingest topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/kafka"
)

// DocumentIndexer is satisfied by *indexer.Engine.
type DocumentIndexer interface {
	IndexDocument(doc index.Document) error
}

// HandleMessage returns a handler indexing each ingest event into idx.
// Events that do not decode or fail validation are skipped; indexing
// failures are returned so the consumer retries the message before
// committing past it.
func HandleMessage(idx DocumentIndexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event", "key", string(key), "error", err)
			return err
		}
		doc := event.Document
		if err := doc.Validate(); err != nil {
			logger.Error("dropping invalid document", "key", string(key), "error", err)
			return fmt.Errorf("%w: %w", kafka.ErrSkip, err)
		}
		if err := idx.IndexDocument(doc); err != nil {
			return fmt.Errorf("indexing document %s: %w", doc.ID, err)
		}
		logger.Debug("document indexed",
			"doc_id", doc.ID,
			"lag_ms", time.Since(event.IngestedAt).Milliseconds(),
		)
		return nil
	}
}
