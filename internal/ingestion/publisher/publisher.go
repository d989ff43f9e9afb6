// Package publisher turns validated ingestion requests into index documents
// and publishes them to Kafka for the indexer.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/interval-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	producer      EventPublisher
	intervalField string
	now           func() time.Time
	logger        *slog.Logger
}

// New returns a publisher storing request intervals in intervalField unless
// a request names its own.
func New(producer EventPublisher, intervalField string) *Publisher {
	return &Publisher{
		producer:      producer,
		intervalField: intervalField,
		now:           time.Now,
		logger:        slog.Default().With("component", "publisher"),
	}
}

// Ingest publishes req keyed by document id, so every version of a document
// lands on the same partition and is indexed in publish order.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	doc, err := p.Document(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	event := kafka.Event{
		Key: doc.ID,
		Value: ingestion.IngestEvent{
			Document:   doc,
			IngestedAt: p.now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("publishing document %s: %w: %w", doc.ID, apperrors.ErrUnavailable, err)
	}
	p.logger.Debug("document published", "doc_id", doc.ID, "intervals", len(req.Intervals))
	return &ingestion.IngestResponse{
		DocumentID: doc.ID,
		Status:     "ACCEPTED",
		Intervals:  len(req.Intervals),
	}, nil
}

// Document builds the index document for req.
func (p *Publisher) Document(req *ingestion.IngestRequest) (index.Document, error) {
	doc := index.Document{ID: req.ID}
	if len(req.Fields) > 0 {
		doc.Fields = make(map[string]string, len(req.Fields))
		for k, v := range req.Fields {
			doc.Fields[k] = v
		}
	}
	field := req.IntervalField
	if field == "" {
		field = p.intervalField
	}
	for _, iv := range req.Intervals {
		if err := doc.AddInterval(field, iv.Period, iv.Offset); err != nil {
			return index.Document{}, err
		}
	}
	return doc, nil
}
