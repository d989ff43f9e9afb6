// Package ingestion defines the request and event types of the document
// ingestion pipeline: HTTP clients post IngestRequests, and IngestEvents
// carrying ready-to-index documents travel over Kafka to the indexer.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
)

// Interval is a stored (period, offset) pair.
type Interval struct {
	Period int64 `json:"period"`
	Offset int64 `json:"offset"`
}

// IngestRequest is the JSON body accepted by the ingestion endpoint.
// Intervals go to IntervalField, or to the service default when empty.
type IngestRequest struct {
	ID            string            `json:"id"`
	Fields        map[string]string `json:"fields"`
	Intervals     []Interval        `json:"intervals"`
	IntervalField string            `json:"interval_field,omitempty"`
}

type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Intervals  int    `json:"intervals"`
}

// IngestEvent is the Kafka payload consumed by the indexer.
type IngestEvent struct {
	Document   index.Document `json:"document"`
	IngestedAt time.Time      `json:"ingested_at"`
}
