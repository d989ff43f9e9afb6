// Package audit persists score explanations to Postgres so a ranking can be
// inspected after the fact: one row per explained document, plus one row per
// stored interval with its overlap.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS score_audit (
	id           BIGSERIAL PRIMARY KEY,
	request_id   TEXT NOT NULL DEFAULT '',
	doc_id       TEXT NOT NULL,
	query        TEXT NOT NULL,
	range_start  BIGINT NOT NULL,
	range_end    BIGINT NOT NULL,
	matched      BOOLEAN NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	explanation  JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS score_audit_doc_idx ON score_audit (doc_id, created_at DESC);
CREATE TABLE IF NOT EXISTS score_audit_interval (
	audit_id  BIGINT NOT NULL REFERENCES score_audit (id) ON DELETE CASCADE,
	position  INT NOT NULL,
	period    BIGINT NOT NULL,
	"offset"  BIGINT NOT NULL,
	overlap   BIGINT NOT NULL,
	PRIMARY KEY (audit_id, position)
);`

type Entry struct {
	ID          int64                   `json:"id"`
	RequestID   string                  `json:"request_id,omitempty"`
	DocID       string                  `json:"doc_id"`
	Query       string                  `json:"query"`
	Range       interval.Range          `json:"range"`
	Matched     bool                    `json:"matched"`
	Score       float64                 `json:"score"`
	Explanation *search.Explanation     `json:"explanation"`
	Intervals   []interval.Contribution `json:"intervals,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewEntry records res, an explanation of a query over rng.
func NewEntry(requestID string, rng interval.Range, res *executor.ExplainResult) Entry {
	return Entry{
		RequestID:   requestID,
		DocID:       res.DocID,
		Query:       res.Query,
		Range:       rng,
		Matched:     res.Matched,
		Score:       res.Score,
		Explanation: res.Explanation,
		Intervals:   res.Intervals,
	}
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "audit-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating audit schema: %w", err)
	}
	return nil
}

// Record inserts e and its interval breakdown in one transaction and
// returns the new row id.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	expl, err := json.Marshal(e.Explanation)
	if err != nil {
		return 0, fmt.Errorf("encoding explanation: %w", err)
	}
	var id int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO score_audit (request_id, doc_id, query, range_start, range_end, matched, score, explanation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			e.RequestID, e.DocID, e.Query, e.Range.Start, e.Range.End, e.Matched, e.Score, expl,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting audit row: %w", err)
		}
		for i, c := range e.Intervals {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO score_audit_interval (audit_id, position, period, "offset", overlap)
				VALUES ($1, $2, $3, $4, $5)`,
				id, i, c.Period, c.Offset, c.Value,
			); err != nil {
				return fmt.Errorf("inserting interval %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("explanation recorded", "audit_id", id, "doc_id", e.DocID, "intervals", len(e.Intervals))
	return id, nil
}

// Recent returns the latest entries for docID, newest first. An empty docID
// lists entries for every document.
func (s *Store) Recent(ctx context.Context, docID string, limit int) ([]Entry, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, request_id, doc_id, query, range_start, range_end, matched, score, explanation, created_at
		FROM score_audit
		WHERE $1::text = '' OR doc_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, docID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	byID := make(map[int64]int)
	for rows.Next() {
		var e Entry
		var expl []byte
		if err := rows.Scan(&e.ID, &e.RequestID, &e.DocID, &e.Query, &e.Range.Start, &e.Range.End,
			&e.Matched, &e.Score, &expl, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if err := json.Unmarshal(expl, &e.Explanation); err != nil {
			return nil, fmt.Errorf("decoding explanation of entry %d: %w", e.ID, err)
		}
		byID[e.ID] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	irows, err := s.db.DB.QueryContext(ctx,
		`SELECT audit_id, period, "offset", overlap FROM score_audit_interval
		WHERE audit_id = ANY($1) ORDER BY audit_id, position`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying audit intervals: %w", err)
	}
	defer irows.Close()
	for irows.Next() {
		var auditID int64
		var c interval.Contribution
		if err := irows.Scan(&auditID, &c.Period, &c.Offset, &c.Value); err != nil {
			return nil, fmt.Errorf("scanning audit interval: %w", err)
		}
		key, err := interval.Encode(c.Period, c.Offset)
		if err != nil {
			return nil, fmt.Errorf("audit %d: %w", auditID, err)
		}
		c.Key = key
		e := &entries[byID[auditID]]
		e.Intervals = append(e.Intervals, c)
	}
	if err := irows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit intervals: %w", err)
	}
	return entries, nil
}
