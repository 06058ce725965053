package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/cardgate/cardgate/internal/db"

	"github.com/cardgate/cardgate/internal/cardgate/store"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// AuditLog persists decisions as an append-only log. Appends go through
// the Worker so each decision commits atomically; the schema has no
// UPDATE or DELETE path.
type AuditLog struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditLog(db *sql.DB, writer *dbpkg.Worker) *AuditLog {
	return &AuditLog{db: db, writer: writer}
}

func (l *AuditLog) Record(ctx context.Context, d store.Decision) error {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	if d.OccurredAt.IsZero() {
		d.OccurredAt = d.DecidedAt
	}

	var cardID any
	if d.CardID != "" {
		cardID = d.CardID
	}
	var accessPointID any
	if d.AccessPointID != "" {
		accessPointID = d.AccessPointID
	}
	var granted int
	if d.Granted {
		granted = 1
	}

	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO decisions(
  decision_id, card_id, card_uid, access_point_id,
  granted, reason, occurred_at_ms, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			d.ID, cardID, d.CardUID, accessPointID,
			granted, string(d.Reason),
			d.OccurredAt.UTC().UnixMilli(), d.DecidedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Record insert: %w", err)
		}
		return nil
	})
}

func (l *AuditLog) ListDecisions(ctx context.Context, q store.DecisionQuery) ([]store.Decision, error) {
	var (
		where []string
		args  []any
	)
	if q.CardID != "" {
		where = append(where, "card_id = ?")
		args = append(args, q.CardID)
	}
	if q.AccessPointID != "" {
		where = append(where, "access_point_id = ?")
		args = append(args, q.AccessPointID)
	}
	if !q.From.IsZero() {
		where = append(where, "occurred_at_ms >= ?")
		args = append(args, q.From.UTC().UnixMilli())
	}
	if !q.To.IsZero() {
		where = append(where, "occurred_at_ms < ?")
		args = append(args, q.To.UTC().UnixMilli())
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
SELECT decision_id, card_id, card_uid, access_point_id,
       granted, reason, occurred_at_ms, decided_at_ms
FROM decisions`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY occurred_at_ms DESC, decision_id DESC\nLIMIT ? OFFSET ?;"
	args = append(args, limit, offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListDecisions query: %w", err)
	}
	defer rows.Close()

	var out []store.Decision
	for rows.Next() {
		var (
			d             store.Decision
			cardID        sql.NullString
			accessPointID sql.NullString
			granted       int
			reason        string
			occurredMs    int64
			decidedMs     int64
		)
		if err := rows.Scan(
			&d.ID, &cardID, &d.CardUID, &accessPointID,
			&granted, &reason, &occurredMs, &decidedMs,
		); err != nil {
			return nil, fmt.Errorf("ListDecisions scan: %w", err)
		}
		d.CardID = cardID.String
		d.AccessPointID = accessPointID.String
		d.Granted = granted == 1
		d.Reason = store.Reason(reason)
		d.OccurredAt = time.UnixMilli(occurredMs).UTC()
		d.DecidedAt = time.UnixMilli(decidedMs).UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDecisions rows: %w", err)
	}
	return out, nil
}
