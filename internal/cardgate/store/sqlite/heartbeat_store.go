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

// HeartbeatStore keeps one liveness row per access point reader.
type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

func (s *HeartbeatStore) UpsertHeartbeat(ctx context.Context, accessPointID string, rec store.HeartbeatRecord) error {
	accessPointID = strings.TrimSpace(accessPointID)
	if accessPointID == "" {
		return nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}

	var readerModel any
	if rec.Request.ReaderModel != "" {
		readerModel = rec.Request.ReaderModel
	}
	var ip any
	if rec.Request.IP != "" {
		ip = rec.Request.IP
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO reader_heartbeats(access_point_id, received_at_ms, reader_model, uptime_s, ip)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(access_point_id) DO UPDATE SET
  received_at_ms = excluded.received_at_ms,
  reader_model   = excluded.reader_model,
  uptime_s       = excluded.uptime_s,
  ip             = excluded.ip;
`, accessPointID, rec.ReceivedAt.UTC().UnixMilli(),
			readerModel, rec.Request.UptimeSeconds, ip); err != nil {
			return fmt.Errorf("UpsertHeartbeat %s: %w", accessPointID, err)
		}
		return nil
	})
}

func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM reader_heartbeats WHERE received_at_ms < ?;`,
			cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("PruneOlderThan rows: %w", err)
		}
		return nil
	})
	return deleted, err
}
