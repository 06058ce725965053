package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/cardgate/cardgate/internal/cardgate/store"
	sqlitestore "github.com/cardgate/cardgate/internal/cardgate/store/sqlite"
	"github.com/cardgate/cardgate/internal/cardgate/types"
)

func TestHeartbeatStore_UpsertReplacesRow(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)
	ctx := context.Background()

	first := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	if err := hs.UpsertHeartbeat(ctx, "ap1", store.HeartbeatRecord{
		ReceivedAt: first,
		Request:    types.HeartbeatRequest{AccessPointID: "ap1", UptimeSeconds: 10},
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := first.Add(time.Minute)
	if err := hs.UpsertHeartbeat(ctx, "ap1", store.HeartbeatRecord{
		ReceivedAt: second,
		Request:    types.HeartbeatRequest{AccessPointID: "ap1", UptimeSeconds: 70},
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var (
		count      int
		receivedMs int64
		uptime     int64
	)
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reader_heartbeats`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", count)
	}

	if err := conn.QueryRowContext(ctx, `
SELECT received_at_ms, uptime_s FROM reader_heartbeats WHERE access_point_id = ?`,
		"ap1").Scan(&receivedMs, &uptime); err != nil {
		t.Fatalf("query: %v", err)
	}
	if receivedMs != second.UnixMilli() {
		t.Errorf("expected received_at_ms=%d, got %d", second.UnixMilli(), receivedMs)
	}
	if uptime != 70 {
		t.Errorf("expected uptime_s=70, got %d", uptime)
	}
}

func TestHeartbeatStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := hs.UpsertHeartbeat(ctx, "ap-old", store.HeartbeatRecord{
		ReceivedAt: now.AddDate(0, 0, -40),
		Request:    types.HeartbeatRequest{AccessPointID: "ap-old"},
	}); err != nil {
		t.Fatalf("upsert old: %v", err)
	}
	if err := hs.UpsertHeartbeat(ctx, "ap-recent", store.HeartbeatRecord{
		ReceivedAt: now.AddDate(0, 0, -1),
		Request:    types.HeartbeatRequest{AccessPointID: "ap-recent"},
	}); err != nil {
		t.Fatalf("upsert recent: %v", err)
	}

	deleted, err := hs.PruneOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}

	var count int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reader_heartbeats`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining row, got %d", count)
	}
}
