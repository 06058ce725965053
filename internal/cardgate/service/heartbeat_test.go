package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardgate/cardgate/internal/cardgate/service"
	"github.com/cardgate/cardgate/internal/cardgate/store"
	"github.com/cardgate/cardgate/internal/cardgate/store/memory"
	"github.com/cardgate/cardgate/internal/cardgate/types"
)

func TestHeartbeat_KnownAccessPoint(t *testing.T) {
	dir := memory.NewDirectory()
	hs := memory.NewHeartbeatStore()
	require.NoError(t, dir.PutAccessPoint(context.Background(), store.AccessPoint{
		ID: "ap1", BuildingID: "b", Name: "Lobby", RequiredLevel: 1,
	}))

	svc := service.NewHeartbeatService(hs, dir)
	resp, err := svc.Record(context.Background(), types.HeartbeatRequest{
		AccessPointID: "ap1",
		UptimeSeconds: 42,
	})
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.True(t, resp.Known)

	_, seen := hs.LastSeen("ap1")
	assert.True(t, seen)
}

func TestHeartbeat_UnknownAccessPointStillStored(t *testing.T) {
	dir := memory.NewDirectory()
	hs := memory.NewHeartbeatStore()

	svc := service.NewHeartbeatService(hs, dir)
	resp, err := svc.Record(context.Background(), types.HeartbeatRequest{
		AccessPointID: "mystery-reader",
	})
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.False(t, resp.Known)

	_, seen := hs.LastSeen("mystery-reader")
	assert.True(t, seen, "misconfigured readers should still surface")
}

func TestHeartbeat_MissingAccessPointID(t *testing.T) {
	svc := service.NewHeartbeatService(memory.NewHeartbeatStore(), memory.NewDirectory())

	_, err := svc.Record(context.Background(), types.HeartbeatRequest{})
	assert.ErrorIs(t, err, service.ErrInvalidAccessPointID)
}

func TestHeartbeatPruner_DisabledWhenRetentionZero(t *testing.T) {
	pruner := service.NewHeartbeatPruner(memory.NewHeartbeatStore(), service.PrunerConfig{
		RetentionDays: 0,
		IntervalHours: 1,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner.Start(ctx)
	// Stop should return immediately.
	pruner.Stop()
}

func TestHeartbeatPruner_PrunesOldRecords(t *testing.T) {
	hs := memory.NewHeartbeatStore()
	ctx := context.Background()

	old := store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -40),
		Request:    types.HeartbeatRequest{AccessPointID: "ap-old"},
	}
	require.NoError(t, hs.UpsertHeartbeat(ctx, "ap-old", old))

	recent := store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -1),
		Request:    types.HeartbeatRequest{AccessPointID: "ap-recent"},
	}
	require.NoError(t, hs.UpsertHeartbeat(ctx, "ap-recent", recent))

	deleted, err := hs.PruneOlderThan(ctx, time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, seen := hs.LastSeen("ap-old")
	assert.False(t, seen)
	_, seen = hs.LastSeen("ap-recent")
	assert.True(t, seen)
}
