package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cardgate/cardgate/internal/cardgate/store"
	"github.com/cardgate/cardgate/internal/cardgate/types"
)

// HeartbeatService records reader liveness. The directory is the
// authority on which access points exist; heartbeats from unknown
// points are still stored so a misconfigured reader shows up somewhere,
// but the response flags it as unknown.
type HeartbeatService struct {
	heartbeats store.HeartbeatStore
	directory  store.Directory
}

func NewHeartbeatService(hs store.HeartbeatStore, dir store.Directory) *HeartbeatService {
	return &HeartbeatService{heartbeats: hs, directory: dir}
}

func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	accessPointID := strings.TrimSpace(req.AccessPointID)
	if accessPointID == "" {
		return types.HeartbeatResponse{}, ErrInvalidAccessPointID
	}

	known := true
	if _, err := s.directory.AccessPointByID(ctx, accessPointID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return types.HeartbeatResponse{}, err
		}
		known = false
	}

	rec := store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC(),
		Request:    req,
	}
	if err := s.heartbeats.UpsertHeartbeat(ctx, accessPointID, rec); err != nil {
		return types.HeartbeatResponse{}, err
	}

	return types.HeartbeatResponse{
		OK:            true,
		Known:         known,
		AccessPointID: accessPointID,
		ServerTime:    time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
