package service

import (
	"context"
	"errors"

	bridge "daikin_bridge"
	"daikin_bridge/internal/cache"
)

// ErrNoState means the unit has never been reached and nothing is
// persisted either.
var ErrNoState = errors.New("no device state available yet")

type MonitoringService struct {
	coord *cache.Coordinator
}

func NewMonitoringService(coord *cache.Coordinator) *MonitoringService {
	return &MonitoringService{coord: coord}
}

// CurrentState returns the cached snapshot without touching the unit.
// When the cache is still empty (fresh start, unit unreachable, nothing
// persisted) it falls back to one synchronous refresh.
func (s *MonitoringService) CurrentState(ctx context.Context) (bridge.DeviceSnapshot, error) {
	if snap, ok := s.coord.Snapshot(); ok {
		return snap, nil
	}
	snap, err := s.coord.Refresh(ctx)
	if err != nil {
		return bridge.DeviceSnapshot{}, errors.Join(ErrNoState, err)
	}
	return snap, nil
}

// RefreshState fetches live state now. Unlike the scheduled refresh,
// failures here propagate to the caller.
func (s *MonitoringService) RefreshState(ctx context.Context) (bridge.DeviceSnapshot, error) {
	return s.coord.Refresh(ctx)
}
