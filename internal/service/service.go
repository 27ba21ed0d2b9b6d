package service

import (
	"context"
	"time"

	bridge "daikin_bridge"
	"daikin_bridge/internal/cache"
	"daikin_bridge/internal/logger"
	"daikin_bridge/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Climate exposes the unit's control operations. SetTemperature runs
// the set-point resolution search and reports what the unit actually
// accepted; the other commands are single fire-and-confirm writes.
type Climate interface {
	SetPower(ctx context.Context, on bool) error
	SetMode(ctx context.Context, mode string) error
	SetFanMode(ctx context.Context, fan string) error
	SetSwingMode(ctx context.Context, swing string) error
	SetTemperature(ctx context.Context, requested float64) (bridge.TemperatureResult, error)
}

// Monitoring exposes read access to the cached device state.
type Monitoring interface {
	CurrentState(ctx context.Context) (bridge.DeviceSnapshot, error)
	RefreshState(ctx context.Context) (bridge.DeviceSnapshot, error)
}

// EventLog exposes the append-only command journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]bridge.DeviceEvent, error)
}

// LogFilter supports journal filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "POWER", "MODE_CHANGE", "FAN_CHANGE", "SWING_CHANGE", "SET_TEMPERATURE", "REFRESH_ERROR"
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Climate
	Monitoring
	EventLog
	Authorization
}

// Deps carries everything the sub-services are wired from.
type Deps struct {
	Repos       *repository.Repository
	Device      DeviceController
	Coordinator *cache.Coordinator
	Log         *logger.Logger
	Climate     ClimateConfig
	Auth        AuthConfig
}

func NewService(d Deps) *Service {
	return &Service{
		Climate:       NewClimateService(d.Device, d.Coordinator, d.Repos.Events, d.Log, d.Climate),
		Monitoring:    NewMonitoringService(d.Coordinator),
		EventLog:      NewEventLogService(d.Repos.Events),
		Authorization: NewAuthService(d.Repos.Auth, d.Auth),
	}
}
