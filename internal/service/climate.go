package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	bridge "daikin_bridge"
	"daikin_bridge/internal/cache"
	"daikin_bridge/internal/logger"
	"daikin_bridge/internal/repository"
	"daikin_bridge/internal/transport"
)

// DeviceController is the slice of the transport client the command
// executor needs.
type DeviceController interface {
	SetPower(ctx context.Context, on bool) error
	SetMode(ctx context.Context, mode string) error
	SetFanMode(ctx context.Context, mode, fan string) error
	SetSwingMode(ctx context.Context, mode, swing string) error
	WriteTargetTemperature(ctx context.Context, mode string, temp float64) error
	ReadTargetTemperature(ctx context.Context, mode string) (float64, error)
}

// ClimateConfig tunes the set-point resolution search. The unit's
// clipping bias is firmware-dependent, so the probe list and bounds are
// configuration rather than constants.
type ClimateConfig struct {
	MinTemp      float64   // search floor, °C
	MaxTemp      float64   // search ceiling, °C
	Step         float64   // device-native increment, °C
	QuickOffsets []float64 // probed in order before the linear sweep
	MaxAttempts  int       // hard cap on write+read round trips
}

// DefaultClimateConfig matches the BRP084 units observed so far.
func DefaultClimateConfig() ClimateConfig {
	return ClimateConfig{
		MinTemp:      16.0,
		MaxTemp:      30.0,
		Step:         0.5,
		QuickOffsets: []float64{0.5, 1.0, -0.5, -1.0},
		MaxAttempts:  10,
	}
}

var (
	errNoSetpointInMode = errors.New("current mode has no settable temperature")
	errDeviceOff        = errors.New("unit is powered off")

	// ErrTemperatureUnresolvable marks an exhausted set-point search.
	// The wrapped UnresolvableError carries the best-effort value.
	ErrTemperatureUnresolvable = errors.New("set-point search exhausted")
)

// UnresolvableError reports a search that ran out of round trips
// without the unit confirming any probed value. LastObserved is the
// set-point the unit reported last, which callers may adopt as the new
// authoritative state instead of failing the user.
type UnresolvableError struct {
	Requested    float64
	LastObserved float64
	RoundTrips   int
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("no accepted set-point near %.1f°C after %d round trips (unit reports %.1f°C)",
		e.Requested, e.RoundTrips, e.LastObserved)
}

func (e *UnresolvableError) Unwrap() error { return ErrTemperatureUnresolvable }

// ClimateService translates high-level intents into device writes. The
// set-point search is serialized per unit so two searches never
// interleave their probe writes and mis-attribute read-backs.
type ClimateService struct {
	device DeviceController
	coord  *cache.Coordinator
	events repository.EventRepo
	log    *logger.Logger
	cfg    ClimateConfig

	searchMu sync.Mutex
}

func NewClimateService(device DeviceController, coord *cache.Coordinator, events repository.EventRepo, log *logger.Logger, cfg ClimateConfig) *ClimateService {
	if cfg.Step <= 0 {
		cfg = DefaultClimateConfig()
	}
	return &ClimateService{device: device, coord: coord, events: events, log: log, cfg: cfg}
}

// matchEpsilon decides when a read-back equals the attempted write.
const matchEpsilon = 0.01

// SetPower issues exactly one write; failure surfaces verbatim and no
// refresh is forced, the scheduled one reconciles the cache.
func (s *ClimateService) SetPower(ctx context.Context, on bool) error {
	if err := s.device.SetPower(ctx, on); err != nil {
		return err
	}
	s.journal(ctx, "POWER", fmt.Sprintf("Power set to %v", on), map[string]any{"on": on})
	return nil
}

// SetMode switches the operating mode. OFF maps to the power switch;
// any real mode powers the unit on first, the way the firmware expects.
func (s *ClimateService) SetMode(ctx context.Context, mode string) error {
	if mode == bridge.ModeOff {
		if err := s.device.SetPower(ctx, false); err != nil {
			return err
		}
		s.journal(ctx, "MODE_CHANGE", "Mode changed to OFF", nil)
		return nil
	}

	if err := s.device.SetPower(ctx, true); err != nil {
		return err
	}
	if err := s.device.SetMode(ctx, mode); err != nil {
		return err
	}
	s.journal(ctx, "MODE_CHANGE", "Mode changed to "+mode, map[string]any{"mode": mode})
	return nil
}

// SetFanMode issues one fan-rate write for the active mode.
func (s *ClimateService) SetFanMode(ctx context.Context, fan string) error {
	mode, err := s.activeMode(ctx)
	if err != nil {
		return err
	}
	if err := s.device.SetFanMode(ctx, mode, fan); err != nil {
		return err
	}
	s.journal(ctx, "FAN_CHANGE", "Fan set to "+fan, map[string]any{"fan": fan, "mode": mode})
	return nil
}

// SetSwingMode issues one swing write (both axes) for the active mode.
func (s *ClimateService) SetSwingMode(ctx context.Context, swing string) error {
	mode, err := s.activeMode(ctx)
	if err != nil {
		return err
	}
	if err := s.device.SetSwingMode(ctx, mode, swing); err != nil {
		return err
	}
	s.journal(ctx, "SWING_CHANGE", "Swing set to "+swing, map[string]any{"swing": swing, "mode": mode})
	return nil
}

// SetTemperature resolves the set-point the unit actually accepts for
// the requested value. The unit clips requests to its own allowed
// values without reporting that it did, so after the direct write the
// search probes a short list of common offsets, then sweeps outward in
// device steps, each probe being a full write+read round trip. The
// total number of round trips never exceeds cfg.MaxAttempts.
func (s *ClimateService) SetTemperature(ctx context.Context, requested float64) (bridge.TemperatureResult, error) {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	mode, err := s.activeMode(ctx)
	if err != nil {
		return bridge.TemperatureResult{}, err
	}
	switch mode {
	case bridge.ModeHeat, bridge.ModeCool, bridge.ModeAuto:
	default:
		return bridge.TemperatureResult{}, fmt.Errorf("%w (mode %s)", errNoSetpointInMode, mode)
	}

	// A request closer to the current set-point than one device step is
	// already in effect as far as the unit can represent it; no search.
	// An exactly-equal request still goes through the direct write+read
	// below so the caller gets a confirmed round trip.
	if snap, ok := s.coord.Snapshot(); ok && snap.TargetTemperature > 0 {
		diff := math.Abs(requested - snap.TargetTemperature)
		if diff >= matchEpsilon && diff < s.cfg.Step {
			res := bridge.TemperatureResult{
				Requested: requested,
				Accepted:  snap.TargetTemperature,
				Adjusted:  true,
				Message: fmt.Sprintf("Requested %.1f°C is within one device step of the current %.1f°C set-point",
					requested, snap.TargetTemperature),
			}
			s.journalTemperature(ctx, res)
			return res, nil
		}
	}

	result, err := s.resolveSetpoint(ctx, mode, requested)
	if err != nil {
		return bridge.TemperatureResult{}, err
	}

	s.journalTemperature(ctx, result)

	// One converging refresh for the whole search, not one per probe.
	if _, err := s.coord.ForceRefresh(ctx); err != nil {
		s.log.Errorw("post_command_refresh_failed", "err", err)
	}
	return result, nil
}

// resolveSetpoint runs the bounded probe sequence. Each probe writes a
// candidate and reads the resulting set-point straight from the unit
// (never the cache); a probe succeeds when the read-back equals the
// written value. Candidate order: the request itself, the quick offset
// list, then an alternating outward sweep in device steps.
func (s *ClimateService) resolveSetpoint(ctx context.Context, mode string, requested float64) (bridge.TemperatureResult, error) {
	var (
		roundTrips   int
		lastObserved float64
		haveObserved bool
		tried        = map[int]bool{}
	)

	probe := func(candidate float64) (float64, bool, error) {
		roundTrips++
		writeErr := s.device.WriteTargetTemperature(ctx, mode, candidate)
		if writeErr != nil && !errors.Is(writeErr, transport.ErrRejected) {
			return 0, false, writeErr
		}
		readBack, err := s.device.ReadTargetTemperature(ctx, mode)
		if err != nil {
			return 0, false, err
		}
		lastObserved = readBack
		haveObserved = true
		if writeErr != nil {
			// Unit refused the write outright; the read-back only
			// tells us where it stayed.
			return readBack, false, nil
		}
		return readBack, math.Abs(readBack-candidate) < matchEpsilon, nil
	}

	for _, candidate := range s.candidates(requested) {
		if roundTrips >= s.cfg.MaxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return bridge.TemperatureResult{}, err
		}
		key := int(math.Round(candidate / s.cfg.Step))
		if tried[key] {
			continue
		}
		tried[key] = true

		// Snap onto the device grid before writing. The wire encoding
		// only carries multiples of Step, so the read-back has to be
		// compared against the value that actually went out, not the raw
		// off-grid candidate.
		candidate = float64(key) * s.cfg.Step

		readBack, matched, err := probe(candidate)
		if err != nil {
			return bridge.TemperatureResult{}, err
		}
		if matched {
			adjusted := math.Abs(readBack-requested) >= matchEpsilon
			res := bridge.TemperatureResult{
				Requested:  requested,
				Accepted:   readBack,
				Adjusted:   adjusted,
				RoundTrips: roundTrips,
			}
			if adjusted {
				res.Message = fmt.Sprintf("Temperature adjusted from %.1f°C to %.1f°C (nearest accepted)",
					requested, readBack)
			}
			return res, nil
		}
		s.log.Debugw("setpoint_probe_mismatch", "candidate", candidate, "read_back", readBack, "round_trips", roundTrips)
	}

	if !haveObserved {
		if snap, ok := s.coord.Snapshot(); ok {
			lastObserved = snap.TargetTemperature
		}
	}
	return bridge.TemperatureResult{}, &UnresolvableError{
		Requested:    requested,
		LastObserved: lastObserved,
		RoundTrips:   roundTrips,
	}
}

// candidates yields the probe order: direct request, quick offsets,
// then step increments alternating outward. Raw values collapse onto
// grid points when written, so near-duplicates are filtered by the
// caller's tried-set. The list is generous; MaxAttempts truncates it.
func (s *ClimateService) candidates(requested float64) []float64 {
	out := []float64{requested}
	for _, off := range s.cfg.QuickOffsets {
		if c := requested + off; s.inBounds(c) {
			out = append(out, c)
		}
	}
	for i := 1; i <= s.cfg.MaxAttempts; i++ {
		delta := float64(i) * s.cfg.Step
		if c := requested + delta; s.inBounds(c) {
			out = append(out, c)
		}
		if c := requested - delta; s.inBounds(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *ClimateService) inBounds(t float64) bool {
	return t >= s.cfg.MinTemp && t <= s.cfg.MaxTemp
}

// activeMode reads the operating mode from the cached snapshot,
// refreshing once when the cache is still empty.
func (s *ClimateService) activeMode(ctx context.Context) (string, error) {
	snap, ok := s.coord.Snapshot()
	if !ok {
		var err error
		snap, err = s.coord.Refresh(ctx)
		if err != nil {
			return "", err
		}
	}
	if snap.Mode == bridge.ModeOff {
		return "", errDeviceOff
	}
	return snap.Mode, nil
}

func (s *ClimateService) journalTemperature(ctx context.Context, res bridge.TemperatureResult) {
	s.journal(ctx, "SET_TEMPERATURE", fmt.Sprintf("Set-point resolved to %.1f°C", res.Accepted), map[string]any{
		"requested":   res.Requested,
		"accepted":    res.Accepted,
		"adjusted":    res.Adjusted,
		"round_trips": res.RoundTrips,
	})
}

// journal appends to the event log; journal failures are logged, never
// turned into command failures.
func (s *ClimateService) journal(ctx context.Context, typ, msg string, meta map[string]any) {
	if s.events == nil {
		return
	}
	err := s.events.Append(ctx, bridge.DeviceEvent{Type: typ, Description: msg, Metadata: meta})
	if err != nil {
		s.log.Errorw("event_journal_failed", "type", typ, "err", err)
	}
}
