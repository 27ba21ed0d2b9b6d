package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	bridge "daikin_bridge"
	"daikin_bridge/internal/logger"
)

// Client talks to one unit over its multireq endpoint. All calls share
// one *http.Client so the underlying connection pool is reused; there
// is no per-call connection setup. The client never retries on its own,
// retry policy belongs to the callers.
type Client struct {
	url  string
	host string
	http *http.Client
	log  *logger.Logger
}

const defaultCallTimeout = 10 * time.Second

// NewClient builds a client for the unit at host (IP or hostname).
// timeout bounds every individual round trip; zero means the default.
func NewClient(host string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Client{
		url:  fmt.Sprintf("http://%s/dsiot/multireq", host),
		host: host,
		http: &http.Client{Timeout: timeout},
		log:  log.WithUnit(host),
	}
}

// do posts a multireq payload and decodes the answer, classifying
// failures into the package error taxonomy.
func (c *Client) do(ctx context.Context, method string, req *multiRequest) (*multiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal multireq: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build multireq request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrProtocol, resp.StatusCode, c.host)
	}

	var decoded multiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := decoded.checkStatus(); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// Ping checks the unit is reachable by reading its identity resource.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, newReadRequest(identityResource))
	return err
}

// DeviceID returns the unit's MAC address, or a host-derived fallback
// when the identity resource is missing or unreadable.
func (c *Client) DeviceID(ctx context.Context) string {
	fallback := "daikin_" + strings.ReplaceAll(c.host, ".", "_")

	resp, err := c.do(ctx, http.MethodPost, newReadRequest(identityResource))
	if err != nil {
		c.log.Infow("device_id_fallback", "host", c.host, "err", err)
		return fallback
	}
	mac, ok := resp.stringValue(identityResource, "adp_i", "mac")
	if !ok || mac == "" {
		return fallback
	}
	return strings.ToLower(mac)
}

// FetchState reads the full status, outdoor and energy resources and
// builds a fresh snapshot.
func (c *Client) FetchState(ctx context.Context) (bridge.DeviceSnapshot, error) {
	resp, err := c.do(ctx, http.MethodPost, newReadRequest(
		statusResourceFiltered,
		outdoorResourceFiltered,
		powerResourceFiltered,
	))
	if err != nil {
		return bridge.DeviceSnapshot{}, err
	}
	return c.decodeSnapshot(resp)
}

func (c *Client) decodeSnapshot(resp *multiResponse) (bridge.DeviceSnapshot, error) {
	snap := bridge.DeviceSnapshot{
		SensorReadings: map[string]float64{},
		FetchedAt:      time.Now().UTC(),
	}

	powerHex, ok := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_A002", "p_01")
	if !ok {
		return bridge.DeviceSnapshot{}, fmt.Errorf("%w: power state missing", ErrProtocol)
	}
	snap.Power = powerHex == "01"

	modeHex, ok := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_3001", "p_01")
	if !ok {
		return bridge.DeviceSnapshot{}, fmt.Errorf("%w: mode missing", ErrProtocol)
	}
	activeMode, ok := modeFromHex[modeHex]
	if !ok {
		return bridge.DeviceSnapshot{}, fmt.Errorf("%w: unknown mode %q", ErrProtocol, modeHex)
	}
	if snap.Power {
		snap.Mode = activeMode
	} else {
		snap.Mode = bridge.ModeOff
	}

	// Set-point, fan and swing are decoded from the active mode even
	// while the unit is powered off; the set-point resolution search
	// needs the read-back either way.
	if attr, hasSetpoint := tempAttrByMode[activeMode]; hasSetpoint {
		if hexVal, found := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_3001", attr); found {
			if temp, err := decodeTemperature(hexVal); err == nil {
				snap.TargetTemperature = temp
			}
		}
	}
	snap.FanMode = c.decodeFanMode(resp, activeMode)
	snap.SwingMode = c.decodeSwingMode(resp, activeMode)

	c.decodeSensors(resp, &snap)
	return snap, nil
}

func (c *Client) decodeFanMode(resp *multiResponse, mode string) string {
	attr, ok := fanAttrByMode[mode]
	if !ok {
		return "" // DRY has no fan setting
	}
	if attr == "p_2A" {
		hexVal, found := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_3003", attr)
		if !found {
			return ""
		}
		return fanFromHexAuto[hexVal]
	}
	hexVal, found := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_3001", attr)
	if !found {
		return ""
	}
	return fanFromHex[hexVal]
}

func (c *Client) decodeSwingMode(resp *multiResponse, mode string) string {
	vAttr, hAttr, ok := swingAttrsForMode(mode)
	if !ok {
		return ""
	}
	vHex, vFound := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_3001", vAttr)
	hHex, hFound := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_3001", hAttr)
	if !vFound && !hFound {
		return ""
	}
	vertical := strings.Contains(vHex, "F")
	horizontal := strings.Contains(hHex, "F")
	switch {
	case vertical && horizontal:
		return bridge.SwingBoth
	case vertical:
		return bridge.SwingVertical
	case horizontal:
		return bridge.SwingHorizontal
	default:
		return bridge.SwingOff
	}
}

// decodeSensors fills in whatever readings the unit reports; missing
// sensors are simply absent from the map, never an error.
func (c *Client) decodeSensors(resp *multiResponse, snap *bridge.DeviceSnapshot) {
	if hexVal, ok := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_A00B", "p_01"); ok {
		if v, err := decodeWholeDegrees(hexVal); err == nil {
			snap.SensorReadings[bridge.SensorInsideTemp] = v
		}
	}
	if hexVal, ok := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_A00B", "p_02"); ok {
		if v, err := decodeWholeDegrees(hexVal); err == nil {
			snap.SensorReadings[bridge.SensorHumidity] = v
		}
	}
	if hexVal, ok := resp.stringValue(outdoorResource, "dgc_status", "e_1003", "e_A00D", "p_01"); ok {
		if v, err := decodeTemperature(hexVal); err == nil {
			snap.SensorReadings[bridge.SensorOutsideTemp] = v
		}
	}
	if v, ok := resp.numberValue(powerResource, "week_power", "today_runtime"); ok {
		snap.SensorReadings[bridge.SensorRuntimeToday] = v
	} else if s, ok := resp.stringValue(powerResource, "week_power", "today_runtime"); ok {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			snap.SensorReadings[bridge.SensorRuntimeToday] = parsed
		}
	}
	if datas, ok := resp.numberSliceValue(powerResource, "week_power", "datas"); ok && len(datas) > 0 {
		snap.SensorReadings[bridge.SensorEnergyToday] = datas[len(datas)-1] / 1000 // Wh -> kWh
	}
}

// ReadTargetTemperature reads back only the set-point for the given
// mode. The resolution search uses this after every probe write instead
// of going through the cache.
func (c *Client) ReadTargetTemperature(ctx context.Context, mode string) (float64, error) {
	attr, ok := tempAttrByMode[mode]
	if !ok {
		return 0, fmt.Errorf("mode %s has no set-point", mode)
	}
	resp, err := c.do(ctx, http.MethodPost, newReadRequest(statusResourceFiltered))
	if err != nil {
		return 0, err
	}
	hexVal, found := resp.stringValue(statusResource, "dgc_status", "e_1002", "e_3001", attr)
	if !found {
		return 0, fmt.Errorf("%w: set-point %s missing", ErrProtocol, attr)
	}
	return decodeTemperature(hexVal)
}

// SetPower turns the unit on or off.
func (c *Client) SetPower(ctx context.Context, on bool) error {
	value := "00"
	if on {
		value = "01"
	}
	return c.write(ctx, Attribute{
		Name: "p_01", Value: value,
		Path: []string{"e_1002", "e_A002"},
		To:   statusResource,
	})
}

// SetMode switches the operating mode. The unit must already be on;
// callers handle the power-on-first sequencing.
func (c *Client) SetMode(ctx context.Context, mode string) error {
	hexVal, ok := modeToHex[mode]
	if !ok {
		return fmt.Errorf("unsupported mode %q", mode)
	}
	return c.write(ctx, Attribute{
		Name: "p_01", Value: hexVal,
		Path: []string{"e_1002", "e_3001"},
		To:   statusResource,
	})
}

// SetFanMode sets the fan rate for the given operating mode.
func (c *Client) SetFanMode(ctx context.Context, mode, fan string) error {
	attr, ok := fanAttrByMode[mode]
	if !ok {
		return fmt.Errorf("mode %s has no fan setting", mode)
	}
	if attr == "p_2A" {
		hexVal, known := fanToHexAuto[fan]
		if !known {
			return fmt.Errorf("unsupported fan mode %q", fan)
		}
		return c.write(ctx, Attribute{
			Name: attr, Value: hexVal,
			Path: []string{"e_1002", "e_3003"},
			To:   statusResource,
		})
	}
	hexVal, known := fanToHex[fan]
	if !known {
		return fmt.Errorf("unsupported fan mode %q", fan)
	}
	return c.write(ctx, Attribute{
		Name: attr, Value: hexVal,
		Path: []string{"e_1002", "e_3001"},
		To:   statusResource,
	})
}

// SetSwingMode sets both swing axes for the given operating mode.
func (c *Client) SetSwingMode(ctx context.Context, mode, swing string) error {
	vAttr, hAttr, ok := swingAttrsForMode(mode)
	if !ok {
		return fmt.Errorf("mode %s has no swing setting", mode)
	}

	vValue, hValue := swingAxisOff, swingAxisOff
	switch swing {
	case bridge.SwingOff:
	case bridge.SwingVertical:
		vValue = swingAxisOn
	case bridge.SwingHorizontal:
		hValue = swingAxisOn
	case bridge.SwingBoth:
		vValue, hValue = swingAxisOn, swingAxisOn
	default:
		return fmt.Errorf("unsupported swing mode %q", swing)
	}

	return c.write(ctx,
		Attribute{Name: vAttr, Value: vValue, Path: []string{"e_1002", "e_3001"}, To: statusResource},
		Attribute{Name: hAttr, Value: hValue, Path: []string{"e_1002", "e_3001"}, To: statusResource},
	)
}

// WriteTargetTemperature issues a single set-point write for the given
// mode. ErrRejected means the unit refused that exact value; the
// resolution search treats that as a failed probe, not a dead link.
func (c *Client) WriteTargetTemperature(ctx context.Context, mode string, temp float64) error {
	attr, ok := tempAttrByMode[mode]
	if !ok {
		return fmt.Errorf("mode %s has no set-point", mode)
	}
	return c.write(ctx, Attribute{
		Name: attr, Value: encodeTemperature(temp),
		Path: []string{"e_1002", "e_3001"},
		To:   statusResource,
	})
}

func (c *Client) write(ctx context.Context, attrs ...Attribute) error {
	req := newWriteRequest(attrs...)
	c.log.Debugw("device_write", "host", c.host, "attrs", len(attrs))
	_, err := c.do(ctx, http.MethodPut, req)
	return err
}
