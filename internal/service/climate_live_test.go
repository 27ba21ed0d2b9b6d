package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	bridge "daikin_bridge"
	"daikin_bridge/internal/cache"
	"daikin_bridge/internal/logger"
	"daikin_bridge/internal/transport"
)

const liveStatusPath = "/dsiot/edge/adr_0100.dgc_status"

// liveUnit emulates the firmware's multireq endpoint, so the search
// runs through the real wire encoding instead of a stubbed controller.
// The COOL set-point is stored in half degrees exactly as written, with
// an optional clamp mimicking firmware clipping.
type liveUnit struct {
	mu      sync.Mutex
	temp    int // half degrees, as on the wire
	minTemp int // clamp floor in half degrees, 0 = accept everything
	writes  int
}

type wireNode struct {
	PN  string     `json:"pn"`
	PV  string     `json:"pv"`
	PCH []wireNode `json:"pch"`
}

func findLeaf(n wireNode, pn string) (string, bool) {
	if n.PN == pn {
		return n.PV, true
	}
	for _, child := range n.PCH {
		if pv, ok := findLeaf(child, pn); ok {
			return pv, true
		}
	}
	return "", false
}

func (u *liveUnit) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()

		if r.Method == http.MethodPut {
			var req struct {
				Requests []struct {
					PC wireNode `json:"pc"`
				} `json:"requests"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				for _, sub := range req.Requests {
					if pv, ok := findLeaf(sub.PC, "p_02"); ok {
						if v, err := strconv.ParseInt(pv, 16, 32); err == nil {
							u.writes++
							u.temp = int(v)
							if u.minTemp > 0 && u.temp < u.minTemp {
								u.temp = u.minTemp
							}
						}
					}
				}
			}
			fmt.Fprintf(w, `{"responses":[{"fr":"%s","rsc":2004}]}`, liveStatusPath)
			return
		}
		fmt.Fprintf(w, `{"responses":[{"fr":"%s","rsc":2000,"pc":{"pn":"dgc_status","pch":[{"pn":"e_1002","pch":[{"pn":"e_3001","pch":[{"pn":"p_02","pv":"%02x"}]}]}]}}]}`,
			liveStatusPath, u.temp)
	}
}

func (u *liveUnit) state() (temp, writes int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.temp, u.writes
}

func newLiveFixture(t *testing.T, unit *liveUnit) *ClimateService {
	t.Helper()
	srv := httptest.NewServer(unit.handler())
	t.Cleanup(srv.Close)
	device := transport.NewClient(strings.TrimPrefix(srv.URL, "http://"), 2*time.Second, logger.Nop())

	coord := cache.New(fetcherFunc(func(ctx context.Context) (bridge.DeviceSnapshot, error) {
		temp, _ := unit.state()
		return bridge.DeviceSnapshot{
			Power:             true,
			Mode:              bridge.ModeCool,
			TargetTemperature: float64(temp) / 2,
			SensorReadings:    map[string]float64{},
			FetchedAt:         time.Now().UTC(),
		}, nil
	}), logger.Nop(), nil)
	coord.Seed(bridge.DeviceSnapshot{
		Power:             true,
		Mode:              bridge.ModeCool,
		TargetTemperature: 25,
		SensorReadings:    map[string]float64{},
		FetchedAt:         time.Now().UTC(),
	})
	return NewClimateService(device, coord, nil, logger.Nop(), DefaultClimateConfig())
}

func TestSetTemperatureOffGridOverWire(t *testing.T) {
	unit := &liveUnit{temp: 50} // 25.0°C
	s := newLiveFixture(t, unit)

	res, err := s.SetTemperature(context.Background(), 21.3)
	if err != nil {
		t.Fatalf("SetTemperature: %v", err)
	}
	if res.Accepted != 21.5 {
		t.Errorf("accepted = %v, want 21.5", res.Accepted)
	}
	if !res.Adjusted {
		t.Error("off-grid request must be flagged adjusted")
	}
	if res.RoundTrips != 1 {
		t.Errorf("round trips = %d, want 1 against a cooperative unit", res.RoundTrips)
	}
	temp, writes := unit.state()
	if writes != 1 {
		t.Errorf("unit saw %d writes, want 1", writes)
	}
	if temp != 43 { // 0x2b, 21.5°C
		t.Errorf("unit set-point = %d half degrees, want 43", temp)
	}
}

func TestSetTemperatureOffGridOverWireClipped(t *testing.T) {
	unit := &liveUnit{temp: 50, minTemp: 44} // firmware floor at 22.0°C
	s := newLiveFixture(t, unit)

	res, err := s.SetTemperature(context.Background(), 21.3)
	if err != nil {
		t.Fatalf("SetTemperature: %v", err)
	}
	if res.Accepted != 22 {
		t.Errorf("accepted = %v, want the 22.0 floor", res.Accepted)
	}
	if res.RoundTrips != 2 {
		t.Errorf("round trips = %d, want 2 (direct then +0.5)", res.RoundTrips)
	}
}
