package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	bridge "daikin_bridge"
	"daikin_bridge/internal/logger"
	"daikin_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockClimate struct {
	powerErr error
	modeErr  error
	fanErr   error
	swingErr error
	tempRes  bridge.TemperatureResult
	tempErr  error

	lastPower float64 // -1 unset, 0 off, 1 on
	lastMode  string
	lastFan   string
	lastSwing string
	lastTemp  float64
	tempCalls int
}

func (m *mockClimate) SetPower(ctx context.Context, on bool) error {
	if on {
		m.lastPower = 1
	} else {
		m.lastPower = 0
	}
	return m.powerErr
}
func (m *mockClimate) SetMode(ctx context.Context, mode string) error {
	m.lastMode = mode
	return m.modeErr
}
func (m *mockClimate) SetFanMode(ctx context.Context, fan string) error {
	m.lastFan = fan
	return m.fanErr
}
func (m *mockClimate) SetSwingMode(ctx context.Context, swing string) error {
	m.lastSwing = swing
	return m.swingErr
}
func (m *mockClimate) SetTemperature(ctx context.Context, requested float64) (bridge.TemperatureResult, error) {
	m.tempCalls++
	m.lastTemp = requested
	return m.tempRes, m.tempErr
}

type mockMonitoring struct {
	state      bridge.DeviceSnapshot
	err        error
	refreshed  int
	refreshErr error
}

func (m *mockMonitoring) CurrentState(ctx context.Context) (bridge.DeviceSnapshot, error) {
	return m.state, m.err
}
func (m *mockMonitoring) RefreshState(ctx context.Context) (bridge.DeviceSnapshot, error) {
	m.refreshed++
	if m.refreshErr != nil {
		return bridge.DeviceSnapshot{}, m.refreshErr
	}
	return m.state, nil
}

type mockEventLog struct {
	resp     []bridge.DeviceEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]bridge.DeviceEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockStream struct{}

func (mockStream) Subscribe() (<-chan bridge.DeviceSnapshot, func()) {
	ch := make(chan bridge.DeviceSnapshot)
	return ch, func() {}
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, mockStream{}, logger.Nop())
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func performRequest(router *gin.Engine, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}
