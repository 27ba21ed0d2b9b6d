package handlers

import (
	"errors"
	"net/http"

	"daikin_bridge/internal/service"
	"daikin_bridge/internal/transport"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK         = "ok"
	statusApplied    = "applied"
	statusResolved   = "resolved"
	statusUnresolved = "unresolved"

	errGetState        = "failed to load state"
	errRefreshState    = "failed to refresh state"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// deviceErrorStatus maps transport failures onto gateway-style HTTP
// codes; anything else is the caller's fault.
func deviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, transport.ErrNetwork), errors.Is(err, transport.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.CurrentState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errGetState, "get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) refreshState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.RefreshState(ctx)
	if err != nil {
		h.logAndJSONError(c, deviceErrorStatus(err), errRefreshState, "refresh_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Request DTOs for the set-commands.
type powerRequest struct {
	On bool `json:"on"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // OFF | HEAT | COOL | AUTO | FAN | DRY
}

type fanRequest struct {
	Fan string `json:"fan" binding:"required"` // auto | quiet | level_1 .. level_5
}

type swingRequest struct {
	Swing string `json:"swing" binding:"required"` // off | vertical | horizontal | both
}

type temperatureRequest struct {
	Temperature float64 `json:"temperature" binding:"required"` // °C
}

func (h *Handler) setPower(c *gin.Context) {
	var req powerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Climate.SetPower(c.Request.Context(), req.On); err != nil {
		h.logAndJSONError(c, deviceErrorStatus(err), err.Error(), "set_power_failed", err, "on", req.On)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "on": req.On})
}

func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Climate.SetMode(c.Request.Context(), req.Mode); err != nil {
		h.logAndJSONError(c, deviceErrorStatus(err), err.Error(), "set_mode_failed", err, "mode", req.Mode)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "mode": req.Mode})
}

func (h *Handler) setFan(c *gin.Context) {
	var req fanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Climate.SetFanMode(c.Request.Context(), req.Fan); err != nil {
		h.logAndJSONError(c, deviceErrorStatus(err), err.Error(), "set_fan_failed", err, "fan", req.Fan)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "fan": req.Fan})
}

func (h *Handler) setSwing(c *gin.Context) {
	var req swingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Climate.SetSwingMode(c.Request.Context(), req.Swing); err != nil {
		h.logAndJSONError(c, deviceErrorStatus(err), err.Error(), "set_swing_failed", err, "swing", req.Swing)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "swing": req.Swing})
}

// setTemperature distinguishes three outcomes: resolved (possibly
// adjusted by the unit), unresolved-but-soft (search exhausted, the
// unit's last reported value stands), and hard transport failure.
func (h *Handler) setTemperature(c *gin.Context) {
	var req temperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	res, err := h.services.Climate.SetTemperature(c.Request.Context(), req.Temperature)
	if err != nil {
		var unresolved *service.UnresolvableError
		if errors.As(err, &unresolved) {
			// Not a hard failure: every probe reached the unit, it just
			// never confirmed a value. Report best effort with a warning.
			c.JSON(http.StatusOK, gin.H{
				"status":        statusUnresolved,
				"requested":     unresolved.Requested,
				"last_observed": unresolved.LastObserved,
				"round_trips":   unresolved.RoundTrips,
				"warning":       unresolved.Error(),
			})
			return
		}
		h.logAndJSONError(c, deviceErrorStatus(err), err.Error(), "set_temperature_failed", err, "requested", req.Temperature)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": statusResolved,
		"result": res,
	})
}
