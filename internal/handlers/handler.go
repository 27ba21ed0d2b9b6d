package handlers

import (
	bridge "daikin_bridge"
	"daikin_bridge/internal/logger"
	"daikin_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// StateStream is the change-notification side of the state cache; the
// WebSocket endpoint feeds from it.
type StateStream interface {
	Subscribe() (<-chan bridge.DeviceSnapshot, func())
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	states   StateStream
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, states StateStream, log *logger.Logger) *Handler {
	return &Handler{services: services, states: states, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// State push over WebSocket (HTTP upgrade), same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.bearerAuth)
	{
		h.registerAirconRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerAirconRoutes(api *gin.RouterGroup) {
	ac := api.Group("/aircon")
	{
		ac.GET("/state", h.getState)
		ac.POST("/state/refresh", h.refreshState)
		ac.POST("/power", h.setPower)
		ac.POST("/mode", h.setMode)
		ac.POST("/fan", h.setFan)
		ac.POST("/swing", h.setSwing)
		// Body example: {"temperature":21.5}
		ac.POST("/temperature", h.setTemperature)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
