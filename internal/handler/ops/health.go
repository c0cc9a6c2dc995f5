package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"optionscan/internal/domain/repository"
)

// GatewayStatus reports broker gateway connectivity.
type GatewayStatus interface {
	Connected() bool
	Pending() int
}

// Handler serves liveness and readiness endpoints for the scanner process.
type Handler struct {
	gateway GatewayStatus
	store   repository.SignalStore // nil when persistence is disabled
}

func NewHandler(gateway GatewayStatus, store repository.SignalStore) *Handler {
	return &Handler{gateway: gateway, store: store}
}

// RegisterRoutes wires the ops endpoints.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
	e.GET("/readyz", h.readyz)
}

type healthResponse struct {
	Status  string `json:"status"`
	Gateway string `json:"gateway"`
	Pending int    `json:"pending"`
	Store   string `json:"store,omitempty"`
}

// healthz is a liveness probe: the process is up and serving.
func (h *Handler) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

// readyz is a readiness probe: gateway connected and store reachable.
func (h *Handler) readyz(c echo.Context) error {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK

	if h.gateway != nil {
		resp.Pending = h.gateway.Pending()
		if h.gateway.Connected() {
			resp.Gateway = "connected"
		} else {
			resp.Gateway = "disconnected"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			resp.Store = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			resp.Store = "ok"
		}
	}

	return c.JSON(code, resp)
}
