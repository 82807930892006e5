package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
	"github.com/kuilinga/terminal-gateway/internal/auth"
	"github.com/kuilinga/terminal-gateway/internal/liveness"
	"github.com/kuilinga/terminal-gateway/usecase"
)

const callerKey = "caller"

// CommandDispatcher sends administrative commands on behalf of an operator
type CommandDispatcher interface {
	SendToDevice(ctx context.Context, caller usecase.Caller, deviceID string, command entities.CommandType) (*usecase.CommandReceipt, error)
	SendCodeToDevice(ctx context.Context, caller usecase.Caller, deviceID, code string) (*usecase.CommandReceipt, error)
	SendBulk(ctx context.Context, caller usecase.Caller, deviceIDs []string, command entities.CommandType) *usecase.BulkCommandResult
}

// LivenessChecker exposes the liveness monitor to operators
type LivenessChecker interface {
	CheckOnce(ctx context.Context) (int, error)
	Status() liveness.Status
}

// Realtime serves live attendance subscribers
type Realtime interface {
	ServeSubscriber(c echo.Context) error
	SubscriberCount() int
}

// BrokerStatus reports the MQTT connection state
type BrokerStatus interface {
	IsConnected() bool
}

// Dependencies groups what the HTTP boundary needs
type Dependencies struct {
	Commands CommandDispatcher
	Liveness LivenessChecker
	Realtime Realtime
	Broker   BrokerStatus
	Tokens   *auth.TokenManager
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handlers{deps: deps, logger: deps.Logger}

	// Health check
	e.GET("/health", h.health)

	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes, operator token required
	v1 := e.Group("/api/v1", requireOperator(deps.Tokens, deps.Logger))

	v1.POST("/devices/:id/command", h.sendCommand)
	v1.POST("/devices/:id/raw-command", h.sendRawCommand)
	v1.POST("/devices/bulk-command", h.sendBulkCommand)
	v1.POST("/devices/status-check", h.statusCheck)
	v1.GET("/devices/status-monitor", h.statusMonitor)

	// Live attendance feed
	if deps.Realtime != nil {
		e.GET("/ws/attendance/realtime", deps.Realtime.ServeSubscriber)
	}
}

type handlers struct {
	deps   Dependencies
	logger *zap.Logger
}

func (h *handlers) health(c echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Service: "terminal-gateway",
	}
	if h.deps.Broker != nil {
		resp.MQTTConnected = h.deps.Broker.IsConnected()
		if !resp.MQTTConnected {
			resp.Status = "degraded"
		}
	}
	if h.deps.Realtime != nil {
		resp.Subscribers = h.deps.Realtime.SubscriberCount()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) sendCommand(c echo.Context) error {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	command, err := entities.ParseCommandType(req.Command)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "unknown_command",
			Message: err.Error(),
		})
	}

	receipt, err := h.deps.Commands.SendToDevice(c.Request().Context(), callerFrom(c), c.Param("id"), command)
	if err != nil {
		return h.commandError(c, err)
	}
	return c.JSON(http.StatusOK, receipt)
}

func (h *handlers) sendRawCommand(c echo.Context) error {
	var req RawCommandRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	receipt, err := h.deps.Commands.SendCodeToDevice(c.Request().Context(), callerFrom(c), c.Param("id"), strings.TrimSpace(req.Code))
	if err != nil {
		return h.commandError(c, err)
	}
	return c.JSON(http.StatusOK, receipt)
}

func (h *handlers) sendBulkCommand(c echo.Context) error {
	var req BulkCommandRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if len(req.DeviceIDs) == 0 {
		return badRequest(c, "device_ids must not be empty")
	}
	command, err := entities.ParseCommandType(req.Command)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "unknown_command",
			Message: err.Error(),
		})
	}

	result := h.deps.Commands.SendBulk(c.Request().Context(), callerFrom(c), req.DeviceIDs, command)
	return c.JSON(http.StatusOK, result)
}

func (h *handlers) statusCheck(c echo.Context) error {
	marked, err := h.deps.Liveness.CheckOnce(c.Request().Context())
	if err != nil {
		h.logger.Error("Manual liveness sweep failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "status_check_failed",
			Message: "Failed to check device status",
		})
	}
	return c.JSON(http.StatusOK, StatusCheckResponse{
		Success:       true,
		MarkedOffline: marked,
		CheckedAt:     time.Now().UTC(),
	})
}

func (h *handlers) statusMonitor(c echo.Context) error {
	return c.JSON(http.StatusOK, h.deps.Liveness.Status())
}

// commandError maps dispatcher errors to HTTP statuses
func (h *handlers) commandError(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, usecase.ErrTransportUnavailable):
		status, code = http.StatusServiceUnavailable, "mqtt_unavailable"
	case errors.Is(err, usecase.ErrPublishFailed):
		status, code = http.StatusBadGateway, "publish_failed"
	case errors.Is(err, usecase.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, repositories.ErrDeviceNotFound):
		status, code = http.StatusNotFound, "device_not_found"
	case errors.Is(err, usecase.ErrUnknownCommand),
		errors.Is(err, usecase.ErrInvalidCode),
		errors.Is(err, usecase.ErrUnsupportedDelivery):
		status, code = http.StatusUnprocessableEntity, "invalid_command"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Command request failed", zap.String("deviceID", c.Param("id")), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

// requireOperator validates the bearer token and stores the caller on the context
func requireOperator(tokens *auth.TokenManager, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, found := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := tokens.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			c.Set(callerKey, usecase.Caller{
				UserID:         claims.UserID,
				OrganizationID: claims.OrganizationID,
				Elevated:       claims.Elevated(),
			})
			return next(c)
		}
	}
}

func callerFrom(c echo.Context) usecase.Caller {
	caller, _ := c.Get(callerKey).(usecase.Caller)
	return caller
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}
