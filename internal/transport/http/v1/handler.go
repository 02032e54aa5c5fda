// Package v1 provides the HTTP handlers of the runs API.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/panelsim/internal/domain"
	"github.com/xiaot623/panelsim/internal/service"
)

// Version is reported by /health.
const Version = "0.1.0"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/runs", h.CreateRun)
	api.GET("/runs/:run_id", h.GetRun)
	api.GET("/runs/:run_id/download", h.DownloadRun)
	api.GET("/runs/:run_id/preview", h.PreviewRun)
	api.GET("/runs/:run_id/events", h.GetRunEvents)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Details []string         `json:"details,omitempty"`
	RunID   string           `json:"run_id,omitempty"`
	Status  domain.RunStatus `json:"status,omitempty"`
}

// writeError maps service errors to status codes.
func (h *Handler) writeError(c echo.Context, runID string, err error) error {
	var verr *domain.ValidationError
	var notReady *domain.NotReadyError

	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Details: verr.Violations,
		})
	case errors.Is(err, domain.ErrRunNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", RunID: runID})
	case errors.As(err, &notReady):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:  "not_ready",
			RunID:  runID,
			Status: notReady.Status,
		})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("run_id", runID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
}
