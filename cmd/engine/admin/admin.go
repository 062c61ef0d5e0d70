package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nexum-io/nexum/cmd/engine/service"
	"github.com/nexum-io/nexum/common/bootstrap"
	"github.com/nexum-io/nexum/common/models"
)

// Handler serves the read-only admin surface. Everything here is a
// projection; mutations go through the gRPC service only.
type Handler struct {
	components *bootstrap.Components
	executions *service.ExecutionService
}

// NewHandler creates a new admin handler
func NewHandler(components *bootstrap.Components, executions *service.ExecutionService) *Handler {
	return &Handler{
		components: components,
		executions: executions,
	}
}

// Register wires the admin routes
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/api/v1/executions/:id", h.GetExecution)
}

// Health reports component health
// GET /health
func (h *Handler) Health(c echo.Context) error {
	if err := h.components.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.components.Config.Service.Name,
	})
}

// GetExecution returns the same projection GetStatus serves over gRPC
// GET /api/v1/executions/:id
func (h *Handler) GetExecution(c echo.Context) error {
	executionID := c.Param("id")
	if executionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "execution id is required",
		})
	}

	exec, err := h.executions.Status(c.Request().Context(), executionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "execution not found",
			})
		}
		h.components.Logger.Error("failed to get execution", "execution_id", executionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to get execution",
		})
	}

	completed := json.RawMessage(exec.CompletedNodes)
	if len(completed) == 0 {
		completed = json.RawMessage("{}")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"execution_id":    exec.ExecutionID,
		"workflow_id":     exec.WorkflowID,
		"version_hash":    exec.VersionHash,
		"status":          exec.Status,
		"completed_nodes": completed,
		"created_at":      exec.CreatedAt,
		"updated_at":      exec.UpdatedAt,
	})
}
