package handler

import (
	"net/http"

	"drawing-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateActivationCode issues a new activation code. The operator tool
// that did this offline in earlier deployments now lives behind the
// admin surface.
func (h *Handler) CreateActivationCode(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	record, err := h.accounts.CreateActivationCode(c.Request().Context(), req.Code, req.Description)
	if err != nil {
		log.Error("Failed to create activation code", zap.Error(err))
		return fail(c, err)
	}

	log.Info("Activation code created", zap.String("code", record.Code))
	return c.JSON(http.StatusCreated, record)
}

// ListActivationCodes returns all codes, newest first.
func (h *Handler) ListActivationCodes(c echo.Context) error {
	codes, err := h.accounts.ListActivationCodes(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"codes": codes,
		"count": len(codes),
	})
}
