package handler

import (
	"net/http"

	"drawing-service/internal/model"
	"drawing-service/pkg/logger"
	"drawing-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Login authenticates a web caller and issues a JWT session token
// carrying the tenant assignment.
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	user, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		log.Error("Login failed", zap.String("username", req.Username), zap.Error(err))
		prometheus.RecordAuthError("invalid_credentials")
		return fail(c, err)
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.ActivationCode, user.TenantKey)
	if err != nil {
		log.Error("Failed to generate session token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}

	log.Info("User logged in",
		zap.String("username", user.Username),
		zap.String("tenant_key", user.TenantKey))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  userResponse(user),
	})
}

// Register creates a web account gated by an activation code and logs the
// user straight in.
func (h *Handler) Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Username       string `json:"username"`
		Password       string `json:"password"`
		Email          string `json:"email"`
		ActivationCode string `json:"activation_code"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	prometheus.TenantProvisionCounter.Inc()
	user, err := h.accounts.Register(c.Request().Context(), req.Username, req.Password, req.Email, req.ActivationCode)
	if err != nil {
		log.Error("Registration failed", zap.String("username", req.Username), zap.Error(err))
		prometheus.RecordAuthError("registration_failed")
		return fail(c, err)
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.ActivationCode, user.TenantKey)
	if err != nil {
		log.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}

	log.Info("User registered",
		zap.String("username", user.Username),
		zap.String("tenant_key", user.TenantKey))

	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user":  userResponse(user),
	})
}

// UsernameExists lets the registration form check name availability.
func (h *Handler) UsernameExists(c echo.Context) error {
	username := c.QueryParam("username")
	if username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	exists, err := h.accounts.UsernameExists(c.Request().Context(), username)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"exists": exists})
}

func userResponse(user *model.User) echo.Map {
	return echo.Map{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"activation_code": user.ActivationCode,
		"tenant_key":      user.TenantKey,
	}
}
