// Package handler implements the HTTP surface: web auth, mobile token
// APIs, search, and the admin drawing CRUD. Handlers parse requests,
// resolve the caller's tenant identity and invoke the repositories; they
// never touch the storage backend directly.
package handler

import (
	"errors"
	"net/http"

	"drawing-service/internal/apperr"
	"drawing-service/internal/repository"
	"drawing-service/internal/storage"
	"drawing-service/internal/tenant"
	"drawing-service/pkg/config"
	"drawing-service/pkg/jwtutil"
	"drawing-service/pkg/mobiletoken"

	"github.com/labstack/echo/v4"
)

// Handler carries the explicitly constructed service dependencies. All
// fields are immutable after startup; per-request state lives in scoped
// tenant handles.
type Handler struct {
	cfg      *config.Config
	router   *tenant.Router
	drawings *repository.DrawingRepository
	accounts *repository.AccountRepository
	files    *storage.Store
	tokens   *mobiletoken.Codec
	jwt      *jwtutil.JWTUtil
}

// New wires a handler from its dependencies.
func New(
	cfg *config.Config,
	router *tenant.Router,
	drawings *repository.DrawingRepository,
	accounts *repository.AccountRepository,
	files *storage.Store,
	tokens *mobiletoken.Codec,
	jwt *jwtutil.JWTUtil,
) *Handler {
	return &Handler{
		cfg:      cfg,
		router:   router,
		drawings: drawings,
		accounts: accounts,
		files:    files,
		tokens:   tokens,
		jwt:      jwt,
	}
}

// fail translates a typed error into a status code and its stable reason
// string. Raw backend error text never reaches the client.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, apperr.ErrInvalidActivationCode):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidCredentials),
		errors.Is(err, apperr.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrTenantProvisioningFailed):
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, echo.Map{"error": apperr.Reason(err)})
}
