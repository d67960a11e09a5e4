package middleware

import (
	"net/http"
	"strings"

	"drawing-service/internal/tenant"
	"drawing-service/pkg/jwtutil"
	"drawing-service/pkg/logger"
	"drawing-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys set by the auth middlewares for downstream handlers.
const (
	UserIDKey         = "user_id"
	UsernameKey       = "username"
	ActivationCodeKey = "activation_code"
	TenantKeyKey      = "tenant_key"
)

// SessionAuth validates the JWT session token from the Authorization
// header and stores the caller's identity, including the tenant
// assignment, in the request context.
func SessionAuth(jwt *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			tokenString, ok := bearerToken(c)
			if !ok {
				log.Error("Missing or malformed Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			claims, err := jwt.ValidateToken(tokenString)
			if err != nil {
				log.Error("Invalid session token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(UsernameKey, claims.Username)
			c.Set(ActivationCodeKey, claims.ActivationCode)
			c.Set(TenantKeyKey, claims.TenantKey)

			return next(c)
		}
	}
}

// IdentityFromEcho builds the tenant resolution identity from whatever
// the auth middleware stored on the request.
func IdentityFromEcho(c echo.Context) tenant.Identity {
	id := tenant.Identity{}
	if code, ok := c.Get(ActivationCodeKey).(string); ok {
		id.ActivationCode = code
	}
	if key, ok := c.Get(TenantKeyKey).(string); ok {
		id.TenantKey = key
	}
	return id
}

func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// BearerOrForm extracts a mobile token from the Authorization header or,
// failing that, from a form field named "token". The mini-app upload API
// cannot always set headers.
func BearerOrForm(c echo.Context) string {
	if token, ok := bearerToken(c); ok {
		return token
	}
	return c.FormValue("token")
}
