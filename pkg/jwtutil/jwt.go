package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"drawing-service/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

// SessionClaims represents the JWT claims for web session authentication.
// Mobile callers use the compact HMAC token instead; web and admin callers
// carry their tenant assignment in these claims.
type SessionClaims struct {
	Username       string `json:"username"`
	UserID         uint   `json:"user_id"`
	ActivationCode string `json:"activation_code,omitempty"`
	TenantKey      string `json:"tenant_key,omitempty"`
	jwt.RegisteredClaims
}

// JWTUtil signs and validates web session tokens.
type JWTUtil struct {
	config *config.JWTConfig
}

// New returns a JWT utility with the given configuration.
func New(cfg *config.JWTConfig) *JWTUtil {
	return &JWTUtil{config: cfg}
}

// GenerateToken creates a session token carrying the user's identity and
// tenant assignment.
func (j *JWTUtil) GenerateToken(userID uint, username, activationCode, tenantKey string) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}

	claims := SessionClaims{
		Username:       username,
		UserID:         userID,
		ActivationCode: activationCode,
		TenantKey:      tenantKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(j.config.ExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses a session token.
func (j *JWTUtil) ValidateToken(tokenString string) (*SessionClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(j.config.SigningKey), nil
		},
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
