// Package mobiletoken implements the compact bearer token used by
// non-session (mobile) callers: base64url(payload) + "." + base64url(sig),
// unpadded, where sig is HMAC-SHA256 over the payload bytes.
package mobiletoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"drawing-service/internal/apperr"
)

// Payload is the signed identity carried by a mobile token. It is not
// persisted; it is reconstructed and verified per request.
type Payload struct {
	UserID         uint   `json:"uid"`
	Username       string `json:"username"`
	ActivationCode string `json:"code"`
	TenantKey      string `json:"tenant"`
	Expiry         int64  `json:"exp"`
}

// Codec signs and verifies mobile tokens with a process-wide secret,
// read-only after startup.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec returns a codec using the given signing secret and default
// token lifetime.
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// Issue signs a payload for the given identity with the default expiry.
func (c *Codec) Issue(userID uint, username, activationCode, tenantKey string) (string, error) {
	return c.Sign(Payload{
		UserID:         userID,
		Username:       username,
		ActivationCode: activationCode,
		TenantKey:      tenantKey,
		Expiry:         time.Now().Add(c.ttl).Unix(),
	})
}

// Sign serializes the payload to canonical JSON, computes an HMAC-SHA256
// signature over those bytes and emits the unpadded two-part token.
func (c *Codec) Sign(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	sig := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(data) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks a token and returns its payload. Verification is binary:
// any structural, decode, signature or expiry failure yields
// apperr.ErrInvalidToken and nothing else.
func (c *Codec) Verify(token string) (*Payload, error) {
	if token == "" {
		return nil, apperr.ErrInvalidToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, apperr.ErrInvalidToken
	}
	data, err := decodeSegment(parts[0])
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}
	sig, err := decodeSegment(parts[1])
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, apperr.ErrInvalidToken
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperr.ErrInvalidToken
	}
	if p.Expiry != 0 && time.Now().Unix() > p.Expiry {
		return nil, apperr.ErrInvalidToken
	}
	return &p, nil
}

// decodeSegment accepts both padded and unpadded base64url input.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
