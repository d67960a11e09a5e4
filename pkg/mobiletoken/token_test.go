package mobiletoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	"drawing-service/internal/apperr"
)

func newTestCodec() *Codec {
	return NewCodec("test-secret", 7*24*time.Hour)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec()
	payload := Payload{
		UserID:         42,
		Username:       "alice",
		ActivationCode: "VB-ABCDEFGHIJKL-1234",
		TenantKey:      "tenant_0a1b2c3d",
		Expiry:         time.Now().Add(time.Hour).Unix(),
	}

	token, err := codec.Sign(payload)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if strings.Count(token, ".") != 1 {
		t.Fatalf("token %q is not two dot-separated parts", token)
	}
	if strings.ContainsAny(token, "=+/") {
		t.Errorf("token %q contains padding or non-url-safe characters", token)
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if *got != payload {
		t.Errorf("Verify returned %+v, want %+v", *got, payload)
	}
}

func TestVerifyExpired(t *testing.T) {
	codec := newTestCodec()
	token, err := codec.Sign(Payload{
		UserID:   1,
		Username: "bob",
		Expiry:   time.Now().Add(-time.Second).Unix(),
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("expired token: got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	codec := newTestCodec()
	token, err := codec.Sign(Payload{UserID: 1, Username: "bob", Expiry: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[1])
	// Flip one character of the signature part.
	if sig[0] != 'A' {
		sig[0] = 'A'
	} else {
		sig[0] = 'B'
	}
	tampered := parts[0] + "." + string(sig)

	if _, err := codec.Verify(tampered); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("tampered signature: got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	codec := newTestCodec()
	a, _ := codec.Sign(Payload{UserID: 1, Username: "bob", TenantKey: "tenant_aaaaaaaa", Expiry: time.Now().Add(time.Hour).Unix()})
	b, _ := codec.Sign(Payload{UserID: 2, Username: "eve", TenantKey: "tenant_bbbbbbbb", Expiry: time.Now().Add(time.Hour).Unix()})

	// Payload of one token with the signature of another.
	spliced := strings.Split(a, ".")[0] + "." + strings.Split(b, ".")[1]
	if _, err := codec.Verify(spliced); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("spliced token: got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	codec := newTestCodec()
	cases := []string{
		"",
		"justonepart",
		"three.dot.parts",
		"!!notbase64!!.!!alsonot!!",
		".",
	}
	for _, token := range cases {
		if _, err := codec.Verify(token); !errors.Is(err, apperr.ErrInvalidToken) {
			t.Errorf("Verify(%q): got %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := newTestCodec().Sign(Payload{UserID: 1, Username: "bob", Expiry: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	other := NewCodec("different-secret", time.Hour)
	if _, err := other.Verify(token); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("wrong secret: got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyPaddedSegments(t *testing.T) {
	codec := newTestCodec()
	token, err := codec.Sign(Payload{UserID: 7, Username: "carol", Expiry: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	// Clients that re-pad base64 segments must still verify.
	parts := strings.Split(token, ".")
	padded := pad(parts[0]) + "." + pad(parts[1])
	if _, err := codec.Verify(padded); err != nil {
		t.Errorf("padded token rejected: %v", err)
	}
}

func pad(s string) string {
	if n := len(s) % 4; n != 0 {
		return s + strings.Repeat("=", 4-n)
	}
	return s
}

func TestIssueSetsExpiry(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	token, err := codec.Issue(9, "dave", "VB-ABCDEFGHIJKL-1234", "tenant_0a1b2c3d")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	payload, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	until := payload.Expiry - time.Now().Unix()
	if until <= 0 || until > int64(time.Hour/time.Second)+5 {
		t.Errorf("unexpected expiry window: %d seconds", until)
	}
}
