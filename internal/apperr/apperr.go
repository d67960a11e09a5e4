// Package apperr defines the typed error taxonomy shared by repositories,
// tenant provisioning and the HTTP layer. Handlers discriminate with
// errors.Is and map each kind to a status code and a stable reason string;
// raw backend error text never reaches clients.
package apperr

import "errors"

var (
	// ErrInvalidInput marks missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an absent record.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey marks a unique-constraint violation (product code
	// within a tenant, or username in the shared store).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidActivationCode marks an unknown, malformed or inactive
	// activation code.
	ErrInvalidActivationCode = errors.New("invalid activation code")

	// ErrInvalidCredentials marks a failed username/password check.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken marks a malformed, unsigned or expired bearer token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTenantProvisioningFailed marks an unreachable backend or rejected
	// DDL while creating a tenant namespace.
	ErrTenantProvisioningFailed = errors.New("tenant provisioning failed")

	// ErrStorageIO marks a failed file write or move.
	ErrStorageIO = errors.New("storage io failure")
)

// Reason returns the stable machine-readable failure string for err,
// or "internal_error" when the error is not part of the taxonomy.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrInvalidActivationCode):
		return "invalid_activation_code"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrTenantProvisioningFailed):
		return "tenant_provisioning_failed"
	case errors.Is(err, ErrStorageIO):
		return "storage_io_failure"
	default:
		return "internal_error"
	}
}
