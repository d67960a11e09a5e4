package tenant

import (
	"context"
	"errors"
	"fmt"

	"drawing-service/internal/apperr"
	"drawing-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Identity describes the caller whose tenant context a request runs
// under. Fields are consulted in order: an explicit activation code wins,
// then the code or tenant key carried by the request's session or token.
// A zero Identity (plus no context override) resolves to the shared
// namespace.
type Identity struct {
	ExplicitCode   string
	ActivationCode string
	TenantKey      string
}

type overrideKeyType struct{}

// WithOverride returns a context carrying a tenant key override. Offline
// scripts use this instead of ambient thread-local state; the override is
// explicit and scoped to the context it is attached to.
func WithOverride(ctx context.Context, key Key) context.Context {
	return context.WithValue(ctx, overrideKeyType{}, key)
}

// OverrideFromContext returns the tenant key override carried by ctx, if any.
func OverrideFromContext(ctx context.Context) (Key, bool) {
	key, ok := ctx.Value(overrideKeyType{}).(Key)
	return key, ok
}

// Handle is a transactional connection bound to one tenant. Its lifetime
// is the fn passed to Router.WithTenant: commit on clean return, rollback
// on error.
type Handle struct {
	tx  *gorm.DB
	key Key
}

// DB returns the scoped transaction. All statements issued through it see
// the tenant's schema first on the search path.
func (h *Handle) DB() *gorm.DB {
	return h.tx
}

// Key returns the tenant key the handle is bound to; empty for the shared
// namespace.
func (h *Handle) Key() Key {
	return h.key
}

// Router resolves the active tenant context for each request and hands
// out scoped transactions. It holds only immutable state.
type Router struct {
	db          *gorm.DB
	provisioner *Provisioner
}

// NewRouter returns a router over the shared database handle.
func NewRouter(db *gorm.DB, provisioner *Provisioner) *Router {
	return &Router{db: db, provisioner: provisioner}
}

// Resolve determines the tenant key for a caller. The second return value
// is the activation code to provision from when the namespace turns out
// not to exist yet; it is empty when only a bare key is known.
func (r *Router) Resolve(ctx context.Context, id Identity) (Key, string) {
	switch {
	case id.ExplicitCode != "":
		return DeriveKey(id.ExplicitCode), id.ExplicitCode
	case id.TenantKey != "":
		return Key(id.TenantKey), id.ActivationCode
	case id.ActivationCode != "":
		return DeriveKey(id.ActivationCode), id.ActivationCode
	}
	if key, ok := OverrideFromContext(ctx); ok {
		return key, ""
	}
	// No identity at all: shared namespace.
	return "", ""
}

// WithTenant resolves the caller's tenant, opens a request-scoped
// transaction bound to it and runs fn. The transaction commits when fn
// returns nil and rolls back otherwise; release is guaranteed on all
// paths. When the tenant namespace does not exist yet and an activation
// code is known, the router provisions it once and retries exactly once.
func (r *Router) WithTenant(ctx context.Context, id Identity, fn func(*Handle) error) error {
	key, code := r.Resolve(ctx, id)
	if key != "" && !key.Valid() {
		return fmt.Errorf("%w: malformed tenant key %q", apperr.ErrInvalidInput, key)
	}

	err := r.run(ctx, key, fn)
	if err == nil || !isMissingNamespace(err) {
		return err
	}
	if code == "" {
		return fmt.Errorf("%w: namespace %s missing and no activation code to provision from", apperr.ErrTenantProvisioningFailed, key)
	}
	logger.FromContext(ctx).Info("Provisioning tenant namespace on first use",
		zap.String("tenant_key", string(key)))
	if _, provErr := r.provisioner.EnsureTenant(ctx, code); provErr != nil {
		return provErr
	}
	return r.run(ctx, key, fn)
}

func (r *Router) run(ctx context.Context, key Key, fn func(*Handle) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key != "" {
			// SET LOCAL scopes the search path to this transaction only.
			if err := tx.Exec(fmt.Sprintf("SET LOCAL search_path TO %s", key.Schema())).Error; err != nil {
				return err
			}
		}
		return fn(&Handle{tx: tx, key: key})
	})
}

// isMissingNamespace matches the storage backend's "namespace not found"
// error class, discriminated by code rather than message text.
func isMissingNamespace(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "3F000", "42P01": // invalid_schema_name, undefined_table
		return true
	}
	return false
}
