package tenant

import (
	"context"
	"errors"
	"fmt"

	"drawing-service/internal/apperr"
	"drawing-service/internal/storage"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// drawingsDDL is the canonical per-tenant schema. Provisioning never
// branches on alternate column names; there is exactly one schema version.
const drawingsDDL = `CREATE TABLE IF NOT EXISTS %s.drawings (
	id BIGSERIAL PRIMARY KEY,
	product_code VARCHAR(100) NOT NULL UNIQUE,
	pdf_path VARCHAR(500) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Provisioner lazily creates tenant namespaces: one Postgres schema plus
// one file-storage folder per activation code.
type Provisioner struct {
	db    *gorm.DB
	files *storage.Store
}

// NewProvisioner returns a provisioner over the shared database handle
// and file store.
func NewProvisioner(db *gorm.DB, files *storage.Store) *Provisioner {
	return &Provisioner{db: db, files: files}
}

// EnsureTenant creates the tenant namespace for an activation code if it
// does not exist yet and returns the tenant key. Safe under concurrent
// callers racing to provision the same tenant: the DDL is idempotent and
// duplicate-object races are treated as success.
func (p *Provisioner) EnsureTenant(ctx context.Context, code string) (Key, error) {
	key := DeriveKey(code)

	if err := p.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", key.Schema())); err != nil {
		return "", fmt.Errorf("%w: create schema %s: %v", apperr.ErrTenantProvisioningFailed, key, err)
	}
	if err := p.exec(ctx, fmt.Sprintf(drawingsDDL, key.Schema())); err != nil {
		return "", fmt.Errorf("%w: create drawings table in %s: %v", apperr.ErrTenantProvisioningFailed, key, err)
	}

	if _, err := p.files.EnsureTenantDir(FolderToken(code)); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrTenantProvisioningFailed, err)
	}

	return key, nil
}

func (p *Provisioner) exec(ctx context.Context, ddl string) error {
	err := p.db.WithContext(ctx).Exec(ddl).Error
	if err != nil && isDuplicateObject(err) {
		// Lost a create race to a concurrent provisioner; the namespace
		// exists, which is all EnsureTenant promises.
		return nil
	}
	return err
}

// isDuplicateObject matches the Postgres error classes raised when two
// IF NOT EXISTS statements race on the same object.
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "42P06", "42P07": // unique_violation, duplicate_schema, duplicate_table
		return true
	}
	return false
}
