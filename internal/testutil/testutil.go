// Package testutil provides shared helpers for tests that need a real
// Postgres instance. Tests relying on it skip unless TEST_DATABASE_DSN
// points at a disposable database.
package testutil

import (
	"fmt"
	"os"
	"testing"

	"drawing-service/internal/model"
	"drawing-service/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSNEnv names the environment variable carrying the test database DSN,
// e.g. "host=localhost user=postgres password=postgres dbname=drawing_test sslmode=disable".
const DSNEnv = "TEST_DATABASE_DSN"

// SetupTestDB opens the test database, migrates the shared store and
// drops any tenant schemas left over from earlier runs. Skips the test
// when no test database is configured.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("set %s to run database tests", DSNEnv)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	DropTenantSchemas(t, db)

	// Fresh shared store for each test.
	if err := db.Exec(`DROP TABLE IF EXISTS users, activation_codes, drawings CASCADE`).Error; err != nil {
		t.Fatalf("Failed to clean shared store: %v", err)
	}
	if err := db.AutoMigrate(&model.ActivationCode{}, &model.User{}, &model.Drawing{}); err != nil {
		t.Fatalf("Failed to migrate shared store: %v", err)
	}

	return db
}

// DropTenantSchemas removes every tenant_* schema so provisioning tests
// start from nothing.
func DropTenantSchemas(t *testing.T, db *gorm.DB) {
	t.Helper()

	var schemas []string
	err := db.Raw(`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'tenant\_%'`).
		Scan(&schemas).Error
	if err != nil {
		t.Fatalf("Failed to list tenant schemas: %v", err)
	}
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)).Error; err != nil {
			t.Fatalf("Failed to drop schema %s: %v", schema, err)
		}
	}
}

// SetupTestStore returns a file store rooted in a per-test temp dir.
func SetupTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(t.TempDir() + "/pdf")
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store
}

// SeedActivationCode inserts an active activation code.
func SeedActivationCode(t *testing.T, db *gorm.DB, code string) {
	t.Helper()
	record := model.ActivationCode{Code: code, Description: "test code", IsActive: true}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("Failed to seed activation code %s: %v", code, err)
	}
}
