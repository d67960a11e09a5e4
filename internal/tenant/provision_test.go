package tenant

import (
	"context"
	"sync"
	"testing"

	"drawing-service/internal/testutil"
)

const provisionTestCode = "VB-PROVISIONTST-0001"

func TestEnsureTenantIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	files := testutil.SetupTestStore(t)
	p := NewProvisioner(db, files)
	ctx := context.Background()

	key, err := p.EnsureTenant(ctx, provisionTestCode)
	if err != nil {
		t.Fatalf("first EnsureTenant: %v", err)
	}
	if key != DeriveKey(provisionTestCode) {
		t.Fatalf("key mismatch: %s", key)
	}

	// A second call over an existing namespace must succeed quietly.
	again, err := p.EnsureTenant(ctx, provisionTestCode)
	if err != nil {
		t.Fatalf("repeat EnsureTenant: %v", err)
	}
	if again != key {
		t.Fatalf("repeat returned different key: %s vs %s", again, key)
	}

	var n int64
	err = db.Raw(
		"SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?",
		string(key),
	).Scan(&n).Error
	if err != nil {
		t.Fatalf("schema lookup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one schema, got %d", n)
	}
}

func TestEnsureTenantConcurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	files := testutil.SetupTestStore(t)
	p := NewProvisioner(db, files)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.EnsureTenant(context.Background(), provisionTestCode)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}

	var n int64
	key := DeriveKey(provisionTestCode)
	err := db.Raw(
		"SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?",
		string(key),
	).Scan(&n).Error
	if err != nil {
		t.Fatalf("schema lookup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one schema after concurrent provisioning, got %d", n)
	}
}

func TestWithTenantProvisionsOnFirstUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	files := testutil.SetupTestStore(t)
	p := NewProvisioner(db, files)
	r := NewRouter(db, p)

	code := "VB-FIRSTUSELAZY-0001"
	id := Identity{ExplicitCode: code}

	// The namespace does not exist yet; the first write must trigger
	// provisioning and then succeed.
	err := r.WithTenant(context.Background(), id, func(h *Handle) error {
		return h.DB().Exec(
			"INSERT INTO drawings (product_code, pdf_path) VALUES (?, ?)",
			"NR9000", "NR9000_deadbeef.pdf",
		).Error
	})
	if err != nil {
		t.Fatalf("WithTenant: %v", err)
	}

	// The row landed in the tenant schema, not the shared one.
	var n int64
	err = r.WithTenant(context.Background(), id, func(h *Handle) error {
		return h.DB().Raw("SELECT COUNT(*) FROM drawings").Scan(&n).Error
	})
	if err != nil {
		t.Fatalf("count in tenant: %v", err)
	}
	if n != 1 {
		t.Fatalf("tenant drawings count = %d, want 1", n)
	}
}
