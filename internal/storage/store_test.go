package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "pdf")
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestNewFileName(t *testing.T) {
	a := NewFileName("NR1001")
	b := NewFileName("NR1001")
	if !strings.HasPrefix(a, "NR1001_") || !strings.HasSuffix(a, ".pdf") {
		t.Errorf("unexpected file name %q", a)
	}
	if a == b {
		t.Errorf("two generated names collided: %q", a)
	}
}

func TestWriteAndExists(t *testing.T) {
	store := newTestStore(t)

	if store.Exists("ABCDEFGHIJKL", "missing.pdf") {
		t.Error("Exists returned true for missing file")
	}

	err := store.Write("ABCDEFGHIJKL", "NR1001_deadbeef.pdf", strings.NewReader("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !store.Exists("ABCDEFGHIJKL", "NR1001_deadbeef.pdf") {
		t.Error("Exists returned false after Write")
	}

	data, err := os.ReadFile(store.FullPath("ABCDEFGHIJKL", "NR1001_deadbeef.pdf"))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "%PDF-1.4 test" {
		t.Errorf("stored content mismatch: %q", data)
	}
}

func TestTenantIsolationOnDisk(t *testing.T) {
	store := newTestStore(t)

	if err := store.Write("TENANTAAAAAA", "NR1001_aaaa0000.pdf", strings.NewReader("a")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if store.Exists("TENANTBBBBBB", "NR1001_aaaa0000.pdf") {
		t.Error("file visible from another tenant's folder")
	}
}

func TestQuarantineAndRestore(t *testing.T) {
	store := newTestStore(t)
	const folder = "ABCDEFGHIJKL"
	const name = "NR1001_deadbeef.pdf"

	if err := store.Write(folder, name, strings.NewReader("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	moved, err := store.Quarantine(folder, name)
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}
	if moved == "" {
		t.Fatal("Quarantine reported nothing moved for an existing file")
	}
	if store.Exists(folder, name) {
		t.Error("file still in tenant folder after quarantine")
	}
	if _, err := os.Stat(moved); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
	if !strings.Contains(moved, QuarantineDirName) {
		t.Errorf("quarantine path %q not under %s directory", moved, QuarantineDirName)
	}

	if err := store.Unquarantine(folder, name); err != nil {
		t.Fatalf("Unquarantine failed: %v", err)
	}
	if !store.Exists(folder, name) {
		t.Error("file not restored after Unquarantine")
	}
}

func TestQuarantineMissingFile(t *testing.T) {
	store := newTestStore(t)
	moved, err := store.Quarantine("ABCDEFGHIJKL", "never-written.pdf")
	if err != nil {
		t.Fatalf("Quarantine of missing file errored: %v", err)
	}
	if moved != "" {
		t.Errorf("Quarantine reported a move for a missing file: %q", moved)
	}
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)
	const folder = "ABCDEFGHIJKL"
	const name = "NR1001_deadbeef.pdf"

	if err := store.Write(folder, name, strings.NewReader("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Remove(folder, name); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.Exists(folder, name) {
		t.Error("file still present after Remove")
	}
}
