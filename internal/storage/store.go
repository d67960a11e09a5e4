// Package storage implements the PDF file backend: one folder per tenant
// under a deployment root, plus a sibling quarantine directory that
// receives files removed from active use.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"drawing-service/internal/apperr"

	"github.com/google/uuid"
)

// QuarantineDirName is the sibling directory receiving quarantined files.
const QuarantineDirName = "delete"

// Store manages PDF files on the local filesystem.
type Store struct {
	root string
}

// NewStore returns a store rooted at the given directory, creating it
// if absent.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root %s: %v", apperr.ErrStorageIO, root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the deployment storage root.
func (s *Store) Root() string {
	return s.root
}

// NewFileName generates a stored file name for a product code:
// <product_code>_<8-hex-random>.pdf. The random suffix avoids collisions
// when the same product code is re-uploaded.
func NewFileName(productCode string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s_%s.pdf", productCode, suffix)
}

// EnsureTenantDir creates the tenant's folder if absent and returns its path.
func (s *Store) EnsureTenantDir(folderToken string) (string, error) {
	dir := filepath.Join(s.root, folderToken)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create tenant dir %s: %v", apperr.ErrStorageIO, dir, err)
	}
	return dir, nil
}

// FullPath resolves a stored file name inside a tenant's folder.
func (s *Store) FullPath(folderToken, fileName string) string {
	return filepath.Join(s.root, folderToken, fileName)
}

// Exists reports whether the named file is present in the tenant's folder.
func (s *Store) Exists(folderToken, fileName string) bool {
	_, err := os.Stat(s.FullPath(folderToken, fileName))
	return err == nil
}

// Write stores the contents of r as fileName in the tenant's folder.
func (s *Store) Write(folderToken, fileName string, r io.Reader) error {
	if _, err := s.EnsureTenantDir(folderToken); err != nil {
		return err
	}
	dst, err := os.Create(s.FullPath(folderToken, fileName))
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", apperr.ErrStorageIO, fileName, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("%w: write %s: %v", apperr.ErrStorageIO, fileName, err)
	}
	return nil
}

// Remove deletes a stored file. Used to reverse a write when the
// database insert that follows it fails.
func (s *Store) Remove(folderToken, fileName string) error {
	if err := os.Remove(s.FullPath(folderToken, fileName)); err != nil {
		return fmt.Errorf("%w: remove %s: %v", apperr.ErrStorageIO, fileName, err)
	}
	return nil
}

// quarantineDir is a sibling of the storage root so quarantined files
// never shadow live tenant folders.
func (s *Store) quarantineDir() string {
	parent := filepath.Dir(filepath.Clean(s.root))
	return filepath.Join(parent, QuarantineDirName)
}

// Quarantine moves a stored file into the quarantine directory and
// returns its new path. A missing source file is not an error: the row
// is the authority, and an already-absent file leaves nothing to move.
func (s *Store) Quarantine(folderToken, fileName string) (string, error) {
	src := s.FullPath(folderToken, fileName)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return "", nil
	}
	dir := s.quarantineDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create quarantine dir: %v", apperr.ErrStorageIO, err)
	}
	dst := filepath.Join(dir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("%w: quarantine %s: %v", apperr.ErrStorageIO, fileName, err)
	}
	return dst, nil
}

// Unquarantine moves a quarantined file back into the tenant's folder.
// Used to reverse a quarantine when the row delete that follows it fails.
func (s *Store) Unquarantine(folderToken, fileName string) error {
	src := filepath.Join(s.quarantineDir(), fileName)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if _, err := s.EnsureTenantDir(folderToken); err != nil {
		return err
	}
	if err := os.Rename(src, s.FullPath(folderToken, fileName)); err != nil {
		return fmt.Errorf("%w: restore %s: %v", apperr.ErrStorageIO, fileName, err)
	}
	return nil
}
