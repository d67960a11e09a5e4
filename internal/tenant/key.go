package tenant

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix is prepended to the derived hash to name a tenant's schema.
const KeyPrefix = "tenant_"

// codePattern is the canonical activation code shape: VB- followed by
// 12 uppercase alphanumerics, a hyphen, and 4 uppercase alphanumerics.
var codePattern = regexp.MustCompile(`^VB-[A-Z0-9]{12}-[A-Z0-9]{4}$`)

// keyPattern is the only shape a derived key can take.
var keyPattern = regexp.MustCompile(`^tenant_[0-9a-f]{8}$`)

// Key names one tenant's storage namespace (schema and file folder).
type Key string

// Schema returns the Postgres schema name for the tenant.
func (k Key) Schema() string {
	return string(k)
}

// Valid reports whether k has the canonical derived shape. Keys are
// interpolated into schema-qualified statements, so anything else must be
// rejected before it reaches the database.
func (k Key) Valid() bool {
	return keyPattern.MatchString(string(k))
}

// Normalize strips whitespace and hyphens from an activation code and
// uppercases it. Malformed codes still normalize; validity is checked
// elsewhere.
func Normalize(code string) string {
	norm := strings.ToUpper(strings.TrimSpace(code))
	norm = strings.ReplaceAll(norm, "-", "")
	return strings.Join(strings.Fields(norm), "")
}

// DeriveKey maps an activation code to its tenant key: the namespace
// prefix plus the first 8 hex characters of SHA-256 over the normalized
// code. Deterministic and pure.
func DeriveKey(code string) Key {
	sum := sha256.Sum256([]byte(Normalize(code)))
	return Key(KeyPrefix + hex.EncodeToString(sum[:])[:8])
}

// FolderToken returns the name of the tenant's file-storage folder.
// For a well-formed code this is its middle segment; any other shape
// falls back to the hash suffix of the derived key so the function
// always produces a value.
func FolderToken(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if codePattern.MatchString(trimmed) {
		return strings.Split(trimmed, "-")[1]
	}
	return strings.TrimPrefix(string(DeriveKey(code)), KeyPrefix)
}

// ValidFormat reports whether code has the canonical activation code shape.
func ValidFormat(code string) bool {
	return codePattern.MatchString(code)
}

// GenerateCode produces a new activation code: VB- plus 12 characters of
// UUID-derived entropy and a 4-character time-hash suffix.
func GenerateCode() string {
	uuidPart := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
	stamp := md5.Sum([]byte(fmt.Sprintf("%d", time.Now().Unix())))
	suffix := strings.ToUpper(hex.EncodeToString(stamp[:]))[:4]
	return fmt.Sprintf("VB-%s-%s", uuidPart, suffix)
}
