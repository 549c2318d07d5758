package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// externalIDLen is the number of hash hex characters kept in an external ID.
const externalIDLen = 12

// ExternalID derives the deterministic row identity for a source record.
// Identical natural-key parts always produce the same ID; this is the sole
// de-duplication key across runs.
func ExternalID(prefix string, keyParts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(keyParts, "|")))
	return prefix + "_" + hex.EncodeToString(sum[:])[:externalIDLen]
}
