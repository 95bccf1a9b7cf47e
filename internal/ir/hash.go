package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainExpr prefixes expression fingerprints. The version suffix enables
// a future change of the text format.
const DomainExpr = "qtoken/expr/v" + ExprVersion

// HashWithDomain computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
//
// Example: HashWithDomain(DomainExpr, []byte(text))
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
