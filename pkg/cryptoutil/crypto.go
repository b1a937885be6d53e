// Package cryptoutil provides the node's content-hashing, peer-auth HMAC,
// and address-validity primitives (spec §4.2). It mirrors the teacher's
// pattern of small, dependency-light crypto helpers (core/wallet.go's
// hmacSHA512) rather than a heavyweight crypto framework.
package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"runtime"
)

// AddressPrefix is the literal prefix every valid address begins with.
const AddressPrefix = "smartX"

var addressPattern = regexp.MustCompile(`^` + AddressPrefix + `[0-9a-fA-F]{40}$`)

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HMAC returns HMAC-SHA256(key, data).
func HMAC(key, data []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// HashKey returns base64(SHA256(utf8(key))), the representation stored in a
// contract's authenticated-user table (spec §3).
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ValidAddress reports whether s matches smartX followed by exactly 40 hex
// digits.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// HMACString computes base64(HMAC-SHA256(key, message)), the form used by
// the peer registration request (spec §6): base64(HMAC-SHA256(key=chainId,
// message=url)).
func HMACString(key, message string) string {
	sum := HMAC([]byte(key), []byte(message))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HexHash renders a 32-byte digest as lowercase hex.
func HexHash(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

// AssemblyFingerprint returns a stable fingerprint of the executing node
// binary, used only for cross-version compatibility checks during the peer
// handshake (spec §4.2). It is not a security boundary.
func AssemblyFingerprint() string {
	raw := fmt.Sprintf("smartxchain|%s|%s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
