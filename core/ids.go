// Package core implements the query subsystem: model, codecs, the
// flat-file block store reader, and the streaming query evaluator.
package core

import (
	"encoding/hex"
	"strings"
)

// Hash256 is a 256-bit content digest.
type Hash256 [32]byte

// IsZero reports whether h is the all-zero hash, used by Pager to mean
// "start from newest".
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// PubKey is an Ed25519 public key.
type PubKey [32]byte

func (k PubKey) String() string {
	return hex.EncodeToString(k[:])
}

// SigBytes is an Ed25519 signature.
type SigBytes [64]byte

func (s SigBytes) String() string {
	return hex.EncodeToString(s[:])
}

// Signature pairs a public key with the signature it produced.
type Signature struct {
	PubKey PubKey
	Sig    SigBytes
}

// AccountID is the literal form name@domain.
type AccountID string

// AssetID is the literal form name#domain.
type AssetID string

// RoleID is an opaque label.
type RoleID string

const maxIdentifierLen = 256

// ValidAccountID reports whether s is a well-formed account_id.
func ValidAccountID(s string) bool {
	if s == "" || len(s) > maxIdentifierLen {
		return false
	}
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && strings.Count(s, "@") == 1
}

// ValidAssetID reports whether s is a well-formed asset_id.
func ValidAssetID(s string) bool {
	if s == "" || len(s) > maxIdentifierLen {
		return false
	}
	h := strings.IndexByte(s, '#')
	return h > 0 && h < len(s)-1 && strings.Count(s, "#") == 1
}

// hexToFixed decodes a hex string (case-insensitive) into a fixed-size
// byte array. ok is false if the string is empty, malformed, or decodes to
// the wrong length.
func hexToFixed(s string, out []byte) bool {
	if s == "" {
		return false
	}
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil || len(b) != len(out) {
		return false
	}
	copy(out, b)
	return true
}

func hash256FromHex(s string) (Hash256, bool) {
	var h Hash256
	ok := hexToFixed(s, h[:])
	return h, ok
}

func pubKeyFromHex(s string) (PubKey, bool) {
	var k PubKey
	ok := hexToFixed(s, k[:])
	return k, ok
}

func sigFromHex(s string) (SigBytes, bool) {
	var sg SigBytes
	ok := hexToFixed(s, sg[:])
	return sg, ok
}
