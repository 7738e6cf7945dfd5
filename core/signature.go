package core

import "crypto/ed25519"

// Verify reports whether sig.Sig is a valid Ed25519 signature by
// sig.PubKey over digest. The evaluator treats verification as a
// precondition enforced by its caller: this function is used by the
// Transport layer, never by Evaluator itself.
func Verify(sig Signature, digest Hash256) bool {
	return ed25519.Verify(ed25519.PublicKey(sig.PubKey[:]), digest[:], sig.Sig[:])
}

// Sign produces a Signature over digest using priv, a 64-byte Ed25519
// private key (seed+public, as returned by ed25519.GenerateKey /
// ed25519.NewKeyFromSeed). Used by client-side tooling (cmd/ledgerquery
// query), never by the evaluator.
func Sign(priv ed25519.PrivateKey, pub PubKey, digest Hash256) Signature {
	var sig Signature
	sig.PubKey = pub
	copy(sig.Sig[:], ed25519.Sign(priv, digest[:]))
	return sig
}
