package core

import "errors"

// Error kinds surfaced by the core, per the wire/evaluation contract.
var (
	// ErrMalformedWire is returned when the binary codec cannot decode a
	// query: unknown variant tag, missing required field, wrong-length
	// fixed byte array, or bad hex.
	ErrMalformedWire = errors.New("malformed wire query")

	// ErrMalformedJSON is returned when the JSON codec cannot decode a
	// query: missing discriminator or field, wrong JSON type, or missing
	// signature.
	ErrMalformedJSON = errors.New("malformed json query")

	// ErrUnknownQueryType is returned when a JSON query_type falls
	// outside the closed set of variant names.
	ErrUnknownQueryType = errors.New("unknown query_type")

	// ErrStoreRead is returned when a block file is missing, unreadable,
	// or fails structural validation (height contiguity, tx hash).
	ErrStoreRead = errors.New("block store read error")

	// ErrInternal signals an invariant violation that should never occur.
	ErrInternal = errors.New("internal invariant violation")

	// ErrNotFound is returned by the evaluator's non-history query
	// variants when the requested account, role, or asset has no entry
	// in StateView.
	ErrNotFound = errors.New("not found")
)
