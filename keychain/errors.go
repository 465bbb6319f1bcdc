package keychain

import (
	"fmt"
)

// Structural-rejection and decode-failure sentinels. These mirror the
// teacher's channeldb/error.go convention: plain package-level errors, no
// custom type, wrapped with fmt.Errorf at the call site when more context
// is useful.
var (
	// ErrMissingRemoteBasepoints is returned by any signing primitive that
	// requires the remote party's basepoints before one has ever been set
	// via SetRemoteBasepoints.
	ErrMissingRemoteBasepoints = fmt.Errorf("remote basepoints not yet set on this signer")

	// ErrRemoteBasepointsAlreadySet is the fatal condition triggered by a
	// second call to SetRemoteBasepoints.
	ErrRemoteBasepointsAlreadySet = fmt.Errorf("remote basepoints already set, cannot be set twice")

	// ErrCommitmentAlreadySigned is returned by SignLocalCommitment once the
	// one-shot hardening has tripped.
	ErrCommitmentAlreadySigned = fmt.Errorf("local commitment has already been signed once")

	// ErrWrongInputCount is returned when a transaction does not carry the
	// exact number of inputs a signing primitive requires.
	ErrWrongInputCount = fmt.Errorf("transaction does not have the expected number of inputs")

	// ErrClosingWitnessNotEmpty is returned when a closing transaction's
	// sole input already carries witness data.
	ErrClosingWitnessNotEmpty = fmt.Errorf("closing transaction input witness must be empty")

	// ErrTooManyClosingOutputs is returned when a closing transaction has
	// more than the two outputs BOLT-2 permits.
	ErrTooManyClosingOutputs = fmt.Errorf("closing transaction has more than two outputs")

	// ErrInvalidValue is the decode-failure sentinel returned when a
	// serialized SpendableOutputDescriptor carries an unrecognized variant
	// tag, or any field fails to parse.
	ErrInvalidValue = fmt.Errorf("invalid value: unknown variant tag or malformed field")
)
