// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested record does not exist or is owned
	// by a different user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input (bad date, missing field,
	// unlock reason out of bounds).
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict indicates an illegal lifecycle transition for the
	// record's current status.
	ErrStateConflict = errors.New("state conflict")

	// ErrHawlIncomplete indicates a finalize attempt before the Hawl
	// completion date without an acknowledged override.
	ErrHawlIncomplete = errors.New("hawl incomplete")

	// ErrDeleteNotAllowed indicates a delete attempt on a non-draft record.
	ErrDeleteNotAllowed = errors.New("delete not allowed")

	// ErrDecrypt indicates tampered or corrupted field ciphertext.
	ErrDecrypt = errors.New("decryption failed")

	// ErrIntegrity indicates an audit hash chain verification failure.
	ErrIntegrity = errors.New("audit integrity violation")

	// ErrRateLimited indicates a temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
