// Package common defines sentinel errors and small helpers shared by every
// gophstore component. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrorUnavailable = errors.New("storage unavailable")

	// Input errors: oversized blobs, malformed queries, missing ids.
	ErrorValidation = errors.New("validation error")

	// Key management errors.
	ErrorKeyNotFound   = errors.New("encryption key not loaded")
	ErrorLocked        = errors.New("secure storage is locked")
	ErrorWrongPassword = errors.New("wrong password")

	// Sync errors.
	ErrorManualResolution = errors.New("manual conflict resolution required")
)
