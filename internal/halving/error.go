// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package halving

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrInconsistentEpochs indicates the epoch list is empty, not
	// contiguous or disagrees with the halving counter.
	ErrInconsistentEpochs = ErrorKind("ErrInconsistentEpochs")

	// ErrHeightNotReached indicates a height beyond the end of the most
	// recent known epoch was requested.
	ErrHeightNotReached = ErrorKind("ErrHeightNotReached")

	// ErrUnknownAlgorithm indicates a subsidy was requested for an
	// algorithm that is not registered.
	ErrUnknownAlgorithm = ErrorKind("ErrUnknownAlgorithm")

	// ErrCorruptState indicates the persisted halving state could not be
	// decoded.
	ErrCorruptState = ErrorKind("ErrCorruptState")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a halving state error.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific reason
// for the error by checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
