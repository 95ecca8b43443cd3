// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"errors"

	"github.com/multialgo/powcoord/internal/halving"
	"github.com/multialgo/powcoord/internal/pow"
)

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are the error categories reported by the mining
// coordinator.  Every error it returns belongs to exactly one of them.
const (
	// ErrInvalidParameter indicates a caller supplied an unknown
	// algorithm, a missing rule or an otherwise unusable parameter.
	ErrInvalidParameter = ErrorKind("ErrInvalidParameter")

	// ErrNotReady indicates work cannot be issued yet, for instance while
	// the chain is syncing or the required payees are unknown.  Callers
	// are expected to try again later.
	ErrNotReady = ErrorKind("ErrNotReady")

	// ErrConsensusInconsistency indicates chain data violated an invariant
	// the coordinator relies on, such as a header selecting no registered
	// algorithm or an inconsistent halving schedule.
	ErrConsensusInconsistency = ErrorKind("ErrConsensusInconsistency")

	// ErrDeserialization indicates externally submitted data could not be
	// decoded.
	ErrDeserialization = ErrorKind("ErrDeserialization")

	// ErrInternal indicates an unexpected failure while assembling a
	// template.
	ErrInternal = ErrorKind("ErrInternal")

	// ErrShuttingDown indicates the operation was interrupted by the
	// node-wide shutdown.
	ErrShuttingDown = ErrorKind("ErrShuttingDown")
)

// These constants identify the outcomes of processing a submitted block or
// header that are not acceptance.
const (
	// ErrDuplicateBlock indicates the block or header is already known.
	ErrDuplicateBlock = ErrorKind("ErrDuplicateBlock")

	// ErrMissingParent indicates the parent of the block or header is not
	// known, so its validity cannot be decided yet.
	ErrMissingParent = ErrorKind("ErrMissingParent")

	// ErrBlockRejected indicates the block or header is invalid.  The
	// description of the error is the rejection reason.
	ErrBlockRejected = ErrorKind("ErrBlockRejected")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a mining error.  It has full support for errors.Is and
// errors.As, so the caller can ascertain the specific reason for the error by
// checking the underlying error.
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

// categories lists the error categories in the order they are matched.
var categories = []ErrorKind{
	ErrInvalidParameter,
	ErrNotReady,
	ErrConsensusInconsistency,
	ErrDeserialization,
	ErrShuttingDown,
	ErrInternal,
}

// Category returns the category the error belongs to.  Errors of the lower
// layers are classified by their kind and anything unrecognized is an
// internal error.
func Category(err error) ErrorKind {
	for _, kind := range categories {
		if errors.Is(err, kind) {
			return kind
		}
	}

	switch {
	case errors.Is(err, pow.ErrUnknownAlgorithm),
		errors.Is(err, halving.ErrInconsistentEpochs),
		errors.Is(err, halving.ErrUnknownAlgorithm):
		return ErrConsensusInconsistency

	case errors.Is(err, halving.ErrHeightNotReached):
		return ErrNotReady

	case errors.Is(err, pow.ErrSerializeHeader):
		return ErrDeserialization
	}
	return ErrInternal
}

// classify wraps the error so that it matches its category while keeping
// the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	kind := Category(err)
	if errors.Is(err, kind) {
		return err
	}
	return categorized{kind: kind, err: err}
}

// categorized associates an error of a lower layer with its category.
type categorized struct {
	kind ErrorKind
	err  error
}

func (c categorized) Error() string {
	return c.err.Error()
}

// Unwrap returns both the category and the wrapped error so errors.Is
// matches either.
func (c categorized) Unwrap() []error {
	return []error{c.kind, c.err}
}
