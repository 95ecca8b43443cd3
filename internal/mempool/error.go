// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

// ErrorKind names the reason a transaction was refused by the pool.  Compare
// against it with errors.Is.
type ErrorKind string

// Consensus and chain state rejections.
const (
	ErrInvalid       = ErrorKind("ErrInvalid")
	ErrCoinbase      = ErrorKind("ErrCoinbase")
	ErrImmatureSpend = ErrorKind("ErrImmatureSpend")

	// ErrOrphan means an input is neither in the pool nor unspent on the
	// best chain.  Orphans are not kept.
	ErrOrphan = ErrorKind("ErrOrphan")
)

// Pool state rejections.
const (
	ErrDuplicate          = ErrorKind("ErrDuplicate")
	ErrMempoolDoubleSpend = ErrorKind("ErrMempoolDoubleSpend")
)

// Policy rejections.  A transaction refused for one of these may still be
// valid in a block.
const (
	ErrNonStandard     = ErrorKind("ErrNonStandard")
	ErrDustOutput      = ErrorKind("ErrDustOutput")
	ErrInsufficientFee = ErrorKind("ErrInsufficientFee")
	ErrFeeTooHigh      = ErrorKind("ErrFeeTooHigh")
)

// Error satisfies the error interface.
func (e ErrorKind) Error() string {
	return string(e)
}

// IsPolicy reports whether the kind is a local relay policy rejection rather
// than a consensus or pool state one.
func (e ErrorKind) IsPolicy() bool {
	switch e {
	case ErrNonStandard, ErrDustOutput, ErrInsufficientFee, ErrFeeTooHigh:
		return true
	}
	return false
}

// TxRuleError is returned when a transaction is refused.  Err holds the
// ErrorKind and Description the detail shown to the submitter.
type TxRuleError struct {
	Description string
	Err         error
}

// Error satisfies the error interface.
func (e TxRuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e TxRuleError) Unwrap() error {
	return e.Err
}

func txRuleError(kind ErrorKind, desc string) TxRuleError {
	return TxRuleError{Err: kind, Description: desc}
}
