// Copyright (c) 2020-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
)

// Candidate is a transaction offered by a TxSource for inclusion in a block
// template along with the details needed to select it.
type Candidate struct {
	// Tx is the transaction.
	Tx *btcutil.Tx

	// Fee is the fee paid by the transaction including any priority delta
	// applied with Prioritise.
	Fee btcutil.Amount

	// Weight and SigOps are the weight and signature operation cost of the
	// transaction.
	Weight int64
	SigOps int64

	// Depends holds the indices of the candidates of the same selection
	// this transaction spends outputs of.
	Depends []int
}

// Budget limits the candidates a TxSource returns.
type Budget struct {
	MaxWeight int64
	MaxSigOps int64
}

// TxSource represents a source of transactions to consider for inclusion in
// new blocks.
//
// The interface contract requires that all of these methods are safe for
// concurrent access with respect to the source.
type TxSource interface {
	// SelectCandidates returns the transactions that fit the budget.  A
	// candidate is always returned after every candidate it depends on.
	SelectCandidates(budget Budget) ([]*Candidate, error)

	// Prioritise adjusts the fee used to rank the transaction by the given
	// delta.  The delta is remembered even when the transaction is not
	// known yet.
	Prioritise(hash *chainhash.Hash, feeDelta btcutil.Amount)

	// Count returns the number of transactions in the source.
	Count() int
}

// Payee is an output the coinbase of a block at some height must pay, for
// instance a masternode or governance payment.
type Payee struct {
	PkScript []byte
	Amount   btcutil.Amount
	Kind     string
}

// PayeeResolver determines the outputs a coinbase must pay.
type PayeeResolver interface {
	// RequiredPayees returns the payees of the block at the given height.
	// It returns an error of kind ErrNotReady when the set cannot be
	// determined yet.
	RequiredPayees(height int64) ([]Payee, error)
}

// SubsidySource provides the block subsidy.
type SubsidySource interface {
	BlockSubsidy(height int64, a algo.ID) (btcutil.Amount, error)
}

// DifficultyCalculator provides the target difficulty of new blocks.
type DifficultyCalculator interface {
	// NextWorkRequired returns the compact target a block of the algorithm
	// built on prev must satisfy.
	NextWorkRequired(prev *chainstate.Entry, a algo.ID) (uint32, error)
}

// BlockSubmitter processes blocks and headers found by miners.
//
// Both methods return nil when the block or header is accepted.  Errors of
// kind ErrDuplicateBlock, ErrMissingParent and ErrBlockRejected describe the
// other outcomes, with the rejection reason as the error description.
type BlockSubmitter interface {
	ProcessBlock(block *wire.MsgBlock) error
	ProcessHeader(header *wire.BlockHeader) error

	// HaveBlock returns whether the block is already known.
	HaveBlock(hash *chainhash.Hash) bool

	// CheckBlock validates a block proposal building on the current tip
	// without its proof of work and without connecting it.
	CheckBlock(block *wire.MsgBlock) error
}

// RejectError returns an error of kind ErrBlockRejected with the given
// rejection reason.
func RejectError(reason string) error {
	return makeError(ErrBlockRejected, reason)
}
