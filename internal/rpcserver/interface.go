// Copyright (c) 2019 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainwork"
	"github.com/multialgo/powcoord/internal/halving"
	"github.com/multialgo/powcoord/internal/mempool"
	"github.com/multialgo/powcoord/internal/mining"
)

// TemplateService represents the source of block templates and the sink of
// solved blocks for use with the RPC server.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type TemplateService interface {
	// GetTemplate returns a block template for the requested algorithm
	// prepared for the rules the client supports.
	GetTemplate(ctx context.Context, req *mining.TemplateRequest) (*mining.BlockTemplate, error)

	// WaitForNewWork blocks until the work identified by the tip and the
	// mempool version changed.
	WaitForNewWork(ctx context.Context, lastTip chainhash.Hash, lastMempool uint64) (chainhash.Hash, uint64, error)

	// SubmitBlock processes a solved block and returns its BIP22 result.
	SubmitBlock(block *wire.MsgBlock) (string, error)

	// SubmitHeader processes a solved header.
	SubmitHeader(header *wire.BlockHeader) error

	// ProposeBlock validates a block proposal and returns its BIP23 result.
	ProposeBlock(block *wire.MsgBlock) (string, error)

	// PrioritiseTransaction adjusts the fee used to rank a transaction.
	PrioritiseTransaction(hash *chainhash.Hash, feeDelta btcutil.Amount)

	// Policy returns the template policy.
	Policy() *mining.Policy
}

// Accountant represents the per-algorithm chain statistics for use with the
// RPC server.
type Accountant interface {
	// DifficultyForAlgorithm returns the difficulty of the last block mined
	// with the algorithm.
	DifficultyForAlgorithm(id algo.ID) float64

	// NetworkHashrate estimates the hashes per second of the algorithm over
	// the lookup window ending at the height.
	NetworkHashrate(lookup, height int64, id algo.ID) float64

	// MultiAlgoStats returns the chain statistics of every algorithm.
	MultiAlgoStats() []chainwork.AlgoStats

	// MiningStats returns the reward statistics of every algorithm.
	MiningStats() ([]chainwork.RewardStats, error)
}

// HalvingReporter represents the halving schedule for use with the RPC
// server.
type HalvingReporter interface {
	// Report returns an aggregated view of the halving state.
	Report() (*halving.Report, error)
}

// CPUMiner represents a CPU miner for use with the RPC server. The purpose of
// this interface is to allow an alternative implementation to be used for
// testing purposes.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type CPUMiner interface {
	// GenerateNBlocks generates the requested number of blocks.
	GenerateNBlocks(ctx context.Context, n uint32) ([]*chainhash.Hash, error)

	// IsMining returns whether or not the CPU miner has been started and is
	// therefore currently mining.
	IsMining() bool

	// HashesPerSecond returns the number of hashes per second the mining process
	// is performing.
	HashesPerSecond() float64

	// NumWorkers returns the number of workers which are running to solve blocks.
	NumWorkers() int32

	// SetNumWorkers sets the number of workers to create which solve blocks.
	SetNumWorkers(numWorkers int32)
}

// TxMempooler represents a source of mempool information for use with the
// RPC server.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type TxMempooler interface {
	// ProcessTransaction validates the transaction and adds it to the
	// pool.
	ProcessTransaction(tx *btcutil.Tx, allowHighFees bool) (*mempool.TxDesc, error)

	// Count returns the number of transactions in the main pool.
	Count() int
}

// ConfirmedTxnsFilter reports transactions that were recently confirmed in a
// block.
type ConfirmedTxnsFilter interface {
	// RecentlyConfirmedTxn returns with high degree of confidence whether a
	// transaction has been recently confirmed in a block.
	RecentlyConfirmedTxn(hash *chainhash.Hash) bool
}

// LogManager represents a log manager for use with the RPC server.
//
// The interface contract does NOT require that these methods are safe for
// concurrent access.
type LogManager interface {
	// SupportedSubsystems returns a sorted slice of the supported subsystems for
	// logging purposes.
	SupportedSubsystems() []string

	// ParseAndSetDebugLevels attempts to parse the specified debug level and set
	// the levels accordingly.  An appropriate error must be returned if anything
	// is invalid.
	ParseAndSetDebugLevels(debugLevel string) error
}
