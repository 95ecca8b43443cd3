// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2016-2020 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"time"

	"github.com/btcsuite/btcd/blockchain"
)

const (
	// DefaultRefreshInterval is the minimum age a cached template must have
	// before it is rebuilt to include mempool changes.
	DefaultRefreshInterval = 5 * time.Second

	// DefaultLongPollTimeout is the coarse timeout after which a long-poll
	// returns when the mempool changed.
	DefaultLongPollTimeout = time.Minute

	// DefaultLongPollRecheck is the interval at which the mempool is
	// rechecked once the coarse timeout elapsed.
	DefaultLongPollRecheck = 10 * time.Second

	// DefaultBlockMaxSigOps is the default signature operation cost limit
	// of a template.
	DefaultBlockMaxSigOps = blockchain.MaxBlockSigOpsCost

	// DefaultBlockMaxWeight is the default weight limit of a template.
	DefaultBlockMaxWeight = blockchain.MaxBlockWeight

	// coinbaseWeightReserve is the weight and sigop cost held back for the
	// coinbase transaction.
	coinbaseWeightReserve = 4000
	coinbaseSigOpsReserve = 400
)

// Policy houses the policy (configuration parameters) which is used to control
// the generation of block templates.
type Policy struct {
	// BlockMaxWeight is the maximum block weight to be used when generating
	// a block template.
	BlockMaxWeight int64

	// BlockMaxSigOps is the maximum signature operation cost to be used
	// when generating a block template.
	BlockMaxSigOps int64

	// StrictRules rejects template requests that do not declare support
	// for every required deployment.  Otherwise a warning is logged.
	StrictRules bool

	// RefreshInterval is the minimum age of a cached template before
	// mempool changes cause it to be rebuilt.
	RefreshInterval time.Duration

	// LongPollTimeout is the coarse long-poll timeout and LongPollRecheck
	// the interval of mempool rechecks after it.
	LongPollTimeout time.Duration
	LongPollRecheck time.Duration

	// LongPollMaxWait bounds how long a long-poll may wait for a new tip
	// before returning so clients refresh their connection.  Zero means the
	// coarse timeout.
	LongPollMaxWait time.Duration

	// CoinbaseFlags is appended to the coinbase signature script.
	CoinbaseFlags string

	// PayToScript is the output script the coinbase pays the miner reward
	// to.  Templates can't be built without it.
	PayToScript []byte
}

// DefaultPolicy returns a policy with the default limits and timeouts.
func DefaultPolicy() *Policy {
	return &Policy{
		BlockMaxWeight:  DefaultBlockMaxWeight,
		BlockMaxSigOps:  DefaultBlockMaxSigOps,
		StrictRules:     true,
		RefreshInterval: DefaultRefreshInterval,
		LongPollTimeout: DefaultLongPollTimeout,
		LongPollRecheck: DefaultLongPollRecheck,
		CoinbaseFlags:   "/powcoord/",
	}
}

// budget returns the transaction budget of a template after reserving space
// for the coinbase.
func (p *Policy) budget() Budget {
	maxWeight := p.BlockMaxWeight
	if maxWeight <= 0 || maxWeight > DefaultBlockMaxWeight {
		maxWeight = DefaultBlockMaxWeight
	}
	maxSigOps := p.BlockMaxSigOps
	if maxSigOps <= 0 || maxSigOps > DefaultBlockMaxSigOps {
		maxSigOps = DefaultBlockMaxSigOps
	}
	return Budget{
		MaxWeight: maxInt64(maxWeight-coinbaseWeightReserve, 0),
		MaxSigOps: maxInt64(maxSigOps-coinbaseSigOpsReserve, 0),
	}
}

// maxInt64 is a helper function to return the maximum of two int64s.
func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
