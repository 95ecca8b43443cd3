// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memchain

import (
	"fmt"
	"math/big"

	"github.com/decred/dcrd/blockchain/standalone/v2"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/netparams"
)

// DefaultAveragingWindow is the number of blocks of an algorithm the
// difficulty of its next block is derived from.
const DefaultAveragingWindow = 10

// Difficulty calculates the required difficulty of new blocks per
// algorithm.  Each algorithm is retargeted independently so that it
// contributes one block per algo.Count target spacings.
type Difficulty struct {
	params   *netparams.Params
	powLimit *big.Int
	window   int
}

// NewDifficulty returns a difficulty calculator for the network.
func NewDifficulty(params *netparams.Params) *Difficulty {
	return &Difficulty{
		params:   params,
		powLimit: params.PowLimit.ToBig(),
		window:   DefaultAveragingWindow,
	}
}

// targetSecsPerBlock returns the desired number of seconds between two
// blocks of the same algorithm.
func (d *Difficulty) targetSecsPerBlock() int64 {
	return int64(d.params.TargetSpacing.Seconds()) * algo.Count
}

// halfLife returns the number of seconds it takes for the difficulty of an
// algorithm that is a full half life ahead of or behind schedule to double
// or halve.
func (d *Difficulty) halfLife() int64 {
	return d.params.RetargetInterval * int64(d.params.TargetSpacing.Seconds())
}

// NextWorkRequired returns the compact target a block of the algorithm built
// on prev must satisfy.
//
// The target is derived with the ASERT algorithm from the block of the
// algorithm the averaging window of its blocks ago, using the time it took
// to mine the blocks since.  Until the chain holds enough blocks of the
// algorithm, and on networks without retargeting, the proof-of-work limit
// applies.
//
// This is part of the mining.DifficultyCalculator interface.
func (d *Difficulty) NextWorkRequired(prev *chainstate.Entry, a algo.ID) (uint32, error) {
	if !a.IsValid() {
		return 0, fmt.Errorf("unknown algorithm %v", a)
	}
	if prev == nil || d.params.PowNoRetargeting {
		return d.params.PowLimitBits, nil
	}

	last := prev.LastOfAlgo(a)
	anchor := last
	for i := 0; i < d.window; i++ {
		if anchor.Prev() == nil {
			return d.params.PowLimitBits, nil
		}
		anchor = anchor.Prev().LastOfAlgo(a)
	}
	if anchor.Algo() != a {
		return d.params.PowLimitBits, nil
	}

	startDiff := standalone.CompactToBig(anchor.Bits())
	if startDiff.Sign() <= 0 || startDiff.Cmp(d.powLimit) > 0 {
		return 0, fmt.Errorf("block %v has difficulty bits %08x outside "+
			"the valid range", anchor.Hash(), anchor.Bits())
	}

	timeDelta := last.Time().Unix() - anchor.Time().Unix()
	return standalone.CalcASERTDiff(anchor.Bits(), d.powLimit,
		d.targetSecsPerBlock(), timeDelta, int64(d.window),
		d.halfLife()), nil
}
