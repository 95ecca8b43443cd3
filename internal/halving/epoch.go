// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package halving

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/netparams"
)

const (
	// MinSupplyTargetRatio is the minimum ratio between the supply released
	// since the last halving and the supply target of the closing epoch for
	// the next epoch to halve the subsidy.
	MinSupplyTargetRatio = 0.98

	// MinBoostSupplyTargetRatio is the ratio between the supply released
	// during an epoch and its target below which the next epoch boosts
	// dynamic block rewards.
	MinBoostSupplyTargetRatio = 0.90

	// MaxDynamicRewardsBoost is the largest boost factor applied to dynamic
	// block rewards.
	MaxDynamicRewardsBoost = 0.50
)

// Epoch is a halving epoch: a contiguous range of heights during which the
// maximum block subsidy is constant.
type Epoch struct {
	// Name is only set for bootstrap epochs.  Regular epochs are named by
	// their position relative to the halvings when reported.
	Name string

	StartBlock int64
	EndBlock   int64

	// MaxBlockSubsidy is the most any block of the epoch may be paid.
	MaxBlockSubsidy btcutil.Amount

	// IsSubsidyHalved is set when the epoch began with a halving.
	IsSubsidyHalved bool

	// DynamicRewards is set when block rewards depend on the algorithm.
	DynamicRewards bool

	// DynamicRewardsBoost is the factor dynamic rewards are increased by,
	// within the max block subsidy.
	DynamicRewardsBoost float64

	// Bootstrap is set for the fixed epochs defined by the network.
	Bootstrap bool

	// StartSupply is the supply before the first block of the epoch and
	// EndSupply, once HasEnded is set, the supply after its last block.
	StartSupply btcutil.Amount
	EndSupply   btcutil.Amount
	HasEnded    bool
}

// Contains returns whether the height is within the epoch.
func (e *Epoch) Contains(height int64) bool {
	return height >= e.StartBlock && height <= e.EndBlock
}

// SupplyTarget returns the maximum number of coins the epoch can release.
func (e *Epoch) SupplyTarget() btcutil.Amount {
	return e.MaxBlockSubsidy * btcutil.Amount(e.EndBlock-e.StartBlock+1)
}

// RealizedSupply returns the number of coins the epoch released given the
// current total supply, which is only used while the epoch is open.
func (e *Epoch) RealizedSupply(current btcutil.Amount) btcutil.Amount {
	if e.HasEnded {
		return e.EndSupply - e.StartSupply
	}
	return current - e.StartSupply
}

// BlockSubsidy returns the subsidy of a block of the epoch mined with the
// algorithm.  Dynamic rewards scale the max subsidy by the cost factor of the
// algorithm and the boost of the epoch without ever exceeding the max, so the
// epoch can never release more than its supply target.
func (e *Epoch) BlockSubsidy(a algo.ID) (btcutil.Amount, error) {
	if !a.IsValid() {
		str := fmt.Sprintf("no subsidy for unknown algorithm %#x", uint32(a))
		return 0, makeError(ErrUnknownAlgorithm, str)
	}
	if !e.DynamicRewards {
		return e.MaxBlockSubsidy, nil
	}

	factor := a.CostFactor() * (1 + e.DynamicRewardsBoost)
	subsidy := btcutil.Amount(math.Floor(float64(e.MaxBlockSubsidy) * factor))
	if subsidy > e.MaxBlockSubsidy {
		subsidy = e.MaxBlockSubsidy
	}
	return subsidy, nil
}

// supplyRatio returns realized/target or 0 for an empty target.
func supplyRatio(realized, target btcutil.Amount) float64 {
	if target <= 0 {
		return 0
	}
	return float64(realized) / float64(target)
}

// EvaluateEpochBoundary returns the epoch that follows the closing epoch.
// The next epoch halves the max subsidy and doubles the interval only when
// the supply released since the last halving reached MinSupplyTargetRatio of
// the supply target of the closing epoch.  Otherwise it repeats the interval
// and max subsidy.  Dynamic rewards are boosted in the next epoch when the
// closing epoch alone released less than MinBoostSupplyTargetRatio of its
// target.
//
// The closing epoch must have ended.
func EvaluateEpochBoundary(closing *Epoch, realizedSinceHalving btcutil.Amount, interval int64) (next Epoch, newInterval int64) {
	next = Epoch{
		StartBlock:      closing.EndBlock + 1,
		MaxBlockSubsidy: closing.MaxBlockSubsidy,
		DynamicRewards:  true,
		StartSupply:     closing.EndSupply,
	}

	target := closing.SupplyTarget()
	halve := target > 0 && closing.MaxBlockSubsidy > 1 &&
		supplyRatio(realizedSinceHalving, target) >= MinSupplyTargetRatio
	if halve {
		next.IsSubsidyHalved = true
		next.MaxBlockSubsidy = closing.MaxBlockSubsidy / 2
		interval *= 2
	}
	next.EndBlock = next.StartBlock + interval - 1

	released := supplyRatio(closing.EndSupply-closing.StartSupply, target)
	if target > 0 && released < MinBoostSupplyTargetRatio {
		next.DynamicRewardsBoost = math.Min(MaxDynamicRewardsBoost, 1-released)
	}
	return next, interval
}

// State is the halving state: the ordered epochs that occurred up to and
// including the current one along with the halving counter and interval.
type State struct {
	Epochs          []Epoch
	HalvingCount    int
	HalvingInterval int64

	// Supply is the total subsidy released by the blocks up to and
	// including LastHeight, which is -1 before any block is processed.
	Supply     btcutil.Amount
	LastHeight int64
	LastHash   chainhash.Hash
}

// initialState returns the state before any block is processed.
func initialState(params *netparams.Params) State {
	return State{
		Epochs:          []Epoch{bootstrapEpoch(params, 0, 0)},
		HalvingInterval: params.InitialHalvingInterval,
		LastHeight:      -1,
	}
}

// bootstrapEpoch returns the idx-th bootstrap epoch of the network.
func bootstrapEpoch(params *netparams.Params, idx int, startSupply btcutil.Amount) Epoch {
	p := &params.BootstrapEpochs[idx]
	return Epoch{
		Name:            p.Name,
		StartBlock:      p.StartHeight,
		EndBlock:        p.EndHeight,
		MaxBlockSubsidy: p.MaxSubsidy,
		DynamicRewards:  p.DynamicRewards,
		Bootstrap:       true,
		StartSupply:     startSupply,
	}
}

// current returns the open epoch.
func (s *State) current() *Epoch {
	return &s.Epochs[len(s.Epochs)-1]
}

// epochAt returns the epoch containing the height or nil.
func (s *State) epochAt(height int64) *Epoch {
	// Epochs are ordered, so search from the end where most lookups land.
	for i := len(s.Epochs) - 1; i >= 0; i-- {
		e := &s.Epochs[i]
		if e.Contains(height) {
			return e
		}
		if e.EndBlock < height {
			break
		}
	}
	return nil
}

// supplySinceHalving returns the supply released by the regular epochs since
// the most recent halving, or since the first regular epoch when no halving
// occurred yet, through the epoch at index idx.
func (s *State) supplySinceHalving(idx int) btcutil.Amount {
	var sum btcutil.Amount
	for i := idx; i >= 0; i-- {
		e := &s.Epochs[i]
		if e.Bootstrap {
			break
		}
		sum += e.RealizedSupply(s.Supply)
		if e.IsSubsidyHalved {
			break
		}
	}
	return sum
}

// validate ensures the epochs are non-empty, contiguous, start at genesis
// and agree with the halving counter.
func (s *State) validate() error {
	if len(s.Epochs) == 0 {
		return makeError(ErrInconsistentEpochs, "no halving epochs")
	}
	if s.Epochs[0].StartBlock != 0 {
		str := fmt.Sprintf("first epoch starts at %d", s.Epochs[0].StartBlock)
		return makeError(ErrInconsistentEpochs, str)
	}
	halvings := 0
	for i := range s.Epochs {
		e := &s.Epochs[i]
		if e.EndBlock < e.StartBlock {
			str := fmt.Sprintf("epoch %d ends at %d before its start %d", i,
				e.EndBlock, e.StartBlock)
			return makeError(ErrInconsistentEpochs, str)
		}
		if i > 0 && s.Epochs[i-1].EndBlock+1 != e.StartBlock {
			str := fmt.Sprintf("epoch %d starts at %d but epoch %d ends at %d",
				i, e.StartBlock, i-1, s.Epochs[i-1].EndBlock)
			return makeError(ErrInconsistentEpochs, str)
		}
		if i < len(s.Epochs)-1 && !e.HasEnded {
			str := fmt.Sprintf("epoch %d is followed by another epoch but has "+
				"not ended", i)
			return makeError(ErrInconsistentEpochs, str)
		}
		if e.IsSubsidyHalved {
			halvings++
		}
	}
	if halvings != s.HalvingCount {
		str := fmt.Sprintf("halving counter %d does not match %d halved "+
			"epochs", s.HalvingCount, halvings)
		return makeError(ErrInconsistentEpochs, str)
	}
	return nil
}

// clone returns a deep copy of the state.
func (s *State) clone() State {
	c := *s
	c.Epochs = append([]Epoch(nil), s.Epochs...)
	return c
}
