// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainwork provides read-only per-algorithm accounting over the best
// chain: the last block, difficulty and network hashrate of each algorithm as
// well as block counts and rewards over recent windows.
//
// All walks stop at the genesis block, so windows longer than the chain are
// silently clamped.
package chainwork

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
)

// DefaultHashrateLookup is the number of blocks the per-algorithm reports
// average the network hashrate over.
const DefaultHashrateLookup = 120

// ChainReader provides access to the best chain.
type ChainReader interface {
	// Tip returns the tip of the best chain or nil when it is empty.
	Tip() *chainstate.Entry

	// EntryAt returns the best chain entry at the height or nil.
	EntryAt(height int64) *chainstate.Entry
}

// SubsidyFunc returns the subsidy a block mined with the algorithm at the
// given height is entitled to.
type SubsidyFunc func(height int64, a algo.ID) (btcutil.Amount, error)

// Config is a descriptor containing the accountant configuration.
type Config struct {
	// Chain provides access to the best chain.
	Chain ChainReader

	// Params identifies the network.
	Params *netparams.Params

	// Subsidy returns the subsidy of a block.  It is only needed for the
	// reward queries.
	Subsidy SubsidyFunc
}

// Accountant answers per-algorithm accounting queries.  It never modifies
// the chain and is safe for concurrent access.
type Accountant struct {
	cfg Config
}

// New returns an accountant for the provided configuration.
func New(cfg *Config) *Accountant {
	return &Accountant{cfg: *cfg}
}

// LastBlockForAlgorithm returns the most recent best chain entry mined with
// the algorithm.  The genesis entry is returned when no block was mined with
// it and nil is returned for an empty chain.
func (a *Accountant) LastBlockForAlgorithm(id algo.ID) *chainstate.Entry {
	tip := a.cfg.Chain.Tip()
	if tip == nil {
		return nil
	}
	return tip.LastOfAlgo(id)
}

// DifficultyForAlgorithm returns the difficulty of the most recent block
// mined with the algorithm as a multiple of the minimum difficulty.  The tip
// difficulty is not used since the tip may belong to another algorithm.
func (a *Accountant) DifficultyForAlgorithm(id algo.ID) float64 {
	last := a.LastBlockForAlgorithm(id)
	if last == nil {
		return 0
	}
	return pow.DifficultyRatio(last.Bits(), a.cfg.Params.PowLimitBits)
}

// NetworkHashrate estimates the hashes per second of the algorithm over the
// lookup window ending at the entry at height, or at the tip when height is
// negative or not below the tip height.  A non-positive lookup uses the
// blocks since the last difficulty retarget.
//
// Zero is returned when there is no reference block, the window contains
// less than one block or no time elapsed within it.
func (a *Accountant) NetworkHashrate(lookup, height int64, id algo.ID) float64 {
	ref := a.cfg.Chain.Tip()
	if ref != nil && height >= 0 && height < ref.Height() {
		ref = a.cfg.Chain.EntryAt(height)
	}
	if ref == nil || ref.Height() == 0 {
		return 0
	}

	if lookup <= 0 {
		lookup = ref.Height()%a.cfg.Params.RetargetInterval + 1
	}
	if lookup > ref.Height() {
		lookup = ref.Height()
	}

	start := ref
	minTime := ref.Time().Unix()
	maxTime := minTime
	for i := int64(0); i < lookup && start.Prev() != nil; i++ {
		start = start.Prev()
		t := start.Time().Unix()
		if t < minTime {
			minTime = t
		}
		if t > maxTime {
			maxTime = t
		}
	}
	if minTime == maxTime {
		return 0
	}

	// Only the work of the queried algorithm is considered.
	endWork := ref.LastOfAlgo(id).AlgoWork(id)
	startWork := start.LastOfAlgo(id).AlgoWork(id)
	if endWork.Lt(&startWork) {
		return 0
	}
	workDiff := endWork.Sub(&startWork).ToBig()
	hashes, _ := new(big.Float).SetInt(workDiff).Float64()
	return hashes / float64(maxTime-minTime)
}

// tally walks back up to n entries from the tip and returns the number of
// entries mined with the algorithm along with the sum of their subsidies when
// withRewards is set.  The genesis block is never counted.
func (a *Accountant) tally(id algo.ID, n int, withRewards bool) (int, btcutil.Amount, error) {
	var count int
	var sum btcutil.Amount
	e := a.cfg.Chain.Tip()
	for i := 0; e != nil && e.Prev() != nil && i < n; i++ {
		if e.Algo() == id {
			count++
			if withRewards {
				subsidy, err := a.cfg.Subsidy(e.Height(), id)
				if err != nil {
					return 0, 0, err
				}
				sum += subsidy
			}
		}
		e = e.Prev()
	}
	return count, sum, nil
}

// CountBlocksForAlgorithm returns the number of blocks mined with the
// algorithm among the most recent n blocks of the best chain.
func (a *Accountant) CountBlocksForAlgorithm(id algo.ID, n int) int {
	count, _, _ := a.tally(id, n, false)
	return count
}

// SumRewardsForAlgorithm returns the total subsidy of the blocks mined with
// the algorithm among the most recent n blocks of the best chain.
func (a *Accountant) SumRewardsForAlgorithm(id algo.ID, n int) (btcutil.Amount, error) {
	_, sum, err := a.tally(id, n, true)
	return sum, err
}

// AlgoStats houses the per-algorithm chain statistics.
type AlgoStats struct {
	Algo            algo.ID
	Difficulty      float64
	Hashrate        float64
	LastBlockHeight int64
}

// MultiAlgoStats returns the chain statistics of every algorithm in report
// order.
func (a *Accountant) MultiAlgoStats() []AlgoStats {
	stats := make([]AlgoStats, 0, len(algo.ReportOrder))
	for _, id := range algo.ReportOrder {
		s := AlgoStats{
			Algo:       id,
			Difficulty: a.DifficultyForAlgorithm(id),
			Hashrate:   a.NetworkHashrate(DefaultHashrateLookup, -1, id),
		}
		if last := a.LastBlockForAlgorithm(id); last != nil {
			s.LastBlockHeight = last.Height()
		}
		stats = append(stats, s)
	}
	return stats
}

// RewardStats houses the per-algorithm reward statistics over the last day
// and week worth of blocks.
type RewardStats struct {
	Algo              algo.ID
	LastBlockReward   btcutil.Amount
	AvgBlockReward24h btcutil.Amount
	AvgBlockReward7d  btcutil.Amount
	TotalBlocks24h    int
	TotalBlocks7d     int
	TotalRewards24h   btcutil.Amount
	TotalRewards7d    btcutil.Amount
	LastBlockHeight   int64
}

// windowBlocks returns the number of blocks expected over the duration.
func (a *Accountant) windowBlocks(d time.Duration) int {
	return int(d / a.cfg.Params.TargetSpacing)
}

// MiningStats returns the reward statistics of every algorithm in report
// order.
func (a *Accountant) MiningStats() ([]RewardStats, error) {
	blocks24h := a.windowBlocks(24 * time.Hour)
	blocks7d := a.windowBlocks(7 * 24 * time.Hour)

	stats := make([]RewardStats, 0, len(algo.ReportOrder))
	for _, id := range algo.ReportOrder {
		s := RewardStats{Algo: id}
		if last := a.LastBlockForAlgorithm(id); last != nil {
			reward, err := a.cfg.Subsidy(last.Height(), last.Algo())
			if err != nil {
				return nil, err
			}
			s.LastBlockReward = reward
			s.LastBlockHeight = last.Height()
		}

		var err error
		s.TotalBlocks24h, s.TotalRewards24h, err = a.tally(id, blocks24h, true)
		if err != nil {
			return nil, err
		}
		s.TotalBlocks7d, s.TotalRewards7d, err = a.tally(id, blocks7d, true)
		if err != nil {
			return nil, err
		}
		if s.TotalBlocks24h > 0 {
			s.AvgBlockReward24h = s.TotalRewards24h / btcutil.Amount(s.TotalBlocks24h)
		}
		if s.TotalBlocks7d > 0 {
			s.AvgBlockReward7d = s.TotalRewards7d / btcutil.Amount(s.TotalBlocks7d)
		}
		stats = append(stats, s)
	}
	return stats, nil
}
