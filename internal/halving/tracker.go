// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package halving implements the supply-gated halving schedule.
//
// The schedule starts with a fixed set of bootstrap epochs defined by the
// network.  Every later epoch spans the current halving interval and, when it
// closes, the next epoch only halves the max block subsidy (and doubles the
// interval) when the supply released since the previous halving reached
// MinSupplyTargetRatio of the supply target of the closing epoch.  Otherwise
// the same reward level and interval repeat.  An epoch that under-delivers
// boosts the dynamic rewards of its successor without ever allowing an epoch
// to release more than its supply target.
//
// The Tracker follows the best chain incrementally and rewinds to the fork
// point on reorganization.
package halving

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/netparams"
)

// ChainReader provides access to the tip of the best chain.
type ChainReader interface {
	// Tip returns the tip of the best chain or nil when it is empty.
	Tip() *chainstate.Entry
}

// Config is a descriptor containing the halving tracker configuration.
type Config struct {
	// Chain provides access to the best chain.
	Chain ChainReader

	// Params identifies the network and its bootstrap epochs.
	Params *netparams.Params

	// Store persists the state between restarts.  It may be nil.
	Store *Store
}

// Tracker owns the halving state and keeps it in line with the best chain.
// It is safe for concurrent access.
type Tracker struct {
	cfg Config

	mtx   sync.Mutex
	state State

	// last is the entry of the last processed block.  It is nil after the
	// state is loaded from the store until the first sync confirms the
	// stored block is still on the best chain.
	last  *chainstate.Entry
	dirty bool
}

// New returns a halving tracker.  A previously stored state is loaded and
// validated when a store is configured.
func New(cfg *Config) (*Tracker, error) {
	if len(cfg.Params.BootstrapEpochs) == 0 {
		return nil, makeError(ErrInconsistentEpochs, "network defines no "+
			"bootstrap epochs")
	}

	t := &Tracker{cfg: *cfg, state: initialState(cfg.Params)}
	if cfg.Store == nil {
		return t, nil
	}
	stored, err := cfg.Store.Load()
	if errors.Is(err, ErrCorruptState) {
		log.Warnf("Discarding stored halving state: %v", err)
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return t, nil
	}
	if err := stored.validate(); err != nil {
		log.Warnf("Discarding stored halving state: %v", err)
		return t, nil
	}
	t.state = *stored
	log.Infof("Loaded halving state at height %d (%d epochs, %d halvings)",
		stored.LastHeight, len(stored.Epochs), stored.HalvingCount)
	return t, nil
}

// findFork returns the most recent entry shared by the chains ending at a and
// b or nil when they share none.
func findFork(a, b *chainstate.Entry) *chainstate.Entry {
	if a.Height() > b.Height() {
		a = a.Ancestor(b.Height())
	} else if b.Height() > a.Height() {
		b = b.Ancestor(a.Height())
	}
	for a != nil && b != nil && a != b {
		a, b = a.Prev(), b.Prev()
	}
	if a != b {
		return nil
	}
	return a
}

// reset discards all processed blocks.
func (t *Tracker) reset() {
	t.state = initialState(t.cfg.Params)
	t.last = nil
	t.dirty = true
}

// rewind restores the state to what it was right after the fork entry was
// processed.
//
// This function MUST be called with the tracker lock held.
func (t *Tracker) rewind(fork *chainstate.Entry) error {
	forkHeight := fork.Height()
	s := &t.state

	// Epochs starting right after the fork only depend on blocks up to the
	// fork, so they survive.
	keep := len(s.Epochs)
	for keep > 1 && s.Epochs[keep-1].StartBlock > forkHeight+1 {
		keep--
	}
	s.Epochs = s.Epochs[:keep]
	cur := s.current()
	cur.HasEnded = false
	cur.EndSupply = 0

	s.HalvingCount = 0
	s.HalvingInterval = t.cfg.Params.InitialHalvingInterval
	for i := range s.Epochs {
		e := &s.Epochs[i]
		if e.IsSubsidyHalved {
			s.HalvingCount++
		}
		if !e.Bootstrap {
			s.HalvingInterval = e.EndBlock - e.StartBlock + 1
		}
	}

	// Recompute the supply released by the reopened epoch up to the fork.
	supply := cur.StartSupply
	for n := fork; n != nil && n.Height() >= cur.StartBlock; n = n.Prev() {
		subsidy, err := cur.BlockSubsidy(n.Algo())
		if err != nil {
			return err
		}
		supply += subsidy
	}
	s.Supply = supply
	s.LastHeight = forkHeight
	s.LastHash = fork.Hash()
	t.last = fork
	t.dirty = true

	log.Infof("Rewound halving state to height %d (%d epochs)", forkHeight,
		len(s.Epochs))
	return s.validate()
}

// connect processes the block of the entry, which must directly follow the
// last processed block.
//
// This function MUST be called with the tracker lock held.
func (t *Tracker) connect(e *chainstate.Entry) error {
	s := &t.state
	height := e.Height()
	cur := s.current()
	if !cur.Contains(height) {
		str := fmt.Sprintf("block %v at height %d is outside the open epoch "+
			"[%d, %d]", e.Hash(), height, cur.StartBlock, cur.EndBlock)
		return makeError(ErrInconsistentEpochs, str)
	}

	subsidy, err := cur.BlockSubsidy(e.Algo())
	if err != nil {
		return err
	}
	s.Supply += subsidy
	s.LastHeight = height
	s.LastHash = e.Hash()
	t.last = e
	t.dirty = true

	if height != cur.EndBlock {
		return nil
	}

	// Close the epoch and open the next one.
	cur.EndSupply = s.Supply
	cur.HasEnded = true
	idx := len(s.Epochs) - 1
	params := t.cfg.Params
	var next Epoch
	switch {
	case idx < len(params.BootstrapEpochs)-1:
		next = bootstrapEpoch(params, idx+1, s.Supply)

	case idx == len(params.BootstrapEpochs)-1:
		next = Epoch{
			StartBlock:      params.HalvingStartHeight(),
			EndBlock:        params.HalvingStartHeight() + s.HalvingInterval - 1,
			MaxBlockSubsidy: cur.MaxBlockSubsidy,
			DynamicRewards:  true,
			StartSupply:     s.Supply,
		}

	default:
		since := s.supplySinceHalving(idx)
		next, s.HalvingInterval = EvaluateEpochBoundary(cur, since,
			s.HalvingInterval)
		if next.IsSubsidyHalved {
			s.HalvingCount++
			log.Infof("Halving %d at height %d: max block subsidy %v, "+
				"interval %d", s.HalvingCount, next.StartBlock,
				next.MaxBlockSubsidy, s.HalvingInterval)
		} else {
			log.Infof("Supply target not reached at height %d (%v of %v), "+
				"repeating epoch", height, since, cur.SupplyTarget())
		}
		if next.DynamicRewardsBoost > 0 {
			log.Debugf("Dynamic rewards boosted by %.4f from height %d",
				next.DynamicRewardsBoost, next.StartBlock)
		}
	}
	s.Epochs = append(s.Epochs, next)
	return nil
}

// sync brings the state in line with the best chain.
//
// This function MUST be called with the tracker lock held.
func (t *Tracker) sync() error {
	tip := t.cfg.Chain.Tip()
	if tip == nil || tip == t.last {
		return nil
	}

	s := &t.state
	switch {
	case t.last != nil:
		fork := findFork(t.last, tip)
		if fork == nil {
			log.Warnf("Best chain shares no block with the halving state, " +
				"recomputing")
			t.reset()
		} else if fork != t.last {
			if err := t.rewind(fork); err != nil {
				return err
			}
		}

	case s.LastHeight >= 0:
		// The state was loaded from the store.
		e := tip.Ancestor(s.LastHeight)
		if e == nil || e.Hash() != s.LastHash {
			log.Infof("Stored halving state at height %d is not on the "+
				"best chain, recomputing", s.LastHeight)
			t.reset()
		} else {
			t.last = e
		}
	}

	if s.LastHeight >= tip.Height() {
		return nil
	}
	pending := make([]*chainstate.Entry, tip.Height()-s.LastHeight)
	for n := tip; n != nil && n.Height() > s.LastHeight; n = n.Prev() {
		pending[n.Height()-s.LastHeight-1] = n
	}
	for _, e := range pending {
		if err := t.connect(e); err != nil {
			return err
		}
	}
	return nil
}

// Sync brings the halving state in line with the best chain and persists it
// when a store is configured.
func (t *Tracker) Sync() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err := t.sync(); err != nil {
		return err
	}
	return t.flush()
}

// flush writes the state to the store when it changed.
//
// This function MUST be called with the tracker lock held.
func (t *Tracker) flush() error {
	if t.cfg.Store == nil || !t.dirty {
		return nil
	}
	if err := t.cfg.Store.Save(&t.state); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Flush persists the halving state.
func (t *Tracker) Flush() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.flush()
}

// epochAt syncs and returns a copy of the epoch containing the height.
func (t *Tracker) epochAt(height int64) (Epoch, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err := t.sync(); err != nil {
		return Epoch{}, err
	}
	if err := t.state.validate(); err != nil {
		return Epoch{}, err
	}
	e := t.state.epochAt(height)
	if e == nil {
		cur := t.state.current()
		str := fmt.Sprintf("height %d is beyond the end of the current "+
			"epoch at height %d", height, cur.EndBlock)
		return Epoch{}, makeError(ErrHeightNotReached, str)
	}
	return *e, nil
}

// MaxSubsidyAt returns the max block subsidy of the epoch containing the
// height.  Heights beyond the open epoch are not known yet since the next
// epoch depends on the supply its predecessor releases.
func (t *Tracker) MaxSubsidyAt(height int64) (btcutil.Amount, error) {
	e, err := t.epochAt(height)
	if err != nil {
		return 0, err
	}
	return e.MaxBlockSubsidy, nil
}

// BlockSubsidy returns the subsidy a block mined with the algorithm at the
// height is entitled to.
func (t *Tracker) BlockSubsidy(height int64, a algo.ID) (btcutil.Amount, error) {
	e, err := t.epochAt(height)
	if err != nil {
		return 0, err
	}
	return e.BlockSubsidy(a)
}

// State syncs and returns a copy of the halving state.
func (t *Tracker) State() (State, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err := t.sync(); err != nil {
		return State{}, err
	}
	return t.state.clone(), nil
}
