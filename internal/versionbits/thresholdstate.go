// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2017-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package versionbits computes the threshold states of the soft-fork
// deployments signaled through the version bits of block headers.
package versionbits

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
)

// ThresholdState define the various threshold states used when voting on
// consensus changes.
type ThresholdState byte

// These constants are used to identify specific threshold states.
const (
	// ThresholdDefined is the first state for each deployment and is the
	// state for the genesis block has by definition for all deployments.
	ThresholdDefined ThresholdState = iota

	// ThresholdStarted is the state for a deployment once its start time
	// has been reached.
	ThresholdStarted

	// ThresholdLockedIn is the state for a deployment during the window
	// after the ThresholdStarted window in which enough blocks signaled
	// for the deployment.
	ThresholdLockedIn

	// ThresholdActive is the state for a deployment for all blocks after a
	// window in which the deployment was in the ThresholdLockedIn state.
	ThresholdActive

	// ThresholdFailed is the state for a deployment once its expiration
	// time has been reached and it did not reach the ThresholdLockedIn
	// state.
	ThresholdFailed
)

// thresholdStateStrings is a map of ThresholdState values back to their
// constant names for pretty printing.
var thresholdStateStrings = map[ThresholdState]string{
	ThresholdDefined:  "ThresholdDefined",
	ThresholdStarted:  "ThresholdStarted",
	ThresholdLockedIn: "ThresholdLockedIn",
	ThresholdActive:   "ThresholdActive",
	ThresholdFailed:   "ThresholdFailed",
}

// String returns the ThresholdState as a human-readable name.
func (t ThresholdState) String() string {
	if s := thresholdStateStrings[t]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ThresholdState (%d)", int(t))
}

// thresholdStateCache caches the threshold state of each window by the hash
// of the last block of the previous window.
type thresholdStateCache struct {
	entries map[chainhash.Hash]ThresholdState
}

// Lookup returns the threshold state associated with the given hash along
// with a boolean that indicates whether or not it is valid.
func (c *thresholdStateCache) Lookup(hash chainhash.Hash) (ThresholdState, bool) {
	state, ok := c.entries[hash]
	return state, ok
}

// Update updates the cache to contain the provided hash to threshold state
// mapping.
func (c *thresholdStateCache) Update(hash chainhash.Hash, state ThresholdState) {
	c.entries[hash] = state
}

// Calculator computes deployment threshold states for the network.  It is
// safe for concurrent access.
type Calculator struct {
	params *netparams.Params

	mtx    sync.Mutex
	caches map[string]*thresholdStateCache
}

// NewCalculator returns a threshold state calculator for the network.
func NewCalculator(params *netparams.Params) *Calculator {
	caches := make(map[string]*thresholdStateCache, len(params.Deployments))
	for _, d := range params.Deployments {
		caches[d.Name] = &thresholdStateCache{
			entries: make(map[chainhash.Hash]ThresholdState),
		}
	}
	return &Calculator{params: params, caches: caches}
}

// Signals returns whether the version signals for the deployment: the top
// bits must hold the version bits marker and the deployment bit must be set.
func Signals(version int32, d *netparams.Deployment) bool {
	return uint32(version)&pow.VersionBitsTopMask == pow.VersionBitsTopBits &&
		uint32(version)&(1<<d.Bit) != 0
}

// countSignals returns the number of blocks of the window ending at the entry
// that signal for the deployment.
func (c *Calculator) countSignals(windowEnd *chainstate.Entry, d *netparams.Deployment) uint32 {
	var count uint32
	n := windowEnd
	for i := uint32(0); i < c.params.MinerConfirmationWindow && n != nil; i++ {
		if Signals(n.Version(), d) {
			count++
		}
		n = n.Prev()
	}
	return count
}

// State returns the threshold state of the deployment for the block AFTER
// the given entry.  The cache ensures the states of previous windows are only
// calculated once.
func (c *Calculator) State(prev *chainstate.Entry, d *netparams.Deployment) ThresholdState {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	cache, ok := c.caches[d.Name]
	if !ok {
		cache = &thresholdStateCache{
			entries: make(map[chainhash.Hash]ThresholdState),
		}
		c.caches[d.Name] = cache
	}

	// The threshold state for the window that contains the genesis block is
	// defined by definition.
	window := int64(c.params.MinerConfirmationWindow)
	if prev == nil || prev.Height()+1 < window {
		return ThresholdDefined
	}

	// Get the ancestor that is the last block of the previous confirmation
	// window in order to get its threshold state.  This can be done because
	// the state is the same for all blocks within a given window.
	prev = prev.Ancestor(prev.Height() - (prev.Height()+1)%window)

	// Iterate backwards through each of the previous confirmation windows
	// to find the most recently cached threshold state.
	var neededStates []*chainstate.Entry
	for prev != nil {
		if _, ok := cache.Lookup(prev.Hash()); ok {
			break
		}

		// The state is simply defined if the start time hasn't been
		// reached yet.
		medianTime := uint64(prev.MedianTimePast().Unix())
		if medianTime < d.StartTime {
			cache.Update(prev.Hash(), ThresholdDefined)
			break
		}

		neededStates = append(neededStates, prev)
		prev = prev.Ancestor(prev.Height() - window)
	}

	// Start with the threshold state for the most recent confirmation
	// window that has a cached state.
	state := ThresholdDefined
	if prev != nil {
		var ok bool
		state, ok = cache.Lookup(prev.Hash())
		if !ok {
			panic(fmt.Sprintf("threshold state cache lookup failed for %v",
				prev.Hash()))
		}
	}

	// Since each threshold state depends on the state of the previous
	// window, iterate starting from the oldest unknown window.
	for i := len(neededStates) - 1; i >= 0; i-- {
		windowEnd := neededStates[i]
		medianTime := uint64(windowEnd.MedianTimePast().Unix())
		oldState := state

		switch state {
		case ThresholdDefined:
			switch {
			case medianTime >= d.ExpireTime:
				state = ThresholdFailed
			case medianTime >= d.StartTime:
				state = ThresholdStarted
			}

		case ThresholdStarted:
			if medianTime >= d.ExpireTime {
				state = ThresholdFailed
				break
			}
			count := c.countSignals(windowEnd, d)
			if count >= c.params.RuleChangeActivationThreshold {
				state = ThresholdLockedIn
			}

		case ThresholdLockedIn:
			state = ThresholdActive

		// Nothing to do if the previous state is active or failed since
		// they are both terminal states.
		case ThresholdActive:
		case ThresholdFailed:
		}

		if state != oldState {
			log.Debugf("Deployment %s moved from %v to %v after height %d",
				d.Name, oldState, state, windowEnd.Height())
		}
		cache.Update(windowEnd.Hash(), state)
	}

	return state
}

// DeploymentState houses a deployment along with its threshold state.
type DeploymentState struct {
	Deployment *netparams.Deployment
	State      ThresholdState
}

// States returns the threshold states of every deployment of the network for
// the block AFTER the given entry.
func (c *Calculator) States(prev *chainstate.Entry) []DeploymentState {
	states := make([]DeploymentState, 0, len(c.params.Deployments))
	for i := range c.params.Deployments {
		d := &c.params.Deployments[i]
		states = append(states, DeploymentState{
			Deployment: d,
			State:      c.State(prev, d),
		})
	}
	return states
}

// BlockVersion returns the version bits a block built on the entry signals
// with by default: the marker plus the bits of every deployment that is
// started or locked in.  The algorithm field is left clear.
func (c *Calculator) BlockVersion(prev *chainstate.Entry) int32 {
	version := uint32(pow.VersionBitsTopBits)
	for _, s := range c.States(prev) {
		if s.State == ThresholdStarted || s.State == ThresholdLockedIn {
			version |= 1 << s.Deployment.Bit
		}
	}
	return int32(version)
}
