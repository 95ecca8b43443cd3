// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstate

import (
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/math/uint256"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/pow"
)

// medianTimeBlocks is the number of previous blocks which should be used to
// calculate the median time used to validate block timestamps.
const medianTimeBlocks = 11

// Entry is an immutable entry of the chain index.  It houses the header of a
// block along with its position in the chain and the cumulative work, both
// in total and per algorithm, of the chain ending at the block.
type Entry struct {
	hash     chainhash.Hash
	header   wire.BlockHeader
	height   int64
	sel      pow.Selection
	workSum  uint256.Uint256
	algoWork [algo.Count]uint256.Uint256
	prev     *Entry
}

// NewEntry returns a chain index entry for the header connected to prev.  A
// nil prev creates the genesis entry.  An error wrapping
// pow.ErrUnknownAlgorithm is returned when the header version does not select
// a registered algorithm.
func NewEntry(header *wire.BlockHeader, prev *Entry) (*Entry, error) {
	sel := pow.Select(header)
	if !sel.Valid() {
		_, err := pow.SelectAlgorithm(header)
		return nil, err
	}

	e := &Entry{
		hash:   header.BlockHash(),
		header: *header,
		sel:    sel,
		prev:   prev,
	}
	if prev != nil {
		if header.PrevBlock != prev.hash {
			return nil, fmt.Errorf("header %v does not connect to %v",
				e.hash, prev.hash)
		}
		e.height = prev.height + 1
		e.workSum = prev.workSum
		e.algoWork = prev.algoWork
	}

	work := pow.CalcWork(header.Bits)
	e.workSum.Add(&work)
	e.algoWork[sel.Algo.Index()].Add(&work)
	return e, nil
}

// Hash returns the hash of the block.
func (e *Entry) Hash() chainhash.Hash {
	return e.hash
}

// Header returns a copy of the block header.
func (e *Entry) Header() wire.BlockHeader {
	return e.header
}

// Height returns the height of the block.
func (e *Entry) Height() int64 {
	return e.height
}

// Version returns the version of the block header.
func (e *Entry) Version() int32 {
	return e.header.Version
}

// Bits returns the difficulty bits of the block header.
func (e *Entry) Bits() uint32 {
	return e.header.Bits
}

// Time returns the timestamp of the block header.
func (e *Entry) Time() time.Time {
	return e.header.Timestamp
}

// Selection returns how the algorithm of the block was selected.
func (e *Entry) Selection() pow.Selection {
	return e.sel
}

// Algo returns the algorithm the block was mined with.
func (e *Entry) Algo() algo.ID {
	return e.sel.Algo
}

// WorkSum returns the total cumulative work of the chain ending at the block.
func (e *Entry) WorkSum() uint256.Uint256 {
	return e.workSum
}

// AlgoWork returns the cumulative work contributed by blocks of the given
// algorithm to the chain ending at the block.  It is zero for unregistered
// algorithms.
func (e *Entry) AlgoWork(a algo.ID) uint256.Uint256 {
	idx := a.Index()
	if idx < 0 {
		return uint256.Uint256{}
	}
	return e.algoWork[idx]
}

// Prev returns the previous entry or nil for the genesis entry.
func (e *Entry) Prev() *Entry {
	return e.prev
}

// Ancestor returns the ancestor entry at the provided height by following
// the previous links.  It returns nil when the height is negative or higher
// than the height of the entry.
func (e *Entry) Ancestor(height int64) *Entry {
	if height < 0 || height > e.height {
		return nil
	}
	n := e
	for n != nil && n.height != height {
		n = n.prev
	}
	return n
}

// LastOfAlgo returns the closest entry, starting with the entry itself, mined
// with the given algorithm.  The genesis entry is returned when no such entry
// exists.
func (e *Entry) LastOfAlgo(a algo.ID) *Entry {
	n := e
	for n.prev != nil && n.sel.Algo != a {
		n = n.prev
	}
	return n
}

// MedianTimePast returns the median time of the previous few blocks prior
// to, and including, the entry.
func (e *Entry) MedianTimePast() time.Time {
	timestamps := make([]int64, 0, medianTimeBlocks)
	for n := e; n != nil && len(timestamps) < medianTimeBlocks; n = n.prev {
		timestamps = append(timestamps, n.header.Timestamp.Unix())
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})

	// With an even number of timestamps the upper middle is used, matching
	// the consensus rules of the chain.
	medianTimestamp := timestamps[len(timestamps)/2]
	return time.Unix(medianTimestamp, 0)
}
