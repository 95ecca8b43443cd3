// Copyright (c) 2017-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainstate provides the handle to the chain state shared by the
// mining coordinator components: a view of the best chain, the mempool
// version counter, tip change notifications and the shutdown signal.
package chainstate

import (
	"sync"
	"sync/atomic"
)

// TipCallback is invoked with the new tip after every tip change.
type TipCallback func(tip *Entry)

// Handle is the shared chain state.  The chain index owner publishes new
// tips with SetTip and bumps the mempool version whenever the transaction
// pool changes while the mining components read it.
//
// A Handle is created once at startup and torn down with Shutdown.  It is
// safe for concurrent access.
type Handle struct {
	mtx sync.RWMutex

	// nodes is the best chain indexed by height.
	nodes []*Entry

	// tipChanged is closed and replaced each time the tip changes.  It is
	// only ever swapped while the write lock is held so that a reader that
	// observes a tip under the read lock also observes the channel that
	// will be closed when that tip is replaced.
	tipChanged chan struct{}

	mempoolVersion atomic.Uint64

	subsMtx     sync.Mutex
	subscribers []TipCallback

	quit     chan struct{}
	quitOnce sync.Once
}

// New returns a handle for an empty chain.
func New() *Handle {
	return &Handle{
		tipChanged: make(chan struct{}),
		quit:       make(chan struct{}),
	}
}

// SetTip makes the provided entry the tip of the best chain, replacing any
// entries that are not its ancestors.  Waiters blocked on the previous tip
// are woken only after the new tip is visible to readers, and subscribers are
// invoked afterwards without any locks held.
func (h *Handle) SetTip(tip *Entry) {
	h.mtx.Lock()
	var oldTip *Entry
	if len(h.nodes) > 0 {
		oldTip = h.nodes[len(h.nodes)-1]
	}
	if oldTip == tip {
		h.mtx.Unlock()
		return
	}

	// Reuse the portion of the view that is shared with the new chain.
	needed := tip.height + 1
	if int64(cap(h.nodes)) < needed {
		nodes := make([]*Entry, needed, needed+needed/8)
		copy(nodes, h.nodes)
		h.nodes = nodes
	} else {
		h.nodes = h.nodes[:needed]
	}
	for n := tip; n != nil && h.nodes[n.height] != n; n = n.prev {
		h.nodes[n.height] = n
	}

	close(h.tipChanged)
	h.tipChanged = make(chan struct{})
	h.mtx.Unlock()

	if oldTip != nil && tip.Ancestor(oldTip.height) != oldTip {
		log.Infof("Chain reorganized from %v (height %d) to %v (height %d)",
			oldTip.hash, oldTip.height, tip.hash, tip.height)
	} else {
		log.Debugf("New tip %v (height %d, algo %s)", tip.hash, tip.height,
			tip.Algo())
	}

	h.subsMtx.Lock()
	subs := h.subscribers
	h.subsMtx.Unlock()
	for _, fn := range subs {
		fn(tip)
	}
}

// Subscribe registers a callback to be invoked after each tip change.
func (h *Handle) Subscribe(fn TipCallback) {
	h.subsMtx.Lock()
	h.subscribers = append(h.subscribers, fn)
	h.subsMtx.Unlock()
}

// Tip returns the tip of the best chain or nil when the chain is empty.
func (h *Handle) Tip() *Entry {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	if len(h.nodes) == 0 {
		return nil
	}
	return h.nodes[len(h.nodes)-1]
}

// Height returns the height of the tip or -1 when the chain is empty.
func (h *Handle) Height() int64 {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return int64(len(h.nodes)) - 1
}

// EntryAt returns the best chain entry at the given height or nil when it
// does not exist.
func (h *Handle) EntryAt(height int64) *Entry {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	if height < 0 || height >= int64(len(h.nodes)) {
		return nil
	}
	return h.nodes[height]
}

// Contains returns whether the entry is part of the best chain.
func (h *Handle) Contains(e *Entry) bool {
	return e != nil && h.EntryAt(e.height) == e
}

// FindFork returns the last entry shared by the best chain and the chain
// ending at the provided entry or nil when they share none.
func (h *Handle) FindFork(e *Entry) *Entry {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	n := e
	if n != nil && n.height >= int64(len(h.nodes)) {
		n = n.Ancestor(int64(len(h.nodes)) - 1)
	}
	for n != nil && h.nodes[n.height] != n {
		n = n.prev
	}
	return n
}

// State is a consistent snapshot of the tip and the mempool version along
// with the channel that is closed when the tip is replaced.
type State struct {
	Tip            *Entry
	MempoolVersion uint64
	TipChanged     <-chan struct{}
}

// Snapshot returns a consistent snapshot of the chain state.
func (h *Handle) Snapshot() State {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	var tip *Entry
	if len(h.nodes) > 0 {
		tip = h.nodes[len(h.nodes)-1]
	}
	return State{
		Tip:            tip,
		MempoolVersion: h.mempoolVersion.Load(),
		TipChanged:     h.tipChanged,
	}
}

// MempoolVersion returns the current mempool version counter.
func (h *Handle) MempoolVersion() uint64 {
	return h.mempoolVersion.Load()
}

// BumpMempoolVersion increments the mempool version counter and returns the
// new value.  It must be called whenever a transaction is accepted into or
// removed from the transaction pool.
func (h *Handle) BumpMempoolVersion() uint64 {
	return h.mempoolVersion.Add(1)
}

// Shutdown signals the node-wide shutdown.  It is safe to call more than
// once.
func (h *Handle) Shutdown() {
	h.quitOnce.Do(func() {
		close(h.quit)
	})
}

// Done returns a channel that is closed on shutdown.
func (h *Handle) Done() <-chan struct{} {
	return h.quit
}

// ShuttingDown returns whether shutdown has been signaled.
func (h *Handle) ShuttingDown() bool {
	select {
	case <-h.quit:
		return true
	default:
		return false
	}
}
