// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"container/heap"
)

// txPrioItem houses a candidate along with extra information that allows the
// transaction to be prioritized and track dependencies on other candidates
// which have not been selected yet.
type txPrioItem struct {
	index      int
	candidate  *Candidate
	feePerKWU  float64
	unresolved int
}

// txPriorityQueueLessFunc describes a function that can be used as a compare
// function for a transaction priority queue (txPriorityQueue).
type txPriorityQueueLessFunc func(*txPriorityQueue, int, int) bool

// txPriorityQueue implements a priority queue of txPrioItem elements that
// supports an arbitrary compare function as defined by txPriorityQueueLessFunc.
type txPriorityQueue struct {
	lessFunc txPriorityQueueLessFunc
	items    []*txPrioItem
}

// Len returns the number of items in the priority queue.  It is part of the
// heap.Interface implementation.
func (pq *txPriorityQueue) Len() int {
	return len(pq.items)
}

// Less returns whether the item in the priority queue with index i should sort
// before the item with index j by deferring to the assigned less function.  It
// is part of the heap.Interface implementation.
func (pq *txPriorityQueue) Less(i, j int) bool {
	return pq.lessFunc(pq, i, j)
}

// Swap swaps the items at the passed indices in the priority queue.  It is
// part of the heap.Interface implementation.
func (pq *txPriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push pushes the passed item onto the priority queue.  It is part of the
// heap.Interface implementation.
func (pq *txPriorityQueue) Push(x interface{}) {
	pq.items = append(pq.items, x.(*txPrioItem))
}

// Pop removes the highest priority item (according to Less) from the priority
// queue and returns it.  It is part of the heap.Interface implementation.
func (pq *txPriorityQueue) Pop() interface{} {
	n := len(pq.items)
	item := pq.items[n-1]
	pq.items[n-1] = nil
	pq.items = pq.items[0 : n-1]
	return item
}

// SetLessFunc sets the compare function for the priority queue to the provided
// function.  It also invokes heap.Init on the priority queue using the new
// function so it can immediately be used with heap.Push/Pop.
func (pq *txPriorityQueue) SetLessFunc(lessFunc txPriorityQueueLessFunc) {
	pq.lessFunc = lessFunc
	heap.Init(pq)
}

// txPQByFee sorts a txPriorityQueue by fee per thousand weight units and then
// by the order the source returned the candidates in.
func txPQByFee(pq *txPriorityQueue, i, j int) bool {
	// Using > here so that pop gives the highest fee item as opposed to the
	// lowest.
	if pq.items[i].feePerKWU == pq.items[j].feePerKWU {
		return pq.items[i].index < pq.items[j].index
	}
	return pq.items[i].feePerKWU > pq.items[j].feePerKWU
}

// newTxPriorityQueue returns a new transaction priority queue that reserves the
// passed amount of space for the elements.  The new priority queue uses the
// less than function lessFunc to sort the items in the min heap. The priority
// queue can grow larger than the reserved space, but extra copies of the
// underlying array can be avoided by reserving a sane value.
func newTxPriorityQueue(reserve int, lessFunc txPriorityQueueLessFunc) *txPriorityQueue {
	pq := &txPriorityQueue{
		items: make([]*txPrioItem, 0, reserve),
	}
	pq.SetLessFunc(lessFunc)
	return pq
}

// feePerKWU returns the fee rate of the candidate in units per thousand
// weight units.
func feePerKWU(c *Candidate) float64 {
	if c.Weight <= 0 {
		return 0
	}
	return float64(c.Fee) * 1000 / float64(c.Weight)
}

// selectCandidates orders the candidates by fee rate while ensuring every
// candidate follows the candidates it depends on, and drops those that do not
// fit the budget along with everything depending on them.  It returns the
// indices of the selected candidates in block order.
func selectCandidates(candidates []*Candidate, budget Budget) []int {
	items := make([]*txPrioItem, len(candidates))
	dependers := make(map[int][]*txPrioItem)
	pq := newTxPriorityQueue(len(candidates), txPQByFee)
	for i, c := range candidates {
		item := &txPrioItem{index: i, candidate: c, feePerKWU: feePerKWU(c)}
		items[i] = item
		for _, dep := range c.Depends {
			if dep < 0 || dep >= len(candidates) || dep == i {
				continue
			}
			item.unresolved++
			dependers[dep] = append(dependers[dep], item)
		}
	}
	for _, item := range items {
		if item.unresolved == 0 {
			heap.Push(pq, item)
		}
	}

	var weight, sigOps int64
	selected := make([]int, 0, len(candidates))
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*txPrioItem)
		c := item.candidate
		if weight+c.Weight > budget.MaxWeight ||
			sigOps+c.SigOps > budget.MaxSigOps {

			log.Tracef("Skipping tx %s: weight %d sigops %d exceed the "+
				"remaining budget", c.Tx.Hash(), c.Weight, c.SigOps)
			continue
		}
		weight += c.Weight
		sigOps += c.SigOps
		selected = append(selected, item.index)

		// Dependers become eligible once every transaction they spend from
		// is selected.
		for _, depender := range dependers[item.index] {
			depender.unresolved--
			if depender.unresolved == 0 {
				heap.Push(pq, depender)
			}
		}
	}
	return selected
}
