// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool provides a policy-enforced pool of unmined transactions
// that serves as the transaction source of block templates.
package mempool

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/mining"
)

// UtxoEntry houses details about an unspent output of the best chain.
type UtxoEntry struct {
	Amount      btcutil.Amount
	PkScript    []byte
	BlockHeight int64
	IsCoinBase  bool
}

// Config is a descriptor containing the memory pool configuration.
type Config struct {
	// Policy defines the various mempool configuration options related
	// to policy.
	Policy Policy

	// FetchUtxo returns the unspent output of the best chain referenced
	// by the outpoint or nil when it does not exist or is spent.
	FetchUtxo func(outpoint wire.OutPoint) *UtxoEntry

	// BestHeight returns the height of the best chain.
	BestHeight func() int64

	// Chain is the chain state whose mempool version is bumped on every
	// change to the pool.  It may be nil.
	Chain *chainstate.Handle
}

// TxDesc is a descriptor containing a transaction in the mempool along with
// additional metadata.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *btcutil.Tx

	// Added is the time when the entry was added to the pool.
	Added time.Time

	// Height is the block height when the entry was added to the pool.
	Height int64

	// Fee is the total fee the transaction associated with the entry pays.
	Fee btcutil.Amount

	// Weight and SigOps are the weight and signature operation cost of the
	// transaction.
	Weight int64
	SigOps int64

	// seq orders the entries by arrival.
	seq uint64
}

// TxPool is used as a source of transactions that need to be mined into
// blocks.
type TxPool struct {
	// The following variables must only be used atomically.
	lastUpdated atomic.Int64

	mtx       sync.RWMutex
	cfg       Config
	pool      map[chainhash.Hash]*TxDesc
	outpoints map[wire.OutPoint]*btcutil.Tx
	deltas    map[chainhash.Hash]btcutil.Amount
	nextSeq   uint64
}

// Ensure the TxPool type implements the mining.TxSource interface.
var _ mining.TxSource = (*TxPool)(nil)

// changed records a change to the pool.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) changed() {
	mp.lastUpdated.Store(time.Now().Unix())
	if mp.cfg.Chain != nil {
		mp.cfg.Chain.BumpMempoolVersion()
	}
}

// isTransactionInPool returns whether or not the passed transaction already
// exists in the main pool.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) isTransactionInPool(hash *chainhash.Hash) bool {
	_, exists := mp.pool[*hash]
	return exists
}

// HaveTransaction returns whether or not the passed transaction already
// exists in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) HaveTransaction(hash *chainhash.Hash) bool {
	mp.mtx.RLock()
	haveTx := mp.isTransactionInPool(hash)
	mp.mtx.RUnlock()

	return haveTx
}

// removeTransaction is the internal function which implements the public
// RemoveTransaction.  See the comment for RemoveTransaction for more details.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) removeTransaction(tx *btcutil.Tx, removeRedeemers bool) {
	txHash := tx.Hash()
	if removeRedeemers {
		// Remove any transactions which rely on this one.
		prevOut := wire.OutPoint{Hash: *txHash}
		for i := uint32(0); i < uint32(len(tx.MsgTx().TxOut)); i++ {
			prevOut.Index = i
			if txRedeemer, exists := mp.outpoints[prevOut]; exists {
				mp.removeTransaction(txRedeemer, true)
			}
		}
	}

	// Remove the transaction if needed.
	if txDesc, exists := mp.pool[*txHash]; exists {
		log.Tracef("Removing transaction %v", txHash)

		// Mark the referenced outpoints as unspent by the pool.
		for _, txIn := range txDesc.Tx.MsgTx().TxIn {
			delete(mp.outpoints, txIn.PreviousOutPoint)
		}
		delete(mp.pool, *txHash)
		delete(mp.deltas, *txHash)
		mp.changed()
	}
}

// RemoveTransaction removes the passed transaction from the mempool.  When the
// removeRedeemers flag is set, any transactions that redeem outputs from the
// removed transaction will also be removed recursively from the mempool, as
// they would otherwise become orphans.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveTransaction(tx *btcutil.Tx, removeRedeemers bool) {
	mp.mtx.Lock()
	mp.removeTransaction(tx, removeRedeemers)
	mp.mtx.Unlock()
}

// RemoveDoubleSpends removes all transactions which spend outputs spent by the
// passed transaction from the memory pool.  Removing those transactions then
// leads to removing all transactions which rely on them, recursively.  This is
// necessary when a block is connected to the main chain because the block may
// contain transactions which were previously unknown to the memory pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveDoubleSpends(tx *btcutil.Tx) {
	mp.mtx.Lock()
	for _, txIn := range tx.MsgTx().TxIn {
		if txRedeemer, ok := mp.outpoints[txIn.PreviousOutPoint]; ok {
			if !txRedeemer.Hash().IsEqual(tx.Hash()) {
				mp.removeTransaction(txRedeemer, true)
			}
		}
	}
	mp.mtx.Unlock()
}

// FetchTransaction returns the requested transaction from the transaction
// pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) FetchTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error) {
	mp.mtx.RLock()
	txDesc, exists := mp.pool[*txHash]
	mp.mtx.RUnlock()
	if exists {
		return txDesc.Tx, nil
	}

	return nil, fmt.Errorf("transaction is not in the pool")
}

// fetchInput returns the amount of the output referenced by the outpoint and
// whether it exists, looking at the pool first and the best chain second.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) fetchInput(outpoint wire.OutPoint, nextHeight int64) (btcutil.Amount, bool, error) {
	if parent, ok := mp.pool[outpoint.Hash]; ok {
		txOuts := parent.Tx.MsgTx().TxOut
		if outpoint.Index >= uint32(len(txOuts)) {
			str := fmt.Sprintf("output %v references an invalid index of "+
				"pool transaction", outpoint)
			return 0, false, txRuleError(ErrInvalid, str)
		}
		return btcutil.Amount(txOuts[outpoint.Index].Value), true, nil
	}

	entry := mp.cfg.FetchUtxo(outpoint)
	if entry == nil {
		return 0, false, nil
	}
	if entry.IsCoinBase {
		confs := nextHeight - entry.BlockHeight
		if confs < int64(mp.cfg.Policy.CoinbaseMaturity) {
			str := fmt.Sprintf("output %v is an immature coinbase with %d "+
				"of %d confirmations", outpoint, confs,
				mp.cfg.Policy.CoinbaseMaturity)
			return 0, false, txRuleError(ErrImmatureSpend, str)
		}
	}
	return entry.Amount, true, nil
}

// maybeAcceptTransaction is the internal function which implements the public
// ProcessTransaction.  See the comment for ProcessTransaction for more
// details.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) maybeAcceptTransaction(tx *btcutil.Tx, allowHighFees bool) (*TxDesc, error) {
	txHash := tx.Hash()
	msgTx := tx.MsgTx()

	// Don't accept the transaction if it already exists in the pool.
	if mp.isTransactionInPool(txHash) {
		str := fmt.Sprintf("already have transaction %v", txHash)
		return nil, txRuleError(ErrDuplicate, str)
	}

	// Perform preliminary sanity checks on the transaction.
	if err := blockchain.CheckTransactionSanity(tx); err != nil {
		return nil, txRuleError(ErrInvalid, err.Error())
	}

	// A standalone transaction must not be a coinbase transaction.
	if blockchain.IsCoinBase(tx) {
		str := fmt.Sprintf("transaction %v is an individual coinbase",
			txHash)
		return nil, txRuleError(ErrCoinbase, str)
	}

	weight := blockchain.GetTransactionWeight(tx)
	if !mp.cfg.Policy.AcceptNonStd {
		err := checkTransactionStandard(tx, weight,
			mp.cfg.Policy.MinRelayTxFee)
		if err != nil {
			return nil, err
		}
	}

	// The transaction may not use any of the same outputs as other
	// transactions already in the pool.
	for _, txIn := range msgTx.TxIn {
		if txR, exists := mp.outpoints[txIn.PreviousOutPoint]; exists {
			str := fmt.Sprintf("output %v already spent by transaction %v "+
				"in the memory pool", txIn.PreviousOutPoint, txR.Hash())
			return nil, txRuleError(ErrMempoolDoubleSpend, str)
		}
	}

	// Resolve the inputs from the pool and the best chain and calculate
	// the fee.
	nextHeight := mp.cfg.BestHeight() + 1
	var totalIn btcutil.Amount
	for _, txIn := range msgTx.TxIn {
		amount, found, err := mp.fetchInput(txIn.PreviousOutPoint,
			nextHeight)
		if err != nil {
			return nil, err
		}
		if !found {
			str := fmt.Sprintf("orphan transaction %v references outputs "+
				"of unknown or fully-spent transaction %v", txHash,
				txIn.PreviousOutPoint.Hash)
			return nil, txRuleError(ErrOrphan, str)
		}
		totalIn += amount
	}
	var totalOut btcutil.Amount
	for _, txOut := range msgTx.TxOut {
		totalOut += btcutil.Amount(txOut.Value)
	}
	if totalIn < totalOut {
		str := fmt.Sprintf("total value of all transaction inputs for "+
			"transaction %v is %v which is less than the amount spent "+
			"of %v", txHash, totalIn, totalOut)
		return nil, txRuleError(ErrInvalid, str)
	}
	fee := totalIn - totalOut

	minFee := calcMinRequiredTxRelayFee(virtualSize(weight),
		mp.cfg.Policy.MinRelayTxFee)
	if mp.cfg.Policy.MinRelayTxFee > 0 && int64(fee) < minFee {
		str := fmt.Sprintf("transaction %v has %v fees which is under the "+
			"required amount of %v", txHash, fee, btcutil.Amount(minFee))
		return nil, txRuleError(ErrInsufficientFee, str)
	}
	if !allowHighFees && mp.cfg.Policy.MaxTxFee > 0 &&
		fee > mp.cfg.Policy.MaxTxFee {

		str := fmt.Sprintf("transaction %v has %v fee which is above the "+
			"allowed max of %v", txHash, fee, mp.cfg.Policy.MaxTxFee)
		return nil, txRuleError(ErrFeeTooHigh, str)
	}

	// Add the transaction to the pool and mark the referenced outpoints
	// as spent by the pool.
	txD := &TxDesc{
		Tx:     tx,
		Added:  time.Now(),
		Height: nextHeight - 1,
		Fee:    fee,
		Weight: weight,
		SigOps: int64(blockchain.CountSigOps(tx)) *
			blockchain.WitnessScaleFactor,
		seq: mp.nextSeq,
	}
	mp.nextSeq++
	mp.pool[*txHash] = txD
	for _, txIn := range msgTx.TxIn {
		mp.outpoints[txIn.PreviousOutPoint] = tx
	}
	mp.changed()

	log.Debugf("Accepted transaction %v (pool size: %v)", txHash,
		len(mp.pool))
	return txD, nil
}

// ProcessTransaction is the main workhorse for handling insertion of new
// free-standing transactions into the memory pool.  It includes functionality
// such as rejecting duplicate transactions, ensuring transactions follow all
// rules and double spend detection.
//
// This function is safe for concurrent access.
func (mp *TxPool) ProcessTransaction(tx *btcutil.Tx, allowHighFees bool) (*TxDesc, error) {
	log.Tracef("Processing transaction %v", tx.Hash())

	mp.mtx.Lock()
	defer mp.mtx.Unlock()
	return mp.maybeAcceptTransaction(tx, allowHighFees)
}

// Count returns the number of transactions in the main pool.
//
// This is part of the mining.TxSource interface implementation and is safe
// for concurrent access as required by the interface contract.
func (mp *TxPool) Count() int {
	mp.mtx.RLock()
	count := len(mp.pool)
	mp.mtx.RUnlock()

	return count
}

// TxDescs returns a slice of descriptors for all the transactions in the pool
// in the order they were accepted.  The descriptors must be treated as read
// only.
//
// This function is safe for concurrent access.
func (mp *TxPool) TxDescs() []*TxDesc {
	mp.mtx.RLock()
	descs := mp.sortedDescs()
	mp.mtx.RUnlock()

	return descs
}

// sortedDescs returns the descriptors of the pool in arrival order.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) sortedDescs() []*TxDesc {
	descs := make([]*TxDesc, 0, len(mp.pool))
	for _, desc := range mp.pool {
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].seq < descs[j].seq
	})
	return descs
}

// LastUpdated returns the last time a transaction was added to or removed from
// the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) LastUpdated() time.Time {
	return time.Unix(mp.lastUpdated.Load(), 0)
}

// Prioritise adjusts the fee used to rank the transaction when selecting
// transactions for block templates.  Deltas accumulate and are kept for
// transactions that are not in the pool yet.
//
// This is part of the mining.TxSource interface implementation and is safe
// for concurrent access as required by the interface contract.
func (mp *TxPool) Prioritise(hash *chainhash.Hash, feeDelta btcutil.Amount) {
	mp.mtx.Lock()
	mp.deltas[*hash] += feeDelta
	mp.mtx.Unlock()

	log.Debugf("Prioritised transaction %v by %v", hash, feeDelta)
}

// candidateSelection houses the state of a single candidate selection.
type candidateSelection struct {
	pool       map[chainhash.Hash]*TxDesc
	deltas     map[chainhash.Hash]btcutil.Amount
	budget     mining.Budget
	index      map[chainhash.Hash]int
	excluded   map[chainhash.Hash]struct{}
	candidates []*mining.Candidate
}

// add appends the transaction to the selection after all of its pool
// parents.  Transactions that cannot fit the budget on their own are
// excluded along with everything that depends on them.
func (s *candidateSelection) add(desc *TxDesc) bool {
	hash := *desc.Tx.Hash()
	if _, ok := s.index[hash]; ok {
		return true
	}
	if _, ok := s.excluded[hash]; ok {
		return false
	}

	var depends []int
	seen := make(map[int]struct{})
	for _, txIn := range desc.Tx.MsgTx().TxIn {
		parent, ok := s.pool[txIn.PreviousOutPoint.Hash]
		if !ok {
			continue
		}
		if !s.add(parent) {
			s.excluded[hash] = struct{}{}
			return false
		}
		idx := s.index[txIn.PreviousOutPoint.Hash]
		if _, ok := seen[idx]; !ok {
			seen[idx] = struct{}{}
			depends = append(depends, idx)
		}
	}

	if desc.Weight > s.budget.MaxWeight || desc.SigOps > s.budget.MaxSigOps {
		s.excluded[hash] = struct{}{}
		return false
	}

	s.index[hash] = len(s.candidates)
	s.candidates = append(s.candidates, &mining.Candidate{
		Tx:      desc.Tx,
		Fee:     desc.Fee + s.deltas[hash],
		Weight:  desc.Weight,
		SigOps:  desc.SigOps,
		Depends: depends,
	})
	return true
}

// SelectCandidates returns the transactions of the pool that individually
// fit the budget with their priority deltas applied.  Every candidate comes
// after the candidates it depends on.
//
// This is part of the mining.TxSource interface implementation and is safe
// for concurrent access as required by the interface contract.
func (mp *TxPool) SelectCandidates(budget mining.Budget) ([]*mining.Candidate, error) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	s := candidateSelection{
		pool:     mp.pool,
		deltas:   mp.deltas,
		budget:   budget,
		index:    make(map[chainhash.Hash]int, len(mp.pool)),
		excluded: make(map[chainhash.Hash]struct{}),
	}
	for _, desc := range mp.sortedDescs() {
		s.add(desc)
	}
	return s.candidates, nil
}

// New returns a new memory pool for validating and storing standalone
// transactions until they are mined into a block.
func New(cfg *Config) *TxPool {
	return &TxPool{
		cfg:       *cfg,
		pool:      make(map[chainhash.Hash]*TxDesc),
		outpoints: make(map[wire.OutPoint]*btcutil.Tx),
		deltas:    make(map[chainhash.Hash]btcutil.Amount),
	}
}
