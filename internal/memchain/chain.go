// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package memchain implements an in-memory chain index owner for the
// simulation network.  It accepts blocks and headers found by miners,
// tracks the unspent outputs of the best chain, selects the chain with the
// most cumulative work and publishes its tip to the shared chain state.
package memchain

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/mempool"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
)

// maxTimeOffset is the maximum duration a block time is allowed to be ahead
// of the current time.
const maxTimeOffset = 2 * time.Hour

// Config is a descriptor which specifies the chain instance configuration.
type Config struct {
	// Params identifies which chain parameters the chain is associated
	// with.
	Params *netparams.Params

	// Chain is the shared chain state the best chain is published to.
	Chain *chainstate.Handle

	// Difficulty provides the required difficulty of new blocks.
	Difficulty mining.DifficultyCalculator

	// Subsidy provides the subsidy coinbases are allowed to claim.
	Subsidy mining.SubsidySource

	// Payees provides the outputs coinbases must pay.  It may be nil.
	Payees mining.PayeeResolver

	// MaxTipAge is the age of the tip after which the chain is no longer
	// considered current.  Zero disables the check.
	MaxTipAge time.Duration

	// Notifications defines a callback to which notifications will be sent
	// when various events take place.  It is invoked with the processing
	// lock held but without the chain lock, so it may query the chain.
	//
	// This field can be nil if the caller is not interested in receiving
	// notifications.
	Notifications NotificationCallback

	// Now returns the current time.  It defaults to time.Now.
	Now func() time.Time
}

// spentOutput is an output spent by a connected block along with its unspent
// entry so the spend can be undone.
type spentOutput struct {
	outpoint wire.OutPoint
	entry    *mempool.UtxoEntry
}

// blockNode is a block or header known to the chain.
type blockNode struct {
	entry *chainstate.Entry

	// block is nil for nodes only known by their header.
	block *wire.MsgBlock

	// undo holds the outputs spent by the block while it is part of the
	// best chain.
	undo []spentOutput
}

// Chain provides functions for working with the in-memory block chain.  It
// includes functionality such as rejecting duplicate blocks, ensuring blocks
// follow the rules enforced by the mining coordinator, orphan handling and
// best chain selection with reorganization.
type Chain struct {
	cfg Config

	// processLock protects concurrent access to overall chain processing
	// independent from the chain lock which is periodically released to
	// send notifications.
	processLock sync.Mutex

	// chainLock protects concurrent access to the index, the best chain
	// and the unspent outputs.
	chainLock sync.RWMutex
	index     map[chainhash.Hash]*blockNode
	best      *blockNode
	utxos     map[wire.OutPoint]*mempool.UtxoEntry
}

// Ensure the Chain type implements the mining.BlockSubmitter interface.
var _ mining.BlockSubmitter = (*Chain)(nil)

// New returns a chain whose best chain consists of the genesis block of the
// network.  The genesis block is published as the tip of the chain state.
func New(cfg *Config) (*Chain, error) {
	c := &Chain{
		cfg:   *cfg,
		index: make(map[chainhash.Hash]*blockNode),
		utxos: make(map[wire.OutPoint]*mempool.UtxoEntry),
	}
	if c.cfg.Now == nil {
		c.cfg.Now = time.Now
	}

	// The outputs of the genesis block are not spendable.
	genesis := cfg.Params.GenesisBlock
	entry, err := chainstate.NewEntry(&genesis.Header, nil)
	if err != nil {
		return nil, err
	}
	node := &blockNode{entry: entry, block: genesis}
	c.index[entry.Hash()] = node
	c.best = node
	cfg.Chain.SetTip(entry)
	return c, nil
}

// reject returns a rejection with the reason.
func reject(reason string) error {
	return mining.RejectError(reason)
}

// checkBlockSanity performs the checks of a block that do not depend on its
// position in the chain apart from proof of work.
func checkBlockSanity(block *wire.MsgBlock) error {
	if len(block.Transactions) == 0 ||
		!blockchain.IsCoinBaseTx(block.Transactions[0]) {

		return reject("bad-cb-missing")
	}

	txs := make([]*btcutil.Tx, 0, len(block.Transactions))
	seen := make(map[chainhash.Hash]struct{}, len(block.Transactions))
	for i, msgTx := range block.Transactions {
		if i > 0 && blockchain.IsCoinBaseTx(msgTx) {
			return reject("bad-cb-multiple")
		}
		tx := btcutil.NewTx(msgTx)
		if err := blockchain.CheckTransactionSanity(tx); err != nil {
			log.Debugf("Transaction %v failed sanity checks: %v",
				tx.Hash(), err)
			return reject("bad-txns-sanity")
		}
		if _, ok := seen[*tx.Hash()]; ok {
			return reject("bad-txns-duplicate")
		}
		seen[*tx.Hash()] = struct{}{}
		txs = append(txs, tx)
	}

	if blockchain.CalcMerkleRoot(txs, false) != block.Header.MerkleRoot {
		return reject("bad-txnmrklroot")
	}
	if blockchain.GetBlockWeight(btcutil.NewBlock(block)) > blockchain.MaxBlockWeight {
		return reject("bad-blk-weight")
	}
	return nil
}

// checkProofOfWork ensures the header selects an algorithm with a registered
// hasher and that its hash meets the target.
func (c *Chain) checkProofOfWork(header *wire.BlockHeader) error {
	err := pow.CheckHeader(header, c.cfg.Params.PowLimit)
	switch {
	case errors.Is(err, pow.ErrHighHash):
		return reject("high-hash")
	case errors.Is(err, pow.ErrUnexpectedDifficulty):
		return reject("bad-diffbits")
	}
	return err
}

// checkHeaderContext performs the checks of a header that depend on its
// parent.
func (c *Chain) checkHeaderContext(header *wire.BlockHeader, entry, parent *chainstate.Entry) error {
	bits, err := c.cfg.Difficulty.NextWorkRequired(parent, entry.Algo())
	if err != nil {
		return err
	}
	if header.Bits != bits {
		log.Debugf("Block %v has difficulty bits %08x, expected %08x",
			entry.Hash(), header.Bits, bits)
		return reject("bad-diffbits")
	}
	if !header.Timestamp.After(parent.MedianTimePast()) {
		return reject("time-too-old")
	}
	if header.Timestamp.After(c.cfg.Now().Add(maxTimeOffset)) {
		return reject("time-too-new")
	}
	return nil
}

// checkBlockContext performs the checks of a block that depend on its parent
// but not on the unspent outputs.
func (c *Chain) checkBlockContext(block *wire.MsgBlock, entry, parent *chainstate.Entry) error {
	if err := c.checkHeaderContext(&block.Header, entry, parent); err != nil {
		return err
	}
	coinbase := btcutil.NewTx(block.Transactions[0])
	height, err := blockchain.ExtractCoinbaseHeight(coinbase)
	if err != nil || int64(height) != entry.Height() {
		return reject("bad-cb-height")
	}
	return nil
}

// checkCoinbase ensures the coinbase of a block claims no more than the
// subsidy and fees it is entitled to and pays every required payee.
func (c *Chain) checkCoinbase(block *wire.MsgBlock, entry *chainstate.Entry, fees btcutil.Amount) error {
	subsidy, err := c.cfg.Subsidy.BlockSubsidy(entry.Height(), entry.Algo())
	if err != nil {
		return err
	}
	coinbase := block.Transactions[0]
	var paid btcutil.Amount
	for _, txOut := range coinbase.TxOut {
		paid += btcutil.Amount(txOut.Value)
	}
	if paid > subsidy+fees {
		log.Debugf("Coinbase of block %v pays %v, entitled to %v",
			entry.Hash(), paid, subsidy+fees)
		return reject("bad-cb-amount")
	}

	if c.cfg.Payees == nil {
		return nil
	}
	payees, err := c.cfg.Payees.RequiredPayees(entry.Height())
	if err != nil {
		return err
	}
	for _, payee := range payees {
		found := false
		for _, txOut := range coinbase.TxOut {
			if txOut.Value >= int64(payee.Amount) &&
				bytes.Equal(txOut.PkScript, payee.PkScript) {

				found = true
				break
			}
		}
		if !found {
			return reject("bad-cb-payee")
		}
	}
	return nil
}

// undoTxs restores the spent outputs and removes the outputs created by the
// transactions.
//
// This function MUST be called with the chain lock held (for writes).
func (c *Chain) undoTxs(txs []*wire.MsgTx, undo []spentOutput) {
	for i := len(undo) - 1; i >= 0; i-- {
		c.utxos[undo[i].outpoint] = undo[i].entry
	}
	for _, tx := range txs {
		hash := tx.TxHash()
		for idx := range tx.TxOut {
			delete(c.utxos, wire.OutPoint{Hash: hash, Index: uint32(idx)})
		}
	}
}

// connectBlock spends the inputs and adds the outputs of the block to the
// unspent outputs.  The coinbase is checked against the subsidy and payees
// when checkReward is set, which requires the parent of the block to be the
// tip of the chain state.  The unspent outputs are unchanged on failure.
//
// This function MUST be called with the chain lock held (for writes).
func (c *Chain) connectBlock(node *blockNode, checkReward bool) error {
	block := node.block
	height := node.entry.Height()
	maturity := int64(c.cfg.Params.CoinbaseMaturity)

	var undo []spentOutput
	var fees btcutil.Amount
	for i, tx := range block.Transactions {
		if i > 0 {
			var totalIn, totalOut btcutil.Amount
			for _, txIn := range tx.TxIn {
				op := txIn.PreviousOutPoint
				entry := c.utxos[op]
				if entry == nil {
					c.undoTxs(block.Transactions[:i], undo)
					return reject("bad-txns-inputs-missingorspent")
				}
				if entry.IsCoinBase && height-entry.BlockHeight < maturity {
					c.undoTxs(block.Transactions[:i], undo)
					return reject("bad-txns-premature-spend-of-coinbase")
				}
				totalIn += entry.Amount
				undo = append(undo, spentOutput{outpoint: op, entry: entry})
				delete(c.utxos, op)
			}
			for _, txOut := range tx.TxOut {
				totalOut += btcutil.Amount(txOut.Value)
			}
			if totalIn < totalOut {
				c.undoTxs(block.Transactions[:i], undo)
				return reject("bad-txns-in-belowout")
			}
			fees += totalIn - totalOut
		}

		hash := tx.TxHash()
		for idx, txOut := range tx.TxOut {
			if txscript.IsUnspendable(txOut.PkScript) {
				continue
			}
			c.utxos[wire.OutPoint{Hash: hash, Index: uint32(idx)}] =
				&mempool.UtxoEntry{
					Amount:      btcutil.Amount(txOut.Value),
					PkScript:    txOut.PkScript,
					BlockHeight: height,
					IsCoinBase:  i == 0,
				}
		}
	}

	if checkReward {
		if err := c.checkCoinbase(block, node.entry, fees); err != nil {
			c.undoTxs(block.Transactions, undo)
			return err
		}
	}
	node.undo = undo
	return nil
}

// disconnectBlock undoes the changes connectBlock made to the unspent
// outputs.
//
// This function MUST be called with the chain lock held (for writes).
func (c *Chain) disconnectBlock(node *blockNode) {
	c.undoTxs(node.block.Transactions, node.undo)
	node.undo = nil
}

// findFork returns the most recent entry shared by the chains ending at a and
// b.
func findFork(a, b *chainstate.Entry) *chainstate.Entry {
	if a.Height() > b.Height() {
		a = a.Ancestor(b.Height())
	} else {
		b = b.Ancestor(a.Height())
	}
	for a != b {
		a, b = a.Prev(), b.Prev()
	}
	return a
}

// reorganize makes the chain ending at target the best chain.  It returns
// the nodes that were attached, in order, and detached, tip first.  When a
// block of the new chain fails to connect, the previous best chain is
// restored and the failed block along with its descendants on the new chain
// is removed from the index.
//
// This function MUST be called with the chain lock held (for writes).
func (c *Chain) reorganize(target *blockNode) ([]*blockNode, []*blockNode, error) {
	fork := findFork(c.best.entry, target.entry)

	var detached []*blockNode
	for e := c.best.entry; e != fork; e = e.Prev() {
		detached = append(detached, c.index[e.Hash()])
	}
	var attached []*blockNode
	for e := target.entry; e != fork; e = e.Prev() {
		attached = append(attached, c.index[e.Hash()])
	}
	for i, j := 0, len(attached)-1; i < j; i, j = i+1, j-1 {
		attached[i], attached[j] = attached[j], attached[i]
	}

	for _, n := range detached {
		c.disconnectBlock(n)
	}
	for i, n := range attached {
		err := c.connectBlock(n, len(detached) == 0)
		if err == nil {
			continue
		}

		for j := i - 1; j >= 0; j-- {
			c.disconnectBlock(attached[j])
		}
		for j := len(detached) - 1; j >= 0; j-- {
			if err := c.connectBlock(detached[j], false); err != nil {
				log.Errorf("Unable to reconnect block %v: %v",
					detached[j].entry.Hash(), err)
			}
		}
		for _, bad := range attached[i:] {
			delete(c.index, bad.entry.Hash())
		}
		return nil, nil, err
	}

	if len(detached) > 0 {
		log.Infof("Reorganized chain from %v (height %d) to %v (height %d) "+
			"at fork %v", c.best.entry.Hash(), c.best.entry.Height(),
			target.entry.Hash(), target.entry.Height(), fork.Hash())
	}
	c.best = target
	return attached, detached, nil
}

// acceptBlock checks the block and adds it to the index.
//
// This function MUST be called with the chain lock held (for writes).
func (c *Chain) acceptBlock(hash chainhash.Hash, block *wire.MsgBlock) (*blockNode, error) {
	node := c.index[hash]
	if node != nil && node.block != nil {
		str := fmt.Sprintf("already have block %v", hash)
		return nil, mining.Error{Err: mining.ErrDuplicateBlock, Description: str}
	}
	parent := c.index[block.Header.PrevBlock]
	if parent == nil || parent.block == nil {
		str := fmt.Sprintf("previous block %v is unknown", block.Header.PrevBlock)
		return nil, mining.Error{Err: mining.ErrMissingParent, Description: str}
	}

	if err := checkBlockSanity(block); err != nil {
		return nil, err
	}
	if err := c.checkProofOfWork(&block.Header); err != nil {
		return nil, err
	}
	var entry *chainstate.Entry
	if node != nil {
		entry = node.entry
	} else {
		var err error
		entry, err = chainstate.NewEntry(&block.Header, parent.entry)
		if err != nil {
			return nil, err
		}
	}
	if err := c.checkBlockContext(block, entry, parent.entry); err != nil {
		return nil, err
	}

	if node == nil {
		node = &blockNode{entry: entry}
		c.index[hash] = node
	}
	node.block = block
	return node, nil
}

// ProcessBlock is the main workhorse for handling insertion of new blocks
// into the block chain.  It includes functionality such as rejecting
// duplicate blocks, ensuring blocks follow all rules, orphan handling, and
// insertion into the block chain along with best chain selection and
// reorganization.
//
// This is part of the mining.BlockSubmitter interface and is safe for
// concurrent access.
func (c *Chain) ProcessBlock(block *wire.MsgBlock) error {
	c.processLock.Lock()
	defer c.processLock.Unlock()

	hash := block.BlockHash()
	c.chainLock.Lock()
	node, err := c.acceptBlock(hash, block)
	if err != nil {
		c.chainLock.Unlock()
		return err
	}

	oldBest := c.best
	var attached, detached []*blockNode
	workSum, bestWorkSum := node.entry.WorkSum(), oldBest.entry.WorkSum()
	if workSum.Gt(&bestWorkSum) {
		attached, detached, err = c.reorganize(node)
	}
	newBest := c.best
	c.chainLock.Unlock()
	if err != nil {
		return err
	}

	c.sendNotification(NTBlockAccepted, block)
	if newBest == oldBest {
		log.Debugf("Accepted side chain block %v (height %d)", hash,
			node.entry.Height())
		return nil
	}

	// Notify about the changes to the best chain before publishing the new
	// tip so that work issued for it does not see stale transactions.
	for _, n := range detached {
		c.sendNotification(NTBlockDisconnected, n.block)
	}
	for _, n := range attached {
		c.sendNotification(NTBlockConnected, n.block)
	}
	c.cfg.Chain.SetTip(newBest.entry)
	log.Infof("New best block %v (height %d, algo %s)", newBest.entry.Hash(),
		newBest.entry.Height(), newBest.entry.Algo())
	return nil
}

// ProcessHeader adds a header to the index without its block.  Headers do
// not change the best chain.
//
// This is part of the mining.BlockSubmitter interface and is safe for
// concurrent access.
func (c *Chain) ProcessHeader(header *wire.BlockHeader) error {
	c.processLock.Lock()
	defer c.processLock.Unlock()
	c.chainLock.Lock()
	defer c.chainLock.Unlock()

	hash := header.BlockHash()
	if _, ok := c.index[hash]; ok {
		str := fmt.Sprintf("already have header %v", hash)
		return mining.Error{Err: mining.ErrDuplicateBlock, Description: str}
	}
	parent := c.index[header.PrevBlock]
	if parent == nil {
		str := fmt.Sprintf("previous header %v is unknown", header.PrevBlock)
		return mining.Error{Err: mining.ErrMissingParent, Description: str}
	}
	if err := c.checkProofOfWork(header); err != nil {
		return err
	}
	entry, err := chainstate.NewEntry(header, parent.entry)
	if err != nil {
		return err
	}
	if err := c.checkHeaderContext(header, entry, parent.entry); err != nil {
		return err
	}

	c.index[hash] = &blockNode{entry: entry}
	log.Debugf("Accepted header %v (height %d)", hash, entry.Height())
	return nil
}

// HaveBlock returns whether the block is known with its transactions.
//
// This is part of the mining.BlockSubmitter interface and is safe for
// concurrent access.
func (c *Chain) HaveBlock(hash *chainhash.Hash) bool {
	c.chainLock.RLock()
	node := c.index[*hash]
	c.chainLock.RUnlock()
	return node != nil && node.block != nil
}

// CheckBlock fully validates a block building on the best chain without its
// proof of work and without connecting it.
//
// This is part of the mining.BlockSubmitter interface and is safe for
// concurrent access.
func (c *Chain) CheckBlock(block *wire.MsgBlock) error {
	c.processLock.Lock()
	defer c.processLock.Unlock()
	c.chainLock.Lock()
	defer c.chainLock.Unlock()

	parent := c.best
	if block.Header.PrevBlock != parent.entry.Hash() {
		return reject("inconclusive-not-best-prevblk")
	}
	if err := checkBlockSanity(block); err != nil {
		return err
	}
	entry, err := chainstate.NewEntry(&block.Header, parent.entry)
	if err != nil {
		return err
	}
	if err := c.checkBlockContext(block, entry, parent.entry); err != nil {
		return err
	}
	node := &blockNode{entry: entry, block: block}
	if err := c.connectBlock(node, true); err != nil {
		return err
	}
	c.disconnectBlock(node)
	return nil
}

// IsCurrent returns whether the tip is recent enough to issue work on.
func (c *Chain) IsCurrent() bool {
	if c.cfg.MaxTipAge <= 0 {
		return true
	}
	c.chainLock.RLock()
	tipTime := c.best.entry.Time()
	c.chainLock.RUnlock()
	return !tipTime.Before(c.cfg.Now().Add(-c.cfg.MaxTipAge))
}

// BestHeight returns the height of the best chain.
func (c *Chain) BestHeight() int64 {
	c.chainLock.RLock()
	defer c.chainLock.RUnlock()
	return c.best.entry.Height()
}

// FetchUtxo returns the unspent output of the best chain referenced by the
// outpoint or nil when it does not exist or is spent.
func (c *Chain) FetchUtxo(outpoint wire.OutPoint) *mempool.UtxoEntry {
	c.chainLock.RLock()
	defer c.chainLock.RUnlock()
	entry := c.utxos[outpoint]
	if entry == nil {
		return nil
	}
	e := *entry
	return &e
}

// BlockByHash returns the block with the given hash.
func (c *Chain) BlockByHash(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	c.chainLock.RLock()
	defer c.chainLock.RUnlock()
	node := c.index[*hash]
	if node == nil || node.block == nil {
		return nil, fmt.Errorf("block %v is not known", hash)
	}
	return node.block, nil
}
