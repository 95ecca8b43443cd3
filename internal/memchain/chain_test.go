// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memchain

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
)

// testSubsidy is the subsidy every block of the test chains may claim.
const testSubsidy = 50 * btcutil.SatoshiPerBitcoin

// fixedSubsidy provides the same subsidy for every block by implementing the
// mining.SubsidySource interface.
type fixedSubsidy btcutil.Amount

func (s fixedSubsidy) BlockSubsidy(height int64, a algo.ID) (btcutil.Amount, error) {
	return btcutil.Amount(s), nil
}

// chainHarness houses a chain along with the notifications it sent.
type chainHarness struct {
	t       *testing.T
	params  *netparams.Params
	handle  *chainstate.Handle
	chain   *Chain
	now     time.Time
	spacing time.Duration
	nonce   int64

	mtx           sync.Mutex
	notifications []*Notification
}

// newChainHarness returns a harness for a simnet chain.  The payees are
// required by every coinbase when not nil.
func newChainHarness(t *testing.T, payees mining.PayeeResolver) *chainHarness {
	t.Helper()
	params := netparams.SimNetParams
	h := &chainHarness{
		t:       t,
		params:  &params,
		handle:  chainstate.New(),
		now:     params.GenesisBlock.Header.Timestamp.Add(30 * 24 * time.Hour),
		spacing: params.TargetSpacing * algo.Count,
	}
	chain, err := New(&Config{
		Params:     &params,
		Chain:      h.handle,
		Difficulty: NewDifficulty(&params),
		Subsidy:    fixedSubsidy(testSubsidy),
		Payees:     payees,
		Now:        func() time.Time { return h.now },
		Notifications: func(n *Notification) {
			h.mtx.Lock()
			h.notifications = append(h.notifications, n)
			h.mtx.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("unable to create chain: %v", err)
	}
	h.chain = chain
	return h
}

// takeNotifications returns the notifications sent since the last call.
func (h *chainHarness) takeNotifications() []*Notification {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	n := h.notifications
	h.notifications = nil
	return n
}

// entry returns the index entry of the block with the hash.
func (h *chainHarness) entry(hash chainhash.Hash) *chainstate.Entry {
	h.chain.chainLock.RLock()
	defer h.chain.chainLock.RUnlock()
	node := h.chain.index[hash]
	if node == nil {
		h.t.Fatalf("block %v is not in the index", hash)
	}
	return node.entry
}

// coinbaseTx returns a coinbase for the height paying the value to a
// trivially spendable script.
func (h *chainHarness) coinbaseTx(height int64, value btcutil.Amount) *wire.MsgTx {
	h.nonce++
	script, err := txscript.NewScriptBuilder().AddInt64(height).
		AddInt64(h.nonce).Script()
	if err != nil {
		h.t.Fatalf("unable to build coinbase script: %v", err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  script,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    int64(value),
		PkScript: []byte{txscript.OP_TRUE},
	})
	return tx
}

// spendTx returns a transaction spending the output and paying it minus the
// fee back to a trivially spendable script.
func spendTx(prev *wire.MsgTx, index uint32, fee btcutil.Amount) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: prev.TxHash(), Index: index},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    prev.TxOut[index].Value - int64(fee),
		PkScript: []byte{txscript.OP_TRUE},
	})
	return tx
}

// unsolvedBlock returns a SHA256D block building on parent with the
// required difficulty, a coinbase claiming the subsidy along with the fees
// and the transactions.
func (h *chainHarness) unsolvedBlock(parent chainhash.Hash, fees btcutil.Amount, txs ...*wire.MsgTx) *wire.MsgBlock {
	h.t.Helper()
	prev := h.entry(parent)
	bits, err := h.chain.cfg.Difficulty.NextWorkRequired(prev, algo.SHA256D)
	if err != nil {
		h.t.Fatalf("unable to calculate difficulty: %v", err)
	}
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   pow.VersionForAlgo(algo.SHA256D, 0),
			PrevBlock: parent,
			Timestamp: prev.Time().Add(h.spacing),
			Bits:      bits,
		},
		Transactions: append([]*wire.MsgTx{
			h.coinbaseTx(prev.Height()+1, testSubsidy+fees),
		}, txs...),
	}
	updateMerkleRoot(block)
	return block
}

// updateMerkleRoot sets the merkle root of the block to the one of its
// transactions.
func updateMerkleRoot(block *wire.MsgBlock) {
	txs := make([]*btcutil.Tx, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		txs = append(txs, btcutil.NewTx(tx))
	}
	block.Header.MerkleRoot = blockchain.CalcMerkleRoot(txs, false)
}

// solve grinds the nonce of the header until it satisfies its target.
func (h *chainHarness) solve(header *wire.BlockHeader) {
	h.t.Helper()
	for i := 0; i < 1<<20; i++ {
		if pow.CheckHeader(header, h.params.PowLimit) == nil {
			return
		}
		header.Nonce++
	}
	h.t.Fatal("unable to solve header")
}

// block returns a solved block building on parent.
func (h *chainHarness) block(parent chainhash.Hash, fees btcutil.Amount, txs ...*wire.MsgTx) *wire.MsgBlock {
	h.t.Helper()
	block := h.unsolvedBlock(parent, fees, txs...)
	h.solve(&block.Header)
	return block
}

// extend processes n empty blocks on the best chain and returns them.
func (h *chainHarness) extend(n int) []*wire.MsgBlock {
	h.t.Helper()
	blocks := make([]*wire.MsgBlock, 0, n)
	for i := 0; i < n; i++ {
		block := h.block(h.handle.Tip().Hash(), 0)
		if err := h.chain.ProcessBlock(block); err != nil {
			h.t.Fatalf("unable to process block %d: %v", i, err)
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// assertKind ensures the error is a mining error of the kind and, for
// rejections, that it carries the reason.
func assertKind(t *testing.T, err error, kind mining.ErrorKind, reason string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("unexpected error -- got %v, want kind %v", err, kind)
	}
	if reason == "" {
		return
	}
	var merr mining.Error
	if !errors.As(err, &merr) || merr.Description != reason {
		t.Fatalf("unexpected reject reason -- got %v, want %q", err, reason)
	}
}

// assertNotifications ensures the notifications are of the types and carry
// the blocks in order.
func assertNotifications(t *testing.T, got []*Notification, types []NotificationType, blocks []*wire.MsgBlock) {
	t.Helper()
	if len(got) != len(types) {
		t.Fatalf("unexpected number of notifications -- got %d, want %d",
			len(got), len(types))
	}
	for i, n := range got {
		if n.Type != types[i] || n.Block != blocks[i] {
			t.Fatalf("unexpected notification %d -- got %v %v, want %v %v",
				i, n.Type, n.Block.BlockHash(), types[i],
				blocks[i].BlockHash())
		}
	}
}

// TestProcessBlock ensures blocks extending the best chain are connected and
// published while duplicates and orphans are reported.
func TestProcessBlock(t *testing.T) {
	h := newChainHarness(t, nil)
	genesisHash := h.params.GenesisBlock.BlockHash()
	if tip := h.handle.Tip(); tip == nil || tip.Hash() != genesisHash {
		t.Fatalf("genesis block is not the tip")
	}

	blocks := h.extend(2)
	if got := h.chain.BestHeight(); got != 2 {
		t.Fatalf("unexpected best height -- got %d, want 2", got)
	}
	if got, want := h.handle.Tip().Hash(), blocks[1].BlockHash(); got != want {
		t.Fatalf("unexpected tip -- got %v, want %v", got, want)
	}
	assertNotifications(t, h.takeNotifications(),
		[]NotificationType{NTBlockAccepted, NTBlockConnected,
			NTBlockAccepted, NTBlockConnected},
		[]*wire.MsgBlock{blocks[0], blocks[0], blocks[1], blocks[1]})

	hash := blocks[1].BlockHash()
	if !h.chain.HaveBlock(&hash) {
		t.Fatal("processed block is not known")
	}
	if got, err := h.chain.BlockByHash(&hash); err != nil || got != blocks[1] {
		t.Fatalf("unexpected block by hash -- got %v, err %v", got, err)
	}

	err := h.chain.ProcessBlock(blocks[1])
	assertKind(t, err, mining.ErrDuplicateBlock, "")

	orphan := h.block(hash, 0)
	orphan.Header.PrevBlock = chainhash.Hash{0x01}
	err = h.chain.ProcessBlock(orphan)
	assertKind(t, err, mining.ErrMissingParent, "")
	orphanHash := orphan.BlockHash()
	if h.chain.HaveBlock(&orphanHash) {
		t.Fatal("orphan block is known")
	}

	// Coinbase outputs are spendable from the chain once connected.
	cb := blocks[0].Transactions[0]
	utxo := h.chain.FetchUtxo(wire.OutPoint{Hash: cb.TxHash()})
	if utxo == nil || !utxo.IsCoinBase || utxo.BlockHeight != 1 ||
		utxo.Amount != testSubsidy {

		t.Fatalf("unexpected coinbase utxo %+v", utxo)
	}
}

// TestProcessBlockRejects ensures blocks violating the rules are rejected
// with the expected reasons and leave the chain unchanged.
func TestProcessBlockRejects(t *testing.T) {
	h := newChainHarness(t, nil)
	h.extend(1)
	h.takeNotifications()
	tip := h.handle.Tip()

	tests := []struct {
		name   string
		mutate func(b *wire.MsgBlock)
		solve  bool
		reason string
	}{{
		name: "no transactions",
		mutate: func(b *wire.MsgBlock) {
			b.Transactions = nil
		},
		solve:  true,
		reason: "bad-cb-missing",
	}, {
		name: "two coinbases",
		mutate: func(b *wire.MsgBlock) {
			b.Transactions = append(b.Transactions,
				h.coinbaseTx(tip.Height()+1, 1))
			updateMerkleRoot(b)
		},
		solve:  true,
		reason: "bad-cb-multiple",
	}, {
		name: "bad merkle root",
		mutate: func(b *wire.MsgBlock) {
			b.Header.MerkleRoot[0] ^= 0xff
		},
		solve:  true,
		reason: "bad-txnmrklroot",
	}, {
		name: "unexpected difficulty",
		mutate: func(b *wire.MsgBlock) {
			b.Header.Bits = 0x1f7fffff
		},
		solve:  true,
		reason: "bad-diffbits",
	}, {
		name: "time at median time past",
		mutate: func(b *wire.MsgBlock) {
			b.Header.Timestamp = tip.MedianTimePast()
		},
		solve:  true,
		reason: "time-too-old",
	}, {
		name: "time too far in the future",
		mutate: func(b *wire.MsgBlock) {
			b.Header.Timestamp = h.now.Add(3 * time.Hour)
		},
		solve:  true,
		reason: "time-too-new",
	}, {
		name: "wrong coinbase height",
		mutate: func(b *wire.MsgBlock) {
			b.Transactions[0] = h.coinbaseTx(tip.Height()+5, testSubsidy)
			updateMerkleRoot(b)
		},
		solve:  true,
		reason: "bad-cb-height",
	}, {
		name: "coinbase claims too much",
		mutate: func(b *wire.MsgBlock) {
			b.Transactions[0].TxOut[0].Value++
			updateMerkleRoot(b)
		},
		solve:  true,
		reason: "bad-cb-amount",
	}, {
		name: "hash above target",
		mutate: func(b *wire.MsgBlock) {
			for {
				err := pow.CheckHeader(&b.Header, h.params.PowLimit)
				if errors.Is(err, pow.ErrHighHash) {
					return
				}
				b.Header.Nonce++
			}
		},
		reason: "high-hash",
	}}

	for _, test := range tests {
		block := h.unsolvedBlock(tip.Hash(), 0)
		test.mutate(block)
		if test.solve {
			h.solve(&block.Header)
		}
		err := h.chain.ProcessBlock(block)
		if !errors.Is(err, mining.ErrBlockRejected) {
			t.Errorf("%q: unexpected error -- got %v, want rejection",
				test.name, err)
			continue
		}
		var merr mining.Error
		if !errors.As(err, &merr) || merr.Description != test.reason {
			t.Errorf("%q: unexpected reason -- got %v, want %q", test.name,
				err, test.reason)
		}
		if got := h.handle.Tip(); got != tip {
			t.Errorf("%q: tip changed to %v", test.name, got.Hash())
		}
	}
	if n := h.takeNotifications(); len(n) != 0 {
		t.Fatalf("unexpected notifications for rejected blocks: %d", len(n))
	}
}

// TestReorganize ensures a side chain with more work becomes the best chain
// and that the unspent outputs follow it.
func TestReorganize(t *testing.T) {
	h := newChainHarness(t, nil)
	genesisHash := h.params.GenesisBlock.BlockHash()
	main := h.extend(2)
	h.takeNotifications()

	// A side chain with equal work does not replace the best chain.
	b1 := h.block(genesisHash, 0)
	b2 := h.block(b1.BlockHash(), 0)
	for _, b := range []*wire.MsgBlock{b1, b2} {
		if err := h.chain.ProcessBlock(b); err != nil {
			t.Fatalf("unable to process side chain block: %v", err)
		}
	}
	if got, want := h.handle.Tip().Hash(), main[1].BlockHash(); got != want {
		t.Fatalf("side chain with equal work became the tip")
	}
	assertNotifications(t, h.takeNotifications(),
		[]NotificationType{NTBlockAccepted, NTBlockAccepted},
		[]*wire.MsgBlock{b1, b2})

	b3 := h.block(b2.BlockHash(), 0)
	if err := h.chain.ProcessBlock(b3); err != nil {
		t.Fatalf("unable to process side chain block: %v", err)
	}
	if got, want := h.handle.Tip().Hash(), b3.BlockHash(); got != want {
		t.Fatalf("unexpected tip after reorganize -- got %v, want %v",
			got, want)
	}
	if got := h.chain.BestHeight(); got != 3 {
		t.Fatalf("unexpected best height -- got %d, want 3", got)
	}
	assertNotifications(t, h.takeNotifications(),
		[]NotificationType{NTBlockAccepted, NTBlockDisconnected,
			NTBlockDisconnected, NTBlockConnected, NTBlockConnected,
			NTBlockConnected},
		[]*wire.MsgBlock{b3, main[1], main[0], b1, b2, b3})

	for _, b := range main {
		op := wire.OutPoint{Hash: b.Transactions[0].TxHash()}
		if h.chain.FetchUtxo(op) != nil {
			t.Fatalf("output of disconnected block %v is unspent",
				b.BlockHash())
		}
	}
	for _, b := range []*wire.MsgBlock{b1, b2, b3} {
		op := wire.OutPoint{Hash: b.Transactions[0].TxHash()}
		if h.chain.FetchUtxo(op) == nil {
			t.Fatalf("output of connected block %v is missing",
				b.BlockHash())
		}
	}
}

// TestReorganizeFailure ensures the previous best chain is restored when a
// block of a side chain with more work fails to connect.
func TestReorganizeFailure(t *testing.T) {
	h := newChainHarness(t, nil)
	genesisHash := h.params.GenesisBlock.BlockHash()
	main := h.extend(1)

	// The second side chain block spends an output that does not exist,
	// which is only detected when it is connected.
	missing := spendTx(main[0].Transactions[0], 0, 0)
	missing.TxIn[0].PreviousOutPoint.Hash = chainhash.Hash{0x02}
	b1 := h.block(genesisHash, 0)
	b2 := h.block(b1.BlockHash(), 0, missing)
	if err := h.chain.ProcessBlock(b1); err != nil {
		t.Fatalf("unable to process side chain block: %v", err)
	}
	h.takeNotifications()

	err := h.chain.ProcessBlock(b2)
	assertKind(t, err, mining.ErrBlockRejected, "bad-txns-inputs-missingorspent")
	if got, want := h.handle.Tip().Hash(), main[0].BlockHash(); got != want {
		t.Fatalf("best chain was not restored -- tip %v, want %v", got, want)
	}
	b2Hash := b2.BlockHash()
	if h.chain.HaveBlock(&b2Hash) {
		t.Fatal("failed block is still known")
	}
	op := wire.OutPoint{Hash: main[0].Transactions[0].TxHash()}
	if h.chain.FetchUtxo(op) == nil {
		t.Fatal("output of restored block is missing")
	}
	op = wire.OutPoint{Hash: b1.Transactions[0].TxHash()}
	if h.chain.FetchUtxo(op) != nil {
		t.Fatal("output of side chain block is unspent")
	}
	if n := h.takeNotifications(); len(n) != 0 {
		t.Fatalf("unexpected notifications for failed reorganize: %d", len(n))
	}
}

// TestSpends ensures transactions spending outputs are connected subject to
// coinbase maturity and double spending.
func TestSpends(t *testing.T) {
	h := newChainHarness(t, nil)
	blocks := h.extend(1)
	cb := blocks[0].Transactions[0]
	const fee = 10000

	// The coinbase is immature until it has enough confirmations.
	premature := h.block(h.handle.Tip().Hash(), fee, spendTx(cb, 0, fee))
	err := h.chain.ProcessBlock(premature)
	assertKind(t, err, mining.ErrBlockRejected,
		"bad-txns-premature-spend-of-coinbase")

	h.extend(int(h.params.CoinbaseMaturity) - 1)
	spend := spendTx(cb, 0, fee)

	// The coinbase may claim the fees but no more.
	greedy := h.block(h.handle.Tip().Hash(), fee+1, spend)
	err = h.chain.ProcessBlock(greedy)
	assertKind(t, err, mining.ErrBlockRejected, "bad-cb-amount")

	overspend := spendTx(cb, 0, 0)
	overspend.TxOut[0].Value++
	block := h.block(h.handle.Tip().Hash(), 0, overspend)
	err = h.chain.ProcessBlock(block)
	assertKind(t, err, mining.ErrBlockRejected, "bad-txns-in-belowout")

	block = h.block(h.handle.Tip().Hash(), fee, spend)
	if err := h.chain.ProcessBlock(block); err != nil {
		t.Fatalf("unable to process block with spend: %v", err)
	}
	if h.chain.FetchUtxo(wire.OutPoint{Hash: cb.TxHash()}) != nil {
		t.Fatal("spent coinbase output is unspent")
	}
	utxo := h.chain.FetchUtxo(wire.OutPoint{Hash: spend.TxHash()})
	if utxo == nil || utxo.IsCoinBase || utxo.Amount != testSubsidy-fee {
		t.Fatalf("unexpected spend utxo %+v", utxo)
	}

	doubleSpend := spendTx(cb, 0, 2*fee)
	block = h.block(h.handle.Tip().Hash(), 2*fee, doubleSpend)
	err = h.chain.ProcessBlock(block)
	assertKind(t, err, mining.ErrBlockRejected, "bad-txns-inputs-missingorspent")
	if utxo := h.chain.FetchUtxo(wire.OutPoint{Hash: spend.TxHash()}); utxo == nil {
		t.Fatal("rejected block changed the unspent outputs")
	}
}

// TestCheckBlock ensures proposals are validated against the best chain
// without being connected.
func TestCheckBlock(t *testing.T) {
	h := newChainHarness(t, nil)
	blocks := h.extend(2)
	h.takeNotifications()

	proposal := h.unsolvedBlock(blocks[1].BlockHash(), 0)
	if err := h.chain.CheckBlock(proposal); err != nil {
		t.Fatalf("unexpected error checking proposal: %v", err)
	}
	hash := proposal.BlockHash()
	if h.chain.HaveBlock(&hash) {
		t.Fatal("checked proposal was added to the index")
	}
	op := wire.OutPoint{Hash: proposal.Transactions[0].TxHash()}
	if h.chain.FetchUtxo(op) != nil {
		t.Fatal("checked proposal changed the unspent outputs")
	}

	stale := h.unsolvedBlock(blocks[0].BlockHash(), 0)
	err := h.chain.CheckBlock(stale)
	assertKind(t, err, mining.ErrBlockRejected, "inconclusive-not-best-prevblk")

	greedy := h.unsolvedBlock(blocks[1].BlockHash(), 1)
	err = h.chain.CheckBlock(greedy)
	assertKind(t, err, mining.ErrBlockRejected, "bad-cb-amount")

	if n := h.takeNotifications(); len(n) != 0 {
		t.Fatalf("unexpected notifications for proposals: %d", len(n))
	}
}

// TestProcessHeader ensures headers are indexed without changing the best
// chain and that their blocks are accepted afterwards.
func TestProcessHeader(t *testing.T) {
	h := newChainHarness(t, nil)
	tip := h.handle.Tip()

	block := h.block(tip.Hash(), 0)
	if err := h.chain.ProcessHeader(&block.Header); err != nil {
		t.Fatalf("unable to process header: %v", err)
	}
	if got := h.handle.Tip(); got != tip {
		t.Fatal("header changed the tip")
	}
	hash := block.BlockHash()
	if h.chain.HaveBlock(&hash) {
		t.Fatal("header reported as a known block")
	}

	err := h.chain.ProcessHeader(&block.Header)
	assertKind(t, err, mining.ErrDuplicateBlock, "")

	// Blocks building on a header without its block are orphans.
	child := h.block(hash, 0)
	err = h.chain.ProcessBlock(child)
	assertKind(t, err, mining.ErrMissingParent, "")

	orphan := child.Header
	orphan.PrevBlock = chainhash.Hash{0x03}
	err = h.chain.ProcessHeader(&orphan)
	assertKind(t, err, mining.ErrMissingParent, "")

	badBits := h.unsolvedBlock(tip.Hash(), 0).Header
	badBits.Bits = 0x1f7fffff
	h.solve(&badBits)
	err = h.chain.ProcessHeader(&badBits)
	assertKind(t, err, mining.ErrBlockRejected, "bad-diffbits")

	if err := h.chain.ProcessBlock(block); err != nil {
		t.Fatalf("unable to process block of known header: %v", err)
	}
	if got := h.handle.Tip().Hash(); got != hash {
		t.Fatalf("unexpected tip -- got %v, want %v", got, hash)
	}
	if err := h.chain.ProcessBlock(child); err != nil {
		t.Fatalf("unable to process child block: %v", err)
	}
}

// TestPayeeRequirements ensures coinbases must pay the required payees and
// that unknown payees reject nothing but fail processing.
func TestPayeeRequirements(t *testing.T) {
	payeeScript := []byte{txscript.OP_TRUE, txscript.OP_TRUE}
	feed := NewPayeeFeed(payeeScript, DefaultPayeePercent,
		func(int64) (btcutil.Amount, error) { return testSubsidy, nil })
	h := newChainHarness(t, feed)
	tip := h.handle.Tip()

	err := h.chain.ProcessBlock(h.block(tip.Hash(), 0))
	assertKind(t, err, mining.ErrBlockRejected, "bad-cb-payee")

	block := h.unsolvedBlock(tip.Hash(), 0)
	cb := block.Transactions[0]
	payee := testSubsidy * DefaultPayeePercent / 100
	cb.TxOut[0].Value -= int64(payee)
	cb.AddTxOut(&wire.TxOut{Value: int64(payee), PkScript: payeeScript})
	updateMerkleRoot(block)
	h.solve(&block.Header)

	feed.SetSynced(false)
	err = h.chain.ProcessBlock(block)
	assertKind(t, err, mining.ErrNotReady, "")

	feed.SetSynced(true)
	if err := h.chain.ProcessBlock(block); err != nil {
		t.Fatalf("unable to process block paying the payee: %v", err)
	}
}

// TestIsCurrent ensures the chain is only current while its tip is recent.
func TestIsCurrent(t *testing.T) {
	h := newChainHarness(t, nil)
	if !h.chain.IsCurrent() {
		t.Fatal("chain without max tip age is not current")
	}

	h.chain.cfg.MaxTipAge = time.Hour
	if h.chain.IsCurrent() {
		t.Fatal("chain with an old tip is current")
	}
	h.now = h.handle.Tip().Time().Add(30 * time.Minute)
	if !h.chain.IsCurrent() {
		t.Fatal("chain with a recent tip is not current")
	}
}
