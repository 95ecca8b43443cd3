// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcdmining "github.com/btcsuite/btcd/mining"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/pow"
	"github.com/multialgo/powcoord/internal/versionbits"
)

// BlockTemplate houses a block that has yet to be solved along with
// additional details about the fees and the number of signature operations
// for each transaction in the block.
//
// The transactions of the block are shared between all copies of a template
// handed out and must not be modified.
type BlockTemplate struct {
	// Block is a block that is ready to be solved by miners.  Thus, it is
	// completely valid with the exception of satisfying the proof-of-work
	// requirement.
	Block *wire.MsgBlock

	// Fees contains the amount of fees each transaction in the generated
	// template pays.  The first entry is the negative sum of the fees of
	// all other transactions.
	Fees []btcutil.Amount

	// SigOpCosts and Weights contain the signature operation cost and the
	// weight of each transaction in the generated template.
	SigOpCosts []int64
	Weights    []int64

	// Depends contains, for each transaction, the indices within the block
	// of the transactions it spends outputs of.
	Depends [][]int

	// Height is the height of the block the template builds.
	Height int64

	// Algo is the algorithm the header of the block selects.
	Algo algo.ID

	// Subsidy is the block subsidy for the algorithm at the height and
	// CoinbaseValue what is left of the subsidy and the fees for the miner
	// after the required payees.
	Subsidy       btcutil.Amount
	CoinbaseValue btcutil.Amount

	// Payees are the outputs the coinbase pays in addition to the miner.
	Payees []Payee

	// MinTime is the earliest timestamp the block may have.
	MinTime time.Time

	// WitnessCommitment is the witness commitment output script of the
	// coinbase or nil when no transaction has witness data.
	WitnessCommitment []byte

	// Rules lists the active deployments, prefixed with "!" when a miner
	// that does not understand them must not mine the block.
	Rules []string

	// VbAvailable maps the started and locked in deployments to their
	// version bit.
	VbAvailable map[string]uint8

	// MempoolVersion is the mempool version the template was built at.
	MempoolVersion uint64

	// LongPollID identifies the work the template represents.
	LongPollID string
}

// copyTemplate returns a copy of the template with its own header so that it
// can be adjusted for a request.
func copyTemplate(t *BlockTemplate) *BlockTemplate {
	c := *t
	block := *t.Block
	c.Block = &block
	return &c
}

// coinbaseFlagsMaxLen limits the flags appended to the coinbase script so
// the script stays below the consensus limit.
const coinbaseFlagsMaxLen = 64

// standardCoinbaseScript returns a standard script suitable for use as the
// signature script of the coinbase transaction of a new block.  In particular,
// it starts with the block height that is required by version 2 blocks and
// adds the extra nonce as well as additional coinbase flags.
func standardCoinbaseScript(nextBlockHeight int64, extraNonce uint64, flags string) ([]byte, error) {
	if len(flags) > coinbaseFlagsMaxLen {
		flags = flags[:coinbaseFlagsMaxLen]
	}
	return txscript.NewScriptBuilder().AddInt64(nextBlockHeight).
		AddInt64(int64(extraNonce)).AddData([]byte(flags)).Script()
}

// createCoinbaseTx returns a coinbase transaction paying the required payees
// followed by the miner output.
func createCoinbaseTx(coinbaseScript []byte, payees []Payee, minerValue btcutil.Amount, payToScript []byte) *btcutil.Tx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		// Coinbase transactions have no inputs, so previous outpoint is
		// zero hash and max index.
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			wire.MaxPrevOutIndex),
		SignatureScript: coinbaseScript,
		Sequence:        wire.MaxTxInSequenceNum,
	})
	for _, payee := range payees {
		tx.AddTxOut(&wire.TxOut{
			Value:    int64(payee.Amount),
			PkScript: payee.PkScript,
		})
	}
	tx.AddTxOut(&wire.TxOut{
		Value:    int64(minerValue),
		PkScript: payToScript,
	})
	return btcutil.NewTx(tx)
}

// buildTemplate assembles a new block template for the algorithm on top of the
// provided tip.  The header timestamp, nonce and version are filled in per
// request.
func (s *Service) buildTemplate(tip *chainstate.Entry, a algo.ID, mempoolVersion uint64) (*BlockTemplate, []versionbits.DeploymentState, error) {
	if len(s.cfg.Policy.PayToScript) == 0 {
		return nil, nil, makeError(ErrInvalidParameter, "no mining "+
			"payment script configured")
	}
	nextHeight := tip.Height() + 1

	// The payees must be known before any work is handed out since a block
	// that misses them is invalid.
	payees, err := s.cfg.Payees.RequiredPayees(nextHeight)
	if err != nil {
		return nil, nil, err
	}
	subsidy, err := s.cfg.Subsidy.BlockSubsidy(nextHeight, a)
	if err != nil {
		return nil, nil, err
	}
	bits, err := s.cfg.Difficulty.NextWorkRequired(tip, a)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := s.cfg.TxSource.SelectCandidates(s.cfg.Policy.budget())
	if err != nil {
		return nil, nil, err
	}
	selected := selectCandidates(candidates, s.cfg.Policy.budget())

	// Map the candidate indices to their position in the block, which is
	// offset by one for the coinbase.
	blockIndex := make(map[int]int, len(selected))
	for i, idx := range selected {
		blockIndex[idx] = i + 1
	}

	numTxns := len(selected) + 1
	blockTxns := make([]*btcutil.Tx, 1, numTxns)
	fees := make([]btcutil.Amount, 1, numTxns)
	sigOpCosts := make([]int64, 1, numTxns)
	weights := make([]int64, 1, numTxns)
	depends := make([][]int, 1, numTxns)
	var totalFees btcutil.Amount
	var hasWitness bool
	for _, idx := range selected {
		c := candidates[idx]
		var deps []int
		for _, dep := range c.Depends {
			if bi, ok := blockIndex[dep]; ok {
				deps = append(deps, bi)
			}
		}
		blockTxns = append(blockTxns, c.Tx)
		fees = append(fees, c.Fee)
		sigOpCosts = append(sigOpCosts, c.SigOps)
		weights = append(weights, c.Weight)
		depends = append(depends, deps)
		totalFees += c.Fee
		hasWitness = hasWitness || c.Tx.HasWitness()
	}

	var payeeTotal btcutil.Amount
	for _, payee := range payees {
		payeeTotal += payee.Amount
	}
	coinbaseValue := subsidy - payeeTotal + totalFees
	if coinbaseValue < 0 {
		str := fmt.Sprintf("required payees of %v exceed the subsidy %v and "+
			"fees %v at height %d", payeeTotal, subsidy, totalFees,
			nextHeight)
		return nil, nil, makeError(ErrInternal, str)
	}

	coinbaseScript, err := standardCoinbaseScript(nextHeight, 0,
		s.cfg.Policy.CoinbaseFlags)
	if err != nil {
		return nil, nil, makeError(ErrInternal, err.Error())
	}
	coinbaseTx := createCoinbaseTx(coinbaseScript, payees, coinbaseValue,
		s.cfg.Policy.PayToScript)
	blockTxns[0] = coinbaseTx
	var witnessCommitment []byte
	if hasWitness {
		witnessCommitment = btcdmining.AddWitnessCommitment(coinbaseTx,
			blockTxns)

		// The commitment modified the coinbase so it must be rewrapped to
		// drop any cached hash.
		blockTxns[0] = btcutil.NewTx(coinbaseTx.MsgTx())
	}
	fees[0] = -totalFees
	weights[0] = blockchain.GetTransactionWeight(blockTxns[0])
	sigOpCosts[0] = int64(blockchain.CountSigOps(blockTxns[0])) *
		blockchain.WitnessScaleFactor

	msgBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{
			PrevBlock:  tip.Hash(),
			MerkleRoot: blockchain.CalcMerkleRoot(blockTxns, false),
			Bits:       bits,
		},
		Transactions: make([]*wire.MsgTx, 0, numTxns),
	}
	for _, tx := range blockTxns {
		msgBlock.Transactions = append(msgBlock.Transactions, tx.MsgTx())
	}

	states := s.cfg.VersionBits.States(tip)
	tmpl := &BlockTemplate{
		Block:             msgBlock,
		Fees:              fees,
		SigOpCosts:        sigOpCosts,
		Weights:           weights,
		Depends:           depends,
		Height:            nextHeight,
		Algo:              a,
		Subsidy:           subsidy,
		CoinbaseValue:     coinbaseValue,
		Payees:            payees,
		MinTime:           tip.MedianTimePast().Add(time.Second),
		WitnessCommitment: witnessCommitment,
		MempoolVersion:    mempoolVersion,
		LongPollID:        LongPollID(tip.Hash(), mempoolVersion),
	}

	log.Debugf("Created new %s block template (%d transactions, %v in "+
		"fees, %d payees, coinbase value %v, target bits %08x) for height %d",
		a, numTxns, totalFees, len(payees), coinbaseValue, bits, nextHeight)

	return tmpl, states, nil
}

// applyVersionBits sets the version of the template header for a client
// supporting the given rules and fills in the rules and available
// deployments.  Deployments that are locked in are always signaled, started
// ones only when the client supports them or they are forced.  An active
// deployment the client does not support is an error unless it is forced.
func applyVersionBits(tmpl *BlockTemplate, states []versionbits.DeploymentState, clientRules map[string]struct{}) error {
	version := uint32(0)
	tmpl.Rules = nil
	tmpl.VbAvailable = make(map[string]uint8)
	for _, s := range states {
		d := s.Deployment
		_, supported := clientRules[d.Name]
		switch s.State {
		case versionbits.ThresholdLockedIn:
			version |= 1 << d.Bit
			tmpl.VbAvailable[gbtRuleName(d.Name, d.GBTForce)] = d.Bit

		case versionbits.ThresholdStarted:
			if supported || d.GBTForce {
				version |= 1 << d.Bit
			}
			tmpl.VbAvailable[gbtRuleName(d.Name, d.GBTForce)] = d.Bit

		case versionbits.ThresholdActive:
			tmpl.Rules = append(tmpl.Rules, gbtRuleName(d.Name, d.GBTForce))
			if !supported && !d.GBTForce {
				str := fmt.Sprintf("support for '%s' rule requires "+
					"explicit client support", d.Name)
				return makeError(ErrInvalidParameter, str)
			}
		}
	}
	tmpl.Block.Header.Version = pow.VersionForAlgo(tmpl.Algo, int32(version))
	return nil
}

// gbtRuleName returns the name of the rule as reported to clients.  Rules a
// client must understand are prefixed with "!".
func gbtRuleName(name string, gbtForce bool) string {
	if !gbtForce {
		return "!" + name
	}
	return name
}
