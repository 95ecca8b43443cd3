// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2017-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// MaxStandardTxWeight is the maximum weight allowed for transactions
	// that are considered standard and will therefore be considered for
	// mining.
	MaxStandardTxWeight = blockchain.MaxBlockWeight / 10

	// maxStandardTxVersion is the highest transaction version considered
	// standard.
	maxStandardTxVersion = 2

	// DefaultMinRelayTxFee is the minimum fee in satoshi that is required
	// for a transaction to be accepted.  It is also used to help determine
	// if a transaction is considered dust.  This value is in satoshi/1000
	// virtual bytes.
	DefaultMinRelayTxFee = btcutil.Amount(1000)

	// DefaultMaxTxFee is the highest fee a transaction may pay unless high
	// fees are allowed.
	DefaultMaxTxFee = btcutil.Amount(btcutil.SatoshiPerBitcoin)
)

// Policy houses the policy (configuration parameters) which is used to
// control the mempool.
type Policy struct {
	// AcceptNonStd defines whether to accept transactions that are not
	// standard, which includes dust outputs.
	AcceptNonStd bool

	// MinRelayTxFee defines the minimum transaction fee in satoshi/kvB to
	// be considered a non-zero fee.
	MinRelayTxFee btcutil.Amount

	// MaxTxFee is the highest fee a transaction may pay.  Zero disables the
	// check.
	MaxTxFee btcutil.Amount

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// needs before it can be spent.
	CoinbaseMaturity uint16
}

// virtualSize returns the size of a transaction of the given weight in
// virtual bytes.
func virtualSize(weight int64) int64 {
	return (weight + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor
}

// calcMinRequiredTxRelayFee returns the minimum transaction fee required for a
// transaction with the passed virtual size to be accepted into the memory
// pool.
func calcMinRequiredTxRelayFee(vsize int64, minRelayTxFee btcutil.Amount) int64 {
	// minRelayTxFee is in satoshi/kvB, so multiply by vsize and divide by
	// 1000 to get the minimum satoshi.
	minFee := (vsize * int64(minRelayTxFee)) / 1000

	if minFee == 0 && minRelayTxFee > 0 {
		minFee = int64(minRelayTxFee)
	}

	// Set the minimum fee to the maximum possible value if the calculated
	// fee is not in the valid range for monetary amounts.
	if minFee < 0 || minFee > btcutil.MaxSatoshi {
		minFee = btcutil.MaxSatoshi
	}

	return minFee
}

// isDust returns whether or not the passed transaction output amount is
// considered dust given the passed minimum transaction relay fee.  Dust is
// defined in terms of the minimum transaction relay fee.
func isDust(txOut *wire.TxOut, minRelayTxFee btcutil.Amount) bool {
	// Unspendable outputs are considered dust.
	if txscript.IsUnspendable(txOut.PkScript) {
		return true
	}

	// The total serialized size consists of the output and the associated
	// input script to redeem it.  The minimum size of a pay-to-pubkey-hash
	// input is 148 bytes.
	totalSize := txOut.SerializeSize() + 148

	// The output is considered dust if the cost to the network to spend the
	// coins is more than 1/3 of the minimum transaction relay fee.  The
	// following is equivalent to (value/totalSize) * (1/3) * 1000 without
	// needing to do floating point math.
	return txOut.Value*1000/(3*int64(totalSize)) < int64(minRelayTxFee)
}

// checkTransactionStandard performs a series of checks on a transaction to
// ensure it is a "standard" transaction.  A standard transaction has a
// version in the supported range, conforms to the weight limit and contains
// no dust outputs.
func checkTransactionStandard(tx *btcutil.Tx, weight int64, minRelayTxFee btcutil.Amount) error {
	msgTx := tx.MsgTx()
	if msgTx.Version < 1 || msgTx.Version > maxStandardTxVersion {
		str := fmt.Sprintf("transaction version %d is not in the valid "+
			"range of %d-%d", msgTx.Version, 1, maxStandardTxVersion)
		return txRuleError(ErrNonStandard, str)
	}

	if weight > MaxStandardTxWeight {
		str := fmt.Sprintf("weight of transaction %v is larger than max "+
			"allowed weight of %v", weight, MaxStandardTxWeight)
		return txRuleError(ErrNonStandard, str)
	}

	for i, txOut := range msgTx.TxOut {
		// Data carrier outputs are allowed to carry no value.
		if txOut.Value == 0 && txscript.IsUnspendable(txOut.PkScript) {
			continue
		}
		if isDust(txOut, minRelayTxFee) {
			str := fmt.Sprintf("transaction output %d: payment of %d is "+
				"dust", i, txOut.Value)
			return txRuleError(ErrDustOutput, str)
		}
	}

	return nil
}
