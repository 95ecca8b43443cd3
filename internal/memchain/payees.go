// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memchain

import (
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/multialgo/powcoord/internal/mining"
)

// DefaultPayeePercent is the share of the max block subsidy paid to the
// configured payee.
const DefaultPayeePercent = 10

// MaxSubsidyFunc returns the max block subsidy at a height.
type MaxSubsidyFunc func(height int64) (btcutil.Amount, error)

// PayeeFeed is a payee resolver that requires every coinbase to pay a fixed
// share of the max block subsidy to a single script, standing in for the
// masternode and governance payments of a full node.  It reports the payees
// as unknown until it is marked synced.
type PayeeFeed struct {
	pkScript   []byte
	percent    int64
	maxSubsidy MaxSubsidyFunc
	synced     atomic.Bool
}

// NewPayeeFeed returns a payee feed paying percent of the max block subsidy
// to the script.  A nil script or a zero percent requires no payees.
func NewPayeeFeed(pkScript []byte, percent int64, maxSubsidy MaxSubsidyFunc) *PayeeFeed {
	f := &PayeeFeed{
		pkScript:   pkScript,
		percent:    percent,
		maxSubsidy: maxSubsidy,
	}
	f.synced.Store(true)
	return f
}

// SetSynced marks whether the payee list is known.
func (f *PayeeFeed) SetSynced(synced bool) {
	f.synced.Store(synced)
}

// RequiredPayees returns the payees of the block at the height.
//
// This is part of the mining.PayeeResolver interface.
func (f *PayeeFeed) RequiredPayees(height int64) ([]mining.Payee, error) {
	if !f.synced.Load() {
		return nil, mining.Error{
			Err:         mining.ErrNotReady,
			Description: "payee list is not synced",
		}
	}
	if len(f.pkScript) == 0 || f.percent <= 0 {
		return nil, nil
	}

	maxSubsidy, err := f.maxSubsidy(height)
	if err != nil {
		return nil, err
	}
	amount := maxSubsidy * btcutil.Amount(f.percent) / 100
	if amount <= 0 {
		return nil, nil
	}
	return []mining.Payee{{
		PkScript: f.pkScript,
		Amount:   amount,
		Kind:     "masternode",
	}}, nil
}
