// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package halving

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// EpochReport describes an epoch of the halving schedule.
type EpochReport struct {
	Name                string
	StartBlock          int64
	EndBlock            int64
	MaxBlockSubsidy     btcutil.Amount
	IsSubsidyHalved     bool
	DynamicRewardsBoost float64
	HasEnded            bool
	StartSupply         btcutil.Amount
	EndSupply           btcutil.Amount

	SupplyTarget       btcutil.Amount
	SupplyThisEpoch    btcutil.Amount
	SupplySinceHalving btcutil.Amount

	// SupplyTargetPercent is the percentage of the supply target reached by
	// the supply released since the last halving.
	SupplyTargetPercent int64
}

// Report is an aggregated view of the halving state.
type Report struct {
	Halvings          int
	EpochCount        int
	HalvingInterval   int64
	Height            int64
	BlocksToNextEpoch int64

	// EpochSupplyTargetReached is the percentage of the supply target of the
	// open epoch reached since the last halving and MinSupplyToHalve the
	// percentage needed for its successor to halve.
	EpochSupplyTargetReached int64
	MinSupplyToHalve         int64

	Epochs []EpochReport
}

// percent returns floor(realized/target*100) or 0 for an empty target.
func percent(realized, target btcutil.Amount) int64 {
	if target <= 0 {
		return 0
	}
	return int64(realized) * 100 / int64(target)
}

// Report syncs and flushes the halving state and returns an aggregated view
// of it.
func (t *Tracker) Report() (*Report, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if err := t.sync(); err != nil {
		return nil, err
	}
	if err := t.flush(); err != nil {
		return nil, err
	}
	s := &t.state
	if err := s.validate(); err != nil {
		return nil, err
	}

	r := &Report{
		Halvings:         s.HalvingCount,
		EpochCount:       len(s.Epochs),
		HalvingInterval:  s.HalvingInterval,
		Height:           s.LastHeight,
		MinSupplyToHalve: int64(MinSupplyTargetRatio * 100),
		Epochs:           make([]EpochReport, 0, len(s.Epochs)),
	}
	cur := s.current()
	r.BlocksToNextEpoch = cur.EndBlock - s.LastHeight

	var halvings, sinceHalving int
	var supplySinceHalving btcutil.Amount
	for i := range s.Epochs {
		e := &s.Epochs[i]
		name := e.Name
		switch {
		case e.Bootstrap:
			sinceHalving = 0
			supplySinceHalving = 0
		case e.IsSubsidyHalved:
			// The epoch starting a halving is epoch zero after it.
			halvings++
			sinceHalving = 0
			supplySinceHalving = 0
		default:
			sinceHalving++
		}
		if !e.Bootstrap {
			name = fmt.Sprintf("ALPHA_H%d_E%d", halvings, sinceHalving)
		}

		thisEpoch := e.RealizedSupply(s.Supply)
		supplySinceHalving += thisEpoch
		target := e.SupplyTarget()
		r.Epochs = append(r.Epochs, EpochReport{
			Name:                name,
			StartBlock:          e.StartBlock,
			EndBlock:            e.EndBlock,
			MaxBlockSubsidy:     e.MaxBlockSubsidy,
			IsSubsidyHalved:     e.IsSubsidyHalved,
			DynamicRewardsBoost: e.DynamicRewardsBoost,
			HasEnded:            e.HasEnded,
			StartSupply:         e.StartSupply,
			EndSupply:           e.EndSupply,
			SupplyTarget:        target,
			SupplyThisEpoch:     thisEpoch,
			SupplySinceHalving:  supplySinceHalving,
			SupplyTargetPercent: percent(supplySinceHalving, target),
		})
	}
	r.EpochSupplyTargetReached = r.Epochs[len(r.Epochs)-1].SupplyTargetPercent
	return r, nil
}
