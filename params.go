// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/multialgo/powcoord/internal/netparams"
)

// activeNetParams is a pointer to the parameters specific to the currently
// active network.
var activeNetParams = &mainNetParams

// params is used to group parameters for various networks such as the main
// network and test networks.
type params struct {
	*netparams.Params

	// addrParams are the address encoding parameters used to decode the
	// mining and payee addresses.
	addrParams *chaincfg.Params
}

// mainNetParams contains parameters specific to the main network.
var mainNetParams = params{
	Params:     &netparams.MainNetParams,
	addrParams: &chaincfg.MainNetParams,
}

// testNetParams contains parameters specific to the test network.
var testNetParams = params{
	Params:     &netparams.TestNetParams,
	addrParams: &chaincfg.TestNet3Params,
}

// simNetParams contains parameters specific to the simulation test network.
var simNetParams = params{
	Params:     &netparams.SimNetParams,
	addrParams: &chaincfg.SimNetParams,
}
