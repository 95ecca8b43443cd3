// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams defines the parameters of the networks the mining
// coordinator can serve.
package netparams

import (
	"math"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/math/uint256"
)

// Deployment defines details related to a soft-fork deployment signaled
// through the version bits of block headers.
type Deployment struct {
	// Name is the rule name reported to and expected from miners.
	Name string

	// Bit is the version bit used to signal the deployment.  It must not
	// overlap the algorithm field of the version.
	Bit uint8

	// StartTime is the median time after which voting on the deployment
	// starts.
	StartTime uint64

	// ExpireTime is the median time after which the attempted deployment
	// expires.
	ExpireTime uint64

	// GBTForce indicates a miner that does not understand the rule can
	// still safely mine blocks once it is active.
	GBTForce bool

	// Required indicates the rule must be declared as supported by clients
	// requesting templates.
	Required bool
}

// EpochParams defines a halving epoch with a fixed height range that
// precedes supply-gated halvings.
type EpochParams struct {
	Name        string
	StartHeight int64
	EndHeight   int64
	MaxSubsidy  btcutil.Amount

	// DynamicRewards scales block rewards by the cost factor of the
	// algorithm that mined the block.
	DynamicRewards bool
}

// Params defines a network by its parameters.
type Params struct {
	// Name is a human-readable identifier for the network.
	Name string

	// DefaultRPCPort is the default port the RPC server listens on.
	DefaultRPCPort string

	// GenesisBlock is the first block of the chain.
	GenesisBlock *wire.MsgBlock

	// PowLimit is the highest proof-of-work target a block may have and
	// PowLimitBits is the same value in compact form.  The difficulty of
	// PowLimitBits is reported as 1.
	PowLimit     *uint256.Uint256
	PowLimitBits uint32

	// TargetSpacing is the desired amount of time between blocks.
	TargetSpacing time.Duration

	// RetargetInterval is the number of blocks in a difficulty adjustment
	// window.  It is the default hashrate lookup window.
	RetargetInterval int64

	// PowNoRetargeting disables difficulty adjustment so every block may
	// be mined at the proof-of-work limit.
	PowNoRetargeting bool

	// GenerateSupported specifies whether or not CPU mining is allowed via
	// the generate RPC.
	GenerateSupported bool

	// RuleChangeActivationThreshold is the number of blocks in a window
	// that must signal a deployment for it to lock in and
	// MinerConfirmationWindow is the number of blocks in each window.
	RuleChangeActivationThreshold uint32
	MinerConfirmationWindow       uint32

	// Deployments are the soft-fork deployments of the network.
	Deployments []Deployment

	// BootstrapEpochs are the fixed epochs that precede the first epoch
	// subject to halving.  They must be contiguous and start at height 0.
	BootstrapEpochs []EpochParams

	// InitialHalvingInterval is the length of the first epoch subject to
	// halving.  It doubles after each halving.
	InitialHalvingInterval int64

	// CoinbaseMaturity is the number of blocks before coinbase outputs can
	// be spent.
	CoinbaseMaturity uint16
}

// HalvingStartHeight returns the height of the first epoch subject to
// halving.
func (p *Params) HalvingStartHeight() int64 {
	if len(p.BootstrapEpochs) == 0 {
		return 0
	}
	return p.BootstrapEpochs[len(p.BootstrapEpochs)-1].EndHeight + 1
}

// DeploymentByName returns the deployment with the given rule name.
func (p *Params) DeploymentByName(name string) *Deployment {
	for i := range p.Deployments {
		if p.Deployments[i].Name == name {
			return &p.Deployments[i]
		}
	}
	return nil
}

// hexToUint256 converts the passed big endian hex string into a Uint256 and
// will panic if there is an error.  It will only (and must only) be called
// with hard-coded values.
func hexToUint256(s string) *uint256.Uint256 {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic("invalid hex in source file: " + s)
	}
	// NewHashFromStr reverses the bytes, so the hash bytes are little
	// endian.
	return new(uint256.Uint256).SetBytesLE((*[32]byte)(h))
}

// genesisBlock returns a genesis block for the network with a coinbase that
// pays nothing to anyone.
func genesisBlock(timestamp int64, bits, nonce uint32) *wire.MsgBlock {
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		SignatureScript:  []byte("powcoord genesis"),
		Sequence:         math.MaxUint32,
	})
	coinbase.AddTxOut(&wire.TxOut{PkScript: []byte{0x6a}})

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			MerkleRoot: coinbase.TxHash(),
			Timestamp:  time.Unix(timestamp, 0),
			Bits:       bits,
			Nonce:      nonce,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
	return block
}

// MainNetParams defines the parameters for the main network.
var MainNetParams = Params{
	Name:           "mainnet",
	DefaultRPCPort: "21337",
	GenesisBlock:   genesisBlock(1539634800, 0x1e0fffff, 0),
	PowLimit:       hexToUint256("00000fffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
	PowLimitBits:   0x1e0fffff,

	TargetSpacing:    2 * time.Minute,
	RetargetInterval: 720,

	RuleChangeActivationThreshold: 1916,
	MinerConfirmationWindow:       2016,
	Deployments: []Deployment{{
		Name:       "csv",
		Bit:        0,
		StartTime:  1539634800,
		ExpireTime: 1602806400,
		GBTForce:   true,
	}, {
		Name:       "segwit",
		Bit:        1,
		StartTime:  1539634800,
		ExpireTime: 1602806400,
		GBTForce:   true,
		Required:   true,
	}},

	BootstrapEpochs: []EpochParams{
		{Name: "COINSWAP", StartHeight: 0, EndHeight: 999, MaxSubsidy: 100 * btcutil.SatoshiPerBitcoin},
		{Name: "BOOTSTRAP", StartHeight: 1000, EndHeight: 9999, MaxSubsidy: 40 * btcutil.SatoshiPerBitcoin},
		{Name: "ALPHA", StartHeight: 10000, EndHeight: 49999, MaxSubsidy: 20 * btcutil.SatoshiPerBitcoin, DynamicRewards: true},
	},
	InitialHalvingInterval: 43200,
	CoinbaseMaturity:       100,
}

// TestNetParams defines the parameters for the test network.
var TestNetParams = Params{
	Name:           "testnet",
	DefaultRPCPort: "21338",
	GenesisBlock:   genesisBlock(1539634801, 0x1e0fffff, 0),
	PowLimit:       hexToUint256("00000fffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
	PowLimitBits:   0x1e0fffff,

	TargetSpacing:    2 * time.Minute,
	RetargetInterval: 720,

	RuleChangeActivationThreshold: 1512,
	MinerConfirmationWindow:       2016,
	Deployments: []Deployment{{
		Name:       "csv",
		Bit:        0,
		StartTime:  1539634800,
		ExpireTime: 1602806400,
		GBTForce:   true,
	}, {
		Name:       "segwit",
		Bit:        1,
		StartTime:  1539634800,
		ExpireTime: 1602806400,
		GBTForce:   true,
		Required:   true,
	}},

	BootstrapEpochs: []EpochParams{
		{Name: "COINSWAP", StartHeight: 0, EndHeight: 99, MaxSubsidy: 100 * btcutil.SatoshiPerBitcoin},
		{Name: "BOOTSTRAP", StartHeight: 100, EndHeight: 999, MaxSubsidy: 40 * btcutil.SatoshiPerBitcoin},
		{Name: "ALPHA", StartHeight: 1000, EndHeight: 4999, MaxSubsidy: 20 * btcutil.SatoshiPerBitcoin, DynamicRewards: true},
	},
	InitialHalvingInterval: 4320,
	CoinbaseMaturity:       100,
}

// SimNetParams defines the parameters for the simulation network.  It has
// a trivial proof-of-work limit, short windows and epochs so every state of
// the coordinator can be reached quickly.
var SimNetParams = Params{
	Name:           "simnet",
	DefaultRPCPort: "21339",
	GenesisBlock:   genesisBlock(1539634802, 0x207fffff, 0),
	PowLimit:       hexToUint256("7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
	PowLimitBits:   0x207fffff,

	TargetSpacing:    2 * time.Minute,
	RetargetInterval: 144,
	PowNoRetargeting: true,

	GenerateSupported: true,

	RuleChangeActivationThreshold: 108,
	MinerConfirmationWindow:       144,
	Deployments: []Deployment{{
		Name:       "csv",
		Bit:        0,
		StartTime:  0,
		ExpireTime: math.MaxInt64,
		GBTForce:   true,
	}, {
		Name:       "segwit",
		Bit:        1,
		StartTime:  0,
		ExpireTime: math.MaxInt64,
		GBTForce:   true,
		Required:   true,
	}, {
		Name:       "testdummy",
		Bit:        28,
		StartTime:  0,
		ExpireTime: math.MaxInt64,
	}},

	BootstrapEpochs: []EpochParams{
		{Name: "COINSWAP", StartHeight: 0, EndHeight: 9, MaxSubsidy: 100 * btcutil.SatoshiPerBitcoin},
		{Name: "BOOTSTRAP", StartHeight: 10, EndHeight: 19, MaxSubsidy: 40 * btcutil.SatoshiPerBitcoin},
		{Name: "ALPHA", StartHeight: 20, EndHeight: 39, MaxSubsidy: 20 * btcutil.SatoshiPerBitcoin, DynamicRewards: true},
	},
	InitialHalvingInterval: 20,
	CoinbaseMaturity:       16,
}
