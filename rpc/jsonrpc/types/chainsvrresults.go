// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package types

// GetBlockTemplateResultTx models the transactions field of the
// getblocktemplate command.
type GetBlockTemplateResultTx struct {
	Data    string  `json:"data"`
	TxID    string  `json:"txid"`
	Hash    string  `json:"hash"`
	Depends []int64 `json:"depends"`
	Fee     int64   `json:"fee"`
	SigOps  int64   `json:"sigops"`
	Weight  int64   `json:"weight"`
}

// GetBlockTemplateResultPayee models an output the coinbase of a template
// must pay.
type GetBlockTemplateResultPayee struct {
	Kind   string `json:"kind"`
	Script string `json:"script"`
	Amount int64  `json:"amount"`
}

// GetBlockTemplateResult models the data returned from the getblocktemplate
// command.
type GetBlockTemplateResult struct {
	Capabilities      []string                      `json:"capabilities"`
	Version           int32                         `json:"version"`
	Rules             []string                      `json:"rules"`
	VbAvailable       map[string]uint8              `json:"vbavailable"`
	VbRequired        int                           `json:"vbrequired"`
	PreviousHash      string                        `json:"previousblockhash"`
	Transactions      []GetBlockTemplateResultTx    `json:"transactions"`
	CoinbaseAux       map[string]string             `json:"coinbaseaux"`
	CoinbaseValue     int64                         `json:"coinbasevalue"`
	LongPollID        string                        `json:"longpollid"`
	Target            string                        `json:"target"`
	MinTime           int64                         `json:"mintime"`
	Mutable           []string                      `json:"mutable"`
	NonceRange        string                        `json:"noncerange"`
	SigOpLimit        int64                         `json:"sigoplimit"`
	SizeLimit         int64                         `json:"sizelimit"`
	WeightLimit       int64                         `json:"weightlimit"`
	CurTime           int64                         `json:"curtime"`
	Bits              string                        `json:"bits"`
	Height            int64                         `json:"height"`
	Algo              string                        `json:"algo"`
	WitnessCommitment string                        `json:"default_witness_commitment,omitempty"`
	Payees            []GetBlockTemplateResultPayee `json:"payees"`
}

// GetMiningInfoResult models the data from the getmininginfo command.
type GetMiningInfoResult struct {
	Blocks        int64   `json:"blocks"`
	Difficulty    float64 `json:"difficulty"`
	Algo          string  `json:"algo"`
	NetworkHashPS float64 `json:"networkhashps"`
	PooledTx      int     `json:"pooledtx"`
	Chain         string  `json:"chain"`
	Warnings      string  `json:"warnings"`
	Generate      bool    `json:"generate"`
	GenProcLimit  int32   `json:"genproclimit"`
	HashesPerSec  float64 `json:"hashespersec"`
}

// HalvingEpochResult models an epoch of the gethalvinginfo command.  The
// boost is false when the epoch rewards are not boosted and the end supply
// is false while the epoch has not ended.
type HalvingEpochResult struct {
	EpochName           string      `json:"epoch_name"`
	StartedByHalving    bool        `json:"started_by_halving"`
	StartBlock          int64       `json:"start_block"`
	EndBlock            int64       `json:"end_block"`
	MaxBlockReward      float64     `json:"max_block_reward"`
	DynamicRewardsBoost interface{} `json:"dynamic_rewards_boost"`
	StartSupply         float64     `json:"start_supply"`
	EndSupply           interface{} `json:"end_supply"`
	SupplyTarget        float64     `json:"supply_target"`
	SupplyThisEpoch     float64     `json:"supply_this_epoch"`
	SupplySinceHalving  float64     `json:"supply_since_halving"`
	SupplyTargetReached string      `json:"supply_target_reached"`
}

// GetHalvingInfoResult models the data from the gethalvinginfo command.  The
// field names keep the spelling existing clients rely on.
type GetHalvingInfoResult struct {
	HalvingsOccurred         int                  `json:"halvings_occured"`
	EpochsOccurred           int                  `json:"epochs_occured"`
	HalvingInterval          int64                `json:"halving_interval"`
	BlocksToNextEpoch        int64                `json:"blocks_to_next_epoch"`
	EpochSupplyTargetReached string               `json:"epoch_supply_target_reached"`
	MinEpochSupplyToHalve    string               `json:"min_epoch_supply_to_halve"`
	Epochs                   []HalvingEpochResult `json:"epochs"`
}

// MultiAlgoInfoResult models an entry of the getmultialgoinfo command.
type MultiAlgoInfoResult struct {
	Algo           string  `json:"algo"`
	Difficulty     float64 `json:"difficulty"`
	Hashrate       float64 `json:"hashrate"`
	LastBlockIndex int64   `json:"last_block_index"`
}

// MiningStatsResult models an entry of the getminingstats command.
type MiningStatsResult struct {
	Algo              string  `json:"algo"`
	LastBlockReward   float64 `json:"last_block_reward"`
	AvgBlockReward24h float64 `json:"avg_block_reward_24h"`
	AvgBlockReward7d  float64 `json:"avg_block_reward_7d"`
	TotalBlocks24h    int     `json:"total_blocks_24h"`
	TotalBlocks7d     int     `json:"total_blocks_7d"`
	TotalRewards24h   float64 `json:"total_rewards_24h"`
	TotalRewards7d    float64 `json:"total_rewards_7d"`
}

// SessionResult models the data from the session command.
type SessionResult struct {
	SessionID uint64 `json:"sessionid"`
}
