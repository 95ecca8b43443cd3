// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// NOTE: This file is intended to house the RPC commands that are supported by
// a chain server.

package types

import (
	"github.com/decred/dcrd/dcrjson/v4"
)

// These are the modes of the getblocktemplate request.
const (
	// GBTModeTemplate requests a block template.  It is the default.
	GBTModeTemplate = "template"

	// GBTModeProposal submits a block proposal for validation.
	GBTModeProposal = "proposal"
)

// TemplateRequest is a request object as defined in BIP22 and BIP23.  It is
// optionally provided as a pointer argument to GetBlockTemplateCmd.
type TemplateRequest struct {
	Mode         string   `json:"mode,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Rules        []string `json:"rules,omitempty"`

	// Optional long polling.
	LongPollID string `json:"longpollid,omitempty"`

	// Algo selects the algorithm of the template.  It may also be given
	// as the second parameter of the command.
	Algo string `json:"algo,omitempty"`

	// Data is the hex-encoded block of a proposal.
	Data string `json:"data,omitempty"`
}

// GetBlockTemplateCmd defines the getblocktemplate JSON-RPC command.
type GetBlockTemplateCmd struct {
	Request *TemplateRequest
	Algo    *string
}

// NewGetBlockTemplateCmd returns a new instance which can be used to issue a
// getblocktemplate JSON-RPC command.
//
// The parameters which are pointers indicate they are optional.  Passing nil
// for optional parameters will use the default value.
func NewGetBlockTemplateCmd(request *TemplateRequest, algo *string) *GetBlockTemplateCmd {
	return &GetBlockTemplateCmd{
		Request: request,
		Algo:    algo,
	}
}

// GetBestBlockHashCmd defines the getbestblockhash JSON-RPC command.
type GetBestBlockHashCmd struct{}

// GetBlockCountCmd defines the getblockcount JSON-RPC command.
type GetBlockCountCmd struct{}

// DebugLevelCmd defines the debuglevel JSON-RPC command.
type DebugLevelCmd struct {
	LevelSpec string
}

// NewDebugLevelCmd returns a new DebugLevelCmd which can be used to issue a
// debuglevel JSON-RPC command.
func NewDebugLevelCmd(levelSpec string) *DebugLevelCmd {
	return &DebugLevelCmd{
		LevelSpec: levelSpec,
	}
}

// GenerateCmd defines the generate JSON-RPC command.
type GenerateCmd struct {
	NumBlocks uint32
}

// NewGenerateCmd returns a new instance which can be used to issue a generate
// JSON-RPC command.
func NewGenerateCmd(numBlocks uint32) *GenerateCmd {
	return &GenerateCmd{
		NumBlocks: numBlocks,
	}
}

// GetDifficultyCmd defines the getdifficulty JSON-RPC command.
type GetDifficultyCmd struct {
	Algo *string
}

// NewGetDifficultyCmd returns a new instance which can be used to issue a
// getdifficulty JSON-RPC command.
func NewGetDifficultyCmd(algo *string) *GetDifficultyCmd {
	return &GetDifficultyCmd{
		Algo: algo,
	}
}

// GetGenerateCmd defines the getgenerate JSON-RPC command.
type GetGenerateCmd struct{}

// GetHashesPerSecCmd defines the gethashespersec JSON-RPC command.
type GetHashesPerSecCmd struct{}

// GetHalvingInfoCmd defines the gethalvinginfo JSON-RPC command.
type GetHalvingInfoCmd struct{}

// GetMiningInfoCmd defines the getmininginfo JSON-RPC command.
type GetMiningInfoCmd struct {
	Algo *string
}

// NewGetMiningInfoCmd returns a new instance which can be used to issue a
// getmininginfo JSON-RPC command.
func NewGetMiningInfoCmd(algo *string) *GetMiningInfoCmd {
	return &GetMiningInfoCmd{
		Algo: algo,
	}
}

// GetMiningStatsCmd defines the getminingstats JSON-RPC command.
type GetMiningStatsCmd struct{}

// GetMultiAlgoInfoCmd defines the getmultialgoinfo JSON-RPC command.
type GetMultiAlgoInfoCmd struct{}

// GetNetworkHashPSCmd defines the getnetworkhashps JSON-RPC command.
type GetNetworkHashPSCmd struct {
	Blocks *int `jsonrpcdefault:"120"`
	Height *int `jsonrpcdefault:"-1"`
	Algo   *string
}

// NewGetNetworkHashPSCmd returns a new instance which can be used to issue a
// getnetworkhashps JSON-RPC command.
//
// The parameters which are pointers indicate they are optional.  Passing nil
// for optional parameters will use the default value.
func NewGetNetworkHashPSCmd(numBlocks, height *int, algo *string) *GetNetworkHashPSCmd {
	return &GetNetworkHashPSCmd{
		Blocks: numBlocks,
		Height: height,
		Algo:   algo,
	}
}

// HelpCmd defines the help JSON-RPC command.
type HelpCmd struct {
	Command *string
}

// NewHelpCmd returns a new instance which can be used to issue a help JSON-RPC
// command.
func NewHelpCmd(command *string) *HelpCmd {
	return &HelpCmd{
		Command: command,
	}
}

// PrioritiseTransactionCmd defines the prioritisetransaction JSON-RPC
// command.  Dummy is only kept for compatibility and must be zero.
type PrioritiseTransactionCmd struct {
	TxID     string
	Dummy    float64
	FeeDelta int64
}

// NewPrioritiseTransactionCmd returns a new instance which can be used to
// issue a prioritisetransaction JSON-RPC command.
func NewPrioritiseTransactionCmd(txID string, feeDelta int64) *PrioritiseTransactionCmd {
	return &PrioritiseTransactionCmd{
		TxID:     txID,
		FeeDelta: feeDelta,
	}
}

// SendRawTransactionCmd defines the sendrawtransaction JSON-RPC command.
type SendRawTransactionCmd struct {
	HexTx         string
	AllowHighFees *bool `jsonrpcdefault:"false"`
}

// NewSendRawTransactionCmd returns a new instance which can be used to issue a
// sendrawtransaction JSON-RPC command.
func NewSendRawTransactionCmd(hexTx string, allowHighFees *bool) *SendRawTransactionCmd {
	return &SendRawTransactionCmd{
		HexTx:         hexTx,
		AllowHighFees: allowHighFees,
	}
}

// SetGenerateCmd defines the setgenerate JSON-RPC command.
type SetGenerateCmd struct {
	Generate     bool
	GenProcLimit *int `jsonrpcdefault:"-1"`
}

// NewSetGenerateCmd returns a new instance which can be used to issue a
// setgenerate JSON-RPC command.
func NewSetGenerateCmd(generate bool, genProcLimit *int) *SetGenerateCmd {
	return &SetGenerateCmd{
		Generate:     generate,
		GenProcLimit: genProcLimit,
	}
}

// StopCmd defines the stop JSON-RPC command.
type StopCmd struct{}

// SubmitBlockCmd defines the submitblock JSON-RPC command.  Dummy is only
// kept for compatibility and is ignored.
type SubmitBlockCmd struct {
	HexBlock string
	Dummy    *string
}

// NewSubmitBlockCmd returns a new instance which can be used to issue a
// submitblock JSON-RPC command.
func NewSubmitBlockCmd(hexBlock string) *SubmitBlockCmd {
	return &SubmitBlockCmd{
		HexBlock: hexBlock,
	}
}

// SubmitHeaderCmd defines the submitheader JSON-RPC command.
type SubmitHeaderCmd struct {
	HexData string
}

// NewSubmitHeaderCmd returns a new instance which can be used to issue a
// submitheader JSON-RPC command.
func NewSubmitHeaderCmd(hexData string) *SubmitHeaderCmd {
	return &SubmitHeaderCmd{
		HexData: hexData,
	}
}

func init() {
	// No special flags for commands in this file.
	flags := dcrjson.UsageFlag(0)

	dcrjson.MustRegister(Method("debuglevel"), (*DebugLevelCmd)(nil), flags)
	dcrjson.MustRegister(Method("generate"), (*GenerateCmd)(nil), flags)
	dcrjson.MustRegister(Method("getbestblockhash"), (*GetBestBlockHashCmd)(nil), flags)
	dcrjson.MustRegister(Method("getblockcount"), (*GetBlockCountCmd)(nil), flags)
	dcrjson.MustRegister(Method("getblocktemplate"), (*GetBlockTemplateCmd)(nil), flags)
	dcrjson.MustRegister(Method("getdifficulty"), (*GetDifficultyCmd)(nil), flags)
	dcrjson.MustRegister(Method("getgenerate"), (*GetGenerateCmd)(nil), flags)
	dcrjson.MustRegister(Method("gethalvinginfo"), (*GetHalvingInfoCmd)(nil), flags)
	dcrjson.MustRegister(Method("gethashespersec"), (*GetHashesPerSecCmd)(nil), flags)
	dcrjson.MustRegister(Method("getmininginfo"), (*GetMiningInfoCmd)(nil), flags)
	dcrjson.MustRegister(Method("getminingstats"), (*GetMiningStatsCmd)(nil), flags)
	dcrjson.MustRegister(Method("getmultialgoinfo"), (*GetMultiAlgoInfoCmd)(nil), flags)
	dcrjson.MustRegister(Method("getnetworkhashps"), (*GetNetworkHashPSCmd)(nil), flags)
	dcrjson.MustRegister(Method("help"), (*HelpCmd)(nil), flags)
	dcrjson.MustRegister(Method("prioritisetransaction"), (*PrioritiseTransactionCmd)(nil), flags)
	dcrjson.MustRegister(Method("sendrawtransaction"), (*SendRawTransactionCmd)(nil), flags)
	dcrjson.MustRegister(Method("setgenerate"), (*SetGenerateCmd)(nil), flags)
	dcrjson.MustRegister(Method("stop"), (*StopCmd)(nil), flags)
	dcrjson.MustRegister(Method("submitblock"), (*SubmitBlockCmd)(nil), flags)
	dcrjson.MustRegister(Method("submitheader"), (*SubmitHeaderCmd)(nil), flags)
}
