// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/gorilla/websocket"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/chainwork"
	"github.com/multialgo/powcoord/internal/mempool"
	"github.com/multialgo/powcoord/internal/metrics"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
	"github.com/multialgo/powcoord/rpc/jsonrpc/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	// rpcReadLimitAuthenticated is the maximum number of bytes allowed for a
	// JSON-RPC message read from a client.
	rpcReadLimitAuthenticated = 1 << 23 // 8 MiB

	// errRPCVerify is the code of errors verifying a submitted header.
	errRPCVerify dcrjson.RPCErrorCode = -25
)

var (
	// JSON 2.0 batched request prefix
	batchedRequestPrefix = []byte("[")

	// gbtCapabilities describes additional capabilities returned with a
	// block template generated by the getblocktemplate RPC.
	gbtCapabilities = []string{"proposal"}

	// gbtMutableFields are the manipulations the server allows to be made
	// to block templates generated by the getblocktemplate RPC.
	gbtMutableFields = []string{"time", "transactions", "prevblock"}

	// gbtNonceRange is the range of nonces a miner may use.
	gbtNonceRange = "00000000ffffffff"
)

// Errors
var (
	// ErrRPCUnimplemented is an error returned to RPC clients when the
	// provided command is recognized, but not implemented.
	ErrRPCUnimplemented = &dcrjson.RPCError{
		Code:    dcrjson.ErrRPCUnimplemented,
		Message: "Command unimplemented",
	}
)

type commandHandler func(context.Context, *Server, interface{}) (interface{}, error)

// rpcHandlers maps RPC command strings to appropriate handler functions.
// This is set by init because help references rpcHandlers and thus causes
// a dependency loop.
var rpcHandlers map[types.Method]commandHandler
var rpcHandlersBeforeInit = map[types.Method]commandHandler{
	"debuglevel":            handleDebugLevel,
	"generate":              handleGenerate,
	"getbestblockhash":      handleGetBestBlockHash,
	"getblockcount":         handleGetBlockCount,
	"getblocktemplate":      handleGetBlockTemplate,
	"getdifficulty":         handleGetDifficulty,
	"getgenerate":           handleGetGenerate,
	"gethalvinginfo":        handleGetHalvingInfo,
	"gethashespersec":       handleGetHashesPerSec,
	"getmininginfo":         handleGetMiningInfo,
	"getminingstats":        handleGetMiningStats,
	"getmultialgoinfo":      handleGetMultiAlgoInfo,
	"getnetworkhashps":      handleGetNetworkHashPS,
	"help":                  handleHelp,
	"prioritisetransaction": handlePrioritiseTransaction,
	"sendrawtransaction":    handleSendRawTransaction,
	"setgenerate":           handleSetGenerate,
	"stop":                  handleStop,
	"submitblock":           handleSubmitBlock,
	"submitheader":          handleSubmitHeader,
}

// Commands that are recognized, but intentionally not served.
var rpcUnimplemented = map[string]struct{}{
	"getauxblock": {},
	"getwork":     {},
}

// Commands that are available to a limited user
var rpcLimited = map[string]struct{}{
	// Websockets commands
	"notifywork":     {},
	"stopnotifywork": {},
	"session":        {},

	// Websockets AND HTTP/S commands
	"help": {},

	// HTTP/S-only commands
	"getbestblockhash":   {},
	"getblockcount":      {},
	"getblocktemplate":   {},
	"getdifficulty":      {},
	"gethalvinginfo":     {},
	"getmininginfo":      {},
	"getminingstats":     {},
	"getmultialgoinfo":   {},
	"getnetworkhashps":   {},
	"sendrawtransaction": {},
	"submitblock":        {},
	"submitheader":       {},
}

// rpcInternalError is a convenience function to convert an internal error to
// an RPC error with the appropriate code set.  It also logs the error to the
// RPC server subsystem since internal errors really should not occur.  The
// context parameter is only used in the log message and may be empty if it's
// not needed.
func rpcInternalError(errStr, context string) *dcrjson.RPCError {
	logStr := errStr
	if context != "" {
		logStr = context + ": " + errStr
	}
	log.Error(logStr)
	return dcrjson.NewRPCError(dcrjson.ErrRPCInternal.Code, errStr)
}

// rpcInvalidError is a convenience function to convert an invalid parameter
// error to an RPC error with the appropriate code set.
func rpcInvalidError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCInvalidParameter,
		fmt.Sprintf(fmtStr, args...))
}

// rpcDeserializationError is a convenience function to convert a
// deserialization error to an RPC error with the appropriate code set.
func rpcDeserializationError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCDeserialization,
		fmt.Sprintf(fmtStr, args...))
}

// rpcRuleError is a convenience function to convert a
// rule error to an RPC error with the appropriate code set.
func rpcRuleError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCMisc,
		fmt.Sprintf(fmtStr, args...))
}

// rpcDuplicateTxError is a convenience function to convert a
// rejected duplicate tx error to an RPC error with the appropriate code set.
func rpcDuplicateTxError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCDuplicateTx,
		fmt.Sprintf(fmtStr, args...))
}

// rpcDecodeHexError is a convenience function for returning a nicely formatted
// RPC error which indicates the provided hex string failed to decode.
func rpcDecodeHexError(gotHex string) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCDecodeHexString,
		fmt.Sprintf("Argument must be hexadecimal string (not %q)",
			gotHex))
}

// rpcConnectionClosedError is a convenience function for returning an RPC error
// which indicates the associated connection has been closed, most likely due to
// context cancellation such as when the server is being shutdown.
func rpcConnectionClosedError() *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCMisc, "Connection closed")
}

// rpcMiscError is a convenience function for returning a nicely formatted RPC
// error which indicates there is an unquantifiable error.  Use this sparingly;
// misc return codes are a cop out.
func rpcMiscError(message string) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCMisc, message)
}

// rpcUnknownAlgoError returns the error for a request naming an algorithm
// that is not registered.
func rpcUnknownAlgoError(name string) *dcrjson.RPCError {
	return rpcInvalidError("Unknown algorithm %s", name)
}

// rpcMiningError converts an error of the mining packages to an RPC error
// with the code of the category it belongs to.  RPC errors are returned
// unchanged.
func rpcMiningError(err error, context string) error {
	var rpcErr *dcrjson.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	switch mining.Category(err) {
	case mining.ErrInvalidParameter:
		return rpcInvalidError("%v", err)

	case mining.ErrNotReady:
		return dcrjson.NewRPCError(dcrjson.ErrRPCClientInInitialDownload,
			"powcoord is downloading blocks...")

	case mining.ErrShuttingDown:
		return dcrjson.NewRPCError(dcrjson.ErrRPCClientNotConnected,
			"Shutting down")

	case mining.ErrDeserialization:
		return rpcDeserializationError("%v", err)
	}
	return rpcInternalError(err.Error(), context)
}

// parseAlgo returns the algorithm named by the optional parameter or the
// default mining algorithm when it is not provided.
func (s *Server) parseAlgo(name *string) (algo.ID, error) {
	if name == nil || *name == "" {
		return s.cfg.MiningAlgo, nil
	}
	a := algo.Parse(*name)
	if a == algo.Null {
		return algo.Null, rpcUnknownAlgoError(*name)
	}
	return a, nil
}

// decodeHexStr decodes the hex encoding of a string, possibly prepending a
// leading '0' character if there is an odd number of bytes in the hex
// encoding.  This is to prevent an error for an invalid hex string when using
// an odd number of bytes when calling hex.Decode.
func decodeHexStr(hexStr string) ([]byte, error) {
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, rpcDecodeHexError(hexStr)
	}
	return decoded, nil
}

// decodeBlock deserializes a hex-encoded block.
func decodeBlock(hexStr string) (*wire.MsgBlock, error) {
	serialized, err := decodeHexStr(hexStr)
	if err != nil {
		return nil, rpcDeserializationError("Block decode failed")
	}
	var block wire.MsgBlock
	if err := block.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, rpcDeserializationError("Block decode failed")
	}
	if len(block.Transactions) == 0 ||
		!blockchain.IsCoinBaseTx(block.Transactions[0]) {

		return nil, rpcDeserializationError("Block does not start with a " +
			"coinbase")
	}
	return &block, nil
}

// handleDebugLevel handles debuglevel commands.
func handleDebugLevel(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.DebugLevelCmd)

	// Special show command to list supported subsystems.
	if c.LevelSpec == "show" {
		return fmt.Sprintf("Supported subsystems %v",
			s.cfg.LogManager.SupportedSubsystems()), nil
	}

	err := s.cfg.LogManager.ParseAndSetDebugLevels(c.LevelSpec)
	if err != nil {
		return nil, rpcInvalidError("Invalid debug level %v: %v",
			c.LevelSpec, err)
	}

	return "Done.", nil
}

// handleGenerate handles generate commands.
func handleGenerate(ctx context.Context, s *Server, cmd interface{}) (interface{}, error) {
	// Respond with an error if there is no script to pay the created
	// blocks to.
	if len(s.cfg.Templates.Policy().PayToScript) == 0 {
		return nil, rpcInternalError("No payment addresses specified "+
			"via --miningaddr", "Configuration")
	}

	// Respond with an error if there's virtually 0 chance of CPU-mining a block.
	params := s.cfg.ChainParams
	if !params.GenerateSupported || s.cfg.CPUMiner == nil {
		return nil, &dcrjson.RPCError{
			Code: dcrjson.ErrRPCDifficulty,
			Message: fmt.Sprintf("No support for `generate` on the current "+
				"network, %s, as it's unlikely to be possible to mine a block "+
				"with the CPU.", params.Name),
		}
	}

	c := cmd.(*types.GenerateCmd)

	// Respond with an error when no blocks are requested.
	if c.NumBlocks == 0 {
		return nil, rpcInternalError("Invalid number of blocks",
			"Configuration")
	}

	// Mine the correct number of blocks, assigning the hex representation of
	// the hash of each one to its place in the reply.
	blockHashes, err := s.cfg.CPUMiner.GenerateNBlocks(ctx, c.NumBlocks)
	if err != nil {
		return nil, rpcInternalError(err.Error(), "Could not generate blocks")
	}
	reply := make([]string, 0, len(blockHashes))
	for _, hash := range blockHashes {
		reply = append(reply, hash.String())
	}
	return reply, nil
}

// handleGetBestBlockHash implements the getbestblockhash command.
func handleGetBestBlockHash(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	tip := s.cfg.Chain.Tip()
	if tip == nil {
		return nil, rpcMiningError(mining.ErrNotReady, "")
	}
	hash := tip.Hash()
	return hash.String(), nil
}

// handleGetBlockCount implements the getblockcount command.
func handleGetBlockCount(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	return s.cfg.Chain.Height(), nil
}

// handleGetDifficulty implements the getdifficulty command.
func handleGetDifficulty(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetDifficultyCmd)
	a, err := s.parseAlgo(c.Algo)
	if err != nil {
		return nil, err
	}
	return s.cfg.Accountant.DifficultyForAlgorithm(a), nil
}

// handleGetGenerate implements the getgenerate command.
func handleGetGenerate(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	if s.cfg.CPUMiner == nil {
		return false, nil
	}
	return s.cfg.CPUMiner.IsMining(), nil
}

// handleGetHashesPerSec implements the gethashespersec command.
func handleGetHashesPerSec(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	if s.cfg.CPUMiner == nil {
		return int64(0), nil
	}
	return int64(s.cfg.CPUMiner.HashesPerSecond()), nil
}

// handleGetHalvingInfo implements the gethalvinginfo command.
func handleGetHalvingInfo(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	report, err := s.cfg.Halving.Report()
	if err != nil {
		return nil, rpcMiningError(err, "Could not report halving state")
	}

	result := &types.GetHalvingInfoResult{
		HalvingsOccurred:         report.Halvings,
		EpochsOccurred:           report.EpochCount,
		HalvingInterval:          report.HalvingInterval,
		BlocksToNextEpoch:        report.BlocksToNextEpoch,
		EpochSupplyTargetReached: fmt.Sprintf("%d%%", report.EpochSupplyTargetReached),
		MinEpochSupplyToHalve:    fmt.Sprintf("%d%%", report.MinSupplyToHalve),
		Epochs:                   make([]types.HalvingEpochResult, 0, len(report.Epochs)),
	}
	for i := range report.Epochs {
		e := &report.Epochs[i]
		var boost interface{} = false
		if e.DynamicRewardsBoost > 0 {
			boost = fmt.Sprintf("+%d%%", int64(e.DynamicRewardsBoost*100))
		}
		var endSupply interface{} = false
		if e.HasEnded {
			endSupply = e.EndSupply.ToBTC()
		}
		result.Epochs = append(result.Epochs, types.HalvingEpochResult{
			EpochName:           e.Name,
			StartedByHalving:    e.IsSubsidyHalved,
			StartBlock:          e.StartBlock,
			EndBlock:            e.EndBlock,
			MaxBlockReward:      e.MaxBlockSubsidy.ToBTC(),
			DynamicRewardsBoost: boost,
			StartSupply:         e.StartSupply.ToBTC(),
			EndSupply:           endSupply,
			SupplyTarget:        e.SupplyTarget.ToBTC(),
			SupplyThisEpoch:     e.SupplyThisEpoch.ToBTC(),
			SupplySinceHalving:  e.SupplySinceHalving.ToBTC(),
			SupplyTargetReached: fmt.Sprintf("%d%%", e.SupplyTargetPercent),
		})
	}
	return result, nil
}

// handleGetMiningInfo implements the getmininginfo command.
func handleGetMiningInfo(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetMiningInfoCmd)
	a, err := s.parseAlgo(c.Algo)
	if err != nil {
		return nil, err
	}

	result := &types.GetMiningInfoResult{
		Blocks:        s.cfg.Chain.Height(),
		Difficulty:    s.cfg.Accountant.DifficultyForAlgorithm(a),
		Algo:          a.String(),
		NetworkHashPS: s.cfg.Accountant.NetworkHashrate(chainwork.DefaultHashrateLookup, -1, a),
		PooledTx:      s.cfg.TxMempooler.Count(),
		Chain:         s.cfg.ChainParams.Name,
		GenProcLimit:  -1,
	}
	if s.cfg.CPUMiner != nil {
		result.Generate = s.cfg.CPUMiner.IsMining()
		result.GenProcLimit = s.cfg.CPUMiner.NumWorkers()
		result.HashesPerSec = s.cfg.CPUMiner.HashesPerSecond()
	}
	return result, nil
}

// handleGetMiningStats implements the getminingstats command.
func handleGetMiningStats(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	stats, err := s.cfg.Accountant.MiningStats()
	if err != nil {
		return nil, rpcMiningError(err, "Could not compute mining stats")
	}
	result := make([]types.MiningStatsResult, 0, len(stats))
	for _, st := range stats {
		result = append(result, types.MiningStatsResult{
			Algo:              st.Algo.String(),
			LastBlockReward:   st.LastBlockReward.ToBTC(),
			AvgBlockReward24h: st.AvgBlockReward24h.ToBTC(),
			AvgBlockReward7d:  st.AvgBlockReward7d.ToBTC(),
			TotalBlocks24h:    st.TotalBlocks24h,
			TotalBlocks7d:     st.TotalBlocks7d,
			TotalRewards24h:   st.TotalRewards24h.ToBTC(),
			TotalRewards7d:    st.TotalRewards7d.ToBTC(),
		})
	}
	return result, nil
}

// handleGetMultiAlgoInfo implements the getmultialgoinfo command.
func handleGetMultiAlgoInfo(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	stats := s.cfg.Accountant.MultiAlgoStats()
	result := make([]types.MultiAlgoInfoResult, 0, len(stats))
	for _, st := range stats {
		result = append(result, types.MultiAlgoInfoResult{
			Algo:           st.Algo.String(),
			Difficulty:     st.Difficulty,
			Hashrate:       st.Hashrate,
			LastBlockIndex: st.LastBlockHeight,
		})
	}
	return result, nil
}

// handleGetNetworkHashPS implements the getnetworkhashps command.
func handleGetNetworkHashPS(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetNetworkHashPSCmd)
	a, err := s.parseAlgo(c.Algo)
	if err != nil {
		return nil, err
	}

	numBlocks := int64(chainwork.DefaultHashrateLookup)
	if c.Blocks != nil {
		numBlocks = int64(*c.Blocks)
	}
	height := int64(-1)
	if c.Height != nil {
		height = int64(*c.Height)
	}
	return s.cfg.Accountant.NetworkHashrate(numBlocks, height, a), nil
}

// handleGetBlockTemplate implements the getblocktemplate command.
func handleGetBlockTemplate(ctx context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetBlockTemplateCmd)
	request := c.Request

	mode := types.GBTModeTemplate
	if request != nil && request.Mode != "" {
		mode = request.Mode
	}
	switch mode {
	case types.GBTModeTemplate:
	case types.GBTModeProposal:
		return handleGetBlockTemplateProposal(s, request)
	default:
		return nil, rpcInvalidError("Invalid mode")
	}

	// The algorithm given as the second parameter takes precedence over
	// the one in the request object.
	algoName := c.Algo
	if algoName == nil && request != nil && request.Algo != "" {
		algoName = &request.Algo
	}
	a, err := s.parseAlgo(algoName)
	if err != nil {
		return nil, err
	}

	var rules []string
	if request != nil {
		rules = request.Rules
	}
	if request != nil && request.LongPollID != "" {
		return handleGetBlockTemplateLongPoll(ctx, s, request.LongPollID, a,
			rules)
	}
	tmpl, err := s.cfg.Templates.GetTemplate(ctx, &mining.TemplateRequest{
		Algo:  a,
		Rules: rules,
	})
	if err != nil {
		return nil, rpcMiningError(err, "Could not create block template")
	}
	return s.blockTemplateResult(tmpl)
}

// handleGetBlockTemplateLongPoll waits until the work identified by the
// long-poll id changed and then returns a template for the new work.
func handleGetBlockTemplateLongPoll(ctx context.Context, s *Server, longPollID string, a algo.ID, rules []string) (interface{}, error) {
	tip, mempoolVersion, err := mining.ParseLongPollID(longPollID)
	if err != nil {
		return nil, rpcMiningError(err, "")
	}
	if _, _, err := s.cfg.Templates.WaitForNewWork(ctx, tip, mempoolVersion); err != nil {
		if ctx.Err() != nil {
			return nil, rpcConnectionClosedError()
		}
		return nil, rpcMiningError(err, "Long poll failed")
	}

	tmpl, err := s.cfg.Templates.GetTemplate(ctx, &mining.TemplateRequest{
		Algo:  a,
		Rules: rules,
	})
	if err != nil {
		return nil, rpcMiningError(err, "Could not create block template")
	}
	return s.blockTemplateResult(tmpl)
}

// handleGetBlockTemplateProposal validates the block of a proposal and
// returns the BIP23 result.  A nil result means the block is valid.
func handleGetBlockTemplateProposal(s *Server, request *types.TemplateRequest) (interface{}, error) {
	if request.Data == "" {
		return nil, dcrjson.NewRPCError(dcrjson.ErrRPCType,
			"Missing data String key for proposal")
	}
	block, err := decodeBlock(request.Data)
	if err != nil {
		return nil, err
	}
	result, err := s.cfg.Templates.ProposeBlock(block)
	if err != nil {
		return nil, rpcMiningError(err, "Could not validate proposal")
	}
	if result == "" {
		return nil, nil
	}
	return result, nil
}

// blockTemplateResult returns the getblocktemplate reply for the template.
func (s *Server) blockTemplateResult(tmpl *mining.BlockTemplate) (*types.GetBlockTemplateResult, error) {
	msgBlock := tmpl.Block
	header := &msgBlock.Header

	// Convert each transaction in the block template to a template result
	// transaction.  The coinbase is not included since the miner builds
	// its own.
	numTxns := len(msgBlock.Transactions)
	transactions := make([]types.GetBlockTemplateResultTx, 0, numTxns-1)
	for i := 1; i < numTxns; i++ {
		tx := msgBlock.Transactions[i]
		var buf bytes.Buffer
		buf.Grow(tx.SerializeSize())
		if err := tx.Serialize(&buf); err != nil {
			context := "Failed to serialize transaction"
			return nil, rpcInternalError(err.Error(), context)
		}

		depends := make([]int64, 0, len(tmpl.Depends[i]))
		for _, dep := range tmpl.Depends[i] {
			depends = append(depends, int64(dep))
		}
		txHash := tx.TxHash()
		witnessHash := tx.WitnessHash()
		transactions = append(transactions, types.GetBlockTemplateResultTx{
			Data:    hex.EncodeToString(buf.Bytes()),
			TxID:    txHash.String(),
			Hash:    witnessHash.String(),
			Depends: depends,
			Fee:     int64(tmpl.Fees[i]),
			SigOps:  tmpl.SigOpCosts[i],
			Weight:  tmpl.Weights[i],
		})
	}

	payees := make([]types.GetBlockTemplateResultPayee, 0, len(tmpl.Payees))
	for _, payee := range tmpl.Payees {
		payees = append(payees, types.GetBlockTemplateResultPayee{
			Kind:   payee.Kind,
			Script: hex.EncodeToString(payee.PkScript),
			Amount: int64(payee.Amount),
		})
	}

	target, _, _ := pow.DiffBitsToUint256(header.Bits)
	targetBytes := target.Bytes()
	policy := s.cfg.Templates.Policy()
	result := &types.GetBlockTemplateResult{
		Capabilities:  gbtCapabilities,
		Version:       header.Version,
		Rules:         tmpl.Rules,
		VbAvailable:   tmpl.VbAvailable,
		PreviousHash:  header.PrevBlock.String(),
		Transactions:  transactions,
		CoinbaseAux:   map[string]string{"flags": hex.EncodeToString([]byte(policy.CoinbaseFlags))},
		CoinbaseValue: int64(tmpl.CoinbaseValue),
		LongPollID:    tmpl.LongPollID,
		Target:        hex.EncodeToString(targetBytes[:]),
		MinTime:       tmpl.MinTime.Unix(),
		Mutable:       gbtMutableFields,
		NonceRange:    gbtNonceRange,
		SigOpLimit:    blockchain.MaxBlockSigOpsCost,
		SizeLimit:     wire.MaxBlockPayload,
		WeightLimit:   blockchain.MaxBlockWeight,
		CurTime:       header.Timestamp.Unix(),
		Bits:          fmt.Sprintf("%08x", header.Bits),
		Height:        tmpl.Height,
		Algo:          tmpl.Algo.String(),
		Payees:        payees,
	}
	if result.Rules == nil {
		result.Rules = []string{}
	}
	if result.VbAvailable == nil {
		result.VbAvailable = map[string]uint8{}
	}
	if len(tmpl.WitnessCommitment) > 0 {
		result.WitnessCommitment = hex.EncodeToString(tmpl.WitnessCommitment)
	}
	return result, nil
}

// handleHelp implements the help command.
func handleHelp(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.HelpCmd)

	// Provide a usage overview of all commands when no specific command
	// was specified.
	var method types.Method
	if c.Command != nil {
		method = types.Method(*c.Command)
	}
	if method == "" {
		usage, err := s.helpCacher.RPCUsage(false)
		if err != nil {
			context := "Failed to generate RPC usage"
			return nil, rpcInternalError(err.Error(), context)
		}
		return usage, nil
	}

	// Check that the command asked for is supported and implemented.
	if _, ok := rpcHandlers[method]; !ok {
		return nil, rpcInvalidError("Unknown method: %v", method)
	}

	// Get the help for the command.
	help, err := s.helpCacher.RPCMethodHelp(method)
	if err != nil {
		context := "Failed to generate help"
		return nil, rpcInternalError(err.Error(), context)
	}
	return help, nil
}

// handlePrioritiseTransaction implements the prioritisetransaction command.
func handlePrioritiseTransaction(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.PrioritiseTransactionCmd)
	hash, err := chainhash.NewHashFromStr(c.TxID)
	if err != nil {
		return nil, rpcDecodeHexError(c.TxID)
	}
	if c.Dummy != 0 {
		return nil, rpcInvalidError("Priority is no longer supported, " +
			"dummy argument to prioritisetransaction must be 0.")
	}
	s.cfg.Templates.PrioritiseTransaction(hash, btcutil.Amount(c.FeeDelta))
	return true, nil
}

// handleSendRawTransaction implements the sendrawtransaction command.
func handleSendRawTransaction(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SendRawTransactionCmd)

	allowHighFees := c.AllowHighFees != nil && *c.AllowHighFees
	serializedTx, err := decodeHexStr(c.HexTx)
	if err != nil {
		return nil, err
	}
	msgtx := wire.NewMsgTx(wire.TxVersion)
	err = msgtx.Deserialize(bytes.NewReader(serializedTx))
	if err != nil {
		return nil, rpcDeserializationError("Could not decode Tx: %v",
			err)
	}

	tx := btcutil.NewTx(msgtx)
	_, err = s.cfg.TxMempooler.ProcessTransaction(tx, allowHighFees)
	if err != nil {
		// When the error is a rule error, it means the transaction was
		// simply rejected as opposed to something actually going
		// wrong, so log it as such.  Otherwise, something really did
		// go wrong, so log it as an actual error.
		var rErr mempool.TxRuleError
		if errors.As(err, &rErr) {
			hash := tx.Hash()
			err = fmt.Errorf("rejected transaction %v: %w", hash, err)
			log.Debugf("%v", err)

			// Use the duplicate tx error code when the transaction
			// is known to already be submitted to the mempool, as
			// well as whenever there is a high certainty that the
			// transaction has been confirmed in a recent block.
			if errors.Is(rErr, mempool.ErrDuplicate) ||
				(s.cfg.ConfirmedTxns != nil &&
					s.cfg.ConfirmedTxns.RecentlyConfirmedTxn(hash)) {

				return nil, rpcDuplicateTxError("%v", err)
			}

			// return a generic rule error
			return nil, rpcRuleError("%v", err)
		}

		err = fmt.Errorf("failed to process transaction %v: %w",
			tx.Hash(), err)
		log.Errorf("%v", err)
		return nil, rpcDeserializationError("rejected: %v", err)
	}

	return tx.Hash().String(), nil
}

// handleSetGenerate implements the setgenerate command.
func handleSetGenerate(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SetGenerateCmd)
	if s.cfg.CPUMiner == nil {
		return nil, rpcMiscError("CPU mining is not available")
	}

	// Disable generation regardless of the provided generate flag if the
	// maximum number of threads (goroutines for our purposes) is 0.
	// Otherwise enable or disable it depending on the provided flag.
	generate := c.Generate
	genProcLimit := -1
	if c.GenProcLimit != nil {
		genProcLimit = *c.GenProcLimit
	}
	if genProcLimit == 0 {
		generate = false
	}

	if !generate {
		// Stop CPU mining by setting the number of workers to zero, if needed.
		s.cfg.CPUMiner.SetNumWorkers(0)
	} else {
		// Respond with an error if there is no script to pay the
		// created blocks to.
		if len(s.cfg.Templates.Policy().PayToScript) == 0 {
			return nil, rpcInternalError("No payment addresses "+
				"specified via --miningaddr", "Configuration")
		}

		s.cfg.CPUMiner.SetNumWorkers(int32(genProcLimit))
	}
	return nil, nil
}

// handleStop implements the stop command.
func handleStop(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	select {
	case s.requestProcessShutdown <- struct{}{}:
	default:
	}
	return "powcoord stopping.", nil
}

// handleSubmitBlock implements the submitblock command.
func handleSubmitBlock(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SubmitBlockCmd)

	// Deserialize the submitted block.
	block, err := decodeBlock(c.HexBlock)
	if err != nil {
		return nil, err
	}

	result, err := s.cfg.Templates.SubmitBlock(block)
	if err != nil {
		return nil, rpcMiningError(err, "Could not process block")
	}
	if result == "" {
		return nil, nil
	}
	return result, nil
}

// handleSubmitHeader implements the submitheader command.
func handleSubmitHeader(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SubmitHeaderCmd)

	serialized, err := decodeHexStr(c.HexData)
	if err != nil {
		return nil, rpcDeserializationError("Block header decode failed")
	}
	var header wire.BlockHeader
	if err := header.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, rpcDeserializationError("Block header decode failed")
	}

	err = s.cfg.Templates.SubmitHeader(&header)
	switch {
	case err == nil:
		return nil, nil

	case errors.Is(err, mining.ErrMissingParent):
		return nil, dcrjson.NewRPCError(errRPCVerify, fmt.Sprintf("Must "+
			"submit previous header (%v) first", header.PrevBlock))

	case errors.Is(err, mining.ErrBlockRejected):
		var mErr mining.Error
		reason := err.Error()
		if errors.As(err, &mErr) {
			reason = mErr.Description
		}
		return nil, dcrjson.NewRPCError(errRPCVerify, reason)
	}
	return nil, rpcMiningError(err, "Could not process header")
}

// Server provides a concurrent safe RPC server to miners.
type Server struct {
	numClients atomic.Int32

	cfg                    Config
	hmac                   hash.Hash
	hmacMu                 sync.Mutex
	authsha                [sha256.Size]byte
	limitauthsha           [sha256.Size]byte
	ntfnMgr                *wsNotificationManager
	statusLines            map[int]string
	statusLock             sync.RWMutex
	wg                     sync.WaitGroup
	helpCacher             *helpCacher
	requestProcessShutdown chan struct{}
}

// httpStatusLine returns a response Status-Line (RFC 2616 Section 6.1) for the
// given request and response status code.  This function was lifted and
// adapted from the standard library HTTP server code since it's not exported.
func (s *Server) httpStatusLine(req *http.Request, code int) string {
	// Fast path:
	key := code
	proto11 := req.ProtoAtLeast(1, 1)
	if !proto11 {
		key = -key
	}
	s.statusLock.RLock()
	line, ok := s.statusLines[key]
	s.statusLock.RUnlock()
	if ok {
		return line
	}

	// Slow path:
	proto := "HTTP/1.0"
	if proto11 {
		proto = "HTTP/1.1"
	}
	codeStr := strconv.Itoa(code)
	text := http.StatusText(code)
	if text != "" {
		line = proto + " " + codeStr + " " + text + "\r\n"
		s.statusLock.Lock()
		s.statusLines[key] = line
		s.statusLock.Unlock()
	} else {
		text = "status code " + codeStr
		line = proto + " " + codeStr + " " + text + "\r\n"
	}

	return line
}

// writeHTTPResponseHeaders writes the necessary response headers prior to
// writing an HTTP body given a request to use for protocol negotiation,
// headers to write, a status code, and a writer.
func (s *Server) writeHTTPResponseHeaders(req *http.Request, headers http.Header, code int, w io.Writer) error {
	_, err := io.WriteString(w, s.httpStatusLine(req, code))
	if err != nil {
		return err
	}

	err = headers.Write(w)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, "\r\n")
	return err
}

// shutdown terminates the processes of the rpc server.
func (s *Server) shutdown() error {
	log.Warnf("RPC server shutting down")
	for _, listener := range s.cfg.Listeners {
		err := listener.Close()
		if err != nil {
			log.Errorf("Problem shutting down rpc: %v", err)
			return err
		}
	}
	s.wg.Wait()
	log.Infof("RPC server shutdown complete")
	return nil
}

// RequestedProcessShutdown returns a channel that is sent to when an
// authorized RPC client requests the process to shutdown.  If the request can
// not be read immediately, it is dropped.
func (s *Server) RequestedProcessShutdown() <-chan struct{} {
	return s.requestProcessShutdown
}

// NotifyNewWork notifies websocket clients that registered for work updates
// that the tip changed.  It does not block.
func (s *Server) NotifyNewWork(tip *chainstate.Entry) {
	s.ntfnMgr.NotifyWork(tip, s.cfg.Chain.MempoolVersion())
}

// limitConnections responds with a 503 service unavailable and returns true if
// adding another client would exceed the maximum allow RPC clients.
//
// This function is safe for concurrent access.
func (s *Server) limitConnections(w http.ResponseWriter, remoteAddr string) bool {
	if int(s.numClients.Load()+1) > s.cfg.RPCMaxClients {
		log.Infof("Max RPC clients exceeded [%d] - "+
			"disconnecting client %s", s.cfg.RPCMaxClients,
			remoteAddr)
		http.Error(w, "503 Too busy.  Try again later.",
			http.StatusServiceUnavailable)
		return true
	}
	return false
}

// incrementClients adds one to the number of connected RPC clients.  Note this
// only applies to standard clients.  Websocket clients have their own limits
// and are tracked separately.
//
// This function is safe for concurrent access.
func (s *Server) incrementClients() {
	s.numClients.Add(1)
}

// decrementClients subtracts one from the number of connected RPC clients.
// Note this only applies to standard clients.  Websocket clients have their
// own limits and are tracked separately.
//
// This function is safe for concurrent access.
func (s *Server) decrementClients() {
	s.numClients.Add(-1)
}

// authMAC calculates the MAC (currently HMAC-SHA256) of an Authorization
// header, keyed with a random key created during server creation.  The MAC is
// appended to dst, and the appended slice is returned.
func (s *Server) authMAC(dst, auth []byte) []byte {
	s.hmacMu.Lock()
	s.hmac.Reset()
	s.hmac.Write(auth)
	dst = s.hmac.Sum(dst)
	s.hmacMu.Unlock()
	return dst
}

// checkAuthMAC checks the HTTP Basic authentication string by comparing
// it with the already generated hash.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false).
func (s *Server) checkAuthMAC(auth, remoteAddr string) (bool, bool) {
	mac := make([]byte, 0, sha256.Size)
	mac = s.authMAC(mac, []byte(auth))

	cmp := subtle.ConstantTimeCompare(mac, s.authsha[:])
	limitcmp := subtle.ConstantTimeCompare(mac, s.limitauthsha[:])
	if cmp|limitcmp == 0 {
		// Request's auth doesn't match either user
		log.Warnf("RPC authentication failure from %s", remoteAddr)
		return false, false
	}
	return true, cmp == 1
}

// checkAuthUserPass checks the correctness of username and password by
// generating the corresponding HTTP Basic authentication string then
// compare the string with the already generated hash.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false).
func (s *Server) checkAuthUserPass(user, pass, remoteAddr string) (bool, bool) {
	login := user + ":" + pass
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
	return s.checkAuthMAC(auth, remoteAddr)
}

// checkAuth checks the HTTP Basic authentication supplied by an RPC client in
// the HTTP request r.  If the supplied authentication does not match the
// username and password expected, a non-nil error is returned.
//
// This check is time-constant.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false). The second is
// always false if the first is.
func (s *Server) checkAuth(r *http.Request, require bool) (bool, bool, error) {
	// If admin-level RPC user and pass options are not set, this always
	// succeeds.
	if s.authsha == ([32]byte{}) {
		return true, true, nil
	}

	authhdr := r.Header["Authorization"]
	if len(authhdr) == 0 {
		if require {
			log.Warnf("RPC authentication failure from %s",
				r.RemoteAddr)
			return false, false, errors.New("auth failure")
		}

		return false, false, nil
	}

	authed, isAdmin := s.checkAuthMAC(authhdr[0], r.RemoteAddr)
	if !authed {
		return false, false, errors.New("auth failure")
	}
	return authed, isAdmin, nil
}

// parsedRPCCmd represents a JSON-RPC request object that has been parsed into
// a known concrete command along with any error that might have happened while
// parsing it.
type parsedRPCCmd struct {
	jsonrpc string
	id      interface{}
	method  types.Method
	params  interface{}
	err     *dcrjson.RPCError
}

// standardCmdResult checks that a parsed command is a standard JSON-RPC command
// and runs the appropriate handler to reply to the command.  Any commands which
// are not recognized or not implemented will return an error suitable for use
// in replies.
func (s *Server) standardCmdResult(ctx context.Context, cmd *parsedRPCCmd) (interface{}, error) {
	handler, ok := rpcHandlers[cmd.method]
	if !ok {
		return nil, dcrjson.ErrRPCMethodNotFound
	}

	started := time.Now()
	result, err := handler(ctx, s, cmd.params)
	metrics.ObserveRPC(string(cmd.method), err, started)
	return result, err
}

// parseCmd parses a JSON-RPC request object into known concrete command.  The
// err field of the returned parsedRPCCmd struct will contain an RPC error that
// is suitable for use in replies if the command is invalid in some way such as
// an unregistered command or invalid parameters.
func parseCmd(request *dcrjson.Request) *parsedRPCCmd {
	method := types.Method(request.Method)
	parsedCmd := parsedRPCCmd{
		jsonrpc: request.Jsonrpc,
		id:      request.ID,
		method:  method,
	}

	params, err := dcrjson.ParseParams(method, request.Params)
	if err != nil {
		// Produce a relevant error when the requested method is not
		// registered depending on whether or not it is recognized as
		// unimplemented or completely unrecognized.
		if errors.Is(err, dcrjson.ErrUnregisteredMethod) {
			parsedCmd.err = dcrjson.ErrRPCMethodNotFound
			if _, ok := rpcUnimplemented[request.Method]; ok {
				parsedCmd.err = ErrRPCUnimplemented
			}

			return &parsedCmd
		}

		// Otherwise, some type of invalid parameters is the cause, so
		// produce the equivalent RPC error.
		parsedCmd.err = rpcInvalidError("Failed to parse request: %v", err)
		return &parsedCmd
	}

	parsedCmd.params = params
	return &parsedCmd
}

// createMarshalledReply returns a new marshalled JSON-RPC response given the
// passed parameters.  It will automatically convert errors that are not of the
// type *dcrjson.RPCError to the appropriate type as needed.
func createMarshalledReply(rpcVersion string, id interface{}, result interface{}, replyErr error) ([]byte, error) {
	var jsonErr *dcrjson.RPCError
	if replyErr != nil && !errors.As(replyErr, &jsonErr) {
		jsonErr = rpcInternalError(replyErr.Error(), "")
	}

	return dcrjson.MarshalResponse(rpcVersion, id, result, jsonErr)
}

// processRequest determines the incoming request type (single or batched),
// parses it and returns a marshalled response.
func (s *Server) processRequest(ctx context.Context, request *dcrjson.Request, isAdmin bool) []byte {
	var result interface{}
	var jsonErr error

	if !isAdmin {
		if _, ok := rpcLimited[request.Method]; !ok {
			jsonErr = rpcInvalidError("limited user not " +
				"authorized for this method")
		}
	}

	if jsonErr == nil {
		if request.Method == "" {
			jsonErr = &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCInvalidRequest.Code,
				Message: "Invalid request: malformed",
			}
			msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
			if err != nil {
				log.Errorf("Failed to marshal reply: %v", err)
				return nil
			}
			return msg
		}

		// Valid requests with no ID (notifications) must not have a response
		// per the JSON-RPC spec.
		if request.ID == nil {
			return nil
		}

		// Attempt to parse the JSON-RPC request into a known
		// concrete command.
		parsedCmd := parseCmd(request)
		if parsedCmd.err != nil {
			jsonErr = parsedCmd.err
		} else {
			result, jsonErr = s.standardCmdResult(ctx, parsedCmd)
		}
	}

	// Marshal the response.
	msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
	if err != nil {
		log.Errorf("Failed to marshal reply: %v", err)
		return nil
	}
	return msg
}

// processBody parses a single or batched request body and returns the
// marshalled response to write.  The response is empty when no reply is due.
func (s *Server) processBody(ctx context.Context, body []byte, isAdmin bool) []byte {
	// Process a single request
	if !bytes.HasPrefix(body, batchedRequestPrefix) {
		var req dcrjson.Request
		if err := json.Unmarshal(body, &req); err != nil {
			jsonErr := &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCParse.Code,
				Message: fmt.Sprintf("Failed to parse request: %v", err),
			}
			resp, err := dcrjson.MarshalResponse("1.0", nil, nil, jsonErr)
			if err != nil {
				log.Errorf("Failed to create reply: %v", err)
			}
			return resp
		}
		return s.processRequest(ctx, &req, isAdmin)
	}

	// Process a batched request
	var batchedRequests []json.RawMessage
	if err := json.Unmarshal(body, &batchedRequests); err != nil {
		jsonErr := &dcrjson.RPCError{
			Code:    dcrjson.ErrRPCParse.Code,
			Message: fmt.Sprintf("Failed to parse request: %v", err),
		}
		resp, err := dcrjson.MarshalResponse("2.0", nil, nil, jsonErr)
		if err != nil {
			log.Errorf("Failed to create reply: %v", err)
		}
		return resp
	}

	// Respond with an empty batch error if the batch size is zero
	if len(batchedRequests) == 0 {
		jsonErr := &dcrjson.RPCError{
			Code:    dcrjson.ErrRPCInvalidRequest.Code,
			Message: "Invalid request: empty batch",
		}
		resp, err := dcrjson.MarshalResponse("2.0", nil, nil, jsonErr)
		if err != nil {
			log.Errorf("Failed to marshal reply: %v", err)
		}
		return resp
	}

	// Process each batch entry individually
	results := make([][]byte, 0, len(batchedRequests))
	for _, entry := range batchedRequests {
		var req dcrjson.Request
		if err := json.Unmarshal(entry, &req); err != nil {
			jsonErr := &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCInvalidRequest.Code,
				Message: fmt.Sprintf("Invalid request: %v", err),
			}
			resp, err := dcrjson.MarshalResponse("", nil, nil, jsonErr)
			if err != nil {
				log.Errorf("Failed to create reply: %v", err)
			}
			if resp != nil {
				results = append(results, resp)
			}
			continue
		}

		if resp := s.processRequest(ctx, &req, isAdmin); resp != nil {
			results = append(results, resp)
		}
	}
	if len(results) == 0 {
		return nil
	}

	// Form the batched response json
	var buffer bytes.Buffer
	buffer.WriteByte('[')
	buffer.Write(bytes.Join(results, []byte{','}))
	buffer.WriteByte(']')
	return buffer.Bytes()
}

// jsonRPCRead handles reading and responding to RPC messages.
func (s *Server) jsonRPCRead(sCtx context.Context, w http.ResponseWriter, r *http.Request, isAdmin bool) {
	select {
	case <-sCtx.Done():
		return
	default:
	}

	// Read and close the JSON-RPC request body from the caller.
	bodyReader := io.LimitReader(r.Body, rpcReadLimitAuthenticated)
	body, err := io.ReadAll(bodyReader)
	r.Body.Close()
	if err != nil {
		errMsg := fmt.Sprintf("error reading JSON message: %v", err)
		errCode := http.StatusBadRequest
		http.Error(w, strconv.Itoa(errCode)+" "+errMsg,
			errCode)
		return
	}

	// Unfortunately, the http server doesn't provide the ability to change
	// the read deadline for the new connection and having one breaks long
	// polling.  However, not having a read deadline on the initial
	// connection would mean clients can connect and idle forever.  Thus,
	// hijack the connection from the HTTP server, clear the read deadline,
	// and handle writing the response manually.
	hj, ok := w.(http.Hijacker)
	if !ok {
		errMsg := "webserver doesn't support hijacking"
		log.Warnf(errMsg)
		errCode := http.StatusInternalServerError
		http.Error(w, strconv.Itoa(errCode)+" "+errMsg,
			errCode)
		return
	}

	conn, buf, err := hj.Hijack()
	if err != nil {
		log.Warnf("Failed to hijack HTTP connection: %v", err)
		errCode := http.StatusInternalServerError
		http.Error(w, strconv.Itoa(errCode)+" "+
			err.Error(), errCode)
		return
	}

	defer conn.Close()
	defer buf.Flush()
	conn.SetReadDeadline(timeZeroVal)
	// Setup a close notifier.  Since the connection is hijacked,
	// the CloseNotifier on the ResponseWriter is not available.
	ctx, cancel := context.WithCancel(sCtx)
	defer cancel()

	go func() {
		_, err := conn.Read(make([]byte, 1))
		if err != nil {
			cancel()
		}
	}()

	msg := s.processBody(ctx, body, isAdmin)

	// Write the response.
	err = s.writeHTTPResponseHeaders(r, w.Header(), http.StatusOK, buf)
	if err != nil {
		log.Error(err)
		return
	}
	if _, err := buf.Write(msg); err != nil {
		log.Errorf("Failed to write marshalled reply: %v", err)
	}

	// Terminate with newline to maintain compatibility with Bitcoin Core.
	if err := buf.WriteByte('\n'); err != nil {
		log.Errorf("Failed to append terminating newline to reply: %v", err)
	}
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="powcoord RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

// logForwarder provides logic to forward log messages writing to an io.Writer
// to the rpcserver logger.
type logForwarder struct{}

// Write implements the io.Writer interface and forwards the message to the
// active rpcserver logger.
func (logForwarder) Write(p []byte) (int, error) {
	log.Error(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}

// equalASCIIFold returns true if s is equal to t with ASCII case folding as
// defined in RFC 4790.  This function was lifted and from the gorilla websocket
// code since it's not exported.
func equalASCIIFold(s, t string) bool {
	for s != "" && t != "" {
		sr, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		tr, size := utf8.DecodeRuneInString(t)
		t = t[size:]
		if sr == tr {
			continue
		}
		if 'A' <= sr && sr <= 'Z' {
			sr = sr + 'a' - 'A'
		}
		if 'A' <= tr && tr <= 'Z' {
			tr = tr + 'a' - 'A'
		}
		if sr != tr {
			return false
		}
	}
	return s == t
}

// checkOrigin rejects websocket upgrades from browsers on another host.
func checkOrigin(r *http.Request) bool {
	// Allow requests with no origin header set.
	origin := r.Header["Origin"]
	if len(origin) == 0 {
		return true
	}

	// Reject requests with origin headers that are not valid URLs.
	originURL, err := url.Parse(origin[0])
	if err != nil {
		return false
	}

	// Allow local resources on browsers that set the origin header
	// for them.
	if originURL.Scheme == "file" || originURL.Path == "null" {
		return true
	}

	// Strip the port from both the origin and request hosts.
	originHost := originURL.Host
	requestHost := r.Host
	if host, _, err := net.SplitHostPort(originHost); err == nil {
		originHost = host
	}
	if host, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = host
	}

	// Reject mismatched hosts.
	return equalASCIIFold(originHost, requestHost)
}

// route sets up the endpoints of the rpc server.
func (s *Server) route(ctx context.Context) *http.Server {
	rpcServeMux := http.NewServeMux()
	httpServer := &http.Server{
		Handler: rpcServeMux,

		// Use the provided context as the parent context for all requests to
		// ensure handlers are able to react to both client disconnects as well
		// as shutdown via the provided context.
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},

		// Timeout connections which don't complete the initial
		// handshake within the allowed timeframe.
		ReadTimeout: time.Second * rpcAuthTimeoutSeconds,

		// Reroute http server error logging through the rpcserver
		// logger.
		ErrorLog: stdlog.New(logForwarder{}, "", 0),
	}
	rpcServeMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "application/json")
		r.Close = true

		// Limit the number of connections to max allowed.
		if s.limitConnections(w, r.RemoteAddr) {
			return
		}

		// Keep track of the number of connected clients.
		s.incrementClients()
		defer s.decrementClients()
		_, isAdmin, err := s.checkAuth(r, true)
		if err != nil {
			jsonAuthFail(w)
			return
		}

		// Read and respond to the request.
		s.jsonRPCRead(r.Context(), w, r, isAdmin)
	})

	// Metrics endpoint.
	metricsHandler := promhttp.Handler()
	rpcServeMux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := s.checkAuth(r, true); err != nil {
			jsonAuthFail(w)
			return
		}
		metricsHandler.ServeHTTP(w, r)
	})

	// Websocket endpoint.
	rpcServeMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		authenticated, isAdmin, err := s.checkAuth(r, false)
		if err != nil {
			jsonAuthFail(w)
			return
		}

		// Attempt to upgrade the connection to a websocket connection using the
		// default size for read/write buffers and impose a read limit that
		// depends on whether or not the connection is authenticated yet.
		upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			var herr websocket.HandshakeError
			if !errors.As(err, &herr) {
				log.Errorf("Unexpected websocket error: %v", err)
			}
			return
		}
		ws.SetPingHandler(func(payload string) error {
			log.Debugf("ping received: len %d", len(payload))
			var netErr net.Error
			err := ws.WriteControl(websocket.PongMessage, []byte(payload),
				time.Now().Add(websocketPongTimeout))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) &&
				!(errors.As(err, &netErr) && netErr.Timeout()) {

				log.Errorf("Failed to send pong: %v", err)
				return err
			}
			return nil
		})
		if !authenticated {
			ws.SetReadLimit(websocketReadLimitUnauthenticated)
		} else {
			ws.SetReadLimit(websocketReadLimitAuthenticated)
		}
		s.WebsocketHandler(r.Context(), ws, r.RemoteAddr, authenticated,
			isAdmin)
	})
	return httpServer
}

// Run starts the rpc server and its listeners. It blocks until the
// provided context is cancelled.
func (s *Server) Run(ctx context.Context) {
	log.Trace("Starting RPC server")
	server := s.route(ctx)
	for _, listener := range s.cfg.Listeners {
		s.wg.Add(1)
		go func(listener net.Listener) {
			log.Infof("RPC server listening on %s", listener.Addr())
			server.Serve(listener)
			log.Tracef("RPC listener done for %s", listener.Addr())
			s.wg.Done()
		}(listener)
	}

	// Notify websocket clients of new work whenever the tip changes.
	s.cfg.Chain.Subscribe(s.NotifyNewWork)

	s.ntfnMgr.Run(ctx)
	err := s.shutdown()
	if err != nil {
		log.Error(err)
		return
	}
}

// Config is a descriptor containing the RPC server configuration.
type Config struct {
	// Listeners defines a slice of listeners for which the RPC server will
	// take ownership of and accept connections.  Since the RPC server takes
	// ownership of these listeners, they will be closed when the RPC server
	// is stopped.
	Listeners []net.Listener

	// ChainParams identifies which chain parameters the RPC server is
	// associated with.
	ChainParams *netparams.Params

	// Chain is the shared chain state.
	Chain *chainstate.Handle

	// Templates provides block templates and processes solutions.
	Templates TemplateService

	// Accountant provides the per-algorithm chain statistics.
	Accountant Accountant

	// Halving reports the halving schedule.
	Halving HalvingReporter

	// CPUMiner solves templates using the CPU.  CPU mining is typically
	// only useful for test purposes when doing regression or simulation
	// testing.  It may be nil.
	CPUMiner CPUMiner

	// TxMempooler defines the transaction memory pool to interact with.
	TxMempooler TxMempooler

	// ConfirmedTxns reports recently confirmed transactions.  It may be
	// nil.
	ConfirmedTxns ConfirmedTxnsFilter

	// LogManager defines the log manager for the RPC server to use.
	LogManager LogManager

	// MiningAlgo is the algorithm of requests that do not name one.
	MiningAlgo algo.ID

	// These fields define the username and password for RPC connections and
	// limited RPC connections.
	RPCUser      string
	RPCPass      string
	RPCLimitUser string
	RPCLimitPass string

	// RPCMaxClients defines the max number of RPC clients for standard
	// connections.
	RPCMaxClients int

	// RPCMaxConcurrentReqs defines the max number of RPC requests that may be
	// processed concurrently.
	RPCMaxConcurrentReqs int

	// RPCMaxWebsockets defines the max number of RPC websocket connections.
	RPCMaxWebsockets int
}

// New returns a new instance of the Server struct.
func New(config *Config) (*Server, error) {
	if !config.MiningAlgo.IsValid() {
		return nil, fmt.Errorf("invalid default mining algorithm %v",
			config.MiningAlgo)
	}
	rpc := Server{
		cfg:                    *config,
		statusLines:            make(map[int]string),
		helpCacher:             newHelpCacher(),
		requestProcessShutdown: make(chan struct{}),
	}
	key := make([]byte, 32)
	rand.Read(key)
	rpc.hmac = hmac.New(sha256.New, key)
	if config.RPCUser != "" && config.RPCPass != "" {
		login := config.RPCUser + ":" + config.RPCPass
		auth := "Basic " +
			base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authMAC(rpc.authsha[:0], []byte(auth))
	}
	if config.RPCLimitUser != "" && config.RPCLimitPass != "" {
		login := config.RPCLimitUser + ":" + config.RPCLimitPass
		auth := "Basic " +
			base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authMAC(rpc.limitauthsha[:0], []byte(auth))
	}
	rpc.ntfnMgr = newWsNotificationManager()

	return &rpc, nil
}

func init() {
	rpcHandlers = rpcHandlersBeforeInit
}
