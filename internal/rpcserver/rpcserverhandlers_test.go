// Copyright (c) 2020-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chaingen"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/chainwork"
	"github.com/multialgo/powcoord/internal/halving"
	"github.com/multialgo/powcoord/internal/mempool"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/rpc/jsonrpc/types"
)

// testTemplater provides a mock template service by implementing the
// TemplateService interface.
type testTemplater struct {
	template      *mining.BlockTemplate
	templateErr   error
	lastRequest   *mining.TemplateRequest
	waitErr       error
	submitResult  string
	submitErr     error
	headerErr     error
	proposeResult string
	proposeErr    error
	prioritised   map[chainhash.Hash]btcutil.Amount
	policy        *mining.Policy
}

// GetTemplate returns the mocked template.
func (t *testTemplater) GetTemplate(_ context.Context, req *mining.TemplateRequest) (*mining.BlockTemplate, error) {
	t.lastRequest = req
	return t.template, t.templateErr
}

// WaitForNewWork returns immediately with the mocked error or the error of
// the context when it is already done.
func (t *testTemplater) WaitForNewWork(ctx context.Context, lastTip chainhash.Hash, lastMempool uint64) (chainhash.Hash, uint64, error) {
	if err := ctx.Err(); err != nil {
		return lastTip, lastMempool, err
	}
	return lastTip, lastMempool + 1, t.waitErr
}

// SubmitBlock returns the mocked submission result.
func (t *testTemplater) SubmitBlock(*wire.MsgBlock) (string, error) {
	return t.submitResult, t.submitErr
}

// SubmitHeader returns the mocked header error.
func (t *testTemplater) SubmitHeader(*wire.BlockHeader) error {
	return t.headerErr
}

// ProposeBlock returns the mocked proposal result.
func (t *testTemplater) ProposeBlock(*wire.MsgBlock) (string, error) {
	return t.proposeResult, t.proposeErr
}

// PrioritiseTransaction records the fee delta.
func (t *testTemplater) PrioritiseTransaction(hash *chainhash.Hash, feeDelta btcutil.Amount) {
	if t.prioritised == nil {
		t.prioritised = make(map[chainhash.Hash]btcutil.Amount)
	}
	t.prioritised[*hash] += feeDelta
}

// Policy returns the mocked policy.
func (t *testTemplater) Policy() *mining.Policy {
	return t.policy
}

// testAccountant provides a mock accountant by implementing the Accountant
// interface.
type testAccountant struct {
	difficulty map[algo.ID]float64
	hashrate   float64
	multiAlgo  []chainwork.AlgoStats
	rewards    []chainwork.RewardStats
	rewardsErr error
	lastLookup int64
	lastHeight int64
}

// DifficultyForAlgorithm returns the mocked difficulty of the algorithm.
func (a *testAccountant) DifficultyForAlgorithm(id algo.ID) float64 {
	return a.difficulty[id]
}

// NetworkHashrate returns the mocked hashrate and records the window.
func (a *testAccountant) NetworkHashrate(lookup, height int64, _ algo.ID) float64 {
	a.lastLookup, a.lastHeight = lookup, height
	return a.hashrate
}

// MultiAlgoStats returns the mocked chain statistics.
func (a *testAccountant) MultiAlgoStats() []chainwork.AlgoStats {
	return a.multiAlgo
}

// MiningStats returns the mocked reward statistics.
func (a *testAccountant) MiningStats() ([]chainwork.RewardStats, error) {
	return a.rewards, a.rewardsErr
}

// testHalving provides a mock halving reporter by implementing the
// HalvingReporter interface.
type testHalving struct {
	report *halving.Report
	err    error
}

// Report returns the mocked report.
func (h *testHalving) Report() (*halving.Report, error) {
	return h.report, h.err
}

// testCPUMiner provides a mock CPU miner by implementing the CPUMiner
// interface.
type testCPUMiner struct {
	generatedBlocks []*chainhash.Hash
	generateErr     error
	isMining        bool
	hashesPerSecond float64
	workers         int32
}

// GenerateNBlocks returns the mocked block hashes.
func (c *testCPUMiner) GenerateNBlocks(context.Context, uint32) ([]*chainhash.Hash, error) {
	return c.generatedBlocks, c.generateErr
}

// IsMining returns a mocked mining state of the CPU miner.
func (c *testCPUMiner) IsMining() bool {
	return c.isMining
}

// HashesPerSecond returns a mocked number of hashes per second.
func (c *testCPUMiner) HashesPerSecond() float64 {
	return c.hashesPerSecond
}

// NumWorkers returns a mocked number of workers.
func (c *testCPUMiner) NumWorkers() int32 {
	return c.workers
}

// SetNumWorkers sets a mocked number of workers.
func (c *testCPUMiner) SetNumWorkers(numWorkers int32) {
	c.workers = numWorkers
	c.isMining = numWorkers != 0
}

// testTxMempooler provides a mock mempool by implementing the TxMempooler
// interface.
type testTxMempooler struct {
	processErr error
	count      int
}

// ProcessTransaction returns the mocked error.
func (m *testTxMempooler) ProcessTransaction(tx *btcutil.Tx, _ bool) (*mempool.TxDesc, error) {
	if m.processErr != nil {
		return nil, m.processErr
	}
	return &mempool.TxDesc{Tx: tx}, nil
}

// Count returns the mocked number of pooled transactions.
func (m *testTxMempooler) Count() int {
	return m.count
}

// testConfirmedTxns provides a mock filter of recently confirmed
// transactions.
type testConfirmedTxns map[chainhash.Hash]struct{}

// RecentlyConfirmedTxn returns whether the transaction is in the mock set.
func (f testConfirmedTxns) RecentlyConfirmedTxn(hash *chainhash.Hash) bool {
	_, ok := f[*hash]
	return ok
}

// testLogManager provides a mock log manager by implementing the LogManager
// interface.
type testLogManager struct {
	supportedSubsystems []string
	parseAndSetDebugErr error
}

// SupportedSubsystems returns the mocked supported subsystems.
func (l *testLogManager) SupportedSubsystems() []string {
	return l.supportedSubsystems
}

// ParseAndSetDebugLevels returns the mocked error.
func (l *testLogManager) ParseAndSetDebugLevels(string) error {
	return l.parseAndSetDebugErr
}

// testPayToScript is the script the mock policy pays the miner reward to.
var testPayToScript = []byte{0x00, 0x14, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06,
	0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12,
	0x13, 0x14}

// testCoinbaseTx returns a coinbase transaction for the height.
func testCoinbaseTx(height int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			wire.MaxPrevOutIndex),
		SignatureScript: []byte{0x01, byte(height), 0x00},
		Sequence:        wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(50*btcutil.SatoshiPerBitcoin, testPayToScript))
	return tx
}

// testSpendTx returns a regular transaction spending the outpoint.
func testSpendTx(prev chainhash.Hash, value int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&prev, 0),
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, testPayToScript))
	return tx
}

// txHex returns the hex encoding of the transaction.
func txHex(t *testing.T, tx *wire.MsgTx) string {
	t.Helper()
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("unable to serialize tx: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

// blockHex returns the hex encoding of the block.
func blockHex(t *testing.T, block *wire.MsgBlock) string {
	t.Helper()
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		t.Fatalf("unable to serialize block: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

// headerHex returns the hex encoding of the header.
func headerHex(t *testing.T, header *wire.BlockHeader) string {
	t.Helper()
	var buf bytes.Buffer
	if err := header.Serialize(&buf); err != nil {
		t.Fatalf("unable to serialize header: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

// testTemplateBlock returns a block template for height 4 on top of the
// provided parent with a coinbase and a single spend.
func testTemplateBlock(parent chainhash.Hash) *mining.BlockTemplate {
	coinbase := testCoinbaseTx(4)
	spend := testSpendTx(chainhash.Hash{0x01}, 1000)
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   0x20000000 | int32(algo.SCRYPT),
			PrevBlock: parent,
			Timestamp: time.Unix(1700000600, 0),
			Bits:      0x207fffff,
		},
		Transactions: []*wire.MsgTx{coinbase, spend},
	}
	return &mining.BlockTemplate{
		Block:         block,
		Fees:          []btcutil.Amount{-250, 250},
		SigOpCosts:    []int64{4, 8},
		Weights:       []int64{400, 764},
		Depends:       [][]int{nil, nil},
		Height:        4,
		Algo:          algo.SCRYPT,
		Subsidy:       50 * btcutil.SatoshiPerBitcoin,
		CoinbaseValue: 45*btcutil.SatoshiPerBitcoin + 250,
		Payees: []mining.Payee{{
			PkScript: []byte{0x51},
			Amount:   5 * btcutil.SatoshiPerBitcoin,
			Kind:     "dev",
		}},
		MinTime:     time.Unix(1700000001, 0),
		Rules:       []string{"csv", "!segwit"},
		VbAvailable: map[string]uint8{},
		LongPollID:  mining.LongPollID(parent, 7),
	}
}

// testChain returns a chain state handle whose best chain consists of the
// genesis entry and three SHA256D blocks.
func testChain(t *testing.T) (*chainstate.Handle, *chaingen.Generator) {
	t.Helper()
	handle := chainstate.New()
	g, err := chaingen.New(handle, time.Unix(1700000000, 0), time.Minute)
	if err != nil {
		t.Fatalf("unable to create chain generator: %v", err)
	}
	g.ExtendRepeat(3, algo.SHA256D)
	return handle, g
}

// defaultMockConfig returns a Config with the mocks used by the handler
// tests.
func defaultMockConfig(t *testing.T, chainParams *netparams.Params) *Config {
	t.Helper()
	handle, _ := testChain(t)
	return &Config{
		ChainParams: chainParams,
		Chain:       handle,
		Templates: &testTemplater{
			policy: &mining.Policy{
				CoinbaseFlags: "/powcoord/",
				PayToScript:   testPayToScript,
			},
		},
		Accountant: &testAccountant{
			difficulty: map[algo.ID]float64{
				algo.SHA256D: 1.5,
				algo.X11:     2.25,
			},
			hashrate: 123456,
		},
		Halving:     &testHalving{},
		CPUMiner:    &testCPUMiner{},
		TxMempooler: &testTxMempooler{count: 3},
		LogManager: &testLogManager{
			supportedSubsystems: []string{"CHST", "MINR", "RPCS"},
		},
		MiningAlgo:           algo.SHA256D,
		RPCMaxClients:        10,
		RPCMaxConcurrentReqs: 4,
		RPCMaxWebsockets:     4,
	}
}

// rpcTest describes a test of an RPC handler against a mocked server.
type rpcTest struct {
	name             string
	handler          commandHandler
	cmd              interface{}
	mockChainParams  *netparams.Params
	mockTemplater    *testTemplater
	mockAccountant   *testAccountant
	mockHalving      *testHalving
	mockCPUMiner     *testCPUMiner
	setCPUMinerNil   bool
	mockTxMempooler  *testTxMempooler
	mockConfirmedTxs testConfirmedTxns
	mockLogManager   *testLogManager
	canceledContext  bool
	result           interface{}
	wantErr          bool
	errCode          dcrjson.RPCErrorCode
}

func testRPCServerHandler(t *testing.T, tests []rpcTest) {
	t.Helper()

	for _, test := range tests {
		test := test // capture range variable
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			// Create a default config and override any configurations
			// that are provided by the test.
			chainParams := &netparams.SimNetParams
			if test.mockChainParams != nil {
				chainParams = test.mockChainParams
			}
			cfg := defaultMockConfig(t, chainParams)
			if test.mockTemplater != nil {
				cfg.Templates = test.mockTemplater
			}
			if test.mockAccountant != nil {
				cfg.Accountant = test.mockAccountant
			}
			if test.mockHalving != nil {
				cfg.Halving = test.mockHalving
			}
			if test.mockCPUMiner != nil {
				cfg.CPUMiner = test.mockCPUMiner
			}
			if test.setCPUMinerNil {
				cfg.CPUMiner = nil
			}
			if test.mockTxMempooler != nil {
				cfg.TxMempooler = test.mockTxMempooler
			}
			if test.mockConfirmedTxs != nil {
				cfg.ConfirmedTxns = test.mockConfirmedTxs
			}
			if test.mockLogManager != nil {
				cfg.LogManager = test.mockLogManager
			}

			ctx := context.Background()
			if test.canceledContext {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			testServer := &Server{
				cfg:                    *cfg,
				helpCacher:             newHelpCacher(),
				requestProcessShutdown: make(chan struct{}),
			}
			result, err := test.handler(ctx, testServer, test.cmd)
			if test.wantErr {
				var rpcErr *dcrjson.RPCError
				if !errors.As(err, &rpcErr) || rpcErr.Code != test.errCode {
					if rpcErr != nil {
						t.Errorf("%s\nwant: %+v\n got: %+v\n", test.name,
							test.errCode, rpcErr.Code)
					} else {
						t.Errorf("%s\nwant: %+v\n got: %+v\n", test.name,
							test.errCode, err)
					}
				}
				return
			}
			if err != nil {
				t.Errorf("%s\nunexpected error: %+v\n", test.name, err)
				return
			}
			if !reflect.DeepEqual(result, test.result) {
				t.Errorf("%s\nwant: %s\n got: %s\n", test.name,
					spew.Sdump(test.result), spew.Sdump(result))
			}
		})
	}
}

func TestHandleDebugLevel(t *testing.T) {
	t.Parallel()

	testRPCServerHandler(t, []rpcTest{{
		name:    "handleDebugLevel: show",
		handler: handleDebugLevel,
		cmd:     &types.DebugLevelCmd{LevelSpec: "show"},
		result:  "Supported subsystems [CHST MINR RPCS]",
	}, {
		name:    "handleDebugLevel: invalidDebugLevel",
		handler: handleDebugLevel,
		cmd:     &types.DebugLevelCmd{LevelSpec: "invalidDebugLevel"},
		mockLogManager: &testLogManager{
			parseAndSetDebugErr: errors.New("invalid level"),
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleDebugLevel: trace",
		handler: handleDebugLevel,
		cmd:     &types.DebugLevelCmd{LevelSpec: "trace"},
		result:  "Done.",
	}})
}

func TestHandleGenerate(t *testing.T) {
	t.Parallel()

	hash1 := chainhash.Hash{0x01}
	hash2 := chainhash.Hash{0x02}
	testRPCServerHandler(t, []rpcTest{{
		name:    "handleGenerate: ok",
		handler: handleGenerate,
		cmd:     &types.GenerateCmd{NumBlocks: 2},
		mockCPUMiner: &testCPUMiner{
			generatedBlocks: []*chainhash.Hash{&hash1, &hash2},
		},
		result: []string{hash1.String(), hash2.String()},
	}, {
		name:    "handleGenerate: no mining addrs",
		handler: handleGenerate,
		cmd:     &types.GenerateCmd{NumBlocks: 1},
		mockTemplater: &testTemplater{
			policy: &mining.Policy{},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInternal.Code,
	}, {
		name:            "handleGenerate: unsupported network",
		handler:         handleGenerate,
		cmd:             &types.GenerateCmd{NumBlocks: 1},
		mockChainParams: &netparams.MainNetParams,
		wantErr:         true,
		errCode:         dcrjson.ErrRPCDifficulty,
	}, {
		name:           "handleGenerate: no cpu miner",
		handler:        handleGenerate,
		cmd:            &types.GenerateCmd{NumBlocks: 1},
		setCPUMinerNil: true,
		wantErr:        true,
		errCode:        dcrjson.ErrRPCDifficulty,
	}, {
		name:    "handleGenerate: zero blocks",
		handler: handleGenerate,
		cmd:     &types.GenerateCmd{NumBlocks: 0},
		wantErr: true,
		errCode: dcrjson.ErrRPCInternal.Code,
	}, {
		name:    "handleGenerate: generation failure",
		handler: handleGenerate,
		cmd:     &types.GenerateCmd{NumBlocks: 1},
		mockCPUMiner: &testCPUMiner{
			generateErr: errors.New("chain reorganized"),
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInternal.Code,
	}})
}

func TestHandleMinerState(t *testing.T) {
	t.Parallel()

	testRPCServerHandler(t, []rpcTest{{
		name:         "handleGetGenerate: mining",
		handler:      handleGetGenerate,
		cmd:          &types.GetGenerateCmd{},
		mockCPUMiner: &testCPUMiner{isMining: true},
		result:       true,
	}, {
		name:           "handleGetGenerate: no cpu miner",
		handler:        handleGetGenerate,
		cmd:            &types.GetGenerateCmd{},
		setCPUMinerNil: true,
		result:         false,
	}, {
		name:         "handleGetHashesPerSec: ok",
		handler:      handleGetHashesPerSec,
		cmd:          &types.GetHashesPerSecCmd{},
		mockCPUMiner: &testCPUMiner{hashesPerSecond: 1234.56},
		result:       int64(1234),
	}, {
		name:           "handleGetHashesPerSec: no cpu miner",
		handler:        handleGetHashesPerSec,
		cmd:            &types.GetHashesPerSecCmd{},
		setCPUMinerNil: true,
		result:         int64(0),
	}, {
		name:    "handleSetGenerate: on",
		handler: handleSetGenerate,
		cmd: &types.SetGenerateCmd{
			Generate:     true,
			GenProcLimit: dcrjson.Int(2),
		},
		result: nil,
	}, {
		name:    "handleSetGenerate: zero workers stops",
		handler: handleSetGenerate,
		cmd: &types.SetGenerateCmd{
			Generate:     true,
			GenProcLimit: dcrjson.Int(0),
		},
		mockCPUMiner: &testCPUMiner{isMining: true, workers: 2},
		result:       nil,
	}, {
		name:    "handleSetGenerate: no mining addrs",
		handler: handleSetGenerate,
		cmd: &types.SetGenerateCmd{
			Generate:     true,
			GenProcLimit: dcrjson.Int(-1),
		},
		mockTemplater: &testTemplater{policy: &mining.Policy{}},
		wantErr:       true,
		errCode:       dcrjson.ErrRPCInternal.Code,
	}, {
		name:           "handleSetGenerate: no cpu miner",
		handler:        handleSetGenerate,
		cmd:            &types.SetGenerateCmd{Generate: true},
		setCPUMinerNil: true,
		wantErr:        true,
		errCode:        dcrjson.ErrRPCMisc,
	}, {
		name:    "handleStop: ok",
		handler: handleStop,
		cmd:     &types.StopCmd{},
		result:  "powcoord stopping.",
	}})
}

func TestHandleSetGenerateWorkers(t *testing.T) {
	t.Parallel()

	miner := &testCPUMiner{}
	cfg := defaultMockConfig(t, &netparams.SimNetParams)
	cfg.CPUMiner = miner
	s := &Server{cfg: *cfg}

	cmd := &types.SetGenerateCmd{Generate: true, GenProcLimit: dcrjson.Int(3)}
	if _, err := handleSetGenerate(context.Background(), s, cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if miner.workers != 3 || !miner.isMining {
		t.Fatalf("unexpected miner state: workers %d, mining %v",
			miner.workers, miner.isMining)
	}

	cmd = &types.SetGenerateCmd{Generate: false, GenProcLimit: dcrjson.Int(3)}
	if _, err := handleSetGenerate(context.Background(), s, cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if miner.workers != 0 || miner.isMining {
		t.Fatalf("unexpected miner state: workers %d, mining %v",
			miner.workers, miner.isMining)
	}
}

func TestHandleChainQueries(t *testing.T) {
	t.Parallel()

	cfg := defaultMockConfig(t, &netparams.SimNetParams)
	s := &Server{cfg: *cfg}
	ctx := context.Background()

	result, err := handleGetBlockCount(ctx, s, &types.GetBlockCountCmd{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(3) {
		t.Fatalf("unexpected block count: %v", result)
	}

	result, err = handleGetBestBlockHash(ctx, s, &types.GetBestBlockHashCmd{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tipHash := cfg.Chain.Tip().Hash()
	if result != tipHash.String() {
		t.Fatalf("unexpected best block hash: got %v, want %v", result,
			tipHash)
	}

	// An empty chain is not ready.
	s.cfg.Chain = chainstate.New()
	_, err = handleGetBestBlockHash(ctx, s, &types.GetBestBlockHashCmd{})
	var rpcErr *dcrjson.RPCError
	if !errors.As(err, &rpcErr) ||
		rpcErr.Code != dcrjson.ErrRPCClientInInitialDownload {

		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleAlgoQueries(t *testing.T) {
	t.Parallel()

	testRPCServerHandler(t, []rpcTest{{
		name:    "handleGetDifficulty: default algo",
		handler: handleGetDifficulty,
		cmd:     &types.GetDifficultyCmd{},
		result:  1.5,
	}, {
		name:    "handleGetDifficulty: named algo",
		handler: handleGetDifficulty,
		cmd:     &types.GetDifficultyCmd{Algo: dcrjson.String("X11")},
		result:  2.25,
	}, {
		name:    "handleGetDifficulty: unknown algo",
		handler: handleGetDifficulty,
		cmd:     &types.GetDifficultyCmd{Algo: dcrjson.String("skein")},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetNetworkHashPS: ok",
		handler: handleGetNetworkHashPS,
		cmd: &types.GetNetworkHashPSCmd{
			Blocks: dcrjson.Int(10),
			Height: dcrjson.Int(-1),
			Algo:   dcrjson.String("sha256d"),
		},
		result: float64(123456),
	}, {
		name:    "handleGetNetworkHashPS: unknown algo",
		handler: handleGetNetworkHashPS,
		cmd:     &types.GetNetworkHashPSCmd{Algo: dcrjson.String("md5")},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetMiningInfo: ok",
		handler: handleGetMiningInfo,
		cmd:     &types.GetMiningInfoCmd{Algo: dcrjson.String("x11")},
		mockCPUMiner: &testCPUMiner{
			isMining:        true,
			workers:         2,
			hashesPerSecond: 500,
		},
		result: &types.GetMiningInfoResult{
			Blocks:        3,
			Difficulty:    2.25,
			Algo:          "x11",
			NetworkHashPS: 123456,
			PooledTx:      3,
			Chain:         "simnet",
			Generate:      true,
			GenProcLimit:  2,
			HashesPerSec:  500,
		},
	}, {
		name:           "handleGetMiningInfo: no cpu miner",
		handler:        handleGetMiningInfo,
		cmd:            &types.GetMiningInfoCmd{},
		setCPUMinerNil: true,
		result: &types.GetMiningInfoResult{
			Blocks:        3,
			Difficulty:    1.5,
			Algo:          "sha256d",
			NetworkHashPS: 123456,
			PooledTx:      3,
			Chain:         "simnet",
			GenProcLimit:  -1,
		},
	}, {
		name:    "handleGetMultiAlgoInfo: ok",
		handler: handleGetMultiAlgoInfo,
		cmd:     &types.GetMultiAlgoInfoCmd{},
		mockAccountant: &testAccountant{
			multiAlgo: []chainwork.AlgoStats{{
				Algo:            algo.SHA256D,
				Difficulty:      1.5,
				Hashrate:        100,
				LastBlockHeight: 3,
			}, {
				Algo: algo.SCRYPT,
			}},
		},
		result: []types.MultiAlgoInfoResult{{
			Algo:           "sha256d",
			Difficulty:     1.5,
			Hashrate:       100,
			LastBlockIndex: 3,
		}, {
			Algo: "scrypt",
		}},
	}, {
		name:    "handleGetMiningStats: ok",
		handler: handleGetMiningStats,
		cmd:     &types.GetMiningStatsCmd{},
		mockAccountant: &testAccountant{
			rewards: []chainwork.RewardStats{{
				Algo:              algo.X16R,
				LastBlockReward:   25 * btcutil.SatoshiPerBitcoin,
				AvgBlockReward24h: 20 * btcutil.SatoshiPerBitcoin,
				AvgBlockReward7d:  10 * btcutil.SatoshiPerBitcoin,
				TotalBlocks24h:    2,
				TotalBlocks7d:     4,
				TotalRewards24h:   40 * btcutil.SatoshiPerBitcoin,
				TotalRewards7d:    40 * btcutil.SatoshiPerBitcoin,
			}},
		},
		result: []types.MiningStatsResult{{
			Algo:              "x16r",
			LastBlockReward:   25,
			AvgBlockReward24h: 20,
			AvgBlockReward7d:  10,
			TotalBlocks24h:    2,
			TotalBlocks7d:     4,
			TotalRewards24h:   40,
			TotalRewards7d:    40,
		}},
	}, {
		name:    "handleGetMiningStats: failure",
		handler: handleGetMiningStats,
		cmd:     &types.GetMiningStatsCmd{},
		mockAccountant: &testAccountant{
			rewardsErr: mining.ErrConsensusInconsistency,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInternal.Code,
	}})
}

func TestHandleGetHalvingInfo(t *testing.T) {
	t.Parallel()

	report := &halving.Report{
		Halvings:                 1,
		EpochCount:               2,
		HalvingInterval:          1000,
		Height:                   1500,
		BlocksToNextEpoch:        500,
		EpochSupplyTargetReached: 42,
		MinSupplyToHalve:         75,
		Epochs: []halving.EpochReport{{
			Name:                "COINSWAP",
			StartBlock:          0,
			EndBlock:            999,
			MaxBlockSubsidy:     100 * btcutil.SatoshiPerBitcoin,
			HasEnded:            true,
			StartSupply:         0,
			EndSupply:           1000 * btcutil.SatoshiPerBitcoin,
			SupplyTarget:        1000 * btcutil.SatoshiPerBitcoin,
			SupplyThisEpoch:     1000 * btcutil.SatoshiPerBitcoin,
			SupplySinceHalving:  1000 * btcutil.SatoshiPerBitcoin,
			SupplyTargetPercent: 100,
		}, {
			Name:                "ALPHA",
			StartBlock:          1000,
			EndBlock:            1999,
			MaxBlockSubsidy:     50 * btcutil.SatoshiPerBitcoin,
			IsSubsidyHalved:     true,
			DynamicRewardsBoost: 0.25,
			StartSupply:         1000 * btcutil.SatoshiPerBitcoin,
			SupplyTarget:        500 * btcutil.SatoshiPerBitcoin,
			SupplyThisEpoch:     210 * btcutil.SatoshiPerBitcoin,
			SupplySinceHalving:  210 * btcutil.SatoshiPerBitcoin,
			SupplyTargetPercent: 42,
		}},
	}

	testRPCServerHandler(t, []rpcTest{{
		name:        "handleGetHalvingInfo: ok",
		handler:     handleGetHalvingInfo,
		cmd:         &types.GetHalvingInfoCmd{},
		mockHalving: &testHalving{report: report},
		result: &types.GetHalvingInfoResult{
			HalvingsOccurred:         1,
			EpochsOccurred:           2,
			HalvingInterval:          1000,
			BlocksToNextEpoch:        500,
			EpochSupplyTargetReached: "42%",
			MinEpochSupplyToHalve:    "75%",
			Epochs: []types.HalvingEpochResult{{
				EpochName:           "COINSWAP",
				StartBlock:          0,
				EndBlock:            999,
				MaxBlockReward:      100,
				DynamicRewardsBoost: false,
				StartSupply:         0,
				EndSupply:           float64(1000),
				SupplyTarget:        1000,
				SupplyThisEpoch:     1000,
				SupplySinceHalving:  1000,
				SupplyTargetReached: "100%",
			}, {
				EpochName:           "ALPHA",
				StartedByHalving:    true,
				StartBlock:          1000,
				EndBlock:            1999,
				MaxBlockReward:      50,
				DynamicRewardsBoost: "+25%",
				StartSupply:         1000,
				EndSupply:           false,
				SupplyTarget:        500,
				SupplyThisEpoch:     210,
				SupplySinceHalving:  210,
				SupplyTargetReached: "42%",
			}},
		},
	}, {
		name:    "handleGetHalvingInfo: not ready",
		handler: handleGetHalvingInfo,
		cmd:     &types.GetHalvingInfoCmd{},
		mockHalving: &testHalving{
			err: halving.ErrHeightNotReached,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCClientInInitialDownload,
	}})
}

func TestHandleGetBlockTemplate(t *testing.T) {
	t.Parallel()

	parent := chainhash.Hash{0xaa}
	tmpl := testTemplateBlock(parent)
	spend := tmpl.Block.Transactions[1]
	spendHash := spend.TxHash()
	spendWitnessHash := spend.WitnessHash()
	want := &types.GetBlockTemplateResult{
		Capabilities: []string{"proposal"},
		Version:      0x20000000 | int32(algo.SCRYPT),
		Rules:        []string{"csv", "!segwit"},
		VbAvailable:  map[string]uint8{},
		PreviousHash: parent.String(),
		Transactions: []types.GetBlockTemplateResultTx{{
			Data:    txHex(t, spend),
			TxID:    spendHash.String(),
			Hash:    spendWitnessHash.String(),
			Depends: []int64{},
			Fee:     250,
			SigOps:  8,
			Weight:  764,
		}},
		CoinbaseAux:   map[string]string{"flags": hex.EncodeToString([]byte("/powcoord/"))},
		CoinbaseValue: 45*btcutil.SatoshiPerBitcoin + 250,
		LongPollID:    mining.LongPollID(parent, 7),
		Target:        "7fffff" + strings.Repeat("0", 58),
		MinTime:       1700000001,
		Mutable:       []string{"time", "transactions", "prevblock"},
		NonceRange:    "00000000ffffffff",
		SigOpLimit:    80000,
		SizeLimit:     wire.MaxBlockPayload,
		WeightLimit:   4000000,
		CurTime:       1700000600,
		Bits:          "207fffff",
		Height:        4,
		Algo:          "scrypt",
		Payees: []types.GetBlockTemplateResultPayee{{
			Kind:   "dev",
			Script: "51",
			Amount: 5 * btcutil.SatoshiPerBitcoin,
		}},
	}
	policy := &mining.Policy{
		CoinbaseFlags: "/powcoord/",
		PayToScript:   testPayToScript,
	}

	proposal := &wire.MsgBlock{
		Header:       tmpl.Block.Header,
		Transactions: []*wire.MsgTx{testCoinbaseTx(4)},
	}
	noCoinbase := &wire.MsgBlock{
		Header:       tmpl.Block.Header,
		Transactions: []*wire.MsgTx{spend},
	}

	testRPCServerHandler(t, []rpcTest{{
		name:    "handleGetBlockTemplate: ok",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{Rules: []string{"segwit"}},
			Algo:    dcrjson.String("scrypt"),
		},
		mockTemplater: &testTemplater{template: tmpl, policy: policy},
		result:        want,
	}, {
		name:    "handleGetBlockTemplate: long poll",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{
				Rules:      []string{"segwit"},
				LongPollID: mining.LongPollID(parent, 6),
				Algo:       "scrypt",
			},
		},
		mockTemplater: &testTemplater{template: tmpl, policy: policy},
		result:        want,
	}, {
		name:    "handleGetBlockTemplate: long poll canceled",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{
				LongPollID: mining.LongPollID(parent, 6),
			},
		},
		mockTemplater:   &testTemplater{template: tmpl, policy: policy},
		canceledContext: true,
		wantErr:         true,
		errCode:         dcrjson.ErrRPCMisc,
	}, {
		name:    "handleGetBlockTemplate: long poll shutting down",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{
				LongPollID: mining.LongPollID(parent, 6),
			},
		},
		mockTemplater: &testTemplater{
			waitErr: mining.ErrShuttingDown,
			policy:  policy,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCClientNotConnected,
	}, {
		name:    "handleGetBlockTemplate: malformed long poll id",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{LongPollID: "zz"},
		},
		mockTemplater: &testTemplater{
			template: tmpl,
			policy:   policy,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetBlockTemplate: invalid mode",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{Mode: "work"},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetBlockTemplate: unknown algo",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Algo: dcrjson.String("ethash"),
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetBlockTemplate: missing rule",
		handler: handleGetBlockTemplate,
		cmd:     &types.GetBlockTemplateCmd{},
		mockTemplater: &testTemplater{
			templateErr: mining.Error{
				Err: mining.ErrInvalidParameter,
				Description: "getblocktemplate must be called with " +
					"the segwit rule set",
			},
			policy: policy,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetBlockTemplate: not ready",
		handler: handleGetBlockTemplate,
		cmd:     &types.GetBlockTemplateCmd{},
		mockTemplater: &testTemplater{
			templateErr: mining.ErrNotReady,
			policy:      policy,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCClientInInitialDownload,
	}, {
		name:    "handleGetBlockTemplate: consensus inconsistency",
		handler: handleGetBlockTemplate,
		cmd:     &types.GetBlockTemplateCmd{},
		mockTemplater: &testTemplater{
			templateErr: mining.ErrConsensusInconsistency,
			policy:      policy,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInternal.Code,
	}, {
		name:    "handleGetBlockTemplate: proposal without data",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{Mode: "proposal"},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCType,
	}, {
		name:    "handleGetBlockTemplate: proposal undecodable",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{Mode: "proposal", Data: "0102"},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handleGetBlockTemplate: proposal without coinbase",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{
				Mode: "proposal",
				Data: blockHex(t, noCoinbase),
			},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handleGetBlockTemplate: proposal accepted",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{
				Mode: "proposal",
				Data: blockHex(t, proposal),
			},
		},
		mockTemplater: &testTemplater{policy: policy},
		result:        nil,
	}, {
		name:    "handleGetBlockTemplate: proposal rejected",
		handler: handleGetBlockTemplate,
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{
				Mode: "proposal",
				Data: blockHex(t, proposal),
			},
		},
		mockTemplater: &testTemplater{
			proposeResult: "inconclusive-not-best-prevblk",
			policy:        policy,
		},
		result: "inconclusive-not-best-prevblk",
	}})
}

func TestGetBlockTemplateAlgoPrecedence(t *testing.T) {
	t.Parallel()

	tmpl := testTemplateBlock(chainhash.Hash{0xbb})
	templater := &testTemplater{
		template: tmpl,
		policy:   &mining.Policy{PayToScript: testPayToScript},
	}
	cfg := defaultMockConfig(t, &netparams.SimNetParams)
	cfg.Templates = templater
	cfg.MiningAlgo = algo.NIST5
	s := &Server{cfg: *cfg}
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  *types.GetBlockTemplateCmd
		want algo.ID
	}{{
		name: "configured default",
		cmd:  &types.GetBlockTemplateCmd{},
		want: algo.NIST5,
	}, {
		name: "request object",
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{Algo: "lyra2z"},
		},
		want: algo.LYRA2Z,
	}, {
		name: "positional parameter wins",
		cmd: &types.GetBlockTemplateCmd{
			Request: &types.TemplateRequest{Algo: "lyra2z"},
			Algo:    dcrjson.String("X16R"),
		},
		want: algo.X16R,
	}}
	for _, test := range tests {
		if _, err := handleGetBlockTemplate(ctx, s, test.cmd); err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		if templater.lastRequest.Algo != test.want {
			t.Fatalf("%s: unexpected algo: got %v, want %v", test.name,
				templater.lastRequest.Algo, test.want)
		}
	}
}

func TestHandleSubmit(t *testing.T) {
	t.Parallel()

	tmpl := testTemplateBlock(chainhash.Hash{0xcc})
	block := tmpl.Block
	noCoinbase := &wire.MsgBlock{
		Header:       block.Header,
		Transactions: []*wire.MsgTx{block.Transactions[1]},
	}
	header := block.Header

	testRPCServerHandler(t, []rpcTest{{
		name:    "handleSubmitBlock: accepted",
		handler: handleSubmitBlock,
		cmd:     &types.SubmitBlockCmd{HexBlock: blockHex(t, block)},
		result:  nil,
	}, {
		name:    "handleSubmitBlock: duplicate",
		handler: handleSubmitBlock,
		cmd:     &types.SubmitBlockCmd{HexBlock: blockHex(t, block)},
		mockTemplater: &testTemplater{
			submitResult: "duplicate",
			policy:       &mining.Policy{},
		},
		result: "duplicate",
	}, {
		name:    "handleSubmitBlock: rejected",
		handler: handleSubmitBlock,
		cmd:     &types.SubmitBlockCmd{HexBlock: blockHex(t, block)},
		mockTemplater: &testTemplater{
			submitResult: "high-hash",
			policy:       &mining.Policy{},
		},
		result: "high-hash",
	}, {
		name:    "handleSubmitBlock: invalid hex",
		handler: handleSubmitBlock,
		cmd:     &types.SubmitBlockCmd{HexBlock: "zz"},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handleSubmitBlock: no coinbase",
		handler: handleSubmitBlock,
		cmd:     &types.SubmitBlockCmd{HexBlock: blockHex(t, noCoinbase)},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handleSubmitBlock: not ready",
		handler: handleSubmitBlock,
		cmd:     &types.SubmitBlockCmd{HexBlock: blockHex(t, block)},
		mockTemplater: &testTemplater{
			submitErr: mining.ErrNotReady,
			policy:    &mining.Policy{},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCClientInInitialDownload,
	}, {
		name:    "handleSubmitHeader: accepted",
		handler: handleSubmitHeader,
		cmd:     &types.SubmitHeaderCmd{HexData: headerHex(t, &header)},
		result:  nil,
	}, {
		name:    "handleSubmitHeader: invalid hex",
		handler: handleSubmitHeader,
		cmd:     &types.SubmitHeaderCmd{HexData: "zz"},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handleSubmitHeader: short header",
		handler: handleSubmitHeader,
		cmd:     &types.SubmitHeaderCmd{HexData: "0100"},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handleSubmitHeader: missing parent",
		handler: handleSubmitHeader,
		cmd:     &types.SubmitHeaderCmd{HexData: headerHex(t, &header)},
		mockTemplater: &testTemplater{
			headerErr: mining.Error{
				Err:         mining.ErrMissingParent,
				Description: "unknown parent",
			},
			policy: &mining.Policy{},
		},
		wantErr: true,
		errCode: errRPCVerify,
	}, {
		name:    "handleSubmitHeader: rejected",
		handler: handleSubmitHeader,
		cmd:     &types.SubmitHeaderCmd{HexData: headerHex(t, &header)},
		mockTemplater: &testTemplater{
			headerErr: mining.Error{
				Err:         mining.ErrBlockRejected,
				Description: "bad-diffbits",
			},
			policy: &mining.Policy{},
		},
		wantErr: true,
		errCode: errRPCVerify,
	}})
}

func TestHandleSubmitHeaderReason(t *testing.T) {
	t.Parallel()

	header := testTemplateBlock(chainhash.Hash{0xdd}).Block.Header
	cfg := defaultMockConfig(t, &netparams.SimNetParams)
	cfg.Templates = &testTemplater{
		headerErr: mining.Error{
			Err:         mining.ErrMissingParent,
			Description: "unknown parent",
		},
	}
	s := &Server{cfg: *cfg}

	cmd := &types.SubmitHeaderCmd{HexData: headerHex(t, &header)}
	_, err := handleSubmitHeader(context.Background(), s, cmd)
	var rpcErr *dcrjson.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("unexpected error type: %T", err)
	}
	want := "Must submit previous header (" + header.PrevBlock.String() +
		") first"
	if rpcErr.Message != want {
		t.Fatalf("unexpected message: got %q, want %q", rpcErr.Message, want)
	}
}

func TestHandleTransactions(t *testing.T) {
	t.Parallel()

	tx := testSpendTx(chainhash.Hash{0x02}, 5000)
	txHash := tx.TxHash()
	hexTx := txHex(t, tx)

	testRPCServerHandler(t, []rpcTest{{
		name:    "handleSendRawTransaction: accepted",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{HexTx: hexTx},
		result:  txHash.String(),
	}, {
		name:    "handleSendRawTransaction: invalid hex",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{HexTx: "zz"},
		wantErr: true,
		errCode: dcrjson.ErrRPCDecodeHexString,
	}, {
		name:    "handleSendRawTransaction: undecodable",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{HexTx: "0100"},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handleSendRawTransaction: duplicate",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{HexTx: hexTx},
		mockTxMempooler: &testTxMempooler{
			processErr: mempool.TxRuleError{
				Err:         mempool.ErrDuplicate,
				Description: "already have transaction",
			},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCDuplicateTx,
	}, {
		name:    "handleSendRawTransaction: recently confirmed",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{HexTx: hexTx},
		mockTxMempooler: &testTxMempooler{
			processErr: mempool.TxRuleError{
				Err:         mempool.ErrOrphan,
				Description: "orphan transaction",
			},
		},
		mockConfirmedTxs: testConfirmedTxns{txHash: {}},
		wantErr:          true,
		errCode:          dcrjson.ErrRPCDuplicateTx,
	}, {
		name:    "handleSendRawTransaction: rule error",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{HexTx: hexTx},
		mockTxMempooler: &testTxMempooler{
			processErr: mempool.TxRuleError{
				Err:         mempool.ErrInsufficientFee,
				Description: "insufficient fee",
			},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCMisc,
	}, {
		name:    "handleSendRawTransaction: other error",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{HexTx: hexTx},
		mockTxMempooler: &testTxMempooler{
			processErr: errors.New("utxo lookup failed"),
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCDeserialization,
	}, {
		name:    "handlePrioritiseTransaction: ok",
		handler: handlePrioritiseTransaction,
		cmd: &types.PrioritiseTransactionCmd{
			TxID:     txHash.String(),
			FeeDelta: 10000,
		},
		result: true,
	}, {
		name:    "handlePrioritiseTransaction: nonzero dummy",
		handler: handlePrioritiseTransaction,
		cmd: &types.PrioritiseTransactionCmd{
			TxID:     txHash.String(),
			Dummy:    1,
			FeeDelta: 10000,
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handlePrioritiseTransaction: invalid txid",
		handler: handlePrioritiseTransaction,
		cmd: &types.PrioritiseTransactionCmd{
			TxID: "zz",
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCDecodeHexString,
	}})
}

func TestHandlePrioritiseTransactionDelta(t *testing.T) {
	t.Parallel()

	templater := &testTemplater{}
	cfg := defaultMockConfig(t, &netparams.SimNetParams)
	cfg.Templates = templater
	s := &Server{cfg: *cfg}

	hash := chainhash.Hash{0x03}
	for i := 0; i < 2; i++ {
		cmd := &types.PrioritiseTransactionCmd{
			TxID:     hash.String(),
			FeeDelta: 1500,
		}
		if _, err := handlePrioritiseTransaction(context.Background(), s,
			cmd); err != nil {

			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := templater.prioritised[hash]; got != 3000 {
		t.Fatalf("unexpected accumulated delta: %v", got)
	}
}

func TestHandleHelp(t *testing.T) {
	t.Parallel()

	testRPCServerHandler(t, []rpcTest{{
		name:    "handleHelp: unknown method",
		handler: handleHelp,
		cmd:     &types.HelpCmd{Command: dcrjson.String("getwork")},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}})

	s := &Server{helpCacher: newHelpCacher()}
	result, err := handleHelp(context.Background(), s, &types.HelpCmd{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	usage := result.(string)
	for _, method := range []string{"getblocktemplate", "submitblock",
		"getmultialgoinfo", "gethalvinginfo"} {

		if !strings.Contains(usage, method) {
			t.Fatalf("usage does not mention %s:\n%s", method, usage)
		}
	}
	if strings.Contains(usage, "notifywork") {
		t.Fatalf("http usage mentions websocket commands:\n%s", usage)
	}

	result, err = handleHelp(context.Background(), s,
		&types.HelpCmd{Command: dcrjson.String("getblocktemplate")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.(string), helpDescs["getblocktemplate"]) {
		t.Fatalf("unexpected method help: %v", result)
	}
}

// TestHelpDescriptions ensures every handled method has a description.
func TestHelpDescriptions(t *testing.T) {
	t.Parallel()

	for method := range rpcHandlers {
		if _, ok := helpDescs[method]; !ok {
			t.Errorf("missing help description for %s", method)
		}
	}
	for method := range wsHandlers {
		if _, ok := helpDescs[method]; !ok {
			t.Errorf("missing help description for %s", method)
		}
	}
}
