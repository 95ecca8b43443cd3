// Copyright (c) 2020-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chaingen"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/versionbits"
)

// harnessGenesisTime is the time of the genesis block of harness chains.
const harnessGenesisTime = 1540000000

// fakeTxSource provides a mock transaction source by implementing the
// TxSource interface.
type fakeTxSource struct {
	mtx        sync.Mutex
	candidates []*Candidate
	deltas     map[chainhash.Hash]btcutil.Amount
	selections int
	err        error
}

// SelectCandidates returns the candidates of the source with their
// priority deltas applied.
//
// This is part of the TxSource interface.
func (s *fakeTxSource) SelectCandidates(budget Budget) ([]*Candidate, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.selections++
	if s.err != nil {
		return nil, s.err
	}
	candidates := make([]*Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		cc := *c
		cc.Fee += s.deltas[*c.Tx.Hash()]
		candidates = append(candidates, &cc)
	}
	return candidates, nil
}

// Prioritise records the fee delta of the transaction.
//
// This is part of the TxSource interface.
func (s *fakeTxSource) Prioritise(hash *chainhash.Hash, feeDelta btcutil.Amount) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.deltas == nil {
		s.deltas = make(map[chainhash.Hash]btcutil.Amount)
	}
	s.deltas[*hash] += feeDelta
}

// Count returns the number of candidates of the source.
//
// This is part of the TxSource interface.
func (s *fakeTxSource) Count() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.candidates)
}

// numSelections returns the number of times candidates were selected, which
// is the number of templates built.
func (s *fakeTxSource) numSelections() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.selections
}

// fakePayees provides a fixed set of payees by implementing the
// PayeeResolver interface.
type fakePayees struct {
	payees []Payee
	err    error

	// onResolve is invoked on every lookup when set.
	onResolve func()
}

func (p *fakePayees) RequiredPayees(height int64) ([]Payee, error) {
	if p.onResolve != nil {
		p.onResolve()
	}
	return p.payees, p.err
}

// fakeSubsidy provides a fixed subsidy scaled by the cost factor of the
// algorithm by implementing the SubsidySource interface.
type fakeSubsidy struct {
	amount btcutil.Amount
	err    error
}

func (f *fakeSubsidy) BlockSubsidy(height int64, a algo.ID) (btcutil.Amount, error) {
	if f.err != nil {
		return 0, f.err
	}
	return btcutil.Amount(float64(f.amount) * a.CostFactor()), nil
}

// fakeDifficulty returns fixed difficulty bits by implementing the
// DifficultyCalculator interface.
type fakeDifficulty struct {
	bits uint32
}

func (f *fakeDifficulty) NextWorkRequired(prev *chainstate.Entry, a algo.ID) (uint32, error) {
	return f.bits, nil
}

// fakeSubmitter records submitted blocks and headers and returns a fixed
// result by implementing the BlockSubmitter interface.
type fakeSubmitter struct {
	mtx     sync.Mutex
	known   map[chainhash.Hash]struct{}
	result  error
	blocks  []*wire.MsgBlock
	headers []*wire.BlockHeader
}

func (f *fakeSubmitter) ProcessBlock(block *wire.MsgBlock) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.blocks = append(f.blocks, block)
	return f.result
}

func (f *fakeSubmitter) ProcessHeader(header *wire.BlockHeader) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.headers = append(f.headers, header)
	return f.result
}

func (f *fakeSubmitter) HaveBlock(hash *chainhash.Hash) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	_, ok := f.known[*hash]
	return ok
}

func (f *fakeSubmitter) CheckBlock(block *wire.MsgBlock) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.result
}

// fakeClock provides an adjustable time source.
type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.now = c.now.Add(d)
	c.mtx.Unlock()
}

// testHarness houses a template service along with the fakes it is
// configured with and a generator for its chain.
type testHarness struct {
	params    *netparams.Params
	gen       *chaingen.Generator
	txSource  *fakeTxSource
	payees    *fakePayees
	subsidy   *fakeSubsidy
	submitter *fakeSubmitter
	clock     *fakeClock
	current   bool
	svc       *Service
}

// testPayScript is the script templates of the harness pay to.
var testPayScript = []byte{txscript.OP_TRUE}

// harnessParams returns simulation network parameters with a short
// confirmation window so deployments move through their states quickly.
func harnessParams() *netparams.Params {
	params := netparams.SimNetParams
	params.MinerConfirmationWindow = 10
	params.RuleChangeActivationThreshold = 8
	params.Deployments = []netparams.Deployment{
		{Name: "csv", Bit: 0, ExpireTime: 1 << 62, GBTForce: true},
		{Name: "segwit", Bit: 1, ExpireTime: 1 << 62, GBTForce: true,
			Required: true},
		{Name: "testdummy", Bit: 28, ExpireTime: 1 << 62},
	}
	return &params
}

// newTestHarness returns a harness whose chain consists of the genesis block
// followed by the given number of blocks.
func newTestHarness(t *testing.T, numBlocks int) *testHarness {
	t.Helper()

	params := harnessParams()
	gen, err := chaingen.New(chainstate.New(), time.Unix(harnessGenesisTime, 0),
		params.TargetSpacing)
	if err != nil {
		t.Fatalf("chaingen.New: %v", err)
	}
	gen.ExtendRepeat(numBlocks, algo.All...)

	h := &testHarness{
		params:    params,
		gen:       gen,
		txSource:  &fakeTxSource{},
		payees:    &fakePayees{},
		subsidy:   &fakeSubsidy{amount: 20 * btcutil.SatoshiPerBitcoin},
		submitter: &fakeSubmitter{known: make(map[chainhash.Hash]struct{})},
		clock:     &fakeClock{now: time.Unix(harnessGenesisTime+86400, 0)},
		current:   true,
	}
	policy := DefaultPolicy()
	policy.PayToScript = testPayScript
	h.svc = New(&Config{
		Policy:      policy,
		ChainParams: params,
		Chain:       gen.Handle(),
		TxSource:    h.txSource,
		Payees:      h.payees,
		Subsidy:     h.subsidy,
		Difficulty:  &fakeDifficulty{bits: params.PowLimitBits},
		Submitter:   h.submitter,
		VersionBits: versionbits.NewCalculator(params),
		IsCurrent:   func() bool { return h.current },
		Now:         h.clock.Now,
	})
	return h
}

// addCandidate adds a transaction paying the fee to the source and bumps the
// mempool version.  The transaction spends an output of each listed
// candidate.
func (h *testHarness) addCandidate(fee btcutil.Amount, weight int64, depends ...int) *Candidate {
	h.txSource.mtx.Lock()
	seq := uint32(len(h.txSource.candidates))
	tx := wire.NewMsgTx(wire.TxVersion)
	if len(depends) == 0 {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: seq},
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}
	for _, dep := range depends {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{
				Hash: *h.txSource.candidates[dep].Tx.Hash(),
			},
			Sequence: wire.MaxTxInSequenceNum,
		})
	}
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: testPayScript})
	c := &Candidate{
		Tx:      btcutil.NewTx(tx),
		Fee:     fee,
		Weight:  weight,
		SigOps:  4,
		Depends: depends,
	}
	h.txSource.candidates = append(h.txSource.candidates, c)
	h.txSource.mtx.Unlock()
	h.gen.Handle().BumpMempoolVersion()
	return c
}
