// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainwork

import (
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chaingen"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
)

// flatSubsidy returns a subsidy function that pays 1 coin per block plus the
// algorithm index in atoms so sums identify which blocks were counted.
func flatSubsidy(height int64, a algo.ID) (btcutil.Amount, error) {
	return btcutil.SatoshiPerBitcoin + btcutil.Amount(a.Index()), nil
}

// newTestAccountant returns an accountant over a fresh generated chain.
func newTestAccountant(t *testing.T, spacing time.Duration) (*Accountant, *chaingen.Generator) {
	t.Helper()

	handle := chainstate.New()
	g, err := chaingen.New(handle, time.Unix(1540000000, 0), spacing)
	if err != nil {
		t.Fatalf("chaingen.New: %v", err)
	}
	acct := New(&Config{
		Chain:   handle,
		Params:  &netparams.SimNetParams,
		Subsidy: flatSubsidy,
	})
	return acct, g
}

// blockWork returns the work of a single generated block as a float.
func blockWork() float64 {
	w := pow.CalcWork(chaingen.DefaultBits)
	f, _ := new(big.Float).SetInt(w.ToBig()).Float64()
	return f
}

// TestLastBlockForAlgorithm ensures the nearest ancestor mined with the
// requested algorithm is found when the tip was mined with another one.
func TestLastBlockForAlgorithm(t *testing.T) {
	acct, g := newTestAccountant(t, time.Minute)
	if acct.LastBlockForAlgorithm(algo.X11) == nil {
		t.Fatal("nil last block with genesis only")
	}

	// Heights 1..100 alternate sha256d (odd) and x11 (even).  The tip at
	// height 100 is then replaced by a sha256d block on top.
	g.ExtendRepeat(100, algo.SHA256D, algo.X11)
	tip := g.NextBlock("tip", algo.SHA256D)
	if tip.Height() != 101 {
		t.Fatalf("unexpected tip height %d", tip.Height())
	}

	last := acct.LastBlockForAlgorithm(algo.X11)
	if last.Height() != 100 || last.Algo() != algo.X11 {
		t.Fatalf("got height %d algo %s, want 100 x11", last.Height(),
			last.Algo())
	}
	if got := acct.LastBlockForAlgorithm(algo.SHA256D); got != tip {
		t.Fatalf("got height %d, want tip", got.Height())
	}

	// An algorithm that never mined falls back to genesis.
	if got := acct.LastBlockForAlgorithm(algo.NIST5); got.Height() != 0 {
		t.Fatalf("got height %d, want genesis", got.Height())
	}
}

// TestDifficultyForAlgorithm ensures the difficulty comes from the last block
// of the queried algorithm rather than the tip.
func TestDifficultyForAlgorithm(t *testing.T) {
	acct, g := newTestAccountant(t, time.Minute)

	g.SetBits(0x1d00ffff)
	g.NextBlock("", algo.SHA256D)
	g.SetBits(0x207fffff)
	g.NextBlock("", algo.X11)

	sha := acct.DifficultyForAlgorithm(algo.SHA256D)
	want := pow.DifficultyRatio(0x1d00ffff, netparams.SimNetParams.PowLimitBits)
	if sha != want {
		t.Fatalf("sha256d difficulty %v, want %v", sha, want)
	}
	if x11 := acct.DifficultyForAlgorithm(algo.X11); x11 != 1 {
		t.Fatalf("x11 difficulty %v, want 1", x11)
	}
	if sha <= 1 {
		t.Fatalf("sha256d difficulty %v not above the tip difficulty", sha)
	}
}

// TestNetworkHashrate ensures the hashrate only accounts for the work of the
// queried algorithm over the elapsed window time.
func TestNetworkHashrate(t *testing.T) {
	acct, g := newTestAccountant(t, time.Minute)
	if got := acct.NetworkHashrate(120, -1, algo.SHA256D); got != 0 {
		t.Fatalf("genesis only: got %v, want 0", got)
	}

	// 20 blocks alternating sha256d and x11.
	g.ExtendRepeat(20, algo.SHA256D, algo.X11)
	w := blockWork()

	tests := []struct {
		name   string
		lookup int64
		height int64
		algo   algo.ID
		want   float64
	}{{
		name:   "sha256d last 10 blocks",
		lookup: 10,
		height: -1,
		algo:   algo.SHA256D,
		want:   5 * w / 600,
	}, {
		name:   "x11 last 10 blocks",
		lookup: 10,
		height: -1,
		algo:   algo.X11,
		want:   5 * w / 600,
	}, {
		name:   "unused algorithm",
		lookup: 10,
		height: -1,
		algo:   algo.NIST5,
		want:   0,
	}, {
		name:   "lookup clamped to chain",
		lookup: 1000,
		height: -1,
		algo:   algo.SHA256D,
		want:   10 * w / 1200,
	}, {
		name:   "at height 10",
		lookup: 4,
		height: 10,
		algo:   algo.X11,
		want:   2 * w / 240,
	}, {
		name:   "height at tip uses tip",
		lookup: 10,
		height: 20,
		algo:   algo.SHA256D,
		want:   5 * w / 600,
	}, {
		name:   "default lookup since retarget",
		lookup: 0,
		height: -1,
		algo:   algo.X11,
		// 20 % 144 + 1 = 21 clamped to 20.
		want: 10 * w / 1200,
	}, {
		name:   "genesis reference",
		lookup: 10,
		height: 0,
		algo:   algo.SHA256D,
		want:   0,
	}}

	for _, test := range tests {
		got := acct.NetworkHashrate(test.lookup, test.height, test.algo)
		if math.Abs(got-test.want) > test.want*1e-9 {
			t.Errorf("%q: got %v, want %v", test.name, got, test.want)
		}
	}
}

// TestNetworkHashrateZeroElapsed ensures the hashrate is exactly zero when
// every block in the window has the same timestamp.
func TestNetworkHashrateZeroElapsed(t *testing.T) {
	acct, g := newTestAccountant(t, 0)
	g.ExtendRepeat(30, algo.SHA256D, algo.SCRYPT)

	for _, a := range algo.All {
		for _, lookup := range []int64{1, 5, 29, 120} {
			if got := acct.NetworkHashrate(lookup, -1, a); got != 0 {
				t.Errorf("%s lookup %d: got %v, want 0", a, lookup, got)
			}
		}
	}
}

// TestCountAndSum ensures block counts and reward sums only consider blocks
// of the algorithm within the window and stop before genesis.
func TestCountAndSum(t *testing.T) {
	acct, g := newTestAccountant(t, time.Minute)
	g.Extend(algo.SHA256D, algo.X11, algo.X11, algo.SHA256D, algo.X11)

	tests := []struct {
		algo  algo.ID
		n     int
		count int
	}{
		{algo.X11, 1, 1},
		{algo.X11, 3, 2},
		{algo.X11, 5, 3},
		{algo.SHA256D, 2, 1},
		{algo.SHA256D, 100, 2},
		// The genesis block is a legacy scrypt block and never counted.
		{algo.SCRYPT, 100, 0},
		{algo.SHA256D, 5, 2},
		{algo.SHA256D, 6, 2},
		{algo.NIST5, 100, 0},
		{algo.X11, 0, 0},
	}

	for _, test := range tests {
		count := acct.CountBlocksForAlgorithm(test.algo, test.n)
		if count != test.count {
			t.Errorf("%s n=%d: count %d, want %d", test.algo, test.n, count,
				test.count)
		}
		sum, err := acct.SumRewardsForAlgorithm(test.algo, test.n)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		per := btcutil.SatoshiPerBitcoin + btcutil.Amount(test.algo.Index())
		if want := per * btcutil.Amount(test.count); sum != want {
			t.Errorf("%s n=%d: sum %v, want %v", test.algo, test.n, sum, want)
		}
	}
}

// TestSubsidyErrorPropagates ensures subsidy failures are not swallowed.
func TestSubsidyErrorPropagates(t *testing.T) {
	acct, g := newTestAccountant(t, time.Minute)
	g.Extend(algo.SHA256D)

	errBoom := errors.New("boom")
	acct.cfg.Subsidy = func(int64, algo.ID) (btcutil.Amount, error) {
		return 0, errBoom
	}
	if _, err := acct.SumRewardsForAlgorithm(algo.SHA256D, 10); !errors.Is(err, errBoom) {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := acct.MiningStats(); !errors.Is(err, errBoom) {
		t.Fatalf("unexpected err: %v", err)
	}
}

// TestReports ensures the report rows follow the report order and carry the
// expected values.
func TestReports(t *testing.T) {
	acct, g := newTestAccountant(t, 2*time.Minute)
	g.ExtendRepeat(12, algo.SHA256D, algo.LYRA2Z, algo.X16R)

	multi := acct.MultiAlgoStats()
	if len(multi) != len(algo.ReportOrder) {
		t.Fatalf("got %d rows", len(multi))
	}
	for i, row := range multi {
		if row.Algo != algo.ReportOrder[i] {
			t.Fatalf("row %d: algo %s, want %s", i, row.Algo,
				algo.ReportOrder[i])
		}
	}
	if multi[0].LastBlockHeight != 10 || multi[2].LastBlockHeight != 11 {
		t.Fatalf("unexpected last heights %d %d", multi[0].LastBlockHeight,
			multi[2].LastBlockHeight)
	}
	if multi[0].Hashrate <= 0 || multi[5].Hashrate != 0 {
		t.Fatalf("unexpected hashrates %v %v", multi[0].Hashrate,
			multi[5].Hashrate)
	}

	stats, err := acct.MiningStats()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	sha := stats[0]
	if sha.TotalBlocks24h != 4 || sha.TotalBlocks7d != 4 {
		t.Fatalf("unexpected sha256d block counts %+v", sha)
	}
	if sha.AvgBlockReward24h != btcutil.SatoshiPerBitcoin {
		t.Fatalf("unexpected average %v", sha.AvgBlockReward24h)
	}
	nist := stats[5]
	if nist.TotalBlocks7d != 0 || nist.AvgBlockReward7d != 0 {
		t.Fatalf("unexpected nist5 stats %+v", nist)
	}
}
