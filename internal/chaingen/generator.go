// Copyright (c) 2016-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaingen builds chain index entries with controlled algorithms,
// timestamps and difficulty for exercising the mining coordinator.  Headers
// produced by the generator are not solved, so they are only suitable for
// code that does not check proof of work.
package chaingen

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/pow"
)

// DefaultBits is the difficulty used for generated blocks unless overridden.
const DefaultBits = 0x1e0fffff

// Generator houses state used to ease the process of generating chains of
// entries.
type Generator struct {
	handle  *chainstate.Handle
	tip     *chainstate.Entry
	spacing time.Duration
	bits    uint32
	nonce   uint32
	named   map[string]*chainstate.Entry
}

// New returns a generator whose chain consists of a legacy genesis entry at
// the provided time.  Every generated entry is published to the handle.
func New(handle *chainstate.Handle, genesisTime time.Time, spacing time.Duration) (*Generator, error) {
	header := wire.BlockHeader{
		Version:   1,
		Timestamp: genesisTime,
		Bits:      DefaultBits,
	}
	genesis, err := chainstate.NewEntry(&header, nil)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		handle:  handle,
		tip:     genesis,
		spacing: spacing,
		bits:    DefaultBits,
		named:   map[string]*chainstate.Entry{"genesis": genesis},
	}
	handle.SetTip(genesis)
	return g, nil
}

// Tip returns the entry the next block will build on.
func (g *Generator) Tip() *chainstate.Entry {
	return g.tip
}

// Handle returns the handle the generator publishes to.
func (g *Generator) Handle() *chainstate.Handle {
	return g.handle
}

// SetBits sets the difficulty bits of subsequently generated blocks.
func (g *Generator) SetBits(bits uint32) {
	g.bits = bits
}

// SetSpacing sets the time between subsequently generated blocks.
func (g *Generator) SetSpacing(spacing time.Duration) {
	g.spacing = spacing
}

// Header returns the header the next block mined with the algorithm would
// have.  The version carries the provided signaling bits.
func (g *Generator) Header(a algo.ID, versionBits int32) wire.BlockHeader {
	g.nonce++
	return wire.BlockHeader{
		Version:    pow.VersionForAlgo(a, versionBits),
		PrevBlock:  g.tip.Hash(),
		MerkleRoot: chainhash.Hash{byte(g.nonce), byte(g.nonce >> 8)},
		Timestamp:  g.tip.Time().Add(g.spacing),
		Bits:       g.bits,
		Nonce:      g.nonce,
	}
}

// NextBlock connects a block mined with the algorithm to the generator tip,
// publishes it as the new tip and returns it.
func (g *Generator) NextBlock(name string, a algo.ID) *chainstate.Entry {
	header := g.Header(a, 0)
	return g.connect(name, &header)
}

// NextBlockWithHeader connects the provided header, which must build on the
// current generator tip.
func (g *Generator) NextBlockWithHeader(name string, header *wire.BlockHeader) *chainstate.Entry {
	return g.connect(name, header)
}

func (g *Generator) connect(name string, header *wire.BlockHeader) *chainstate.Entry {
	e, err := chainstate.NewEntry(header, g.tip)
	if err != nil {
		panic(fmt.Sprintf("chaingen: block %q: %v", name, err))
	}
	if name != "" {
		g.named[name] = e
	}
	g.tip = e
	g.handle.SetTip(e)
	return e
}

// Extend connects one block per provided algorithm and returns the new tip.
func (g *Generator) Extend(algos ...algo.ID) *chainstate.Entry {
	for _, a := range algos {
		g.NextBlock("", a)
	}
	return g.tip
}

// ExtendRepeat connects n blocks cycling through the provided algorithms.
func (g *Generator) ExtendRepeat(n int, algos ...algo.ID) *chainstate.Entry {
	for i := 0; i < n; i++ {
		g.NextBlock("", algos[i%len(algos)])
	}
	return g.tip
}

// Named returns a previously generated entry by name.
func (g *Generator) Named(name string) *chainstate.Entry {
	e, ok := g.named[name]
	if !ok {
		panic(fmt.Sprintf("chaingen: no block named %q", name))
	}
	return e
}

// SetTip rewinds or moves the generator to a previously generated entry so
// that subsequent blocks build a side chain from it.  The handle is not
// updated until a block is connected, mirroring a side chain that has not
// yet overtaken the best chain.
func (g *Generator) SetTip(name string) {
	g.tip = g.Named(name)
}
