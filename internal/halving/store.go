// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2021-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package halving

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const (
	// stateVersion is the current version of the serialized state.
	stateVersion = 1

	// epochFlagHalved, epochFlagDynamic, epochFlagBootstrap and
	// epochFlagEnded are the bits of the serialized epoch flags.
	epochFlagHalved    = 1 << 0
	epochFlagDynamic   = 1 << 1
	epochFlagBootstrap = 1 << 2
	epochFlagEnded     = 1 << 3
)

// stateKeyName is the key the halving state is stored under.
var stateKeyName = []byte("halving/state")

// Store persists the halving state in a leveldb database.
type Store struct {
	db *leveldb.DB
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// OpenStore opens or creates the halving state database at the path.
func OpenStore(path string) (*Store, error) {
	dbExists := fileExists(path)
	if !dbExists {
		// The error can be ignored since opening the database fails if the
		// directory could not be created.
		_ = os.MkdirAll(path, 0700)
	}

	log.Infof("Loading halving database from '%s'", path)
	opts := opt.Options{
		ErrorIfExist: !dbExists,
		Strict:       opt.DefaultStrict,
		Compression:  opt.NoCompression,
	}
	db, err := leveldb.OpenFile(path, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open halving database: %w", err)
	}
	return NewStore(db), nil
}

// NewStore returns a store backed by the provided database.
func NewStore(db *leveldb.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored state or nil when none was stored.
func (s *Store) Load() (*State, error) {
	serialized, err := s.db.Get(stateKeyName, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load halving state: %w", err)
	}
	return deserializeState(serialized)
}

// Save stores the state, replacing any previously stored state.
func (s *Store) Save(state *State) error {
	err := s.db.Put(stateKeyName, serializeState(state),
		&opt.WriteOptions{Sync: true})
	if err != nil {
		return fmt.Errorf("failed to store halving state: %w", err)
	}
	return nil
}

// serializeState returns the state serialized as follows:
//
//	<version><halvings><interval><supply><last height><last hash><num epochs><epochs>
//
//	Field         Type     Size
//	version       uvarint  variable
//	halvings      uvarint  variable
//	interval      varint   variable
//	supply        varint   variable
//	last height   varint   variable
//	last hash     hash     32 bytes
//	num epochs    uvarint  variable
//	epochs        []epoch  variable
//
// and each epoch as:
//
//	Field         Type     Size
//	name len      uvarint  variable
//	name          string   variable
//	start block   varint   variable
//	end block     varint   variable
//	max subsidy   varint   variable
//	flags         byte     1 byte
//	boost         float64  8 bytes (little endian IEEE 754 bits)
//	start supply  varint   variable
//	end supply    varint   variable
func serializeState(state *State) []byte {
	b := make([]byte, 0, 64+len(state.Epochs)*48)
	b = binary.AppendUvarint(b, stateVersion)
	b = binary.AppendUvarint(b, uint64(state.HalvingCount))
	b = binary.AppendVarint(b, state.HalvingInterval)
	b = binary.AppendVarint(b, int64(state.Supply))
	b = binary.AppendVarint(b, state.LastHeight)
	b = append(b, state.LastHash[:]...)
	b = binary.AppendUvarint(b, uint64(len(state.Epochs)))
	for i := range state.Epochs {
		e := &state.Epochs[i]
		b = binary.AppendUvarint(b, uint64(len(e.Name)))
		b = append(b, e.Name...)
		b = binary.AppendVarint(b, e.StartBlock)
		b = binary.AppendVarint(b, e.EndBlock)
		b = binary.AppendVarint(b, int64(e.MaxBlockSubsidy))
		var flags byte
		if e.IsSubsidyHalved {
			flags |= epochFlagHalved
		}
		if e.DynamicRewards {
			flags |= epochFlagDynamic
		}
		if e.Bootstrap {
			flags |= epochFlagBootstrap
		}
		if e.HasEnded {
			flags |= epochFlagEnded
		}
		b = append(b, flags)
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(e.DynamicRewardsBoost))
		b = binary.AppendVarint(b, int64(e.StartSupply))
		b = binary.AppendVarint(b, int64(e.EndSupply))
	}
	return b
}

// stateReader decodes the fields of a serialized state and remembers the
// first failure.
type stateReader struct {
	b   []byte
	err error
}

func (r *stateReader) fail(field string) {
	if r.err == nil {
		str := fmt.Sprintf("unexpected end of serialized halving state "+
			"reading %s", field)
		r.err = makeError(ErrCorruptState, str)
	}
}

func (r *stateReader) uvarint(field string) uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.b)
	if n <= 0 {
		r.fail(field)
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *stateReader) varint(field string) int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.b)
	if n <= 0 {
		r.fail(field)
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *stateReader) bytes(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.b) < n {
		r.fail(field)
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

// deserializeState decodes a state serialized with serializeState.
func deserializeState(serialized []byte) (*State, error) {
	r := &stateReader{b: serialized}
	if version := r.uvarint("version"); r.err == nil && version != stateVersion {
		str := fmt.Sprintf("unsupported halving state version %d", version)
		return nil, makeError(ErrCorruptState, str)
	}

	var state State
	state.HalvingCount = int(r.uvarint("halvings"))
	state.HalvingInterval = r.varint("interval")
	state.Supply = btcutil.Amount(r.varint("supply"))
	state.LastHeight = r.varint("last height")
	copy(state.LastHash[:], r.bytes("last hash", chainhash.HashSize))
	numEpochs := r.uvarint("num epochs")
	if r.err == nil && numEpochs > uint64(len(r.b)) {
		str := fmt.Sprintf("serialized halving state claims %d epochs in %d "+
			"bytes", numEpochs, len(r.b))
		return nil, makeError(ErrCorruptState, str)
	}
	state.Epochs = make([]Epoch, 0, numEpochs)
	for i := uint64(0); i < numEpochs && r.err == nil; i++ {
		var e Epoch
		nameLen := r.uvarint("epoch name length")
		if nameLen > uint64(len(r.b)) {
			r.fail("epoch name")
			break
		}
		e.Name = string(r.bytes("epoch name", int(nameLen)))
		e.StartBlock = r.varint("epoch start")
		e.EndBlock = r.varint("epoch end")
		e.MaxBlockSubsidy = btcutil.Amount(r.varint("epoch max subsidy"))
		if flags := r.bytes("epoch flags", 1); flags != nil {
			e.IsSubsidyHalved = flags[0]&epochFlagHalved != 0
			e.DynamicRewards = flags[0]&epochFlagDynamic != 0
			e.Bootstrap = flags[0]&epochFlagBootstrap != 0
			e.HasEnded = flags[0]&epochFlagEnded != 0
		}
		if boost := r.bytes("epoch boost", 8); boost != nil {
			e.DynamicRewardsBoost = math.Float64frombits(binary.LittleEndian.Uint64(boost))
		}
		e.StartSupply = btcutil.Amount(r.varint("epoch start supply"))
		e.EndSupply = btcutil.Amount(r.varint("epoch end supply"))
		state.Epochs = append(state.Epochs, e)
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		str := fmt.Sprintf("%d trailing bytes after serialized halving state",
			len(r.b))
		return nil, makeError(ErrCorruptState, str)
	}
	return &state, nil
}
