// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/math/uint256"
	"github.com/multialgo/powcoord/internal/algo"
	"golang.org/x/crypto/scrypt"
)

// HashFunc computes the proof-of-work hash of a serialized block header.  The
// previous block hash is provided separately for algorithms that take it as
// additional input.  Implementations must be pure functions of their inputs.
type HashFunc func(header []byte, prevBlock *chainhash.Hash) (chainhash.Hash, error)

var (
	hashersMtx sync.RWMutex
	hashers    [algo.Count]HashFunc
)

func init() {
	hashers[algo.SHA256D.Index()] = sha256dHash
	hashers[algo.SCRYPT.Index()] = scryptHash
}

// sha256dHash is the double SHA-256 of the serialized header.
func sha256dHash(header []byte, _ *chainhash.Hash) (chainhash.Hash, error) {
	return chainhash.DoubleHashH(header), nil
}

// scryptHash is scrypt with N=1024, r=1, p=1 using the serialized header as
// both the password and the salt.
func scryptHash(header []byte, _ *chainhash.Hash) (chainhash.Hash, error) {
	var hash chainhash.Hash
	key, err := scrypt.Key(header, header, 1024, 1, 1, chainhash.HashSize)
	if err != nil {
		return hash, err
	}
	copy(hash[:], key)
	return hash, nil
}

// RegisterHasher registers the hash function used for the algorithm,
// replacing any previously registered function.
func RegisterHasher(a algo.ID, fn HashFunc) error {
	if !a.IsValid() {
		str := fmt.Sprintf("cannot register hasher for unknown algorithm "+
			"%#x", uint32(a))
		return makeError(ErrUnknownAlgorithm, str)
	}

	hashersMtx.Lock()
	hashers[a.Index()] = fn
	hashersMtx.Unlock()
	return nil
}

// HasHasher returns whether a hash function is registered for the
// algorithm.
func HasHasher(a algo.ID) bool {
	if !a.IsValid() {
		return false
	}
	hashersMtx.RLock()
	defer hashersMtx.RUnlock()
	return hashers[a.Index()] != nil
}

// SerializeHeader returns the serialized bytes of the header.
func SerializeHeader(header *wire.BlockHeader) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(wire.MaxBlockHeaderPayload)
	if err := header.Serialize(&buf); err != nil {
		str := fmt.Sprintf("failed to serialize header: %v", err)
		return nil, makeError(ErrSerializeHeader, str)
	}
	return buf.Bytes(), nil
}

// Hash computes the proof-of-work hash of the header by dispatching to the
// hash function of the algorithm selected by the header version.
func Hash(header *wire.BlockHeader) (chainhash.Hash, error) {
	a, err := SelectAlgorithm(header)
	if err != nil {
		return chainhash.Hash{}, err
	}

	hashersMtx.RLock()
	fn := hashers[a.Index()]
	hashersMtx.RUnlock()
	if fn == nil {
		str := fmt.Sprintf("no hash function registered for algorithm %s",
			a)
		return chainhash.Hash{}, makeError(ErrNoHasher, str)
	}

	serialized, err := SerializeHeader(header)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return fn(serialized, &header.PrevBlock)
}

// CheckHeader ensures the header selects a registered algorithm and that its
// proof-of-work hash satisfies both the difficulty bits it commits to and the
// provided limit.
func CheckHeader(header *wire.BlockHeader, powLimit *uint256.Uint256) error {
	powHash, err := Hash(header)
	if err != nil {
		return err
	}
	return CheckProofOfWork(&powHash, header.Bits, powLimit)
}
