// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
)

const (
	// VersionBitsTopMask is the mask for the top bits of a block version
	// that must match VersionBitsTopBits for the version to carry an
	// explicit algorithm field and version-bits signaling.
	VersionBitsTopMask = 0xe0000000

	// VersionBitsTopBits is the value the top bits of a block version must
	// have for it to carry an explicit algorithm field.
	VersionBitsTopBits = 0x20000000

	// LegacyAlgorithm is the algorithm implied by headers that predate the
	// explicit algorithm field.
	LegacyAlgorithm = algo.SCRYPT
)

// SelectionKind describes how the algorithm of a header was determined.
type SelectionKind uint8

const (
	// LegacyImplicit indicates the header version predates multi-algorithm
	// support and the legacy algorithm applies.
	LegacyImplicit SelectionKind = iota

	// ExplicitField indicates the algorithm was read from the algorithm
	// field of the header version.
	ExplicitField
)

// String returns the selection kind as a human-readable name.
func (k SelectionKind) String() string {
	switch k {
	case LegacyImplicit:
		return "legacy"
	case ExplicitField:
		return "explicit"
	}
	return fmt.Sprintf("Unknown SelectionKind (%d)", int(k))
}

// Selection is the result of selecting the algorithm for a block header.
type Selection struct {
	Algo algo.ID
	Kind SelectionKind
}

// Valid returns whether the selection identifies a registered algorithm.
func (s Selection) Valid() bool {
	return s.Algo.IsValid()
}

// IsLegacyVersion returns whether the block version predates the explicit
// algorithm field.
func IsLegacyVersion(version int32) bool {
	return uint32(version)&VersionBitsTopMask != VersionBitsTopBits
}

// SelectVersion selects the algorithm for a block version.  The algorithm of
// the returned selection is algo.Null when the explicit field does not
// identify a registered algorithm.
func SelectVersion(version int32) Selection {
	if IsLegacyVersion(version) {
		return Selection{Algo: LegacyAlgorithm, Kind: LegacyImplicit}
	}
	return Selection{Algo: algo.FromVersion(version), Kind: ExplicitField}
}

// Select selects the algorithm that governs the validity of the header.
func Select(header *wire.BlockHeader) Selection {
	return SelectVersion(header.Version)
}

// SelectAlgorithm returns the algorithm that governs the validity of the
// header.  An ErrUnknownAlgorithm error is returned when the header selects an
// algorithm that is not registered and callers must treat it as a hard
// validation failure.
func SelectAlgorithm(header *wire.BlockHeader) (algo.ID, error) {
	sel := Select(header)
	if !sel.Valid() {
		str := fmt.Sprintf("block version %#08x does not select a known "+
			"algorithm (field %#x)", uint32(header.Version),
			uint32(header.Version)&algo.VersionMask)
		return algo.Null, makeError(ErrUnknownAlgorithm, str)
	}
	return sel.Algo, nil
}

// VersionForAlgo returns a block version that explicitly selects the
// algorithm while retaining the version-bits signaling bits of base.  The
// algorithm must be registered.
func VersionForAlgo(a algo.ID, base int32) int32 {
	v := uint32(base) &^ (VersionBitsTopMask | algo.VersionMask)
	return int32(v | VersionBitsTopBits | uint32(a))
}
