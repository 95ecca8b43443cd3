// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package algo provides the registry of proof-of-work algorithms a block may
// be mined with along with the static economic constants associated with
// each of them.
package algo

import (
	"fmt"
	"strings"
)

// ID identifies a proof-of-work algorithm.  The numeric value of an ID is the
// value of the masked algorithm field of a block header version, which means
// an ID can be compared directly against version&VersionMask.
//
// NOTE: The zero value is SHA256D, not Null.
type ID uint32

// These constants define the known algorithms.
const (
	SHA256D ID = 0 << 8
	SCRYPT  ID = 1 << 8
	NIST5   ID = 2 << 8
	LYRA2Z  ID = 3 << 8
	X11     ID = 4 << 8
	X16R    ID = 5 << 8

	// Null is the identifier returned for anything that does not map to a
	// registered algorithm.  It never matches a masked version field.
	Null ID = 0xffffffff
)

const (
	// VersionMask is the mask applied to a block header version to extract
	// the algorithm identifier.
	VersionMask = 0x00000f00

	// Count is the number of registered algorithms.
	Count = 6

	// totalAdjustments is the integral sum of the raw cost factors below.
	// The fractional part of the real sum (18.25) is intentionally not
	// carried since reward consensus depends on the truncated value.
	totalAdjustments = 18
)

// algoInfo houses the static data associated with an algorithm.
type algoInfo struct {
	id         ID
	name       string
	efficiency uint32
	costFactor float64
}

// registry is ordered by algorithm index.
var registry = [Count]algoInfo{
	{SHA256D, "sha256d", 1, 10.00},
	{SCRYPT, "scrypt", 12984, 3.00},
	{NIST5, "nist5", 513, 1.00},
	{LYRA2Z, "lyra2z", 1973648, 0.50},
	{X11, "x11", 513, 1.25},
	{X16R, "x16r", 257849, 1.50},
}

// All lists every registered algorithm ordered by index.
var All = []ID{SHA256D, SCRYPT, NIST5, LYRA2Z, X11, X16R}

// ReportOrder is the order algorithms are listed in by the multi-algorithm
// statistics reports.
var ReportOrder = []ID{SHA256D, SCRYPT, LYRA2Z, X11, X16R, NIST5}

// info returns the registry entry for the algorithm or nil when it is not
// registered.
func (a ID) info() *algoInfo {
	if a&^VersionMask != 0 {
		return nil
	}
	idx := int(a >> 8)
	if idx >= Count {
		return nil
	}
	return &registry[idx]
}

// IsValid returns whether or not the identifier refers to a registered
// algorithm.
func (a ID) IsValid() bool {
	return a.info() != nil
}

// Index returns a dense zero-based index for the algorithm suitable for
// indexing per-algorithm arrays.  It returns -1 for unregistered identifiers.
func (a ID) Index() int {
	if a.info() == nil {
		return -1
	}
	return int(a >> 8)
}

// String returns the canonical name of the algorithm or an empty string when
// it is not registered.
func (a ID) String() string {
	if info := a.info(); info != nil {
		return info.name
	}
	return ""
}

// GoString implements fmt.GoStringer for more readable test failures.
func (a ID) GoString() string {
	if info := a.info(); info != nil {
		return strings.ToUpper(info.name)
	}
	return fmt.Sprintf("algo.ID(%#x)", uint32(a))
}

// Efficiency returns the relative hashing efficiency of the algorithm, used
// to weight cross-algorithm reward fairness.  Unregistered identifiers return
// 0.
func (a ID) Efficiency() uint32 {
	if info := a.info(); info != nil {
		return info.efficiency
	}
	return 0
}

// CostFactor returns the normalized cost factor of the algorithm that scales
// block rewards.  Unregistered identifiers return 0.
func (a ID) CostFactor() float64 {
	info := a.info()
	if info == nil {
		return 0
	}
	return info.costFactor / float64(totalAdjustments/Count)
}

// FromVersion extracts the algorithm identifier from the algorithm field of
// the provided block version.  It returns Null when the field does not
// identify a registered algorithm.
func FromVersion(version int32) ID {
	a := ID(uint32(version) & VersionMask)
	if !a.IsValid() {
		return Null
	}
	return a
}

// Parse returns the identifier for the case-insensitive algorithm name or
// Null when it is not recognized.
func Parse(name string) ID {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range registry {
		if registry[i].name == name {
			return registry[i].id
		}
	}
	return Null
}
