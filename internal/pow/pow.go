// Copyright (c) 2021-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/blockchain/standalone/v2"
	"github.com/decred/dcrd/math/uint256"
)

// DiffBitsToUint256 converts the compact representation used to encode
// difficulty targets to an unsigned 256-bit integer.  The representation is
// similar to IEEE754 floating point numbers.
//
// Like IEEE754 floating point, there are three basic components: the sign,
// the exponent, and the mantissa.  They are broken out as follows:
//
//  1. the most significant 8 bits represent the unsigned base 256 exponent
//  2. zero-based bit 23 (the 24th bit) represents the sign bit
//  3. the least significant 23 bits represent the mantissa
//
// The formula to calculate N is:
//
//	N = (-1^sign) * mantissa * 256^(exponent-3)
//
// Flags are returned to indicate whether or not the encoding was for a
// negative value and/or overflows a uint256.
func DiffBitsToUint256(bits uint32) (n uint256.Uint256, isNegative bool, overflows bool) {
	mantissa := bits & 0x007fffff
	isSignBitSet := bits&0x00800000 != 0
	exponent := bits >> 24

	if mantissa == 0 {
		return n, false, false
	}

	if exponent <= 3 {
		n.SetUint64(uint64(mantissa >> (8 * (3 - exponent))))
		return n, isSignBitSet, false
	}

	// Any encoded exponent of 35 or greater overflows since 256/8 + 3 = 35.
	// Each step down in exponent frees 8 more bits for the mantissa.
	overflows = exponent >= 35 || (exponent >= 34 && mantissa > 0xff) ||
		(exponent >= 33 && mantissa > 0xffff)
	if overflows {
		return n, isSignBitSet, true
	}
	n.SetUint64(uint64(mantissa))
	n.Lsh(8 * (exponent - 3))
	return n, isSignBitSet, false
}

// Uint256ToDiffBits converts a uint256 to a compact representation using an
// unsigned 32-bit integer.  The compact representation only provides 23 bits
// of precision, so values larger than (2^23 - 1) only encode the most
// significant digits of the number.  See DiffBitsToUint256 for details.
func Uint256ToDiffBits(n *uint256.Uint256) uint32 {
	if n.IsZero() {
		return 0
	}

	var mantissa uint32
	exponent := uint32((n.BitLen() + 7) / 8)
	if exponent <= 3 {
		mantissa = n.Uint32() << (8 * (3 - exponent))
	} else {
		mantissa = new(uint256.Uint256).RshVal(n, 8*(exponent-3)).Uint32()
	}

	// The sign bit is not available for the mantissa, so shift it out into
	// the exponent.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return exponent<<24 | mantissa
}

// CalcWork calculates a work value from difficulty bits.  Since a lower
// target difficulty value equates to higher actual difficulty, the work value
// which will be accumulated must be the inverse of the difficulty.  The result
// is zero for targets that are zero, negative or overflow.  To avoid really
// small floating point numbers, the result is 2^256 / (target+1).
func CalcWork(diffBits uint32) uint256.Uint256 {
	diff, isNegative, overflows := DiffBitsToUint256(diffBits)
	if isNegative || overflows || diff.IsZero() {
		return uint256.Uint256{}
	}

	// work = (2^256 / (diff+1)) = ((2^256-diff-1) / (diff+1))+1 and
	// 2^256-diff-1 is the one's complement of diff.
	divisor := new(uint256.Uint256).SetUint64(1).Add(&diff)
	return *diff.Not().Div(divisor).AddUint64(1)
}

// HashToUint256 converts the provided hash to an unsigned 256-bit integer
// that can be used to perform math comparisons.  Hashes are interpreted as
// little endian.
func HashToUint256(hash *chainhash.Hash) uint256.Uint256 {
	return *new(uint256.Uint256).SetBytesLE((*[32]byte)(hash))
}

// MeetsTarget returns whether the hash, interpreted as a number, is less than
// or equal to the target encoded by the difficulty bits.  Negative, zero and
// overflowing targets are never met.
func MeetsTarget(hash *chainhash.Hash, diffBits uint32) bool {
	target, isNegative, overflows := DiffBitsToUint256(diffBits)
	if isNegative || overflows || target.IsZero() {
		return false
	}
	hashNum := HashToUint256(hash)
	return !hashNum.Gt(&target)
}

// checkProofOfWorkRange ensures the provided target difficulty is in min/max
// range per the provided proof-of-work limit.
func checkProofOfWorkRange(diffBits uint32, powLimit *uint256.Uint256) (uint256.Uint256, error) {
	target, isNegative, overflows := DiffBitsToUint256(diffBits)
	if isNegative {
		str := fmt.Sprintf("target difficulty bits %08x is a negative value",
			diffBits)
		return uint256.Uint256{}, makeError(ErrUnexpectedDifficulty, str)
	}
	if overflows {
		str := fmt.Sprintf("target difficulty bits %08x is higher than the "+
			"max limit %064x", diffBits, powLimit)
		return uint256.Uint256{}, makeError(ErrUnexpectedDifficulty, str)
	}
	if target.IsZero() {
		str := "target difficulty is zero"
		return uint256.Uint256{}, makeError(ErrUnexpectedDifficulty, str)
	}
	if target.Gt(powLimit) {
		str := fmt.Sprintf("target difficulty %064x is higher than max %064x",
			&target, powLimit)
		return uint256.Uint256{}, makeError(ErrUnexpectedDifficulty, str)
	}
	return target, nil
}

// CheckProofOfWork ensures the provided hash is not higher than the target
// difficulty represented by given header bits and that said difficulty is in
// min/max range per the provided proof-of-work limit.
func CheckProofOfWork(powHash *chainhash.Hash, diffBits uint32, powLimit *uint256.Uint256) error {
	target, err := checkProofOfWorkRange(diffBits, powLimit)
	if err != nil {
		return err
	}

	hashNum := HashToUint256(powHash)
	if hashNum.Gt(&target) {
		str := fmt.Sprintf("proof of work hash %064x is higher than expected "+
			"max of %064x", &hashNum, &target)
		return makeError(ErrHighHash, str)
	}
	return nil
}

// DifficultyRatio returns the proof-of-work difficulty of the given bits as a
// multiple of the minimum difficulty represented by powLimitBits.
func DifficultyRatio(bits, powLimitBits uint32) float64 {
	// The minimum difficulty is the limit bits converted back to a number
	// rather than the limit itself since the compact form loses precision.
	max := standalone.CompactToBig(powLimitBits)
	target := standalone.CompactToBig(bits)
	if target.Sign() <= 0 {
		return 0
	}

	difficulty := new(big.Rat).SetFrac(max, target)
	diff, err := strconv.ParseFloat(difficulty.FloatString(8), 64)
	if err != nil {
		return 0
	}
	return diff
}
