// Copyright 2024 The vrrb-core Authors
// This file is part of the vrrb-core library.
//
// The vrrb-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The vrrb-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the vrrb-core library. If not, see <http://www.gnu.org/licenses/>.

// Package bigutil holds the u128 helpers shared by amounts, nonces, and
// pointers (spec.md §3's "unsigned 128-bit" fields).
package bigutil

import "math/big"

// U128 is an unsigned 128-bit integer, represented as a big.Int that is
// always kept non-negative and below 2^128.
type U128 struct {
	v *big.Int
}

var max128 = new(big.Int).Lsh(big.NewInt(1), 128)

// FromUint64 builds a U128 from a native counter.
func FromUint64(n uint64) U128 {
	return U128{v: new(big.Int).SetUint64(n)}
}

// FromBytesBE decodes a big-endian byte slice (of any length up to 16
// bytes) into a U128.
func FromBytesBE(b []byte) U128 {
	return U128{v: new(big.Int).SetBytes(b)}
}

// FromBigInt adopts an existing big.Int, clamping negative values to zero and
// saturating values at or above 2^128 to 2^128-1, as Add does.
func FromBigInt(v *big.Int) U128 {
	if v == nil || v.Sign() < 0 {
		return U128{v: big.NewInt(0)}
	}
	if v.Cmp(max128) >= 0 {
		return U128{v: new(big.Int).Sub(max128, big.NewInt(1))}
	}
	return U128{v: new(big.Int).Set(v)}
}

// Zero is the additive identity.
func Zero() U128 { return U128{v: big.NewInt(0)} }

// BigInt returns the underlying value; callers must not mutate it.
func (u U128) BigInt() *big.Int {
	if u.v == nil {
		return big.NewInt(0)
	}
	return u.v
}

// Bytes16 encodes u as a fixed 16-byte big-endian buffer.
func (u U128) Bytes16() [16]byte {
	var out [16]byte
	b := u.BigInt().Bytes()
	if len(b) > 16 {
		b = b[len(b)-16:]
	}
	copy(out[16-len(b):], b)
	return out
}

// Add returns u+other, saturating at 2^128-1 (amounts never realistically
// approach this bound, but saturation keeps the type total).
func (u U128) Add(other U128) U128 {
	sum := new(big.Int).Add(u.BigInt(), other.BigInt())
	if sum.Cmp(max128) >= 0 {
		sum = new(big.Int).Sub(max128, big.NewInt(1))
	}
	return U128{v: sum}
}

// Sub returns u-other, clamped to zero if other exceeds u (a caller that
// relies on this clamping instead of checking balances first has a bug;
// ledger code always checks balance sufficiency before subtracting).
func (u U128) Sub(other U128) U128 {
	diff := new(big.Int).Sub(u.BigInt(), other.BigInt())
	if diff.Sign() < 0 {
		return Zero()
	}
	return U128{v: diff}
}

// Cmp compares u to other: -1, 0, 1.
func (u U128) Cmp(other U128) int { return u.BigInt().Cmp(other.BigInt()) }

// String renders the canonical decimal form, used in JSON.
func (u U128) String() string { return u.BigInt().String() }

// MarshalJSON renders U128 as a JSON string so it round-trips exactly for
// values too large for a float64, matching §4.4's canonical-JSON digest
// requirement.
func (u U128) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON parses the canonical decimal-string form.
func (u *U128) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		v = big.NewInt(0)
	}
	u.v = v
	return nil
}
