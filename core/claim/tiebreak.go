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

package claim

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// BreakTie deterministically resolves a lowest-pointer tie among `tied`
// claims. Every tied address draws an unbiased bit seeded by
// blake2b(be64(blockHeight) || sorted(tied pubkeys)); the highest-bit
// holder wins, recursing (via a counter-mode stream) on a full tie, per
// spec.md §9 "Coin-flip tie-break" and §4.2.
func BreakTie(tied []*Claim, blockHeight uint64) *Claim {
	if len(tied) == 1 {
		return tied[0]
	}

	sorted := make([]*Claim, len(tied))
	copy(sorted, tied)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OwnerPubkey < sorted[j].OwnerPubkey })

	seed := seedBytes(blockHeight, sorted)

	round := uint32(0)
	candidates := sorted
	for {
		bits := drawBits(seed, round, len(candidates))
		best := byte(0)
		for _, b := range bits {
			if b > best {
				best = b
			}
		}
		var next []*Claim
		for i, c := range candidates {
			if bits[i] == best {
				next = append(next, c)
			}
		}
		if len(next) == 1 {
			return next[0]
		}
		candidates = next
		round++
	}
}

func seedBytes(blockHeight uint64, sorted []*Claim) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, blockHeight)
	for _, c := range sorted {
		buf = append(buf, 0x00)
		buf = append(buf, []byte(c.OwnerPubkey)...)
	}
	digest := blake2b.Sum256(buf)
	return digest[:]
}

// drawBits expands seed with a round counter into one bit per candidate:
// counter-mode blake2b so every node, given the same seed, draws the same
// bits (the arbitration is deterministic, not a real source of entropy).
func drawBits(seed []byte, round uint32, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		buf := make([]byte, len(seed)+8)
		copy(buf, seed)
		binary.BigEndian.PutUint32(buf[len(seed):], round)
		binary.BigEndian.PutUint32(buf[len(seed)+4:], uint32(i))
		digest := blake2b.Sum256(buf)
		out[i] = digest[0] & 0x01
	}
	return out
}
