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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowestPointerPicksMinimum(t *testing.T) {
	// spec.md S4: three claims, each nonced up until it is live at nonce n;
	// the test computes the minimum of their pointers itself, and only that
	// claim's owner should be returned.
	reg := NewRegistry()
	future := time.Now().Add(time.Hour)
	a := reg.Mint("ownerA", "addrA", future)
	b := reg.Mint("ownerB", "addrB", future)
	c := reg.Mint("ownerC", "addrC", future)

	const nonce = uint64(42)
	var pointers = map[*Claim][16]byte{}
	for _, cl := range []*Claim{a, b, c} {
		for {
			ptr, ok := cl.Pointer(nonce)
			if ok {
				pointers[cl] = ptr
				break
			}
			cl.NonceUp()
		}
	}

	winner, err := reg.LowestPointer(nonce, 1, time.Now())
	require.NoError(t, err)

	min := pointers[a]
	want := a
	for _, cl := range []*Claim{a, b, c} {
		if cmp := compare16(pointers[cl], min); cmp < 0 {
			min = pointers[cl]
			want = cl
		}
	}
	assert.Equal(t, want.OwnerPubkey, winner.OwnerPubkey)
}

func compare16(a, b [16]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func TestExpiredClaimNeverWins(t *testing.T) {
	// spec.md invariant 5: a claim whose expiration_time <= now is never
	// accepted as a block's miner.
	reg := NewRegistry()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	reg.Mint("expired", "addrExpired", past)
	live := reg.Mint("live", "addrLive", future)

	winner, err := reg.LowestPointer(1, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, live.OwnerPubkey, winner.OwnerPubkey)
}

func TestAllClaimsExhaustedReturnsError(t *testing.T) {
	reg := NewRegistry()
	future := time.Now().Add(time.Hour)
	a := reg.Mint("a", "addrA", future)
	// Search query nonces (the claim's own nonce stays unchanged) until
	// Pointer reports exhaustion, then only check that exact nonce.
	var exhaustedNonce uint64 = 1
	for {
		if _, ok := a.Pointer(exhaustedNonce); !ok {
			break
		}
		exhaustedNonce++
		if exhaustedNonce > 10000 {
			t.Fatal("could not find an exhausted nonce within bound")
		}
	}
	_, err := reg.LowestPointer(exhaustedNonce, 1, time.Now())
	assert.Error(t, err)
}

func TestExpireAndRenumberClosesGap(t *testing.T) {
	// spec.md S5: claim numbers {1,2,3,4} with claim 2 expired renumber to
	// {1,2,3} preserving relative order.
	reg := NewRegistry()
	future := time.Now().Add(time.Hour)
	reg.Mint("a", "addrA", future) // 1
	reg.Mint("b", "addrB", future) // 2
	reg.Mint("c", "addrC", future) // 3
	reg.Mint("d", "addrD", future) // 4

	reg.ExpireAndRenumber(2)

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].OwnerPubkey)
	assert.Equal(t, uint64(1), all[0].ClaimNumber)
	assert.Equal(t, "c", all[1].OwnerPubkey)
	assert.Equal(t, uint64(2), all[1].ClaimNumber)
	assert.Equal(t, "d", all[2].OwnerPubkey)
	assert.Equal(t, uint64(3), all[2].ClaimNumber)
}

func TestBreakTieIsDeterministic(t *testing.T) {
	future := time.Now().Add(time.Hour)
	a := New(1, "pubA", "addrA", future)
	b := New(2, "pubB", "addrB", future)

	w1 := BreakTie([]*Claim{a, b}, 7)
	w2 := BreakTie([]*Claim{b, a}, 7)
	assert.Equal(t, w1.OwnerPubkey, w2.OwnerPubkey, "tie-break must not depend on input order")
}
