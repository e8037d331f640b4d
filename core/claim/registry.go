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
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
)

// Registry tracks every network-known claim, keyed by claim_number, and
// issues fresh claims on mint (spec.md §4.2).
type Registry struct {
	mu     sync.RWMutex
	claims map[uint64]*Claim
	nextNo uint64
}

// NewRegistry returns an empty registry; nextNo starts at 1 (spec.md §3:
// "claim_number (monotone 1-indexed)").
func NewRegistry() *Registry {
	return &Registry{claims: make(map[uint64]*Claim), nextNo: 1}
}

// Mint issues a fresh claim to ownerPubkey/ownerAddress for allocation to
// the next block's winner lottery (spec.md §4.5's "mints a fresh claim with
// owner=miner" at genesis, generalized to "the block-N miner mints for
// block-N+1" per spec.md §3).
func (r *Registry) Mint(ownerPubkey, ownerAddress string, expiration time.Time) *Claim {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := New(r.nextNo, ownerPubkey, ownerAddress, expiration)
	r.claims[r.nextNo] = c
	r.nextNo++
	return c
}

// Insert adds an externally-received claim (e.g. from gossip) under its
// declared claim_number.
func (r *Registry) Insert(c *Claim) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[c.ClaimNumber] = c
	if c.ClaimNumber >= r.nextNo {
		r.nextNo = c.ClaimNumber + 1
	}
}

// Get returns the claim with the given number, if known.
func (r *Registry) Get(number uint64) (*Claim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.claims[number]
	return c, ok
}

// All returns a snapshot slice of every known claim, sorted by claim_number
// (spec.md §4.4: "claims by claim_number big-endian").
func (r *Registry) All() []*Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Claim, 0, len(r.claims))
	for _, c := range r.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimNumber < out[j].ClaimNumber })
	return out
}

// NonceUpAll increments the nonce of every known claim. Invoked when every
// claim visible to the miner is exhausted at the current nonce (spec.md
// §4.2, §4.7 step 2).
func (r *Registry) NonceUpAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		c.NonceUp()
	}
}

// LowestPointer resolves the sole eligible miner for nonce: the live,
// unexpired claim whose pointer is minimal, with ties broken by the seeded
// coin-flip arbiter (spec.md §4.2, §8 invariant 4).
//
// blockHeight seeds the tie-break so every honest node reaches the same
// winner (spec.md §9 "Coin-flip tie-break").
func (r *Registry) LowestPointer(nonce uint64, blockHeight uint64, now time.Time) (*Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type candidate struct {
		claim   *Claim
		pointer [16]byte
	}
	var live []candidate
	for _, c := range r.claims {
		if c.Expired(now) {
			continue
		}
		ptr, ok := c.Pointer(nonce)
		if !ok {
			continue
		}
		live = append(live, candidate{c, ptr})
	}
	if len(live) == 0 {
		return nil, errs.ErrNoLowestPointer
	}

	sort.Slice(live, func(i, j int) bool {
		return vrrbcrypto.ComparePointers(live[i].pointer, live[j].pointer) < 0
	})

	lowest := live[0].pointer
	var tied []*Claim
	for _, cand := range live {
		if vrrbcrypto.ComparePointers(cand.pointer, lowest) == 0 {
			tied = append(tied, cand.claim)
		}
	}
	if len(tied) == 1 {
		return tied[0], nil
	}
	return BreakTie(tied, blockHeight), nil
}

// ExpireAndRenumber marks claim `number` expired and decrements the
// claim_number of every claim with a larger number by one, closing the gap
// (spec.md §4.2 "Expiration", §8 scenario S5). It returns the claims that
// were renumbered, in ascending order of their *new* number.
func (r *Registry) ExpireAndRenumber(number uint64) []*Claim {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, number)
	renumbered := make(map[uint64]*Claim, len(r.claims))
	var moved []*Claim
	for n, c := range r.claims {
		if n > number {
			c.ClaimNumber = n - 1
			renumbered[n-1] = c
			moved = append(moved, c)
		} else {
			renumbered[n] = c
		}
	}
	r.claims = renumbered
	if r.nextNo > 0 {
		r.nextNo--
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ClaimNumber < moved[j].ClaimNumber })
	return moved
}

// Transfer appends a signed custody record selling the claim from its
// current owner to buyerPubkey/buyerAddress, after validating the full
// custody chain back to the homesteader (spec.md §4.2 "Transfer").
func Transfer(c *Claim, buyerPubkey, buyerAddress string, price int64, buyerSig, sellerSig string) error {
	if err := c.VerifyCustodyChain(); err != nil {
		return errors.Wrap(err, "existing custody chain invalid")
	}
	seller := c.Owner()
	sellerPub, err := vrrbcrypto.ParsePubKeyHex(seller)
	if err != nil {
		return errors.Wrap(err, "parse seller pubkey")
	}
	next := CustodyRecord{
		Holder:               buyerPubkey,
		Homesteader:          false,
		AcquisitionTimestamp: time.Now().UnixNano(),
		AcquisitionPrice:     price,
		AcquiredFrom:         seller,
		OwnerNumber:          uint64(len(c.ChainOfCustody) + 1),
		BuyerSignature:       buyerSig,
		SellerSignature:      sellerSig,
	}
	payload := custodyPayload(c.ClaimNumber, next)
	sigBytes, err := hexDecodeSig(sellerSig)
	if err != nil {
		return errors.Wrap(err, "decode seller signature")
	}
	if !vrrbcrypto.Verify(sellerPub, payload, sigBytes) {
		return errors.New("seller signature does not verify")
	}
	c.ChainOfCustody = append(c.ChainOfCustody, next)
	c.OwnerPubkey = buyerPubkey
	c.OwnerAddress = buyerAddress
	return nil
}
