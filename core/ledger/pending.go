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

package ledger

import (
	"sort"

	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/core/txn"
)

// Pending is PendingNetworkState (spec.md §4.4): a transient, uncommitted
// clone used only to validate a candidate block. It is never committed
// directly; acceptance commits through State.Commit/CreditAccount/etc.
type Pending struct {
	credits     map[string]bigutil.U128
	debits      map[string]bigutil.U128
	claims      map[uint64]*claim.Claim
	rewardState *reward.State
	lastBlock   BlockRef
}

// Clone takes an immutable-at-this-instant copy of s, suitable for applying
// a candidate block's effects without touching the committed state (spec.md
// §5 "other components receive cheap clones").
func (s *State) Clone() *Pending {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &Pending{
		credits:     make(map[string]bigutil.U128, len(s.credits)),
		debits:      make(map[string]bigutil.U128, len(s.debits)),
		claims:      make(map[uint64]*claim.Claim, len(s.claims)),
		rewardState: cloneRewardState(s.rewardState),
		lastBlock:   s.lastBlock,
	}
	for k, v := range s.credits {
		p.credits[k] = v
	}
	for k, v := range s.debits {
		p.debits[k] = v
	}
	for k, v := range s.claims {
		cp := *v
		p.claims[k] = &cp
	}
	return p
}

func cloneRewardState(s *reward.State) *reward.State {
	if s == nil {
		return reward.Start()
	}
	cp := *s
	return &cp
}

// Balance mirrors State.Balance against the pending snapshot.
func (p *Pending) Balance(addr string) (bigutil.U128, bool) {
	credit, known := p.credits[addr]
	if !known {
		return bigutil.Zero(), false
	}
	return credit.Sub(p.debits[addr]), true
}

// ApplyTxn applies t's credit/debit effect to the pending clone (spec.md
// §4.4 invariant, applied speculatively for validation).
func (p *Pending) ApplyTxn(t *txn.Txn) {
	p.credits[t.ReceiverAddress] = p.credits[t.ReceiverAddress].Add(t.Amount)
	p.debits[t.SenderAddress] = p.debits[t.SenderAddress].Add(t.Amount)
}

// ApplyClaim upserts c into the pending claim set (new claim allocation or
// renumbering carried by the candidate block).
func (p *Pending) ApplyClaim(c *claim.Claim) {
	p.claims[c.ClaimNumber] = c
}

// ApplyReward advances the pending reward state exactly as State.AdvanceReward
// would on commit.
func (p *Pending) ApplyReward(r reward.Reward) {
	p.rewardState.Claim(r.Category)
	p.rewardState.Advance()
}

// Claims returns every pending claim sorted by claim_number, mirroring
// State.Claims.
func (p *Pending) Claims() []*claim.Claim {
	out := make([]*claim.Claim, 0, len(p.claims))
	for _, c := range p.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimNumber < out[j].ClaimNumber })
	return out
}

// Hash renders the same canonical digest State.Hash would for an equivalent
// committed state, so a candidate block's declared state hash can be
// compared against the pending clone's hash (spec.md §4.5 rule 7).
func (p *Pending) Hash(uts [16]byte) (string, error) {
	s := &State{
		credits:      p.credits,
		debits:       p.debits,
		claims:       p.claims,
		rewardState:  p.rewardState,
		lastBlock:    p.lastBlock,
		blockArchive: map[uint64]BlockRef{},
	}
	return s.Hash(uts)
}
