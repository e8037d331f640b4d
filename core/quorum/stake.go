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

// Package quorum implements the validator aggregator: 2/3 confirmation and
// dissenter slashing over per-subject votes (spec.md §4.6).
package quorum

import "sync"

// StakeIndex tracks which claims a validator pubkey currently has staked
// (original_source/src/claim.rs's `stake`/`staked_claims`, supplemented per
// SPEC_FULL.md since spec.md §4.6/§8 S6 need to know *which* claims to
// reset on slashing but spec.md never names the index itself).
type StakeIndex struct {
	mu     sync.Mutex
	staked map[string]map[uint64]struct{}
}

// NewStakeIndex returns an empty index.
func NewStakeIndex() *StakeIndex {
	return &StakeIndex{staked: make(map[string]map[uint64]struct{})}
}

// Stake records that pubkey has claimNumber staked (it is backing a vote or
// a mining attempt with that claim).
func (s *StakeIndex) Stake(pubkey string, claimNumber uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.staked[pubkey]
	if !ok {
		set = make(map[uint64]struct{})
		s.staked[pubkey] = set
	}
	set[claimNumber] = struct{}{}
}

// Unstake removes a single claim from pubkey's staked set, e.g. after a
// successful, uncontested claim sale.
func (s *StakeIndex) Unstake(pubkey string, claimNumber uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.staked[pubkey]; ok {
		delete(set, claimNumber)
		if len(set) == 0 {
			delete(s.staked, pubkey)
		}
	}
}

// ClaimsFor returns the claim numbers currently staked by pubkey.
func (s *StakeIndex) ClaimsFor(pubkey string) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return claimNumbers(s.staked[pubkey])
}

// Clear empties pubkey's staked set and returns the claim numbers it held,
// the effect of slashing (spec.md §4.6: "their staked set is cleared and
// each slashed claim is reset to an unowned state").
func (s *StakeIndex) Clear(pubkey string) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := claimNumbers(s.staked[pubkey])
	delete(s.staked, pubkey)
	return claims
}

func claimNumbers(set map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}
