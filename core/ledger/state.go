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

// Package ledger implements NetworkState, the authoritative credits/debits/
// claims/reward-state/last-block snapshot and its canonical digest (spec.md
// §3, §4.4).
package ledger

import (
	"crypto/sha256"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/internal/metrics"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("ledger")

// BlockRef is the minimal view of a block the ledger needs to hold as
// last_block / block_archive entries without importing core/block (which
// itself imports ledger for validation snapshots).
type BlockRef interface {
	Height() uint64
	Hash() string
	MarshalCanonical() ([]byte, error)
}

// State is NetworkState (spec.md §3): the single authoritative owner of
// credits/debits/claims/reward_state/last_block/block_archive.
type State struct {
	mu sync.RWMutex

	credits map[string]bigutil.U128
	debits  map[string]bigutil.U128
	claims  map[uint64]*claim.Claim

	rewardState *reward.State
	lastBlock   BlockRef
	blockArchive map[uint64]BlockRef
}

// New returns an empty NetworkState with a freshly-started RewardState.
func New() *State {
	return &State{
		credits:      make(map[string]bigutil.U128),
		debits:       make(map[string]bigutil.U128),
		claims:       make(map[uint64]*claim.Claim),
		rewardState:  reward.Start(),
		blockArchive: make(map[uint64]BlockRef),
	}
}

// Balance implements txn.BalanceView and wallet.BalanceView: credits[addr]-
// debits[addr], known iff addr has ever appeared in credits (spec.md §4.3).
func (s *State) Balance(addr string) (bigutil.U128, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credit, known := s.credits[addr]
	if !known {
		return bigutil.Zero(), false
	}
	debit := s.debits[addr]
	return credit.Sub(debit), true
}

// CreditAccount adds amount to addr's credits (spec.md §4.4: "credits[t.receiver] += t.amount").
func (s *State) CreditAccount(addr string, amount bigutil.U128) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits[addr] = s.credits[addr].Add(amount)
}

// DebitAccount adds amount to addr's debits (spec.md §4.4: "debits[t.sender] += t.amount").
func (s *State) DebitAccount(addr string, amount bigutil.U128) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debits[addr] = s.debits[addr].Add(amount)
}

// SeedAccount credits addr directly, used to bootstrap wallets in tests and
// at node initialization (no corresponding debit; not part of any txn).
func (s *State) SeedAccount(addr string, amount bigutil.U128) {
	s.CreditAccount(addr, amount)
}

// UpsertClaim overwrites the claim slot keyed by claim_number (spec.md
// §4.4's `update(obj, key)`).
func (s *State) UpsertClaim(c *claim.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[c.ClaimNumber] = c
}

// Claim returns the claim at number, if known.
func (s *State) Claim(number uint64) (*claim.Claim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[number]
	return c, ok
}

// Claims returns every known claim, sorted by claim_number (spec.md §4.4
// "claims by claim_number big-endian").
func (s *State) Claims() []*claim.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*claim.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimNumber < out[j].ClaimNumber })
	return out
}

// RewardState returns the live reward state handle. Callers that only read
// should treat the returned pointer as read-only; mutation happens only via
// AdvanceReward below, under the ledger's own lock ordering.
func (s *State) RewardState() *reward.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rewardState
}

// AdvanceReward advances the reward schedule by one block and records that
// r's category was actually claimed (spec.md §4.1, applied at block
// acceptance per §4.4).
func (s *State) AdvanceReward(r reward.Reward) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewardState.Claim(r.Category)
	s.rewardState.Advance()
}

// LastBlock returns the most recently committed block, if any.
func (s *State) LastBlock() (BlockRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBlock, s.lastBlock != nil
}

// Commit records b as the new tip and archives it by height (spec.md §4.5
// "On acceptance: ... insert block into block_archive[height] ... update
// last_block").
func (s *State) Commit(b BlockRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBlock = b
	s.blockArchive[b.Height()] = b
	metrics.BlocksAccepted.Inc(1)
}

// Archived returns the archived block at height, if any.
func (s *State) Archived(height uint64) (BlockRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blockArchive[height]
	return b, ok
}

// canonicalView is the deterministic, sorted JSON shape hashed by Hash and
// used as the binary encoding for gossip/persistence (spec.md §4.4
// `as_bytes`/`from_bytes`, "sorted(credits) ‖ sorted(debits) ‖
// sorted(claims) ‖ reward_state_bytes ‖ last_block_bytes").
type canonicalView struct {
	Credits     []kv              `json:"credits"`
	Debits      []kv              `json:"debits"`
	Claims      []*claim.Claim    `json:"claims"`
	RewardState *reward.State     `json:"reward_state"`
	LastBlock   json.RawMessage   `json:"last_block"`
}

type kv struct {
	Address string       `json:"address"`
	Amount  bigutil.U128 `json:"amount"`
}

func sortedKV(m map[string]bigutil.U128) []kv {
	out := make([]kv, 0, len(m))
	for addr, amt := range m {
		out = append(out, kv{Address: addr, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// snapshot builds the canonicalView under the read lock.
func (s *State) snapshot() (canonicalView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := make([]*claim.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		claims = append(claims, c)
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ClaimNumber < claims[j].ClaimNumber })

	var lastBlockBytes json.RawMessage
	if s.lastBlock != nil {
		b, err := s.lastBlock.MarshalCanonical()
		if err != nil {
			return canonicalView{}, errors.Wrap(err, "marshal last_block")
		}
		lastBlockBytes = b
	}

	return canonicalView{
		Credits:     sortedKV(s.credits),
		Debits:      sortedKV(s.debits),
		Claims:      claims,
		RewardState: s.rewardState,
		LastBlock:   lastBlockBytes,
	}, nil
}

// Hash computes the canonical state digest: sha256 over the canonical JSON
// view concatenated with sha256(uts) (spec.md §4.4). uts is the caller's
// 16-byte timestamp seed.
func (s *State) Hash(uts [16]byte) (string, error) {
	view, err := s.snapshot()
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(view)
	if err != nil {
		return "", errors.Wrap(errs.ErrSerialization, err.Error())
	}
	utsDigest := sha256.Sum256(uts[:])
	h := sha256.New()
	h.Write(body)
	h.Write(utsDigest[:])
	return hexEncode(h.Sum(nil)), nil
}

// AsBytes renders the stable binary encoding used for gossip and
// persistence (spec.md §4.4 `as_bytes`).
func (s *State) AsBytes() ([]byte, error) {
	view, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(view)
	if err != nil {
		return nil, errors.Wrap(errs.ErrSerialization, err.Error())
	}
	return b, nil
}

// FromBytes restores credits/debits/claims/reward_state from a prior
// AsBytes encoding (spec.md §4.4 `from_bytes`; §4.4 `restore(path)` builds
// on this once the bytes are read off disk).
func FromBytes(b []byte) (*State, error) {
	var view canonicalView
	if err := json.Unmarshal(b, &view); err != nil {
		return nil, errors.Wrap(errs.ErrSerialization, "unmarshal ledger snapshot")
	}
	s := New()
	for _, c := range view.Credits {
		s.credits[c.Address] = c.Amount
	}
	for _, d := range view.Debits {
		s.debits[d.Address] = d.Amount
	}
	for _, c := range view.Claims {
		s.claims[c.ClaimNumber] = c
	}
	if view.RewardState != nil {
		s.rewardState = view.RewardState
	}
	log.Debugw("restored ledger snapshot", "credits", len(s.credits), "claims", len(s.claims))
	return s, nil
}
