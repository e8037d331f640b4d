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

package block

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/ledger"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var chainLog = vrrblog.NewModuleLogger("chain")

// blockCacheCapacity is block_cache's bound (spec.md §4.5: "bounded LRU
// (capacity 100) of recently accepted blocks for quick neighbor lookup").
const blockCacheCapacity = 100

// Chain drives block acceptance against a ledger.State: it validates
// candidates, commits accepted ones, caches recent blocks for neighbor
// lookup, quarantines invalid ones, and buffers out-of-order arrivals
// until the gap to the local tip closes (spec.md §4.5, §5).
type Chain struct {
	mu sync.Mutex

	state *ledger.State

	blockCache *lru.Cache        // hash -> *Block, recently accepted
	invalid    map[string]*Block // hash -> rejected candidate
	future     map[uint64]*Block // height -> buffered out-of-order block

	onInvalid func(height uint64, minerID string)
}

// NewChain wires a Chain against the authoritative ledger state. onInvalid,
// if non-nil, is called on every rejection to emit the InvalidBlock notice
// of spec.md §4.5/§7.
func NewChain(state *ledger.State, onInvalid func(height uint64, minerID string)) *Chain {
	cache, err := lru.New(blockCacheCapacity)
	if err != nil {
		// lru.New only fails for a non-positive size; blockCacheCapacity is a
		// fixed positive constant, so this is unreachable in practice.
		panic(err)
	}
	return &Chain{
		state:      state,
		blockCache: cache,
		invalid:    make(map[string]*Block),
		future:     make(map[uint64]*Block),
		onInvalid:  onInvalid,
	}
}

// Neighbor returns a recently accepted block by hash, for sibling tie-break
// lookups (spec.md §3 "neighbor_hash").
func (c *Chain) Neighbor(hash string) (*Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.blockCache.Get(hash)
	if !ok {
		return nil, false
	}
	return v.(*Block), true
}

// Invalid reports whether hash was previously rejected, so duplicate
// delivery of a known-bad block can be dropped without re-validating
// (spec.md §7: "duplicate txn/claim/block messages are silently
// deduplicated").
func (c *Chain) Invalid(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.invalid[hash]
	return ok
}

// Accept runs the full §4.5 validate-then-commit pipeline for candidate
// against the chain's current tip, minerID identifying the proposer for the
// InvalidBlock notice on rejection. A height more than one above the tip
// buffers candidate in future_blocks instead of validating it immediately
// (spec.md §5: "Incoming blocks ahead of the tip are buffered in
// future_blocks ... and drained in ascending order once the gap closes").
// On success it returns candidate plus any future_blocks the commit
// unblocked, in commit order.
func (c *Chain) Accept(candidate *Block, claims []*claim.Claim, rewardState *reward.State, uts [16]byte, minerID string) ([]*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptLocked(candidate, claims, rewardState, uts, minerID)
}

func (c *Chain) acceptLocked(candidate *Block, claims []*claim.Claim, rewardState *reward.State, uts [16]byte, minerID string) ([]*Block, error) {
	last, ok := c.state.LastBlock()
	if !ok {
		return nil, errors.New("chain has no tip; accept genesis via AcceptGenesis")
	}
	lastBlock, ok := last.(*Block)
	if !ok {
		return nil, errors.New("ledger tip is not a *block.Block")
	}

	if candidate.Header.BlockHeight > lastBlock.Header.BlockHeight+1 {
		c.future[candidate.Header.BlockHeight] = candidate
		chainLog.Debugw("buffered future block", "height", candidate.Header.BlockHeight, "tip", lastBlock.Header.BlockHeight)
		return nil, nil
	}

	pending := c.state.Clone()
	if err := Validate(candidate, lastBlock, claims, rewardState, pending, uts); err != nil {
		c.invalid[candidate.hash] = candidate
		if c.onInvalid != nil {
			c.onInvalid(candidate.Header.BlockHeight, minerID)
		}
		chainLog.Warnw("rejected candidate block", "height", candidate.Header.BlockHeight, "err", err)
		return nil, err
	}

	c.commitLocked(candidate)

	accepted := []*Block{candidate}
	accepted = append(accepted, c.drainFutureLocked(claims, rewardState, uts, minerID)...)
	return accepted, nil
}

// AcceptGenesis commits the height-0 block without running valid_block's
// height/last_hash continuity rules (spec.md §4.5 valid_genesis).
func (c *Chain) AcceptGenesis(genesis *Block, rewardState *reward.State, uts [16]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.state.Clone()
	if err := ValidateGenesis(genesis, rewardState, pending, uts); err != nil {
		c.invalid[genesis.hash] = genesis
		return err
	}
	c.commitLocked(genesis)
	return nil
}

func (c *Chain) commitLocked(b *Block) {
	c.state.Commit(b)
	for _, cl := range b.OwnedClaims {
		c.state.UpsertClaim(cl)
	}
	for _, t := range b.Txns {
		c.state.CreditAccount(t.ReceiverAddress, t.Amount)
		c.state.DebitAccount(t.SenderAddress, t.Amount)
	}
	c.state.AdvanceReward(b.Header.NextBlockReward)
	c.blockCache.Add(b.hash, b)
	delete(c.future, b.Header.BlockHeight)
}

// drainFutureLocked re-attempts every buffered future block in ascending
// height order after a commit narrows the gap, recursing through
// acceptLocked so a chain of buffered blocks drains in one call (spec.md
// §5: "drained in ascending order once the gap closes").
func (c *Chain) drainFutureLocked(claims []*claim.Claim, rewardState *reward.State, uts [16]byte, minerID string) []*Block {
	var drained []*Block
	for {
		last, ok := c.state.LastBlock()
		if !ok {
			return drained
		}
		lastBlock := last.(*Block)
		next, ok := c.future[lastBlock.Header.BlockHeight+1]
		if !ok {
			return drained
		}
		delete(c.future, lastBlock.Header.BlockHeight+1)
		more, err := c.acceptLocked(next, claims, rewardState, uts, minerID)
		if err != nil {
			continue
		}
		drained = append(drained, more...)
	}
}
