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

// Package miner drives the per-tick eligibility check, block proposal, and
// deferred commit cycle of spec.md §4.7.
package miner

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/block"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/core/ledger"
	"github.com/vrrb-labs/vrrb-core/core/txn"
	"github.com/vrrb-labs/vrrb-core/core/wallet"
	"github.com/vrrb-labs/vrrb-core/internal/metrics"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("miner")

// ClaimMaturity is how far in the future a freshly minted claim expires
// (spec.md §3 "expiration_time"; no fixed constant is given, so this picks
// a year, matching the maturity core/block.Genesis already assumes).
const ClaimMaturity = 365 * 24 * time.Hour

// Outcome reports what one Tick did, for the node's run loop to act on
// (broadcast a candidate, self-bootstrap, or simply wait).
type Outcome int

const (
	// OutcomeIdle means there was nothing to do this tick (mining is off, or,
	// before genesis, mining and init are not both set).
	OutcomeIdle Outcome = iota
	// OutcomeGenesisMined means a genesis block was produced; Block holds it.
	OutcomeGenesisMined
	// OutcomeBlockMined means this node won the lottery and mined Block.
	OutcomeBlockMined
	// OutcomeYieldedToPeer means another claim holds the lowest pointer;
	// mining stops until that peer's block arrives.
	OutcomeYieldedToPeer
	// OutcomeNoncedUp means every known claim was exhausted at the current
	// nonce; every claim's nonce was incremented and the tick should be
	// retried (spec.md §4.7 step 2, §7 "NoLowestPointer ... retry").
	OutcomeNoncedUp
)

// Tick is the result of one miner loop iteration (spec.md §4.7 "Per tick").
type Tick struct {
	Outcome Outcome
	Block   *block.Block
	Claim   *claim.Claim // the fresh claim minted alongside Block, if any
}

// Miner holds the state named by spec.md §4.7: its primary claim, the
// network-known claim map, the txn pool, the last committed block, the
// reward schedule, the ledger, and the mining/init flags.
type Miner struct {
	mu sync.Mutex

	wallet   *wallet.Wallet
	registry *claim.Registry
	pool     *txn.Pool
	state    *ledger.State
	chain    *block.Chain
	rng      *rand.Rand

	claimNumber uint64 // this node's primary claim, looked up in registry each tick
	neighbors   block.Neighbors
	maturity    time.Duration // expiration window for freshly minted claims

	mining bool
	init   bool
}

// New wires a Miner over the node's shared resources. claimNumber is the
// primary claim this node owns (spec.md §4.7 "claim (own primary)"); rng
// drives the next_block_nonce draw and reward lottery and should be
// process-local (spec.md §4.1 Lottery doc comment).
func New(w *wallet.Wallet, registry *claim.Registry, pool *txn.Pool, state *ledger.State, chain *block.Chain, claimNumber uint64, rng *rand.Rand) *Miner {
	return &Miner{
		wallet:      w,
		registry:    registry,
		pool:        pool,
		state:       state,
		chain:       chain,
		rng:         rng,
		claimNumber: claimNumber,
		maturity:    ClaimMaturity,
	}
}

// SetClaimMaturity overrides the expiration window for claims this miner
// mints; d <= 0 restores the package default.
func (m *Miner) SetClaimMaturity(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d <= 0 {
		d = ClaimMaturity
	}
	m.maturity = d
}

// SetMining flips the mining flag. StopMine (spec.md §6) calls this with
// false; any in-flight attempt still completes but its result is not
// published (spec.md §5 "Cancellation").
func (m *Miner) SetMining(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mining = on
}

// SetInit marks this node ready to self-bootstrap as the genesis peer
// (spec.md §5 "GetState ... if no peers are connected, the local node
// self-completes ... and proceeds as the genesis peer").
func (m *Miner) SetInit(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init = on
}

// SetNeighbors installs the sibling-block hash set used for tie-break
// context (spec.md §3 "neighbor_hash").
func (m *Miner) SetNeighbors(n block.Neighbors) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neighbors = n
}

// Tick runs one iteration of the miner loop (spec.md §4.7 "Per tick"). The
// caller must invoke Tick repeatedly and yield between calls regardless of
// outcome (spec.md §5: "the miner loop ... yields after every mining
// attempt regardless of outcome").
func (m *Miner) Tick() (Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, hasLast := m.state.LastBlock()
	if !hasLast {
		if !m.mining || !m.init {
			return Tick{Outcome: OutcomeIdle}, nil
		}
		return m.mineGenesisLocked()
	}

	lastBlock, ok := last.(*block.Block)
	if !ok {
		return Tick{}, errors.New("ledger tip is not a *block.Block")
	}
	if !m.mining {
		return Tick{Outcome: OutcomeIdle}, nil
	}
	return m.tickLocked(lastBlock)
}

func (m *Miner) mineGenesisLocked() (Tick, error) {
	w := m.wallet
	address := w.PrimaryAddress()
	nextNonce := m.rng.Uint64()

	rewardState := m.state.RewardState()
	genesisBlock, c, err := block.Genesis(rewardState, w.PubkeyHex(), address, w.PrivateKey(), nextNonce, m.rng)
	if err != nil {
		return Tick{}, errors.Wrap(err, "mine genesis block")
	}
	m.registry.Insert(c)
	m.claimNumber = c.ClaimNumber
	log.Infow("mined genesis block", "claim", c.ClaimNumber)
	return Tick{Outcome: OutcomeGenesisMined, Block: genesisBlock, Claim: c}, nil
}

func (m *Miner) tickLocked(lastBlock *block.Block) (Tick, error) {
	nonce := lastBlock.Header.NextBlockNonce
	now := time.Now()

	winner, err := m.registry.LowestPointer(nonce, lastBlock.Header.BlockHeight+1, now)
	if errors.Is(err, errs.ErrNoLowestPointer) {
		m.registry.NonceUpAll()
		metrics.NoLowestPointer.Inc(1)
		log.Debugw("all claims exhausted at nonce, nonced up", "nonce", nonce)
		return Tick{Outcome: OutcomeNoncedUp}, nil
	}
	if err != nil {
		return Tick{}, err
	}

	if winner.ClaimNumber != m.claimNumber {
		m.mining = false
		log.Debugw("yielded to peer's claim", "winner", winner.ClaimNumber, "ours", m.claimNumber)
		return Tick{Outcome: OutcomeYieldedToPeer}, nil
	}

	ownClaim, ok := m.registry.Get(m.claimNumber)
	if !ok {
		return Tick{}, errors.Errorf("own claim %d not found in registry", m.claimNumber)
	}

	w := m.wallet
	address := w.PrimaryAddress()
	confirmed := m.pool.Pending()
	rewardState := m.state.RewardState()
	claimMap := map[uint64]*claim.Claim{}
	for _, c := range m.registry.All() {
		claimMap[c.ClaimNumber] = c
	}

	nextAllocated := m.registry.Mint(w.PubkeyHex(), address, now.Add(m.maturity))

	candidate, err := block.Mine(
		w.PrivateKey(), w.PubkeyHex(), address,
		ownClaim, lastBlock, confirmed, rewardState,
		claimMap, m.neighbors, nextAllocated, m.rng,
	)
	if err != nil {
		return Tick{}, errors.Wrap(err, "mine candidate block")
	}

	return Tick{Outcome: OutcomeBlockMined, Block: candidate, Claim: nextAllocated}, nil
}

// CommitGenesis accepts a genesis block (mined locally or received from the
// bootstrap peer) into the ledger (spec.md §4.7 step 1).
func (m *Miner) CommitGenesis(b *block.Block, uts [16]byte) error {
	rewardState := m.state.RewardState()
	if err := m.chain.AcceptGenesis(b, rewardState, uts); err != nil {
		return err
	}
	for _, t := range b.Txns {
		m.pool.Confirm([]string{t.ID})
		m.pool.Archive([]string{t.ID})
	}
	return nil
}

// CommitOwnBlock commits a block this node mined. Callers must not invoke
// it before the quorum confirms the block (spec.md §4.7 step 3: "On receipt
// of a block it mined, defer commit until quorum returns confirmation");
// core/node's ProposeBlock/ReceiveBlockVote own that gating and call here
// only on a confirmed result. minerID identifies this node for the
// InvalidBlock notice, should commit unexpectedly fail.
func (m *Miner) CommitOwnBlock(b *block.Block, minerID string) error {
	return m.commit(b, minerID)
}

// CommitPeerBlock validates and, if valid, commits a block proposed by
// another node (spec.md §4.7 step 3: "On receipt of a peer's block, run
// valid_block; if valid, commit locally and set last_block").
func (m *Miner) CommitPeerBlock(b *block.Block, minerID string) error {
	if err := m.commit(b, minerID); err != nil {
		return err
	}
	m.mu.Lock()
	m.mining = true
	m.mu.Unlock()
	return nil
}

func (m *Miner) commit(b *block.Block, minerID string) error {
	rewardState := m.state.RewardState()
	claims := m.registry.All()
	var uts [16]byte
	copy(uts[:], []byte("vrrb-core-uts-v1"))

	accepted, err := m.chain.Accept(b, claims, rewardState, uts, minerID)
	if err != nil {
		return err
	}
	for _, commited := range accepted {
		txnIDs := make([]string, 0, len(commited.Txns))
		for id := range commited.Txns {
			txnIDs = append(txnIDs, id)
		}
		m.pool.Confirm(txnIDs)
		m.pool.Archive(txnIDs)
		for _, c := range commited.OwnedClaims {
			m.registry.Insert(c)
		}
	}
	return nil
}
