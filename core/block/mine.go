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
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/core/txn"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
	"github.com/vrrb-labs/vrrb-core/internal/metrics"
)

// Neighbors is an optional sibling-block hash set used to break ties across
// equal-height competing proposals (spec.md §3 "neighbor_hash (optional,
// for sibling tie-break)").
type Neighbors []string

func (n Neighbors) hash() string {
	if len(n) == 0 {
		return ""
	}
	joined := ""
	for _, h := range n {
		joined += h
	}
	return vrrbcrypto.HashHex([]byte(joined))
}

// Mine returns a candidate block iff c is the eligible miner for
// lastBlock's declared next_block_nonce (spec.md §4.5 `Block::mine`):
// c.ExpirationTime is in the future, c's custody chain verifies, and c's
// pointer at that nonce is the minimum across claimMap.
func Mine(
	priv *vrrbcrypto.PrivateKey,
	minerPubkey, minerAddress string,
	c *claim.Claim,
	lastBlock *Block,
	confirmedTxns []*txn.Txn,
	rewardState *reward.State,
	claimMap map[uint64]*claim.Claim,
	neighbors Neighbors,
	nextAllocated *claim.Claim,
	rng *rand.Rand,
) (*Block, error) {
	now := time.Now()
	if c.Expired(now) {
		return nil, errors.Wrap(errs.ErrInvalidBlock, "miner's claim has expired")
	}
	if err := c.VerifyCustodyChain(); err != nil {
		return nil, errors.Wrapf(errs.ErrInvalidBlock, "miner's claim custody chain invalid: %v", err)
	}

	nonce := lastBlock.Header.NextBlockNonce
	winner, err := lowestAmong(claimMap, nonce, lastBlock.Header.BlockHeight+1, now)
	if err != nil {
		metrics.NoLowestPointer.Inc(1)
		return nil, err
	}
	if winner.ClaimNumber != c.ClaimNumber {
		return nil, errors.Wrap(errs.ErrInvalidBlock, "caller's claim is not the lowest pointer")
	}

	txns := make(map[string]*txn.Txn, len(confirmedTxns))
	for _, t := range confirmedTxns {
		txns[t.ID] = t
	}

	nextNonce := rng.Uint64()
	nextReward := reward.Lottery(rewardState, lastBlock.Header.BlockHeight+2, rng)

	h := Header{
		LastHash:        lastBlock.hash,
		BlockNonce:      nonce,
		NextBlockNonce:  nextNonce,
		BlockHeight:     lastBlock.Header.BlockHeight + 1,
		Timestamp:       now.UnixNano(),
		Claim:           c,
		BlockReward:     lastBlock.Header.NextBlockReward,
		NextBlockReward: nextReward,
		NeighborHash:    neighbors.hash(),
	}
	if h.BlockReward.MinerAddress == "" {
		h.BlockReward.MinerAddress = minerAddress
	}

	payload, err := signingPayload(h.Timestamp, h.LastHash, txns, c, lastBlock.Header.NextBlockReward, minerAddress, nextReward)
	if err != nil {
		return nil, err
	}
	h.Signature = hexEncode(vrrbcrypto.Sign(priv, payload))

	owned := map[uint64]*claim.Claim{}
	if nextAllocated != nil {
		owned[nextAllocated.ClaimNumber] = nextAllocated
	}

	b := &Block{
		Header:      h,
		Txns:        txns,
		OwnedClaims: owned,
	}
	hash, err := computeHash(b)
	if err != nil {
		return nil, err
	}
	b.hash = hash
	metrics.BlocksMined.Inc(1)
	log.Debugw("mined block", "height", h.BlockHeight, "claim", c.ClaimNumber, "hash", hash)
	return b, nil
}

func lowestAmong(claimMap map[uint64]*claim.Claim, nonce uint64, blockHeight uint64, now time.Time) (*claim.Claim, error) {
	type candidate struct {
		claim   *claim.Claim
		pointer [16]byte
	}
	var live []candidate
	for _, c := range claimMap {
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
	best := live[0]
	var tied []*claim.Claim
	for _, cand := range live {
		cmp := vrrbcrypto.ComparePointers(cand.pointer, best.pointer)
		if cmp < 0 {
			best = cand
		}
	}
	for _, cand := range live {
		if vrrbcrypto.ComparePointers(cand.pointer, best.pointer) == 0 {
			tied = append(tied, cand.claim)
		}
	}
	if len(tied) == 1 {
		return tied[0], nil
	}
	return claim.BreakTie(tied, blockHeight), nil
}
