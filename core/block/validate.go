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
	"time"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/core/ledger"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/internal/metrics"
)

// Validate implements valid_block(candidate, last_block, network_state,
// reward_state) (spec.md §4.5), checks 1-7 in order. claims is the set of
// network-known claims visible at validation time (ledger.State.Claims() or
// ledger.Pending.Claims()); pending is a fresh clone of the pre-block ledger
// used for rule 6 (double-spend/balance) and rule 7 (state hash).
func Validate(candidate, lastBlock *Block, claims []*claim.Claim, rewardState *reward.State, pending *ledger.Pending, uts [16]byte) error {
	if err := validateCommon(candidate, lastBlock, claims, rewardState, pending, uts); err != nil {
		metrics.BlocksRejected.Inc(1)
		return err
	}
	return nil
}

// ValidateGenesis implements valid_genesis (spec.md §4.5): additionally
// requires block_height == 0 and the fixed genesis last_hash.
func ValidateGenesis(candidate *Block, rewardState *reward.State, pending *ledger.Pending, uts [16]byte) error {
	if candidate.Header.BlockHeight != 0 {
		metrics.BlocksRejected.Inc(1)
		return errors.Wrap(errs.ErrInvalidBlock, "genesis block_height must be 0")
	}
	if candidate.Header.LastHash != GenesisLastHash {
		metrics.BlocksRejected.Inc(1)
		return errors.Wrap(errs.ErrInvalidBlock, "genesis last_hash mismatch")
	}
	if !reward.ValidReward(candidate.Header.BlockReward, rewardState, 0) {
		metrics.BlocksRejected.Inc(1)
		return errors.Wrap(errs.ErrInvalidBlock, "genesis block_reward invalid")
	}
	return nil
}

func validateCommon(candidate, lastBlock *Block, claims []*claim.Claim, rewardState *reward.State, pending *ledger.Pending, uts [16]byte) error {
	// Rule 1: height is last_block.height+1.
	if candidate.Header.BlockHeight != lastBlock.Header.BlockHeight+1 {
		return errors.Wrap(errs.ErrInvalidBlock, "block_height is not last_block.height+1")
	}
	// Rule 2: last_hash matches.
	if candidate.Header.LastHash != lastBlock.hash {
		return errors.Wrap(errs.ErrInvalidBlock, "last_hash does not match the local tip")
	}

	// Rule 3: miner's claim verifies, is unexpired, and its pointer at
	// last_block.header.next_block_nonce is the minimum across claims.
	now := time.Now()
	c := candidate.Header.Claim
	if c == nil {
		return errors.Wrap(errs.ErrInvalidBlock, "candidate carries no claim")
	}
	if c.Expired(now) {
		return errors.Wrap(errs.ErrInvalidBlock, "miner's claim has expired")
	}
	if err := c.VerifyCustodyChain(); err != nil {
		return errors.Wrapf(errs.ErrInvalidBlock, "miner's claim custody chain invalid: %v", err)
	}
	claimMap := make(map[uint64]*claim.Claim, len(claims))
	for _, cl := range claims {
		claimMap[cl.ClaimNumber] = cl
	}
	claimMap[c.ClaimNumber] = c
	// Claims first allocated by this candidate join the pool at the next
	// block (spec.md §3: minted by the block-N miner for the block-N+1
	// lottery); they are not eligible for the block minting them.
	for number := range candidate.OwnedClaims {
		if number != c.ClaimNumber {
			delete(claimMap, number)
		}
	}
	winner, err := lowestAmong(claimMap, lastBlock.Header.NextBlockNonce, candidate.Header.BlockHeight, now)
	if err != nil {
		return errors.Wrap(errs.ErrInvalidBlock, "no lowest pointer among known claims")
	}
	if winner.ClaimNumber != c.ClaimNumber {
		return errors.Wrap(errs.ErrInvalidBlock, "candidate's claim is not the lowest pointer")
	}

	// Rule 4: block_reward matches last_block's declared next_block_reward.
	if candidate.Header.BlockReward.Category != lastBlock.Header.NextBlockReward.Category ||
		candidate.Header.BlockReward.Amount.Cmp(lastBlock.Header.NextBlockReward.Amount) != 0 {
		return errors.Wrap(errs.ErrInvalidBlock, "block_reward does not match last_block.next_block_reward")
	}

	// Rule 5: valid_reward holds for the proposed next reward's category.
	if !reward.ValidReward(candidate.Header.NextBlockReward, rewardState, candidate.Header.BlockHeight+1) {
		return errors.Wrap(errs.ErrInvalidBlock, "next_block_reward fails valid_reward")
	}

	// Rule 6: every txn verifies individually and collectively (no
	// double-spend in the batch, sufficient balance under the pre-block
	// ledger).
	debited := map[string]bool{}
	for id, t := range candidate.Txns {
		if id != t.ID {
			return errors.Wrap(errs.ErrInvalidBlock, "txn keyed under the wrong id")
		}
		if !t.VerifySignature() {
			return errors.Wrap(errs.ErrInvalidBlock, "txn signature does not verify")
		}
		balance, known := pending.Balance(t.SenderAddress)
		if !known || t.Amount.Cmp(balance) > 0 {
			return errors.Wrap(errs.ErrInvalidBlock, "txn amount exceeds sender balance")
		}
		if debited[t.ID] {
			return errors.Wrap(errs.ErrInvalidBlock, "duplicate txn id in batch")
		}
		debited[t.ID] = true
		pending.ApplyTxn(t)
	}

	// Rule 7: rebuilding a pending ledger and applying candidate yields a
	// state whose hash equals the declared state hash, when present.
	if candidate.Header.StateHash != "" {
		for _, cl := range candidate.OwnedClaims {
			pending.ApplyClaim(cl)
		}
		pending.ApplyReward(candidate.Header.NextBlockReward)
		got, err := pending.Hash(uts)
		if err != nil {
			return errors.Wrap(errs.ErrSerialization, "hash pending state")
		}
		if got != candidate.Header.StateHash {
			return errors.Wrap(errs.ErrInvalidBlock, "declared state_hash does not match rebuilt ledger")
		}
	}

	return nil
}
