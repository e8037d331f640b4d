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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/ledger"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
)

// chainFixture stands up a committed genesis with its homestead claim
// nonce-d up until it has a live pointer at the genesis block's declared
// next nonce, so Mine can produce the height-1 block deterministically.
func chainFixture(t *testing.T, seed int64) (*Chain, *ledger.State, *Block, *claim.Claim, *vrrbcrypto.PrivateKey, string, *rand.Rand) {
	t.Helper()
	priv, pub, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	pubHex := vrrbcrypto.PubKeyHex(pub)

	state := ledger.New()
	chain := NewChain(state, nil)
	rng := rand.New(rand.NewSource(seed))

	g, c, err := Genesis(state.RewardState(), pubHex, "addr-miner", priv, rng.Uint64(), rng)
	require.NoError(t, err)

	var uts [16]byte
	require.NoError(t, chain.AcceptGenesis(g, state.RewardState(), uts))
	state.UpsertClaim(c)

	for {
		if _, ok := c.Pointer(g.Header.NextBlockNonce); ok {
			break
		}
		c.NonceUp()
	}
	return chain, state, g, c, priv, pubHex, rng
}

// spec.md §8 invariant 1: a block produced by the eligible claim passes
// valid_block and commits.
func TestAcceptCommitsMinedBlock(t *testing.T) {
	chain, state, g, c, priv, pubHex, rng := chainFixture(t, 3)

	claimMap := map[uint64]*claim.Claim{c.ClaimNumber: c}
	b, err := Mine(priv, pubHex, "addr-miner", c, g, nil, state.RewardState(), claimMap, nil, nil, rng)
	require.NoError(t, err)

	var uts [16]byte
	accepted, err := chain.Accept(b, state.Claims(), state.RewardState(), uts, "miner-id")
	require.NoError(t, err)
	require.Len(t, accepted, 1)

	tip, ok := state.LastBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(1), tip.Height())

	archived, ok := state.Archived(1)
	require.True(t, ok)
	assert.Equal(t, b.Hash(), archived.Hash())
}

// spec.md S4: a block proposed by a claim that does not hold the lowest
// pointer is never produced; Mine refuses outright.
func TestMineRejectsNonLowestClaim(t *testing.T) {
	_, state, g, c, priv, pubHex, rng := chainFixture(t, 4)

	future := time.Now().Add(time.Hour)
	rivals := map[uint64]*claim.Claim{c.ClaimNumber: c}
	for n := uint64(2); n <= 3; n++ {
		rc := claim.New(n, pubHex, "addr-rival", future)
		for {
			if _, ok := rc.Pointer(g.Header.NextBlockNonce); ok {
				break
			}
			rc.NonceUp()
		}
		rivals[n] = rc
	}

	winner, err := lowestAmong(rivals, g.Header.NextBlockNonce, 1, time.Now())
	require.NoError(t, err)

	var loser *claim.Claim
	for _, rc := range rivals {
		if rc.ClaimNumber != winner.ClaimNumber {
			loser = rc
			break
		}
	}
	require.NotNil(t, loser)

	_, err = Mine(priv, pubHex, "addr-rival", loser, g, nil, state.RewardState(), rivals, nil, nil, rng)
	assert.Error(t, err)
}

func TestValidateRejectsWrongLastHash(t *testing.T) {
	chain, state, g, c, priv, pubHex, rng := chainFixture(t, 5)

	claimMap := map[uint64]*claim.Claim{c.ClaimNumber: c}
	b, err := Mine(priv, pubHex, "addr-miner", c, g, nil, state.RewardState(), claimMap, nil, nil, rng)
	require.NoError(t, err)

	b.Header.LastHash = "0000"

	var uts [16]byte
	_, err = chain.Accept(b, state.Claims(), state.RewardState(), uts, "miner-id")
	assert.Error(t, err)
	assert.True(t, chain.Invalid(b.Hash()), "rejected block must land in the invalid cache")
}

func TestValidateRejectsMismatchedBlockReward(t *testing.T) {
	chain, state, g, c, priv, pubHex, rng := chainFixture(t, 6)

	claimMap := map[uint64]*claim.Claim{c.ClaimNumber: c}
	b, err := Mine(priv, pubHex, "addr-miner", c, g, nil, state.RewardState(), claimMap, nil, nil, rng)
	require.NoError(t, err)

	b.Header.BlockReward.Category = reward.Motherlode

	var uts [16]byte
	_, err = chain.Accept(b, state.Claims(), state.RewardState(), uts, "miner-id")
	assert.Error(t, err)
}

func TestAcceptBuffersFutureBlock(t *testing.T) {
	chain, state, g, c, priv, pubHex, rng := chainFixture(t, 7)

	claimMap := map[uint64]*claim.Claim{c.ClaimNumber: c}
	b, err := Mine(priv, pubHex, "addr-miner", c, g, nil, state.RewardState(), claimMap, nil, nil, rng)
	require.NoError(t, err)

	b.Header.BlockHeight = 5 // far ahead of the height-0 tip

	var uts [16]byte
	accepted, err := chain.Accept(b, state.Claims(), state.RewardState(), uts, "miner-id")
	require.NoError(t, err)
	assert.Empty(t, accepted, "a future block is buffered, not committed")

	tip, ok := state.LastBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(0), tip.Height(), "tip must stay at genesis")
}
