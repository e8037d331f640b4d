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

package reward

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
)

func TestGenesisRewardOnlyValidAtHeightZero(t *testing.T) {
	s := Start()
	g := Reward{Category: Genesis, Amount: GenesisAmount}
	assert.True(t, ValidReward(g, s, 0))
	assert.False(t, ValidReward(g, s, 1))
}

func TestLotteryStaysWithinBracket(t *testing.T) {
	s := Start()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		r := Lottery(s, uint64(i+1), rng)
		b := Brackets[r.Category]
		amt := r.Amount.BigInt().Uint64()
		assert.GreaterOrEqual(t, amt, b.Low)
		assert.Less(t, amt, b.High)
		assert.True(t, ValidReward(r, s, 1))
	}
}

func TestValidRewardRejectsOutOfBracketAmount(t *testing.T) {
	s := Start()
	bad := Reward{Category: Flake, Amount: bigutil.FromUint64(9999)}
	assert.False(t, ValidReward(bad, s, 1))
}

func TestValidRewardRejectsExhaustedRareCategory(t *testing.T) {
	s := Start()
	s.RemainingMotherlodes = 0
	r := Reward{Category: Motherlode, Amount: bigutil.FromUint64(5000)}
	assert.False(t, ValidReward(r, s, 1))
}

func TestValidRewardRejectsFinalEpochOverrun(t *testing.T) {
	s := Start()
	s.Epoch = FinalEpochVeins + 1
	s.RemainingVeins = 1
	r := Reward{Category: Vein, Amount: bigutil.FromUint64(600)}
	assert.False(t, ValidReward(r, s, 1))
}

func TestValidRewardRejectsFinalEpochWithMultipleRemaining(t *testing.T) {
	s := Start()
	s.Epoch = FinalEpochVeins
	s.RemainingVeins = 2
	r := Reward{Category: Vein, Amount: bigutil.FromUint64(600)}
	assert.False(t, ValidReward(r, s, 1))
}

func TestRareCategoriesDecayIndependently(t *testing.T) {
	// The REDESIGN FLAG in spec.md §9: Nugget's decay constant must not
	// leak into Vein/Motherlode quotas.
	s := Start()
	assert.NotEqual(t, s.QuotaNugget, s.QuotaVein)
	assert.NotEqual(t, s.QuotaVein, s.QuotaMotherlode)
}

func TestAdvanceRollsEpochAtBoundary(t *testing.T) {
	s := Start()
	s.CurrentBlock = NBlocksPerEpoch - 1
	s.Advance()
	assert.Equal(t, uint64(2), s.Epoch)
	assert.Equal(t, uint64(2*NBlocksPerEpoch), s.NextEpochBlock)
}
