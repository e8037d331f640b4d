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

// Package reward implements the decaying, epoch-bounded reward lottery
// (spec.md §4.1).
package reward

import (
	"math"
	"math/rand"

	"github.com/vrrb-labs/vrrb-core/core/bigutil"
)

// Category is one of the six reward categories (spec.md §3).
type Category string

const (
	Flake      Category = "Flake"
	Grain      Category = "Grain"
	Nugget     Category = "Nugget"
	Vein       Category = "Vein"
	Motherlode Category = "Motherlode"
	Genesis    Category = "Genesis"
)

// GenesisAmount is the constant genesis reward (spec.md §3, §4.1).
var GenesisAmount = bigutil.FromUint64(200_000_000)

// NBlocksPerEpoch is the fixed epoch length (spec.md §4.1).
const NBlocksPerEpoch uint64 = 16_000_000

// Total supply and final epoch for each rare category, used by the decay
// formula (spec.md §4.1). The REDESIGN FLAG in spec.md §9 is resolved here:
// each category decays against its own final epoch, not Nugget's.
const (
	TotalNuggets     = 1_000_000
	TotalVeins       = 250_000
	TotalMotherlodes = 50_000

	FinalEpochNuggets     = 300
	FinalEpochVeins       = 200
	FinalEpochMotherlodes = 100
)

// Bracket is the half-open amount range [Low, High) a category draws from
// (spec.md §4.1 table).
type Bracket struct{ Low, High uint64 }

var Brackets = map[Category]Bracket{
	Flake:      {1, 8},
	Grain:      {8, 64},
	Nugget:     {64, 512},
	Vein:       {512, 4096},
	Motherlode: {4096, 32769},
}

// State is the RewardState of spec.md §3: current epoch, quotas, and
// remaining counts for the rare categories.
type State struct {
	CurrentBlock    uint64 `json:"current_block"`
	Epoch           uint64 `json:"epoch"`
	NextEpochBlock  uint64 `json:"next_epoch_block"`

	RemainingNuggets     uint64 `json:"remaining_nuggets"`
	RemainingVeins       uint64 `json:"remaining_veins"`
	RemainingMotherlodes uint64 `json:"remaining_motherlodes"`

	QuotaFlake      uint64 `json:"quota_flake"`
	QuotaGrain      uint64 `json:"quota_grain"`
	QuotaNugget     uint64 `json:"quota_nugget"`
	QuotaVein       uint64 `json:"quota_vein"`
	QuotaMotherlode uint64 `json:"quota_motherlode"`
}

// Start returns the RewardState for epoch 1, with quotas computed from the
// full remaining supply.
func Start() *State {
	s := &State{
		CurrentBlock:         0,
		Epoch:                1,
		NextEpochBlock:       NBlocksPerEpoch,
		RemainingNuggets:     TotalNuggets,
		RemainingVeins:       TotalVeins,
		RemainingMotherlodes: TotalMotherlodes,
	}
	s.recomputeQuotas()
	return s
}

// decay computes 10^((log10(1/total))/finalEpoch) * remaining, the
// exponential decay function of spec.md §4.1.
func decay(total uint64, finalEpoch uint64, remaining uint64) uint64 {
	if total == 0 || finalEpoch == 0 {
		return 0
	}
	fraction := math.Pow(10, math.Log10(1/float64(total))/float64(finalEpoch))
	consumed := fraction * float64(remaining)
	if consumed < 0 {
		return 0
	}
	return uint64(consumed)
}

func (s *State) recomputeQuotas() {
	s.QuotaNugget = decay(TotalNuggets, FinalEpochNuggets, s.RemainingNuggets)
	s.QuotaVein = decay(TotalVeins, FinalEpochVeins, s.RemainingVeins)
	s.QuotaMotherlode = decay(TotalMotherlodes, FinalEpochMotherlodes, s.RemainingMotherlodes)

	rareBlocks := s.QuotaNugget + s.QuotaVein + s.QuotaMotherlode
	var remainingBlocks uint64
	if NBlocksPerEpoch > rareBlocks {
		remainingBlocks = NBlocksPerEpoch - rareBlocks
	}
	s.QuotaFlake = remainingBlocks * 60 / 100
	s.QuotaGrain = remainingBlocks - s.QuotaFlake
}

// Advance moves the state forward by one block, rolling the epoch and
// recomputing quotas when NextEpochBlock is reached.
func (s *State) Advance() {
	s.CurrentBlock++
	if s.CurrentBlock >= s.NextEpochBlock {
		s.Epoch++
		s.NextEpochBlock += NBlocksPerEpoch
		s.recomputeQuotas()
	}
}

// quotaFor returns the current-epoch quota for category.
func (s *State) quotaFor(cat Category) uint64 {
	switch cat {
	case Flake:
		return s.QuotaFlake
	case Grain:
		return s.QuotaGrain
	case Nugget:
		return s.QuotaNugget
	case Vein:
		return s.QuotaVein
	case Motherlode:
		return s.QuotaMotherlode
	default:
		return 0
	}
}

func (s *State) remainingFor(cat Category) (remaining uint64, finalEpoch uint64, isRare bool) {
	switch cat {
	case Nugget:
		return s.RemainingNuggets, FinalEpochNuggets, true
	case Vein:
		return s.RemainingVeins, FinalEpochVeins, true
	case Motherlode:
		return s.RemainingMotherlodes, FinalEpochMotherlodes, true
	default:
		return 0, 0, false
	}
}

func (s *State) decrementRemaining(cat Category) {
	switch cat {
	case Nugget:
		if s.RemainingNuggets > 0 {
			s.RemainingNuggets--
		}
	case Vein:
		if s.RemainingVeins > 0 {
			s.RemainingVeins--
		}
	case Motherlode:
		if s.RemainingMotherlodes > 0 {
			s.RemainingMotherlodes--
		}
	}
}

// Reward is one emitted reward (spec.md §3).
type Reward struct {
	Category    Category      `json:"category"`
	Amount      bigutil.U128  `json:"amount"`
	MinerAddress string       `json:"miner_address"`
}

// Lottery draws a category weighted by current-epoch quotas, then a
// uniform amount in its bracket (spec.md §4.1). blockHeight==0 always
// yields Genesis. rng must be seeded identically across honest nodes that
// need to agree (e.g. in tests); production nodes use their own
// process-local randomness since the reward a miner proposes is re-derived
// and re-validated by every other node via valid_reward, not re-drawn.
func Lottery(s *State, blockHeight uint64, rng *rand.Rand) Reward {
	if blockHeight == 0 {
		return Reward{Category: Genesis, Amount: GenesisAmount}
	}

	weights := []struct {
		cat    Category
		weight uint64
	}{
		{Flake, s.QuotaFlake},
		{Grain, s.QuotaGrain},
		{Nugget, s.QuotaNugget},
		{Vein, s.QuotaVein},
		{Motherlode, s.QuotaMotherlode},
	}
	var total uint64
	for _, w := range weights {
		total += w.weight
	}
	cat := Flake
	if total > 0 {
		pick := uint64(rng.Int63n(int64(total)))
		var acc uint64
		for _, w := range weights {
			acc += w.weight
			if pick < acc {
				cat = w.cat
				break
			}
		}
	}

	b := Brackets[cat]
	amount := b.Low + uint64(rng.Int63n(int64(b.High-b.Low)))
	return Reward{Category: cat, Amount: bigutil.FromUint64(amount)}
}

// Claim records that a drawn reward was actually used (block accepted),
// decrementing the rare-category remaining count it came from.
func (s *State) Claim(cat Category) {
	s.decrementRemaining(cat)
}

// ValidReward implements valid_reward(cat, state) of spec.md §4.1: a Genesis
// reward is valid only at height 0 with exactly GenesisAmount; any other
// reward is rejected when its amount is outside the category's bracket, the
// current-epoch quota is zero, a rare category's remaining count is
// exhausted, or the final epoch is overrun.
func ValidReward(r Reward, s *State, blockHeight uint64) bool {
	if r.Category == Genesis {
		return blockHeight == 0 && r.Amount.Cmp(GenesisAmount) == 0
	}
	b, ok := Brackets[r.Category]
	if !ok {
		return false
	}
	amt := r.Amount.BigInt().Uint64()
	if amt < b.Low || amt >= b.High {
		return false
	}
	if s.quotaFor(r.Category) == 0 {
		return false
	}
	remaining, finalEpoch, isRare := s.remainingFor(r.Category)
	if isRare {
		if remaining == 0 {
			return false
		}
		if s.Epoch > finalEpoch {
			return false
		}
		if s.Epoch == finalEpoch && remaining > 1 {
			return false
		}
	}
	return true
}
