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

package quorum

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessConfirmsAtTwoThirds(t *testing.T) {
	q := New(NewStakeIndex())
	for i := 0; i < 2; i++ {
		q.NewValidator("txn-1", fmt.Sprintf("v%d", i), true)
	}
	q.NewValidator("txn-1", "v2", false)

	result := q.Process("txn-1")
	assert.True(t, result.Confirmed)
	assert.Empty(t, result.Slashed)
	assert.True(t, q.Confirmed("txn-1"))
}

func TestProcessSlashesDissentersBelowThresholdWithEnoughVotes(t *testing.T) {
	// spec.md S6: 30 validators, 10 valid=true, 20 valid=false. Not
	// confirmed; n_total=30>10, so the 10 valid=true dissenters are slashed.
	stakes := NewStakeIndex()
	q := New(stakes)

	var trueVoters []string
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("true-%d", i)
		stakes.Stake(name, uint64(i+1))
		q.NewValidator("txn-s6", name, true)
		trueVoters = append(trueVoters, name)
	}
	for i := 0; i < 20; i++ {
		q.NewValidator("txn-s6", fmt.Sprintf("false-%d", i), false)
	}

	result := q.Process("txn-s6")
	require.False(t, result.Confirmed)
	assert.Len(t, result.Slashed, 10)
	for _, name := range trueVoters {
		claims, ok := result.SlashedClaims[name]
		require.True(t, ok)
		assert.NotEmpty(t, claims)
		assert.Empty(t, stakes.ClaimsFor(name), "staked set must be cleared")
	}
}

func TestProcessDoesNotSlashBelowDissentThreshold(t *testing.T) {
	q := New(NewStakeIndex())
	q.NewValidator("txn-2", "v0", true)
	q.NewValidator("txn-2", "v1", false)

	result := q.Process("txn-2")
	assert.False(t, result.Confirmed)
	assert.Empty(t, result.Slashed, "n_total=2 is not > 10, no slashing yet")
}

func TestNewValidatorDeduplicatesRepeatedVote(t *testing.T) {
	q := New(NewStakeIndex())
	q.NewValidator("txn-3", "v0", true)
	q.NewValidator("txn-3", "v0", false) // repeated vote from same validator ignored

	result := q.Process("txn-3")
	assert.Equal(t, 1, result.NTotal)
	assert.Equal(t, 1, result.NValid)
}

func TestIsValidUnknownModeIsProtocolError(t *testing.T) {
	_, err := IsValid(Mode("Bogus"), TxnSnapshot{})
	assert.Error(t, err)
}

func TestIsValidMismatchedSnapshotIsProtocolError(t *testing.T) {
	_, err := IsValid(ModeTxn, ClaimHomesteadSnapshot{})
	assert.Error(t, err)
}

func TestTxnSnapshotValid(t *testing.T) {
	ok, err := IsValid(ModeTxn, TxnSnapshot{
		SignatureValid: true,
		SenderKnown:    true,
		ReceiverKnown:  true,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}
