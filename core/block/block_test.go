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

	"github.com/stretchr/testify/require"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
)

func TestGenesisProducesBlockRewardAmount(t *testing.T) {
	priv, pub, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	b, c, err := Genesis(reward.Start(), vrrbcrypto.PubKeyHex(pub), "addr-1", priv, 1, rng)
	require.NoError(t, err)
	require.Equal(t, uint64(0), b.Header.BlockHeight)
	require.Equal(t, reward.Genesis, b.Header.BlockReward.Category)
	require.Equal(t, reward.GenesisAmount, b.Header.BlockReward.Amount)
	require.NotEmpty(t, b.hash)
	require.Equal(t, uint64(1), c.ClaimNumber)
}

// spec.md §8 invariant 8: from_bytes(as_bytes(x)) == x, for Block.
func TestBlockAsBytesFromBytesRoundTrip(t *testing.T) {
	priv, pub, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(2))

	b, _, err := Genesis(reward.Start(), vrrbcrypto.PubKeyHex(pub), "addr-1", priv, 1, rng)
	require.NoError(t, err)

	raw, err := b.AsBytes()
	require.NoError(t, err)

	restored, err := FromBytes(raw)
	require.NoError(t, err)

	require.Equal(t, b.Hash(), restored.Hash())
	require.Equal(t, b.Header, restored.Header)
}

func TestGenesisLastHashIsStable(t *testing.T) {
	require.NotEmpty(t, GenesisLastHash)
	require.Equal(t, GenesisLastHash, GenesisLastHash)
}

func TestTimeStrFormatsUTC(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano()
	require.Contains(t, timeStr(ts), "2024-01-01")
}
