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

package txn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
)

func TestNewTxnIDsAreUnique(t *testing.T) {
	a := New("s", "pk", "r", bigutil.FromUint64(1))
	b := New("s", "pk", "r", bigutil.FromUint64(1))
	assert.NotEqual(t, a.ID, b.ID)
}

// spec.md §8 invariant 8: from_bytes(as_bytes(x)) == x, for Txn. The
// signature must still verify after the round trip.
func TestTxnCanonicalRoundTripPreservesSignature(t *testing.T) {
	priv, _, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	pub := vrrbcrypto.PubKeyHex(priv.PubKey())

	in := New("addr-a", pub, "addr-b", bigutil.FromUint64(15))
	in.Sign(priv)
	require.True(t, in.VerifySignature())

	raw, err := in.MarshalCanonical()
	require.NoError(t, err)

	var out Txn
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, 0, in.Amount.Cmp(out.Amount))
	assert.True(t, out.VerifySignature())
}
