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

package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
)

type fakeView map[string]bigutil.U128

func (f fakeView) Balance(addr string) (bigutil.U128, bool) {
	b, ok := f[addr]
	return b, ok
}

func TestNewWalletHasOnePrimaryAddress(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	assert.Len(t, w.Addresses(), 1)
	assert.Equal(t, w.Addresses()[0], w.PrimaryAddress())
}

func TestGenerateNewAddressIsDistinctAndOrdered(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	a1 := w.PrimaryAddress()
	a2 := w.GenerateNewAddress()
	assert.NotEqual(t, a1, a2)

	addrs := w.Addresses()
	require.Len(t, addrs, 2)
	assert.Equal(t, a1, addrs[0])
	assert.Equal(t, a2, addrs[1])

	got, ok := w.AddressAt(1)
	require.True(t, ok)
	assert.Equal(t, a2, got)
}

func TestSendTxnConstructsSignedTxnWithoutMutatingState(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	t1, err := w.SendTxn(0, "receiver-addr", bigutil.FromUint64(50))
	require.NoError(t, err)
	assert.True(t, t1.VerifySignature())
	assert.Equal(t, w.PrimaryAddress(), t1.SenderAddress)
}

func TestSendTxnRejectsUnknownIndex(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	_, err = w.SendTxn(5, "receiver-addr", bigutil.FromUint64(50))
	assert.Error(t, err)
}

func TestGetBalanceSumsAcrossOwnedAddresses(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	a1 := w.PrimaryAddress()
	a2 := w.GenerateNewAddress()

	view := fakeView{
		a1: bigutil.FromUint64(100),
		a2: bigutil.FromUint64(25),
	}
	total := w.GetBalance(view)
	assert.Equal(t, uint64(125), total.BigInt().Uint64())
}

func TestOwnedClaimsTracking(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	w.AddOwnedClaim(3)
	w.AddOwnedClaim(7)
	assert.ElementsMatch(t, []uint64{3, 7}, w.OwnedClaims())
	w.DropOwnedClaim(3)
	assert.ElementsMatch(t, []uint64{7}, w.OwnedClaims())
}
