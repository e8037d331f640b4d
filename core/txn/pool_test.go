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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
)

type fakeBalances map[string]bigutil.U128

func (f fakeBalances) Balance(addr string) (bigutil.U128, bool) {
	b, ok := f[addr]
	return b, ok
}

func mustTxn(t *testing.T, priv *vrrbcrypto.PrivateKey, sender, receiver string, amount uint64) *Txn {
	pub := vrrbcrypto.PubKeyHex(priv.PubKey())
	tx := New(sender, pub, receiver, bigutil.FromUint64(amount))
	tx.Sign(priv)
	return tx
}

func TestAdmitRejectsBadSignature(t *testing.T) {
	priv, _, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	tx := mustTxn(t, priv, "addrA", "addrB", 10)
	tx.Signature = "00"

	pool := NewPool()
	balances := fakeBalances{"addrA": bigutil.FromUint64(1000)}
	err = pool.Admit(tx, balances)
	assert.Error(t, err)
}

func TestAdmitRejectsUnknownSender(t *testing.T) {
	priv, _, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	tx := mustTxn(t, priv, "addrA", "addrB", 10)

	pool := NewPool()
	err = pool.Admit(tx, fakeBalances{})
	assert.Error(t, err)
}

func TestDoubleSpendOnlyOneAdmitted(t *testing.T) {
	// spec.md S3: sender with balance 20 emits two txns of 15 each in the
	// same pool window; exactly one is admitted.
	priv, _, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	sender := "addrA"
	pub := vrrbcrypto.PubKeyHex(priv.PubKey())
	_ = pub

	pool := NewPool()
	balances := fakeBalances{sender: bigutil.FromUint64(20)}

	tx1 := mustTxn(t, priv, sender, "addrB", 15)
	tx2 := mustTxn(t, priv, sender, "addrC", 15)

	err1 := pool.Admit(tx1, balances)
	err2 := pool.Admit(tx2, balances)

	assert.NoError(t, err1)
	assert.Error(t, err2)
	assert.Len(t, pool.Pending(), 1)
}

func TestConfirmMovesTxnOutOfPending(t *testing.T) {
	priv, _, err := vrrbcrypto.GenerateKeypair()
	require.NoError(t, err)
	sender := "addrA"
	pool := NewPool()
	balances := fakeBalances{sender: bigutil.FromUint64(1000)}
	tx := mustTxn(t, priv, sender, "addrB", 15)
	require.NoError(t, pool.Admit(tx, balances))

	pool.Confirm([]string{tx.ID})
	assert.Empty(t, pool.Pending())

	pool.Archive([]string{tx.ID})
	assert.NotContains(t, pool.confirmed, tx.ID)
}
