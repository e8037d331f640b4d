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

package node

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/block"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/core/ledger"
	"github.com/vrrb-labs/vrrb-core/core/miner"
)

func newTestNode(t *testing.T, seed int64) *Node {
	t.Helper()
	n, err := New("node-"+time.Now().String(), rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return n
}

func TestGetStateSelfBootstrapsWithoutPeers(t *testing.T) {
	n := newTestNode(t, 1)
	require.NoError(t, n.GetState())
	n.MineBlock()
	tick, err := n.Miner.Tick()
	require.NoError(t, err)
	require.Equal(t, miner.OutcomeGenesisMined, tick.Outcome)
}

// Restore repopulates the claim registry from the ledger's persisted claims
// (spec.md §4.4 `restore`), since the registry itself is never persisted.
func TestRestoreRepopulatesRegistryFromState(t *testing.T) {
	n := newTestNode(t, 20)
	c := n.Registry.Mint(n.Wallet.PubkeyHex(), n.Wallet.PrimaryAddress(), time.Now().Add(time.Hour))
	n.State.UpsertClaim(c)

	raw, err := n.State.AsBytes()
	require.NoError(t, err)
	restoredState, err := ledger.FromBytes(raw)
	require.NoError(t, err)

	restored, err := Restore("restored-node", rand.New(rand.NewSource(21)), restoredState)
	require.NoError(t, err)

	got, ok := restored.Registry.Get(c.ClaimNumber)
	require.True(t, ok)
	require.Equal(t, c.Hash, got.Hash)
}

func TestGetStateReturnsInsufficientPeersWhenConnected(t *testing.T) {
	n := newTestNode(t, 2)
	n.SetPeerCount(func() int { return 3 })
	err := n.GetState()
	require.ErrorIs(t, err, errs.ErrInsufficientPeers)
}

// spec.md S2: A (balance 1000) sends 15 to B; pool admits the txn.
func TestSendTxnAdmitsIntoPool(t *testing.T) {
	n := newTestNode(t, 3)
	sender := n.Wallet.PrimaryAddress()
	n.State.SeedAccount(sender, bigutil.FromUint64(1000))

	tx, err := n.SendTxn(0, "receiver-addr", bigutil.FromUint64(15))
	require.NoError(t, err)
	require.Len(t, n.Pool.Pending(), 1)
	require.Equal(t, tx.ID, n.Pool.Pending()[0].ID)
}

// spec.md S3: a second txn from the same sender that would double-spend is
// rejected by the pool.
func TestSendTxnRejectsDoubleSpend(t *testing.T) {
	n := newTestNode(t, 4)
	sender := n.Wallet.PrimaryAddress()
	n.State.SeedAccount(sender, bigutil.FromUint64(20))

	_, err := n.SendTxn(0, "receiver-a", bigutil.FromUint64(15))
	require.NoError(t, err)

	_, err = n.SendTxn(0, "receiver-b", bigutil.FromUint64(15))
	require.ErrorIs(t, err, errs.ErrInvalidTxn)
}

func TestReceiveTxnDeduplicates(t *testing.T) {
	a := newTestNode(t, 5)
	sender := a.Wallet.PrimaryAddress()
	a.State.SeedAccount(sender, bigutil.FromUint64(1000))

	tx, err := a.Wallet.SendTxn(0, "receiver", bigutil.FromUint64(10))
	require.NoError(t, err)

	b := newTestNode(t, 6)
	b.State.SeedAccount(sender, bigutil.FromUint64(1000))

	require.NoError(t, b.ReceiveTxn(tx))
	require.NoError(t, b.ReceiveTxn(tx)) // silently deduplicated, not an error
	require.Len(t, b.Pool.Pending(), 1)
}

// A seller signs, a buyer confirms: the transfer applies and ownership
// bookkeeping moves from seller to buyer.
func TestSellAndAcquireClaimRoundTrip(t *testing.T) {
	seller := newTestNode(t, 7)
	buyer := newTestNode(t, 8)

	c := seller.Registry.Mint(seller.Wallet.PubkeyHex(), seller.Wallet.PrimaryAddress(), time.Now().Add(365*24*time.Hour))
	seller.State.UpsertClaim(c)
	seller.Wallet.AddOwnedClaim(c.ClaimNumber)

	// Simulate the claim being known to the buyer (e.g. via gossip).
	buyer.Registry.Insert(c)

	sellerSig, err := seller.SellClaim(c.ClaimNumber, buyer.Wallet.PubkeyHex(), 500)
	require.NoError(t, err)

	pending, err := buyer.AcquireClaim(500, 0, c.ClaimNumber)
	require.NoError(t, err)
	require.Equal(t, c.ClaimNumber, pending.Claim.ClaimNumber)

	require.NoError(t, buyer.ConfirmAcquisition(pending, sellerSig))
	require.Equal(t, buyer.Wallet.PubkeyHex(), pending.Claim.Owner())

	seller.FinalizeSale(c.ClaimNumber)
	require.Empty(t, seller.Stakes.ClaimsFor(seller.Wallet.PubkeyHex()))
}

func TestSellClaimRejectsNonOwner(t *testing.T) {
	owner := newTestNode(t, 9)
	other := newTestNode(t, 10)

	c := owner.Registry.Mint(owner.Wallet.PubkeyHex(), owner.Wallet.PrimaryAddress(), time.Now().Add(time.Hour))
	other.Registry.Insert(c)

	_, err := other.SellClaim(c.ClaimNumber, other.Wallet.PubkeyHex(), 100)
	require.ErrorIs(t, err, errs.ErrInvalidClaimAcquisition)
}

// spec.md S5: claim 2 expires; claims {1,2,3,4} renumber to {1,2,3}.
func TestReceiveExpiredClaimRenumbers(t *testing.T) {
	n := newTestNode(t, 11)
	expiry := time.Now().Add(time.Hour)
	for i := 0; i < 4; i++ {
		n.Registry.Mint(n.Wallet.PubkeyHex(), n.Wallet.PrimaryAddress(), expiry)
	}

	n.ReceiveExpiredClaim(2)

	var numbers []uint64
	for _, c := range n.Registry.All() {
		numbers = append(numbers, c.ClaimNumber)
	}
	require.Equal(t, []uint64{1, 2, 3}, numbers)
}

// spec.md §4.7 step 3: an own mined block commits only through quorum
// confirmation. Solo, the node's own vote is the whole electorate, so
// ProposeBlock confirms and commits immediately.
func TestOwnBlockCommitsThroughQuorum(t *testing.T) {
	n := newTestNode(t, 12)
	require.NoError(t, n.GetState())
	n.MineBlock()

	tick, err := n.Miner.Tick()
	require.NoError(t, err)
	require.Equal(t, miner.OutcomeGenesisMined, tick.Outcome)
	var uts [16]byte
	require.NoError(t, n.Miner.CommitGenesis(tick.Block, uts))

	// Tick until the claim map yields a mined block (nonce-up self-heal may
	// take a few rounds).
	var mined *block.Block
	for i := 0; i < 200 && mined == nil; i++ {
		tick, err = n.Miner.Tick()
		require.NoError(t, err)
		if tick.Outcome == miner.OutcomeBlockMined {
			mined = tick.Block
		}
	}
	require.NotNil(t, mined, "miner never produced a height-1 block")

	require.NoError(t, n.ReceiveBlock(mined, true, n.ID))
	require.True(t, n.Quorum.Confirmed("block:quorum:"+mined.Hash()))

	last, ok := n.State.LastBlock()
	require.True(t, ok)
	require.Equal(t, uint64(1), last.Height())
}

// A block vote on an unconfirmed proposal leaves the tip untouched until
// 2/3 is reached, then commits the pending block.
func TestReceiveBlockVoteDefersCommitUntilConfirmed(t *testing.T) {
	n := newTestNode(t, 13)
	require.NoError(t, n.GetState())
	n.MineBlock()

	tick, err := n.Miner.Tick()
	require.NoError(t, err)
	var uts [16]byte
	require.NoError(t, n.Miner.CommitGenesis(tick.Block, uts))

	var mined *block.Block
	for i := 0; i < 200 && mined == nil; i++ {
		tick, err = n.Miner.Tick()
		require.NoError(t, err)
		if tick.Outcome == miner.OutcomeBlockMined {
			mined = tick.Block
		}
	}
	require.NotNil(t, mined)

	// Stage the proposal by hand so this node's own vote is not yet cast:
	// two dissenting votes keep it below 2/3 once the self vote arrives.
	require.NoError(t, n.ReceiveBlockVote(mined.Hash(), "peer-a", false))
	require.NoError(t, n.ReceiveBlockVote(mined.Hash(), "peer-b", false))
	require.NoError(t, n.ProposeBlock(mined))

	last, ok := n.State.LastBlock()
	require.True(t, ok)
	require.Equal(t, uint64(0), last.Height(), "1/3 valid must not commit")

	// Enough confirming peers arrive to cross 2/3 (6 of 8).
	for _, peer := range []string{"peer-c", "peer-d", "peer-e", "peer-f", "peer-g"} {
		require.NoError(t, n.ReceiveBlockVote(mined.Hash(), peer, true))
	}

	last, ok = n.State.LastBlock()
	require.True(t, ok)
	require.Equal(t, uint64(1), last.Height())
}

// spec.md S6 end to end: a txn subject with 10 valid=true and 20
// valid=false votes is rejected, the dissenters are slashed, and every
// claim they staked is reset to the unowned state in registry and ledger.
func TestTxnQuorumRejectionSlashesAndResetsClaims(t *testing.T) {
	n := newTestNode(t, 14)
	expiry := time.Now().Add(time.Hour)

	var staked []uint64
	for i := 0; i < 10; i++ {
		voter := fmt.Sprintf("true-%d", i)
		c := n.Registry.Mint(voter, "addr-"+voter, expiry)
		n.State.UpsertClaim(c)
		n.Stakes.Stake(voter, c.ClaimNumber)
		staked = append(staked, c.ClaimNumber)
		n.ReceiveTxnValidator("txn-s6", voter, true)
	}
	for i := 0; i < 20; i++ {
		n.ReceiveTxnValidator("txn-s6", fmt.Sprintf("false-%d", i), false)
	}

	for i, number := range staked {
		voter := fmt.Sprintf("true-%d", i)
		require.Empty(t, n.Stakes.ClaimsFor(voter), "staked set must be cleared")
		c, ok := n.Registry.Get(number)
		require.True(t, ok, "slashed claim keeps its claim_number")
		require.Empty(t, c.Owner(), "slashed claim must be unowned")
		sc, ok := n.State.Claim(number)
		require.True(t, ok)
		require.Empty(t, sc.OwnerPubkey)
	}
}
