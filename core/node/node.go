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

// Package node wires the wallet, pool, ledger, chain, miner, and quorum
// into the single dispatcher a transport or REPL drives (spec.md §5, §6).
// Lock order across the five shared resources it coordinates is fixed:
// wallet -> pool -> ledger -> reward -> miner (spec.md §5); reward lives
// inside ledger.State, and miner/pool/chain each guard their own state, so
// Node itself never holds more than one of their locks at a time.
package node

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/block"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/core/ledger"
	"github.com/vrrb-labs/vrrb-core/core/miner"
	"github.com/vrrb-labs/vrrb-core/core/quorum"
	"github.com/vrrb-labs/vrrb-core/core/txn"
	"github.com/vrrb-labs/vrrb-core/core/wallet"
	"github.com/vrrb-labs/vrrb-core/internal/metrics"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("node")

// inmemoryMessages bounds the gossip de-duplication cache, mirroring the
// teacher's knownMessages sizing in consensus/istanbul/backend/backend.go.
const inmemoryMessages = 4096

// Node is the single local participant: it owns one wallet, the shared
// pool/ledger/chain/registry, a miner driving its own claim, and the
// quorum aggregator validators report into.
type Node struct {
	ID string

	Wallet   *wallet.Wallet
	Pool     *txn.Pool
	State    *ledger.State
	Chain    *block.Chain
	Registry *claim.Registry
	Miner    *miner.Miner
	Quorum   *quorum.Quorum
	Stakes   *quorum.StakeIndex

	knownMessages *lru.ARCCache // hash -> true, de-duplicates gossip (spec.md §7)

	peerCount func() int // returns currently connected peer count; nil means "solo"

	pendingMu  sync.Mutex
	pendingOwn map[string]*block.Block // hash -> own mined block awaiting quorum confirmation
}

// New assembles a Node around a fresh wallet and empty shared state. rng
// seeds the miner's nonce/lottery draws (spec.md §9, process-local per
// node).
func New(id string, rng *rand.Rand) (*Node, error) {
	return newNode(id, rng, ledger.New())
}

// Restore assembles a Node around a fresh wallet but a previously persisted
// ledger.State (spec.md §4.4 `restore`). The claim registry is repopulated
// from state.Claims() since it is otherwise only ever gossiped in.
func Restore(id string, rng *rand.Rand, state *ledger.State) (*Node, error) {
	n, err := newNode(id, rng, state)
	if err != nil {
		return nil, err
	}
	for _, c := range state.Claims() {
		n.Registry.Insert(c)
	}
	return n, nil
}

func newNode(id string, rng *rand.Rand, state *ledger.State) (*Node, error) {
	w, err := wallet.New()
	if err != nil {
		return nil, errors.Wrap(err, "generate wallet")
	}

	pool := txn.NewPool()
	registry := claim.NewRegistry()
	stakes := quorum.NewStakeIndex()
	q := quorum.New(stakes)

	known, err := lru.NewARC(inmemoryMessages)
	if err != nil {
		return nil, errors.Wrap(err, "allocate message dedup cache")
	}

	n := &Node{
		ID:            id,
		Wallet:        w,
		Pool:          pool,
		State:         state,
		Registry:      registry,
		Quorum:        q,
		Stakes:        stakes,
		knownMessages: known,
		pendingOwn:    make(map[string]*block.Block),
	}
	n.Chain = block.NewChain(state, n.onInvalidBlock)
	n.Miner = miner.New(w, registry, pool, state, n.Chain, 0, rng)
	return n, nil
}

// SetPeerCount installs the callback Node uses to decide whether GetState
// should self-bootstrap (spec.md §5 "if no peers are connected, the local
// node self-completes ... and proceeds as the genesis peer").
func (n *Node) SetPeerCount(f func() int) {
	n.peerCount = f
}

func (n *Node) onInvalidBlock(height uint64, minerID string) {
	log.Warnw("invalid block notice", "height", height, "miner", minerID)
}

// Seen records msgHash in the dedup cache and reports whether it was
// already known, so callers can silently drop a repeat delivery (spec.md
// §7: "duplicate txn/claim/block messages are silently deduplicated").
func (n *Node) Seen(msgHash string) bool {
	if _, ok := n.knownMessages.Get(msgHash); ok {
		return true
	}
	n.knownMessages.Add(msgHash, true)
	return false
}

// GetState runs spec.md §5's GetState command: if peers are connected, the
// caller is expected to issue a wire GetState request instead; with no
// peers, this node self-bootstraps as the genesis peer.
func (n *Node) GetState() error {
	if n.peerCount != nil && n.peerCount() > 0 {
		return errs.ErrInsufficientPeers
	}
	n.Miner.SetInit(true)
	log.Infow("no peers connected, self-bootstrapping as genesis peer")
	return nil
}

// MineBlock flips the miner's mining flag on (REPL MINEBLK, spec.md §6).
func (n *Node) MineBlock() {
	n.Miner.SetMining(true)
}

// StopMine flips the miner's mining flag off (REPL STPMINE, spec.md §6,
// §5 "Cancellation").
func (n *Node) StopMine() {
	n.Miner.SetMining(false)
}

// SendTxn implements the REPL's SENDTXN command: build, sign, and admit a
// txn from the wallet address at fromIndex (spec.md §6, §4.8).
func (n *Node) SendTxn(fromIndex int, receiver string, amount bigutil.U128) (*txn.Txn, error) {
	t, err := n.Wallet.SendTxn(fromIndex, receiver, amount)
	if err != nil {
		return nil, err
	}
	if err := n.Pool.Admit(t, n.State); err != nil {
		return nil, err
	}
	return t, nil
}

// ReceiveTxn admits a txn gossiped in from a peer (wire.TxnMsg), silently
// dropping a repeat delivery.
func (n *Node) ReceiveTxn(t *txn.Txn) error {
	if n.Seen("txn:" + t.ID) {
		return nil
	}
	return n.Pool.Admit(t, n.State)
}

// JudgeTxn builds the Txn judgement snapshot a validator votes from
// (spec.md §4.6 table) and runs it through quorum.IsValid.
func (n *Node) JudgeTxn(t *txn.Txn) (bool, error) {
	balance, known := n.State.Balance(t.SenderAddress)
	snap := quorum.TxnSnapshot{
		SignatureValid:    t.VerifySignature(),
		Amount:            t.Amount,
		SenderBalance:     balance,
		SenderKnown:       known,
		ReceiverKnown:     true, // a receiver need not pre-exist to receive a first credit
		DoubleSpentInPool: n.Pool.WouldDoubleSpend(t, balance),
	}
	return quorum.IsValid(quorum.ModeTxn, snap)
}

// ReceiveClaimHomestead judges and, if valid, installs a freshly homesteaded
// claim gossiped in by a peer (spec.md §4.2, §4.6).
func (n *Node) ReceiveClaimHomestead(c *claim.Claim, maxMaturity time.Duration) (bool, error) {
	if n.Seen("claim:" + c.Hash) {
		return true, nil
	}
	_, alreadyOwned := n.State.Claim(c.ClaimNumber)
	snap := quorum.ClaimHomesteadSnapshot{
		NeverOwned:       !alreadyOwned,
		CustodyChainOK:   c.VerifyCustodyChain() == nil,
		ExpirationTime:   c.ExpirationTime,
		Now:              time.Now(),
		MaxMaturityBound: maxMaturity,
	}
	ok, err := quorum.IsValid(quorum.ModeClaimHomestead, snap)
	if err != nil {
		return false, err
	}
	if ok {
		n.Registry.Insert(c)
		n.State.UpsertClaim(c)
	}
	return ok, nil
}

// PendingAcquisition is an ACQRCLM request awaiting the seller's
// counter-signature, which only the seller's own node can produce
// (claim.Transfer verifies the seller's signature against the seller's
// pubkey; no node may sign on another's behalf). The transport layer
// (spec.md §1's external collaborator) is expected to carry BuyerSig and
// Price to the seller as a ClaimValidator-style exchange and bring back
// SellerSig for ConfirmAcquisition.
type PendingAcquisition struct {
	Claim    *claim.Claim
	Price    int64
	BuyerSig string
}

// AcquireClaim implements the REPL's ACQRCLM command: pick the
// lowest-numbered available, unexpired claim under the given bounds (claims
// carry no asking price; maxPrice becomes the offered price), sign the buyer's half
// of the transfer, and stake it provisionally (spec.md §6 "ACQRCLM
// <max_price> <max_maturity> <max_number>"). The transfer only finalizes
// once ConfirmAcquisition receives the seller's counter-signature.
func (n *Node) AcquireClaim(maxPrice int64, maxMaturity time.Duration, maxNumber uint64) (*PendingAcquisition, error) {
	now := time.Now()
	var best *claim.Claim
	for _, c := range n.Registry.All() {
		if c.ClaimNumber > maxNumber {
			continue
		}
		if c.Expired(now) {
			continue
		}
		if c.Owner() == n.Wallet.PubkeyHex() {
			continue
		}
		if len(n.Stakes.ClaimsFor(c.Owner())) > 0 {
			continue
		}
		expiresIn := time.Unix(0, c.ExpirationTime).Sub(now)
		if maxMaturity > 0 && expiresIn > maxMaturity {
			continue
		}
		best = c
		break
	}
	if best == nil {
		return nil, errors.Wrap(errs.ErrInvalidClaimAcquisition, "no claim satisfies the given bounds")
	}

	payload := claim.TransferPayload(best.ClaimNumber, n.Wallet.PubkeyHex(), best.Owner(), maxPrice)
	buyerSig := n.Wallet.Sign(payload)
	n.Stakes.Stake(n.Wallet.PubkeyHex(), best.ClaimNumber)
	return &PendingAcquisition{Claim: best, Price: maxPrice, BuyerSig: hexString(buyerSig)}, nil
}

// ConfirmAcquisition finalizes a PendingAcquisition once sellerSig arrives
// from the owning node, applying the custody transfer locally.
func (n *Node) ConfirmAcquisition(p *PendingAcquisition, sellerSig string) error {
	if err := claim.Transfer(p.Claim, n.Wallet.PubkeyHex(), n.Wallet.PrimaryAddress(), p.Price, p.BuyerSig, sellerSig); err != nil {
		n.Stakes.Unstake(n.Wallet.PubkeyHex(), p.Claim.ClaimNumber)
		return errors.Wrap(errs.ErrInvalidClaimAcquisition, err.Error())
	}
	n.State.UpsertClaim(p.Claim)
	n.Registry.Insert(p.Claim)
	n.Wallet.AddOwnedClaim(p.Claim.ClaimNumber)
	return nil
}

// SellClaim implements the REPL's SELLCLM command: this node, as the
// claim's current owner, signs the transfer terms for buyerPubkey (spec.md
// §6 "SELLCLM <claim_number> <price>"). The resulting signature only
// verifies against a ConfirmAcquisition call for that exact buyer and
// price.
func (n *Node) SellClaim(claimNumber uint64, buyerPubkey string, price int64) (sellerSig string, err error) {
	c, ok := n.Registry.Get(claimNumber)
	if !ok {
		return "", errors.Wrap(errs.ErrInvalidClaimAcquisition, "unknown claim number")
	}
	if c.Owner() != n.Wallet.PubkeyHex() {
		return "", errors.Wrap(errs.ErrInvalidClaimAcquisition, "claim is not owned by this node")
	}
	payload := claim.TransferPayload(claimNumber, buyerPubkey, c.Owner(), price)
	return hexString(n.Wallet.Sign(payload)), nil
}

// FinalizeSale releases this node's ownership bookkeeping once a buyer's
// ConfirmAcquisition has been observed to succeed (e.g. via a BlockVote or
// ClaimValidator confirmation), closing out the stake this node held.
func (n *Node) FinalizeSale(claimNumber uint64) {
	n.Stakes.Unstake(n.Wallet.PubkeyHex(), claimNumber)
	n.Wallet.DropOwnedClaim(claimNumber)
}

// ReceiveBlock handles a wire BlockMsg: this node's own mined block goes
// through the quorum-gated proposal path, a peer's block is validated and
// committed directly (spec.md §4.7 step 3).
func (n *Node) ReceiveBlock(b *block.Block, ownBlock bool, senderID string) error {
	if n.Seen("block:" + b.Hash()) {
		return nil
	}
	if ownBlock {
		return n.ProposeBlock(b)
	}
	return n.Miner.CommitPeerBlock(b, senderID)
}

// ProposeBlock registers a block this node mined as pending and casts this
// node's own confirming vote into the quorum; commit is deferred until the
// quorum confirms (spec.md §4.7 step 3: "On receipt of a block it mined,
// defer commit until quorum returns confirmation"). With no other
// validators connected the node's own vote is the whole electorate and
// confirmation is immediate; otherwise the commit fires from a later
// ReceiveBlockVote once 2/3 is reached.
func (n *Node) ProposeBlock(b *block.Block) error {
	n.pendingMu.Lock()
	n.pendingOwn[b.Hash()] = b
	n.pendingMu.Unlock()

	n.Quorum.NewValidator(blockKey(b.Hash()), n.Wallet.PubkeyHex(), true)
	return n.processBlockQuorum(b.Hash())
}

// ReceiveBlockVote feeds a validator's BlockVote (wire.BlockVoteMsg) into
// the aggregator and commits the matching pending proposal on confirmation.
func (n *Node) ReceiveBlockVote(blockHash, validatorPubkey string, vote bool) error {
	n.Quorum.NewValidator(blockKey(blockHash), validatorPubkey, vote)
	return n.processBlockQuorum(blockHash)
}

func (n *Node) processBlockQuorum(blockHash string) error {
	result := n.Quorum.Process(blockKey(blockHash))
	n.applySlashes(result)
	if !result.Confirmed {
		return nil
	}

	n.pendingMu.Lock()
	b, ok := n.pendingOwn[blockHash]
	delete(n.pendingOwn, blockHash)
	n.pendingMu.Unlock()
	if !ok {
		// Already committed, or a vote on a block this node never proposed.
		return nil
	}
	return n.Miner.CommitOwnBlock(b, n.ID)
}

// ReceiveTxnValidator feeds a validator's TxnValidator vote into the
// aggregator (spec.md §4.6). Once the quorum definitively rejects the txn
// (past the dissent threshold), it is dropped from the pool and its
// valid=true voters are slashed (spec.md §7 "InvalidTxn drops the txn and
// may, after quorum review, slash its proposer's claims").
func (n *Node) ReceiveTxnValidator(txnID, validatorPubkey string, vote bool) {
	key := "txn:" + txnID
	n.Quorum.NewValidator(key, validatorPubkey, vote)
	result := n.Quorum.Process(key)
	n.applySlashes(result)
	if !result.Confirmed && len(result.Slashed) > 0 {
		n.Pool.Reject(txnID)
	}
}

// ReceiveClaimValidator feeds a validator's ClaimValidator vote for
// claimNumber into the aggregator (spec.md §4.6).
func (n *Node) ReceiveClaimValidator(claimNumber uint64, validatorPubkey string, vote bool) {
	key := "claim:" + strconv.FormatUint(claimNumber, 10)
	n.Quorum.NewValidator(key, validatorPubkey, vote)
	n.applySlashes(n.Quorum.Process(key))
}

// applySlashes makes a slash observable (spec.md §4.6, §8 S6): every claim
// number returned from the slashed voters' cleared stake sets is reset to
// an unowned state in the registry and mirrored into ledger state, and any
// claim this node's own wallet held is dropped from its book.
func (n *Node) applySlashes(result quorum.Result) {
	for pubkey, numbers := range result.SlashedClaims {
		for _, number := range numbers {
			if c, ok := n.Registry.Get(number); ok {
				c.ResetUnowned()
				n.State.UpsertClaim(c)
			}
			if pubkey == n.Wallet.PubkeyHex() {
				n.Wallet.DropOwnedClaim(number)
			}
		}
	}
}

func blockKey(hash string) string { return "block:quorum:" + hash }

// ReceiveExpiredClaim implements §4.2's expiration path: renumber the
// registry and mirror the renumbering into ledger state. The renumbering
// takes effect when this is called; it is not deferred to block commit.
func (n *Node) ReceiveExpiredClaim(claimNumber uint64) []*claim.Claim {
	moved := n.Registry.ExpireAndRenumber(claimNumber)
	for _, c := range moved {
		n.State.UpsertClaim(c)
	}
	metrics.ClaimsExpired.Inc(1)
	return moved
}

func hexString(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
