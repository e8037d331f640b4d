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

// Package wallet implements the node operator's keypair and owned-address
// book (spec.md §3, §4.8).
package wallet

import (
	"strconv"
	"sync"

	uuid "github.com/satori/go.uuid"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/txn"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("wallet")

// BalanceView is the subset of ledger.NetworkState a wallet needs to report
// get_balance (spec.md §4.8); kept minimal to avoid an import cycle.
type BalanceView interface {
	Balance(addr string) (bigutil.U128, bool)
}

// Wallet holds a single secp256k1 keypair, an ordered set of addresses
// derived from it, and the claims it owns. Addresses are stored both in a
// map (for O(1) membership checks) and a parallel slice (because Go maps do
// not preserve insertion order, and spec.md §3's "first address is the
// wallet's primary address" requires one); this is SPEC_FULL.md's
// supplemented feature of preserving original_source/'s account-index
// ordering.
type Wallet struct {
	mu sync.RWMutex

	priv *vrrbcrypto.PrivateKey
	pub  *vrrbcrypto.PublicKey

	addressOrder []string
	addresses    map[string]int // address -> index into addressOrder

	ownedClaims map[uint64]struct{}
}

// New generates a fresh keypair and derives the wallet's first address.
func New() (*Wallet, error) {
	priv, pub, err := vrrbcrypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	w := &Wallet{
		priv:        priv,
		pub:         pub,
		addresses:   make(map[string]int),
		ownedClaims: make(map[uint64]struct{}),
	}
	w.appendAddress(deriveAddress(1, pub))
	return w, nil
}

// deriveAddress hashes the 1-based address index, a fresh uuid, and the
// compressed pubkey (spec.md §3: "addresses are hashes of
// index || uuid || pubkey"). The components are comma-joined text, the
// address_number,uid,pubkey form of the original derivation.
func deriveAddress(index int, pub *vrrbcrypto.PublicKey) string {
	id := uuid.NewV4()
	payload := strconv.Itoa(index) + "," + id.String() + "," + vrrbcrypto.PubKeyHex(pub)
	return vrrbcrypto.HashHex([]byte(payload))
}

func (w *Wallet) appendAddress(addr string) {
	w.addresses[addr] = len(w.addressOrder)
	w.addressOrder = append(w.addressOrder, addr)
}

// PubkeyHex returns the wallet's compressed public key, hex-encoded.
func (w *Wallet) PubkeyHex() string {
	return vrrbcrypto.PubKeyHex(w.pub)
}

// PrimaryAddress returns the first address ever generated by this wallet.
func (w *Wallet) PrimaryAddress() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.addressOrder[0]
}

// Addresses returns every address owned by this wallet in generation order.
func (w *Wallet) Addresses() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.addressOrder))
	copy(out, w.addressOrder)
	return out
}

// GenerateNewAddress derives and appends a new address, deterministically
// distinct from every prior address because each draws a fresh uuid
// (spec.md §4.8: "generate_new_address appends a new address").
func (w *Wallet) GenerateNewAddress() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	addr := deriveAddress(len(w.addressOrder)+1, w.pub)
	w.appendAddress(addr)
	log.Debugw("generated address", "address", addr, "index", len(w.addressOrder)-1)
	return addr
}

// AddressAt returns the address at index i, as referenced by the REPL's
// SENDTXN command (spec.md §6: "SENDTXN <from_index> <to_addr> <amount>").
func (w *Wallet) AddressAt(i int) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if i < 0 || i >= len(w.addressOrder) {
		return "", false
	}
	return w.addressOrder[i], true
}

// Owns reports whether addr was generated by this wallet.
func (w *Wallet) Owns(addr string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.addresses[addr]
	return ok
}

// SendTxn builds and signs a Txn from the address at fromIndex to receiver,
// without mutating any ledger state (spec.md §4.8: "send_txn(index,
// receiver, amount) constructs a Txn; does not modify ledger state").
func (w *Wallet) SendTxn(fromIndex int, receiver string, amount bigutil.U128) (*txn.Txn, error) {
	sender, ok := w.AddressAt(fromIndex)
	if !ok {
		return nil, errNoSuchAddress(fromIndex)
	}
	t := txn.New(sender, w.PubkeyHex(), receiver, amount)
	t.Sign(w.priv)
	return t, nil
}

// Sign signs payload with this wallet's private key, used by claim transfer
// to sign custody records (spec.md §4.8, §9: secp256k1 over a blake2b-256
// digest).
func (w *Wallet) Sign(payload []byte) []byte {
	return vrrbcrypto.Sign(w.priv, payload)
}

// PrivateKey returns the wallet's secp256k1 private key for the in-process
// handoff to core/miner, which must sign block headers with it
// (block.Mine/block.Genesis). The key never leaves this process; it is
// "kept local" per spec.md §3 in the sense that no wire message ever
// carries it.
func (w *Wallet) PrivateKey() *vrrbcrypto.PrivateKey {
	return w.priv
}

// GetBalance sums credits-debits across every owned address, reading the
// snapshot through view (spec.md §4.8: "get_balance(snapshot) reads credits
// and debits for each owned address").
func (w *Wallet) GetBalance(view BalanceView) bigutil.U128 {
	w.mu.RLock()
	addrs := make([]string, len(w.addressOrder))
	copy(addrs, w.addressOrder)
	w.mu.RUnlock()

	total := bigutil.Zero()
	for _, addr := range addrs {
		if bal, known := view.Balance(addr); known {
			total = total.Add(bal)
		}
	}
	return total
}

// AddOwnedClaim records that this wallet holds claimNumber, used to track
// ACQRCLM/SELLCLM ownership across REPL sessions.
func (w *Wallet) AddOwnedClaim(claimNumber uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ownedClaims[claimNumber] = struct{}{}
}

// DropOwnedClaim removes claimNumber after it is sold or expires.
func (w *Wallet) DropOwnedClaim(claimNumber uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.ownedClaims, claimNumber)
}

// OwnedClaims returns the claim numbers this wallet currently holds.
func (w *Wallet) OwnedClaims() []uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]uint64, 0, len(w.ownedClaims))
	for n := range w.ownedClaims {
		out = append(out, n)
	}
	return out
}
