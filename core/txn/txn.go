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

// Package txn implements the transaction type and the pending/confirmed
// pool (spec.md §3, §4.3).
package txn

import (
	"encoding/json"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
)

// Txn is a single value transfer (spec.md §3).
type Txn struct {
	ID             string       `json:"id"`
	Timestamp      int64        `json:"timestamp"`
	SenderAddress  string       `json:"sender_address"`
	SenderPubkey   string       `json:"sender_pubkey"`
	ReceiverAddress string      `json:"receiver_address"`
	Amount         bigutil.U128 `json:"amount"`
	Signature      string       `json:"signature"`
}

// New builds an unsigned Txn with a fresh uuid-derived id (spec.md §3: "id
// (hash of a fresh uuid)").
func New(senderAddress, senderPubkey, receiverAddress string, amount bigutil.U128) *Txn {
	id := uuid.NewV4()
	return &Txn{
		ID:              vrrbcrypto.HashHex(id.Bytes()),
		Timestamp:       time.Now().UnixNano(),
		SenderAddress:   senderAddress,
		SenderPubkey:    senderPubkey,
		ReceiverAddress: receiverAddress,
		Amount:          amount,
	}
}

// Payload is the canonical signing payload: "sender_addr,sender_pubkey,
// receiver_addr,amount" (spec.md §3).
func (t *Txn) Payload() []byte {
	s := t.SenderAddress + "," + t.SenderPubkey + "," + t.ReceiverAddress + "," + t.Amount.String()
	return []byte(s)
}

// Sign signs the txn's canonical payload with priv and records the
// signature.
func (t *Txn) Sign(priv *vrrbcrypto.PrivateKey) {
	t.Signature = hexEncode(vrrbcrypto.Sign(priv, t.Payload()))
}

// VerifySignature checks t.Signature against SenderPubkey over the
// canonical payload.
func (t *Txn) VerifySignature() bool {
	pub, err := vrrbcrypto.ParsePubKeyHex(t.SenderPubkey)
	if err != nil {
		return false
	}
	sig, err := hexDecode(t.Signature)
	if err != nil {
		return false
	}
	return vrrbcrypto.Verify(pub, t.Payload(), sig)
}

// MarshalCanonical renders the txn as canonical JSON, used in block hash
// inputs ("json(txns)", spec.md §6) and the as_bytes/from_bytes round-trip.
func (t *Txn) MarshalCanonical() ([]byte, error) {
	return json.Marshal(t)
}
