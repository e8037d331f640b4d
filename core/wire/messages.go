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

// Package wire defines the tagged messages a transport would carry
// (spec.md §6). The transport itself (gossip/p2p) is an external
// collaborator per spec.md §1; this package only fixes the wire shape so
// the core can be driven and tested without one.
package wire

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Tag identifies a wire message's payload type.
type Tag string

const (
	TagAccountPubkey  Tag = "AccountPubkey"
	TagNetworkState   Tag = "NetworkState"
	TagGetState       Tag = "GetState"
	TagGetNetworkState Tag = "GetNetworkState"
	TagTxn            Tag = "Txn"
	TagTxnValidator   Tag = "TxnValidator"
	TagBlock          Tag = "Block"
	TagBlockChunk     Tag = "BlockChunk"
	TagNeedBlock      Tag = "NeedBlock"
	TagMissingBlock   Tag = "MissingBlock"
	TagBlockVote      Tag = "BlockVote"
	TagClaim          Tag = "Claim"
	TagClaimValidator Tag = "ClaimValidator"
	TagExpiredClaim   Tag = "ExpiredClaim"
	TagVIP            Tag = "VIP"
	TagVIPVote        Tag = "VIPVote"
	TagInvalidBlock   Tag = "InvalidBlock"
)

// MaxTransmitSize bounds a single wire message's binary body (spec.md §6).
const MaxTransmitSize = 2_000_000

// ChunkThreshold is the body size above which a NetworkState message must be
// split into BlockChunk-style pieces (spec.md §6: "split when >
// MAX_TRANSMIT_SIZE/10").
const ChunkThreshold = MaxTransmitSize / 10

// Envelope is the tagged-variant binary body every wire message travels in.
type Envelope struct {
	Type Tag             `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Encode wraps a concrete payload into a tagged Envelope.
func Encode(tag Tag, payload interface{}) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: tag, Body: body}, nil
}

// Decode unmarshals an Envelope's body into dst, which must be a pointer to
// the payload type matching e.Type.
func (e Envelope) Decode(dst interface{}) error {
	return json.Unmarshal(e.Body, dst)
}

// AccountPubkeyMsg carries a node's known address->pubkey bindings.
type AccountPubkeyMsg struct {
	Addresses map[string]string `json:"addresses"`
	SenderID  string            `json:"sender_id"`
}

// NetworkStateMsg carries a (possibly chunked) ledger state snapshot.
type NetworkStateMsg struct {
	Data        []byte `json:"data"`
	ChunkNumber int    `json:"chunk_number"`
	TotalChunks int    `json:"total_chunks"`
	Requestor   string `json:"requestor"`
	SenderID    string `json:"sender_id"`
}

// ChunkNetworkState splits a NetworkState encoding into the pieces spec.md
// §6 requires once it exceeds ChunkThreshold. A body at or under the
// threshold travels as a single chunk. Chunk numbers are 1-based.
func ChunkNetworkState(data []byte, requestor, senderID string) []NetworkStateMsg {
	total := (len(data) + ChunkThreshold - 1) / ChunkThreshold
	if total < 1 {
		total = 1
	}
	out := make([]NetworkStateMsg, 0, total)
	for i := 0; i < total; i++ {
		lo := i * ChunkThreshold
		hi := lo + ChunkThreshold
		if hi > len(data) {
			hi = len(data)
		}
		out = append(out, NetworkStateMsg{
			Data:        data[lo:hi],
			ChunkNumber: i + 1,
			TotalChunks: total,
			Requestor:   requestor,
			SenderID:    senderID,
		})
	}
	return out
}

// ReassembleNetworkState concatenates a complete chunk set back into the
// original body. Chunks may arrive in any order; a missing or duplicated
// chunk number is an error.
func ReassembleNetworkState(chunks []NetworkStateMsg) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks")
	}
	total := chunks[0].TotalChunks
	if len(chunks) != total {
		return nil, errors.Errorf("have %d chunks, want %d", len(chunks), total)
	}
	byNumber := make(map[int][]byte, total)
	for _, c := range chunks {
		if c.TotalChunks != total {
			return nil, errors.Errorf("chunk %d declares total %d, want %d", c.ChunkNumber, c.TotalChunks, total)
		}
		if _, dup := byNumber[c.ChunkNumber]; dup {
			return nil, errors.Errorf("duplicate chunk %d", c.ChunkNumber)
		}
		byNumber[c.ChunkNumber] = c.Data
	}
	var out []byte
	for i := 1; i <= total; i++ {
		data, ok := byNumber[i]
		if !ok {
			return nil, errors.Errorf("missing chunk %d", i)
		}
		out = append(out, data...)
	}
	return out, nil
}

// GetStateMsg requests the full ledger state from peers.
type GetStateMsg struct {
	SenderID string `json:"sender_id"`
}

// GetNetworkStateMsg requests the current NetworkState snapshot.
type GetNetworkStateMsg struct {
	SenderID string `json:"sender_id"`
}

// TxnMsg carries a pending transaction.
type TxnMsg struct {
	Txn      json.RawMessage `json:"txn"`
	SenderID string          `json:"sender_id"`
}

// TxnValidatorMsg carries one validator's vote on a transaction.
type TxnValidatorMsg struct {
	TxnID           string `json:"txn_id"`
	Vote            bool   `json:"vote"`
	ValidatorPubkey string `json:"validator_pubkey"`
	SenderID        string `json:"sender_id"`
}

// BlockMsg carries a full candidate or accepted block.
type BlockMsg struct {
	Block    json.RawMessage `json:"block"`
	SenderID string          `json:"sender_id"`
}

// BlockChunkMsg carries one chunk of an oversized block.
type BlockChunkMsg struct {
	BlockHeight uint64 `json:"block_height"`
	ChunkNumber int    `json:"chunk_number"`
	TotalChunks int    `json:"total_chunks"`
	Data        []byte `json:"data"`
}

// NeedBlockMsg requests the block following last_block.
type NeedBlockMsg struct {
	LastBlock json.RawMessage `json:"last_block"`
	SenderID  string          `json:"sender_id"`
}

// MissingBlockMsg answers a NeedBlockMsg.
type MissingBlockMsg struct {
	Block     json.RawMessage `json:"block"`
	Requestor string          `json:"requestor"`
	SenderID  string          `json:"sender_id"`
}

// BlockVoteMsg carries one validator's vote on a candidate block.
type BlockVoteMsg struct {
	Block    json.RawMessage `json:"block"`
	Vote     bool            `json:"vote"`
	SenderID string          `json:"sender_id"`
}

// ClaimMsg carries a claim (newly minted or transferred).
type ClaimMsg struct {
	Claim    json.RawMessage `json:"claim"`
	SenderID string          `json:"sender_id"`
}

// ClaimValidatorMsg carries one validator's vote on a claim transfer.
type ClaimValidatorMsg struct {
	ClaimNumber     uint64 `json:"claim_number"`
	Vote            bool   `json:"vote"`
	ValidatorPubkey string `json:"validator_pubkey"`
	SenderID        string `json:"sender_id"`
}

// ExpiredClaimMsg announces a claim's expiration and triggers renumbering.
type ExpiredClaimMsg struct {
	ClaimNumber uint64 `json:"claim_number"`
	SenderID    string `json:"sender_id"`
}

// VIPMsg proposes a protocol change (out of core scope; shape only).
type VIPMsg struct {
	ProposalID       string `json:"proposal_id"`
	SenderID         string `json:"sender_id"`
	ProposalExpiration int64 `json:"proposal_expiration"`
}

// VIPVoteMsg votes on a VIP proposal.
type VIPVoteMsg struct {
	ProposalID string `json:"proposal_id"`
	Vote       bool   `json:"vote"`
	SenderID   string `json:"sender_id"`
}

// InvalidBlockMsg notifies peers a block was rejected.
type InvalidBlockMsg struct {
	BlockHeight uint64 `json:"block_height"`
	MinerID     string `json:"miner_id"`
	SenderID    string `json:"sender_id"`
}

// Topics are the gossip channels every node MUST subscribe to (spec.md §6).
var Topics = []string{"test-net", "txn", "claim", "block", "validator"}
