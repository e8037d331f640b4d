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

// Package block implements block assembly, signing, and validation (spec.md
// §3, §4.5).
package block

import (
	"crypto/sha256"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/claim"
	"github.com/vrrb-labs/vrrb-core/core/reward"
	"github.com/vrrb-labs/vrrb-core/core/txn"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("block")

// GenesisLastHash is the fixed last_hash of the height-0 block (spec.md
// §4.5: `sha256("Genesis_Last_Hash")`).
var GenesisLastHash = func() string {
	d := sha256.Sum256([]byte("Genesis_Last_Hash"))
	return hexEncode(d[:])
}()

// Header is BlockHeader (spec.md §3).
type Header struct {
	LastHash        string        `json:"last_hash"`
	BlockNonce      uint64        `json:"block_nonce"`
	NextBlockNonce  uint64        `json:"next_block_nonce"`
	BlockHeight     uint64        `json:"block_height"`
	Timestamp       int64         `json:"timestamp"`
	TxnHash         string        `json:"txn_hash"`
	Claim           *claim.Claim  `json:"claim"`
	ClaimMapHash    string        `json:"claim_map_hash,omitempty"`
	BlockReward     reward.Reward `json:"block_reward"`
	NextBlockReward reward.Reward `json:"next_block_reward"`
	NeighborHash    string        `json:"neighbor_hash,omitempty"`
	Signature       string        `json:"signature"`
	StateHash       string        `json:"state_hash,omitempty"`
}

// Block is a committed or candidate block (spec.md §3).
type Block struct {
	Header               Header                  `json:"header"`
	Txns                 map[string]*txn.Txn     `json:"txns"`
	OwnedClaims          map[uint64]*claim.Claim `json:"owned_claims"`
	ConfirmedOwnedClaims map[uint64]*claim.Claim `json:"confirmed_owned_claims"`
	AbandonedClaim       *claim.Claim            `json:"abandoned_claim,omitempty"`
	hash                 string
}

// Height implements ledger.BlockRef.
func (b *Block) Height() uint64 { return b.Header.BlockHeight }

// Hash implements ledger.BlockRef; returns the cached digest (spec.md §3
// "hash (digest of canonical serialisation)").
func (b *Block) Hash() string { return b.hash }

// MarshalCanonical implements ledger.BlockRef and is the block's encoding
// for last_block_bytes in the state digest.
func (b *Block) MarshalCanonical() ([]byte, error) {
	return json.Marshal(b)
}

// AsBytes renders the block's stable binary encoding for gossip and
// persistence (spec.md §8 invariant 8: "for any ... Block ...,
// from_bytes(as_bytes(x)) == x").
func (b *Block) AsBytes() ([]byte, error) {
	return json.Marshal(b)
}

// FromBytes restores a Block from a prior AsBytes encoding, recomputing the
// cached hash rather than trusting a transmitted one (the hash field is
// unexported and excluded from the JSON encoding, so computeHash over the
// decoded fields reproduces exactly what the sender computed).
func FromBytes(raw []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errors.Wrap(err, "unmarshal block")
	}
	hash, err := computeHash(&b)
	if err != nil {
		return nil, errors.Wrap(err, "recompute block hash")
	}
	b.hash = hash
	return &b, nil
}

// signingPayload builds the deterministic payload a miner signs and every
// validator re-derives (spec.md §6 "Hash inputs. Block payload":
// `timestamp,last_hash,json(txns),json(claim),json(last.next_block_reward),
// miner,json(next_block_reward)`).
func signingPayload(timestamp int64, lastHash string, txns map[string]*txn.Txn, c *claim.Claim, lastNextReward reward.Reward, miner string, nextReward reward.Reward) ([]byte, error) {
	txnsJSON, err := json.Marshal(txns)
	if err != nil {
		return nil, errors.Wrap(err, "marshal txns")
	}
	claimJSON, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal claim")
	}
	lastRewardJSON, err := json.Marshal(lastNextReward)
	if err != nil {
		return nil, errors.Wrap(err, "marshal last next_block_reward")
	}
	nextRewardJSON, err := json.Marshal(nextReward)
	if err != nil {
		return nil, errors.Wrap(err, "marshal next_block_reward")
	}
	buf := []byte{}
	buf = append(buf, []byte(timeStr(timestamp))...)
	buf = append(buf, ',')
	buf = append(buf, []byte(lastHash)...)
	buf = append(buf, ',')
	buf = append(buf, txnsJSON...)
	buf = append(buf, ',')
	buf = append(buf, claimJSON...)
	buf = append(buf, ',')
	buf = append(buf, lastRewardJSON...)
	buf = append(buf, ',')
	buf = append(buf, []byte(miner)...)
	buf = append(buf, ',')
	buf = append(buf, nextRewardJSON...)
	return buf, nil
}

func timeStr(ts int64) string {
	return time.Unix(0, ts).UTC().Format(time.RFC3339Nano)
}

func computeHash(b *Block) (string, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return "", errors.Wrap(err, "marshal block for hashing")
	}
	d := sha256.Sum256(body)
	return hexEncode(d[:]), nil
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

// Genesis returns the height-0 block, minting a fresh homestead claim for
// miner (spec.md §4.5 `Block::genesis`).
func Genesis(rewardState *reward.State, minerPubkey, minerAddress string, priv *vrrbcrypto.PrivateKey, nextNonce uint64, rng *rand.Rand) (*Block, *claim.Claim, error) {
	c := claim.New(1, minerPubkey, minerAddress, time.Now().Add(365*24*time.Hour))
	blockReward := reward.Reward{Category: reward.Genesis, Amount: reward.GenesisAmount, MinerAddress: minerAddress}
	nextReward := reward.Lottery(rewardState, 1, rng)

	h := Header{
		LastHash:        GenesisLastHash,
		BlockNonce:      0,
		NextBlockNonce:  nextNonce,
		BlockHeight:     0,
		Timestamp:       time.Now().UnixNano(),
		Claim:           c,
		BlockReward:     blockReward,
		NextBlockReward: nextReward,
	}
	payload, err := signingPayload(h.Timestamp, h.LastHash, nil, c, reward.Reward{}, minerAddress, nextReward)
	if err != nil {
		return nil, nil, err
	}
	h.Signature = hexEncode(vrrbcrypto.Sign(priv, payload))

	b := &Block{
		Header:      h,
		Txns:        map[string]*txn.Txn{},
		OwnedClaims: map[uint64]*claim.Claim{1: c},
	}
	hash, err := computeHash(b)
	if err != nil {
		return nil, nil, err
	}
	b.hash = hash
	return b, c, nil
}
