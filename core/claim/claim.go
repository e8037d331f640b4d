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

// Package claim implements the mining-eligibility credential: issuance,
// pointer computation, lowest-pointer tie-break, transfer, and expiration
// (spec.md §3, §4.2).
package claim

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/vrrbcrypto"
)

// CustodyRecord is one signed transfer in a claim's chain of custody
// (spec.md §3, §9 "Custody chain" — modelled as an ordered sequence, not a
// recursive type).
type CustodyRecord struct {
	Holder               string `json:"holder_pubkey"`
	Homesteader          bool   `json:"homesteader"`
	AcquisitionTimestamp int64  `json:"acquisition_timestamp"`
	AcquisitionPrice     int64  `json:"acquisition_price"`
	AcquiredFrom         string `json:"acquired_from"`
	OwnerNumber          uint64 `json:"owner_number"`
	BuyerSignature       string `json:"buyer_signature"`
	SellerSignature      string `json:"seller_signature"`
}

// Claim is a transferable credential granting the right to mine a block
// when its pointer is lowest at the next nonce (spec.md §3).
type Claim struct {
	ClaimNumber    uint64          `json:"claim_number"`
	OwnerPubkey    string          `json:"owner_pubkey"`
	OwnerAddress   string          `json:"owner_address"`
	Nonce          uint64          `json:"nonce"`
	Hash           string          `json:"hash"`
	ExpirationTime int64           `json:"expiration_time"`
	ChainOfCustody []CustodyRecord `json:"chain_of_custody"`
}

// New mints a fresh claim for the homesteader. The hash is deterministic of
// (number, owner, nonce) per spec.md §3.
func New(number uint64, ownerPubkey, ownerAddress string, expiration time.Time) *Claim {
	c := &Claim{
		ClaimNumber:    number,
		OwnerPubkey:    ownerPubkey,
		OwnerAddress:   ownerAddress,
		Nonce:          1,
		ExpirationTime: expiration.UnixNano(),
	}
	c.Hash = computeHash(number, ownerPubkey, c.Nonce)
	c.ChainOfCustody = []CustodyRecord{{
		Holder:               ownerPubkey,
		Homesteader:          true,
		AcquisitionTimestamp: time.Now().UnixNano(),
		OwnerNumber:          1,
	}}
	return c
}

func computeHash(number uint64, ownerPubkey string, nonce uint64) string {
	payload, _ := json.Marshal(struct {
		Number uint64 `json:"number"`
		Owner  string `json:"owner"`
		Nonce  uint64 `json:"nonce"`
	}{number, ownerPubkey, nonce})
	return vrrbcrypto.HashHex(payload)
}

// Pointer returns the claim's ranking key at nonce, or ok=false if the
// claim is exhausted (its pointer function returns none) at this nonce.
func (c *Claim) Pointer(nonce uint64) (value [16]byte, ok bool) {
	return vrrbcrypto.Pointer([]byte(c.Hash), vrrbcrypto.BE128(nonce))
}

// NonceUp increments the claim's internal nonce and recomputes its hash, as
// required whenever the claim is found exhausted at the current nonce
// (spec.md §4.2).
func (c *Claim) NonceUp() {
	c.Nonce++
	c.Hash = computeHash(c.ClaimNumber, c.OwnerPubkey, c.Nonce)
}

// Expired reports whether the claim's expiration_time has passed as of now.
func (c *Claim) Expired(now time.Time) bool {
	return c.ExpirationTime <= now.UnixNano()
}

// Owner returns the pubkey of the last custody record, the claim's current
// owner (spec.md §3 invariant: "the last entry's pubkey equals owner").
func (c *Claim) Owner() string {
	if len(c.ChainOfCustody) == 0 {
		return ""
	}
	return c.ChainOfCustody[len(c.ChainOfCustody)-1].Holder
}

// ResetUnowned strips the claim of its owner and custody chain, returning
// it to the unowned pool keyed by its original expiration_time and
// claim_number — the observable effect of slashing (spec.md §4.6, §8 S6).
// An unowned claim cannot mine (its custody chain no longer verifies)
// until it is homesteaded again.
func (c *Claim) ResetUnowned() {
	c.OwnerPubkey = ""
	c.OwnerAddress = ""
	c.ChainOfCustody = nil
}

// VerifyCustodyChain walks the chain of custody and checks that entry k's
// seller_signature (k>0) was produced by entry k-1's holder over the claim
// payload, and that the final holder equals c.OwnerPubkey (spec.md §3).
func (c *Claim) VerifyCustodyChain() error {
	if len(c.ChainOfCustody) == 0 {
		return errors.New("claim has no chain of custody")
	}
	if c.ChainOfCustody[0].Holder == "" || !c.ChainOfCustody[0].Homesteader {
		return errors.New("chain of custody does not start at a homesteader")
	}
	for i := 1; i < len(c.ChainOfCustody); i++ {
		prev := c.ChainOfCustody[i-1]
		cur := c.ChainOfCustody[i]
		sellerPub, err := vrrbcrypto.ParsePubKeyHex(prev.Holder)
		if err != nil {
			return errors.Wrap(err, "parse seller pubkey")
		}
		payload := custodyPayload(c.ClaimNumber, cur)
		sig, err := hexDecodeSig(cur.SellerSignature)
		if err != nil {
			return errors.Wrap(err, "decode seller signature")
		}
		if !vrrbcrypto.Verify(sellerPub, payload, sig) {
			return errors.Errorf("invalid seller signature at custody entry %d", i)
		}
	}
	if c.Owner() != c.OwnerPubkey {
		return errors.New("chain of custody does not terminate at claimed owner")
	}
	return nil
}

// TransferPayload is the deterministic transfer-terms payload a seller
// signs off-band to authorize a pending acquisition, and the same payload
// Transfer re-derives and verifies the seller's signature against (spec.md
// §4.2 "Transfer").
func TransferPayload(claimNumber uint64, buyerPubkey, seller string, price int64) []byte {
	return custodyPayload(claimNumber, CustodyRecord{Holder: buyerPubkey, AcquiredFrom: seller, AcquisitionPrice: price})
}

// custodyPayload is the transfer terms both parties sign over. It
// deliberately excludes AcquisitionTimestamp: that field is stamped by
// whichever side calls Transfer, so a seller producing SellerSignature
// ahead of the buyer's Transfer call could never predict it.
func custodyPayload(claimNumber uint64, rec CustodyRecord) []byte {
	payload, _ := json.Marshal(struct {
		ClaimNumber  uint64 `json:"claim_number"`
		Holder       string `json:"holder"`
		AcquiredFrom string `json:"acquired_from"`
		Price        int64  `json:"price"`
	}{claimNumber, rec.Holder, rec.AcquiredFrom, rec.AcquisitionPrice})
	return payload
}

func hexDecodeSig(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
