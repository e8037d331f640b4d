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

package quorum

import (
	"time"

	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/errs"
)

// Mode names the four message judgements a validator can be asked to make
// (spec.md §4.6 table). Modelled as a tagged variant of subject + option,
// per spec.md §9's design note, rather than a Box<dyn Verifiable>-style
// dynamic dispatch: each Snapshot type below is the "option" a mode
// carries, pre-computed by the caller from the live ledger/pool/registry
// at the validation instant.
type Mode string

const (
	ModeTxn            Mode = "Txn"
	ModeClaimHomestead Mode = "ClaimHomestead"
	ModeClaimAcquire   Mode = "ClaimAcquire"
	ModeNewBlock       Mode = "NewBlock"
)

// TxnSnapshot carries everything needed to judge a pending transaction
// (spec.md §4.6: "signature, balance, receiver exists, not double-spent in
// pool").
type TxnSnapshot struct {
	SignatureValid    bool
	Amount            bigutil.U128
	SenderBalance     bigutil.U128
	SenderKnown       bool
	ReceiverKnown     bool
	DoubleSpentInPool bool
}

// Valid implements the Txn judgement.
func (s TxnSnapshot) Valid() bool {
	if !s.SignatureValid || !s.SenderKnown || !s.ReceiverKnown || s.DoubleSpentInPool {
		return false
	}
	return s.Amount.Cmp(s.SenderBalance) <= 0
}

// ClaimHomesteadSnapshot carries everything needed to judge a fresh claim
// homestead (spec.md §4.6: "claim was never owned, signature chain
// correct, maturity plausible").
type ClaimHomesteadSnapshot struct {
	NeverOwned       bool
	CustodyChainOK   bool
	ExpirationTime   int64
	Now              time.Time
	MaxMaturityBound time.Duration // plausible upper bound on time-to-expiration
}

// Valid implements the ClaimHomestead judgement. MaxMaturityBound<=0 skips
// the upper-bound check (treated as "no bound configured").
func (s ClaimHomesteadSnapshot) Valid() bool {
	if !s.NeverOwned || !s.CustodyChainOK {
		return false
	}
	expiresAt := time.Unix(0, s.ExpirationTime)
	if !expiresAt.After(s.Now) {
		return false
	}
	if s.MaxMaturityBound > 0 && expiresAt.Sub(s.Now) > s.MaxMaturityBound {
		return false
	}
	return true
}

// ClaimAcquireSnapshot carries everything needed to judge a claim transfer
// (spec.md §4.6: "previous owner signature verifies, claim marked
// available, not expired, not currently staked").
type ClaimAcquireSnapshot struct {
	SellerSignatureValid bool
	Available            bool
	Expired              bool
	CurrentlyStaked      bool
}

// Valid implements the ClaimAcquire judgement.
func (s ClaimAcquireSnapshot) Valid() bool {
	return s.SellerSignatureValid && s.Available && !s.Expired && !s.CurrentlyStaked
}

// NewBlockSnapshot carries the outcome of running every §4.5 valid_block
// rule (spec.md §4.6: "every check in §4.5"). The caller (core/block's
// Chain.Accept, via core/block.Validate) already performs the checks;
// this snapshot just reports whether they all passed.
type NewBlockSnapshot struct {
	ValidBlock bool
}

// Valid implements the NewBlock judgement.
func (s NewBlockSnapshot) Valid() bool { return s.ValidBlock }

// IsValid dispatches on mode and judges snapshot (spec.md §4.6 `is_valid`).
// snapshot must be the concrete Snapshot type paired with mode; any other
// combination -- including an unrecognised mode -- is a protocol error
// surfaced to the caller, never guessed (spec.md §4.6, §7: "A message with
// no viable judgement ... is a protocol error").
func IsValid(mode Mode, snapshot interface{}) (bool, error) {
	switch mode {
	case ModeTxn:
		s, ok := snapshot.(TxnSnapshot)
		if !ok {
			return false, errs.ErrProtocol
		}
		return s.Valid(), nil
	case ModeClaimHomestead:
		s, ok := snapshot.(ClaimHomesteadSnapshot)
		if !ok {
			return false, errs.ErrProtocol
		}
		return s.Valid(), nil
	case ModeClaimAcquire:
		s, ok := snapshot.(ClaimAcquireSnapshot)
		if !ok {
			return false, errs.ErrProtocol
		}
		return s.Valid(), nil
	case ModeNewBlock:
		s, ok := snapshot.(NewBlockSnapshot)
		if !ok {
			return false, errs.ErrProtocol
		}
		return s.Valid(), nil
	default:
		return false, errs.ErrProtocol
	}
}
