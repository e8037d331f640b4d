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
	"sync"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/bigutil"
	"github.com/vrrb-labs/vrrb-core/core/errs"
	"github.com/vrrb-labs/vrrb-core/internal/metrics"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("txpool")

// BalanceView answers the balance question the pool needs at admission
// time without taking a dependency on the ledger package (spec.md §4.3's
// "sender exists (present in credits)"; avoids an import cycle between
// txn and ledger).
type BalanceView interface {
	// Balance returns credits[addr]-debits[addr] and whether addr has ever
	// appeared in credits.
	Balance(addr string) (balance bigutil.U128, known bool)
}

// Pool tracks pending and confirmed transactions keyed by id (spec.md
// §4.3).
type Pool struct {
	mu             sync.RWMutex
	pending        map[string]*Txn
	confirmed      map[string]*Txn
	pendingDebits  map[string]bigutil.U128 // sender address -> sum of pending amounts
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		pending:       make(map[string]*Txn),
		confirmed:     make(map[string]*Txn),
		pendingDebits: make(map[string]bigutil.U128),
	}
}

// Admit checks admission preconditions and, if they hold, adds t to
// pending (spec.md §4.3): signature verifies, sender exists, and
// amount+sum(pending_debits[sender]) <= balance(sender).
func (p *Pool) Admit(t *Txn, view BalanceView) error {
	if !t.VerifySignature() {
		metrics.TxnsRejected.Inc(1)
		return errors.Wrap(errs.ErrInvalidTxn, "signature does not verify")
	}

	balance, known := view.Balance(t.SenderAddress)
	if !known {
		metrics.TxnsRejected.Inc(1)
		return errors.Wrap(errs.ErrInvalidTxn, "sender unknown")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.pending[t.ID]; exists {
		// Duplicate txn messages are silently deduplicated (spec.md §7).
		return nil
	}
	if _, exists := p.confirmed[t.ID]; exists {
		return nil
	}

	already := p.pendingDebits[t.SenderAddress]
	proposed := already.Add(t.Amount)
	if proposed.Cmp(balance) > 0 {
		metrics.TxnsRejected.Inc(1)
		return errors.Wrap(errs.ErrInvalidTxn, "insufficient balance under pending debits")
	}

	p.pending[t.ID] = t
	p.pendingDebits[t.SenderAddress] = proposed
	metrics.TxnsAdmitted.Inc(1)
	log.Debugw("admitted txn", "id", t.ID, "sender", t.SenderAddress, "amount", t.Amount.String())
	return nil
}

// WouldDoubleSpend reports whether admitting t (if not already pending)
// would push sender's total pending debits above balance, the "not
// double-spent in pool" duty a validator judges independently of Admit
// (spec.md §4.6 Txn judgement table).
func (p *Pool) WouldDoubleSpend(t *Txn, balance bigutil.U128) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, exists := p.pending[t.ID]; exists {
		return false
	}
	proposed := p.pendingDebits[t.SenderAddress].Add(t.Amount)
	return proposed.Cmp(balance) > 0
}

// Pending returns every currently pending txn, in no particular order; the
// caller (miner) establishes insertion order into a block independently
// (spec.md §5: "inclusion in a block follows the miner's insertion order
// into confirmed").
func (p *Pool) Pending() []*Txn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Txn, 0, len(p.pending))
	for _, t := range p.pending {
		out = append(out, t)
	}
	return out
}

// Confirm moves every txn in ids from pending to confirmed, applied at
// block acceptance (spec.md §4.3: "On block acceptance every txn in the
// block moves pending -> confirmed -> archived").
func (p *Pool) Confirm(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		t, ok := p.pending[id]
		if !ok {
			continue
		}
		delete(p.pending, id)
		remaining := p.pendingDebits[t.SenderAddress].Sub(t.Amount)
		p.pendingDebits[t.SenderAddress] = remaining
		p.confirmed[id] = t
	}
}

// Archive removes ids from confirmed (the txn has been applied to
// credits/debits and written into a block archive; the pool no longer
// needs to track it).
func (p *Pool) Archive(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.confirmed, id)
	}
}

// Reject drops id from pending without applying it, used when the validator
// quorum rejects the txn (core/node.ReceiveTxnValidator).
func (p *Pool) Reject(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.pending[id]; ok {
		remaining := p.pendingDebits[t.SenderAddress].Sub(t.Amount)
		p.pendingDebits[t.SenderAddress] = remaining
		delete(p.pending, id)
	}
}
