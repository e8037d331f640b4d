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
	"sync"

	"github.com/vrrb-labs/vrrb-core/internal/metrics"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("quorum")

// dissentSlashThreshold is the n_total above which a rejected subject's
// valid=true dissenters are slashed (spec.md §4.6: "if n_total > 10").
const dissentSlashThreshold = 10

// Vote is one validator's judgement on a subject.
type Vote struct {
	ValidatorPubkey string
	Valid           bool
}

// Result summarises one Process call (spec.md §4.6, §8 invariant 7 / S6).
type Result struct {
	Key           string
	NTotal        int
	NValid        int
	Confirmed     bool
	Slashed       []string            // validator pubkeys slashed this round
	SlashedClaims map[string][]uint64 // pubkey -> claim numbers reset to unowned
}

// Quorum aggregates votes per subject key (txn_id, claim_number, or
// block_hash, per spec.md §4.6) and decides confirmation/slashing.
type Quorum struct {
	mu        sync.Mutex
	votes     map[string][]Vote
	voted     map[string]map[string]bool // key -> validatorPubkey -> already voted
	confirmed map[string]bool
	stakes    *StakeIndex
}

// New returns an empty Quorum backed by stakes for slashing targets.
func New(stakes *StakeIndex) *Quorum {
	return &Quorum{
		votes:     make(map[string][]Vote),
		voted:     make(map[string]map[string]bool),
		confirmed: make(map[string]bool),
		stakes:    stakes,
	}
}

// NewValidator appends v's vote for key (spec.md §4.6 `new_validator(v)`).
// A validator pubkey that already voted on this key is ignored, matching
// spec.md §7's "duplicate ... messages are silently deduplicated" applied
// to repeated votes from the same validator.
func (q *Quorum) NewValidator(key, validatorPubkey string, valid bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	seen, ok := q.voted[key]
	if !ok {
		seen = make(map[string]bool)
		q.voted[key] = seen
	}
	if seen[validatorPubkey] {
		return
	}
	seen[validatorPubkey] = true
	q.votes[key] = append(q.votes[key], Vote{ValidatorPubkey: validatorPubkey, Valid: valid})
}

// Confirmed reports whether key has already reached 2/3 confirmation.
func (q *Quorum) Confirmed(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.confirmed[key]
}

// Process implements `process_validators()` for key (spec.md §4.6):
// confirms the subject at >=2/3 valid votes, else slashes every valid=true
// dissenter once n_total exceeds the slash threshold.
func (q *Quorum) Process(key string) Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	votes := q.votes[key]
	nTotal := len(votes)
	var nValid int
	for _, v := range votes {
		if v.Valid {
			nValid++
		}
	}

	// n_valid/n_total >= 2/3 without floating point: 3*n_valid >= 2*n_total.
	confirmed := nTotal > 0 && 3*nValid >= 2*nTotal

	result := Result{Key: key, NTotal: nTotal, NValid: nValid, Confirmed: confirmed}

	if confirmed {
		q.confirmed[key] = true
		metrics.SubjectsConfirmed.Inc(1)
		log.Debugw("subject confirmed", "key", key, "n_valid", nValid, "n_total", nTotal)
		return result
	}

	if nTotal > dissentSlashThreshold {
		slashedClaims := make(map[string][]uint64)
		var slashed []string
		for _, v := range votes {
			if !v.Valid {
				continue
			}
			claims := q.stakes.Clear(v.ValidatorPubkey)
			slashed = append(slashed, v.ValidatorPubkey)
			slashedClaims[v.ValidatorPubkey] = claims
			metrics.ValidatorsSlashed.Inc(1)
		}
		result.Slashed = slashed
		result.SlashedClaims = slashedClaims
		log.Warnw("subject rejected, dissenters slashed", "key", key, "n_valid", nValid, "n_total", nTotal, "slashed", slashed)
	}

	return result
}
