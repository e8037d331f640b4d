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

// Package metrics registers the counters the core emits, following the
// teacher's work/worker.go convention of module-prefixed
// metrics.NewRegisteredCounter names backed by rcrowley/go-metrics.
package metrics

import "github.com/rcrowley/go-metrics"

var (
	// BlocksMined counts blocks this node successfully mined (block.Mine).
	BlocksMined = metrics.NewRegisteredCounter("miner/blocksmined", nil)
	// BlocksRejected counts candidate blocks that failed valid_block.
	BlocksRejected = metrics.NewRegisteredCounter("block/rejected", nil)
	// BlocksAccepted counts blocks committed to the ledger.
	BlocksAccepted = metrics.NewRegisteredCounter("block/accepted", nil)
	// NoLowestPointer counts ticks where every known claim was exhausted.
	NoLowestPointer = metrics.NewRegisteredCounter("miner/nolowestpointer", nil)
	// ValidatorsSlashed counts validators slashed by the quorum.
	ValidatorsSlashed = metrics.NewRegisteredCounter("quorum/slashed", nil)
	// SubjectsConfirmed counts subjects (txn/claim/block) reaching 2/3 quorum.
	SubjectsConfirmed = metrics.NewRegisteredCounter("quorum/confirmed", nil)
	// TxnsAdmitted counts transactions accepted into the pending pool.
	TxnsAdmitted = metrics.NewRegisteredCounter("txpool/admitted", nil)
	// TxnsRejected counts transactions rejected at admission.
	TxnsRejected = metrics.NewRegisteredCounter("txpool/rejected", nil)
	// ClaimsExpired counts claims renumbered out for expiration.
	ClaimsExpired = metrics.NewRegisteredCounter("claim/expired", nil)
)
