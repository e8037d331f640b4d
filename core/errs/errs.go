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

// Package errs holds the sentinel error taxonomy shared across the core,
// wrapped at call sites with github.com/pkg/errors so callers keep a stack
// trace instead of a bare string, matching the teacher's
// errInvalidVotingChain-style sentinel-plus-wrap idiom
// (consensus/istanbul/backend/snapshot.go).
package errs

import "errors"

var (
	// ErrInvalidTxn is surfaced when a transaction fails signature, balance,
	// or double-spend checks.
	ErrInvalidTxn = errors.New("invalid transaction")
	// ErrInvalidClaimAcquisition is surfaced when a claim transfer fails
	// custody-chain or availability checks.
	ErrInvalidClaimAcquisition = errors.New("invalid claim acquisition")
	// ErrInvalidClaimHomesteading is surfaced when a fresh claim homestead
	// fails signature or prior-ownership checks.
	ErrInvalidClaimHomesteading = errors.New("invalid claim homesteading")
	// ErrInvalidBlock is surfaced when a candidate block fails valid_block.
	ErrInvalidBlock = errors.New("invalid block")
	// ErrNoLowestPointer is returned when every claim in the map is exhausted
	// at the current nonce; the caller should nonce_up and retry.
	ErrNoLowestPointer = errors.New("no lowest pointer: all claims exhausted")
	// ErrInsufficientPeers is returned when a GetState round finds no peers;
	// the caller should self-bootstrap as the genesis peer.
	ErrInsufficientPeers = errors.New("insufficient peers")
	// ErrStateLoad is a fatal error: snapshot corruption on restore.
	ErrStateLoad = errors.New("state load failed")
	// ErrSerialization covers as_bytes/from_bytes round-trip failures.
	ErrSerialization = errors.New("serialization error")
	// ErrProtocol marks a validator judgement with no viable true/false
	// outcome; it must propagate, never be guessed.
	ErrProtocol = errors.New("protocol error: no viable judgement")
)
