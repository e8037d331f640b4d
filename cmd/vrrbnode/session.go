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

package main

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vrrb-labs/vrrb-core/core/block"
	"github.com/vrrb-labs/vrrb-core/core/ledger"
	"github.com/vrrb-labs/vrrb-core/core/miner"
	"github.com/vrrb-labs/vrrb-core/core/node"
	"github.com/vrrb-labs/vrrb-core/internal/config"
	"github.com/vrrb-labs/vrrb-core/internal/snapshotstore"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var log = vrrblog.NewModuleLogger("vrrbnode")

// session owns the running node, its snapshot store, and the book-keeping
// needed to maintain block_archive across restarts (spec.md §6 "Persisted
// state"; ledger.State itself only tracks last_block/block_archive
// in-memory -- see internal/snapshotstore's KeyLastBlock/KeyBlockArchive
// doc comment).
type session struct {
	cfg   config.Config
	store *snapshotstore.Store
	node  *node.Node

	mu      sync.Mutex
	archive map[uint64][]byte // height -> block.AsBytes(), accumulated since process start or restore
}

func newSession(cfg config.Config, rng *rand.Rand) (*session, error) {
	if err := snapshotstore.BackupRotate(cfg.SnapshotFile); err != nil {
		return nil, errors.Wrap(err, "rotate snapshot backup")
	}
	store, err := snapshotstore.Open(cfg.SnapshotFile)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, store: store, archive: map[uint64][]byte{}}

	n, err := s.restore(rng)
	if err != nil {
		store.Close()
		return nil, err
	}
	s.node = n

	if cfg.ClaimMaturity > 0 {
		s.node.Miner.SetClaimMaturity(cfg.ClaimMaturity)
	}
	if cfg.MineOnStart {
		s.node.MineBlock()
	}
	return s, nil
}

// restore implements spec.md §4.4 `restore(path)`: an absent snapshot
// initialises an empty node; a present one must decode cleanly or the
// process exits before producing any messages (spec.md §7 "Fatal: snapshot
// corruption on restore").
func (s *session) restore(rng *rand.Rand) (*node.Node, error) {
	raw, ok, err := s.store.Get(snapshotstore.KeyState)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Infow("no prior snapshot found, starting empty", "path", s.cfg.SnapshotFile)
		return node.New("vrrbnode", rng)
	}

	state, err := ledger.FromBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode ledger snapshot")
	}

	var lastRaw []byte
	if lastRaw, ok, err = s.store.Get(snapshotstore.KeyLastBlock); err != nil {
		return nil, err
	} else if ok {
		last, err := block.FromBytes(lastRaw)
		if err != nil {
			return nil, errors.Wrap(err, "decode last_block")
		}
		state.Commit(last)
	}

	var archiveRaw map[uint64]json.RawMessage
	if ok, err = s.store.GetJSON(snapshotstore.KeyBlockArchive, &archiveRaw); err != nil {
		return nil, err
	} else if ok {
		for height, raw := range archiveRaw {
			s.archive[height] = raw
		}
	}

	log.Infow("restored snapshot", "path", s.cfg.SnapshotFile, "archived_heights", len(s.archive))
	return node.Restore("vrrbnode", rng, state)
}

// persist writes the full KeyState blob plus last_block/block_archive
// through to the store (spec.md §6 "Written through on every commit").
func (s *session) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.node.State.AsBytes()
	if err != nil {
		return err
	}
	if err := s.store.Put(snapshotstore.KeyState, raw); err != nil {
		return err
	}

	if last, ok := s.node.State.LastBlock(); ok {
		lb, ok := last.(*block.Block)
		if !ok {
			return errors.New("last_block is not a *block.Block")
		}
		lastRaw, err := lb.AsBytes()
		if err != nil {
			return err
		}
		if err := s.store.Put(snapshotstore.KeyLastBlock, lastRaw); err != nil {
			return err
		}
		s.archive[lb.Height()] = lastRaw
	}

	return s.store.PutJSON(snapshotstore.KeyBlockArchive, s.archive)
}

func (s *session) Close() error {
	if err := s.persist(); err != nil {
		log.Errorw("final snapshot write failed", "err", err)
	}
	return s.store.Close()
}

// runMinerLoop drives Miner.Tick forever at cfg.TickInterval, committing
// whatever each tick produces and persisting afterwards (spec.md §4.7
// "Miner loop"; §5 "yields after every mining attempt regardless of
// outcome").
func (s *session) runMinerLoop() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for range ticker.C {
		tick, err := s.node.Miner.Tick()
		if err != nil {
			log.Errorw("miner tick failed", "err", err)
			continue
		}

		switch tick.Outcome {
		case miner.OutcomeGenesisMined:
			var uts [16]byte
			if err := s.node.Miner.CommitGenesis(tick.Block, uts); err != nil {
				log.Errorw("commit genesis failed", "err", err)
				continue
			}
			log.Infow("mined genesis block", "height", tick.Block.Header.BlockHeight)
		case miner.OutcomeBlockMined:
			if err := s.node.ReceiveBlock(tick.Block, true, s.node.ID); err != nil {
				log.Errorw("commit own block failed", "err", err)
				continue
			}
			log.Infow("mined block", "height", tick.Block.Header.BlockHeight)
		case miner.OutcomeYieldedToPeer, miner.OutcomeNoncedUp, miner.OutcomeIdle:
			continue
		}

		if err := s.persist(); err != nil {
			log.Errorw("snapshot persist failed", "err", err)
		}
	}
}
