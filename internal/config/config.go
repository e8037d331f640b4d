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

// Package config loads cmd/vrrbnode's TOML configuration, following the
// teacher's cmd/ranger/config.go normalization (TOML keys match Go field
// names exactly) and its config-file-then-flag-overrides layering.
package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// tomlSettings mirrors the teacher's tomlSettings: TOML keys are the exact
// Go struct field names, and an unrecognised field is a hard error rather
// than being silently dropped.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see %s#%s", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Config holds every setting cmd/vrrbnode needs to stand up a node (spec.md
// §6 "Persisted state", §4.7 miner loop state, §5 concurrency constants).
type Config struct {
	// DataDir is the directory the ledger snapshot (spec.md §6) and its
	// backup are written under.
	DataDir string

	// SnapshotFile is the keyed binary snapshot path (spec.md §6: "A single
	// keyed binary snapshot at a user-configured path").
	SnapshotFile string

	// ListenTopics are the gossip topics of spec.md §6; DefaultConfig sets
	// them to DefaultTopics below. An empty list is not replaced by defaults.
	ListenTopics []string

	// MineOnStart starts the miner loop with mining=true immediately,
	// matching a REPL operator who issues MINEBLK right after boot.
	MineOnStart bool

	// TickInterval paces the miner loop's cooperative yield (spec.md §5:
	// "yields after every mining attempt regardless of outcome").
	TickInterval time.Duration

	// ClaimMaturity overrides the default expiration window (spec.md §3
	// "expiration_time") for freshly minted claims; zero uses the miner
	// package default.
	ClaimMaturity time.Duration
}

// DefaultTopics are the gossip channels spec.md §6 requires every node to
// subscribe to.
var DefaultTopics = []string{"test-net", "txn", "claim", "block", "validator"}

// DefaultConfig is the teacher-style zero-value-safe starting point that
// cmd/vrrbnode loads the config file and flags on top of.
var DefaultConfig = Config{
	DataDir:      "vrrb-data",
	SnapshotFile: "vrrb-data/ledger.snapshot",
	ListenTopics: DefaultTopics,
	TickInterval: 2 * time.Second,
}

// Load reads a TOML file into cfg, starting from DefaultConfig (teacher's
// cmd/ranger/config.go `loadConfig` pattern, "load defaults, then load
// config file, then apply flags").
func Load(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return errors.New(path + ", " + err.Error())
		}
		return errors.Wrap(err, "decode config file")
	}
	return nil
}

// Marshal renders cfg as TOML, mirroring the teacher's dumpconfig command.
func Marshal(cfg *Config) ([]byte, error) {
	return tomlSettings.Marshal(cfg)
}
