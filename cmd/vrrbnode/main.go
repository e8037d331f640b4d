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

// Command vrrbnode is the operator REPL entrypoint (spec.md §6), grounded
// on the teacher's cmd/kcn/main.go app-flags-Action layout and
// cmd/ranger/config.go's TOML loading.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"
	"github.com/vrrb-labs/vrrb-core/internal/config"
	"github.com/vrrb-labs/vrrb-core/internal/vrrblog"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the snapshot store",
		Value: config.DefaultConfig.DataDir,
	}
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	mineFlag = cli.BoolFlag{
		Name:  "mine",
		Usage: "Start the miner loop immediately",
	}
	tickFlag = cli.DurationFlag{
		Name:  "tick",
		Usage: "Miner loop tick interval",
		Value: config.DefaultConfig.TickInterval,
	}
	devLogFlag = cli.BoolFlag{
		Name:  "devlog",
		Usage: "Use human-readable development logging instead of JSON",
	}

	app = cli.NewApp()
)

func init() {
	app.Name = filepath.Base(os.Args[0])
	app.Usage = "a vrrb-core node REPL"
	app.HideVersion = true
	app.Flags = []cli.Flag{dataDirFlag, configFileFlag, mineFlag, tickFlag, devLogFlag}
	app.Action = run
}

func loadConfig(ctx *cli.Context) config.Config {
	cfg := config.DefaultConfig
	if path := ctx.String(configFileFlag.Name); path != "" {
		if err := config.Load(path, &cfg); err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}
	if d := ctx.String(dataDirFlag.Name); ctx.IsSet(dataDirFlag.Name) && d != "" {
		cfg.DataDir = d
		cfg.SnapshotFile = filepath.Join(d, "ledger.snapshot")
	}
	if ctx.Bool(mineFlag.Name) {
		cfg.MineOnStart = true
	}
	if ctx.IsSet(tickFlag.Name) && ctx.Duration(tickFlag.Name) > 0 {
		cfg.TickInterval = ctx.Duration(tickFlag.Name)
	}
	return cfg
}

func run(ctx *cli.Context) error {
	if ctx.Bool(devLogFlag.Name) {
		vrrblog.SetDevelopment()
	}
	cfg := loadConfig(ctx)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	sess, err := newSession(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer sess.Close()

	go sess.runMinerLoop()

	return runREPL(sess)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
