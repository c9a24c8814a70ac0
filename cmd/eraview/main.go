// Copyright 2024 The erastore Authors
// This file is part of erastore.
//
// erastore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// erastore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with erastore. If not, see <http://www.gnu.org/licenses/>.

// eraview inspects a directory of era archive files: it resolves eras through
// the anchors of a reference beacon state and prints blocks, states and era
// block summaries.
package main

import (
	"fmt"
	"os"

	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/beaconarchive/erastore/clparams"
	"github.com/beaconarchive/erastore/cltypes"
	"github.com/beaconarchive/erastore/eradb"
)

var (
	datadirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "directory holding the era files",
		Required: true,
	}
	stateFlag = &cli.StringFlag{
		Name:     "state",
		Usage:    "SSZ-encoded reference beacon state anchoring the history",
		Required: true,
	}
	chainFlag = &cli.StringFlag{
		Name:  "chain",
		Usage: "chain config to use (mainnet, minimal)",
		Value: "mainnet",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log verbosity (trace, debug, info, warn, error, crit)",
		Value: "info",
	}
)

func main() {
	app := &cli.App{
		Name:  "eraview",
		Usage: "inspect era archive files",
		Flags: []cli.Flag{datadirFlag, stateFlag, chainFlag, verbosityFlag},
		Commands: []*cli.Command{
			{
				Name:      "summaries",
				Usage:     "print the canonical (slot, block root) pairs of an era",
				ArgsUsage: "<era>",
				Action:    printSummaries,
			},
			{
				Name:      "block",
				Usage:     "print the block stored for a slot",
				ArgsUsage: "<slot>",
				Action:    printBlock,
			},
			{
				Name:      "state",
				Usage:     "print the boundary state stored for an era start slot",
				ArgsUsage: "<slot>",
				Action:    printState,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("eraview failed", "err", err)
		os.Exit(1)
	}
}

// openDatabase builds the database and the reference anchors from the global
// flags.
func openDatabase(ctx *cli.Context) (*eradb.EraDatabase, eradb.HistoryAnchors, error) {
	lvl, err := log.LvlFromString(ctx.String(verbosityFlag.Name))
	if err != nil {
		return nil, eradb.HistoryAnchors{}, err
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StderrHandler))

	cfg, err := clparams.BeaconConfigByName(ctx.String(chainFlag.Name))
	if err != nil {
		return nil, eradb.HistoryAnchors{}, err
	}
	raw, err := os.ReadFile(ctx.String(stateFlag.Name))
	if err != nil {
		return nil, eradb.HistoryAnchors{}, err
	}
	st, err := cltypes.DeserializeState(cfg, raw)
	if err != nil {
		return nil, eradb.HistoryAnchors{}, fmt.Errorf("reference state: %w", err)
	}
	anchors := eradb.AnchorsFromState(st)
	log.Info("Loaded reference state", "slot", st.Slot(),
		"version", clparams.ClVersionToString(st.Version()), "eras", anchors.EraCount())

	db, err := eradb.New(cfg, ctx.String(datadirFlag.Name), log.Root())
	if err != nil {
		return nil, eradb.HistoryAnchors{}, err
	}
	return db, anchors, nil
}

func numberArg(ctx *cli.Context, what string) (uint64, error) {
	if ctx.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one argument, the %s", what)
	}
	var n uint64
	if _, err := fmt.Sscanf(ctx.Args().First(), "%d", &n); err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", what, ctx.Args().First(), err)
	}
	return n, nil
}

func printSummaries(ctx *cli.Context) error {
	eraNum, err := numberArg(ctx, "era number")
	if err != nil {
		return err
	}
	db, anchors, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	count := 0
	for slot, root := range db.Summaries(anchors, eraNum) {
		fmt.Printf("%d\t%x\n", slot, root)
		count++
	}
	log.Info("Era summaries printed", "era", eraNum, "blocks", count)
	return nil
}

func printBlock(ctx *cli.Context) error {
	slot, err := numberArg(ctx, "slot")
	if err != nil {
		return err
	}
	db, anchors, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	blk, err := db.Block(anchors, slot, nil)
	if err != nil {
		return err
	}
	fmt.Printf("slot:           %d\n", blk.Slot())
	fmt.Printf("proposer index: %d\n", blk.ProposerIndex())
	fmt.Printf("block root:     %x\n", blk.Root())
	fmt.Printf("parent root:    %x\n", blk.ParentRoot())
	fmt.Printf("state root:     %x\n", blk.StateRoot())
	fmt.Printf("version:        %s\n", clparams.ClVersionToString(blk.Version()))
	return nil
}

func printState(ctx *cli.Context) error {
	slot, err := numberArg(ctx, "slot")
	if err != nil {
		return err
	}
	db, anchors, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.State(anchors, slot)
	if err != nil {
		return err
	}
	fmt.Printf("slot:                    %d\n", st.Slot())
	fmt.Printf("version:                 %s\n", clparams.ClVersionToString(st.Version()))
	fmt.Printf("fork epoch:              %d\n", st.ForkEpoch())
	fmt.Printf("genesis validators root: %x\n", st.GenesisValidatorsRoot())
	fmt.Printf("historical roots:        %d\n", len(st.HistoricalRoots()))
	fmt.Printf("block summary roots:     %d\n", len(st.BlockSummaryRoots()))
	return nil
}
