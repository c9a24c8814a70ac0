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

// Package eradb resolves era numbers to open era files and serves block and
// state reads out of them. A small FIFO pool keeps recently opened files
// around so sequential backfill does not reopen the same archive per record.
package eradb

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/ledgerwatch/log/v3"
	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/spf13/afero"

	"github.com/beaconarchive/erastore/clparams"
	"github.com/beaconarchive/erastore/cltypes"
	"github.com/beaconarchive/erastore/era"
	"github.com/beaconarchive/erastore/utils"
)

// maxOpenFiles bounds the era file pool. Eviction is oldest-opened first.
const maxOpenFiles = 16

// EraDatabase is a read-only view over a directory of era archive files. It
// is not safe for concurrent use.
type EraDatabase struct {
	cfg     *clparams.BeaconChainConfig
	fs      afero.Fs
	datadir string
	logger  log.Logger

	files []*era.File // open handles, oldest first
}

// New opens an era database over a directory on the host filesystem. The
// directory itself may not be a symlink; era files inside it may be.
func New(cfg *clparams.BeaconChainConfig, datadir string, logger log.Logger) (*EraDatabase, error) {
	fi, err := os.Lstat(datadir)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("era directory %s is a symlink", datadir)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("era path %s is not a directory", datadir)
	}
	logger.Info("Opened era archive directory", "dir", datadir, "network", cfg.Name)
	return NewWithFs(cfg, afero.NewOsFs(), datadir, logger), nil
}

// NewWithFs is New over an arbitrary filesystem, without the host directory
// checks.
func NewWithFs(cfg *clparams.BeaconChainConfig, fs afero.Fs, datadir string, logger log.Logger) *EraDatabase {
	return &EraDatabase{cfg: cfg, fs: fs, datadir: datadir, logger: logger}
}

// Close releases every pooled era file.
func (db *EraDatabase) Close() error {
	var firstErr error
	for _, f := range db.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.files = nil
	return firstErr
}

// Get returns the open era file for an era, opening and pooling it on a miss.
// The returned handle stays owned by the database; callers must not close it.
func (db *EraDatabase) Get(a HistoryAnchors, eraNum uint64) (*era.File, error) {
	for _, f := range db.files {
		if f.Era() == eraNum {
			return f, nil
		}
	}
	root, err := a.EraRoot(eraNum)
	if err != nil {
		return nil, err
	}
	if len(db.files) >= maxOpenFiles {
		evicted := db.files[0]
		db.files = db.files[1:]
		db.logger.Trace("Evicting era file", "era", evicted.Era(), "path", evicted.Path())
		if err := evicted.Close(); err != nil {
			db.logger.Warn("Closing evicted era file", "era", evicted.Era(), "err", err)
		}
	}
	path := filepath.Join(db.datadir, era.Filename(db.cfg.Name, eraNum, root))
	f, err := era.Open(db.fs, path, db.cfg.SlotsPerHistoricalRoot())
	if err != nil {
		return nil, err
	}
	if f.Era() != eraNum {
		f.Close()
		return nil, fmt.Errorf("%s holds era %d, want %d: %w", path, f.Era(), eraNum, era.ErrBadFormat)
	}
	db.logger.Debug("Opened era file", "era", eraNum, "path", path)
	db.files = append(db.files, f)
	return f, nil
}

// BlockSZ returns the snappy-framed SSZ encoding of the block at a slot.
// Blocks live in the era file following their own era.
func (db *EraDatabase) BlockSZ(a HistoryAnchors, slot uint64) ([]byte, error) {
	f, err := db.Get(a, era.EraOf(slot, db.cfg.SlotsPerHistoricalRoot())+1)
	if err != nil {
		return nil, err
	}
	return f.CompressedBlock(slot)
}

// BlockSSZ returns the SSZ encoding of the block at a slot.
func (db *EraDatabase) BlockSSZ(a HistoryAnchors, slot uint64) ([]byte, error) {
	sz, err := db.BlockSZ(a, slot)
	if err != nil {
		return nil, err
	}
	ssz, err := utils.DecompressSnappyFramed(sz)
	if err != nil {
		return nil, fmt.Errorf("block at slot %d: %v: %w", slot, err, era.ErrDecode)
	}
	return ssz, nil
}

// StateSZ returns the snappy-framed SSZ encoding of the boundary state at an
// era start slot. Non-boundary slots report ErrNotFound.
func (db *EraDatabase) StateSZ(a HistoryAnchors, slot uint64) ([]byte, error) {
	f, err := db.Get(a, era.EraOf(slot, db.cfg.SlotsPerHistoricalRoot()))
	if err != nil {
		return nil, err
	}
	return f.CompressedState(slot)
}

// StateSSZ returns the SSZ encoding of the boundary state at an era start
// slot.
func (db *EraDatabase) StateSSZ(a HistoryAnchors, slot uint64) ([]byte, error) {
	sz, err := db.StateSZ(a, slot)
	if err != nil {
		return nil, err
	}
	ssz, err := utils.DecompressSnappyFramed(sz)
	if err != nil {
		return nil, fmt.Errorf("state at slot %d: %v: %w", slot, err, era.ErrDecode)
	}
	return ssz, nil
}

// Block reads and deserializes the block at a slot. When knownRoot is
// non-nil it is installed as the block root without recomputation.
func (db *EraDatabase) Block(a HistoryAnchors, slot uint64, knownRoot *common.Root) (*cltypes.SignedBeaconBlock, error) {
	ssz, err := db.BlockSSZ(a, slot)
	if err != nil {
		return nil, err
	}
	blk, err := cltypes.DeserializeBlock(db.cfg, ssz, knownRoot)
	if err != nil {
		return nil, fmt.Errorf("block at slot %d: %w", slot, err)
	}
	return blk, nil
}

// State reads and deserializes the boundary state at an era start slot.
func (db *EraDatabase) State(a HistoryAnchors, slot uint64) (*cltypes.BeaconState, error) {
	ssz, err := db.StateSSZ(a, slot)
	if err != nil {
		return nil, err
	}
	st, err := cltypes.DeserializeState(db.cfg, ssz)
	if err != nil {
		return nil, fmt.Errorf("state at slot %d: %w", slot, err)
	}
	return st, nil
}

// Summaries iterates the canonical (slot, block root) pairs recoverable from
// an era file: the block_roots window of its own boundary state, covering the
// slots of the preceding era. The vector repeats a root across empty slots;
// consecutive duplicates are collapsed so each yielded pair is a distinct
// block. Era 0 has no preceding blocks. When the boundary state cannot be
// loaded the sequence is empty; the iterator is restartable.
func (db *EraDatabase) Summaries(a HistoryAnchors, eraNum uint64) iter.Seq2[uint64, common.Root] {
	if eraNum == 0 {
		return func(func(uint64, common.Root) bool) {}
	}
	sphr := db.cfg.SlotsPerHistoricalRoot()
	st, err := db.State(a, era.StartSlot(eraNum, sphr))
	if err != nil {
		db.logger.Debug("Era summaries unavailable", "era", eraNum, "err", err)
		return func(func(uint64, common.Root) bool) {}
	}
	roots := st.BlockRoots()
	startSlot := era.StartSlot(eraNum, sphr) - sphr
	return func(yield func(uint64, common.Root) bool) {
		var prev common.Root
		for i, r := range roots {
			if r == prev {
				continue
			}
			if !yield(startSlot+uint64(i), r) {
				return
			}
			prev = r
		}
	}
}
