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

// Package era reads consensus-chain era archive files: immutable per-era
// files holding one compressed boundary state and, except for the genesis
// era, every block of the preceding era. Records are e2store entries; the
// file tail carries two backward-locatable slot indices, the block index
// followed by the state index.
package era

import (
	"errors"
	"fmt"
	"io"

	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/spf13/afero"

	"github.com/beaconarchive/erastore/e2store"
)

const (
	// TypeVersion is the leading record of every era file ("e2").
	TypeVersion uint16 = 0x3265
	// TypeCompressedSignedBeaconBlock is a snappy-framed SSZ signed block.
	TypeCompressedSignedBeaconBlock uint16 = 0x01
	// TypeCompressedBeaconState is a snappy-framed SSZ beacon state.
	TypeCompressedBeaconState uint16 = 0x02
)

var (
	// ErrNotFound reports a slot or era that legitimately has no data: an
	// empty slot behind a zero index offset, a state slot that is not the
	// file's boundary slot, or an era beyond the known history.
	ErrNotFound = errors.New("era data not found")
	// ErrBadFormat reports an era file violating a structural invariant.
	// The file is unusable; the process is not.
	ErrBadFormat = errors.New("malformed era file")
	// ErrDecode reports a record whose payload failed decompression or
	// deserialization. Other records in the same file stay readable.
	ErrDecode = errors.New("era record decode failed")
)

// EraOf returns the era owning the given slot.
func EraOf(slot, slotsPerHistoricalRoot uint64) uint64 {
	return slot / slotsPerHistoricalRoot
}

// StartSlot returns the first slot of an era, the slot of its boundary state.
func StartSlot(era, slotsPerHistoricalRoot uint64) uint64 {
	return era * slotsPerHistoricalRoot
}

// Filename returns the canonical era file name
// <network>-<era>-<short root>.era, e.g. mainnet-00001-40cf2f3c.era.
func Filename(network string, era uint64, eraRoot common.Root) string {
	return fmt.Sprintf("%s-%05d-%x.era", network, era, eraRoot[:4])
}

// Index maps the slots of a contiguous range to absolute record offsets
// within one era file. A zero offset marks a slot without a record.
type Index struct {
	StartSlot uint64
	Offsets   []int64
}

func (i *Index) slotOffset(slot uint64) (int64, error) {
	if slot < i.StartSlot || slot-i.StartSlot >= uint64(len(i.Offsets)) {
		return 0, fmt.Errorf("slot %d outside index range [%d, %d): %w",
			slot, i.StartSlot, i.StartSlot+uint64(len(i.Offsets)), ErrBadFormat)
	}
	return i.Offsets[slot-i.StartSlot], nil
}

// File is an open era archive with its two validated indices. It is not safe
// for concurrent use; the owning resolver serializes access.
type File struct {
	f      afero.File
	path   string
	sphr   uint64
	reader *e2store.Reader

	StateIdx *Index
	BlockIdx *Index // nil for the genesis era file
}

// Open opens an era file and loads and validates its indices. On any failure
// the underlying file is closed before returning.
func Open(fs afero.Fs, path string, slotsPerHistoricalRoot uint64) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	e := &File{f: f, path: path, sphr: slotsPerHistoricalRoot, reader: e2store.NewReader(f)}
	if err := e.load(); err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

func (e *File) load() error {
	size, err := e.f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	typ, length, err := e.reader.ReadMetadataAt(0)
	if err != nil {
		return fmt.Errorf("%s: unreadable version record: %w", e.path, ErrBadFormat)
	}
	if typ != TypeVersion || length != 0 {
		return fmt.Errorf("%s: missing version record: %w", e.path, ErrBadFormat)
	}

	// The state index is written last; the block index, if any, precedes it.
	stateStart, err := e.reader.IndexStart(size)
	if err != nil {
		return fmt.Errorf("%s: locating state index: %v: %w", e.path, err, ErrBadFormat)
	}
	stateIdx, err := e.reader.ReadSlotIndex(stateStart)
	if err != nil {
		return fmt.Errorf("%s: parsing state index: %v: %w", e.path, err, ErrBadFormat)
	}
	if len(stateIdx.Offsets) != 1 {
		return fmt.Errorf("%s: state index has %d offsets, want 1: %w", e.path, len(stateIdx.Offsets), ErrBadFormat)
	}
	e.StateIdx = rebase(stateIdx, stateStart)

	if stateIdx.StartSlot == 0 {
		// Genesis era file: no preceding era, no blocks.
		return nil
	}
	blockStart, err := e.reader.IndexStart(stateStart)
	if err != nil {
		return fmt.Errorf("%s: locating block index: %v: %w", e.path, err, ErrBadFormat)
	}
	blockIdx, err := e.reader.ReadSlotIndex(blockStart)
	if err != nil {
		return fmt.Errorf("%s: parsing block index: %v: %w", e.path, err, ErrBadFormat)
	}
	if uint64(len(blockIdx.Offsets)) != e.sphr {
		return fmt.Errorf("%s: block index has %d offsets, want %d: %w", e.path, len(blockIdx.Offsets), e.sphr, ErrBadFormat)
	}
	if blockIdx.StartSlot != stateIdx.StartSlot-e.sphr {
		return fmt.Errorf("%s: block index starts at slot %d, want %d: %w",
			e.path, blockIdx.StartSlot, stateIdx.StartSlot-e.sphr, ErrBadFormat)
	}
	e.BlockIdx = rebase(blockIdx, blockStart)
	return nil
}

// rebase turns record-relative index offsets into absolute file offsets,
// preserving the zero empty-slot sentinel.
func rebase(idx *e2store.SlotIndex, recordStart int64) *Index {
	abs := make([]int64, len(idx.Offsets))
	for i, rel := range idx.Offsets {
		if rel != 0 {
			abs[i] = recordStart + rel
		}
	}
	return &Index{StartSlot: idx.StartSlot, Offsets: abs}
}

// Start returns the boundary slot of the era held by this file.
func (e *File) Start() uint64 {
	return e.StateIdx.StartSlot
}

// Era returns the era number held by this file.
func (e *File) Era() uint64 {
	return EraOf(e.StateIdx.StartSlot, e.sphr)
}

func (e *File) Path() string {
	return e.path
}

// Close releases the underlying file. Safe to call more than once.
func (e *File) Close() error {
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

// CompressedState returns the snappy-framed boundary state record. Era files
// hold exactly one state, at the era's start slot; any other slot reports
// ErrNotFound.
func (e *File) CompressedState(slot uint64) ([]byte, error) {
	if e.StateIdx.StartSlot != slot {
		return nil, fmt.Errorf("%s holds the state of slot %d, not %d: %w", e.path, e.StateIdx.StartSlot, slot, ErrNotFound)
	}
	off := e.StateIdx.Offsets[0]
	if off == 0 {
		return nil, fmt.Errorf("no state at slot %d: %w", slot, ErrNotFound)
	}
	return e.readRecord(off, TypeCompressedBeaconState)
}

// CompressedBlock returns the snappy-framed block record for a slot of the
// preceding era. An empty slot reports ErrNotFound.
func (e *File) CompressedBlock(slot uint64) ([]byte, error) {
	if e.BlockIdx == nil {
		return nil, fmt.Errorf("%s carries no block index: %w", e.path, ErrBadFormat)
	}
	off, err := e.BlockIdx.slotOffset(slot)
	if err != nil {
		return nil, err
	}
	if off == 0 {
		return nil, fmt.Errorf("no block at slot %d: %w", slot, ErrNotFound)
	}
	return e.readRecord(off, TypeCompressedSignedBeaconBlock)
}

func (e *File) readRecord(off int64, typ uint16) ([]byte, error) {
	r, n, err := e.reader.ReaderAt(typ, off)
	if err != nil {
		if errors.Is(err, e2store.ErrWrongType) {
			return nil, fmt.Errorf("%s: record at offset %d: %v: %w", e.path, off, err, ErrBadFormat)
		}
		return nil, fmt.Errorf("%s: record at offset %d: %w", e.path, off, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: record at offset %d: %w", e.path, off, err)
	}
	if len(data) != n-e2store.HeaderSize {
		return nil, fmt.Errorf("%s: record at offset %d truncated: %w", e.path, off, io.ErrUnexpectedEOF)
	}
	return data, nil
}
