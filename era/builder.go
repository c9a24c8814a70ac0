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

package era

import (
	"errors"
	"fmt"
	"io"

	"github.com/beaconarchive/erastore/e2store"
	"github.com/beaconarchive/erastore/utils"
)

// Builder writes a well-formed era file: version record, the previous era's
// compressed blocks in slot order, the compressed boundary state, then the
// block and state slot indices. Used by tests and tooling to produce
// fixtures; nodes consume archives produced by their own history export.
type Builder struct {
	w       *e2store.Writer
	written int64

	sphr         uint64
	blockOffsets map[uint64]int64
	lastSlot     uint64
	stateSlot    uint64
	stateOffset  int64
	stateWritten bool
	finished     bool
}

// NewBuilder starts an era file on w, writing the leading version record.
func NewBuilder(w io.Writer, slotsPerHistoricalRoot uint64) (*Builder, error) {
	b := &Builder{
		w:            e2store.NewWriter(w),
		sphr:         slotsPerHistoricalRoot,
		blockOffsets: make(map[uint64]int64),
	}
	n, err := b.w.Write(TypeVersion, nil)
	if err != nil {
		return nil, err
	}
	b.written += int64(n)
	return b, nil
}

// AddBlock compresses and appends a signed block's canonical encoding.
// Blocks must be added in ascending slot order, before the state.
func (b *Builder) AddBlock(slot uint64, ssz []byte) error {
	if b.stateWritten {
		return errors.New("blocks must precede the era state")
	}
	if len(b.blockOffsets) > 0 && slot <= b.lastSlot {
		return fmt.Errorf("block slot %d not ascending after %d", slot, b.lastSlot)
	}
	compressed, err := utils.CompressSnappyFramed(ssz)
	if err != nil {
		return err
	}
	offset := b.written
	n, err := b.w.Write(TypeCompressedSignedBeaconBlock, compressed)
	if err != nil {
		return err
	}
	b.written += int64(n)
	b.blockOffsets[slot] = offset
	b.lastSlot = slot
	return nil
}

// AddState compresses and appends the era's boundary state. slot must be the
// era start slot; for a non-genesis era the added blocks must fall in the
// preceding era's window.
func (b *Builder) AddState(slot uint64, ssz []byte) error {
	if b.stateWritten {
		return errors.New("era state already written")
	}
	if slot%b.sphr != 0 {
		return fmt.Errorf("state slot %d is not an era boundary", slot)
	}
	compressed, err := utils.CompressSnappyFramed(ssz)
	if err != nil {
		return err
	}
	b.stateOffset = b.written
	n, err := b.w.Write(TypeCompressedBeaconState, compressed)
	if err != nil {
		return err
	}
	b.written += int64(n)
	b.stateSlot = slot
	b.stateWritten = true
	return nil
}

// Finish writes the slot indices. The block index is omitted for the genesis
// era file, which has no preceding blocks.
func (b *Builder) Finish() error {
	if b.finished {
		return errors.New("era file already finished")
	}
	if !b.stateWritten {
		return errors.New("era file has no state")
	}
	if b.stateSlot > 0 {
		startSlot := b.stateSlot - b.sphr
		offsets := make([]int64, b.sphr)
		for slot, abs := range b.blockOffsets {
			if slot < startSlot || slot >= b.stateSlot {
				return fmt.Errorf("block slot %d outside era window [%d, %d)", slot, startSlot, b.stateSlot)
			}
			offsets[slot-startSlot] = abs - b.written
		}
		n, err := b.w.WriteSlotIndex(startSlot, offsets)
		if err != nil {
			return err
		}
		b.written += int64(n)
	} else if len(b.blockOffsets) > 0 {
		return errors.New("genesis era file cannot carry blocks")
	}
	_, err := b.w.WriteSlotIndex(b.stateSlot, []int64{b.stateOffset - b.written})
	if err != nil {
		return err
	}
	b.finished = true
	return nil
}
