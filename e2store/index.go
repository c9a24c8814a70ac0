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

package e2store

import (
	"encoding/binary"
	"fmt"
)

// TypeSlotIndex is the record type of a slot index ("i2").
const TypeSlotIndex uint16 = 0x3269

// A slot index record is self-describing from its tail: the final 8 bytes
// repeat the offset count, so the record can be located by scanning backward
// from its end without any external metadata:
//
//	header | start-slot | offset * count | count
//
// Offsets are signed 64-bit values relative to the start of the record, with
// zero marking a slot that has no record.
const slotIndexCountMax = 1 << 27

// SlotIndex is a parsed slot index record. Offsets remain relative to the
// record start; the caller rebases them against off as needed.
type SlotIndex struct {
	StartSlot uint64
	Offsets   []int64
}

// IndexStart locates the start of the slot index record whose encoding ends
// at end, by reading the trailing offset count. It is the backward-scan half
// of the two-step locate/parse protocol; ReadSlotIndex is the forward half.
func (r *Reader) IndexStart(end int64) (int64, error) {
	buf := make([]byte, 8)
	if _, err := r.r.ReadAt(buf, end-8); err != nil {
		return 0, err
	}
	count := binary.LittleEndian.Uint64(buf)
	if count > slotIndexCountMax {
		return 0, fmt.Errorf("invalid slot index offset count %d", count)
	}
	start := end - int64(HeaderSize+8+count*8+8)
	if start < 0 {
		return 0, fmt.Errorf("slot index with %d offsets does not fit before offset %d", count, end)
	}
	return start, nil
}

// ReadSlotIndex parses the slot index record starting at off.
func (r *Reader) ReadSlotIndex(off int64) (*SlotIndex, error) {
	typ, length, err := r.ReadMetadataAt(off)
	if err != nil {
		return nil, err
	}
	if typ != TypeSlotIndex {
		return nil, fmt.Errorf("wrong slot index type, want %d have %d", TypeSlotIndex, typ)
	}
	if length < 24 || (length-16)%8 != 0 {
		return nil, fmt.Errorf("invalid slot index length %d", length)
	}
	count := (length - 16) / 8
	body := make([]byte, length)
	if _, err := r.r.ReadAt(body, off+HeaderSize); err != nil {
		return nil, err
	}
	if tail := binary.LittleEndian.Uint64(body[len(body)-8:]); tail != uint64(count) {
		return nil, fmt.Errorf("slot index trailing count %d does not match length-derived count %d", tail, count)
	}
	index := &SlotIndex{
		StartSlot: binary.LittleEndian.Uint64(body),
		Offsets:   make([]int64, count),
	}
	for i := range index.Offsets {
		index.Offsets[i] = int64(binary.LittleEndian.Uint64(body[8+i*8:]))
	}
	return index, nil
}

// WriteSlotIndex appends a slot index record for the given relative offsets.
func (w *Writer) WriteSlotIndex(startSlot uint64, offsets []int64) (int, error) {
	body := make([]byte, 8+len(offsets)*8+8)
	binary.LittleEndian.PutUint64(body, startSlot)
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(body[8+i*8:], uint64(off))
	}
	binary.LittleEndian.PutUint64(body[len(body)-8:], uint64(len(offsets)))
	return w.Write(TypeSlotIndex, body)
}
