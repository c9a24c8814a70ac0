package e2store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlotIndexRoundTrip(t *testing.T) {
	var (
		b       = bytes.NewBuffer(nil)
		w       = NewWriter(b)
		offsets = []int64{-4096, 0, -2048, 0, 0, -1024, -512, -256}
	)
	n, err := w.WriteSlotIndex(8192, offsets)
	require.NoError(t, err)
	require.Equal(t, b.Len(), n)

	r := NewReader(bytes.NewReader(b.Bytes()))

	// The record is located backward from its end, then parsed forward.
	start, err := r.IndexStart(int64(b.Len()))
	require.NoError(t, err)
	require.Equal(t, int64(0), start)

	idx, err := r.ReadSlotIndex(start)
	require.NoError(t, err)
	require.Equal(t, uint64(8192), idx.StartSlot)
	require.Equal(t, offsets, idx.Offsets)
}

func TestSlotIndexAfterOtherRecords(t *testing.T) {
	var (
		b = bytes.NewBuffer(nil)
		w = NewWriter(b)
	)
	_, err := w.Write(1, make([]byte, 321))
	require.NoError(t, err)
	prefix := int64(b.Len())
	_, err = w.WriteSlotIndex(64, []int64{-prefix})
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(b.Bytes()))
	start, err := r.IndexStart(int64(b.Len()))
	require.NoError(t, err)
	require.Equal(t, prefix, start)

	idx, err := r.ReadSlotIndex(start)
	require.NoError(t, err)
	require.Equal(t, uint64(64), idx.StartSlot)
	require.Equal(t, []int64{-prefix}, idx.Offsets)
}

func TestSlotIndexBadRecord(t *testing.T) {
	// Not a slot index type.
	var (
		b = bytes.NewBuffer(nil)
		w = NewWriter(b)
	)
	_, err := w.Write(42, make([]byte, 24))
	require.NoError(t, err)
	r := NewReader(bytes.NewReader(b.Bytes()))
	_, err = r.ReadSlotIndex(0)
	require.Error(t, err)

	// Trailing count word pointing before the start of the buffer.
	b.Reset()
	w = NewWriter(b)
	_, err = w.WriteSlotIndex(0, []int64{0, 0, 0})
	require.NoError(t, err)
	raw := b.Bytes()
	raw[len(raw)-8] = 0xff
	r = NewReader(bytes.NewReader(raw))
	_, err = r.IndexStart(int64(len(raw)))
	require.Error(t, err)

	// Body length not matching the trailing count.
	b.Reset()
	w = NewWriter(b)
	_, err = w.WriteSlotIndex(0, []int64{0, 0})
	require.NoError(t, err)
	raw = b.Bytes()
	raw[len(raw)-8] = 9
	r = NewReader(bytes.NewReader(raw))
	_, err = r.ReadSlotIndex(0)
	require.Error(t, err)
}
