package era

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"testing"

	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/beaconarchive/erastore/utils"
)

const testSlotsPerHistoricalRoot = 8

func buildEraFile(t *testing.T, stateSlot uint64, blocks map[uint64][]byte, state []byte) []byte {
	t.Helper()
	var (
		buf   bytes.Buffer
		slots []uint64
	)
	b, err := NewBuilder(&buf, testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	for slot := range blocks {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for _, slot := range slots {
		require.NoError(t, b.AddBlock(slot, blocks[slot]))
	}
	require.NoError(t, b.AddState(stateSlot, state))
	require.NoError(t, b.Finish())
	return buf.Bytes()
}

func writeFs(t *testing.T, name string, data []byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	return fs
}

func TestOpenAndRetrieve(t *testing.T) {
	blocks := map[uint64][]byte{
		8:  []byte("block eight"),
		9:  []byte("block nine"),
		14: []byte("block fourteen"),
	}
	raw := buildEraFile(t, 16, blocks, []byte("boundary state"))
	fs := writeFs(t, "test-00002.era", raw)

	f, err := Open(fs, "test-00002.era", testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, uint64(16), f.Start())
	require.Equal(t, uint64(2), f.Era())
	require.NotNil(t, f.BlockIdx)
	require.Equal(t, uint64(8), f.BlockIdx.StartSlot)

	for slot, want := range blocks {
		compressed, err := f.CompressedBlock(slot)
		require.NoError(t, err)
		got, err := utils.DecompressSnappyFramed(compressed)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	compressed, err := f.CompressedState(16)
	require.NoError(t, err)
	got, err := utils.DecompressSnappyFramed(compressed)
	require.NoError(t, err)
	require.Equal(t, []byte("boundary state"), got)
}

func TestEmptySlotIsNotFound(t *testing.T) {
	raw := buildEraFile(t, 16, map[uint64][]byte{8: []byte("b")}, []byte("s"))
	fs := writeFs(t, "f.era", raw)
	f, err := Open(fs, "f.era", testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.CompressedBlock(9)
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrBadFormat)
}

func TestStateSlotMismatchIsNotFound(t *testing.T) {
	raw := buildEraFile(t, 16, nil, []byte("s"))
	fs := writeFs(t, "f.era", raw)
	f, err := Open(fs, "f.era", testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	defer f.Close()

	for _, slot := range []uint64{0, 8, 15, 17, 24} {
		_, err := f.CompressedState(slot)
		require.ErrorIs(t, err, ErrNotFound, "slot %d", slot)
	}
}

func TestGenesisFileHasNoBlockIndex(t *testing.T) {
	raw := buildEraFile(t, 0, nil, []byte("genesis state"))
	fs := writeFs(t, "g.era", raw)
	f, err := Open(fs, "g.era", testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	defer f.Close()

	require.Nil(t, f.BlockIdx)
	compressed, err := f.CompressedState(0)
	require.NoError(t, err)
	got, err := utils.DecompressSnappyFramed(compressed)
	require.NoError(t, err)
	require.Equal(t, []byte("genesis state"), got)

	_, err = f.CompressedBlock(4)
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestBlockIndexLengthMismatch(t *testing.T) {
	raw := buildEraFile(t, 16, map[uint64][]byte{8: []byte("b")}, []byte("s"))
	fs := writeFs(t, "f.era", raw)

	// A block index sized for 8 slots never yields a usable handle when the
	// chain expects 16.
	_, err := Open(fs, "f.era", 16)
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestRecordTypeMismatch(t *testing.T) {
	raw := buildEraFile(t, 16, map[uint64][]byte{8: []byte("b")}, []byte("s"))
	// First block record follows the 8-byte version record; corrupt its tag.
	raw[8] = 0x07
	fs := writeFs(t, "f.era", raw)

	f, err := Open(fs, "f.era", testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.CompressedBlock(8)
	require.ErrorIs(t, err, ErrBadFormat)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestTruncatedRecord(t *testing.T) {
	raw := buildEraFile(t, 16, map[uint64][]byte{8: []byte("b")}, []byte("s"))
	// Stretch the first block record's length field past end of file.
	binary.LittleEndian.PutUint32(raw[10:], uint32(len(raw)))
	fs := writeFs(t, "f.era", raw)

	f, err := Open(fs, "f.era", testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.CompressedBlock(8)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMissingVersionRecord(t *testing.T) {
	raw := buildEraFile(t, 16, nil, []byte("s"))
	raw[0] = 0xff
	fs := writeFs(t, "f.era", raw)
	_, err := Open(fs, "f.era", testSlotsPerHistoricalRoot)
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestCorruptIndexTail(t *testing.T) {
	raw := buildEraFile(t, 16, nil, []byte("s"))
	// Trailing count word of the state index.
	raw[len(raw)-8] = 0xfe
	fs := writeFs(t, "f.era", raw)
	_, err := Open(fs, "f.era", testSlotsPerHistoricalRoot)
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestSlotOutsideBlockIndex(t *testing.T) {
	raw := buildEraFile(t, 16, map[uint64][]byte{8: []byte("b")}, []byte("s"))
	fs := writeFs(t, "f.era", raw)
	f, err := Open(fs, "f.era", testSlotsPerHistoricalRoot)
	require.NoError(t, err)
	defer f.Close()

	for _, slot := range []uint64{0, 7, 16, 100} {
		_, err := f.CompressedBlock(slot)
		require.ErrorIs(t, err, ErrBadFormat, "slot %d", slot)
	}
}

func TestFilename(t *testing.T) {
	var root common.Root
	root[0], root[1], root[2], root[3] = 0x40, 0xcf, 0x2f, 0x3c
	require.Equal(t, "mainnet-00001-40cf2f3c.era", Filename("mainnet", 1, root))
	require.Equal(t, fmt.Sprintf("minimal-%05d-%x.era", 123, root[:4]), Filename("minimal", 123, root))
}

func TestEraMath(t *testing.T) {
	require.Equal(t, uint64(0), EraOf(0, 8192))
	require.Equal(t, uint64(0), EraOf(8191, 8192))
	require.Equal(t, uint64(1), EraOf(8192, 8192))
	require.Equal(t, uint64(8192), StartSlot(1, 8192))
}
