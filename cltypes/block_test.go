package cltypes

import (
	"testing"

	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/stretchr/testify/require"

	"github.com/beaconarchive/erastore/clparams"
)

func TestDeserializePhase0Block(t *testing.T) {
	cfg := testConfig()
	data := EncodePhase0TestBlock(42, 7, rootb(0x11), rootb(0x22))

	blk, err := DeserializeBlock(cfg, data, nil)
	require.NoError(t, err)
	require.Equal(t, clparams.Phase0Version, blk.Version())
	require.Equal(t, uint64(42), blk.Slot())
	require.Equal(t, uint64(7), blk.ProposerIndex())
	require.Equal(t, rootb(0x11), blk.ParentRoot())
	require.Equal(t, rootb(0x22), blk.StateRoot())
	require.NotEqual(t, common.Root{}, blk.Root())
	require.NotNil(t, blk.Phase0())
}

func TestDeserializeBlockRootStability(t *testing.T) {
	cfg := testConfig()
	data := EncodePhase0TestBlock(64, 1, rootb(0x33), rootb(0x44))

	first, err := DeserializeBlock(cfg, data, nil)
	require.NoError(t, err)
	second, err := DeserializeBlock(cfg, data, nil)
	require.NoError(t, err)
	require.Equal(t, first.Root(), second.Root())
}

func TestDeserializeBlockTrustedRoot(t *testing.T) {
	cfg := testConfig()
	data := EncodePhase0TestBlock(10, 3, rootb(0x55), rootb(0x66))

	computed, err := DeserializeBlock(cfg, data, nil)
	require.NoError(t, err)

	known := computed.Root()
	trusted, err := DeserializeBlock(cfg, data, &known)
	require.NoError(t, err)
	require.Equal(t, known, trusted.Root())

	// A supplied root is trusted verbatim, never recomputed.
	bogus := rootb(0xff)
	blk, err := DeserializeBlock(cfg, data, &bogus)
	require.NoError(t, err)
	require.Equal(t, bogus, blk.Root())
}

func TestDeserializeBlockMalformed(t *testing.T) {
	cfg := testConfig()

	_, err := DeserializeBlock(cfg, make([]byte, 50), nil)
	require.Error(t, err)

	data := EncodePhase0TestBlock(5, 0, common.Root{}, common.Root{})
	_, err = DeserializeBlock(cfg, data[:len(data)-30], nil)
	require.Error(t, err)
}

func TestDeserializeBlockUnsupportedFork(t *testing.T) {
	cfg := testConfig()
	cfg.ElectraForkEpoch = 0
	data := EncodePhase0TestBlock(1, 0, common.Root{}, common.Root{})
	_, err := DeserializeBlock(cfg, data, nil)
	require.ErrorIs(t, err, clparams.ErrUnsupportedFork)
}
