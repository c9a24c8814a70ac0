package cltypes

import (
	"encoding/binary"

	"github.com/protolambda/zrnt/eth2/beacon/common"

	"github.com/beaconarchive/erastore/clparams"
)

// Fixture encoders used by tests across the module. They emit canonical SSZ
// for states with empty registries and blocks with empty operation lists,
// sized from the config's spec preset so minimal-preset fixtures stay small.

// TestState describes the fields a state fixture carries; everything else is
// zero-valued.
type TestState struct {
	Slot                  uint64
	ForkEpoch             uint64
	GenesisValidatorsRoot common.Root
	BlockRoots            []common.Root // padded/truncated to SLOTS_PER_HISTORICAL_ROOT
	HistoricalRoots       []common.Root
}

type sszEncoder struct {
	b []byte
}

func (e *sszEncoder) u32(v uint32) {
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], v)
	e.b = append(e.b, t[:]...)
}

func (e *sszEncoder) u64(v uint64) {
	var t [8]byte
	binary.LittleEndian.PutUint64(t[:], v)
	e.b = append(e.b, t[:]...)
}

func (e *sszEncoder) root(r common.Root) {
	e.b = append(e.b, r[:]...)
}

func (e *sszEncoder) zero(n uint64) {
	e.b = append(e.b, make([]byte, n)...)
}

func (e *sszEncoder) rootVector(roots []common.Root, size uint64) {
	for i := uint64(0); i < size; i++ {
		if i < uint64(len(roots)) {
			e.root(roots[i])
		} else {
			e.zero(32)
		}
	}
}

// EncodePhase0TestState encodes a phase0 beacon state with empty validator
// registry, balances, votes and attestation lists.
func EncodePhase0TestState(cfg *clparams.BeaconChainConfig, ts TestState) []byte {
	var (
		sphr = uint64(cfg.Spec.SLOTS_PER_HISTORICAL_ROOT)
		ephv = uint64(cfg.Spec.EPOCHS_PER_HISTORICAL_VECTOR)
		epsv = uint64(cfg.Spec.EPOCHS_PER_SLASHINGS_VECTOR)

		// Fixed part: scalars and vectors plus one 4-byte offset per
		// variable-length field (historical_roots, eth1_data_votes,
		// validators, balances, previous/current epoch attestations).
		fixed = uint64(8+32+8+16+112) + sphr*32*2 + 4 + 72 + 4 + 8 + 4 + 4 +
			ephv*32 + epsv*8 + 4 + 4 + 1 + 120

		hrOff    = uint32(fixed)
		emptyOff = uint32(fixed + uint64(len(ts.HistoricalRoots))*32)

		e = sszEncoder{b: make([]byte, 0, fixed+uint64(len(ts.HistoricalRoots))*32)}
	)
	e.u64(0) // genesis_time
	e.root(ts.GenesisValidatorsRoot)
	e.u64(ts.Slot)
	e.zero(8) // fork versions
	e.u64(ts.ForkEpoch)
	e.zero(112) // latest_block_header
	e.rootVector(ts.BlockRoots, sphr)
	e.zero(sphr * 32) // state_roots
	e.u32(hrOff)
	e.zero(72) // eth1_data
	e.u32(emptyOff)
	e.u64(0) // eth1_deposit_index
	e.u32(emptyOff)
	e.u32(emptyOff)
	e.zero(ephv * 32) // randao_mixes
	e.zero(epsv * 8)  // slashings
	e.u32(emptyOff)
	e.u32(emptyOff)
	e.zero(1)   // justification_bits
	e.zero(120) // checkpoints
	for _, r := range ts.HistoricalRoots {
		e.root(r)
	}
	return e.b
}

// EncodeAltairTestState encodes an altair beacon state with empty registry,
// participation and inactivity lists and zeroed sync committees.
func EncodeAltairTestState(cfg *clparams.BeaconChainConfig, ts TestState) []byte {
	var (
		sphr = uint64(cfg.Spec.SLOTS_PER_HISTORICAL_ROOT)
		ephv = uint64(cfg.Spec.EPOCHS_PER_HISTORICAL_VECTOR)
		epsv = uint64(cfg.Spec.EPOCHS_PER_SLASHINGS_VECTOR)
		scsz = uint64(cfg.Spec.SYNC_COMMITTEE_SIZE)

		committee = scsz*48 + 48

		// As phase0, with participation lists replacing the attestation
		// lists and one more offset for inactivity_scores.
		fixed = uint64(8+32+8+16+112) + sphr*32*2 + 4 + 72 + 4 + 8 + 4 + 4 +
			ephv*32 + epsv*8 + 4 + 4 + 1 + 120 + 4 + committee*2

		hrOff    = uint32(fixed)
		emptyOff = uint32(fixed + uint64(len(ts.HistoricalRoots))*32)

		e = sszEncoder{b: make([]byte, 0, fixed+uint64(len(ts.HistoricalRoots))*32)}
	)
	e.u64(0) // genesis_time
	e.root(ts.GenesisValidatorsRoot)
	e.u64(ts.Slot)
	e.zero(8) // fork versions
	e.u64(ts.ForkEpoch)
	e.zero(112) // latest_block_header
	e.rootVector(ts.BlockRoots, sphr)
	e.zero(sphr * 32) // state_roots
	e.u32(hrOff)
	e.zero(72) // eth1_data
	e.u32(emptyOff)
	e.u64(0) // eth1_deposit_index
	e.u32(emptyOff)
	e.u32(emptyOff)
	e.zero(ephv * 32) // randao_mixes
	e.zero(epsv * 8)  // slashings
	e.u32(emptyOff)   // previous_epoch_participation
	e.u32(emptyOff)   // current_epoch_participation
	e.zero(1)         // justification_bits
	e.zero(120)       // checkpoints
	e.u32(emptyOff)   // inactivity_scores
	e.zero(committee * 2)
	for _, r := range ts.HistoricalRoots {
		e.root(r)
	}
	return e.b
}

// EncodePhase0TestBlock encodes a phase0 signed beacon block whose body
// carries no operations.
func EncodePhase0TestBlock(slot, proposerIndex uint64, parentRoot, stateRoot common.Root) []byte {
	const (
		messageFixed = 8 + 8 + 32 + 32 + 4
		bodyFixed    = 96 + 72 + 32 + 5*4
	)
	e := sszEncoder{b: make([]byte, 0, 100+messageFixed+bodyFixed)}
	e.u32(100)  // message offset
	e.zero(96)  // signature
	e.u64(slot)
	e.u64(proposerIndex)
	e.root(parentRoot)
	e.root(stateRoot)
	e.u32(messageFixed) // body offset
	e.zero(96)          // randao_reveal
	e.zero(72)          // eth1_data
	e.zero(32)          // graffiti
	for i := 0; i < 5; i++ {
		e.u32(bodyFixed)
	}
	return e.b
}
