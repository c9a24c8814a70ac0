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

// Package cltypes wraps the fork-specific beacon state and block layouts
// behind version-tagged types. The set of forks is closed: adding one means a
// new variant field and a new case in the dispatch switches.
package cltypes

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/protolambda/zrnt/eth2/beacon/altair"
	"github.com/protolambda/zrnt/eth2/beacon/bellatrix"
	"github.com/protolambda/zrnt/eth2/beacon/capella"
	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/beacon/deneb"
	"github.com/protolambda/zrnt/eth2/beacon/phase0"
	"github.com/protolambda/ztyp/codec"

	"github.com/beaconarchive/erastore/clparams"
)

// The slot sits at a fixed position in every beacon state encoding:
// genesis_time (8) + genesis_validators_root (32).
const stateSlotOffset = 40

// BeaconState is a version-tagged beacon state. Only the fields the archive
// layer reads are lifted out of the fork-specific object; the typed variant
// remains reachable for callers that need the rest.
type BeaconState struct {
	version clparams.StateVersion

	slot                  uint64
	forkEpoch             uint64
	genesisValidatorsRoot common.Root
	blockRoots            []common.Root
	historicalRoots       []common.Root
	blockSummaryRoots     []common.Root

	phase0    *phase0.BeaconState
	altair    *altair.BeaconState
	bellatrix *bellatrix.BeaconState
	capella   *capella.BeaconState
	deneb     *deneb.BeaconState
}

// DeserializeState decodes a canonical beacon state encoding. The fork is
// selected by the epoch of the slot read at the encoding's fixed prefix.
func DeserializeState(cfg *clparams.BeaconChainConfig, data []byte) (*BeaconState, error) {
	if len(data) < stateSlotOffset+8 {
		return nil, fmt.Errorf("beacon state encoding too short: %d bytes", len(data))
	}
	var (
		slot    = binary.LittleEndian.Uint64(data[stateSlotOffset:])
		version = cfg.StateVersionBySlot(slot)
		dr      = codec.NewDecodingReader(bytes.NewReader(data), uint64(len(data)))
		st      = &BeaconState{version: version}
	)
	switch version {
	case clparams.Phase0Version:
		obj := new(phase0.BeaconState)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("phase0 state at slot %d: %w", slot, err)
		}
		st.phase0 = obj
		st.slot = uint64(obj.Slot)
		st.forkEpoch = uint64(obj.Fork.Epoch)
		st.genesisValidatorsRoot = obj.GenesisValidatorsRoot
		st.blockRoots = append([]common.Root(nil), obj.BlockRoots...)
		st.historicalRoots = append([]common.Root(nil), obj.HistoricalRoots...)
	case clparams.AltairVersion:
		obj := new(altair.BeaconState)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("altair state at slot %d: %w", slot, err)
		}
		st.altair = obj
		st.slot = uint64(obj.Slot)
		st.forkEpoch = uint64(obj.Fork.Epoch)
		st.genesisValidatorsRoot = obj.GenesisValidatorsRoot
		st.blockRoots = append([]common.Root(nil), obj.BlockRoots...)
		st.historicalRoots = append([]common.Root(nil), obj.HistoricalRoots...)
	case clparams.BellatrixVersion:
		obj := new(bellatrix.BeaconState)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("bellatrix state at slot %d: %w", slot, err)
		}
		st.bellatrix = obj
		st.slot = uint64(obj.Slot)
		st.forkEpoch = uint64(obj.Fork.Epoch)
		st.genesisValidatorsRoot = obj.GenesisValidatorsRoot
		st.blockRoots = append([]common.Root(nil), obj.BlockRoots...)
		st.historicalRoots = append([]common.Root(nil), obj.HistoricalRoots...)
	case clparams.CapellaVersion:
		obj := new(capella.BeaconState)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("capella state at slot %d: %w", slot, err)
		}
		st.capella = obj
		st.slot = uint64(obj.Slot)
		st.forkEpoch = uint64(obj.Fork.Epoch)
		st.genesisValidatorsRoot = obj.GenesisValidatorsRoot
		st.blockRoots = append([]common.Root(nil), obj.BlockRoots...)
		st.historicalRoots = append([]common.Root(nil), obj.HistoricalRoots...)
		for i := range obj.HistoricalSummaries {
			st.blockSummaryRoots = append(st.blockSummaryRoots, obj.HistoricalSummaries[i].BlockSummaryRoot)
		}
	case clparams.DenebVersion:
		obj := new(deneb.BeaconState)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("deneb state at slot %d: %w", slot, err)
		}
		st.deneb = obj
		st.slot = uint64(obj.Slot)
		st.forkEpoch = uint64(obj.Fork.Epoch)
		st.genesisValidatorsRoot = obj.GenesisValidatorsRoot
		st.blockRoots = append([]common.Root(nil), obj.BlockRoots...)
		st.historicalRoots = append([]common.Root(nil), obj.HistoricalRoots...)
		for i := range obj.HistoricalSummaries {
			st.blockSummaryRoots = append(st.blockSummaryRoots, obj.HistoricalSummaries[i].BlockSummaryRoot)
		}
	default:
		return nil, fmt.Errorf("state at slot %d is %s: %w",
			slot, clparams.ClVersionToString(version), clparams.ErrUnsupportedFork)
	}
	return st, nil
}

func (s *BeaconState) Version() clparams.StateVersion { return s.version }

func (s *BeaconState) Slot() uint64 { return s.slot }

func (s *BeaconState) ForkEpoch() uint64 { return s.forkEpoch }

func (s *BeaconState) GenesisValidatorsRoot() common.Root { return s.genesisValidatorsRoot }

// BlockRoots returns the state's historical block-root window: the canonical
// block root for each of the most recent SLOTS_PER_HISTORICAL_ROOT slots, in
// slot order, ending just before the state's own slot.
func (s *BeaconState) BlockRoots() []common.Root { return s.blockRoots }

// HistoricalRoots returns the accumulated pre-Capella era anchors.
func (s *BeaconState) HistoricalRoots() []common.Root { return s.historicalRoots }

// BlockSummaryRoots returns the block summary roots accumulated since
// Capella, one per completed era. Nil for pre-Capella states.
func (s *BeaconState) BlockSummaryRoots() []common.Root { return s.blockSummaryRoots }

// The typed variants below are non-nil only for the matching version.

func (s *BeaconState) Phase0() *phase0.BeaconState { return s.phase0 }

func (s *BeaconState) Altair() *altair.BeaconState { return s.altair }

func (s *BeaconState) Bellatrix() *bellatrix.BeaconState { return s.bellatrix }

func (s *BeaconState) Capella() *capella.BeaconState { return s.capella }

func (s *BeaconState) Deneb() *deneb.BeaconState { return s.deneb }
