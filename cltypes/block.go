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
	"github.com/protolambda/ztyp/tree"

	"github.com/beaconarchive/erastore/clparams"
)

// The block slot sits after the message offset (4) and signature (96) of the
// signed envelope, at the head of the message body.
const blockSlotOffset = 100

// SignedBeaconBlock is a version-tagged signed beacon block read from an
// archive. Blocks retrieved from an era file are trusted: when the caller
// already knows the canonical root (from the state's block-root chain), it is
// stored directly instead of being recomputed.
type SignedBeaconBlock struct {
	version clparams.StateVersion

	root          common.Root
	slot          uint64
	proposerIndex uint64
	parentRoot    common.Root
	stateRoot     common.Root

	phase0    *phase0.SignedBeaconBlock
	altair    *altair.SignedBeaconBlock
	bellatrix *bellatrix.SignedBeaconBlock
	capella   *capella.SignedBeaconBlock
	deneb     *deneb.SignedBeaconBlock
}

// DeserializeBlock decodes a canonical signed beacon block encoding,
// dispatching on the fork of the slot read at the envelope's fixed prefix.
// If knownRoot is non-nil it is trusted and stored as the block root;
// otherwise the root is computed from the decoded message.
func DeserializeBlock(cfg *clparams.BeaconChainConfig, data []byte, knownRoot *common.Root) (*SignedBeaconBlock, error) {
	if len(data) < blockSlotOffset+8 {
		return nil, fmt.Errorf("signed beacon block encoding too short: %d bytes", len(data))
	}
	var (
		slot    = binary.LittleEndian.Uint64(data[blockSlotOffset:])
		version = cfg.StateVersionBySlot(slot)
		dr      = codec.NewDecodingReader(bytes.NewReader(data), uint64(len(data)))
		blk     = &SignedBeaconBlock{version: version}
	)
	switch version {
	case clparams.Phase0Version:
		obj := new(phase0.SignedBeaconBlock)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("phase0 block at slot %d: %w", slot, err)
		}
		blk.phase0 = obj
		blk.slot = uint64(obj.Message.Slot)
		blk.proposerIndex = uint64(obj.Message.ProposerIndex)
		blk.parentRoot = obj.Message.ParentRoot
		blk.stateRoot = obj.Message.StateRoot
		if knownRoot == nil {
			blk.root = obj.Message.HashTreeRoot(cfg.Spec, tree.GetHashFn())
		}
	case clparams.AltairVersion:
		obj := new(altair.SignedBeaconBlock)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("altair block at slot %d: %w", slot, err)
		}
		blk.altair = obj
		blk.slot = uint64(obj.Message.Slot)
		blk.proposerIndex = uint64(obj.Message.ProposerIndex)
		blk.parentRoot = obj.Message.ParentRoot
		blk.stateRoot = obj.Message.StateRoot
		if knownRoot == nil {
			blk.root = obj.Message.HashTreeRoot(cfg.Spec, tree.GetHashFn())
		}
	case clparams.BellatrixVersion:
		obj := new(bellatrix.SignedBeaconBlock)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("bellatrix block at slot %d: %w", slot, err)
		}
		blk.bellatrix = obj
		blk.slot = uint64(obj.Message.Slot)
		blk.proposerIndex = uint64(obj.Message.ProposerIndex)
		blk.parentRoot = obj.Message.ParentRoot
		blk.stateRoot = obj.Message.StateRoot
		if knownRoot == nil {
			blk.root = obj.Message.HashTreeRoot(cfg.Spec, tree.GetHashFn())
		}
	case clparams.CapellaVersion:
		obj := new(capella.SignedBeaconBlock)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("capella block at slot %d: %w", slot, err)
		}
		blk.capella = obj
		blk.slot = uint64(obj.Message.Slot)
		blk.proposerIndex = uint64(obj.Message.ProposerIndex)
		blk.parentRoot = obj.Message.ParentRoot
		blk.stateRoot = obj.Message.StateRoot
		if knownRoot == nil {
			blk.root = obj.Message.HashTreeRoot(cfg.Spec, tree.GetHashFn())
		}
	case clparams.DenebVersion:
		obj := new(deneb.SignedBeaconBlock)
		if err := obj.Deserialize(cfg.Spec, dr); err != nil {
			return nil, fmt.Errorf("deneb block at slot %d: %w", slot, err)
		}
		blk.deneb = obj
		blk.slot = uint64(obj.Message.Slot)
		blk.proposerIndex = uint64(obj.Message.ProposerIndex)
		blk.parentRoot = obj.Message.ParentRoot
		blk.stateRoot = obj.Message.StateRoot
		if knownRoot == nil {
			blk.root = obj.Message.HashTreeRoot(cfg.Spec, tree.GetHashFn())
		}
	default:
		return nil, fmt.Errorf("block at slot %d is %s: %w",
			slot, clparams.ClVersionToString(version), clparams.ErrUnsupportedFork)
	}
	if knownRoot != nil {
		blk.root = *knownRoot
	}
	return blk, nil
}

func (b *SignedBeaconBlock) Version() clparams.StateVersion { return b.version }

// Root returns the canonical block root: the trusted root supplied at decode
// time, or the one computed from the message.
func (b *SignedBeaconBlock) Root() common.Root { return b.root }

func (b *SignedBeaconBlock) Slot() uint64 { return b.slot }

func (b *SignedBeaconBlock) ProposerIndex() uint64 { return b.proposerIndex }

func (b *SignedBeaconBlock) ParentRoot() common.Root { return b.parentRoot }

func (b *SignedBeaconBlock) StateRoot() common.Root { return b.stateRoot }

// The typed variants below are non-nil only for the matching version.

func (b *SignedBeaconBlock) Phase0() *phase0.SignedBeaconBlock { return b.phase0 }

func (b *SignedBeaconBlock) Altair() *altair.SignedBeaconBlock { return b.altair }

func (b *SignedBeaconBlock) Bellatrix() *bellatrix.SignedBeaconBlock { return b.bellatrix }

func (b *SignedBeaconBlock) Capella() *capella.SignedBeaconBlock { return b.capella }

func (b *SignedBeaconBlock) Deneb() *deneb.SignedBeaconBlock { return b.deneb }
