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

package eradb

import (
	"fmt"

	"github.com/protolambda/zrnt/eth2/beacon/common"

	"github.com/beaconarchive/erastore/cltypes"
	"github.com/beaconarchive/erastore/era"
)

// HistoryAnchors are the roots a reference state vouches for: they bound the
// resolvable era range and name the era files on disk. Era 0 is anchored by
// the genesis validators root, era N by anchor N-1 — first the pre-Capella
// historical roots, then the block summary roots accumulated since.
type HistoryAnchors struct {
	GenesisValidatorsRoot common.Root
	HistoricalRoots       []common.Root
	BlockSummaryRoots     []common.Root
}

// AnchorsFromState extracts the history anchors of a reference state.
func AnchorsFromState(st *cltypes.BeaconState) HistoryAnchors {
	return HistoryAnchors{
		GenesisValidatorsRoot: st.GenesisValidatorsRoot(),
		HistoricalRoots:       st.HistoricalRoots(),
		BlockSummaryRoots:     st.BlockSummaryRoots(),
	}
}

// EraCount returns the number of resolvable eras, genesis included.
func (a HistoryAnchors) EraCount() uint64 {
	return 1 + uint64(len(a.HistoricalRoots)) + uint64(len(a.BlockSummaryRoots))
}

// EraRoot returns the anchoring root of an era, or ErrNotFound when the era
// lies beyond the reference state's known history.
func (a HistoryAnchors) EraRoot(eraNum uint64) (common.Root, error) {
	if eraNum == 0 {
		return a.GenesisValidatorsRoot, nil
	}
	idx := eraNum - 1
	if idx < uint64(len(a.HistoricalRoots)) {
		return a.HistoricalRoots[idx], nil
	}
	idx -= uint64(len(a.HistoricalRoots))
	if idx < uint64(len(a.BlockSummaryRoots)) {
		return a.BlockSummaryRoots[idx], nil
	}
	return common.Root{}, fmt.Errorf("era %d beyond known history of %d eras: %w", eraNum, a.EraCount(), era.ErrNotFound)
}
