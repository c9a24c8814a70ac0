package clparams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetCurrentStateVersion(t *testing.T) {
	cfg := MainnetBeaconConfig
	require.Equal(t, Phase0Version, cfg.GetCurrentStateVersion(0))
	require.Equal(t, Phase0Version, cfg.GetCurrentStateVersion(74239))
	require.Equal(t, AltairVersion, cfg.GetCurrentStateVersion(74240))
	require.Equal(t, BellatrixVersion, cfg.GetCurrentStateVersion(144896))
	require.Equal(t, CapellaVersion, cfg.GetCurrentStateVersion(194048))
	require.Equal(t, DenebVersion, cfg.GetCurrentStateVersion(269568))
	require.Equal(t, ElectraVersion, cfg.GetCurrentStateVersion(364032))
}

func TestStateVersionBySlot(t *testing.T) {
	cfg := MainnetBeaconConfig
	require.Equal(t, Phase0Version, cfg.StateVersionBySlot(0))
	require.Equal(t, AltairVersion, cfg.StateVersionBySlot(74240*cfg.SlotsPerEpoch()))
}

func TestVersionStrings(t *testing.T) {
	for _, s := range []string{"phase0", "altair", "bellatrix", "capella", "deneb", "electra"} {
		v, err := StringToClVersion(s)
		require.NoError(t, err)
		require.Equal(t, s, ClVersionToString(v))
	}
	_, err := StringToClVersion("osaka")
	require.Error(t, err)
}
