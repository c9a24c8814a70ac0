package clparams

import (
	"errors"
	"fmt"
	"math"

	"github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/zrnt/eth2/configs"
)

// FarFutureEpoch marks a fork that is not scheduled on the network.
const FarFutureEpoch uint64 = math.MaxUint64

// ErrUnsupportedFork is returned when an epoch maps to a fork that has no
// implemented state or block layout.
var ErrUnsupportedFork = errors.New("unsupported fork")

// BeaconChainConfig carries the chain parameters the archive layer consumes:
// the network name used in era file names, the zrnt spec preset driving SSZ
// vector sizes, and the fork activation schedule.
type BeaconChainConfig struct {
	Name string
	Spec *common.Spec

	AltairForkEpoch    uint64
	BellatrixForkEpoch uint64
	CapellaForkEpoch   uint64
	DenebForkEpoch     uint64
	ElectraForkEpoch   uint64
}

var MainnetBeaconConfig = BeaconChainConfig{
	Name:               "mainnet",
	Spec:               configs.Mainnet,
	AltairForkEpoch:    74240,
	BellatrixForkEpoch: 144896,
	CapellaForkEpoch:   194048,
	DenebForkEpoch:     269568,
	ElectraForkEpoch:   364032,
}

// MinimalBeaconConfig is the minimal-preset config used by local devnets and
// tests. No forks are scheduled.
var MinimalBeaconConfig = BeaconChainConfig{
	Name:               "minimal",
	Spec:               configs.Minimal,
	AltairForkEpoch:    FarFutureEpoch,
	BellatrixForkEpoch: FarFutureEpoch,
	CapellaForkEpoch:   FarFutureEpoch,
	DenebForkEpoch:     FarFutureEpoch,
	ElectraForkEpoch:   FarFutureEpoch,
}

// BeaconConfigByName returns a copy of the named chain config.
func BeaconConfigByName(name string) (*BeaconChainConfig, error) {
	switch name {
	case "mainnet":
		cfg := MainnetBeaconConfig
		return &cfg, nil
	case "minimal":
		cfg := MinimalBeaconConfig
		return &cfg, nil
	default:
		return nil, fmt.Errorf("unknown chain %q", name)
	}
}

func (b *BeaconChainConfig) SlotsPerEpoch() uint64 {
	return uint64(b.Spec.SLOTS_PER_EPOCH)
}

func (b *BeaconChainConfig) SlotsPerHistoricalRoot() uint64 {
	return uint64(b.Spec.SLOTS_PER_HISTORICAL_ROOT)
}

// GetCurrentStateVersion returns the fork in force at the given epoch.
func (b *BeaconChainConfig) GetCurrentStateVersion(epoch uint64) StateVersion {
	switch {
	case epoch >= b.ElectraForkEpoch:
		return ElectraVersion
	case epoch >= b.DenebForkEpoch:
		return DenebVersion
	case epoch >= b.CapellaForkEpoch:
		return CapellaVersion
	case epoch >= b.BellatrixForkEpoch:
		return BellatrixVersion
	case epoch >= b.AltairForkEpoch:
		return AltairVersion
	default:
		return Phase0Version
	}
}

// StateVersionBySlot maps a slot to the fork in force at its epoch.
func (b *BeaconChainConfig) StateVersionBySlot(slot uint64) StateVersion {
	return b.GetCurrentStateVersion(slot / b.SlotsPerEpoch())
}
