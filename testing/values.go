package ibctesting

import (
	"time"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

const (
	// MockPort is the port identifier used by test channels.
	MockPort = "mock"
	// MockVersion is the channel version negotiated by test channels.
	MockVersion = "mock-version"

	TrustingPeriod  = time.Hour * 24 * 7 * 2
	UnbondingPeriod = time.Hour * 24 * 7 * 3
	MaxClockDrift   = time.Second * 10

	DefaultDelayPeriod uint64 = 0

	// ChainIDPrefix is the prefix of test chain identifiers; the suffix is the
	// revision number.
	ChainIDPrefix = "testchain-"
)

var (
	// DefaultPacketData is the payload test packets carry.
	DefaultPacketData = []byte("testdata")

	// DefaultOpenChannel returns the channel config both path ends use unless
	// a test overrides it.
	DefaultChannelConfig = ChannelConfig{
		PortID:  MockPort,
		Version: MockVersion,
		Order:   channeltypes.UNORDERED,
	}

	// globalStartTime is the starting clock of every test chain. A fixed time
	// keeps header timestamps deterministic across chains.
	globalStartTime = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
)

// ChannelConfig describes the channel end an endpoint opens.
type ChannelConfig struct {
	PortID  string
	Version string
	Order   channeltypes.Order
}
