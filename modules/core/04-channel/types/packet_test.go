package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

func TestPacketValidateBasic(t *testing.T) {
	valid := types.NewPacket([]byte("data"), 1, "transfer", "channel-0", "transfer", "channel-1", clienttypes.NewHeight(0, 100), 0)
	require.NoError(t, valid.ValidateBasic())

	zeroSequence := valid
	zeroSequence.Sequence = 0
	require.Error(t, zeroSequence.ValidateBasic())

	noTimeout := valid
	noTimeout.TimeoutHeight = clienttypes.ZeroHeight()
	noTimeout.TimeoutTimestamp = 0
	require.Error(t, noTimeout.ValidateBasic())

	emptyData := valid
	emptyData.Data = nil
	require.Error(t, emptyData.ValidateBasic())
}

func TestPacketTimeoutElapsed(t *testing.T) {
	packet := types.NewPacket([]byte("data"), 1, "transfer", "channel-0", "transfer", "channel-1", clienttypes.NewHeight(0, 100), 200)

	// neither bound reached
	require.False(t, packet.TimeoutElapsed(clienttypes.NewHeight(0, 99), 199))
	// height bound is inclusive
	require.True(t, packet.TimeoutElapsed(clienttypes.NewHeight(0, 100), 0))
	// timestamp bound is inclusive
	require.False(t, packet.TimeoutElapsed(clienttypes.NewHeight(0, 1), 199))
	require.True(t, packet.TimeoutElapsed(clienttypes.NewHeight(0, 1), 200))

	// a zero timeout height is disabled
	timestampOnly := packet
	timestampOnly.TimeoutHeight = clienttypes.ZeroHeight()
	require.False(t, timestampOnly.TimeoutElapsed(clienttypes.NewHeight(0, 1_000_000), 0))
	require.True(t, timestampOnly.TimeoutElapsed(clienttypes.ZeroHeight(), 200))

	// a zero timeout timestamp is disabled
	heightOnly := packet
	heightOnly.TimeoutTimestamp = 0
	require.False(t, heightOnly.TimeoutElapsed(clienttypes.NewHeight(0, 99), ^uint64(0)))
}
