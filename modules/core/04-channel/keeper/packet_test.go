package keeper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	ibctesting "github.com/bpolania/near-cosmos-ibc/testing"
)

// defaultAck is the acknowledgement written for ports without a registered
// application handler.
func defaultAck() []byte {
	return channeltypes.NewResultAcknowledgement([]byte{byte(1)}).Acknowledgement()
}

// farTimeout returns a timeout height the destination chain will not reach
// during the test.
func farTimeout(dst *ibctesting.TestChain) clienttypes.Height {
	height := dst.LatestHeight()
	return clienttypes.NewHeight(height.RevisionNumber, height.RevisionHeight+1000)
}

func orderedPath(coord *ibctesting.Coordinator) *ibctesting.Path {
	path := ibctesting.NewPath(coord)
	path.EndpointA.ChannelConfig.Order = channeltypes.ORDERED
	path.EndpointB.ChannelConfig.Order = channeltypes.ORDERED
	return path
}

func TestSendPacket(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), packet.Sequence)

	commitment := path.EndpointA.Chain.Keeper().ChannelKeeper.GetPacketCommitment(
		packet.SourcePort, packet.SourceChannel, packet.Sequence,
	)
	require.Equal(t, channeltypes.CommitPacket(packet), commitment)

	seq, found := path.EndpointA.Chain.Keeper().ChannelKeeper.GetNextSequenceSend(packet.SourcePort, packet.SourceChannel)
	require.True(t, found)
	require.Equal(t, uint64(2), seq)
}

func TestSendPacketChannelClosed(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	require.NoError(t, path.EndpointA.ChanCloseInit())

	_, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.ErrorIs(t, err, channeltypes.ErrInvalidChannelState)
}

func TestRecvPacket(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.NoError(t, err)

	require.NoError(t, path.EndpointB.RecvPacket(packet))

	_, found := path.EndpointB.Chain.Keeper().ChannelKeeper.GetPacketReceipt(
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
	)
	require.True(t, found)

	ackHash, found := path.EndpointB.Chain.Keeper().ChannelKeeper.GetPacketAcknowledgement(
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
	)
	require.True(t, found)
	require.Equal(t, channeltypes.CommitAcknowledgement(defaultAck()), ackHash)
}

func TestRecvPacketRedundant(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.NoError(t, err)

	require.NoError(t, path.EndpointB.RecvPacket(packet))

	err = path.EndpointB.RecvPacket(packet)
	require.ErrorIs(t, err, channeltypes.ErrNoOpMsg)
}

func TestRecvPacketOutOfOrder(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := orderedPath(coord)
	coord.Setup(path)

	first, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.NoError(t, err)
	second, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.NoError(t, err)

	// ordered channels must receive sequences in order
	err = path.EndpointB.RecvPacket(second)
	require.ErrorIs(t, err, channeltypes.ErrPacketSequenceOutOfOrder)

	require.NoError(t, path.EndpointB.RecvPacket(first))
	require.NoError(t, path.EndpointB.RecvPacket(second))

	seq, found := path.EndpointB.Chain.Keeper().ChannelKeeper.GetNextSequenceRecv(
		first.DestinationPort, first.DestinationChannel,
	)
	require.True(t, found)
	require.Equal(t, uint64(3), seq)
}

func TestRecvPacketTimedOut(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	// the timeout height is already reached on the destination chain
	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, path.EndpointB.Chain.LatestHeight(), 0)
	require.NoError(t, err)

	err = path.EndpointB.RecvPacket(packet)
	require.ErrorIs(t, err, channeltypes.ErrPacketTimeout)
}

func TestAcknowledgePacket(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.NoError(t, err)

	require.NoError(t, path.EndpointB.RecvPacket(packet))
	require.NoError(t, path.EndpointA.AcknowledgePacket(packet, defaultAck()))

	commitment := path.EndpointA.Chain.Keeper().ChannelKeeper.GetPacketCommitment(
		packet.SourcePort, packet.SourceChannel, packet.Sequence,
	)
	require.Empty(t, commitment)

	// acknowledging a cleared commitment is a no-op error
	err = path.EndpointA.AcknowledgePacket(packet, defaultAck())
	require.ErrorIs(t, err, channeltypes.ErrNoOpMsg)
}

func TestTimeoutPacketUnordered(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	dst := path.EndpointB.Chain
	header := dst.QueryHeader(dst.LatestHeight().RevisionHeight)
	timeoutTimestamp := uint64(header.GetTime().Add(30 * time.Second).UnixNano())

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, clienttypes.ZeroHeight(), timeoutTimestamp)
	require.NoError(t, err)

	coord.AdvanceTime(time.Minute)

	require.NoError(t, path.EndpointA.TimeoutPacket(packet))

	commitment := path.EndpointA.Chain.Keeper().ChannelKeeper.GetPacketCommitment(
		packet.SourcePort, packet.SourceChannel, packet.Sequence,
	)
	require.Empty(t, commitment)

	// unordered channels stay open after a timeout
	channel, found := path.EndpointA.Chain.Keeper().ChannelKeeper.GetChannel(packet.SourcePort, packet.SourceChannel)
	require.True(t, found)
	require.Equal(t, channeltypes.OPEN, channel.State)
}

func TestTimeoutPacketOrdered(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := orderedPath(coord)
	coord.Setup(path)

	dstHeight := path.EndpointB.Chain.LatestHeight()
	timeoutHeight := clienttypes.NewHeight(dstHeight.RevisionNumber, dstHeight.RevisionHeight+2)

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, timeoutHeight, 0)
	require.NoError(t, err)

	path.EndpointB.Chain.NextBlock()
	path.EndpointB.Chain.NextBlock()

	require.NoError(t, path.EndpointA.TimeoutPacket(packet))

	// an ordered channel closes when a packet times out
	channel, found := path.EndpointA.Chain.Keeper().ChannelKeeper.GetChannel(packet.SourcePort, packet.SourceChannel)
	require.True(t, found)
	require.Equal(t, channeltypes.CLOSED, channel.State)
}

func TestTimeoutPacketNotReached(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, farTimeout(path.EndpointB.Chain), 0)
	require.NoError(t, err)

	err = path.EndpointA.TimeoutPacket(packet)
	require.ErrorIs(t, err, channeltypes.ErrPacketTimeoutNotReached)
}

func TestTimeoutPacketAlreadyReceived(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := orderedPath(coord)
	coord.Setup(path)

	dstHeight := path.EndpointB.Chain.LatestHeight()
	timeoutHeight := clienttypes.NewHeight(dstHeight.RevisionNumber, dstHeight.RevisionHeight+5)

	packet, err := path.EndpointA.SendPacket(ibctesting.DefaultPacketData, timeoutHeight, 0)
	require.NoError(t, err)

	require.NoError(t, path.EndpointB.RecvPacket(packet))

	for i := 0; i < 5; i++ {
		path.EndpointB.Chain.NextBlock()
	}

	err = path.EndpointA.TimeoutPacket(packet)
	require.ErrorIs(t, err, channeltypes.ErrPacketReceived)
}
