package keeper_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctesting "github.com/bpolania/near-cosmos-ibc/testing"
)

func TestChanOpenInit(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupConnections(path)

	require.NoError(t, path.EndpointA.ChanOpenInit())
	require.Equal(t, channeltypes.FormatChannelIdentifier(0), path.EndpointA.ChannelID)

	channel, found := path.EndpointA.Chain.Keeper().ChannelKeeper.GetChannel(ibctesting.MockPort, path.EndpointA.ChannelID)
	require.True(t, found)
	require.Equal(t, channeltypes.INIT, channel.State)
	require.Equal(t, ibctesting.MockPort, channel.Counterparty.PortID)
	require.Empty(t, channel.Counterparty.ChannelID)

	// the send, receive and ack sequences start at 1
	seq, found := path.EndpointA.Chain.Keeper().ChannelKeeper.GetNextSequenceSend(ibctesting.MockPort, path.EndpointA.ChannelID)
	require.True(t, found)
	require.Equal(t, uint64(1), seq)
}

func TestChanOpenTry(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupConnections(path)

	require.NoError(t, path.EndpointA.ChanOpenInit())
	require.NoError(t, path.EndpointB.ChanOpenTry())

	channel, found := path.EndpointB.Chain.Keeper().ChannelKeeper.GetChannel(ibctesting.MockPort, path.EndpointB.ChannelID)
	require.True(t, found)
	require.Equal(t, channeltypes.TRYOPEN, channel.State)
	require.Equal(t, path.EndpointA.ChannelID, channel.Counterparty.ChannelID)
}

func TestChanOpenTryProofOfWrongKey(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupConnections(path)

	require.NoError(t, path.EndpointA.ChanOpenInit())
	require.NoError(t, path.EndpointB.UpdateClient())

	proofHeight := path.EndpointA.Chain.LatestHeight()
	wrongProof := path.EndpointA.Chain.QueryProof(
		proofHeight.RevisionHeight, host.ConnectionKey(path.EndpointA.ConnectionID),
	)

	msg := &coretypes.MsgChannelOpenTry{
		PortID: ibctesting.MockPort,
		Channel: channeltypes.Channel{
			State:          channeltypes.TRYOPEN,
			Ordering:       channeltypes.UNORDERED,
			Counterparty:   channeltypes.NewCounterparty(ibctesting.MockPort, path.EndpointA.ChannelID),
			ConnectionHops: []string{path.EndpointB.ConnectionID},
			Version:        ibctesting.MockVersion,
		},
		CounterpartyVersion: ibctesting.MockVersion,
		ProofHeight:         proofHeight,
		ProofInit:           wrongProof,
	}
	_, err := path.EndpointB.Chain.SendMsgs(msg)
	require.Error(t, err)

	_, found := path.EndpointB.Chain.Keeper().ChannelKeeper.GetChannel(ibctesting.MockPort, channeltypes.FormatChannelIdentifier(0))
	require.False(t, found)
}

func TestChanOpenAckConfirm(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	for _, ep := range []*ibctesting.Endpoint{path.EndpointA, path.EndpointB} {
		channel, found := ep.Chain.Keeper().ChannelKeeper.GetChannel(ep.ChannelConfig.PortID, ep.ChannelID)
		require.True(t, found)
		require.Equal(t, channeltypes.OPEN, channel.State)
		require.Equal(t, ep.Counterparty.ChannelID, channel.Counterparty.ChannelID)
	}
}

func TestChanOpenAckNotInit(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	err := path.EndpointA.ChanOpenAck()
	require.ErrorIs(t, err, channeltypes.ErrInvalidChannelState)
}

func TestChanCloseInit(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	require.NoError(t, path.EndpointA.ChanCloseInit())

	channel, found := path.EndpointA.Chain.Keeper().ChannelKeeper.GetChannel(ibctesting.MockPort, path.EndpointA.ChannelID)
	require.True(t, found)
	require.Equal(t, channeltypes.CLOSED, channel.State)

	// closing an already closed channel fails
	err := path.EndpointA.ChanCloseInit()
	require.ErrorIs(t, err, channeltypes.ErrInvalidChannelState)
}

func TestChanCloseConfirm(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.Setup(path)

	require.NoError(t, path.EndpointA.ChanCloseInit())
	require.NoError(t, path.EndpointB.UpdateClient())

	proofHeight := path.EndpointA.Chain.LatestHeight()
	proofInit := path.EndpointA.Chain.QueryProof(
		proofHeight.RevisionHeight,
		host.ChannelKey(ibctesting.MockPort, path.EndpointA.ChannelID),
	)

	msg := &coretypes.MsgChannelCloseConfirm{
		PortID:      ibctesting.MockPort,
		ChannelID:   path.EndpointB.ChannelID,
		ProofHeight: proofHeight,
		ProofInit:   proofInit,
	}
	_, err := path.EndpointB.Chain.SendMsgs(msg)
	require.NoError(t, err)

	channel, found := path.EndpointB.Chain.Keeper().ChannelKeeper.GetChannel(ibctesting.MockPort, path.EndpointB.ChannelID)
	require.True(t, found)
	require.Equal(t, channeltypes.CLOSED, channel.State)
}
