package relayer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmlog "github.com/tendermint/tendermint/libs/log"
	dbm "github.com/tendermint/tm-db"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
	ibctesting "github.com/bpolania/near-cosmos-ibc/testing"
)

// relayFixture wires two in-process chains with an open channel to a tracker,
// exposing both chains through the relayer.Chain interface.
type relayFixture struct {
	t       *testing.T
	coord   *ibctesting.Coordinator
	path    *ibctesting.Path
	tracker *relayer.Tracker

	relayPath      relayer.Path
	chainA, chainB relayer.Chain
}

func setupRelay(t *testing.T, order channeltypes.Order) *relayFixture {
	t.Helper()

	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	path.EndpointA.ChannelConfig.Order = order
	path.EndpointB.ChannelConfig.Order = order
	coord.Setup(path)

	tracker, err := relayer.NewTracker(dbm.NewMemDB(), tmlog.NewNopLogger(), time.Hour)
	require.NoError(t, err)

	return &relayFixture{
		t:       t,
		coord:   coord,
		path:    path,
		tracker: tracker,
		relayPath: relayer.Path{
			Src: relayer.PathEnd{
				ChainID:      path.EndpointA.Chain.ChainID,
				ClientID:     path.EndpointA.ClientID,
				ConnectionID: path.EndpointA.ConnectionID,
				PortID:       path.EndpointA.ChannelConfig.PortID,
				ChannelID:    path.EndpointA.ChannelID,
			},
			Dst: relayer.PathEnd{
				ChainID:      path.EndpointB.Chain.ChainID,
				ClientID:     path.EndpointB.ClientID,
				ConnectionID: path.EndpointB.ConnectionID,
				PortID:       path.EndpointB.ChannelConfig.PortID,
				ChannelID:    path.EndpointB.ChannelID,
			},
		},
		chainA: path.EndpointA.Chain.Adapter,
		chainB: path.EndpointB.Chain.Adapter,
	}
}

func (f *relayFixture) scannerAtoB() *relayer.Scanner {
	return relayer.NewScanner(f.chainA, f.chainB, f.relayPath.Src, f.relayPath.Dst, f.tracker, tmlog.NewNopLogger())
}

func (f *relayFixture) scannerBtoA() *relayer.Scanner {
	return relayer.NewScanner(f.chainB, f.chainA, f.relayPath.Dst, f.relayPath.Src, f.tracker, tmlog.NewNopLogger())
}

// sendPacket sends a packet on chain A that does not time out during the test.
func (f *relayFixture) sendPacket() channeltypes.Packet {
	f.t.Helper()
	height := f.path.EndpointB.Chain.LatestHeight()
	timeout := clienttypes.NewHeight(height.RevisionNumber, height.RevisionHeight+1000)
	packet, err := f.path.EndpointA.SendPacket(ibctesting.DefaultPacketData, timeout, 0)
	require.NoError(f.t, err)
	return packet
}

// sendExpiringPacket sends a packet on chain A whose timeout timestamp lies
// just beyond chain B's current block time.
func (f *relayFixture) sendExpiringPacket() channeltypes.Packet {
	f.t.Helper()
	dst := f.path.EndpointB.Chain
	header := dst.QueryHeader(dst.LatestHeight().RevisionHeight)
	timeout := uint64(header.GetTime().Add(30 * time.Second).UnixNano())
	packet, err := f.path.EndpointA.SendPacket(ibctesting.DefaultPacketData, clienttypes.ZeroHeight(), timeout)
	require.NoError(f.t, err)
	return packet
}

func (f *relayFixture) key(kind relayer.RelayKind, packet channeltypes.Packet) relayer.RelayKey {
	return relayer.RelayKey{
		Kind:      kind,
		ChainID:   f.path.EndpointA.Chain.ChainID,
		PortID:    packet.SourcePort,
		ChannelID: packet.SourceChannel,
		Sequence:  packet.Sequence,
	}
}

func (f *relayFixture) recordState(key relayer.RelayKey) relayer.RecordState {
	f.t.Helper()
	record, found, err := f.tracker.Get(key)
	require.NoError(f.t, err)
	require.True(f.t, found, "no record for %s", key)
	return record.State
}

func successAck() []byte {
	return channeltypes.NewResultAcknowledgement([]byte{byte(1)}).Acknowledgement()
}
