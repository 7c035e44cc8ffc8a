package relayer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmlog "github.com/tendermint/tendermint/libs/log"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
)

// scanOne runs a scan pass and returns its single work item.
func scanOne(t *testing.T, scanner *relayer.Scanner) relayer.WorkItem {
	t.Helper()
	items, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	return items[0]
}

func TestProcessorRelaysRecv(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()
	processor := relayer.NewProcessor(f.tracker, tmlog.NewNopLogger())

	packet := f.sendPacket()
	item := scanOne(t, f.scannerAtoB())

	require.NoError(t, processor.Process(ctx, item))
	require.Equal(t, relayer.StateConfirmed, f.recordState(item.Key))

	// the packet was received on chain B
	_, found := f.path.EndpointB.Chain.Keeper().ChannelKeeper.GetPacketReceipt(
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
	)
	require.True(t, found)

	// the bundled update brought the client on B up to A's latest height
	clientState, found := f.path.EndpointB.Chain.Keeper().ClientKeeper.GetClientState(f.path.EndpointB.ClientID)
	require.True(t, found)
	require.Equal(t, f.path.EndpointA.Chain.LatestHeight(), clientState.LatestHeight)
}

func TestProcessorRedundantRecv(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()
	processor := relayer.NewProcessor(f.tracker, tmlog.NewNopLogger())

	packet := f.sendPacket()
	item := scanOne(t, f.scannerAtoB())

	// a competing relayer wins the race
	require.NoError(t, f.path.EndpointB.RecvPacket(packet))

	err := processor.Process(ctx, item)
	require.Error(t, err)
	require.Equal(t, relayer.ClassRedundant, relayer.Classify(err))
}

func TestProcessorRelaysAck(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()
	processor := relayer.NewProcessor(f.tracker, tmlog.NewNopLogger())

	packet := f.sendPacket()
	recvItem := scanOne(t, f.scannerAtoB())
	require.NoError(t, processor.Process(ctx, recvItem))

	ackItem := scanOne(t, f.scannerBtoA())
	require.Equal(t, relayer.KindAck, ackItem.Key.Kind)
	require.NoError(t, processor.Process(ctx, ackItem))
	require.Equal(t, relayer.StateConfirmed, f.recordState(ackItem.Key))

	// the commitment on chain A is cleared
	commitment := f.path.EndpointA.Chain.Keeper().ChannelKeeper.GetPacketCommitment(
		packet.SourcePort, packet.SourceChannel, packet.Sequence,
	)
	require.Empty(t, commitment)

	// scanning A closes the loop on both records
	items, err := f.scannerAtoB().Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, relayer.StateAcknowledged, f.recordState(f.key(relayer.KindRecv, packet)))
	require.Equal(t, relayer.StateAcknowledged, f.recordState(f.key(relayer.KindAck, packet)))
}

func TestProcessorRelaysTimeoutUnordered(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()
	processor := relayer.NewProcessor(f.tracker, tmlog.NewNopLogger())

	packet := f.sendExpiringPacket()
	scanner := f.scannerAtoB()
	_ = scanOne(t, scanner)

	f.coord.AdvanceTime(time.Minute)

	timeoutItem := scanOne(t, scanner)
	require.Equal(t, relayer.KindTimeout, timeoutItem.Key.Kind)
	require.NoError(t, processor.Process(ctx, timeoutItem))

	commitment := f.path.EndpointA.Chain.Keeper().ChannelKeeper.GetPacketCommitment(
		packet.SourcePort, packet.SourceChannel, packet.Sequence,
	)
	require.Empty(t, commitment)

	// the timeout event on A closes both records
	items, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, relayer.StateTimedOut, f.recordState(f.key(relayer.KindRecv, packet)))
	require.Equal(t, relayer.StateTimedOut, f.recordState(f.key(relayer.KindTimeout, packet)))
}

func TestProcessorRelaysTimeoutOrdered(t *testing.T) {
	f := setupRelay(t, channeltypes.ORDERED)
	ctx := context.Background()
	processor := relayer.NewProcessor(f.tracker, tmlog.NewNopLogger())

	packet := f.sendExpiringPacket()
	scanner := f.scannerAtoB()
	_ = scanOne(t, scanner)

	f.coord.AdvanceTime(time.Minute)

	timeoutItem := scanOne(t, scanner)
	require.Equal(t, relayer.KindTimeout, timeoutItem.Key.Kind)
	require.True(t, timeoutItem.Ordered)
	require.NoError(t, processor.Process(ctx, timeoutItem))

	// an ordered channel closes when a packet times out
	channel, found := f.path.EndpointA.Chain.Keeper().ChannelKeeper.GetChannel(
		packet.SourcePort, packet.SourceChannel,
	)
	require.True(t, found)
	require.Equal(t, channeltypes.CLOSED, channel.State)
}
