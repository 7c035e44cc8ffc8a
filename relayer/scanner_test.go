package relayer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
)

func TestScannerDetectsSendPacket(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()
	scanner := f.scannerAtoB()

	packet := f.sendPacket()

	items, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	require.Equal(t, relayer.KindRecv, item.Key.Kind)
	require.Equal(t, f.path.EndpointA.Chain.ChainID, item.Key.ChainID)
	require.Equal(t, packet.Sequence, item.Key.Sequence)
	require.Equal(t, f.chainA.ChainID(), item.ProofChain.ChainID())
	require.Equal(t, f.chainB.ChainID(), item.SubmitChain.ChainID())
	require.Equal(t, f.path.EndpointB.ClientID, item.ClientID)
	require.False(t, item.Ordered)

	require.Equal(t, relayer.StateDetected, f.recordState(item.Key))

	// the high-water mark advanced to the chain's latest height
	hwm, err := f.tracker.HighWaterMark(f.chainA.ChainID())
	require.NoError(t, err)
	require.Equal(t, f.path.EndpointA.Chain.LatestHeight().RevisionHeight, hwm)

	// rescanning yields nothing new
	items, err = scanner.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestScannerDetectsWriteAck(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()

	packet := f.sendPacket()
	_, err := f.scannerAtoB().Scan(ctx)
	require.NoError(t, err)

	// a competing relayer delivers the packet to chain B
	require.NoError(t, f.path.EndpointB.RecvPacket(packet))

	items, err := f.scannerBtoA().Scan(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	require.Equal(t, relayer.KindAck, item.Key.Kind)
	require.Equal(t, f.path.EndpointA.Chain.ChainID, item.Key.ChainID)
	require.Equal(t, successAck(), item.Ack)
	require.Equal(t, f.chainB.ChainID(), item.ProofChain.ChainID())
	require.Equal(t, f.chainA.ChainID(), item.SubmitChain.ChainID())
	require.Equal(t, f.path.EndpointA.ClientID, item.ClientID)

	// observing the receive confirms the receive record
	require.Equal(t, relayer.StateConfirmed, f.recordState(f.key(relayer.KindRecv, packet)))
}

func TestScannerClosesAcknowledged(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()

	packet := f.sendPacket()
	_, err := f.scannerAtoB().Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, f.path.EndpointB.RecvPacket(packet))
	_, err = f.scannerBtoA().Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, f.path.EndpointA.AcknowledgePacket(packet, successAck()))

	items, err := f.scannerAtoB().Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	require.Equal(t, relayer.StateAcknowledged, f.recordState(f.key(relayer.KindRecv, packet)))
	require.Equal(t, relayer.StateAcknowledged, f.recordState(f.key(relayer.KindAck, packet)))
}

func TestScannerDetectsTimeout(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()
	scanner := f.scannerAtoB()

	packet := f.sendExpiringPacket()

	items, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, relayer.KindRecv, items[0].Key.Kind)

	// beyond the timeout horizon the undelivered packet becomes timeout work
	f.coord.AdvanceTime(time.Minute)

	items, err = scanner.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	require.Equal(t, relayer.KindTimeout, item.Key.Kind)
	require.Equal(t, packet.Sequence, item.Key.Sequence)
	require.Equal(t, f.chainB.ChainID(), item.ProofChain.ChainID())
	require.Equal(t, f.chainA.ChainID(), item.SubmitChain.ChainID())
	require.Equal(t, f.path.EndpointA.ClientID, item.ClientID)

	// the timeout is detected once
	items, err = scanner.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestScannerIgnoresDeliveredPacketTimeout(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	ctx := context.Background()
	scanner := f.scannerAtoB()

	packet := f.sendExpiringPacket()
	_, err := scanner.Scan(ctx)
	require.NoError(t, err)

	// the packet lands before the timeout elapses
	require.NoError(t, f.path.EndpointB.RecvPacket(packet))
	_, err = f.scannerBtoA().Scan(ctx)
	require.NoError(t, err)

	f.coord.AdvanceTime(time.Minute)

	// the confirmed receive is no longer a timeout candidate
	items, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	_, found, err := f.tracker.Get(f.key(relayer.KindTimeout, packet))
	require.NoError(t, err)
	require.False(t, found)
}
