package relayer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmlog "github.com/tendermint/tendermint/libs/log"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
)

func testCoordinatorConfig() relayer.CoordinatorConfig {
	cfg := relayer.DefaultCoordinatorConfig()
	cfg.ScanInterval = 20 * time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	cfg.SweepInterval = time.Hour
	cfg.BackoffBase = 10 * time.Millisecond
	cfg.BackoffMax = 100 * time.Millisecond
	cfg.DrainTimeout = 2 * time.Second
	return cfg
}

func startCoordinator(t *testing.T, f *relayFixture, cfg relayer.CoordinatorConfig) (*relayer.Coordinator, func()) {
	t.Helper()

	coordinator := relayer.NewCoordinator(cfg, f.chainA, f.chainB, f.relayPath, f.tracker, tmlog.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coordinator.Run(ctx) }()

	return coordinator, func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator did not stop")
		}
	}
}

// waitForState polls the tracker until the record reaches the state.
func (f *relayFixture) waitForState(key relayer.RelayKey, state relayer.RecordState) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		record, found, err := f.tracker.Get(key)
		return err == nil && found && record.State == state
	}, 15*time.Second, 20*time.Millisecond, "record %s never reached %s", key, state)
}

func TestCoordinatorRelaysPacketEndToEnd(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	_, stop := startCoordinator(t, f, testCoordinatorConfig())
	defer stop()

	packet := f.sendPacket()

	// the packet is delivered, its ack relayed back and both records closed
	f.waitForState(f.key(relayer.KindRecv, packet), relayer.StateAcknowledged)
	f.waitForState(f.key(relayer.KindAck, packet), relayer.StateAcknowledged)

	_, found := f.path.EndpointB.Chain.Keeper().ChannelKeeper.GetPacketReceipt(
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
	)
	require.True(t, found)

	commitment := f.path.EndpointA.Chain.Keeper().ChannelKeeper.GetPacketCommitment(
		packet.SourcePort, packet.SourceChannel, packet.Sequence,
	)
	require.Empty(t, commitment)
}

func TestCoordinatorRelaysOrderedSequence(t *testing.T) {
	f := setupRelay(t, channeltypes.ORDERED)
	_, stop := startCoordinator(t, f, testCoordinatorConfig())
	defer stop()

	first := f.sendPacket()
	second := f.sendPacket()
	third := f.sendPacket()

	for _, packet := range []channeltypes.Packet{first, second, third} {
		f.waitForState(f.key(relayer.KindRecv, packet), relayer.StateAcknowledged)
	}

	seq, found := f.path.EndpointB.Chain.Keeper().ChannelKeeper.GetNextSequenceRecv(
		first.DestinationPort, first.DestinationChannel,
	)
	require.True(t, found)
	require.Equal(t, uint64(4), seq)
}

func TestCoordinatorTimesOutExpiredPacket(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)

	packet := f.sendExpiringPacket()
	f.coord.AdvanceTime(time.Minute)

	_, stop := startCoordinator(t, f, testCoordinatorConfig())
	defer stop()

	f.waitForState(f.key(relayer.KindRecv, packet), relayer.StateTimedOut)
	f.waitForState(f.key(relayer.KindTimeout, packet), relayer.StateTimedOut)

	commitment := f.path.EndpointA.Chain.Keeper().ChannelKeeper.GetPacketCommitment(
		packet.SourcePort, packet.SourceChannel, packet.Sequence,
	)
	require.Empty(t, commitment)
}

func TestCoordinatorDeadLettersAndForceRelay(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	cfg := testCoordinatorConfig()
	cfg.MaxAttempts = 3

	// a record that exhausted its attempts before this run
	packet := f.sendPacket()
	key := f.key(relayer.KindRecv, packet)
	_, _, err := f.tracker.Detect(key, packet, nil)
	require.NoError(t, err)
	for i := uint32(0); i < cfg.MaxAttempts; i++ {
		_, err = f.tracker.MarkFailed(key, "submit failed")
		require.NoError(t, err)
	}

	coordinator, stop := startCoordinator(t, f, cfg)
	defer stop()

	ctx := context.Background()
	deadLetters, err := coordinator.DeadLetters(ctx)
	require.NoError(t, err)
	require.Contains(t, deadLetters, key)

	require.NoError(t, coordinator.ForceRelay(ctx, key))

	f.waitForState(key, relayer.StateAcknowledged)
	_, found := f.path.EndpointB.Chain.Keeper().ChannelKeeper.GetPacketReceipt(
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
	)
	require.True(t, found)
}

// gatedChain blocks submissions between entered and release so a test can
// hold a transaction in flight.
type gatedChain struct {
	relayer.Chain
	entered chan struct{}
	release chan struct{}
}

func (c *gatedChain) SendMsgs(ctx context.Context, msgs []coretypes.Msg) (*relayer.TxResult, error) {
	c.entered <- struct{}{}
	<-c.release
	return c.Chain.SendMsgs(ctx, msgs)
}

func TestCoordinatorDrainsInflightSubmission(t *testing.T) {
	f := setupRelay(t, channeltypes.UNORDERED)
	gated := &gatedChain{Chain: f.chainB, entered: make(chan struct{}), release: make(chan struct{})}

	coordinator := relayer.NewCoordinator(testCoordinatorConfig(), f.chainA, gated, f.relayPath, f.tracker, tmlog.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coordinator.Run(ctx) }()

	packet := f.sendPacket()

	select {
	case <-gated.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("submission never started")
	}

	// shut down while the submission is in flight, then let it finish
	cancel()
	close(gated.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop")
	}

	// the in-flight submission completed during the drain
	_, found := f.path.EndpointB.Chain.Keeper().ChannelKeeper.GetPacketReceipt(
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
	)
	require.True(t, found)
	require.Equal(t, relayer.StateConfirmed, f.recordState(f.key(relayer.KindRecv, packet)))
}
