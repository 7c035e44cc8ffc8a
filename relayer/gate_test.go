package relayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestOrderedGateWithholdsLaterSequences seeds the scheduling queue with
// sequences detected in reverse order and checks that only the lowest one is
// eligible for dispatch on an ordered channel.
func TestOrderedGateWithholdsLaterSequences(t *testing.T) {
	c := &Coordinator{
		pending:     make(map[RelayKey]*pendingItem),
		deadLetters: make(map[RelayKey]WorkItem),
		gates:       make(map[gateKey]struct{}),
	}

	for _, sequence := range []uint64{3, 2, 1} {
		key := testKey(KindRecv, sequence)
		c.pending[key] = &pendingItem{item: WorkItem{Key: key, Ordered: true}, nextAttempt: time.Now()}
	}

	require.True(t, c.hasEarlierPending(testKey(KindRecv, 3)))
	require.True(t, c.hasEarlierPending(testKey(KindRecv, 2)))
	require.False(t, c.hasEarlierPending(testKey(KindRecv, 1)))

	// a different channel is not withheld by this queue
	otherChannel := testKey(KindRecv, 2)
	otherChannel.ChannelID = "channel-9"
	require.False(t, c.hasEarlierPending(otherChannel))

	// once the lowest sequence leaves the queue the next one clears
	delete(c.pending, testKey(KindRecv, 1))
	require.False(t, c.hasEarlierPending(testKey(KindRecv, 2)))

	// a dead-lettered lower sequence withholds its successors until an
	// operator resolves it
	c.deadLetters[testKey(KindRecv, 1)] = WorkItem{Key: testKey(KindRecv, 1), Ordered: true}
	require.True(t, c.hasEarlierPending(testKey(KindRecv, 2)))
	delete(c.deadLetters, testKey(KindRecv, 1))
	require.False(t, c.hasEarlierPending(testKey(KindRecv, 2)))
}
