package relayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmlog "github.com/tendermint/tendermint/libs/log"
	dbm "github.com/tendermint/tm-db"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := NewTracker(dbm.NewMemDB(), tmlog.NewNopLogger(), time.Hour)
	require.NoError(t, err)
	return tracker
}

func testKey(kind RelayKind, sequence uint64) RelayKey {
	return RelayKey{
		Kind:      kind,
		ChainID:   "testchain-1",
		PortID:    "transfer",
		ChannelID: "channel-0",
		Sequence:  sequence,
	}
}

func testPacket(sequence uint64) channeltypes.Packet {
	return channeltypes.NewPacket(
		[]byte("data"), sequence,
		"transfer", "channel-0", "transfer", "channel-1",
		clienttypes.NewHeight(1, 1000), 0,
	)
}

func TestTrackerDetectIdempotent(t *testing.T) {
	tracker := testTracker(t)
	key := testKey(KindRecv, 1)

	record, created, err := tracker.Detect(key, testPacket(1), nil)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, StateDetected, record.State)
	require.Equal(t, uint64(0), record.Version)

	// re-observing the same key is a no-op
	record, created, err = tracker.Detect(key, testPacket(1), nil)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, StateDetected, record.State)
}

func TestTrackerTransition(t *testing.T) {
	tracker := testTracker(t)
	key := testKey(KindRecv, 1)

	record, _, err := tracker.Detect(key, testPacket(1), nil)
	require.NoError(t, err)

	record, err = tracker.Transition(key, record.Version, StateProofGenerated, "")
	require.NoError(t, err)
	require.Equal(t, uint64(1), record.Version)

	record, err = tracker.Transition(key, record.Version, StateSubmitted, "")
	require.NoError(t, err)
	record, err = tracker.Transition(key, record.Version, StateConfirmed, "")
	require.NoError(t, err)

	// moving backwards is rejected
	_, err = tracker.Transition(key, record.Version, StateSubmitted, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTrackerTransitionStaleVersion(t *testing.T) {
	tracker := testTracker(t)
	key := testKey(KindRecv, 1)

	record, _, err := tracker.Detect(key, testPacket(1), nil)
	require.NoError(t, err)

	_, err = tracker.Transition(key, record.Version, StateProofGenerated, "")
	require.NoError(t, err)

	// the caller lost the race: its version is stale
	_, err = tracker.Transition(key, record.Version, StateSubmitted, "")
	require.ErrorIs(t, err, ErrStaleRecord)
}

func TestTrackerFailedRetry(t *testing.T) {
	tracker := testTracker(t)
	key := testKey(KindRecv, 1)

	_, _, err := tracker.Detect(key, testPacket(1), nil)
	require.NoError(t, err)

	record, err := tracker.MarkFailed(key, "proof rejected")
	require.NoError(t, err)
	require.Equal(t, StateFailed, record.State)
	require.Equal(t, uint32(1), record.Attempts)
	require.Equal(t, "proof rejected", record.LastError)

	// a failed record may only be re-detected or timed out
	_, err = tracker.Transition(key, record.Version, StateSubmitted, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	record, err = tracker.Transition(key, record.Version, StateDetected, "")
	require.NoError(t, err)
	require.Equal(t, StateDetected, record.State)
	require.Equal(t, uint32(1), record.Attempts)

	record, err = tracker.MarkFailed(key, "again")
	require.NoError(t, err)
	require.Equal(t, uint32(2), record.Attempts)
}

func TestTrackerMarkFailedTerminalNoOp(t *testing.T) {
	tracker := testTracker(t)
	key := testKey(KindRecv, 1)

	_, _, err := tracker.Detect(key, testPacket(1), nil)
	require.NoError(t, err)
	_, err = tracker.Advance(key, StateAcknowledged)
	require.NoError(t, err)

	record, err := tracker.MarkFailed(key, "late failure")
	require.NoError(t, err)
	require.Equal(t, StateAcknowledged, record.State)
	require.Equal(t, uint32(0), record.Attempts)
}

func TestTrackerAdvance(t *testing.T) {
	tracker := testTracker(t)
	key := testKey(KindRecv, 1)

	// advancing an unknown key is a no-op
	changed, err := tracker.Advance(key, StateConfirmed)
	require.NoError(t, err)
	require.False(t, changed)

	_, _, err = tracker.Detect(key, testPacket(1), nil)
	require.NoError(t, err)

	changed, err = tracker.Advance(key, StateConfirmed)
	require.NoError(t, err)
	require.True(t, changed)

	// already there
	changed, err = tracker.Advance(key, StateConfirmed)
	require.NoError(t, err)
	require.False(t, changed)

	// backwards moves are swallowed: the observed event is simply old news
	changed, err = tracker.Advance(key, StateDetected)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = tracker.Advance(key, StateAcknowledged)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestTrackerPending(t *testing.T) {
	tracker := testTracker(t)

	_, _, err := tracker.Detect(testKey(KindRecv, 1), testPacket(1), nil)
	require.NoError(t, err)
	_, _, err = tracker.Detect(testKey(KindRecv, 2), testPacket(2), nil)
	require.NoError(t, err)
	_, err = tracker.Advance(testKey(KindRecv, 2), StateAcknowledged)
	require.NoError(t, err)

	pending, err := tracker.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, uint64(1), pending[0].Key.Sequence)
}

func TestTrackerSweep(t *testing.T) {
	tracker := testTracker(t)
	now := time.Now()
	tracker.now = func() time.Time { return now }

	_, _, err := tracker.Detect(testKey(KindRecv, 1), testPacket(1), nil)
	require.NoError(t, err)
	_, _, err = tracker.Detect(testKey(KindRecv, 2), testPacket(2), nil)
	require.NoError(t, err)
	_, err = tracker.Advance(testKey(KindRecv, 1), StateAcknowledged)
	require.NoError(t, err)

	// within the retention window nothing is swept
	deleted, err := tracker.Sweep()
	require.NoError(t, err)
	require.Zero(t, deleted)

	now = now.Add(2 * time.Hour)
	deleted, err = tracker.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	// the terminal record is gone, the pending one stays
	_, found, err := tracker.Get(testKey(KindRecv, 1))
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = tracker.Get(testKey(KindRecv, 2))
	require.NoError(t, err)
	require.True(t, found)
}

func TestTrackerHighWaterMark(t *testing.T) {
	tracker := testTracker(t)

	hwm, err := tracker.HighWaterMark("testchain-1")
	require.NoError(t, err)
	require.Zero(t, hwm)

	require.NoError(t, tracker.SetHighWaterMark("testchain-1", 42))

	hwm, err = tracker.HighWaterMark("testchain-1")
	require.NoError(t, err)
	require.Equal(t, uint64(42), hwm)

	// marks are tracked per chain
	hwm, err = tracker.HighWaterMark("testchain-2")
	require.NoError(t, err)
	require.Zero(t, hwm)
}

func TestTrackerStoreFormat(t *testing.T) {
	db := dbm.NewMemDB()

	// a fresh store is stamped and reopens cleanly
	_, err := NewTracker(db, tmlog.NewNopLogger(), time.Hour)
	require.NoError(t, err)
	_, err = NewTracker(db, tmlog.NewNopLogger(), time.Hour)
	require.NoError(t, err)

	// a store stamped with an unknown format is refused
	bz, err := tmjson.Marshal(storeFormatVersion + 1)
	require.NoError(t, err)
	require.NoError(t, db.SetSync(formatKey, bz))

	_, err = NewTracker(db, tmlog.NewNopLogger(), time.Hour)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
