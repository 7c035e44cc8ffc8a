package relayer

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmlog "github.com/tendermint/tendermint/libs/log"
	dbm "github.com/tendermint/tm-db"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

// RelayKind names the message a work item will submit.
type RelayKind string

const (
	// KindRecv - relay a sent packet to its destination chain
	KindRecv RelayKind = "recv"
	// KindAck - relay a written acknowledgement back to the source chain
	KindAck RelayKind = "ack"
	// KindTimeout - prove non-receipt and time the packet out on the source
	// chain
	KindTimeout RelayKind = "timeout"
)

// RecordState is the lifecycle state of a relay record.
type RecordState string

const (
	// StateDetected - the event was observed and recorded
	StateDetected RecordState = "detected"
	// StateProofGenerated - the proof was fetched and the message built
	StateProofGenerated RecordState = "proof_generated"
	// StateSubmitted - the transaction was handed to the target chain
	StateSubmitted RecordState = "submitted"
	// StateConfirmed - the transaction was committed on the target chain
	StateConfirmed RecordState = "confirmed"
	// StateAcknowledged - the packet's acknowledgement closed the loop
	StateAcknowledged RecordState = "acknowledged"
	// StateTimedOut - the packet expired and was closed out via timeout
	StateTimedOut RecordState = "timed_out"
	// StateFailed - the last attempt failed; the record may be retried
	StateFailed RecordState = "failed"
)

// stateRank orders the forward states. A transition may never decrease the
// rank, with the single exception of a Failed record being re-detected for
// another attempt.
var stateRank = map[RecordState]int{
	StateDetected:       0,
	StateProofGenerated: 1,
	StateSubmitted:      2,
	StateConfirmed:      3,
	StateAcknowledged:   4,
	StateTimedOut:       4,
}

// Terminal reports whether no further transitions are expected.
func (s RecordState) Terminal() bool {
	return s == StateAcknowledged || s == StateTimedOut
}

// RelayKey uniquely identifies a unit of relay work. The port, channel and
// sequence are those of the packet on its source chain.
type RelayKey struct {
	Kind      RelayKind `json:"kind"`
	ChainID   string    `json:"chain_id"` // packet source chain
	PortID    string    `json:"port_id"`
	ChannelID string    `json:"channel_id"`
	Sequence  uint64    `json:"sequence"`
}

// String implements fmt.Stringer.
func (k RelayKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%d", k.Kind, k.ChainID, k.PortID, k.ChannelID, k.Sequence)
}

// RelayRecord is the durable state of a unit of relay work. Records survive
// restarts: a relayer coming back up resumes from the tracker instead of
// re-relaying everything since genesis.
type RelayRecord struct {
	Key   RelayKey    `json:"key"`
	State RecordState `json:"state"`
	// Version increases by one on every transition. Writers must pass the
	// version they read; a mismatch means a concurrent update won.
	Version    uint64              `json:"version"`
	Attempts   uint32              `json:"attempts"`
	LastError  string              `json:"last_error,omitempty"`
	Packet     channeltypes.Packet `json:"packet"`
	Ack        []byte              `json:"ack,omitempty"`
	DetectedAt time.Time           `json:"detected_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// storeFormatVersion tags the record encoding the store was written with. It
// is bumped on incompatible changes to RelayRecord or the key layout so an
// old database is refused on startup instead of being misread.
const storeFormatVersion uint64 = 1

var (
	formatKey    = []byte("format")
	recordPrefix = []byte("record/")
	hwmPrefix    = []byte("hwm/")

	// ErrStaleRecord is returned when a transition carries a version that no
	// longer matches the stored record.
	ErrStaleRecord = errors.New("relay record version mismatch")
	// ErrInvalidTransition is returned when a transition would move a record
	// backwards.
	ErrInvalidTransition = errors.New("invalid relay record transition")
	// ErrUnsupportedFormat is returned when the store was written in a format
	// this release does not read.
	ErrUnsupportedFormat = errors.New("unsupported relay store format")
)

// Tracker persists relay records and per-chain scan high-water marks in a
// tm-db database.
type Tracker struct {
	mu     sync.Mutex
	db     dbm.DB
	logger tmlog.Logger

	// records in terminal states older than the retention window are deleted
	// by Sweep
	retention time.Duration
	now       func() time.Time
}

// NewTracker creates a tracker over the given database. A fresh database is
// stamped with the current store format; one stamped with a different format
// is refused.
func NewTracker(db dbm.DB, logger tmlog.Logger, retention time.Duration) (*Tracker, error) {
	bz, err := db.Get(formatKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading relay store format")
	}
	if bz == nil {
		vbz, err := tmjson.Marshal(storeFormatVersion)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling relay store format")
		}
		if err := db.SetSync(formatKey, vbz); err != nil {
			return nil, errors.Wrap(err, "writing relay store format")
		}
	} else {
		var stored uint64
		if err := tmjson.Unmarshal(bz, &stored); err != nil {
			return nil, errors.Wrap(err, "unmarshaling relay store format")
		}
		if stored != storeFormatVersion {
			return nil, errors.Wrapf(ErrUnsupportedFormat, "store format %d, this release reads format %d", stored, storeFormatVersion)
		}
	}

	return &Tracker{
		db:        db,
		logger:    logger.With("module", "tracker"),
		retention: retention,
		now:       time.Now,
	}, nil
}

func recordKey(key RelayKey) []byte {
	return append(recordPrefix, []byte(key.String())...)
}

// Get returns the stored record for the key.
func (t *Tracker) Get(key RelayKey) (*RelayRecord, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(key)
}

func (t *Tracker) get(key RelayKey) (*RelayRecord, bool, error) {
	bz, err := t.db.Get(recordKey(key))
	if err != nil {
		return nil, false, errors.Wrap(err, "reading relay record")
	}
	if bz == nil {
		return nil, false, nil
	}
	var record RelayRecord
	if err := tmjson.Unmarshal(bz, &record); err != nil {
		return nil, false, errors.Wrap(err, "unmarshaling relay record")
	}
	return &record, true, nil
}

func (t *Tracker) set(record *RelayRecord) error {
	bz, err := tmjson.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshaling relay record")
	}
	return t.db.SetSync(recordKey(record.Key), bz)
}

// Detect records newly observed relay work. It returns the record and whether
// it was created: re-observing a known key is a no-op, which makes event
// scanning idempotent across overlapping ranges and restarts.
func (t *Tracker) Detect(key RelayKey, packet channeltypes.Packet, ack []byte) (*RelayRecord, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, found, err := t.get(key); err != nil || found {
		return existing, false, err
	}

	now := t.now()
	record := &RelayRecord{
		Key:        key,
		State:      StateDetected,
		Packet:     packet,
		Ack:        ack,
		DetectedAt: now,
		UpdatedAt:  now,
	}
	if err := t.set(record); err != nil {
		return nil, false, err
	}
	t.logger.Debug("detected relay work", "key", key.String())
	return record, true, nil
}

// Transition moves a record to a new state. The version must match the stored
// record and the new state must not move the record backwards; the only
// allowed regression is Failed -> Detected, which begins another attempt.
func (t *Tracker) Transition(key RelayKey, version uint64, state RecordState, lastErr string) (*RelayRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found, err := t.get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("no relay record for key %s", key)
	}
	if record.Version != version {
		return nil, errors.Wrapf(ErrStaleRecord, "key %s: stored version %d, caller version %d", key, record.Version, version)
	}
	if err := validTransition(record.State, state); err != nil {
		return nil, errors.Wrapf(err, "key %s", key)
	}

	if state == StateFailed {
		record.Attempts++
	}
	record.State = state
	record.Version++
	record.LastError = lastErr
	record.UpdatedAt = t.now()

	if err := t.set(record); err != nil {
		return nil, err
	}
	return record, nil
}

func validTransition(from, to RecordState) error {
	if from.Terminal() {
		return errors.Wrapf(ErrInvalidTransition, "record is terminal in state %s", from)
	}
	if from == StateFailed {
		// a failed record may only be re-detected for another attempt
		if to == StateDetected || to == StateTimedOut {
			return nil
		}
		return errors.Wrapf(ErrInvalidTransition, "failed record may only be re-detected, got %s", to)
	}
	if to == StateFailed {
		return nil
	}
	if stateRank[to] < stateRank[from] {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s moves backwards", from, to)
	}
	return nil
}

// MarkFailed records a failed attempt, incrementing the record's attempt
// counter. Terminal records are left untouched.
func (t *Tracker) MarkFailed(key RelayKey, lastErr string) (*RelayRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found, err := t.get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("no relay record for key %s", key)
	}
	if record.State.Terminal() {
		return record, nil
	}

	record.State = StateFailed
	record.Version++
	record.Attempts++
	record.LastError = lastErr
	record.UpdatedAt = t.now()
	if err := t.set(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Advance moves a record forward to the given state if it is not already
// there. Unlike Transition it reads the current version itself and treats an
// already-reached or terminal record as a no-op, which makes it safe against
// events observed late or emitted by a competing relayer. It reports whether
// the record changed.
func (t *Tracker) Advance(key RelayKey, state RecordState) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found, err := t.get(key)
	if err != nil {
		return false, err
	}
	if !found || record.State == state {
		return false, nil
	}
	if err := validTransition(record.State, state); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}

	record.State = state
	record.Version++
	record.UpdatedAt = t.now()
	if err := t.set(record); err != nil {
		return false, err
	}
	return true, nil
}

// Pending returns all records in non-terminal states.
func (t *Tracker) Pending() ([]*RelayRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var records []*RelayRecord
	err := t.iterateRecords(func(record *RelayRecord) {
		if !record.State.Terminal() {
			records = append(records, record)
		}
	})
	return records, err
}

// Sweep deletes terminal records that have not been updated within the
// retention window and returns the number deleted.
func (t *Tracker) Sweep() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.retention)
	var stale []RelayKey
	err := t.iterateRecords(func(record *RelayRecord) {
		if record.State.Terminal() && record.UpdatedAt.Before(cutoff) {
			stale = append(stale, record.Key)
		}
	})
	if err != nil {
		return 0, err
	}

	for _, key := range stale {
		if err := t.db.DeleteSync(recordKey(key)); err != nil {
			return 0, errors.Wrap(err, "deleting swept relay record")
		}
	}
	if len(stale) > 0 {
		t.logger.Info("swept relay records", "count", len(stale))
	}
	return len(stale), nil
}

func (t *Tracker) iterateRecords(fn func(*RelayRecord)) error {
	itr, err := dbm.IteratePrefix(t.db, recordPrefix)
	if err != nil {
		return errors.Wrap(err, "iterating relay records")
	}
	defer itr.Close()

	for ; itr.Valid(); itr.Next() {
		var record RelayRecord
		if err := tmjson.Unmarshal(itr.Value(), &record); err != nil {
			return errors.Wrap(err, "unmarshaling relay record")
		}
		fn(&record)
	}
	return itr.Error()
}

// HighWaterMark returns the highest block height of the chain whose events
// have been fully scanned.
func (t *Tracker) HighWaterMark(chainID string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bz, err := t.db.Get(append(hwmPrefix, []byte(chainID)...))
	if err != nil {
		return 0, errors.Wrap(err, "reading high-water mark")
	}
	if bz == nil {
		return 0, nil
	}
	var hwm uint64
	if err := tmjson.Unmarshal(bz, &hwm); err != nil {
		return 0, errors.Wrap(err, "unmarshaling high-water mark")
	}
	return hwm, nil
}

// SetHighWaterMark records the highest fully scanned height for the chain.
func (t *Tracker) SetHighWaterMark(chainID string, height uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	bz, err := tmjson.Marshal(height)
	if err != nil {
		return errors.Wrap(err, "marshaling high-water mark")
	}
	return t.db.SetSync(append(hwmPrefix, []byte(chainID)...), bz)
}
