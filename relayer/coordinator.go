package relayer

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"
	tmlog "github.com/tendermint/tendermint/libs/log"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

// CoordinatorConfig tunes the relay engine's scheduling behavior.
type CoordinatorConfig struct {
	// ScanInterval is the time between event scan passes.
	ScanInterval time.Duration `mapstructure:"scan-interval" yaml:"scan-interval"`
	// TickInterval is the scheduling granularity of retry dispatch.
	TickInterval time.Duration `mapstructure:"tick-interval" yaml:"tick-interval"`
	// SweepInterval is the time between retention sweeps of the tracker.
	SweepInterval time.Duration `mapstructure:"sweep-interval" yaml:"sweep-interval"`
	// MaxInflight bounds the number of work items processed concurrently.
	MaxInflight int `mapstructure:"max-inflight" yaml:"max-inflight"`
	// MaxAttempts is the number of failed attempts after which a work item is
	// dead-lettered.
	MaxAttempts uint32 `mapstructure:"max-attempts" yaml:"max-attempts"`
	// BackoffBase is the delay before the first retry; it doubles on every
	// further failure.
	BackoffBase time.Duration `mapstructure:"backoff-base" yaml:"backoff-base"`
	// BackoffMax caps the retry delay.
	BackoffMax time.Duration `mapstructure:"backoff-max" yaml:"backoff-max"`
	// DrainTimeout bounds how long shutdown waits for in-flight submissions.
	DrainTimeout time.Duration `mapstructure:"drain-timeout" yaml:"drain-timeout"`
}

// DefaultCoordinatorConfig returns the default scheduling configuration.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		ScanInterval:  time.Second,
		TickInterval:  100 * time.Millisecond,
		SweepInterval: time.Minute,
		MaxInflight:   8,
		MaxAttempts:   5,
		BackoffBase:   500 * time.Millisecond,
		BackoffMax:    30 * time.Second,
		DrainTimeout:  10 * time.Second,
	}
}

// gateKey groups work items that must be submitted in sequence order on an
// ordered channel.
type gateKey struct {
	kind      RelayKind
	chainID   string
	portID    string
	channelID string
}

func (k RelayKey) gate() gateKey {
	return gateKey{kind: k.Kind, chainID: k.ChainID, portID: k.PortID, channelID: k.ChannelID}
}

type pendingItem struct {
	item        WorkItem
	nextAttempt time.Time
}

type processResult struct {
	item WorkItem
	err  error
}

// Coordinator drives the relay engine for one path: it multiplexes event
// scanning, dispatch, retry backoff and retention sweeps over a single loop,
// fanning submissions out to a bounded set of workers. Items on ordered
// channels are gated so their messages land in sequence order even when they
// were detected out of order.
type Coordinator struct {
	cfg       CoordinatorConfig
	path      Path
	src, dst  Chain
	tracker   *Tracker
	processor *Processor
	scanners  []*Scanner
	logger    tmlog.Logger
	rng       *rand.Rand

	// owned by the Run loop
	pending     map[RelayKey]*pendingItem
	inflight    map[RelayKey]struct{}
	gates       map[gateKey]struct{}
	deadLetters map[RelayKey]WorkItem

	resultCh chan processResult
	forceCh  chan forceRequest
}

type forceRequest struct {
	key   RelayKey
	reply chan error
}

// NewCoordinator creates a coordinator relaying both directions of the path.
func NewCoordinator(cfg CoordinatorConfig, src, dst Chain, path Path, tracker *Tracker, logger tmlog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		path:      path,
		src:       src,
		dst:       dst,
		tracker:   tracker,
		processor: NewProcessor(tracker, logger),
		scanners: []*Scanner{
			NewScanner(src, dst, path.Src, path.Dst, tracker, logger),
			NewScanner(dst, src, path.Dst, path.Src, tracker, logger),
		},
		logger:      logger.With("module", "coordinator", "path", path.String()),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		pending:     make(map[RelayKey]*pendingItem),
		inflight:    make(map[RelayKey]struct{}),
		gates:       make(map[gateKey]struct{}),
		deadLetters: make(map[RelayKey]WorkItem),
		resultCh:    make(chan processResult),
		forceCh:     make(chan forceRequest),
	}
}

// DeadLetters returns the keys of work items parked after exhausting their
// attempts or hitting a fatal error. Safe to call while Run is active.
func (c *Coordinator) DeadLetters(ctx context.Context) ([]RelayKey, error) {
	records, err := c.tracker.Pending()
	if err != nil {
		return nil, err
	}
	var keys []RelayKey
	for _, record := range records {
		if record.State == StateFailed && record.Attempts >= c.cfg.MaxAttempts {
			keys = append(keys, record.Key)
		}
	}
	return keys, nil
}

// ForceRelay re-queues a dead-lettered work item for an immediate attempt. It
// blocks until the running loop accepts the request.
func (c *Coordinator) ForceRelay(ctx context.Context, key RelayKey) error {
	req := forceRequest{key: key, reply: make(chan error, 1)}
	select {
	case c.forceCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the relay loop until the context is canceled, then drains
// in-flight submissions within the configured timeout.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.resume(ctx); err != nil {
		return errors.Wrap(err, "resuming tracked relay work")
	}

	scanTicker := time.NewTicker(c.cfg.ScanInterval)
	defer scanTicker.Stop()
	tick := time.NewTicker(c.cfg.TickInterval)
	defer tick.Stop()
	sweepTicker := time.NewTicker(c.cfg.SweepInterval)
	defer sweepTicker.Stop()

	// submissions run on their own context: canceling the run context stops
	// scheduling, while in-flight submissions get the drain timeout to finish
	// before they are cut off.
	submitCtx, cancelSubmit := context.WithCancel(context.Background())
	defer cancelSubmit()

	c.logger.Info("relay loop started")
	for {
		select {
		case <-ctx.Done():
			return c.drain()

		case <-scanTicker.C:
			c.scan(ctx)

		case <-sweepTicker.C:
			if _, err := c.tracker.Sweep(); err != nil {
				c.logger.Error("retention sweep failed", "err", err)
			}

		case result := <-c.resultCh:
			c.handleResult(result)

		case req := <-c.forceCh:
			req.reply <- c.forceRelay(ctx, req.key)

		case <-tick.C:
		}

		c.dispatch(submitCtx)
		setPendingGauge(len(c.pending) + len(c.inflight))
	}
}

// resume rebuilds the pending queue from the tracker so a restarted relayer
// picks up where the previous run stopped. Items interrupted mid-flight are
// counted as a failed attempt and re-detected.
func (c *Coordinator) resume(ctx context.Context) error {
	records, err := c.tracker.Pending()
	if err != nil {
		return err
	}

	for _, record := range records {
		switch record.State {
		case StateProofGenerated, StateSubmitted:
			if record, err = c.tracker.MarkFailed(record.Key, "interrupted by restart"); err != nil {
				return err
			}
			fallthrough
		case StateFailed:
			if record.Attempts >= c.cfg.MaxAttempts {
				item, err := c.rebuildItem(ctx, record)
				if err != nil {
					return err
				}
				c.deadLetters[record.Key] = item
				continue
			}
			if _, err := c.tracker.Advance(record.Key, StateDetected); err != nil {
				return err
			}
		case StateDetected:
		default:
			// Confirmed receives wait for their acknowledgement; no work to do
			continue
		}

		item, err := c.rebuildItem(ctx, record)
		if err != nil {
			return err
		}
		c.pending[record.Key] = &pendingItem{
			item:        item,
			nextAttempt: time.Now().Add(c.backoff(record.Attempts)),
		}
	}

	if len(c.pending) > 0 || len(c.deadLetters) > 0 {
		c.logger.Info("resumed relay work", "pending", len(c.pending), "dead_letters", len(c.deadLetters))
	}
	return nil
}

// rebuildItem reconstructs a schedulable work item from a durable record. The
// record key's chain is the packet's source; the proof and submit chains
// follow from the relay kind.
func (c *Coordinator) rebuildItem(ctx context.Context, record *RelayRecord) (WorkItem, error) {
	sourceChain, destChain := c.src, c.dst
	sourceEnd, destEnd := c.path.Src, c.path.Dst
	if record.Key.ChainID != c.src.ChainID() {
		sourceChain, destChain = c.dst, c.src
		sourceEnd, destEnd = c.path.Dst, c.path.Src
	}

	channel, err := sourceChain.QueryChannel(ctx, record.Packet.SourcePort, record.Packet.SourceChannel)
	if err != nil {
		return WorkItem{}, errors.Wrapf(err, "querying channel for record %s", record.Key)
	}

	item := WorkItem{
		Key:     record.Key,
		Packet:  record.Packet,
		Ack:     record.Ack,
		Ordered: channel.Ordering == channeltypes.ORDERED,
	}
	switch record.Key.Kind {
	case KindRecv:
		item.ProofChain = sourceChain
		item.SubmitChain = destChain
		item.ClientID = destEnd.ClientID
	case KindAck, KindTimeout:
		item.ProofChain = destChain
		item.SubmitChain = sourceChain
		item.ClientID = sourceEnd.ClientID
	default:
		return WorkItem{}, errors.Errorf("unknown relay kind %q", record.Key.Kind)
	}
	return item, nil
}

// scan runs both directional scanners and enqueues the newly detected work.
func (c *Coordinator) scan(ctx context.Context) {
	for _, scanner := range c.scanners {
		items, err := scanner.Scan(ctx)
		if err != nil {
			c.logger.Error("scan pass failed", "err", err)
			continue
		}
		for _, item := range items {
			c.enqueue(item, time.Now())
			incrWorkCounter("detected", item.Key.Kind)
		}
	}
}

func (c *Coordinator) enqueue(item WorkItem, nextAttempt time.Time) {
	if _, ok := c.inflight[item.Key]; ok {
		return
	}
	c.pending[item.Key] = &pendingItem{item: item, nextAttempt: nextAttempt}
}

// dispatch hands ready items to workers, respecting the inflight bound and
// submitting at most one item per ordered channel at a time, lowest sequence
// first.
func (c *Coordinator) dispatch(ctx context.Context) {
	if len(c.pending) == 0 {
		return
	}
	now := time.Now()

	ready := make([]*pendingItem, 0, len(c.pending))
	for _, p := range c.pending {
		if !p.nextAttempt.After(now) {
			ready = append(ready, p)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].item.Key.Sequence < ready[j].item.Key.Sequence
	})

	for _, p := range ready {
		if len(c.inflight) >= c.cfg.MaxInflight {
			return
		}
		item := p.item
		if item.Ordered {
			gate := item.Key.gate()
			if _, held := c.gates[gate]; held {
				continue
			}
			if c.hasEarlierPending(item.Key) {
				continue
			}
			c.gates[gate] = struct{}{}
		}

		delete(c.pending, item.Key)
		c.inflight[item.Key] = struct{}{}

		go func(item WorkItem) {
			start := time.Now()
			err := c.processor.Process(ctx, item)
			measureProcessTime(start, item.Key.Kind)
			select {
			case c.resultCh <- processResult{item: item, err: err}:
			case <-ctx.Done():
			}
		}(item)
	}
}

// hasEarlierPending reports whether a lower sequence for the same ordered
// channel is still pending, in flight or parked. Submitting ahead of it would
// be rejected by sequence checks on chain.
func (c *Coordinator) hasEarlierPending(key RelayKey) bool {
	gate := key.gate()
	for other := range c.pending {
		if other.gate() == gate && other.Sequence < key.Sequence {
			return true
		}
	}
	for other := range c.deadLetters {
		if other.gate() == gate && other.Sequence < key.Sequence {
			return true
		}
	}
	return false
}

// handleResult reacts to a finished submission according to the error class.
func (c *Coordinator) handleResult(result processResult) {
	key := result.item.Key
	delete(c.inflight, key)
	if result.item.Ordered {
		delete(c.gates, key.gate())
	}

	if result.err == nil {
		incrWorkCounter("confirmed", key.Kind)
		return
	}

	class := Classify(result.err)
	c.logger.Info("relay attempt failed", "key", key.String(), "class", class.String(), "err", result.err)
	incrWorkCounter("failed", key.Kind)

	switch class {
	case ClassRedundant:
		// another relayer got there first; the work is done
		if _, err := c.tracker.Advance(key, StateConfirmed); err != nil {
			c.logger.Error("advancing redundant record", "key", key.String(), "err", err)
		}
		incrWorkCounter("redundant", key.Kind)
		return

	case ClassClientFatal:
		c.parkDeadLetter(result.item, result.err)
		return
	}

	record, err := c.tracker.MarkFailed(key, result.err.Error())
	if err != nil {
		c.logger.Error("marking record failed", "key", key.String(), "err", err)
		return
	}
	if record.State.Terminal() {
		return
	}
	if record.Attempts >= c.cfg.MaxAttempts {
		c.parkDeadLetter(result.item, result.err)
		return
	}
	if _, err := c.tracker.Advance(key, StateDetected); err != nil {
		c.logger.Error("re-detecting failed record", "key", key.String(), "err", err)
		return
	}

	delay := c.backoff(record.Attempts)
	if class == ClassSequence {
		// a stale account sequence resolves by itself; retry right away
		delay = 0
	}
	c.enqueue(result.item, time.Now().Add(delay))
}

// parkDeadLetter removes the item from scheduling until a force relay
// revives it.
func (c *Coordinator) parkDeadLetter(item WorkItem, cause error) {
	key := item.Key
	if _, err := c.tracker.MarkFailed(key, cause.Error()); err != nil {
		c.logger.Error("marking dead-lettered record failed", "key", key.String(), "err", err)
	}
	c.deadLetters[key] = item
	incrWorkCounter("dead_letter", key.Kind)
	c.logger.Error("work item dead-lettered", "key", key.String(), "err", cause)
}

// forceRelay revives a dead-lettered item for an immediate attempt.
func (c *Coordinator) forceRelay(ctx context.Context, key RelayKey) error {
	item, ok := c.deadLetters[key]
	if !ok {
		record, found, err := c.tracker.Get(key)
		if err != nil {
			return err
		}
		if !found || record.State != StateFailed {
			return errors.Errorf("no dead-lettered work item with key %s", key)
		}
		if item, err = c.rebuildItem(ctx, record); err != nil {
			return err
		}
	}

	delete(c.deadLetters, key)
	if _, err := c.tracker.Advance(key, StateDetected); err != nil {
		return err
	}
	c.enqueue(item, time.Now())
	c.logger.Info("force-relaying work item", "key", key.String())
	return nil
}

// backoff returns the jittered exponential delay for the given attempt count.
func (c *Coordinator) backoff(attempts uint32) time.Duration {
	if attempts == 0 {
		return 0
	}
	delay := c.cfg.BackoffBase
	for i := uint32(1); i < attempts && delay < c.cfg.BackoffMax; i++ {
		delay *= 2
	}
	if delay > c.cfg.BackoffMax {
		delay = c.cfg.BackoffMax
	}
	jitter := delay / 5
	if jitter > 0 {
		delay = delay - jitter + time.Duration(c.rng.Int63n(int64(2*jitter)))
	}
	return delay
}

// drain waits for in-flight submissions to report back, bounded by the drain
// timeout.
func (c *Coordinator) drain() error {
	if len(c.inflight) == 0 {
		return nil
	}
	c.logger.Info("draining in-flight submissions", "count", len(c.inflight))

	deadline := time.NewTimer(c.cfg.DrainTimeout)
	defer deadline.Stop()
	for len(c.inflight) > 0 {
		select {
		case result := <-c.resultCh:
			delete(c.inflight, result.item.Key)
		case <-deadline.C:
			c.logger.Error("drain timeout, abandoning in-flight submissions", "count", len(c.inflight))
			return nil
		}
	}
	return nil
}
