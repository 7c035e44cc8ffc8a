package relayer

import (
	"context"

	"github.com/pkg/errors"
	tmlog "github.com/tendermint/tendermint/libs/log"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

// WorkItem is a unit of relay work the coordinator schedules. The proof chain
// holds the state to be proven; the submit chain receives the message; the
// client identifier names the light client on the submit chain that tracks
// the proof chain.
type WorkItem struct {
	Key     RelayKey
	Packet  channeltypes.Packet
	Ack     []byte
	Ordered bool

	ProofChain  Chain
	SubmitChain Chain
	ClientID    string
}

// Scanner watches one end of a relay path for IBC events and turns them into
// relay work. Each scanner covers one direction: packets sent on the scanned
// chain and acknowledgements written on it. Scan progress is checkpointed in
// the tracker as a per-chain high-water mark, so a restarted relayer resumes
// where it left off.
type Scanner struct {
	src     Chain // the scanned chain
	dst     Chain
	srcEnd  PathEnd
	dstEnd  PathEnd
	tracker *Tracker
	logger  tmlog.Logger
}

// NewScanner creates a scanner for the direction src -> dst of a path.
func NewScanner(src, dst Chain, srcEnd, dstEnd PathEnd, tracker *Tracker, logger tmlog.Logger) *Scanner {
	return &Scanner{
		src:     src,
		dst:     dst,
		srcEnd:  srcEnd,
		dstEnd:  dstEnd,
		tracker: tracker,
		logger:  logger.With("module", "scanner", "chain", src.ChainID()),
	}
}

// Scan runs one scan pass: it processes the events emitted since the last
// high-water mark, checks pending packets against the destination chain's
// timeout horizon and returns the newly detected work.
func (s *Scanner) Scan(ctx context.Context) ([]WorkItem, error) {
	latest, err := s.src.LatestHeight(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "querying latest height of %s", s.src.ChainID())
	}

	hwm, err := s.tracker.HighWaterMark(s.src.ChainID())
	if err != nil {
		return nil, err
	}

	var items []WorkItem
	if latest.RevisionHeight > hwm {
		events, err := s.src.QueryEvents(ctx, hwm+1, latest.RevisionHeight)
		if err != nil {
			return nil, errors.Wrapf(err, "querying events of %s", s.src.ChainID())
		}

		for _, event := range events {
			detected, err := s.handleEvent(event)
			if err != nil {
				return nil, err
			}
			items = append(items, detected...)
		}
	}

	timeouts, err := s.detectTimeouts(ctx)
	if err != nil {
		return nil, err
	}
	items = append(items, timeouts...)

	if err := s.tracker.SetHighWaterMark(s.src.ChainID(), latest.RevisionHeight); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Scanner) handleEvent(event Event) ([]WorkItem, error) {
	switch event.Type {
	case channeltypes.EventTypeSendPacket:
		return s.handleSendPacket(event)
	case channeltypes.EventTypeWriteAck:
		return s.handleWriteAck(event)
	case channeltypes.EventTypeRecvPacket:
		return nil, s.confirmRecv(event)
	case channeltypes.EventTypeAcknowledgePacket:
		return nil, s.closeAck(event)
	case channeltypes.EventTypeTimeoutPacket:
		return nil, s.closeTimeout(event)
	default:
		return nil, nil
	}
}

// handleSendPacket detects a packet sent on the scanned chain that must be
// relayed to the destination chain.
func (s *Scanner) handleSendPacket(event Event) ([]WorkItem, error) {
	if event.Attrs[channeltypes.AttributeKeySrcPort] != s.srcEnd.PortID ||
		event.Attrs[channeltypes.AttributeKeySrcChannel] != s.srcEnd.ChannelID {
		return nil, nil
	}

	packet, err := channeltypes.PacketFromAttributes(event.Attrs)
	if err != nil {
		return nil, errors.Wrap(err, "reconstructing packet from send_packet event")
	}

	key := RelayKey{
		Kind:      KindRecv,
		ChainID:   s.src.ChainID(),
		PortID:    packet.SourcePort,
		ChannelID: packet.SourceChannel,
		Sequence:  packet.Sequence,
	}
	_, created, err := s.tracker.Detect(key, packet, nil)
	if err != nil || !created {
		return nil, err
	}

	s.logger.Info("detected packet", "key", key.String(), "height", event.Height)
	return []WorkItem{{
		Key:         key,
		Packet:      packet,
		Ordered:     orderedEvent(event),
		ProofChain:  s.src,
		SubmitChain: s.dst,
		ClientID:    s.dstEnd.ClientID,
	}}, nil
}

// handleWriteAck detects an acknowledgement written on the scanned chain that
// must be relayed back to the packet's source chain. It also closes the loop
// on the counterparty's receive record.
func (s *Scanner) handleWriteAck(event Event) ([]WorkItem, error) {
	if event.Attrs[channeltypes.AttributeKeyDstPort] != s.srcEnd.PortID ||
		event.Attrs[channeltypes.AttributeKeyDstChannel] != s.srcEnd.ChannelID {
		return nil, nil
	}

	packet, err := channeltypes.PacketFromAttributes(event.Attrs)
	if err != nil {
		return nil, errors.Wrap(err, "reconstructing packet from write_acknowledgement event")
	}
	ack, err := channeltypes.AckFromAttributes(event.Attrs)
	if err != nil {
		return nil, errors.Wrap(err, "reading acknowledgement from write_acknowledgement event")
	}

	// the packet was sent by the counterparty; a receive record for it may
	// exist from the opposite scan direction
	recvKey := RelayKey{
		Kind:      KindRecv,
		ChainID:   s.dst.ChainID(),
		PortID:    packet.SourcePort,
		ChannelID: packet.SourceChannel,
		Sequence:  packet.Sequence,
	}
	if _, err := s.tracker.Advance(recvKey, StateConfirmed); err != nil {
		return nil, err
	}

	key := recvKey
	key.Kind = KindAck
	_, created, err := s.tracker.Detect(key, packet, ack)
	if err != nil || !created {
		return nil, err
	}

	s.logger.Info("detected acknowledgement", "key", key.String(), "height", event.Height)
	return []WorkItem{{
		Key:         key,
		Packet:      packet,
		Ack:         ack,
		Ordered:     orderedEvent(event),
		ProofChain:  s.src,
		SubmitChain: s.dst,
		ClientID:    s.dstEnd.ClientID,
	}}, nil
}

// confirmRecv marks the receive record of a packet as confirmed when the
// receive is observed on the scanned chain, including receives submitted by a
// competing relayer.
func (s *Scanner) confirmRecv(event Event) error {
	if event.Attrs[channeltypes.AttributeKeyDstPort] != s.srcEnd.PortID ||
		event.Attrs[channeltypes.AttributeKeyDstChannel] != s.srcEnd.ChannelID {
		return nil
	}
	key, err := eventRelayKey(event, KindRecv, s.dst.ChainID())
	if err != nil {
		return err
	}
	_, err = s.tracker.Advance(key, StateConfirmed)
	return err
}

// closeAck marks the receive and acknowledgement records of a packet as
// acknowledged when the acknowledgement lands on the scanned chain, which is
// the packet's source.
func (s *Scanner) closeAck(event Event) error {
	if event.Attrs[channeltypes.AttributeKeySrcPort] != s.srcEnd.PortID ||
		event.Attrs[channeltypes.AttributeKeySrcChannel] != s.srcEnd.ChannelID {
		return nil
	}
	key, err := eventRelayKey(event, KindRecv, s.src.ChainID())
	if err != nil {
		return err
	}
	if _, err := s.tracker.Advance(key, StateAcknowledged); err != nil {
		return err
	}
	key.Kind = KindAck
	_, err = s.tracker.Advance(key, StateAcknowledged)
	return err
}

// closeTimeout marks the records of a packet as timed out when the timeout
// lands on the scanned chain, which is the packet's source.
func (s *Scanner) closeTimeout(event Event) error {
	if event.Attrs[channeltypes.AttributeKeySrcPort] != s.srcEnd.PortID ||
		event.Attrs[channeltypes.AttributeKeySrcChannel] != s.srcEnd.ChannelID {
		return nil
	}
	key, err := eventRelayKey(event, KindRecv, s.src.ChainID())
	if err != nil {
		return err
	}
	if _, err := s.tracker.Advance(key, StateTimedOut); err != nil {
		return err
	}
	key.Kind = KindTimeout
	_, err = s.tracker.Advance(key, StateTimedOut)
	return err
}

// detectTimeouts checks undelivered packets sent on the scanned chain against
// the destination chain's latest height and time, and converts expired ones
// into timeout work. The timeout proof comes from the destination chain and
// the message is submitted back on the scanned chain.
func (s *Scanner) detectTimeouts(ctx context.Context) ([]WorkItem, error) {
	pending, err := s.tracker.Pending()
	if err != nil {
		return nil, err
	}

	var candidates []*RelayRecord
	for _, record := range pending {
		if record.Key.Kind != KindRecv || record.Key.ChainID != s.src.ChainID() {
			continue
		}
		// a packet already handed to the destination chain may land before the
		// timeout does; only undelivered packets are considered
		if record.State != StateDetected && record.State != StateFailed {
			continue
		}
		candidates = append(candidates, record)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	dstLatest, err := s.dst.LatestHeight(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "querying latest height of %s", s.dst.ChainID())
	}
	dstHeader, err := s.dst.QueryHeader(ctx, dstLatest.RevisionHeight)
	if err != nil {
		return nil, errors.Wrapf(err, "querying latest header of %s", s.dst.ChainID())
	}
	dstTime := uint64(dstHeader.GetTime().UnixNano())

	var items []WorkItem
	for _, record := range candidates {
		if !record.Packet.TimeoutElapsed(dstLatest, dstTime) {
			continue
		}

		key := record.Key
		key.Kind = KindTimeout
		_, created, err := s.tracker.Detect(key, record.Packet, nil)
		if err != nil {
			return nil, err
		}
		if !created {
			continue
		}

		ordered, err := s.packetOrdered(ctx, record.Packet)
		if err != nil {
			return nil, err
		}

		s.logger.Info("detected timeout", "key", key.String())
		items = append(items, WorkItem{
			Key:         key,
			Packet:      record.Packet,
			Ordered:     ordered,
			ProofChain:  s.dst,
			SubmitChain: s.src,
			ClientID:    s.srcEnd.ClientID,
		})
	}
	return items, nil
}

func (s *Scanner) packetOrdered(ctx context.Context, packet channeltypes.Packet) (bool, error) {
	channel, err := s.src.QueryChannel(ctx, packet.SourcePort, packet.SourceChannel)
	if err != nil {
		return false, err
	}
	return channel.Ordering == channeltypes.ORDERED, nil
}

func orderedEvent(event Event) bool {
	return event.Attrs[channeltypes.AttributeKeyChannelOrdering] == channeltypes.ORDERED.String()
}

func eventRelayKey(event Event, kind RelayKind, sourceChainID string) (RelayKey, error) {
	packet, err := channeltypes.PacketFromAttributes(event.Attrs)
	if err != nil {
		return RelayKey{}, errors.Wrapf(err, "reconstructing packet from %s event", event.Type)
	}
	return RelayKey{
		Kind:      kind,
		ChainID:   sourceChainID,
		PortID:    packet.SourcePort,
		ChannelID: packet.SourceChannel,
		Sequence:  packet.Sequence,
	}, nil
}
