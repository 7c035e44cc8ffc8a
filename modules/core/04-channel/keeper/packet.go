package keeper

import (
	"bytes"
	"encoding/hex"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

// SendPacket is called by a module in order to send an IBC packet on a channel
// end owned by the calling module.
func (k Keeper) SendPacket(packet types.Packet) error {
	if err := packet.ValidateBasic(); err != nil {
		return sdkerrors.Wrap(err, "packet failed basic validation")
	}

	channel, found := k.GetChannel(packet.SourcePort, packet.SourceChannel)
	if !found {
		return sdkerrors.Wrap(types.ErrChannelNotFound, packet.SourceChannel)
	}

	if channel.State != types.OPEN {
		return sdkerrors.Wrapf(
			types.ErrInvalidChannelState,
			"channel is not OPEN (got %s)", channel.State,
		)
	}

	if packet.DestinationPort != channel.Counterparty.PortID ||
		packet.DestinationChannel != channel.Counterparty.ChannelID {
		return sdkerrors.Wrapf(
			types.ErrInvalidPacket,
			"packet destination (%s, %s) does not match the counterparty channel end (%s, %s)",
			packet.DestinationPort, packet.DestinationChannel,
			channel.Counterparty.PortID, channel.Counterparty.ChannelID,
		)
	}

	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return err
	}

	if connection.State != connectiontypes.OPEN {
		return sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	nextSequenceSend, found := k.GetNextSequenceSend(packet.SourcePort, packet.SourceChannel)
	if !found {
		return sdkerrors.Wrapf(
			types.ErrSequenceSendNotFound,
			"source port: %s, source channel: %s", packet.SourcePort, packet.SourceChannel,
		)
	}

	if packet.Sequence != nextSequenceSend {
		return sdkerrors.Wrapf(
			types.ErrPacketSequenceOutOfOrder,
			"packet sequence ≠ next send sequence (%d ≠ %d)", packet.Sequence, nextSequenceSend,
		)
	}

	commitment := types.CommitPacket(packet)

	k.SetNextSequenceSend(packet.SourcePort, packet.SourceChannel, nextSequenceSend+1)
	k.SetPacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence, commitment)

	attrs := types.PacketAttributes(packet)
	attrs[types.AttributeKeyChannelOrdering] = channel.Ordering.String()
	attrs[types.AttributeKeyConnection] = connectionID
	k.host.EventManager().EmitEvent(types.EventTypeSendPacket, attrs)

	return nil
}

// RecvPacket is called by a module in order to receive and process an IBC
// packet sent on the corresponding channel end on the counterparty chain.
//
// Receiving an already-received packet returns ErrNoOpMsg so redundant relays
// abort without state mutation.
func (k Keeper) RecvPacket(
	packet types.Packet,
	proof []byte,
	proofHeight clienttypes.Height,
) error {
	channel, found := k.GetChannel(packet.DestinationPort, packet.DestinationChannel)
	if !found {
		return sdkerrors.Wrap(types.ErrChannelNotFound, packet.DestinationChannel)
	}

	if channel.State != types.OPEN {
		return sdkerrors.Wrapf(
			types.ErrInvalidChannelState,
			"channel is not OPEN (got %s)", channel.State,
		)
	}

	// packet must come from the channel's counterparty
	if packet.SourcePort != channel.Counterparty.PortID ||
		packet.SourceChannel != channel.Counterparty.ChannelID {
		return sdkerrors.Wrapf(
			types.ErrInvalidPacket,
			"packet source (%s, %s) does not match the counterparty channel end (%s, %s)",
			packet.SourcePort, packet.SourceChannel,
			channel.Counterparty.PortID, channel.Counterparty.ChannelID,
		)
	}

	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return err
	}

	if connection.State != connectiontypes.OPEN {
		return sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	// check that the packet has not timed out on the receiving chain
	selfHeight := clienttypes.GetSelfHeight(k.host.ChainID(), k.host.BlockHeight())
	if packet.TimeoutElapsed(selfHeight, uint64(k.host.BlockTime())) {
		return sdkerrors.Wrapf(
			types.ErrPacketTimeout,
			"packet timed out before it was received (height %s, timeout height %s, timeout timestamp %d)",
			selfHeight, packet.TimeoutHeight, packet.TimeoutTimestamp,
		)
	}

	commitment := types.CommitPacket(packet)

	// verify that the counterparty did commit to sending this packet
	if err := k.connectionKeeper.VerifyPacketCommitment(
		connection, proofHeight, proof,
		packet.SourcePort, packet.SourceChannel, packet.Sequence, commitment,
	); err != nil {
		return sdkerrors.Wrap(err, "couldn't verify counterparty packet commitment")
	}

	switch channel.Ordering {
	case types.UNORDERED:
		// check if the packet is already received: receipts are written
		// per-sequence on unordered channels
		if _, found := k.GetPacketReceipt(packet.DestinationPort, packet.DestinationChannel, packet.Sequence); found {
			return sdkerrors.Wrapf(types.ErrNoOpMsg,
				"packet sequence %d was already received", packet.Sequence)
		}
		k.SetPacketReceipt(packet.DestinationPort, packet.DestinationChannel, packet.Sequence)

	case types.ORDERED:
		nextSequenceRecv, found := k.GetNextSequenceRecv(packet.DestinationPort, packet.DestinationChannel)
		if !found {
			return sdkerrors.Wrapf(
				types.ErrSequenceReceiveNotFound,
				"destination port: %s, destination channel: %s", packet.DestinationPort, packet.DestinationChannel,
			)
		}

		if packet.Sequence < nextSequenceRecv {
			return sdkerrors.Wrapf(types.ErrNoOpMsg,
				"packet sequence %d was already received, next receive sequence is %d", packet.Sequence, nextSequenceRecv)
		}
		if packet.Sequence > nextSequenceRecv {
			return sdkerrors.Wrapf(
				types.ErrPacketSequenceOutOfOrder,
				"packet sequence ≠ next receive sequence (%d ≠ %d)", packet.Sequence, nextSequenceRecv,
			)
		}

		k.SetNextSequenceRecv(packet.DestinationPort, packet.DestinationChannel, nextSequenceRecv+1)
	}

	attrs := types.PacketAttributes(packet)
	attrs[types.AttributeKeyChannelOrdering] = channel.Ordering.String()
	attrs[types.AttributeKeyConnection] = connectionID
	k.host.EventManager().EmitEvent(types.EventTypeRecvPacket, attrs)

	return nil
}

// WriteAcknowledgement writes the packet execution acknowledgement to the
// state, which will be verified by the counterparty chain using AcknowledgePacket.
//
// CONTRACT:
//
// 1) For synchronous execution, this function is called in the same
// transaction as RecvPacket.
//
// 2) Assumes that the packet receipt has been written (unordered), or the next
// sequence receive has been incremented (ordered), previously by RecvPacket.
func (k Keeper) WriteAcknowledgement(packet types.Packet, acknowledgement []byte) error {
	channel, found := k.GetChannel(packet.DestinationPort, packet.DestinationChannel)
	if !found {
		return sdkerrors.Wrap(types.ErrChannelNotFound, packet.DestinationChannel)
	}

	if channel.State != types.OPEN {
		return sdkerrors.Wrapf(
			types.ErrInvalidChannelState,
			"channel is not OPEN (got %s)", channel.State,
		)
	}

	if len(acknowledgement) == 0 {
		return sdkerrors.Wrap(types.ErrInvalidAcknowledgement, "acknowledgement cannot be empty")
	}

	// an acknowledgement must not be overwritten
	if k.HasPacketAcknowledgement(packet.DestinationPort, packet.DestinationChannel, packet.Sequence) {
		return types.ErrAcknowledgementExists
	}

	// set the acknowledgement so that it can be verified on the other side
	k.SetPacketAcknowledgement(
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
		types.CommitAcknowledgement(acknowledgement),
	)

	attrs := types.PacketAttributes(packet)
	attrs[types.AttributeKeyAckHex] = hex.EncodeToString(acknowledgement)
	attrs[types.AttributeKeyChannelOrdering] = channel.Ordering.String()
	k.host.EventManager().EmitEvent(types.EventTypeWriteAck, attrs)

	return nil
}

// AcknowledgePacket is called by a module to process the acknowledgement of a
// packet previously sent by the calling module on a channel to a counterparty
// module on the counterparty chain. Its intended usage is within the ante
// handler. AcknowledgePacket will clean up the packet commitment, which is no
// longer necessary since the packet has been received and acted upon.
//
// Acknowledging a packet whose commitment has already been cleared returns
// ErrNoOpMsg so redundant relays abort without state mutation.
func (k Keeper) AcknowledgePacket(
	packet types.Packet,
	acknowledgement []byte,
	proof []byte,
	proofHeight clienttypes.Height,
) error {
	channel, found := k.GetChannel(packet.SourcePort, packet.SourceChannel)
	if !found {
		return sdkerrors.Wrapf(types.ErrChannelNotFound, "port ID (%s) channel ID (%s)", packet.SourcePort, packet.SourceChannel)
	}

	if channel.State != types.OPEN {
		return sdkerrors.Wrapf(
			types.ErrInvalidChannelState,
			"channel is not OPEN (got %s)", channel.State,
		)
	}

	// packet must have been sent to the channel's counterparty
	if packet.DestinationPort != channel.Counterparty.PortID ||
		packet.DestinationChannel != channel.Counterparty.ChannelID {
		return sdkerrors.Wrapf(
			types.ErrInvalidPacket,
			"packet destination (%s, %s) does not match the counterparty channel end (%s, %s)",
			packet.DestinationPort, packet.DestinationChannel,
			channel.Counterparty.PortID, channel.Counterparty.ChannelID,
		)
	}

	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return err
	}

	if connection.State != connectiontypes.OPEN {
		return sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	commitment := k.GetPacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence)
	if len(commitment) == 0 {
		// the commitment was deleted by a previous acknowledgement or timeout
		return sdkerrors.Wrapf(types.ErrNoOpMsg,
			"packet commitment for sequence %d does not exist", packet.Sequence)
	}

	packetCommitment := types.CommitPacket(packet)

	// verify we sent the packet and haven't cleared it out yet
	if !bytes.Equal(commitment, packetCommitment) {
		return sdkerrors.Wrapf(types.ErrPacketCommitmentMismatch,
			"commitment bytes are not equal: got (%X), expected (%X)", packetCommitment, commitment)
	}

	if err := k.connectionKeeper.VerifyPacketAcknowledgement(
		connection, proofHeight, proof,
		packet.DestinationPort, packet.DestinationChannel, packet.Sequence, acknowledgement,
	); err != nil {
		return err
	}

	if channel.Ordering == types.ORDERED {
		nextSequenceAck, found := k.GetNextSequenceAck(packet.SourcePort, packet.SourceChannel)
		if !found {
			return sdkerrors.Wrapf(
				types.ErrSequenceAckNotFound,
				"source port: %s, source channel: %s", packet.SourcePort, packet.SourceChannel,
			)
		}

		if packet.Sequence != nextSequenceAck {
			return sdkerrors.Wrapf(
				types.ErrPacketSequenceOutOfOrder,
				"packet sequence ≠ next ack sequence (%d ≠ %d)", packet.Sequence, nextSequenceAck,
			)
		}

		k.SetNextSequenceAck(packet.SourcePort, packet.SourceChannel, nextSequenceAck+1)
	}

	k.deletePacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence)

	attrs := types.PacketAttributes(packet)
	attrs[types.AttributeKeyChannelOrdering] = channel.Ordering.String()
	attrs[types.AttributeKeyConnection] = connectionID
	k.host.EventManager().EmitEvent(types.EventTypeAcknowledgePacket, attrs)

	return nil
}
