package keeper

import (
	"bytes"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

// TimeoutPacket is called by a module which originally attempted to send a
// packet to a counterparty module, where the timeout height has passed on the
// counterparty chain without the packet being committed, to prove that the
// packet can no longer be executed and to allow the calling module to safely
// perform appropriate state transitions.
//
// On ordered channels a timeout closes the channel: the counterparty can never
// receive the timed-out sequence, so no later sequence can be received either.
func (k Keeper) TimeoutPacket(
	packet types.Packet,
	proof []byte,
	proofHeight clienttypes.Height,
	nextSequenceRecv uint64,
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

	// check that timeout height or timeout timestamp has passed on the other
	// end, as of the consensus state at the proof height
	proofTimestamp, err := k.connectionKeeper.GetTimestampAtHeight(connection, proofHeight)
	if err != nil {
		return err
	}

	if !packet.TimeoutElapsed(proofHeight, proofTimestamp) {
		return sdkerrors.Wrapf(
			types.ErrPacketTimeoutNotReached,
			"packet timeout height %s and timeout timestamp %d have not been reached at proof height %s (timestamp %d)",
			packet.TimeoutHeight, packet.TimeoutTimestamp, proofHeight, proofTimestamp,
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

	switch channel.Ordering {
	case types.ORDERED:
		// the counterparty has received all packets up to nextSequenceRecv; the
		// timed-out packet must not be among them
		if nextSequenceRecv > packet.Sequence {
			return sdkerrors.Wrapf(
				types.ErrPacketReceived,
				"packet already received, next sequence receive > packet sequence (%d > %d)", nextSequenceRecv, packet.Sequence,
			)
		}

		// check that the recv sequence is as claimed
		if err := k.connectionKeeper.VerifyNextSequenceRecv(
			connection, proofHeight, proof,
			packet.DestinationPort, packet.DestinationChannel, nextSequenceRecv,
		); err != nil {
			return err
		}

	case types.UNORDERED:
		if err := k.connectionKeeper.VerifyPacketReceiptAbsence(
			connection, proofHeight, proof,
			packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
		); err != nil {
			return err
		}
	}

	k.deletePacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence)

	if channel.Ordering == types.ORDERED {
		channel.State = types.CLOSED
		k.SetChannel(packet.SourcePort, packet.SourceChannel, channel)

		k.host.EventManager().EmitEvent(
			types.EventTypeChannelClosed,
			map[string]string{
				types.AttributeKeyPortID:             packet.SourcePort,
				types.AttributeKeyChannelID:          packet.SourceChannel,
				types.AttributeKeyConnectionID:       connectionID,
				types.AttributeCounterpartyPortID:    channel.Counterparty.PortID,
				types.AttributeCounterpartyChannelID: channel.Counterparty.ChannelID,
			},
		)
	}

	attrs := types.PacketAttributes(packet)
	attrs[types.AttributeKeyChannelOrdering] = channel.Ordering.String()
	attrs[types.AttributeKeyConnection] = connectionID
	k.host.EventManager().EmitEvent(types.EventTypeTimeoutPacket, attrs)

	return nil
}
