package types

import (
	"encoding/hex"
	"fmt"
	"strconv"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
)

// IBC channel events
const (
	EventTypeChannelOpenInit     = "channel_open_init"
	EventTypeChannelOpenTry      = "channel_open_try"
	EventTypeChannelOpenAck      = "channel_open_ack"
	EventTypeChannelOpenConfirm  = "channel_open_confirm"
	EventTypeChannelCloseInit    = "channel_close_init"
	EventTypeChannelCloseConfirm = "channel_close_confirm"
	EventTypeChannelClosed       = "channel_close"

	EventTypeSendPacket        = "send_packet"
	EventTypeRecvPacket        = "recv_packet"
	EventTypeWriteAck          = "write_acknowledgement"
	EventTypeAcknowledgePacket = "acknowledge_packet"
	EventTypeTimeoutPacket     = "timeout_packet"

	AttributeKeyPortID             = "port_id"
	AttributeKeyChannelID          = "channel_id"
	AttributeKeyConnectionID       = "connection_id"
	AttributeCounterpartyPortID    = "counterparty_port_id"
	AttributeCounterpartyChannelID = "counterparty_channel_id"

	AttributeKeyDataHex          = "packet_data_hex"
	AttributeKeyAckHex           = "packet_ack_hex"
	AttributeKeyTimeoutHeight    = "packet_timeout_height"
	AttributeKeyTimeoutTimestamp = "packet_timeout_timestamp"
	AttributeKeySequence         = "packet_sequence"
	AttributeKeySrcPort          = "packet_src_port"
	AttributeKeySrcChannel       = "packet_src_channel"
	AttributeKeyDstPort          = "packet_dst_port"
	AttributeKeyDstChannel       = "packet_dst_channel"
	AttributeKeyChannelOrdering  = "packet_channel_ordering"
	AttributeKeyConnection       = "packet_connection"
)

// PacketAttributes returns the event attributes describing a packet. The data
// bytes are hex encoded so the packet can be fully reconstructed from the
// emitted event.
func PacketAttributes(packet Packet) map[string]string {
	return map[string]string{
		AttributeKeySequence:         fmt.Sprintf("%d", packet.Sequence),
		AttributeKeySrcPort:          packet.SourcePort,
		AttributeKeySrcChannel:       packet.SourceChannel,
		AttributeKeyDstPort:          packet.DestinationPort,
		AttributeKeyDstChannel:       packet.DestinationChannel,
		AttributeKeyDataHex:          hex.EncodeToString(packet.Data),
		AttributeKeyTimeoutHeight:    packet.TimeoutHeight.String(),
		AttributeKeyTimeoutTimestamp: fmt.Sprintf("%d", packet.TimeoutTimestamp),
	}
}

// PacketFromAttributes reconstructs a packet from the attributes of a
// send_packet, recv_packet or write_acknowledgement event.
func PacketFromAttributes(attrs map[string]string) (Packet, error) {
	sequence, err := strconv.ParseUint(attrs[AttributeKeySequence], 10, 64)
	if err != nil {
		return Packet{}, sdkerrors.Wrapf(ErrInvalidPacket, "parsing packet sequence: %v", err)
	}

	timeoutTimestamp, err := strconv.ParseUint(attrs[AttributeKeyTimeoutTimestamp], 10, 64)
	if err != nil {
		return Packet{}, sdkerrors.Wrapf(ErrInvalidPacket, "parsing packet timeout timestamp: %v", err)
	}

	timeoutHeight, err := clienttypes.ParseHeight(attrs[AttributeKeyTimeoutHeight])
	if err != nil {
		return Packet{}, sdkerrors.Wrapf(ErrInvalidPacket, "parsing packet timeout height: %v", err)
	}

	data, err := hex.DecodeString(attrs[AttributeKeyDataHex])
	if err != nil {
		return Packet{}, sdkerrors.Wrapf(ErrInvalidPacket, "decoding packet data: %v", err)
	}

	packet := Packet{
		Sequence:           sequence,
		SourcePort:         attrs[AttributeKeySrcPort],
		SourceChannel:      attrs[AttributeKeySrcChannel],
		DestinationPort:    attrs[AttributeKeyDstPort],
		DestinationChannel: attrs[AttributeKeyDstChannel],
		Data:               data,
		TimeoutHeight:      timeoutHeight,
		TimeoutTimestamp:   timeoutTimestamp,
	}
	if err := packet.ValidateBasic(); err != nil {
		return Packet{}, err
	}
	return packet, nil
}

// AckFromAttributes returns the acknowledgement bytes from the attributes of
// a write_acknowledgement event.
func AckFromAttributes(attrs map[string]string) ([]byte, error) {
	ackHex, ok := attrs[AttributeKeyAckHex]
	if !ok {
		return nil, sdkerrors.Wrap(ErrInvalidAcknowledgement, "event is missing the acknowledgement attribute")
	}
	ack, err := hex.DecodeString(ackHex)
	if err != nil {
		return nil, sdkerrors.Wrapf(ErrInvalidAcknowledgement, "decoding acknowledgement: %v", err)
	}
	return ack, nil
}
