package ibctesting

import (
	"github.com/pkg/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
)

// ParseClientIDFromEvents returns the client identifier assigned by a
// create_client event.
func ParseClientIDFromEvents(events []coretypes.Event) (string, error) {
	for _, event := range events {
		if event.Type == clienttypes.EventTypeCreateClient {
			return event.Attributes[clienttypes.AttributeKeyClientID], nil
		}
	}
	return "", errors.New("client identifier event attribute not found")
}

// ParseConnectionIDFromEvents returns the connection identifier assigned by a
// connection handshake event.
func ParseConnectionIDFromEvents(events []coretypes.Event) (string, error) {
	for _, event := range events {
		if event.Type == connectiontypes.EventTypeConnectionOpenInit ||
			event.Type == connectiontypes.EventTypeConnectionOpenTry {
			return event.Attributes[connectiontypes.AttributeKeyConnectionID], nil
		}
	}
	return "", errors.New("connection identifier event attribute not found")
}

// ParseChannelIDFromEvents returns the channel identifier assigned by a
// channel handshake event.
func ParseChannelIDFromEvents(events []coretypes.Event) (string, error) {
	for _, event := range events {
		if event.Type == channeltypes.EventTypeChannelOpenInit ||
			event.Type == channeltypes.EventTypeChannelOpenTry {
			return event.Attributes[channeltypes.AttributeKeyChannelID], nil
		}
	}
	return "", errors.New("channel identifier event attribute not found")
}

// ParsePacketFromEvents returns the first packet found in a send_packet event.
func ParsePacketFromEvents(events []coretypes.Event) (channeltypes.Packet, error) {
	for _, event := range events {
		if event.Type == channeltypes.EventTypeSendPacket {
			return channeltypes.PacketFromAttributes(event.Attributes)
		}
	}
	return channeltypes.Packet{}, errors.New("send_packet event not found")
}

// ParseAckFromEvents returns the acknowledgement found in a
// write_acknowledgement event.
func ParseAckFromEvents(events []coretypes.Event) ([]byte, error) {
	for _, event := range events {
		if event.Type == channeltypes.EventTypeWriteAck {
			return channeltypes.AckFromAttributes(event.Attributes)
		}
	}
	return nil, errors.New("write_acknowledgement event not found")
}
