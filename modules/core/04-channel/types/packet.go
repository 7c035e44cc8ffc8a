package types

import (
	"crypto/sha256"

	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
)

// Packet defines a type that carries data across different chains through IBC.
type Packet struct {
	// number corresponds to the order of sends and receives, where a Packet
	// with an earlier sequence number must be sent and received before a Packet
	// with a later sequence number.
	Sequence uint64 `json:"sequence"`
	// identifies the port on the sending chain.
	SourcePort string `json:"source_port"`
	// identifies the channel end on the sending chain.
	SourceChannel string `json:"source_channel"`
	// identifies the port on the receiving chain.
	DestinationPort string `json:"destination_port"`
	// identifies the channel end on the receiving chain.
	DestinationChannel string `json:"destination_channel"`
	// actual opaque bytes transferred directly to the application module.
	Data []byte `json:"data"`
	// block height after which the packet times out.
	TimeoutHeight clienttypes.Height `json:"timeout_height"`
	// block timestamp (in nanoseconds) after which the packet times out.
	TimeoutTimestamp uint64 `json:"timeout_timestamp"`
}

// NewPacket creates a new Packet instance. It panics if the provided
// packet data interface is not registered.
func NewPacket(
	data []byte, sequence uint64,
	sourcePort, sourceChannel, destinationPort, destinationChannel string,
	timeoutHeight clienttypes.Height, timeoutTimestamp uint64,
) Packet {
	return Packet{
		Data:               data,
		Sequence:           sequence,
		SourcePort:         sourcePort,
		SourceChannel:      sourceChannel,
		DestinationPort:    destinationPort,
		DestinationChannel: destinationChannel,
		TimeoutHeight:      timeoutHeight,
		TimeoutTimestamp:   timeoutTimestamp,
	}
}

// ValidateBasic implements PacketI interface.
func (p Packet) ValidateBasic() error {
	if err := host.PortIdentifierValidator(p.SourcePort); err != nil {
		return sdkerrors.Wrap(err, "invalid source port ID")
	}
	if err := host.ChannelIdentifierValidator(p.SourceChannel); err != nil {
		return sdkerrors.Wrap(err, "invalid source channel ID")
	}
	if err := host.PortIdentifierValidator(p.DestinationPort); err != nil {
		return sdkerrors.Wrap(err, "invalid destination port ID")
	}
	if err := host.ChannelIdentifierValidator(p.DestinationChannel); err != nil {
		return sdkerrors.Wrap(err, "invalid destination channel ID")
	}
	if p.Sequence == 0 {
		return sdkerrors.Wrap(ErrInvalidPacket, "packet sequence cannot be 0")
	}
	if p.TimeoutHeight.IsZero() && p.TimeoutTimestamp == 0 {
		return sdkerrors.Wrap(ErrInvalidPacket, "packet timeout height and packet timeout timestamp cannot both be 0")
	}
	if len(p.Data) == 0 {
		return sdkerrors.Wrap(ErrInvalidPacket, "packet data bytes cannot be empty")
	}
	return nil
}

// TimeoutElapsed returns true if the packet has timed out relative to the
// given proof height and timestamp of the destination chain. A zero timeout
// height or timestamp is treated as disabled.
func (p Packet) TimeoutElapsed(height clienttypes.Height, timestamp uint64) bool {
	heightElapsed := !p.TimeoutHeight.IsZero() && height.GTE(p.TimeoutHeight)
	timeElapsed := p.TimeoutTimestamp != 0 && timestamp >= p.TimeoutTimestamp
	return heightElapsed || timeElapsed
}

// CommitPacket returns the packet commitment bytes. The commitment consists of:
// sha256_hash(timeout_timestamp + timeout_height.RevisionNumber + timeout_height.RevisionHeight + sha256_hash(data))
// from a given packet. This results in a fixed length preimage.
func CommitPacket(packet Packet) []byte {
	timeoutHeight := packet.TimeoutHeight

	buf := sdk.Uint64ToBigEndian(packet.TimeoutTimestamp)

	revisionNumber := sdk.Uint64ToBigEndian(timeoutHeight.RevisionNumber)
	buf = append(buf, revisionNumber...)

	revisionHeight := sdk.Uint64ToBigEndian(timeoutHeight.RevisionHeight)
	buf = append(buf, revisionHeight...)

	dataHash := sha256.Sum256(packet.Data)
	buf = append(buf, dataHash[:]...)

	hash := sha256.Sum256(buf)
	return hash[:]
}

// CommitAcknowledgement returns the hash of the acknowledgement bytes.
func CommitAcknowledgement(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}
