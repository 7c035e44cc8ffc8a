package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// SubModuleName defines the IBC channel name.
const SubModuleName string = "channel"

// IBC channel sentinel errors
var (
	ErrChannelExists            = sdkerrors.Register(SubModuleName, 2, "channel already exists")
	ErrChannelNotFound          = sdkerrors.Register(SubModuleName, 3, "channel not found")
	ErrInvalidChannel           = sdkerrors.Register(SubModuleName, 4, "invalid channel")
	ErrInvalidChannelState      = sdkerrors.Register(SubModuleName, 5, "invalid channel state")
	ErrInvalidChannelOrdering   = sdkerrors.Register(SubModuleName, 6, "invalid channel ordering")
	ErrInvalidCounterparty      = sdkerrors.Register(SubModuleName, 7, "invalid counterparty channel")
	ErrSequenceSendNotFound     = sdkerrors.Register(SubModuleName, 8, "sequence send not found")
	ErrSequenceReceiveNotFound  = sdkerrors.Register(SubModuleName, 9, "sequence receive not found")
	ErrSequenceAckNotFound      = sdkerrors.Register(SubModuleName, 10, "sequence acknowledgement not found")
	ErrInvalidPacket            = sdkerrors.Register(SubModuleName, 11, "invalid packet")
	ErrPacketTimeout            = sdkerrors.Register(SubModuleName, 12, "packet timeout")
	ErrTooManyConnectionHops    = sdkerrors.Register(SubModuleName, 13, "too many connection hops")
	ErrInvalidAcknowledgement   = sdkerrors.Register(SubModuleName, 14, "invalid acknowledgement")
	ErrAcknowledgementExists    = sdkerrors.Register(SubModuleName, 15, "acknowledgement for packet already exists")
	ErrInvalidChannelIdentifier = sdkerrors.Register(SubModuleName, 16, "invalid channel identifier")
	ErrPacketReceived           = sdkerrors.Register(SubModuleName, 17, "packet already received")
	ErrPacketCommitmentNotFound = sdkerrors.Register(SubModuleName, 18, "packet commitment not found")
	ErrPacketSequenceOutOfOrder = sdkerrors.Register(SubModuleName, 19, "packet sequence is out of order")
	ErrPacketTimeoutNotReached  = sdkerrors.Register(SubModuleName, 20, "packet timeout has not been reached")
	ErrInvalidTimeout           = sdkerrors.Register(SubModuleName, 21, "invalid packet timeout")
	ErrPacketCommitmentMismatch = sdkerrors.Register(SubModuleName, 22, "packet commitment bytes do not match stored commitment")

	// ErrNoOpMsg is returned when a message is a redundant relay, e.g. a
	// RecvPacket for a packet that was already received. Callers treat it as a
	// successful no-op rather than a failure.
	ErrNoOpMsg = sdkerrors.Register(SubModuleName, 23, "message is redundant, no-op")
)
