package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// SubModuleName defines the IBC connection name.
const SubModuleName string = "connection"

// IBC connection sentinel errors
var (
	ErrConnectionExists         = sdkerrors.Register(SubModuleName, 2, "connection already exists")
	ErrConnectionNotFound       = sdkerrors.Register(SubModuleName, 3, "connection not found")
	ErrInvalidConnectionState   = sdkerrors.Register(SubModuleName, 4, "invalid connection state")
	ErrInvalidCounterparty      = sdkerrors.Register(SubModuleName, 5, "invalid counterparty connection")
	ErrInvalidConnection        = sdkerrors.Register(SubModuleName, 6, "invalid connection")
	ErrInvalidVersion           = sdkerrors.Register(SubModuleName, 7, "invalid connection version")
	ErrVersionNegotiationFailed = sdkerrors.Register(SubModuleName, 8, "connection version negotiation failed")
)
