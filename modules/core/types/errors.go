package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// SubModuleName is the name of the core IBC module.
const SubModuleName = "ibc"

// IBC core sentinel errors
var (
	ErrUnknownMsgType   = sdkerrors.Register(SubModuleName, 2, "unknown message type")
	ErrInvalidSequence  = sdkerrors.Register(SubModuleName, 3, "invalid transaction sequence")
	ErrInvalidSignature = sdkerrors.Register(SubModuleName, 4, "invalid transaction signature")
	ErrEmptyTx          = sdkerrors.Register(SubModuleName, 5, "transaction contains no messages")
	ErrUnknownAccount   = sdkerrors.Register(SubModuleName, 6, "unknown account")
)
