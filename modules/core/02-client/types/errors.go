package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// SubModuleName defines the IBC client name.
const SubModuleName string = "client"

// IBC client sentinel errors
var (
	ErrClientExists                    = sdkerrors.Register(SubModuleName, 2, "light client already exists")
	ErrClientNotFound                  = sdkerrors.Register(SubModuleName, 3, "light client not found")
	ErrClientFrozen                    = sdkerrors.Register(SubModuleName, 4, "light client is frozen due to misbehaviour")
	ErrClientNotActive                 = sdkerrors.Register(SubModuleName, 5, "light client is not active")
	ErrConsensusStateNotFound          = sdkerrors.Register(SubModuleName, 6, "consensus state not found")
	ErrInvalidConsensus                = sdkerrors.Register(SubModuleName, 7, "invalid consensus state")
	ErrInvalidClient                   = sdkerrors.Register(SubModuleName, 8, "invalid light client")
	ErrInvalidHeader                   = sdkerrors.Register(SubModuleName, 9, "invalid client header")
	ErrInvalidHeight                   = sdkerrors.Register(SubModuleName, 10, "invalid height")
	ErrInvalidClientType               = sdkerrors.Register(SubModuleName, 11, "invalid client type")
	ErrFailedMembershipVerification    = sdkerrors.Register(SubModuleName, 12, "membership verification failed")
	ErrFailedNonMembershipVerification = sdkerrors.Register(SubModuleName, 13, "non-membership verification failed")
	ErrClientIdentifier                = sdkerrors.Register(SubModuleName, 14, "invalid client identifier")
)
