package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// SubModuleName defines the tendermint light client module name.
const SubModuleName string = "tendermint-light-client"

// IBC tendermint client sentinel errors
var (
	ErrInvalidChainID          = sdkerrors.Register(SubModuleName, 2, "invalid chain-id")
	ErrInvalidTrustingPeriod   = sdkerrors.Register(SubModuleName, 3, "invalid trusting period")
	ErrInvalidUnbondingPeriod  = sdkerrors.Register(SubModuleName, 4, "invalid unbonding period")
	ErrInvalidHeaderHeight     = sdkerrors.Register(SubModuleName, 5, "invalid header height")
	ErrInvalidHeader           = sdkerrors.Register(SubModuleName, 6, "invalid header")
	ErrInvalidMaxClockDrift    = sdkerrors.Register(SubModuleName, 7, "invalid max clock drift")
	ErrInvalidTrustLevel       = sdkerrors.Register(SubModuleName, 8, "invalid trust level")
	ErrInvalidValidatorSet     = sdkerrors.Register(SubModuleName, 9, "invalid validator set")
	ErrInvalidProofSpecs       = sdkerrors.Register(SubModuleName, 10, "invalid proof specs")
	ErrExpiredHeader           = sdkerrors.Register(SubModuleName, 11, "header is outside the trusting window")
	ErrClockDrift              = sdkerrors.Register(SubModuleName, 12, "header time exceeds max clock drift")
	ErrInvalidSignature        = sdkerrors.Register(SubModuleName, 13, "invalid commit signature")
	ErrInsufficientVotingPower = sdkerrors.Register(SubModuleName, 14, "insufficient signed voting power")
)
