package types

import (
	"bytes"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	tmtypes "github.com/tendermint/tendermint/types"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
)

// Header defines the Tendermint client consensus Header. It encapsulates all
// the information necessary to update from a trusted Tendermint ConsensusState.
// The inclusion of TrustedHeight and TrustedValidators allows this update to
// process correctly, so long as the ConsensusState for the TrustedHeight
// exists, this removes race conditions among relayers.
//
// The SignedHeader and ValidatorSet are the new untrusted update fields for
// the client. The TrustedHeight is the height of a stored ConsensusState on
// the client that will be used to verify the new untrusted header. The Trusted
// ConsensusState must be within the unbonding period of current time in order
// to correctly verify, and the TrustedValidators must hash to
// TrustedConsensusState.NextValidatorsHash since that is the last trusted
// validator set at the TrustedHeight.
type Header struct {
	SignedHeader      *tmtypes.SignedHeader `json:"signed_header"`
	ValidatorSet      *tmtypes.ValidatorSet `json:"validator_set"`
	TrustedHeight     clienttypes.Height    `json:"trusted_height"`
	TrustedValidators *tmtypes.ValidatorSet `json:"trusted_validators"`
}

// ConsensusState returns the updated consensus state associated with the header.
func (h Header) ConsensusState() *ConsensusState {
	return &ConsensusState{
		Timestamp:          h.GetTime(),
		Root:               commitmenttypes.NewMerkleRoot(h.SignedHeader.Header.AppHash),
		NextValidatorsHash: h.SignedHeader.Header.NextValidatorsHash,
	}
}

// GetHeight returns the current height. It returns 0 if the tendermint header
// is nil.
func (h Header) GetHeight() clienttypes.Height {
	if h.SignedHeader == nil || h.SignedHeader.Header == nil {
		return clienttypes.ZeroHeight()
	}
	revision := clienttypes.ParseChainID(h.SignedHeader.Header.ChainID)
	return clienttypes.NewHeight(revision, uint64(h.SignedHeader.Header.Height))
}

// GetTime returns the current block timestamp. It returns a zero time if the
// tendermint header is nil.
func (h Header) GetTime() time.Time {
	if h.SignedHeader == nil || h.SignedHeader.Header == nil {
		return time.Time{}
	}
	return h.SignedHeader.Header.Time
}

// ValidateBasic calls the SignedHeader ValidateBasic function and checks that
// validator sets are not nil.
//
// NOTE: TrustedHeight and TrustedValidators may be empty when creating client
// with MsgCreateClient.
func (h Header) ValidateBasic() error {
	if h.SignedHeader == nil {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeader, "tendermint signed header cannot be nil")
	}
	if h.SignedHeader.Header == nil {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeader, "tendermint header cannot be nil")
	}
	if h.SignedHeader.Commit == nil {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeader, "tendermint commit cannot be nil")
	}
	if h.ValidatorSet == nil {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeader, "validator set is nil")
	}
	if !bytes.Equal(h.SignedHeader.Header.ValidatorsHash, h.ValidatorSet.Hash()) {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeader, "validator set does not match hash")
	}
	return nil
}
