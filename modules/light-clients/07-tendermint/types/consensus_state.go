package types

import (
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/crypto/tmhash"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
)

// ConsensusState records the state root and validator transition of the remote
// chain at a verified height.
type ConsensusState struct {
	// timestamp that corresponds to the block height in which the ConsensusState
	// was stored.
	Timestamp time.Time `json:"timestamp"`
	// commitment root (i.e app hash)
	Root               commitmenttypes.MerkleRoot `json:"root"`
	NextValidatorsHash tmbytes.HexBytes           `json:"next_validators_hash"`
}

// NewConsensusState creates a new ConsensusState instance.
func NewConsensusState(
	timestamp time.Time, root commitmenttypes.MerkleRoot, nextValsHash tmbytes.HexBytes,
) *ConsensusState {
	return &ConsensusState{
		Timestamp:          timestamp,
		Root:               root,
		NextValidatorsHash: nextValsHash,
	}
}

// GetRoot returns the commitment root of the consensus state, which is used
// for state verification.
func (cs ConsensusState) GetRoot() commitmenttypes.MerkleRoot {
	return cs.Root
}

// GetTimestamp returns block time in nanoseconds of the header that created
// the consensus state.
func (cs ConsensusState) GetTimestamp() uint64 {
	return uint64(cs.Timestamp.UnixNano())
}

// ValidateBasic defines a basic validation for the tendermint consensus state.
// NOTE: ProcessedTimestamp may be zero if this is an initial consensus state
// passed in by relayer as opposed to a self generated consensus state.
func (cs ConsensusState) ValidateBasic() error {
	if cs.Root.Empty() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidConsensus, "root cannot be empty")
	}
	if len(cs.NextValidatorsHash) > 0 && len(cs.NextValidatorsHash) != tmhash.Size {
		return sdkerrors.Wrapf(clienttypes.ErrInvalidConsensus, "next validators hash is invalid: %X", cs.NextValidatorsHash)
	}
	if cs.Timestamp.Unix() <= 0 {
		return sdkerrors.Wrap(clienttypes.ErrInvalidConsensus, "timestamp must be a positive Unix time")
	}
	return nil
}

// Equal reports whether two consensus states record the same chain state. It
// is used to detect conflicting headers for the same height.
func (cs ConsensusState) Equal(other *ConsensusState) bool {
	if other == nil {
		return false
	}
	return cs.Timestamp.Equal(other.Timestamp) &&
		string(cs.Root.Hash) == string(other.Root.Hash) &&
		cs.NextValidatorsHash.String() == other.NextValidatorsHash.String()
}
