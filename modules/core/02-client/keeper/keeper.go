package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	"github.com/bpolania/near-cosmos-ibc/modules/core/exported"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
)

// Keeper represents a type that grants read and write permissions to any client
// state information.
type Keeper struct {
	store coretypes.KVStore
	host  coretypes.BlockInfo
}

// NewKeeper creates a new client Keeper instance.
func NewKeeper(store coretypes.KVStore, hostInfo coretypes.BlockInfo) Keeper {
	return Keeper{
		store: store,
		host:  hostInfo,
	}
}

// GetClientState gets a particular client from the store.
func (k Keeper) GetClientState(clientID string) (*ibctmtypes.ClientState, bool) {
	bz := k.store.Get(host.FullClientStateKey(clientID))
	if bz == nil {
		return nil, false
	}
	var clientState ibctmtypes.ClientState
	if err := tmjson.Unmarshal(bz, &clientState); err != nil {
		panic(err)
	}
	return &clientState, true
}

// SetClientState sets a particular Client to the store.
func (k Keeper) SetClientState(clientID string, clientState *ibctmtypes.ClientState) {
	bz, err := tmjson.Marshal(clientState)
	if err != nil {
		panic(err)
	}
	k.store.Set(host.FullClientStateKey(clientID), bz)
}

// GetClientConsensusState gets the stored consensus state from a client at a
// given height.
func (k Keeper) GetClientConsensusState(clientID string, height clienttypes.Height) (*ibctmtypes.ConsensusState, bool) {
	bz := k.store.Get(host.FullConsensusStateKey(clientID, height))
	if bz == nil {
		return nil, false
	}
	var consensusState ibctmtypes.ConsensusState
	if err := tmjson.Unmarshal(bz, &consensusState); err != nil {
		panic(err)
	}
	return &consensusState, true
}

// SetClientConsensusState sets a ConsensusState to a particular client at the
// given height.
func (k Keeper) SetClientConsensusState(clientID string, height clienttypes.Height, consensusState *ibctmtypes.ConsensusState) {
	bz, err := tmjson.Marshal(consensusState)
	if err != nil {
		panic(err)
	}
	k.store.Set(host.FullConsensusStateKey(clientID, height), bz)
}

// GetLatestClientConsensusState gets the latest ConsensusState stored for a
// given client.
func (k Keeper) GetLatestClientConsensusState(clientID string) (*ibctmtypes.ConsensusState, bool) {
	clientState, found := k.GetClientState(clientID)
	if !found {
		return nil, false
	}
	return k.GetClientConsensusState(clientID, clientState.GetLatestHeight())
}

// GetNextClientSequence gets the next client sequence from the store.
func (k Keeper) GetNextClientSequence() uint64 {
	bz := k.store.Get([]byte(clienttypes.KeyNextClientSequence))
	if bz == nil {
		return 0
	}
	return sdk.BigEndianToUint64(bz)
}

// SetNextClientSequence sets the next client sequence to the store.
func (k Keeper) SetNextClientSequence(sequence uint64) {
	k.store.Set([]byte(clienttypes.KeyNextClientSequence), sdk.Uint64ToBigEndian(sequence))
}

// GenerateClientIdentifier returns the next client identifier.
func (k Keeper) GenerateClientIdentifier(clientType string) string {
	nextClientSeq := k.GetNextClientSequence()
	clientID := clienttypes.FormatClientIdentifier(clientType, nextClientSeq)
	k.SetNextClientSequence(nextClientSeq + 1)
	return clientID
}

// GetClientStatus returns the status of the client with the given identifier.
// An Unknown status is returned if the client does not exist.
func (k Keeper) GetClientStatus(clientID string) exported.Status {
	clientState, found := k.GetClientState(clientID)
	if !found {
		return exported.Unknown
	}
	latestConsState, _ := k.GetClientConsensusState(clientID, clientState.GetLatestHeight())
	return clientState.Status(latestConsState, k.blockTime())
}

// VerifyMembership verifies a membership proof of a key/value pair against the
// consensus state of the given client at the given height.
func (k Keeper) VerifyMembership(
	clientID string, height clienttypes.Height,
	proof []byte, path commitmenttypes.MerklePath, value []byte,
) error {
	clientState, consState, err := k.stateForVerification(clientID, height)
	if err != nil {
		return err
	}
	if err := clientState.VerifyMembership(height, consState, proof, path, value); err != nil {
		return sdkerrors.Wrapf(clienttypes.ErrFailedMembershipVerification, "%v", err)
	}
	return nil
}

// VerifyNonMembership verifies an absence proof of a key against the consensus
// state of the given client at the given height.
func (k Keeper) VerifyNonMembership(
	clientID string, height clienttypes.Height,
	proof []byte, path commitmenttypes.MerklePath,
) error {
	clientState, consState, err := k.stateForVerification(clientID, height)
	if err != nil {
		return err
	}
	if err := clientState.VerifyNonMembership(height, consState, proof, path); err != nil {
		return sdkerrors.Wrapf(clienttypes.ErrFailedNonMembershipVerification, "%v", err)
	}
	return nil
}

// stateForVerification returns the client state and the consensus state at the
// proof height, ensuring the client is active.
func (k Keeper) stateForVerification(clientID string, height clienttypes.Height) (*ibctmtypes.ClientState, *ibctmtypes.ConsensusState, error) {
	clientState, found := k.GetClientState(clientID)
	if !found {
		return nil, nil, sdkerrors.Wrap(clienttypes.ErrClientNotFound, clientID)
	}
	if status := k.GetClientStatus(clientID); status != exported.Active {
		return nil, nil, sdkerrors.Wrapf(clienttypes.ErrClientNotActive, "client %s status is %s", clientID, status)
	}
	consState, found := k.GetClientConsensusState(clientID, height)
	if !found {
		return nil, nil, sdkerrors.Wrapf(clienttypes.ErrConsensusStateNotFound, "client %s has no consensus state at height %s", clientID, height)
	}
	return clientState, consState, nil
}
