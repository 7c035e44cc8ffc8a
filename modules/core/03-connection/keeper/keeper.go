package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	tmjson "github.com/tendermint/tendermint/libs/json"

	clientkeeper "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/keeper"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
)

// Keeper defines the IBC connection keeper.
type Keeper struct {
	store        coretypes.KVStore
	host         coretypes.BlockInfo
	clientKeeper clientkeeper.Keeper
}

// NewKeeper creates a new IBC connection Keeper instance.
func NewKeeper(store coretypes.KVStore, hostInfo coretypes.BlockInfo, ck clientkeeper.Keeper) Keeper {
	return Keeper{
		store:        store,
		host:         hostInfo,
		clientKeeper: ck,
	}
}

// GetCommitmentPrefix returns the IBC connection store prefix as a commitment.
func (k Keeper) GetCommitmentPrefix() commitmenttypes.MerklePrefix {
	return commitmenttypes.NewMerklePrefix([]byte(host.StoreKey))
}

// GetConnection returns a connection with a particular identifier.
func (k Keeper) GetConnection(connectionID string) (connectiontypes.ConnectionEnd, bool) {
	bz := k.store.Get(host.ConnectionKey(connectionID))
	if bz == nil {
		return connectiontypes.ConnectionEnd{}, false
	}
	var connection connectiontypes.ConnectionEnd
	if err := tmjson.Unmarshal(bz, &connection); err != nil {
		panic(err)
	}
	return connection, true
}

// SetConnection sets a connection to the store.
func (k Keeper) SetConnection(connectionID string, connection connectiontypes.ConnectionEnd) {
	bz, err := tmjson.Marshal(connection)
	if err != nil {
		panic(err)
	}
	k.store.Set(host.ConnectionKey(connectionID), bz)
}

// GetNextConnectionSequence gets the next connection sequence from the store.
func (k Keeper) GetNextConnectionSequence() uint64 {
	bz := k.store.Get([]byte(connectiontypes.KeyNextConnectionSequence))
	if bz == nil {
		return 0
	}
	return sdk.BigEndianToUint64(bz)
}

// SetNextConnectionSequence sets the next connection sequence to the store.
func (k Keeper) SetNextConnectionSequence(sequence uint64) {
	k.store.Set([]byte(connectiontypes.KeyNextConnectionSequence), sdk.Uint64ToBigEndian(sequence))
}

// GenerateConnectionIdentifier returns the next connection identifier.
func (k Keeper) GenerateConnectionIdentifier() string {
	nextConnSeq := k.GetNextConnectionSequence()
	connectionID := connectiontypes.FormatConnectionIdentifier(nextConnSeq)
	k.SetNextConnectionSequence(nextConnSeq + 1)
	return connectionID
}
