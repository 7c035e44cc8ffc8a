package keeper

import (
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/exported"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
)

// CreateClient creates a new tendermint light client. The provided client and
// consensus states are trusted on first use: the caller vouches for the
// initial validator set and app hash, every later update is verified against
// them. The generated client identifier is returned.
func (k Keeper) CreateClient(clientState *ibctmtypes.ClientState, consensusState *ibctmtypes.ConsensusState) (string, error) {
	if err := clientState.Validate(); err != nil {
		return "", err
	}
	if err := consensusState.ValidateBasic(); err != nil {
		return "", err
	}

	clientID := k.GenerateClientIdentifier(exported.Tendermint)

	k.SetClientState(clientID, clientState)
	k.SetClientConsensusState(clientID, clientState.GetLatestHeight(), consensusState)

	k.host.EventManager().EmitEvent(
		clienttypes.EventTypeCreateClient,
		map[string]string{
			clienttypes.AttributeKeyClientID:        clientID,
			clienttypes.AttributeKeyClientType:      clientState.ClientType(),
			clienttypes.AttributeKeyConsensusHeight: clientState.GetLatestHeight().String(),
		},
	)

	return clientID, nil
}

// UpdateClient verifies a new header against the stored trusted state and, on
// success, advances the client's latest height and stores the new consensus
// state.
//
// If a different consensus state is already stored at the header's height the
// header is proof of misbehaviour and the client is frozen permanently. A
// header identical to the stored consensus state is a redundant relay and is
// treated as a successful no-op.
func (k Keeper) UpdateClient(clientID string, header *ibctmtypes.Header) error {
	clientState, found := k.GetClientState(clientID)
	if !found {
		return sdkerrors.Wrapf(clienttypes.ErrClientNotFound, "cannot update client %s", clientID)
	}

	if status := k.GetClientStatus(clientID); status != exported.Active {
		return sdkerrors.Wrapf(clienttypes.ErrClientNotActive, "cannot update client %s with status %s", clientID, status)
	}

	trustedConsState, found := k.GetClientConsensusState(clientID, header.TrustedHeight)
	if !found {
		return sdkerrors.Wrapf(clienttypes.ErrConsensusStateNotFound,
			"could not get trusted consensus state from client %s at trusted height %s", clientID, header.TrustedHeight)
	}

	if err := clientState.VerifyHeader(header, trustedConsState, k.blockTime()); err != nil {
		return err
	}

	headerHeight := header.GetHeight()

	// a verified header for a height with an existing consensus state either
	// duplicates it (redundant relay) or conflicts with it (misbehaviour)
	if existingConsState, exists := k.GetClientConsensusState(clientID, headerHeight); exists {
		if existingConsState.Equal(header.ConsensusState()) {
			return nil
		}
		k.freezeClient(clientID, clientState, headerHeight)
		return nil
	}

	// past heights without a stored consensus state cannot be backfilled: the
	// update must advance the latest height
	if headerHeight.LTE(clientState.GetLatestHeight()) {
		return sdkerrors.Wrapf(ibctmtypes.ErrExpiredHeader,
			"header height %s is not greater than latest client height %s", headerHeight, clientState.GetLatestHeight())
	}

	newClientState, newConsState := clientState.UpdateState(header)
	k.SetClientState(clientID, newClientState)
	k.SetClientConsensusState(clientID, headerHeight, newConsState)

	k.host.EventManager().EmitEvent(
		clienttypes.EventTypeUpdateClient,
		map[string]string{
			clienttypes.AttributeKeyClientID:        clientID,
			clienttypes.AttributeKeyClientType:      clientState.ClientType(),
			clienttypes.AttributeKeyConsensusHeight: headerHeight.String(),
		},
	)

	return nil
}

// freezeClient marks the client frozen at the given height. A frozen client
// rejects all future updates and proof verifications; recovery requires
// manual intervention.
func (k Keeper) freezeClient(clientID string, clientState *ibctmtypes.ClientState, height clienttypes.Height) {
	frozenClientState := *clientState
	frozenClientState.FrozenHeight = height
	k.SetClientState(clientID, &frozenClientState)

	k.host.EventManager().EmitEvent(
		clienttypes.EventTypeClientFrozen,
		map[string]string{
			clienttypes.AttributeKeyClientID:        clientID,
			clienttypes.AttributeKeyConsensusHeight: height.String(),
		},
	)
}

// GetTimestampAtHeight returns the timestamp (in unix nanoseconds) of the
// consensus state stored for the client at the given height.
func (k Keeper) GetTimestampAtHeight(clientID string, height clienttypes.Height) (uint64, error) {
	consState, found := k.GetClientConsensusState(clientID, height)
	if !found {
		return 0, sdkerrors.Wrapf(clienttypes.ErrConsensusStateNotFound,
			"client %s has no consensus state at height %s", clientID, height)
	}
	return consState.GetTimestamp(), nil
}

func (k Keeper) blockTime() time.Time {
	return time.Unix(0, k.host.BlockTime())
}
