package keeper

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
)

// ConnOpenInit initialises a connection attempt on chain A. The generated
// connection identifier is returned.
//
// NOTE: Msg validation verifies the supplied identifiers and ensures that the
// counterparty connection identifier is empty.
func (k Keeper) ConnOpenInit(
	clientID string,
	counterparty types.Counterparty, // counterpartyPrefix, counterpartyClientIdentifier
	version *types.Version,
	delayPeriod uint64,
) (string, error) {
	versions := types.GetCompatibleVersions()
	if version != nil {
		if !types.IsSupportedVersion(types.GetCompatibleVersions(), version) {
			return "", sdkerrors.Wrap(types.ErrInvalidVersion, "version is not supported")
		}
		versions = []*types.Version{version}
	}

	if _, found := k.clientKeeper.GetClientState(clientID); !found {
		return "", sdkerrors.Wrapf(clienttypes.ErrClientNotFound, "cannot initialise connection for client %s", clientID)
	}

	// connection defines chain A's ConnectionEnd
	connectionID := k.GenerateConnectionIdentifier()
	connection := types.NewConnectionEnd(types.INIT, clientID, counterparty, versions, delayPeriod)
	k.SetConnection(connectionID, connection)

	k.host.EventManager().EmitEvent(
		types.EventTypeConnectionOpenInit,
		map[string]string{
			types.AttributeKeyConnectionID:             connectionID,
			types.AttributeKeyClientID:                 clientID,
			types.AttributeKeyCounterpartyClientID:     counterparty.ClientID,
			types.AttributeKeyCounterpartyConnectionID: counterparty.ConnectionID,
		},
	)

	return connectionID, nil
}

// ConnOpenTry relays notice of a connection attempt on chain A to chain B (this
// code is executed on chain B).
//
// NOTE: Here chain A acts as the counterparty.
func (k Keeper) ConnOpenTry(
	clientID string, // clientID of chainA's client on chain B
	counterparty types.Counterparty, // counterpartyConnectionIdentifier, counterpartyPrefix and counterpartyClientIdentifier
	delayPeriod uint64,
	counterpartyVersions []*types.Version,
	proofInit []byte, // proof that chainA stored connectionEnd in state (on ConnOpenInit)
	proofHeight clienttypes.Height, // height at which relayer constructs proof of A storing connectionEnd in state
) (string, error) {
	if _, found := k.clientKeeper.GetClientState(clientID); !found {
		return "", sdkerrors.Wrapf(clienttypes.ErrClientNotFound, "cannot open connection try for client %s", clientID)
	}

	// expectedConnection defines chain A's ConnectionEnd
	// NOTE: chain A's counterparty is chain B (i.e where this code is executed),
	// and chain A's connection end is in the INIT state with an empty
	// counterparty connection identifier because the connection identifier on
	// chain B has not yet been generated.
	expectedCounterparty := types.NewCounterparty(clientID, "", k.GetCommitmentPrefix())
	expectedConnection := types.NewConnectionEnd(types.INIT, counterparty.ClientID, expectedCounterparty, counterpartyVersions, delayPeriod)

	supportedVersions := types.GetCompatibleVersions()

	// chain B picks a version from Chain A's available versions that is
	// compatible with chain B's supported IBC versions.
	version, err := types.PickVersion(supportedVersions, counterpartyVersions)
	if err != nil {
		return "", err
	}

	// connection defines chain B's ConnectionEnd
	connection := types.NewConnectionEnd(types.TRYOPEN, clientID, counterparty, []*types.Version{version}, delayPeriod)

	// Check that chain A committed expectedConnection to its state
	if err := k.VerifyConnectionState(connection, proofHeight, proofInit, counterparty.ConnectionID, expectedConnection); err != nil {
		return "", err
	}

	connectionID := k.GenerateConnectionIdentifier()
	k.SetConnection(connectionID, connection)

	k.host.EventManager().EmitEvent(
		types.EventTypeConnectionOpenTry,
		map[string]string{
			types.AttributeKeyConnectionID:             connectionID,
			types.AttributeKeyClientID:                 clientID,
			types.AttributeKeyCounterpartyClientID:     counterparty.ClientID,
			types.AttributeKeyCounterpartyConnectionID: counterparty.ConnectionID,
		},
	)

	return connectionID, nil
}

// ConnOpenAck relays acceptance of a connection attempt from chain B back to
// chain A (this code is executed on chain A).
func (k Keeper) ConnOpenAck(
	connectionID string,
	version *types.Version, // version that Chain B chose in ConnOpenTry
	counterpartyConnectionID string,
	proofTry []byte, // proof that connectionEnd was added to ChainB state in ConnOpenTry
	proofHeight clienttypes.Height, // height that relayer constructed proofTry
) error {
	// Retrieve connection
	connection, found := k.GetConnection(connectionID)
	if !found {
		return sdkerrors.Wrap(types.ErrConnectionNotFound, connectionID)
	}

	// verify the previously set connection state
	if connection.State != types.INIT {
		return sdkerrors.Wrapf(types.ErrInvalidConnectionState,
			"connection state is not INIT (got %s)", connection.State)
	}

	// ensure selected version is supported
	if !types.IsSupportedVersion(connection.Versions, version) {
		return sdkerrors.Wrapf(types.ErrInvalidConnectionState,
			"the counterparty selected version %s is not supported by versions selected on INIT", version)
	}

	// expectedConnection defines chain B's ConnectionEnd
	// NOTE: chain A's counterparty is chain B.
	expectedCounterparty := types.NewCounterparty(connection.ClientID, connectionID, k.GetCommitmentPrefix())
	expectedConnection := types.NewConnectionEnd(types.TRYOPEN, connection.Counterparty.ClientID, expectedCounterparty, []*types.Version{version}, connection.DelayPeriod)

	// Ensure that chain B has stored expected connectionEnd in its state during
	// ConnOpenTry
	if err := k.VerifyConnectionState(connection, proofHeight, proofTry, counterpartyConnectionID, expectedConnection); err != nil {
		return err
	}

	// Update connection state to Open
	connection.State = types.OPEN
	connection.Versions = []*types.Version{version}
	connection.Counterparty.ConnectionID = counterpartyConnectionID
	k.SetConnection(connectionID, connection)

	k.host.EventManager().EmitEvent(
		types.EventTypeConnectionOpenAck,
		map[string]string{
			types.AttributeKeyConnectionID:             connectionID,
			types.AttributeKeyClientID:                 connection.ClientID,
			types.AttributeKeyCounterpartyClientID:     connection.Counterparty.ClientID,
			types.AttributeKeyCounterpartyConnectionID: counterpartyConnectionID,
		},
	)

	return nil
}

// ConnOpenConfirm confirms opening of a connection on chain A to chain B, after
// which the connection is open on both chains (this code is executed on chain
// B).
func (k Keeper) ConnOpenConfirm(
	connectionID string,
	proofAck []byte, // proof that connection opened on chain A during ConnOpenAck
	proofHeight clienttypes.Height, // height that relayer constructed proofAck
) error {
	// Retrieve connection
	connection, found := k.GetConnection(connectionID)
	if !found {
		return sdkerrors.Wrap(types.ErrConnectionNotFound, connectionID)
	}

	// Check that connection state on chain B is on state: TRYOPEN
	if connection.State != types.TRYOPEN {
		return sdkerrors.Wrapf(types.ErrInvalidConnectionState,
			"connection state is not TRYOPEN (got %s)", connection.State)
	}

	// prefix and expectedConnection defines chain A's ConnectionEnd
	expectedCounterparty := types.NewCounterparty(connection.ClientID, connectionID, k.GetCommitmentPrefix())
	expectedConnection := types.NewConnectionEnd(types.OPEN, connection.Counterparty.ClientID, expectedCounterparty, connection.Versions, connection.DelayPeriod)

	// Check that connection on chain A is open
	if err := k.VerifyConnectionState(connection, proofHeight, proofAck, connection.Counterparty.ConnectionID, expectedConnection); err != nil {
		return err
	}

	// Update chain B's connection to Open
	connection.State = types.OPEN
	k.SetConnection(connectionID, connection)

	k.host.EventManager().EmitEvent(
		types.EventTypeConnectionOpenConfirm,
		map[string]string{
			types.AttributeKeyConnectionID:             connectionID,
			types.AttributeKeyClientID:                 connection.ClientID,
			types.AttributeKeyCounterpartyClientID:     connection.Counterparty.ClientID,
			types.AttributeKeyCounterpartyConnectionID: connection.Counterparty.ConnectionID,
		},
	)

	return nil
}
