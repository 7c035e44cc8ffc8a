package keeper_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctesting "github.com/bpolania/near-cosmos-ibc/testing"
)

func TestConnOpenInit(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)

	require.NoError(t, path.EndpointA.ConnOpenInit())
	require.Equal(t, connectiontypes.FormatConnectionIdentifier(0), path.EndpointA.ConnectionID)

	connection, found := path.EndpointA.Chain.Keeper().ConnectionKeeper.GetConnection(path.EndpointA.ConnectionID)
	require.True(t, found)
	require.Equal(t, connectiontypes.INIT, connection.State)
	require.Equal(t, path.EndpointA.ClientID, connection.ClientID)
	require.Equal(t, path.EndpointB.ClientID, connection.Counterparty.ClientID)
	require.Empty(t, connection.Counterparty.ConnectionID)
}

func TestConnOpenInitClientNotFound(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)

	msg := coretypes.NewMsgConnectionOpenInit(
		"07-tendermint-99", path.EndpointB.ClientID,
		[]byte(host.StoreKey), nil, ibctesting.DefaultDelayPeriod,
	)
	_, err := path.EndpointA.Chain.SendMsgs(msg)
	require.ErrorIs(t, err, clienttypes.ErrClientNotFound)
}

func TestConnOpenTry(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)

	require.NoError(t, path.EndpointA.ConnOpenInit())
	require.NoError(t, path.EndpointB.ConnOpenTry())

	connection, found := path.EndpointB.Chain.Keeper().ConnectionKeeper.GetConnection(path.EndpointB.ConnectionID)
	require.True(t, found)
	require.Equal(t, connectiontypes.TRYOPEN, connection.State)
	require.Equal(t, path.EndpointA.ConnectionID, connection.Counterparty.ConnectionID)
}

func TestConnOpenTryProofOfWrongKey(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)

	require.NoError(t, path.EndpointA.ConnOpenInit())
	require.NoError(t, path.EndpointB.UpdateClient())

	// a valid proof for the wrong store key does not verify the connection end
	proofHeight := path.EndpointA.Chain.LatestHeight()
	wrongProof := path.EndpointA.Chain.QueryProof(
		proofHeight.RevisionHeight, host.FullClientStateKey(path.EndpointA.ClientID),
	)

	msg := &coretypes.MsgConnectionOpenTry{
		ClientID: path.EndpointB.ClientID,
		Counterparty: connectiontypes.NewCounterparty(
			path.EndpointA.ClientID, path.EndpointA.ConnectionID,
			commitmenttypes.NewMerklePrefix([]byte(host.StoreKey)),
		),
		DelayPeriod:          ibctesting.DefaultDelayPeriod,
		CounterpartyVersions: connectiontypes.GetCompatibleVersions(),
		ProofHeight:          proofHeight,
		ProofInit:            wrongProof,
	}
	_, err := path.EndpointB.Chain.SendMsgs(msg)
	require.Error(t, err)

	_, found := path.EndpointB.Chain.Keeper().ConnectionKeeper.GetConnection(connectiontypes.FormatConnectionIdentifier(0))
	require.False(t, found)
}

func TestConnOpenTryStaleProofHeight(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)

	require.NoError(t, path.EndpointA.ConnOpenInit())

	// the client on B has not been updated past the INIT transaction, so a
	// proof at A's latest height cannot be verified
	proofHeight := path.EndpointA.Chain.LatestHeight()
	proofInit := path.EndpointA.Chain.QueryProof(
		proofHeight.RevisionHeight, host.ConnectionKey(path.EndpointA.ConnectionID),
	)

	msg := &coretypes.MsgConnectionOpenTry{
		ClientID: path.EndpointB.ClientID,
		Counterparty: connectiontypes.NewCounterparty(
			path.EndpointA.ClientID, path.EndpointA.ConnectionID,
			commitmenttypes.NewMerklePrefix([]byte(host.StoreKey)),
		),
		DelayPeriod:          ibctesting.DefaultDelayPeriod,
		CounterpartyVersions: connectiontypes.GetCompatibleVersions(),
		ProofHeight:          proofHeight,
		ProofInit:            proofInit,
	}
	_, err := path.EndpointB.Chain.SendMsgs(msg)
	require.Error(t, err)
}

func TestConnOpenAck(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)

	require.NoError(t, path.EndpointA.ConnOpenInit())
	require.NoError(t, path.EndpointB.ConnOpenTry())
	require.NoError(t, path.EndpointA.ConnOpenAck())

	connection, found := path.EndpointA.Chain.Keeper().ConnectionKeeper.GetConnection(path.EndpointA.ConnectionID)
	require.True(t, found)
	require.Equal(t, connectiontypes.OPEN, connection.State)
	require.Equal(t, path.EndpointB.ConnectionID, connection.Counterparty.ConnectionID)
}

func TestConnOpenConfirm(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupConnections(path)

	for _, ep := range []*ibctesting.Endpoint{path.EndpointA, path.EndpointB} {
		connection, found := ep.Chain.Keeper().ConnectionKeeper.GetConnection(ep.ConnectionID)
		require.True(t, found)
		require.Equal(t, connectiontypes.OPEN, connection.State)
		require.Equal(t, ep.Counterparty.ConnectionID, connection.Counterparty.ConnectionID)
		require.Equal(t, ep.Counterparty.ClientID, connection.Counterparty.ClientID)
	}
}

func TestConnOpenAckNotInit(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupConnections(path)

	// the connection is already OPEN, a second ACK must be rejected
	err := path.EndpointA.ConnOpenAck()
	require.ErrorIs(t, err, connectiontypes.ErrInvalidConnectionState)
}

func TestConnOpenConfirmNotTryOpen(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupConnections(path)

	err := path.EndpointB.ConnOpenConfirm()
	require.ErrorIs(t, err, connectiontypes.ErrInvalidConnectionState)
}

func TestConnOpenConfirmConnectionNotFound(t *testing.T) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)

	require.NoError(t, path.EndpointB.UpdateClient())
	proofHeight := path.EndpointA.Chain.LatestHeight()

	msg := &coretypes.MsgConnectionOpenConfirm{
		ConnectionID: connectiontypes.FormatConnectionIdentifier(7),
		ProofHeight:  proofHeight,
		ProofAck:     path.EndpointA.Chain.QueryProof(proofHeight.RevisionHeight, host.FullClientStateKey(path.EndpointA.ClientID)),
	}
	_, err := path.EndpointB.Chain.SendMsgs(msg)
	require.ErrorIs(t, err, connectiontypes.ErrConnectionNotFound)
}
