package keeper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmtypes "github.com/tendermint/tendermint/types"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
	ibctesting "github.com/bpolania/near-cosmos-ibc/testing"
)

func setupClients(t *testing.T) (*ibctesting.Coordinator, *ibctesting.Path) {
	coord := ibctesting.NewCoordinator(t)
	path := ibctesting.NewPath(coord)
	coord.SetupClients(path)
	return coord, path
}

// updateHeader builds a client update header for the counterparty's latest
// height, trusted at the client's current height.
func updateHeader(t *testing.T, ep *ibctesting.Endpoint) *ibctmtypes.Header {
	t.Helper()

	counterparty := ep.Counterparty.Chain
	clientState, found := ep.Chain.Keeper().ClientKeeper.GetClientState(ep.ClientID)
	require.True(t, found)

	header := counterparty.QueryHeader(counterparty.LatestHeight().RevisionHeight)
	header.TrustedHeight = clientState.LatestHeight
	header.TrustedValidators = counterparty.QueryHeader(clientState.LatestHeight.RevisionHeight + 1).ValidatorSet
	return header
}

func TestCreateClient(t *testing.T) {
	_, path := setupClients(t)

	clientState, found := path.EndpointA.Chain.Keeper().ClientKeeper.GetClientState(path.EndpointA.ClientID)
	require.True(t, found)
	require.Equal(t, path.EndpointB.Chain.ChainID, clientState.ChainID)
	require.False(t, clientState.IsFrozen())

	_, found = path.EndpointA.Chain.Keeper().ClientKeeper.GetClientConsensusState(path.EndpointA.ClientID, clientState.LatestHeight)
	require.True(t, found)
}

func TestUpdateClient(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA

	path.EndpointB.Chain.NextBlock()
	counterpartyHeight := path.EndpointB.Chain.LatestHeight()

	require.NoError(t, endpoint.UpdateClient())

	clientState, found := endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	require.True(t, found)
	require.Equal(t, counterpartyHeight, clientState.LatestHeight)

	consState, found := endpoint.Chain.Keeper().ClientKeeper.GetClientConsensusState(endpoint.ClientID, counterpartyHeight)
	require.True(t, found)

	header := path.EndpointB.Chain.QueryHeader(counterpartyHeight.RevisionHeight)
	require.Equal(t, header.SignedHeader.AppHash.Bytes(), consState.Root.GetHash())
}

func TestUpdateClientRedundantHeader(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA

	path.EndpointB.Chain.NextBlock()
	header := updateHeader(t, endpoint)

	_, err := endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, header))
	require.NoError(t, err)

	clientState, _ := endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	heightAfterUpdate := clientState.LatestHeight

	// a second relay of the same header is a successful no-op
	_, err = endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, header))
	require.NoError(t, err)

	clientState, _ = endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	require.Equal(t, heightAfterUpdate, clientState.LatestHeight)
	require.False(t, clientState.IsFrozen())
}

func TestUpdateClientStaleHeight(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA
	counterparty := path.EndpointB.Chain

	clientState, _ := endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	trustedHeight := clientState.LatestHeight

	counterparty.NextBlock()
	skippedHeight := counterparty.LatestHeight()
	counterparty.NextBlock()

	require.NoError(t, endpoint.UpdateClient())

	// a verified header for a skipped height below the latest cannot be
	// backfilled
	header := counterparty.QueryHeader(skippedHeight.RevisionHeight)
	header.TrustedHeight = trustedHeight
	header.TrustedValidators = counterparty.QueryHeader(trustedHeight.RevisionHeight + 1).ValidatorSet

	_, err := endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, header))
	require.ErrorIs(t, err, ibctmtypes.ErrExpiredHeader)
}

func TestUpdateClientConflictingHeaderFreezes(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA
	counterparty := path.EndpointB.Chain

	clientState, _ := endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	trustedHeight := clientState.LatestHeight

	counterparty.NextBlock()
	require.NoError(t, endpoint.UpdateClient())

	updatedHeight := counterparty.LatestHeight()
	realHeader := counterparty.QueryHeader(updatedHeight.RevisionHeight)

	// a correctly signed header for the updated height carrying a different
	// app hash proves misbehaviour
	conflicting := ibctesting.CreateTMClientHeader(
		counterparty.ChainID, int64(updatedHeight.RevisionHeight), trustedHeight,
		realHeader.GetTime(), []byte("forged_app_hash_forged_app_hash_"),
		counterparty.Chain.ValidatorSet(),
		counterparty.QueryHeader(trustedHeight.RevisionHeight+1).ValidatorSet,
		counterparty.Chain.Signers(),
	)

	_, err := endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, conflicting))
	require.NoError(t, err)

	clientState, _ = endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	require.True(t, clientState.IsFrozen())

	// the frozen client rejects all further updates
	counterparty.NextBlock()
	err = endpoint.UpdateClient()
	require.ErrorIs(t, err, clienttypes.ErrClientNotActive)
}

func TestUpdateClientPartialSignatures(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA
	counterparty := path.EndpointB.Chain

	clientState, _ := endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	trustedHeight := clientState.LatestHeight

	counterparty.NextBlock()
	newHeight := counterparty.LatestHeight()
	realHeader := counterparty.QueryHeader(newHeight.RevisionHeight)

	header := ibctesting.CreateTMClientHeader(
		counterparty.ChainID, int64(newHeight.RevisionHeight), trustedHeight,
		realHeader.GetTime(), realHeader.SignedHeader.AppHash,
		counterparty.Chain.ValidatorSet(),
		counterparty.QueryHeader(trustedHeight.RevisionHeight+1).ValidatorSet,
		counterparty.Chain.Signers(),
	)

	// 3 of 4 equal-power validators is above the 2/3 threshold
	header.SignedHeader.Commit.Signatures[0] = tmtypes.NewCommitSigAbsent()

	_, err := endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, header))
	require.NoError(t, err)

	clientState, _ = endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	require.Equal(t, newHeight, clientState.LatestHeight)
}

func TestUpdateClientInsufficientVotingPower(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA
	counterparty := path.EndpointB.Chain

	clientState, _ := endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	trustedHeight := clientState.LatestHeight

	counterparty.NextBlock()
	newHeight := counterparty.LatestHeight()
	realHeader := counterparty.QueryHeader(newHeight.RevisionHeight)

	header := ibctesting.CreateTMClientHeader(
		counterparty.ChainID, int64(newHeight.RevisionHeight), trustedHeight,
		realHeader.GetTime(), realHeader.SignedHeader.AppHash,
		counterparty.Chain.ValidatorSet(),
		counterparty.QueryHeader(trustedHeight.RevisionHeight+1).ValidatorSet,
		counterparty.Chain.Signers(),
	)

	// 1 of 4 equal-power validators cannot reach the 2/3 threshold
	for i := 1; i < len(header.SignedHeader.Commit.Signatures); i++ {
		header.SignedHeader.Commit.Signatures[i] = tmtypes.NewCommitSigAbsent()
	}

	_, err := endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, header))
	require.ErrorIs(t, err, ibctmtypes.ErrInsufficientVotingPower)
}

func TestUpdateClientInvalidSignature(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA
	counterparty := path.EndpointB.Chain

	counterparty.NextBlock()
	header := updateHeader(t, endpoint)

	// deep-copy the commit before corrupting it so the chain's stored block
	// stays intact
	commit := header.SignedHeader.Commit
	corrupted := *commit
	corrupted.Signatures = make([]tmtypes.CommitSig, len(commit.Signatures))
	copy(corrupted.Signatures, commit.Signatures)
	corrupted.Signatures[0].Signature = append([]byte(nil), commit.Signatures[0].Signature...)
	corrupted.Signatures[0].Signature[0] ^= 0xFF

	signedHeader := *header.SignedHeader
	signedHeader.Commit = &corrupted
	header.SignedHeader = &signedHeader

	_, err := endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, header))
	require.ErrorIs(t, err, ibctmtypes.ErrInvalidSignature)
}

func TestUpdateClientClockDrift(t *testing.T) {
	_, path := setupClients(t)
	endpoint := path.EndpointA
	counterparty := path.EndpointB.Chain

	clientState, _ := endpoint.Chain.Keeper().ClientKeeper.GetClientState(endpoint.ClientID)
	trustedHeight := clientState.LatestHeight

	counterparty.NextBlock()
	newHeight := counterparty.LatestHeight()
	realHeader := counterparty.QueryHeader(newHeight.RevisionHeight)

	header := ibctesting.CreateTMClientHeader(
		counterparty.ChainID, int64(newHeight.RevisionHeight), trustedHeight,
		realHeader.GetTime().Add(time.Hour), realHeader.SignedHeader.AppHash,
		counterparty.Chain.ValidatorSet(),
		counterparty.QueryHeader(trustedHeight.RevisionHeight+1).ValidatorSet,
		counterparty.Chain.Signers(),
	)

	_, err := endpoint.Chain.SendMsgs(coretypes.NewMsgUpdateClient(endpoint.ClientID, header))
	require.ErrorIs(t, err, ibctmtypes.ErrClockDrift)
}

func TestUpdateClientExpired(t *testing.T) {
	coord, path := setupClients(t)
	endpoint := path.EndpointA

	coord.AdvanceTime(ibctesting.TrustingPeriod + time.Hour)

	err := endpoint.UpdateClient()
	require.ErrorIs(t, err, clienttypes.ErrClientNotActive)
}
