package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
)

// VerifyConnectionState verifies a proof of the connection state of the
// specified connection end stored on the target machine.
func (k Keeper) VerifyConnectionState(
	connection types.ConnectionEnd,
	height clienttypes.Height,
	proof []byte,
	connectionID string,
	expectedConnection types.ConnectionEnd,
) error {
	path, err := k.counterpartyPath(connection, host.ConnectionPath(connectionID))
	if err != nil {
		return err
	}

	bz, err := tmjson.Marshal(expectedConnection)
	if err != nil {
		return err
	}

	if err := k.clientKeeper.VerifyMembership(connection.ClientID, height, proof, path, bz); err != nil {
		return sdkerrors.Wrapf(err, "failed connection state verification for client (%s)", connection.ClientID)
	}
	return nil
}

// VerifyChannelState verifies a proof of the channel state of the specified
// channel end, under the specified port, stored on the target machine.
func (k Keeper) VerifyChannelState(
	connection types.ConnectionEnd,
	height clienttypes.Height,
	proof []byte,
	portID, channelID string,
	expectedChannel channeltypes.Channel,
) error {
	path, err := k.counterpartyPath(connection, host.ChannelPath(portID, channelID))
	if err != nil {
		return err
	}

	bz, err := tmjson.Marshal(expectedChannel)
	if err != nil {
		return err
	}

	if err := k.clientKeeper.VerifyMembership(connection.ClientID, height, proof, path, bz); err != nil {
		return sdkerrors.Wrapf(err, "failed channel state verification for client (%s)", connection.ClientID)
	}
	return nil
}

// VerifyPacketCommitment verifies a proof of an outgoing packet commitment at
// the specified port, specified channel, and specified sequence.
func (k Keeper) VerifyPacketCommitment(
	connection types.ConnectionEnd,
	height clienttypes.Height,
	proof []byte,
	portID, channelID string,
	sequence uint64,
	commitmentBytes []byte,
) error {
	path, err := k.counterpartyPath(connection, host.PacketCommitmentPath(portID, channelID, sequence))
	if err != nil {
		return err
	}

	if err := k.clientKeeper.VerifyMembership(connection.ClientID, height, proof, path, commitmentBytes); err != nil {
		return sdkerrors.Wrapf(err, "failed packet commitment verification for client (%s)", connection.ClientID)
	}
	return nil
}

// VerifyPacketAcknowledgement verifies a proof of an incoming packet
// acknowledgement at the specified port, specified channel, and specified
// sequence.
func (k Keeper) VerifyPacketAcknowledgement(
	connection types.ConnectionEnd,
	height clienttypes.Height,
	proof []byte,
	portID, channelID string,
	sequence uint64,
	acknowledgement []byte,
) error {
	path, err := k.counterpartyPath(connection, host.PacketAcknowledgementPath(portID, channelID, sequence))
	if err != nil {
		return err
	}

	if err := k.clientKeeper.VerifyMembership(
		connection.ClientID, height, proof, path,
		channeltypes.CommitAcknowledgement(acknowledgement),
	); err != nil {
		return sdkerrors.Wrapf(err, "failed packet acknowledgement verification for client (%s)", connection.ClientID)
	}
	return nil
}

// VerifyPacketReceiptAbsence verifies a proof of the absence of an incoming
// packet receipt at the specified port, specified channel, and specified
// sequence.
func (k Keeper) VerifyPacketReceiptAbsence(
	connection types.ConnectionEnd,
	height clienttypes.Height,
	proof []byte,
	portID, channelID string,
	sequence uint64,
) error {
	path, err := k.counterpartyPath(connection, host.PacketReceiptPath(portID, channelID, sequence))
	if err != nil {
		return err
	}

	if err := k.clientKeeper.VerifyNonMembership(connection.ClientID, height, proof, path); err != nil {
		return sdkerrors.Wrapf(err, "failed packet receipt absence verification for client (%s)", connection.ClientID)
	}
	return nil
}

// VerifyNextSequenceRecv verifies a proof of the next sequence number to be
// received of the specified channel at the specified port.
func (k Keeper) VerifyNextSequenceRecv(
	connection types.ConnectionEnd,
	height clienttypes.Height,
	proof []byte,
	portID, channelID string,
	nextSequenceRecv uint64,
) error {
	path, err := k.counterpartyPath(connection, host.NextSequenceRecvPath(portID, channelID))
	if err != nil {
		return err
	}

	if err := k.clientKeeper.VerifyMembership(
		connection.ClientID, height, proof, path,
		sdk.Uint64ToBigEndian(nextSequenceRecv),
	); err != nil {
		return sdkerrors.Wrapf(err, "failed next sequence receive verification for client (%s)", connection.ClientID)
	}
	return nil
}

// GetTimestampAtHeight returns the timestamp (in unix nanoseconds) of the
// consensus state stored for the connection's client at the given height.
func (k Keeper) GetTimestampAtHeight(connection types.ConnectionEnd, height clienttypes.Height) (uint64, error) {
	return k.clientKeeper.GetTimestampAtHeight(connection.ClientID, height)
}

// counterpartyPath prepends the counterparty's store prefix to the given ICS-24
// path, yielding the full commitment path on the counterparty chain.
func (k Keeper) counterpartyPath(connection types.ConnectionEnd, icsPath string) (commitmenttypes.MerklePath, error) {
	path, err := commitmenttypes.ApplyPrefix(connection.Counterparty.Prefix, commitmenttypes.NewMerklePath(icsPath))
	if err != nil {
		return commitmenttypes.MerklePath{}, err
	}
	return path, nil
}
