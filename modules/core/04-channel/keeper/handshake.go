package keeper

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
)

// ChanOpenInit is called by a module to initiate a channel opening handshake
// with a module on another chain. The generated channel identifier is
// returned.
func (k Keeper) ChanOpenInit(portID string, channel types.Channel) (string, error) {
	// connection hop length checked on msg.ValidateBasic()
	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return "", err
	}

	if len(connection.Versions) != 1 {
		return "", sdkerrors.Wrap(
			connectiontypes.ErrInvalidVersion,
			"single version must be negotiated on connection before opening channel",
		)
	}

	if !connection.Versions[0].VerifySupportedFeature(channel.Ordering.String()) {
		return "", sdkerrors.Wrapf(
			types.ErrInvalidChannelOrdering,
			"connection version %s does not support channel ordering: %s",
			connection.Versions[0], channel.Ordering,
		)
	}

	channelID := k.GenerateChannelIdentifier()

	k.SetChannel(portID, channelID, channel)
	k.SetNextSequenceSend(portID, channelID, 1)
	k.SetNextSequenceRecv(portID, channelID, 1)
	k.SetNextSequenceAck(portID, channelID, 1)

	k.host.EventManager().EmitEvent(
		types.EventTypeChannelOpenInit,
		map[string]string{
			types.AttributeKeyPortID:          portID,
			types.AttributeKeyChannelID:       channelID,
			types.AttributeKeyConnectionID:    connectionID,
			types.AttributeCounterpartyPortID: channel.Counterparty.PortID,
		},
	)

	return channelID, nil
}

// ChanOpenTry is called by a module to accept the first step of a channel
// opening handshake initiated by a module on another chain.
func (k Keeper) ChanOpenTry(
	portID string,
	channel types.Channel,
	counterpartyVersion string,
	proofInit []byte,
	proofHeight clienttypes.Height,
) (string, error) {
	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return "", err
	}

	if connection.State != connectiontypes.OPEN {
		return "", sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	if !connection.Versions[0].VerifySupportedFeature(channel.Ordering.String()) {
		return "", sdkerrors.Wrapf(
			types.ErrInvalidChannelOrdering,
			"connection version %s does not support channel ordering: %s",
			connection.Versions[0], channel.Ordering,
		)
	}

	// expectedChannel defines chain A's channel end
	// NOTE: the counterparty channel identifier is empty on an INIT channel end
	counterpartyHops := []string{connection.Counterparty.ConnectionID}
	expectedCounterparty := types.NewCounterparty(portID, "")
	expectedChannel := types.NewChannel(
		types.INIT, channel.Ordering, expectedCounterparty,
		counterpartyHops, counterpartyVersion,
	)

	if err := k.connectionKeeper.VerifyChannelState(
		connection, proofHeight, proofInit,
		channel.Counterparty.PortID, channel.Counterparty.ChannelID, expectedChannel,
	); err != nil {
		return "", err
	}

	channelID := k.GenerateChannelIdentifier()

	k.SetChannel(portID, channelID, channel)
	k.SetNextSequenceSend(portID, channelID, 1)
	k.SetNextSequenceRecv(portID, channelID, 1)
	k.SetNextSequenceAck(portID, channelID, 1)

	k.host.EventManager().EmitEvent(
		types.EventTypeChannelOpenTry,
		map[string]string{
			types.AttributeKeyPortID:             portID,
			types.AttributeKeyChannelID:          channelID,
			types.AttributeKeyConnectionID:       connectionID,
			types.AttributeCounterpartyPortID:    channel.Counterparty.PortID,
			types.AttributeCounterpartyChannelID: channel.Counterparty.ChannelID,
		},
	)

	return channelID, nil
}

// ChanOpenAck is called by the handshake-originating module to acknowledge the
// acceptance of the initial request by the counterparty module on the other
// chain.
func (k Keeper) ChanOpenAck(
	portID, channelID string,
	counterpartyVersion, counterpartyChannelID string,
	proofTry []byte,
	proofHeight clienttypes.Height,
) error {
	channel, found := k.GetChannel(portID, channelID)
	if !found {
		return sdkerrors.Wrapf(types.ErrChannelNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}

	if channel.State != types.INIT {
		return sdkerrors.Wrapf(types.ErrInvalidChannelState, "channel state should be INIT (got %s)", channel.State)
	}

	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return err
	}

	if connection.State != connectiontypes.OPEN {
		return sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	// expectedChannel defines chain B's channel end
	counterpartyHops := []string{connection.Counterparty.ConnectionID}
	expectedCounterparty := types.NewCounterparty(portID, channelID)
	expectedChannel := types.NewChannel(
		types.TRYOPEN, channel.Ordering, expectedCounterparty,
		counterpartyHops, counterpartyVersion,
	)

	if err := k.connectionKeeper.VerifyChannelState(
		connection, proofHeight, proofTry,
		channel.Counterparty.PortID, counterpartyChannelID, expectedChannel,
	); err != nil {
		return err
	}

	channel.State = types.OPEN
	channel.Version = counterpartyVersion
	channel.Counterparty.ChannelID = counterpartyChannelID
	k.SetChannel(portID, channelID, channel)

	k.host.EventManager().EmitEvent(
		types.EventTypeChannelOpenAck,
		map[string]string{
			types.AttributeKeyPortID:             portID,
			types.AttributeKeyChannelID:          channelID,
			types.AttributeKeyConnectionID:       connectionID,
			types.AttributeCounterpartyPortID:    channel.Counterparty.PortID,
			types.AttributeCounterpartyChannelID: counterpartyChannelID,
		},
	)

	return nil
}

// ChanOpenConfirm is called by the counterparty module to close their end of
// the handshake, after which the channel is open on both chains.
func (k Keeper) ChanOpenConfirm(
	portID, channelID string,
	proofAck []byte,
	proofHeight clienttypes.Height,
) error {
	channel, found := k.GetChannel(portID, channelID)
	if !found {
		return sdkerrors.Wrapf(types.ErrChannelNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}

	if channel.State != types.TRYOPEN {
		return sdkerrors.Wrapf(types.ErrInvalidChannelState, "channel state is not TRYOPEN (got %s)", channel.State)
	}

	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return err
	}

	if connection.State != connectiontypes.OPEN {
		return sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	counterpartyHops := []string{connection.Counterparty.ConnectionID}
	expectedCounterparty := types.NewCounterparty(portID, channelID)
	expectedChannel := types.NewChannel(
		types.OPEN, channel.Ordering, expectedCounterparty,
		counterpartyHops, channel.Version,
	)

	if err := k.connectionKeeper.VerifyChannelState(
		connection, proofHeight, proofAck,
		channel.Counterparty.PortID, channel.Counterparty.ChannelID, expectedChannel,
	); err != nil {
		return err
	}

	channel.State = types.OPEN
	k.SetChannel(portID, channelID, channel)

	k.host.EventManager().EmitEvent(
		types.EventTypeChannelOpenConfirm,
		map[string]string{
			types.AttributeKeyPortID:             portID,
			types.AttributeKeyChannelID:          channelID,
			types.AttributeKeyConnectionID:       connectionID,
			types.AttributeCounterpartyPortID:    channel.Counterparty.PortID,
			types.AttributeCounterpartyChannelID: channel.Counterparty.ChannelID,
		},
	)

	return nil
}

// ChanCloseInit is called by a module to close their end of the channel. Once
// closed, channels cannot be reopened.
func (k Keeper) ChanCloseInit(portID, channelID string) error {
	channel, found := k.GetChannel(portID, channelID)
	if !found {
		return sdkerrors.Wrapf(types.ErrChannelNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}

	if channel.State == types.CLOSED {
		return sdkerrors.Wrap(types.ErrInvalidChannelState, "channel is already CLOSED")
	}

	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return err
	}

	if connection.State != connectiontypes.OPEN {
		return sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	channel.State = types.CLOSED
	k.SetChannel(portID, channelID, channel)

	k.host.EventManager().EmitEvent(
		types.EventTypeChannelCloseInit,
		map[string]string{
			types.AttributeKeyPortID:             portID,
			types.AttributeKeyChannelID:          channelID,
			types.AttributeKeyConnectionID:       connectionID,
			types.AttributeCounterpartyPortID:    channel.Counterparty.PortID,
			types.AttributeCounterpartyChannelID: channel.Counterparty.ChannelID,
		},
	)

	return nil
}

// ChanCloseConfirm is called by the counterparty module to close their end of
// the channel, since the other end has been closed.
func (k Keeper) ChanCloseConfirm(
	portID, channelID string,
	proofInit []byte,
	proofHeight clienttypes.Height,
) error {
	channel, found := k.GetChannel(portID, channelID)
	if !found {
		return sdkerrors.Wrapf(types.ErrChannelNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}

	if channel.State == types.CLOSED {
		return sdkerrors.Wrap(types.ErrInvalidChannelState, "channel is already CLOSED")
	}

	connectionID, connection, err := k.GetChannelConnection(channel)
	if err != nil {
		return err
	}

	if connection.State != connectiontypes.OPEN {
		return sdkerrors.Wrapf(
			connectiontypes.ErrInvalidConnectionState,
			"connection state is not OPEN (got %s)", connection.State,
		)
	}

	counterpartyHops := []string{connection.Counterparty.ConnectionID}
	expectedCounterparty := types.NewCounterparty(portID, channelID)
	expectedChannel := types.NewChannel(
		types.CLOSED, channel.Ordering, expectedCounterparty,
		counterpartyHops, channel.Version,
	)

	if err := k.connectionKeeper.VerifyChannelState(
		connection, proofHeight, proofInit,
		channel.Counterparty.PortID, channel.Counterparty.ChannelID, expectedChannel,
	); err != nil {
		return err
	}

	channel.State = types.CLOSED
	k.SetChannel(portID, channelID, channel)

	k.host.EventManager().EmitEvent(
		types.EventTypeChannelCloseConfirm,
		map[string]string{
			types.AttributeKeyPortID:             portID,
			types.AttributeKeyChannelID:          channelID,
			types.AttributeKeyConnectionID:       connectionID,
			types.AttributeCounterpartyPortID:    channel.Counterparty.PortID,
			types.AttributeCounterpartyChannelID: channel.Counterparty.ChannelID,
		},
	)

	return nil
}
