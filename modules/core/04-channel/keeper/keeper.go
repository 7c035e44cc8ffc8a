package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"

	clientkeeper "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/keeper"
	connectionkeeper "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/keeper"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
)

// Keeper defines the IBC channel keeper.
type Keeper struct {
	store            coretypes.KVStore
	host             coretypes.BlockInfo
	clientKeeper     clientkeeper.Keeper
	connectionKeeper connectionkeeper.Keeper
}

// NewKeeper creates a new IBC channel Keeper instance.
func NewKeeper(
	store coretypes.KVStore, hostInfo coretypes.BlockInfo,
	ck clientkeeper.Keeper, connk connectionkeeper.Keeper,
) Keeper {
	return Keeper{
		store:            store,
		host:             hostInfo,
		clientKeeper:     ck,
		connectionKeeper: connk,
	}
}

// GetChannel returns a channel with a particular identifier binded to a
// specific port.
func (k Keeper) GetChannel(portID, channelID string) (types.Channel, bool) {
	bz := k.store.Get(host.ChannelKey(portID, channelID))
	if bz == nil {
		return types.Channel{}, false
	}
	var channel types.Channel
	if err := tmjson.Unmarshal(bz, &channel); err != nil {
		panic(err)
	}
	return channel, true
}

// SetChannel sets a channel to the store.
func (k Keeper) SetChannel(portID, channelID string, channel types.Channel) {
	bz, err := tmjson.Marshal(channel)
	if err != nil {
		panic(err)
	}
	k.store.Set(host.ChannelKey(portID, channelID), bz)
}

// GetNextChannelSequence gets the next channel sequence from the store.
func (k Keeper) GetNextChannelSequence() uint64 {
	bz := k.store.Get([]byte(types.KeyNextChannelSequence))
	if bz == nil {
		return 0
	}
	return sdk.BigEndianToUint64(bz)
}

// SetNextChannelSequence sets the next channel sequence to the store.
func (k Keeper) SetNextChannelSequence(sequence uint64) {
	k.store.Set([]byte(types.KeyNextChannelSequence), sdk.Uint64ToBigEndian(sequence))
}

// GenerateChannelIdentifier returns the next channel identifier.
func (k Keeper) GenerateChannelIdentifier() string {
	nextChannelSeq := k.GetNextChannelSequence()
	channelID := types.FormatChannelIdentifier(nextChannelSeq)
	k.SetNextChannelSequence(nextChannelSeq + 1)
	return channelID
}

// GetNextSequenceSend gets a channel's next send sequence from the store.
func (k Keeper) GetNextSequenceSend(portID, channelID string) (uint64, bool) {
	bz := k.store.Get(host.NextSequenceSendKey(portID, channelID))
	if bz == nil {
		return 0, false
	}
	return sdk.BigEndianToUint64(bz), true
}

// SetNextSequenceSend sets a channel's next send sequence to the store.
func (k Keeper) SetNextSequenceSend(portID, channelID string, sequence uint64) {
	k.store.Set(host.NextSequenceSendKey(portID, channelID), sdk.Uint64ToBigEndian(sequence))
}

// GetNextSequenceRecv gets a channel's next receive sequence from the store.
func (k Keeper) GetNextSequenceRecv(portID, channelID string) (uint64, bool) {
	bz := k.store.Get(host.NextSequenceRecvKey(portID, channelID))
	if bz == nil {
		return 0, false
	}
	return sdk.BigEndianToUint64(bz), true
}

// SetNextSequenceRecv sets a channel's next receive sequence to the store.
func (k Keeper) SetNextSequenceRecv(portID, channelID string, sequence uint64) {
	k.store.Set(host.NextSequenceRecvKey(portID, channelID), sdk.Uint64ToBigEndian(sequence))
}

// GetNextSequenceAck gets a channel's next ack sequence from the store.
func (k Keeper) GetNextSequenceAck(portID, channelID string) (uint64, bool) {
	bz := k.store.Get(host.NextSequenceAckKey(portID, channelID))
	if bz == nil {
		return 0, false
	}
	return sdk.BigEndianToUint64(bz), true
}

// SetNextSequenceAck sets a channel's next ack sequence to the store.
func (k Keeper) SetNextSequenceAck(portID, channelID string, sequence uint64) {
	k.store.Set(host.NextSequenceAckKey(portID, channelID), sdk.Uint64ToBigEndian(sequence))
}

// GetPacketCommitment gets the packet commitment hash from the store.
func (k Keeper) GetPacketCommitment(portID, channelID string, sequence uint64) []byte {
	return k.store.Get(host.PacketCommitmentKey(portID, channelID, sequence))
}

// HasPacketCommitment returns true if the packet commitment exists.
func (k Keeper) HasPacketCommitment(portID, channelID string, sequence uint64) bool {
	return k.store.Has(host.PacketCommitmentKey(portID, channelID, sequence))
}

// SetPacketCommitment sets the packet commitment hash to the store.
func (k Keeper) SetPacketCommitment(portID, channelID string, sequence uint64, commitmentHash []byte) {
	k.store.Set(host.PacketCommitmentKey(portID, channelID, sequence), commitmentHash)
}

func (k Keeper) deletePacketCommitment(portID, channelID string, sequence uint64) {
	k.store.Delete(host.PacketCommitmentKey(portID, channelID, sequence))
}

// SetPacketReceipt sets an empty packet receipt to the store.
func (k Keeper) SetPacketReceipt(portID, channelID string, sequence uint64) {
	k.store.Set(host.PacketReceiptKey(portID, channelID, sequence), []byte{byte(1)})
}

// GetPacketReceipt gets a packet receipt from the store.
func (k Keeper) GetPacketReceipt(portID, channelID string, sequence uint64) (string, bool) {
	bz := k.store.Get(host.PacketReceiptKey(portID, channelID, sequence))
	if bz == nil {
		return "", false
	}
	return string(bz), true
}

// GetPacketAcknowledgement gets the packet ack hash from the store.
func (k Keeper) GetPacketAcknowledgement(portID, channelID string, sequence uint64) ([]byte, bool) {
	bz := k.store.Get(host.PacketAcknowledgementKey(portID, channelID, sequence))
	if bz == nil {
		return nil, false
	}
	return bz, true
}

// HasPacketAcknowledgement checks if the packet ack hash is already on the
// store.
func (k Keeper) HasPacketAcknowledgement(portID, channelID string, sequence uint64) bool {
	return k.store.Has(host.PacketAcknowledgementKey(portID, channelID, sequence))
}

// SetPacketAcknowledgement sets the packet ack hash to the store.
func (k Keeper) SetPacketAcknowledgement(portID, channelID string, sequence uint64, ackHash []byte) {
	k.store.Set(host.PacketAcknowledgementKey(portID, channelID, sequence), ackHash)
}

// GetChannelConnection returns the connection the given channel rides on,
// along with its identifier.
func (k Keeper) GetChannelConnection(channel types.Channel) (string, connectiontypes.ConnectionEnd, error) {
	connectionID := channel.ConnectionHops[0]
	connection, found := k.connectionKeeper.GetConnection(connectionID)
	if !found {
		return "", connectiontypes.ConnectionEnd{}, sdkerrors.Wrap(connectiontypes.ErrConnectionNotFound, connectionID)
	}
	return connectionID, connection, nil
}
