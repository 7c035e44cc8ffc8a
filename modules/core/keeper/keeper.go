package keeper

import (
	clientkeeper "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/keeper"
	connectionkeeper "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/keeper"
	channelkeeper "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/keeper"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
)

// PacketHandler is the application callback invoked when a packet is received
// on a port owned by the application. The returned acknowledgement bytes are
// written to state in the same transaction.
type PacketHandler interface {
	OnRecvPacket(packet channeltypes.Packet) ([]byte, error)
}

// Keeper defines each ICS keeper for IBC. It aggregates the client, connection
// and channel keepers over a single host store and routes incoming messages to
// them.
type Keeper struct {
	ClientKeeper     clientkeeper.Keeper
	ConnectionKeeper connectionkeeper.Keeper
	ChannelKeeper    channelkeeper.Keeper

	host   coretypes.BlockInfo
	router map[string]PacketHandler
}

// NewKeeper creates a new ibc Keeper.
func NewKeeper(store coretypes.KVStore, hostInfo coretypes.BlockInfo) *Keeper {
	clientKeeper := clientkeeper.NewKeeper(store, hostInfo)
	connectionKeeper := connectionkeeper.NewKeeper(store, hostInfo, clientKeeper)
	channelKeeper := channelkeeper.NewKeeper(store, hostInfo, clientKeeper, connectionKeeper)

	return &Keeper{
		ClientKeeper:     clientKeeper,
		ConnectionKeeper: connectionKeeper,
		ChannelKeeper:    channelKeeper,
		host:             hostInfo,
		router:           make(map[string]PacketHandler),
	}
}

// AddRoute registers an application packet handler for a port. Packets
// received on unrouted ports are acknowledged with a default success
// acknowledgement.
func (k *Keeper) AddRoute(portID string, handler PacketHandler) {
	k.router[portID] = handler
}
