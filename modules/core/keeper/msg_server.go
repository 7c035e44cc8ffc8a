package keeper

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
)

// Dispatch validates a message and routes it to the submodule handler. It is
// the single entry point through which transactions mutate IBC state.
func (k *Keeper) Dispatch(msg coretypes.Msg) error {
	if err := msg.ValidateBasic(); err != nil {
		return err
	}

	switch msg := msg.(type) {
	case *coretypes.MsgCreateClient:
		_, err := k.ClientKeeper.CreateClient(msg.ClientState, msg.ConsensusState)
		return err

	case *coretypes.MsgUpdateClient:
		return k.ClientKeeper.UpdateClient(msg.ClientID, msg.Header)

	case *coretypes.MsgConnectionOpenInit:
		_, err := k.ConnectionKeeper.ConnOpenInit(msg.ClientID, msg.Counterparty, msg.Version, msg.DelayPeriod)
		return err

	case *coretypes.MsgConnectionOpenTry:
		_, err := k.ConnectionKeeper.ConnOpenTry(
			msg.ClientID, msg.Counterparty, msg.DelayPeriod,
			msg.CounterpartyVersions, msg.ProofInit, msg.ProofHeight,
		)
		return err

	case *coretypes.MsgConnectionOpenAck:
		return k.ConnectionKeeper.ConnOpenAck(
			msg.ConnectionID, msg.Version, msg.CounterpartyConnectionID,
			msg.ProofTry, msg.ProofHeight,
		)

	case *coretypes.MsgConnectionOpenConfirm:
		return k.ConnectionKeeper.ConnOpenConfirm(msg.ConnectionID, msg.ProofAck, msg.ProofHeight)

	case *coretypes.MsgChannelOpenInit:
		_, err := k.ChannelKeeper.ChanOpenInit(msg.PortID, msg.Channel)
		return err

	case *coretypes.MsgChannelOpenTry:
		_, err := k.ChannelKeeper.ChanOpenTry(
			msg.PortID, msg.Channel, msg.CounterpartyVersion,
			msg.ProofInit, msg.ProofHeight,
		)
		return err

	case *coretypes.MsgChannelOpenAck:
		return k.ChannelKeeper.ChanOpenAck(
			msg.PortID, msg.ChannelID, msg.CounterpartyVersion, msg.CounterpartyChannelID,
			msg.ProofTry, msg.ProofHeight,
		)

	case *coretypes.MsgChannelOpenConfirm:
		return k.ChannelKeeper.ChanOpenConfirm(msg.PortID, msg.ChannelID, msg.ProofAck, msg.ProofHeight)

	case *coretypes.MsgChannelCloseInit:
		return k.ChannelKeeper.ChanCloseInit(msg.PortID, msg.ChannelID)

	case *coretypes.MsgChannelCloseConfirm:
		return k.ChannelKeeper.ChanCloseConfirm(msg.PortID, msg.ChannelID, msg.ProofInit, msg.ProofHeight)

	case *coretypes.MsgRecvPacket:
		return k.recvPacket(msg)

	case *coretypes.MsgAcknowledgement:
		return k.ChannelKeeper.AcknowledgePacket(msg.Packet, msg.Acknowledgement, msg.ProofAcked, msg.ProofHeight)

	case *coretypes.MsgTimeout:
		return k.ChannelKeeper.TimeoutPacket(msg.Packet, msg.ProofUnreceived, msg.ProofHeight, msg.NextSequenceRecv)

	default:
		return sdkerrors.Wrapf(coretypes.ErrUnknownMsgType, "%T", msg)
	}
}

// recvPacket receives the packet and writes the application acknowledgement
// in the same transaction.
func (k *Keeper) recvPacket(msg *coretypes.MsgRecvPacket) error {
	if err := k.ChannelKeeper.RecvPacket(msg.Packet, msg.ProofCommitment, msg.ProofHeight); err != nil {
		return err
	}

	ack := k.applicationAck(msg.Packet)

	return k.ChannelKeeper.WriteAcknowledgement(msg.Packet, ack)
}

// applicationAck invokes the registered handler for the packet's destination
// port. Application errors are converted into error acknowledgements rather
// than aborting the transaction: the packet receipt must be committed either
// way.
func (k *Keeper) applicationAck(packet channeltypes.Packet) []byte {
	handler, ok := k.router[packet.DestinationPort]
	if !ok {
		return channeltypes.NewResultAcknowledgement([]byte{byte(1)}).Acknowledgement()
	}

	result, err := handler.OnRecvPacket(packet)
	if err != nil {
		return channeltypes.NewErrorAcknowledgement(err).Acknowledgement()
	}
	return channeltypes.NewResultAcknowledgement(result).Acknowledgement()
}
