package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
)

// Msg is a transaction message routed to one of the IBC submodule handlers.
type Msg interface {
	// Route returns the name of the submodule that handles the message.
	Route() string

	// Type returns a human readable message name used in events and routing.
	Type() string

	// ValidateBasic performs stateless validation of the message fields.
	ValidateBasic() error
}

// client messages

// MsgCreateClient creates a new tendermint light client instance with an
// initial trusted client state and consensus state.
type MsgCreateClient struct {
	ClientState    *ibctmtypes.ClientState    `json:"client_state"`
	ConsensusState *ibctmtypes.ConsensusState `json:"consensus_state"`
}

// NewMsgCreateClient creates a new MsgCreateClient instance.
func NewMsgCreateClient(clientState *ibctmtypes.ClientState, consensusState *ibctmtypes.ConsensusState) *MsgCreateClient {
	return &MsgCreateClient{
		ClientState:    clientState,
		ConsensusState: consensusState,
	}
}

// Route implements Msg.
func (msg MsgCreateClient) Route() string { return clienttypes.SubModuleName }

// Type implements Msg.
func (msg MsgCreateClient) Type() string { return "create_client" }

// ValidateBasic implements Msg.
func (msg MsgCreateClient) ValidateBasic() error {
	if msg.ClientState == nil {
		return sdkerrors.Wrap(clienttypes.ErrInvalidClient, "client state cannot be nil")
	}
	if err := msg.ClientState.Validate(); err != nil {
		return err
	}
	if msg.ConsensusState == nil {
		return sdkerrors.Wrap(clienttypes.ErrInvalidConsensus, "consensus state cannot be nil")
	}
	return msg.ConsensusState.ValidateBasic()
}

// MsgUpdateClient updates an existing light client with a new signed header.
type MsgUpdateClient struct {
	ClientID string             `json:"client_id"`
	Header   *ibctmtypes.Header `json:"header"`
}

// NewMsgUpdateClient creates a new MsgUpdateClient instance.
func NewMsgUpdateClient(clientID string, header *ibctmtypes.Header) *MsgUpdateClient {
	return &MsgUpdateClient{
		ClientID: clientID,
		Header:   header,
	}
}

// Route implements Msg.
func (msg MsgUpdateClient) Route() string { return clienttypes.SubModuleName }

// Type implements Msg.
func (msg MsgUpdateClient) Type() string { return "update_client" }

// ValidateBasic implements Msg.
func (msg MsgUpdateClient) ValidateBasic() error {
	if err := host.ClientIdentifierValidator(msg.ClientID); err != nil {
		return err
	}
	if msg.Header == nil {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeader, "header cannot be nil")
	}
	return msg.Header.ValidateBasic()
}

// connection handshake messages

// MsgConnectionOpenInit initialises a connection handshake on the chain
// executing the message (chain A).
type MsgConnectionOpenInit struct {
	ClientID     string                       `json:"client_id"`
	Counterparty connectiontypes.Counterparty `json:"counterparty"`
	Version      *connectiontypes.Version     `json:"version,omitempty"`
	DelayPeriod  uint64                       `json:"delay_period"`
}

// NewMsgConnectionOpenInit creates a new MsgConnectionOpenInit instance. The
// counterparty connection identifier is left empty: it is unknown until the
// counterparty runs ConnOpenTry.
func NewMsgConnectionOpenInit(
	clientID, counterpartyClientID string,
	counterpartyPrefix []byte,
	version *connectiontypes.Version, delayPeriod uint64,
) *MsgConnectionOpenInit {
	counterparty := connectiontypes.NewCounterparty(
		counterpartyClientID, "", commitmenttypes.NewMerklePrefix(counterpartyPrefix),
	)
	return &MsgConnectionOpenInit{
		ClientID:     clientID,
		Counterparty: counterparty,
		Version:      version,
		DelayPeriod:  delayPeriod,
	}
}

// Route implements Msg.
func (msg MsgConnectionOpenInit) Route() string { return connectiontypes.SubModuleName }

// Type implements Msg.
func (msg MsgConnectionOpenInit) Type() string { return "connection_open_init" }

// ValidateBasic implements Msg.
func (msg MsgConnectionOpenInit) ValidateBasic() error {
	if err := host.ClientIdentifierValidator(msg.ClientID); err != nil {
		return sdkerrors.Wrap(err, "invalid client ID")
	}
	if msg.Counterparty.ConnectionID != "" {
		return sdkerrors.Wrap(connectiontypes.ErrInvalidCounterparty, "counterparty connection identifier must be empty")
	}
	if msg.Version != nil {
		if err := connectiontypes.ValidateVersion(msg.Version); err != nil {
			return sdkerrors.Wrap(err, "basic validation of the provided version failed")
		}
	}
	return msg.Counterparty.ValidateBasic()
}

// MsgConnectionOpenTry relays an INIT connection end to the counterparty chain
// (chain B), proving that chain A has stored it.
type MsgConnectionOpenTry struct {
	ClientID             string                       `json:"client_id"`
	Counterparty         connectiontypes.Counterparty `json:"counterparty"`
	DelayPeriod          uint64                       `json:"delay_period"`
	CounterpartyVersions []*connectiontypes.Version   `json:"counterparty_versions"`
	ProofHeight          clienttypes.Height           `json:"proof_height"`
	// proof of the INIT connection end stored on chain A
	ProofInit []byte `json:"proof_init"`
}

// Route implements Msg.
func (msg MsgConnectionOpenTry) Route() string { return connectiontypes.SubModuleName }

// Type implements Msg.
func (msg MsgConnectionOpenTry) Type() string { return "connection_open_try" }

// ValidateBasic implements Msg.
func (msg MsgConnectionOpenTry) ValidateBasic() error {
	if err := host.ClientIdentifierValidator(msg.ClientID); err != nil {
		return sdkerrors.Wrap(err, "invalid client ID")
	}
	if msg.Counterparty.ConnectionID == "" {
		return sdkerrors.Wrap(connectiontypes.ErrInvalidCounterparty, "counterparty connection identifier cannot be empty")
	}
	if len(msg.CounterpartyVersions) == 0 {
		return sdkerrors.Wrap(connectiontypes.ErrInvalidVersion, "empty counterparty versions")
	}
	for i, version := range msg.CounterpartyVersions {
		if err := connectiontypes.ValidateVersion(version); err != nil {
			return sdkerrors.Wrapf(err, "basic validation failed on version with index %d", i)
		}
	}
	if len(msg.ProofInit) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof init")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return msg.Counterparty.ValidateBasic()
}

// MsgConnectionOpenAck relays acceptance of a connection handshake back to
// chain A, proving that chain B has stored the TRYOPEN connection end.
type MsgConnectionOpenAck struct {
	ConnectionID             string                   `json:"connection_id"`
	CounterpartyConnectionID string                   `json:"counterparty_connection_id"`
	Version                  *connectiontypes.Version `json:"version"`
	ProofHeight              clienttypes.Height       `json:"proof_height"`
	// proof of the TRYOPEN connection end stored on chain B
	ProofTry []byte `json:"proof_try"`
}

// Route implements Msg.
func (msg MsgConnectionOpenAck) Route() string { return connectiontypes.SubModuleName }

// Type implements Msg.
func (msg MsgConnectionOpenAck) Type() string { return "connection_open_ack" }

// ValidateBasic implements Msg.
func (msg MsgConnectionOpenAck) ValidateBasic() error {
	if !connectiontypes.IsValidConnectionID(msg.ConnectionID) {
		return connectiontypes.ErrInvalidConnection
	}
	if err := host.ConnectionIdentifierValidator(msg.CounterpartyConnectionID); err != nil {
		return sdkerrors.Wrap(err, "invalid counterparty connection ID")
	}
	if err := connectiontypes.ValidateVersion(msg.Version); err != nil {
		return err
	}
	if len(msg.ProofTry) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof try")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return nil
}

// MsgConnectionOpenConfirm finalises the handshake on chain B, proving that
// chain A has moved its connection end to OPEN.
type MsgConnectionOpenConfirm struct {
	ConnectionID string             `json:"connection_id"`
	ProofHeight  clienttypes.Height `json:"proof_height"`
	// proof of the OPEN connection end stored on chain A
	ProofAck []byte `json:"proof_ack"`
}

// Route implements Msg.
func (msg MsgConnectionOpenConfirm) Route() string { return connectiontypes.SubModuleName }

// Type implements Msg.
func (msg MsgConnectionOpenConfirm) Type() string { return "connection_open_confirm" }

// ValidateBasic implements Msg.
func (msg MsgConnectionOpenConfirm) ValidateBasic() error {
	if !connectiontypes.IsValidConnectionID(msg.ConnectionID) {
		return connectiontypes.ErrInvalidConnection
	}
	if len(msg.ProofAck) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof ack")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return nil
}

// channel handshake messages

// MsgChannelOpenInit initialises a channel handshake on the chain executing
// the message (chain A).
type MsgChannelOpenInit struct {
	PortID  string               `json:"port_id"`
	Channel channeltypes.Channel `json:"channel"`
}

// Route implements Msg.
func (msg MsgChannelOpenInit) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgChannelOpenInit) Type() string { return "channel_open_init" }

// ValidateBasic implements Msg.
func (msg MsgChannelOpenInit) ValidateBasic() error {
	if err := host.PortIdentifierValidator(msg.PortID); err != nil {
		return sdkerrors.Wrap(err, "invalid port ID")
	}
	if msg.Channel.State != channeltypes.INIT {
		return sdkerrors.Wrapf(channeltypes.ErrInvalidChannelState,
			"channel state must be INIT in MsgChannelOpenInit, got %s", msg.Channel.State)
	}
	if msg.Channel.Counterparty.ChannelID != "" {
		return sdkerrors.Wrap(channeltypes.ErrInvalidCounterparty, "counterparty channel identifier must be empty")
	}
	return msg.Channel.ValidateBasic()
}

// MsgChannelOpenTry relays an INIT channel end to the counterparty chain
// (chain B), proving that chain A has stored it.
type MsgChannelOpenTry struct {
	PortID              string               `json:"port_id"`
	Channel             channeltypes.Channel `json:"channel"`
	CounterpartyVersion string               `json:"counterparty_version"`
	ProofHeight         clienttypes.Height   `json:"proof_height"`
	// proof of the INIT channel end stored on chain A
	ProofInit []byte `json:"proof_init"`
}

// Route implements Msg.
func (msg MsgChannelOpenTry) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgChannelOpenTry) Type() string { return "channel_open_try" }

// ValidateBasic implements Msg.
func (msg MsgChannelOpenTry) ValidateBasic() error {
	if err := host.PortIdentifierValidator(msg.PortID); err != nil {
		return sdkerrors.Wrap(err, "invalid port ID")
	}
	if msg.Channel.State != channeltypes.TRYOPEN {
		return sdkerrors.Wrapf(channeltypes.ErrInvalidChannelState,
			"channel state must be TRYOPEN in MsgChannelOpenTry, got %s", msg.Channel.State)
	}
	if msg.Channel.Counterparty.ChannelID == "" {
		return sdkerrors.Wrap(channeltypes.ErrInvalidCounterparty, "counterparty channel identifier cannot be empty")
	}
	if len(msg.ProofInit) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof init")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return msg.Channel.ValidateBasic()
}

// MsgChannelOpenAck relays acceptance of a channel handshake back to chain A,
// proving that chain B has stored the TRYOPEN channel end.
type MsgChannelOpenAck struct {
	PortID                string             `json:"port_id"`
	ChannelID             string             `json:"channel_id"`
	CounterpartyChannelID string             `json:"counterparty_channel_id"`
	CounterpartyVersion   string             `json:"counterparty_version"`
	ProofHeight           clienttypes.Height `json:"proof_height"`
	// proof of the TRYOPEN channel end stored on chain B
	ProofTry []byte `json:"proof_try"`
}

// Route implements Msg.
func (msg MsgChannelOpenAck) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgChannelOpenAck) Type() string { return "channel_open_ack" }

// ValidateBasic implements Msg.
func (msg MsgChannelOpenAck) ValidateBasic() error {
	if err := host.PortIdentifierValidator(msg.PortID); err != nil {
		return sdkerrors.Wrap(err, "invalid port ID")
	}
	if !channeltypes.IsValidChannelID(msg.ChannelID) {
		return channeltypes.ErrInvalidChannelIdentifier
	}
	if err := host.ChannelIdentifierValidator(msg.CounterpartyChannelID); err != nil {
		return sdkerrors.Wrap(err, "invalid counterparty channel ID")
	}
	if len(msg.ProofTry) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof try")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return nil
}

// MsgChannelOpenConfirm finalises the handshake on chain B, proving that
// chain A has moved its channel end to OPEN.
type MsgChannelOpenConfirm struct {
	PortID      string             `json:"port_id"`
	ChannelID   string             `json:"channel_id"`
	ProofHeight clienttypes.Height `json:"proof_height"`
	// proof of the OPEN channel end stored on chain A
	ProofAck []byte `json:"proof_ack"`
}

// Route implements Msg.
func (msg MsgChannelOpenConfirm) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgChannelOpenConfirm) Type() string { return "channel_open_confirm" }

// ValidateBasic implements Msg.
func (msg MsgChannelOpenConfirm) ValidateBasic() error {
	if err := host.PortIdentifierValidator(msg.PortID); err != nil {
		return sdkerrors.Wrap(err, "invalid port ID")
	}
	if !channeltypes.IsValidChannelID(msg.ChannelID) {
		return channeltypes.ErrInvalidChannelIdentifier
	}
	if len(msg.ProofAck) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof ack")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return nil
}

// MsgChannelCloseInit closes a channel end on the chain executing the message.
type MsgChannelCloseInit struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
}

// Route implements Msg.
func (msg MsgChannelCloseInit) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgChannelCloseInit) Type() string { return "channel_close_init" }

// ValidateBasic implements Msg.
func (msg MsgChannelCloseInit) ValidateBasic() error {
	if err := host.PortIdentifierValidator(msg.PortID); err != nil {
		return sdkerrors.Wrap(err, "invalid port ID")
	}
	if !channeltypes.IsValidChannelID(msg.ChannelID) {
		return channeltypes.ErrInvalidChannelIdentifier
	}
	return nil
}

// MsgChannelCloseConfirm closes a channel end given proof that the
// counterparty channel end has been closed.
type MsgChannelCloseConfirm struct {
	PortID      string             `json:"port_id"`
	ChannelID   string             `json:"channel_id"`
	ProofHeight clienttypes.Height `json:"proof_height"`
	// proof of the CLOSED channel end stored on the counterparty chain
	ProofInit []byte `json:"proof_init"`
}

// Route implements Msg.
func (msg MsgChannelCloseConfirm) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgChannelCloseConfirm) Type() string { return "channel_close_confirm" }

// ValidateBasic implements Msg.
func (msg MsgChannelCloseConfirm) ValidateBasic() error {
	if err := host.PortIdentifierValidator(msg.PortID); err != nil {
		return sdkerrors.Wrap(err, "invalid port ID")
	}
	if !channeltypes.IsValidChannelID(msg.ChannelID) {
		return channeltypes.ErrInvalidChannelIdentifier
	}
	if len(msg.ProofInit) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof init")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return nil
}

// packet messages

// MsgRecvPacket receives an incoming IBC packet on the destination chain,
// given proof of the packet commitment on the source chain.
type MsgRecvPacket struct {
	Packet      channeltypes.Packet `json:"packet"`
	ProofHeight clienttypes.Height  `json:"proof_height"`
	// proof of the packet commitment stored on the source chain
	ProofCommitment []byte `json:"proof_commitment"`
}

// NewMsgRecvPacket creates a new MsgRecvPacket instance.
func NewMsgRecvPacket(packet channeltypes.Packet, proofCommitment []byte, proofHeight clienttypes.Height) *MsgRecvPacket {
	return &MsgRecvPacket{
		Packet:          packet,
		ProofCommitment: proofCommitment,
		ProofHeight:     proofHeight,
	}
}

// Route implements Msg.
func (msg MsgRecvPacket) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgRecvPacket) Type() string { return "recv_packet" }

// ValidateBasic implements Msg.
func (msg MsgRecvPacket) ValidateBasic() error {
	if len(msg.ProofCommitment) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty proof")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return msg.Packet.ValidateBasic()
}

// MsgAcknowledgement processes an acknowledgement written by the destination
// chain on the source chain, given proof of the acknowledgement.
type MsgAcknowledgement struct {
	Packet          channeltypes.Packet `json:"packet"`
	Acknowledgement []byte              `json:"acknowledgement"`
	ProofHeight     clienttypes.Height  `json:"proof_height"`
	// proof of the acknowledgement stored on the destination chain
	ProofAcked []byte `json:"proof_acked"`
}

// NewMsgAcknowledgement creates a new MsgAcknowledgement instance.
func NewMsgAcknowledgement(packet channeltypes.Packet, ack, proofAcked []byte, proofHeight clienttypes.Height) *MsgAcknowledgement {
	return &MsgAcknowledgement{
		Packet:          packet,
		Acknowledgement: ack,
		ProofAcked:      proofAcked,
		ProofHeight:     proofHeight,
	}
}

// Route implements Msg.
func (msg MsgAcknowledgement) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgAcknowledgement) Type() string { return "acknowledge_packet" }

// ValidateBasic implements Msg.
func (msg MsgAcknowledgement) ValidateBasic() error {
	if len(msg.ProofAcked) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty acknowledgement proof")
	}
	if len(msg.Acknowledgement) == 0 {
		return sdkerrors.Wrap(channeltypes.ErrInvalidAcknowledgement, "ack bytes cannot be empty")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return msg.Packet.ValidateBasic()
}

// MsgTimeout times out a packet on the source chain, given proof that the
// destination chain has not received it before the timeout.
type MsgTimeout struct {
	Packet           channeltypes.Packet `json:"packet"`
	NextSequenceRecv uint64              `json:"next_sequence_recv"`
	ProofHeight      clienttypes.Height  `json:"proof_height"`
	// for unordered channels, proof of the absence of a packet receipt on the
	// destination chain; for ordered channels, proof that the next sequence to
	// receive has not advanced past the packet sequence
	ProofUnreceived []byte `json:"proof_unreceived"`
}

// NewMsgTimeout creates a new MsgTimeout instance.
func NewMsgTimeout(packet channeltypes.Packet, nextSequenceRecv uint64, proofUnreceived []byte, proofHeight clienttypes.Height) *MsgTimeout {
	return &MsgTimeout{
		Packet:           packet,
		NextSequenceRecv: nextSequenceRecv,
		ProofUnreceived:  proofUnreceived,
		ProofHeight:      proofHeight,
	}
}

// Route implements Msg.
func (msg MsgTimeout) Route() string { return channeltypes.SubModuleName }

// Type implements Msg.
func (msg MsgTimeout) Type() string { return "timeout_packet" }

// ValidateBasic implements Msg.
func (msg MsgTimeout) ValidateBasic() error {
	if len(msg.ProofUnreceived) == 0 {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "cannot submit an empty unreceived proof")
	}
	if msg.ProofHeight.IsZero() {
		return sdkerrors.Wrap(clienttypes.ErrInvalidHeight, "proof height must be non-zero")
	}
	return msg.Packet.ValidateBasic()
}
