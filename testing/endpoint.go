package ibctesting

import (
	"github.com/pkg/errors"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	connectiontypes "github.com/bpolania/near-cosmos-ibc/modules/core/03-connection/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	corekeeper "github.com/bpolania/near-cosmos-ibc/modules/core/keeper"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
)

// Endpoint represents one end of a relay path in tests: a client, connection
// and channel on a chain, facing the counterparty endpoint.
type Endpoint struct {
	Chain        *TestChain
	Counterparty *Endpoint

	ClientID     string
	ConnectionID string
	ChannelID    string

	ChannelConfig ChannelConfig
}

// CreateClient creates a tendermint client tracking the counterparty chain at
// its latest height.
func (ep *Endpoint) CreateClient() error {
	counterparty := ep.Counterparty.Chain
	height := counterparty.LatestHeight()
	header := counterparty.QueryHeader(height.RevisionHeight)

	clientState := ibctmtypes.NewClientState(
		counterparty.ChainID, ibctmtypes.DefaultTrustLevel,
		TrustingPeriod, UnbondingPeriod, MaxClockDrift,
		height, commitmenttypes.DefaultProofSpecs(),
	)
	consensusState := ibctmtypes.NewConsensusState(
		header.GetTime(),
		commitmenttypes.NewMerkleRoot(header.SignedHeader.AppHash),
		header.SignedHeader.NextValidatorsHash,
	)

	res, err := ep.Chain.SendMsgs(coretypes.NewMsgCreateClient(clientState, consensusState))
	if err != nil {
		return err
	}

	ep.ClientID, err = ParseClientIDFromEvents(res.Events)
	return err
}

// UpdateClient brings the client on this endpoint up to the counterparty's
// latest height.
func (ep *Endpoint) UpdateClient() error {
	header, err := ep.counterpartyHeader()
	if err != nil {
		return err
	}
	_, err = ep.Chain.SendMsgs(coretypes.NewMsgUpdateClient(ep.ClientID, header))
	return err
}

// counterpartyHeader builds a client update header for the counterparty's
// latest height, trusted at the client's current height.
func (ep *Endpoint) counterpartyHeader() (*ibctmtypes.Header, error) {
	counterparty := ep.Counterparty.Chain
	height := counterparty.LatestHeight()

	clientState, found := ep.Chain.Keeper().ClientKeeper.GetClientState(ep.ClientID)
	if !found {
		return nil, errors.Errorf("client %s not found on chain %s", ep.ClientID, ep.Chain.ChainID)
	}

	header := counterparty.QueryHeader(height.RevisionHeight)
	trustedHeader := counterparty.QueryHeader(clientState.LatestHeight.RevisionHeight + 1)

	header.TrustedHeight = clientState.LatestHeight
	header.TrustedValidators = trustedHeader.ValidatorSet
	return header, nil
}

// proofHeight returns the height counterparty proofs are generated and
// verified at: the counterparty's latest committed height, to which the
// client must have been updated.
func (ep *Endpoint) proofHeight() clienttypes.Height {
	return ep.Counterparty.Chain.LatestHeight()
}

// ConnOpenInit initialises the connection handshake on this endpoint.
func (ep *Endpoint) ConnOpenInit() error {
	msg := coretypes.NewMsgConnectionOpenInit(
		ep.ClientID, ep.Counterparty.ClientID,
		[]byte(host.StoreKey), nil, DefaultDelayPeriod,
	)
	res, err := ep.Chain.SendMsgs(msg)
	if err != nil {
		return err
	}
	ep.ConnectionID, err = ParseConnectionIDFromEvents(res.Events)
	return err
}

// ConnOpenTry relays the counterparty's INIT connection end to this endpoint.
func (ep *Endpoint) ConnOpenTry() error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proofInit := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight, host.ConnectionKey(ep.Counterparty.ConnectionID),
	)

	msg := &coretypes.MsgConnectionOpenTry{
		ClientID: ep.ClientID,
		Counterparty: connectiontypes.NewCounterparty(
			ep.Counterparty.ClientID, ep.Counterparty.ConnectionID,
			commitmenttypes.NewMerklePrefix([]byte(host.StoreKey)),
		),
		DelayPeriod:          DefaultDelayPeriod,
		CounterpartyVersions: connectiontypes.GetCompatibleVersions(),
		ProofHeight:          proofHeight,
		ProofInit:            proofInit,
	}
	res, err := ep.Chain.SendMsgs(msg)
	if err != nil {
		return err
	}
	ep.ConnectionID, err = ParseConnectionIDFromEvents(res.Events)
	return err
}

// ConnOpenAck relays the counterparty's TRYOPEN connection end back to this
// endpoint, opening its connection.
func (ep *Endpoint) ConnOpenAck() error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proofTry := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight, host.ConnectionKey(ep.Counterparty.ConnectionID),
	)

	msg := &coretypes.MsgConnectionOpenAck{
		ConnectionID:             ep.ConnectionID,
		CounterpartyConnectionID: ep.Counterparty.ConnectionID,
		Version:                  connectiontypes.DefaultIBCVersion,
		ProofHeight:              proofHeight,
		ProofTry:                 proofTry,
	}
	_, err := ep.Chain.SendMsgs(msg)
	return err
}

// ConnOpenConfirm opens the connection on this endpoint given proof the
// counterparty's end is OPEN.
func (ep *Endpoint) ConnOpenConfirm() error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proofAck := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight, host.ConnectionKey(ep.Counterparty.ConnectionID),
	)

	msg := &coretypes.MsgConnectionOpenConfirm{
		ConnectionID: ep.ConnectionID,
		ProofHeight:  proofHeight,
		ProofAck:     proofAck,
	}
	_, err := ep.Chain.SendMsgs(msg)
	return err
}

// ChanOpenInit initialises the channel handshake on this endpoint.
func (ep *Endpoint) ChanOpenInit() error {
	msg := &coretypes.MsgChannelOpenInit{
		PortID: ep.ChannelConfig.PortID,
		Channel: channeltypes.Channel{
			State:          channeltypes.INIT,
			Ordering:       ep.ChannelConfig.Order,
			Counterparty:   channeltypes.NewCounterparty(ep.Counterparty.ChannelConfig.PortID, ""),
			ConnectionHops: []string{ep.ConnectionID},
			Version:        ep.ChannelConfig.Version,
		},
	}
	res, err := ep.Chain.SendMsgs(msg)
	if err != nil {
		return err
	}
	ep.ChannelID, err = ParseChannelIDFromEvents(res.Events)
	return err
}

// ChanOpenTry relays the counterparty's INIT channel end to this endpoint.
func (ep *Endpoint) ChanOpenTry() error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proofInit := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight,
		host.ChannelKey(ep.Counterparty.ChannelConfig.PortID, ep.Counterparty.ChannelID),
	)

	msg := &coretypes.MsgChannelOpenTry{
		PortID: ep.ChannelConfig.PortID,
		Channel: channeltypes.Channel{
			State:          channeltypes.TRYOPEN,
			Ordering:       ep.ChannelConfig.Order,
			Counterparty:   channeltypes.NewCounterparty(ep.Counterparty.ChannelConfig.PortID, ep.Counterparty.ChannelID),
			ConnectionHops: []string{ep.ConnectionID},
			Version:        ep.ChannelConfig.Version,
		},
		CounterpartyVersion: ep.Counterparty.ChannelConfig.Version,
		ProofHeight:         proofHeight,
		ProofInit:           proofInit,
	}
	res, err := ep.Chain.SendMsgs(msg)
	if err != nil {
		return err
	}
	ep.ChannelID, err = ParseChannelIDFromEvents(res.Events)
	return err
}

// ChanOpenAck relays the counterparty's TRYOPEN channel end back to this
// endpoint, opening its channel.
func (ep *Endpoint) ChanOpenAck() error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proofTry := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight,
		host.ChannelKey(ep.Counterparty.ChannelConfig.PortID, ep.Counterparty.ChannelID),
	)

	msg := &coretypes.MsgChannelOpenAck{
		PortID:                ep.ChannelConfig.PortID,
		ChannelID:             ep.ChannelID,
		CounterpartyChannelID: ep.Counterparty.ChannelID,
		CounterpartyVersion:   ep.Counterparty.ChannelConfig.Version,
		ProofHeight:           proofHeight,
		ProofTry:              proofTry,
	}
	_, err := ep.Chain.SendMsgs(msg)
	return err
}

// ChanOpenConfirm opens the channel on this endpoint given proof the
// counterparty's end is OPEN.
func (ep *Endpoint) ChanOpenConfirm() error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proofAck := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight,
		host.ChannelKey(ep.Counterparty.ChannelConfig.PortID, ep.Counterparty.ChannelID),
	)

	msg := &coretypes.MsgChannelOpenConfirm{
		PortID:      ep.ChannelConfig.PortID,
		ChannelID:   ep.ChannelID,
		ProofHeight: proofHeight,
		ProofAck:    proofAck,
	}
	_, err := ep.Chain.SendMsgs(msg)
	return err
}

// ChanCloseInit closes the channel end on this endpoint.
func (ep *Endpoint) ChanCloseInit() error {
	msg := &coretypes.MsgChannelCloseInit{
		PortID:    ep.ChannelConfig.PortID,
		ChannelID: ep.ChannelID,
	}
	_, err := ep.Chain.SendMsgs(msg)
	return err
}

// SendPacket sends a packet on this endpoint's channel and returns it.
func (ep *Endpoint) SendPacket(data []byte, timeoutHeight clienttypes.Height, timeoutTimestamp uint64) (channeltypes.Packet, error) {
	sequence, found := ep.Chain.Keeper().ChannelKeeper.GetNextSequenceSend(ep.ChannelConfig.PortID, ep.ChannelID)
	if !found {
		return channeltypes.Packet{}, errors.Errorf("next send sequence not found for %s/%s", ep.ChannelConfig.PortID, ep.ChannelID)
	}

	packet := channeltypes.NewPacket(
		data, sequence,
		ep.ChannelConfig.PortID, ep.ChannelID,
		ep.Counterparty.ChannelConfig.PortID, ep.Counterparty.ChannelID,
		timeoutHeight, timeoutTimestamp,
	)

	_, err := ep.Chain.Chain.Execute(func(k *corekeeper.Keeper) error {
		return k.ChannelKeeper.SendPacket(packet)
	})
	return packet, err
}

// RecvPacket receives a packet sent by the counterparty on this endpoint.
func (ep *Endpoint) RecvPacket(packet channeltypes.Packet) error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proof := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight,
		host.PacketCommitmentKey(packet.SourcePort, packet.SourceChannel, packet.Sequence),
	)

	_, err := ep.Chain.SendMsgs(coretypes.NewMsgRecvPacket(packet, proof, proofHeight))
	return err
}

// AcknowledgePacket processes the acknowledgement of a packet sent from this
// endpoint.
func (ep *Endpoint) AcknowledgePacket(packet channeltypes.Packet, ack []byte) error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	proofHeight := ep.proofHeight()
	proof := ep.Counterparty.Chain.QueryProof(
		proofHeight.RevisionHeight,
		host.PacketAcknowledgementKey(packet.DestinationPort, packet.DestinationChannel, packet.Sequence),
	)

	_, err := ep.Chain.SendMsgs(coretypes.NewMsgAcknowledgement(packet, ack, proof, proofHeight))
	return err
}

// TimeoutPacket times out a packet sent from this endpoint given proof of
// non-receipt on the counterparty.
func (ep *Endpoint) TimeoutPacket(packet channeltypes.Packet) error {
	if err := ep.UpdateClient(); err != nil {
		return err
	}

	channel, found := ep.Chain.Keeper().ChannelKeeper.GetChannel(packet.SourcePort, packet.SourceChannel)
	if !found {
		return errors.Errorf("channel %s/%s not found", packet.SourcePort, packet.SourceChannel)
	}

	proofHeight := ep.proofHeight()
	counterparty := ep.Counterparty.Chain

	var (
		proof            []byte
		nextSequenceRecv uint64
	)
	if channel.Ordering == channeltypes.ORDERED {
		var found bool
		nextSequenceRecv, found = counterparty.Keeper().ChannelKeeper.GetNextSequenceRecv(packet.DestinationPort, packet.DestinationChannel)
		if !found {
			return errors.Errorf("next receive sequence not found for %s/%s", packet.DestinationPort, packet.DestinationChannel)
		}
		proof = counterparty.QueryProof(
			proofHeight.RevisionHeight,
			host.NextSequenceRecvKey(packet.DestinationPort, packet.DestinationChannel),
		)
	} else {
		nextSequenceRecv = packet.Sequence
		proof = counterparty.QueryAbsenceProof(
			proofHeight.RevisionHeight,
			host.PacketReceiptKey(packet.DestinationPort, packet.DestinationChannel, packet.Sequence),
		)
	}

	_, err := ep.Chain.SendMsgs(coretypes.NewMsgTimeout(packet, nextSequenceRecv, proof, proofHeight))
	return err
}
