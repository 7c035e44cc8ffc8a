package relayer

import (
	"context"

	"github.com/pkg/errors"
	tmlog "github.com/tendermint/tendermint/libs/log"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
)

// Processor turns a work item into a proven message bundle and submits it.
// When the light client on the submit chain lags behind the proof height, the
// bundle is prefixed with a client update built from the proof chain's signed
// headers.
type Processor struct {
	tracker *Tracker
	logger  tmlog.Logger
}

// NewProcessor creates a processor recording progress in the tracker.
func NewProcessor(tracker *Tracker, logger tmlog.Logger) *Processor {
	return &Processor{
		tracker: tracker,
		logger:  logger.With("module", "processor"),
	}
}

// Process relays one work item end to end: it fetches the proof, builds the
// message bundle and submits it, advancing the item's relay record as it
// goes. Submission failures are returned to the caller for classification;
// the record is left in its last reached state.
func (p *Processor) Process(ctx context.Context, item WorkItem) error {
	record, found, err := p.tracker.Get(item.Key)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("no relay record for work item %s", item.Key)
	}
	if record.State.Terminal() {
		return nil
	}

	updateMsg, proofHeight, err := p.clientUpdate(ctx, item)
	if err != nil {
		return errors.Wrapf(err, "building client update for %s", item.Key)
	}

	msg, err := p.buildMsg(ctx, item, proofHeight)
	if err != nil {
		return errors.Wrapf(err, "building message for %s", item.Key)
	}

	record, err = p.tracker.Transition(item.Key, record.Version, StateProofGenerated, "")
	if err != nil {
		return err
	}

	msgs := []coretypes.Msg{msg}
	if updateMsg != nil {
		msgs = append([]coretypes.Msg{updateMsg}, msgs...)
	}

	record, err = p.tracker.Transition(item.Key, record.Version, StateSubmitted, "")
	if err != nil {
		return err
	}

	result, err := item.SubmitChain.SendMsgs(ctx, msgs)
	if err != nil {
		return err
	}
	if !result.Succeeded() {
		return errors.Errorf("transaction failed with code %d: %s", result.Code, result.Log)
	}

	if _, err := p.tracker.Transition(item.Key, record.Version, StateConfirmed, ""); err != nil {
		return err
	}
	p.logger.Info("relayed", "key", item.Key.String(), "height", result.Height, "chain", item.SubmitChain.ChainID())
	return nil
}

// clientUpdate returns the update message needed before proofs at the proof
// chain's latest height verify on the submit chain, along with the height the
// proofs must be queried at. A client already at or past the latest height
// needs no update; proofs are then queried at the client's stored height.
func (p *Processor) clientUpdate(ctx context.Context, item WorkItem) (coretypes.Msg, clienttypes.Height, error) {
	latest, err := item.ProofChain.LatestHeight(ctx)
	if err != nil {
		return nil, clienttypes.Height{}, errors.Wrapf(err, "querying latest height of %s", item.ProofChain.ChainID())
	}

	clientState, err := item.SubmitChain.QueryClientState(ctx, item.ClientID)
	if err != nil {
		return nil, clienttypes.Height{}, errors.Wrapf(err, "querying client %s on %s", item.ClientID, item.SubmitChain.ChainID())
	}

	if clientState.LatestHeight.GTE(latest) {
		return nil, clientState.LatestHeight, nil
	}

	header, err := p.headerForUpdate(ctx, item.ProofChain, latest.RevisionHeight, clientState.LatestHeight)
	if err != nil {
		return nil, clienttypes.Height{}, err
	}
	return coretypes.NewMsgUpdateClient(item.ClientID, header), latest, nil
}

// headerForUpdate builds a client update header for the given height. The
// trusted validator set is the one committed at the height following the
// trusted header, whose hash the trusted consensus state carries as
// NextValidatorsHash.
func (p *Processor) headerForUpdate(ctx context.Context, chain Chain, height uint64, trustedHeight clienttypes.Height) (*ibctmtypes.Header, error) {
	header, err := chain.QueryHeader(ctx, height)
	if err != nil {
		return nil, errors.Wrapf(err, "querying header %d of %s", height, chain.ChainID())
	}

	trustedHeader, err := chain.QueryHeader(ctx, trustedHeight.RevisionHeight+1)
	if err != nil {
		return nil, errors.Wrapf(err, "querying trusted validators of %s at height %d", chain.ChainID(), trustedHeight.RevisionHeight+1)
	}

	header.TrustedHeight = trustedHeight
	header.TrustedValidators = trustedHeader.ValidatorSet
	return header, nil
}

// buildMsg constructs the relay message for the item with a proof queried at
// the given height.
func (p *Processor) buildMsg(ctx context.Context, item WorkItem, proofHeight clienttypes.Height) (coretypes.Msg, error) {
	packet := item.Packet

	switch item.Key.Kind {
	case KindRecv:
		key := host.PacketCommitmentKey(packet.SourcePort, packet.SourceChannel, packet.Sequence)
		proof, _, err := item.ProofChain.QueryProof(ctx, proofHeight.RevisionHeight, key)
		if err != nil {
			return nil, errors.Wrap(err, "querying packet commitment proof")
		}
		return coretypes.NewMsgRecvPacket(packet, proof, proofHeight), nil

	case KindAck:
		key := host.PacketAcknowledgementKey(packet.DestinationPort, packet.DestinationChannel, packet.Sequence)
		proof, _, err := item.ProofChain.QueryProof(ctx, proofHeight.RevisionHeight, key)
		if err != nil {
			return nil, errors.Wrap(err, "querying acknowledgement proof")
		}
		return coretypes.NewMsgAcknowledgement(packet, item.Ack, proof, proofHeight), nil

	case KindTimeout:
		return p.buildTimeoutMsg(ctx, item, proofHeight)

	default:
		return nil, errors.Errorf("unknown relay kind %q", item.Key.Kind)
	}
}

// buildTimeoutMsg proves non-receipt on the destination chain. Ordered
// channels are proven via the unadvanced next receive sequence, unordered
// channels via the absence of a packet receipt.
func (p *Processor) buildTimeoutMsg(ctx context.Context, item WorkItem, proofHeight clienttypes.Height) (coretypes.Msg, error) {
	packet := item.Packet

	nextSequenceRecv, err := item.ProofChain.QueryNextSequenceRecv(ctx, packet.DestinationPort, packet.DestinationChannel)
	if err != nil {
		return nil, errors.Wrap(err, "querying next receive sequence")
	}

	if item.Ordered {
		key := host.NextSequenceRecvKey(packet.DestinationPort, packet.DestinationChannel)
		proof, _, err := item.ProofChain.QueryProof(ctx, proofHeight.RevisionHeight, key)
		if err != nil {
			return nil, errors.Wrap(err, "querying next receive sequence proof")
		}
		return coretypes.NewMsgTimeout(packet, nextSequenceRecv, proof, proofHeight), nil
	}

	key := host.PacketReceiptKey(packet.DestinationPort, packet.DestinationChannel, packet.Sequence)
	proof, err := item.ProofChain.QueryAbsenceProof(ctx, proofHeight.RevisionHeight, key)
	if err != nil {
		return nil, errors.Wrap(err, "querying packet receipt absence proof")
	}
	return coretypes.NewMsgTimeout(packet, nextSequenceRecv, proof, proofHeight), nil
}
