package local

import (
	"context"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/tendermint/tendermint/crypto"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
)

// Adapter exposes a local Chain through the relayer.Chain interface. It signs
// transactions with its own key, registered on the chain as a regular account.
type Adapter struct {
	chain   *Chain
	signer  string
	privKey crypto.PrivKey
}

var _ relayer.Chain = (*Adapter)(nil)

// NewAdapter creates an adapter for the given chain and registers its signing
// account.
func NewAdapter(chain *Chain, signer string, privKey crypto.PrivKey) *Adapter {
	chain.RegisterAccount(signer, privKey.PubKey())
	return &Adapter{
		chain:   chain,
		signer:  signer,
		privKey: privKey,
	}
}

// ChainID implements relayer.Chain.
func (a *Adapter) ChainID() string { return a.chain.chainID }

// LatestHeight implements relayer.Chain.
func (a *Adapter) LatestHeight(ctx context.Context) (clienttypes.Height, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	return clienttypes.GetSelfHeight(a.chain.chainID, a.chain.height), nil
}

// QueryHeader implements relayer.Chain.
func (a *Adapter) QueryHeader(ctx context.Context, height uint64) (*ibctmtypes.Header, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()

	b, err := a.chain.blockAt(height)
	if err != nil {
		return nil, err
	}
	return &ibctmtypes.Header{
		SignedHeader: b.signedHeader,
		ValidatorSet: b.valSet,
	}, nil
}

// QueryProof implements relayer.Chain.
func (a *Adapter) QueryProof(ctx context.Context, height uint64, key []byte) ([]byte, []byte, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	return a.chain.state.ProveMembership(height, host.StoreKey, key)
}

// QueryAbsenceProof implements relayer.Chain.
func (a *Adapter) QueryAbsenceProof(ctx context.Context, height uint64, key []byte) ([]byte, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	return a.chain.state.ProveNonMembership(height, host.StoreKey, key)
}

// QueryEvents implements relayer.Chain.
func (a *Adapter) QueryEvents(ctx context.Context, fromHeight, toHeight uint64) ([]relayer.Event, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()

	var events []relayer.Event
	for _, event := range a.chain.events {
		if event.Height >= fromHeight && event.Height <= toHeight {
			events = append(events, event)
		}
	}
	return events, nil
}

// QueryClientState implements relayer.Chain.
func (a *Adapter) QueryClientState(ctx context.Context, clientID string) (*ibctmtypes.ClientState, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()

	clientState, found := a.chain.keeper.ClientKeeper.GetClientState(clientID)
	if !found {
		return nil, sdkerrors.Wrap(clienttypes.ErrClientNotFound, clientID)
	}
	return clientState, nil
}

// QueryChannel implements relayer.Chain.
func (a *Adapter) QueryChannel(ctx context.Context, portID, channelID string) (channeltypes.Channel, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()

	channel, found := a.chain.keeper.ChannelKeeper.GetChannel(portID, channelID)
	if !found {
		return channeltypes.Channel{}, sdkerrors.Wrapf(channeltypes.ErrChannelNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}
	return channel, nil
}

// QueryNextSequenceRecv implements relayer.Chain.
func (a *Adapter) QueryNextSequenceRecv(ctx context.Context, portID, channelID string) (uint64, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()

	sequence, found := a.chain.keeper.ChannelKeeper.GetNextSequenceRecv(portID, channelID)
	if !found {
		return 0, sdkerrors.Wrapf(channeltypes.ErrSequenceReceiveNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}
	return sequence, nil
}

// AccountSequence implements relayer.Chain.
func (a *Adapter) AccountSequence(ctx context.Context) (uint64, error) {
	return a.chain.AccountSequence(a.signer)
}

// SendMsgs implements relayer.Chain.
func (a *Adapter) SendMsgs(ctx context.Context, msgs []coretypes.Msg) (*relayer.TxResult, error) {
	sequence, err := a.chain.AccountSequence(a.signer)
	if err != nil {
		return nil, err
	}

	tx := coretypes.NewTx(a.signer, sequence, msgs...)
	if err := tx.Sign(a.chain.chainID, a.privKey); err != nil {
		return nil, err
	}
	return a.chain.SendTx(tx)
}
