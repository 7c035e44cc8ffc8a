package tendermint

import (
	"context"
	"sync"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/pkg/errors"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/crypto"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmlog "github.com/tendermint/tendermint/libs/log"
	rpcclient "github.com/tendermint/tendermint/rpc/client"
	rpchttp "github.com/tendermint/tendermint/rpc/client/http"
	tmtypes "github.com/tendermint/tendermint/types"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
)

// storeQueryPath proves keys of the IBC store through the ABCI query router.
const storeQueryPath = "store/" + host.StoreKey + "/key"

// accountSequencePath is the ABCI query path answering the next expected
// transaction sequence of an account.
const accountSequencePath = "custom/account/sequence"

// Chain is a relayer.Chain backed by a tendermint RPC endpoint.
type Chain struct {
	chainID string
	client  *rpchttp.HTTP
	signer  string
	privKey crypto.PrivKey
	timeout time.Duration
	logger  tmlog.Logger

	mu sync.Mutex
}

var _ relayer.Chain = (*Chain)(nil)

// NewChain dials the RPC endpoint and returns a chain handle signing
// transactions with the given key.
func NewChain(chainID, rpcAddr, signer string, privKey crypto.PrivKey, timeout time.Duration, logger tmlog.Logger) (*Chain, error) {
	client, err := rpchttp.New(rpcAddr, "/websocket")
	if err != nil {
		return nil, errors.Wrapf(err, "dialing rpc endpoint %s", rpcAddr)
	}
	return &Chain{
		chainID: chainID,
		client:  client,
		signer:  signer,
		privKey: privKey,
		timeout: timeout,
		logger:  logger.With("module", "chain", "chain", chainID),
	}, nil
}

// ChainID implements relayer.Chain.
func (c *Chain) ChainID() string { return c.chainID }

func (c *Chain) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// LatestHeight implements relayer.Chain.
func (c *Chain) LatestHeight(ctx context.Context) (clienttypes.Height, error) {
	ctx, cancel := c.queryCtx(ctx)
	defer cancel()

	status, err := c.client.Status(ctx)
	if err != nil {
		return clienttypes.Height{}, errors.Wrap(err, "querying node status")
	}
	return clienttypes.GetSelfHeight(c.chainID, uint64(status.SyncInfo.LatestBlockHeight)), nil
}

// QueryHeader implements relayer.Chain.
func (c *Chain) QueryHeader(ctx context.Context, height uint64) (*ibctmtypes.Header, error) {
	ctx, cancel := c.queryCtx(ctx)
	defer cancel()

	h := int64(height)
	commit, err := c.client.Commit(ctx, &h)
	if err != nil {
		return nil, errors.Wrapf(err, "querying commit at height %d", height)
	}

	page, perPage := 1, 100
	var validators []*tmtypes.Validator
	for {
		res, err := c.client.Validators(ctx, &h, &page, &perPage)
		if err != nil {
			return nil, errors.Wrapf(err, "querying validators at height %d", height)
		}
		validators = append(validators, res.Validators...)
		if len(validators) >= res.Total {
			break
		}
		page++
	}

	return &ibctmtypes.Header{
		SignedHeader: &commit.SignedHeader,
		ValidatorSet: tmtypes.NewValidatorSet(validators),
	}, nil
}

// abciQuery runs an ABCI store query. Proofs are requested one block below
// the proof height because a tendermint header carries the app hash of the
// preceding block's state.
func (c *Chain) abciQuery(ctx context.Context, path string, data []byte, height uint64, prove bool) (*abci.ResponseQuery, error) {
	ctx, cancel := c.queryCtx(ctx)
	defer cancel()

	queryHeight := int64(height)
	if prove && queryHeight > 0 {
		queryHeight--
	}
	res, err := c.client.ABCIQueryWithOptions(ctx, path, data, rpcclient.ABCIQueryOptions{
		Height: queryHeight,
		Prove:  prove,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "abci query %s", path)
	}
	if res.Response.Code != 0 {
		return nil, sdkerrors.ABCIError(res.Response.Codespace, res.Response.Code, res.Response.Log)
	}
	return &res.Response, nil
}

// QueryProof implements relayer.Chain.
func (c *Chain) QueryProof(ctx context.Context, height uint64, key []byte) ([]byte, []byte, error) {
	res, err := c.abciQuery(ctx, storeQueryPath, key, height, true)
	if err != nil {
		return nil, nil, err
	}
	if res.Value == nil {
		return nil, nil, errors.Errorf("no value stored under key %X", key)
	}

	merkleProof, err := commitmenttypes.ConvertProofs(res.ProofOps)
	if err != nil {
		return nil, nil, err
	}
	proof, err := merkleProof.Marshal()
	if err != nil {
		return nil, nil, err
	}
	return proof, res.Value, nil
}

// QueryAbsenceProof implements relayer.Chain.
func (c *Chain) QueryAbsenceProof(ctx context.Context, height uint64, key []byte) ([]byte, error) {
	res, err := c.abciQuery(ctx, storeQueryPath, key, height, true)
	if err != nil {
		return nil, err
	}
	if res.Value != nil {
		return nil, errors.Errorf("value exists under key %X, cannot prove absence", key)
	}

	merkleProof, err := commitmenttypes.ConvertProofs(res.ProofOps)
	if err != nil {
		return nil, err
	}
	return merkleProof.Marshal()
}

// QueryEvents implements relayer.Chain. Events are collected from the
// transaction results of every block in the range.
func (c *Chain) QueryEvents(ctx context.Context, fromHeight, toHeight uint64) ([]relayer.Event, error) {
	var events []relayer.Event
	for height := fromHeight; height <= toHeight; height++ {
		blockEvents, err := c.blockEvents(ctx, height)
		if err != nil {
			return nil, err
		}
		events = append(events, blockEvents...)
	}
	return events, nil
}

func (c *Chain) blockEvents(ctx context.Context, height uint64) ([]relayer.Event, error) {
	ctx, cancel := c.queryCtx(ctx)
	defer cancel()

	h := int64(height)
	res, err := c.client.BlockResults(ctx, &h)
	if err != nil {
		return nil, errors.Wrapf(err, "querying block results at height %d", height)
	}

	var events []relayer.Event
	appendEvents := func(abciEvents []abci.Event) {
		for _, event := range abciEvents {
			events = append(events, convertEvent(height, event))
		}
	}
	appendEvents(res.BeginBlockEvents)
	for _, tx := range res.TxsResults {
		appendEvents(tx.Events)
	}
	appendEvents(res.EndBlockEvents)
	return events, nil
}

func convertEvent(height uint64, event abci.Event) relayer.Event {
	attrs := make(map[string]string, len(event.Attributes))
	for _, attr := range event.Attributes {
		attrs[string(attr.Key)] = string(attr.Value)
	}
	return relayer.Event{
		Height: height,
		Type:   event.Type,
		Attrs:  attrs,
	}
}

// QueryClientState implements relayer.Chain.
func (c *Chain) QueryClientState(ctx context.Context, clientID string) (*ibctmtypes.ClientState, error) {
	res, err := c.abciQuery(ctx, storeQueryPath, host.FullClientStateKey(clientID), 0, false)
	if err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, sdkerrors.Wrap(clienttypes.ErrClientNotFound, clientID)
	}

	var clientState ibctmtypes.ClientState
	if err := tmjson.Unmarshal(res.Value, &clientState); err != nil {
		return nil, errors.Wrap(err, "unmarshaling client state")
	}
	return &clientState, nil
}

// QueryChannel implements relayer.Chain.
func (c *Chain) QueryChannel(ctx context.Context, portID, channelID string) (channeltypes.Channel, error) {
	res, err := c.abciQuery(ctx, storeQueryPath, host.ChannelKey(portID, channelID), 0, false)
	if err != nil {
		return channeltypes.Channel{}, err
	}
	if res.Value == nil {
		return channeltypes.Channel{}, sdkerrors.Wrapf(channeltypes.ErrChannelNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}

	var channel channeltypes.Channel
	if err := tmjson.Unmarshal(res.Value, &channel); err != nil {
		return channeltypes.Channel{}, errors.Wrap(err, "unmarshaling channel")
	}
	return channel, nil
}

// QueryNextSequenceRecv implements relayer.Chain.
func (c *Chain) QueryNextSequenceRecv(ctx context.Context, portID, channelID string) (uint64, error) {
	res, err := c.abciQuery(ctx, storeQueryPath, host.NextSequenceRecvKey(portID, channelID), 0, false)
	if err != nil {
		return 0, err
	}
	if res.Value == nil {
		return 0, sdkerrors.Wrapf(channeltypes.ErrSequenceReceiveNotFound, "port ID (%s) channel ID (%s)", portID, channelID)
	}
	return sdk.BigEndianToUint64(res.Value), nil
}

// AccountSequence implements relayer.Chain.
func (c *Chain) AccountSequence(ctx context.Context) (uint64, error) {
	res, err := c.abciQuery(ctx, accountSequencePath, []byte(c.signer), 0, false)
	if err != nil {
		return 0, err
	}
	return sdk.BigEndianToUint64(res.Value), nil
}

// SendMsgs implements relayer.Chain. The transaction is broadcast with commit
// confirmation; on-chain failures are surfaced with their registered error
// identity so the caller can classify them.
func (c *Chain) SendMsgs(ctx context.Context, msgs []coretypes.Msg) (*relayer.TxResult, error) {
	// serialize submissions so concurrent workers cannot race on the account
	// sequence
	c.mu.Lock()
	defer c.mu.Unlock()

	sequence, err := c.AccountSequence(ctx)
	if err != nil {
		return nil, err
	}

	tx := coretypes.NewTx(c.signer, sequence, msgs...)
	if err := tx.Sign(c.chainID, c.privKey); err != nil {
		return nil, err
	}
	txBytes, err := tx.Marshal()
	if err != nil {
		return nil, err
	}

	res, err := c.client.BroadcastTxCommit(ctx, txBytes)
	if err != nil {
		return nil, errors.Wrap(err, "broadcasting transaction")
	}
	if res.CheckTx.Code != 0 {
		return nil, sdkerrors.ABCIError(res.CheckTx.Codespace, res.CheckTx.Code, res.CheckTx.Log)
	}
	if res.DeliverTx.Code != 0 {
		return nil, sdkerrors.ABCIError(res.DeliverTx.Codespace, res.DeliverTx.Code, res.DeliverTx.Log)
	}

	events := make([]coretypes.Event, 0, len(res.DeliverTx.Events))
	for _, event := range res.DeliverTx.Events {
		converted := convertEvent(uint64(res.Height), event)
		events = append(events, coretypes.Event{Type: converted.Type, Attributes: converted.Attrs})
	}

	c.logger.Debug("transaction committed", "height", res.Height, "msgs", len(msgs))
	return &relayer.TxResult{
		Height: uint64(res.Height),
		Events: events,
	}, nil
}
