package ibctesting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/ed25519"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	corekeeper "github.com/bpolania/near-cosmos-ibc/modules/core/keeper"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
	"github.com/bpolania/near-cosmos-ibc/relayer/chains/local"
)

// DefaultNumValidators is the validator set size of a test chain.
const DefaultNumValidators = 4

// TestChain wraps an in-process chain with the relayer-facing adapter and
// testing conveniences. All transactions are signed by the chain's sender
// account.
type TestChain struct {
	t *testing.T

	Chain   *local.Chain
	Adapter *local.Adapter

	ChainID   string
	SenderKey crypto.PrivKey
}

// NewTestChain creates a test chain with the default validator set size.
func NewTestChain(t *testing.T, chainID string) *TestChain {
	chain := local.NewChain(chainID, DefaultNumValidators, globalStartTime)
	senderKey := ed25519.GenPrivKey()
	adapter := local.NewAdapter(chain, "sender", senderKey)

	return &TestChain{
		t:         t,
		Chain:     chain,
		Adapter:   adapter,
		ChainID:   chainID,
		SenderKey: senderKey,
	}
}

// Keeper returns the chain's IBC keeper for direct state assertions.
func (chain *TestChain) Keeper() *corekeeper.Keeper {
	return chain.Chain.Keeper()
}

// LatestHeight returns the chain's latest committed height.
func (chain *TestChain) LatestHeight() clienttypes.Height {
	height, err := chain.Adapter.LatestHeight(context.Background())
	require.NoError(chain.t, err)
	return height
}

// SendMsgs signs and delivers the messages in a single transaction, committing
// a block.
func (chain *TestChain) SendMsgs(msgs ...coretypes.Msg) (*relayer.TxResult, error) {
	return chain.Adapter.SendMsgs(context.Background(), msgs)
}

// QueryHeader returns the signed header and validator set at the given height.
func (chain *TestChain) QueryHeader(height uint64) *ibctmtypes.Header {
	header, err := chain.Adapter.QueryHeader(context.Background(), height)
	require.NoError(chain.t, err)
	return header
}

// QueryProof returns a membership proof for the IBC store key at the given
// height.
func (chain *TestChain) QueryProof(height uint64, key []byte) []byte {
	proof, _, err := chain.Adapter.QueryProof(context.Background(), height, key)
	require.NoError(chain.t, err)
	return proof
}

// QueryAbsenceProof returns a non-membership proof for the IBC store key at
// the given height.
func (chain *TestChain) QueryAbsenceProof(height uint64, key []byte) []byte {
	proof, err := chain.Adapter.QueryAbsenceProof(context.Background(), height, key)
	require.NoError(chain.t, err)
	return proof
}

// NextBlock commits an empty block.
func (chain *TestChain) NextBlock() {
	chain.Chain.CommitBlock()
}
