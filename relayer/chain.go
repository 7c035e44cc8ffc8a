package relayer

import (
	"context"
	"fmt"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
)

// Chain abstracts one end of a relay path. Implementations exist for
// tendermint RPC chains and for in-process chains used in tests.
type Chain interface {
	// ChainID returns the chain identifier.
	ChainID() string

	// LatestHeight returns the latest committed height.
	LatestHeight(ctx context.Context) (clienttypes.Height, error)

	// QueryHeader returns the signed header and validator set at the given
	// height. The trusted fields of the returned header are unset; the
	// processor injects them before submission.
	QueryHeader(ctx context.Context, height uint64) (*ibctmtypes.Header, error)

	// QueryProof returns a membership proof and the proven value for the given
	// IBC store key at the given height.
	QueryProof(ctx context.Context, height uint64, key []byte) (proof []byte, value []byte, err error)

	// QueryAbsenceProof returns a non-membership proof for the given IBC store
	// key at the given height.
	QueryAbsenceProof(ctx context.Context, height uint64, key []byte) ([]byte, error)

	// QueryEvents returns the IBC events emitted in blocks within the height
	// range [fromHeight, toHeight], both inclusive.
	QueryEvents(ctx context.Context, fromHeight, toHeight uint64) ([]Event, error)

	// QueryClientState returns the stored state of the given light client.
	QueryClientState(ctx context.Context, clientID string) (*ibctmtypes.ClientState, error)

	// QueryChannel returns the channel end stored under the given port and
	// channel identifiers.
	QueryChannel(ctx context.Context, portID, channelID string) (channeltypes.Channel, error)

	// QueryNextSequenceRecv returns the next receive sequence of the given
	// channel end.
	QueryNextSequenceRecv(ctx context.Context, portID, channelID string) (uint64, error)

	// AccountSequence returns the current account sequence of the relayer's
	// signing account on this chain.
	AccountSequence(ctx context.Context) (uint64, error)

	// SendMsgs signs and submits the messages in a single transaction and
	// waits for it to be committed.
	SendMsgs(ctx context.Context, msgs []coretypes.Msg) (*TxResult, error)
}

// Event is an IBC event together with the height of the block that emitted it.
type Event struct {
	Height uint64
	Type   string
	Attrs  map[string]string
}

// TxResult describes a committed transaction.
type TxResult struct {
	Height uint64
	Code   uint32
	Log    string
	Events []coretypes.Event
}

// Succeeded reports whether the transaction executed without error.
func (r *TxResult) Succeeded() bool {
	return r != nil && r.Code == 0
}

// PathEnd identifies one end of a relay path: the client, connection and
// channel on a chain that face the counterparty.
type PathEnd struct {
	ChainID      string `json:"chain_id" mapstructure:"chain-id" yaml:"chain-id"`
	ClientID     string `json:"client_id" mapstructure:"client-id" yaml:"client-id"`
	ConnectionID string `json:"connection_id" mapstructure:"connection-id" yaml:"connection-id"`
	PortID       string `json:"port_id" mapstructure:"port-id" yaml:"port-id"`
	ChannelID    string `json:"channel_id" mapstructure:"channel-id" yaml:"channel-id"`
}

// String implements fmt.Stringer.
func (pe PathEnd) String() string {
	return fmt.Sprintf("%s:%s/%s", pe.ChainID, pe.PortID, pe.ChannelID)
}

// Path is a relay path between two chains.
type Path struct {
	Src PathEnd `json:"src" mapstructure:"src" yaml:"src"`
	Dst PathEnd `json:"dst" mapstructure:"dst" yaml:"dst"`
}

// String implements fmt.Stringer.
func (p Path) String() string {
	return fmt.Sprintf("%s<->%s", p.Src, p.Dst)
}
