package ibctesting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Coordinator owns the test chains of an inter-chain test and orchestrates
// handshakes between them.
type Coordinator struct {
	t *testing.T

	ChainA *TestChain
	ChainB *TestChain
}

// NewCoordinator creates two test chains sharing a starting clock.
func NewCoordinator(t *testing.T) *Coordinator {
	return &Coordinator{
		t:      t,
		ChainA: NewTestChain(t, ChainIDPrefix+"1"),
		ChainB: NewTestChain(t, ChainIDPrefix+"2"),
	}
}

// Path holds the two endpoints of a relay path under test.
type Path struct {
	EndpointA *Endpoint
	EndpointB *Endpoint
}

// NewPath creates a path between the coordinator's chains with the default
// channel config on both ends.
func NewPath(coord *Coordinator) *Path {
	endpointA := &Endpoint{Chain: coord.ChainA, ChannelConfig: DefaultChannelConfig}
	endpointB := &Endpoint{Chain: coord.ChainB, ChannelConfig: DefaultChannelConfig}
	endpointA.Counterparty = endpointB
	endpointB.Counterparty = endpointA
	return &Path{EndpointA: endpointA, EndpointB: endpointB}
}

// SetupClients creates the light clients on both ends of the path.
func (coord *Coordinator) SetupClients(path *Path) {
	require.NoError(coord.t, path.EndpointA.CreateClient())
	require.NoError(coord.t, path.EndpointB.CreateClient())
}

// SetupConnections creates the clients and runs the connection handshake to
// completion on both ends.
func (coord *Coordinator) SetupConnections(path *Path) {
	coord.SetupClients(path)
	require.NoError(coord.t, path.EndpointA.ConnOpenInit())
	require.NoError(coord.t, path.EndpointB.ConnOpenTry())
	require.NoError(coord.t, path.EndpointA.ConnOpenAck())
	require.NoError(coord.t, path.EndpointB.ConnOpenConfirm())
}

// Setup runs the full client, connection and channel handshakes, leaving an
// open channel between the path's endpoints.
func (coord *Coordinator) Setup(path *Path) {
	coord.SetupConnections(path)
	require.NoError(coord.t, path.EndpointA.ChanOpenInit())
	require.NoError(coord.t, path.EndpointB.ChanOpenTry())
	require.NoError(coord.t, path.EndpointA.ChanOpenAck())
	require.NoError(coord.t, path.EndpointB.ChanOpenConfirm())
}

// AdvanceTime moves both chains' clocks forward and commits a block on each,
// keeping their timestamps comparable for timeout tests.
func (coord *Coordinator) AdvanceTime(d time.Duration) {
	coord.ChainA.Chain.AdvanceTime(d)
	coord.ChainB.Chain.AdvanceTime(d)
	coord.ChainA.NextBlock()
	coord.ChainB.NextBlock()
}
