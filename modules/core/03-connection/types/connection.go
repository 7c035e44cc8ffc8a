package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
)

// State defines if a connection is in one of the following states:
// INIT, TRYOPEN, OPEN or UNINITIALIZED.
type State int32

const (
	// UNINITIALIZED - Default State
	UNINITIALIZED State = 0
	// INIT - A connection end has just started the opening handshake.
	INIT State = 1
	// TRYOPEN - A connection end has acknowledged the handshake step on the
	// counterparty chain.
	TRYOPEN State = 2
	// OPEN - A connection end has completed the handshake.
	OPEN State = 3
)

// String implements the Stringer interface.
func (s State) String() string {
	switch s {
	case INIT:
		return "INIT"
	case TRYOPEN:
		return "TRYOPEN"
	case OPEN:
		return "OPEN"
	default:
		return "UNINITIALIZED"
	}
}

// Counterparty defines the counterparty chain associated with a connection end.
type Counterparty struct {
	// identifies the client on the counterparty chain associated with a given
	// connection.
	ClientID string `json:"client_id"`
	// identifies the connection end on the counterparty chain associated with a
	// given connection.
	ConnectionID string `json:"connection_id"`
	// commitment merkle prefix of the counterparty chain.
	Prefix commitmenttypes.MerklePrefix `json:"prefix"`
}

// NewCounterparty creates a new Counterparty instance.
func NewCounterparty(clientID, connectionID string, prefix commitmenttypes.MerklePrefix) Counterparty {
	return Counterparty{
		ClientID:     clientID,
		ConnectionID: connectionID,
		Prefix:       prefix,
	}
}

// ValidateBasic performs a basic validation check of the identifiers and prefix.
func (c Counterparty) ValidateBasic() error {
	if c.ConnectionID != "" {
		if err := host.ConnectionIdentifierValidator(c.ConnectionID); err != nil {
			return sdkerrors.Wrap(err, "invalid counterparty connection ID")
		}
	}
	if err := host.ClientIdentifierValidator(c.ClientID); err != nil {
		return sdkerrors.Wrap(err, "invalid counterparty client ID")
	}
	if c.Prefix.Empty() {
		return sdkerrors.Wrap(ErrInvalidCounterparty, "counterparty prefix cannot be empty")
	}
	return nil
}

// ConnectionEnd defines a stateful object on a chain connected to another
// separate one.
//
// NOTE: there must only be 2 defined ConnectionEnds to establish a connection
// between two chains, one stored on each chain under its connection
// identifier.
type ConnectionEnd struct {
	// client associated with this connection.
	ClientID string `json:"client_id"`
	// IBC version which can be utilised to determine encodings or protocols for
	// channels or packets utilising this connection.
	Versions []*Version `json:"versions"`
	// current state of the connection end.
	State State `json:"state"`
	// counterparty chain associated with this connection.
	Counterparty Counterparty `json:"counterparty"`
	// delay period that must pass before a consensus state can be used for
	// packet-verification.
	DelayPeriod uint64 `json:"delay_period"`
}

// NewConnectionEnd creates a new ConnectionEnd instance.
func NewConnectionEnd(state State, clientID string, counterparty Counterparty, versions []*Version, delayPeriod uint64) ConnectionEnd {
	return ConnectionEnd{
		ClientID:     clientID,
		Versions:     versions,
		State:        state,
		Counterparty: counterparty,
		DelayPeriod:  delayPeriod,
	}
}

// GetClientID implements the Connection interface.
func (c ConnectionEnd) GetClientID() string {
	return c.ClientID
}

// ValidateBasic implements the Connection interface.
// NOTE: the protocol supported features are imposed by connection version
// selection.
func (c ConnectionEnd) ValidateBasic() error {
	if err := host.ClientIdentifierValidator(c.ClientID); err != nil {
		return sdkerrors.Wrap(err, "invalid client ID")
	}
	if len(c.Versions) == 0 {
		return sdkerrors.Wrap(ErrInvalidVersion, "empty connection versions")
	}
	for _, version := range c.Versions {
		if err := ValidateVersion(version); err != nil {
			return err
		}
	}
	return c.Counterparty.ValidateBasic()
}
