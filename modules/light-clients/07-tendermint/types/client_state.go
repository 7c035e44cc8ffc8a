package types

import (
	"strings"
	"time"

	ics23 "github.com/confio/ics23/go"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/tendermint/tendermint/light"
	tmtypes "github.com/tendermint/tendermint/types"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	"github.com/bpolania/near-cosmos-ibc/modules/core/exported"
)

// ClientState tracks the trusted state of a remote tendermint chain. It is
// mutated only through verified header updates and frozen permanently on
// proven misbehaviour.
type ClientState struct {
	ChainID         string        `json:"chain_id"`
	TrustLevel      Fraction      `json:"trust_level"`
	TrustingPeriod  time.Duration `json:"trusting_period"`
	UnbondingPeriod time.Duration `json:"unbonding_period"`
	MaxClockDrift   time.Duration `json:"max_clock_drift"`
	// latest height the client was updated to
	LatestHeight clienttypes.Height `json:"latest_height"`
	// frozen height is zero-valued for an unfrozen client
	FrozenHeight clienttypes.Height `json:"frozen_height"`
	ProofSpecs   []*ics23.ProofSpec `json:"proof_specs"`
}

// NewClientState creates a new ClientState instance.
func NewClientState(
	chainID string, trustLevel Fraction,
	trustingPeriod, ubdPeriod, maxClockDrift time.Duration,
	latestHeight clienttypes.Height, specs []*ics23.ProofSpec,
) *ClientState {
	return &ClientState{
		ChainID:         chainID,
		TrustLevel:      trustLevel,
		TrustingPeriod:  trustingPeriod,
		UnbondingPeriod: ubdPeriod,
		MaxClockDrift:   maxClockDrift,
		LatestHeight:    latestHeight,
		FrozenHeight:    clienttypes.ZeroHeight(),
		ProofSpecs:      specs,
	}
}

// GetChainID returns the chain-id.
func (cs ClientState) GetChainID() string {
	return cs.ChainID
}

// ClientType is tendermint.
func (cs ClientState) ClientType() string {
	return exported.Tendermint
}

// GetLatestHeight returns latest block height.
func (cs ClientState) GetLatestHeight() clienttypes.Height {
	return cs.LatestHeight
}

// IsFrozen reports whether the client has been frozen due to misbehaviour.
// A frozen client rejects all further updates and proof verifications.
func (cs ClientState) IsFrozen() bool {
	return !cs.FrozenHeight.IsZero()
}

// IsExpired returns whether or not the client has passed the trusting period
// since the last update (in which case no headers are considered valid).
func (cs ClientState) IsExpired(latestTimestamp, now time.Time) bool {
	expirationTime := latestTimestamp.Add(cs.TrustingPeriod)
	return !expirationTime.After(now)
}

// Status returns the status of the tendermint client given the consensus state
// that was stored at its latest height.
// The client may be:
// - Active: FrozenHeight is zero and client is not expired
// - Frozen: Frozen height is not zero
// - Expired: the latest consensus state timestamp + trusting period <= current time
//
// A frozen client will become expired, so the Frozen status has higher
// precedence.
func (cs ClientState) Status(latestConsState *ConsensusState, now time.Time) exported.Status {
	if cs.IsFrozen() {
		return exported.Frozen
	}
	if latestConsState == nil {
		return exported.Expired
	}
	if cs.IsExpired(latestConsState.Timestamp, now) {
		return exported.Expired
	}
	return exported.Active
}

// Validate performs a basic validation of the client state fields.
func (cs ClientState) Validate() error {
	if strings.TrimSpace(cs.ChainID) == "" {
		return sdkerrors.Wrap(ErrInvalidChainID, "chain id cannot be empty string")
	}
	if len(cs.ChainID) > tmtypes.MaxChainIDLen {
		return sdkerrors.Wrapf(ErrInvalidChainID, "chainID is too long; got: %d, max: %d", len(cs.ChainID), tmtypes.MaxChainIDLen)
	}
	if err := light.ValidateTrustLevel(cs.TrustLevel.ToTendermint()); err != nil {
		return sdkerrors.Wrap(ErrInvalidTrustLevel, err.Error())
	}
	if cs.TrustingPeriod == 0 {
		return sdkerrors.Wrap(ErrInvalidTrustingPeriod, "trusting period cannot be zero")
	}
	if cs.UnbondingPeriod == 0 {
		return sdkerrors.Wrap(ErrInvalidUnbondingPeriod, "unbonding period cannot be zero")
	}
	if cs.MaxClockDrift == 0 {
		return sdkerrors.Wrap(ErrInvalidMaxClockDrift, "max clock drift cannot be zero")
	}
	// the latest height revision number must match the chain id revision number
	if cs.LatestHeight.RevisionNumber != clienttypes.ParseChainID(cs.ChainID) {
		return sdkerrors.Wrapf(ErrInvalidHeaderHeight,
			"latest height revision number must match chain id revision number (%d != %d)", cs.LatestHeight.RevisionNumber, clienttypes.ParseChainID(cs.ChainID))
	}
	if cs.LatestHeight.RevisionHeight == 0 {
		return sdkerrors.Wrap(ErrInvalidHeaderHeight, "tendermint client's latest height revision height cannot be zero")
	}
	if cs.TrustingPeriod >= cs.UnbondingPeriod {
		return sdkerrors.Wrapf(
			ErrInvalidTrustingPeriod,
			"trusting period (%s) should be < unbonding period (%s)", cs.TrustingPeriod, cs.UnbondingPeriod,
		)
	}
	if cs.ProofSpecs == nil {
		return sdkerrors.Wrap(ErrInvalidProofSpecs, "proof specs cannot be nil for tm client")
	}
	for i, spec := range cs.ProofSpecs {
		if spec == nil {
			return sdkerrors.Wrapf(ErrInvalidProofSpecs, "proof spec cannot be nil at index: %d", i)
		}
	}
	return nil
}

// VerifyMembership is a generic proof verification method which verifies a
// proof of the existence of a value at a given CommitmentPath at the specified
// height. The caller is expected to construct the full CommitmentPath from a
// CommitmentPrefix and a standardized path (as defined in ICS 24).
func (cs ClientState) VerifyMembership(
	height clienttypes.Height,
	consState *ConsensusState,
	proof []byte,
	path commitmenttypes.MerklePath,
	value []byte,
) error {
	if cs.LatestHeight.LT(height) {
		return sdkerrors.Wrapf(
			clienttypes.ErrInvalidHeight,
			"client state height < proof height (%s < %s), please ensure the client has been updated", cs.LatestHeight, height,
		)
	}

	merkleProof, err := commitmenttypes.UnmarshalMerkleProof(proof)
	if err != nil {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "failed to unmarshal proof into ICS 23 commitment merkle proof")
	}

	return merkleProof.VerifyMembership(cs.ProofSpecs, consState.GetRoot(), path, value)
}

// VerifyNonMembership is a generic proof verification method which verifies
// the absence of a given CommitmentPath at the specified height.
func (cs ClientState) VerifyNonMembership(
	height clienttypes.Height,
	consState *ConsensusState,
	proof []byte,
	path commitmenttypes.MerklePath,
) error {
	if cs.LatestHeight.LT(height) {
		return sdkerrors.Wrapf(
			clienttypes.ErrInvalidHeight,
			"client state height < proof height (%s < %s), please ensure the client has been updated", cs.LatestHeight, height,
		)
	}

	merkleProof, err := commitmenttypes.UnmarshalMerkleProof(proof)
	if err != nil {
		return sdkerrors.Wrap(commitmenttypes.ErrInvalidProof, "failed to unmarshal proof into ICS 23 commitment merkle proof")
	}

	return merkleProof.VerifyNonMembership(cs.ProofSpecs, consState.GetRoot(), path)
}
