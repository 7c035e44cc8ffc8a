package relayer

import (
	"context"
	"errors"
	"net"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
)

// ErrorClass determines how the relay engine reacts to a failed submission.
type ErrorClass int

const (
	// ClassUnknown - unclassified failure, retried with backoff
	ClassUnknown ErrorClass = iota
	// ClassRedundant - the message was a redundant relay; the work item is
	// complete and must not be retried
	ClassRedundant
	// ClassClientFatal - the light client is frozen, expired or missing;
	// retrying cannot succeed without manual intervention
	ClassClientFatal
	// ClassProof - the proof was rejected; refetch it at a fresh height and
	// retry
	ClassProof
	// ClassSequence - the account sequence was stale; refresh it and retry
	// immediately
	ClassSequence
	// ClassNetwork - transport-level failure; retry with backoff
	ClassNetwork
)

// String implements the Stringer interface.
func (c ErrorClass) String() string {
	switch c {
	case ClassRedundant:
		return "redundant"
	case ClassClientFatal:
		return "client_fatal"
	case ClassProof:
		return "proof"
	case ClassSequence:
		return "sequence"
	case ClassNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Classify maps a submission error to the reaction class the coordinator acts
// on. Chain adapters preserve the registered error identity of on-chain
// failures, so the sentinel checks below work for both in-process and RPC
// chains.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	switch {
	case errors.Is(err, channeltypes.ErrNoOpMsg):
		return ClassRedundant

	case errors.Is(err, clienttypes.ErrClientFrozen),
		errors.Is(err, clienttypes.ErrClientNotActive),
		errors.Is(err, clienttypes.ErrClientNotFound):
		return ClassClientFatal

	case errors.Is(err, clienttypes.ErrFailedMembershipVerification),
		errors.Is(err, clienttypes.ErrFailedNonMembershipVerification),
		errors.Is(err, clienttypes.ErrConsensusStateNotFound),
		errors.Is(err, ibctmtypes.ErrExpiredHeader),
		errors.Is(err, ibctmtypes.ErrClockDrift),
		errors.Is(err, channeltypes.ErrPacketCommitmentMismatch):
		return ClassProof

	case errors.Is(err, coretypes.ErrInvalidSequence):
		return ClassSequence

	case errors.Is(err, context.DeadlineExceeded):
		return ClassNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetwork
	}

	return ClassUnknown
}
