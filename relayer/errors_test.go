package relayer_test

import (
	"context"
	"net"
	"testing"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	clienttypes "github.com/bpolania/near-cosmos-ibc/modules/core/02-client/types"
	channeltypes "github.com/bpolania/near-cosmos-ibc/modules/core/04-channel/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	ibctmtypes "github.com/bpolania/near-cosmos-ibc/modules/light-clients/07-tendermint/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want relayer.ErrorClass
	}{
		{"nil", nil, relayer.ClassUnknown},
		{"plain error", errors.New("boom"), relayer.ClassUnknown},
		{"redundant relay", sdkerrors.Wrap(channeltypes.ErrNoOpMsg, "sequence 3 already received"), relayer.ClassRedundant},
		{"frozen client", sdkerrors.Wrap(clienttypes.ErrClientFrozen, "07-tendermint-0"), relayer.ClassClientFatal},
		{"inactive client", clienttypes.ErrClientNotActive, relayer.ClassClientFatal},
		{"missing client", sdkerrors.Wrap(clienttypes.ErrClientNotFound, "07-tendermint-9"), relayer.ClassClientFatal},
		{"membership failure", clienttypes.ErrFailedMembershipVerification, relayer.ClassProof},
		{"missing consensus state", sdkerrors.Wrap(clienttypes.ErrConsensusStateNotFound, "height 1-7"), relayer.ClassProof},
		{"stale header", ibctmtypes.ErrExpiredHeader, relayer.ClassProof},
		{"commitment mismatch", channeltypes.ErrPacketCommitmentMismatch, relayer.ClassProof},
		{"account sequence", sdkerrors.Wrap(coretypes.ErrInvalidSequence, "expected 4, got 3"), relayer.ClassSequence},
		{"deadline", context.DeadlineExceeded, relayer.ClassNetwork},
		{"dns failure", errors.Wrap(&net.DNSError{Err: "no such host", IsNotFound: true}, "dialing"), relayer.ClassNetwork},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, relayer.Classify(tc.err))
		})
	}
}
