package types

import (
	"bytes"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	tmtypes "github.com/tendermint/tendermint/types"
)

// VerifyHeader performs the full ICS-07 verification of an untrusted header
// against the client state and the trusted consensus state stored at
// header.TrustedHeight. It returns a typed error and performs no mutation;
// callers apply the update only after verification succeeds.
//
// The checks, in order:
//   - the header is internally consistent (commit covers this header)
//   - the trusted validators hash to the trusted NextValidatorsHash
//   - the trusted consensus state is within the trusting period
//   - the header time is after the trusted time and within MaxClockDrift of
//     local time
//   - for an adjacent update the new validator set is the trusted next set;
//     for a non-adjacent update at least TrustLevel of the trusted validators
//     signed the new header
//   - more than 2/3 of the new validator set signed the header, each signature
//     verifying (ed25519) over the canonical vote bytes
func (cs ClientState) VerifyHeader(
	header *Header,
	trustedConsState *ConsensusState,
	now time.Time,
) error {
	if err := header.ValidateBasic(); err != nil {
		return err
	}

	tmHeader := header.SignedHeader.Header
	if tmHeader.ChainID != cs.ChainID {
		return sdkerrors.Wrapf(ErrInvalidHeader, "header chain-id %s does not match client chain-id %s", tmHeader.ChainID, cs.ChainID)
	}

	if header.TrustedHeight.GTE(header.GetHeight()) {
		return sdkerrors.Wrapf(ErrInvalidHeaderHeight,
			"trusted height %s must be less than header height %s", header.TrustedHeight, header.GetHeight())
	}

	// assert that trustedVals is NextValidators of last trusted header
	// to do this, we check that trustedVals.Hash() == consState.NextValidatorsHash
	if header.TrustedValidators == nil {
		return sdkerrors.Wrap(ErrInvalidValidatorSet, "trusted validator set is nil")
	}
	if !bytes.Equal(trustedConsState.NextValidatorsHash, header.TrustedValidators.Hash()) {
		return sdkerrors.Wrapf(ErrInvalidValidatorSet,
			"trusted validators %X does not hash to latest trusted validators. Expected: %X",
			header.TrustedValidators.Hash(), trustedConsState.NextValidatorsHash)
	}

	// the trusted consensus state must still be within the trusting period,
	// otherwise no header can be verified against it
	if cs.IsExpired(trustedConsState.Timestamp, now) {
		return sdkerrors.Wrapf(ErrExpiredHeader,
			"trusting period %s expired since trusted header time %s", cs.TrustingPeriod, trustedConsState.Timestamp)
	}

	// the new header time must advance past the trusted time...
	if !tmHeader.Time.After(trustedConsState.Timestamp) {
		return sdkerrors.Wrapf(ErrExpiredHeader,
			"header time %s is not after trusted header time %s", tmHeader.Time, trustedConsState.Timestamp)
	}
	// ...but not drift ahead of local time
	if !tmHeader.Time.Before(now.Add(cs.MaxClockDrift)) {
		return sdkerrors.Wrapf(ErrClockDrift,
			"header time %s is from the future (local time: %s; max clock drift: %s)", tmHeader.Time, now, cs.MaxClockDrift)
	}

	// ensure the commit actually covers this header
	if err := header.SignedHeader.ValidateBasic(cs.ChainID); err != nil {
		return sdkerrors.Wrap(ErrInvalidHeader, err.Error())
	}

	if header.TrustedHeight.Increment().EQ(header.GetHeight()) {
		// adjacent update: the new validator set must be exactly the set the
		// trusted header committed to
		if !bytes.Equal(trustedConsState.NextValidatorsHash, tmHeader.ValidatorsHash) {
			return sdkerrors.Wrapf(ErrInvalidValidatorSet,
				"expected validators %X of adjacent header to match trusted next validators %X",
				tmHeader.ValidatorsHash, trustedConsState.NextValidatorsHash)
		}
	} else {
		// non-adjacent update: TrustLevel of the trusted validator set must
		// have signed the new header
		if err := verifyCommitTrusting(cs.ChainID, header.TrustedValidators, header.SignedHeader.Commit, cs.TrustLevel); err != nil {
			return err
		}
	}

	// more than 2/3 of the new validator set must have signed, regardless of
	// the adjacency of the update
	return verifyCommitFull(cs.ChainID, header.ValidatorSet, header.SignedHeader.Commit)
}

// UpdateState returns the new client state and consensus state derived from a
// header that has already passed VerifyHeader. The trusted height only ever
// advances.
func (cs ClientState) UpdateState(header *Header) (*ClientState, *ConsensusState) {
	newClientState := cs
	newClientState.LatestHeight = header.GetHeight()
	return &newClientState, header.ConsensusState()
}

// verifyCommitFull checks that more than 2/3 of the total voting power of vals
// signed the commit and that every included signature verifies over the
// canonical vote bytes. Signatures are matched to validators by index, as in
// tendermint's VerifyCommitLight.
func verifyCommitFull(chainID string, vals *tmtypes.ValidatorSet, commit *tmtypes.Commit) error {
	if vals.Size() != len(commit.Signatures) {
		return sdkerrors.Wrapf(ErrInvalidValidatorSet,
			"invalid commit: %d validators, %d signatures", vals.Size(), len(commit.Signatures))
	}

	votingPowerNeeded := vals.TotalVotingPower() * 2 / 3
	var talliedVotingPower int64

	for idx, commitSig := range commit.Signatures {
		// no need to verify absent or nil votes
		if commitSig.BlockIDFlag != tmtypes.BlockIDFlagCommit {
			continue
		}

		val := vals.Validators[idx]
		voteSignBytes := commit.VoteSignBytes(chainID, int32(idx))
		if !val.PubKey.VerifySignature(voteSignBytes, commitSig.Signature) {
			return sdkerrors.Wrapf(ErrInvalidSignature, "wrong signature (#%d): %X", idx, commitSig.Signature)
		}

		talliedVotingPower += val.VotingPower
	}

	if talliedVotingPower <= votingPowerNeeded {
		return sdkerrors.Wrapf(ErrInsufficientVotingPower,
			"signed voting power %d is less than or equal to 2/3 of total voting power %d", talliedVotingPower, vals.TotalVotingPower())
	}
	return nil
}

// verifyCommitTrusting checks that trustLevel of the trusted validator set
// signed the commit. Signatures are matched to trusted validators by address
// since the untrusted set may have rotated, as in tendermint's
// VerifyCommitLightTrusting.
func verifyCommitTrusting(chainID string, trustedVals *tmtypes.ValidatorSet, commit *tmtypes.Commit, trustLevel Fraction) error {
	// sanity check to prevent a division by zero
	if trustLevel.Denominator == 0 {
		return sdkerrors.Wrap(ErrInvalidTrustLevel, "trust level has zero denominator")
	}

	votingPowerNeeded := trustedVals.TotalVotingPower() * int64(trustLevel.Numerator) / int64(trustLevel.Denominator)

	var talliedVotingPower int64
	seenVals := make(map[int32]int, len(commit.Signatures))

	for idx, commitSig := range commit.Signatures {
		if commitSig.BlockIDFlag != tmtypes.BlockIDFlagCommit {
			continue
		}

		// the vals and commit have a 1-to-1 correspondance, but the trusted
		// validator set may differ, so validators are looked up by address
		valIdx, val := trustedVals.GetByAddress(commitSig.ValidatorAddress)
		if val == nil {
			continue
		}

		// check for double vote of validator on the same commit
		if firstIdx, ok := seenVals[valIdx]; ok {
			return sdkerrors.Wrapf(ErrInvalidValidatorSet,
				"double vote from validator %X (signatures %d and %d)", val.Address, firstIdx, idx)
		}
		seenVals[valIdx] = idx

		voteSignBytes := commit.VoteSignBytes(chainID, int32(idx))
		if !val.PubKey.VerifySignature(voteSignBytes, commitSig.Signature) {
			return sdkerrors.Wrapf(ErrInvalidSignature, "wrong signature (#%d): %X", idx, commitSig.Signature)
		}

		talliedVotingPower += val.VotingPower
		if talliedVotingPower > votingPowerNeeded {
			return nil
		}
	}

	return sdkerrors.Wrapf(ErrInsufficientVotingPower,
		"signed voting power %d of trusted validators is less than or equal to the required %d/%d of total voting power %d",
		talliedVotingPower, trustLevel.Numerator, trustLevel.Denominator, trustedVals.TotalVotingPower())
}
