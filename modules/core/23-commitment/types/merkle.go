package types

import (
	"bytes"
	"fmt"

	ics23 "github.com/confio/ics23/go"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/gogo/protobuf/proto"
	tmcrypto "github.com/tendermint/tendermint/proto/tendermint/crypto"
)

// DefaultProofSpecs returns the proof specs for a chain committing its IBC
// state in a simple-merkle store tree nested inside a simple-merkle multistore
// tree. The first element is the spec of the inner (store) tree and the second
// of the outer (multistore) tree, ordered from the leaf to the root.
func DefaultProofSpecs() []*ics23.ProofSpec {
	return []*ics23.ProofSpec{ics23.TendermintSpec, ics23.TendermintSpec}
}

// MerkleRoot defines a merkle root hash. In the IBC context it is the state
// root of the chain verified by the light client.
type MerkleRoot struct {
	Hash []byte `json:"hash,omitempty"`
}

// NewMerkleRoot constructs a new MerkleRoot.
func NewMerkleRoot(hash []byte) MerkleRoot {
	return MerkleRoot{Hash: hash}
}

// GetHash implements RootI interface.
func (mr MerkleRoot) GetHash() []byte {
	return mr.Hash
}

// Empty returns true if the root is empty.
func (mr MerkleRoot) Empty() bool {
	return len(mr.Hash) == 0
}

// MerklePrefix is merkle path prefixed to the key. It can be used to pass
// through a specific commitment store to the correct key owned by an IBC
// module.
type MerklePrefix struct {
	KeyPrefix []byte `json:"key_prefix,omitempty"`
}

// NewMerklePrefix constructs a new MerklePrefix instance.
func NewMerklePrefix(keyPrefix []byte) MerklePrefix {
	return MerklePrefix{KeyPrefix: keyPrefix}
}

// Bytes returns the key prefix bytes.
func (mp MerklePrefix) Bytes() []byte {
	return mp.KeyPrefix
}

// Empty returns true if the prefix is empty.
func (mp MerklePrefix) Empty() bool {
	return len(mp.Bytes()) == 0
}

// MerklePath is the path used to verify commitment proofs, which can be an
// arbitrary structured object (defined by a commitment type). The keys are
// ordered from the root of the tree to the leaf.
type MerklePath struct {
	KeyPath []string `json:"key_path,omitempty"`
}

// NewMerklePath creates a new MerklePath instance. The keys must be passed in
// from root-to-leaf order.
func NewMerklePath(keyPath ...string) MerklePath {
	return MerklePath{KeyPath: keyPath}
}

// GetKey will return a byte representation of the key at the given index.
func (mp MerklePath) GetKey(i uint64) ([]byte, error) {
	if i >= uint64(len(mp.KeyPath)) {
		return nil, fmt.Errorf("index out of range. %d (index) >= %d (len)", i, len(mp.KeyPath))
	}
	return []byte(mp.KeyPath[i]), nil
}

// Empty returns true if the path is empty.
func (mp MerklePath) Empty() bool {
	return len(mp.KeyPath) == 0
}

// String implements fmt.Stringer.
func (mp MerklePath) String() string {
	var path string
	for _, k := range mp.KeyPath {
		path += "/" + k
	}
	return path
}

// ApplyPrefix constructs a new commitment path from the arguments. It prepends
// the prefix key with the given path.
func ApplyPrefix(prefix MerklePrefix, path MerklePath) (MerklePath, error) {
	if prefix.Empty() {
		return MerklePath{}, sdkerrors.Wrap(ErrInvalidPrefix, "prefix can't be empty")
	}
	return NewMerklePath(append([]string{string(prefix.Bytes())}, path.KeyPath...)...), nil
}

// MerkleProof is a wrapper type over a chain of CommitmentProofs. It
// demonstrates membership or non-membership for an element or set of elements,
// verifiable in conjunction with a known commitment root. Proofs should be
// succinct.
//
// MerkleProofs are ordered from leaf-to-root.
type MerkleProof struct {
	Proofs []*ics23.CommitmentProof `json:"proofs,omitempty"`
}

// VerifyMembership verifies the membership of a merkle proof against the given
// root, path, and value. The proof is reconstructed bottom-up: the subroot
// computed at every level must chain into the proof above it and the final
// subroot must match the given root byte-exactly.
func (proof MerkleProof) VerifyMembership(specs []*ics23.ProofSpec, root MerkleRoot, path MerklePath, value []byte) error {
	if err := proof.validateVerificationArgs(specs, root); err != nil {
		return err
	}

	// VerifyMembership specific argument validation
	if len(path.KeyPath) != len(specs) {
		return sdkerrors.Wrapf(ErrInvalidProof, "path length %d not same as proof %d",
			len(path.KeyPath), len(specs))
	}
	if len(value) == 0 {
		return sdkerrors.Wrap(ErrInvalidProof, "empty value in membership proof")
	}

	// Since every proof in chain is a membership proof we can use verifyChainedMembershipProof from index 0
	// to validate entire proof
	return verifyChainedMembershipProof(root.GetHash(), specs, proof.Proofs, path, value, 0)
}

// VerifyNonMembership verifies the absence of a merkle proof against the given
// root and path. VerifyNonMembership verifies a chained proof where the
// absence of a given path is proven at the lowest subtree and then each
// subtree's inclusion is proved up to the final root.
func (proof MerkleProof) VerifyNonMembership(specs []*ics23.ProofSpec, root MerkleRoot, path MerklePath) error {
	if err := proof.validateVerificationArgs(specs, root); err != nil {
		return err
	}

	// VerifyNonMembership specific argument validation
	if len(path.KeyPath) != len(specs) {
		return sdkerrors.Wrapf(ErrInvalidProof, "path length %d not same as proof %d",
			len(path.KeyPath), len(specs))
	}

	switch proof.Proofs[0].Proof.(type) {
	case *ics23.CommitmentProof_Nonexist:
		// verify the absence of key in lowest subtree
		subroot, err := proof.Proofs[0].Calculate()
		if err != nil {
			return sdkerrors.Wrapf(ErrInvalidProof, "could not calculate root for proof index 0, merkle tree is likely empty. %v", err)
		}
		key, err := path.GetKey(uint64(len(path.KeyPath) - 1))
		if err != nil {
			return sdkerrors.Wrapf(ErrInvalidProof, "could not retrieve key bytes for key: %s", path.KeyPath[len(path.KeyPath)-1])
		}
		if ok := ics23.VerifyNonMembership(specs[0], subroot, proof.Proofs[0], key); !ok {
			return sdkerrors.Wrapf(ErrInvalidProof, "could not verify absence of key %s. Please ensure that the path is correct.", string(key))
		}

		// verify all intermediate and final membership proofs above the lowest subtree
		return verifyChainedMembershipProof(root.GetHash(), specs, proof.Proofs, path, subroot, 1)
	case *ics23.CommitmentProof_Exist:
		return sdkerrors.Wrapf(ErrInvalidProof,
			"got ExistenceProof in VerifyNonMembership. If this is unexpected, please ensure that proof was queried with the correct key.")
	default:
		return sdkerrors.Wrapf(ErrInvalidProof,
			"expected proof type: %T, got: %T", &ics23.CommitmentProof_Exist{}, proof.Proofs[0].Proof)
	}
}

// verifyChainedMembershipProof takes a list of proofs and specs and verifies
// each proof in order, checking that the final subroot matches the given root.
// Proofs are indexed from the leaf and keys are indexed from the root, so the
// key for proofs[i] is keys[len-1-i].
func verifyChainedMembershipProof(root []byte, specs []*ics23.ProofSpec, proofs []*ics23.CommitmentProof, keys MerklePath, value []byte, index int) error {
	var (
		subroot []byte
		err     error
	)
	// Initialize subroot to value since the proofs list may be empty.
	// This may happen if this call is verifying intermediate proofs after
	// the lowest proof has been executed. In this case, there may not be any
	// intermediate proofs to verify and we just check that the lowest proof
	// root equals the final root.
	subroot = value
	for i := index; i < len(proofs); i++ {
		switch proofs[i].Proof.(type) {
		case *ics23.CommitmentProof_Exist:
			subroot, err = proofs[i].Calculate()
			if err != nil {
				return sdkerrors.Wrapf(ErrInvalidProof, "could not calculate proof root at index %d, merkle tree may be empty. %v", i, err)
			}
			// Since keys are passed in from highest to lowest, we must grab their indices in reverse order
			// from the proofs and specs which are lowest to highest
			key, err := keys.GetKey(uint64(len(keys.KeyPath) - 1 - i))
			if err != nil {
				return sdkerrors.Wrapf(ErrInvalidProof, "could not retrieve key bytes for key %s: %v", keys.KeyPath[len(keys.KeyPath)-1-i], err)
			}

			// verify membership of the proof at this index with appropriate key and value
			if ok := ics23.VerifyMembership(specs[i], subroot, proofs[i], key, value); !ok {
				return sdkerrors.Wrapf(ErrInvalidProof,
					"chained membership proof failed to verify membership of value: %X in subroot %X at index %d. Please ensure the path and value are both correct.",
					value, subroot, i)
			}
			// Set value to subroot so that we verify next proof in chain commits to this subroot
			value = subroot
		case *ics23.CommitmentProof_Nonexist:
			return sdkerrors.Wrapf(ErrInvalidProof,
				"chained membership proof contains nonexistence proof at index %d. If this is unexpected, please ensure that proof was queried from a height that contained the value in store and that the proof is for the correct path.",
				i)
		default:
			return sdkerrors.Wrapf(ErrInvalidProof,
				"expected proof type: %T, got: %T", &ics23.CommitmentProof_Exist{}, proofs[i].Proof)
		}
	}
	// Check that chained proof root equals passed-in root
	if !bytes.Equal(root, subroot) {
		return sdkerrors.Wrapf(ErrInvalidProof,
			"proof did not commit to expected root: %X, got: %X. Please ensure proof was submitted with correct proofHeight and to the correct chain.",
			root, subroot)
	}
	return nil
}

// Empty returns true if the root is empty.
func (proof MerkleProof) Empty() bool {
	return len(proof.Proofs) == 0
}

// validateVerificationArgs verifies the proof arguments are valid.
func (proof MerkleProof) validateVerificationArgs(specs []*ics23.ProofSpec, root MerkleRoot) error {
	if proof.Empty() {
		return sdkerrors.Wrap(ErrInvalidMerkleProof, "proof cannot be empty")
	}

	if root.Empty() {
		return sdkerrors.Wrap(ErrInvalidMerkleProof, "root cannot be empty")
	}

	if len(specs) != len(proof.Proofs) {
		return sdkerrors.Wrapf(ErrInvalidMerkleProof,
			"length of specs: %d not equal to length of proof: %d", len(specs), len(proof.Proofs))
	}

	for i, spec := range specs {
		if spec == nil {
			return sdkerrors.Wrapf(ErrInvalidProof, "spec at position %d is nil", i)
		}
	}
	return nil
}

// Marshal serializes the merkle proof as a sequence of length-prefixed
// protobuf-encoded CommitmentProofs, ordered from leaf to root.
func (proof MerkleProof) Marshal() ([]byte, error) {
	var buf []byte
	for i, p := range proof.Proofs {
		bz, err := proto.Marshal(p)
		if err != nil {
			return nil, sdkerrors.Wrapf(ErrInvalidMerkleProof, "could not marshal commitment proof at index %d: %v", i, err)
		}
		buf = append(buf, sdk.Uint64ToBigEndian(uint64(len(bz)))...)
		buf = append(buf, bz...)
	}
	return buf, nil
}

// UnmarshalMerkleProof parses the bytes produced by MerkleProof.Marshal.
func UnmarshalMerkleProof(bz []byte) (MerkleProof, error) {
	var proof MerkleProof
	for len(bz) > 0 {
		if len(bz) < 8 {
			return MerkleProof{}, sdkerrors.Wrap(ErrInvalidMerkleProof, "truncated length prefix")
		}
		length := sdk.BigEndianToUint64(bz[:8])
		bz = bz[8:]
		if uint64(len(bz)) < length {
			return MerkleProof{}, sdkerrors.Wrapf(ErrInvalidMerkleProof, "truncated commitment proof: want %d bytes, have %d", length, len(bz))
		}
		var p ics23.CommitmentProof
		if err := proto.Unmarshal(bz[:length], &p); err != nil || p.Proof == nil {
			return MerkleProof{}, sdkerrors.Wrapf(ErrInvalidMerkleProof, "could not unmarshal commitment proof: %v", err)
		}
		proof.Proofs = append(proof.Proofs, &p)
		bz = bz[length:]
	}
	if proof.Empty() {
		return MerkleProof{}, sdkerrors.Wrap(ErrInvalidMerkleProof, "proof cannot be empty")
	}
	return proof, nil
}

// ConvertProofs converts a tendermint proof-ops, as returned by an ABCI query
// with Prove set, into a MerkleProof.
func ConvertProofs(tmProof *tmcrypto.ProofOps) (MerkleProof, error) {
	if tmProof == nil {
		return MerkleProof{}, sdkerrors.Wrap(ErrInvalidMerkleProof, "tendermint proof is nil")
	}
	// Unmarshal all proof ops to CommitmentProof
	proofs := make([]*ics23.CommitmentProof, len(tmProof.Ops))
	for i, op := range tmProof.Ops {
		var p ics23.CommitmentProof
		if err := p.Unmarshal(op.Data); err != nil || p.Proof == nil {
			return MerkleProof{}, sdkerrors.Wrapf(ErrInvalidMerkleProof, "could not unmarshal proof op into CommitmentProof at index %d: %v", i, err)
		}
		proofs[i] = &p
	}
	return MerkleProof{Proofs: proofs}, nil
}
