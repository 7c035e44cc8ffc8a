package local

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
)

func commitTestState(t *testing.T, entries map[string]string) *State {
	t.Helper()
	state := NewState("ibc")
	store := state.Store("ibc")
	for key, value := range entries {
		store.Set([]byte(key), []byte(value))
	}
	state.Commit(1)
	return state
}

func defaultEntries() map[string]string {
	entries := make(map[string]string)
	for i := 0; i < 7; i++ {
		entries[fmt.Sprintf("commitments/ports/mock/channels/channel-0/sequences/%d", i)] = fmt.Sprintf("commitment-%d", i)
	}
	return entries
}

func TestProveMembership(t *testing.T) {
	state := commitTestState(t, defaultEntries())
	root, err := state.AppHash(1)
	require.NoError(t, err)

	key := "commitments/ports/mock/channels/channel-0/sequences/3"
	proofBz, value, err := state.ProveMembership(1, "ibc", []byte(key))
	require.NoError(t, err)
	require.Equal(t, []byte("commitment-3"), value)

	proof, err := commitmenttypes.UnmarshalMerkleProof(proofBz)
	require.NoError(t, err)

	path := commitmenttypes.NewMerklePath("ibc", key)
	err = proof.VerifyMembership(commitmenttypes.DefaultProofSpecs(), commitmenttypes.NewMerkleRoot(root), path, value)
	require.NoError(t, err)
}

func TestProveMembershipTamperedValue(t *testing.T) {
	state := commitTestState(t, defaultEntries())
	root, err := state.AppHash(1)
	require.NoError(t, err)

	key := "commitments/ports/mock/channels/channel-0/sequences/3"
	proofBz, _, err := state.ProveMembership(1, "ibc", []byte(key))
	require.NoError(t, err)

	proof, err := commitmenttypes.UnmarshalMerkleProof(proofBz)
	require.NoError(t, err)

	path := commitmenttypes.NewMerklePath("ibc", key)
	err = proof.VerifyMembership(commitmenttypes.DefaultProofSpecs(), commitmenttypes.NewMerkleRoot(root), path, []byte("forged"))
	require.Error(t, err)
}

func TestProveMembershipWrongRoot(t *testing.T) {
	state := commitTestState(t, defaultEntries())

	otherEntries := defaultEntries()
	otherEntries["extra"] = "entry"
	other := commitTestState(t, otherEntries)
	otherRoot, err := other.AppHash(1)
	require.NoError(t, err)

	key := "commitments/ports/mock/channels/channel-0/sequences/3"
	proofBz, value, err := state.ProveMembership(1, "ibc", []byte(key))
	require.NoError(t, err)

	proof, err := commitmenttypes.UnmarshalMerkleProof(proofBz)
	require.NoError(t, err)

	path := commitmenttypes.NewMerklePath("ibc", key)
	err = proof.VerifyMembership(commitmenttypes.DefaultProofSpecs(), commitmenttypes.NewMerkleRoot(otherRoot), path, value)
	require.Error(t, err)
}

func TestProveNonMembership(t *testing.T) {
	state := commitTestState(t, defaultEntries())
	root, err := state.AppHash(1)
	require.NoError(t, err)

	key := "receipts/ports/mock/channels/channel-0/sequences/9"
	proofBz, err := state.ProveNonMembership(1, "ibc", []byte(key))
	require.NoError(t, err)

	proof, err := commitmenttypes.UnmarshalMerkleProof(proofBz)
	require.NoError(t, err)

	path := commitmenttypes.NewMerklePath("ibc", key)
	err = proof.VerifyNonMembership(commitmenttypes.DefaultProofSpecs(), commitmenttypes.NewMerkleRoot(root), path)
	require.NoError(t, err)
}

func TestProveNonMembershipExistingKey(t *testing.T) {
	state := commitTestState(t, defaultEntries())

	_, err := state.ProveNonMembership(1, "ibc", []byte("commitments/ports/mock/channels/channel-0/sequences/3"))
	require.Error(t, err)
}

func TestProofsAreVersioned(t *testing.T) {
	state := NewState("ibc")
	store := state.Store("ibc")

	store.Set([]byte("alpha"), []byte("one"))
	state.Commit(1)
	rootOne, err := state.AppHash(1)
	require.NoError(t, err)

	store.Set([]byte("alpha"), []byte("two"))
	state.Commit(2)
	rootTwo, err := state.AppHash(2)
	require.NoError(t, err)
	require.NotEqual(t, rootOne, rootTwo)

	// the old version still proves the old value
	proofBz, value, err := state.ProveMembership(1, "ibc", []byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), value)

	proof, err := commitmenttypes.UnmarshalMerkleProof(proofBz)
	require.NoError(t, err)

	path := commitmenttypes.NewMerklePath("ibc", "alpha")
	err = proof.VerifyMembership(commitmenttypes.DefaultProofSpecs(), commitmenttypes.NewMerkleRoot(rootOne), path, []byte("one"))
	require.NoError(t, err)
}

func TestSnapshotRestore(t *testing.T) {
	state := NewState("ibc")
	store := state.Store("ibc")
	store.Set([]byte("alpha"), []byte("one"))

	snapshot := state.snapshotWorking()
	store.Set([]byte("alpha"), []byte("changed"))
	store.Set([]byte("beta"), []byte("new"))

	state.restoreWorking(snapshot)
	require.Equal(t, []byte("one"), store.Get([]byte("alpha")))
	require.False(t, store.Has([]byte("beta")))
}

func TestStoreNilKeyPanics(t *testing.T) {
	state := NewState("ibc")
	store := state.Store("ibc")

	require.Panics(t, func() { store.Get(nil) })
	require.Panics(t, func() { store.Set([]byte("key"), nil) })
}
