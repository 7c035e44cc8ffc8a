package local

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	ics23 "github.com/confio/ics23/go"
	"github.com/pkg/errors"

	commitmenttypes "github.com/bpolania/near-cosmos-ibc/modules/core/23-commitment/types"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
)

// State is a versioned multi-store committing to its contents with the same
// tree shape tendermint uses for its simple merkle tree: leaves are
// sha256(0x00 || varint(len(key)) || key || varint(32) || sha256(value)) over
// the key-sorted entries, inner nodes are sha256(0x01 || left || right), and
// the split point of a subtree is the largest power of two smaller than its
// size. The app hash is a second tree of the same shape over the store roots,
// keyed by store name. Proofs generated against a committed version therefore
// verify with DefaultProofSpecs.
type State struct {
	storeKeys []string
	// working (uncommitted) contents, per store
	working map[string]map[string][]byte
	// committed contents by version
	versions map[uint64]map[string]map[string][]byte
}

// NewState creates an empty state with the given store keys.
func NewState(storeKeys ...string) *State {
	sorted := append([]string(nil), storeKeys...)
	sort.Strings(sorted)

	working := make(map[string]map[string][]byte, len(sorted))
	for _, key := range sorted {
		working[key] = make(map[string][]byte)
	}
	return &State{
		storeKeys: sorted,
		working:   working,
		versions:  make(map[uint64]map[string]map[string][]byte),
	}
}

// Store returns a KVStore writing through to the working contents of the named
// store. It panics if the store key is unknown.
func (s *State) Store(storeKey string) coretypes.KVStore {
	kv, ok := s.working[storeKey]
	if !ok {
		panic("unknown store key: " + storeKey)
	}
	return mapStore{kv: kv}
}

// Commit snapshots the working contents as the given version and returns the
// resulting app hash.
func (s *State) Commit(version uint64) []byte {
	snapshot := make(map[string]map[string][]byte, len(s.storeKeys))
	for _, storeKey := range s.storeKeys {
		kv := make(map[string][]byte, len(s.working[storeKey]))
		for k, v := range s.working[storeKey] {
			kv[k] = v
		}
		snapshot[storeKey] = kv
	}
	s.versions[version] = snapshot
	return s.appHash(snapshot)
}

// AppHash returns the app hash of a committed version.
func (s *State) AppHash(version uint64) ([]byte, error) {
	snapshot, ok := s.versions[version]
	if !ok {
		return nil, errors.Errorf("no committed state for version %d", version)
	}
	return s.appHash(snapshot), nil
}

// ProveMembership returns the value stored under key in the named store at the
// committed version, along with a proof chain (store tree, then app-hash tree)
// serialised in the format commitmenttypes.UnmarshalMerkleProof accepts.
func (s *State) ProveMembership(version uint64, storeKey string, key []byte) ([]byte, []byte, error) {
	snapshot, ok := s.versions[version]
	if !ok {
		return nil, nil, errors.Errorf("no committed state for version %d", version)
	}
	kv, ok := snapshot[storeKey]
	if !ok {
		return nil, nil, errors.Errorf("unknown store key %s", storeKey)
	}

	value, ok := kv[string(key)]
	if !ok {
		return nil, nil, errors.Errorf("no value stored under key %X in store %s", key, storeKey)
	}

	storeProof, err := existenceProof(kv, key)
	if err != nil {
		return nil, nil, err
	}

	outerProof, err := s.storeRootProof(snapshot, storeKey)
	if err != nil {
		return nil, nil, err
	}

	proof := commitmenttypes.MerkleProof{
		Proofs: []*ics23.CommitmentProof{
			{Proof: &ics23.CommitmentProof_Exist{Exist: storeProof}},
			{Proof: &ics23.CommitmentProof_Exist{Exist: outerProof}},
		},
	}
	bz, err := proof.Marshal()
	if err != nil {
		return nil, nil, err
	}
	return bz, value, nil
}

// ProveNonMembership returns a proof that no value is stored under key in the
// named store at the committed version.
func (s *State) ProveNonMembership(version uint64, storeKey string, key []byte) ([]byte, error) {
	snapshot, ok := s.versions[version]
	if !ok {
		return nil, errors.Errorf("no committed state for version %d", version)
	}
	kv, ok := snapshot[storeKey]
	if !ok {
		return nil, errors.Errorf("unknown store key %s", storeKey)
	}

	if _, exists := kv[string(key)]; exists {
		return nil, errors.Errorf("value exists under key %X in store %s", key, storeKey)
	}

	storeProof, err := nonExistenceProof(kv, key)
	if err != nil {
		return nil, err
	}

	outerProof, err := s.storeRootProof(snapshot, storeKey)
	if err != nil {
		return nil, err
	}

	proof := commitmenttypes.MerkleProof{
		Proofs: []*ics23.CommitmentProof{
			{Proof: &ics23.CommitmentProof_Nonexist{Nonexist: storeProof}},
			{Proof: &ics23.CommitmentProof_Exist{Exist: outerProof}},
		},
	}
	return proof.Marshal()
}

// snapshotWorking copies the working contents so a failed transaction can be
// rolled back.
func (s *State) snapshotWorking() map[string]map[string][]byte {
	snap := make(map[string]map[string][]byte, len(s.storeKeys))
	for _, storeKey := range s.storeKeys {
		kv := make(map[string][]byte, len(s.working[storeKey]))
		for k, v := range s.working[storeKey] {
			kv[k] = v
		}
		snap[storeKey] = kv
	}
	return snap
}

func (s *State) restoreWorking(snap map[string]map[string][]byte) {
	s.working = snap
}

// appHash computes the root of the app-hash tree over the store roots.
func (s *State) appHash(snapshot map[string]map[string][]byte) []byte {
	storeRoots := make(map[string][]byte, len(s.storeKeys))
	for _, storeKey := range s.storeKeys {
		storeRoots[storeKey] = treeRoot(snapshot[storeKey])
	}

	leafHashes := make([][]byte, len(s.storeKeys))
	for i, storeKey := range s.storeKeys {
		leafHashes[i] = leafHash([]byte(storeKey), storeRoots[storeKey])
	}
	root, _ := rootWithPath(leafHashes, -1)
	return root
}

// storeRootProof proves the named store's root under the app hash.
func (s *State) storeRootProof(snapshot map[string]map[string][]byte, storeKey string) (*ics23.ExistenceProof, error) {
	outer := make(map[string][]byte, len(s.storeKeys))
	for _, sk := range s.storeKeys {
		outer[sk] = treeRoot(snapshot[sk])
	}
	return existenceProof(outer, []byte(storeKey))
}

// mapStore adapts a go map to the KVStore interface.
type mapStore struct {
	kv map[string][]byte
}

func (m mapStore) Get(key []byte) []byte {
	if key == nil {
		panic("nil key")
	}
	v, ok := m.kv[string(key)]
	if !ok {
		return nil
	}
	return v
}

func (m mapStore) Has(key []byte) bool {
	if key == nil {
		panic("nil key")
	}
	_, ok := m.kv[string(key)]
	return ok
}

func (m mapStore) Set(key, value []byte) {
	if key == nil {
		panic("nil key")
	}
	if value == nil {
		panic("nil value")
	}
	m.kv[string(key)] = value
}

func (m mapStore) Delete(key []byte) {
	if key == nil {
		panic("nil key")
	}
	delete(m.kv, string(key))
}

// tree construction

func sortedKeys(kv map[string][]byte) []string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// leafHash hashes a key/value pair the way the tendermint leaf spec dictates:
// sha256(0x00 || varint(len(key)) || key || varint(32) || sha256(value)).
func leafHash(key, value []byte) []byte {
	hashedValue := sha256.Sum256(value)

	buf := make([]byte, 0, 2+binary.MaxVarintLen64+len(key)+sha256.Size)
	buf = append(buf, 0)
	buf = appendUvarint(buf, uint64(len(key)))
	buf = append(buf, key...)
	buf = appendUvarint(buf, uint64(len(hashedValue)))
	buf = append(buf, hashedValue[:]...)

	h := sha256.Sum256(buf)
	return h[:]
}

func appendUvarint(buf []byte, x uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	return append(buf, tmp[:n]...)
}

func innerHash(left, right []byte) []byte {
	buf := make([]byte, 0, 1+2*sha256.Size)
	buf = append(buf, 1)
	buf = append(buf, left...)
	buf = append(buf, right...)
	h := sha256.Sum256(buf)
	return h[:]
}

// getSplitPoint returns the largest power of two smaller than length.
func getSplitPoint(length int) int {
	split := 1
	for split*2 < length {
		split *= 2
	}
	return split
}

// rootWithPath computes the root of the tree over leafHashes and, if target is
// a valid index, the inner ops from the target leaf to the root.
func rootWithPath(leafHashes [][]byte, target int) ([]byte, []*ics23.InnerOp) {
	switch len(leafHashes) {
	case 0:
		return sha256.New().Sum(nil), nil
	case 1:
		return leafHashes[0], nil
	default:
		split := getSplitPoint(len(leafHashes))

		if target >= 0 && target < split {
			leftRoot, path := rootWithPath(leafHashes[:split], target)
			rightRoot, _ := rootWithPath(leafHashes[split:], -1)
			path = append(path, &ics23.InnerOp{
				Hash:   ics23.HashOp_SHA256,
				Prefix: []byte{1},
				Suffix: rightRoot,
			})
			return innerHash(leftRoot, rightRoot), path
		}

		rightTarget := -1
		if target >= split {
			rightTarget = target - split
		}
		leftRoot, _ := rootWithPath(leafHashes[:split], -1)
		rightRoot, path := rootWithPath(leafHashes[split:], rightTarget)
		if rightTarget >= 0 {
			path = append(path, &ics23.InnerOp{
				Hash:   ics23.HashOp_SHA256,
				Prefix: append([]byte{1}, leftRoot...),
			})
		}
		return innerHash(leftRoot, rightRoot), path
	}
}

// treeRoot computes the merkle root of a store's contents.
func treeRoot(kv map[string][]byte) []byte {
	keys := sortedKeys(kv)
	leafHashes := make([][]byte, len(keys))
	for i, k := range keys {
		leafHashes[i] = leafHash([]byte(k), kv[k])
	}
	root, _ := rootWithPath(leafHashes, -1)
	return root
}

// existenceProof builds an ics23 existence proof for key in kv.
func existenceProof(kv map[string][]byte, key []byte) (*ics23.ExistenceProof, error) {
	keys := sortedKeys(kv)
	idx := sort.SearchStrings(keys, string(key))
	if idx >= len(keys) || keys[idx] != string(key) {
		return nil, errors.Errorf("key %X not found", key)
	}

	leafHashes := make([][]byte, len(keys))
	for i, k := range keys {
		leafHashes[i] = leafHash([]byte(k), kv[k])
	}
	_, path := rootWithPath(leafHashes, idx)

	return &ics23.ExistenceProof{
		Key:   key,
		Value: kv[string(key)],
		Leaf:  ics23.TendermintSpec.LeafSpec,
		Path:  path,
	}, nil
}

// nonExistenceProof builds an ics23 non-existence proof for key in kv from the
// existence proofs of its nearest neighbors.
func nonExistenceProof(kv map[string][]byte, key []byte) (*ics23.NonExistenceProof, error) {
	keys := sortedKeys(kv)
	if len(keys) == 0 {
		return nil, errors.New("cannot prove non-membership against an empty store")
	}

	// index of the first key greater than the target
	idx := sort.SearchStrings(keys, string(key))
	if idx < len(keys) && keys[idx] == string(key) {
		return nil, errors.Errorf("key %X exists", key)
	}

	proof := &ics23.NonExistenceProof{Key: key}
	if idx > 0 {
		left, err := existenceProof(kv, []byte(keys[idx-1]))
		if err != nil {
			return nil, err
		}
		proof.Left = left
	}
	if idx < len(keys) {
		right, err := existenceProof(kv, []byte(keys[idx]))
		if err != nil {
			return nil, err
		}
		proof.Right = right
	}
	return proof, nil
}
