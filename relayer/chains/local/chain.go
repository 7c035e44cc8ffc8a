package local

import (
	"sync"
	"time"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"
	tmprotoversion "github.com/tendermint/tendermint/proto/tendermint/version"
	tmtypes "github.com/tendermint/tendermint/types"
	tmversion "github.com/tendermint/tendermint/version"

	host "github.com/bpolania/near-cosmos-ibc/modules/core/24-host"
	corekeeper "github.com/bpolania/near-cosmos-ibc/modules/core/keeper"
	coretypes "github.com/bpolania/near-cosmos-ibc/modules/core/types"
	"github.com/bpolania/near-cosmos-ibc/relayer"
)

// DefaultBlockInterval is the simulated time between two blocks.
const DefaultBlockInterval = time.Second

type account struct {
	pubKey   crypto.PubKey
	sequence uint64
}

type block struct {
	signedHeader *tmtypes.SignedHeader
	valSet       *tmtypes.ValidatorSet
}

// Chain is an in-process chain running the IBC state machine over a provable
// State. Every transaction seals a block signed by the chain's validators, so
// a real tendermint light client on a counterparty chain can follow it.
type Chain struct {
	mu sync.Mutex

	chainID string
	state   *State
	keeper  *corekeeper.Keeper

	valSet  *tmtypes.ValidatorSet
	signers []tmtypes.PrivValidator

	height        uint64
	now           time.Time
	blockInterval time.Duration

	blocks   map[uint64]block
	events   []relayer.Event
	accounts map[string]*account

	// event manager of the transaction under execution
	em *coretypes.EventManager
}

// NewChain creates a local chain with numValidators equal-power validators and
// commits its genesis block.
func NewChain(chainID string, numValidators int, start time.Time) *Chain {
	valSet, signers := makeValidators(numValidators)

	state := NewState(host.StoreKey)

	c := &Chain{
		chainID:       chainID,
		state:         state,
		valSet:        valSet,
		signers:       signers,
		now:           start,
		blockInterval: DefaultBlockInterval,
		blocks:        make(map[uint64]block),
		accounts:      make(map[string]*account),
		em:            coretypes.NewEventManager(),
	}
	c.keeper = corekeeper.NewKeeper(state.Store(host.StoreKey), c)

	c.commitBlock()
	return c
}

// makeValidators builds a validator set of equal-power validators along with
// the private validators ordered to match the set.
func makeValidators(n int) (*tmtypes.ValidatorSet, []tmtypes.PrivValidator) {
	validators := make([]*tmtypes.Validator, n)
	signersByAddress := make(map[string]tmtypes.PrivValidator, n)
	for i := 0; i < n; i++ {
		privVal := tmtypes.NewMockPV()
		pubKey, err := privVal.GetPubKey()
		if err != nil {
			panic(err)
		}
		validators[i] = tmtypes.NewValidator(pubKey, 1)
		signersByAddress[pubKey.Address().String()] = privVal
	}

	valSet := tmtypes.NewValidatorSet(validators)

	// MakeCommit matches signatures to validators by index, so the signers
	// must be in validator set order
	signers := make([]tmtypes.PrivValidator, n)
	for i, val := range valSet.Validators {
		signers[i] = signersByAddress[val.Address.String()]
	}
	return valSet, signers
}

// ChainID implements coretypes.BlockInfo.
func (c *Chain) ChainID() string { return c.chainID }

// BlockHeight implements coretypes.BlockInfo. It returns the height of the
// block under execution.
func (c *Chain) BlockHeight() uint64 { return c.height + 1 }

// BlockTime implements coretypes.BlockInfo.
func (c *Chain) BlockTime() int64 { return c.now.UnixNano() }

// EventManager implements coretypes.BlockInfo.
func (c *Chain) EventManager() *coretypes.EventManager { return c.em }

// Keeper exposes the chain's IBC keeper for direct state queries.
func (c *Chain) Keeper() *corekeeper.Keeper { return c.keeper }

// ValidatorSet returns the chain's current validator set.
func (c *Chain) ValidatorSet() *tmtypes.ValidatorSet { return c.valSet }

// Signers returns the chain's private validators in validator set order.
func (c *Chain) Signers() []tmtypes.PrivValidator { return c.signers }

// RegisterAccount registers the public key of a transaction signer.
func (c *Chain) RegisterAccount(name string, pubKey crypto.PubKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[name] = &account{pubKey: pubKey}
}

// AccountSequence returns the next expected sequence of the account.
func (c *Chain) AccountSequence(name string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[name]
	if !ok {
		return 0, sdkerrors.Wrap(coretypes.ErrUnknownAccount, name)
	}
	return acc.sequence, nil
}

// AdvanceTime moves the chain's clock forward. The next committed block
// carries the advanced timestamp.
func (c *Chain) AdvanceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CommitBlock seals an empty block. Tests use it to advance the chain height
// and timestamp without submitting transactions.
func (c *Chain) CommitBlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitBlock()
}

// SendTx verifies the transaction envelope, executes its messages and seals a
// block with the result. A failed message rolls back all state changes of the
// transaction.
func (c *Chain) SendTx(tx *coretypes.Tx) (*relayer.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := tx.ValidateBasic(); err != nil {
		return nil, err
	}

	acc, ok := c.accounts[tx.Signer]
	if !ok {
		return nil, sdkerrors.Wrap(coretypes.ErrUnknownAccount, tx.Signer)
	}
	if tx.Sequence != acc.sequence {
		return nil, sdkerrors.Wrapf(coretypes.ErrInvalidSequence,
			"expected sequence %d, got %d", acc.sequence, tx.Sequence)
	}
	if err := tx.VerifySignature(c.chainID, acc.pubKey); err != nil {
		return nil, err
	}

	snapshot := c.state.snapshotWorking()
	c.em = coretypes.NewEventManager()

	for _, msg := range tx.Msgs {
		if err := c.keeper.Dispatch(msg); err != nil {
			c.state.restoreWorking(snapshot)
			return nil, err
		}
	}

	acc.sequence++

	height := c.height + 1
	txEvents := c.em.Events()
	c.commitBlock()

	for _, event := range txEvents {
		c.events = append(c.events, relayer.Event{
			Height: height,
			Type:   event.Type,
			Attrs:  event.Attributes,
		})
	}

	return &relayer.TxResult{
		Height: height,
		Events: txEvents,
	}, nil
}

// Execute runs an application operation against the keeper inside its own
// block, capturing emitted events the way a transaction would. Modules use it
// to send packets, which have no message type of their own.
func (c *Chain) Execute(fn func(k *corekeeper.Keeper) error) (*relayer.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.state.snapshotWorking()
	c.em = coretypes.NewEventManager()

	if err := fn(c.keeper); err != nil {
		c.state.restoreWorking(snapshot)
		return nil, err
	}

	height := c.height + 1
	txEvents := c.em.Events()
	c.commitBlock()

	for _, event := range txEvents {
		c.events = append(c.events, relayer.Event{
			Height: height,
			Type:   event.Type,
			Attrs:  event.Attributes,
		})
	}

	return &relayer.TxResult{
		Height: height,
		Events: txEvents,
	}, nil
}

// commitBlock seals the working state as the next block and signs its header
// with the chain's validators. Callers must hold c.mu.
func (c *Chain) commitBlock() {
	c.height++
	appHash := c.state.Commit(c.height)

	tmHeader := tmtypes.Header{
		Version:            tmprotoversion.Consensus{Block: tmversion.BlockProtocol, App: 1},
		ChainID:            c.chainID,
		Height:             int64(c.height),
		Time:               c.now,
		LastBlockID:        makeBlockID(make([]byte, tmhash.Size), 10_000, make([]byte, tmhash.Size)),
		LastCommitHash:     tmhash.Sum([]byte("last_commit_hash")),
		DataHash:           tmhash.Sum([]byte("data_hash")),
		ValidatorsHash:     c.valSet.Hash(),
		NextValidatorsHash: c.valSet.Hash(),
		ConsensusHash:      tmhash.Sum([]byte("consensus_hash")),
		AppHash:            appHash,
		LastResultsHash:    tmhash.Sum([]byte("last_results_hash")),
		EvidenceHash:       tmhash.Sum([]byte("evidence_hash")),
		ProposerAddress:    c.valSet.Proposer.Address,
	}

	blockID := makeBlockID(tmHeader.Hash(), 3, tmhash.Sum([]byte("part_set")))
	voteSet := tmtypes.NewVoteSet(c.chainID, tmHeader.Height, 1, tmproto.PrecommitType, c.valSet)
	commit, err := tmtypes.MakeCommit(blockID, tmHeader.Height, 1, voteSet, c.signers, c.now)
	if err != nil {
		panic(err)
	}

	c.blocks[c.height] = block{
		signedHeader: &tmtypes.SignedHeader{
			Header: &tmHeader,
			Commit: commit,
		},
		valSet: c.valSet,
	}

	c.now = c.now.Add(c.blockInterval)
}

// blockAt returns the committed block at the given height.
func (c *Chain) blockAt(height uint64) (block, error) {
	b, ok := c.blocks[height]
	if !ok {
		return block{}, errors.Errorf("chain %s has no block at height %d", c.chainID, height)
	}
	return b, nil
}

func makeBlockID(hash []byte, partSetSize uint32, partSetHash []byte) tmtypes.BlockID {
	return tmtypes.BlockID{
		Hash: hash,
		PartSetHeader: tmtypes.PartSetHeader{
			Total: partSetSize,
			Hash:  partSetHash,
		},
	}
}
