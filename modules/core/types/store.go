package types

// KVStore is the merkle-committed key/value store the IBC submodule keepers
// read and write through. Implementations must reflect writes in the
// application hash of the next committed block so that counterparty chains
// can verify them with merkle proofs.
type KVStore interface {
	// Get returns nil iff key doesn't exist. Panics on nil key.
	Get(key []byte) []byte

	// Has checks if a key exists. Panics on nil key.
	Has(key []byte) bool

	// Set sets the key. Panics on nil key or nil value.
	Set(key, value []byte)

	// Delete deletes the key. Panics on nil key.
	Delete(key []byte)
}

// BlockInfo provides the host chain context the IBC keepers need: the chain
// identifier, the height and time of the block being executed, and an event
// manager for the current transaction.
type BlockInfo interface {
	// ChainID returns the host chain identifier.
	ChainID() string

	// BlockHeight returns the height of the block under execution.
	BlockHeight() uint64

	// BlockTime returns the timestamp of the block under execution.
	BlockTime() int64 // unix nano

	// EventManager returns the event manager for the transaction under
	// execution.
	EventManager() *EventManager
}
