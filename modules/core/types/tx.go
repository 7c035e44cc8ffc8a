package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/tendermint/tendermint/crypto"
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// Tx is the transaction envelope submitted to a chain. The signature covers
// the chain ID, the signer's account sequence and the messages, which prevents
// both cross-chain and same-chain replay.
type Tx struct {
	Msgs      []Msg  `json:"msgs"`
	Signer    string `json:"signer"`
	Sequence  uint64 `json:"sequence"`
	Signature []byte `json:"signature,omitempty"`
}

// NewTx creates an unsigned Tx.
func NewTx(signer string, sequence uint64, msgs ...Msg) *Tx {
	return &Tx{
		Msgs:     msgs,
		Signer:   signer,
		Sequence: sequence,
	}
}

// ValidateBasic performs stateless validation of the transaction and all the
// messages it carries.
func (tx Tx) ValidateBasic() error {
	if len(tx.Msgs) == 0 {
		return ErrEmptyTx
	}
	if tx.Signer == "" {
		return sdkerrors.Wrap(ErrInvalidSignature, "signer cannot be empty")
	}
	for i, msg := range tx.Msgs {
		if err := msg.ValidateBasic(); err != nil {
			return sdkerrors.Wrapf(err, "invalid message at index %d", i)
		}
	}
	return nil
}

// SignBytes returns the canonical bytes to sign for the transaction on the
// chain with the given ID.
func (tx Tx) SignBytes(chainID string) ([]byte, error) {
	signDoc := struct {
		ChainID  string `json:"chain_id"`
		Signer   string `json:"signer"`
		Sequence uint64 `json:"sequence"`
		Msgs     []Msg  `json:"msgs"`
	}{
		ChainID:  chainID,
		Signer:   tx.Signer,
		Sequence: tx.Sequence,
		Msgs:     tx.Msgs,
	}
	return tmjson.Marshal(signDoc)
}

// Sign signs the transaction with the given private key and stores the
// signature in the envelope.
func (tx *Tx) Sign(chainID string, privKey crypto.PrivKey) error {
	signBytes, err := tx.SignBytes(chainID)
	if err != nil {
		return err
	}
	sig, err := privKey.Sign(signBytes)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// VerifySignature checks the transaction signature against the given public
// key.
func (tx Tx) VerifySignature(chainID string, pubKey crypto.PubKey) error {
	signBytes, err := tx.SignBytes(chainID)
	if err != nil {
		return err
	}
	if !pubKey.VerifySignature(signBytes, tx.Signature) {
		return sdkerrors.Wrapf(ErrInvalidSignature, "signature verification failed for signer %s", tx.Signer)
	}
	return nil
}

// Marshal serialises the transaction with the registered JSON codec.
func (tx Tx) Marshal() ([]byte, error) {
	return tmjson.Marshal(tx)
}

// UnmarshalTx parses a transaction serialised by Marshal.
func UnmarshalTx(bz []byte) (*Tx, error) {
	var tx Tx
	if err := tmjson.Unmarshal(bz, &tx); err != nil {
		return nil, sdkerrors.Wrapf(ErrUnknownMsgType, "could not unmarshal tx: %v", err)
	}
	return &tx, nil
}
