package types

import (
	"encoding/json"
	"fmt"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// Acknowledgement is the recommended acknowledgement format to be used by
// app-specific protocols. It is a result/error union: exactly one of the two
// fields is set.
type Acknowledgement struct {
	Result []byte `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewResultAcknowledgement returns a new instance of Acknowledgement using an
// Acknowledgement_Result type in the Response field.
func NewResultAcknowledgement(result []byte) Acknowledgement {
	return Acknowledgement{Result: result}
}

// NewErrorAcknowledgement returns a new instance of Acknowledgement using an
// Acknowledgement_Error type in the Response field.
func NewErrorAcknowledgement(err error) Acknowledgement {
	return Acknowledgement{Error: fmt.Sprintf("ABCI code: %s", err.Error())}
}

// Success implements the Acknowledgement interface. The acknowledgement is
// considered successful if it is a ResultAcknowledgement. Both a nil result
// and an ErrorAcknowledgement are unsuccessful.
func (ack Acknowledgement) Success() bool {
	return len(ack.Result) > 0
}

// Acknowledgement implements the Acknowledgement interface. It returns the
// acknowledgement serialised as JSON.
func (ack Acknowledgement) Acknowledgement() []byte {
	bz, err := json.Marshal(ack)
	if err != nil {
		panic(err)
	}
	return bz
}

// ValidateBasic performs a basic validation of the acknowledgement.
func (ack Acknowledgement) ValidateBasic() error {
	if ack.Success() && ack.Error != "" {
		return sdkerrors.Wrap(ErrInvalidAcknowledgement, "acknowledgement cannot have both a result and an error")
	}
	if !ack.Success() && ack.Error == "" {
		return sdkerrors.Wrap(ErrInvalidAcknowledgement, "acknowledgement must have either a result or an error")
	}
	return nil
}
