package types

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

// Height is a monotonically increasing data type that can be compared against
// another Height for the purposes of updating and freezing clients.
//
// Normally the RevisionHeight is incremented at each height while keeping
// RevisionNumber the same. However some consensus algorithms may choose to
// reset the height in certain conditions e.g. hard forks, state-machine
// breaking changes. In these cases, the RevisionNumber is incremented so that
// height continues to be monotonically increasing even as the RevisionHeight
// gets reset.
type Height struct {
	RevisionNumber uint64 `json:"revision_number"`
	RevisionHeight uint64 `json:"revision_height"`
}

// NewHeight is a constructor for the Height type.
func NewHeight(revisionNumber, revisionHeight uint64) Height {
	return Height{
		RevisionNumber: revisionNumber,
		RevisionHeight: revisionHeight,
	}
}

// GetRevisionNumber returns the revision-number of the height.
func (h Height) GetRevisionNumber() uint64 {
	return h.RevisionNumber
}

// GetRevisionHeight returns the revision-height of the height.
func (h Height) GetRevisionHeight() uint64 {
	return h.RevisionHeight
}

// Compare implements a method to compare two heights. When comparing two
// heights a, b we can call a.Compare(b) which will return
// -1 if a < b
// 0  if a = b
// 1  if a > b
//
// It first compares based on revision numbers, whichever has the higher
// revision number is the higher height. If revision number is the same, then
// the revision height is compared.
func (h Height) Compare(other Height) int64 {
	var a, b big.Int
	if h.RevisionNumber != other.RevisionNumber {
		a.SetUint64(h.RevisionNumber)
		b.SetUint64(other.RevisionNumber)
	} else {
		a.SetUint64(h.RevisionHeight)
		b.SetUint64(other.RevisionHeight)
	}
	return int64(a.Cmp(&b))
}

// LT Helper comparison function returns true if h < other.
func (h Height) LT(other Height) bool {
	return h.Compare(other) == -1
}

// LTE Helper comparison function returns true if h <= other.
func (h Height) LTE(other Height) bool {
	return h.Compare(other) <= 0
}

// GT Helper comparison function returns true if h > other.
func (h Height) GT(other Height) bool {
	return h.Compare(other) == 1
}

// GTE Helper comparison function returns true if h >= other.
func (h Height) GTE(other Height) bool {
	return h.Compare(other) >= 0
}

// EQ Helper comparison function returns true if h == other.
func (h Height) EQ(other Height) bool {
	return h.Compare(other) == 0
}

// String returns a string representation of Height.
func (h Height) String() string {
	return fmt.Sprintf("%d-%d", h.RevisionNumber, h.RevisionHeight)
}

// Decrement will return a new height with the RevisionHeight decremented.
// If the RevisionHeight is already at lowest value (1), then false success
// flag is returned.
func (h Height) Decrement() (decremented Height, success bool) {
	if h.RevisionHeight <= 1 {
		return Height{}, false
	}
	return NewHeight(h.RevisionNumber, h.RevisionHeight-1), true
}

// Increment will return a height with the same revision number but an
// incremented revision height.
func (h Height) Increment() Height {
	return NewHeight(h.RevisionNumber, h.RevisionHeight+1)
}

// IsZero returns true if height revision and revision-height are both zero.
func (h Height) IsZero() bool {
	return h.RevisionNumber == 0 && h.RevisionHeight == 0
}

// ZeroHeight is a helper function which returns an uninitialized height.
func ZeroHeight() Height {
	return Height{}
}

// ParseHeight is a utility function that takes a string representation of the
// height and returns a Height struct.
func ParseHeight(heightStr string) (Height, error) {
	splitStr := strings.Split(heightStr, "-")
	if len(splitStr) != 2 {
		return Height{}, sdkerrors.Wrapf(ErrInvalidHeight, "expected height string format: {revision}-{height}. Got: %s", heightStr)
	}
	revisionNumber, err := strconv.ParseUint(splitStr[0], 10, 64)
	if err != nil {
		return Height{}, sdkerrors.Wrapf(ErrInvalidHeight, "invalid revision number. parse err: %s", err)
	}
	revisionHeight, err := strconv.ParseUint(splitStr[1], 10, 64)
	if err != nil {
		return Height{}, sdkerrors.Wrapf(ErrInvalidHeight, "invalid revision height. parse err: %s", err)
	}
	return NewHeight(revisionNumber, revisionHeight), nil
}

// IsRevisionFormat checks if a chainID is in the format required for parsing
// revisions. The chainID must be in the form: {chainID}-{revision}
var IsRevisionFormat = regexp.MustCompile(`^.*[^\n-]-{1}[1-9][0-9]*$`).MatchString

// ParseChainID is a utility function that returns an revision number from the
// given ChainID. ParseChainID attempts to parse a chain id in the format:
// {chainID}-{revision} and return the revisionNumber as a uint64.
// If the chainID is not in the expected format, a default revision value of 0
// is returned.
func ParseChainID(chainID string) uint64 {
	if !IsRevisionFormat(chainID) {
		// chainID is not in revision format, return 0 as default
		return 0
	}
	splitStr := strings.Split(chainID, "-")
	revision, err := strconv.ParseUint(splitStr[len(splitStr)-1], 10, 64)
	// sanity check: error should always be nil since regex only allows numbers
	// in last element
	if err != nil {
		return 0
	}
	return revision
}

// GetSelfHeight is a utility function that returns self height in the given
// revision derived from the chain id.
func GetSelfHeight(chainID string, height uint64) Height {
	return NewHeight(ParseChainID(chainID), height)
}
