package types

import (
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

var (
	// DefaultIBCVersion represents the latest supported version of IBC used in
	// connection version negotiation. The current version supports only
	// ORDERED and UNORDERED channels.
	DefaultIBCVersion = NewVersion(DefaultIBCVersionIdentifier, []string{"ORDER_ORDERED", "ORDER_UNORDERED"})

	// DefaultIBCVersionIdentifier is the IBC v1.0.0 protocol version identifier.
	DefaultIBCVersionIdentifier = "1"
)

// Version defines the versioning scheme used to negotiate the IBC version in
// the connection handshake.
type Version struct {
	// unique version identifier
	Identifier string `json:"identifier"`
	// list of features compatible with the specified identifier
	Features []string `json:"features"`
}

// NewVersion returns a new instance of Version.
func NewVersion(identifier string, features []string) *Version {
	return &Version{
		Identifier: identifier,
		Features:   features,
	}
}

// GetCompatibleVersions returns a descending ordered set of compatible IBC
// versions for the caller chain's connection end.
func GetCompatibleVersions() []*Version {
	return []*Version{DefaultIBCVersion}
}

// ValidateVersion does basic validation of the version fields.
func ValidateVersion(version *Version) error {
	if version == nil {
		return sdkerrors.Wrap(ErrInvalidVersion, "version cannot be nil")
	}
	if version.Identifier == "" {
		return sdkerrors.Wrap(ErrInvalidVersion, "version identifier cannot be blank")
	}
	for i, feature := range version.Features {
		if feature == "" {
			return sdkerrors.Wrapf(ErrInvalidVersion, "feature cannot be blank, index %d", i)
		}
	}
	return nil
}

// VerifyProposedVersion verifies that the entire feature set in the proposed
// version is supported by this chain. If the feature set is empty it verifies
// that this is allowed for the specified version identifier.
func (version Version) VerifyProposedVersion(proposedVersion *Version) error {
	if proposedVersion.Identifier != version.Identifier {
		return sdkerrors.Wrapf(
			ErrVersionNegotiationFailed,
			"proposed version identifier does not equal supported version identifier (%s != %s)", proposedVersion.Identifier, version.Identifier,
		)
	}
	for _, proposedFeature := range proposedVersion.Features {
		if !contains(proposedFeature, version.Features) {
			return sdkerrors.Wrapf(
				ErrVersionNegotiationFailed,
				"proposed feature (%s) is not a supported feature set (%s)", proposedFeature, version.Features,
			)
		}
	}
	return nil
}

// VerifySupportedFeature takes in a version and feature string and returns
// true if the feature is supported by the version.
func (version Version) VerifySupportedFeature(feature string) bool {
	return contains(feature, version.Features)
}

// IsSupportedVersion returns true if the proposed version has a matching
// version identifier and its entire feature set is supported.
func IsSupportedVersion(supportedVersions []*Version, proposedVersion *Version) bool {
	supportedVersion, found := FindSupportedVersion(proposedVersion, supportedVersions)
	if !found {
		return false
	}
	if err := supportedVersion.VerifyProposedVersion(proposedVersion); err != nil {
		return false
	}
	return true
}

// FindSupportedVersion returns the version with a matching version identifier
// if it exists. The returned boolean is true if the version is found and
// false otherwise.
func FindSupportedVersion(version *Version, supportedVersions []*Version) (*Version, bool) {
	for _, supportedVersion := range supportedVersions {
		if version.Identifier == supportedVersion.Identifier {
			return supportedVersion, true
		}
	}
	return nil, false
}

// PickVersion iterates over the descending ordered set of compatible IBC
// versions and selects the first version with a version identifier that is
// supported by the counterparty. The returned version contains a feature
// set with the intersection of the features supported by the source and
// counterparty chains.
func PickVersion(supportedVersions, counterpartyVersions []*Version) (*Version, error) {
	for _, supportedVersion := range supportedVersions {
		// check if the source version is supported by the counterparty
		if counterpartyVersion, found := FindSupportedVersion(supportedVersion, counterpartyVersions); found {
			featureSet := getFeatureSetIntersection(supportedVersion.Features, counterpartyVersion.Features)
			if len(featureSet) == 0 {
				return nil, sdkerrors.Wrapf(ErrVersionNegotiationFailed, "none of the proposed features are supported by this chain, version identifier %s", supportedVersion.Identifier)
			}
			return NewVersion(supportedVersion.Identifier, featureSet), nil
		}
	}

	return nil, sdkerrors.Wrapf(
		ErrVersionNegotiationFailed,
		"failed to find a matching counterparty version (%v) from the supported version list (%v)", counterpartyVersions, supportedVersions,
	)
}

// getFeatureSetIntersection returns the intersections of source feature set
// and the counterparty feature set. This is done by iterating over all the
// features in the source version and seeing if they exist in the feature
// set for the counterparty version.
func getFeatureSetIntersection(sourceFeatureSet, counterpartyFeatureSet []string) (featureSet []string) {
	for _, feature := range sourceFeatureSet {
		if contains(feature, counterpartyFeatureSet) {
			featureSet = append(featureSet, feature)
		}
	}
	return featureSet
}

// contains returns true if the provided string element exists within the
// string set.
func contains(elem string, set []string) bool {
	for _, element := range set {
		if elem == element {
			return true
		}
	}
	return false
}
