// SPDX-License-Identifier: MPL-2.0

package image

import "strings"

// Kinds of image reference, told apart by the first character.
const (
	// RefName is a full image name such as "ghcr.io/me/img:1".
	RefName ReferenceKind = iota
	// RefIdentifier is a bare ":tag" or "@digest".
	RefIdentifier
	// RefSubtarget is a bare "-sub" naming a sub-variant of the target's image.
	RefSubtarget
)

type (
	// ReferenceKind classifies an ImageReference.
	ReferenceKind int

	// ImageReference is an image as written in configuration.
	ImageReference struct {
		Kind  ReferenceKind
		Value string
	}

	// PossibleImage is a qualified image name and the platforms it was built
	// for. It becomes an Image once a platform is chosen for an engine.
	PossibleImage struct {
		Reference ImageReference
		Platforms []ImagePlatform
	}
)

// ParseReference classifies s.
func ParseReference(s string) ImageReference {
	switch {
	case strings.HasPrefix(s, "-"):
		return ImageReference{Kind: RefSubtarget, Value: s}
	case strings.HasPrefix(s, ":"), strings.HasPrefix(s, "@"):
		return ImageReference{Kind: RefIdentifier, Value: s}
	default:
		return ImageReference{Kind: RefName, Value: s}
	}
}

// String returns the reference as written.
func (r ImageReference) String() string {
	return r.Value
}

// IsQualified reports whether the reference is a full image name.
func (r ImageReference) IsQualified() bool {
	return r.Kind == RefName
}

// Qualify turns a bare fragment into a full name under repository. Full
// names are returned unchanged.
func (r ImageReference) Qualify(repository, targetName, defaultTag string) ImageReference {
	switch r.Kind {
	case RefIdentifier:
		return ImageReference{Kind: RefName, Value: repository + "/" + targetName + r.Value}
	case RefSubtarget:
		return ImageReference{Kind: RefName, Value: repository + "/" + targetName + ":" + defaultTag + r.Value}
	default:
		return r
	}
}

// String returns the image reference.
func (p PossibleImage) String() string {
	return p.Reference.String()
}
