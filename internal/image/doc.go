// SPDX-License-Identifier: MPL-2.0

// Package image resolves the container image a build runs in.
//
// Resolution has two stages. Resolve turns a target and its configuration
// into a PossibleImage: a qualified name plus every platform the image was
// built for, taken from the configuration or the embedded catalog. ToDefinite
// then picks the one platform that image will run as on a given engine.
package image
