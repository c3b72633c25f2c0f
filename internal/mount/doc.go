// SPDX-License-Identifier: MPL-2.0

// Package mount translates paths seen inside a container into the paths the
// container engine's host sees, for when xcross itself runs in a container
// and starts sibling containers through the host's engine.
package mount
