// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/toolchain"
)

// VolumeID selects where a remote build keeps its data. The zero value is
// Discard.
type VolumeID struct {
	name string
}

// Discard uses an anonymous volume that is removed with the container, so
// every run copies everything.
var Discard = VolumeID{}

// Keep uses the persistent volume name, which already holds the toolchain.
func Keep(name string) VolumeID {
	return VolumeID{name: name}
}

// IsKeep reports whether the volume is persistent.
func (v VolumeID) IsKeep() bool { return v.name != "" }

// Name returns the persistent volume name, or "" for Discard.
func (v VolumeID) Name() string { return v.name }

// String implements fmt.Stringer.
func (v VolumeID) String() string {
	if v.IsKeep() {
		return "keep(" + v.name + ")"
	}
	return "discard"
}

// mountArg is the "-v" value binding the volume at MountPrefix. Naming only
// the container path makes the engine create an anonymous volume.
func (v VolumeID) mountArg() string {
	if v.IsKeep() {
		return v.name + ":" + MountPrefix
	}
	return MountPrefix
}

// ChooseVolume returns Keep when a persistent volume exists for exactly this
// toolchain. A volume left by another version of the toolchain is not
// reused; it only earns a warning.
func ChooseVolume(ctx context.Context, engine *container.Engine, tc *toolchain.Toolchain) (VolumeID, error) {
	id := UniqueToolchainIdentifier(tc)
	names, err := engine.VolumeList(ctx, container.VolumePrefix)
	if err != nil {
		return Discard, err
	}
	if slices.Contains(names, id) {
		return Keep(id), nil
	}

	prefix := ToolchainVolumePrefix(tc) + "-"
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			slog.Warn("a persistent volume exists for a different version of the toolchain; recreate it with `xcross volumes create`",
				"toolchain", tc.Name(), "volume", name)
			break
		}
	}
	return Discard, nil
}
