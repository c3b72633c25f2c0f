// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/target"
	"github.com/xcross/xcross/internal/toolchain"
)

const (
	sysrootHashLen = 5
	cwdHashLen     = 5
	pathHashLen    = 10
)

// UniqueToolchainIdentifier names the persistent volume of a toolchain:
// "cross-<toolchain>-<sysroot hash>-<commit>". Two toolchains installed
// under the same name at different paths, or updated in place, get
// different identifiers.
func UniqueToolchainIdentifier(tc *toolchain.Toolchain) string {
	return fmt.Sprintf("%s-%s-%s", ToolchainVolumePrefix(tc), shortHash(tc.Sysroot, sysrootHashLen), tc.ShortCommit())
}

// ToolchainVolumePrefix is the part of the volume name shared by every
// version of the toolchain.
func ToolchainVolumePrefix(tc *toolchain.Toolchain) string {
	return container.VolumePrefix + tc.Name()
}

// UniqueContainerIdentifier names the container of one run. The timestamp
// keeps concurrent runs in the same directory apart.
func UniqueContainerIdentifier(toolchainID string, t target.Triple, cwd string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%d", toolchainID, t, shortHash(cwd, cwdHashLen), now.UnixMilli())
}

// UniqueMountIdentifier is the fingerprint key of a directory synced into a
// persistent volume.
func UniqueMountIdentifier(toolchainID, path string) string {
	return toolchainID + "-" + shortHash(path, pathHashLen)
}

func shortHash(s string, n int) string {
	return digest.FromString(s).Encoded()[:n]
}
