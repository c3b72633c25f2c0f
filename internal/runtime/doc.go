// SPDX-License-Identifier: MPL-2.0

// Package runtime runs a cargo command inside a container, either by
// bind-mounting the host directories (RunLocal) or, when the engine does not
// share our filesystem, by copying them into a data volume (RunRemote).
//
// Remote runs keep their data under MountPrefix and symlink it to the same
// paths a local run mounts, so the build sees one layout in both modes. A
// persistent volume named after the toolchain (see UniqueToolchainIdentifier)
// lets later runs copy only the files that changed since the last sync.
package runtime
