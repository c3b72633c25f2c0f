// SPDX-License-Identifier: MPL-2.0

// Package container wraps the docker and podman command-line interfaces.
//
// ProbeEngine locates the engine binary, classifies it from its --help output
// and asks it which OS and architecture it runs containers on. The resulting
// Engine embeds BaseCLIEngine, through which every command is created, so
// tests can inject a fake exec function with WithExecCommand.
//
// Engine also carries the volume, container, copy and exec primitives used by
// the local and remote build protocols. Failed invocations are reported as
// *CommandError, which keeps the engine's stdout and stderr.
package container
