// SPDX-License-Identifier: MPL-2.0

// Package toolchain describes the host Rust toolchain that is mounted or
// copied into build containers.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/xcross/xcross/internal/target"
)

// shortHashLen is the length of commit hashes in identifiers.
const shortHashLen = 9

type (
	// ExecCommandFunc creates the command used to query rustc.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Toolchain is an installed compiler toolchain.
	Toolchain struct {
		// Sysroot is the toolchain's root directory.
		Sysroot string
		// Host is the triple the compiler runs as.
		Host target.Triple
		// Version is the first line of "rustc -vV", such as
		// "rustc 1.79.0 (129f3b996 2024-06-10)". Empty when unknown.
		Version string
		// CommitHash is the full commit the compiler was built from, or "".
		CommitHash string
		// Release is the semantic version, such as "1.79.0" or "1.81.0-nightly".
		Release string
	}

	// ProbeOptions configure Probe.
	ProbeOptions struct {
		// Rustc is the compiler binary. Defaults to "rustc".
		Rustc string
		// Channel selects a rustup toolchain ("+nightly") when set.
		Channel string
		// ExecCommand defaults to exec.CommandContext.
		ExecCommand ExecCommandFunc
	}
)

// Probe queries rustc for its sysroot and version.
func Probe(ctx context.Context, opts ProbeOptions) (*Toolchain, error) {
	rustc := opts.Rustc
	if rustc == "" {
		rustc = "rustc"
	}
	execCommand := opts.ExecCommand
	if execCommand == nil {
		execCommand = exec.CommandContext
	}
	run := func(args ...string) (string, error) {
		if opts.Channel != "" {
			args = append([]string{"+" + strings.TrimPrefix(opts.Channel, "+")}, args...)
		}
		cmd := execCommand(ctx, rustc, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("%s %s: %w: %s", rustc, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
		}
		return strings.TrimSpace(stdout.String()), nil
	}

	sysroot, err := run("--print", "sysroot")
	if err != nil {
		return nil, err
	}
	if sysroot == "" {
		return nil, fmt.Errorf("%s printed an empty sysroot", rustc)
	}

	verbose, err := run("-vV")
	if err != nil {
		return nil, err
	}
	tc := ParseVersionVerbose(verbose)
	tc.Sysroot = sysroot
	if tc.Host == "" {
		return nil, fmt.Errorf("%s -vV reported no host triple", rustc)
	}
	return &tc, nil
}

// ParseVersionVerbose parses the output of "rustc -vV". Sysroot is left empty.
func ParseVersionVerbose(out string) Toolchain {
	var tc Toolchain
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if i == 0 {
			tc.Version = line
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "host":
			tc.Host = target.Triple(value)
		case "commit-hash":
			if value != "unknown" {
				tc.CommitHash = value
			}
		case "release":
			tc.Release = value
		}
	}
	return tc
}

// Name returns the toolchain's directory name, such as
// "stable-x86_64-unknown-linux-gnu".
func (t *Toolchain) Name() string {
	return filepath.Base(t.Sysroot)
}

// ShortCommit returns an identifier of the compiler build: the short commit
// hash, a hash of the version string when the commit is unknown, or
// "unknown".
func (t *Toolchain) ShortCommit() string {
	if len(t.CommitHash) >= shortHashLen {
		return t.CommitHash[:shortHashLen]
	}
	if t.Version == "" {
		return "unknown"
	}
	if commit, ok := commitFromVersion(t.Version); ok {
		return commit
	}
	return digest.FromString(t.Version).Encoded()[:shortHashLen]
}

// commitFromVersion extracts the hash from "rustc 1.79.0 (129f3b996 2024-06-10)".
func commitFromVersion(version string) (string, bool) {
	_, meta, ok := strings.Cut(version, "(")
	if !ok {
		return "", false
	}
	meta = strings.TrimSuffix(strings.TrimSpace(meta), ")")
	commit, date, ok := strings.Cut(meta, " ")
	if !ok || len(commit) < shortHashLen || !isHex(commit) || strings.Trim(date, "-0123456789") != "" {
		return "", false
	}
	return commit[:shortHashLen], true
}

func isHex(s string) bool {
	return strings.Trim(s, "0123456789abcdef") == ""
}

// VersionParts splits Release into major, minor and patch. Missing parts are "".
func (t *Toolchain) VersionParts() (major, minor, patch string) {
	core, _, _ := strings.Cut(t.Release, "-")
	parts := strings.SplitN(core, ".", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}

// RustlibDir returns the directory holding the standard library for triple.
func (t *Toolchain) RustlibDir(triple target.Triple) string {
	return filepath.Join(t.Sysroot, "lib", "rustlib", triple.String())
}

// HasTarget reports whether the standard library for triple is installed.
func (t *Toolchain) HasTarget(triple target.Triple) bool {
	info, err := os.Stat(t.RustlibDir(triple))
	return err == nil && info.IsDir()
}
