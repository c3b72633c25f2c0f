// SPDX-License-Identifier: MPL-2.0

// Package dirs computes the host directories a build mounts and the paths
// they appear at inside the container.
//
// Directory handling is split into two phases. Ensure touches the host
// filesystem: it creates every directory that will be mounted, since an
// engine asked to mount a missing path creates it owned by root. Resolve is
// pure and maps the ensured paths through the mount table.
package dirs

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/xcross/xcross/internal/mount"
)

// CacheDirTag marks the target directory as a cache for backup and sync
// tools. See https://bford.info/cachedir/.
const CacheDirTag = "Signature: 8a477f597d28d172789f06886806bc55\n" +
	"# This file is a cache directory tag created by cross.\n" +
	"# For information about cache directory tags see https://bford.info/cachedir/"

// CacheDirTagFile is the name of the cache directory marker.
const CacheDirTagFile = "CACHEDIR.TAG"

// DefaultMountRoot is where the project is mounted unless it keeps its host path.
const DefaultMountRoot = "/project"

// Fixed in-container locations of the toolchain directories.
const (
	CargoMount   = "/cargo"
	XargoMount   = "/xargo"
	SysrootMount = "/rust"
	TargetMount  = "/target"
)

type (
	// Inputs are the host paths a build needs, before they exist.
	Inputs struct {
		CargoHome     string
		XargoHome     string
		Sysroot       string
		WorkspaceRoot string
		TargetDir     string
		Cwd           string
		// NixStore is mounted read-only when set.
		NixStore string
	}

	// Ensured holds canonical host paths that exist.
	Ensured struct {
		CargoHome     string
		XargoHome     string
		Sysroot       string
		WorkspaceRoot string
		TargetDir     string
		Cwd           string
		NixStore      string
		// CreatedTarget is set when Ensure created the target directory.
		CreatedTarget bool
	}

	// ToolchainDirectories are the toolchain paths on the engine host and in
	// the container.
	ToolchainDirectories struct {
		CargoHost    string
		CargoMount   string
		XargoHost    string
		XargoMount   string
		SysrootHost  string
		SysrootMount string
		NixStore     string
	}

	// PackageDirectories are the project paths on the engine host and in the
	// container.
	PackageDirectories struct {
		TargetHost  string
		TargetMount string
		HostRoot    string
		MountRoot   string
		MountCwd    string
	}

	// Directories is everything a build mounts.
	Directories struct {
		Toolchain ToolchainDirectories
		Package   PackageDirectories
		// Root is the canonical local directory mounted at MountRoot.
		Root string
		// Cwd is the canonical host working directory.
		Cwd string
	}

	// ResolveOptions tune Resolve.
	ResolveOptions struct {
		// MountRootSameAsHost mounts the project at its host path rather
		// than at DefaultMountRoot.
		MountRootSameAsHost bool
	}
)

// Ensure creates the mounted directories and canonicalizes every path.
// The cache directory tag is written only when the target directory is
// created here, the way cargo does it.
func Ensure(in Inputs) (Ensured, error) {
	for _, dir := range []string{in.CargoHome, in.XargoHome} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Ensured{}, err
		}
	}

	created, err := ensureTargetDir(in.TargetDir)
	if err != nil {
		return Ensured{}, err
	}

	out := Ensured{CreatedTarget: created}
	for _, c := range []struct {
		dst *string
		src string
	}{
		{&out.CargoHome, in.CargoHome},
		{&out.XargoHome, in.XargoHome},
		{&out.Sysroot, in.Sysroot},
		{&out.WorkspaceRoot, in.WorkspaceRoot},
		{&out.TargetDir, in.TargetDir},
		{&out.Cwd, in.Cwd},
	} {
		if *c.dst, err = canonicalize(c.src); err != nil {
			return Ensured{}, err
		}
	}
	if in.NixStore != "" {
		if out.NixStore, err = canonicalize(in.NixStore); err != nil {
			return Ensured{}, err
		}
	}
	return out, nil
}

func ensureTargetDir(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(filepath.Join(dir, CacheDirTagFile), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return true, err
	}
	if _, err := f.WriteString(CacheDirTag); err != nil {
		_ = f.Close()
		return true, err
	}
	return true, f.Close()
}

func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// Resolve translates ensured host paths through finder and computes their
// in-container locations. A nil finder leaves paths unchanged.
func Resolve(e Ensured, finder *mount.MountFinder, opts ResolveOptions) (Directories, error) {
	if finder == nil {
		finder = &mount.MountFinder{}
	}
	host := func(p string) string {
		if p == "" {
			return ""
		}
		return finder.FindMountPath(p)
	}

	// The workspace root may sit below the current directory, in which case
	// the whole current directory is mounted.
	root := e.WorkspaceRoot
	if isWithin(e.WorkspaceRoot, e.Cwd) {
		root = e.Cwd
	}

	hostRoot := host(root)
	mountRoot := DefaultMountRoot
	if opts.MountRootSameAsHost {
		mountRoot = mount.ToContainerPath(hostRoot)
	}

	mountCwd := mountRoot
	if isWithin(e.Cwd, root) {
		mountCwd = joinRel(mountRoot, root, e.Cwd)
	}

	pkg := PackageDirectories{
		TargetHost:  host(e.TargetDir),
		TargetMount: TargetMount,
		HostRoot:    hostRoot,
		MountRoot:   mountRoot,
		MountCwd:    mountCwd,
	}
	if isWithin(e.TargetDir, root) {
		pkg.TargetMount = joinRel(mountRoot, root, e.TargetDir)
	}

	if pkg.HostRoot == "" {
		return Directories{}, errors.New("no project root: workspace root and cwd are empty")
	}

	return Directories{
		Toolchain: ToolchainDirectories{
			CargoHost:    host(e.CargoHome),
			CargoMount:   CargoMount,
			XargoHost:    host(e.XargoHome),
			XargoMount:   XargoMount,
			SysrootHost:  host(e.Sysroot),
			SysrootMount: SysrootMount,
			NixStore:     host(e.NixStore),
		},
		Package: pkg,
		Root:    root,
		Cwd:     e.Cwd,
	}, nil
}

// TargetInsideRoot reports whether the target directory is reached through
// the project mount rather than a mount of its own.
func (p PackageDirectories) TargetInsideRoot() bool {
	return p.TargetMount != TargetMount
}

// joinRel re-roots p, which lies within base, under the POSIX path mountBase.
func joinRel(mountBase, base, p string) string {
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." {
		return mountBase
	}
	return path.Join(mountBase, filepath.ToSlash(rel))
}

// isWithin reports whether p is dir or lies below it.
func isWithin(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
