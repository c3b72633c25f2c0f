// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/xcross/xcross/internal/fingerprint"
	"github.com/xcross/xcross/internal/issue"
)

// removeListPath is where the list of files to delete is copied to.
const removeListPath = "/tmp/remove_list"

// copyToolchain fills an empty volume: xargo and cargo homes, then the
// parts of the sysroot a build for triple needs.
func (s *remoteSession) copyToolchain(ctx context.Context, triple string) error {
	if err := s.copyXargo(ctx); err != nil {
		return fmt.Errorf("copy xargo: %w", err)
	}
	if err := s.copyCargo(ctx); err != nil {
		return fmt.Errorf("copy cargo: %w", err)
	}
	if err := s.copyRust(ctx, triple); err != nil {
		return fmt.Errorf("copy rust: %w", err)
	}
	return nil
}

func (s *remoteSession) copyXargo(ctx context.Context) error {
	rel := relative(s.paths.Dirs.Toolchain.XargoMount)
	return s.copyInto(ctx, s.paths.Ensured.XargoHome, rel)
}

// copyCargo copies the cargo home. The registry and git caches are large
// and only copied when configured.
func (s *remoteSession) copyCargo(ctx context.Context) error {
	rel := relative(s.paths.Dirs.Toolchain.CargoMount)
	if s.opts.config().Remote.CopyRegistry {
		return s.copyInto(ctx, s.paths.Ensured.CargoHome, rel)
	}
	return s.copyTree(ctx, s.paths.Ensured.CargoHome, rel, skipCargoCaches)
}

// copyRust copies the sysroot, without the standard libraries of targets
// other than the host and triple.
func (s *remoteSession) copyRust(ctx context.Context, triple string) error {
	if err := s.copyRustBase(ctx); err != nil {
		return err
	}
	if err := s.copyRustManifest(ctx); err != nil {
		return err
	}
	host := s.opts.Toolchain.Host.String()
	if err := s.copyRustTriple(ctx, host, false); err != nil {
		return err
	}
	if triple != "" && triple != host {
		return s.copyRustTriple(ctx, triple, false)
	}
	return nil
}

// copyRustBase copies bin, libexec and etc, the shared libraries of lib,
// and the src and etc directories of lib/rustlib.
func (s *remoteSession) copyRustBase(ctx context.Context) error {
	sysroot := s.paths.Ensured.Sysroot
	rel := relative(s.paths.Dirs.Toolchain.SysrootMount)

	if err := s.createDir(ctx, path.Join(rel, "lib", "rustlib")); err != nil {
		return err
	}
	for _, dir := range []string{"bin", "libexec", "etc"} {
		src := filepath.Join(sysroot, dir)
		if !isDir(src) {
			continue
		}
		if err := s.copyInto(ctx, src, path.Join(rel, dir)); err != nil {
			return err
		}
	}

	stage, cleanup, err := s.stagingDir()
	if err != nil {
		return err
	}
	defer cleanup()

	links, err := stageTree(filepath.Join(sysroot, "lib"), filepath.Join(stage, "lib"), func(rel string, _ fs.DirEntry) bool {
		return rel == "rustlib"
	})
	if err != nil {
		return err
	}
	s.symlinks += links
	for _, dir := range []string{"src", "etc"} {
		src := filepath.Join(sysroot, "lib", "rustlib", dir)
		if !isDir(src) {
			continue
		}
		links, err := stageTree(src, filepath.Join(stage, "lib", "rustlib", dir), nil)
		if err != nil {
			return err
		}
		s.symlinks += links
	}
	return s.copyInto(ctx, stage, rel)
}

// copyRustManifest copies the files directly inside lib/rustlib, which
// list the installed components.
func (s *remoteSession) copyRustManifest(ctx context.Context) error {
	rustlib := filepath.Join(s.paths.Ensured.Sysroot, "lib", "rustlib")
	entries, err := os.ReadDir(rustlib)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil
	}

	stage, cleanup, err := s.stagingDir()
	if err != nil {
		return err
	}
	defer cleanup()
	if _, err := stageFiles(rustlib, stage, files); err != nil {
		return err
	}
	return s.copyInto(ctx, stage, path.Join(relative(s.paths.Dirs.Toolchain.SysrootMount), "lib", "rustlib"))
}

// copyRustTriple copies the standard library of triple. With skipExisting,
// a library already in the volume is kept, and a new one also refreshes
// the manifest files it changes.
func (s *remoteSession) copyRustTriple(ctx context.Context, triple string, skipExisting bool) error {
	rel := path.Join(relative(s.paths.Dirs.Toolchain.SysrootMount), "lib", "rustlib", triple)
	if skipExisting {
		exists, err := s.pathExists(ctx, path.Join(MountPrefix, rel))
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	src := filepath.Join(s.paths.Ensured.Sysroot, "lib", "rustlib", triple)
	if !isDir(src) {
		slog.Debug("standard library not installed", "target", triple, "path", src)
		return nil
	}
	if err := s.copyInto(ctx, src, rel); err != nil {
		return err
	}
	if skipExisting {
		return s.copyRustManifest(ctx)
	}
	return nil
}

// copyMount copies the local directory src to rel. With a persistent
// volume, only the changes since the last sync are applied, and the new
// fingerprint is stored once they are.
func (s *remoteSession) copyMount(ctx context.Context, src, rel string) error {
	var skip skipFunc
	if !s.copyCache {
		skip = skipCaches(src)
	}
	if !s.volume.IsKeep() {
		return s.copyTree(ctx, src, rel, skip)
	}

	store := s.opts.store()
	key := UniqueMountIdentifier(s.toolchainID, src)
	current, err := fingerprint.Walk(src, s.copyCache)
	if err != nil {
		return err
	}
	previous, found, err := store.Load(key)
	if err != nil {
		slog.Warn("ignoring unreadable fingerprint", "path", store.Path(key), "error", err)
		found = false
	}

	if found {
		exists, err := s.pathExists(ctx, path.Join(MountPrefix, rel))
		if err != nil {
			return err
		}
		if exists {
			toCopy, toRemove := fingerprint.Difference(previous, current)
			slog.Debug("syncing changed files", "path", src, "copy", len(toCopy), "remove", len(toRemove))
			if err := s.copyFileList(ctx, src, rel, toCopy); err != nil {
				return err
			}
			if err := s.removeFileList(ctx, rel, toRemove); err != nil {
				return err
			}
			return saveFingerprint(store, key, current)
		}
	}

	if err := s.copyTree(ctx, src, rel, skip); err != nil {
		return err
	}
	return saveFingerprint(store, key, current)
}

func saveFingerprint(store *fingerprint.Store, key string, fp fingerprint.Fingerprint) error {
	return issue.WrapWithContext(store.Save(key, fp), "save fingerprint", store.Path(key))
}

// copyTree stages src without the skipped entries, then copies the stage.
func (s *remoteSession) copyTree(ctx context.Context, src, rel string, skip skipFunc) error {
	stage, cleanup, err := s.stagingDir()
	if err != nil {
		return err
	}
	defer cleanup()

	links, err := stageTree(src, stage, skip)
	if err != nil {
		return err
	}
	s.symlinks += links
	return s.copyInto(ctx, stage, rel)
}

// copyFileList copies the listed files, relative to src, in one "cp".
func (s *remoteSession) copyFileList(ctx context.Context, src, rel string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	stage, cleanup, err := s.stagingDir()
	if err != nil {
		return err
	}
	defer cleanup()

	links, err := stageFiles(src, stage, files)
	if err != nil {
		return err
	}
	s.symlinks += links
	return s.copyInto(ctx, stage, rel)
}

// removeFileList deletes the listed files, relative to rel, with a script
// reading their paths from a list copied into the container.
func (s *remoteSession) removeFileList(ctx context.Context, rel string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	var list strings.Builder
	for _, f := range files {
		if strings.ContainsRune(f, '\n') {
			return fmt.Errorf("cannot remove %q: path contains a newline", f)
		}
		list.WriteString(path.Join(MountPrefix, rel, f))
		list.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(s.opts.tempDir(), "xcross-remove-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(list.String()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := s.command(ctx, "cp", "-a", tmp.Name(), s.name+":"+removeListPath); err != nil {
		return err
	}
	return s.exec(ctx, removeListScript(removeListPath))
}

func (s *remoteSession) stagingDir() (string, func(), error) {
	dir, err := os.MkdirTemp(s.opts.tempDir(), "xcross-stage-")
	if err != nil {
		return "", nil, err
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("could not remove staging directory", "path", dir, "error", err)
		}
	}, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
