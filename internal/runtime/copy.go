// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xcross/xcross/internal/dirs"
)

// skipFunc reports whether the entry at rel, relative to the tree root,
// is left out of a copy. A skipped directory is not descended into.
type skipFunc func(rel string, d fs.DirEntry) bool

// stageTree copies the tree at src into dst, creating dst. Symlinks are
// copied as symlinks; sockets, devices and pipes are left out. It returns
// the number of symlinks copied.
func stageTree(src, dst string, skip skipFunc) (int, error) {
	symlinks := 0
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel != "." && skip != nil && skip(filepath.ToSlash(rel), d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		out := filepath.Join(dst, rel)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			symlinks++
			return copySymlink(p, out)
		case d.IsDir():
			return os.MkdirAll(out, 0o755)
		case d.Type().IsRegular():
			return copyFile(p, out)
		default:
			return nil
		}
	})
	return symlinks, err
}

// stageFiles copies the listed slash-separated paths, relative to src,
// into dst with their directories. It returns the number of symlinks copied.
func stageFiles(src, dst string, files []string) (int, error) {
	symlinks := 0
	for _, rel := range files {
		from := filepath.Join(src, filepath.FromSlash(rel))
		to := filepath.Join(dst, filepath.FromSlash(rel))
		info, err := os.Lstat(from)
		if err != nil {
			return symlinks, err
		}
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return symlinks, err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			symlinks++
			err = copySymlink(from, to)
		} else {
			err = copyFile(from, to)
		}
		if err != nil {
			return symlinks, err
		}
	}
	return symlinks, nil
}

// copyFile copies a regular file, keeping its permissions and modification
// time. Cargo decides what to rebuild from modification times.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(link, dst)
}

// skipCaches leaves out directories tagged with a cache directory tag.
func skipCaches(root string) skipFunc {
	return func(rel string, d fs.DirEntry) bool {
		return d.IsDir() && dirs.IsCacheDir(filepath.Join(root, filepath.FromSlash(rel)))
	}
}

// skipCargoCaches leaves out the registry and git caches of a cargo home,
// along with its dotfiles.
func skipCargoCaches(rel string, d fs.DirEntry) bool {
	if strings.Contains(rel, "/") {
		return false
	}
	name := d.Name()
	return strings.HasPrefix(name, ".") || name == "git" || name == "registry"
}

// isWithin reports whether p is dir or lies below it.
func isWithin(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
