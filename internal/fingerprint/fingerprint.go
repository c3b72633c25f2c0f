// SPDX-License-Identifier: MPL-2.0

// Package fingerprint records the modification times of a directory tree so
// that a later sync can copy only what changed.
//
// A fingerprint is stored as one "<unix-millis>\t<relative-path>" line per
// file, sorted by path.
package fingerprint

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xcross/xcross/internal/dirs"
)

// Fingerprint maps slash-separated relative paths to modification times in
// milliseconds since the Unix epoch.
type Fingerprint map[string]int64

// Walk fingerprints every regular file and symlink under root. Directories
// tagged as caches are skipped unless includeCaches is set.
func Walk(root string, includeCaches bool) (Fingerprint, error) {
	fp := Fingerprint{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && !includeCaches && dirs.IsCacheDir(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		fp[filepath.ToSlash(rel)] = info.ModTime().UnixMilli()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fp, nil
}

// Read parses a stored fingerprint.
func Read(r io.Reader) (Fingerprint, error) {
	fp := Fingerprint{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if line == "" {
			continue
		}
		stamp, rel, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("fingerprint line %d: missing tab: %q", lineNo, line)
		}
		millis, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fingerprint line %d: %w", lineNo, err)
		}
		fp[rel] = millis
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fp, nil
}

// ReadFile reads a fingerprint from path.
func ReadFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Write stores fp, sorted by path.
func (fp Fingerprint) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, rel := range slices.Sorted(maps.Keys(fp)) {
		if _, err := fmt.Fprintf(bw, "%d\t%s\n", fp[rel], rel); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile replaces the fingerprint at path. The new contents are written
// to a sibling file first so a crash never leaves a truncated fingerprint.
func (fp Fingerprint) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fp.Write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Difference compares a previous fingerprint with the current one.
// toCopy holds files that were added or whose time changed; toRemove holds
// files that no longer exist. Both are sorted.
func Difference(previous, current Fingerprint) (toCopy, toRemove []string) {
	for rel, millis := range current {
		if old, ok := previous[rel]; !ok || old != millis {
			toCopy = append(toCopy, rel)
		}
	}
	for rel := range previous {
		if _, ok := current[rel]; !ok {
			toRemove = append(toRemove, rel)
		}
	}
	slices.Sort(toCopy)
	slices.Sort(toRemove)
	return toCopy, toRemove
}
