// SPDX-License-Identifier: MPL-2.0

package fingerprint

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Store keeps fingerprints on disk, one file per key.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultStore returns the per-user store under the XDG cache directory.
func DefaultStore() *Store {
	return NewStore(filepath.Join(xdg.CacheHome, "xcross", "fingerprints"))
}

// Dir returns the directory fingerprints are kept in.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file a key is stored in.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Load returns the fingerprint stored under key. The second result is false
// when none has been stored.
func (s *Store) Load(key string) (Fingerprint, bool, error) {
	fp, err := ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return fp, true, nil
}

// Save stores fp under key.
func (s *Store) Save(key string, fp Fingerprint) error {
	return fp.WriteFile(s.Path(key))
}
