// SPDX-License-Identifier: MPL-2.0

package dirs

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IsCacheDir reports whether dir holds a valid cache directory tag.
func IsCacheDir(dir string) bool {
	f, err := os.Open(filepath.Join(dir, CacheDirTagFile))
	if err != nil {
		return false
	}
	defer f.Close()

	signature, _, _ := strings.Cut(CacheDirTag, "\n")
	buf := make([]byte, len(signature))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false
	}
	return string(buf) == signature
}
