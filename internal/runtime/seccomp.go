// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xcross/xcross/pkg/platform"
)

// seccompFileName is written next to the build output of the target.
const seccompFileName = "seccomp.json"

// seccompProfile allows every system call except the ones that manage the
// kernel, mounts and namespaces. The engine's default profile denies
// personality(2), which 32-bit Android emulation needs.
//
//go:embed seccomp.json
var seccompProfile []byte

// seccompArgs returns the "--security-opt" arguments for the target. The
// profile is written under the target directory on first use; the engine
// CLI reads it on our side, so the path is a local one even for a remote
// engine.
func (o *Options) seccompArgs(paths *Paths) ([]string, error) {
	if !o.Target.NeedsSeccomp() {
		return nil, nil
	}
	// Docker Desktop on Windows fails to read a profile file.
	if o.Engine.IsDocker() && o.hostOS() == platform.Windows {
		return []string{"--security-opt", "seccomp=unconfined"}, nil
	}

	path := filepath.Join(paths.Ensured.TargetDir, o.Target.String(), seccompFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, seccompProfile, 0o644); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return []string{"--security-opt", "seccomp=" + path}, nil
}
