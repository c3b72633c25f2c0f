// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/xcross/xcross/internal/target"
)

const manifestName = "Cargo.toml"

// ErrNoManifest is returned when no Cargo.toml is found above the working
// directory.
var ErrNoManifest = errors.New("could not find " + manifestName + " in the current directory or any parent")

type (
	// cargoInvocation is a cargo command line and the parts xcross reads
	// from it.
	cargoInvocation struct {
		// Channel is the rustup toolchain of a leading "+channel" argument.
		Channel string
		// Target is the value of --target, or empty.
		Target target.Triple
		// TargetDir is the value of --target-dir, or empty.
		TargetDir string
		// Args are the arguments passed to cargo, without the channel.
		Args []string
	}

	manifest struct {
		Workspace *struct{} `toml:"workspace"`
	}
)

// parseCargoArgs splits a cargo command line. Arguments after "--" belong to
// the program cargo runs and are never read.
func parseCargoArgs(args []string) cargoInvocation {
	var inv cargoInvocation
	if len(args) > 0 && strings.HasPrefix(args[0], "+") {
		inv.Channel = strings.TrimPrefix(args[0], "+")
		args = args[1:]
	}
	inv.Args = append([]string(nil), args...)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if v, ok := flagValue(args, &i, "--target"); ok {
			inv.Target = target.Triple(v)
			continue
		}
		if v, ok := flagValue(args, &i, "--target-dir"); ok {
			inv.TargetDir = v
		}
	}
	return inv
}

// flagValue reads "--name value" or "--name=value" at args[*i], advancing
// *i past a separate value.
func flagValue(args []string, i *int, name string) (string, bool) {
	arg := args[*i]
	if v, ok := strings.CutPrefix(arg, name+"="); ok {
		return v, true
	}
	if arg == name && *i+1 < len(args) {
		*i++
		return args[*i], true
	}
	return "", false
}

// withTarget adds "--target t" after the cargo subcommand when the command
// line names none.
func (inv cargoInvocation) withTarget(t target.Triple) cargoInvocation {
	if inv.Target != "" || len(inv.Args) == 0 || strings.HasPrefix(inv.Args[0], "-") {
		return inv
	}
	args := make([]string, 0, len(inv.Args)+2)
	args = append(args, inv.Args[0], "--target", t.String())
	inv.Args = append(args, inv.Args[1:]...)
	inv.Target = t
	return inv
}

// findWorkspace returns the root of the cargo workspace containing dir: the
// nearest ancestor whose manifest has a [workspace] table, or else the
// directory of the nearest manifest.
func findWorkspace(dir string) (string, error) {
	nearest := ""
	for d := dir; ; d = filepath.Dir(d) {
		p := filepath.Join(d, manifestName)
		if _, err := os.Stat(p); err == nil {
			if nearest == "" {
				nearest = d
			}
			isWorkspace, err := declaresWorkspace(p)
			if err != nil {
				return "", err
			}
			if isWorkspace {
				return d, nil
			}
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	if nearest == "" {
		return "", fmt.Errorf("%w: %s", ErrNoManifest, dir)
	}
	return nearest, nil
}

func declaresWorkspace(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return m.Workspace != nil, nil
}

// homeDir returns the value of env, or dir under the user's home.
func (a *App) homeDir(env, dir string) (string, error) {
	if v, ok := a.LookupEnv(env); ok && v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", env, err)
	}
	return filepath.Join(home, dir), nil
}

// targetDir resolves the cargo target directory: --target-dir, then
// CARGO_TARGET_DIR, then "target" in the workspace root.
func (a *App) targetDir(inv cargoInvocation, cwd, root string) string {
	dir := inv.TargetDir
	if dir == "" {
		dir, _ = a.LookupEnv("CARGO_TARGET_DIR")
	}
	if dir == "" {
		return filepath.Join(root, "target")
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}
	return dir
}
