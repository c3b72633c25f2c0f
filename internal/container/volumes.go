// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"strings"
)

// VolumePrefix is the prefix shared by every persistent volume xcross creates.
const VolumePrefix = "cross-"

// VolumeList returns the names of volumes whose name starts with prefix.
func (e *Engine) VolumeList(ctx context.Context, prefix string) ([]string, error) {
	out, err := e.queryWithRetry(ctx, "volume", "list", "--format", "{{.Name}}", "--filter", "name=^"+prefix)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// VolumeExists reports whether a volume with exactly this name exists.
func (e *Engine) VolumeExists(ctx context.Context, name string) (bool, error) {
	names, err := e.VolumeList(ctx, name)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// VolumeCreate creates a named volume.
func (e *Engine) VolumeCreate(ctx context.Context, name string) error {
	return e.RunCommandStatus(ctx, "volume", "create", name)
}

// VolumeRemove removes a named volume.
func (e *Engine) VolumeRemove(ctx context.Context, name string) error {
	return e.RunCommandStatus(ctx, "volume", "rm", name)
}

// VolumePrune removes all unused local volumes.
func (e *Engine) VolumePrune(ctx context.Context) error {
	return e.RunCommandStatus(ctx, "volume", "prune", "--force")
}

func splitLines(out string) []string {
	var lines []string
	for line := range strings.SplitSeq(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
