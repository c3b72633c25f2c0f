// SPDX-License-Identifier: MPL-2.0

package mount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/issue"
)

var (
	// ErrUnsupportedGraphDriver is returned when the enclosing container does
	// not use the overlay2 storage driver.
	ErrUnsupportedGraphDriver = errors.New("unsupported graph driver")

	// ErrNoContainerID is returned when no container id can be found in the
	// mount table.
	ErrNoContainerID = errors.New("no container id found in mountinfo")
)

type (
	// MountDetail maps a path inside our container (Destination) to the
	// engine host path backing it (Source).
	MountDetail struct {
		Source      string
		Destination string
	}

	// MountFinder resolves container paths to host paths. The zero value
	// resolves every path to itself.
	MountFinder struct {
		mounts []MountDetail
	}

	// Inspector returns the raw JSON of "inspect <name>". *container.Engine
	// implements it.
	Inspector interface {
		Inspect(ctx context.Context, name string) (string, error)
	}

	// DiscoverOptions are the inputs to Discover.
	DiscoverOptions struct {
		// InContainer is false when xcross runs directly on the engine host.
		InContainer bool
		// Hostname is the name our container is inspected by. Defaults to $HOSTNAME.
		Hostname string
		// ContainerID is consulted when inspecting Hostname finds nothing.
		// Defaults to reading /proc/self/mountinfo.
		ContainerID func() (string, error)
	}

	inspectInfo struct {
		Mounts []struct {
			Source      string `json:"Source"`
			Destination string `json:"Destination"`
		} `json:"Mounts"`
		GraphDriver struct {
			Name string            `json:"Name"`
			Data map[string]string `json:"Data"`
		} `json:"GraphDriver"`
	}
)

// NewMountFinder returns a finder over mounts, most specific destination first.
func NewMountFinder(mounts ...MountDetail) *MountFinder {
	sorted := slices.Clone(mounts)
	slices.SortStableFunc(sorted, func(a, b MountDetail) int {
		return len(b.Destination) - len(a.Destination)
	})
	return &MountFinder{mounts: sorted}
}

// Discover builds the finder for the current process. Outside a container
// the finder is empty.
func Discover(ctx context.Context, inspector Inspector, opts DiscoverOptions) (*MountFinder, error) {
	if !opts.InContainer {
		return &MountFinder{}, nil
	}

	hostname := opts.Hostname
	if hostname == "" {
		hostname = os.Getenv("HOSTNAME")
	}
	containerID := opts.ContainerID
	if containerID == nil {
		containerID = ContainerIDFromMountInfo
	}

	var infos []inspectInfo
	var err error
	if hostname != "" {
		infos, err = inspect(ctx, inspector, hostname)
		if err != nil {
			return nil, discoverError(hostname, err)
		}
	}

	if len(infos) == 0 {
		id, idErr := containerID()
		if idErr != nil {
			return nil, discoverError(hostname, idErr)
		}
		infos, err = inspect(ctx, inspector, id)
		if err != nil {
			return nil, discoverError(id, err)
		}
		if len(infos) == 0 {
			return nil, discoverError(id, fmt.Errorf("container %s not found by the engine", id))
		}
	}

	mounts, err := parseMounts(infos[0])
	if err != nil {
		return nil, discoverError(hostname, err)
	}
	return NewMountFinder(mounts...), nil
}

// inspect runs "inspect name". A container the engine doesn't know yields
// an empty result rather than an error.
func inspect(ctx context.Context, inspector Inspector, name string) ([]inspectInfo, error) {
	out, err := inspector.Inspect(ctx, name)
	if err != nil {
		var ce *container.CommandError
		if errors.As(err, &ce) && errors.Is(err, container.ErrCommandFailed) {
			if stdout := strings.TrimSpace(ce.Stdout); stdout == "" || stdout == "[]" {
				return nil, nil
			}
		}
		return nil, err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var infos []inspectInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		return nil, fmt.Errorf("parse inspect output: %w", err)
	}
	return infos, nil
}

// parseMounts collects the user mounts of a container plus "/" mapped to
// the merged directory of its overlay root filesystem.
func parseMounts(info inspectInfo) ([]MountDetail, error) {
	mounts := make([]MountDetail, 0, len(info.Mounts)+1)
	for _, m := range info.Mounts {
		mounts = append(mounts, MountDetail{Source: m.Source, Destination: m.Destination})
	}

	if info.GraphDriver.Name != "overlay2" {
		return nil, fmt.Errorf("%w: want overlay2, got %q", ErrUnsupportedGraphDriver, info.GraphDriver.Name)
	}
	merged := info.GraphDriver.Data["MergedDir"]
	if merged == "" {
		return nil, errors.New("overlay2 graph driver reports no MergedDir")
	}
	return append(mounts, MountDetail{Source: merged, Destination: "/"}), nil
}

func discoverError(resource string, err error) error {
	return issue.NewErrorContext().
		WithOperation("read mounts of the enclosing container").
		WithResource(resource).
		WithSuggestion(fmt.Sprintf("Set %s=false if xcross is not running in a container", container.InContainerEnvVar)).
		WithIssue(issue.NestedContainerId).
		Wrap(err).
		BuildError()
}

// Mounts returns the mount table, most specific destination first.
func (f *MountFinder) Mounts() []MountDetail {
	return slices.Clone(f.mounts)
}

// FindMountPath returns the engine host path for p. The most specific mount
// whose destination is p or a parent directory of p wins; without one p is
// returned unchanged.
func (f *MountFinder) FindMountPath(p string) string {
	for _, m := range f.mounts {
		rest, ok := stripPathPrefix(p, m.Destination)
		if !ok {
			continue
		}
		if rest == "" {
			return m.Source
		}
		return path.Join(m.Source, rest)
	}
	return p
}

// stripPathPrefix removes the directory prefix from p, component-wise:
// "/a/bc" does not lie under "/a/b".
func stripPathPrefix(p, prefix string) (string, bool) {
	if prefix == "/" {
		return strings.TrimPrefix(p, "/"), strings.HasPrefix(p, "/")
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if p == prefix {
		return "", true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix)+1:], true
	}
	return "", false
}
