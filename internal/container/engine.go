// SPDX-License-Identifier: EPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/target"
)

const (
	// EngineEnvVar selects the engine binary by name or path.
	EngineEnvVar = "CROSS_CONTAINER_ENGINE"
	// RemoteEnvVar marks the engine as remote, enabling the copy-based protocol.
	RemoteEnvVar = "CROSS_REMOTE"
	// InContainerEnvVar declares that xcross itself runs inside a container.
	InContainerEnvVar = "CROSS_CONTAINER_IN_CONTAINER"

	// Docker is the default engine binary name.
	Docker = "docker"
	// Podman is the fallback engine binary name.
	Podman = "podman"
)

// Kinds of container engine, told apart by the output of "<engine> --help".
const (
	KindOther EngineKind = iota
	KindDocker
	KindPodman
	KindPodmanRemote
)

// ErrNoContainerEngine is returned when no engine could be found on the search path.
var ErrNoContainerEngine = errors.New("no container engine found")

type (
	// EngineKind classifies a container engine.
	EngineKind int

	// Engine describes the container engine used for one invocation. It is
	// immutable once probed.
	Engine struct {
		*BaseCLIEngine

		Kind EngineKind
		// Arch and OS are the OCI names reported by the engine's server, or
		// empty when every probe query failed.
		Arch string
		OS   string
		// InContainer is set when xcross itself runs inside a container and
		// host paths must be translated through the mount table.
		InContainer bool
		// IsRemote is set when the engine's daemon does not share our filesystem.
		IsRemote bool
	}

	// ProbeOptions are the inputs to ProbeEngine.
	ProbeOptions struct {
		// Explicit is an engine name or path; empty means auto-detect.
		Explicit string
		// Remote marks the engine as remote.
		Remote bool
		// InContainer overrides container detection when non-nil.
		InContainer *bool
		// LookPath resolves binary names. Defaults to exec.LookPath.
		LookPath func(string) (string, error)
		// DetectInContainer is used when InContainer is nil.
		DetectInContainer func() bool
	}
)

// String returns a human-readable name for the kind.
func (k EngineKind) String() string {
	switch k {
	case KindDocker:
		return "docker"
	case KindPodman:
		return "podman"
	case KindPodmanRemote:
		return "podman-remote"
	default:
		return "other"
	}
}

// IsPodman reports whether the kind is either flavor of podman.
func (k EngineKind) IsPodman() bool {
	return k == KindPodman || k == KindPodmanRemote
}

// ProbeOptionsFromEnv builds ProbeOptions from the CROSS_* environment.
func ProbeOptionsFromEnv(lookupEnv func(string) (string, bool)) ProbeOptions {
	opts := ProbeOptions{}
	if v, ok := lookupEnv(EngineEnvVar); ok {
		opts.Explicit = v
	}
	if v, ok := lookupEnv(RemoteEnvVar); ok {
		opts.Remote = parseBool(v)
	}
	if v, ok := lookupEnv(InContainerEnvVar); ok {
		b := parseBool(v)
		opts.InContainer = &b
	}
	return opts
}

// ProbeEngine locates and classifies the container engine. Probing is read-only.
func ProbeEngine(ctx context.Context, probe ProbeOptions, opts ...BaseCLIEngineOption) (*Engine, error) {
	lookPath := probe.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	path, err := resolveEnginePath(probe.Explicit, lookPath)
	if err != nil {
		return nil, err
	}

	base := NewBaseCLIEngine(path, append([]BaseCLIEngineOption{WithName(filepath.Base(path))}, opts...)...)

	help, err := base.RunCommand(ctx, "--help")
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("probe container engine").
			WithResource(path).
			WithSuggestion("Check that the engine is installed and runnable").
			Wrap(err).
			BuildError()
	}

	kind := classifyEngine(help)
	if kind == KindPodman && isRemotePodman(path) {
		kind = KindPodmanRemote
	}

	e := &Engine{
		BaseCLIEngine: base,
		Kind:          kind,
		IsRemote:      probe.Remote,
	}
	if e.NeedsRemote() {
		WithGlobalArgs("--remote")(base)
	}

	switch {
	case probe.InContainer != nil:
		e.InContainer = *probe.InContainer
	case probe.DetectInContainer != nil:
		e.InContainer = probe.DetectInContainer()
	default:
		e.InContainer = DetectInContainer()
	}

	arch, osName, probeErr := e.probePlatform(ctx)
	if probeErr != nil {
		slog.Warn("could not determine container engine platform", "engine", path, "error", probeErr)
	}
	e.Arch, e.OS = arch, osName

	return e, nil
}

// NewEngine describes an already-known engine without probing it. Platform
// and container fields are left for the caller to fill in.
func NewEngine(path string, kind EngineKind, opts ...BaseCLIEngineOption) *Engine {
	base := NewBaseCLIEngine(path, append([]BaseCLIEngineOption{WithName(filepath.Base(path))}, opts...)...)
	return &Engine{BaseCLIEngine: base, Kind: kind}
}

// NeedsRemote reports whether commands must carry --remote. Only podman
// reached in remote mode needs it; podman-remote and docker contexts don't.
func (e *Engine) NeedsRemote() bool {
	return e.IsRemote && e.Kind == KindPodman
}

// IsDocker reports whether the engine is docker.
func (e *Engine) IsDocker() bool {
	return e.Kind == KindDocker
}

// resolveEnginePath picks the engine binary: an explicit name or path if
// given, else docker, else podman.
func resolveEnginePath(explicit string, lookPath func(string) (string, error)) (string, error) {
	if explicit != "" {
		path, err := lookPath(explicit)
		if err != nil {
			return "", issue.NewErrorContext().
				WithOperation("find container engine").
				WithResource(explicit).
				WithSuggestion(fmt.Sprintf("Check the value of %s", EngineEnvVar)).
				WithIssue(issue.ContainerEngineNotFoundId).
				Wrap(fmt.Errorf("%w: %w", ErrNoContainerEngine, err)).
				BuildError()
		}
		return path, nil
	}

	for _, name := range []string{Docker, Podman} {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}

	return "", issue.NewErrorContext().
		WithOperation("find container engine").
		WithSuggestion("Install docker or podman and make sure it is on PATH").
		WithSuggestion(fmt.Sprintf("Or set %s to the engine binary", EngineEnvVar)).
		WithIssue(issue.ContainerEngineNotFoundId).
		Wrap(ErrNoContainerEngine).
		BuildError()
}

// classifyEngine inspects "--help" output for product fingerprints.
// An emulation layer that mentions docker (podman-docker) is not docker.
func classifyEngine(help string) EngineKind {
	out := strings.ToLower(help)
	switch {
	case strings.Contains(out, "podman-remote"):
		return KindPodmanRemote
	case strings.Contains(out, "podman"):
		return KindPodman
	case strings.Contains(out, "docker") && !strings.Contains(out, "emulate"):
		return KindDocker
	default:
		return KindOther
	}
}

// isRemotePodman reports whether the podman binary is a podman-remote build,
// either by name or through a symlink.
func isRemotePodman(binaryPath string) bool {
	if strings.Contains(filepath.Base(binaryPath), "remote") {
		return true
	}
	resolved, err := filepath.EvalSymlinks(binaryPath)
	if err != nil {
		return false
	}
	return strings.Contains(filepath.Base(resolved), "remote")
}

// probePlatform asks the engine for the OS and architecture it runs
// containers on. The server query is tried first, then the client query,
// then podman's info query. Each failure is kept so that, if all fail, the
// returned error explains every attempt.
func (e *Engine) probePlatform(ctx context.Context) (arch, osName string, err error) {
	queries := []struct {
		args  []string
		parse func(string) (string, string, bool)
	}{
		{[]string{"version", "-f", "{{ .Server.Os }},,,{{ .Server.Arch }}"}, parseVersionPlatform},
		{[]string{"version", "-f", "{{ .Client.Os }},,,{{ .Client.Arch }}"}, parseVersionPlatform},
	}
	if e.Kind != KindDocker {
		queries = append(queries, struct {
			args  []string
			parse func(string) (string, string, bool)
		}{[]string{"info", "-f", "{{ .Version.OsArch }}"}, parseOsArch})
	}

	var errs []error
	for _, q := range queries {
		out, runErr := e.queryWithRetry(ctx, q.args...)
		if runErr != nil {
			errs = append(errs, runErr)
			continue
		}
		a, o, ok := q.parse(out)
		if !ok {
			errs = append(errs, fmt.Errorf("unexpected output from %s %s: %q", e.Name(), strings.Join(q.args, " "), out))
			continue
		}
		return target.NormalizeArch(a), target.NormalizeOS(o), nil
	}
	return "", "", errors.Join(errs...)
}

// parseVersionPlatform parses "<os>,,,<arch>".
func parseVersionPlatform(out string) (arch, osName string, ok bool) {
	o, a, found := strings.Cut(strings.TrimSpace(out), ",,,")
	if !found || o == "" || a == "" || strings.Contains(o, "<no value>") || strings.Contains(a, "<no value>") {
		return "", "", false
	}
	return a, o, true
}

// parseOsArch parses podman's "<os>/<arch>".
func parseOsArch(out string) (arch, osName string, ok bool) {
	o, a, found := strings.Cut(strings.TrimSpace(out), "/")
	if !found || o == "" || a == "" {
		return "", "", false
	}
	return a, o, true
}

// DetectInContainer reports whether the current process appears to run
// inside a container.
func DetectInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}
	return false
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		// Non-boolean, non-empty values count as enabled.
		return strings.TrimSpace(v) != ""
	}
	return b
}
