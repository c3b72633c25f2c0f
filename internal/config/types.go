// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xcross/xcross/internal/image"
	"github.com/xcross/xcross/internal/target"
)

const (
	// MountRootProject mounts the workspace at /project.
	MountRootProject MountRoot = "project"
	// MountRootHost mounts the workspace at its host path.
	MountRootHost MountRoot = "host"
)

// ReservedEnvNames are set by xcross inside the container and cannot be
// passed through from the host.
var ReservedEnvNames = []string{
	"CROSS_RUNNER",
	"CARGO_HOME",
	"CARGO_TARGET_DIR",
	"XARGO_HOME",
	"PKG_CONFIG_ALLOW_CROSS",
}

var (
	// ErrInvalidEnvName is the sentinel error wrapped by InvalidEnvNameError.
	ErrInvalidEnvName = errors.New("invalid environment variable name")
	// ErrInvalidMountRoot is returned when a MountRoot value is not recognized.
	ErrInvalidMountRoot = errors.New("invalid mount root")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// MountRoot selects where the workspace is mounted in the container.
	MountRoot string

	// EnvConfig lists host variables forwarded into the container.
	EnvConfig struct {
		// Passthrough names host variables copied into the container.
		Passthrough []string `mapstructure:"passthrough"`
		// Volumes names variables holding host paths to mount. An entry may
		// also be NAME=path.
		Volumes []string `mapstructure:"volumes"`
	}

	// BuildConfig applies to every target.
	BuildConfig struct {
		Env           EnvConfig `mapstructure:"env"`
		Xargo         bool      `mapstructure:"xargo"`
		DefaultTarget string    `mapstructure:"default-target"`
		// PreBuild lines run as RUN steps of a derived image.
		PreBuild []string `mapstructure:"pre-build"`
	}

	// TargetConfig applies to one target triple.
	TargetConfig struct {
		// Image is a full image name, or a ":tag", "@digest" or "-sub"
		// fragment of the built-in image.
		Image string `mapstructure:"image"`
		// ImagePlatforms are the platforms Image was built for.
		ImagePlatforms []string  `mapstructure:"image-platforms"`
		Runner         string    `mapstructure:"runner"`
		Env            EnvConfig `mapstructure:"env"`
		// Dockerfile builds a custom image FROM the resolved one.
		Dockerfile        string   `mapstructure:"dockerfile"`
		DockerfileContext string   `mapstructure:"dockerfile-context"`
		PreBuild          []string `mapstructure:"pre-build"`
	}

	// ContainerConfig configures the container engine.
	ContainerConfig struct {
		Engine string `mapstructure:"engine"`
		Remote bool   `mapstructure:"remote"`
		// Opts are extra "run" options, split with shell rules.
		Opts        string    `mapstructure:"opts"`
		UID         *int      `mapstructure:"uid"`
		GID         *int      `mapstructure:"gid"`
		MountRoot   MountRoot `mapstructure:"mount-root"`
		InContainer *bool     `mapstructure:"in-container"`
	}

	// RemoteConfig tunes the copy-based protocol for remote engines.
	RemoteConfig struct {
		CopyRegistry       bool `mapstructure:"copy-registry"`
		CopyCache          bool `mapstructure:"copy-cache"`
		SkipBuildArtifacts bool `mapstructure:"skip-build-artifacts"`
	}

	// Config is the merged configuration of one invocation.
	Config struct {
		Build     BuildConfig             `mapstructure:"build"`
		Targets   map[string]TargetConfig `mapstructure:"target"`
		Container ContainerConfig         `mapstructure:"container"`
		Remote    RemoteConfig            `mapstructure:"remote"`

		// Source is the file the settings were read from, or "".
		Source string `mapstructure:"-"`
	}

	// InvalidEnvNameError reports a passthrough or volume entry that cannot
	// be forwarded. It wraps ErrInvalidEnvName.
	InvalidEnvNameError struct {
		Field  string
		Name   string
		Reason string
	}

	// InvalidMountRootError is returned when a MountRoot value is not recognized.
	InvalidMountRootError struct {
		Value MountRoot
	}

	// InvalidConfigError collects every validation failure of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the configuration used when no file or variable is set.
func DefaultConfig() *Config {
	return &Config{
		Targets:   map[string]TargetConfig{},
		Container: ContainerConfig{MountRoot: MountRootProject},
	}
}

// Error implements the error interface.
func (e *InvalidEnvNameError) Error() string {
	return fmt.Sprintf("%s: %q: %s", e.Field, e.Name, e.Reason)
}

// Unwrap returns ErrInvalidEnvName.
func (e *InvalidEnvNameError) Unwrap() error { return ErrInvalidEnvName }

// Error implements the error interface.
func (e *InvalidMountRootError) Error() string {
	return fmt.Sprintf("invalid mount root %q (valid: %s, %s)", e.Value, MountRootProject, MountRootHost)
}

// Unwrap returns ErrInvalidMountRoot.
func (e *InvalidMountRootError) Unwrap() error { return ErrInvalidMountRoot }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// IsValid reports whether the mount root is known. Empty means project.
func (m MountRoot) IsValid() (bool, []error) {
	switch m {
	case "", MountRootProject, MountRootHost:
		return true, nil
	default:
		return false, []error{&InvalidMountRootError{Value: m}}
	}
}

// IsValid checks every forwarded name. Passthrough entries are plain names;
// volume entries are NAME or NAME=path.
func (e EnvConfig) IsValid(field string) (bool, []error) {
	var errs []error
	for _, name := range e.Passthrough {
		if err := checkEnvName(field+".passthrough", name); err != nil {
			errs = append(errs, err)
		}
	}
	for _, entry := range e.Volumes {
		name, _, _ := strings.Cut(entry, "=")
		if err := checkEnvName(field+".volumes", name); err != nil {
			errs = append(errs, err)
		}
	}
	return len(errs) == 0, errs
}

// IsValid validates the whole configuration.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if _, fieldErrs := c.Build.Env.IsValid("build.env"); len(fieldErrs) > 0 {
		errs = append(errs, fieldErrs...)
	}
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, fieldErrs := c.Targets[name].Env.IsValid("target." + name + ".env"); len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
		}
	}
	if _, fieldErrs := c.Container.MountRoot.IsValid(); len(fieldErrs) > 0 {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func checkEnvName(field, name string) error {
	switch {
	case name == "":
		return &InvalidEnvNameError{Field: field, Name: name, Reason: "empty name"}
	case strings.ContainsAny(name, "= \t\n"):
		return &InvalidEnvNameError{Field: field, Name: name, Reason: "names cannot contain '=' or whitespace"}
	case name == "CROSS_RUNNER":
		return &InvalidEnvNameError{Field: field, Name: name, Reason: "set the runner with target.<triple>.runner or CROSS_TARGET_<TRIPLE>_RUNNER"}
	case slices.Contains(ReservedEnvNames, name):
		return &InvalidEnvNameError{Field: field, Name: name, Reason: "reserved by xcross"}
	}
	return nil
}

// Target returns the settings of t, or the zero value.
func (c *Config) Target(t target.Triple) TargetConfig {
	return c.Targets[t.String()]
}

// Passthrough returns the build-wide then per-target passthrough names,
// without duplicates.
func (c *Config) Passthrough(t target.Triple) []string {
	return mergeUnique(c.Build.Env.Passthrough, c.Target(t).Env.Passthrough)
}

// Volumes returns the build-wide then per-target volume entries, without
// duplicates.
func (c *Config) Volumes(t target.Triple) []string {
	return mergeUnique(c.Build.Env.Volumes, c.Target(t).Env.Volumes)
}

// PreBuild returns the target's pre-build lines, or the build-wide ones.
func (c *Config) PreBuild(t target.Triple) []string {
	if lines := c.Target(t).PreBuild; len(lines) > 0 {
		return lines
	}
	return c.Build.PreBuild
}

// Image returns the image configuration of t.
func (c *Config) Image(t target.Triple) image.ImageConfig {
	tc := c.Target(t)
	return image.ImageConfig{Image: tc.Image, Platforms: tc.ImagePlatforms}
}

// MountRootSameAsHost reports whether the workspace mounts at its host path.
func (c *Config) MountRootSameAsHost() bool {
	return c.Container.MountRoot == MountRootHost
}

func mergeUnique(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, s := range slices.Concat(a, b) {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
