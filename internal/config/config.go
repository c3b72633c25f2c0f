// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/target"
)

const (
	// FileName is the configuration file looked up in the workspace root.
	FileName = "xcross.toml"
	// LegacyFileName is accepted when FileName is absent.
	LegacyFileName = "Cross.toml"
	// ConfigEnvVar names an explicit configuration file.
	ConfigEnvVar = "CROSS_CONFIG"
	// ContainerOptsEnvVar holds extra "run" options.
	ContainerOptsEnvVar = "CROSS_CONTAINER_OPTS"
	// legacyContainerOptsEnvVar is read when ContainerOptsEnvVar is unset.
	legacyContainerOptsEnvVar = "DOCKER_OPTS"

	// keyDelimiter separates viper key segments. Target triples may contain
	// dots ("thumbv8m.main-none-eabi"), so the default "." cannot be used.
	keyDelimiter = "::"
)

type (
	envKind int

	// envBinding maps environment variables onto a settings key. The first
	// variable that is set wins.
	envBinding struct {
		key   string
		names []string
		kind  envKind
	}
)

const (
	envString envKind = iota
	envBool
	envInt
	envList
)

var envBindings = []envBinding{
	{key: "container::engine", names: []string{"CROSS_CONTAINER_ENGINE"}},
	{key: "container::remote", names: []string{"CROSS_REMOTE"}, kind: envBool},
	{key: "container::opts", names: []string{ContainerOptsEnvVar, legacyContainerOptsEnvVar}},
	{key: "container::uid", names: []string{"CROSS_CONTAINER_UID"}, kind: envInt},
	{key: "container::gid", names: []string{"CROSS_CONTAINER_GID"}, kind: envInt},
	{key: "container::in-container", names: []string{"CROSS_CONTAINER_IN_CONTAINER"}, kind: envBool},
	{key: "build::xargo", names: []string{"CROSS_BUILD_XARGO"}, kind: envBool},
	{key: "build::default-target", names: []string{"CROSS_BUILD_TARGET"}},
	{key: "build::env::passthrough", names: []string{"CROSS_BUILD_ENV_PASSTHROUGH"}, kind: envList},
	{key: "build::env::volumes", names: []string{"CROSS_BUILD_ENV_VOLUMES"}, kind: envList},
	{key: "build::pre-build", names: []string{"CROSS_BUILD_PRE_BUILD"}, kind: envList},
	{key: "remote::copy-registry", names: []string{"CROSS_REMOTE_COPY_REGISTRY"}, kind: envBool},
	{key: "remote::copy-cache", names: []string{"CROSS_REMOTE_COPY_CACHE"}, kind: envBool},
	{key: "remote::skip-build-artifacts", names: []string{"CROSS_REMOTE_SKIP_BUILD_ARTIFACTS"}, kind: envBool},
}

// targetEnvBindings are suffixes of CROSS_TARGET_<TRIPLE>_ and the target
// field each one sets.
var targetEnvBindings = []struct {
	suffix string
	field  string
	kind   envKind
}{
	{"IMAGE", "image", envString},
	{"IMAGE_PLATFORMS", "image-platforms", envList},
	{"RUNNER", "runner", envString},
	{"DOCKERFILE", "dockerfile", envString},
	{"DOCKERFILE_CONTEXT", "dockerfile-context", envString},
	{"ENV_PASSTHROUGH", "env::passthrough", envList},
	{"ENV_VOLUMES", "env::volumes", envList},
	{"PRE_BUILD", "pre-build", envList},
}

// loadWithOptions reads the file, overlays the environment and validates
// the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	defaults := DefaultConfig()
	v.SetDefault("container::mount-root", string(defaults.Container.MountRoot))

	path, err := resolveConfigPath(opts, lookupEnv)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := mergeFile(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file is valid TOML").
				WithSuggestion("Verify the values match the documented settings").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	if err := applyEnv(v, lookupEnv, opts.Target); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithSuggestion("Check the CROSS_* environment variables").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Targets == nil {
		cfg.Targets = map[string]TargetConfig{}
	}
	cfg.Source = path

	if ok, errs := cfg.IsValid(); !ok {
		resource := path
		if resource == "" {
			resource = "environment"
		}
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resource).
			WithSuggestion("Remove reserved names such as CARGO_HOME from env.passthrough").
			WithSuggestion("Set runners with target.<triple>.runner instead of passing CROSS_RUNNER").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, nil
}

// resolveConfigPath returns the file to load, or "" when none exists.
func resolveConfigPath(opts LoadOptions, lookupEnv func(string) (string, bool)) (string, error) {
	explicit := opts.ConfigFilePath
	if explicit == "" {
		if v, ok := lookupEnv(ConfigEnvVar); ok && v != "" {
			explicit = v
		}
	}
	if explicit != "" {
		if !fileExists(explicit) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(explicit).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion(fmt.Sprintf("Unset %s to use %s from the workspace", ConfigEnvVar, FileName)).
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", explicit)).
				BuildError()
		}
		return explicit, nil
	}

	if opts.WorkspaceRoot == "" {
		return "", nil
	}
	for _, name := range []string{FileName, LegacyFileName} {
		if path := filepath.Join(opts.WorkspaceRoot, name); fileExists(path) {
			return path, nil
		}
	}
	return "", nil
}

// mergeFile reads a TOML file, validates it against the schema and merges
// it into v.
func mergeFile(v *viper.Viper, path string) error {
	fv := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	fv.SetConfigFile(path)
	fv.SetConfigType("toml")
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	settings := fv.AllSettings()
	if err := validateSchema(settings, path); err != nil {
		return err
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// applyEnv overlays CROSS_* variables. Target variables apply to t, or to
// the default target when t is empty.
func applyEnv(v *viper.Viper, lookupEnv func(string) (string, bool), t target.Triple) error {
	if opts, ok := lookupEnv(ContainerOptsEnvVar); ok && opts != "" {
		if _, ok := lookupEnv(legacyContainerOptsEnvVar); ok {
			slog.Warn("both CROSS_CONTAINER_OPTS and DOCKER_OPTS are set; using CROSS_CONTAINER_OPTS")
		}
	}

	for _, b := range envBindings {
		for _, name := range b.names {
			raw, ok := lookupEnv(name)
			if !ok {
				continue
			}
			value, err := convertEnv(name, raw, b.kind)
			if err != nil {
				return err
			}
			v.Set(b.key, value)
			break
		}
	}

	if raw, ok := lookupEnv("CROSS_CONTAINER_MOUNT_ROOT_SAME_AS_HOST"); ok && parseBool(raw) {
		v.Set("container::mount-root", string(MountRootHost))
	}

	if t == "" {
		t = target.Triple(v.GetString("build::default-target"))
	}
	if t == "" {
		return nil
	}
	prefix := "CROSS_TARGET_" + t.EnvKey() + "_"
	for _, b := range targetEnvBindings {
		raw, ok := lookupEnv(prefix + b.suffix)
		if !ok {
			continue
		}
		value, err := convertEnv(prefix+b.suffix, raw, b.kind)
		if err != nil {
			return err
		}
		v.Set("target"+keyDelimiter+t.String()+keyDelimiter+b.field, value)
	}
	return nil
}

func convertEnv(name, raw string, kind envKind) (any, error) {
	switch kind {
	case envBool:
		return parseBool(raw), nil
	case envInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s: expected a non-negative integer, got %q", name, raw)
		}
		return n, nil
	case envList:
		return strings.Fields(raw), nil
	default:
		return raw, nil
	}
}

// parseBool accepts strconv booleans; any other non-empty value is true.
func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v != ""
	}
	return b
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
