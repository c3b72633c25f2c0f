// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xcross/xcross/internal/issue"
)

// BuildOptions contains options for building a custom image.
type BuildOptions struct {
	// ContextDir is the build context directory.
	ContextDir string
	// Dockerfile is the Dockerfile path, relative to ContextDir unless absolute.
	// When empty, the Dockerfile is read from DockerfileContents on stdin.
	Dockerfile string
	// DockerfileContents is used when Dockerfile is empty.
	DockerfileContents string
	// Tag is the image tag.
	Tag string
	// Platform is passed through as --platform when set.
	Platform string
	// BuildArgs are passed as --build-arg KEY=VALUE.
	BuildArgs map[string]string
	// Labels are passed as --label KEY=VALUE.
	Labels map[string]string
	Stdout    io.Writer
	Stderr    io.Writer
}

// BuildArgs constructs arguments for an image build command.
//
// Generated command: <binary> build [options] <context>
func BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	} else {
		args = append(args, "-f", "-")
	}

	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}
	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}

	// Sorted so the command line is reproducible.
	for _, k := range slices.Sorted(maps.Keys(opts.Labels)) {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, opts.Labels[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(opts.BuildArgs)) {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, opts.BuildArgs[k]))
	}

	contextDir := opts.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	return append(args, contextDir)
}

// Build builds an image.
func (e *Engine) Build(ctx context.Context, opts BuildOptions) error {
	streams := StreamOptions{Stdout: opts.Stdout, Stderr: opts.Stderr}
	if opts.Dockerfile == "" {
		streams.Stdin = strings.NewReader(opts.DockerfileContents)
	}

	code, err := e.RunCommandStream(ctx, streams, BuildArgs(opts)...)
	if err == nil && code != 0 {
		err = fmt.Errorf("%w: build exited with status %d", ErrCommandFailed, code)
	}
	if err != nil {
		return buildImageError(e.Name(), opts, err)
	}
	return nil
}

// buildImageError creates an actionable error for image build failures.
func buildImageError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image").
		WithIssue(issue.CustomImageBuildFailedId)

	switch {
	case opts.Dockerfile != "":
		ctx.WithResource(opts.Dockerfile)
	case opts.Tag != "":
		ctx.WithResource(opts.Tag)
	}

	ctx.WithSuggestion("Check Dockerfile syntax and pre-build commands for errors")
	ctx.WithSuggestion("Ensure the base image is available (try: " + engine + " pull <base-image>)")
	ctx.WithSuggestion("Run with --verbose to see the full build output")

	return ctx.Wrap(cause).BuildError()
}
