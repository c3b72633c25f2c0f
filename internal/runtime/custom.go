// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/image"
	"github.com/xcross/xcross/internal/target"
)

const (
	// CustomImagePrefix starts the name of every image built from a
	// Dockerfile or pre-build steps.
	CustomImagePrefix = "localhost/cross-rs/cross-custom-"

	// LabelDomain prefixes the labels of custom images.
	LabelDomain = "org.cross-rs"

	preBuildSuffix = "-pre-build"
)

// NeedsCustomImage reports whether the target is built in an image derived
// from the resolved one.
func NeedsCustomImage(opts *Options) bool {
	cfg := opts.config()
	return cfg.Target(opts.Target).Dockerfile != "" || len(cfg.PreBuild(opts.Target)) > 0
}

// BuildCustomImage builds the target's Dockerfile, then its pre-build steps
// on top, and returns the image to run. The Dockerfile receives the
// resolved image as the CROSS_BASE_IMAGE build argument.
func BuildCustomImage(ctx context.Context, opts *Options, paths *Paths) (image.Image, error) {
	if err := opts.validate(); err != nil {
		return image.Image{}, err
	}
	cfg := opts.config()
	tc := cfg.Target(opts.Target)
	img := opts.Image

	if tc.Dockerfile != "" {
		contextDir := tc.DockerfileContext
		if contextDir == "" {
			contextDir = paths.Dirs.Root
		}
		build := opts.buildOptions(paths, CustomImageName(paths.Dirs.Root, opts.Target, false))
		build.Dockerfile = tc.Dockerfile
		build.ContextDir = contextDir
		build.BuildArgs["CROSS_BASE_IMAGE"] = img.Name
		slog.Info("building custom image", "dockerfile", tc.Dockerfile, "tag", build.Tag)
		if err := opts.Engine.Build(ctx, build); err != nil {
			return image.Image{}, err
		}
		img = image.Image{Name: build.Tag, Platform: img.Platform}
	}

	if lines := cfg.PreBuild(opts.Target); len(lines) > 0 {
		build := opts.buildOptions(paths, CustomImageName(paths.Dirs.Root, opts.Target, true))
		build.ContextDir = paths.Dirs.Root
		if script, ok := preBuildScript(paths.Dirs.Root, lines); ok {
			build.DockerfileContents = scriptDockerfile(img.Name)
			build.BuildArgs["CROSS_SCRIPT"] = script
			build.BuildArgs["CROSS_TARGET"] = opts.Target.String()
		} else {
			build.DockerfileContents = preBuildDockerfile(img.Name)
			build.BuildArgs["CROSS_CMD"] = strings.Join(lines, "\n")
		}
		slog.Info("building pre-build image", "tag", build.Tag)
		if err := opts.Engine.Build(ctx, build); err != nil {
			return image.Image{}, err
		}
		img = image.Image{Name: build.Tag, Platform: img.Platform}
	}
	return img, nil
}

// buildOptions carries what both custom builds share: platform, labels and
// the target's Debian architecture.
func (o *Options) buildOptions(paths *Paths, tag string) container.BuildOptions {
	build := container.BuildOptions{
		Tag:       tag,
		Platform:  o.Image.Platform.DockerPlatform(),
		BuildArgs: map[string]string{},
		Labels: map[string]string{
			LabelDomain + ".for-cross-target": o.Target.String(),
			LabelDomain + ".runs-with":        o.Image.Platform.Target.String(),
			LabelDomain + ".workspace_root":   paths.Dirs.Root,
		},
		Stdout: o.Streams.Stderr,
		Stderr: o.Streams.Stderr,
	}
	if arch := o.Target.DebArch(); arch != "" {
		build.BuildArgs["CROSS_DEB_ARCH"] = arch
	}
	return build
}

// CustomImageName names the image built for the workspace at root.
func CustomImageName(root string, t target.Triple, preBuild bool) string {
	name := fmt.Sprintf("%s%s:%s-%s", CustomImagePrefix, dockerTagName(filepath.Base(root)), t, shortHash(root, 5))
	if preBuild {
		name += preBuildSuffix
	}
	return name
}

func preBuildDockerfile(base string) string {
	return "FROM " + base + "\n" +
		"ARG CROSS_DEB_ARCH=\n" +
		"ARG CROSS_CMD\n" +
		`RUN eval "${CROSS_CMD}"` + "\n"
}

func scriptDockerfile(base string) string {
	return "FROM " + base + "\n" +
		"ARG CROSS_DEB_ARCH=\n" +
		"ARG CROSS_SCRIPT\n" +
		"ARG CROSS_TARGET\n" +
		"COPY $CROSS_SCRIPT /pre-build-script\n" +
		"RUN chmod +x /pre-build-script\n" +
		"RUN /pre-build-script $CROSS_TARGET\n"
}

// preBuildScript reports whether a single pre-build line names a script in
// the workspace, and returns its slash-separated path relative to root.
func preBuildScript(root string, lines []string) (string, bool) {
	if len(lines) != 1 || strings.ContainsAny(lines[0], " \t\n") {
		return "", false
	}
	p := lines[0]
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() || !isWithin(p, root) {
		return "", false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// dockerTagName turns a directory name into a valid image name component:
// lowercase letters, digits, periods, dashes and at most two consecutive
// underscores.
func dockerTagName(name string) string {
	var b strings.Builder
	underscores := 0
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			underscores = 0
			b.WriteRune(r)
		case r == '_':
			if underscores < 2 {
				b.WriteRune(r)
			}
			underscores++
		}
	}
	if b.Len() == 0 {
		return "empty"
	}
	return b.String()
}
