// SPDX-License-Identifier: MPL-2.0

package image

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/target"
)

// AltToolchainImage is the catalog row used when building with the
// alternative (zig) linker toolchain.
const AltToolchainImage = "zig"

type (
	// ImageConfig is the image configured for one target.
	ImageConfig struct {
		// Image is a full name, a ":tag"/"@digest" fragment, a "-sub" fragment,
		// or empty to use the catalog.
		Image string
		// Platforms are the platforms the configured image supports, in the
		// forms accepted by ParseImagePlatform.
		Platforms []string
	}

	// Image is a concrete image and the platform it will run as.
	Image struct {
		Name     string
		Platform ImagePlatform
	}

	// NoImageError is returned when no image is known for a target.
	NoImageError struct {
		Target string
	}

	// AmbiguousImageError is returned when the catalog lists several images
	// for a target and none is the default.
	AmbiguousImageError struct {
		Target     string
		Candidates []string
	}
)

// Error implements the error interface.
func (e *NoImageError) Error() string {
	return fmt.Sprintf("no container image is available for target %s; specify one in the configuration", e.Target)
}

// Error implements the error interface.
func (e *AmbiguousImageError) Error() string {
	return fmt.Sprintf("multiple images are available for target %s (%s); pick one in the configuration",
		e.Target, strings.Join(e.Candidates, ", "))
}

// Resolve picks the image for t: a configured image first, then the catalog.
func (c *Catalog) Resolve(t target.Triple, cfg ImageConfig, usesAltToolchain bool) (PossibleImage, error) {
	if cfg.Image != "" {
		return c.resolveConfigured(t, cfg)
	}

	targetName := t.String()
	if usesAltToolchain {
		targetName = AltToolchainImage
	}

	candidates := c.ForTarget(targetName)
	pick, err := c.selectCandidate(targetName, candidates)
	if err != nil {
		return PossibleImage{}, resolveError(t, err)
	}

	return PossibleImage{
		Reference: ImageReference{Kind: RefName, Value: pick.ImageName(c.repository, c.tag)},
		Platforms: pick.Platforms,
	}, nil
}

// Resolve resolves t against the embedded catalog.
func Resolve(t target.Triple, cfg ImageConfig, usesAltToolchain bool) (PossibleImage, error) {
	c, err := DefaultCatalog()
	if err != nil {
		return PossibleImage{}, err
	}
	return c.Resolve(t, cfg, usesAltToolchain)
}

func (c *Catalog) resolveConfigured(t target.Triple, cfg ImageConfig) (PossibleImage, error) {
	ref := ParseReference(cfg.Image).Qualify(c.repository, t.String(), c.tag)
	if _, err := name.ParseReference(ref.Value); err != nil {
		return PossibleImage{}, issue.NewErrorContext().
			WithOperation("resolve image").
			WithResource(t.String()).
			WithSuggestion(fmt.Sprintf("Check the image configured for %s", t)).
			WithIssue(issue.ImageNotFoundId).
			Wrap(fmt.Errorf("invalid image reference %q: %w", ref.Value, err)).
			BuildError()
	}

	p := PossibleImage{Reference: ref}
	for _, s := range cfg.Platforms {
		platform, err := ParseImagePlatform(s)
		if err != nil {
			return PossibleImage{}, issue.NewErrorContext().
				WithOperation("resolve image").
				WithResource(t.String()).
				WithSuggestion("Platforms are written as <os>/<arch>[/<variant>]=<triple>, or as a bare triple").
				Wrap(err).
				BuildError()
		}
		p.Platforms = append(p.Platforms, platform)
	}
	return p, nil
}

// selectCandidate applies the catalog selection rules: a lone default
// (no sub-variant) wins, then a lone candidate of any kind.
func (c *Catalog) selectCandidate(targetName string, candidates []ProvidedImage) (ProvidedImage, error) {
	if len(candidates) == 0 {
		return ProvidedImage{}, &NoImageError{Target: targetName}
	}

	var defaults []ProvidedImage
	for _, img := range candidates {
		if img.Sub == "" {
			defaults = append(defaults, img)
		}
	}
	switch {
	case len(defaults) == 1:
		return defaults[0], nil
	case len(candidates) == 1:
		return candidates[0], nil
	}

	names := make([]string, len(candidates))
	for i, img := range candidates {
		names[i] = img.ImageName(c.repository, c.tag)
	}
	return ProvidedImage{}, &AmbiguousImageError{Target: targetName, Candidates: names}
}

func resolveError(t target.Triple, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("resolve image").
		WithResource(t.String())
	switch err.(type) {
	case *AmbiguousImageError:
		ctx.WithIssue(issue.AmbiguousImageId).
			WithSuggestion(fmt.Sprintf("Set target.%s.image to one of the candidates", t))
	default:
		ctx.WithIssue(issue.ImageNotFoundId).
			WithSuggestion(fmt.Sprintf("Set target.%s.image in xcross.toml", t))
	}
	return ctx.Wrap(err).BuildError()
}

// ToDefinite chooses the platform p runs as on engine. The second result is
// set when the choice needs emulation or fell back to a guess, so the caller
// can warn.
//
// Priority with several platforms: same architecture and OS as the engine,
// then the only platform with the same architecture, then the same
// architecture on linux, then the first linux platform, then the first one.
// An engine whose platform is unknown is treated as linux/amd64.
func ToDefinite(p PossibleImage, engine *container.Engine) (Image, bool) {
	img := Image{Name: p.Reference.Value}

	engineArch, engineOS := "amd64", "linux"
	if engine != nil && engine.Arch != "" {
		engineArch = engine.Arch
	}
	if engine != nil && engine.OS != "" {
		engineOS = engine.OS
	}

	switch len(p.Platforms) {
	case 0:
		img.Platform = DefaultPlatform
		return img, img.Platform.Arch != engineArch
	case 1:
		img.Platform = p.Platforms[0]
		return img, img.Platform.Arch != engineArch
	}

	var sameArch []ImagePlatform
	for _, platform := range p.Platforms {
		if platform.Arch == engineArch {
			sameArch = append(sameArch, platform)
		}
	}

	for _, platform := range sameArch {
		if platform.OS == engineOS {
			img.Platform = platform
			return img, false
		}
	}
	if len(sameArch) == 1 {
		img.Platform = sameArch[0]
		return img, false
	}
	for _, platform := range sameArch {
		if platform.OS == "linux" {
			img.Platform = platform
			return img, false
		}
	}
	for _, platform := range p.Platforms {
		if platform.OS == "linux" {
			img.Platform = platform
			return img, true
		}
	}

	img.Platform = p.Platforms[0]
	return img, true
}

// PlatformFlag returns the "--platform" arguments for running the image on engine.
func (i Image) PlatformFlag(engine *container.Engine) []string {
	return i.Platform.PlatformFlag(engine)
}

// String returns the image name.
func (i Image) String() string {
	return i.Name
}
