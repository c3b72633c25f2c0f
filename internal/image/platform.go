// SPDX-License-Identifier: MPL-2.0

package image

import (
	"fmt"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/target"
)

// knownArchitectures are the OCI architectures an image platform may name.
var knownArchitectures = map[string]bool{
	"amd64": true, "arm64": true, "386": true, "arm": true,
	"ppc": true, "ppc64": true, "ppc64le": true, "riscv64": true, "s390x": true,
	"mips": true, "mipsle": true, "mips64": true, "mips64le": true,
	"sparc": true, "sparc64": true, "wasm32": true, "loongarch64": true,
}

type (
	// ImagePlatform is a platform an image can run on, together with the
	// toolchain triple the image's compiler runs as on that platform.
	ImagePlatform struct {
		Arch    string
		OS      string
		Variant string
		Target  target.Triple
	}

	// InvalidPlatformError is returned for a malformed platform string.
	InvalidPlatformError struct {
		Value  string
		Reason string
	}
)

// DefaultPlatform is the platform assumed when an image declares none.
var DefaultPlatform = ImagePlatformFromTarget(target.Baseline)

// Error implements the error interface.
func (e *InvalidPlatformError) Error() string {
	return fmt.Sprintf("invalid image platform %q: %s", e.Value, e.Reason)
}

// ImagePlatformFromTarget derives the platform a triple's toolchain runs on.
func ImagePlatformFromTarget(t target.Triple) ImagePlatform {
	return ImagePlatform{
		Arch:    t.Arch(),
		OS:      t.OS(),
		Variant: t.Variant(),
		Target:  t,
	}
}

// ParseImagePlatform parses a platform in one of these forms:
//
//	linux/amd64
//	linux/arm64[/v8]
//	<os>/<arch>[/<variant>]=<triple>
//	<triple>
func ParseImagePlatform(s string) (ImagePlatform, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "linux/amd64":
		return ImagePlatformFromTarget("x86_64-unknown-linux-gnu"), nil
	case "linux/arm64", "linux/arm64/v8":
		return ImagePlatformFromTarget("aarch64-unknown-linux-gnu"), nil
	case "":
		return ImagePlatform{}, &InvalidPlatformError{Value: s, Reason: "empty platform"}
	}

	spec, triple, hasTriple := strings.Cut(s, "=")
	if !hasTriple {
		if strings.Contains(s, "/") {
			return ImagePlatform{}, &InvalidPlatformError{Value: s, Reason: "expected <os>/<arch>[/<variant>]=<triple>"}
		}
		p := ImagePlatformFromTarget(target.Triple(s))
		if !knownArchitectures[p.Arch] {
			return ImagePlatform{}, &InvalidPlatformError{Value: s, Reason: "unknown architecture " + p.Arch}
		}
		return p, nil
	}

	parsed, err := v1.ParsePlatform(spec)
	if err != nil {
		return ImagePlatform{}, &InvalidPlatformError{Value: s, Reason: err.Error()}
	}
	if parsed.OS == "" || parsed.Architecture == "" {
		return ImagePlatform{}, &InvalidPlatformError{Value: s, Reason: "platform needs both an os and an architecture"}
	}
	if triple == "" {
		return ImagePlatform{}, &InvalidPlatformError{Value: s, Reason: "missing toolchain triple after '='"}
	}

	arch := target.NormalizeArch(parsed.Architecture)
	if !knownArchitectures[arch] {
		return ImagePlatform{}, &InvalidPlatformError{Value: s, Reason: "unknown architecture " + parsed.Architecture}
	}
	return ImagePlatform{
		Arch:    arch,
		OS:      target.NormalizeOS(parsed.OS),
		Variant: parsed.Variant,
		Target:  target.Triple(triple),
	}, nil
}

// DockerPlatform renders the platform as accepted by "--platform".
func (p ImagePlatform) DockerPlatform() string {
	s := p.OS + "/" + p.Arch
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}

// String renders the platform in the "<os>/<arch>[/<variant>]=<triple>" form.
func (p ImagePlatform) String() string {
	return p.DockerPlatform() + "=" + p.Target.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p ImagePlatform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ImagePlatform) UnmarshalText(text []byte) error {
	parsed, err := ParseImagePlatform(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PlatformFlag returns the "--platform" arguments needed to run an image of
// this platform on engine. None are needed when the engine already runs
// this exact platform.
func (p ImagePlatform) PlatformFlag(engine *container.Engine) []string {
	if p.Variant == "" && engine != nil && p.Arch == engine.Arch && p.OS == engine.OS {
		return nil
	}
	return []string{"--platform", p.DockerPlatform()}
}
