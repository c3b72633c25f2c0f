// SPDX-License-Identifier: MPL-2.0

// Package target describes compiler target triples and the properties the
// container layer derives from them.
package target

import (
	"strings"

	"github.com/xcross/xcross/pkg/platform"
)

const (
	// Baseline is the triple used when nothing else is known about a platform.
	Baseline Triple = "x86_64-unknown-linux-gnu"
)

// Triple is a compiler target identifier such as "aarch64-unknown-linux-gnu".
type Triple string

// String returns the triple as a string.
func (t Triple) String() string { return string(t) }

// ArchComponent returns the first dash-separated component of the triple.
func (t Triple) ArchComponent() string {
	arch, _, _ := strings.Cut(string(t), "-")
	return arch
}

// EnvKey returns the triple in the upper-case, underscore-separated form used
// by environment variables (CROSS_TARGET_<KEY>_IMAGE).
func (t Triple) EnvKey() string {
	return strings.ToUpper(strings.ReplaceAll(string(t), "-", "_"))
}

// IsWindows reports whether the triple targets Windows.
func (t Triple) IsWindows() bool { return strings.Contains(string(t), platform.Windows) }

// IsAndroid reports whether the triple targets Android.
func (t Triple) IsAndroid() bool { return strings.Contains(string(t), "android") }

// NeedsSeccomp reports whether builds for this triple need a relaxed seccomp
// profile. 32-bit Android emulation calls personality(2), which the engine's
// default profile blocks.
func (t Triple) NeedsSeccomp() bool {
	s := string(t)
	arch32 := strings.HasPrefix(s, "arm") ||
		strings.HasPrefix(s, "thumb") ||
		strings.HasPrefix(s, "i586") ||
		strings.HasPrefix(s, "i686")
	return arch32 && t.IsAndroid()
}

// NormalizeArch maps the architecture spellings reported by engines and used
// in triples onto the OCI names ("amd64", "arm64", ...). Unknown values are
// returned lower-cased.
func NormalizeArch(arch string) string {
	a := strings.ToLower(strings.TrimSpace(arch))
	switch {
	case a == "x86_64" || a == "x86-64" || a == "amd64":
		return "amd64"
	case a == "aarch64" || a == "arm64":
		return "arm64"
	case a == "i386" || a == "i586" || a == "i686" || a == "386" || a == "x86":
		return "386"
	case a == "powerpc64le" || a == "ppc64le":
		return "ppc64le"
	case a == "powerpc64" || a == "ppc64":
		return "ppc64"
	case a == "powerpc" || a == "ppc":
		return "ppc"
	case strings.HasPrefix(a, "riscv64"):
		return "riscv64"
	case a == "mips64el" || a == "mips64le":
		return "mips64le"
	case a == "mipsel" || a == "mipsle":
		return "mipsle"
	case strings.HasPrefix(a, "arm") || strings.HasPrefix(a, "thumb"):
		return "arm"
	case a == "sparcv9":
		return "sparc64"
	default:
		return a
	}
}

// NormalizeOS maps engine OS spellings onto the OCI names.
func NormalizeOS(os string) string {
	o := strings.ToLower(strings.TrimSpace(os))
	switch o {
	case "macos":
		return platform.Darwin
	default:
		return o
	}
}

// Arch returns the OCI architecture of the triple.
func (t Triple) Arch() string {
	return NormalizeArch(t.ArchComponent())
}

// OS returns the OCI operating system of the triple. Android is matched
// before Linux since Android triples also contain "linux".
func (t Triple) OS() string {
	s := string(t)
	switch {
	case strings.Contains(s, platform.Darwin) || strings.Contains(s, "apple"):
		return platform.Darwin
	case strings.Contains(s, "freebsd"):
		return "freebsd"
	case strings.Contains(s, "netbsd"):
		return "netbsd"
	case strings.Contains(s, "dragonfly"):
		return "dragonfly"
	case strings.Contains(s, "illumos"):
		return "illumos"
	case strings.Contains(s, "solaris"):
		return "solaris"
	case strings.Contains(s, "android"):
		return "android"
	case strings.Contains(s, platform.Linux):
		return platform.Linux
	case strings.Contains(s, platform.Windows):
		return platform.Windows
	default:
		return "none"
	}
}

// Variant returns the OCI architecture variant of the triple, or "".
func (t Triple) Variant() string {
	arch := t.ArchComponent()
	switch {
	case strings.HasPrefix(arch, "armv7") || strings.HasPrefix(arch, "thumbv7"):
		return "v7"
	case strings.HasPrefix(arch, "armv5"):
		return "v5"
	case arch == "arm" || strings.HasPrefix(arch, "armv6") || strings.HasPrefix(arch, "thumbv6"):
		return "v6"
	default:
		return ""
	}
}

// DebArch returns the Debian architecture of a Linux triple, or "" when
// there is none.
func (t Triple) DebArch() string {
	if t.OS() != platform.Linux {
		return ""
	}
	s := string(t)
	switch arch := t.Arch(); arch {
	case "amd64", "arm64", "riscv64", "s390x", "ppc64", "sparc64", "mips":
		return arch
	case "386":
		return "i386"
	case "ppc64le":
		return "ppc64el"
	case "ppc":
		return "powerpc"
	case "mipsle":
		return "mipsel"
	case "mips64le":
		return "mips64el"
	case "arm":
		if strings.HasSuffix(s, "hf") {
			return "armhf"
		}
		return "armel"
	default:
		return ""
	}
}
