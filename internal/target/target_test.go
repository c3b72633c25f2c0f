// SPDX-License-Identifier: MPL-2.0

package target

import "testing"

func TestTriple_Platform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		triple  Triple
		arch    string
		os      string
		variant string
	}{
		{"x86_64-unknown-linux-gnu", "amd64", "linux", ""},
		{"aarch64-unknown-linux-gnu", "arm64", "linux", ""},
		{"armv7-unknown-linux-gnueabihf", "arm", "linux", "v7"},
		{"arm-unknown-linux-gnueabi", "arm", "linux", "v6"},
		{"riscv64gc-unknown-linux-gnu", "riscv64", "linux", ""},
		{"powerpc64le-unknown-linux-gnu", "ppc64le", "linux", ""},
		{"i686-linux-android", "386", "android", ""},
		{"x86_64-apple-darwin", "amd64", "darwin", ""},
		{"x86_64-pc-windows-gnu", "amd64", "windows", ""},
		{"x86_64-unknown-freebsd", "amd64", "freebsd", ""},
		{"x86_64-unknown-illumos", "amd64", "illumos", ""},
		{"thumbv7em-none-eabihf", "arm", "none", "v7"},
		{"loongarch64-unknown-linux-gnu", "loongarch64", "linux", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.triple), func(t *testing.T) {
			t.Parallel()
			if got := tt.triple.Arch(); got != tt.arch {
				t.Errorf("Arch() = %q, want %q", got, tt.arch)
			}
			if got := tt.triple.OS(); got != tt.os {
				t.Errorf("OS() = %q, want %q", got, tt.os)
			}
			if got := tt.triple.Variant(); got != tt.variant {
				t.Errorf("Variant() = %q, want %q", got, tt.variant)
			}
		})
	}
}

func TestTriple_NeedsSeccomp(t *testing.T) {
	t.Parallel()

	tests := map[Triple]bool{
		"armv7-linux-androideabi":       true,
		"i686-linux-android":            true,
		"aarch64-linux-android":         false,
		"armv7-unknown-linux-gnueabihf": false,
		"x86_64-unknown-linux-gnu":      false,
	}
	for triple, want := range tests {
		if got := triple.NeedsSeccomp(); got != want {
			t.Errorf("%s.NeedsSeccomp() = %v, want %v", triple, got, want)
		}
	}
}

func TestTriple_EnvKey(t *testing.T) {
	t.Parallel()

	if got := Triple("aarch64-unknown-linux-gnu").EnvKey(); got != "AARCH64_UNKNOWN_LINUX_GNU" {
		t.Errorf("EnvKey() = %q", got)
	}
}

func TestNormalizeArch(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"x86_64":  "amd64",
		"AMD64":   "amd64",
		"aarch64": "arm64",
		"arm64":   "arm64",
		"armv7l":  "arm",
		"s390x":   "s390x",
	} {
		if got := NormalizeArch(in); got != want {
			t.Errorf("NormalizeArch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTriple_DebArch(t *testing.T) {
	t.Parallel()

	tests := map[Triple]string{
		"x86_64-unknown-linux-gnu":        "amd64",
		"i686-unknown-linux-gnu":          "i386",
		"armv7-unknown-linux-gnueabihf":   "armhf",
		"arm-unknown-linux-gnueabi":       "armel",
		"powerpc64le-unknown-linux-gnu":   "ppc64el",
		"mips64el-unknown-linux-gnuabi64": "mips64el",
		"x86_64-pc-windows-gnu":           "",
		"aarch64-linux-android":           "",
	}
	for triple, want := range tests {
		if got := triple.DebArch(); got != want {
			t.Errorf("%s.DebArch() = %q, want %q", triple, got, want)
		}
	}
}
