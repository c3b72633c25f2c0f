// SPDX-License-Identifier: MPL-2.0

package image

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcross/xcross/internal/container"
)

func TestParseImagePlatform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ImagePlatform
	}{
		{"linux/amd64", ImagePlatform{Arch: "amd64", OS: "linux", Target: "x86_64-unknown-linux-gnu"}},
		{"linux/arm64", ImagePlatform{Arch: "arm64", OS: "linux", Target: "aarch64-unknown-linux-gnu"}},
		{"linux/arm64/v8", ImagePlatform{Arch: "arm64", OS: "linux", Target: "aarch64-unknown-linux-gnu"}},
		{"linux/arm/v7=armv7-unknown-linux-gnueabihf", ImagePlatform{Arch: "arm", OS: "linux", Variant: "v7", Target: "armv7-unknown-linux-gnueabihf"}},
		{"darwin/aarch64=aarch64-apple-darwin", ImagePlatform{Arch: "arm64", OS: "darwin", Target: "aarch64-apple-darwin"}},
		{"x86_64-pc-windows-msvc", ImagePlatform{Arch: "amd64", OS: "windows", Target: "x86_64-pc-windows-msvc"}},
		{"riscv64gc-unknown-linux-gnu", ImagePlatform{Arch: "riscv64", OS: "linux", Target: "riscv64gc-unknown-linux-gnu"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseImagePlatform(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseImagePlatform_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"linux/mystery=foo-unknown-linux-gnu",
		"linux=x86_64-unknown-linux-gnu",
		"linux/amd64=",
		"linux/s390x",
		"quantum-unknown-linux-gnu",
	} {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			_, err := ParseImagePlatform(in)
			var pe *InvalidPlatformError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, in, pe.Value)
		})
	}
}

func TestImagePlatform_TextRoundTrip(t *testing.T) {
	t.Parallel()

	p := ImagePlatform{Arch: "arm", OS: "linux", Variant: "v7", Target: "armv7-unknown-linux-gnueabihf"}
	text, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "linux/arm/v7=armv7-unknown-linux-gnueabihf", string(text))

	var back ImagePlatform
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, p, back)
}

func TestImagePlatform_PlatformFlag(t *testing.T) {
	t.Parallel()

	amd64 := &container.Engine{Arch: "amd64", OS: "linux"}
	arm64 := &container.Engine{Arch: "arm64", OS: "linux"}
	unknown := &container.Engine{}

	linuxAmd64, err := ParseImagePlatform("linux/amd64")
	require.NoError(t, err)
	armv7, err := ParseImagePlatform("linux/arm/v7=armv7-unknown-linux-gnueabihf")
	require.NoError(t, err)

	assert.Empty(t, linuxAmd64.PlatformFlag(amd64))
	assert.Equal(t, []string{"--platform", "linux/amd64"}, linuxAmd64.PlatformFlag(arm64))
	assert.Equal(t, []string{"--platform", "linux/amd64"}, linuxAmd64.PlatformFlag(unknown))
	assert.Equal(t, []string{"--platform", "linux/arm/v7"}, armv7.PlatformFlag(arm64))
}
