// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xcross/xcross/internal/toolchain"
)

func TestUniqueToolchainIdentifier(t *testing.T) {
	t.Parallel()

	tc := &toolchain.Toolchain{
		Sysroot:    "/home/me/.rustup/toolchains/stable-x86_64-unknown-linux-gnu",
		CommitHash: "129f3b9964af4d4a709d1383930ade12dfe7c081",
	}
	id := UniqueToolchainIdentifier(tc)
	assert.True(t, strings.HasPrefix(id, "cross-stable-x86_64-unknown-linux-gnu-"), id)
	assert.True(t, strings.HasSuffix(id, "-129f3b996"), id)
	assert.Equal(t, id, UniqueToolchainIdentifier(tc), "identifier must be stable")

	moved := *tc
	moved.Sysroot = "/opt/rust/toolchains/stable-x86_64-unknown-linux-gnu"
	assert.NotEqual(t, id, UniqueToolchainIdentifier(&moved))

	updated := *tc
	updated.CommitHash = "051478957371ee0084a7c0913941d2a8c4757bb9"
	assert.NotEqual(t, id, UniqueToolchainIdentifier(&updated))
	assert.True(t, strings.HasPrefix(UniqueToolchainIdentifier(&updated), ToolchainVolumePrefix(tc)+"-"))
}

func TestUniqueContainerIdentifier(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123)
	id := UniqueContainerIdentifier("cross-stable-abcde-129f3b996", testTarget, "/src/app", now)
	assert.True(t, strings.HasPrefix(id, "cross-stable-abcde-129f3b996-aarch64-unknown-linux-gnu-"), id)
	assert.True(t, strings.HasSuffix(id, "-1700000000123"), id)

	assert.NotEqual(t, id, UniqueContainerIdentifier("cross-stable-abcde-129f3b996", testTarget, "/src/other", now))
	assert.NotEqual(t, id, UniqueContainerIdentifier("cross-stable-abcde-129f3b996", testTarget, "/src/app", now.Add(time.Millisecond)))
}

func TestUniqueMountIdentifier(t *testing.T) {
	t.Parallel()

	a := UniqueMountIdentifier("cross-stable-abcde-129f3b996", "/src/app")
	b := UniqueMountIdentifier("cross-stable-abcde-129f3b996", "/src/lib")
	assert.NotEqual(t, a, b)
	assert.Len(t, strings.TrimPrefix(a, "cross-stable-abcde-129f3b996-"), pathHashLen)
}
