// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"slices"
	"testing"

	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/testutil/enginetest"
)

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts BuildOptions
		want []string
	}{
		{
			name: "dockerfile relative to context",
			opts: BuildOptions{ContextDir: "/work", Dockerfile: "Dockerfile.cross", Tag: "img:1"},
			want: []string{"build", "-f", "/work/Dockerfile.cross", "-t", "img:1", "/work"},
		},
		{
			name: "stdin dockerfile with sorted build args",
			opts: BuildOptions{
				Tag:       "img:pre-build",
				Platform:  "linux/amd64",
				BuildArgs: map[string]string{"Z": "1", "CROSS_BASE_IMAGE": "base"},
			},
			want: []string{
				"build", "-f", "-", "-t", "img:pre-build", "--platform", "linux/amd64",
				"--build-arg", "CROSS_BASE_IMAGE=base", "--build-arg", "Z=1", ".",
			},
		},
		{
			name: "labels before build args",
			opts: BuildOptions{
				ContextDir: "/work",
				Dockerfile: "/abs/Dockerfile",
				Labels:     map[string]string{"org.cross-rs.runs-with": "x86_64-unknown-linux-gnu", "org.cross-rs.for-cross-target": "aarch64-unknown-linux-gnu"},
				BuildArgs:  map[string]string{"CROSS_BASE_IMAGE": "base"},
			},
			want: []string{
				"build", "-f", "/abs/Dockerfile",
				"--label", "org.cross-rs.for-cross-target=aarch64-unknown-linux-gnu",
				"--label", "org.cross-rs.runs-with=x86_64-unknown-linux-gnu",
				"--build-arg", "CROSS_BASE_IMAGE=base", "/work",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BuildArgs(tt.opts); !slices.Equal(got, tt.want) {
				t.Errorf("BuildArgs() =\n%v\nwant\n%v", got, tt.want)
			}
		})
	}
}

func TestBuild_FailureIsActionable(t *testing.T) {
	t.Parallel()

	e, _ := newMockEngine(t, enginetest.Rules{
		{Prefix: []string{"build"}, Response: enginetest.Response{ExitCode: 1}},
	})

	err := e.Build(t.Context(), BuildOptions{Tag: "img:1", DockerfileContents: "FROM scratch\n"})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected ActionableError, got %v", err)
	}
	if ae.Resource != "img:1" || !ae.HasSuggestions() {
		t.Errorf("unexpected error context: %+v", ae)
	}
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed in chain: %v", err)
	}
}
