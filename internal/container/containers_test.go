// SPDX-License-Identifier: MPL-2.0

package container

import (
	"slices"
	"testing"

	"github.com/xcross/xcross/internal/testutil/enginetest"
)

func TestContainerState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stdout  string
		want    ContainerState
		wantErr bool
	}{
		{"absent", "", StateAbsent, false},
		{"running", "running\n", StateRunning, false},
		{"exited", "exited", StateExited, false},
		{"docker status text", "Up 3 minutes", StateRunning, false},
		{"unknown", "hibernating", StateAbsent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, recorder := newMockEngine(t, enginetest.Rules{
				{Prefix: []string{"ps"}, Response: enginetest.Response{Stdout: tt.stdout}},
			})

			got, err := e.ContainerState(t.Context(), "cross-abc")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ContainerState() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ContainerState() = %q, want %q", got, tt.want)
			}
			args, _ := recorder.Find("ps")
			if !enginetest.HasArgPair(args, "--filter", "name=^cross-abc$") {
				t.Errorf("expected exact name filter, got %v", args)
			}
		})
	}
}

func TestContainerState_Predicates(t *testing.T) {
	t.Parallel()

	if StateAbsent.Exists() {
		t.Error("absent container should not exist")
	}
	for _, s := range []ContainerState{StateCreated, StateExited, StateDead, StateRemoving} {
		if !s.IsStopped() {
			t.Errorf("%s should count as stopped", s)
		}
	}
	for _, s := range []ContainerState{StateRunning, StatePaused, StateRestarting} {
		if s.IsStopped() {
			t.Errorf("%s should not count as stopped", s)
		}
	}
}

func TestContainerList(t *testing.T) {
	t.Parallel()

	e, _ := newMockEngine(t, enginetest.Rules{
		{Prefix: []string{"ps"}, Response: enginetest.Response{Stdout: "cross-a-x86_64: Running\ncross-b-aarch64: exited\n"}},
	})

	got, err := e.ContainerList(t.Context(), "cross-")
	if err != nil {
		t.Fatalf("ContainerList() error = %v", err)
	}
	want := []ContainerSummary{
		{Name: "cross-a-x86_64", State: StateRunning},
		{Name: "cross-b-aarch64", State: StateExited},
	}
	if !slices.Equal(got, want) {
		t.Errorf("ContainerList() = %v, want %v", got, want)
	}
}

func TestExecArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts ExecOptions
		want []string
	}{
		{
			name: "plain",
			want: []string{"exec", "box", "true"},
		},
		{
			name: "interactive tty",
			opts: ExecOptions{Interactive: true, TTY: true, WorkDir: "/project", Env: []string{"A=1"}},
			want: []string{"exec", "-it", "-w", "/project", "-e", "A=1", "box", "true"},
		},
		{
			name: "interactive only",
			opts: ExecOptions{Interactive: true, User: "1000:1000"},
			want: []string{"exec", "-i", "--user", "1000:1000", "box", "true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExecArgs("box", tt.opts, "true"); !slices.Equal(got, tt.want) {
				t.Errorf("ExecArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStopAndRemoveArgs(t *testing.T) {
	t.Parallel()

	if got := StopArgs("box", 0); !slices.Equal(got, []string{"stop", "-t", "0", "box"}) {
		t.Errorf("StopArgs() = %v", got)
	}
	if got := RemoveArgs("box"); !slices.Equal(got, []string{"rm", "-f", "box"}) {
		t.Errorf("RemoveArgs() = %v", got)
	}
}

func TestVolumeExists(t *testing.T) {
	t.Parallel()

	e, recorder := newMockEngine(t, enginetest.Rules{
		{Prefix: []string{"volume", "list"}, Response: enginetest.Response{Stdout: "cross-stable-abcde-123\ncross-stable-abcde-1234\n"}},
	})

	ok, err := e.VolumeExists(t.Context(), "cross-stable-abcde-123")
	if err != nil || !ok {
		t.Fatalf("VolumeExists() = %v, %v; want true", ok, err)
	}
	ok, err = e.VolumeExists(t.Context(), "cross-stable-abcde-12")
	if err != nil || ok {
		t.Fatalf("prefix-only match must not count: %v, %v", ok, err)
	}
	args, _ := recorder.Find("volume", "list")
	if !enginetest.HasArgPair(args, "--format", "{{.Name}}") {
		t.Errorf("unexpected volume list args: %v", args)
	}
}

func TestCopyAndExec_ReportFailures(t *testing.T) {
	t.Parallel()

	e, _ := newMockEngine(t, enginetest.Rules{
		{Prefix: []string{"cp"}, Response: enginetest.Response{Stderr: "no such container", ExitCode: 1}},
		{Prefix: []string{"exec"}, Response: enginetest.Response{ExitCode: 3}},
	})

	err := e.Copy(t.Context(), "/src", "box:/dst")
	if ExitCodeOf(err) != 1 {
		t.Fatalf("Copy() error = %v, want exit status 1", err)
	}

	code, err := e.ExecStream(t.Context(), "box", ExecOptions{}, StreamOptions{}, "false")
	if err != nil {
		t.Fatalf("ExecStream() error = %v", err)
	}
	if code != 3 {
		t.Errorf("ExecStream() code = %d, want 3", code)
	}
}
