// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"testing"
)

func TestExitStatusIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     ExitStatus
		wantValid bool
	}{
		{name: "zero", value: 0, wantValid: true},
		{name: "one", value: 1, wantValid: true},
		{name: "engine failure", value: 125, wantValid: true},
		{name: "max", value: 255, wantValid: true},
		{name: "negative", value: -1, wantValid: false},
		{name: "too large", value: 256, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			isValid, errs := tt.value.IsValid()
			if isValid != tt.wantValid {
				t.Errorf("ExitStatus(%d).IsValid() = %v, want %v", tt.value, isValid, tt.wantValid)
			}
			if tt.wantValid {
				if len(errs) != 0 {
					t.Errorf("ExitStatus(%d).IsValid() returned errors: %v", tt.value, errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatal("IsValid() returned no errors for an invalid value")
			}
			if !errors.Is(errs[0], ErrInvalidExitStatus) {
				t.Errorf("error does not wrap ErrInvalidExitStatus: %v", errs[0])
			}
		})
	}
}

func TestStatusFromCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want ExitStatus
	}{
		{0, 0},
		{101, 101},
		{-1, 1},
		{256 + 3, 3},
	}

	for _, tt := range tests {
		if got := StatusFromCode(tt.code); got != tt.want {
			t.Errorf("StatusFromCode(%d) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestExitStatusIsEngineFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ExitStatus
		want   bool
	}{
		{0, false},
		{1, false},
		{101, false},
		{124, false},
		{125, true},
		{126, true},
		{127, true},
		{128, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsEngineFailure(); got != tt.want {
			t.Errorf("ExitStatus(%d).IsEngineFailure() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestExitStatusString(t *testing.T) {
	t.Parallel()

	if got := ExitStatus(101).String(); got != "101" {
		t.Errorf("String() = %q, want %q", got, "101")
	}
	if got := ExitStatus(3).Code(); got != 3 {
		t.Errorf("Code() = %d, want 3", got)
	}
}
