// SPDX-License-Identifier: MPL-2.0

// Package shellquote assembles the POSIX shell snippets run inside build
// containers.
package shellquote

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s quoted for a POSIX shell. Strings that need no quoting are
// returned unchanged.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	quoted, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// POSIX has no escape for some control characters; single quotes
		// still carry them literally.
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return quoted
}

// Join quotes each argument and joins them with spaces.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

// Fields splits s into words as a shell would, honoring quotes. Variables
// expand from the process environment; command substitution is an error.
func Fields(s string) ([]string, error) {
	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", s, err)
	}
	return fields, nil
}

// Validate parses script as POSIX shell.
func Validate(script string) error {
	_, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(strings.NewReader(script), "script")
	if err != nil {
		return fmt.Errorf("invalid shell script: %w", err)
	}
	return nil
}

// ToolCommand returns the "sh -c" script that runs tool (cargo or xargo)
// with args, with the mounted toolchain appended to PATH.
func ToolCommand(tool string, args []string) string {
	script := "PATH=$PATH:/rust/bin " + tool
	if len(args) > 0 {
		script += " " + Join(args)
	}
	return script
}
