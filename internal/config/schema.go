// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed config_schema.cue
var configSchema string

// validateSchema checks decoded file settings against the #Config schema.
func validateSchema(settings map[string]any, path string) error {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.Encode(settings)
	if userValue.Err() != nil {
		return formatSchemaError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatSchemaError(err, path)
	}
	return nil
}

// formatSchemaError renders CUE errors as "<file>: <field path>: <message>".
func formatSchemaError(err error, path string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.Join(cueerrors.Path(e), ".")
		msg := e.Error()
		if field != "" && strings.HasPrefix(msg, field) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, field), ":"))
		}
		if field != "" {
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}
