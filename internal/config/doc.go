// SPDX-License-Identifier: MPL-2.0

// Package config loads the settings of one xcross invocation.
//
// Settings come from xcross.toml (or Cross.toml) in the workspace root, or
// the file named by --config or CROSS_CONFIG, overlaid with CROSS_*
// environment variables. The file is validated against an embedded CUE
// schema (config_schema.cue) before it is merged, so type errors name the
// offending field.
package config
