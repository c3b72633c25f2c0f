// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands of xcross.
//
// The root command runs cargo inside a target container. The volumes and
// containers subcommands administer what remote builds leave on an engine,
// and targets lists the built-in images.
package cmd
