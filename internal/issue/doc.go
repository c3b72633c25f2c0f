// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError records the failed operation, the resource involved and
// remediation hints. Errors may link to a page of the Markdown issue catalog,
// which the CLI renders with glamour.
package issue
