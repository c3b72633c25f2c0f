// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by the tests of several packages:
// environment and home directory overrides (MustSetenv, SetHomeDir), file
// tree fixtures (WriteFiles), a manually advanced clock for identifiers
// derived from the time (FakeClock), and a limit on concurrent tests that
// drive a real container engine (ContainerSemaphore).
//
// Engine invocations are faked by the enginetest subpackage.
package testutil
