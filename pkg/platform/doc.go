// SPDX-License-Identifier: MPL-2.0

// Package platform names the operating systems xcross tells apart, both as
// runtime.GOOS values of the host and as the OS of OCI image platforms.
package platform
