// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants, shared by runtime.GOOS comparisons and OCI platforms.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
