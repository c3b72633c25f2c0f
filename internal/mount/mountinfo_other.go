// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package mount

// ContainerIDFromMountInfo always fails: only Linux has /proc/self/mountinfo.
func ContainerIDFromMountInfo() (string, error) {
	return "", ErrNoContainerID
}
