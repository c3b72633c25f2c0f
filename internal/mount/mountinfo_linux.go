// SPDX-License-Identifier: MPL-2.0

package mount

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/moby/sys/mountinfo"
)

var dockerContainerID = regexp.MustCompile(`/docker/(?:containers/)?([0-9a-f]{64})(?:/|$)`)

// ContainerIDFromMountInfo finds the id of the container we run in from
// /proc/self/mountinfo.
func ContainerIDFromMountInfo() (string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return "", err
	}
	defer f.Close()
	return containerIDFromReader(f)
}

func containerIDFromReader(r io.Reader) (string, error) {
	infos, err := mountinfo.GetMountsFromReader(r, nil)
	if err != nil {
		return "", fmt.Errorf("parse mountinfo: %w", err)
	}
	for _, info := range infos {
		for _, field := range []string{info.Root, info.Mountpoint, info.Source} {
			if m := dockerContainerID.FindStringSubmatch(field); m != nil {
				return m[1], nil
			}
		}
	}
	return "", ErrNoContainerID
}
