// SPDX-License-Identifier: MPL-2.0

package mount

import (
	"errors"
	"strings"
	"testing"
)

func TestContainerIDFromReader(t *testing.T) {
	t.Parallel()

	id := strings.Repeat("0123456789abcdef", 4)
	table := strings.Join([]string{
		"600 500 0:52 / / rw,relatime master:1 - overlay overlay rw,lowerdir=/l,upperdir=/u,workdir=/w",
		"601 600 0:54 / /proc rw,nosuid,nodev,noexec,relatime - proc proc rw",
		"620 600 8:1 /var/lib/docker/containers/" + id + "/resolv.conf /etc/resolv.conf rw,relatime - ext4 /dev/sda1 rw",
		"",
	}, "\n")

	got, err := containerIDFromReader(strings.NewReader(table))
	if err != nil {
		t.Fatalf("containerIDFromReader() error = %v", err)
	}
	if got != id {
		t.Errorf("containerIDFromReader() = %q, want %q", got, id)
	}
}

func TestContainerIDFromReader_NotFound(t *testing.T) {
	t.Parallel()

	table := "600 500 0:52 / / rw,relatime - overlay overlay rw\n" +
		"620 600 8:1 /docker/short /etc/hosts rw - ext4 /dev/sda1 rw\n"

	_, err := containerIDFromReader(strings.NewReader(table))
	if !errors.Is(err, ErrNoContainerID) {
		t.Fatalf("containerIDFromReader() error = %v, want ErrNoContainerID", err)
	}
}
