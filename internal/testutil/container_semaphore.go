// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
)

// ContainerParallelEnvVar overrides the number of tests that may drive a
// real container engine at once.
const ContainerParallelEnvVar = "XCROSS_TEST_CONTAINER_PARALLEL"

// ContainerSemaphore returns a process-wide buffered channel that limits concurrent
// container operations in tests. Acquire a slot by sending, release by receiving:
//
//	sem := testutil.ContainerSemaphore()
//	sem <- struct{}{}
//	defer func() { <-sem }()
//
// The capacity is ContainerParallelEnvVar when set, else min(GOMAXPROCS, 2).
// Podman on small CI runners hangs rather than failing when too many
// containers start together.
var ContainerSemaphore = sync.OnceValue(func() chan struct{} {
	return make(chan struct{}, containerParallelism(os.Getenv(ContainerParallelEnvVar)))
})

func containerParallelism(v string) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return min(runtime.GOMAXPROCS(0), 2)
}
