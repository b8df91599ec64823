//go:build linux

package barrier

import "golang.org/x/sys/unix"

// pinToCPU binds the calling thread to one CPU. Best effort: the barrier
// still works unpinned, the participant just loses CPU affinity.
func pinToCPU(cpu int) {
	var set unix.CPUSet
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set)
}
