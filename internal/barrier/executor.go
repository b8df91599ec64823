package barrier

import "runtime"

// ThreadExecutor runs each participant on its own OS-thread-locked
// goroutine, pinned to the target CPU where the platform supports it.
// This is the closest userspace rendition of an IPI-driven cross call.
type ThreadExecutor struct{}

func (ThreadExecutor) OnEachCPU(cpus []int, fn func(slot, cpu int)) {
	for i, cpu := range cpus {
		go func(slot, cpu int) {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			pinToCPU(cpu)
			fn(slot, cpu)
		}(i, cpu)
	}
}

var _ Executor = ThreadExecutor{}
