// Package barrier implements the all-CPU rendezvous that drives a
// transition function on every online CPU at once and aggregates a single
// outcome. Participants cross a privilege boundary the issuer cannot
// observe with ordinary blocking primitives, so the issuer busy-waits on an
// atomic completion counter. There is no timeout: a participant that never
// acknowledges stalls the barrier indefinitely.
package barrier

import (
	"runtime"
	"sync/atomic"
)

// TransitionFunc runs exactly once on each participating CPU and returns
// the hypervisor's status code for that CPU.
type TransitionFunc func(cpu int) int32

// Executor dispatches fn once per CPU in a context bound to that CPU. It
// returns after dispatching; completion is observed through the barrier's
// counter, not through the executor.
type Executor interface {
	OnEachCPU(cpus []int, fn func(slot, cpu int))
}

// Outcome holds one result slot per participant. Each participant writes
// only its own slot; the issuer reduces after all have acknowledged, so
// disagreeing participants cannot race on a shared result.
type Outcome struct {
	cpus  []int
	codes []atomic.Int32
}

// OK reports whether every participant returned zero.
func (o *Outcome) OK() bool { return o.Code() == 0 }

// Code reduces the per-CPU results deterministically: the first nonzero
// code in ascending CPU id order wins. Cooperating CPUs are expected to
// report identical codes; this picks a stable answer when they do not.
func (o *Outcome) Code() int32 {
	winner := int32(0)
	winnerCPU := -1
	for i := range o.codes {
		if code := o.codes[i].Load(); code != 0 && (winnerCPU < 0 || o.cpus[i] < winnerCPU) {
			winner = code
			winnerCPU = o.cpus[i]
		}
	}
	return winner
}

// PerCPU returns the recorded code for one participant.
func (o *Outcome) PerCPU(cpu int) (int32, bool) {
	for i, c := range o.cpus {
		if c == cpu {
			return o.codes[i].Load(), true
		}
	}
	return 0, false
}

// Run drives fn through exec on every given CPU and spins until all of
// them have acknowledged. The issuing goroutine stays wired to its OS
// thread for the whole barrier so it cannot be migrated mid-transition.
func Run(exec Executor, cpus []int, fn TransitionFunc) Outcome {
	out := Outcome{
		cpus:  append([]int(nil), cpus...),
		codes: make([]atomic.Int32, len(cpus)),
	}
	if len(cpus) == 0 {
		return out
	}

	var done atomic.Int32

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	exec.OnEachCPU(out.cpus, func(slot, cpu int) {
		out.codes[slot].Store(fn(cpu))
		done.Add(1)
	})

	for done.Load() != int32(len(cpus)) {
		// cpu_relax equivalent; never a blocking wait.
		runtime.Gosched()
	}

	return out
}
