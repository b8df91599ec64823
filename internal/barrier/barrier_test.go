package barrier

import (
	"sync/atomic"
	"testing"
)

func TestRunAllZero(t *testing.T) {
	cpus := []int{0, 1, 2, 3}
	var calls atomic.Int32

	out := Run(ThreadExecutor{}, cpus, func(cpu int) int32 {
		calls.Add(1)
		return 0
	})

	if !out.OK() {
		t.Fatalf("outcome not OK, code %d", out.Code())
	}
	if calls.Load() != 4 {
		t.Fatalf("transition ran %d times, want 4", calls.Load())
	}
}

func TestRunExactlyOncePerCPU(t *testing.T) {
	cpus := []int{0, 1, 2, 3, 4, 5, 6, 7}
	counts := make([]atomic.Int32, len(cpus))

	out := Run(ThreadExecutor{}, cpus, func(cpu int) int32 {
		counts[cpu].Add(1)
		return 0
	})
	if !out.OK() {
		t.Fatalf("outcome not OK, code %d", out.Code())
	}
	for cpu := range counts {
		if n := counts[cpu].Load(); n != 1 {
			t.Fatalf("cpu%d ran %d times, want exactly once", cpu, n)
		}
	}
}

func TestReductionLowestCPUWins(t *testing.T) {
	// CPUs deliberately out of order: the reduction is by CPU id, not by
	// completion or slot order.
	cpus := []int{3, 1, 2}
	out := Run(ThreadExecutor{}, cpus, func(cpu int) int32 {
		switch cpu {
		case 3:
			return -5
		case 2:
			return -7
		default:
			return 0
		}
	})

	if out.OK() {
		t.Fatal("outcome OK despite nonzero participants")
	}
	if got := out.Code(); got != -7 {
		t.Fatalf("Code: got %d, want -7 (lowest failing CPU id)", got)
	}
}

func TestPerCPUSlots(t *testing.T) {
	cpus := []int{0, 1, 2}
	out := Run(ThreadExecutor{}, cpus, func(cpu int) int32 {
		return int32(-cpu)
	})

	for _, cpu := range cpus {
		code, ok := out.PerCPU(cpu)
		if !ok {
			t.Fatalf("no slot for cpu%d", cpu)
		}
		if code != int32(-cpu) {
			t.Fatalf("cpu%d slot: got %d, want %d", cpu, code, -cpu)
		}
	}
	if _, ok := out.PerCPU(9); ok {
		t.Fatal("PerCPU found a slot for a CPU that never participated")
	}
}

func TestRunNoParticipants(t *testing.T) {
	out := Run(ThreadExecutor{}, nil, func(cpu int) int32 {
		t.Error("transition ran with no participants")
		return 0
	})
	if !out.OK() {
		t.Fatalf("empty barrier not OK, code %d", out.Code())
	}
}
