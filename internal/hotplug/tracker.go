package hotplug

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cellbox/cellbox/internal/cpuset"
)

// Tracker records the CPUs offlined on behalf of cells. The set lives for
// as long as the hypervisor stays enabled; disable restores it best-effort.
type Tracker struct {
	ctrl Controller

	mu       sync.Mutex
	offlined cpuset.Set
}

func NewTracker(ctrl Controller) *Tracker {
	return &Tracker{ctrl: ctrl, offlined: cpuset.New(ctrl.PossibleCPUs())}
}

// OfflineAndRecord takes an online CPU offline and records it. It reports
// whether the CPU was actually offlined; CPUs already offline are left
// alone and not recorded.
func (t *Tracker) OfflineAndRecord(cpu int) (bool, error) {
	online, err := t.ctrl.IsOnline(cpu)
	if err != nil {
		return false, err
	}
	if !online {
		return false, nil
	}
	if err := t.ctrl.SetOnline(cpu, false); err != nil {
		return false, fmt.Errorf("offline cpu%d: %w", cpu, err)
	}
	t.mu.Lock()
	t.offlined.Add(cpu)
	t.mu.Unlock()
	return true, nil
}

// Rollback re-onlines the given CPUs, which were offlined earlier in the
// same operation, and drops them from the record. Failures are logged; the
// rollback keeps going.
func (t *Tracker) Rollback(cpus []int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cpu := range cpus {
		if !t.offlined.Contains(cpu) {
			continue
		}
		if err := t.ctrl.SetOnline(cpu, true); err != nil {
			slog.Warn("failed to roll back offlined CPU", "cpu", cpu, "err", err)
			continue
		}
		t.offlined.Remove(cpu)
	}
}

// RestoreAll brings every recorded CPU back online. Each CPU is attempted
// independently; a failure is a warning, never an error, and the record is
// cleared either way.
func (t *Tracker) RestoreAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cpu := range t.offlined.IDs() {
		if err := t.ctrl.SetOnline(cpu, true); err != nil {
			slog.Warn("failed to bring CPU back online", "cpu", cpu, "err", err)
		}
		t.offlined.Remove(cpu)
	}
}

// Offlined returns the recorded CPU ids.
func (t *Tracker) Offlined() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offlined.IDs()
}
