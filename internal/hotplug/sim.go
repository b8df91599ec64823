package hotplug

import (
	"fmt"
	"sync"
)

// Sim is an in-memory hotplug controller for the simulation backend and the
// tests.
type Sim struct {
	mu       sync.Mutex
	possible int
	online   map[int]bool

	// FailOffline lists CPU ids whose offline attempt should fail,
	// to exercise rollback paths.
	FailOffline map[int]bool
	// FailOnline lists CPU ids whose re-online attempt should fail.
	FailOnline map[int]bool
}

// NewSim creates a simulated machine with the given CPUs all online.
func NewSim(possible int) *Sim {
	s := &Sim{possible: possible, online: make(map[int]bool, possible)}
	for cpu := 0; cpu < possible; cpu++ {
		s.online[cpu] = true
	}
	return s
}

func (s *Sim) PossibleCPUs() int { return s.possible }

func (s *Sim) OnlineCPUs() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cpus []int
	for cpu := 0; cpu < s.possible; cpu++ {
		if s.online[cpu] {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

func (s *Sim) IsOnline(cpu int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[cpu], nil
}

func (s *Sim) SetOnline(cpu int, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cpu < 0 || cpu >= s.possible {
		return fmt.Errorf("no such cpu %d", cpu)
	}
	if online && s.FailOnline[cpu] {
		return fmt.Errorf("cpu%d refuses to come online", cpu)
	}
	if !online && s.FailOffline[cpu] {
		return fmt.Errorf("cpu%d refuses to go offline", cpu)
	}
	s.online[cpu] = online
	return nil
}

var _ Controller = (*Sim)(nil)
