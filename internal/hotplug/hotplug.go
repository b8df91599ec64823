// Package hotplug tracks CPUs the loader takes offline on behalf of cells
// and restores them when the hypervisor is disabled.
package hotplug

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Controller is the platform CPU hotplug surface.
type Controller interface {
	// PossibleCPUs is the number of CPU ids the platform can ever host.
	PossibleCPUs() int
	// OnlineCPUs returns the currently online CPU ids in ascending order.
	OnlineCPUs() ([]int, error)
	IsOnline(cpu int) (bool, error)
	// SetOnline brings a CPU online or takes it offline.
	SetOnline(cpu int, online bool) error
}

// ParseCPUList parses the kernel's CPU list format ("0-3,5,7-8") into a
// sorted slice of ids.
func ParseCPUList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var cpus []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, ok := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad cpu list entry %q: %w", part, err)
		}
		last := first
		if ok {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("bad cpu list range %q: %w", part, err)
			}
		}
		if last < first {
			return nil, fmt.Errorf("bad cpu list range %q", part)
		}
		for cpu := first; cpu <= last; cpu++ {
			cpus = append(cpus, cpu)
		}
	}
	sort.Ints(cpus)
	return cpus, nil
}
