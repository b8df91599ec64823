package hotplug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sysfs drives CPU hotplug through the kernel's sysfs cpu tree. CPUs that
// expose no online file (typically the boot CPU) are reported online and
// cannot be taken offline.
type Sysfs struct {
	// Root overrides the cpu tree location, mainly for tests.
	// Empty means /sys/devices/system/cpu.
	Root string
}

func (s Sysfs) root() string {
	if s.Root != "" {
		return s.Root
	}
	return "/sys/devices/system/cpu"
}

func (s Sysfs) onlinePath(cpu int) string {
	return filepath.Join(s.root(), fmt.Sprintf("cpu%d", cpu), "online")
}

func (s Sysfs) PossibleCPUs() int {
	data, err := os.ReadFile(filepath.Join(s.root(), "possible"))
	if err != nil {
		return 1
	}
	cpus, err := ParseCPUList(string(data))
	if err != nil || len(cpus) == 0 {
		return 1
	}
	return cpus[len(cpus)-1] + 1
}

func (s Sysfs) OnlineCPUs() ([]int, error) {
	data, err := os.ReadFile(filepath.Join(s.root(), "online"))
	if err != nil {
		return nil, fmt.Errorf("read online cpus: %w", err)
	}
	cpus, err := ParseCPUList(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse online cpus: %w", err)
	}
	return cpus, nil
}

func (s Sysfs) IsOnline(cpu int) (bool, error) {
	data, err := os.ReadFile(s.onlinePath(cpu))
	if os.IsNotExist(err) {
		// No control file: the CPU cannot be unplugged and is online.
		_, statErr := os.Stat(filepath.Join(s.root(), fmt.Sprintf("cpu%d", cpu)))
		if statErr != nil {
			return false, nil
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cpu%d state: %w", cpu, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

func (s Sysfs) SetOnline(cpu int, online bool) error {
	path := s.onlinePath(cpu)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cpu%d cannot be hotplugged: %w", cpu, err)
	}
	v := "0"
	if online {
		v = "1"
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("set cpu%d online=%v: %w", cpu, online, err)
	}
	defer f.Close()
	if _, err := f.WriteString(v); err != nil {
		return fmt.Errorf("set cpu%d online=%v: %w", cpu, online, err)
	}
	return nil
}

var _ Controller = Sysfs{}
