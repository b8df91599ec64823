// Package configfile compiles YAML system and cell configurations into the
// binary request formats the control interface consumes.
package configfile

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cellbox/cellbox/internal/cell"
	"github.com/cellbox/cellbox/internal/control"
	"github.com/cellbox/cellbox/internal/cpuset"
	"github.com/cellbox/cellbox/internal/physmap"
)

// MemoryRegion describes one physical range in a config file.
type MemoryRegion struct {
	PhysStart uint64   `yaml:"phys_start"`
	VirtStart uint64   `yaml:"virt_start"`
	Size      uint64   `yaml:"size"`
	Access    []string `yaml:"access"`
}

func (m MemoryRegion) compile() (physmap.Region, error) {
	var flags uint64
	for _, a := range m.Access {
		switch strings.ToLower(a) {
		case "read", "r":
			flags |= physmap.RegionRead
		case "write", "w":
			flags |= physmap.RegionWrite
		case "execute", "exec", "x":
			flags |= physmap.RegionExec
		default:
			return physmap.Region{}, fmt.Errorf("unknown access flag %q", a)
		}
	}
	return physmap.Region{
		PhysStart:   m.PhysStart,
		VirtStart:   m.VirtStart,
		Size:        m.Size,
		AccessFlags: flags,
	}, nil
}

// PortRange is an inclusive I/O port range a cell may access.
type PortRange struct {
	From uint16 `yaml:"from"`
	To   uint16 `yaml:"to"`
}

// Cell is the YAML form of a cell configuration.
type Cell struct {
	Name     string         `yaml:"name"`
	CPUs     []int          `yaml:"cpus"`
	Memory   []MemoryRegion `yaml:"memory"`
	PIOAllow []PortRange    `yaml:"pio_allow"`
	IRQLines []uint32       `yaml:"irq_lines"`
}

// pioBitmapSize covers the full 16-bit port space, one bit per port.
const pioBitmapSize = 0x2000

// Compile turns the YAML cell into a wire descriptor. The PIO bitmap
// defaults to all ports denied (every bit set); pio_allow ranges clear
// their bits. A cell without pio_allow gets no bitmap at all.
func (c Cell) Compile() (*cell.Descriptor, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("cell config: name is required")
	}
	if len(c.Memory) == 0 {
		return nil, fmt.Errorf("cell config %q: at least one memory region (RAM first) is required", c.Name)
	}

	cpus := cpuset.New(8)
	for _, cpu := range c.CPUs {
		if cpu < 0 {
			return nil, fmt.Errorf("cell config %q: negative cpu id %d", c.Name, cpu)
		}
		cpus.Add(cpu)
	}

	regions := make([]physmap.Region, 0, len(c.Memory))
	for i, m := range c.Memory {
		r, err := m.compile()
		if err != nil {
			return nil, fmt.Errorf("cell config %q: memory region %d: %w", c.Name, i, err)
		}
		regions = append(regions, r)
	}

	var bitmap []byte
	if len(c.PIOAllow) > 0 {
		bitmap = make([]byte, pioBitmapSize)
		for i := range bitmap {
			bitmap[i] = 0xff
		}
		for _, pr := range c.PIOAllow {
			if pr.To < pr.From {
				return nil, fmt.Errorf("cell config %q: bad port range %#x-%#x", c.Name, pr.From, pr.To)
			}
			for port := int(pr.From); port <= int(pr.To); port++ {
				bitmap[port/8] &^= 1 << (port % 8)
			}
		}
	}

	return &cell.Descriptor{
		Name:          c.Name,
		CPUSet:        cpus,
		MemoryRegions: regions,
		PIOBitmap:     bitmap,
		IRQLines:      c.IRQLines,
	}, nil
}

// LoadCell reads and compiles a YAML cell configuration.
func LoadCell(path string) (*cell.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Cell
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.Compile()
}

// System is the YAML form of the hypervisor system configuration.
type System struct {
	Memory MemoryRegion `yaml:"memory"`
	// ParamsFile names a file whose bytes become the trailing
	// configuration parameters; ParamsHex inlines them instead.
	ParamsFile string `yaml:"params_file"`
	ParamsHex  string `yaml:"params_hex"`
}

// Compile turns the YAML system config into the wire enable request.
// Relative ParamsFile paths resolve against dir.
func (s System) Compile(dir string) ([]byte, error) {
	if s.Memory.Size == 0 {
		return nil, fmt.Errorf("system config: memory.size is required")
	}
	region, err := s.Memory.compile()
	if err != nil {
		return nil, fmt.Errorf("system config: %w", err)
	}

	var params []byte
	switch {
	case s.ParamsFile != "" && s.ParamsHex != "":
		return nil, fmt.Errorf("system config: params_file and params_hex are mutually exclusive")
	case s.ParamsFile != "":
		path := s.ParamsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		params, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("system config: %w", err)
		}
	case s.ParamsHex != "":
		params, err = hex.DecodeString(s.ParamsHex)
		if err != nil {
			return nil, fmt.Errorf("system config: bad params_hex: %w", err)
		}
	}

	return control.EncodeSystemConfig(region, params), nil
}

// LoadSystem reads and compiles a YAML system configuration into the wire
// enable request.
func LoadSystem(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg System
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.Compile(filepath.Dir(path))
}
