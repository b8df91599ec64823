package configfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cellbox/cellbox/internal/cell"
	"github.com/cellbox/cellbox/internal/control"
	"github.com/cellbox/cellbox/internal/physmap"
)

const cellYAML = `
name: demo
cpus: [3]
memory:
  - phys_start: 0x3bf00000
    size: 0x200000
    access: [read, write, execute]
pio_allow:
  - {from: 0x3f8, to: 0x3ff}
irq_lines: [4]
`

func TestLoadCell(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.yaml")
	if err := os.WriteFile(path, []byte(cellYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	desc, err := LoadCell(path)
	if err != nil {
		t.Fatalf("LoadCell: %v", err)
	}

	if desc.Name != "demo" {
		t.Fatalf("name: got %q", desc.Name)
	}
	if !reflect.DeepEqual(desc.CPUSet.IDs(), []int{3}) {
		t.Fatalf("cpus: got %v", desc.CPUSet.IDs())
	}
	ram, ok := desc.RAM()
	if !ok {
		t.Fatal("no RAM region")
	}
	want := physmap.Region{PhysStart: 0x3bf0_0000, Size: 0x20_0000,
		AccessFlags: physmap.RegionRead | physmap.RegionWrite | physmap.RegionExec}
	if ram != want {
		t.Fatalf("RAM: got %+v, want %+v", ram, want)
	}

	// Serial port allowed, everything else denied.
	if len(desc.PIOBitmap) != 0x2000 {
		t.Fatalf("pio bitmap: %d bytes", len(desc.PIOBitmap))
	}
	if desc.PIOBitmap[0x3f8/8] != 0 {
		t.Fatalf("serial ports not opened: 0x%x", desc.PIOBitmap[0x3f8/8])
	}
	if desc.PIOBitmap[0] != 0xff {
		t.Fatal("unlisted ports not denied")
	}

	// The compiled descriptor survives the wire.
	if _, err := cell.Decode(desc.Encode()); err != nil {
		t.Fatalf("compiled descriptor does not decode: %v", err)
	}
}

func TestCellValidation(t *testing.T) {
	for name, cfg := range map[string]Cell{
		"NoName":   {Memory: []MemoryRegion{{Size: 1}}},
		"NoMemory": {Name: "x"},
		"BadAccess": {Name: "x", Memory: []MemoryRegion{
			{Size: 1, Access: []string{"rwx"}},
		}},
		"BadPortRange": {Name: "x", Memory: []MemoryRegion{{Size: 1}},
			PIOAllow: []PortRange{{From: 9, To: 1}}},
		"NegativeCPU": {Name: "x", CPUs: []int{-1}, Memory: []MemoryRegion{{Size: 1}}},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := cfg.Compile(); err == nil {
				t.Fatal("Compile succeeded")
			}
		})
	}
}

func TestLoadSystem(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "params.bin"), []byte{0xde, 0xad}, 0o644); err != nil {
		t.Fatal(err)
	}
	sysYAML := `
memory:
  phys_start: 0x3b000000
  size: 0x400000
  access: [read, write]
params_file: params.bin
`
	path := filepath.Join(dir, "system.yaml")
	if err := os.WriteFile(path, []byte(sysYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	req, err := LoadSystem(path)
	if err != nil {
		t.Fatalf("LoadSystem: %v", err)
	}
	cfg, err := control.DecodeSystemConfig(req)
	if err != nil {
		t.Fatalf("compiled request does not decode: %v", err)
	}
	if cfg.HypervisorMemory.PhysStart != 0x3b00_0000 || cfg.HypervisorMemory.Size != 0x40_0000 {
		t.Fatalf("region: %+v", cfg.HypervisorMemory)
	}
	if len(cfg.Params) != 2 || cfg.Params[0] != 0xde {
		t.Fatalf("params: %v", cfg.Params)
	}
}

func TestSystemParamsHex(t *testing.T) {
	req, err := System{
		Memory:    MemoryRegion{Size: 0x1000},
		ParamsHex: "c0ffee",
	}.Compile(".")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cfg, err := control.DecodeSystemConfig(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Params) != 3 {
		t.Fatalf("params: %v", cfg.Params)
	}
}

func TestSystemValidation(t *testing.T) {
	if _, err := (System{}).Compile("."); err == nil {
		t.Fatal("Compile accepted a zero-size region")
	}
	if _, err := (System{Memory: MemoryRegion{Size: 1}, ParamsFile: "a", ParamsHex: "bb"}).Compile("."); err == nil {
		t.Fatal("Compile accepted both params_file and params_hex")
	}
	if _, err := (System{Memory: MemoryRegion{Size: 1}, ParamsHex: "zz"}).Compile("."); err == nil {
		t.Fatal("Compile accepted bad hex")
	}
}
