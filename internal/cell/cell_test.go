package cell

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"strings"
	"testing"

	"github.com/cellbox/cellbox/internal/cpuset"
	"github.com/cellbox/cellbox/internal/physmap"
)

func sampleDescriptor() *Descriptor {
	cpus := cpuset.New(8)
	cpus.Add(3)
	return &Descriptor{
		Name:   "demo",
		CPUSet: cpus,
		MemoryRegions: []physmap.Region{
			{PhysStart: 0x3bf0_0000, Size: 0x20_0000, AccessFlags: physmap.RegionRead | physmap.RegionWrite | physmap.RegionExec},
			{PhysStart: 0xfed0_0000, VirtStart: 0xfed0_0000, Size: 0x1000, AccessFlags: physmap.RegionRead},
		},
		PIOBitmap: bytes.Repeat([]byte{0xff}, 0x2000),
		IRQLines:  []uint32{4},
		PCIDevices: []PCIDevice{
			{0x00, 0x1f, 0x00, 0x00, 0x86, 0x80, 0x00, 0x00},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := sampleDescriptor()

	got, err := Decode(want.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Name != want.Name {
		t.Fatalf("Name: got %q, want %q", got.Name, want.Name)
	}
	if !reflect.DeepEqual(got.CPUSet.IDs(), []int{3}) {
		t.Fatalf("CPUSet: got %v", got.CPUSet.IDs())
	}
	if !reflect.DeepEqual(got.MemoryRegions, want.MemoryRegions) {
		t.Fatalf("MemoryRegions: got %+v", got.MemoryRegions)
	}
	if !bytes.Equal(got.PIOBitmap, want.PIOBitmap) {
		t.Fatal("PIOBitmap changed in round trip")
	}
	if !reflect.DeepEqual(got.IRQLines, want.IRQLines) {
		t.Fatalf("IRQLines: got %v", got.IRQLines)
	}
	if !reflect.DeepEqual(got.PCIDevices, want.PCIDevices) {
		t.Fatalf("PCIDevices: got %v", got.PCIDevices)
	}
}

func TestDecodeOwnsItsStorage(t *testing.T) {
	buf := sampleDescriptor().Encode()
	d, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range buf {
		buf[i] = 0xee
	}
	if d.Name != "demo" {
		t.Fatal("descriptor aliases the caller's buffer")
	}
	if _, err := Decode(d.Raw()); err != nil {
		t.Fatalf("Raw no longer decodes after caller buffer scribble: %v", err)
	}
}

func TestNameTruncation(t *testing.T) {
	d := sampleDescriptor()
	d.Name = strings.Repeat("x", 60)

	got, err := Decode(d.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != strings.Repeat("x", NameMaxLen) {
		t.Fatalf("Name: got %d chars, want %d", len(got.Name), NameMaxLen)
	}
	// The owned wire image must carry the truncation too.
	if got.Raw()[NameMaxLen] != 0 {
		t.Fatal("wire image name field not NUL-terminated")
	}
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	if _, err := Decode(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("Decode accepted a short header")
	}
}

func TestDecodeRejectsOversizedSections(t *testing.T) {
	base := sampleDescriptor().Encode()

	// Each count field, when inflated past the buffer, must fail before
	// the section is interpreted.
	fields := map[string]int{
		"cpu set":        NameMaxLen + 1,
		"memory regions": NameMaxLen + 1 + 4,
		"irq lines":      NameMaxLen + 1 + 8,
		"pio bitmap":     NameMaxLen + 1 + 12,
		"pci devices":    NameMaxLen + 1 + 16,
	}
	for name, off := range fields {
		t.Run(name, func(t *testing.T) {
			buf := append([]byte(nil), base...)
			binary.LittleEndian.PutUint32(buf[off:], 0x7fff_ffff)
			if _, err := Decode(buf); err == nil {
				t.Fatalf("Decode accepted an oversized %s declaration", name)
			}
		})
	}
}

func TestDecodeHugeCountsDoNotOverflow(t *testing.T) {
	buf := sampleDescriptor().Encode()
	// A count whose byte size would wrap 32-bit arithmetic.
	binary.LittleEndian.PutUint32(buf[NameMaxLen+1+4:], 0xffff_ffff)
	if _, err := Decode(buf); err == nil {
		t.Fatal("Decode accepted a wrapping region count")
	}
}

func TestRAM(t *testing.T) {
	d := sampleDescriptor()
	ram, ok := d.RAM()
	if !ok {
		t.Fatal("RAM not found")
	}
	if ram != d.MemoryRegions[0] {
		t.Fatal("RAM is not the first memory region")
	}

	d.MemoryRegions = nil
	if _, ok := d.RAM(); ok {
		t.Fatal("RAM reported for a cell without memory regions")
	}
}
