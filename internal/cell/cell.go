// Package cell decodes and encodes cell descriptors: the wire description
// of an isolated partition with its CPUs, memory regions, I/O port bitmap,
// interrupt lines and PCI devices. Decoding validates every declared
// section size against the remaining buffer before a single byte of the
// section is interpreted.
package cell

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cellbox/cellbox/internal/cpuset"
	"github.com/cellbox/cellbox/internal/physmap"
)

const (
	// NameMaxLen is the longest cell name; the wire field holds one more
	// byte for the terminating NUL.
	NameMaxLen    = 31
	nameFieldSize = NameMaxLen + 1

	// HeaderSize is the fixed descriptor header: the name field plus five
	// u32 counts and a pad u32.
	HeaderSize = nameFieldSize + 6*4

	irqLineSize   = 4
	pciDeviceSize = 8

	// MinRAMSize is the smallest acceptable first memory region.
	MinRAMSize = 1 << 20
)

// PCIDevice is an opaque device table entry, passed through to the
// hypervisor without interpretation.
type PCIDevice [pciDeviceSize]byte

// Descriptor is a decoded, owned cell descriptor. Raw keeps the exact wire
// image the hypervisor is handed at creation time.
type Descriptor struct {
	Name          string
	CPUSet        cpuset.Set
	MemoryRegions []physmap.Region
	PIOBitmap     []byte
	IRQLines      []uint32
	PCIDevices    []PCIDevice

	raw []byte
}

// PreloadImage is the single image loaded into a cell's RAM before start.
type PreloadImage struct {
	Source       []byte
	TargetOffset uint64
	Size         uint64
}

// RAM returns the cell's RAM region, which is always the first memory
// region entry.
func (d *Descriptor) RAM() (physmap.Region, bool) {
	if len(d.MemoryRegions) == 0 {
		return physmap.Region{}, false
	}
	return d.MemoryRegions[0], true
}

// Raw returns the wire image of the decoded descriptor.
func (d *Descriptor) Raw() []byte { return d.raw }

// Decode parses a descriptor from buf. Sections are decoded strictly in
// declared order: CPU bitset, memory regions, PIO bitmap, IRQ lines, PCI
// devices. A section whose declared size does not fit the remaining bytes
// fails the decode before the section is touched. The name is force
// NUL-truncated at NameMaxLen.
func Decode(buf []byte) (*Descriptor, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("descriptor truncated: %d of %d header bytes", len(buf), HeaderSize)
	}

	nameField := buf[:nameFieldSize]
	cpuSetSize := binary.LittleEndian.Uint32(buf[nameFieldSize:])
	numMemoryRegions := binary.LittleEndian.Uint32(buf[nameFieldSize+4:])
	numIRQLines := binary.LittleEndian.Uint32(buf[nameFieldSize+8:])
	pioBitmapSize := binary.LittleEndian.Uint32(buf[nameFieldSize+12:])
	numPCIDevices := binary.LittleEndian.Uint32(buf[nameFieldSize+16:])

	name := nameField[:NameMaxLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	rest := buf[HeaderSize:]
	take := func(what string, n uint64) ([]byte, error) {
		if n > uint64(len(rest)) {
			return nil, fmt.Errorf("%s: declared %d bytes, %d remain", what, n, len(rest))
		}
		section := rest[:n]
		rest = rest[n:]
		return section, nil
	}

	cpuBits, err := take("cpu set", uint64(cpuSetSize))
	if err != nil {
		return nil, err
	}

	regionBytes, err := take("memory regions", uint64(numMemoryRegions)*physmap.RegionWireSize)
	if err != nil {
		return nil, err
	}
	regions := make([]physmap.Region, numMemoryRegions)
	for i := range regions {
		regions[i], _ = physmap.DecodeRegion(regionBytes[i*physmap.RegionWireSize:])
	}

	pioBitmap, err := take("pio bitmap", uint64(pioBitmapSize))
	if err != nil {
		return nil, err
	}

	irqBytes, err := take("irq lines", uint64(numIRQLines)*irqLineSize)
	if err != nil {
		return nil, err
	}
	irqs := make([]uint32, numIRQLines)
	for i := range irqs {
		irqs[i] = binary.LittleEndian.Uint32(irqBytes[i*irqLineSize:])
	}

	pciBytes, err := take("pci devices", uint64(numPCIDevices)*pciDeviceSize)
	if err != nil {
		return nil, err
	}
	devices := make([]PCIDevice, numPCIDevices)
	for i := range devices {
		copy(devices[i][:], pciBytes[i*pciDeviceSize:])
	}

	used := len(buf) - len(rest)
	raw := make([]byte, used)
	copy(raw, buf[:used])
	// Re-apply the truncation in the owned wire image as well.
	raw[NameMaxLen] = 0

	return &Descriptor{
		Name:          string(name),
		CPUSet:        cpuset.FromBytes(cpuBits),
		MemoryRegions: regions,
		PIOBitmap:     append([]byte(nil), pioBitmap...),
		IRQLines:      irqs,
		PCIDevices:    devices,
		raw:           raw,
	}, nil
}

// Encode produces the wire form of d. Names longer than NameMaxLen are
// truncated.
func (d *Descriptor) Encode() []byte {
	cpuBits := d.CPUSet.Bytes()

	buf := make([]byte, HeaderSize, HeaderSize+len(cpuBits)+
		len(d.MemoryRegions)*physmap.RegionWireSize+len(d.PIOBitmap)+
		len(d.IRQLines)*irqLineSize+len(d.PCIDevices)*pciDeviceSize)

	name := d.Name
	if len(name) > NameMaxLen {
		name = name[:NameMaxLen]
	}
	copy(buf, name)
	binary.LittleEndian.PutUint32(buf[nameFieldSize:], uint32(len(cpuBits)))
	binary.LittleEndian.PutUint32(buf[nameFieldSize+4:], uint32(len(d.MemoryRegions)))
	binary.LittleEndian.PutUint32(buf[nameFieldSize+8:], uint32(len(d.IRQLines)))
	binary.LittleEndian.PutUint32(buf[nameFieldSize+12:], uint32(len(d.PIOBitmap)))
	binary.LittleEndian.PutUint32(buf[nameFieldSize+16:], uint32(len(d.PCIDevices)))

	buf = append(buf, cpuBits...)
	for _, r := range d.MemoryRegions {
		buf = physmap.EncodeRegion(buf, r)
	}
	buf = append(buf, d.PIOBitmap...)
	for _, irq := range d.IRQLines {
		buf = binary.LittleEndian.AppendUint32(buf, irq)
	}
	for _, dev := range d.PCIDevices {
		buf = append(buf, dev[:]...)
	}
	return buf
}
