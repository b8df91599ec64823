// Package hvmem lays the hypervisor out inside its reserved physical
// region and owns the resulting mapping. The layout, in increasing offset:
// core image (bss end, page-aligned), per-CPU data, then the system
// configuration blob.
package hvmem

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cellbox/cellbox/internal/fwimage"
	"github.com/cellbox/cellbox/internal/physmap"
)

// Layout is the computed placement of the three regions.
type Layout struct {
	CoreSize    uint64 // alignUp(bssEnd, page)
	PercpuTotal uint64 // possibleCPUs * percpuSize
	ConfigSize  uint64
}

// ComputeLayout derives the layout from the firmware header, the number of
// possible CPUs and the externally computed configuration size.
func ComputeLayout(hdr fwimage.Header, possibleCPUs int, configSize uint64) Layout {
	return Layout{
		CoreSize:    physmap.AlignUp(hdr.BssEnd, physmap.PageSize),
		PercpuTotal: uint64(possibleCPUs) * hdr.PercpuSize,
		ConfigSize:  configSize,
	}
}

// ConfigOffset is where the configuration blob lands in the region.
func (l Layout) ConfigOffset() uint64 { return l.CoreSize + l.PercpuTotal }

// Total is the minimum space the layout needs. The reserved region must be
// strictly larger.
func (l Layout) Total() uint64 { return l.CoreSize + l.PercpuTotal + l.ConfigSize }

// Fits reports whether a reserved region of the given size can hold the
// layout.
func (l Layout) Fits(regionSize uint64) bool { return regionSize > l.Total() }

// Image is the populated, mapped hypervisor region. It is exclusively owned
// by the enabled state and unmapped exactly once on the way out.
type Image struct {
	mapping physmap.Mapping
	layout  Layout
	entry   uint64

	mu     sync.Mutex
	closed bool
}

// Activate maps the reserved region executable and cached, copies the
// firmware image into it, zero-fills the remainder, patches the mapped
// header and places the configuration blob after core and per-CPU space.
func Activate(m physmap.Mapper, region physmap.Region, fw *fwimage.Image, config []byte, possibleCPUs int) (*Image, error) {
	layout := ComputeLayout(fw.Header, possibleCPUs, uint64(len(config)))
	if !layout.Fits(region.Size) {
		return nil, fmt.Errorf("reserved region %v too small: have %d, layout needs more than %d",
			region, region.Size, layout.Total())
	}
	if uint64(len(fw.Data)) > region.Size {
		return nil, fmt.Errorf("firmware image (%d bytes) exceeds reserved region %v", len(fw.Data), region)
	}

	mapping, err := m.Map(region.PhysStart, region.Size, physmap.AttrRead|physmap.AttrWrite|physmap.AttrExec|physmap.AttrCached)
	if err != nil {
		return nil, fmt.Errorf("map hypervisor region %v: %w", region, err)
	}

	buf := mapping.Bytes()
	copy(buf, fw.Data)
	clear(buf[len(fw.Data):])

	pageOffset := uint64(uintptr(unsafe.Pointer(&buf[0]))) - region.PhysStart
	fwimage.PatchLayout(buf, region.Size, pageOffset, uint32(possibleCPUs))

	copy(buf[layout.ConfigOffset():], config)

	return &Image{mapping: mapping, layout: layout, entry: fw.Header.Entry}, nil
}

// Bytes aliases the mapped region.
func (img *Image) Bytes() []byte { return img.mapping.Bytes() }

// Entry is the entry point offset within the mapped region.
func (img *Image) Entry() uint64 { return img.entry }

// Layout returns the placement the image was populated with.
func (img *Image) Layout() Layout { return img.layout }

// SetOnlineCPUs patches the participant count into the mapped header.
func (img *Image) SetOnlineCPUs(n int) {
	fwimage.PatchOnlineCPUs(img.mapping.Bytes(), uint32(n))
}

// Close unmaps the region. Safe to call once; later calls are no-ops so
// every abort path can unconditionally release the image.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.closed {
		return nil
	}
	img.closed = true
	return img.mapping.Close()
}
