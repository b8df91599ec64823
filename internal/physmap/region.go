package physmap

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Region access flags, matching the wire encoding of memory region entries.
const (
	RegionRead  uint64 = 1 << 0
	RegionWrite uint64 = 1 << 1
	RegionExec  uint64 = 1 << 2
)

// RegionWireSize is the encoded size of a Region.
const RegionWireSize = 32

// Region describes one physical memory range and how a cell may access it.
type Region struct {
	PhysStart   uint64
	VirtStart   uint64
	Size        uint64
	AccessFlags uint64
}

// End is the first byte past the region, saturating at the top of the
// address space so degenerate regions cannot wrap comparisons.
func (r Region) End() uint64 {
	end := r.PhysStart + r.Size
	if end < r.PhysStart {
		return math.MaxUint64
	}
	return end
}

// Overlaps reports whether two regions share any physical byte.
func (r Region) Overlaps(o Region) bool {
	return r.PhysStart < o.End() && o.PhysStart < r.End()
}

// DecodeRegion decodes one region entry from b, which must hold at least
// RegionWireSize bytes.
func DecodeRegion(b []byte) (Region, error) {
	if len(b) < RegionWireSize {
		return Region{}, fmt.Errorf("region entry truncated: %d of %d bytes", len(b), RegionWireSize)
	}
	return Region{
		PhysStart:   binary.LittleEndian.Uint64(b[0:]),
		VirtStart:   binary.LittleEndian.Uint64(b[8:]),
		Size:        binary.LittleEndian.Uint64(b[16:]),
		AccessFlags: binary.LittleEndian.Uint64(b[24:]),
	}, nil
}

// EncodeRegion appends the wire form of r to dst.
func EncodeRegion(dst []byte, r Region) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, r.PhysStart)
	dst = binary.LittleEndian.AppendUint64(dst, r.VirtStart)
	dst = binary.LittleEndian.AppendUint64(dst, r.Size)
	dst = binary.LittleEndian.AppendUint64(dst, r.AccessFlags)
	return dst
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%x-0x%x)", r.PhysStart, r.End())
}
