package physmap

import (
	"fmt"
	"sync"
)

// SimMapper emulates a window of physical memory inside the process. It
// backs the simulation backend and the tests: mappings of overlapping
// ranges see the same bytes, and a range can only be mapped by one holder
// at a time, mirroring the exclusive ownership the loader expects.
type SimMapper struct {
	mu sync.Mutex

	base uint64
	mem  []byte

	// active holds the currently mapped ranges, checked for overlap on Map.
	active []Region
}

// NewSimMapper creates a simulated physical window [base, base+size).
func NewSimMapper(base, size uint64) *SimMapper {
	return &SimMapper{base: base, mem: make([]byte, size)}
}

func (s *SimMapper) Map(phys, size uint64, attr Attr) (Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size == 0 {
		return nil, fmt.Errorf("cannot map zero-size range at 0x%x", phys)
	}
	if !s.inWindow(phys, size) {
		return nil, fmt.Errorf("%w: 0x%x+0x%x not within [0x%x-0x%x)",
			ErrOutOfRange, phys, size, s.base, s.base+uint64(len(s.mem)))
	}

	req := Region{PhysStart: phys, Size: size}
	for _, r := range s.active {
		if req.Overlaps(r) {
			return nil, fmt.Errorf("%w: %v overlaps %v", ErrRangeBusy, req, r)
		}
	}
	s.active = append(s.active, req)

	off := phys - s.base
	return &simMapping{owner: s, buf: s.mem[off : off+size : off+size], phys: phys}, nil
}

// inWindow reports whether [phys, phys+size) lies inside the backing
// window. Subtraction only, so ranges reaching past the top of the address
// space cannot wrap the check.
func (s *SimMapper) inWindow(phys, size uint64) bool {
	if phys < s.base {
		return false
	}
	off := phys - s.base
	return off <= uint64(len(s.mem)) && size <= uint64(len(s.mem))-off
}

// Peek returns a read-only view of the backing bytes for verification. The
// range does not need to be mapped.
func (s *SimMapper) Peek(phys, size uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inWindow(phys, size) {
		return nil, fmt.Errorf("%w: 0x%x+0x%x", ErrOutOfRange, phys, size)
	}
	off := phys - s.base
	out := make([]byte, size)
	copy(out, s.mem[off:])
	return out, nil
}

// ActiveMappings reports how many ranges are currently mapped.
func (s *SimMapper) ActiveMappings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *SimMapper) release(phys uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.active {
		if r.PhysStart == phys {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}

type simMapping struct {
	mu    sync.Mutex
	owner *SimMapper
	buf   []byte
	phys  uint64
}

func (m *simMapping) Bytes() []byte { return m.buf }
func (m *simMapping) Phys() uint64  { return m.phys }
func (m *simMapping) Size() uint64  { return uint64(len(m.buf)) }

func (m *simMapping) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == nil {
		return fmt.Errorf("mapping at 0x%x already closed", m.phys)
	}
	m.owner.release(m.phys)
	m.owner = nil
	return nil
}

var _ Mapper = (*SimMapper)(nil)
