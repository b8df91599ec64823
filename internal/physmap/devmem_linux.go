//go:build linux

package physmap

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DevMem maps physical memory through /dev/mem. Uncached mappings open the
// device with O_SYNC; cached mappings rely on the kernel's default for
// conventional RAM.
type DevMem struct {
	// Path overrides the device node, mainly for tests. Empty means /dev/mem.
	Path string
}

func (d DevMem) devicePath() string {
	if d.Path != "" {
		return d.Path
	}
	return "/dev/mem"
}

func (d DevMem) Map(phys, size uint64, attr Attr) (Mapping, error) {
	if size == 0 {
		return nil, fmt.Errorf("cannot map zero-size range at 0x%x", phys)
	}
	if phys%PageSize != 0 {
		return nil, fmt.Errorf("physical start 0x%x is not page-aligned", phys)
	}

	flags := os.O_RDWR
	if attr&AttrCached == 0 {
		flags |= unix.O_SYNC
	}
	f, err := os.OpenFile(d.devicePath(), flags, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.devicePath(), err)
	}
	defer f.Close()

	prot := 0
	if attr&AttrRead != 0 {
		prot |= unix.PROT_READ
	}
	if attr&AttrWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if attr&AttrExec != 0 {
		prot |= unix.PROT_EXEC
	}

	length := int(AlignUp(size, PageSize))
	b, err := unix.Mmap(int(f.Fd()), int64(phys), length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap 0x%x (%d bytes): %w", phys, size, err)
	}

	return &devMapping{buf: b, phys: phys, size: size}, nil
}

type devMapping struct {
	mu   sync.Mutex
	buf  []byte
	phys uint64
	size uint64
}

func (m *devMapping) Bytes() []byte { return m.buf[:m.size] }
func (m *devMapping) Phys() uint64  { return m.phys }
func (m *devMapping) Size() uint64  { return m.size }

func (m *devMapping) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buf == nil {
		return fmt.Errorf("mapping at 0x%x already closed", m.phys)
	}
	err := unix.Munmap(m.buf)
	m.buf = nil
	if err != nil {
		return fmt.Errorf("munmap 0x%x: %w", m.phys, err)
	}
	return nil
}

var _ Mapper = DevMem{}
