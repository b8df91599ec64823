// Package physmap provides the physical memory mapping capability used by
// the loader: establish a virtual mapping over a physical address range with
// requested access attributes, and tear it down again. The core never
// depends on which backend is active; platform backends implement Mapper
// once per target.
package physmap

import "errors"

var (
	ErrRangeBusy  = errors.New("physical range already mapped")
	ErrOutOfRange = errors.New("physical range outside backing memory")
)

type Attr uint32

const (
	AttrRead Attr = 1 << iota
	AttrWrite
	AttrExec
	AttrCached
)

// Mapping is one established mapping. Bytes aliases the mapped range for the
// lifetime of the mapping; Close unmaps. Closing twice is an error.
type Mapping interface {
	Bytes() []byte
	Phys() uint64
	Size() uint64
	Close() error
}

// Mapper maps a physical address range into the caller's address space.
type Mapper interface {
	Map(phys, size uint64, attr Attr) (Mapping, error)
}

const PageSize = 0x1000

// AlignUp aligns value up to the given power-of-two alignment.
func AlignUp(value, align uint64) uint64 {
	if align == 0 {
		return value
	}
	mask := align - 1
	return (value + mask) &^ mask
}
