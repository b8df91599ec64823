// Package cpuset implements a byte-packed CPU bitset. Bit i of the packed
// form denotes CPU id i, matching the cell descriptor wire encoding.
package cpuset

import (
	"fmt"
	"strings"
)

type Set struct {
	bits []byte
}

// FromBytes builds a set from its packed wire form. The bytes are copied.
func FromBytes(b []byte) Set {
	s := Set{bits: make([]byte, len(b))}
	copy(s.bits, b)
	return s
}

// New returns an empty set able to hold at least n CPU ids without growing.
func New(n int) Set {
	return Set{bits: make([]byte, (n+7)/8)}
}

func (s *Set) Add(cpu int) {
	idx := cpu / 8
	for len(s.bits) <= idx {
		s.bits = append(s.bits, 0)
	}
	s.bits[idx] |= 1 << (cpu % 8)
}

func (s *Set) Remove(cpu int) {
	idx := cpu / 8
	if idx < len(s.bits) {
		s.bits[idx] &^= 1 << (cpu % 8)
	}
}

func (s Set) Contains(cpu int) bool {
	idx := cpu / 8
	return idx < len(s.bits) && s.bits[idx]&(1<<(cpu%8)) != 0
}

// IDs returns the member CPU ids in ascending order.
func (s Set) IDs() []int {
	var ids []int
	for i, b := range s.bits {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				ids = append(ids, i*8+bit)
			}
		}
	}
	return ids
}

func (s Set) Count() int {
	n := 0
	for _, b := range s.bits {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				n++
			}
		}
	}
	return n
}

func (s Set) Empty() bool { return s.Count() == 0 }

// Bytes returns the packed wire form. The slice is a copy.
func (s Set) Bytes() []byte {
	b := make([]byte, len(s.bits))
	copy(b, s.bits)
	return b
}

func (s Set) String() string {
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
