// Package fwimage loads the hypervisor firmware blob and gives structured
// access to its header. The firmware is an opaque, independently built
// image; the loader only interprets the header fields it needs to lay the
// image out in memory and to find the entry point.
package fwimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Signature is the magic the firmware header must begin with.
const Signature = "CELLBOXH"

// Header field offsets within the image. All fields are little-endian.
const (
	offSignature    = 0
	offBssEnd       = 8
	offPercpuSize   = 16
	offEntry        = 24
	offSize         = 32
	offPageOffset   = 40
	offPossibleCPUs = 48
	offOnlineCPUs   = 52

	HeaderSize = 56
)

var ErrBadSignature = errors.New("firmware signature mismatch")

// Header is the decoded firmware header. BssEnd, PercpuSize and Entry come
// from the build; Size, PageOffset, PossibleCPUs and OnlineCPUs are zero in
// the blob and patched by the loader in the mapped copy.
type Header struct {
	BssEnd       uint64
	PercpuSize   uint64
	Entry        uint64
	Size         uint64
	PageOffset   uint64
	PossibleCPUs uint32
	OnlineCPUs   uint32
}

// ParseHeader decodes and validates the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("firmware too short for header: %d bytes", len(b))
	}
	if !bytes.Equal(b[offSignature:offSignature+len(Signature)], []byte(Signature)) {
		return Header{}, ErrBadSignature
	}
	return Header{
		BssEnd:       binary.LittleEndian.Uint64(b[offBssEnd:]),
		PercpuSize:   binary.LittleEndian.Uint64(b[offPercpuSize:]),
		Entry:        binary.LittleEndian.Uint64(b[offEntry:]),
		Size:         binary.LittleEndian.Uint64(b[offSize:]),
		PageOffset:   binary.LittleEndian.Uint64(b[offPageOffset:]),
		PossibleCPUs: binary.LittleEndian.Uint32(b[offPossibleCPUs:]),
		OnlineCPUs:   binary.LittleEndian.Uint32(b[offOnlineCPUs:]),
	}, nil
}

// EncodeHeader writes h in wire form. Used by config tooling and tests;
// production firmware carries its header from the build.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	copy(b[offSignature:], Signature)
	binary.LittleEndian.PutUint64(b[offBssEnd:], h.BssEnd)
	binary.LittleEndian.PutUint64(b[offPercpuSize:], h.PercpuSize)
	binary.LittleEndian.PutUint64(b[offEntry:], h.Entry)
	binary.LittleEndian.PutUint64(b[offSize:], h.Size)
	binary.LittleEndian.PutUint64(b[offPageOffset:], h.PageOffset)
	binary.LittleEndian.PutUint32(b[offPossibleCPUs:], h.PossibleCPUs)
	binary.LittleEndian.PutUint32(b[offOnlineCPUs:], h.OnlineCPUs)
	return b
}

// PatchLayout writes the loader-owned layout fields into a mapped copy of
// the image.
func PatchLayout(mapped []byte, size, pageOffset uint64, possibleCPUs uint32) {
	binary.LittleEndian.PutUint64(mapped[offSize:], size)
	binary.LittleEndian.PutUint64(mapped[offPageOffset:], pageOffset)
	binary.LittleEndian.PutUint32(mapped[offPossibleCPUs:], possibleCPUs)
}

// PatchOnlineCPUs records the participant count just before the enable
// barrier runs.
func PatchOnlineCPUs(mapped []byte, onlineCPUs uint32) {
	binary.LittleEndian.PutUint32(mapped[offOnlineCPUs:], onlineCPUs)
}

// Image is a loaded firmware blob. Data is the full image including the
// header; its length is the trusted size.
type Image struct {
	Header Header
	Data   []byte
}

// DefaultName is the firmware file the loader looks for when no explicit
// name is configured.
const DefaultName = "cellbox.bin"

// Loader reads firmware blobs by name from a directory.
type Loader struct {
	Dir  string
	Name string
}

func (l *Loader) path() string {
	name := l.Name
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(l.Dir, name)
}

// Load reads and validates the firmware image.
func (l *Loader) Load() (*Image, error) {
	data, err := os.ReadFile(l.path())
	if err != nil {
		return nil, fmt.Errorf("load firmware: %w", err)
	}
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("firmware %s: %w", l.path(), err)
	}
	return &Image{Header: hdr, Data: data}, nil
}
