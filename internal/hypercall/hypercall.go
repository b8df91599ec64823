// Package hypercall defines the privilege-crossing call gate into the
// hypervisor. The gate itself is platform-specific and out of the control
// plane's hands; the control plane only sees status codes, zero for
// success, passed through verbatim.
package hypercall

import "github.com/cellbox/cellbox/internal/status"

// EntryContext hands a participant what it needs to jump into the mapped
// hypervisor core during enable.
type EntryContext struct {
	// Image is the mapped hypervisor region.
	Image []byte
	// Entry is the entry point offset within Image.
	Entry uint64
}

// Gate is the call surface into the hypervisor.
type Gate interface {
	// Enter performs the enable transition on the calling CPU: it jumps to
	// the entry point inside the mapped core image.
	Enter(ctx EntryContext, cpu int) int32

	// Leave issues the disable hypercall on the calling CPU.
	Leave(cpu int) int32

	// CellCreate issues the cell-creation hypercall, handing the
	// hypervisor the decoded cell descriptor by physical address.
	CellCreate(config []byte) int32
}

// Unavailable is the gate used when no platform call gate is wired in.
// Every call reports not-implemented, which surfaces verbatim to the
// caller.
type Unavailable struct{}

func (Unavailable) Enter(EntryContext, int) int32 { return status.NotImplemented }
func (Unavailable) Leave(int) int32               { return status.NotImplemented }
func (Unavailable) CellCreate([]byte) int32       { return status.NotImplemented }

var _ Gate = Unavailable{}
