package control

import (
	"errors"
	"fmt"

	"github.com/cellbox/cellbox/internal/status"
)

var (
	ErrBusy                = errors.New("hypervisor busy")
	ErrInvalidInput        = errors.New("invalid input")
	ErrFaultyInput         = errors.New("faulty input buffer")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrInterrupted         = errors.New("interrupted")
	ErrInvalidState        = errors.New("invalid hypervisor state")
	ErrNotImplemented      = errors.New("operation not implemented")
)

// StatusError carries a code reported by the hypervisor through the
// barrier or a hypercall. It is passed to the caller verbatim, never
// remapped.
type StatusError int32

func (e StatusError) Error() string {
	return fmt.Sprintf("hypervisor reported status %d", int32(e))
}

// StatusCode flattens an operation result to the signed wire status.
func StatusCode(err error) int32 {
	if err == nil {
		return status.OK
	}
	var se StatusError
	if errors.As(err, &se) {
		return int32(se)
	}
	switch {
	case errors.Is(err, ErrBusy):
		return status.Busy
	case errors.Is(err, ErrFaultyInput):
		return status.Fault
	case errors.Is(err, ErrResourceUnavailable):
		return status.Unavailable
	case errors.Is(err, ErrInterrupted):
		return status.Interrupted
	case errors.Is(err, ErrNotImplemented):
		return status.NotImplemented
	default:
		// Validation and state errors share one wire code.
		return status.Invalid
	}
}
