package control

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cellbox/cellbox/internal/cell"
	"github.com/cellbox/cellbox/internal/status"
)

func TestDispatchRoutesOperations(t *testing.T) {
	env := newEnv(t, 4)
	d := Dispatcher{Service: env.svc}
	ctx := context.Background()

	if code := d.Dispatch(ctx, Request{Op: OpEnable, Payload: env.enableRequest()}); code != status.OK {
		t.Fatalf("enable: got status %d", code)
	}
	if !env.svc.Enabled() {
		t.Fatal("dispatcher enable did not reach the service")
	}

	req := cellRequest([]int{2}, testRAMSize, cell.PreloadImage{Source: make([]byte, 0x1000), Size: 0x1000})
	if code := d.Dispatch(ctx, Request{Op: OpCellCreate, Payload: req.Config, Images: req.Images}); code != status.OK {
		t.Fatalf("cell create: got status %d", code)
	}

	if code := d.Dispatch(ctx, Request{Op: OpCellDestroy}); code != status.NotImplemented {
		t.Fatalf("cell destroy: got status %d, want %d", code, status.NotImplemented)
	}

	if code := d.Dispatch(ctx, Request{Op: OpDisable}); code != status.OK {
		t.Fatalf("disable: got status %d", code)
	}
}

func TestDispatchStatusCodes(t *testing.T) {
	env := newEnv(t, 4)
	d := Dispatcher{Service: env.svc}
	ctx := context.Background()

	// Disable while disabled.
	if code := d.Dispatch(ctx, Request{Op: OpDisable}); code != status.Invalid {
		t.Fatalf("disable while disabled: got status %d, want %d", code, status.Invalid)
	}

	// Truncated enable payload.
	if code := d.Dispatch(ctx, Request{Op: OpEnable, Payload: []byte{1, 2, 3}}); code != status.Fault {
		t.Fatalf("truncated enable: got status %d, want %d", code, status.Fault)
	}

	// Unknown opcode.
	if code := d.Dispatch(ctx, Request{Op: Op(99)}); code != status.Invalid {
		t.Fatalf("unknown op: got status %d, want %d", code, status.Invalid)
	}

	// Double enable.
	if code := d.Dispatch(ctx, Request{Op: OpEnable, Payload: env.enableRequest()}); code != status.OK {
		t.Fatalf("enable: got status %d", code)
	}
	if code := d.Dispatch(ctx, Request{Op: OpEnable, Payload: env.enableRequest()}); code != status.Busy {
		t.Fatalf("double enable: got status %d, want %d", code, status.Busy)
	}
}

func TestStatusCode(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int32
	}{
		{nil, status.OK},
		{ErrBusy, status.Busy},
		{fmt.Errorf("%w: detail", ErrInvalidInput), status.Invalid},
		{ErrInvalidState, status.Invalid},
		{fmt.Errorf("wrap: %w", ErrFaultyInput), status.Fault},
		{ErrResourceUnavailable, status.Unavailable},
		{ErrInterrupted, status.Interrupted},
		{ErrNotImplemented, status.NotImplemented},
		{StatusError(-77), -77},
		{fmt.Errorf("wrap: %w", StatusError(-3)), -3},
		{errors.New("unclassified"), status.Invalid},
	} {
		if got := StatusCode(tc.err); got != tc.want {
			t.Errorf("StatusCode(%v): got %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestOpString(t *testing.T) {
	for op, want := range map[Op]string{
		OpEnable:      "enable",
		OpDisable:     "disable",
		OpCellCreate:  "cell-create",
		OpCellDestroy: "cell-destroy",
		Op(42):        "op(42)",
	} {
		if got := op.String(); got != want {
			t.Errorf("Op(%d).String(): got %q, want %q", uint32(op), got, want)
		}
	}
}
