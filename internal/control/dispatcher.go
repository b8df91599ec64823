package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cellbox/cellbox/internal/cell"
)

// Op identifies a control interface operation.
type Op uint32

const (
	OpEnable Op = iota + 1
	OpDisable
	OpCellCreate
	OpCellDestroy
)

func (op Op) String() string {
	switch op {
	case OpEnable:
		return "enable"
	case OpDisable:
		return "disable"
	case OpCellCreate:
		return "cell-create"
	case OpCellDestroy:
		return "cell-destroy"
	default:
		return fmt.Sprintf("op(%d)", uint32(op))
	}
}

// Request is one control interface request.
type Request struct {
	Op      Op
	Payload []byte
	// Images accompanies OpCellCreate.
	Images []cell.PreloadImage
}

// Dispatcher routes control requests to the service and flattens results
// to the signed wire status.
type Dispatcher struct {
	Service *Service
}

func (d Dispatcher) Dispatch(ctx context.Context, req Request) int32 {
	var err error
	switch req.Op {
	case OpEnable:
		err = d.Service.Enable(ctx, req.Payload)
	case OpDisable:
		err = d.Service.Disable(ctx)
	case OpCellCreate:
		err = d.Service.CellCreate(ctx, CellRequest{Config: req.Payload, Images: req.Images})
	case OpCellDestroy:
		err = d.Service.CellDestroy(ctx)
	default:
		err = fmt.Errorf("%w: unknown operation %d", ErrInvalidInput, uint32(req.Op))
	}
	if err != nil {
		slog.Debug("control request failed", "op", req.Op.String(), "err", err)
	}
	return StatusCode(err)
}
