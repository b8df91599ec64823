package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cellbox/cellbox/internal/cell"
	"github.com/cellbox/cellbox/internal/physmap"
)

// CellRequest is a decoded cell-create request: the descriptor wire bytes
// plus the preload images named by the request. Exactly one image is
// supported.
type CellRequest struct {
	Config []byte
	Images []cell.PreloadImage
}

// CellCreate validates the request, dedicates the named CPUs, prepares the
// cell's RAM and instantiates the cell with a single hypercall. The RAM
// mapping and the decoded descriptor are released on every exit path.
// CPUs offlined here stay offlined until the hypervisor is disabled;
// they are only rolled back when the create fails before reaching the
// state check.
func (s *Service) CellCreate(ctx context.Context, req CellRequest) error {
	if len(req.Images) != 1 {
		return fmt.Errorf("%w: %d preload images, exactly one supported", ErrInvalidInput, len(req.Images))
	}
	image := req.Images[0]
	if image.Size > uint64(len(image.Source)) {
		return fmt.Errorf("%w: preload image declares %d bytes, source holds %d",
			ErrFaultyInput, image.Size, len(image.Source))
	}

	desc, err := cell.Decode(req.Config)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Dedicate the cell's CPUs. Only the CPUs this call actually offlined
	// are candidates for rollback.
	var offlined []int
	rollback := func() { s.tracker.Rollback(offlined) }
	for _, cpu := range desc.CPUSet.IDs() {
		recorded, err := s.tracker.OfflineAndRecord(cpu)
		if err != nil {
			rollback()
			return fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
		}
		if recorded {
			offlined = append(offlined, cpu)
		}
	}

	ram, ok := desc.RAM()
	if !ok {
		rollback()
		return fmt.Errorf("%w: cell has no memory regions", ErrInvalidInput)
	}
	if ram.Size < cell.MinRAMSize {
		rollback()
		return fmt.Errorf("%w: cell RAM %d bytes, minimum is %d", ErrInvalidInput, ram.Size, cell.MinRAMSize)
	}
	if image.Size > ram.Size || image.TargetOffset > ram.Size-image.Size {
		rollback()
		return fmt.Errorf("%w: preload image [0x%x+0x%x) exceeds cell RAM of %d bytes",
			ErrInvalidInput, image.TargetOffset, image.Size, ram.Size)
	}

	mapping, err := s.mapper.Map(ram.PhysStart, ram.Size, physmap.AttrRead|physmap.AttrWrite|physmap.AttrCached)
	if err != nil {
		rollback()
		return fmt.Errorf("%w: map cell RAM %v: %v", ErrResourceUnavailable, ram, err)
	}
	defer func() {
		if err := mapping.Close(); err != nil {
			slog.Warn("failed to unmap cell RAM", "err", err)
		}
	}()

	buf := mapping.Bytes()
	clear(buf)
	copy(buf[image.TargetOffset:], image.Source[:image.Size])

	if err := s.acquire(ctx); err != nil {
		rollback()
		return err
	}
	defer s.release()

	if !s.enabled.Load() {
		// The CPUs stay offlined: offlining is scoped to the enabled
		// hypervisor and undone by Disable, not here.
		return ErrInvalidState
	}

	if code := s.gate.CellCreate(desc.Raw()); code != 0 {
		return StatusError(code)
	}

	slog.Info("created cell", "name", desc.Name, "cpus", desc.CPUSet.String())
	return nil
}

// CellDestroy is not supported by this loader.
func (s *Service) CellDestroy(ctx context.Context) error {
	return ErrNotImplemented
}
