// Package control is the loader's control plane: the enable/disable state
// machine, the cell lifecycle and the request dispatcher. One Service
// instance owns all mutable state (enabled flag, hypervisor mapping,
// offlined CPU set); a single administrative lock serializes every
// operation. These are rare, expensive administrative transitions, so the
// coarse lock is intentional.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cellbox/cellbox/internal/barrier"
	"github.com/cellbox/cellbox/internal/fwimage"
	"github.com/cellbox/cellbox/internal/hotplug"
	"github.com/cellbox/cellbox/internal/hvmem"
	"github.com/cellbox/cellbox/internal/hypercall"
	"github.com/cellbox/cellbox/internal/physmap"
)

// Config wires the platform capabilities into a Service.
type Config struct {
	Mapper   physmap.Mapper
	Hotplug  hotplug.Controller
	Gate     hypercall.Gate
	Executor barrier.Executor
	Firmware *fwimage.Loader

	// Usage guards loader lifetime while enabled. Nil gets a counting
	// gate that always grants.
	Usage UsageGate
}

type Service struct {
	mapper   physmap.Mapper
	hotplug  hotplug.Controller
	gate     hypercall.Gate
	exec     barrier.Executor
	firmware *fwimage.Loader
	usage    UsageGate

	// admin is the administrative lock: holding the single token means
	// holding the lock. Waiting on it can be cancelled through the
	// caller's context, which is the only interruptible blocking point.
	admin chan struct{}

	// enabled flips only under admin but is read lock-free, so observers
	// cannot hang behind a barrier in flight.
	enabled atomic.Bool
	// Guarded by admin.
	img *hvmem.Image

	tracker *hotplug.Tracker
}

func New(cfg Config) *Service {
	usage := cfg.Usage
	if usage == nil {
		usage = &UsageCount{}
	}
	return &Service{
		mapper:   cfg.Mapper,
		hotplug:  cfg.Hotplug,
		gate:     cfg.Gate,
		exec:     cfg.Executor,
		firmware: cfg.Firmware,
		usage:    usage,
		admin:    make(chan struct{}, 1),
		tracker:  hotplug.NewTracker(cfg.Hotplug),
	}
}

func (s *Service) acquire(ctx context.Context) error {
	// A cancelled wait never takes the lock, even if it happens to be free.
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
	default:
	}
	select {
	case s.admin <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
	}
}

func (s *Service) release() { <-s.admin }

// Enabled reports whether the hypervisor is active. It never waits on the
// administrative lock, so it stays answerable during a transition.
func (s *Service) Enabled() bool { return s.enabled.Load() }

// OfflinedCPUs returns the CPUs currently held offline for cells.
func (s *Service) OfflinedCPUs() []int { return s.tracker.Offlined() }

// Enable transitions the whole machine into the hypervisor-controlled
// state. req is the wire-form system configuration. On any partial
// failure everything acquired so far is rolled back and the state is left
// exactly as it was.
func (s *Service) Enable(ctx context.Context, req []byte) error {
	sysCfg, err := DecodeSystemConfig(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFaultyInput, err)
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if s.enabled.Load() {
		return ErrBusy
	}
	if !s.usage.TryAcquire() {
		return ErrBusy
	}
	// Every failure below must drop the usage reference again.

	fw, err := s.firmware.Load()
	if err != nil {
		s.usage.Release()
		if errors.Is(err, fwimage.ErrBadSignature) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	possible := s.hotplug.PossibleCPUs()
	layout := hvmem.ComputeLayout(fw.Header, possible, sysCfg.ConfigSize())
	region := sysCfg.HypervisorMemory
	if !layout.Fits(region.Size) {
		s.usage.Release()
		return fmt.Errorf("%w: reserved region %v holds %d bytes, layout needs more than %d",
			ErrInvalidInput, region, region.Size, layout.Total())
	}

	img, err := hvmem.Activate(s.mapper, region, fw, sysCfg.Raw, possible)
	if err != nil {
		s.usage.Release()
		return fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	online, err := s.hotplug.OnlineCPUs()
	if err != nil {
		img.Close()
		s.usage.Release()
		return fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	img.SetOnlineCPUs(len(online))

	entry := hypercall.EntryContext{Image: img.Bytes(), Entry: img.Entry()}
	outcome := barrier.Run(s.exec, online, func(cpu int) int32 {
		return s.gate.Enter(entry, cpu)
	})
	if code := outcome.Code(); code != 0 {
		img.Close()
		s.usage.Release()
		return StatusError(code)
	}

	// The firmware source is dropped here; only the mapped copy lives on.
	s.img = img
	s.enabled.Store(true)
	slog.Info("partitioning hypervisor enabled", "cpus", len(online), "region", region.String())
	return nil
}

// Disable reverses the enable transition. A failing leave barrier keeps
// the hypervisor enabled with its mapping intact; nothing is mutated
// before the barrier reports success.
func (s *Service) Disable(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if !s.enabled.Load() {
		return ErrInvalidState
	}

	online, err := s.hotplug.OnlineCPUs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	outcome := barrier.Run(s.exec, online, func(cpu int) int32 {
		return s.gate.Leave(cpu)
	})
	if code := outcome.Code(); code != 0 {
		return StatusError(code)
	}

	if err := s.img.Close(); err != nil {
		slog.Warn("failed to unmap hypervisor region", "err", err)
	}
	s.img = nil
	s.tracker.RestoreAll()
	s.enabled.Store(false)
	s.usage.Release()
	slog.Info("partitioning hypervisor disabled")
	return nil
}
