package hypercall

import (
	"sync"
	"sync/atomic"
)

// Sim is a scriptable gate for the simulation backend and the tests. By
// default every call succeeds; individual codes can be overridden to
// exercise failure propagation.
type Sim struct {
	// EnterCode is returned by Enter. EnterCodePerCPU, when set, wins for
	// the CPUs it names.
	EnterCode       int32
	EnterCodePerCPU map[int]int32
	// LeaveCode is returned by Leave.
	LeaveCode int32
	// CellCreateCode is returned by CellCreate.
	CellCreateCode int32

	enterCalls atomic.Int32
	leaveCalls atomic.Int32

	mu          sync.Mutex
	cellConfigs [][]byte
	lastEntry   uint64
}

func (s *Sim) Enter(ctx EntryContext, cpu int) int32 {
	s.enterCalls.Add(1)
	s.mu.Lock()
	s.lastEntry = ctx.Entry
	s.mu.Unlock()
	if code, ok := s.EnterCodePerCPU[cpu]; ok {
		return code
	}
	return s.EnterCode
}

func (s *Sim) Leave(cpu int) int32 {
	s.leaveCalls.Add(1)
	return s.LeaveCode
}

func (s *Sim) CellCreate(config []byte) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := make([]byte, len(config))
	copy(owned, config)
	s.cellConfigs = append(s.cellConfigs, owned)
	return s.CellCreateCode
}

// EnterCalls reports how many CPUs performed the enable transition.
func (s *Sim) EnterCalls() int { return int(s.enterCalls.Load()) }

// LeaveCalls reports how many CPUs performed the disable transition.
func (s *Sim) LeaveCalls() int { return int(s.leaveCalls.Load()) }

// CellConfigs returns the descriptor bytes of every cell-create call.
func (s *Sim) CellConfigs() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.cellConfigs))
	copy(out, s.cellConfigs)
	return out
}

// LastEntry returns the entry offset seen by the most recent Enter.
func (s *Sim) LastEntry() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEntry
}

var _ Gate = (*Sim)(nil)
