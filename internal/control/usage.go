package control

import "sync/atomic"

// UsageGate is the loader's usage reference: enable holds one for the
// whole time the hypervisor is active so the loader cannot go away
// underneath it. A gate that refuses the reference fails the enable with
// busy and no side effects.
type UsageGate interface {
	TryAcquire() bool
	Release()
}

// UsageCount is the default gate: it always grants and just counts, which
// also lets tests observe whether the reference is held.
type UsageCount struct {
	n atomic.Int32
}

func (u *UsageCount) TryAcquire() bool {
	u.n.Add(1)
	return true
}

func (u *UsageCount) Release() { u.n.Add(-1) }

// Held reports the number of outstanding references.
func (u *UsageCount) Held() int { return int(u.n.Load()) }

var _ UsageGate = (*UsageCount)(nil)
