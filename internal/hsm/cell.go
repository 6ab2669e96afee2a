// Package hsm implements the hart state monitor cell: a lock-free handoff
// of a supervisor descriptor between the hart requesting a start and the
// target hart, published through a small state machine.
package hsm

import (
	"math"
	"sync/atomic"
)

// State is one of the values the SBI specification fixes for
// sbi_hart_get_status, plus the package-private "writing" sentinel which
// never escapes GetStatus.
type State uint32

const (
	Started State = iota
	Stopped
	StartPending
	StopPending
	Suspended
	SuspendPending
	ResumePending
)

// writing is the private sentinel a Cell publishes while a remote Start is
// mid-write: the descriptor slot is not yet safe to read, but the cell is
// already committed to leaving Stopped. It is never returned by GetStatus
// or LocalStart's failure case.
const writing State = math.MaxUint32

// Descriptor is the payload handed from the hart calling hart_start to the
// hart being started: where to resume, and the opaque word to pass in a1.
type Descriptor struct {
	StartAddr uintptr
	Opaque    uintptr
}

// Cell is one hart's state/slot pair. The zero value is STARTED (state 0)
// with an empty slot; NewCell builds a cell in any other initial state.
type Cell struct {
	state atomic.Uint32
	slot  atomic.Pointer[Descriptor]
}

// NewCell returns a cell in the given initial state with an empty slot.
// hart.NewContext uses it to create every hart's cell STOPPED; bootstrap
// then seeds the genesis hart's pending boot through RemoteStart.
func NewCell(initial State) *Cell {
	c := &Cell{}
	c.state.Store(uint32(initial))
	return c
}

// RemoteStart attempts the STOPPED -> start-pending-writing -> START_PENDING
// transition on behalf of another hart, publishing descriptor into the slot
// in between. It returns false without touching the slot if the cell was
// not STOPPED.
func (c *Cell) RemoteStart(d Descriptor) bool {
	if !c.state.CompareAndSwap(uint32(Stopped), uint32(writing)) {
		return false
	}
	c.slot.Store(&d)
	c.state.Store(uint32(StartPending)) // release: publishes the slot write
	return true
}

// LocalStart attempts the START_PENDING -> STARTED transition from the
// owning hart. On success it returns the descriptor and consumes the slot.
// If it observes the private writing sentinel (the producer is between its
// two stores) it spins briefly rather than failing spuriously. Any other
// observed state is returned as a failure.
func (c *Cell) LocalStart() (Descriptor, State, bool) {
	for {
		if c.state.CompareAndSwap(uint32(StartPending), uint32(Started)) {
			d := c.slot.Swap(nil)
			if d == nil {
				// Producer published the state before the slot write landed
				// from this goroutine's point of view; on real hardware the
				// release/acquire pair rules this out, but under the Go
				// memory model a CAS is already a full barrier, so this
				// branch is unreachable in practice and kept only as a
				// documented invariant check.
				return Descriptor{}, Started, false
			}
			return *d, 0, true
		}
		observed := State(c.state.Load())
		if observed == writing {
			continue
		}
		return Descriptor{}, observed, false
	}
}

// LocalStop releases-stores STOPPED. It does not touch the slot.
func (c *Cell) LocalStop() {
	c.state.Store(uint32(Stopped))
}

// LocalSuspend releases-stores SUSPENDED for a retentive suspend.
func (c *Cell) LocalSuspend() {
	c.state.Store(uint32(Suspended))
}

// LocalResume releases-stores STARTED, used when a retentive suspend wakes.
func (c *Cell) LocalResume() {
	c.state.Store(uint32(Started))
}

// LocalSuspendNonRetentive replaces the slot with the resume descriptor and
// releases-stores STOPPED, the same state hart_stop leaves. Nothing consumes
// the descriptor while the cell is STOPPED: LocalStart takes the slot only
// from START_PENDING, and a later RemoteStart overwrites it with the
// starting hart's descriptor.
func (c *Cell) LocalSuspendNonRetentive(d Descriptor) {
	c.slot.Store(&d)
	c.state.Store(uint32(Stopped))
}

// GetStatus acquire-loads the state, collapsing the private sentinel to
// START_PENDING so it is never observed outside this package.
func (c *Cell) GetStatus() State {
	s := State(c.state.Load())
	if s == writing {
		return StartPending
	}
	return s
}
