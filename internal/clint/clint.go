// Package clint implements the core-local interruptor: per-hart software
// interrupt bits (msip) and per-hart timer comparators (mtimecmp) backed
// by a free-running counter (mtime), at the register layout the QEMU
// `virt` platform uses.
package clint

import (
	"sync"
	"time"

	"sbifw/internal/mmio"
)

const (
	msipStride     = 4
	mtimecmpOffset = 0x4000
	mtimecmpStride = 8
	mtimeOffset    = 0xBFF8
)

// CLINT is the simulated device. mtime is driven by a real monotonic clock
// scaled to a configurable frequency rather than by an external stepping
// call, since nothing else in this firmware advances time explicitly.
type CLINT struct {
	mu    sync.Mutex
	arena *mmio.Arena

	hz    uint64
	epoch time.Time
}

// New constructs a CLINT device occupying arena, ticking at hz Hz.
func New(arena *mmio.Arena, hz uint64) *CLINT {
	return &CLINT{arena: arena, hz: hz, epoch: time.Now()}
}

// ReadTime returns the current value of mtime.
func (c *CLINT) ReadTime() uint64 {
	elapsed := time.Since(c.epoch)
	return uint64(elapsed.Seconds() * float64(c.hz))
}

func (c *CLINT) msipAddr(hart int) uint64 {
	return c.arena.Base() + uint64(hart*msipStride)
}

func (c *CLINT) mtimecmpAddr(hart int) uint64 {
	return c.arena.Base() + mtimecmpOffset + uint64(hart*mtimecmpStride)
}

// SetSoftware sets hart's msip bit. Setting is idempotent, so races among
// multiple senders targeting the same hart are benign.
func (c *CLINT) SetSoftware(hart int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arena.Store32(c.msipAddr(hart), 1)
}

// ClearSoftware clears hart's msip bit, done by the trap core on entry to
// the machine-software handler.
func (c *CLINT) ClearSoftware(hart int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arena.Store32(c.msipAddr(hart), 0)
}

// SoftwarePending reports hart's msip bit.
func (c *CLINT) SoftwarePending(hart int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.arena.Load32(c.msipAddr(hart))
	return v != 0
}

// SetTimerCmp programs hart's mtimecmp to deadline.
func (c *CLINT) SetTimerCmp(hart int, deadline uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arena.Store64(c.mtimecmpAddr(hart), deadline)
}

// TimerCmp returns hart's currently programmed mtimecmp.
func (c *CLINT) TimerCmp(hart int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.arena.Load64(c.mtimecmpAddr(hart))
	return v
}

// TimerPending reports whether hart's programmed deadline has passed.
func (c *CLINT) TimerPending(hart int) bool {
	cmp := c.TimerCmp(hart)
	return c.ReadTime() >= cmp
}
