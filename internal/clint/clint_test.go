package clint

import (
	"testing"
	"time"

	"sbifw/internal/mmio"
)

func newTestCLINT(t *testing.T) *CLINT {
	t.Helper()
	arena, err := mmio.NewArena(0x0200_0000, 0x10000)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	return New(arena, 10_000_000)
}

func TestSoftwareInterruptIdempotent(t *testing.T) {
	c := newTestCLINT(t)
	c.SetSoftware(3)
	c.SetSoftware(3)
	if !c.SoftwarePending(3) {
		t.Fatal("expected msip set")
	}
	if c.SoftwarePending(0) {
		t.Fatal("unrelated hart should be unaffected")
	}
	c.ClearSoftware(3)
	if c.SoftwarePending(3) {
		t.Fatal("expected msip cleared")
	}
}

func TestTimerPartitionedPerHart(t *testing.T) {
	c := newTestCLINT(t)
	c.SetTimerCmp(0, 100)
	c.SetTimerCmp(1, 200)
	if got := c.TimerCmp(0); got != 100 {
		t.Errorf("hart 0 cmp = %d, want 100", got)
	}
	if got := c.TimerCmp(1); got != 200 {
		t.Errorf("hart 1 cmp = %d, want 200", got)
	}
}

func TestTimerPendingAfterDeadline(t *testing.T) {
	c := newTestCLINT(t)
	c.SetTimerCmp(0, 0) // already in the past
	if !c.TimerPending(0) {
		t.Fatal("expected timer pending with deadline 0")
	}
	c.SetTimerCmp(0, ^uint64(0))
	if c.TimerPending(0) {
		t.Fatal("max deadline should not be pending")
	}
}

func TestReadTimeMonotonic(t *testing.T) {
	c := newTestCLINT(t)
	a := c.ReadTime()
	time.Sleep(time.Millisecond)
	b := c.ReadTime()
	if b < a {
		t.Fatalf("mtime went backwards: %d -> %d", a, b)
	}
}
