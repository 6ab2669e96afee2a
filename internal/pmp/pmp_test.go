package pmp

import (
	"testing"

	"sbifw/internal/board"
)

func TestDeriveOrderingAndPermissions(t *testing.T) {
	d := board.Default()
	entries := Derive(d)
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}

	want := []Permission{None, RW, None, RWX, RW}
	for i, e := range entries {
		if e.Perm != want[i] {
			t.Errorf("entry %d perm = %v, want %v", i, e.Perm, want[i])
		}
		if i > 0 && e.Start != entries[i-1].End {
			t.Errorf("entry %d does not start where entry %d ended: %#x vs %#x", i, i-1, e.Start, entries[i-1].End)
		}
	}

	if entries[3].Start != d.SupervisorEntry {
		t.Errorf("supervisor region starts at %#x, want %#x", entries[3].Start, d.SupervisorEntry)
	}
	if entries[4].End != ^uint64(0) {
		t.Errorf("final region should extend to the top of the address space")
	}
}

func TestEncodeTOR(t *testing.T) {
	if got := EncodeTOR(0x8000_0000); got != 0x8000_0000>>2 {
		t.Errorf("EncodeTOR = %#x", got)
	}
}
