package board

import "testing"

func TestDefaultLayout(t *testing.T) {
	d := Default()
	if d.SMP != DefaultSMP {
		t.Fatalf("SMP = %d, want %d", d.SMP, DefaultSMP)
	}
	if d.UARTBase != DefaultUARTBase || d.UARTEnd <= d.UARTBase {
		t.Fatalf("UART region = [%#x, %#x)", d.UARTBase, d.UARTEnd)
	}
	if d.SupervisorEntry <= d.MemoryBase || d.SupervisorEntry >= d.MemoryEnd {
		t.Fatalf("supervisor entry %#x should fall strictly inside [%#x, %#x)",
			d.SupervisorEntry, d.MemoryBase, d.MemoryEnd)
	}
}
