// Package pmp derives and records the physical memory protection entries
// every hart installs during per-hart bootstrap.
package pmp

import "sbifw/internal/board"

// Permission is a bitmask of the architecture's R/W/X PMP bits.
type Permission uint8

const (
	None  Permission = 0
	Read  Permission = 1 << 0
	Write Permission = 1 << 1
	Exec  Permission = 1 << 2

	RW  = Read | Write
	RWX = Read | Write | Exec
)

// Entry is one TOR (top-of-range) PMP region: it protects [Start, End)
// under the given permission.
type Entry struct {
	Start uint64
	End   uint64
	Perm  Permission
}

// Derive builds the five TOR entries described for the platform's board
// descriptor: a null guard, the MMIO window, the firmware image, the
// supervisor payload, and the remaining address space.
//
// The first peripheral-adjacent boundary is taken as the lowest of the
// UART/test/CLINT bases, and the MMIO region runs from there up to the
// start of general memory, mirroring how the reference firmware derives
// its protection ranges from board-provided addresses rather than from
// fixed constants.
func Derive(d board.Descriptor) []Entry {
	firstPeripheral := d.TestBase
	if d.UARTBase < firstPeripheral {
		firstPeripheral = d.UARTBase
	}
	if d.CLINTBase < firstPeripheral {
		firstPeripheral = d.CLINTBase
	}

	return []Entry{
		{Start: 0, End: firstPeripheral, Perm: None},
		{Start: firstPeripheral, End: d.MemoryBase, Perm: RW},
		{Start: d.MemoryBase, End: d.SupervisorEntry, Perm: None},
		{Start: d.SupervisorEntry, End: d.MemoryEnd, Perm: RWX},
		{Start: d.MemoryEnd, End: ^uint64(0), Perm: RW},
	}
}

// EncodeTOR returns the architecture's word-shift encoding of a TOR
// boundary address: addr[55:2] packed into the low 54 bits of the pmpaddr
// CSR value, per the RISC-V privileged specification's 4-byte-granule
// convention.
func EncodeTOR(addr uint64) uint64 {
	return (addr >> 2) & (1<<54 - 1)
}
