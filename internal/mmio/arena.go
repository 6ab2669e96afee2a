// Package mmio backs the simulated physical address space. Real firmware
// addresses MMIO registers and RAM through the same load/store instructions
// the CPU uses for everything else; the hosted build gives every device an
// Arena, a byte slice carved out of one flat address space, and devices
// implement their register semantics on top of it, serialized by their own
// mutex the same way a real device's register block would be.
package mmio

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Arena is a fixed-size, fixed-base block of simulated physical memory.
// It is backed by an anonymous mmap when available so that tools which
// inspect process memory see the same kind of mapping a real emulator
// would hand a guest; plain allocation is the fallback where mmap is
// unavailable.
type Arena struct {
	base uint64
	mem  []byte
}

// NewArena allocates an arena of size bytes representing the physical
// range [base, base+size).
func NewArena(base uint64, size int) (*Arena, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		mem = make([]byte, size)
	}
	return &Arena{base: base, mem: mem}, nil
}

// Base returns the arena's physical base address.
func (a *Arena) Base() uint64 { return a.base }

// Size returns the arena's length in bytes.
func (a *Arena) Size() int { return len(a.mem) }

// End returns the address one past the arena's last byte.
func (a *Arena) End() uint64 { return a.base + uint64(len(a.mem)) }

// Contains reports whether the half-open span [addr, addr+length) lies
// entirely within the arena. A zero-length span is contained if addr
// falls anywhere in [base, end].
func (a *Arena) Contains(addr, length uint64) bool {
	if length == 0 {
		return addr >= a.base && addr <= a.End()
	}
	if addr < a.base || addr >= a.End() {
		return false
	}
	end := addr + length
	if end < addr {
		return false
	}
	return end <= a.End()
}

func (a *Arena) off(addr uint64, width int) (int, error) {
	if addr < a.base || addr+uint64(width) > a.End() {
		return 0, fmt.Errorf("mmio: access at %#x width %d out of range [%#x, %#x)", addr, width, a.base, a.End())
	}
	return int(addr - a.base), nil
}

// Load8 reads a single byte at addr.
func (a *Arena) Load8(addr uint64) (byte, error) {
	off, err := a.off(addr, 1)
	if err != nil {
		return 0, err
	}
	return a.mem[off], nil
}

// Store8 writes a single byte at addr.
func (a *Arena) Store8(addr uint64, v byte) error {
	off, err := a.off(addr, 1)
	if err != nil {
		return err
	}
	a.mem[off] = v
	return nil
}

// Load32 reads a little-endian 32-bit word at addr.
func (a *Arena) Load32(addr uint64) (uint32, error) {
	off, err := a.off(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(a.mem[off:]), nil
}

// Store32 writes a little-endian 32-bit word at addr.
func (a *Arena) Store32(addr uint64, v uint32) error {
	off, err := a.off(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(a.mem[off:], v)
	return nil
}

// Load64 reads a little-endian 64-bit word at addr.
func (a *Arena) Load64(addr uint64) (uint64, error) {
	off, err := a.off(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(a.mem[off:]), nil
}

// Store64 writes a little-endian 64-bit word at addr.
func (a *Arena) Store64(addr uint64, v uint64) error {
	off, err := a.off(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(a.mem[off:], v)
	return nil
}

// CopyIn copies src into the arena starting at addr. The caller must have
// already bounds-checked the span with Contains.
func (a *Arena) CopyIn(addr uint64, src []byte) {
	off := int(addr - a.base)
	copy(a.mem[off:off+len(src)], src)
}

// CopyOut copies length bytes starting at addr out of the arena. The
// caller must have already bounds-checked the span with Contains.
func (a *Arena) CopyOut(addr uint64, length int) []byte {
	off := int(addr - a.base)
	out := make([]byte, length)
	copy(out, a.mem[off:off+length])
	return out
}
