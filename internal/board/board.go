// Package board holds the process-wide, one-shot-initialized description of
// the platform: the physical regions every other package needs to agree on
// (memory, UART, CLINT, test device, device tree) and the hart count.
package board

import "sync"

// Default physical memory map, per the QEMU `virt`-style layout the
// firmware targets when no device tree overrides it.
const (
	DefaultUARTBase   = 0x1000_0000
	DefaultTestBase   = 0x0010_0000
	DefaultCLINTBase  = 0x0200_0000
	DefaultFirmware   = 0x8000_0000
	DefaultSupervisor = 0x8020_0000

	// DefaultSMP is the hart count assumed when the device tree cannot be
	// parsed.
	DefaultSMP = 8

	uartWindowSize  = 0x100
	testWindowSize  = 0x1000
	clintWindowSize = 0x10000
)

// Descriptor is the immutable, process-wide record every component reads
// after bootstrap publishes it: the memory region, the three MMIO device
// regions, the device-tree region, the platform model string, and the
// hart count.
type Descriptor struct {
	Model string

	MemoryBase uint64
	MemoryEnd  uint64

	UARTBase  uint64
	UARTEnd   uint64
	TestBase  uint64
	TestEnd   uint64
	CLINTBase uint64
	CLINTEnd  uint64

	DTBBase uint64
	DTBEnd  uint64

	SupervisorEntry uint64

	SMP int
}

// Default returns the conventional board used when no device tree and no
// config override is supplied.
func Default() Descriptor {
	return Descriptor{
		Model:           "qemu,virt-sbifw",
		MemoryBase:      DefaultFirmware,
		MemoryEnd:       DefaultFirmware + 0x8000_0000,
		UARTBase:        DefaultUARTBase,
		UARTEnd:         DefaultUARTBase + uartWindowSize,
		TestBase:        DefaultTestBase,
		TestEnd:         DefaultTestBase + testWindowSize,
		CLINTBase:       DefaultCLINTBase,
		CLINTEnd:        DefaultCLINTBase + clintWindowSize,
		SupervisorEntry: DefaultSupervisor,
		SMP:             DefaultSMP,
	}
}

var (
	once    sync.Once
	current Descriptor
)

// Init publishes d as the process-wide board descriptor. It is called
// exactly once, by the genesis hart during global bootstrap; later calls
// are no-ops.
func Init(d Descriptor) {
	once.Do(func() {
		current = d
	})
}

// Get returns the published descriptor. Every hart other than genesis
// spins on the bootstrap barrier before calling this, so by the time it is
// reachable the descriptor is fully initialized.
func Get() Descriptor {
	return current
}
