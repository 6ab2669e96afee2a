// Package hart holds the per-hart architectural state: the supervisor
// register file a trap saves on entry, the machine-mode CSR snapshot taken
// at the same time, and the delegated supervisor-visible CSRs the trap core
// emulates when it forwards a trap instead of handling it locally.
package hart

import (
	"sync"

	"sbifw/internal/hsm"
	"sbifw/internal/pmp"
)

// Register indices into RegisterFile, named the way the calling convention
// names them. x0 is hardwired zero and has no slot.
const (
	RA = 1
	SP = 2
	GP = 3
	TP = 4
	T0 = 5
	T1 = 6
	T2 = 7
	S0 = 8
	S1 = 9
	A0 = 10
	A1 = 11
	A2 = 12
	A3 = 13
	A4 = 14
	A5 = 15
	A6 = 16
	A7 = 17
	S2 = 18
	T3 = 28
	T4 = 29
	T5 = 30
	T6 = 31
)

// RegisterFile is the supervisor's 31 integer general-purpose registers,
// x1 through x31 (x0 is not stored; it reads as zero everywhere it matters).
// It occupies the same role as the TrapFrame the trap-vector assembly saves
// registers into on a real machine.
type RegisterFile struct {
	X [32]uint64
}

// Get returns register r, or zero for x0.
func (r *RegisterFile) Get(reg int) uint64 {
	if reg == 0 {
		return 0
	}
	return r.X[reg]
}

// Set writes register r; writes to x0 are discarded.
func (r *RegisterFile) Set(reg int, v uint64) {
	if reg == 0 {
		return
	}
	r.X[reg] = v
}

// MachineFrame is the machine-mode CSR snapshot taken on trap entry:
// mstatus, mepc and mcause as the trap vector assembly would have saved
// them before handing control to the dispatcher.
type MachineFrame struct {
	Status uint64
	Epc    uint64
	Cause  uint64
	// Tval carries the faulting instruction word for illegal-instruction
	// traps, so the rdtime pseudo-instruction can be decoded without a
	// real instruction-fetch path.
	Tval uint64
}

// mstatus.MPP values as the architecture defines them (2-bit field).
const (
	MPPUser       = 0
	MPPSupervisor = 1
	MPPMachine    = 3
)

// SupervisorCSRs are the CSRs the trap core populates when it forwards a
// trap into supervisor mode instead of handling it in machine mode: scause,
// stval, sepc, stvec, and the interrupt-enable/pending bits delegation
// moves across the privilege boundary.
type SupervisorCSRs struct {
	Tvec  uint64
	Epc   uint64
	Cause uint64
	Tval  uint64

	IE  bool // sstatus.SIE
	PIE bool // sstatus.SPIE

	TimerPending    bool // sip.STIP
	SoftwarePending bool // sip.SSIP
	ExternalPending bool // sip.SEIP
}

// Context is the per-hart record described by the data model: the
// supervisor register snapshot, the machine CSR snapshot, the delegated
// supervisor CSRs, and the HSM cell governing this hart's lifecycle.
//
// On real hardware this struct and its hart's trap/boot stack share one
// 16KiB, 128-byte-aligned block so the context pointer fits in mscratch;
// the hosted build keeps the struct but has no need for the backing stack
// memory itself.
type Context struct {
	ID int

	Regs  RegisterFile
	Frame MachineFrame
	S     SupervisorCSRs

	// Cell is this hart's HSM lifecycle cell. The boot hart's cell is
	// seeded directly into a pending start by bootstrap; every other
	// hart's begins STOPPED.
	Cell *hsm.Cell

	// PMP is the set of protection regions installed on this hart during
	// per-hart bootstrap. It is identical across harts (derived once from
	// the board descriptor) but kept per-context since a real PMP table is
	// architecturally per-hart state.
	PMP []pmp.Entry

	// MachineTimerEnabled mirrors mie.MTIE: cleared by the trap core when a
	// machine timer interrupt is taken, set again when the timer extension
	// programs a new deadline.
	MachineTimerEnabled bool

	// TrapMu serializes trap dispatch on this hart: a hart processes one
	// trap at a time, whether it arrived as a synchronous ecall or an
	// asynchronous wakeup from another hart's IPI.
	TrapMu sync.Mutex
}

// NewContext returns a freshly parked hart context with a STOPPED HSM
// cell. The caller seeds Cell differently for the genesis hart.
func NewContext(id int) *Context {
	return &Context{ID: id, Cell: hsm.NewCell(hsm.Stopped)}
}
