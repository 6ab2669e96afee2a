// Package trap implements the privilege-transition core: it decodes the
// machine cause delivered on a simulated trap, runs the matching action,
// and either resumes the supervisor, parks the hart, or panics.
//
// On real hardware this package would be a handful of assembly trap
// vectors plus a Go-callable dispatch switch, the way the register-swap
// and TrapFrame save/restore sequence is structured in the reference
// firmware. The hosted build has no real mscratch/CSR swap to perform: the
// saved supervisor registers and machine CSRs live in hart.Context's Regs
// and Frame fields, which Dispatch reads and writes in place; everything
// downstream of that (the cause dispatch, the rdtime emulation, the
// forwarding rule) is unchanged.
package trap

import (
	"fmt"

	"sbifw/internal/clint"
	"sbifw/internal/hart"
)

// Cause values. The interrupt bit follows the architecture's convention:
// set for asynchronous traps, clear for synchronous ones.
const (
	interruptBit = uint64(1) << 63

	CauseSupervisorEcall    = 9
	CauseIllegalInstruction = 2

	// CauseBoot is a synthetic cause, outside the architectural interrupt
	// and exception code spaces, that bootstrap injects once per hart
	// after per-hart init to drive the initial HSM-cell check.
	CauseBoot = 1 << 32

	causeMachineSoftware = interruptBit | 3
	causeMachineTimer    = interruptBit | 7
)

// MachineSoftwareCause and MachineTimerCause are exported so bootstrap and
// the hart run loop can compare against them without reaching into this
// package's unexported cause encoding.
func MachineSoftwareCause() uint64 { return causeMachineSoftware }
func MachineTimerCause() uint64    { return causeMachineTimer }

// Action tells the hart run loop what to do after Dispatch returns.
type Action int

const (
	// Resume means mepc/mstatus in ctx.Frame are ready to resume
	// execution, whether back in supervisor mode or, on a boot handshake,
	// at the payload's entry point.
	Resume Action = iota
	// Park means the hart should return to its wait-for-interrupt loop.
	Park
	// PanicAction means an unrecoverable machine-mode fault occurred.
	PanicAction
)

// EcallFunc is the hook into the SBI dispatcher. It runs the decoded
// ecall against ctx and reports whether the hart should terminate
// (hart_stop, non-retentive suspend, or a reset/shutdown request) rather
// than resume the supervisor at pc+4.
type EcallFunc func(ctx *hart.Context) (terminate bool)

// Core is the trap core for one simulated machine: it owns no per-hart
// state itself, only the shared CLINT every hart's timer/software
// handling consults, and the ecall hook wired to the SBI dispatcher.
type Core struct {
	CLINT *clint.CLINT
	Ecall EcallFunc
}

// PanicError is returned (via a recover-free Action) when Dispatch hits a
// cause with no handler or a non-delegable machine-mode fault.
type PanicError struct {
	HartID int
	Cause  uint64
	Epc    uint64
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("hart %d: unhandled trap cause %#x at pc %#x", e.HartID, e.Cause, e.Epc)
}

// Dispatch runs the dispatch matrix for the trap recorded in ctx.Frame and
// returns the resulting Action. When Action is PanicAction, err describes
// the fault.
func (c *Core) Dispatch(ctx *hart.Context) (Action, error) {
	cause := ctx.Frame.Cause
	switch cause {
	case CauseSupervisorEcall:
		terminate := c.Ecall(ctx)
		if terminate {
			return Park, nil
		}
		ctx.Frame.Epc += 4
		return Resume, nil

	case causeMachineTimer:
		ctx.MachineTimerEnabled = false
		ctx.S.TimerPending = true
		if ctx.S.IE {
			c.forwardToSupervisor(ctx)
		}
		return Resume, nil

	case causeMachineSoftware:
		c.CLINT.ClearSoftware(ctx.ID)
		if tryBoot(ctx) {
			return Resume, nil
		}
		ctx.S.SoftwarePending = true
		if ctx.S.IE {
			c.forwardToSupervisor(ctx)
		}
		return Resume, nil

	case CauseIllegalInstruction:
		if rd, ok := DecodeRdtime(uint32(ctx.Frame.Tval)); ok {
			ctx.Regs.Set(rd, c.CLINT.ReadTime())
			ctx.Frame.Epc += 4
			return Resume, nil
		}
		if !ShouldTransferTrap(ctx) {
			return PanicAction, &PanicError{HartID: ctx.ID, Cause: cause, Epc: ctx.Frame.Epc}
		}
		c.forwardToSupervisor(ctx)
		return Resume, nil

	case CauseBoot:
		if tryBoot(ctx) {
			return Resume, nil
		}
		return Park, nil

	default:
		return PanicAction, &PanicError{HartID: ctx.ID, Cause: cause, Epc: ctx.Frame.Epc}
	}
}

// tryBoot attempts to consume a pending start command from ctx's own HSM
// cell. On success it programs the frame and registers so the caller can
// mret straight into the supervisor payload with a0=hartid, a1=opaque.
func tryBoot(ctx *hart.Context) bool {
	desc, _, ok := ctx.Cell.LocalStart()
	if !ok {
		return false
	}
	ctx.Frame.Status = setMPP(ctx.Frame.Status, hart.MPPSupervisor)
	ctx.Regs.Set(hart.A0, uint64(ctx.ID))
	ctx.Regs.Set(hart.A1, uint64(desc.Opaque))
	ctx.Frame.Epc = uint64(desc.StartAddr)
	return true
}

// forwardToSupervisor implements should_transfer_trap's positive case:
// the supervisor-visible CSRs are populated from their machine
// counterparts, the interrupt-enable bit cascades into its prior-enable
// slot and is cleared, and the return PC becomes the supervisor's trap
// vector base.
func (c *Core) forwardToSupervisor(ctx *hart.Context) {
	ctx.S.Cause = ctx.Frame.Cause
	ctx.S.Tval = ctx.Frame.Tval
	ctx.S.Epc = ctx.Frame.Epc
	ctx.S.PIE = ctx.S.IE
	ctx.S.IE = false

	ctx.Frame.Status = setMPP(ctx.Frame.Status, hart.MPPSupervisor)
	ctx.Frame.Epc = ctx.S.Tvec
}

// ShouldTransferTrap reports whether the privilege level the trap
// interrupted was not machine mode. The hosted simulation never actually
// executes guest machine-mode code, so this only returns false when a
// test or bootstrap path has explicitly marked the frame as having
// faulted from machine mode itself.
func ShouldTransferTrap(ctx *hart.Context) bool {
	return mppOf(ctx.Frame.Status) != hart.MPPMachine
}

const mstatusMPPShift = 11
const mstatusMPPMask = uint64(0b11) << mstatusMPPShift

func mppOf(status uint64) int {
	return int((status & mstatusMPPMask) >> mstatusMPPShift)
}

func setMPP(status uint64, mpp int) uint64 {
	return (status &^ mstatusMPPMask) | (uint64(mpp) << mstatusMPPShift)
}

// DecodeRdtime reports whether instr is the rdtime pseudo-instruction,
// `csrrs rd, time, x0`: opcode SYSTEM (0x73), funct3 CSRRS (0b010), csr
// 0xC01, rs1 x0. It returns the destination register on a match.
func DecodeRdtime(instr uint32) (rd int, ok bool) {
	const (
		opcodeSystem = 0x73
		funct3CSRRS  = 0b010
		csrTime      = 0xC01
	)
	opcode := instr & 0x7f
	funct3 := (instr >> 12) & 0x7
	csr := (instr >> 20) & 0xFFF
	rs1 := (instr >> 15) & 0x1f
	if opcode != opcodeSystem || funct3 != funct3CSRRS || csr != csrTime || rs1 != 0 {
		return 0, false
	}
	return int((instr >> 7) & 0x1f), true
}
