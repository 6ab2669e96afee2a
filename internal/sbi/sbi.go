// Package sbi implements the ecall decoder and the standardized extension
// handlers it dispatches to: Base, Timer, IPI, HSM, Reset, debug console,
// the RFENCE stub, and the legacy single-argument shims.
//
// The dispatcher is a closed table keyed by extension identifier rather
// than a set of trait-object-style handler interfaces: the extension set
// is fixed at compile time, so dynamic dispatch buys nothing and a map
// lookup reads closer to the calling convention it implements.
package sbi

import (
	"sbifw/internal/board"
	"sbifw/internal/clint"
	"sbifw/internal/hart"
	"sbifw/internal/hsm"
	"sbifw/internal/testdev"
	"sbifw/internal/uart"
)

// Extension identifiers, packed big-endian ASCII per the calling
// convention's fixed registry. ExtPMU is listed for reference but has no
// registered handler: this firmware exposes no performance counters, and
// probe_extension must report that honestly rather than claiming an
// extension whose every call fails.
const (
	ExtBase = 0x10
	ExtTime = 0x54494D45
	ExtIPI  = 0x735049
	ExtRFNC = 0x52464E43
	ExtHSM  = 0x48534D
	ExtSRST = 0x53525354
	ExtDBCN = 0x4442434E
	ExtPMU  = 0x504D55
)

// Error codes fixed by the SBI specification.
const (
	Success          = 0
	Failed           = -1
	NotSupported     = -2
	InvalidParam     = -3
	Denied           = -4
	InvalidAddress   = -5
	AlreadyAvailable = -6
	AlreadyStarted   = -7
	AlreadyStopped   = -8
)

// Ret is the (error, value) pair every extension call produces.
type Ret struct {
	Error int64
	Value uint64
}

func ok(value uint64) Ret { return Ret{Error: Success, Value: value} }
func errOnly(e int64) Ret { return Ret{Error: e} }

// Handler implements one extension's functions. eid is a7, fid is a6,
// args holds a0..a5 in order. terminate reports whether the calling hart
// should park (or the process should exit) instead of resuming the
// supervisor at pc+4. Legacy extensions use eid itself to select their
// operation and ignore fid.
type Handler func(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (ret Ret, terminate bool)

// Dispatcher is the process-wide SBI implementation: it owns references
// to every device and hart a handler might need to touch.
type Dispatcher struct {
	Board board.Descriptor
	Harts []*hart.Context
	CLINT *clint.CLINT
	UART  *uart.UART
	Test  *testdev.Device

	extensions map[uint64]Handler
}

// NewDispatcher wires the standard extension set.
func NewDispatcher(b board.Descriptor, harts []*hart.Context, c *clint.CLINT, u *uart.UART, t *testdev.Device) *Dispatcher {
	d := &Dispatcher{Board: b, Harts: harts, CLINT: c, UART: u, Test: t}
	d.extensions = map[uint64]Handler{
		ExtBase: handleBase,
		ExtTime: handleTimer,
		ExtIPI:  handleIPI,
		ExtHSM:  handleHSM,
		ExtSRST: handleReset,
		ExtDBCN: handleConsole,
		ExtRFNC: handleRFENCE,
	}
	for id := uint64(0x00); id <= 0x08; id++ {
		d.extensions[id] = handleLegacy
	}
	return d
}

// Supports reports whether eid has a registered handler, the predicate
// behind the Base extension's probe-extension function.
func (d *Dispatcher) Supports(eid uint64) bool {
	_, ok := d.extensions[eid]
	return ok
}

// Dispatch decodes ctx's a7/a6/a0..a5, runs the matching extension
// handler, and writes the (error, value) pair back into a0/a1. It reports
// whether the hart should terminate rather than resume at pc+4.
func (d *Dispatcher) Dispatch(ctx *hart.Context) (terminate bool) {
	eid := ctx.Regs.Get(hart.A7)
	fid := ctx.Regs.Get(hart.A6)
	var args [6]uint64
	args[0] = ctx.Regs.Get(hart.A0)
	args[1] = ctx.Regs.Get(hart.A1)
	args[2] = ctx.Regs.Get(hart.A2)
	args[3] = ctx.Regs.Get(hart.A3)
	args[4] = ctx.Regs.Get(hart.A4)
	args[5] = ctx.Regs.Get(hart.A5)

	h, found := d.extensions[eid]
	var ret Ret
	if !found {
		ret = errOnly(NotSupported)
	} else {
		ret, terminate = h(d, ctx, eid, fid, args)
	}

	ctx.Regs.Set(hart.A0, uint64(ret.Error))
	ctx.Regs.Set(hart.A1, ret.Value)
	return terminate
}

// hartByID returns the context for id, or nil if id names no hart on this
// board.
func (d *Dispatcher) hartByID(id uint64) *hart.Context {
	if int(id) < 0 || int(id) >= len(d.Harts) {
		return nil
	}
	return d.Harts[id]
}

// statusToError maps an HSM cell state observed by a failed remote.start
// to the SBI error code the caller reports.
func statusToError(s hsm.State) int64 {
	switch s {
	case hsm.Started:
		return AlreadyAvailable
	case hsm.StartPending, hsm.SuspendPending, hsm.ResumePending:
		return AlreadyStarted
	default:
		return InvalidParam
	}
}
