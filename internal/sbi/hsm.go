package sbi

import (
	"time"

	"sbifw/internal/hart"
	"sbifw/internal/hsm"
)

const (
	hsmStart      = 0
	hsmStop       = 1
	hsmGetStatus  = 2
	hsmSuspend    = 3
)

const (
	suspendRetentive    = 0
	suspendNonRetentive = 0x80000000
)

// wfiPollInterval stands in for the architectural wait-for-interrupt
// instruction: the hosted simulation has no way to literally halt a
// goroutine until a CLINT write lands, so retentive suspend polls its own
// software-interrupt bit at a short interval instead.
const wfiPollInterval = 50 * time.Microsecond

func handleHSM(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	switch fid {
	case hsmStart:
		return hsmHartStart(d, args)
	case hsmStop:
		return hsmHartStop(ctx)
	case hsmGetStatus:
		return hsmHartGetStatus(d, args)
	case hsmSuspend:
		return hsmHartSuspend(d, ctx, args)
	default:
		return errOnly(NotSupported), false
	}
}

func hsmHartStart(d *Dispatcher, args [6]uint64) (Ret, bool) {
	target := d.hartByID(args[0])
	if target == nil {
		return errOnly(InvalidParam), false
	}
	desc := hsm.Descriptor{StartAddr: uintptr(args[1]), Opaque: uintptr(args[2])}
	if !target.Cell.RemoteStart(desc) {
		return errOnly(statusToError(target.Cell.GetStatus())), false
	}
	d.CLINT.SetSoftware(target.ID)
	return ok(0), false
}

func hsmHartStop(ctx *hart.Context) (Ret, bool) {
	ctx.Cell.LocalStop()
	return ok(0), true
}

func hsmHartGetStatus(d *Dispatcher, args [6]uint64) (Ret, bool) {
	target := d.hartByID(args[0])
	if target == nil {
		return errOnly(InvalidParam), false
	}
	return ok(uint64(target.Cell.GetStatus())), false
}

func hsmHartSuspend(d *Dispatcher, ctx *hart.Context, args [6]uint64) (Ret, bool) {
	suspendType := args[0]
	switch suspendType {
	case suspendRetentive:
		ctx.Cell.LocalSuspend()
		savedTvec, savedStatus, savedEpc := ctx.S.Tvec, ctx.Frame.Status, ctx.Frame.Epc
		for !d.CLINT.SoftwarePending(ctx.ID) {
			time.Sleep(wfiPollInterval)
		}
		d.CLINT.ClearSoftware(ctx.ID)
		ctx.S.Tvec, ctx.Frame.Status, ctx.Frame.Epc = savedTvec, savedStatus, savedEpc
		ctx.Cell.LocalResume()
		return ok(0), false

	case suspendNonRetentive:
		desc := hsm.Descriptor{StartAddr: uintptr(args[1]), Opaque: uintptr(args[2])}
		ctx.Cell.LocalSuspendNonRetentive(desc)
		return ok(0), true

	default:
		return errOnly(NotSupported), false
	}
}
