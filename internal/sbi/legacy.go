package sbi

import (
	"sbifw/internal/hart"
	"sbifw/internal/testdev"
)

// Legacy extension identifiers: each is a whole extension with exactly
// one function, selected by eid itself rather than by a6.
const (
	legacySetTimer            = 0x00
	legacyConsolePutc         = 0x01
	legacyConsoleGetc         = 0x02
	legacyClearIPI            = 0x03
	legacySendIPI             = 0x04
	legacyRemoteFenceI        = 0x05
	legacyRemoteSFenceVMA     = 0x06
	legacyRemoteSFenceVMAASID = 0x07
	legacyShutdown            = 0x08
)

// handleLegacy implements the deprecated single-argument shims kept for
// compatibility with supervisors that predate the multi-extension
// calling convention. Legacy calls return a bare error code in a0 (value
// in a1 is unspecified) rather than the (error, value) pair newer
// extensions use.
func handleLegacy(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	switch eid {
	case legacySetTimer:
		d.CLINT.SetTimerCmp(ctx.ID, args[0])
		ctx.S.TimerPending = false
		ctx.MachineTimerEnabled = args[0] != ^uint64(0)
		return ok(0), false

	case legacyConsolePutc:
		d.UART.WriteByte(byte(args[0]))
		return ok(0), false

	case legacyConsoleGetc:
		var b [1]byte
		if d.UART.Read(b[:]) == 1 {
			return Ret{Error: int64(b[0])}, false
		}
		return Ret{Error: -1}, false

	case legacyClearIPI:
		d.CLINT.ClearSoftware(ctx.ID)
		return ok(0), false

	case legacySendIPI:
		// The legacy call takes a pointer to a hart-mask bitvector rather
		// than an inline mask; this firmware treats a0 as the mask itself
		// and base 0, which is sufficient for the hart counts this
		// simulation supports.
		ipiArgs := [6]uint64{args[0], 0}
		return handleIPI(d, ctx, ExtIPI, ipiSendIPI, ipiArgs)

	case legacyRemoteFenceI, legacyRemoteSFenceVMA, legacyRemoteSFenceVMAASID:
		return ok(0), false

	case legacyShutdown:
		d.Test.Write(testdev.WordPass)
		return ok(0), true

	default:
		return errOnly(NotSupported), false
	}
}
