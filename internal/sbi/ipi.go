package sbi

import (
	"sbifw/internal/hart"
	"sbifw/internal/hsm"
)

const ipiSendIPI = 0

// allowIPI reports whether a hart in the given HSM state should receive a
// CLINT software interrupt from send_ipi: a running hart can take one as an
// ordinary cross-hart signal, and a retentive-suspended hart is woken by
// one. Every other state - stopped or mid-transition - is not listening and
// the bit is silently skipped rather than treated as an error.
func allowIPI(s hsm.State) bool {
	return s == hsm.Started || s == hsm.Suspended
}

// handleIPI implements send_ipi(mask, base): for each bit i set in mask,
// target hart base+i receives a CLINT software interrupt if that hart
// exists and its HSM cell is in a state that permits one. A mask bit for a
// nonexistent hart, or a hart not currently eligible, is skipped rather
// than rejected; the call always reports success.
func handleIPI(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	if fid != ipiSendIPI {
		return errOnly(NotSupported), false
	}
	mask, base := args[0], args[1]
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		target := d.hartByID(base + uint64(i))
		if target == nil {
			continue
		}
		if allowIPI(target.Cell.GetStatus()) {
			d.CLINT.SetSoftware(target.ID)
		}
	}
	return ok(0), false
}
