package sbi

import "sbifw/internal/hart"

const timerSetTimer = 0

func handleTimer(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	if fid != timerSetTimer {
		return errOnly(NotSupported), false
	}
	deadline := args[0]
	d.CLINT.SetTimerCmp(ctx.ID, deadline)
	ctx.S.TimerPending = false
	ctx.MachineTimerEnabled = deadline != ^uint64(0)
	return ok(0), false
}
