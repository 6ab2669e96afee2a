package sbi

import (
	"sbifw/internal/hart"
	"sbifw/internal/testdev"
)

const (
	resetTypeShutdown   = 0
	resetTypeColdReboot = 1
	resetTypeWarmReboot = 2

	resetReasonNone          = 0
	resetReasonSystemFailure = 1

	qemuErrExitCode = 1
)

// handleReset demultiplexes (type, reason) to the platform test device's
// three operations: pass, fail-with-code, reboot. A successful reset is
// always terminal: control never returns to the supervisor.
func handleReset(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	const systemReset = 0
	if fid != systemReset {
		return errOnly(NotSupported), false
	}
	resetType, reason := args[0], args[1]

	switch resetType {
	case resetTypeShutdown:
		switch reason {
		case resetReasonNone:
			d.Test.Write(testdev.WordPass)
		case resetReasonSystemFailure:
			d.Test.Write(testdev.WordFail | (qemuErrExitCode << 16))
		default:
			return errOnly(InvalidParam), false
		}
	case resetTypeColdReboot, resetTypeWarmReboot:
		d.Test.Write(testdev.WordReset)
	default:
		return errOnly(InvalidParam), false
	}
	return ok(0), true
}
