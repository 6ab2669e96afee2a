package sbi

import "sbifw/internal/hart"

const (
	dbcnWrite     = 0
	dbcnRead      = 1
	dbcnWriteByte = 2
)

// handleConsole implements the debug-console extension. write/read accept
// a physical pointer and length and require the entire span to fall
// inside the UART's advertised window; write_byte takes a single byte
// directly in a0 and blocks until it is accepted.
func handleConsole(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	switch fid {
	case dbcnWrite:
		return dbcnRangedOp(d, args, d.UART.WriteWindow)
	case dbcnRead:
		return dbcnRangedOp(d, args, d.UART.ReadWindow)
	case dbcnWriteByte:
		d.UART.WriteByte(byte(args[0]))
		return ok(0), false
	default:
		return errOnly(NotSupported), false
	}
}

// dbcnRangedOp decodes the (num_bytes, addr_lo, addr_hi) argument triple
// the calling convention uses for both ranged DBCN operations.
func dbcnRangedOp(d *Dispatcher, args [6]uint64, op func(addr uint64, length int) int) (Ret, bool) {
	length, addrLo, addrHi := args[0], args[1], args[2]
	addr := addrLo | (addrHi << 32)
	if !d.UART.Window().Contains(addr, length) {
		return errOnly(InvalidParam), false
	}
	n := op(addr, int(length))
	return ok(uint64(n)), false
}
