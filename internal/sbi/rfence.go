package sbi

import "sbifw/internal/hart"

// rfenceMaskValid reports whether every bit set in mask names a hart that
// exists on this board. handleIPI walks its hart mask the same way but
// skips such bits instead of failing.
func (d *Dispatcher) rfenceMaskValid(mask, base uint64) bool {
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if d.hartByID(base+uint64(i)) == nil {
			return false
		}
	}
	return true
}

// handleRFENCE validates the (hart_mask, hart_mask_base) pair every RFENCE
// function takes as its first two arguments and otherwise does no actual
// fencing work: the firmware does not implement paging, so there is never
// a stale translation for a remote fence to flush.
func handleRFENCE(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	switch fid {
	case 0, 1, 2, 3, 4, 5, 6: // remote_fence_i and the remote_*fence_vma* family
		if !d.rfenceMaskValid(args[0], args[1]) {
			return errOnly(InvalidParam), false
		}
		return ok(0), false
	default:
		return errOnly(NotSupported), false
	}
}
