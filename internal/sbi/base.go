package sbi

import "sbifw/internal/hart"

const (
	baseGetSpecVersion    = 0
	baseGetImplID         = 1
	baseGetImplVersion    = 2
	baseProbeExtension    = 3
	baseGetMvendorID      = 4
	baseGetMarchID        = 5
	baseGetMimpID         = 6

	// implID and implVersion identify this firmware to the supervisor;
	// they carry no meaning beyond "not zero, not one of the reserved
	// upstream implementation IDs".
	implID      = 0xB5 // 'sbifw' has no assigned OpenSBI-style ID; pick an unused byte
	implVersion = 1

	specVersionMajor = 2
	specVersionMinor = 0
)

func handleBase(d *Dispatcher, ctx *hart.Context, eid, fid uint64, args [6]uint64) (Ret, bool) {
	switch fid {
	case baseGetSpecVersion:
		return ok(uint64(specVersionMajor)<<24 | uint64(specVersionMinor)), false
	case baseGetImplID:
		return ok(implID), false
	case baseGetImplVersion:
		return ok(implVersion), false
	case baseProbeExtension:
		if d.Supports(args[0]) {
			return ok(1), false
		}
		return ok(0), false
	case baseGetMvendorID, baseGetMarchID, baseGetMimpID:
		return ok(0), false
	default:
		return errOnly(NotSupported), false
	}
}
