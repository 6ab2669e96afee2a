package bootstrap

import (
	"testing"
	"time"

	"sbifw/internal/board"
	"sbifw/internal/hart"
	"sbifw/internal/hsm"
	"sbifw/internal/sbi"
)

// newRunningMachine builds an n-hart machine, starts every hart's Run loop,
// and waits for global init to publish the shared devices before handing
// control to the scenario. Callers must call the returned stop func.
func newRunningMachine(t *testing.T, n int) (*Machine, func()) {
	t.Helper()
	m := NewMachine(n, nil, board.Default(), discardSink{})
	for id := range m.Harts {
		go m.Run(id)
	}
	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("machine never became ready")
	}
	return m, m.Stop
}

func ecall(m *Machine, id int, a7, a6 uint64, args ...uint64) (a0, a1 uint64) {
	ctx := m.Harts[id]
	ctx.TrapMu.Lock()
	ctx.Regs.Set(hart.A7, a7)
	ctx.Regs.Set(hart.A6, a6)
	for i, v := range args {
		ctx.Regs.Set(hart.A0+i, v)
	}
	ctx.TrapMu.Unlock()

	m.Ecall(id)

	ctx.TrapMu.Lock()
	defer ctx.TrapMu.Unlock()
	return ctx.Regs.Get(hart.A0), ctx.Regs.Get(hart.A1)
}

// S1 — single-hart base probe: probing the HSM extension on a fresh
// machine reports it present.
func TestScenarioBaseProbeFindsHSM(t *testing.T) {
	m, stop := newRunningMachine(t, 1)
	defer stop()

	a0, a1 := ecall(m, m.genesisID, sbi.ExtBase, 3, sbi.ExtHSM)
	if int64(a0) != sbi.Success || a1 != 1 {
		t.Fatalf("probe(HSM) = (%d, %d), want (0, 1)", int64(a0), a1)
	}
}

// S2/S3 — hart boot handshake and duplicate start: hart_start wakes a
// stopped hart at the given entry point with a0=hartid, a1=opaque, and a
// second call against the now-running hart is rejected with ALREADY_AVAILABLE.
func TestScenarioHartStartThenDuplicateStart(t *testing.T) {
	m, stop := newRunningMachine(t, 2)
	defer stop()

	genesis := m.genesisID
	target := 1 - genesis

	const entry = 0x8030_0000
	const opaque = 0xDEAD

	a0, a1 := ecall(m, genesis, sbi.ExtHSM, 0, uint64(target), entry, opaque)
	if int64(a0) != sbi.Success || a1 != 0 {
		t.Fatalf("hart_start = (%d, %d), want (0, 0)", int64(a0), a1)
	}

	deadline := time.Now().Add(time.Second)
	for m.Harts[target].Cell.GetStatus() != hsm.Started {
		if time.Now().After(deadline) {
			t.Fatalf("hart %d never reached Started, status=%v", target, m.Harts[target].Cell.GetStatus())
		}
		time.Sleep(asyncPollInterval)
	}

	targetCtx := m.Harts[target]
	targetCtx.TrapMu.Lock()
	epc := targetCtx.Frame.Epc
	gotA0 := targetCtx.Regs.Get(hart.A0)
	gotA1 := targetCtx.Regs.Get(hart.A1)
	targetCtx.TrapMu.Unlock()

	if epc != entry {
		t.Fatalf("target epc = %#x, want %#x", epc, uint64(entry))
	}
	if gotA0 != uint64(target) || gotA1 != opaque {
		t.Fatalf("target regs a0/a1 = %d/%#x, want %d/%#x", gotA0, gotA1, target, uint64(opaque))
	}

	// S3: repeating the same start against the now-running hart is rejected.
	a0, _ = ecall(m, genesis, sbi.ExtHSM, 0, uint64(target), entry, opaque)
	if int64(a0) != sbi.AlreadyAvailable {
		t.Fatalf("duplicate hart_start = %d, want AlreadyAvailable (%d)", int64(a0), sbi.AlreadyAvailable)
	}
}

// S4 — retentive suspend: a hart suspended with type=0 blocks until another
// hart's send_ipi targets it, then returns success.
func TestScenarioRetentiveSuspendWakesOnIPI(t *testing.T) {
	m, stop := newRunningMachine(t, 2)
	defer stop()

	genesis := m.genesisID
	sleeper := 1 - genesis

	done := make(chan struct{})
	var a0, a1 uint64
	go func() {
		a0, a1 = ecall(m, sleeper, sbi.ExtHSM, 3, 0)
		close(done)
	}()

	// Give the suspend call time to park before waking it.
	time.Sleep(5 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("suspend returned before any IPI was sent")
	default:
	}

	if a0, _ := ecall(m, genesis, sbi.ExtIPI, 0, uint64(1)<<uint(sleeper), 0); int64(a0) != sbi.Success {
		t.Fatalf("send_ipi = %d, want success", int64(a0))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("suspend never woke after send_ipi")
	}
	if int64(a0) != sbi.Success || a1 != 0 {
		t.Fatalf("suspend returned (%d, %d), want (0, 0)", int64(a0), a1)
	}
}

// S5 — timer delegation: set_timer arms the CLINT comparator; once it
// elapses, the trap core forwards a supervisor timer interrupt without the
// caller driving the poll loop itself.
func TestScenarioTimerDelegationForwardsToSupervisor(t *testing.T) {
	m, stop := newRunningMachine(t, 1)
	defer stop()

	id := m.genesisID
	ctx := m.Harts[id]

	ctx.TrapMu.Lock()
	ctx.S.Tvec = 0x8040_1000
	ctx.S.IE = true
	ctx.TrapMu.Unlock()

	deadline := m.CLINT.ReadTime() + 1
	a0, _ := ecall(m, id, sbi.ExtTime, 0, deadline)
	if int64(a0) != sbi.Success {
		t.Fatalf("set_timer = %d, want success", int64(a0))
	}

	check := func() bool {
		ctx.TrapMu.Lock()
		defer ctx.TrapMu.Unlock()
		return ctx.S.TimerPending && ctx.Frame.Epc == ctx.S.Tvec
	}
	until := time.Now().Add(time.Second)
	for !check() {
		if time.Now().After(until) {
			ctx.TrapMu.Lock()
			pending, epc := ctx.S.TimerPending, ctx.Frame.Epc
			ctx.TrapMu.Unlock()
			t.Fatalf("timer never forwarded: pending=%v epc=%#x, want tvec=%#x", pending, epc, ctx.S.Tvec)
		}
		time.Sleep(asyncPollInterval)
	}
}

// S6 — console out of bounds: a DBCN write whose pointer falls outside the
// UART window is rejected with no MMIO performed.
func TestScenarioConsoleOutOfBoundsRejected(t *testing.T) {
	m, stop := newRunningMachine(t, 1)
	defer stop()

	id := m.genesisID
	before := m.UART.Window().CopyOut(m.UART.Window().Base(), m.UART.Window().Size())

	a0, _ := ecall(m, id, sbi.ExtDBCN, 0, 1, 0x1, 0xC0FFEE00)
	if int64(a0) != sbi.InvalidParam {
		t.Fatalf("dbcn write out of bounds = %d, want InvalidParam (%d)", int64(a0), sbi.InvalidParam)
	}

	after := m.UART.Window().CopyOut(m.UART.Window().Base(), m.UART.Window().Size())
	if string(before) != string(after) {
		t.Fatal("rejected DBCN write mutated the UART window")
	}
}
