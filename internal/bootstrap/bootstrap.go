// Package bootstrap drives per-hart bring-up: the one-shot global
// initialization a single hart performs while every other hart waits,
// per-hart PMP installation and pending-interrupt clearing, and the
// synthetic boot-cause handoff into the trap core that either starts the
// genesis hart's supervisor payload or parks the hart to await a start
// command.
//
// Every hart is modeled as a goroutine entering the same Run method, the
// way every hart on real hardware enters the same physical reset vector;
// sync.Once stands in for the one-shot atomic flag the reference firmware
// uses to elect exactly one hart to do global work while the rest spin.
package bootstrap

import (
	"sync"
	"time"

	"sbifw/internal/board"
	"sbifw/internal/clint"
	"sbifw/internal/diag"
	"sbifw/internal/dtb"
	"sbifw/internal/hart"
	"sbifw/internal/hsm"
	"sbifw/internal/mmio"
	"sbifw/internal/pmp"
	"sbifw/internal/sbi"
	"sbifw/internal/testdev"
	"sbifw/internal/trap"
	"sbifw/internal/uart"
)

// asyncPollInterval is how often a running or parked hart's goroutine
// checks the CLINT for a pending software or timer interrupt. It stands
// in for the hardware's immediate, interrupt-driven wakeup.
const asyncPollInterval = 100 * time.Microsecond

// Machine is one simulated platform instance: the board descriptor, every
// MMIO device, the SBI dispatcher, the trap core, and the per-hart
// contexts that share them.
type Machine struct {
	fallback board.Descriptor
	dtbBlob  []byte
	console  uart.Sink

	genesisOnce sync.Once
	genesisID   int
	stopOnce    sync.Once
	stop        chan struct{}
	ready       chan struct{}

	Board board.Descriptor
	Harts []*hart.Context
	CLINT *clint.CLINT
	UART  *uart.UART
	Test  *testdev.Device
	SBI   *sbi.Dispatcher
	Trap  *trap.Core
	Log   *diag.Logger

	pmpEntries []pmp.Entry
}

// NewMachine allocates smp hart contexts and records the inputs global
// init will consult: a device tree blob (may be nil), a fallback board
// descriptor to use if the blob is absent or unparseable, and the sink
// the simulated UART's output is mirrored to.
func NewMachine(smp int, dtbBlob []byte, fallback board.Descriptor, console uart.Sink) *Machine {
	m := &Machine{
		fallback: fallback,
		dtbBlob:  dtbBlob,
		console:  console,
		stop:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
	m.Harts = make([]*hart.Context, smp)
	for i := range m.Harts {
		m.Harts[i] = hart.NewContext(i)
	}
	return m
}

// globalInit parses the device tree (falling back to m.fallback on any
// failure), publishes the board descriptor, constructs every MMIO
// device, and wires the SBI dispatcher and trap core. It runs exactly
// once, inside whichever hart's Run call wins the race to genesisOnce.
func (m *Machine) globalInit() {
	d := m.fallback
	if len(m.dtbBlob) > 0 {
		if tree, err := dtb.Parse(m.dtbBlob); err == nil {
			d = applyTree(d, tree)
		}
	}
	board.Init(d)
	m.Board = board.Get()

	clintArena, err := mmio.NewArena(m.Board.CLINTBase, int(m.Board.CLINTEnd-m.Board.CLINTBase))
	if err != nil {
		panic(err)
	}
	uartArena, err := mmio.NewArena(m.Board.UARTBase, int(m.Board.UARTEnd-m.Board.UARTBase))
	if err != nil {
		panic(err)
	}

	m.CLINT = clint.New(clintArena, 10_000_000)
	m.UART = uart.New(uartArena, m.console)
	m.Test = testdev.New()
	m.Log = diag.New(m.UART, m.Test)
	m.SBI = sbi.NewDispatcher(m.Board, m.Harts, m.CLINT, m.UART, m.Test)
	m.Trap = &trap.Core{CLINT: m.CLINT, Ecall: m.SBI.Dispatch}
	m.pmpEntries = pmp.Derive(m.Board)

	m.Log.Info("firmware banner", "model", m.Board.Model, "smp", len(m.Harts),
		"uart", m.Board.UARTBase, "clint", m.Board.CLINTBase, "test", m.Board.TestBase)
	close(m.ready)
}

// Ready returns a channel closed once global init has published Board,
// CLINT, UART, Test, SBI, and Trap, so a caller outside the hart
// goroutines (the entry point, or a test) can wait for them safely
// instead of polling.
func (m *Machine) Ready() <-chan struct{} {
	return m.ready
}

// applyTree overrides d's fields with whatever the parsed tree recovered,
// leaving the rest at their fallback values.
func applyTree(d board.Descriptor, t dtb.Tree) board.Descriptor {
	if t.Model != "" {
		d.Model = t.Model
	}
	if t.NumCPUs > 0 {
		d.SMP = t.NumCPUs
	}
	if t.HasMemory {
		d.MemoryBase, d.MemoryEnd = t.Memory.Addr, t.Memory.Addr+t.Memory.Size
	}
	if t.HasUART {
		d.UARTBase, d.UARTEnd = t.UART.Addr, t.UART.Addr+t.UART.Size
	}
	if t.HasTest {
		d.TestBase, d.TestEnd = t.Test.Addr, t.Test.Addr+t.Test.Size
	}
	if t.HasCLINT {
		d.CLINTBase, d.CLINTEnd = t.CLINT.Addr, t.CLINT.Addr+t.CLINT.Size
	}
	return d
}

// perHartInit installs this hart's PMP table, clears its delegated
// supervisor CSRs, and — if this call is the one that ran globalInit —
// seeds its own HSM cell with a descriptor targeting the configured
// supervisor entry address.
func (m *Machine) perHartInit(id int) {
	m.genesisOnce.Do(func() {
		m.genesisID = id
		m.globalInit()
	})

	ctx := m.Harts[id]
	ctx.PMP = m.pmpEntries
	ctx.S = hart.SupervisorCSRs{}

	if id == m.genesisID {
		ctx.Cell.RemoteStart(hsm.Descriptor{StartAddr: uintptr(m.Board.SupervisorEntry)})
	}
}

// Run performs per-hart bootstrap for id and then services that hart's
// asynchronous traps (software and timer interrupts) for as long as the
// machine runs. Synchronous ecalls are driven separately through Ecall,
// since nothing in this hosted build executes an actual supervisor
// instruction stream.
func (m *Machine) Run(id int) {
	m.perHartInit(id)

	ctx := m.Harts[id]
	m.dispatch(ctx, trap.CauseBoot)

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		if m.CLINT.SoftwarePending(id) {
			m.dispatch(ctx, trap.MachineSoftwareCause())
		}
		if ctx.MachineTimerEnabled && m.CLINT.TimerPending(id) {
			m.dispatch(ctx, trap.MachineTimerCause())
		}
		time.Sleep(asyncPollInterval)
	}
}

// Stop signals every hart's Run loop to return. It is safe to call more
// than once and from any goroutine.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Machine) dispatch(ctx *hart.Context, cause uint64) {
	ctx.TrapMu.Lock()
	defer ctx.TrapMu.Unlock()
	ctx.Frame.Cause = cause
	action, err := m.Trap.Dispatch(ctx)
	if action == trap.PanicAction {
		m.Log.Fatal(ctx.ID, "unhandled machine-mode trap", "error", err)
	}
}

// Ecall simulates the supervisor on hart id executing an ecall with the
// given a7/a6/a0..a5 already loaded into its register file, runs it
// through the trap core exactly as the machine-software and boot paths
// do, and returns once the dispatch completes.
func (m *Machine) Ecall(id int) {
	m.dispatch(m.Harts[id], trap.CauseSupervisorEcall)
}
