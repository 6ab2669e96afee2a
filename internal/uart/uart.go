// Package uart implements a 16550-compatible MMIO console and the DBCN
// window the debug-console extension validates physical spans against.
//
// The window and the register block are the same arena: the reference
// implementation bounds-checks DBCN's buffer pointer against the UART's
// own MMIO range rather than against general RAM, so a bulk write/read
// here copies bytes between that arena and the device's byte-at-a-time
// output/input path, preserving that literal (if unusual) behavior.
package uart

import (
	"sync"

	"sbifw/internal/mmio"
)

const (
	regData      = 0
	regIntEnable = 1
	regFIFOCtrl  = 2
	regLineCtrl  = 3
	regModemCtrl = 4
	regLineStat  = 5

	lineStatInputReady  = 1 << 0
	lineStatOutputEmpty = 1 << 5
)

// Sink receives bytes the firmware writes to the console. A nil Sink
// discards output.
type Sink interface {
	WriteByte(b byte) error
}

// UART is the simulated device. Output-empty is modeled as always true:
// a hosted sink never backpressures the way a real serial line can, so
// every accepted write succeeds immediately. Input readiness follows
// whether a byte is queued in the inbound ring, which a host bridge
// fills by calling Inject.
type UART struct {
	mu    sync.Mutex
	arena *mmio.Arena
	sink  Sink
	in    []byte
}

// New constructs a UART device occupying arena and writing output to sink.
func New(arena *mmio.Arena, sink Sink) *UART {
	u := &UART{arena: arena, sink: sink}
	u.arena.Store8(arena.Base()+regLineStat, lineStatOutputEmpty)
	return u
}

// Window returns the UART's addressable MMIO span, the range DBCN bounds
// every physical pointer against.
func (u *UART) Window() *mmio.Arena { return u.arena }

func (u *UART) refreshStatus() {
	status := byte(lineStatOutputEmpty)
	if len(u.in) > 0 {
		status |= lineStatInputReady
	}
	u.arena.Store8(u.arena.Base()+regLineStat, status)
}

// Inject queues bytes as if they arrived on the wire, for a host bridge
// feeding keyboard/terminal input into the simulated console.
func (u *UART) Inject(b []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.in = append(u.in, b...)
	u.refreshStatus()
}

// tryWriteByte attempts to place a single byte on the wire, returning
// whether the sink accepted it. Output-empty is always set in this
// simulation, so the only refusal is a sink error; a nil sink accepts
// every byte.
func (u *UART) tryWriteByte(b byte) bool {
	u.mu.Lock()
	sink := u.sink
	u.mu.Unlock()
	if sink == nil {
		return true
	}
	return sink.WriteByte(b) == nil
}

// tryReadByte attempts to take one queued input byte.
func (u *UART) tryReadByte() (byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.in) == 0 {
		return 0, false
	}
	b := u.in[0]
	u.in = u.in[1:]
	u.refreshStatus()
	return b, true
}

// WriteByte blocks until the UART accepts b. It drops its internal lock
// between retries so a contended console does not hold other writers
// behind a busy spinner waiting on host I/O.
func (u *UART) WriteByte(b byte) {
	for !u.tryWriteByte(b) {
	}
}

// Write attempts to place each byte of buf on the wire, stopping at the
// first one the device does not accept, and returns the count actually
// written. This is the non-blocking bulk path.
func (u *UART) Write(buf []byte) int {
	n := 0
	for _, b := range buf {
		if !u.tryWriteByte(b) {
			break
		}
		n++
	}
	return n
}

// Read drains up to len(buf) queued input bytes into buf and returns the
// count actually retrieved.
func (u *UART) Read(buf []byte) int {
	n := 0
	for n < len(buf) {
		b, ok := u.tryReadByte()
		if !ok {
			break
		}
		buf[n] = b
		n++
	}
	return n
}

// WriteWindow implements the DBCN write operation: addr/length must
// already have been validated against Window() by the caller. It copies
// the span out of the arena and feeds it byte-by-byte to the sink,
// returning the number of bytes actually accepted.
func (u *UART) WriteWindow(addr uint64, length int) int {
	data := u.arena.CopyOut(addr, length)
	return u.Write(data)
}

// ReadWindow implements the DBCN read operation: addr/length must already
// have been validated against Window() by the caller. It fills the span
// in the arena from queued input and returns the number of bytes actually
// retrieved.
func (u *UART) ReadWindow(addr uint64, length int) int {
	buf := make([]byte, length)
	n := u.Read(buf)
	if n > 0 {
		u.arena.CopyIn(addr, buf[:n])
	}
	return n
}
