// Command uartbridge attaches a live console to a running sbifw machine's
// simulated UART: a real terminal in raw mode, a physical serial port, or
// (headless) a scrollback terminal emulator whose rendered lines are
// dumped to standard output on each flush.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/vt"
	"go.bug.st/serial"
	"golang.org/x/term"

	"sbifw/internal/board"
	"sbifw/internal/bootstrap"
	"sbifw/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML board override file")
		dtbPath    = flag.String("dtb", "", "path to a flattened device tree blob")
		smp        = flag.Int("smp", 0, "override hart count (0 keeps the board/config default)")
		serialPort = flag.String("serial", "", "forward the console to a physical serial port instead of this terminal")
		baud       = flag.Int("baud", 115200, "baud rate when -serial is set")
		headless   = flag.Bool("headless", false, "render into an in-process scrollback instead of attaching a terminal")
	)
	flag.Parse()

	descriptor := board.Default()
	if *configPath != "" {
		d, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uartbridge: loading config: %v\n", err)
			os.Exit(1)
		}
		descriptor = d
	}
	if *smp > 0 {
		descriptor.SMP = *smp
	}
	var dtbBlob []byte
	if *dtbPath != "" {
		blob, err := os.ReadFile(*dtbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uartbridge: reading device tree: %v\n", err)
			os.Exit(1)
		}
		dtbBlob = blob
	}

	var sink consoleSink
	var cleanup func()
	var err error

	switch {
	case *serialPort != "":
		sink, cleanup, err = newSerialBridge(*serialPort, *baud)
	case *headless:
		sink, cleanup, err = newHeadlessBridge()
	default:
		sink, cleanup, err = newTerminalBridge()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "uartbridge: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// descriptor.SMP (from -smp or config) is authoritative over any cpu@*
	// count in dtbBlob: the hart goroutines below are sized now, before
	// globalInit parses the tree, so a tree disagreeing with SMP changes
	// board.SMP without changing how many harts actually run.
	m := bootstrap.NewMachine(descriptor.SMP, dtbBlob, descriptor, sink)
	for id := range m.Harts {
		go m.Run(id)
	}
	<-m.Ready()
	sink.attach(m)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		m.Test.Wait()
		close(done)
	}()

	select {
	case <-sigCh:
	case <-done:
	}
	m.Stop()
}

// consoleSink is a uart.Sink that also knows how to pump input into the
// machine once it exists; attach starts that pump, if the sink has one.
type consoleSink interface {
	WriteByte(b byte) error
	attach(m *bootstrap.Machine)
}

// --- interactive terminal bridge -------------------------------------------------

type terminalBridge struct{}

func newTerminalBridge() (consoleSink, func(), error) {
	var saved *term.State
	if term.IsTerminal(int(os.Stdin.Fd())) {
		s, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return nil, nil, fmt.Errorf("setting raw mode: %w", err)
		}
		saved = s
	}
	cleanup := func() {
		if saved != nil {
			term.Restore(int(os.Stdin.Fd()), saved)
		}
	}
	return terminalBridge{}, cleanup, nil
}

func (terminalBridge) WriteByte(b byte) error {
	_, err := os.Stdout.Write([]byte{b})
	return err
}

func (terminalBridge) attach(m *bootstrap.Machine) {
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				m.UART.Inject(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
}

// --- physical serial port bridge --------------------------------------------------

type serialBridge struct {
	port serial.Port
}

func newSerialBridge(name string, baud int) (consoleSink, func(), error) {
	mode := &serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("opening serial port %s: %w", name, err)
	}
	return &serialBridge{port: p}, func() { p.Close() }, nil
}

func (s *serialBridge) WriteByte(b byte) error {
	_, err := s.port.Write([]byte{b})
	return err
}

func (s *serialBridge) attach(m *bootstrap.Machine) {
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := s.port.Read(buf)
			if n > 0 {
				m.UART.Inject(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
}

// --- headless scrollback bridge ----------------------------------------------------

const (
	headlessCols = 120
	headlessRows = 40
)

type headlessBridge struct {
	emu *vt.SafeEmulator
}

func newHeadlessBridge() (consoleSink, func(), error) {
	emu := vt.NewSafeEmulator(headlessCols, headlessRows)
	h := &headlessBridge{emu: emu}
	stop := make(chan struct{})
	go h.flushLoop(stop)
	return h, func() { close(stop) }, nil
}

func (h *headlessBridge) WriteByte(b byte) error {
	_, err := h.emu.Write([]byte{b})
	return err
}

func (h *headlessBridge) attach(*bootstrap.Machine) {}

// flushLoop periodically dumps the emulator's visible rows to stdout as
// plain text, trimmed of trailing blanks, so a caller capturing this
// process's output sees the console without needing a real terminal.
func (h *headlessBridge) flushLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	var lastRow int
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			cur := h.emu.CursorPosition()
			for y := lastRow; y <= cur.Y && y < headlessRows; y++ {
				var sb strings.Builder
				for x := 0; x < headlessCols; x++ {
					cell := h.emu.CellAt(x, y)
					if cell == nil || cell.Content == "" {
						sb.WriteByte(' ')
						continue
					}
					sb.WriteString(cell.Content)
				}
				fmt.Fprintln(os.Stdout, strings.TrimRight(sb.String(), " "))
			}
			lastRow = cur.Y
		}
	}
}
