// Package diag is the firmware's logging and fatal-error plane: a
// structured logger whose handler mirrors every record to the simulated
// UART, and a Fatal path that plays out the same "print a line, then stop
// responding" sequence a machine-mode panic produces on real hardware,
// translated into the process exit a hosted build can actually perform.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"sbifw/internal/testdev"
)

// mirror is an slog.Handler that writes every record to a real process
// stream and, if a console is attached, also emits a plain one-line
// rendering of it to the simulated UART, so an operator watching the
// simulated serial port sees the same diagnostics as the host log.
type mirror struct {
	next    slog.Handler
	console interface{ WriteByte(b byte) }
}

func (m *mirror) Enabled(ctx context.Context, level slog.Level) bool {
	return m.next.Enabled(ctx, level)
}

func (m *mirror) Handle(ctx context.Context, r slog.Record) error {
	if m.console != nil {
		line := fmt.Sprintf("[%s] %s\r\n", r.Level, r.Message)
		for i := 0; i < len(line); i++ {
			m.console.WriteByte(line[i])
		}
	}
	return m.next.Handle(ctx, r)
}

func (m *mirror) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &mirror{next: m.next.WithAttrs(attrs), console: m.console}
}

func (m *mirror) WithGroup(name string) slog.Handler {
	return &mirror{next: m.next.WithGroup(name), console: m.console}
}

// Logger wraps an *slog.Logger with the firmware's fatal-error behavior.
type Logger struct {
	*slog.Logger
	test *testdev.Device
}

// New builds a Logger that writes structured records to w (typically
// os.Stderr) and mirrors a plain line of each one to console, if non-nil.
// td receives the "fail" magic word when Fatal is called, the hosted
// equivalent of the reference firmware writing the platform test device
// before hanging.
func New(console interface{ WriteByte(b byte) }, td *testdev.Device) *Logger {
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := &mirror{next: base, console: console}
	return &Logger{Logger: slog.New(h), test: td}
}

// Fatal logs msg at error level, mirrors it to the console, writes the
// test device's fail magic, and exits the process non-zero. It never
// returns.
func (l *Logger) Fatal(hartID int, msg string, args ...any) {
	all := append([]any{"hart", hartID}, args...)
	l.Logger.Error(msg, all...)
	if l.test != nil {
		l.test.Write(uint32(testdev.WordFail) | (1 << 16))
	}
	os.Exit(1)
}
