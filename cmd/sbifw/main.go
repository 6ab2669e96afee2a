// Command sbifw boots the hosted machine-mode firmware simulation: it
// brings up every configured hart, wires the shared MMIO devices, and
// waits for a supervisor payload to signal completion through the
// platform test device.
package main

import (
	"flag"
	"fmt"
	"os"

	"sbifw/internal/board"
	"sbifw/internal/bootstrap"
	"sbifw/internal/config"
	"sbifw/internal/testdev"
)

// stdoutSink feeds the simulated UART's output straight to the host
// process's standard output, one syscall per byte. A real terminal
// bridge (see cmd/uartbridge) buffers and renders instead; this is the
// minimal sink that makes `sbifw` usable standalone.
type stdoutSink struct{}

func (stdoutSink) WriteByte(b byte) error {
	_, err := os.Stdout.Write([]byte{b})
	return err
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML board override file")
		dtbPath    = flag.String("dtb", "", "path to a flattened device tree blob")
		smp        = flag.Int("smp", 0, "override hart count (0 keeps the board/config default)")
	)
	flag.Parse()

	descriptor := board.Default()
	if *configPath != "" {
		d, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sbifw: loading config: %v\n", err)
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
			fmt.Fprintf(os.Stderr, "sbifw: reading device tree: %v\n", err)
			os.Exit(1)
		}
		dtbBlob = blob
	}

	// descriptor.SMP (from -smp or config) is authoritative over any cpu@*
	// count in dtbBlob: the hart goroutines below are sized now, before
	// globalInit parses the tree, so a tree disagreeing with SMP changes
	// board.SMP without changing how many harts actually run.
	m := bootstrap.NewMachine(descriptor.SMP, dtbBlob, descriptor, stdoutSink{})
	for id := range m.Harts {
		go m.Run(id)
	}

	result := waitForExit(m)
	m.Stop()

	switch result.Outcome {
	case testdev.Pass:
		os.Exit(0)
	case testdev.Fail:
		os.Exit(int(result.Code))
	case testdev.Reset:
		os.Exit(0)
	default:
		os.Exit(0)
	}
}

// waitForExit blocks on the test device's terminal write, which is how a
// supervisor payload running against this firmware reports shutdown,
// failure, or reboot. A machine that never triggers one runs until
// killed, the same as real firmware with no guest loaded.
func waitForExit(m *bootstrap.Machine) testdev.Result {
	<-m.Ready()
	return m.Test.Wait()
}
