package bootstrap

import (
	"sync"
	"testing"
	"time"

	"sbifw/internal/board"
	"sbifw/internal/hsm"
	"sbifw/internal/trap"
)

type discardSink struct{}

func (discardSink) WriteByte(byte) error { return nil }

func TestGenesisElectionIsExclusive(t *testing.T) {
	fallback := board.Default()
	fallback.SMP = 4
	m := NewMachine(4, nil, fallback, discardSink{})

	var wg sync.WaitGroup
	for i := range m.Harts {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.perHartInit(id)
		}(i)
	}
	wg.Wait()

	if m.Board.SMP != 4 {
		t.Fatalf("Board.SMP = %d, want 4", m.Board.SMP)
	}

	started := 0
	for i, ctx := range m.Harts {
		if ctx.PMP == nil {
			t.Fatalf("hart %d missing installed PMP table", i)
		}
		if i == m.genesisID {
			if ctx.Cell.GetStatus() != hsm.StartPending {
				t.Fatalf("genesis hart %d status = %v, want StartPending", i, ctx.Cell.GetStatus())
			}
			started++
		} else if ctx.Cell.GetStatus() != hsm.Stopped {
			t.Fatalf("non-genesis hart %d status = %v, want Stopped", i, ctx.Cell.GetStatus())
		}
	}
	if started != 1 {
		t.Fatalf("exactly one hart should have a pending start, got %d", started)
	}
}

func TestBootCauseStartsGenesisSupervisor(t *testing.T) {
	m := NewMachine(2, nil, board.Default(), discardSink{})
	m.perHartInit(0)
	m.perHartInit(1)

	genesis := m.Harts[m.genesisID]
	m.dispatch(genesis, trap.CauseBoot)

	if genesis.Frame.Epc != m.Board.SupervisorEntry {
		t.Fatalf("Epc = %#x, want supervisor entry %#x", genesis.Frame.Epc, m.Board.SupervisorEntry)
	}
	if genesis.Cell.GetStatus() != hsm.Started {
		t.Fatalf("genesis status after boot = %v, want Started", genesis.Cell.GetStatus())
	}
}

func TestRunParksNonGenesisHart(t *testing.T) {
	m := NewMachine(2, nil, board.Default(), discardSink{})

	go m.Run(0)
	go m.Run(1)

	time.Sleep(20 * time.Millisecond)

	genesis := m.Harts[m.genesisID]
	if genesis.Cell.GetStatus() != hsm.Started {
		t.Fatalf("genesis hart status = %v, want Started", genesis.Cell.GetStatus())
	}

	other := m.Harts[1-m.genesisID]
	if other.Cell.GetStatus() != hsm.Stopped {
		t.Fatalf("non-genesis hart should remain parked, got %v", other.Cell.GetStatus())
	}

	m.Stop()
}
