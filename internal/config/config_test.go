package config

import (
	"os"
	"path/filepath"
	"testing"

	"sbifw/internal/board"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if d != board.Default() {
		t.Fatalf("missing config should yield board.Default(), got %+v", d)
	}
}

func TestLoadOverridesSelectedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	yaml := "model: test-board\nsmp: 4\nuart_base: \"0x9000_0000\"\nsupervisor_entry: \"0x80400000\"\n"
	yaml = replaceUnderscoreHex(yaml)
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Model != "test-board" {
		t.Fatalf("Model = %q", d.Model)
	}
	if d.SMP != 4 {
		t.Fatalf("SMP = %d, want 4", d.SMP)
	}
	if d.UARTBase != 0x9000_0000 {
		t.Fatalf("UARTBase = %#x", d.UARTBase)
	}
	if d.SupervisorEntry != 0x8040_0000 {
		t.Fatalf("SupervisorEntry = %#x", d.SupervisorEntry)
	}
	// Fields the override didn't mention should keep their defaults.
	def := board.Default()
	if d.CLINTBase != def.CLINTBase {
		t.Fatalf("CLINTBase should be unchanged, got %#x", d.CLINTBase)
	}
}

// replaceUnderscoreHex strips Go-style digit-group underscores (an
// underscore between two hex digits) that parseAddr's %x/%d scanners don't
// understand, so the literal YAML in this test file can stay readable.
// Underscores in keys such as uart_base are kept.
func replaceUnderscoreHex(s string) string {
	isHex := func(c byte) bool {
		return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && i > 0 && i+1 < len(s) && isHex(s[i-1]) && isHex(s[i+1]) {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte("uart_base: \"not-an-address\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unparseable address")
	}
}
