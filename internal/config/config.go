// Package config loads an optional YAML board override file. When a boot
// loader supplies no device tree pointer, the firmware falls back to this
// file (or, failing that, the compiled-in default) to learn the platform's
// physical layout.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sbifw/internal/board"
)

// File is the on-disk shape of a board override. Addresses are decimal or
// "0x"-prefixed hex strings so the file reads naturally next to firmware
// documentation; zero/empty fields fall back to board.Default().
type File struct {
	Model string `yaml:"model"`

	MemoryBase string `yaml:"memory_base"`
	MemorySize string `yaml:"memory_size"`

	UARTBase  string `yaml:"uart_base"`
	TestBase  string `yaml:"test_base"`
	CLINTBase string `yaml:"clint_base"`

	SupervisorEntry string `yaml:"supervisor_entry"`

	SMP int `yaml:"smp"`
}

// Load reads path and merges it over board.Default(). A missing file is
// not an error: it simply yields the default descriptor, since an override
// file is optional platform configuration, not a required input.
func Load(path string) (board.Descriptor, error) {
	d := board.Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return d, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if f.Model != "" {
		d.Model = f.Model
	}
	if f.SMP > 0 {
		d.SMP = f.SMP
	}

	memBase := d.MemoryBase
	if f.MemoryBase != "" {
		if memBase, err = parseAddr(f.MemoryBase); err != nil {
			return d, fmt.Errorf("config: memory_base: %w", err)
		}
	}
	memSize := d.MemoryEnd - d.MemoryBase
	if f.MemorySize != "" {
		if memSize, err = parseAddr(f.MemorySize); err != nil {
			return d, fmt.Errorf("config: memory_size: %w", err)
		}
	}
	d.MemoryBase, d.MemoryEnd = memBase, memBase+memSize

	if f.UARTBase != "" {
		base, err := parseAddr(f.UARTBase)
		if err != nil {
			return d, fmt.Errorf("config: uart_base: %w", err)
		}
		size := d.UARTEnd - d.UARTBase
		d.UARTBase, d.UARTEnd = base, base+size
	}
	if f.TestBase != "" {
		base, err := parseAddr(f.TestBase)
		if err != nil {
			return d, fmt.Errorf("config: test_base: %w", err)
		}
		size := d.TestEnd - d.TestBase
		d.TestBase, d.TestEnd = base, base+size
	}
	if f.CLINTBase != "" {
		base, err := parseAddr(f.CLINTBase)
		if err != nil {
			return d, fmt.Errorf("config: clint_base: %w", err)
		}
		size := d.CLINTEnd - d.CLINTBase
		d.CLINTBase, d.CLINTEnd = base, base+size
	}
	if f.SupervisorEntry != "" {
		if d.SupervisorEntry, err = parseAddr(f.SupervisorEntry); err != nil {
			return d, fmt.Errorf("config: supervisor_entry: %w", err)
		}
	}

	return d, nil
}

func parseAddr(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "0x%x", &v)
	if err == nil {
		return v, nil
	}
	_, err = fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return v, nil
}
