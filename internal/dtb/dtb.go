// Package dtb parses a flattened device tree blob far enough to recover
// the platform layout the firmware needs: the model string, the number of
// `cpu@*` nodes under /cpus, and the `reg` property of the uart*, test*,
// clint*, and root memory* nodes. It understands only the structure block
// tags it needs and gives up cleanly on anything else, the same minimal,
// single-purpose walker the reference bare-metal parser uses for its one
// PCI-ECAM lookup.
package dtb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	magic = 0xd00dfeed

	tagBeginNode = 1
	tagEndNode   = 2
	tagProp      = 3
	tagNop       = 4
	tagEnd       = 9
)

// Region is a parsed `reg = <addr size>` property.
type Region struct {
	Addr uint64
	Size uint64
}

// Tree is the subset of a device tree's contents the firmware consumes.
type Tree struct {
	Model string

	NumCPUs int

	UART   Region
	Test   Region
	CLINT  Region
	Memory Region

	HasUART, HasTest, HasCLINT, HasMemory bool
}

// Parse walks the FDT in blob and returns the recovered Tree. It returns
// an error for a bad magic or truncated structure block; on any error
// bootstrap keeps its fallback board descriptor unchanged, which is
// board.Default() (smp=8) unless a config file or -smp overrides it.
func Parse(blob []byte) (Tree, error) {
	if len(blob) < 40 {
		return Tree{}, fmt.Errorf("dtb: blob too short (%d bytes)", len(blob))
	}
	if binary.BigEndian.Uint32(blob[0:4]) != magic {
		return Tree{}, fmt.Errorf("dtb: bad magic %#x", binary.BigEndian.Uint32(blob[0:4]))
	}
	offStruct := binary.BigEndian.Uint32(blob[8:12])
	offStrings := binary.BigEndian.Uint32(blob[12:16])

	if int(offStruct) >= len(blob) || int(offStrings) >= len(blob) {
		return Tree{}, fmt.Errorf("dtb: offsets out of range")
	}

	w := walker{
		blob:    blob,
		p:       int(offStruct),
		strings: blob[offStrings:],
		path:    make([]string, 0, 8),
	}
	return w.run()
}

type walker struct {
	blob    []byte
	p       int
	strings []byte
	path    []string
	t       Tree
}

func (w *walker) be32() (uint32, error) {
	if w.p+4 > len(w.blob) {
		return 0, fmt.Errorf("dtb: truncated structure block at offset %d", w.p)
	}
	v := binary.BigEndian.Uint32(w.blob[w.p:])
	w.p += 4
	return v, nil
}

func (w *walker) alignedString() (string, error) {
	start := w.p
	for w.p < len(w.blob) && w.blob[w.p] != 0 {
		w.p++
	}
	if w.p >= len(w.blob) {
		return "", fmt.Errorf("dtb: unterminated string at offset %d", start)
	}
	s := string(w.blob[start:w.p])
	w.p++ // NUL
	for w.p%4 != 0 {
		w.p++
	}
	return s, nil
}

func (w *walker) propName(nameOff uint32) string {
	if int(nameOff) >= len(w.strings) {
		return ""
	}
	rest := w.strings[nameOff:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		return string(rest[:i])
	}
	return string(rest)
}

func nodeBaseName(full string) string {
	if i := strings.IndexByte(full, '@'); i >= 0 {
		return full[:i]
	}
	return full
}

func (w *walker) run() (Tree, error) {
	const maxIterations = 1 << 20
	for i := 0; i < maxIterations; i++ {
		tag, err := w.be32()
		if err != nil {
			return w.t, err
		}
		switch tag {
		case tagBeginNode:
			name, err := w.alignedString()
			if err != nil {
				return w.t, err
			}
			w.path = append(w.path, name)

		case tagEndNode:
			if len(w.path) == 0 {
				return w.t, fmt.Errorf("dtb: unbalanced end-node")
			}
			w.path = w.path[:len(w.path)-1]

		case tagProp:
			plen, err := w.be32()
			if err != nil {
				return w.t, err
			}
			nameOff, err := w.be32()
			if err != nil {
				return w.t, err
			}
			if w.p+int(plen) > len(w.blob) {
				return w.t, fmt.Errorf("dtb: property value truncated")
			}
			val := w.blob[w.p : w.p+int(plen)]
			w.p += int(plen)
			for w.p%4 != 0 {
				w.p++
			}
			w.onProp(w.propName(nameOff), val)

		case tagNop:
			// skip

		case tagEnd:
			return w.t, nil

		default:
			return w.t, fmt.Errorf("dtb: unknown structure tag %d at offset %d", tag, w.p-4)
		}
	}
	return w.t, fmt.Errorf("dtb: structure block did not terminate")
}

func (w *walker) onProp(name string, val []byte) {
	if len(w.path) == 0 {
		return
	}
	node := w.path[len(w.path)-1]
	base := nodeBaseName(node)
	parent := ""
	if len(w.path) >= 2 {
		parent = w.path[len(w.path)-2]
	}

	switch {
	case len(w.path) == 1 && name == "model" && len(val) > 0:
		w.t.Model = trimNUL(val)

	case parent == "cpus" && base == "cpu" && name == "device_type":
		w.t.NumCPUs++

	case base == "uart" && name == "reg" && len(val) >= 16:
		w.t.UART = regionFrom(val)
		w.t.HasUART = true

	case base == "test" && name == "reg" && len(val) >= 16:
		w.t.Test = regionFrom(val)
		w.t.HasTest = true

	case base == "clint" && name == "reg" && len(val) >= 16:
		w.t.CLINT = regionFrom(val)
		w.t.HasCLINT = true

	case len(w.path) == 2 && base == "memory" && name == "reg" && len(val) >= 16:
		w.t.Memory = regionFrom(val)
		w.t.HasMemory = true
	}
}

func regionFrom(val []byte) Region {
	return Region{
		Addr: binary.BigEndian.Uint64(val[0:8]),
		Size: binary.BigEndian.Uint64(val[8:16]),
	}
}

func trimNUL(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
