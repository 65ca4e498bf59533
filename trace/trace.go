// Package trace reads per-core memory reference streams from plain-text
// trace files: one `<OP> <ADDR>` pair per line, OP is R or W, ADDR decimal
// or 0x-prefixed hex, `#` lines and blank lines skipped.
package trace

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Readm/coheresim/logging"
)

// Op distinguishes a read reference from a write reference.
type Op int

const (
	Read Op = iota
	Write
)

func (o Op) String() string {
	if o == Write {
		return "W"
	}
	return "R"
}

// Reference is a single memory access pulled from a trace file.
type Reference struct {
	Op   Op
	Addr uint32
}

// Source is anything a Processor can pull references from. FileReader is
// the production implementation; tests use a slice-backed fake.
type Source interface {
	// Next returns the next reference, or ok=false once the source is
	// exhausted.
	Next() (Reference, bool)
}

// FileReader is a Source backed by a trace file on disk. Grounded on
// original_source/CACHE/TraceReader.h/.cpp; unlike the original it has no
// internal prefetch queue of its own — Processor owns the prefetching
// policy and FileReader only buffers at the bufio.Scanner level.
type FileReader struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	log     *logging.Logger
}

// Open opens path for reading. A missing or unreadable file is a
// per-processor I/O error: the caller is expected to treat that core as
// trace-complete immediately rather than abort the run.
func Open(path string, log *logging.Logger) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	if log == nil {
		log = logging.Default()
	}
	return &FileReader{path: path, file: f, scanner: bufio.NewScanner(f), log: log}, nil
}

// Close releases the underlying file handle.
func (r *FileReader) Close() error {
	return r.file.Close()
}

// Next returns the next well-formed reference in the file, silently
// skipping blank lines, `#` comments, and malformed lines (each logged as
// a warning).
func (r *FileReader) Next() (Reference, bool) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := parseLine(line)
		if err != nil {
			r.log.Warnf("trace: %s: %v", r.path, err)
			continue
		}
		return ref, true
	}
	return Reference{}, false
}

func parseLine(line string) (Reference, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Reference{}, fmt.Errorf("malformed line %q: want \"<OP> <ADDR>\"", line)
	}

	var op Op
	switch strings.ToUpper(fields[0]) {
	case "R":
		op = Read
	case "W":
		op = Write
	default:
		return Reference{}, fmt.Errorf("unknown operation %q", fields[0])
	}

	digits, base := fields[1], 10
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		digits, base = digits[2:], 16
	}
	addr, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return Reference{}, fmt.Errorf("bad address %q: %w", fields[1], err)
	}

	return Reference{Op: op, Addr: uint32(addr)}, nil
}
