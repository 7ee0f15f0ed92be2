// Package envi reads and writes hyperspectral cubes and label maps stored as
// ENVI header/raw file pairs. Raw files may be zstd compressed.
package envi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ENVI data type codes
const (
	Uint8   = 1
	Int16   = 2
	Int32   = 3
	Float32 = 4
	Float64 = 5
	Uint16  = 12
	Uint32  = 13
	Int64   = 14
	Uint64  = 15
)

// Header is the subset of an ENVI header needed to decode raw data
type Header struct {
	Samples      int // columns (width)
	Lines        int // rows (height)
	Bands        int
	HeaderOffset int
	DataType     int
	Interleave   string // bsq, bil or bip
	ByteOrder    int    // 0 little endian, 1 big endian
}

// ParseHeader parses an ENVI .hdr file. Unknown keys are ignored; braced
// values may span lines.
func ParseHeader(r io.Reader) (*Header, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ENVI" {
		return nil, fmt.Errorf("missing ENVI magic line")
	}

	fields := make(map[string]string)
	var pendingKey string
	var pending strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if pendingKey != "" {
			pending.WriteString(line)
			if strings.Contains(line, "}") {
				fields[pendingKey] = pending.String()
				pendingKey = ""
				pending.Reset()
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "{") && !strings.Contains(value, "}") {
			pendingKey = key
			pending.WriteString(value)
			continue
		}
		fields[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	h := &Header{Interleave: "bsq"}
	ints := []struct {
		key      string
		dst      *int
		required bool
	}{
		{"samples", &h.Samples, true},
		{"lines", &h.Lines, true},
		{"bands", &h.Bands, true},
		{"data type", &h.DataType, true},
		{"header offset", &h.HeaderOffset, false},
		{"byte order", &h.ByteOrder, false},
	}
	for _, f := range ints {
		raw, ok := fields[f.key]
		if !ok {
			if f.required {
				return nil, fmt.Errorf("header is missing %q", f.key)
			}
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("header field %q: %w", f.key, err)
		}
		*f.dst = v
	}
	if v, ok := fields["interleave"]; ok {
		h.Interleave = strings.ToLower(v)
	}
	return h, h.validate()
}

func (h *Header) validate() error {
	if h.Samples < 1 || h.Lines < 1 || h.Bands < 1 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", h.Lines, h.Samples, h.Bands)
	}
	if bytesPerValue(h.DataType) == 0 {
		return fmt.Errorf("unsupported data type %d", h.DataType)
	}
	switch h.Interleave {
	case "bsq", "bil", "bip":
	default:
		return fmt.Errorf("unsupported interleave %q", h.Interleave)
	}
	if h.ByteOrder != 0 && h.ByteOrder != 1 {
		return fmt.Errorf("invalid byte order %d", h.ByteOrder)
	}
	if h.HeaderOffset < 0 {
		return fmt.Errorf("invalid header offset %d", h.HeaderOffset)
	}
	return nil
}

// Bytes renders the header in ENVI text form
func (h *Header) Bytes() []byte {
	var b strings.Builder
	b.WriteString("ENVI\n")
	fmt.Fprintf(&b, "samples = %d\n", h.Samples)
	fmt.Fprintf(&b, "lines = %d\n", h.Lines)
	fmt.Fprintf(&b, "bands = %d\n", h.Bands)
	fmt.Fprintf(&b, "header offset = %d\n", h.HeaderOffset)
	b.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", h.DataType)
	fmt.Fprintf(&b, "interleave = %s\n", h.Interleave)
	fmt.Fprintf(&b, "byte order = %d\n", h.ByteOrder)
	return []byte(b.String())
}

// DataSize returns the number of raw bytes the header describes
func (h *Header) DataSize() int {
	return h.Samples * h.Lines * h.Bands * bytesPerValue(h.DataType)
}

func (h *Header) byteOrder() binary.ByteOrder {
	if h.ByteOrder == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// offset returns the value index of (x, y, band) in the raw stream
func (h *Header) offset(x, y, band int) int {
	switch h.Interleave {
	case "bil":
		return (x*h.Bands+band)*h.Samples + y
	case "bip":
		return (x*h.Samples+y)*h.Bands + band
	default:
		return (band*h.Lines+x)*h.Samples + y
	}
}

func bytesPerValue(dataType int) int {
	switch dataType {
	case Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	}
	return 0
}
