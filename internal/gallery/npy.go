package gallery

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// .npy files are the enrollment tool's native format: a magic string, a
// version, a Python-dict header and a raw little-endian array.

var npyMagic = []byte("\x93NUMPY")

var (
	ErrNotNPY = errors.New("not an npy file")

	descrRe = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	orderRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// DecodeNPY parses a one-dimensional (or 1xD) float32/float64 array.
func DecodeNPY(data []byte) ([]float32, error) {
	if len(data) < 10 || !bytes.HasPrefix(data, npyMagic) {
		return nil, ErrNotNPY
	}
	major := data[6]

	var headerLen, offset int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		offset = 10
	case 2, 3:
		if len(data) < 12 {
			return nil, ErrNotNPY
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		offset = 12
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}
	if len(data) < offset+headerLen {
		return nil, fmt.Errorf("truncated npy header")
	}
	header := string(data[offset : offset+headerLen])
	body := data[offset+headerLen:]

	descr := descrRe.FindStringSubmatch(header)
	if descr == nil {
		return nil, fmt.Errorf("npy header missing descr")
	}
	if m := orderRe.FindStringSubmatch(header); m != nil && m[1] == "True" {
		return nil, fmt.Errorf("fortran-ordered npy arrays are not supported")
	}
	n, err := npyLength(header)
	if err != nil {
		return nil, err
	}

	var size int
	switch descr[1] {
	case "<f4":
		size = 4
	case "<f8":
		size = 8
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", descr[1])
	}
	if n > len(body)/size {
		return nil, fmt.Errorf("truncated npy body: %d bytes for %d %s values", len(body), n, descr[1])
	}

	out := make([]float32, n)
	for i := range out {
		if size == 4 {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
		} else {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:])))
		}
	}
	return out, nil
}

// npyLength returns the element count of a shape of the form (D,) or (1, D).
func npyLength(header string) (int, error) {
	m := shapeRe.FindStringSubmatch(header)
	if m == nil {
		return 0, fmt.Errorf("npy header missing shape")
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("parse npy shape %q: %w", m[1], err)
		}
		if d < 0 {
			return 0, fmt.Errorf("negative npy dimension in %q", m[1])
		}
		dims = append(dims, d)
	}
	switch {
	case len(dims) == 1:
		return dims[0], nil
	case len(dims) == 2 && dims[0] == 1:
		return dims[1], nil
	default:
		return 0, fmt.Errorf("npy shape %v is not a single vector", dims)
	}
}

// EncodeNPY writes v as a version 1.0 float32 .npy file.
func EncodeNPY(v []float32) []byte {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d,), }", len(v))
	// magic(6) + version(2) + len(2) + header + '\n', padded to 64 bytes
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Grow(10 + len(header) + 4*len(v))
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	for _, x := range v {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(x))
	}
	return buf.Bytes()
}
