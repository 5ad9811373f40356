package serials

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedDType is returned for arrays that are not fixed-width strings.
	ErrUnsupportedDType = errors.New("unsupported npy dtype")

	npyMagic = []byte("\x93NUMPY")

	descrPattern = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	shapePattern = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// Set is a set of drive serial numbers.
type Set map[string]struct{}

// NewSet builds a Set from a list of serials.
func NewSet(serials []string) Set {
	s := make(Set, len(serials))
	for _, v := range serials {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether the serial is in the set.
func (s Set) Contains(serial string) bool {
	_, ok := s[serial]
	return ok
}

// FileName returns the serial-set file name for the given selection, e.g.
// HDD_2016_2017_all_ST4000DM000.npy.
func FileName(years []string, failed bool, models []string) string {
	return Prefix(years, failed, models) + ".npy"
}

// Prefix is the shared stem of the serial-set and extracted-table file names.
func Prefix(years []string, failed bool, models []string) string {
	suffix := "all"
	if failed {
		suffix = "failed"
	}
	return fmt.Sprintf("HDD_%s_%s_%s", strings.Join(years, "_"), suffix, strings.Join(models, "_"))
}

// Read loads a one-dimensional NumPy string array from path.
func Read(path string) (Set, error) {
	values, err := ReadStrings(path)
	if err != nil {
		return nil, err
	}
	return NewSet(values), nil
}

// ReadStrings loads a one-dimensional NumPy string array from path,
// preserving element order.
func ReadStrings(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open npy file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses the .npy format. Supported dtypes are '<U n' (UTF-32LE) and
// '|S n' (NUL-padded bytes).
func Decode(r io.Reader) ([]string, error) {
	magic := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("failed to read npy magic: %w", err)
	}
	if !bytes.Equal(magic[:len(npyMagic)], npyMagic) {
		return nil, errors.New("not an npy file")
	}

	major := magic[len(npyMagic)]
	var headerLen int
	switch major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("failed to read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("failed to read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	descr, count, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	width, err := strconv.Atoi(descr[2:])
	if err != nil || width < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, descr)
	}

	switch descr[:2] {
	case "<U":
		return decodeUnicode(r, count, width, binary.LittleEndian)
	case ">U":
		return decodeUnicode(r, count, width, binary.BigEndian)
	case "|S":
		return decodeBytes(r, count, width)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, descr)
}

func parseHeader(header string) (string, int, error) {
	m := descrPattern.FindStringSubmatch(header)
	if m == nil {
		return "", 0, errors.New("npy header has no descr")
	}
	descr := m[1]
	if len(descr) < 3 {
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, descr)
	}

	m = shapePattern.FindStringSubmatch(header)
	if m == nil {
		return "", 0, errors.New("npy header has no shape")
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return "", 0, fmt.Errorf("invalid npy shape %q: %w", m[1], err)
		}
		dims = append(dims, d)
	}
	switch len(dims) {
	case 0:
		return descr, 1, nil
	case 1:
		return descr, dims[0], nil
	}
	return "", 0, fmt.Errorf("expected a one-dimensional array, got shape (%s)", m[1])
}

func decodeUnicode(r io.Reader, count, width int, order binary.ByteOrder) ([]string, error) {
	buf := make([]byte, 4*width)
	out := make([]string, 0, count)
	var sb strings.Builder
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read npy element %d: %w", i, err)
		}
		sb.Reset()
		for j := 0; j < width; j++ {
			cp := order.Uint32(buf[4*j:])
			if cp == 0 {
				break
			}
			if cp > utf8.MaxRune {
				return nil, fmt.Errorf("invalid code point %#x in npy element %d", cp, i)
			}
			sb.WriteRune(rune(cp))
		}
		out = append(out, sb.String())
	}
	return out, nil
}

func decodeBytes(r io.Reader, count, width int) ([]string, error) {
	buf := make([]byte, width)
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read npy element %d: %w", i, err)
		}
		out = append(out, string(bytes.TrimRight(buf, "\x00")))
	}
	return out, nil
}

// Write stores serials as a '<U n' array in .npy v1.0 format.
func Write(path string, serials []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create npy file: %w", err)
	}
	if err := Encode(f, serials); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes serials as a '<U n' array in .npy v1.0 format.
func Encode(w io.Writer, serials []string) error {
	width := 1
	for _, s := range serials {
		if n := utf8.RuneCountInString(s); n > width {
			width = n
		}
	}

	dict := fmt.Sprintf("{'descr': '<U%d', 'fortran_order': False, 'shape': (%d,), }", width, len(serials))
	// magic(6) + version(2) + length(2) + dict + '\n' is padded to a multiple of 64.
	pre := len(npyMagic) + 4
	total := pre + len(dict) + 1
	if rem := total % 64; rem != 0 {
		dict += strings.Repeat(" ", 64-rem)
	}
	dict += "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(dict))); err != nil {
		return err
	}
	buf.WriteString(dict)

	cell := make([]byte, 4*width)
	for _, s := range serials {
		clear(cell)
		j := 0
		for _, r := range s {
			binary.LittleEndian.PutUint32(cell[4*j:], uint32(r))
			j++
		}
		buf.Write(cell)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write npy data: %w", err)
	}
	return nil
}
