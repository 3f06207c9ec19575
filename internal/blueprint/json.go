package blueprint

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Format pins the byte layout of canonical JSON.
type Format struct {
	// SortKeys orders object keys by code point instead of document order.
	SortKeys bool

	// Compact drops the spaces after item and key separators.
	Compact bool

	// EnsureASCII escapes every character outside printable ASCII as \uXXXX.
	EnsureASCII bool
}

// DefaultFormat returns the format produced by the original upload script:
// document key order, ", " and ": " separators, ASCII-only output.
func DefaultFormat() Format {
	return Format{EnsureASCII: true}
}

func (f Format) separators() (item, key string) {
	if f.Compact {
		return ",", ":"
	}
	return ", ", ": "
}

// JSON serializes the document as canonical JSON under f.
func (d *Document) JSON(f Format) ([]byte, error) {
	e := &encoder{format: f}
	e.item, e.key = f.separators()
	if err := e.encode(d.root); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf       bytes.Buffer
	format    Format
	item, key string
}

func (e *encoder) encode(v *value) error {
	switch v.kind {
	case kindNull:
		e.buf.WriteString("null")
	case kindBool:
		e.buf.WriteString(strconv.FormatBool(v.b))
	case kindNumber:
		e.buf.WriteString(v.text)
	case kindString:
		e.quote(v.text)
	case kindArray:
		e.buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				e.buf.WriteString(e.item)
			}
			if err := e.encode(item); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
	case kindObject:
		e.buf.WriteByte('{')
		for i, idx := range e.order(v) {
			if i > 0 {
				e.buf.WriteString(e.item)
			}
			e.quote(v.keys[idx])
			e.buf.WriteString(e.key)
			if err := e.encode(v.items[idx]); err != nil {
				return err
			}
		}
		e.buf.WriteByte('}')
	case kindInvalid:
		return fmt.Errorf("%w: line %d: %s", ErrUnsupported, v.line, v.text)
	}
	return nil
}

// order returns the indexes of v's keys in output order.
func (e *encoder) order(v *value) []int {
	idx := make([]int, len(v.keys))
	for i := range idx {
		idx[i] = i
	}
	if e.format.SortKeys {
		sort.SliceStable(idx, func(a, b int) bool {
			return v.keys[idx[a]] < v.keys[idx[b]]
		})
	}
	return idx
}

const hexDigits = "0123456789abcdef"

func (e *encoder) quote(s string) {
	e.buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			e.buf.WriteString(`\"`)
		case '\\':
			e.buf.WriteString(`\\`)
		case '\n':
			e.buf.WriteString(`\n`)
		case '\r':
			e.buf.WriteString(`\r`)
		case '\t':
			e.buf.WriteString(`\t`)
		case '\b':
			e.buf.WriteString(`\b`)
		case '\f':
			e.buf.WriteString(`\f`)
		default:
			switch {
			case r < 0x20:
				e.escape(r)
			case e.format.EnsureASCII && r > 0x7e:
				if r > 0xffff {
					hi, lo := surrogates(r)
					e.escape(hi)
					e.escape(lo)
				} else {
					e.escape(r)
				}
			default:
				e.buf.WriteRune(r)
			}
		}
	}
	e.buf.WriteByte('"')
}

func (e *encoder) escape(r rune) {
	e.buf.WriteString(`\u`)
	e.buf.WriteByte(hexDigits[r>>12&0xf])
	e.buf.WriteByte(hexDigits[r>>8&0xf])
	e.buf.WriteByte(hexDigits[r>>4&0xf])
	e.buf.WriteByte(hexDigits[r&0xf])
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}

// formatFloat writes the shortest representation that round-trips, always
// with a fraction or exponent so floats stay distinguishable from integers.
// Exponent notation is used below 1e-4 and from 1e16 upward.
func formatFloat(f float64) string {
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && exp >= -4 && exp < 16 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
		return s
	}
	return sci
}
