package raw

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Serialize renders a raw object to its PDF textual form. Dictionary
// keys are emitted in sorted order so output is deterministic.
func Serialize(o Object) []byte {
	switch v := o.(type) {
	case NameObj:
		return []byte("/" + v.Value())
	case NumberObj:
		if v.IsInteger() {
			return strconv.AppendInt(nil, v.Int(), 10)
		}
		return []byte(formatReal(v.Float()))
	case BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case NullObj:
		return []byte("null")
	case StringObj:
		if v.IsHex() {
			return []byte(fmt.Sprintf("<%X>", v.Value()))
		}
		return escapeLiteral(v.Value())
	case *ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(Serialize(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *DictObj:
		var b bytes.Buffer
		b.WriteString("<<")
		keys := make([]string, 0, len(v.KV))
		for k := range v.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("/" + k + " ")
			b.Write(Serialize(v.KV[k]))
		}
		b.WriteString(">>")
		return b.Bytes()
	case *StreamObj:
		var b bytes.Buffer
		b.Write(Serialize(v.Dict))
		b.WriteString("stream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	case RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.Ref().Num, v.Ref().Gen))
	case VerbatimObj:
		return v.Text
	default:
		return []byte("null")
	}
}

// RenderIndirect renders a complete "N G obj ... endobj" block with a
// trailing newline. The object number digits are the first bytes of the
// returned slice; the byte-offset indexer depends on that.
func RenderIndirect(num, gen int, obj Object) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d %d obj\n", num, gen)
	b.Write(Serialize(obj))
	b.WriteString("\nendobj\n")
	return b.Bytes()
}

// formatReal renders a real number without exponent notation and
// without a trailing ".000000" tail.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = trimZeros(s)
	return s
}

func trimZeros(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}

// escapeLiteral renders a (...) string, escaping the delimiters,
// backslash and non-printable bytes.
func escapeLiteral(data []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, c := range data {
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}
