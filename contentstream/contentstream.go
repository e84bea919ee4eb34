// Package contentstream renders page content operator streams. The
// serialization pipeline treats page contents as opaque bytes; this
// builder is the supported way to produce them, covering text, simple
// vector graphics and placed images.
package contentstream

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/draftmark/pdfgen/coords"
)

// Builder accumulates content stream operators. Methods chain; Bytes
// returns the finished stream.
type Builder struct {
	buf bytes.Buffer
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

func (b *Builder) op(args []float64, operator string) *Builder {
	for _, a := range args {
		b.buf.WriteString(num(a))
		b.buf.WriteByte(' ')
	}
	b.buf.WriteString(operator)
	b.buf.WriteByte('\n')
	return b
}

// num formats an operand without exponent notation.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// Save pushes the graphics state; Restore pops it.
func (b *Builder) Save() *Builder    { return b.op(nil, "q") }
func (b *Builder) Restore() *Builder { return b.op(nil, "Q") }

// Concat applies a transformation matrix.
func (b *Builder) Concat(m coords.Matrix) *Builder {
	return b.op(m[:], "cm")
}

// Text emits one positioned text run in the named font.
func (b *Builder) Text(font string, size, x, y float64, s string) *Builder {
	b.buf.WriteString("BT\n")
	fmt.Fprintf(&b.buf, "/%s %s Tf\n", font, num(size))
	b.op([]float64{x, y}, "Td")
	b.buf.WriteString(escapeText(s))
	b.buf.WriteString(" Tj\nET\n")
	return b
}

func escapeText(s string) string {
	var out bytes.Buffer
	out.WriteByte('(')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', ')', '\\':
			out.WriteByte('\\')
		}
		out.WriteByte(s[i])
	}
	out.WriteByte(')')
	return out.String()
}

// SetFillGray and SetFillRGB select the nonstroking color.
func (b *Builder) SetFillGray(g float64) *Builder { return b.op([]float64{g}, "g") }
func (b *Builder) SetFillRGB(r, g, bl float64) *Builder {
	return b.op([]float64{r, g, bl}, "rg")
}

// SetStrokeRGB selects the stroking color.
func (b *Builder) SetStrokeRGB(r, g, bl float64) *Builder {
	return b.op([]float64{r, g, bl}, "RG")
}

func (b *Builder) SetLineWidth(w float64) *Builder { return b.op([]float64{w}, "w") }

// Rect appends a rectangle to the current path.
func (b *Builder) Rect(x, y, w, h float64) *Builder {
	return b.op([]float64{x, y, w, h}, "re")
}

func (b *Builder) MoveTo(x, y float64) *Builder { return b.op([]float64{x, y}, "m") }
func (b *Builder) LineTo(x, y float64) *Builder { return b.op([]float64{x, y}, "l") }

// Fill, Stroke and FillStroke paint the current path.
func (b *Builder) Fill() *Builder       { return b.op(nil, "f") }
func (b *Builder) Stroke() *Builder     { return b.op(nil, "S") }
func (b *Builder) FillStroke() *Builder { return b.op(nil, "B") }

// Image places the named image XObject into a w-by-h box at x, y.
func (b *Builder) Image(name string, x, y, w, h float64) *Builder {
	b.Save()
	b.Concat(coords.Scale(w, h).Multiply(coords.Translate(x, y)))
	fmt.Fprintf(&b.buf, "/%s Do\n", name)
	return b.Restore()
}

// SetExtGState activates a named graphics state from the resource
// dictionary.
func (b *Builder) SetExtGState(name string) *Builder {
	fmt.Fprintf(&b.buf, "/%s gs\n", name)
	return b
}

// MarkedContent wraps fn's output in an optional content block bound to
// the named layer property.
func (b *Builder) MarkedContent(property string, fn func(*Builder)) *Builder {
	fmt.Fprintf(&b.buf, "/OC /%s BDC\n", property)
	fn(b)
	b.buf.WriteString("EMC\n")
	return b
}
