package resources

import (
	"fmt"
	"sort"

	"github.com/draftmark/pdfgen/ir/raw"
)

// Standard14 lists the base fonts every conforming reader provides.
var Standard14 = []string{
	"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
	"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
	"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
	"Symbol", "ZapfDingbats",
}

// CoreFontEmitter emits Type1 dictionaries for standard-14 fonts. Keys
// of Fonts are the resource names content streams reference.
type CoreFontEmitter struct {
	Fonts map[string]string // resource name -> base font
}

// NewCoreFontEmitter returns an emitter preloaded with Helvetica as F1,
// the engine's default text font.
func NewCoreFontEmitter() *CoreFontEmitter {
	return &CoreFontEmitter{Fonts: map[string]string{"F1": "Helvetica"}}
}

// Add registers a base font under the given resource name.
func (e *CoreFontEmitter) Add(name, baseFont string) *CoreFontEmitter {
	if e.Fonts == nil {
		e.Fonts = make(map[string]string)
	}
	e.Fonts[name] = baseFont
	return e
}

func (e *CoreFontEmitter) Category() Category { return CategoryFont }

func (e *CoreFontEmitter) Emit(next int) (Block, error) {
	names := make([]string, 0, len(e.Fonts))
	for n := range e.Fonts {
		names = append(names, n)
	}
	sort.Strings(names)

	var objs []Indirect
	entries := make(map[string]int, len(names))
	for _, name := range names {
		base := e.Fonts[name]
		if !isStandard14(base) {
			return Block{}, fmt.Errorf("font %q is not a standard-14 base font", base)
		}
		dict := raw.Dict()
		dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
		dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
		dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(base))
		if base != "Symbol" && base != "ZapfDingbats" {
			dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
		}
		objs = append(objs, Indirect{Num: next, Obj: dict})
		entries[name] = next
		next++
	}
	return Block{Objects: objs, Next: next, Entries: entries}, nil
}

func isStandard14(base string) bool {
	for _, s := range Standard14 {
		if s == base {
			return true
		}
	}
	return false
}
