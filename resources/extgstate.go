package resources

import (
	"sort"

	"github.com/draftmark/pdfgen/ir/raw"
)

// ExtGState is an extended graphics state: alpha constants and an
// optional blend mode.
type ExtGState struct {
	FillAlpha   *float64
	StrokeAlpha *float64
	BlendMode   string
}

// ExtGStateEmitter emits /ExtGState dictionaries.
type ExtGStateEmitter struct {
	States map[string]ExtGState
}

func NewExtGStateEmitter() *ExtGStateEmitter {
	return &ExtGStateEmitter{States: make(map[string]ExtGState)}
}

func (e *ExtGStateEmitter) Add(name string, gs ExtGState) *ExtGStateEmitter {
	e.States[name] = gs
	return e
}

func (e *ExtGStateEmitter) Category() Category { return CategoryExtGState }

func (e *ExtGStateEmitter) Emit(next int) (Block, error) {
	names := make([]string, 0, len(e.States))
	for n := range e.States {
		names = append(names, n)
	}
	sort.Strings(names)

	var objs []Indirect
	entries := make(map[string]int, len(names))
	for _, name := range names {
		gs := e.States[name]
		dict := raw.Dict()
		dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("ExtGState"))
		if gs.FillAlpha != nil {
			dict.Set(raw.NameLiteral("ca"), raw.NumberFloat(*gs.FillAlpha))
		}
		if gs.StrokeAlpha != nil {
			dict.Set(raw.NameLiteral("CA"), raw.NumberFloat(*gs.StrokeAlpha))
		}
		if gs.BlendMode != "" {
			dict.Set(raw.NameLiteral("BM"), raw.NameLiteral(gs.BlendMode))
		}
		objs = append(objs, Indirect{Num: next, Obj: dict})
		entries[name] = next
		next++
	}
	return Block{Objects: objs, Next: next, Entries: entries}, nil
}
