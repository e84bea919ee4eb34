// Package resources defines the contract between the document
// assembler and the subsystems that contribute shared page resources
// (fonts, images, graphics states), plus built-in emitters for the
// common cases.
//
// An emitter receives the next free object number, builds zero or more
// indirect objects, and hands back the new next free number together
// with the resource-name bindings the resource dictionary must carry.
// Object numbers only ever move forward. Emitters return object values
// rather than rendered bytes so the assembler can apply the document's
// security handler before serialization.
package resources

import "github.com/draftmark/pdfgen/ir/raw"

// Category names the resource dictionary slot an emitter feeds.
type Category string

const (
	CategoryFont      Category = "Font"
	CategoryXObject   Category = "XObject"
	CategoryExtGState Category = "ExtGState"
	CategoryColor     Category = "ColorSpace"
	CategoryPattern   Category = "Pattern"
	CategoryShading   Category = "Shading"
)

// Indirect pairs an allocated object number with its value. The
// assembler serializes these itself so security handlers see every
// emitter string and stream.
type Indirect struct {
	Num int
	Obj raw.Object
}

// Block is one emitter's contribution to the document body.
type Block struct {
	// Objects holds the emitter's indirect objects in emission order.
	Objects []Indirect

	// Next is the object-number counter after the emitter's
	// allocations. Must be >= the value passed to Emit.
	Next int

	// Entries maps resource names (as used by content streams, e.g.
	// "F1", "Im2", "GS0") to the object numbers backing them.
	Entries map[string]int
}

// Emitter produces the indirect objects for one resource category.
type Emitter interface {
	Category() Category
	Emit(next int) (Block, error)
}
