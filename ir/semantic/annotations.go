package semantic

// Annotation is the closed set of annotation variants the writer can
// serialize. Every variant embeds BaseAnnotation; the writer's dispatch
// over the concrete types is total, so a new variant here is a compile
// error there until it gets a serializer.
type Annotation interface {
	Base() *BaseAnnotation
	Subtype() string
}

// BaseAnnotation carries the keys shared by every annotation subtype:
// geometry, text content, flags, border, color and an optional
// appearance stream. Page is the zero-based page index.
type BaseAnnotation struct {
	Page       int
	Rect       Rectangle
	Contents   string
	AltText    string
	Flags      int
	Border     []float64
	Color      []float64
	Appearance []byte
	Name       string // /NM
}

func (b *BaseAnnotation) Base() *BaseAnnotation { return b }

// TextAnnotation is a sticky note.
type TextAnnotation struct {
	BaseAnnotation
	Open bool
	Icon string
}

func (*TextAnnotation) Subtype() string { return "Text" }

// LinkAnnotation points somewhere. Target is dispatched on its first
// byte: '#' named destination, '@' internal link id, '%' page inside an
// embedded PDF, '*' JavaScript export action on an embedded file, a
// schemeless *.pdf path becomes a remote go-to, anything else a URI.
type LinkAnnotation struct {
	BaseAnnotation
	Target    string
	Highlight string
}

func (*LinkAnnotation) Subtype() string { return "Link" }

type FreeTextAnnotation struct {
	BaseAnnotation
	DefaultAppearance string
	Quadding          int
}

func (*FreeTextAnnotation) Subtype() string { return "FreeText" }

type LineAnnotation struct {
	BaseAnnotation
	Line    []float64 // x1 y1 x2 y2
	Endings []string
}

func (*LineAnnotation) Subtype() string { return "Line" }

type SquareAnnotation struct {
	BaseAnnotation
	Interior []float64
}

func (*SquareAnnotation) Subtype() string { return "Square" }

type CircleAnnotation struct {
	BaseAnnotation
	Interior []float64
}

func (*CircleAnnotation) Subtype() string { return "Circle" }

type PolygonAnnotation struct {
	BaseAnnotation
	Vertices []float64
}

func (*PolygonAnnotation) Subtype() string { return "Polygon" }

type PolyLineAnnotation struct {
	BaseAnnotation
	Vertices []float64
}

func (*PolyLineAnnotation) Subtype() string { return "PolyLine" }

// MarkupKind selects one of the four text-markup subtypes that share a
// QuadPoints geometry.
type MarkupKind string

const (
	MarkupHighlight MarkupKind = "Highlight"
	MarkupUnderline MarkupKind = "Underline"
	MarkupSquiggly  MarkupKind = "Squiggly"
	MarkupStrikeOut MarkupKind = "StrikeOut"
)

type TextMarkupAnnotation struct {
	BaseAnnotation
	Kind       MarkupKind
	QuadPoints []float64
}

func (a *TextMarkupAnnotation) Subtype() string { return string(a.Kind) }

type StampAnnotation struct {
	BaseAnnotation
	StampName string
}

func (*StampAnnotation) Subtype() string { return "Stamp" }

type CaretAnnotation struct {
	BaseAnnotation
	Symbol string
}

func (*CaretAnnotation) Subtype() string { return "Caret" }

type InkAnnotation struct {
	BaseAnnotation
	InkList [][]float64
}

func (*InkAnnotation) Subtype() string { return "Ink" }

type PopupAnnotation struct {
	BaseAnnotation
	Open bool
}

func (*PopupAnnotation) Subtype() string { return "Popup" }

// FileAttachmentAnnotation references an EmbeddedFile by name; the
// filespec object number is resolved when annotations serialize, after
// the embedded-files stage has run.
type FileAttachmentAnnotation struct {
	BaseAnnotation
	FileName string
	Icon     string
}

func (*FileAttachmentAnnotation) Subtype() string { return "FileAttachment" }

type SoundAnnotation struct {
	BaseAnnotation
	Icon string
}

func (*SoundAnnotation) Subtype() string { return "Sound" }

type MovieAnnotation struct{ BaseAnnotation }

func (*MovieAnnotation) Subtype() string { return "Movie" }

// WidgetAnnotation is the visual face of a form field. Fields that
// belong to a radio group carry the same FieldName; the writer
// materializes the shared parent before any child serializes.
type WidgetAnnotation struct {
	BaseAnnotation
	Field FormField
}

func (*WidgetAnnotation) Subtype() string { return "Widget" }

type ScreenAnnotation struct{ BaseAnnotation }

func (*ScreenAnnotation) Subtype() string { return "Screen" }

type PrinterMarkAnnotation struct{ BaseAnnotation }

func (*PrinterMarkAnnotation) Subtype() string { return "PrinterMark" }

type RedactAnnotation struct {
	BaseAnnotation
	QuadPoints []float64
}

func (*RedactAnnotation) Subtype() string { return "Redact" }

type TrapNetAnnotation struct{ BaseAnnotation }

func (*TrapNetAnnotation) Subtype() string { return "TrapNet" }

type WatermarkAnnotation struct{ BaseAnnotation }

func (*WatermarkAnnotation) Subtype() string { return "Watermark" }

type ThreeDAnnotation struct{ BaseAnnotation }

func (*ThreeDAnnotation) Subtype() string { return "3D" }
