// Package semantic holds the document model the serialization pipeline
// consumes: pages, annotations, outlines, embedded files, form fields
// and document-level configuration that ends up in the catalog.
package semantic

// Rectangle is a PDF rectangle in default user space (lower-left x/y,
// upper-right x/y).
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// IsZero reports whether the rectangle was never set.
func (r Rectangle) IsZero() bool {
	return r.LLX == 0 && r.LLY == 0 && r.URX == 0 && r.URY == 0
}

// Document is the semantic representation of a PDF about to be written.
type Document struct {
	Pages         []*Page
	Info          *DocumentInfo
	Lang          string
	Outlines      []Bookmark
	NamedDests    []NamedDestination
	EmbeddedFiles []*EmbeddedFile
	JavaScript    []JavaScriptEntry
	Layers        []Layer
	Form          *Form
	PageLayout    string
	PageMode      string

	// Links resolves internal link ids (link annotation targets that
	// start with '@') to a page position. An id missing from the map
	// downgrades the annotation to a no-op link.
	Links map[string]LinkTarget
}

// LinkTarget is the destination behind an internal link id.
type LinkTarget struct {
	Page int
	Y    float64
}

// Page models a single page: geometry, pre-rendered content and the
// annotations anchored to it. Content streams arrive already formatted
// from the page/content subsystem; this model never re-renders them.
type Page struct {
	Index       int
	MediaBox    Rectangle
	CropBox     Rectangle
	Rotate      int
	Contents    []byte
	Annotations []Annotation
}

// DocumentInfo maps onto the Info dictionary and the XMP packet.
type DocumentInfo struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string // PDF date string, e.g. D:20240102150405+01'00'
	ModDate      string
}

// ViewerPreferences collects the catalog /ViewerPreferences entries the
// engine supports.
type ViewerPreferences struct {
	HideToolbar        bool
	HideMenubar        bool
	HideWindowUI       bool
	FitWindow          bool
	CenterWindow       bool
	DisplayDocTitle    bool
	NonFullScreenMode  string
	PrintScaling       string
	Duplex             string
	PickTrayByPDFSize  bool
	NumCopies          int
	PrintPageRangeFrom int
	PrintPageRangeTo   int
}

// NamedDestination binds a symbolic name to a page view position.
type NamedDestination struct {
	Name string
	Page int
	Y    float64
}

// Bookmark is one outline entry in creation order. Level expresses
// nesting depth; the writer links entries into a tree in a second pass.
type Bookmark struct {
	Level int
	Title string
	Page  int
	Y     float64
}

// JavaScriptEntry is one document-level script in the JavaScript name
// tree.
type JavaScriptEntry struct {
	Name   string
	Script string
}

// Layer is an optional content group.
type Layer struct {
	Name   string
	Print  bool
	View   bool
	Locked bool
}

// EmbeddedFile is a file attachment. Data wins over Path; when only
// Path is set the content is read lazily at serialization time, and a
// read failure skips the attachment without failing the build.
type EmbeddedFile struct {
	Name         string
	Description  string
	Relationship string
	MIMEType     string
	Data         []byte
	Path         string

	// Reserved object numbers, filled in by the embedded-files stage.
	FileSpecNum int
	StreamNum   int
}

// Form aggregates interactive form configuration.
type Form struct {
	NeedAppearances bool
	Fields          []FormField
}
