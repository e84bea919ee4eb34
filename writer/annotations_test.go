package writer

import (
	"bytes"
	"testing"

	"github.com/draftmark/pdfgen/ir/semantic"
)

func link(target string, rect semantic.Rectangle) *semantic.LinkAnnotation {
	return &semantic.LinkAnnotation{
		BaseAnnotation: semantic.BaseAnnotation{Rect: rect},
		Target:         target,
	}
}

func TestLinkTargetDispatch(t *testing.T) {
	doc := &semantic.Document{
		Pages: []*semantic.Page{
			{MediaBox: semantic.Rectangle{URX: 500, URY: 500}, Contents: []byte("BT ET")},
			{MediaBox: semantic.Rectangle{URX: 500, URY: 500}, Contents: []byte("BT ET")},
		},
		Links: map[string]semantic.LinkTarget{"section-2": {Page: 1, Y: 400}},
	}
	r := semantic.Rectangle{LLX: 10, LLY: 10, URX: 100, URY: 24}
	doc.Pages[0].Annotations = []semantic.Annotation{
		link("https://example.com/docs", r),
		link("#chapter1", r),
		link("@section-2", r),
		link("manual.pdf", r),
		link("%attached.pdf:3", r),
		link("*report.xml", r),
		link("@missing-id", r),
	}

	out := build(t, doc, Config{Deterministic: true})

	checks := []string{
		"/S /URI/URI (https://example.com/docs)",
		"/Dest (chapter1)",
		"/S /GoToR",
		"/F (manual.pdf)",
		"/S /GoToE",
		"/N (attached.pdf)",
		"/D [2 /Fit]",
		"exportDataObject",
	}
	for _, want := range checks {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}
	// The resolved internal id becomes an explicit destination on page 2.
	if !bytes.Contains(out, []byte("/XYZ null 400 null]")) {
		t.Error("internal link id not resolved to a destination")
	}
	// The unresolved id degrades to a link without action.
	if got := bytes.Count(out, []byte("/Subtype /Link")); got != 7 {
		t.Errorf("link annotations = %d, want 7", got)
	}
}

func TestTextMarkupVariants(t *testing.T) {
	doc := onePageDoc()
	quad := []float64{50, 70, 200, 70, 50, 50, 200, 50}
	for _, k := range []semantic.MarkupKind{
		semantic.MarkupHighlight, semantic.MarkupUnderline,
		semantic.MarkupSquiggly, semantic.MarkupStrikeOut,
	} {
		doc.Pages[0].Annotations = append(doc.Pages[0].Annotations, &semantic.TextMarkupAnnotation{
			BaseAnnotation: semantic.BaseAnnotation{Rect: semantic.Rectangle{LLX: 50, LLY: 50, URX: 200, URY: 70}},
			Kind:           k,
			QuadPoints:     quad,
		})
	}
	out := build(t, doc, Config{Deterministic: true})
	for _, want := range []string{"/Subtype /Highlight", "/Subtype /Underline", "/Subtype /Squiggly", "/Subtype /StrikeOut"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("missing %s", want)
		}
	}
	if got := bytes.Count(out, []byte("/QuadPoints")); got != 4 {
		t.Errorf("QuadPoints count = %d", got)
	}
}

func TestFileAttachmentAnnotationResolvesFilespec(t *testing.T) {
	doc := onePageDoc()
	doc.EmbeddedFiles = []*semantic.EmbeddedFile{{Name: "notes.txt", Data: []byte("hi")}}
	doc.Pages[0].Annotations = []semantic.Annotation{
		&semantic.FileAttachmentAnnotation{
			BaseAnnotation: semantic.BaseAnnotation{Rect: semantic.Rectangle{LLX: 10, LLY: 10, URX: 30, URY: 30}},
			FileName:       "notes.txt",
			Icon:           "Paperclip",
		},
	}
	out := build(t, doc, Config{Deterministic: true})
	if !bytes.Contains(out, []byte("/Subtype /FileAttachment")) {
		t.Fatal("missing attachment annotation")
	}
	if !bytes.Contains(out, []byte("/FS ")) {
		t.Error("annotation does not reference the filespec")
	}
	if !bytes.Contains(out, []byte("/Type /Filespec")) {
		t.Error("filespec missing")
	}
}

func TestAppearanceStreamBecomesFormXObject(t *testing.T) {
	doc := onePageDoc()
	doc.Pages[0].Annotations = []semantic.Annotation{
		&semantic.StampAnnotation{
			BaseAnnotation: semantic.BaseAnnotation{
				Rect:       semantic.Rectangle{LLX: 100, LLY: 100, URX: 200, URY: 150},
				Appearance: []byte("0 0 1 rg 0 0 100 50 re f"),
			},
			StampName: "Approved",
		},
	}
	out := build(t, doc, Config{Deterministic: true})
	if !bytes.Contains(out, []byte("/Subtype /Form")) {
		t.Error("appearance not emitted as form XObject")
	}
	if !bytes.Contains(out, []byte("/BBox [0 0 100 50]")) {
		t.Error("BBox not sized to the annotation rectangle")
	}
	if !bytes.Contains(out, []byte("/AP <</N ")) {
		t.Error("annotation lacks the appearance reference")
	}
}

func TestCompressedAppearanceCarriesLength(t *testing.T) {
	doc := onePageDoc()
	doc.Pages[0].Annotations = []semantic.Annotation{
		&semantic.StampAnnotation{
			BaseAnnotation: semantic.BaseAnnotation{
				Rect:       semantic.Rectangle{LLX: 0, LLY: 0, URX: 300, URY: 300},
				Appearance: bytes.Repeat([]byte("0 0 1 rg 0 0 100 50 re f\n"), 40),
			},
			StampName: "Draft",
		},
	}
	out := build(t, doc, Config{Deterministic: true, Compress: true})
	form := bytes.Index(out, []byte("/Subtype /Form"))
	if form < 0 {
		t.Fatal("appearance not emitted as form XObject")
	}
	objStart := bytes.LastIndex(out[:form], []byte("obj\n"))
	end := bytes.Index(out[form:], []byte("stream"))
	if objStart < 0 || end < 0 {
		t.Fatal("malformed appearance object")
	}
	dict := out[objStart : form+end]
	if !bytes.Contains(dict, []byte("/Length ")) {
		t.Error("appearance stream dict has no /Length")
	}
	if !bytes.Contains(dict, []byte("/Filter /FlateDecode")) {
		t.Error("repetitive appearance did not compress")
	}
}
