package writer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"regexp"
	"strconv"
	"testing"

	"github.com/draftmark/pdfgen/ir/semantic"
	"github.com/draftmark/pdfgen/observability"
	"github.com/draftmark/pdfgen/pdfa"
	"github.com/draftmark/pdfgen/resources"
	"github.com/draftmark/pdfgen/security"
	"github.com/draftmark/pdfgen/xref"
)

func onePageDoc() *semantic.Document {
	return &semantic.Document{
		Pages: []*semantic.Page{
			{
				MediaBox: semantic.Rectangle{URX: 595.28, URY: 841.89},
				Contents: []byte("BT /F1 12 Tf 72 720 Td (Hello) Tj ET"),
			},
		},
	}
}

func build(t *testing.T, doc *semantic.Document, cfg Config) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := (&WriterBuilder{}).Build()
	if err := w.Write(context.Background(), doc, &buf, cfg); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return buf.Bytes()
}

func TestMinimalDocument(t *testing.T) {
	out := build(t, onePageDoc(), Config{Deterministic: true})

	if !bytes.HasPrefix(out, []byte("%PDF-1.7\n")) {
		t.Errorf("header = %q", out[:9])
	}
	if !bytes.HasSuffix(out, []byte("%%EOF\n")) {
		t.Errorf("file does not end with %%%%EOF")
	}
	if n := bytes.Count(out, []byte("/Type /Catalog")); n != 1 {
		t.Errorf("catalog count = %d, want 1", n)
	}
	if !bytes.Contains(out, []byte("/Type /Pages")) {
		t.Error("missing page tree root")
	}
	if !bytes.Contains(out, []byte("/Type /Page")) {
		t.Error("missing page object")
	}

	// Trailer /Size must be the highest object number plus one.
	m := regexp.MustCompile(`/Size (\d+)`).FindSubmatch(out)
	if m == nil {
		t.Fatal("trailer has no /Size")
	}
	size, _ := strconv.Atoi(string(m[1]))
	max := 0
	for _, om := range regexp.MustCompile(`(?m)^(\d+) 0 obj`).FindAllSubmatch(out, -1) {
		if n, _ := strconv.Atoi(string(om[1])); n > max {
			max = n
		}
	}
	if size != max+1 {
		t.Errorf("/Size = %d, highest object = %d", size, max)
	}
}

func TestOffsetsMatchObjects(t *testing.T) {
	out := build(t, onePageDoc(), Config{Deterministic: true})

	// "\nxref\n" avoids matching the tail of the startxref keyword.
	start := bytes.LastIndex(out, []byte("\nxref\n")) + 1
	if start <= 0 {
		t.Fatal("no xref section")
	}
	entries, err := xref.Decode(out[start:])
	if err != nil {
		t.Fatalf("decode xref: %v", err)
	}
	for num, e := range entries {
		if num == 0 || !e.InUse {
			continue
		}
		prefix := []byte(fmt.Sprintf("%d 0 obj", num))
		if !bytes.HasPrefix(out[e.Offset:], prefix) {
			t.Errorf("object %d: offset %d does not start an object", num, e.Offset)
		}
	}

	m := regexp.MustCompile(`startxref\n(\d+)\n`).FindSubmatch(out)
	if m == nil {
		t.Fatal("no startxref")
	}
	off, _ := strconv.Atoi(string(m[1]))
	if off != start {
		t.Errorf("startxref = %d, xref begins at %d", off, start)
	}
}

func TestDeterministicBuildsAreIdentical(t *testing.T) {
	cfg := Config{Deterministic: true}
	doc := onePageDoc()
	doc.Info = &semantic.DocumentInfo{Title: "stable", CreationDate: "D:20260101000000+00'00'"}
	a := build(t, doc, cfg)
	b := build(t, doc, cfg)
	if !bytes.Equal(a, b) {
		t.Error("two deterministic builds differ")
	}
}

func TestArchivalProfile(t *testing.T) {
	doc := onePageDoc()
	doc.JavaScript = []semantic.JavaScriptEntry{{Name: "init", Script: "var x = 1;"}}
	doc.EmbeddedFiles = []*semantic.EmbeddedFile{{Name: "data.xml", Data: []byte("<a/>")}}

	out := build(t, doc, Config{Deterministic: true, Archive: pdfa.PDFA1B})

	if !bytes.HasPrefix(out, []byte("%PDF-1.4\n")) {
		t.Errorf("archival header = %q", out[:9])
	}
	if bytes.Contains(out, []byte("/JavaScript")) {
		t.Error("scripts survived the archival gate")
	}
	if bytes.Contains(out, []byte("/EmbeddedFiles")) {
		t.Error("embedded files survived the archival gate")
	}
	if !bytes.Contains(out, []byte("/S /GTS_PDFA1")) {
		t.Error("missing archival output intent")
	}
	if !bytes.Contains(out, []byte("pdfaid:part>1<")) {
		t.Error("metadata lacks the archival identification")
	}
}

func TestArchivalLevel3KeepsAttachments(t *testing.T) {
	doc := onePageDoc()
	doc.EmbeddedFiles = []*semantic.EmbeddedFile{
		{Name: "invoice.xml", Data: []byte("<inv/>"), Relationship: "Data", MIMEType: "application/xml"},
	}
	out := build(t, doc, Config{Deterministic: true, Archive: pdfa.PDFA3B})
	if !bytes.Contains(out, []byte("/EmbeddedFiles")) {
		t.Error("level 3 should keep attachments")
	}
	if !bytes.Contains(out, []byte("/AFRelationship /Data")) {
		t.Error("missing attachment relationship")
	}
	if !bytes.Contains(out, []byte("application#2Fxml")) {
		t.Error("MIME subtype not escaped as a name")
	}
}

func TestRadioGroup(t *testing.T) {
	mk := func(on string, checked bool, rect semantic.Rectangle) *semantic.WidgetAnnotation {
		return &semantic.WidgetAnnotation{
			BaseAnnotation: semantic.BaseAnnotation{Rect: rect},
			Field: &semantic.ButtonFormField{
				BaseFormField: semantic.BaseFormField{Name: "choice"},
				IsRadio:       true,
				OnState:       on,
				Checked:       checked,
			},
		}
	}
	doc := onePageDoc()
	doc.Pages[0].Annotations = []semantic.Annotation{
		mk("Yes", true, semantic.Rectangle{LLX: 10, LLY: 10, URX: 30, URY: 30}),
		mk("No", false, semantic.Rectangle{LLX: 40, LLY: 10, URX: 60, URY: 30}),
	}
	out := build(t, doc, Config{Deterministic: true})

	parent := regexp.MustCompile(`(\d+) 0 obj\n<</FT /Btn/Ff \d+/Kids \[(\d+) 0 R (\d+) 0 R\]`).FindSubmatch(out)
	if parent == nil {
		t.Fatalf("no radio group parent found")
	}
	pNum, _ := strconv.Atoi(string(parent[1]))
	k1, _ := strconv.Atoi(string(parent[2]))
	k2, _ := strconv.Atoi(string(parent[3]))
	if pNum >= k1 || pNum >= k2 {
		t.Errorf("parent %d not numbered before kids %d, %d", pNum, k1, k2)
	}
	if !bytes.Contains(out, []byte("/V /Yes")) {
		t.Error("group value not taken from the checked widget")
	}
	if n := bytes.Count(out, []byte(fmt.Sprintf("/Parent %d 0 R", pNum))); n != 2 {
		t.Errorf("widgets pointing at parent = %d, want 2", n)
	}
	if n := bytes.Count(out, []byte("/T (choice)")); n != 1 {
		t.Errorf("field name appears %d times, want once on the parent", n)
	}
}

func TestSignedDocument(t *testing.T) {
	payload := []byte{0x30, 0x82, 0x01, 0x00, 0xAA, 0xBB}
	doc := onePageDoc()
	out := build(t, doc, Config{
		Deterministic: true,
		Sign: &SignConfig{
			Signer:   &security.MockSigner{Payload: payload, Length: 64},
			CertType: 1,
			Name:     "Example Signer",
			Reason:   "Approval",
		},
	})

	if !bytes.Contains(out, []byte("/SigFlags 3")) {
		t.Error("missing /SigFlags")
	}
	if !bytes.Contains(out, []byte("/TransformMethod /DocMDP")) {
		t.Error("missing DocMDP reference")
	}
	if !bytes.Contains(out, []byte("/P 1/")) {
		t.Error("missing certification permission level")
	}

	m := regexp.MustCompile(`/ByteRange \[0 (\d+) (\d+) (\d+)`).FindSubmatch(out)
	if m == nil {
		t.Fatal("byte range was not rewritten")
	}
	br1, _ := strconv.Atoi(string(m[1]))
	br2, _ := strconv.Atoi(string(m[2]))
	br3, _ := strconv.Atoi(string(m[3]))
	if br2+br3 != len(out) {
		t.Errorf("byte range does not cover the file: %d+%d != %d", br2, br3, len(out))
	}
	if out[br1] != '<' || out[br2-1] != '>' {
		t.Errorf("byte range hole not delimited by <>: %q %q", out[br1], out[br2-1])
	}

	wantHex := fmt.Sprintf("%x", payload)
	hole := string(out[br1+1 : br2-1])
	if hole[:len(wantHex)] != wantHex {
		t.Errorf("spliced signature = %s..., want prefix %s", hole[:len(wantHex)], wantHex)
	}
	for _, c := range hole[len(wantHex):] {
		if c != '0' {
			t.Errorf("placeholder tail contains %q", c)
			break
		}
	}
}

func TestSignatureOverflowFails(t *testing.T) {
	doc := onePageDoc()
	var buf bytes.Buffer
	w := (&WriterBuilder{}).Build()
	err := w.Write(context.Background(), doc, &buf, Config{
		Deterministic: true,
		Sign: &SignConfig{
			Signer: &security.MockSigner{Payload: bytes.Repeat([]byte{1}, 128), Length: 16},
		},
	})
	if err == nil {
		t.Fatal("oversized signature did not fail the build")
	}
}

func TestReservedButUnwrittenBecomesFree(t *testing.T) {
	doc := onePageDoc()
	doc.EmbeddedFiles = []*semantic.EmbeddedFile{
		{Name: "ghost.bin", Path: "/nonexistent/path/ghost.bin"},
	}
	out := build(t, doc, Config{Deterministic: true})

	start := bytes.LastIndex(out, []byte("\nxref\n")) + 1
	if start <= 0 {
		t.Fatal("no xref section")
	}
	entries, err := xref.Decode(out[start:])
	if err != nil {
		t.Fatalf("decode xref: %v", err)
	}
	free := 0
	for num, e := range entries {
		if num != 0 && !e.InUse {
			free++
		}
	}
	if free != 2 {
		t.Errorf("free entries = %d, want 2 for the skipped attachment", free)
	}
	if !bytes.HasSuffix(out, []byte("%%EOF\n")) {
		t.Error("file truncated")
	}
}

func TestEncryptedDocument(t *testing.T) {
	doc := onePageDoc()
	out := build(t, doc, Config{
		Deterministic: true,
		Encrypt:       &security.EncryptConfig{UserPassword: "user", OwnerPassword: "owner"},
	})
	if !bytes.Contains(out, []byte("/Encrypt")) {
		t.Error("trailer has no /Encrypt")
	}
	if !bytes.Contains(out, []byte("/Filter /Standard")) {
		t.Error("missing standard security handler")
	}
	if bytes.Contains(out, []byte("Hello) Tj")) {
		t.Error("content stream left in the clear")
	}
}

func TestEncryptedDocumentCiphersEmitterStreams(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0xDE, G: 0xAD, B: 0xBE, A: 255})
		}
	}
	var buf bytes.Buffer
	w := (&WriterBuilder{}).
		WithEmitter(resources.NewImageEmitter().Add("Im1", img)).
		Build()
	err := w.Write(context.Background(), onePageDoc(), &buf, Config{
		Deterministic: true,
		Encrypt:       &security.EncryptConfig{UserPassword: "user", OwnerPassword: "owner"},
	})
	if err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	out := buf.Bytes()
	pixels := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE}, 16)
	if bytes.Contains(out, pixels) {
		t.Error("image samples written in the clear under encryption")
	}
	if !bytes.Contains(out, []byte("/Subtype /Image")) {
		t.Error("image XObject missing")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		doc  *semantic.Document
		cfg  Config
	}{
		{"bad version", onePageDoc(), Config{Version: "2.x"}},
		{"signer missing", onePageDoc(), Config{Sign: &SignConfig{}}},
		{"bad cert type", onePageDoc(), Config{Sign: &SignConfig{Signer: &security.MockSigner{}, CertType: 9}}},
		{"bad tsa url", onePageDoc(), Config{Sign: &SignConfig{
			Signer: &security.PKCS7Signer{TSA: security.TSA{URL: "::not-a-url"}},
		}}},
		{"encrypted archive", onePageDoc(), Config{
			Archive: pdfa.PDFA1B,
			Encrypt: &security.EncryptConfig{UserPassword: "x"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := (&WriterBuilder{}).Build()
			err := w.Write(context.Background(), tc.doc, &buf, tc.cfg)
			if err == nil {
				t.Fatal("invalid configuration accepted")
			}
			var be *BuildError
			if !asBuildError(err, &be) || be.Stage != "config" {
				t.Errorf("error = %v, want config stage failure", err)
			}
		})
	}
}

func TestStrictJavaScript(t *testing.T) {
	doc := onePageDoc()
	doc.JavaScript = []semantic.JavaScriptEntry{{Name: "broken", Script: "function ("}}
	var buf bytes.Buffer
	w := (&WriterBuilder{}).Build()
	if err := w.Write(context.Background(), doc, &buf, Config{StrictJavaScript: true}); err == nil {
		t.Fatal("strict mode accepted a script that does not compile")
	}
	buf.Reset()
	if err := w.Write(context.Background(), doc, &buf, Config{}); err != nil {
		t.Fatalf("lenient mode failed: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("/S /JavaScript")) {
		t.Error("lenient mode embedded a script that does not compile")
	}
}

func TestCatalogBytesIdempotent(t *testing.T) {
	doc := onePageDoc()
	doc.PageMode = "UseOutlines"
	doc.Lang = "en-US"
	a := newAssembler(doc, Config{Deterministic: true, RTL: true},
		observability.NopLogger{}, observability.NopTracer(), nil, nil)
	a.ids.set(roleCatalog, a.alloc.Next())
	a.ids.set(rolePageTree, a.alloc.Next())
	a.ids.set(roleMetadata, a.alloc.Next())
	a.ids.set(roleOutlines, a.alloc.Next())

	if err := a.writeCatalog(); err != nil {
		t.Fatal(err)
	}
	first := append([]byte(nil), a.buf.Bytes()...)
	a.buf.Reset()
	if err := a.writeCatalog(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, a.buf.Bytes()) {
		t.Error("catalog bytes differ between renders of one ID table")
	}
	if !bytes.Contains(first, []byte("/Type /Catalog")) {
		t.Error("catalog dict missing")
	}
}

type recordingTracer struct{ names []string }

func (r *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	r.names = append(r.names, name)
	return ctx, recordingSpan{}
}

type recordingSpan struct{}

func (recordingSpan) SetTag(string, interface{}) {}
func (recordingSpan) SetError(error)             {}
func (recordingSpan) Finish()                    {}

func TestTracerSeesPipelineSpans(t *testing.T) {
	tr := &recordingTracer{}
	var buf bytes.Buffer
	w := (&WriterBuilder{}).WithTracer(tr).Build()
	cfg := Config{
		Deterministic: true,
		Sign:          &SignConfig{Signer: &security.MockSigner{Payload: []byte{1, 2, 3}, Length: 64}},
	}
	if err := w.Write(context.Background(), onePageDoc(), &buf, cfg); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	seen := map[string]bool{}
	for _, n := range tr.names {
		seen[n] = true
	}
	for _, want := range []string{"pdf.assemble", "pdf.sign"} {
		if !seen[want] {
			t.Errorf("span %s never started", want)
		}
	}
}

func asBuildError(err error, target **BuildError) bool {
	be, ok := err.(*BuildError)
	if ok {
		*target = be
	}
	return ok
}
