package render

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var sample = []byte("%PDF-1.7\nfake body\n%%EOF\n")

func TestToFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "doc.pdf")
	if err := ToFile(path, sample); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, sample) {
		t.Error("written bytes differ")
	}
}

func TestHTTPInline(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := HTTPInline(rec, "report.pdf", sample); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "25" {
		t.Errorf("Content-Length = %q", cl)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="report.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.Equal(rec.Body.Bytes(), sample) {
		t.Error("body differs")
	}
}

func TestHTTPDownloadSanitizesFilename(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := HTTPDownload(rec, "evil\r\nSet-Cookie: x=1", sample); err != nil {
		t.Fatal(err)
	}
	cd := rec.Header().Get("Content-Disposition")
	if strings.Contains(cd, "\r") || strings.Contains(cd, "\n") {
		t.Errorf("header injection survived: %q", cd)
	}
	if !strings.HasPrefix(cd, "attachment; ") {
		t.Errorf("disposition = %q", cd)
	}
	if !strings.Contains(cd, ".pdf") {
		t.Errorf("missing pdf suffix: %q", cd)
	}
}

func TestHTTPRefusesSecondHeaderSet(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "text/html")
	if err := HTTPInline(rec, "x.pdf", sample); err == nil {
		t.Error("conflicting headers accepted")
	}
}

func TestNonASCIIFilename(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := HTTPDownload(rec, "bericht-über.pdf", sample); err != nil {
		t.Fatal(err)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "filename*=UTF-8''") {
		t.Errorf("no encoded filename: %q", cd)
	}
}

func TestEmailAttachment(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte("0123456789"), 20)
	if err := EmailAttachment(&buf, "data.pdf", payload); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	head, body, ok := strings.Cut(out, "\r\n\r\n")
	if !ok {
		t.Fatal("no blank line between headers and body")
	}
	if !strings.Contains(head, "Content-Transfer-Encoding: base64") {
		t.Error("missing transfer encoding header")
	}
	if !strings.Contains(head, "Content-Type: application/pdf") {
		t.Error("missing content type header")
	}
	for _, line := range strings.Split(strings.TrimRight(body, "\r\n"), "\r\n") {
		if len(line) > 76 {
			t.Errorf("base64 line of %d chars", len(line))
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"":                "document.pdf",
		"   ":             "document.pdf",
		"plain":           "plain.pdf",
		"a/b\\c.pdf":      "abc.pdf",
		"Report 2026.PDF": "Report 2026.PDF",
		"quote\"me.pdf":   "quoteme.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
