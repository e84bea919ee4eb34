// Package render delivers a finished PDF to its destination: the
// filesystem, an HTTP response shown inline or as a download, or a MIME
// part for mailing.
package render

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ToFile writes the document to path, creating parent directories as
// needed.
func ToFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// sanitizeFilename strips header-breaking characters and path
// separators; an empty result falls back to a generic name.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '"', '\\', '/', ';':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "document.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// disposition renders a Content-Disposition value with both the plain
// and the RFC 5987 encoded filename, so non-ASCII names survive every
// client.
func disposition(kind, name string) string {
	ascii := make([]rune, 0, len(name))
	for _, r := range name {
		if r < 0x80 {
			ascii = append(ascii, r)
		} else {
			ascii = append(ascii, '_')
		}
	}
	v := fmt.Sprintf("%s; filename=%q", kind, string(ascii))
	if string(ascii) != name {
		v += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return v
}

func writeHTTP(w http.ResponseWriter, kind, filename string, data []byte) error {
	name := sanitizeFilename(filename)
	h := w.Header()
	if h.Get("Content-Type") != "" {
		// Headers already prepared by the caller; refusing beats
		// sending a second, conflicting set.
		return fmt.Errorf("render: response headers already set")
	}
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Disposition", disposition(kind, name))
	h.Set("Cache-Control", "private, max-age=0")
	_, err := w.Write(data)
	return err
}

// HTTPInline serves the document for in-browser display.
func HTTPInline(w http.ResponseWriter, filename string, data []byte) error {
	return writeHTTP(w, "inline", filename, data)
}

// HTTPDownload serves the document as a forced download.
func HTTPDownload(w http.ResponseWriter, filename string, data []byte) error {
	return writeHTTP(w, "attachment", filename, data)
}

// EmailAttachment writes the document as a MIME part: headers, a blank
// line, then the payload base64-encoded in 76-column lines.
func EmailAttachment(w io.Writer, filename string, data []byte) error {
	name := sanitizeFilename(filename)
	encodedName := mime.QEncoding.Encode("utf-8", name)
	fmt.Fprintf(w, "Content-Type: application/pdf; name=%q\r\n", encodedName)
	fmt.Fprintf(w, "Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(w, "Content-Disposition: %s\r\n\r\n", disposition("attachment", name))

	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 0 {
		n := 76
		if n > len(enc) {
			n = len(enc)
		}
		if _, err := io.WriteString(w, enc[:n]+"\r\n"); err != nil {
			return err
		}
		enc = enc[n:]
	}
	return nil
}
