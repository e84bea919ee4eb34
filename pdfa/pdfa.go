// Package pdfa models the archival (PDF/A) profile levels and the
// feature gates they impose on serialization.
package pdfa

// Level is the archival profile level. Zero means no profile; levels
// one to three correspond to PDF/A-1b, PDF/A-2b and PDF/A-3b.
type Level int

const (
	None Level = iota
	PDFA1B
	PDFA2B
	PDFA3B
)

func (l Level) String() string {
	switch l {
	case PDFA1B:
		return "PDF/A-1b"
	case PDFA2B:
		return "PDF/A-2b"
	case PDFA3B:
		return "PDF/A-3b"
	default:
		return "none"
	}
}

// Active reports whether an archival profile is in force.
func (l Level) Active() bool { return l != None }

// AllowsJavaScript reports whether document-level JavaScript may be
// embedded. No archival level permits it.
func (l Level) AllowsJavaScript() bool { return l == None }

// AllowsEmbeddedFiles reports whether file attachments may be embedded.
// Only PDF/A-3 allows arbitrary attachments.
func (l Level) AllowsEmbeddedFiles() bool { return l == None || l == PDFA3B }

// AllowsEncryption reports whether the document may be encrypted.
func (l Level) AllowsEncryption() bool { return l == None }

// ForcedVersion returns the PDF version the profile pins the document
// to, or "" when the configured version stands.
func (l Level) ForcedVersion() string {
	if l.Active() {
		return "1.4"
	}
	return ""
}

// RequiresOutputIntent reports whether the catalog must carry a
// colorimetric output intent.
func (l Level) RequiresOutputIntent() bool { return l.Active() }

// Part returns the pdfaid:part value for the XMP identification schema.
func (l Level) Part() int { return int(l) }

// Conformance returns the pdfaid:conformance value.
func (l Level) Conformance() string {
	if l.Active() {
		return "B"
	}
	return ""
}
