// Package writer turns a semantic document into a complete PDF file:
// it allocates object numbers, runs the structural builders in the
// order the format requires, indexes byte offsets, renders the
// cross-reference table and trailer, and splices in a detached digital
// signature when one is configured.
package writer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/draftmark/pdfgen/ir/semantic"
	"github.com/draftmark/pdfgen/observability"
	"github.com/draftmark/pdfgen/pdfa"
	"github.com/draftmark/pdfgen/resources"
	"github.com/draftmark/pdfgen/scripting"
	"github.com/draftmark/pdfgen/security"
)

// Version is the PDF version written into the file header.
type Version string

const (
	PDF14 Version = "1.4"
	PDF15 Version = "1.5"
	PDF16 Version = "1.6"
	PDF17 Version = "1.7"
)

var versionPattern = regexp.MustCompile(`^1\.[0-7]$`)

// OpenActionMode selects the view applied when the document opens.
type OpenActionMode int

const (
	OpenFitPage OpenActionMode = iota
	OpenFitWidth
	OpenRealSize
	OpenZoom
)

// OpenAction is the catalog /OpenAction destination.
type OpenAction struct {
	Mode OpenActionMode
	Zoom float64 // percent, used by OpenZoom
	Page int
}

// SignConfig enables digital signing. CertType maps to the /DocMDP
// access-permission level: 1 no changes, 2 form filling, 3 form filling
// plus annotations; zero produces an approval signature without a
// /Reference entry.
type SignConfig struct {
	Signer      security.Signer
	CertType    int
	Name        string
	Reason      string
	Location    string
	ContactInfo string
	FieldName   string
	Page        int
	Rect        semantic.Rectangle

	// MaxLength overrides the reserved signature size in bytes; zero
	// asks the Signer for an estimate.
	MaxLength int
}

// Config is the immutable per-build configuration surface.
type Config struct {
	Version          Version
	Archive          pdfa.Level
	Compress         bool
	Encrypt          *security.EncryptConfig
	Sign             *SignConfig
	RTL              bool
	ViewerPrefs      *semantic.ViewerPreferences
	OpenAction       *OpenAction
	PDFXCondition    string // output condition identifier; wins over sRGB
	SRGBOutputIntent bool
	StrictJavaScript bool
	Deterministic    bool
	Producer         string
}

// BuildError is the single fatal error kind a build raises. Stage names
// the pipeline stage that failed.
type BuildError struct {
	Stage string
	Err   error
}

func (e *BuildError) Error() string { return fmt.Sprintf("pdf build: %s: %v", e.Stage, e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

func buildErr(stage string, err error) *BuildError { return &BuildError{Stage: stage, Err: err} }

// Writer serializes documents.
type Writer interface {
	Write(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config) error
}

// WriterBuilder wires optional collaborators into a Writer.
type WriterBuilder struct {
	logger   observability.Logger
	tracer   observability.Tracer
	engine   scripting.Engine
	emitters []resources.Emitter
}

func (b *WriterBuilder) WithLogger(l observability.Logger) *WriterBuilder {
	b.logger = l
	return b
}

func (b *WriterBuilder) WithTracer(t observability.Tracer) *WriterBuilder {
	b.tracer = t
	return b
}

func (b *WriterBuilder) WithScriptEngine(e scripting.Engine) *WriterBuilder {
	b.engine = e
	return b
}

func (b *WriterBuilder) WithEmitter(e resources.Emitter) *WriterBuilder {
	b.emitters = append(b.emitters, e)
	return b
}

func (b *WriterBuilder) Build() Writer {
	w := &impl{logger: b.logger, tracer: b.tracer, engine: b.engine, emitters: b.emitters}
	if w.logger == nil {
		w.logger = observability.NopLogger{}
	}
	if w.tracer == nil {
		w.tracer = observability.NopTracer()
	}
	if w.engine == nil {
		w.engine = scripting.NewEngine()
	}
	if len(w.emitters) == 0 {
		w.emitters = []resources.Emitter{resources.NewCoreFontEmitter()}
	}
	return w
}

type impl struct {
	logger   observability.Logger
	tracer   observability.Tracer
	engine   scripting.Engine
	emitters []resources.Emitter
}

func (w *impl) Write(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config) error {
	if err := validateConfig(doc, cfg, w.engine); err != nil {
		return err
	}
	ctx, span := w.tracer.StartSpan(ctx, "pdf.assemble")
	defer span.Finish()
	span.SetTag("pages", len(doc.Pages))
	a := newAssembler(doc, cfg, w.logger, w.tracer, w.engine, w.emitters)
	data, err := a.run(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}
	w.logger.Info("document serialized",
		observability.Int(observability.MetricPageCount, len(doc.Pages)),
		observability.Int(observability.MetricObjectCount, a.alloc.Max()),
		observability.Int(observability.MetricOutputBytes, len(data)))
	if _, err := out.Write(data); err != nil {
		return buildErr("output", err)
	}
	return nil
}

// validateConfig raises configuration errors before any serialization
// work starts.
func validateConfig(doc *semantic.Document, cfg Config, engine scripting.Engine) error {
	if cfg.Version != "" && !versionPattern.MatchString(string(cfg.Version)) {
		return buildErr("config", fmt.Errorf("invalid PDF version %q", cfg.Version))
	}
	if cfg.Sign != nil {
		if cfg.Sign.Signer == nil {
			return buildErr("config", fmt.Errorf("signing enabled without a signer"))
		}
		if cfg.Sign.CertType < 0 || cfg.Sign.CertType > 3 {
			return buildErr("config", fmt.Errorf("invalid signature permission level %d", cfg.Sign.CertType))
		}
		if ps, ok := cfg.Sign.Signer.(*security.PKCS7Signer); ok && ps.TSA.URL != "" {
			u, err := url.Parse(ps.TSA.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return buildErr("config", fmt.Errorf("invalid timestamp authority URL %q", ps.TSA.URL))
			}
		}
	}
	if cfg.Encrypt != nil && !cfg.Archive.AllowsEncryption() {
		return buildErr("config", fmt.Errorf("encryption is not allowed under %s", cfg.Archive))
	}
	if cfg.StrictJavaScript {
		for _, js := range doc.JavaScript {
			if err := engine.Validate(js.Name, js.Script); err != nil {
				return buildErr("config", err)
			}
		}
	}
	for _, ef := range doc.EmbeddedFiles {
		if strings.ContainsAny(ef.Name, "\\/:*?\"<>|") {
			return buildErr("config", fmt.Errorf("embedded file name %q contains disallowed characters", ef.Name))
		}
	}
	return nil
}

// effectiveVersion applies the archival profile's version pin.
func effectiveVersion(cfg Config) string {
	if v := cfg.Archive.ForcedVersion(); v != "" {
		return v
	}
	if cfg.Version == "" {
		return string(PDF17)
	}
	return string(cfg.Version)
}
