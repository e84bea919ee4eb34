// Command pdfgen assembles a PDF from a JSON manifest describing pages,
// metadata and document options.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/draftmark/pdfgen/contentstream"
	"github.com/draftmark/pdfgen/ir/raw"
	"github.com/draftmark/pdfgen/ir/semantic"
	"github.com/draftmark/pdfgen/observability"
	"github.com/draftmark/pdfgen/pdfa"
	"github.com/draftmark/pdfgen/render"
	"github.com/draftmark/pdfgen/security"
	"github.com/draftmark/pdfgen/writer"
)

type manifest struct {
	Title    string       `json:"title"`
	Author   string       `json:"author"`
	Language string       `json:"language"`
	Pages    []page       `json:"pages"`
	Scripts  []script     `json:"scripts"`
	Attach   []attachment `json:"attachments"`
}

type page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Texts  []text  `json:"texts"`
}

type text struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Value string  `json:"value"`
}

type script struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type attachment struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type options struct {
	manifestPath string
	outPath      string
	archive      string
	userPassword string
	compress     bool
	verbose      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.manifestPath, "manifest", "", "path to the JSON manifest")
	flag.StringVar(&opts.outPath, "o", "out.pdf", "output file")
	flag.StringVar(&opts.archive, "archive", "", "archival profile: pdfa-1b, pdfa-2b or pdfa-3b")
	flag.StringVar(&opts.userPassword, "password", "", "encrypt with this user password")
	flag.BoolVar(&opts.compress, "compress", true, "flate-compress streams")
	flag.BoolVar(&opts.verbose, "v", false, "log progress")
	flag.Parse()

	if opts.manifestPath == "" {
		fmt.Fprintln(os.Stderr, "pdfgen: -manifest is required")
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfgen: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	data, err := os.ReadFile(opts.manifestPath)
	if err != nil {
		return err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

	doc := buildDocument(&m)
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	b := &writer.WriterBuilder{}
	if opts.verbose {
		b.WithLogger(observability.NewStdLogger(log.New(os.Stderr, "", log.LstdFlags)))
	}

	var buf bytes.Buffer
	if err := b.Build().Write(context.Background(), doc, &buf, cfg); err != nil {
		return err
	}
	return render.ToFile(opts.outPath, buf.Bytes())
}

func buildDocument(m *manifest) *semantic.Document {
	doc := &semantic.Document{
		Info: &semantic.DocumentInfo{Title: m.Title, Author: m.Author},
		Lang: m.Language,
	}
	for _, p := range m.Pages {
		w, h := p.Width, p.Height
		if w == 0 || h == 0 {
			w, h = 595.28, 841.89 // A4
		}
		cs := contentstream.NewBuilder()
		for _, t := range p.Texts {
			size := t.Size
			if size == 0 {
				size = 12
			}
			cs.Text("F1", size, t.X, t.Y, t.Value)
		}
		doc.Pages = append(doc.Pages, &semantic.Page{
			MediaBox: semantic.Rectangle{URX: w, URY: h},
			Contents: cs.Bytes(),
		})
	}
	for _, s := range m.Scripts {
		doc.JavaScript = append(doc.JavaScript, semantic.JavaScriptEntry{Name: s.Name, Script: s.Source})
	}
	for _, a := range m.Attach {
		doc.EmbeddedFiles = append(doc.EmbeddedFiles, &semantic.EmbeddedFile{Name: a.Name, Path: a.Path})
	}
	return doc
}

func buildConfig(opts options) (writer.Config, error) {
	cfg := writer.Config{Compress: opts.compress}
	switch opts.archive {
	case "":
	case "pdfa-1b":
		cfg.Archive = pdfa.PDFA1B
	case "pdfa-2b":
		cfg.Archive = pdfa.PDFA2B
	case "pdfa-3b":
		cfg.Archive = pdfa.PDFA3B
	default:
		return cfg, fmt.Errorf("unknown archival profile %q", opts.archive)
	}
	if opts.userPassword != "" {
		cfg.Encrypt = &security.EncryptConfig{
			UserPassword: opts.userPassword,
			Permissions:  allowAll(),
		}
	}
	return cfg, nil
}

func allowAll() raw.Permissions {
	return raw.Permissions{
		Print: true, Copy: true, ModifyAnnotations: true,
		FillForms: true, ExtractAccessible: true, PrintHighQuality: true,
	}
}
