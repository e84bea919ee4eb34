package writer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/draftmark/pdfgen/ir/raw"
	"github.com/draftmark/pdfgen/ir/semantic"
	"github.com/draftmark/pdfgen/observability"
	"github.com/draftmark/pdfgen/resources"
	"github.com/draftmark/pdfgen/scripting"
	"github.com/draftmark/pdfgen/security"
	"github.com/draftmark/pdfgen/xref"
)

// stageOrder is the fixed serialization pipeline. Every stage runs
// exactly once, in this order; run() refuses to finish otherwise.
var stageOrder = []string{
	"header",
	"reserve",
	"content",
	"pages",
	"layers",
	"resources",
	"destinations",
	"embedded-files",
	"annotations",
	"javascript",
	"names",
	"outlines",
	"encrypt-dict",
	"acroform",
	"signature-shell",
	"info",
	"metadata",
	"output-intent",
	"catalog",
	"xref",
	"sign",
}

// radioGroup collects the widgets that share one radio field name. The
// parent field object is materialized before any child widget, so the
// parent's number is always lower than its kids'.
type radioGroup struct {
	num   int
	field *semantic.ButtonFormField
	kids  []int
	value string
}

type assembler struct {
	doc      *semantic.Document
	cfg      Config
	log      observability.Logger
	tracer   observability.Tracer
	engine   scripting.Engine
	emitters []resources.Emitter

	alloc *Allocator
	ids   IDTable
	buf   bytes.Buffer

	enc    *security.Handler
	encObj *raw.DictObj
	id     []byte

	pageNums    []int
	contentNums []int
	annotNums   map[semantic.Annotation]int
	pageAnnots  [][]int
	resEntries  map[resources.Category]map[string]int
	fontNums    map[string]int
	groups      map[string]*radioGroup
	groupOrder  []string
	fieldNums   []int
	layerNums   []int

	ran map[string]bool
}

func newAssembler(doc *semantic.Document, cfg Config, log observability.Logger, tracer observability.Tracer, engine scripting.Engine, emitters []resources.Emitter) *assembler {
	return &assembler{
		doc:       doc,
		cfg:       cfg,
		log:       log,
		tracer:    tracer,
		engine:    engine,
		emitters:  emitters,
		alloc:     newAllocator(),
		ids:       make(IDTable),
		annotNums: make(map[semantic.Annotation]int),
		groups:    make(map[string]*radioGroup),
		ran:       make(map[string]bool),
	}
}

// stage runs one named pipeline stage, once.
func (a *assembler) stage(name string, fn func() error) error {
	if a.ran[name] {
		return buildErr(name, fmt.Errorf("stage ran twice"))
	}
	a.ran[name] = true
	if err := fn(); err != nil {
		if be, ok := err.(*BuildError); ok {
			return be
		}
		return buildErr(name, err)
	}
	return nil
}

func (a *assembler) run(ctx context.Context) ([]byte, error) {
	start := time.Now()
	steps := []struct {
		name string
		fn   func() error
	}{
		{"header", a.writeHeader},
		{"reserve", a.reserveNumbers},
		{"content", a.writeContentStreams},
		{"pages", a.writePages},
		{"layers", a.writeLayers},
		{"resources", a.writeResources},
		{"destinations", a.writeDestinations},
		{"embedded-files", a.writeEmbeddedFiles},
		{"annotations", a.writeAnnotations},
		{"javascript", a.writeJavaScript},
		{"names", a.writeNames},
		{"outlines", a.writeOutlines},
		{"encrypt-dict", a.writeEncryptDict},
		{"acroform", a.writeAcroForm},
		{"signature-shell", a.writeSignatureShell},
		{"info", a.writeInfo},
		{"metadata", a.writeMetadata},
		{"output-intent", a.writeOutputIntent},
		{"catalog", a.writeCatalog},
		{"xref", a.writeXref},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, buildErr(s.name, err)
		}
		if err := a.stage(s.name, s.fn); err != nil {
			return nil, err
		}
	}

	data := a.buf.Bytes()
	if a.cfg.Sign != nil {
		signCtx, span := a.tracer.StartSpan(ctx, "pdf.sign")
		err := a.stage("sign", func() error {
			signed, serr := a.spliceSignature(signCtx, data)
			if serr != nil {
				return serr
			}
			data = signed
			return nil
		})
		if err != nil {
			span.SetError(err)
			span.Finish()
			return nil, err
		}
		span.Finish()
	} else {
		a.ran["sign"] = true
	}

	for _, name := range stageOrder {
		if !a.ran[name] {
			return nil, buildErr(name, fmt.Errorf("stage never ran"))
		}
	}
	a.log.Debug("assembly finished",
		observability.Int64(observability.MetricAssembleTime, time.Since(start).Milliseconds()))
	return data, nil
}

// emit renders one indirect object into the body buffer, applying the
// standard security handler to strings and stream data when encryption
// is on.
func (a *assembler) emit(num int, obj raw.Object) error {
	if a.enc != nil {
		enc, err := encryptObject(a.enc, num, 0, obj)
		if err != nil {
			return err
		}
		obj = enc
	}
	a.buf.Write(raw.RenderIndirect(num, 0, obj))
	return nil
}

// emitPlain skips encryption: the encryption dictionary itself and the
// signature value are always written in the clear.
func (a *assembler) emitPlain(num int, obj raw.Object) error {
	a.buf.Write(raw.RenderIndirect(num, 0, obj))
	return nil
}

// encryptObject returns a deep copy of obj with every string and stream
// payload RC4-encrypted under the object's key.
func encryptObject(h *security.Handler, num, gen int, obj raw.Object) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.StringObj:
		enc, err := h.Encrypt(num, gen, v.Bytes)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: enc, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, it := range v.Items {
			e, err := encryptObject(h, num, gen, it)
			if err != nil {
				return nil, err
			}
			out.Append(e)
		}
		return out, nil
	case *raw.DictObj:
		out := raw.Dict()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			e, err := encryptObject(h, num, gen, val)
			if err != nil {
				return nil, err
			}
			out.Set(k, e)
		}
		return out, nil
	case *raw.StreamObj:
		d, err := encryptObject(h, num, gen, v.Dict)
		if err != nil {
			return nil, err
		}
		data, err := h.Encrypt(num, gen, v.Data)
		if err != nil {
			return nil, err
		}
		dict := d.(*raw.DictObj)
		dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
		return raw.NewStream(dict, data), nil
	default:
		return obj, nil
	}
}

func (a *assembler) writeHeader() error {
	fmt.Fprintf(&a.buf, "%%PDF-%s\n", effectiveVersion(a.cfg))
	// Binary marker so transfer tools treat the file as binary.
	a.buf.WriteString("%\xe2\xe3\xcf\xd3\n")
	return nil
}

// reserveNumbers assigns every structural object number before any body
// is written, so later stages can reference objects that serialize
// after them. A reserved number that never receives a body becomes a
// free cross-reference entry.
func (a *assembler) reserveNumbers() error {
	a.ids.set(roleCatalog, a.alloc.Next())
	a.ids.set(rolePageTree, a.alloc.Next())
	a.ids.set(roleResources, a.alloc.Next())

	a.pageNums = make([]int, len(a.doc.Pages))
	a.contentNums = make([]int, len(a.doc.Pages))
	a.pageAnnots = make([][]int, len(a.doc.Pages))
	for i, p := range a.doc.Pages {
		a.pageNums[i] = a.alloc.Next()
		a.contentNums[i] = a.alloc.Next()
		for _, an := range p.Annotations {
			if w, ok := an.(*semantic.WidgetAnnotation); ok {
				if bf, isRadio := w.Field.(*semantic.ButtonFormField); isRadio && bf.IsRadio {
					g := a.groups[bf.Name]
					if g == nil {
						g = &radioGroup{num: a.alloc.Next(), field: bf}
						a.groups[bf.Name] = g
						a.groupOrder = append(a.groupOrder, bf.Name)
						a.fieldNums = append(a.fieldNums, g.num)
					}
					num := a.alloc.Next()
					g.kids = append(g.kids, num)
					if bf.Checked && bf.OnState != "" {
						g.value = bf.OnState
					}
					a.annotNums[an] = num
					a.pageAnnots[i] = append(a.pageAnnots[i], num)
					continue
				}
			}
			num := a.alloc.Next()
			a.annotNums[an] = num
			a.pageAnnots[i] = append(a.pageAnnots[i], num)
			if w, ok := an.(*semantic.WidgetAnnotation); ok && w.Field != nil {
				a.fieldNums = append(a.fieldNums, num)
			}
		}
	}

	if a.cfg.Sign != nil {
		a.ids.set(roleSigField, a.alloc.Next())
		a.ids.set(roleSigValue, a.alloc.Next())
		pg := a.cfg.Sign.Page
		if pg < 0 || pg >= len(a.doc.Pages) {
			pg = 0
		}
		if len(a.doc.Pages) > 0 {
			a.pageAnnots[pg] = append(a.pageAnnots[pg], a.ids.get(roleSigField))
		}
		a.fieldNums = append(a.fieldNums, a.ids.get(roleSigField))
	}

	a.ids.set(roleInfo, a.alloc.Next())

	if a.cfg.Encrypt != nil {
		a.ids.set(roleEncryptDict, a.alloc.Next())
	}

	id, err := fileID(a.cfg.Deterministic, a.fileIDSeed())
	if err != nil {
		return err
	}
	a.id = id

	if a.cfg.Encrypt != nil {
		dict, handler, err := security.BuildStandardEncryption(*a.cfg.Encrypt, a.id)
		if err != nil {
			return err
		}
		a.encObj, a.enc = dict, handler
	}
	return nil
}

func (a *assembler) fileIDSeed() string {
	var b bytes.Buffer
	b.WriteString(effectiveVersion(a.cfg))
	if a.doc.Info != nil {
		fmt.Fprintf(&b, "|%s|%s|%s", a.doc.Info.Title, a.doc.Info.Author, a.doc.Info.CreationDate)
	}
	fmt.Fprintf(&b, "|%d", len(a.doc.Pages))
	return b.String()
}

func (a *assembler) writeContentStreams() error {
	for i, p := range a.doc.Pages {
		s, err := maybeStream(raw.Dict(), p.Contents, a.cfg.Compress)
		if err != nil {
			return err
		}
		if err := a.emit(a.contentNums[i], s); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) writePages() error {
	kids := raw.NewArray()
	for i, p := range a.doc.Pages {
		kids.Append(raw.Ref(a.pageNums[i], 0))

		d := raw.Dict()
		d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
		d.Set(raw.NameLiteral("Parent"), raw.Ref(a.ids.get(rolePageTree), 0))
		mb := p.MediaBox
		if mb.IsZero() {
			mb = semantic.Rectangle{URX: 595.28, URY: 841.89}
		}
		d.Set(raw.NameLiteral("MediaBox"), rectArray([4]float64{mb.LLX, mb.LLY, mb.URX, mb.URY}))
		if !p.CropBox.IsZero() {
			d.Set(raw.NameLiteral("CropBox"), rectArray([4]float64{p.CropBox.LLX, p.CropBox.LLY, p.CropBox.URX, p.CropBox.URY}))
		}
		if p.Rotate != 0 {
			d.Set(raw.NameLiteral("Rotate"), raw.NumberInt(int64(p.Rotate)))
		}
		d.Set(raw.NameLiteral("Contents"), raw.Ref(a.contentNums[i], 0))
		d.Set(raw.NameLiteral("Resources"), raw.Ref(a.ids.get(roleResources), 0))
		if len(a.pageAnnots[i]) > 0 {
			annots := raw.NewArray()
			for _, n := range a.pageAnnots[i] {
				annots.Append(raw.Ref(n, 0))
			}
			d.Set(raw.NameLiteral("Annots"), annots)
		}
		if err := a.emit(a.pageNums[i], d); err != nil {
			return err
		}
	}

	root := raw.Dict()
	root.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	root.Set(raw.NameLiteral("Kids"), kids)
	root.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(len(a.doc.Pages))))
	return a.emit(a.ids.get(rolePageTree), root)
}

// writeResources runs every emitter and assembles the shared resource
// dictionary all pages reference.
func (a *assembler) writeResources() error {
	a.resEntries = make(map[resources.Category]map[string]int)
	a.fontNums = make(map[string]int)
	for _, em := range a.emitters {
		next := a.alloc.Peek()
		block, err := em.Emit(next)
		if err != nil {
			return fmt.Errorf("%s emitter: %w", em.Category(), err)
		}
		if block.Next < next {
			return fmt.Errorf("%s emitter moved the object counter backwards", em.Category())
		}
		a.alloc.Reserve(block.Next - next)
		for _, io := range block.Objects {
			if err := a.emit(io.Num, io.Obj); err != nil {
				return fmt.Errorf("%s emitter object %d: %w", em.Category(), io.Num, err)
			}
		}
		cat := em.Category()
		if a.resEntries[cat] == nil {
			a.resEntries[cat] = make(map[string]int)
		}
		for name, num := range block.Entries {
			a.resEntries[cat][name] = num
			if cat == resources.CategoryFont {
				a.fontNums[name] = num
			}
		}
	}

	d := raw.Dict()
	d.Set(raw.NameLiteral("ProcSet"), nameArray([]string{"PDF", "Text", "ImageB", "ImageC", "ImageI"}))
	for cat, entries := range a.resEntries {
		sub := raw.Dict()
		for name, num := range entries {
			sub.Set(raw.NameLiteral(name), raw.Ref(num, 0))
		}
		d.Set(raw.NameLiteral(string(cat)), sub)
	}
	if len(a.layerNumsPlanned()) > 0 {
		sub := raw.Dict()
		for i, num := range a.layerNumsPlanned() {
			sub.Set(raw.NameLiteral(fmt.Sprintf("OC%d", i)), raw.Ref(num, 0))
		}
		d.Set(raw.NameLiteral("Properties"), sub)
	}
	return a.emit(a.ids.get(roleResources), d)
}

// layerNumsPlanned reserves the optional-content group numbers on first
// call so the resource dictionary can reference groups that serialize
// in a later stage.
func (a *assembler) layerNumsPlanned() []int {
	if a.layerNums == nil && len(a.doc.Layers) > 0 {
		a.layerNums = make([]int, len(a.doc.Layers))
		for i := range a.doc.Layers {
			a.layerNums[i] = a.alloc.Next()
		}
		a.ids.set(roleOCProps, a.alloc.Next())
	}
	return a.layerNums
}

func (a *assembler) writeLayers() error {
	nums := a.layerNumsPlanned()
	if len(nums) == 0 {
		return nil
	}
	ocgs := raw.NewArray()
	on := raw.NewArray()
	off := raw.NewArray()
	locked := raw.NewArray()
	for i, l := range a.doc.Layers {
		d := raw.Dict()
		d.Set(raw.NameLiteral("Type"), raw.NameLiteral("OCG"))
		d.Set(raw.NameLiteral("Name"), pdfString(l.Name))
		usage := raw.Dict()
		printState := "OFF"
		if l.Print {
			printState = "ON"
		}
		pu := raw.Dict()
		pu.Set(raw.NameLiteral("PrintState"), raw.NameLiteral(printState))
		usage.Set(raw.NameLiteral("Print"), pu)
		d.Set(raw.NameLiteral("Usage"), usage)
		if err := a.emit(nums[i], d); err != nil {
			return err
		}
		ref := raw.Ref(nums[i], 0)
		ocgs.Append(ref)
		if l.View {
			on.Append(ref)
		} else {
			off.Append(ref)
		}
		if l.Locked {
			locked.Append(ref)
		}
	}
	def := raw.Dict()
	def.Set(raw.NameLiteral("Order"), ocgs)
	if on.Len() > 0 {
		def.Set(raw.NameLiteral("ON"), on)
	}
	if off.Len() > 0 {
		def.Set(raw.NameLiteral("OFF"), off)
	}
	if locked.Len() > 0 {
		def.Set(raw.NameLiteral("Locked"), locked)
	}
	props := raw.Dict()
	props.Set(raw.NameLiteral("OCGs"), ocgs)
	props.Set(raw.NameLiteral("D"), def)
	return a.emit(a.ids.get(roleOCProps), props)
}

func (a *assembler) writeXref() error {
	table, err := xref.Index(a.buf.Bytes(), a.alloc.Max())
	if err != nil {
		return err
	}
	startXref := a.buf.Len()
	a.buf.Write(table.Encode())

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(a.alloc.Max()+1)))
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(a.ids.get(roleCatalog), 0))
	trailer.Set(raw.NameLiteral("Info"), raw.Ref(a.ids.get(roleInfo), 0))
	if a.ids.has(roleEncryptDict) {
		trailer.Set(raw.NameLiteral("Encrypt"), raw.Ref(a.ids.get(roleEncryptDict), 0))
	}
	trailer.Set(raw.NameLiteral("ID"), raw.NewArray(raw.HexStr(a.id), raw.HexStr(a.id)))

	a.buf.WriteString("trailer\n")
	a.buf.Write(raw.Serialize(trailer))
	fmt.Fprintf(&a.buf, "\nstartxref\n%d\n%%%%EOF\n", startXref)
	return nil
}

func (a *assembler) writeEncryptDict() error {
	if a.encObj == nil {
		return nil
	}
	return a.emitPlain(a.ids.get(roleEncryptDict), a.encObj)
}
