package writer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/draftmark/pdfgen/ir/raw"
	"github.com/draftmark/pdfgen/ir/semantic"
	"github.com/draftmark/pdfgen/observability"
)

// Radio-button field flags.
const (
	fieldFlagNoToggleToOff = 1 << 14
	fieldFlagRadio         = 1 << 15
	fieldFlagPushbutton    = 1 << 16
	fieldFlagCombo         = 1 << 17
	fieldFlagMultiSelect   = 1 << 21
)

// writeAnnotations serializes every annotation. Radio group parents go
// first so a reader resolving /Parent never has to seek forward, then
// the annotations in page order.
func (a *assembler) writeAnnotations() error {
	for _, name := range a.groupOrder {
		g := a.groups[name]
		if err := a.emitRadioParent(g); err != nil {
			return err
		}
	}
	for i, p := range a.doc.Pages {
		for _, an := range p.Annotations {
			d, err := a.annotationDict(i, an)
			if err != nil {
				return err
			}
			if err := a.emit(a.annotNums[an], d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *assembler) emitRadioParent(g *radioGroup) error {
	d := raw.Dict()
	d.Set(raw.NameLiteral("FT"), raw.NameLiteral("Btn"))
	d.Set(raw.NameLiteral("T"), pdfString(g.field.Name))
	flags := g.field.Flags | fieldFlagRadio | fieldFlagNoToggleToOff
	d.Set(raw.NameLiteral("Ff"), raw.NumberInt(int64(flags)))
	kids := raw.NewArray()
	for _, n := range g.kids {
		kids.Append(raw.Ref(n, 0))
	}
	d.Set(raw.NameLiteral("Kids"), kids)
	value := g.value
	if value == "" {
		value = "Off"
	}
	d.Set(raw.NameLiteral("V"), raw.NameLiteral(value))
	if g.field.TooltipText != "" {
		d.Set(raw.NameLiteral("TU"), pdfString(g.field.TooltipText))
	}
	return a.emit(g.num, d)
}

// annotationDict builds the dictionary for one annotation. The switch
// over the concrete types is total; adding a variant to the model
// without a case here fails to serialize loudly.
func (a *assembler) annotationDict(page int, an semantic.Annotation) (*raw.DictObj, error) {
	d, err := a.baseAnnotationDict(page, an)
	if err != nil {
		return nil, err
	}

	switch v := an.(type) {
	case *semantic.TextAnnotation:
		d.Set(raw.NameLiteral("Open"), raw.Bool(v.Open))
		if v.Icon != "" {
			d.Set(raw.NameLiteral("Name"), raw.NameLiteral(v.Icon))
		}
	case *semantic.LinkAnnotation:
		a.applyLinkTarget(d, v)
		d.Set(raw.NameLiteral("H"), raw.NameLiteral(highlightName(v.Highlight)))
	case *semantic.FreeTextAnnotation:
		da := v.DefaultAppearance
		if da == "" {
			da = "/Helv 12 Tf 0 g"
		}
		d.Set(raw.NameLiteral("DA"), raw.Str([]byte(da)))
		if v.Quadding != 0 {
			d.Set(raw.NameLiteral("Q"), raw.NumberInt(int64(v.Quadding)))
		}
	case *semantic.LineAnnotation:
		d.Set(raw.NameLiteral("L"), floatArray(v.Line))
		if len(v.Endings) == 2 {
			d.Set(raw.NameLiteral("LE"), nameArray(v.Endings))
		}
	case *semantic.SquareAnnotation:
		if len(v.Interior) > 0 {
			d.Set(raw.NameLiteral("IC"), floatArray(v.Interior))
		}
	case *semantic.CircleAnnotation:
		if len(v.Interior) > 0 {
			d.Set(raw.NameLiteral("IC"), floatArray(v.Interior))
		}
	case *semantic.PolygonAnnotation:
		d.Set(raw.NameLiteral("Vertices"), floatArray(v.Vertices))
	case *semantic.PolyLineAnnotation:
		d.Set(raw.NameLiteral("Vertices"), floatArray(v.Vertices))
	case *semantic.TextMarkupAnnotation:
		d.Set(raw.NameLiteral("QuadPoints"), floatArray(v.QuadPoints))
	case *semantic.StampAnnotation:
		name := v.StampName
		if name == "" {
			name = "Draft"
		}
		d.Set(raw.NameLiteral("Name"), raw.NameLiteral(name))
	case *semantic.CaretAnnotation:
		if v.Symbol != "" {
			d.Set(raw.NameLiteral("Sy"), raw.NameLiteral(v.Symbol))
		}
	case *semantic.InkAnnotation:
		list := raw.NewArray()
		for _, stroke := range v.InkList {
			list.Append(floatArray(stroke))
		}
		d.Set(raw.NameLiteral("InkList"), list)
	case *semantic.PopupAnnotation:
		d.Set(raw.NameLiteral("Open"), raw.Bool(v.Open))
	case *semantic.FileAttachmentAnnotation:
		if v.Icon != "" {
			d.Set(raw.NameLiteral("Name"), raw.NameLiteral(v.Icon))
		}
		if fs := a.filespecFor(v.FileName); fs != 0 {
			d.Set(raw.NameLiteral("FS"), raw.Ref(fs, 0))
		} else {
			a.log.Warn("attachment annotation references an unknown embedded file",
				observability.String("file", v.FileName))
		}
	case *semantic.SoundAnnotation:
		if v.Icon != "" {
			d.Set(raw.NameLiteral("Name"), raw.NameLiteral(v.Icon))
		}
	case *semantic.MovieAnnotation:
	case *semantic.WidgetAnnotation:
		if err := a.applyWidgetField(d, v); err != nil {
			return nil, err
		}
	case *semantic.ScreenAnnotation:
	case *semantic.PrinterMarkAnnotation:
	case *semantic.RedactAnnotation:
		d.Set(raw.NameLiteral("QuadPoints"), floatArray(v.QuadPoints))
	case *semantic.TrapNetAnnotation:
	case *semantic.WatermarkAnnotation:
	case *semantic.ThreeDAnnotation:
	default:
		return nil, fmt.Errorf("unknown annotation subtype %q", an.Subtype())
	}
	return d, nil
}

func (a *assembler) baseAnnotationDict(page int, an semantic.Annotation) (*raw.DictObj, error) {
	b := an.Base()
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Annot"))
	d.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(an.Subtype()))
	d.Set(raw.NameLiteral("Rect"), rectArray([4]float64{b.Rect.LLX, b.Rect.LLY, b.Rect.URX, b.Rect.URY}))
	d.Set(raw.NameLiteral("P"), raw.Ref(a.pageNums[page], 0))
	contents := b.Contents
	if contents == "" {
		contents = b.AltText
	}
	if contents != "" {
		d.Set(raw.NameLiteral("Contents"), pdfString(contents))
	}
	if b.Name != "" {
		d.Set(raw.NameLiteral("NM"), pdfString(b.Name))
	}
	if b.Flags != 0 {
		d.Set(raw.NameLiteral("F"), raw.NumberInt(int64(b.Flags)))
	}
	if len(b.Border) > 0 {
		d.Set(raw.NameLiteral("Border"), floatArray(b.Border))
	}
	if len(b.Color) > 0 {
		d.Set(raw.NameLiteral("C"), floatArray(b.Color))
	}
	if len(b.Appearance) > 0 {
		num, err := a.emitAppearance(b)
		if err != nil {
			return nil, err
		}
		ap := raw.Dict()
		ap.Set(raw.NameLiteral("N"), raw.Ref(num, 0))
		d.Set(raw.NameLiteral("AP"), ap)
	}
	return d, nil
}

// emitAppearance writes the normal appearance as a form XObject sized
// to the annotation rectangle.
func (a *assembler) emitAppearance(b *semantic.BaseAnnotation) (int, error) {
	num := a.alloc.Next()
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
	d.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Form"))
	w := b.Rect.URX - b.Rect.LLX
	h := b.Rect.URY - b.Rect.LLY
	d.Set(raw.NameLiteral("BBox"), rectArray([4]float64{0, 0, w, h}))
	d.Set(raw.NameLiteral("Resources"), raw.Ref(a.ids.get(roleResources), 0))
	stream, err := maybeStream(d, b.Appearance, a.cfg.Compress)
	if err != nil {
		return 0, fmt.Errorf("appearance stream: %w", err)
	}
	if err := a.emit(num, stream); err != nil {
		return 0, err
	}
	return num, nil
}

func (a *assembler) filespecFor(name string) int {
	for _, ef := range a.doc.EmbeddedFiles {
		if ef.Name == name {
			return ef.FileSpecNum
		}
	}
	return 0
}

func highlightName(h string) string {
	switch strings.ToLower(h) {
	case "none":
		return "N"
	case "outline":
		return "O"
	case "push":
		return "P"
	default:
		return "I"
	}
}

// applyLinkTarget resolves the link target notation into a destination
// or action. The first byte selects the namespace: '#' named
// destination, '@' internal link id, '%' page in an embedded document,
// '*' export action on an embedded file; a bare *.pdf path becomes a
// remote go-to and everything else a URI.
func (a *assembler) applyLinkTarget(d *raw.DictObj, link *semantic.LinkAnnotation) {
	t := link.Target
	if t == "" {
		return
	}
	switch t[0] {
	case '#':
		d.Set(raw.NameLiteral("Dest"), pdfString(t[1:]))
	case '@':
		lt, ok := a.doc.Links[t[1:]]
		if !ok || lt.Page < 0 || lt.Page >= len(a.doc.Pages) {
			a.log.Warn("link id has no destination", observability.String("id", t[1:]))
			return
		}
		d.Set(raw.NameLiteral("Dest"), raw.NewArray(
			raw.Ref(a.pageNums[lt.Page], 0),
			raw.NameLiteral("XYZ"), raw.NullObj{}, raw.NumberFloat(lt.Y), raw.NullObj{}))
	case '%':
		name, page := splitEmbeddedTarget(t[1:])
		action := raw.Dict()
		action.Set(raw.NameLiteral("S"), raw.NameLiteral("GoToE"))
		action.Set(raw.NameLiteral("D"), raw.NewArray(raw.NumberInt(int64(page)), raw.NameLiteral("Fit")))
		target := raw.Dict()
		target.Set(raw.NameLiteral("R"), raw.NameLiteral("C"))
		target.Set(raw.NameLiteral("N"), pdfString(name))
		action.Set(raw.NameLiteral("T"), target)
		d.Set(raw.NameLiteral("A"), action)
	case '*':
		action := raw.Dict()
		action.Set(raw.NameLiteral("S"), raw.NameLiteral("JavaScript"))
		js := fmt.Sprintf("this.exportDataObject({cName:%q, nLaunch:2});", t[1:])
		action.Set(raw.NameLiteral("JS"), pdfString(js))
		d.Set(raw.NameLiteral("A"), action)
	default:
		if isLocalPDFPath(t) {
			action := raw.Dict()
			action.Set(raw.NameLiteral("S"), raw.NameLiteral("GoToR"))
			action.Set(raw.NameLiteral("F"), pdfString(t))
			action.Set(raw.NameLiteral("D"), raw.NewArray(raw.NumberInt(0), raw.NameLiteral("Fit")))
			d.Set(raw.NameLiteral("A"), action)
			return
		}
		action := raw.Dict()
		action.Set(raw.NameLiteral("S"), raw.NameLiteral("URI"))
		action.Set(raw.NameLiteral("URI"), raw.Str([]byte(t)))
		d.Set(raw.NameLiteral("A"), action)
	}
}

// splitEmbeddedTarget parses "name:page"; the page defaults to the
// first one.
func splitEmbeddedTarget(t string) (string, int) {
	if i := strings.LastIndex(t, ":"); i > 0 {
		if p, err := strconv.Atoi(t[i+1:]); err == nil && p > 0 {
			return t[:i], p - 1
		}
	}
	return t, 0
}

func isLocalPDFPath(t string) bool {
	if strings.Contains(t, "://") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(t), ".pdf")
}

// applyWidgetField merges the form field keys into the widget
// dictionary. Radio widgets get the light treatment: the shared keys
// live on the group parent and the child only carries /Parent and its
// appearance state.
func (a *assembler) applyWidgetField(d *raw.DictObj, w *semantic.WidgetAnnotation) error {
	if w.Field == nil {
		return fmt.Errorf("widget annotation without a field")
	}
	if bf, ok := w.Field.(*semantic.ButtonFormField); ok && bf.IsRadio {
		g := a.groups[bf.Name]
		d.Set(raw.NameLiteral("Parent"), raw.Ref(g.num, 0))
		state := "Off"
		if bf.Checked && bf.OnState != "" {
			state = bf.OnState
		}
		d.Set(raw.NameLiteral("AS"), raw.NameLiteral(state))
		return nil
	}

	d.Set(raw.NameLiteral("FT"), raw.NameLiteral(w.Field.FieldType()))
	d.Set(raw.NameLiteral("T"), pdfString(w.Field.FieldName()))

	switch f := w.Field.(type) {
	case *semantic.TextFormField:
		d.Set(raw.NameLiteral("Ff"), raw.NumberInt(int64(f.Flags)))
		if f.Value != "" {
			d.Set(raw.NameLiteral("V"), pdfString(f.Value))
		}
		if f.MaxLen > 0 {
			d.Set(raw.NameLiteral("MaxLen"), raw.NumberInt(int64(f.MaxLen)))
		}
		a.applyCommonFieldKeys(d, &f.BaseFormField)
	case *semantic.ChoiceFormField:
		flags := f.Flags
		if f.IsCombo {
			flags |= fieldFlagCombo
		}
		if f.IsMultiSelect {
			flags |= fieldFlagMultiSelect
		}
		d.Set(raw.NameLiteral("Ff"), raw.NumberInt(int64(flags)))
		opts := raw.NewArray()
		for _, o := range f.Options {
			opts.Append(pdfString(o))
		}
		d.Set(raw.NameLiteral("Opt"), opts)
		if f.Selected != "" {
			d.Set(raw.NameLiteral("V"), pdfString(f.Selected))
		}
		a.applyCommonFieldKeys(d, &f.BaseFormField)
	case *semantic.ButtonFormField:
		flags := f.Flags
		if f.IsPush {
			flags |= fieldFlagPushbutton
		}
		d.Set(raw.NameLiteral("Ff"), raw.NumberInt(int64(flags)))
		if !f.IsPush {
			// Checkbox.
			state := "Off"
			if f.Checked {
				state = f.OnState
				if state == "" {
					state = "Yes"
				}
				d.Set(raw.NameLiteral("V"), raw.NameLiteral(state))
			}
			d.Set(raw.NameLiteral("AS"), raw.NameLiteral(state))
		}
		a.applyCommonFieldKeys(d, &f.BaseFormField)
	case *semantic.SignatureFormField:
		d.Set(raw.NameLiteral("Ff"), raw.NumberInt(int64(f.Flags)))
		a.applyCommonFieldKeys(d, &f.BaseFormField)
	default:
		return fmt.Errorf("unknown field type %q", w.Field.FieldType())
	}
	return nil
}

func (a *assembler) applyCommonFieldKeys(d *raw.DictObj, f *semantic.BaseFormField) {
	if f.DefaultAppearance != "" {
		d.Set(raw.NameLiteral("DA"), raw.Str([]byte(f.DefaultAppearance)))
	}
	if f.Quadding != 0 {
		d.Set(raw.NameLiteral("Q"), raw.NumberInt(int64(f.Quadding)))
	}
	if f.TooltipText != "" {
		d.Set(raw.NameLiteral("TU"), pdfString(f.TooltipText))
	}
}
