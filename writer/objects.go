package writer

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/draftmark/pdfgen/ir/raw"
	"github.com/draftmark/pdfgen/ir/semantic"
	"github.com/draftmark/pdfgen/observability"
	"github.com/draftmark/pdfgen/pdfa"
)

// writeDestinations serializes the named-destination name tree node.
// Names are sorted; a destination pointing at a page the document does
// not have is dropped with a warning.
func (a *assembler) writeDestinations() error {
	if len(a.doc.NamedDests) == 0 {
		return nil
	}
	sorted := make([]int, len(a.doc.NamedDests))
	for i := range sorted {
		sorted[i] = i
	}
	sort.Slice(sorted, func(i, j int) bool {
		return a.doc.NamedDests[sorted[i]].Name < a.doc.NamedDests[sorted[j]].Name
	})

	names := raw.NewArray()
	var first, last string
	for _, i := range sorted {
		nd := a.doc.NamedDests[i]
		if nd.Page < 0 || nd.Page >= len(a.doc.Pages) {
			a.log.Warn("named destination points past the last page",
				observability.String("name", nd.Name), observability.Int("page", nd.Page))
			continue
		}
		if first == "" {
			first = nd.Name
		}
		last = nd.Name
		names.Append(pdfString(nd.Name))
		names.Append(raw.NewArray(
			raw.Ref(a.pageNums[nd.Page], 0),
			raw.NameLiteral("XYZ"),
			raw.NullObj{}, raw.NumberFloat(nd.Y), raw.NullObj{}))
	}
	if names.Len() == 0 {
		return nil
	}
	node := raw.Dict()
	node.Set(raw.NameLiteral("Names"), names)
	node.Set(raw.NameLiteral("Limits"), raw.NewArray(pdfString(first), pdfString(last)))
	a.ids.set(roleDestsTree, a.alloc.Next())
	return a.emit(a.ids.get(roleDestsTree), node)
}

// writeEmbeddedFiles serializes each attachment as an embedded-file
// stream plus a filespec, then the name tree node binding them. A file
// whose payload cannot be read is skipped; its reserved numbers stay
// free in the cross-reference table.
func (a *assembler) writeEmbeddedFiles() error {
	if len(a.doc.EmbeddedFiles) == 0 {
		return nil
	}
	if !a.cfg.Archive.AllowsEmbeddedFiles() {
		a.log.Warn("embedded files dropped, not allowed at this archival level",
			observability.String("level", a.cfg.Archive.String()),
			observability.Int("count", len(a.doc.EmbeddedFiles)))
		return nil
	}

	type entry struct {
		name string
		num  int
	}
	var entries []entry
	for _, ef := range a.doc.EmbeddedFiles {
		ef.StreamNum = a.alloc.Next()
		ef.FileSpecNum = a.alloc.Next()

		data := ef.Data
		if data == nil && ef.Path != "" {
			var err error
			data, err = os.ReadFile(ef.Path)
			if err != nil {
				a.log.Warn("embedded file skipped",
					observability.String("name", ef.Name), observability.Error("error", err))
				ef.StreamNum, ef.FileSpecNum = 0, 0
				continue
			}
		}

		sd := raw.Dict()
		sd.Set(raw.NameLiteral("Type"), raw.NameLiteral("EmbeddedFile"))
		if ef.MIMEType != "" {
			sd.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(mimeName(ef.MIMEType)))
		}
		params := raw.Dict()
		params.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(len(data))))
		sd.Set(raw.NameLiteral("Params"), params)
		stream, err := maybeStream(sd, data, a.cfg.Compress)
		if err != nil {
			return err
		}
		if err := a.emit(ef.StreamNum, stream); err != nil {
			return err
		}

		fs := raw.Dict()
		fs.Set(raw.NameLiteral("Type"), raw.NameLiteral("Filespec"))
		fs.Set(raw.NameLiteral("F"), pdfString(ef.Name))
		fs.Set(raw.NameLiteral("UF"), pdfString(ef.Name))
		if ef.Description != "" {
			fs.Set(raw.NameLiteral("Desc"), pdfString(ef.Description))
		}
		if ef.Relationship != "" {
			fs.Set(raw.NameLiteral("AFRelationship"), raw.NameLiteral(ef.Relationship))
		}
		efDict := raw.Dict()
		efDict.Set(raw.NameLiteral("F"), raw.Ref(ef.StreamNum, 0))
		efDict.Set(raw.NameLiteral("UF"), raw.Ref(ef.StreamNum, 0))
		fs.Set(raw.NameLiteral("EF"), efDict)
		if err := a.emit(ef.FileSpecNum, fs); err != nil {
			return err
		}
		entries = append(entries, entry{ef.Name, ef.FileSpecNum})
	}
	if len(entries) == 0 {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	names := raw.NewArray()
	for _, e := range entries {
		names.Append(pdfString(e.name))
		names.Append(raw.Ref(e.num, 0))
	}
	node := raw.Dict()
	node.Set(raw.NameLiteral("Names"), names)
	a.ids.set(roleEFTree, a.alloc.Next())
	return a.emit(a.ids.get(roleEFTree), node)
}

// mimeName encodes a MIME type as a PDF name, escaping the slash.
func mimeName(mime string) string {
	return strings.ReplaceAll(mime, "/", "#2F")
}

// writeJavaScript serializes document-level scripts into the JavaScript
// name tree. Scripts that fail validation are dropped with a warning;
// strict mode rejected them before assembly started.
func (a *assembler) writeJavaScript() error {
	if len(a.doc.JavaScript) == 0 {
		return nil
	}
	if !a.cfg.Archive.AllowsJavaScript() {
		a.log.Warn("document scripts dropped, not allowed at this archival level",
			observability.String("level", a.cfg.Archive.String()),
			observability.Int("count", len(a.doc.JavaScript)))
		return nil
	}

	type entry struct {
		name string
		num  int
	}
	entries := make([]entry, 0, len(a.doc.JavaScript))
	for _, js := range a.doc.JavaScript {
		if err := a.engine.Validate(js.Name, js.Script); err != nil {
			a.log.Warn("script failed validation, dropped",
				observability.String("name", js.Name), observability.Error("error", err))
			continue
		}
		num := a.alloc.Next()
		action := raw.Dict()
		action.Set(raw.NameLiteral("S"), raw.NameLiteral("JavaScript"))
		action.Set(raw.NameLiteral("JS"), pdfString(js.Script))
		if err := a.emit(num, action); err != nil {
			return err
		}
		entries = append(entries, entry{js.Name, num})
	}

	if len(entries) == 0 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	names := raw.NewArray()
	for _, e := range entries {
		names.Append(pdfString(e.name))
		names.Append(raw.Ref(e.num, 0))
	}
	node := raw.Dict()
	node.Set(raw.NameLiteral("Names"), names)
	a.ids.set(roleJSTree, a.alloc.Next())
	return a.emit(a.ids.get(roleJSTree), node)
}

// writeNames assembles the catalog /Names dictionary from whichever
// name trees earlier stages produced.
func (a *assembler) writeNames() error {
	if !a.ids.has(roleDestsTree) && !a.ids.has(roleJSTree) && !a.ids.has(roleEFTree) {
		return nil
	}
	d := raw.Dict()
	if a.ids.has(roleDestsTree) {
		d.Set(raw.NameLiteral("Dests"), raw.Ref(a.ids.get(roleDestsTree), 0))
	}
	if a.ids.has(roleJSTree) {
		d.Set(raw.NameLiteral("JavaScript"), raw.Ref(a.ids.get(roleJSTree), 0))
	}
	if a.ids.has(roleEFTree) {
		d.Set(raw.NameLiteral("EmbeddedFiles"), raw.Ref(a.ids.get(roleEFTree), 0))
	}
	a.ids.set(roleNames, a.alloc.Next())
	return a.emit(a.ids.get(roleNames), d)
}

// writeAcroForm serializes the interactive form dictionary. Radio group
// parents and widget fields were numbered during reservation; the
// signature field, when present, joins the field list and turns on
// /SigFlags.
func (a *assembler) writeAcroForm() error {
	needed := len(a.fieldNums) > 0 || (a.doc.Form != nil && a.doc.Form.NeedAppearances)
	if !needed {
		return nil
	}
	d := raw.Dict()
	fields := raw.NewArray()
	for _, n := range a.fieldNums {
		fields.Append(raw.Ref(n, 0))
	}
	d.Set(raw.NameLiteral("Fields"), fields)
	if a.doc.Form != nil && a.doc.Form.NeedAppearances {
		d.Set(raw.NameLiteral("NeedAppearances"), raw.Bool(true))
	}
	if a.cfg.Sign != nil {
		// Signatures exist and the document must not be re-saved in a
		// way that invalidates them.
		d.Set(raw.NameLiteral("SigFlags"), raw.NumberInt(3))
	}
	d.Set(raw.NameLiteral("DA"), raw.Str([]byte("/Helv 0 Tf 0 g")))
	if len(a.fontNums) > 0 {
		fontRes := raw.Dict()
		for name, num := range a.fontNums {
			fontRes.Set(raw.NameLiteral(name), raw.Ref(num, 0))
		}
		dr := raw.Dict()
		dr.Set(raw.NameLiteral("Font"), fontRes)
		d.Set(raw.NameLiteral("DR"), dr)
	}
	a.ids.set(roleAcroForm, a.alloc.Next())
	return a.emit(a.ids.get(roleAcroForm), d)
}

func (a *assembler) writeInfo() error {
	d := raw.Dict()
	info := a.doc.Info
	if info == nil {
		info = &semantic.DocumentInfo{}
	}
	set := func(key, val string) {
		if val != "" {
			d.Set(raw.NameLiteral(key), pdfString(val))
		}
	}
	set("Title", info.Title)
	set("Author", info.Author)
	set("Subject", info.Subject)
	set("Keywords", info.Keywords)
	set("Creator", info.Creator)
	producer := info.Producer
	if producer == "" {
		producer = a.cfg.Producer
	}
	if producer == "" {
		producer = defaultProducer
	}
	set("Producer", producer)
	creation := info.CreationDate
	if creation == "" && !a.cfg.Deterministic {
		creation = formatDate(time.Now())
	}
	set("CreationDate", creation)
	mod := info.ModDate
	if mod == "" {
		mod = creation
	}
	set("ModDate", mod)
	return a.emit(a.ids.get(roleInfo), d)
}

const defaultProducer = "draftmark pdfgen"

// writeMetadata emits the XMP packet. The stream is never compressed so
// metadata scanners can read it without a PDF parser.
func (a *assembler) writeMetadata() error {
	a.ids.set(roleMetadata, a.alloc.Next())
	packet := a.xmpPacket()
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Metadata"))
	d.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("XML"))
	d.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(packet))))
	return a.emit(a.ids.get(roleMetadata), raw.NewStream(d, packet))
}

func (a *assembler) xmpPacket() []byte {
	var b strings.Builder
	b.WriteString(`<?xpacket begin="` + "\uFEFF" + `" id="W5M0MpCehiHzreSzNTczkc9d"?>` + "\n")
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + "\n")
	b.WriteString(` <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")

	info := a.doc.Info
	title, author, producer, created := "", "", defaultProducer, ""
	if info != nil {
		title, author = info.Title, info.Author
		if info.Producer != "" {
			producer = info.Producer
		}
		created = info.CreationDate
	}
	if a.cfg.Producer != "" && (info == nil || info.Producer == "") {
		producer = a.cfg.Producer
	}

	b.WriteString(`  <rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	if title != "" {
		fmt.Fprintf(&b, "   <dc:title><rdf:Alt><rdf:li xml:lang=\"x-default\">%s</rdf:li></rdf:Alt></dc:title>\n", xmlEscape(title))
	}
	if author != "" {
		fmt.Fprintf(&b, "   <dc:creator><rdf:Seq><rdf:li>%s</rdf:li></rdf:Seq></dc:creator>\n", xmlEscape(author))
	}
	b.WriteString("  </rdf:Description>\n")

	fmt.Fprintf(&b, "  <rdf:Description rdf:about=\"\" xmlns:pdf=\"http://ns.adobe.com/pdf/1.3/\"><pdf:Producer>%s</pdf:Producer></rdf:Description>\n", xmlEscape(producer))
	if created != "" {
		fmt.Fprintf(&b, "  <rdf:Description rdf:about=\"\" xmlns:xmp=\"http://ns.adobe.com/xap/1.0/\"><xmp:CreateDate>%s</xmp:CreateDate></rdf:Description>\n", xmlEscape(xmpDate(created)))
	}
	if a.cfg.Archive.Active() {
		fmt.Fprintf(&b, "  <rdf:Description rdf:about=\"\" xmlns:pdfaid=\"http://www.aiim.org/pdfa/ns/id/\"><pdfaid:part>%d</pdfaid:part><pdfaid:conformance>%s</pdfaid:conformance></rdf:Description>\n",
			a.cfg.Archive.Part(), a.cfg.Archive.Conformance())
	}

	b.WriteString(" </rdf:RDF>\n</x:xmpmeta>\n")
	b.WriteString(`<?xpacket end="w"?>`)
	return []byte(b.String())
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// xmpDate converts a PDF date string (D:YYYYMMDDHHmmSS...) into the
// ISO 8601 form XMP wants; unparseable input passes through unchanged.
func xmpDate(pdfDate string) string {
	s := strings.TrimPrefix(pdfDate, "D:")
	if len(s) < 14 {
		return pdfDate
	}
	return fmt.Sprintf("%s-%s-%sT%s:%s:%s", s[0:4], s[4:6], s[6:8], s[8:10], s[10:12], s[12:14])
}

// writeOutputIntent emits the sRGB ICC profile stream followed by the
// output intent referencing it. An explicit printing condition takes
// precedence over the plain sRGB intent.
func (a *assembler) writeOutputIntent() error {
	cond := a.cfg.PDFXCondition
	if cond == "" && !a.cfg.Archive.RequiresOutputIntent() && !a.cfg.SRGBOutputIntent {
		return nil
	}

	a.ids.set(roleOutputICC, a.alloc.Next())
	profile := pdfa.SRGBProfile()
	pd := raw.Dict()
	pd.Set(raw.NameLiteral("N"), raw.NumberInt(3))
	stream, err := maybeStream(pd, profile, a.cfg.Compress)
	if err != nil {
		return err
	}
	if err := a.emit(a.ids.get(roleOutputICC), stream); err != nil {
		return err
	}

	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("OutputIntent"))
	if cond != "" {
		d.Set(raw.NameLiteral("S"), raw.NameLiteral("GTS_PDFX"))
		d.Set(raw.NameLiteral("OutputConditionIdentifier"), pdfString(cond))
		d.Set(raw.NameLiteral("Info"), pdfString(cond))
	} else {
		d.Set(raw.NameLiteral("S"), raw.NameLiteral("GTS_PDFA1"))
		d.Set(raw.NameLiteral("OutputConditionIdentifier"), pdfString("sRGB IEC61966-2.1"))
		d.Set(raw.NameLiteral("RegistryName"), pdfString("http://www.color.org"))
	}
	d.Set(raw.NameLiteral("DestOutputProfile"), raw.Ref(a.ids.get(roleOutputICC), 0))
	a.ids.set(roleIntent, a.alloc.Next())
	return a.emit(a.ids.get(roleIntent), d)
}

func (a *assembler) writeCatalog() error {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	d.Set(raw.NameLiteral("Pages"), raw.Ref(a.ids.get(rolePageTree), 0))
	if a.doc.PageLayout != "" {
		d.Set(raw.NameLiteral("PageLayout"), raw.NameLiteral(a.doc.PageLayout))
	}
	if a.doc.PageMode != "" {
		d.Set(raw.NameLiteral("PageMode"), raw.NameLiteral(a.doc.PageMode))
	}
	if a.doc.Lang != "" {
		d.Set(raw.NameLiteral("Lang"), pdfString(a.doc.Lang))
	}
	if vp := a.viewerPreferences(); vp.Len() > 0 {
		d.Set(raw.NameLiteral("ViewerPreferences"), vp)
	}
	if a.ids.has(roleNames) {
		d.Set(raw.NameLiteral("Names"), raw.Ref(a.ids.get(roleNames), 0))
	}
	if a.ids.has(roleOutlines) {
		d.Set(raw.NameLiteral("Outlines"), raw.Ref(a.ids.get(roleOutlines), 0))
	}
	if a.ids.has(roleAcroForm) {
		d.Set(raw.NameLiteral("AcroForm"), raw.Ref(a.ids.get(roleAcroForm), 0))
	}
	if a.ids.has(roleOCProps) {
		d.Set(raw.NameLiteral("OCProperties"), raw.Ref(a.ids.get(roleOCProps), 0))
	}
	d.Set(raw.NameLiteral("Metadata"), raw.Ref(a.ids.get(roleMetadata), 0))
	if a.ids.has(roleIntent) {
		d.Set(raw.NameLiteral("OutputIntents"), raw.NewArray(raw.Ref(a.ids.get(roleIntent), 0)))
	}
	if oa := a.openAction(); oa != nil {
		d.Set(raw.NameLiteral("OpenAction"), oa)
	}
	return a.emit(a.ids.get(roleCatalog), d)
}

func (a *assembler) viewerPreferences() *raw.DictObj {
	d := raw.Dict()
	vp := a.cfg.ViewerPrefs
	if a.cfg.RTL {
		d.Set(raw.NameLiteral("Direction"), raw.NameLiteral("R2L"))
	}
	if vp == nil {
		return d
	}
	setBool := func(key string, v bool) {
		if v {
			d.Set(raw.NameLiteral(key), raw.Bool(true))
		}
	}
	setBool("HideToolbar", vp.HideToolbar)
	setBool("HideMenubar", vp.HideMenubar)
	setBool("HideWindowUI", vp.HideWindowUI)
	setBool("FitWindow", vp.FitWindow)
	setBool("CenterWindow", vp.CenterWindow)
	setBool("DisplayDocTitle", vp.DisplayDocTitle)
	setBool("PickTrayByPDFSize", vp.PickTrayByPDFSize)
	if vp.NonFullScreenMode != "" {
		d.Set(raw.NameLiteral("NonFullScreenPageMode"), raw.NameLiteral(vp.NonFullScreenMode))
	}
	if vp.PrintScaling != "" {
		d.Set(raw.NameLiteral("PrintScaling"), raw.NameLiteral(vp.PrintScaling))
	}
	if vp.Duplex != "" {
		d.Set(raw.NameLiteral("Duplex"), raw.NameLiteral(vp.Duplex))
	}
	if vp.NumCopies > 0 {
		d.Set(raw.NameLiteral("NumCopies"), raw.NumberInt(int64(vp.NumCopies)))
	}
	if vp.PrintPageRangeTo >= vp.PrintPageRangeFrom && vp.PrintPageRangeTo > 0 {
		d.Set(raw.NameLiteral("PrintPageRange"), raw.NewArray(
			raw.NumberInt(int64(vp.PrintPageRangeFrom)), raw.NumberInt(int64(vp.PrintPageRangeTo))))
	}
	return d
}

func (a *assembler) openAction() *raw.ArrayObj {
	oa := a.cfg.OpenAction
	if oa == nil || len(a.doc.Pages) == 0 {
		return nil
	}
	pg := oa.Page
	if pg < 0 || pg >= len(a.doc.Pages) {
		pg = 0
	}
	ref := raw.Ref(a.pageNums[pg], 0)
	switch oa.Mode {
	case OpenFitWidth:
		return raw.NewArray(ref, raw.NameLiteral("FitH"), raw.NullObj{})
	case OpenRealSize:
		return raw.NewArray(ref, raw.NameLiteral("XYZ"), raw.NullObj{}, raw.NullObj{}, raw.NumberInt(1))
	case OpenZoom:
		z := oa.Zoom / 100
		if z <= 0 {
			z = 1
		}
		return raw.NewArray(ref, raw.NameLiteral("XYZ"), raw.NullObj{}, raw.NullObj{}, raw.NumberFloat(z))
	default:
		return raw.NewArray(ref, raw.NameLiteral("Fit"))
	}
}
