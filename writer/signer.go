package writer

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattetti/filebuffer"

	"github.com/draftmark/pdfgen/ir/raw"
	"github.com/draftmark/pdfgen/observability"
)

// byteRangePlaceholder reserves ten digits per offset; the splicer
// rewrites it in place once the real offsets are known, padding with
// spaces to keep the file length stable.
const byteRangePlaceholder = "[0 ********** ********** **********]"

// writeSignatureShell emits the signature field and the signature value
// dictionary with fixed-width placeholders for /ByteRange and
// /Contents. The second pass fills both without moving a single byte
// of the rest of the file.
func (a *assembler) writeSignatureShell() error {
	sc := a.cfg.Sign
	if sc == nil {
		return nil
	}

	maxLen := sc.MaxLength
	if maxLen == 0 {
		est, err := sc.Signer.EstimatedLength()
		if err != nil {
			return fmt.Errorf("estimating signature size: %w", err)
		}
		maxLen = est
	}

	fieldName := sc.FieldName
	if fieldName == "" {
		fieldName = "Signature1"
	}
	pg := sc.Page
	if pg < 0 || pg >= len(a.doc.Pages) {
		pg = 0
	}

	field := raw.Dict()
	field.Set(raw.NameLiteral("Type"), raw.NameLiteral("Annot"))
	field.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Widget"))
	field.Set(raw.NameLiteral("FT"), raw.NameLiteral("Sig"))
	field.Set(raw.NameLiteral("T"), pdfString(fieldName))
	field.Set(raw.NameLiteral("V"), raw.Ref(a.ids.get(roleSigValue), 0))
	field.Set(raw.NameLiteral("F"), raw.NumberInt(4))
	field.Set(raw.NameLiteral("Rect"), rectArray([4]float64{sc.Rect.LLX, sc.Rect.LLY, sc.Rect.URX, sc.Rect.URY}))
	if len(a.doc.Pages) > 0 {
		field.Set(raw.NameLiteral("P"), raw.Ref(a.pageNums[pg], 0))
	}
	if err := a.emitPlain(a.ids.get(roleSigField), field); err != nil {
		return err
	}

	v := raw.Dict()
	v.Set(raw.NameLiteral("Type"), raw.NameLiteral("Sig"))
	v.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Adobe.PPKLite"))
	v.Set(raw.NameLiteral("SubFilter"), raw.NameLiteral("adbe.pkcs7.detached"))
	v.Set(raw.NameLiteral("ByteRange"), raw.Verbatim(byteRangePlaceholder))
	v.Set(raw.NameLiteral("Contents"), raw.Verbatim("<"+strings.Repeat("0", maxLen*2)+">"))
	if sc.Name != "" {
		v.Set(raw.NameLiteral("Name"), pdfString(sc.Name))
	}
	if sc.Reason != "" {
		v.Set(raw.NameLiteral("Reason"), pdfString(sc.Reason))
	}
	if sc.Location != "" {
		v.Set(raw.NameLiteral("Location"), pdfString(sc.Location))
	}
	if sc.ContactInfo != "" {
		v.Set(raw.NameLiteral("ContactInfo"), pdfString(sc.ContactInfo))
	}
	if !a.cfg.Deterministic {
		v.Set(raw.NameLiteral("M"), pdfString(formatDate(time.Now())))
	}
	if sc.CertType > 0 {
		params := raw.Dict()
		params.Set(raw.NameLiteral("Type"), raw.NameLiteral("TransformParams"))
		params.Set(raw.NameLiteral("P"), raw.NumberInt(int64(sc.CertType)))
		params.Set(raw.NameLiteral("V"), raw.NameLiteral("1.2"))
		sigRef := raw.Dict()
		sigRef.Set(raw.NameLiteral("Type"), raw.NameLiteral("SigRef"))
		sigRef.Set(raw.NameLiteral("TransformMethod"), raw.NameLiteral("DocMDP"))
		sigRef.Set(raw.NameLiteral("TransformParams"), params)
		sigRef.Set(raw.NameLiteral("DigestMethod"), raw.NameLiteral("SHA256"))
		v.Set(raw.NameLiteral("Reference"), raw.NewArray(sigRef))
	}
	return a.emitPlain(a.ids.get(roleSigValue), v)
}

// spliceSignature runs the second pass: locate the placeholders, fix
// the byte ranges, persist the signable bytes, sign the two ranges and
// splice the hex signature into the hole. The output is byte-for-byte
// the first pass except for the two placeholder regions.
func (a *assembler) spliceSignature(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()

	marker := []byte("/ByteRange " + byteRangePlaceholder)
	brIdx := bytes.Index(data, marker)
	if brIdx < 0 {
		return nil, fmt.Errorf("signature byte-range placeholder not found")
	}
	brStart := brIdx + len("/ByteRange ")

	contentsIdx := bytes.Index(data[brIdx:], []byte("/Contents <"))
	if contentsIdx < 0 {
		return nil, fmt.Errorf("signature contents placeholder not found")
	}
	holeStart := brIdx + contentsIdx + len("/Contents ")
	holeEnd := bytes.IndexByte(data[holeStart:], '>')
	if holeEnd < 0 {
		return nil, fmt.Errorf("signature contents placeholder not terminated")
	}
	holeEnd += holeStart + 1

	br1 := holeStart
	br2 := holeEnd
	br3 := len(data) - br2
	ranges := fmt.Sprintf("[0 %d %d %d", br1, br2, br3)
	if len(ranges) > len(byteRangePlaceholder)-1 {
		return nil, fmt.Errorf("byte-range values overflow the reserved space")
	}
	for len(ranges) < len(byteRangePlaceholder)-1 {
		ranges += " "
	}
	ranges += "]"
	copy(data[brStart:], ranges)

	// Persist the document so the signer sees exactly what a verifier
	// will read back from disk.
	tmp, err := os.CreateTemp("", "pdfgen-sign-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := tmp.Write(data); err != nil {
		return nil, err
	}

	content := filebuffer.New([]byte{})
	if _, err := io.Copy(content, io.NewSectionReader(tmp, 0, int64(br1))); err != nil {
		return nil, err
	}
	if _, err := io.Copy(content, io.NewSectionReader(tmp, int64(br2), int64(br3))); err != nil {
		return nil, err
	}

	sig, err := a.cfg.Sign.Signer.Sign(ctx, content.Buff.Bytes())
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	hole := holeEnd - holeStart - 2 // room between < and >
	enc := make([]byte, hex.EncodedLen(len(sig)))
	hex.Encode(enc, sig)
	if len(enc) > hole {
		return nil, fmt.Errorf("signature needs %d bytes, placeholder holds %d", len(enc), hole)
	}
	copy(data[holeStart+1:], enc)

	a.log.Info("document signed",
		observability.Int64(observability.MetricSignTime, time.Since(start).Milliseconds()),
		observability.Int("signature.bytes", len(sig)))
	return data, nil
}
