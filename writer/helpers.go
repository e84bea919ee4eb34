package writer

import (
	"bytes"
	"compress/zlib"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"time"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	"github.com/draftmark/pdfgen/ir/raw"
)

// pdfString encodes a Go string for a PDF text-string slot. Strings
// that survive a Latin-1 round trip stay in single-byte form; anything
// else becomes UTF-16BE with a byte order mark.
func pdfString(s string) raw.StringObj {
	enc, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err == nil {
		return raw.Str(enc)
	}
	u := utf16.Encode([]rune(s))
	out := make([]byte, 0, 2+len(u)*2)
	out = append(out, 0xFE, 0xFF)
	for _, cu := range u {
		out = append(out, byte(cu>>8), byte(cu))
	}
	return raw.Str(out)
}

// formatDate renders t as a PDF date string, D:YYYYMMDDHHmmSSOHH'mm'.
func formatDate(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("D:%s%s%02d'%02d'", t.Format("20060102150405"), sign, offset/3600, offset%3600/60)
}

// flateEncode compresses data at the default zlib level.
func flateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fileID derives the trailer /ID half. Deterministic builds hash the
// document's identifying metadata so identical inputs produce identical
// files; otherwise the id is random.
func fileID(deterministic bool, seed string) ([]byte, error) {
	if deterministic {
		sum := sha256.Sum256([]byte(seed))
		return sum[:16], nil
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return nil, err
	}
	return id, nil
}

// maybeStream builds a stream object, flate-compressing the payload
// when compression is on and actually pays off.
func maybeStream(dict *raw.DictObj, data []byte, compress bool) (*raw.StreamObj, error) {
	if compress {
		enc, err := flateEncode(data)
		if err != nil {
			return nil, err
		}
		if len(enc) < len(data) {
			dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
			data = enc
		}
	}
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

func rectArray(r [4]float64) *raw.ArrayObj {
	a := raw.NewArray()
	for _, v := range r {
		a.Append(raw.NumberFloat(v))
	}
	return a
}

func floatArray(vs []float64) *raw.ArrayObj {
	a := raw.NewArray()
	for _, v := range vs {
		a.Append(raw.NumberFloat(v))
	}
	return a
}

func nameArray(vs []string) *raw.ArrayObj {
	a := raw.NewArray()
	for _, v := range vs {
		a.Append(raw.NameLiteral(v))
	}
	return a
}
