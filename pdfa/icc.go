package pdfa

import (
	"bytes"
	"encoding/binary"
	"sync"
)

// SRGBProfile returns a minimal sRGB ICC v2 display profile suitable as
// the DestOutputProfile of an sRGB output intent: header, description,
// white point, copyright, primaries and gamma-2.2 tone curves.
func SRGBProfile() []byte {
	srgbOnce.Do(func() { srgbProfile = buildSRGBProfile() })
	out := make([]byte, len(srgbProfile))
	copy(out, srgbProfile)
	return out
}

var (
	srgbOnce    sync.Once
	srgbProfile []byte
)

type iccTag struct {
	sig  string
	data []byte
}

func buildSRGBProfile() []byte {
	tags := []iccTag{
		{"desc", descTag("sRGB IEC61966-2.1")},
		{"wtpt", xyzTag(0.9505, 1.0, 1.0891)}, // D65
		{"cprt", textTag("Public Domain")},
		{"rXYZ", xyzTag(0.4361, 0.2225, 0.0139)},
		{"gXYZ", xyzTag(0.3851, 0.7169, 0.0971)},
		{"bXYZ", xyzTag(0.1431, 0.0606, 0.7141)},
		{"rTRC", gammaCurveTag(2.2)},
		{"gTRC", gammaCurveTag(2.2)},
		{"bTRC", gammaCurveTag(2.2)},
	}

	// Tag table: count + one 12-byte entry per tag.
	tableLen := 4 + 12*len(tags)
	offset := 128 + tableLen
	var table bytes.Buffer
	var data bytes.Buffer
	putU32(&table, uint32(len(tags)))
	for _, t := range tags {
		table.WriteString(t.sig)
		putU32(&table, uint32(offset))
		putU32(&table, uint32(len(t.data)))
		data.Write(t.data)
		pad := (4 - len(t.data)%4) % 4
		data.Write(make([]byte, pad))
		offset += len(t.data) + pad
	}

	total := 128 + tableLen + data.Len()
	var header bytes.Buffer
	putU32(&header, uint32(total))
	header.WriteString("none")     // CMM
	putU32(&header, 0x02100000)    // version 2.1
	header.WriteString("mntr")     // device class
	header.WriteString("RGB ")     // data color space
	header.WriteString("XYZ ")     // PCS
	header.Write(make([]byte, 12)) // creation date
	header.WriteString("acsp")     // magic
	header.Write(make([]byte, 4))  // platform
	putU32(&header, 0)             // flags
	header.Write(make([]byte, 12)) // manufacturer, model, attrs (hi)
	putU32(&header, 0)             // attrs (lo)
	putU32(&header, 0)             // rendering intent: perceptual
	putS15F16(&header, 0.9642)     // illuminant D50 X
	putS15F16(&header, 1.0)        // illuminant D50 Y
	putS15F16(&header, 0.8249)     // illuminant D50 Z
	header.Write(make([]byte, 128-header.Len()))

	var out bytes.Buffer
	out.Write(header.Bytes())
	out.Write(table.Bytes())
	out.Write(data.Bytes())
	return out.Bytes()
}

func putU32(b *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

func putS15F16(b *bytes.Buffer, f float64) {
	putU32(b, uint32(int32(f*65536+0.5)))
}

func xyzTag(x, y, z float64) []byte {
	var b bytes.Buffer
	b.WriteString("XYZ ")
	putU32(&b, 0)
	putS15F16(&b, x)
	putS15F16(&b, y)
	putS15F16(&b, z)
	return b.Bytes()
}

func descTag(s string) []byte {
	var b bytes.Buffer
	b.WriteString("desc")
	putU32(&b, 0)
	putU32(&b, uint32(len(s)+1))
	b.WriteString(s)
	b.WriteByte(0)
	// Unicode and ScriptCode description blocks, both empty.
	b.Write(make([]byte, 4+4+2+1+67))
	return b.Bytes()
}

func textTag(s string) []byte {
	var b bytes.Buffer
	b.WriteString("text")
	putU32(&b, 0)
	b.WriteString(s)
	b.WriteByte(0)
	return b.Bytes()
}

// gammaCurveTag encodes a single-entry curv tag holding the exponent as
// an u8Fixed8 value.
func gammaCurveTag(gamma float64) []byte {
	var b bytes.Buffer
	b.WriteString("curv")
	putU32(&b, 0)
	putU32(&b, 1)
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(gamma*256+0.5))
	b.Write(tmp[:])
	return b.Bytes()
}
