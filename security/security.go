// Package security implements the encrypt side of the PDF Standard
// security handler and detached PKCS#7 document signing.
package security

import (
	"crypto/md5"
	"crypto/rc4"
	"encoding/binary"
	"fmt"

	"github.com/draftmark/pdfgen/ir/raw"
)

// EncryptConfig configures the Standard security handler for a build.
type EncryptConfig struct {
	UserPassword  string
	OwnerPassword string
	Permissions   raw.Permissions
}

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	copy(padded, pwd)
	if len(pwd) < 32 {
		copy(padded[len(pwd):], passwordPadding[:32-len(pwd)])
	}
	return padded
}

func rc4Simple(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// PermissionsValue builds the Standard security /P flags value.
func PermissionsValue(p raw.Permissions) int32 {
	val := int32(-4) // bits 1-2 must be 0
	if !p.Print {
		val &^= 1 << 2
	}
	if !p.Modify {
		val &^= 1 << 3
	}
	if !p.Copy {
		val &^= 1 << 4
	}
	if !p.ModifyAnnotations {
		val &^= 1 << 5
	}
	if !p.FillForms {
		val &^= 1 << 8
	}
	if !p.ExtractAccessible {
		val &^= 1 << 9
	}
	if !p.Assemble {
		val &^= 1 << 10
	}
	if !p.PrintHighQuality {
		val &^= 1 << 11
	}
	return val
}

func deriveKey(pwd, owner []byte, pVal int32, fileID []byte, keyLenBytes, r int) []byte {
	if keyLenBytes <= 0 {
		keyLenBytes = 5
	}
	if keyLenBytes > 16 {
		keyLenBytes = 16
	}
	data := make([]byte, 0, 32+len(owner)+4+len(fileID))
	data = append(data, padPassword(pwd)...)
	data = append(data, owner...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(pVal))
	data = append(data, pBuf[:]...)
	data = append(data, fileID...)

	sum := md5.Sum(data)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLenBytes])
			key = sum[:]
		}
	}
	return key[:keyLenBytes]
}

// Handler encrypts strings and streams for one document. It holds the
// file key derived from the passwords and file ID; per-object keys are
// MD5(key + objnum + gen) per the Standard handler algorithm.
type Handler struct {
	key    []byte
	keyLen int
}

// BuildStandardEncryption derives the file key and constructs the
// /Encrypt dictionary (RC4 128-bit, V2/R3) together with a Handler that
// encrypts every string and stream written after it.
func BuildStandardEncryption(cfg EncryptConfig, fileID []byte) (*raw.DictObj, *Handler, error) {
	ownerPwd := cfg.OwnerPassword
	if ownerPwd == "" {
		if cfg.UserPassword != "" {
			ownerPwd = cfg.UserPassword
		} else {
			ownerPwd = "owner"
		}
	}
	const keyLen = 16 // 128-bit
	const revision = 3

	userPad := padPassword([]byte(cfg.UserPassword))
	ownerPad := padPassword([]byte(ownerPwd))
	ownerDigest := md5.Sum(ownerPad)
	ownerKey := ownerDigest[:]
	for i := 0; i < 50; i++ {
		d := md5.Sum(ownerKey[:keyLen])
		ownerKey = d[:]
	}
	oVal := userPad
	for i := 0; i < 20; i++ {
		step := make([]byte, keyLen)
		for j := range step {
			step[j] = ownerKey[j] ^ byte(i)
		}
		oVal = rc4Simple(step, oVal)
	}

	pVal := PermissionsValue(cfg.Permissions)
	fileKey := deriveKey([]byte(cfg.UserPassword), oVal, pVal, fileID, keyLen, revision)

	seed := md5.Sum(append(append([]byte{}, passwordPadding...), fileID...))
	uVal := seed[:]
	for i := 0; i < 20; i++ {
		step := make([]byte, keyLen)
		for j := range step {
			step[j] = fileKey[j] ^ byte(i)
		}
		uVal = rc4Simple(step, uVal)
	}
	// /U is 32 bytes: 16 significant plus arbitrary padding.
	uEntry := make([]byte, 32)
	copy(uEntry, uVal)

	enc := raw.Dict()
	enc.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Standard"))
	enc.Set(raw.NameLiteral("V"), raw.NumberInt(2))
	enc.Set(raw.NameLiteral("R"), raw.NumberInt(revision))
	enc.Set(raw.NameLiteral("Length"), raw.NumberInt(keyLen*8))
	enc.Set(raw.NameLiteral("O"), raw.HexStr(oVal))
	enc.Set(raw.NameLiteral("U"), raw.HexStr(uEntry))
	enc.Set(raw.NameLiteral("P"), raw.NumberInt(int64(pVal)))

	return enc, &Handler{key: fileKey, keyLen: keyLen}, nil
}

// Encrypt encrypts one string or stream payload belonging to the given
// indirect object.
func (h *Handler) Encrypt(objNum, gen int, data []byte) ([]byte, error) {
	objKey := h.objectKey(objNum, gen)
	c, err := rc4.NewCipher(objKey)
	if err != nil {
		return nil, fmt.Errorf("object %d key: %w", objNum, err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

func (h *Handler) objectKey(objNum, gen int) []byte {
	data := make([]byte, 0, h.keyLen+5)
	data = append(data, h.key...)
	data = append(data,
		byte(objNum), byte(objNum>>8), byte(objNum>>16),
		byte(gen), byte(gen>>8))
	sum := md5.Sum(data)
	n := h.keyLen + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}
