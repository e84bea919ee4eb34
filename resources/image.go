package resources

import (
	"image"
	"sort"

	"golang.org/x/image/draw"

	"github.com/draftmark/pdfgen/ir/raw"
)

// ImageEmitter converts decoded images into 8-bit DeviceRGB image
// XObjects. Images with an alpha channel get a DeviceGray soft mask.
type ImageEmitter struct {
	Images map[string]image.Image // resource name -> image
}

func NewImageEmitter() *ImageEmitter {
	return &ImageEmitter{Images: make(map[string]image.Image)}
}

func (e *ImageEmitter) Add(name string, img image.Image) *ImageEmitter {
	e.Images[name] = img
	return e
}

func (e *ImageEmitter) Category() Category { return CategoryXObject }

func (e *ImageEmitter) Emit(next int) (Block, error) {
	names := make([]string, 0, len(e.Images))
	for n := range e.Images {
		names = append(names, n)
	}
	sort.Strings(names)

	var objs []Indirect
	entries := make(map[string]int, len(names))
	for _, name := range names {
		img := e.Images[name]
		rgba := image.NewNRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

		w := rgba.Rect.Dx()
		h := rgba.Rect.Dy()
		rgb := make([]byte, 0, w*h*3)
		alpha := make([]byte, 0, w*h)
		opaque := true
		for y := 0; y < h; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
			for x := 0; x < w; x++ {
				rgb = append(rgb, row[x*4], row[x*4+1], row[x*4+2])
				a := row[x*4+3]
				alpha = append(alpha, a)
				if a != 0xff {
					opaque = false
				}
			}
		}

		var maskNum int
		if !opaque {
			maskNum = next
			next++
			mask := raw.Dict()
			mask.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
			mask.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
			mask.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(w)))
			mask.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(h)))
			mask.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral("DeviceGray"))
			mask.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(8))
			mask.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(alpha))))
			objs = append(objs, Indirect{Num: maskNum, Obj: raw.NewStream(mask, alpha)})
		}

		dict := raw.Dict()
		dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
		dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
		dict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(w)))
		dict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(h)))
		dict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral("DeviceRGB"))
		dict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(8))
		dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(rgb))))
		if maskNum != 0 {
			dict.Set(raw.NameLiteral("SMask"), raw.Ref(maskNum, 0))
		}
		objs = append(objs, Indirect{Num: next, Obj: raw.NewStream(dict, rgb)})
		entries[name] = next
		next++
	}
	return Block{Objects: objs, Next: next, Entries: entries}, nil
}
