package font

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// parseFont accepts single fonts and collections. Collections yield their first font.
func parseFont(name string, data []byte) (*sfnt.Font, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttc", ".otc":
		c, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, err
		}
		return c.Font(0)
	}
	return opentype.Parse(data)
}

func newFace(f *sfnt.Font, size, dpi int) (xfont.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     float64(dpi),
		Hinting: xfont.HintingFull,
	})
}

// glyphBitmap is a rasterized glyph as white RGBA with the coverage in alpha.
type glyphBitmap struct {
	width, rows int
	left, top   int
	advance     float64
	pixels      []byte
}

// rasterize renders r with face. The face reuses its mask buffer between
// calls, so the coverage is copied out right away.
func rasterize(face xfont.Face, r rune, antialiasing bool) (*glyphBitmap, bool) {
	dr, mask, maskp, advance, ok := face.Glyph(fixed.Point26_6{}, r)
	if !ok {
		return nil, false
	}
	bmp := &glyphBitmap{
		width:   dr.Dx(),
		rows:    dr.Dy(),
		left:    dr.Min.X,
		top:     -dr.Min.Y,
		advance: float64(advance) / 64,
	}
	if bmp.width <= 0 || bmp.rows <= 0 {
		bmp.width, bmp.rows = 0, 0
		return bmp, true
	}

	bmp.pixels = make([]byte, bmp.width*bmp.rows*4)
	alpha, isAlpha := mask.(*image.Alpha)
	for y := 0; y < bmp.rows; y++ {
		for x := 0; x < bmp.width; x++ {
			var a uint8
			if isAlpha {
				a = alpha.AlphaAt(maskp.X+x, maskp.Y+y).A
			} else {
				a = color.AlphaModel.Convert(mask.At(maskp.X+x, maskp.Y+y)).(color.Alpha).A
			}
			if !antialiasing {
				if a >= 128 {
					a = 0xff
				} else {
					a = 0
				}
			}
			i := (y*bmp.width + x) * 4
			bmp.pixels[i+0] = 0xff
			bmp.pixels[i+1] = 0xff
			bmp.pixels[i+2] = 0xff
			bmp.pixels[i+3] = a
		}
	}
	return bmp, true
}

// crop returns the top-left w*h block of the bitmap.
func (b *glyphBitmap) crop(w, h int) []byte {
	if w >= b.width && h >= b.rows {
		return b.pixels
	}
	w = min(w, b.width)
	h = min(h, b.rows)
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		copy(out[y*w*4:(y+1)*w*4], b.pixels[y*b.width*4:y*b.width*4+w*4])
	}
	return out
}
