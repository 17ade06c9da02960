package atlas

import (
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

/**
 * @brief A fixed size RGBA canvas with a skyline rectangle packer on top. The canvas is
 * owned by a blank Image which is loaded and uploaded together with the atlas.
 * Not safe for concurrent use: PackRects runs once while loading, PutAt and the
 * reupload calls belong to the main thread afterwards.
 */
type TextureAtlas struct {
	*resources.Lifecycle

	image   *graphics.Image
	width   int
	height  int
	padding int

	skyline []Skyline
	// union of the regions written since the last reupload
	dirty image.Rectangle
}

// New creates an atlas with its own backing image.
func New(backend graphics.Backend, name string, width, height, padding int) *TextureAtlas {
	img := graphics.NewBlankImage(backend, backingName(name), width, height)
	return NewWithImage(name, img, padding)
}

// NewWithImage creates an atlas over a blank image created elsewhere, usually by
// the resource manager as an unmanaged resource.
func NewWithImage(name string, img *graphics.Image, padding int) *TextureAtlas {
	return &TextureAtlas{
		Lifecycle: resources.NewLifecycle(name, ""),
		image:     img,
		width:     img.Width(),
		height:    img.Height(),
		padding:   max(padding, 0),
		skyline:   []Skyline{{X: 0, Y: 0, Width: img.Width()}},
	}
}

func backingName(name string) string {
	if name == "" {
		return "atlas-" + uuid.NewString()
	}
	return name + "-image-" + uuid.NewString()
}

func (ta *TextureAtlas) Type() resources.Type { return resources.TypeTextureAtlas }

func (ta *TextureAtlas) InitAsync() error {
	if ta.width <= 0 || ta.height <= 0 {
		return fmt.Errorf("atlas %q has invalid size %dx%d", ta.Name(), ta.width, ta.height)
	}
	if ta.image.IsAsyncReady() {
		return nil
	}
	return resources.LoadAsync(ta.image)
}

func (ta *TextureAtlas) Init() error {
	if ta.image.IsReady() {
		return nil
	}
	if err := resources.Finalize(ta.image); err != nil {
		return err
	}
	ta.dirty = image.Rectangle{}
	return nil
}

func (ta *TextureAtlas) Destroy() {
	resources.Release(ta.image)
	ta.skyline = []Skyline{{X: 0, Y: 0, Width: ta.width}}
	ta.dirty = image.Rectangle{}
}

func (ta *TextureAtlas) Image() *graphics.Image { return ta.image }

func (ta *TextureAtlas) Width() int { return ta.width }

func (ta *TextureAtlas) Height() int { return ta.height }

func (ta *TextureAtlas) Padding() int { return ta.padding }

// Skyline returns a copy of the frontier left by the last successful PackRects.
func (ta *TextureAtlas) Skyline() []Skyline {
	out := make([]Skyline, len(ta.skyline))
	copy(out, ta.skyline)
	return out
}

// IsDirty reports whether pixels changed since the last reupload.
func (ta *TextureAtlas) IsDirty() bool { return !ta.dirty.Empty() }

/**
 * @brief Copies a w*h block of RGBA pixels to (x, y), optionally mirrored on either axis.
 * Blocks reaching outside of the canvas are rejected as a whole. With padding > 1 the
 * outermost pixels of the block are also replicated one pixel outwards so bilinear
 * sampling at the edges does not bleed in neighbouring content.
 */
func (ta *TextureAtlas) PutAt(x, y, w, h int, flipH, flipV bool, pixels []byte) error {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > ta.width || y+h > ta.height {
		core.LogError("atlas %q: block %dx%d at (%d, %d) is outside of %dx%d", ta.Name(), w, h, x, y, ta.width, ta.height)
		return fmt.Errorf("%w: %dx%d at (%d, %d)", core.ErrOutOfBounds, w, h, x, y)
	}
	if len(pixels) < w*h*4 {
		return fmt.Errorf("atlas %q: %d bytes for a %dx%d block", ta.Name(), len(pixels), w, h)
	}
	if w == 0 || h == 0 {
		return nil
	}
	dst := ta.image.Pixels()
	if dst == nil {
		return fmt.Errorf("%w: atlas %q has no pixels", core.ErrNotReady, ta.Name())
	}

	for row := 0; row < h; row++ {
		srcRow := row
		if flipV {
			srcRow = h - 1 - row
		}
		if !flipH {
			copy(dst[((y+row)*ta.width+x)*4:((y+row)*ta.width+x+w)*4], pixels[srcRow*w*4:(srcRow+1)*w*4])
			continue
		}
		for col := 0; col < w; col++ {
			s := (srcRow*w + (w - 1 - col)) * 4
			d := ((y+row)*ta.width + x + col) * 4
			copy(dst[d:d+4], pixels[s:s+4])
		}
	}

	region := image.Rect(x, y, x+w, y+h)
	if ta.padding > 1 {
		ta.extendBorder(x, y, w, h)
		region = region.Inset(-1).Intersect(image.Rect(0, 0, ta.width, ta.height))
	}
	ta.markDirty(region)
	return nil
}

// extendBorder copies the outer ring of the block at (x, y, w, h) one pixel outwards.
func (ta *TextureAtlas) extendBorder(x, y, w, h int) {
	for col := x - 1; col <= x+w; col++ {
		src := min(max(col, x), x+w-1)
		ta.copyPixel(src, y, col, y-1)
		ta.copyPixel(src, y+h-1, col, y+h)
	}
	for row := y; row < y+h; row++ {
		ta.copyPixel(x, row, x-1, row)
		ta.copyPixel(x+w-1, row, x+w, row)
	}
}

func (ta *TextureAtlas) copyPixel(sx, sy, dx, dy int) {
	if dx < 0 || dy < 0 || dx >= ta.width || dy >= ta.height {
		return
	}
	pix := ta.image.Pixels()
	s := (sy*ta.width + sx) * 4
	d := (dy*ta.width + dx) * 4
	copy(pix[d:d+4], pix[s:s+4])
}

// ClearRegion zeroes a rectangle of the canvas, clipped to its bounds.
func (ta *TextureAtlas) ClearRegion(x, y, w, h int) {
	r := image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, ta.width, ta.height))
	pix := ta.image.Pixels()
	if r.Empty() || pix == nil {
		return
	}
	for row := r.Min.Y; row < r.Max.Y; row++ {
		clear(pix[(row*ta.width+r.Min.X)*4 : (row*ta.width+r.Max.X)*4])
	}
	ta.markDirty(r)
}

func (ta *TextureAtlas) markDirty(r image.Rectangle) {
	ta.dirty = ta.dirty.Union(r)
}

// Reupload pushes every region written since the last upload. No-op when clean.
func (ta *TextureAtlas) Reupload() error {
	if ta.dirty.Empty() {
		return nil
	}
	if err := ta.ReuploadRegion(ta.dirty); err != nil {
		return err
	}
	ta.dirty = image.Rectangle{}
	return nil
}

func (ta *TextureAtlas) ReuploadRegion(r image.Rectangle) error {
	return ta.image.Reupload(r)
}
