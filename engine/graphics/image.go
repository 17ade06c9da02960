package graphics

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

/**
 * @brief An RGBA image resource. File backed images decode on InitAsync, blank images
 * allocate a transparent canvas of the requested size. Init uploads the pixels through
 * the backend. Pixel data is straight (non premultiplied) RGBA, 4 bytes per pixel.
 */
type Image struct {
	*resources.Lifecycle

	backend Backend
	handle  TextureHandle

	width  int
	height int
	pixels []byte

	blank bool
	// when > 0 decoded images are downscaled to fit, keeping the aspect ratio
	maxWidth  int
	maxHeight int
}

func NewImage(backend Backend, name, filePath string) *Image {
	return &Image{
		Lifecycle: resources.NewLifecycle(name, filePath),
		backend:   backend,
	}
}

func NewBlankImage(backend Backend, name string, width, height int) *Image {
	return &Image{
		Lifecycle: resources.NewLifecycle(name, ""),
		backend:   backend,
		width:     width,
		height:    height,
		blank:     true,
	}
}

// SetMaxSize bounds the decoded size. Must be called before loading.
func (img *Image) SetMaxSize(width, height int) {
	img.maxWidth = width
	img.maxHeight = height
}

func (img *Image) Type() resources.Type { return resources.TypeImage }

func (img *Image) InitAsync() error {
	if img.blank {
		if img.width <= 0 || img.height <= 0 {
			return fmt.Errorf("blank image %q has invalid size %dx%d", img.Name(), img.width, img.height)
		}
		if len(img.pixels) != img.width*img.height*4 {
			img.pixels = make([]byte, img.width*img.height*4)
		}
		return nil
	}

	src, err := decodeFile(img.FilePath())
	if err != nil {
		return err
	}
	if img.IsInterrupted() {
		return core.ErrInterrupted
	}

	bounds := fitInside(src.Bounds().Size(), img.maxWidth, img.maxHeight)
	dst := image.NewNRGBA(bounds)
	if bounds.Size() == src.Bounds().Size() {
		draw.Draw(dst, bounds, src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, bounds, src, src.Bounds(), draw.Src, nil)
	}

	img.width = bounds.Dx()
	img.height = bounds.Dy()
	img.pixels = dst.Pix
	return nil
}

func (img *Image) Init() error {
	h, err := img.backend.UploadTexture(img.Name(), img.width, img.height, img.pixels)
	if err != nil {
		return fmt.Errorf("failed to upload image %q: %w", img.Name(), err)
	}
	img.handle = h
	return nil
}

func (img *Image) Destroy() {
	if img.handle != 0 {
		img.backend.ReleaseTexture(img.handle)
		img.handle = 0
	}
	// blank canvases keep their pixels so a reload restores the content
	if !img.blank {
		img.pixels = nil
		img.width = 0
		img.height = 0
	}
}

// Reupload pushes the given sub-rectangle of the pixel buffer to the GPU.
func (img *Image) Reupload(region image.Rectangle) error {
	if !img.IsReady() || img.handle == 0 {
		return fmt.Errorf("%w: image %q", core.ErrNotReady, img.Name())
	}
	region = region.Intersect(img.Bounds())
	if region.Empty() {
		return nil
	}
	return img.backend.ReuploadTexture(img.handle, img.pixels, region)
}

func (img *Image) Width() int { return img.width }

func (img *Image) Height() int { return img.height }

func (img *Image) Bounds() image.Rectangle { return image.Rect(0, 0, img.width, img.height) }

// Pixels exposes the backing RGBA buffer. Writers must call Reupload afterwards.
func (img *Image) Pixels() []byte { return img.pixels }

func (img *Image) Handle() TextureHandle { return img.handle }

func (img *Image) SetPixel(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= img.width || y >= img.height || img.pixels == nil {
		return
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	i := (y*img.width + x) * 4
	img.pixels[i+0] = n.R
	img.pixels[i+1] = n.G
	img.pixels[i+2] = n.B
	img.pixels[i+3] = n.A
}

func (img *Image) Pixel(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= img.width || y >= img.height || img.pixels == nil {
		return color.NRGBA{}
	}
	i := (y*img.width + x) * 4
	return color.NRGBA{R: img.pixels[i], G: img.pixels[i+1], B: img.pixels[i+2], A: img.pixels[i+3]}
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	core.LogDebug("decoded %s image %s (%dx%d)", format, path, src.Bounds().Dx(), src.Bounds().Dy())
	return src, nil
}

func fitInside(size image.Point, maxWidth, maxHeight int) image.Rectangle {
	w, h := size.X, size.Y
	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
	}
	if maxHeight > 0 && h > maxHeight {
		w = w * maxHeight / h
		h = maxHeight
	}
	return image.Rect(0, 0, max(w, 1), max(h, 1))
}
