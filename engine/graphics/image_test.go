package graphics

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImageLoadFromFile(t *testing.T) {
	nb := NewNullBackend()
	img := NewImage(nb, "pic", writePNG(t, 8, 4))
	if err := resources.Load(img); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Width() != 8 || img.Height() != 4 {
		t.Fatalf("size = %dx%d", img.Width(), img.Height())
	}
	if got := img.Pixel(3, 2); got != (color.NRGBA{R: 3, G: 2, B: 7, A: 255}) {
		t.Fatalf("pixel(3,2) = %v", got)
	}
	if nb.Uploads() != 1 || img.Handle() == 0 {
		t.Fatalf("uploads=%d handle=%d", nb.Uploads(), img.Handle())
	}

	resources.Release(img)
	if nb.LiveTextures() != 0 || img.Pixels() != nil {
		t.Fatal("destroy kept texture or pixels")
	}
}

func TestImageMissingFileFails(t *testing.T) {
	img := NewImage(NewNullBackend(), "missing", filepath.Join(t.TempDir(), "nope.png"))
	if err := resources.Load(img); err == nil {
		t.Fatal("expected error")
	}
	if img.IsReady() || img.State() != resources.StateFailed {
		t.Fatalf("state = %s", img.State())
	}
}

func TestImageMaxSize(t *testing.T) {
	img := NewImage(NewNullBackend(), "thumb", writePNG(t, 40, 20))
	img.SetMaxSize(10, 10)
	if err := resources.Load(img); err != nil {
		t.Fatal(err)
	}
	if img.Width() != 10 || img.Height() != 5 {
		t.Fatalf("scaled size = %dx%d, want 10x5", img.Width(), img.Height())
	}
}

func TestBlankImageReupload(t *testing.T) {
	nb := NewNullBackend()
	img := NewBlankImage(nb, "canvas", 16, 16)

	if err := img.Reupload(img.Bounds()); !errors.Is(err, core.ErrNotReady) {
		t.Fatalf("reupload before load = %v", err)
	}
	if err := resources.Load(img); err != nil {
		t.Fatal(err)
	}
	img.SetPixel(1, 1, color.White)
	if err := img.Reupload(image.Rect(0, 0, 4, 4)); err != nil {
		t.Fatal(err)
	}
	if nb.Reuploads() != 1 || nb.LastRegion() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("reuploads=%d region=%v", nb.Reuploads(), nb.LastRegion())
	}
	// clipped to the image bounds
	if err := img.Reupload(image.Rect(8, 8, 100, 100)); err != nil {
		t.Fatal(err)
	}
	if nb.LastRegion() != image.Rect(8, 8, 16, 16) {
		t.Fatalf("clipped region = %v", nb.LastRegion())
	}

	if err := resources.Reload(img); err != nil {
		t.Fatal(err)
	}
	if got := img.Pixel(1, 1); got.A != 255 {
		t.Fatalf("blank canvas lost its content on reload: %v", got)
	}
	if nb.LiveTextures() != 1 || nb.Releases() != 1 {
		t.Fatalf("live=%d releases=%d", nb.LiveTextures(), nb.Releases())
	}
}
