package graphics

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

/** @brief Opaque handle of a texture living on the GPU. Zero is never valid. */
type TextureHandle uint32

/**
 * @brief The subset of a rendering backend the resource core needs: upload RGBA pixels as
 * a 2D texture, push a changed sub-rectangle again and release the texture.
 * Implementations are only called from the main thread.
 */
type Backend interface {
	UploadTexture(name string, width, height int, rgba []byte) (TextureHandle, error)
	/** @brief rgba is the full image, region selects the rows/columns that changed. */
	ReuploadTexture(handle TextureHandle, rgba []byte, region image.Rectangle) error
	ReleaseTexture(handle TextureHandle)
}

// NullBackend keeps no GPU state. It only counts calls, which makes it the
// backend of headless runs and tests.
type NullBackend struct {
	nextHandle atomic.Uint32
	uploads    atomic.Int64
	reuploads  atomic.Int64
	releases   atomic.Int64

	mu         sync.Mutex
	live       map[TextureHandle]image.Point
	lastRegion image.Rectangle
}

func NewNullBackend() *NullBackend {
	return &NullBackend{live: make(map[TextureHandle]image.Point)}
}

func (nb *NullBackend) UploadTexture(name string, width, height int, rgba []byte) (TextureHandle, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("texture %q has invalid size %dx%d", name, width, height)
	}
	if len(rgba) < width*height*4 {
		return 0, fmt.Errorf("texture %q: %d bytes for %dx%d RGBA", name, len(rgba), width, height)
	}
	h := TextureHandle(nb.nextHandle.Add(1))
	nb.uploads.Add(1)

	nb.mu.Lock()
	nb.live[h] = image.Pt(width, height)
	nb.mu.Unlock()
	return h, nil
}

func (nb *NullBackend) ReuploadTexture(handle TextureHandle, rgba []byte, region image.Rectangle) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	size, ok := nb.live[handle]
	if !ok {
		return fmt.Errorf("reupload of unknown texture %d", handle)
	}
	if !region.In(image.Rect(0, 0, size.X, size.Y)) {
		return fmt.Errorf("reupload region %v outside of %dx%d texture", region, size.X, size.Y)
	}
	nb.lastRegion = region
	nb.reuploads.Add(1)
	return nil
}

func (nb *NullBackend) ReleaseTexture(handle TextureHandle) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, ok := nb.live[handle]; !ok {
		return
	}
	delete(nb.live, handle)
	nb.releases.Add(1)
}

func (nb *NullBackend) Uploads() int64   { return nb.uploads.Load() }
func (nb *NullBackend) Reuploads() int64 { return nb.reuploads.Load() }
func (nb *NullBackend) Releases() int64  { return nb.releases.Load() }

// LiveTextures is the number of uploaded and not yet released textures.
func (nb *NullBackend) LiveTextures() int {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	return len(nb.live)
}

func (nb *NullBackend) LastRegion() image.Rectangle {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	return nb.lastRegion
}
