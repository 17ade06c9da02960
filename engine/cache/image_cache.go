package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/systems"
)

// imageCache keeps at most capacity images loaded, destroying the least recently
// requested one when a new key comes in.
type imageCache[K comparable] struct {
	manager *systems.ResourceManager
	lru     *lru.Cache[K, *graphics.Image]
	pathOf  func(K) string

	maxWidth, maxHeight int

	evictions atomic.Int64
	clearing  atomic.Bool
}

func newImageCache[K comparable](manager *systems.ResourceManager, capacity int, pathOf func(K) string) (*imageCache[K], error) {
	c := &imageCache[K]{
		manager: manager,
		pathOf:  pathOf,
	}
	l, err := lru.NewWithEvict[K, *graphics.Image](capacity, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

func (c *imageCache[K]) onEvict(_ K, img *graphics.Image) {
	if !c.clearing.Load() {
		c.evictions.Add(1)
	}
	c.manager.DestroyResource(img, systems.DestroyDefault)
}

func (c *imageCache[K]) newImage(key K) *graphics.Image {
	img := graphics.NewImage(c.manager.Backend(), "", c.pathOf(key))
	if c.maxWidth > 0 && c.maxHeight > 0 {
		img.SetMaxSize(c.maxWidth, c.maxHeight)
	}
	return img
}

// request returns the image of key once it is ready, scheduling its load on the
// first request.
func (c *imageCache[K]) request(key K) *graphics.Image {
	img, ok := c.lru.Get(key)
	if !ok {
		img = c.newImage(key)
		c.manager.RequestNextLoadAsync()
		c.manager.RequestNextLoadUnmanaged()
		c.manager.LoadResource(img)
		c.lru.Add(key, img)
	}
	if !img.IsReady() {
		return nil
	}
	return img
}

func (c *imageCache[K]) contains(key K) bool { return c.lru.Contains(key) }

func (c *imageCache[K]) clear() {
	c.clearing.Store(true)
	c.lru.Purge()
	c.clearing.Store(false)
}
