package cache

import (
	"fmt"

	"github.com/remeh/sizedwaitgroup"

	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/resources"
	"github.com/spaghettifunk/mcengine/engine/systems"
)

type ThumbnailKey struct {
	SetID int32
	Path  string
}

// ThumbnailManager caches beatmap set thumbnails, keyed by set and image path.
type ThumbnailManager struct {
	cache       *imageCache[ThumbnailKey]
	concurrency int
}

func NewThumbnailManager(manager *systems.ResourceManager, capacity, concurrency int) (*ThumbnailManager, error) {
	c, err := newImageCache(manager, capacity, func(key ThumbnailKey) string { return key.Path })
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache: %w", err)
	}
	return &ThumbnailManager{
		cache:       c,
		concurrency: max(concurrency, 1),
	}, nil
}

// SetMaxSize downscales thumbnails loaded from now on to fit width x height.
func (tm *ThumbnailManager) SetMaxSize(width, height int) {
	tm.cache.maxWidth = width
	tm.cache.maxHeight = height
}

func (tm *ThumbnailManager) Request(key ThumbnailKey) *graphics.Image {
	return tm.cache.request(key)
}

/**
 * @brief Decodes the thumbnails of keys that are not cached yet, at most concurrency
 * at a time, and blocks until all of them are decoded. The GPU upload happens on the
 * next ResourceManager.Update.
 * @returns the number of thumbnails scheduled.
 */
func (tm *ThumbnailManager) Prefetch(keys []ThumbnailKey) int {
	swg := sizedwaitgroup.New(tm.concurrency)
	var batch []*graphics.Image
	for _, key := range keys {
		if tm.cache.contains(key) {
			continue
		}
		img := tm.cache.newImage(key)
		if err := resources.Begin(img); err != nil {
			core.LogWarn("failed to prefetch %s: %s", key.Path, err)
			continue
		}
		batch = append(batch, img)
		tm.cache.lru.Add(key, img)

		swg.Add()
		go func() {
			defer swg.Done()
			resources.RunAsync(img)
		}()
	}
	swg.Wait()

	for _, img := range batch {
		tm.cache.manager.QueueFinalize(img)
	}
	core.LogDebug("prefetched %d thumbnails", len(batch))
	return len(batch)
}

func (tm *ThumbnailManager) Evictions() int64 { return tm.cache.evictions.Load() }

func (tm *ThumbnailManager) Len() int { return tm.cache.lru.Len() }

func (tm *ThumbnailManager) Clear() { tm.cache.clear() }
