package cache

import (
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/systems"
)

type AvatarKey struct {
	UserID int32
	Server string
}

/**
 * @brief LRU cache of user avatars. Avatars are read from <dir>/<server>/<user id>.png
 * and loaded in the background through the resource manager.
 */
type AvatarManager struct {
	cache *imageCache[AvatarKey]
	dir   string
}

func NewAvatarManager(manager *systems.ResourceManager, dir string, capacity int) (*AvatarManager, error) {
	am := &AvatarManager{dir: dir}
	c, err := newImageCache(manager, capacity, am.path)
	if err != nil {
		return nil, fmt.Errorf("failed to create avatar cache: %w", err)
	}
	am.cache = c
	return am, nil
}

func (am *AvatarManager) path(key AvatarKey) string {
	return filepath.Join(am.dir, key.Server, fmt.Sprintf("%d.png", key.UserID))
}

// Request returns the avatar of key, or nil while it is still loading or failed to load.
func (am *AvatarManager) Request(key AvatarKey) *graphics.Image {
	return am.cache.request(key)
}

func (am *AvatarManager) Evictions() int64 { return am.cache.evictions.Load() }

func (am *AvatarManager) Len() int { return am.cache.lru.Len() }

// Clear destroys every cached avatar.
func (am *AvatarManager) Clear() { am.cache.clear() }
