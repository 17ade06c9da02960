package engine

import (
	"github.com/spaghettifunk/mcengine/engine/cache"
	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/systems"
)

// Game is the application driven by the engine. The engine fills the system
// fields before FnInitialize is called.
type Game struct {
	ApplicationConfig *ApplicationConfig
	ResourceManager   *systems.ResourceManager
	Avatars           *cache.AvatarManager
	Thumbnails        *cache.ThumbnailManager
	Events            *core.EventSystem
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) error
type Shutdown func() error
