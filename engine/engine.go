package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/mcengine/engine/assets"
	"github.com/spaghettifunk/mcengine/engine/cache"
	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/font"
	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every subsystem
	EngineStageShutdown
)

/**
 * @brief Headless engine: owns the graphics backend, the font library, the resource
 * manager and the image caches, and ticks the game together with the resource
 * manager once per frame.
 */
type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	isRunning    atomic.Bool

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64
	frames   uint64

	events          *core.EventSystem
	backend         *graphics.NullBackend
	library         *font.Library
	resourceManager *systems.ResourceManager
	avatars         *cache.AvatarManager
	thumbnails      *cache.ThumbnailManager
	watcher         *assets.AssetWatcher
}

func New(cfg *core.Config, g *Game) (*Engine, error) {
	if g == nil {
		return nil, errors.New("engine needs a game instance")
	}
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = &ApplicationConfig{Name: "McEngine"}
	}
	if err := core.LogSetLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("%w: log.level %q", core.ErrInvalidConfig, cfg.Log.Level)
	}

	events := core.NewEventSystem()
	backend := graphics.NewNullBackend()
	lib := font.NewLibrary()

	rm, err := systems.NewResourceManager(cfg, backend, lib, events)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	avatars, err := cache.NewAvatarManager(rm, cfg.Cache.AvatarDir, cfg.Cache.AvatarCapacity)
	if err != nil {
		return nil, err
	}
	thumbnails, err := cache.NewThumbnailManager(rm, cfg.Cache.ThumbnailCapacity, cfg.Cache.PrefetchConcurrency)
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage:    EngineStageUninitialized,
		gameInstance:    g,
		config:          cfg,
		clock:           core.NewClock(),
		metrics:         core.NewMetrics(),
		events:          events,
		backend:         backend,
		library:         lib,
		resourceManager: rm,
		avatars:         avatars,
		thumbnails:      thumbnails,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)

	var systemFonts []string
	if e.config.Fonts.SystemFallbacks {
		systemFonts = font.DefaultSystemFontPaths()
	}
	e.library.DiscoverFallbacks(e.config.Fonts.BundledFallbackDir, systemFonts)

	if e.config.Resources.HotReload {
		if err := e.watchAssets(e.config.Resources.AssetDir); err != nil {
			core.LogWarn("hot reload disabled: %s", err)
		}
	}

	g := e.gameInstance
	g.ResourceManager = e.resourceManager
	g.Avatars = e.avatars
	g.Thumbnails = e.thumbnails
	g.Events = e.events
	if g.FnInitialize != nil {
		if err := g.FnInitialize(); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) watchAssets(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	w, err := assets.NewAssetWatcher()
	if err != nil {
		return err
	}
	if err := w.Watch(dir); err != nil {
		w.Close()
		return err
	}
	e.watcher = w
	e.resourceManager.WatchAssets(w)
	core.LogInfo("watching %s for asset changes", dir)
	return nil
}

/**
 * @brief Runs the frame loop until the game quits, ctx is done or, if frames is
 * positive, that many frames were produced.
 */
func (e *Engine) Run(ctx context.Context, frames int) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run from stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	app := e.gameInstance.ApplicationConfig
	var targetFrameSeconds float64
	if app.TargetFrameRate > 0 {
		targetFrameSeconds = 1.0 / float64(app.TargetFrameRate)
	}

	for e.isRunning.Load() {
		if frames > 0 && e.frames >= uint64(frames) {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := time.Now()

		if fn := e.gameInstance.FnUpdate; fn != nil {
			if err := fn(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				return err
			}
		}

		// finalize whatever the workers finished since the last frame
		e.resourceManager.Update()

		if fn := e.gameInstance.FnRender; fn != nil {
			if err := fn(delta); err != nil {
				core.LogError("Game render failed, shutting down.")
				return err
			}
		}

		// Figure out how long the frame took and, if below
		frameElapsedTime := time.Since(frameStartTime).Seconds()
		e.metrics.Update(frameElapsedTime)
		if remaining := targetFrameSeconds - frameElapsedTime; remaining > 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		e.frames++
		if app.StatsInterval > 0 && e.frames%uint64(app.StatsInterval) == 0 {
			fps, ms := e.metrics.Frame()
			core.LogInfo("frame %d: %.0f fps, %.3f ms, %d textures, %d reuploads, %d loading",
				e.frames, fps, ms, e.backend.LiveTextures(), e.backend.Reuploads(), e.resourceManager.PendingCount())
		}

		// Update last time
		e.lastTime = currentTime
	}

	e.isRunning.Store(false)
	e.currentStage = EngineStageInitialized
	return nil
}

// Stop ends the frame loop after the current frame. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, nil)
}

// Shutdown tears the subsystems down in reverse order of creation.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var err error
	if fn := e.gameInstance.FnShutdown; fn != nil {
		err = fn()
	}
	e.thumbnails.Clear()
	e.avatars.Clear()
	// closes the asset watcher as well
	e.resourceManager.Shutdown()
	e.library.Shutdown()
	e.events.Shutdown()

	e.currentStage = EngineStageShutdown
	return err
}

func (e *Engine) onEvent(ctx core.EventContext) bool {
	switch ctx.Code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
	}
	return false
}

func (e *Engine) Stage() Stage { return e.currentStage }

func (e *Engine) Frames() uint64 { return e.frames }

func (e *Engine) Config() *core.Config { return e.config }

func (e *Engine) Events() *core.EventSystem { return e.events }

func (e *Engine) Backend() *graphics.NullBackend { return e.backend }

func (e *Engine) Library() *font.Library { return e.library }

func (e *Engine) ResourceManager() *systems.ResourceManager { return e.resourceManager }

func (e *Engine) Metrics() *core.Metrics { return e.metrics }
