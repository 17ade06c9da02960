package systems

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/mcengine/engine/assets"
	"github.com/spaghettifunk/mcengine/engine/atlas"
	"github.com/spaghettifunk/mcengine/engine/containers"
	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/font"
	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

type DestroyMode int

const (
	// Destroys right away if nothing is loading, otherwise interrupts the load and
	// destroys the resource on a later Update once the worker let go of it.
	DestroyDefault DestroyMode = iota
	// Waits for in-flight async work before destroying.
	DestroyForceBlocking
)

/**
 * @brief Owns every managed resource and drives their loading. Creation calls, Update and
 * destruction are main thread only; InitAsync runs on the job system workers.
 */
type ResourceManager struct {
	config      core.ResourcesConfig
	fontsConfig core.FontsConfig
	backend     graphics.Backend
	lib         *font.Library
	events      *core.EventSystem
	jobs        *JobSystem

	resources   []resources.Resource
	images      []*graphics.Image
	fonts       []*font.Font
	bitmapFonts []*font.BitmapFont
	atlases     []*atlas.TextureAtlas
	byName      map[string]resources.Resource

	nextLoadAsync     bool
	nextLoadUnmanaged []bool

	// async-ready resources waiting for their main thread finalize
	mu        sync.Mutex
	finalize  *containers.RingQueue[resources.Resource]
	reloads   map[string]struct{}
	pending   atomic.Int32
	destroyed []resources.Resource

	watcher     *assets.AssetWatcher
	watcherDone chan struct{}
}

func NewResourceManager(config *core.Config, backend graphics.Backend, lib *font.Library, events *core.EventSystem) (*ResourceManager, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	rm := &ResourceManager{
		config:      config.Resources,
		fontsConfig: config.Fonts,
		backend:     backend,
		lib:         lib,
		events:      events,
		byName:      make(map[string]resources.Resource),
		finalize:    containers.NewRingQueue[resources.Resource](max(config.Resources.QueueSize, 1)),
		reloads:     make(map[string]struct{}),
	}
	if config.Resources.Workers > 0 {
		jobs, err := NewJobSystem(config.Resources.Workers, config.Resources.QueueSize)
		if err != nil {
			return nil, err
		}
		rm.jobs = jobs
	}
	return rm, nil
}

func (rm *ResourceManager) Backend() graphics.Backend { return rm.backend }

func (rm *ResourceManager) Library() *font.Library { return rm.lib }

// RequestNextLoadAsync makes the next creation call load in the background.
func (rm *ResourceManager) RequestNextLoadAsync() {
	rm.nextLoadAsync = true
}

// RequestNextLoadUnmanaged keeps the next created resource out of the manager's
// vectors and name map. Requests stack for nested creation.
func (rm *ResourceManager) RequestNextLoadUnmanaged() {
	rm.nextLoadUnmanaged = append(rm.nextLoadUnmanaged, true)
}

func (rm *ResourceManager) takeFlags() (async, managed bool) {
	async = rm.nextLoadAsync
	rm.nextLoadAsync = false
	managed = true
	if n := len(rm.nextLoadUnmanaged); n > 0 {
		managed = !rm.nextLoadUnmanaged[n-1]
		rm.nextLoadUnmanaged = rm.nextLoadUnmanaged[:n-1]
	}
	return async, managed
}

func (rm *ResourceManager) LoadImage(path, name string) *graphics.Image {
	return create(rm, name, func() *graphics.Image {
		return graphics.NewImage(rm.backend, name, path)
	})
}

func (rm *ResourceManager) CreateImage(name string, width, height int) *graphics.Image {
	return create(rm, name, func() *graphics.Image {
		return graphics.NewBlankImage(rm.backend, name, width, height)
	})
}

// LoadFont loads a font with the ASCII character set that rasterizes missing glyphs on demand,
// searching the fallback fonts of the library.
func (rm *ResourceManager) LoadFont(path, name string, size int, antialiasing bool, dpi int) *font.Font {
	return create(rm, name, func() *font.Font {
		opts := font.OptionsFromConfig(rm.fontsConfig, size, antialiasing, dpi)
		return font.NewFont(rm.lib, rm.backend, path, name, opts)
	})
}

// LoadFontWithCharset loads a font restricted to chars, without fallback search.
func (rm *ResourceManager) LoadFontWithCharset(path, name string, chars []rune, size int, antialiasing bool, dpi int) *font.Font {
	return create(rm, name, func() *font.Font {
		opts := font.OptionsFromConfig(rm.fontsConfig, size, antialiasing, dpi)
		return font.NewFontWithCharset(rm.lib, rm.backend, path, name, chars, opts)
	})
}

func (rm *ResourceManager) LoadBitmapFont(path, name string) *font.BitmapFont {
	return create(rm, name, func() *font.BitmapFont {
		return font.NewBitmapFont(rm.backend, path, name)
	})
}

// CreateTextureAtlas creates an atlas backed by an unmanaged blank image. The atlas
// owns the image and releases it when destroyed.
func (rm *ResourceManager) CreateTextureAtlas(name string, width, height, padding int) *atlas.TextureAtlas {
	return create(rm, name, func() *atlas.TextureAtlas {
		rm.RequestNextLoadUnmanaged()
		img := rm.CreateImage(name+"-image", width, height)
		return atlas.NewWithImage(name, img, padding)
	})
}

// LoadResource registers and loads a resource built by the caller, honoring the
// async and unmanaged requests like every other creation call.
func (rm *ResourceManager) LoadResource(r resources.Resource) resources.Resource {
	return create(rm, r.Name(), func() resources.Resource { return r })
}

// create consumes the load requests, resolves duplicates and loads what build returns.
func create[T resources.Resource](rm *ResourceManager, name string, build func() T) T {
	async, managed := rm.takeFlags()
	if t, ok := existing[T](rm, name, managed); ok {
		return t
	}
	r := build()
	if managed {
		rm.register(r)
	}
	rm.load(r, async)
	return r
}

// existing returns the resource already registered under name. A resource of another
// type under the same name yields the zero value.
func existing[T resources.Resource](rm *ResourceManager, name string, managed bool) (T, bool) {
	var zero T
	if !managed || name == "" {
		return zero, false
	}
	r, ok := rm.byName[name]
	if !ok {
		return zero, false
	}
	core.LogWarn("resource %q already exists, returning it", name)
	t, ok := r.(T)
	if !ok {
		core.LogError("resource %q is a %s", name, r.Type())
		return zero, true
	}
	return t, true
}

func (rm *ResourceManager) register(r resources.Resource) {
	rm.resources = append(rm.resources, r)
	if r.Name() != "" {
		rm.byName[r.Name()] = r
	}
	switch v := r.(type) {
	case *graphics.Image:
		rm.images = append(rm.images, v)
	case *font.Font:
		rm.fonts = append(rm.fonts, v)
	case *font.BitmapFont:
		rm.bitmapFonts = append(rm.bitmapFonts, v)
	case *atlas.TextureAtlas:
		rm.atlases = append(rm.atlases, v)
	}
}

func (rm *ResourceManager) load(r resources.Resource, async bool) {
	if async && rm.jobs != nil {
		rm.loadAsync(r)
		return
	}
	if err := resources.Load(r); err != nil {
		core.LogError("failed to load %s %q: %s", r.Type(), r.Name(), err)
		rm.fire(core.EVENT_CODE_RESOURCE_FAILED, r)
		return
	}
	rm.fire(core.EVENT_CODE_RESOURCE_LOADED, r)
}

func (rm *ResourceManager) loadAsync(r resources.Resource) {
	if err := resources.Begin(r); err != nil {
		core.LogError("failed to schedule %s %q: %s", r.Type(), r.Name(), err)
		return
	}
	rm.pending.Add(1)
	err := rm.jobs.Submit(context.Background(), JobTask{
		Name:    r.Name(),
		OnStart: func() error { return resources.RunAsync(r) },
		OnCompletionCallback: func() {
			rm.enqueue(r)
		},
	})
	if err != nil {
		// the job system is gone, finish the background half here
		resources.RunAsync(r)
		rm.enqueue(r)
	}
}

// QueueFinalize hands a resource that went through resources.Begin to the manager.
// Update finalizes it once its RunAsync returned.
func (rm *ResourceManager) QueueFinalize(r resources.Resource) {
	rm.pending.Add(1)
	rm.enqueue(r)
}

func (rm *ResourceManager) enqueue(r resources.Resource) {
	rm.mu.Lock()
	rm.finalize.Enqueue(r)
	rm.mu.Unlock()
}

func (rm *ResourceManager) dequeue() (resources.Resource, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	r, err := rm.finalize.Dequeue()
	if err != nil {
		return nil, false
	}
	return r, true
}

/**
 * @brief Main thread tick. Applies pending hot reloads, finalizes up to
 * max_sync_loads_per_tick async-ready resources and destroys resources whose
 * destruction was deferred until their worker finished.
 */
func (rm *ResourceManager) Update() {
	rm.applyReloads()

	limit := rm.config.MaxSyncLoadsPerTick
	finalized := 0
	for limit == 0 || finalized < limit {
		r, ok := rm.dequeue()
		if !ok {
			break
		}
		l := r.Base()
		if l.IsBusy() {
			// queued before RunAsync returned
			rm.enqueue(r)
			break
		}
		rm.pending.Add(-1)

		switch l.State() {
		case resources.StateAsyncReady:
			finalized++
			if err := resources.Finalize(r); err != nil {
				core.LogError("failed to finalize %s %q: %s", r.Type(), r.Name(), err)
				rm.fire(core.EVENT_CODE_RESOURCE_FAILED, r)
				continue
			}
			rm.fire(core.EVENT_CODE_RESOURCE_LOADED, r)
		case resources.StateFailed:
			core.LogError("failed to load %s %q: %s", r.Type(), r.Name(), l.Err())
			rm.fire(core.EVENT_CODE_RESOURCE_FAILED, r)
		default:
			core.LogDebug("skipping %s %q in state %s", r.Type(), r.Name(), l.State())
		}
	}

	rm.destroyDeferred()
}

func (rm *ResourceManager) destroyDeferred() {
	if len(rm.destroyed) == 0 {
		return
	}
	kept := rm.destroyed[:0]
	for _, r := range rm.destroyed {
		if r.Base().IsBusy() {
			kept = append(kept, r)
			continue
		}
		rm.release(r)
	}
	clear(rm.destroyed[len(kept):])
	rm.destroyed = kept
}

func (rm *ResourceManager) release(r resources.Resource) {
	resources.Release(r)
	rm.fire(core.EVENT_CODE_RESOURCE_DESTROYED, r)
}

// ReloadResource destroys and loads r again, honoring RequestNextLoadAsync.
func (rm *ResourceManager) ReloadResource(r resources.Resource) {
	async, _ := rm.takeFlags()
	if r == nil {
		return
	}
	if r.Base().IsBusy() {
		core.LogWarn("not reloading %s %q while it is loading", r.Type(), r.Name())
		return
	}
	resources.Release(r)
	if async && rm.jobs != nil {
		rm.loadAsync(r)
		return
	}
	if err := resources.Load(r); err != nil {
		core.LogError("failed to reload %s %q: %s", r.Type(), r.Name(), err)
		rm.fire(core.EVENT_CODE_RESOURCE_FAILED, r)
		return
	}
	rm.fire(core.EVENT_CODE_RESOURCE_RELOADED, r)
}

// DestroyResource removes r from the manager and destroys it. Unmanaged resources
// are accepted too.
func (rm *ResourceManager) DestroyResource(r resources.Resource, mode DestroyMode) {
	if r == nil {
		return
	}
	rm.unregister(r)

	l := r.Base()
	if mode == DestroyForceBlocking || !l.IsBusy() {
		rm.release(r)
		return
	}
	l.Interrupt()
	rm.destroyed = append(rm.destroyed, r)
}

// DestroyResources destroys every managed resource, newest first, waiting for
// in-flight loads.
func (rm *ResourceManager) DestroyResources() {
	for len(rm.resources) > 0 {
		rm.DestroyResource(rm.resources[len(rm.resources)-1], DestroyForceBlocking)
	}
}

func (rm *ResourceManager) unregister(r resources.Resource) {
	rm.resources = remove(rm.resources, r)
	if rm.byName[r.Name()] == r {
		delete(rm.byName, r.Name())
	}
	switch v := r.(type) {
	case *graphics.Image:
		rm.images = remove(rm.images, v)
	case *font.Font:
		rm.fonts = remove(rm.fonts, v)
	case *font.BitmapFont:
		rm.bitmapFonts = remove(rm.bitmapFonts, v)
	case *atlas.TextureAtlas:
		rm.atlases = remove(rm.atlases, v)
	}
}

func remove[T comparable](s []T, v T) []T {
	return slices.DeleteFunc(s, func(e T) bool { return e == v })
}

// IsLoading reports whether async loads are waiting to be finalized.
func (rm *ResourceManager) IsLoading() bool { return rm.pending.Load() > 0 }

func (rm *ResourceManager) PendingCount() int { return int(rm.pending.Load()) }

/**
 * @brief Watches w for file changes. A change to the file of a managed resource
 * reloads it on the next Update.
 */
func (rm *ResourceManager) WatchAssets(w *assets.AssetWatcher) {
	if w == nil || rm.watcher != nil {
		return
	}
	rm.watcher = w
	rm.watcherDone = make(chan struct{})
	go func() {
		defer close(rm.watcherDone)
		for path := range w.Changes() {
			rm.mu.Lock()
			rm.reloads[path] = struct{}{}
			rm.mu.Unlock()
		}
	}()
}

func (rm *ResourceManager) applyReloads() {
	rm.mu.Lock()
	if len(rm.reloads) == 0 {
		rm.mu.Unlock()
		return
	}
	changed := rm.reloads
	rm.reloads = make(map[string]struct{})
	rm.mu.Unlock()

	for _, r := range slices.Clone(rm.resources) {
		if r.FilePath() == "" {
			continue
		}
		path, err := filepath.Abs(r.FilePath())
		if err != nil {
			continue
		}
		if _, ok := changed[path]; ok {
			core.LogInfo("reloading %s %q after change of %s", r.Type(), r.Name(), path)
			rm.ReloadResource(r)
		}
	}
}

func (rm *ResourceManager) fire(code core.SystemEventCode, r resources.Resource) {
	if rm.events != nil {
		rm.events.Fire(code, r, nil)
	}
}

// Resources returns the managed resources in creation order.
func (rm *ResourceManager) Resources() []resources.Resource { return rm.resources }

func (rm *ResourceManager) Images() []*graphics.Image { return rm.images }

func (rm *ResourceManager) Fonts() []*font.Font { return rm.fonts }

func (rm *ResourceManager) BitmapFonts() []*font.BitmapFont { return rm.bitmapFonts }

func (rm *ResourceManager) Atlases() []*atlas.TextureAtlas { return rm.atlases }

func (rm *ResourceManager) GetResource(name string) resources.Resource { return rm.byName[name] }

func (rm *ResourceManager) GetImage(name string) *graphics.Image { return get[*graphics.Image](rm, name) }

func (rm *ResourceManager) GetFont(name string) *font.Font { return get[*font.Font](rm, name) }

func (rm *ResourceManager) GetBitmapFont(name string) *font.BitmapFont {
	return get[*font.BitmapFont](rm, name)
}

func (rm *ResourceManager) GetAtlas(name string) *atlas.TextureAtlas {
	return get[*atlas.TextureAtlas](rm, name)
}

func get[T resources.Resource](rm *ResourceManager, name string) T {
	t, _ := rm.byName[name].(T)
	return t
}

/**
 * @brief Stops the job system and destroys every managed resource. Loads still queued
 * are interrupted first so the workers drain quickly.
 */
func (rm *ResourceManager) Shutdown() {
	for _, r := range rm.resources {
		r.Base().Interrupt()
	}
	if rm.jobs != nil {
		rm.jobs.Shutdown()
	}
	rm.DestroyResources()
	for _, r := range rm.destroyed {
		rm.release(r)
	}
	rm.destroyed = nil

	rm.mu.Lock()
	for !rm.finalize.IsEmpty() {
		rm.finalize.Dequeue()
	}
	rm.mu.Unlock()
	rm.pending.Store(0)

	if rm.watcher != nil {
		rm.watcher.Close()
		<-rm.watcherDone
		rm.watcher = nil
	}
}
