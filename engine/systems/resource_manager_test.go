package systems

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/gomono"

	"github.com/spaghettifunk/mcengine/engine/assets"
	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/font"
	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

// blocker is a resource whose background load waits on gate.
type blocker struct {
	*resources.Lifecycle
	gate     chan struct{}
	started  chan struct{}
	once     sync.Once
	destroys atomic.Int32
}

func newBlocker(name string) *blocker {
	return &blocker{
		Lifecycle: resources.NewLifecycle(name, ""),
		gate:      make(chan struct{}),
		started:   make(chan struct{}),
	}
}

func (b *blocker) Type() resources.Type { return resources.TypeSound }

func (b *blocker) InitAsync() error {
	b.once.Do(func() { close(b.started) })
	<-b.gate
	return nil
}

func (b *blocker) Init() error { return nil }

func (b *blocker) Destroy() { b.destroys.Add(1) }

func testConfig(workers, perTick int) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Resources.Workers = workers
	cfg.Resources.QueueSize = 4
	cfg.Resources.MaxSyncLoadsPerTick = perTick
	return cfg
}

func newTestManager(t *testing.T, cfg *core.Config) (*ResourceManager, *graphics.NullBackend, *core.EventSystem) {
	t.Helper()
	nb := graphics.NewNullBackend()
	events := core.NewEventSystem()
	rm, err := NewResourceManager(cfg, nb, font.NewLibrary(), events)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(rm.Shutdown)
	return rm, nb, events
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func queued(rm *ResourceManager) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.finalize.Len()
}

func countEvents(events *core.EventSystem, code core.SystemEventCode) *atomic.Int32 {
	var n atomic.Int32
	events.Register(code, &n, func(core.EventContext) bool {
		n.Add(1)
		return false
	})
	return &n
}

func TestDuplicateNameReturnsExisting(t *testing.T) {
	rm, nb, _ := newTestManager(t, testConfig(0, 0))

	a := rm.CreateImage("a", 4, 4)
	if again := rm.CreateImage("a", 8, 8); again != a {
		t.Fatal("duplicate name created a second image")
	}
	if again := rm.LoadImage("missing.png", "a"); again != a {
		t.Fatal("LoadImage did not return the existing image")
	}
	if len(rm.Images()) != 1 || len(rm.Resources()) != 1 || nb.Uploads() != 1 {
		t.Fatalf("images=%d resources=%d uploads=%d", len(rm.Images()), len(rm.Resources()), nb.Uploads())
	}
	if rm.GetImage("a") != a || rm.GetResource("a") != a {
		t.Fatal("lookup by name failed")
	}
	if rm.GetFont("a") != nil || rm.GetAtlas("a") != nil {
		t.Fatal("typed lookup returned a resource of another type")
	}
	if rm.CreateTextureAtlas("a", 16, 16, 1) != nil {
		t.Fatal("name clash with another type returned a resource")
	}
}

func TestUnmanagedRequestsStack(t *testing.T) {
	rm, _, _ := newTestManager(t, testConfig(0, 0))

	rm.RequestNextLoadUnmanaged()
	u := rm.CreateImage("scratch", 4, 4)
	if !u.IsReady() || rm.GetImage("scratch") != nil || len(rm.Resources()) != 0 {
		t.Fatal("unmanaged image was registered")
	}

	ta := rm.CreateTextureAtlas("glyphs", 64, 64, 1)
	if !ta.IsReady() || !ta.Image().IsReady() {
		t.Fatal("atlas not ready")
	}
	if len(rm.Atlases()) != 1 || len(rm.Images()) != 0 || len(rm.Resources()) != 1 {
		t.Fatalf("atlases=%d images=%d resources=%d", len(rm.Atlases()), len(rm.Images()), len(rm.Resources()))
	}

	rm.RequestNextLoadUnmanaged()
	rm.RequestNextLoadUnmanaged()
	rm.CreateImage("one", 2, 2)
	rm.CreateImage("two", 2, 2)
	rm.CreateImage("three", 2, 2)
	if rm.GetImage("one") != nil || rm.GetImage("two") != nil || rm.GetImage("three") == nil {
		t.Fatal("unmanaged requests were not consumed one per call")
	}

	rm.DestroyResource(ta, DestroyDefault)
	if ta.Image().State() != resources.StateDestroyed || len(rm.Atlases()) != 0 {
		t.Fatal("atlas did not release its backing image")
	}
}

func TestAsyncLoadsAreThrottledPerTick(t *testing.T) {
	rm, _, events := newTestManager(t, testConfig(2, 2))
	loaded := countEvents(events, core.EVENT_CODE_RESOURCE_LOADED)

	dir := t.TempDir()
	var imgs []*graphics.Image
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		writePNG(t, path, 8, 8)
		rm.RequestNextLoadAsync()
		imgs = append(imgs, rm.LoadImage(path, filepath.Base(path)))
	}
	if !rm.IsLoading() {
		t.Fatal("nothing pending after async requests")
	}
	waitFor(t, "background loads", func() bool { return queued(rm) == 5 })

	ready := func() int {
		n := 0
		for _, img := range imgs {
			if img.IsReady() {
				n++
			}
		}
		return n
	}
	for _, want := range []int{2, 4, 5} {
		rm.Update()
		if got := ready(); got != want {
			t.Fatalf("ready after update = %d, want %d", got, want)
		}
	}
	if rm.IsLoading() || rm.PendingCount() != 0 || loaded.Load() != 5 {
		t.Fatalf("pending=%d loaded events=%d", rm.PendingCount(), loaded.Load())
	}
	if imgs[0].Width() != 8 {
		t.Fatalf("width = %d", imgs[0].Width())
	}
}

func TestAsyncRequestWithoutWorkersLoadsInline(t *testing.T) {
	rm, _, _ := newTestManager(t, testConfig(0, 0))
	rm.RequestNextLoadAsync()
	img := rm.CreateImage("inline", 4, 4)
	if !img.IsReady() || rm.IsLoading() {
		t.Fatal("image not loaded synchronously")
	}
	next := rm.CreateImage("next", 4, 4)
	if !next.IsReady() {
		t.Fatal("async request leaked into the next call")
	}
}

func TestFailedLoadFiresEvent(t *testing.T) {
	rm, _, events := newTestManager(t, testConfig(2, 0))
	failed := countEvents(events, core.EVENT_CODE_RESOURCE_FAILED)

	inline := rm.LoadImage(filepath.Join(t.TempDir(), "nope.png"), "sync")
	if inline.State() != resources.StateFailed || inline.Err() == nil || failed.Load() != 1 {
		t.Fatalf("state=%s failed events=%d", inline.State(), failed.Load())
	}

	rm.RequestNextLoadAsync()
	async := rm.LoadImage(filepath.Join(t.TempDir(), "nope.png"), "async")
	waitFor(t, "failed load", func() bool { return queued(rm) == 1 })
	rm.Update()
	if async.State() != resources.StateFailed || failed.Load() != 2 || rm.IsLoading() {
		t.Fatalf("state=%s failed events=%d", async.State(), failed.Load())
	}
}

func TestForceBlockingDestroyWaitsForWorker(t *testing.T) {
	rm, _, _ := newTestManager(t, testConfig(1, 0))
	b := newBlocker("slow")
	rm.RequestNextLoadAsync()
	rm.LoadResource(b)
	<-b.started

	done := make(chan struct{})
	go func() {
		rm.DestroyResource(b, DestroyForceBlocking)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("destroy returned while the load was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(b.gate)
	<-done

	if b.destroys.Load() != 1 || b.State() != resources.StateDestroyed {
		t.Fatalf("destroys=%d state=%s", b.destroys.Load(), b.State())
	}
	if rm.GetResource("slow") != nil || len(rm.Resources()) != 0 {
		t.Fatal("destroyed resource still registered")
	}
}

func TestDefaultDestroyIsDeferredWhileLoading(t *testing.T) {
	rm, _, events := newTestManager(t, testConfig(1, 0))
	destroyed := countEvents(events, core.EVENT_CODE_RESOURCE_DESTROYED)
	b := newBlocker("slow")
	rm.RequestNextLoadAsync()
	rm.LoadResource(b)
	<-b.started

	rm.DestroyResource(b, DestroyDefault)
	if b.State() != resources.StateInterrupted || b.destroys.Load() != 0 {
		t.Fatalf("state=%s destroys=%d", b.State(), b.destroys.Load())
	}
	rm.Update()
	if b.destroys.Load() != 0 {
		t.Fatal("destroyed while the worker still held the resource")
	}

	close(b.gate)
	waitFor(t, "worker to finish", func() bool { return queued(rm) == 1 })
	rm.Update()
	if b.destroys.Load() != 1 || b.State() != resources.StateDestroyed || destroyed.Load() != 1 {
		t.Fatalf("destroys=%d state=%s events=%d", b.destroys.Load(), b.State(), destroyed.Load())
	}
	if rm.IsLoading() {
		t.Fatal("interrupted load still counted as pending")
	}
}

func TestLoadFontWithCharset(t *testing.T) {
	rm, _, _ := newTestManager(t, testConfig(2, 0))
	path := filepath.Join(t.TempDir(), "mono.ttf")
	if err := os.WriteFile(path, gomono.TTF, 0o644); err != nil {
		t.Fatal(err)
	}

	rm.RequestNextLoadAsync()
	f := rm.LoadFontWithCharset(path, "mono", []rune("abc"), 16, true, 96)
	waitFor(t, "font load", func() bool { return queued(rm) == 1 })
	rm.Update()

	if !f.IsReady() || rm.GetFont("mono") != f || len(rm.Fonts()) != 1 {
		t.Fatal("font not ready or not registered")
	}
	if !f.HasGlyph('a') || f.HasGlyph('d') {
		t.Fatal("charset not honored")
	}
	if len(rm.Atlases()) != 0 {
		t.Fatal("font atlas registered as a managed atlas")
	}
}

func TestBitmapFontThroughManager(t *testing.T) {
	rm, _, _ := newTestManager(t, testConfig(0, 0))
	bf := rm.LoadBitmapFont(filepath.Join(t.TempDir(), "missing.fnt"), "bm")
	if bf.State() != resources.StateFailed || rm.GetBitmapFont("bm") != bf || len(rm.BitmapFonts()) != 1 {
		t.Fatal("failed bitmap font not registered")
	}
	rm.DestroyResources()
	if len(rm.BitmapFonts()) != 0 || len(rm.Resources()) != 0 {
		t.Fatal("DestroyResources left resources behind")
	}
}

func TestReloadResource(t *testing.T) {
	rm, nb, events := newTestManager(t, testConfig(0, 0))
	reloaded := countEvents(events, core.EVENT_CODE_RESOURCE_RELOADED)
	path := filepath.Join(t.TempDir(), "tex.png")
	writePNG(t, path, 4, 4)
	img := rm.LoadImage(path, "tex")

	writePNG(t, path, 6, 2)
	rm.ReloadResource(img)
	if !img.IsReady() || img.Width() != 6 || img.Height() != 2 || reloaded.Load() != 1 {
		t.Fatalf("size %dx%d events=%d", img.Width(), img.Height(), reloaded.Load())
	}
	if nb.LiveTextures() != 1 || nb.Releases() != 1 {
		t.Fatalf("live=%d releases=%d", nb.LiveTextures(), nb.Releases())
	}
}

func TestHotReloadFromWatcher(t *testing.T) {
	rm, _, events := newTestManager(t, testConfig(0, 0))
	reloaded := countEvents(events, core.EVENT_CODE_RESOURCE_RELOADED)
	dir := t.TempDir()
	path := filepath.Join(dir, "tex.png")
	writePNG(t, path, 4, 4)
	img := rm.LoadImage(path, "tex")

	aw, err := assets.NewAssetWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := aw.Watch(dir); err != nil {
		t.Fatal(err)
	}
	rm.WatchAssets(aw)

	writePNG(t, path, 10, 3)
	waitFor(t, "hot reload", func() bool {
		rm.Update()
		return img.Width() == 10
	})
	if !img.IsReady() || img.Height() != 3 || reloaded.Load() == 0 {
		t.Fatalf("state=%s height=%d events=%d", img.State(), img.Height(), reloaded.Load())
	}
}

func TestShutdownDestroysPendingLoads(t *testing.T) {
	rm, nb, _ := newTestManager(t, testConfig(2, 1))
	for i := 0; i < 6; i++ {
		rm.RequestNextLoadAsync()
		rm.CreateImage(string(rune('a'+i)), 16, 16)
	}
	rm.Update()
	rm.Shutdown()

	if len(rm.Resources()) != 0 || rm.IsLoading() {
		t.Fatalf("resources=%d pending=%d", len(rm.Resources()), rm.PendingCount())
	}
	if nb.LiveTextures() != 0 {
		t.Fatalf("%d textures leaked", nb.LiveTextures())
	}
}
