package testbed

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/spaghettifunk/mcengine/engine"
	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/font"
)

// Characters of the HUD font. It never searches fallback fonts.
const hudCharset = "0123456789 .,:/-FPSmsglyphsquadtexture"

var defaultSamples = []string{
	"The quick brown fox jumps over the lazy dog",
	"Ünïcödé wörks: àéîõü ßÇñ",
	"Ελληνικά και кириллица",
	"中文 falls back or resolves to '?'",
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	fontDir string
	samples []string

	hud     *font.Font
	general *font.Font

	frame   uint64
	quads   int
	loaded  int
	elapsed float64
}

// NewTestGame renders samples each frame. With no samples a built-in set mixing
// ASCII, Latin-1, Greek, Cyrillic and CJK text is used.
func NewTestGame(samples ...string) *TestGame {
	if len(samples) == 0 {
		samples = defaultSamples
	}
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:            "McEngine testbed",
				TargetFrameRate: 60,
				StatsInterval:   60,
			},
			State: &gameState{
				samples: samples,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.ResourceManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}
	state := g.State.(*gameState)

	dir, err := os.MkdirTemp("", "mcengine-fonts-")
	if err != nil {
		return err
	}
	state.fontDir = dir
	monoPath, err := writeFont(dir, "gomono.ttf", gomono.TTF)
	if err != nil {
		return err
	}
	regularPath, err := writeFont(dir, "goregular.ttf", goregular.TTF)
	if err != nil {
		return err
	}
	// the mono face doubles as the last resort fallback of the general font
	if err := g.ResourceManager.Library().AddFallbackFont(monoPath); err != nil {
		core.LogWarn("failed to add fallback font: %s", err)
	}

	g.Events.Register(core.EVENT_CODE_RESOURCE_LOADED, g, g.onResourceEvent)
	g.Events.Register(core.EVENT_CODE_RESOURCE_FAILED, g, g.onResourceEvent)

	// needed on the first frame, load it right away
	state.hud = g.ResourceManager.LoadFontWithCharset(monoPath, "hud", []rune(hudCharset), 14, true, 96)

	g.ResourceManager.RequestNextLoadAsync()
	state.general = g.ResourceManager.LoadFont(regularPath, "general", 18, true, 96)

	return nil
}

func writeFont(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.frame++
	state.elapsed += deltaTime
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	state := g.State.(*gameState)

	quads := 0
	if state.general.IsReady() {
		for _, s := range state.samples {
			quads += len(state.general.BuildStringGeometry(s))
		}
	}
	hud := fmt.Sprintf("%d glyphs %.2f ms", quads, deltaTime*1000)
	quads += len(state.hud.BuildStringGeometry(hud))
	state.quads = quads

	if state.frame%120 == 0 && state.general.IsReady() {
		lib := g.ResourceManager.Library()
		core.LogInfo("frame %d: %d quads, %d dynamic glyph loads, %d fallback scans, atlas %dx%d",
			state.frame, quads, state.general.DynamicLoads(), lib.FallbackScans(),
			state.general.Atlas().Width(), state.general.Atlas().Height())
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	core.LogInfo("testbed ran %d frames in %.2fs, %d resources loaded", state.frame, state.elapsed, state.loaded)
	if state.fontDir != "" {
		return os.RemoveAll(state.fontDir)
	}
	return nil
}

func (g *TestGame) onResourceEvent(ctx core.EventContext) bool {
	state := g.State.(*gameState)
	type named interface{ Name() string }
	name := "?"
	if r, ok := ctx.Sender.(named); ok {
		name = r.Name()
	}
	switch ctx.Code {
	case core.EVENT_CODE_RESOURCE_LOADED:
		state.loaded++
		core.LogDebug("resource %q loaded", name)
	case core.EVENT_CODE_RESOURCE_FAILED:
		core.LogWarn("resource %q failed to load", name)
	}
	return false
}

// Quads returns the number of glyph quads built by the last rendered frame.
func (g *TestGame) Quads() int { return g.State.(*gameState).quads }
