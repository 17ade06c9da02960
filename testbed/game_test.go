package testbed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spaghettifunk/mcengine/engine"
	"github.com/spaghettifunk/mcengine/engine/core"
)

func TestTestbedRendersSamples(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Fonts.BundledFallbackDir = t.TempDir()
	cfg.Fonts.SystemFallbacks = false
	cfg.Cache.AvatarDir = t.TempDir()

	tb := NewTestGame("héllo wörld")
	tb.ApplicationConfig.TargetFrameRate = 0
	tb.ApplicationConfig.StatsInterval = 0

	e, err := engine.New(cfg, tb.Game)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	state := tb.State.(*gameState)
	if !state.hud.IsReady() {
		t.Fatal("hud font not loaded synchronously")
	}

	deadline := time.Now().Add(10 * time.Second)
	for frames := 1; !state.general.IsReady(); frames++ {
		if time.Now().After(deadline) {
			t.Fatal("general font never became ready")
		}
		if err := e.Run(context.Background(), frames); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if err := e.Run(context.Background(), int(e.Frames())+1); err != nil {
		t.Fatal(err)
	}

	// "héllo wörld" has no quad for the space, the hud line adds its own
	if tb.Quads() < 10 {
		t.Fatalf("quads = %d", tb.Quads())
	}
	if !state.general.HasGlyph('é') || !state.general.HasGlyph('ö') {
		t.Fatal("non-ASCII glyphs were not loaded dynamically")
	}
	if state.loaded < 2 {
		t.Fatalf("loaded events = %d", state.loaded)
	}

	dir := state.fontDir
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("font directory not removed")
	}
}
