package font

import (
	"github.com/spaghettifunk/mcengine/engine/core"
)

// GlyphQuad is one textured quad of a laid out string. X/Y are relative to the
// pen origin on the baseline, U/V are normalized atlas coordinates.
type GlyphQuad struct {
	Character      rune
	X, Y           float64
	Width, Height  float64
	U0, V0, U1, V1 float64
}

/**
 * @brief Lays out text on a single line and returns one quad per visible glyph. Glyphs
 * missing from the atlas are loaded on the way, the atlas is reuploaded at most once
 * per call. Returns nil while the font is not ready.
 */
func (f *Font) BuildStringGeometry(text string) []GlyphQuad {
	if !f.IsReady() {
		return nil
	}
	quads := make([]GlyphQuad, 0, len(text))
	aw := float64(f.atlas.Width())
	ah := float64(f.atlas.Height())
	pen := 0.0
	for _, r := range text {
		m := f.GetGlyphMetrics(r)
		f.MarkSlotUsed(r)
		if m.SizeX > 0 && m.SizeY > 0 {
			quads = append(quads, GlyphQuad{
				Character: r,
				X:         pen + float64(m.Left),
				Y:         -float64(m.Top),
				Width:     float64(m.SizeX),
				Height:    float64(m.SizeY),
				U0:        float64(m.AtlasX) / aw,
				V0:        float64(m.AtlasY) / ah,
				U1:        float64(m.AtlasX+m.SizeX) / aw,
				V1:        float64(m.AtlasY+m.SizeY) / ah,
			})
		}
		pen += m.Advance
	}
	f.flushAtlas()
	return quads
}

// flushAtlas reuploads the atlas if dynamic glyphs were added since the last flush.
func (f *Font) flushAtlas() {
	if !f.atlasDirty {
		return
	}
	f.atlasDirty = false
	if err := f.atlas.Reupload(); err != nil {
		core.LogError("font %q: atlas reupload failed: %s", f.Name(), err)
	}
}

// StringWidth is the advance of text in pixels.
func (f *Font) StringWidth(text string) float64 {
	if !f.IsReady() {
		return 0
	}
	w := 0.0
	for _, r := range text {
		w += f.GetGlyphMetrics(r).Advance
	}
	f.flushAtlas()
	return w
}

// StringHeight is the tallest top bearing of text in pixels.
func (f *Font) StringHeight(text string) float64 {
	if !f.IsReady() {
		return 0
	}
	h := 0.0
	for _, r := range text {
		h = max(h, float64(f.GetGlyphMetrics(r).Top))
	}
	f.flushAtlas()
	return h
}
