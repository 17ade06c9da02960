package font

import (
	"fmt"
	"path/filepath"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

type kerningPair struct {
	first, second rune
}

/**
 * @brief A pre-baked AngelCode bitmap font (.fnt text descriptor plus page images).
 * Only page 0 is used as texture. The glyph set is closed: characters missing from
 * the descriptor resolve to '?' if present, otherwise to an empty glyph.
 */
type BitmapFont struct {
	*resources.Lifecycle

	backend graphics.Backend

	face       string
	size       int
	lineHeight int
	base       int

	glyphs  map[rune]*GlyphMetrics
	kerning map[kerningPair]int
	page    *graphics.Image
	unknown GlyphMetrics
}

func NewBitmapFont(backend graphics.Backend, path, name string) *BitmapFont {
	return &BitmapFont{
		Lifecycle: resources.NewLifecycle(name, path),
		backend:   backend,
	}
}

func (bf *BitmapFont) Type() resources.Type { return resources.TypeBitmapFont }

func (bf *BitmapFont) InitAsync() error {
	bm, err := bmfont.Load(bf.FilePath())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrFontOpen, bf.FilePath(), err)
	}
	desc := bm.Descriptor

	bf.face = desc.Info.Face
	bf.size = int(desc.Info.Size)
	bf.lineHeight = int(desc.Common.LineHeight)
	bf.base = int(desc.Common.Base)
	bf.glyphs = make(map[rune]*GlyphMetrics, len(desc.Chars))
	bf.kerning = make(map[kerningPair]int, len(desc.Kerning))

	pageFile := ""
	for _, p := range desc.Pages {
		if int(p.ID) == 0 {
			pageFile = p.File
		}
	}
	if pageFile == "" {
		return fmt.Errorf("bitmap font %s has no page 0", bf.FilePath())
	}

	for _, c := range desc.Chars {
		if int(c.Page) != 0 {
			continue
		}
		r := rune(c.ID)
		bf.glyphs[r] = &GlyphMetrics{
			Character: r,
			AtlasX:    int(c.X),
			AtlasY:    int(c.Y),
			SizeX:     int(c.Width),
			SizeY:     int(c.Height),
			Left:      int(c.XOffset),
			Top:       bf.base - int(c.YOffset),
			Width:     int(c.Width),
			Rows:      int(c.Height),
			Advance:   float64(c.XAdvance),
		}
	}
	for pair, k := range desc.Kerning {
		bf.kerning[kerningPair{rune(pair.First), rune(pair.Second)}] = int(k.Amount)
	}
	if m, ok := bf.glyphs[UnknownChar]; ok {
		bf.unknown = *m
	} else {
		bf.unknown = GlyphMetrics{Character: UnknownChar, Advance: float64(bf.size) / 2}
	}

	if bf.IsInterrupted() {
		return core.ErrInterrupted
	}
	bf.page = graphics.NewImage(bf.backend, bf.Name()+" page 0", filepath.Join(filepath.Dir(bf.FilePath()), pageFile))
	return resources.LoadAsync(bf.page)
}

func (bf *BitmapFont) Init() error {
	return resources.Finalize(bf.page)
}

func (bf *BitmapFont) Destroy() {
	if bf.page != nil {
		resources.Release(bf.page)
		bf.page = nil
	}
	bf.glyphs = nil
	bf.kerning = nil
}

func (bf *BitmapFont) GetGlyphMetrics(r rune) *GlyphMetrics {
	if m, ok := bf.glyphs[r]; ok {
		return m
	}
	return &bf.unknown
}

func (bf *BitmapFont) HasGlyph(r rune) bool {
	_, ok := bf.glyphs[r]
	return ok
}

// Kerning returns the horizontal adjustment between first and second.
func (bf *BitmapFont) Kerning(first, second rune) int {
	return bf.kerning[kerningPair{first, second}]
}

// StringWidth is the advance of text in pixels, kerning included.
func (bf *BitmapFont) StringWidth(text string) float64 {
	w := 0.0
	prev := rune(-1)
	for _, r := range text {
		if prev >= 0 {
			w += float64(bf.Kerning(prev, r))
		}
		w += bf.GetGlyphMetrics(r).Advance
		prev = r
	}
	return w
}

func (bf *BitmapFont) Face() string { return bf.face }

func (bf *BitmapFont) Size() int { return bf.size }

func (bf *BitmapFont) LineHeight() int { return bf.lineHeight }

// Baseline is the distance from the top of a line to the baseline.
func (bf *BitmapFont) Baseline() int { return bf.base }

func (bf *BitmapFont) Page() *graphics.Image { return bf.page }
