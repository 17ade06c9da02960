package font

import (
	"fmt"
	"os"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"

	"github.com/spaghettifunk/mcengine/engine/atlas"
	"github.com/spaghettifunk/mcengine/engine/core"
	"github.com/spaghettifunk/mcengine/engine/graphics"
	emath "github.com/spaghettifunk/mcengine/engine/math"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

const (
	// the character every unresolved glyph falls back to
	UnknownChar rune = '?'

	asciiFirst rune = 32
	asciiLast  rune = 127
)

// GlyphMetrics describes one glyph: where it lives in the atlas and how it is laid out.
type GlyphMetrics struct {
	Character rune
	// content origin inside the atlas, in pixels
	AtlasX, AtlasY int
	// size of the glyph block in the atlas, after cropping
	SizeX, SizeY int
	// bearing
	Left, Top int
	// rasterized bitmap size
	Width, Rows int
	Advance     float64
	// 0 for the primary face, i+1 for fallback i of the library
	FontIndex int
}

type Options struct {
	Size         int
	DPI          int
	Antialiasing bool
	// nominal line height; 0 computes it from the ASCII glyphs
	Height float64

	DynamicSlotSize int
	MinAtlasSize    int
	MaxAtlasSize    int
	Occupancy       float64
	Expansion       int
	// caps the number of dynamic slots, 0 uses every slot that fits
	MaxDynamicSlots int
	Padding         int

	Reporter core.ErrorReporter
}

func DefaultOptions() Options {
	return Options{
		Size:            16,
		DPI:             96,
		Antialiasing:    true,
		DynamicSlotSize: 64,
		MinAtlasSize:    256,
		MaxAtlasSize:    4096,
		Occupancy:       0.75,
		Expansion:       4,
		Padding:         2,
		Reporter:        core.LogErrorReporter,
	}
}

// OptionsFromConfig builds Options for one font from the [fonts] configuration.
func OptionsFromConfig(cfg core.FontsConfig, size int, antialiasing bool, dpi int) Options {
	opts := DefaultOptions()
	opts.Size = size
	opts.DPI = dpi
	opts.Antialiasing = antialiasing
	opts.DynamicSlotSize = cfg.DynamicSlotSize
	opts.MinAtlasSize = cfg.MinAtlasSize
	opts.MaxAtlasSize = cfg.MaxAtlasSize
	opts.Occupancy = cfg.AtlasOccupancy
	opts.Expansion = cfg.AtlasExpansion
	opts.MaxDynamicSlots = cfg.MaxDynamicSlots
	return opts
}

// DynamicSlot is one fixed size cell of the dynamic atlas region.
type DynamicSlot struct {
	X, Y      int
	Character rune
	LastUsed  uint64
	Occupied  bool
}

/**
 * @brief A TrueType/OpenType font rendered into a glyph atlas. The initial character set is
 * packed once into the static region of the atlas. Glyphs outside of it are rasterized on
 * demand into fixed size slots of the dynamic region, evicting the least recently used slot
 * when full. Everything after Init, including dynamic loading, is main thread only.
 */
type Font struct {
	*resources.Lifecycle

	lib     *Library
	backend graphics.Backend
	opts    Options

	initialChars     []rune
	tryFindFallbacks bool

	primary *sfnt.Font
	// sized faces owned by this font, keyed by font index
	faces map[int]xfont.Face

	glyphs map[rune]*GlyphMetrics
	exists map[rune]struct{}

	atlas        *atlas.TextureAtlas
	staticHeight int
	slots        []DynamicSlot
	slotMap      map[rune]int
	clock        uint64
	atlasDirty   bool

	height  float64
	unknown GlyphMetrics

	dynamicLoads int
}

// NewFont creates a font with the ASCII 32-127 set and fallback search enabled.
func NewFont(lib *Library, backend graphics.Backend, path, name string, opts Options) *Font {
	chars := make([]rune, 0, asciiLast-asciiFirst+1)
	for r := asciiFirst; r <= asciiLast; r++ {
		chars = append(chars, r)
	}
	return newFont(lib, backend, path, name, chars, true, opts)
}

// NewFontWithCharset creates a font restricted to chars. It never consults fallbacks.
func NewFontWithCharset(lib *Library, backend graphics.Backend, path, name string, chars []rune, opts Options) *Font {
	return newFont(lib, backend, path, name, chars, false, opts)
}

func newFont(lib *Library, backend graphics.Backend, path, name string, chars []rune, fallbacks bool, opts Options) *Font {
	if opts.Reporter == nil {
		opts.Reporter = core.LogErrorReporter
	}
	f := &Font{
		Lifecycle:        resources.NewLifecycle(name, path),
		lib:              lib,
		backend:          backend,
		opts:             opts,
		initialChars:     chars,
		tryFindFallbacks: fallbacks,
	}
	f.reset()
	return f
}

func (f *Font) reset() {
	f.primary = nil
	f.faces = make(map[int]xfont.Face)
	f.glyphs = make(map[rune]*GlyphMetrics)
	f.exists = make(map[rune]struct{})
	f.slots = nil
	f.slotMap = make(map[rune]int)
	f.clock = 0
	f.atlasDirty = false
	f.atlas = nil
	f.staticHeight = 0
	f.dynamicLoads = 0
	f.height = f.opts.Height
	f.unknown = GlyphMetrics{Character: UnknownChar, Advance: float64(f.opts.Size) / 2}
}

func (f *Font) Type() resources.Type { return resources.TypeFont }

func (f *Font) fail(err error) error {
	f.opts.Reporter("Font Error", fmt.Sprintf("couldn't load font %q (%s): %s", f.Name(), f.FilePath(), err))
	return err
}

type pendingGlyph struct {
	metrics *GlyphMetrics
	bitmap  *glyphBitmap
}

func (f *Font) InitAsync() error {
	data, err := os.ReadFile(f.FilePath())
	if err != nil {
		return f.fail(fmt.Errorf("%w: %v", core.ErrFontOpen, err))
	}
	primary, err := parseFont(f.FilePath(), data)
	if err != nil {
		return f.fail(fmt.Errorf("%w: %v", core.ErrFontOpen, err))
	}
	var buf sfnt.Buffer
	if _, err := primary.GlyphIndex(&buf, 'A'); err != nil {
		return f.fail(fmt.Errorf("%w: %v", core.ErrCharmap, err))
	}
	f.primary = primary

	face, err := newFace(primary, f.opts.Size, f.opts.DPI)
	if err != nil {
		return f.fail(fmt.Errorf("%w: %v", core.ErrFontOpen, err))
	}
	f.faces[0] = face

	// rasterize the initial set, no atlas placement yet
	pending := make([]pendingGlyph, 0, len(f.initialChars))
	for _, r := range f.initialChars {
		if _, ok := f.glyphs[r]; ok {
			continue
		}
		index, ok := f.faceIndexForGlyph(r, true)
		if !ok {
			core.LogDebug("font %q: no face has %U", f.Name(), r)
			continue
		}
		face, err := f.faceFor(index)
		if err != nil {
			core.LogWarn("font %q: %s", f.Name(), err)
			continue
		}
		bmp, ok := rasterize(face, r, f.opts.Antialiasing)
		if !ok {
			continue
		}
		m := &GlyphMetrics{
			Character: r,
			Left:      bmp.left,
			Top:       bmp.top,
			Width:     bmp.width,
			Rows:      bmp.rows,
			Advance:   bmp.advance,
			FontIndex: index,
		}
		f.glyphs[r] = m
		f.exists[r] = struct{}{}
		pending = append(pending, pendingGlyph{metrics: m, bitmap: bmp})
	}
	if f.IsInterrupted() {
		return core.ErrInterrupted
	}

	rects := make([]atlas.PackRect, len(pending))
	for i, p := range pending {
		rects[i] = atlas.PackRect{Width: p.bitmap.width, Height: p.bitmap.rows, ID: i}
	}
	staticSize := atlas.CalculateOptimalSize(rects, f.opts.Occupancy, f.opts.Padding, 1, f.opts.MaxAtlasSize)
	size := emath.Clamp(staticSize*f.opts.Expansion, f.opts.MinAtlasSize, f.opts.MaxAtlasSize)

	f.atlas = atlas.New(f.backend, f.Name()+" atlas", size, size, f.opts.Padding)
	if err := resources.LoadAsync(f.atlas); err != nil {
		return f.fail(err)
	}
	if !f.atlas.PackRects(rects) {
		return f.fail(fmt.Errorf("%w: %d glyphs in a %dx%d atlas", core.ErrPackFailed, len(rects), size, size))
	}

	for _, r := range rects {
		p := pending[r.ID]
		p.metrics.AtlasX = r.X
		p.metrics.AtlasY = r.Y
		p.metrics.SizeX = r.Width
		p.metrics.SizeY = r.Height
		if r.Width == 0 || r.Height == 0 {
			continue
		}
		if err := f.atlas.PutAt(r.X, r.Y, r.Width, r.Height, false, false, p.bitmap.pixels); err != nil {
			return f.fail(err)
		}
		f.staticHeight = max(f.staticHeight, r.Y+r.Height+f.opts.Padding)
	}
	if f.IsInterrupted() {
		return core.ErrInterrupted
	}

	f.createDynamicSlots(size)

	if f.opts.Height <= 0 {
		for r := asciiFirst; r <= asciiLast; r++ {
			if m, ok := f.glyphs[r]; ok {
				f.height = max(f.height, float64(m.Top))
			}
		}
	}
	if m, ok := f.glyphs[UnknownChar]; ok {
		f.unknown = *m
	}

	core.LogDebug("font %q: %d static glyphs, atlas %dx%d, %d dynamic slots", f.Name(), len(pending), size, size, len(f.slots))
	return nil
}

// createDynamicSlots splits the atlas below the static region into square slots.
func (f *Font) createDynamicSlots(size int) {
	slot := f.opts.DynamicSlotSize
	if slot <= 0 {
		return
	}
	for y := f.staticHeight; y+slot <= size; y += slot {
		for x := 0; x+slot <= size; x += slot {
			if f.opts.MaxDynamicSlots > 0 && len(f.slots) >= f.opts.MaxDynamicSlots {
				return
			}
			f.slots = append(f.slots, DynamicSlot{X: x, Y: y})
		}
	}
}

func (f *Font) Init() error {
	if err := resources.Finalize(f.atlas); err != nil {
		return f.fail(err)
	}
	return nil
}

func (f *Font) Destroy() {
	if f.atlas != nil {
		resources.Release(f.atlas)
	}
	for _, face := range f.faces {
		face.Close()
	}
	f.reset()
}

// faceIndexForGlyph resolves the face containing r: primary first, then the fallbacks
// in library order. The blacklist is neither read nor written while the font loads its
// own initial set.
func (f *Font) faceIndexForGlyph(r rune, initializing bool) (int, bool) {
	useFallbacks := f.tryFindFallbacks && f.lib != nil
	if useFallbacks && !initializing && f.lib.IsBlacklisted(r) {
		return 0, false
	}
	var buf sfnt.Buffer
	if hasGlyph(f.primary, &buf, r) {
		return 0, true
	}
	if !useFallbacks {
		return 0, false
	}
	if i, ok := f.lib.FindFallback(r); ok {
		return i + 1, true
	}
	if !initializing {
		f.lib.Blacklist(r)
	}
	return 0, false
}

// faceFor returns this font's own sized face for a font index.
func (f *Font) faceFor(index int) (xfont.Face, error) {
	if face, ok := f.faces[index]; ok {
		return face, nil
	}
	fb := f.lib.Fallback(index - 1)
	if fb == nil {
		return nil, fmt.Errorf("%w: fallback font %d", core.ErrNotFound, index-1)
	}
	face, err := newFace(fb.Font, f.opts.Size, f.opts.DPI)
	if err != nil {
		return nil, fmt.Errorf("fallback %s: %w", fb.Name, err)
	}
	f.faces[index] = face
	return face, nil
}

func (f *Font) Size() int { return f.opts.Size }

// Height is the nominal line height in pixels.
func (f *Font) Height() float64 { return f.height }

func (f *Font) Atlas() *atlas.TextureAtlas { return f.atlas }

func (f *Font) DynamicSlotCount() int { return len(f.slots) }

// DynamicLoads counts glyphs rasterized on demand since the last load.
func (f *Font) DynamicLoads() int { return f.dynamicLoads }

// HasGlyph reports whether r is resolved without triggering a load.
func (f *Font) HasGlyph(r rune) bool {
	_, ok := f.exists[r]
	return ok
}

// UnknownGlyph returns the metrics drawn for unresolvable characters.
func (f *Font) UnknownGlyph() *GlyphMetrics { return &f.unknown }
