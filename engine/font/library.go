package font

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/image/font/sfnt"

	"github.com/spaghettifunk/mcengine/engine/assets"
	"github.com/spaghettifunk/mcengine/engine/core"
)

// FallbackFont is a parsed font consulted when a primary face misses a glyph.
// The parsed font is immutable, every consumer opens its own sized face from it.
type FallbackFont struct {
	Name string
	Path string
	Font *sfnt.Font
}

/**
 * @brief State shared by every Font: the fallback font list and the blacklist of characters
 * no face supports. Reads (face lookup, blacklist check) take the read lock, adding
 * fallbacks or blacklisting take the write lock. Create one per process (or per test)
 * and pass it to every font.
 */
type Library struct {
	mu        sync.RWMutex
	fallbacks []*FallbackFont
	blacklist map[rune]struct{}
	closed    bool

	scans atomic.Int64
}

func NewLibrary() *Library {
	return &Library{
		blacklist: make(map[rune]struct{}),
	}
}

// AddFallbackFont parses the font at path and appends it to the fallback list.
func (lib *Library) AddFallbackFont(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return lib.addFallback(filepath.Base(path), path, data)
}

// AddFallbackFontData appends an in-memory font to the fallback list.
func (lib *Library) AddFallbackFontData(name string, data []byte) error {
	return lib.addFallback(name, "", data)
}

func (lib *Library) addFallback(name, path string, data []byte) error {
	f, err := parseFont(name, data)
	if err != nil {
		return fmt.Errorf("%w: fallback %s: %v", core.ErrFontOpen, name, err)
	}
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.closed {
		return core.ErrClosed
	}
	lib.fallbacks = append(lib.fallbacks, &FallbackFont{Name: name, Path: path, Font: f})
	core.LogDebug("added fallback font %s (%d)", name, len(lib.fallbacks))
	return nil
}

/**
 * @brief Loads every font of the bundled directory first, then every system path that
 * exists. The discovery order is the lookup priority.
 * @returns the number of fallback fonts added.
 */
func (lib *Library) DiscoverFallbacks(bundledDir string, systemPaths []string) int {
	added := 0
	if bundledDir != "" {
		files, err := assets.FontFiles(bundledDir)
		if err != nil {
			core.LogDebug("no bundled fallback fonts in %s: %s", bundledDir, err)
		}
		for _, path := range files {
			if err := lib.AddFallbackFont(path); err != nil {
				core.LogWarn("failed to load fallback font %s: %s", path, err)
				continue
			}
			added++
		}
	}
	for _, path := range systemPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := lib.AddFallbackFont(path); err != nil {
			core.LogWarn("failed to load system fallback font %s: %s", path, err)
			continue
		}
		added++
	}
	core.LogInfo("font library has %d fallback fonts", lib.FallbackCount())
	return added
}

func (lib *Library) FallbackCount() int {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return len(lib.fallbacks)
}

// Fallback returns the fallback at index i, or nil.
func (lib *Library) Fallback(i int) *FallbackFont {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	if i < 0 || i >= len(lib.fallbacks) {
		return nil
	}
	return lib.fallbacks[i]
}

func (lib *Library) IsBlacklisted(r rune) bool {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	_, ok := lib.blacklist[r]
	return ok
}

func (lib *Library) Blacklist(r rune) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.blacklist[r] = struct{}{}
}

// FindFallback scans the fallback list in order and returns the index of the
// first font that maps r.
func (lib *Library) FindFallback(r rune) (int, bool) {
	lib.scans.Add(1)
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	var buf sfnt.Buffer
	for i, fb := range lib.fallbacks {
		if hasGlyph(fb.Font, &buf, r) {
			return i, true
		}
	}
	return -1, false
}

// FallbackScans counts FindFallback calls.
func (lib *Library) FallbackScans() int64 { return lib.scans.Load() }

// Shutdown drops all fallbacks and the blacklist. Fonts still holding faces keep working.
func (lib *Library) Shutdown() {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.fallbacks = nil
	lib.blacklist = make(map[rune]struct{})
	lib.closed = true
}

func hasGlyph(f *sfnt.Font, buf *sfnt.Buffer, r rune) bool {
	if f == nil {
		return false
	}
	idx, err := f.GlyphIndex(buf, r)
	return err == nil && idx != 0
}

// DefaultSystemFontPaths lists well known fallback fonts of the running OS.
func DefaultSystemFontPaths() []string {
	switch runtime.GOOS {
	case "windows":
		dir := os.Getenv("WINDIR")
		if dir == "" {
			dir = `C:\Windows`
		}
		fonts := filepath.Join(dir, "Fonts")
		return []string{
			filepath.Join(fonts, "arial.ttf"),
			filepath.Join(fonts, "msgothic.ttc"),
			filepath.Join(fonts, "malgun.ttf"),
			filepath.Join(fonts, "seguisym.ttf"),
			filepath.Join(fonts, "seguiemj.ttf"),
		}
	case "darwin":
		return []string{
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/System/Library/Fonts/Apple Symbols.ttf",
		}
	default:
		return []string{
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/noto/NotoSans-Regular.ttf",
			"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
			"/usr/share/fonts/truetype/freefont/FreeSans.ttf",
		}
	}
}
