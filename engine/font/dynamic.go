package font

import (
	"github.com/spaghettifunk/mcengine/engine/core"
)

/**
 * @brief Returns the metrics of r, loading it into a dynamic slot when the font searches
 * fallbacks and r is not resolved yet. Unresolvable characters (and every character
 * while the font is not ready) yield UnknownGlyph. Main thread only.
 */
func (f *Font) GetGlyphMetrics(r rune) *GlyphMetrics {
	if !f.IsReady() {
		return f.UnknownGlyph()
	}
	if m, ok := f.glyphs[r]; ok {
		return m
	}
	if f.tryFindFallbacks && f.loadGlyphDynamic(r) {
		return f.glyphs[r]
	}
	return f.UnknownGlyph()
}

func (f *Font) loadGlyphDynamic(r rune) bool {
	index, ok := f.faceIndexForGlyph(r, false)
	if !ok {
		return false
	}
	face, err := f.faceFor(index)
	if err != nil {
		core.LogWarn("font %q: %s", f.Name(), err)
		return false
	}
	bmp, ok := rasterize(face, r, f.opts.Antialiasing)
	if !ok {
		return false
	}

	slot := f.allocateDynamicSlot(r)
	if slot < 0 {
		core.LogDebug("font %q has no dynamic slots for %U", f.Name(), r)
		return false
	}

	pad := f.opts.Padding
	content := f.opts.DynamicSlotSize - 2*pad
	x := f.slots[slot].X + pad
	y := f.slots[slot].Y + pad
	w := min(bmp.width, content)
	h := min(bmp.rows, content)
	if w < bmp.width || h < bmp.rows {
		core.LogDebug("font %q: glyph %U is %dx%d, cropped to %dx%d", f.Name(), r, bmp.width, bmp.rows, w, h)
	}
	if w > 0 && h > 0 {
		if err := f.atlas.PutAt(x, y, w, h, false, false, bmp.crop(w, h)); err != nil {
			delete(f.slotMap, r)
			f.slots[slot] = DynamicSlot{X: f.slots[slot].X, Y: f.slots[slot].Y}
			return false
		}
	}

	f.glyphs[r] = &GlyphMetrics{
		Character: r,
		AtlasX:    x,
		AtlasY:    y,
		SizeX:     w,
		SizeY:     h,
		Left:      bmp.left,
		Top:       bmp.top,
		Width:     bmp.width,
		Rows:      bmp.rows,
		Advance:   bmp.advance,
		FontIndex: index,
	}
	f.exists[r] = struct{}{}
	f.atlasDirty = true
	f.dynamicLoads++
	return true
}

// allocateDynamicSlot picks a free slot or evicts the least recently used one and
// assigns it to r. Returns -1 if the font has no dynamic region.
func (f *Font) allocateDynamicSlot(r rune) int {
	if len(f.slots) == 0 {
		return -1
	}
	f.clock++

	target := -1
	for i := range f.slots {
		if !f.slots[i].Occupied {
			target = i
			break
		}
	}
	if target < 0 {
		target = 0
		for i := 1; i < len(f.slots); i++ {
			if f.slots[i].LastUsed < f.slots[target].LastUsed {
				target = i
			}
		}
		f.evictSlot(target)
	}

	s := &f.slots[target]
	s.Character = r
	s.Occupied = true
	s.LastUsed = f.clock
	f.slotMap[r] = target
	return target
}

func (f *Font) evictSlot(i int) {
	s := &f.slots[i]
	old := s.Character
	delete(f.slotMap, old)
	size := f.opts.DynamicSlotSize
	f.atlas.ClearRegion(s.X, s.Y, size, size)
	delete(f.glyphs, old)
	delete(f.exists, old)
	s.Occupied = false
	s.Character = 0
	core.LogDebug("font %q: evicted %U from dynamic slot %d", f.Name(), old, i)
}

// MarkSlotUsed refreshes the recency of r if it lives in a dynamic slot.
func (f *Font) MarkSlotUsed(r rune) {
	i, ok := f.slotMap[r]
	if !ok {
		return
	}
	f.clock++
	f.slots[i].LastUsed = f.clock
}

// SlotOf returns the dynamic slot index holding r.
func (f *Font) SlotOf(r rune) (int, bool) {
	i, ok := f.slotMap[r]
	return i, ok
}
