package atlas

import (
	"golang.org/x/exp/slices"

	emath "github.com/spaghettifunk/mcengine/engine/math"
)

// PackRect is a rectangle to place. Width, Height and ID are inputs, X and Y
// are written by the packer and point at the content origin (padding excluded).
type PackRect struct {
	X, Y          int
	Width, Height int
	ID            int
}

// Skyline is one segment of the packing frontier: everything below Y in
// [X, X+Width) is taken.
type Skyline struct {
	X, Y  int
	Width int
}

// occupancy margin for packer inefficiency
const sizeInflation = 1.2

// skyline packer over a fixed canvas. Each rectangle reserves its padding on
// the left and top, so neighbours end up separated by exactly padding pixels.
type skylinePacker struct {
	width, height int
	padding       int
	segments      []Skyline
}

func newSkylinePacker(width, height, padding int) *skylinePacker {
	return &skylinePacker{
		width:    width,
		height:   height,
		padding:  padding,
		segments: []Skyline{{X: 0, Y: 0, Width: width}},
	}
}

// find returns the segment index and raw (padded) position that minimizes the
// resulting top edge. Ties go to the leftmost candidate.
func (p *skylinePacker) find(w, h int) (index, x, y int, ok bool) {
	pw := w + p.padding
	ph := h + p.padding
	bestTop := p.height + 1

	for i, seg := range p.segments {
		if seg.X+pw > p.width {
			break
		}
		landing := p.landingHeight(i, pw)
		top := landing + ph
		if top > p.height {
			continue
		}
		if top < bestTop {
			bestTop = top
			index, x, y, ok = i, seg.X, landing, true
		}
	}
	return index, x, y, ok
}

// landingHeight is the highest segment under [segments[i].X, segments[i].X+pw).
func (p *skylinePacker) landingHeight(i, pw int) int {
	right := p.segments[i].X + pw
	y := 0
	for j := i; j < len(p.segments) && p.segments[j].X < right; j++ {
		y = max(y, p.segments[j].Y)
	}
	return y
}

// place raises the skyline over the footprint of a rectangle found at segment index.
func (p *skylinePacker) place(index, w, h int) {
	x := p.segments[index].X
	pw := w + p.padding
	right := x + pw
	top := p.landingHeight(index, pw) + h + p.padding

	// drop or clip every segment covered by the footprint
	j := index
	for j < len(p.segments) && p.segments[j].X < right {
		seg := &p.segments[j]
		segRight := seg.X + seg.Width
		if segRight <= right {
			j++
			continue
		}
		seg.Width = segRight - right
		seg.X = right
		break
	}
	p.segments = slices.Replace(p.segments, index, j, Skyline{X: x, Y: top, Width: pw})
	p.merge()
}

func (p *skylinePacker) merge() {
	merged := p.segments[:1]
	for _, seg := range p.segments[1:] {
		last := &merged[len(merged)-1]
		if last.Y == seg.Y {
			last.Width += seg.Width
			continue
		}
		merged = append(merged, seg)
	}
	p.segments = merged
}

/**
 * @brief Places rects on the atlas canvas with a skyline heuristic, tallest first.
 * On success every rect gets its content origin in X/Y. On failure nothing is written
 * and the caller is expected to retry with a larger atlas (see CalculateOptimalSize).
 * The order of the input slice is preserved.
 * @returns true if every rectangle fits.
 */
func (ta *TextureAtlas) PackRects(rects []PackRect) bool {
	if len(rects) == 0 {
		ta.skyline = []Skyline{{X: 0, Y: 0, Width: ta.width}}
		return true
	}

	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return rects[b].Height - rects[a].Height
	})

	packer := newSkylinePacker(ta.width, ta.height, ta.padding)
	placed := make([]PackRect, len(rects))
	for _, i := range order {
		r := rects[i]
		if r.Width <= 0 || r.Height <= 0 {
			placed[i] = PackRect{X: ta.padding, Y: ta.padding, Width: r.Width, Height: r.Height, ID: r.ID}
			continue
		}
		index, x, y, ok := packer.find(r.Width, r.Height)
		if !ok {
			return false
		}
		packer.place(index, r.Width, r.Height)
		placed[i] = PackRect{X: x + ta.padding, Y: y + ta.padding, Width: r.Width, Height: r.Height, ID: r.ID}
	}

	copy(rects, placed)
	ta.skyline = packer.segments
	return true
}

/**
 * @brief Estimates the smallest power of two side length able to hold rects at the given
 * occupancy. The result is clamped to maxSize, callers must cope with an atlas that is
 * still too small.
 */
func CalculateOptimalSize(rects []PackRect, targetOccupancy float64, padding, minSize, maxSize int) int {
	total := 0.0
	for _, r := range rects {
		total += float64(r.Width+padding) * float64(r.Height+padding)
	}
	total *= sizeInflation

	size := emath.NextPowerOfTwo(max(minSize, 1))
	for size < maxSize && float64(size)*float64(size)*targetOccupancy < total {
		size *= 2
	}
	return emath.Clamp(size, minSize, maxSize)
}
