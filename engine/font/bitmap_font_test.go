package font

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/mcengine/engine/graphics"
	"github.com/spaghettifunk/mcengine/engine/resources"
)

const testDescriptor = `info face="Test" size=16 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=18 base=14 scaleW=32 scaleH=32 pages=1 packed=0 alphaChnl=0 redChnl=4 greenChnl=4 blueChnl=4
page id=0 file="test_0.png"
chars count=2
char id=65   x=0     y=0     width=8     height=10    xoffset=0     yoffset=4     xadvance=9     page=0  chnl=15
char id=66   x=10    y=0     width=7     height=10    xoffset=1     yoffset=4     xadvance=8     page=0  chnl=15
kernings count=1
kerning first=65  second=66  amount=-1
`

func writeBitmapFont(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	page := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 10; y++ {
		for x := 0; x < 8; x++ {
			page.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "test_0.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, page); err != nil {
		t.Fatal(err)
	}
	f.Close()

	path := filepath.Join(dir, "test.fnt")
	if err := os.WriteFile(path, []byte(testDescriptor), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBitmapFont(t *testing.T) {
	nb := graphics.NewNullBackend()
	bf := NewBitmapFont(nb, writeBitmapFont(t), "test")
	if err := resources.Load(bf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if bf.Face() != "Test" || bf.Size() != 16 || bf.LineHeight() != 18 || bf.Baseline() != 14 {
		t.Fatalf("descriptor = %q %d %d %d", bf.Face(), bf.Size(), bf.LineHeight(), bf.Baseline())
	}
	a := bf.GetGlyphMetrics('A')
	if a.SizeX != 8 || a.SizeY != 10 || a.Top != 10 || a.Advance != 9 {
		t.Fatalf("metrics of 'A' = %+v", a)
	}
	if bf.Kerning('A', 'B') != -1 || bf.Kerning('B', 'A') != 0 {
		t.Fatal("kerning pairs not loaded")
	}
	if got := bf.StringWidth("AB"); got != 16 {
		t.Fatalf("width of AB = %v, want 16", got)
	}
	if bf.HasGlyph('C') || bf.GetGlyphMetrics('C').Character != '?' {
		t.Fatal("unknown character did not resolve to '?'")
	}
	if bf.Page().Width() != 32 || nb.Uploads() != 1 {
		t.Fatalf("page width=%d uploads=%d", bf.Page().Width(), nb.Uploads())
	}

	resources.Release(bf)
	if nb.LiveTextures() != 0 {
		t.Fatal("page texture leaked")
	}
}
