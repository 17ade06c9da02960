package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherIndexesAndPublishesChanges(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "fonts")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(sub, "ui.ttf")
	if err := os.WriteFile(existing, []byte("font"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	aw, err := NewAssetWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer aw.Close()
	if err := aw.Watch(dir); err != nil {
		t.Fatal(err)
	}

	info, ok := aw.Lookup(existing)
	if !ok || info.Kind != KindFont {
		t.Fatalf("Lookup(%s) = %+v, %v", existing, info, ok)
	}
	if _, ok := aw.Lookup(filepath.Join(dir, "notes.txt")); ok {
		t.Fatal("unknown file type was indexed")
	}

	img := filepath.Join(sub, "avatar.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case path := <-aw.Changes():
			if path != img {
				continue
			}
			if got := aw.Assets(KindImage); len(got) != 1 || got[0].Path != img {
				t.Fatalf("image assets = %+v", got)
			}
			return
		case <-deadline:
			t.Fatal("no change event for the new image")
		}
	}
}

func TestCloseClosesChanges(t *testing.T) {
	aw, err := NewAssetWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := aw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-aw.Changes(); ok {
		t.Fatal("changes channel still open")
	}
	if err := aw.Watch(t.TempDir()); err == nil {
		t.Fatal("closed watcher accepted a directory")
	}
	if err := aw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFontFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.otf", "a.TTF", "c.png", "d.ttc"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := FontFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.TTF", "b.otf", "d.ttc"}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i, f := range files {
		if filepath.Base(f) != want[i] {
			t.Fatalf("files[%d] = %s, want %s", i, f, want[i])
		}
	}
	if _, err := FontFiles(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("missing directory did not fail")
	}
}
