package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/mcengine/engine/core"
)

type Kind int

const (
	KindNone Kind = iota
	KindFont
	KindImage
	KindBitmapFont
)

type AssetInfo struct {
	Path     string
	Kind     Kind
	Modified time.Time
}

/**
 * @brief Watches asset directories recursively and keeps an index of the known assets.
 * Every created or written asset file is published on Changes so the resource manager
 * can reload whatever was loaded from it.
 */
type AssetWatcher struct {
	assets map[string]AssetInfo
	mutex  sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetWatcher() (*AssetWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	aw := &AssetWatcher{
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		changes:  make(chan string, 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go aw.start()
	return aw, nil
}

// Watch indexes dir and starts watching it and all of its sub-directories.
func (aw *AssetWatcher) Watch(dir string) error {
	if aw.isClosed {
		return errors.New("asset watcher already closed")
	}
	return aw.watchRecursive(dir, false)
}

// Unwatch stops watching dir and its sub-directories. Indexed assets are kept.
func (aw *AssetWatcher) Unwatch(dir string) error {
	return aw.watchRecursive(dir, true)
}

// Changes delivers the cleaned absolute path of every asset that was created or
// written. Changes are dropped if nobody drains the channel.
func (aw *AssetWatcher) Changes() <-chan string {
	return aw.changes
}

func (aw *AssetWatcher) Lookup(path string) (AssetInfo, bool) {
	aw.mutex.RLock()
	defer aw.mutex.RUnlock()
	info, ok := aw.assets[normalize(path)]
	return info, ok
}

// Assets lists the indexed assets of one kind sorted by path.
func (aw *AssetWatcher) Assets(kind Kind) []AssetInfo {
	aw.mutex.RLock()
	out := make([]AssetInfo, 0)
	for _, info := range aw.assets {
		if info.Kind == kind {
			out = append(out, info)
		}
	}
	aw.mutex.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (aw *AssetWatcher) Close() error {
	if aw.isClosed {
		return nil
	}
	aw.isClosed = true
	close(aw.done)
	<-aw.stopped
	return nil
}

func (aw *AssetWatcher) start() {
	defer close(aw.stopped)
	for {
		select {
		case e, ok := <-aw.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					aw.watchRecursive(e.Name, false)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if aw.handleFileEvent(e.Name) {
					aw.publish(e.Name)
				}
			}
			// a removed path can't be stat'ed, it may have been a directory
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				aw.removeAsset(e.Name)
				aw.fsnotify.Remove(e.Name)
			}

		case err, ok := <-aw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-aw.done:
			aw.fsnotify.Close()
			close(aw.changes)
			return
		}
	}
}

func (aw *AssetWatcher) publish(path string) {
	select {
	case aw.changes <- normalize(path):
	default:
		core.LogWarn("asset watcher: change queue full, dropping %s", path)
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (aw *AssetWatcher) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return aw.fsnotify.Remove(walkPath)
			}
			return aw.fsnotify.Add(walkPath)
		}
		if !unWatch {
			aw.handleFileEvent(walkPath)
		}
		return nil
	})
}

// Handle the creation or modification of a file. Returns false for unknown file types.
func (aw *AssetWatcher) handleFileEvent(path string) bool {
	kind := determineAssetKind(path)
	if kind == KindNone {
		return false
	}
	path = normalize(path)
	aw.mutex.Lock()
	defer aw.mutex.Unlock()
	aw.assets[path] = AssetInfo{
		Path:     path,
		Kind:     kind,
		Modified: time.Now(),
	}
	return true
}

// Remove the asset from the index if it was deleted
func (aw *AssetWatcher) removeAsset(path string) {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()

	delete(aw.assets, normalize(path))
}

func determineAssetKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf", ".ttc", ".otc":
		return KindFont
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return KindImage
	case ".fnt":
		return KindBitmapFont
	default:
		return KindNone
	}
}

// FontFiles lists the font files directly inside dir in name order.
func FontFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || determineAssetKind(e.Name()) != KindFont {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
