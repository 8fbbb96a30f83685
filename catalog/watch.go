package catalog

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 100 * time.Millisecond

// Watcher reloads a catalog file when it changes on disk.
// Reloaded catalogs arrive on Events; load and parse failures on Errors.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	Events  chan *Catalog
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

// Watch starts watching the catalog file at path
func Watch(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory; editors replace files rather than write in place
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		path:    filepath.Clean(path),
		Events:  make(chan *Catalog, 1),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher. Events and Errors stop receiving values
// but are left open so a concurrent delivery cannot panic.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	var last time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			now := time.Now()
			if now.Sub(last) < debounceWindow {
				continue
			}
			last = now

			cat, err := Load(w.path)
			if err != nil {
				select {
				case w.Errors <- err:
				case <-w.closeCh:
					return
				default:
				}
				continue
			}
			select {
			case w.Events <- cat:
			case <-w.closeCh:
				return
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			case <-w.closeCh:
				return
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}
