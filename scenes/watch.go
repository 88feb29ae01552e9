package scenes

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Settle is how long a file must stay quiet before its change is reported.
const Settle = 100 * time.Millisecond

type FileKind int

const (
	SceneFile FileKind = iota
	ScriptFile
)

func (k FileKind) String() string {
	if k == ScriptFile {
		return "script"
	}
	return "scene"
}

// Change is one settled edit of a scene or script file. Removed is set when
// the file was deleted or renamed away and not recreated within Settle.
type Change struct {
	Path    string
	Kind    FileKind
	Removed bool
}

// Watcher reports settled changes to scene and script files. Bursts of
// events for one file, such as an editor's write, rename and recreate, are
// folded into a single Change carrying the last state seen.
type Watcher struct {
	fs      *fsnotify.Watcher
	Changes chan Change
	Errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		fs:      fw,
		Changes: make(chan Change, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.fs.Close()
		<-w.done
		close(w.Changes)
		close(w.Errors)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	pending := make(map[string]Change)
	settle := time.NewTimer(Settle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			c, ok := classify(event)
			if !ok {
				continue
			}
			pending[c.Path] = c
			settle.Reset(Settle)
		case <-settle.C:
			if !w.flush(pending) {
				return
			}
			pending = make(map[string]Change)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

// flush sends pending changes in path order. It reports false if the
// watcher closed meanwhile.
func (w *Watcher) flush(pending map[string]Change) bool {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		select {
		case w.Changes <- pending[p]:
		case <-w.closeCh:
			return false
		}
	}
	return true
}

func classify(event fsnotify.Event) (Change, bool) {
	var kind FileKind
	switch {
	case isSpecFile(event.Name):
		kind = SceneFile
	case isScriptFile(event.Name):
		kind = ScriptFile
	default:
		return Change{}, false
	}
	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		return Change{Path: event.Name, Kind: kind}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Path: event.Name, Kind: kind, Removed: true}, true
	}
	return Change{}, false
}

func isSpecFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func isScriptFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".tengo"
}
