package wordlist

import (
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event reports a wordlist whose content changed and has been stable for
// the debounce interval.
type Event struct {
	Language  string
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

// Watcher monitors the wordlists of a set of languages in one directory.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	langs     map[string]bool
	debounce  time.Duration

	// path -> time of the last write event
	pending   map[string]time.Time
	hashes    map[string][32]byte
	pendingMu sync.Mutex

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for the wordlists of langs in dir.
func NewWatcher(dir string, langs []string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		langs:     make(map[string]bool, len(langs)),
		debounce:  debounce,
		pending:   make(map[string]time.Time),
		hashes:    make(map[string][32]byte),
		events:    make(chan Event, 16),
		errors:    make(chan error, 4),
		done:      make(chan struct{}),
	}
	for _, l := range langs {
		w.langs[l] = true
	}
	return w, nil
}

// Events returns the channel of changed wordlists.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start records the current content of each wordlist and begins watching.
func (w *Watcher) Start() error {
	absDir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	w.dir = absDir

	// Editors replace files, so watch the directory.
	if err := w.fsWatcher.Add(absDir); err != nil {
		return err
	}

	for lang := range w.langs {
		path := Path(absDir, lang)
		if hash, _, err := HashFile(path); err == nil {
			w.hashes[path] = hash
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop shuts the watcher down and closes its channels.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// language returns the active language a path belongs to.
func (w *Watcher) language(path string) (string, bool) {
	if filepath.Dir(path) != w.dir || filepath.Ext(path) != Ext {
		return "", false
	}
	lang := strings.TrimSuffix(filepath.Base(path), Ext)
	return lang, w.langs[lang]
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := w.language(event.Name); !ok {
				continue
			}

			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(max(w.debounce/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

// checkStableFiles emits files that have not changed for the debounce
// interval and whose content differs from the last emitted version. The
// lock is released while hashing.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.debounce)

	type stableFile struct {
		path    string
		lastMod time.Time
	}
	var stable []stableFile
	w.pendingMu.Lock()
	for path, lastMod := range w.pending {
		if lastMod.Before(threshold) {
			stable = append(stable, stableFile{path, lastMod})
		}
	}
	w.pendingMu.Unlock()

	for _, sf := range stable {
		hash, size, err := HashFile(sf.path)

		w.pendingMu.Lock()
		if cur, ok := w.pending[sf.path]; !ok || cur != sf.lastMod {
			// Modified while hashing; wait for it to settle again.
			w.pendingMu.Unlock()
			continue
		}
		delete(w.pending, sf.path)
		if err != nil {
			w.pendingMu.Unlock()
			if !os.IsNotExist(err) {
				w.report(err)
			}
			continue
		}
		if prev, ok := w.hashes[sf.path]; ok && prev == hash {
			w.pendingMu.Unlock()
			continue
		}
		w.hashes[sf.path] = hash
		w.pendingMu.Unlock()

		lang, _ := w.language(sf.path)
		select {
		case w.events <- Event{Language: lang, Path: sf.path, Hash: hash, Size: size, Timestamp: now}:
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// HashFile computes the SHA-256 of a file.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}

// Reloader is implemented by the engine.
type Reloader interface {
	ReloadLanguage(lang string, lines []string) error
}

// Follow applies watcher events to r until the watcher stops. It returns
// when the event channel is closed.
func Follow(w *Watcher, r Reloader, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			lines, err := ReadFile(ev.Path)
			if err != nil {
				logger.Warn("wordlist reload failed", slog.String("lang", ev.Language), slog.Any("error", err))
				continue
			}
			if err := r.ReloadLanguage(ev.Language, lines); err != nil {
				logger.Warn("wordlist reload failed", slog.String("lang", ev.Language), slog.Any("error", err))
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			logger.Warn("wordlist watcher error", slog.Any("error", err))
		}
	}
}
