package learning

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBackend stores each language as <dir>/user_<lang>.json, the layout of
// existing installations.
type FileBackend struct {
	mu  sync.Mutex
	dir string
}

// NewFileBackend creates the directory if needed. A leading "~" expands to
// the user's home directory.
func NewFileBackend(dir string) (*FileBackend, error) {
	dir, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, errors.New("learning: empty dictionary directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create dictionary directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the storage directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Path returns the file that holds lang.
func (b *FileBackend) Path(lang string) string {
	return filepath.Join(b.dir, "user_"+lang+".json")
}

// Read implements Backend.
func (b *FileBackend) Read(lang string) ([]byte, error) {
	if err := ValidateLanguage(lang); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.Path(lang))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Write implements Backend. Data goes to a temporary file in the same
// directory which is synced and then renamed over the target, so the
// previous file survives a crash at any point.
func (b *FileBackend) Write(lang string, data []byte) error {
	if err := ValidateLanguage(lang); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.lock()
	if err != nil {
		return err
	}
	defer unlock()

	path := b.Path(lang)
	tmp, err := os.CreateTemp(b.dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Languages lists the languages that have a stored file.
func (b *FileBackend) Languages() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "user_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		langs = append(langs, strings.TrimSuffix(strings.TrimPrefix(name, "user_"), ".json"))
	}
	return langs, nil
}

// lock takes the inter-process lock guarding writes to the directory.
func (b *FileBackend) lock() (func(), error) {
	f, err := os.OpenFile(filepath.Join(b.dir, ".lock"), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock: %w", err)
	}
	return func() {
		_ = unlockFile(f)
		f.Close()
	}, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
