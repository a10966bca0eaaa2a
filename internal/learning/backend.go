package learning

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// ErrNotFound is returned by Backend.Read when nothing was stored for a
// language yet.
var ErrNotFound = errors.New("learning: no stored data")

// Backend stores the serialised learning file of each language. Write must
// replace the previous content atomically: a concurrent or later Read sees
// either the old bytes or the new ones, never a mix.
type Backend interface {
	Read(lang string) ([]byte, error)
	Write(lang string, data []byte) error
}

var langPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ValidateLanguage rejects codes that are unsafe to use in file names.
func ValidateLanguage(lang string) error {
	if !langPattern.MatchString(lang) {
		return fmt.Errorf("learning: invalid language code %q", lang)
	}
	return nil
}

// MemoryBackend keeps data in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Read implements Backend.
func (m *MemoryBackend) Read(lang string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[lang]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write implements Backend.
func (m *MemoryBackend) Write(lang string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[lang] = append([]byte(nil), data...)
	return nil
}
