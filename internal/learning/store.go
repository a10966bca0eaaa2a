// Package learning keeps the per-language dictionary of words the user has
// confirmed, and persists it through a pluggable Backend.
//
// Recording a word is an in-memory operation. Writes to the backend happen
// in Flush, which a Flusher drives periodically, after a batch of records,
// and at shutdown.
package learning

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"t9d/internal/t9"
)

// Errors reported by stores. All are recoverable: missing data or a failed
// read leaves the store empty, a failed write leaves it dirty for the next
// flush.
var (
	ErrNoStoredData     = errors.New("learning: no learned words stored")
	ErrPersistenceRead  = errors.New("learning: persistence read failed")
	ErrPersistenceWrite = errors.New("learning: persistence write failed")
)

// Entry is the usage record of one learned word.
type Entry struct {
	Count   uint64 `json:"count"`
	LastSeq uint64 `json:"last_seq"`
}

// Clock is the logical clock that orders confirm events. Stores sharing a
// clock have comparable sequence numbers.
type Clock struct {
	n atomic.Uint64
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() uint64 {
	return c.n.Add(1)
}

// Now returns the current value without advancing.
func (c *Clock) Now() uint64 {
	return c.n.Load()
}

// Observe moves the clock forward to at least seq.
func (c *Clock) Observe(seq uint64) {
	for {
		cur := c.n.Load()
		if seq <= cur || c.n.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// KeyFunc derives the digit key of a learned word.
type KeyFunc func(word string) (t9.DigitKey, bool)

// TableKeyFunc adapts a t9.Table to a KeyFunc.
func TableKeyFunc(table *t9.Table) KeyFunc {
	return func(word string) (t9.DigitKey, bool) {
		key, _, ok := table.DigitKey(word)
		return key, ok
	}
}

// Store is the learning dictionary of one language.
type Store struct {
	lang    string
	backend Backend
	clock   *Clock
	keyOf   KeyFunc
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	byKey   map[t9.DigitKey][]string
	gen     uint64 // bumped by every Record
	flushed uint64 // gen at the last successful flush
	notify  func()

	flushMu sync.Mutex
}

// NewStore creates an empty store for lang. A nil clock gets a private one.
func NewStore(lang string, backend Backend, clock *Clock, keyOf KeyFunc, logger *slog.Logger) *Store {
	if clock == nil {
		clock = &Clock{}
	}
	if keyOf == nil {
		keyOf = TableKeyFunc(t9.DefaultTable())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		lang:    lang,
		backend: backend,
		clock:   clock,
		keyOf:   keyOf,
		logger:  logger.With(slog.String("lang", lang)),
		entries: make(map[string]Entry),
		byKey:   make(map[t9.DigitKey][]string),
	}
}

// Language returns the language code of the store.
func (s *Store) Language() string {
	return s.lang
}

// Load replaces the store content with what the backend holds. Missing data
// leaves the store empty and returns an error wrapping ErrNoStoredData.
// Unreadable or corrupt data leaves the store empty and returns an error
// wrapping ErrPersistenceRead.
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}

	data, err := s.backend.Read(s.lang)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s: %w", ErrNoStoredData, s.lang, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistenceRead, s.lang, err)
	}

	entries, err := Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistenceRead, s.lang, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry, len(entries))
	s.byKey = make(map[t9.DigitKey][]string)
	var maxSeq uint64
	for word, e := range entries {
		word = normalizeWord(word)
		if word == "" {
			continue
		}
		// Files written before keys were lowercased may hold "Cat" and
		// "cat"; they are one word.
		if prev, ok := s.entries[word]; ok {
			e.Count += prev.Count
			e.LastSeq = max(e.LastSeq, prev.LastSeq)
		}
		s.entries[word] = e
		s.indexLocked(word)
		maxSeq = max(maxSeq, e.LastSeq)
	}
	s.clock.Observe(maxSeq)
	s.gen, s.flushed = 0, 0
	return nil
}

// Record counts one confirmation of word and stamps it with the next clock
// value. It never touches the backend.
func (s *Store) Record(word string) Entry {
	word = normalizeWord(word)
	if word == "" {
		return Entry{}
	}

	s.mu.Lock()
	e, existed := s.entries[word]
	e.Count++
	e.LastSeq = s.clock.Next()
	s.entries[word] = e
	if !existed {
		s.indexLocked(word)
	}
	s.gen++
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return e
}

// indexLocked adds word to the digit key index keeping buckets sorted.
func (s *Store) indexLocked(word string) {
	key, ok := s.keyOf(word)
	if !ok {
		return
	}
	bucket := s.byKey[key]
	i := sort.SearchStrings(bucket, word)
	if i < len(bucket) && bucket[i] == word {
		return
	}
	bucket = append(bucket, "")
	copy(bucket[i+1:], bucket[i:])
	bucket[i] = word
	s.byKey[key] = bucket
}

// Boost returns the count and last sequence number of word, zeros if absent.
func (s *Store) Boost(word string) (count, seq uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.entries[normalizeWord(word)]
	return e.Count, e.LastSeq
}

// Lookup returns the learned words typed with key in lexical order.
func (s *Store) Lookup(key t9.DigitKey) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.byKey[key]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]string, len(bucket))
	copy(out, bucket)
	return out
}

// Entries returns a copy of all learned words.
func (s *Store) Entries() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for w, e := range s.entries {
		out[w] = e
	}
	return out
}

// Len returns the number of learned words.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dirty reports whether records are waiting for a flush.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen != s.flushed
}

// Pending returns the number of records since the last successful flush.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.gen - s.flushed)
}

// setNotify installs the callback Record invokes after each change.
func (s *Store) setNotify(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

// Flush writes the store through the backend if it changed since the last
// successful flush. On failure the store stays dirty so the next call
// retries; the in-memory state is never discarded.
func (s *Store) Flush() error {
	if s.backend == nil {
		return nil
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	if s.gen == s.flushed {
		s.mu.RUnlock()
		return nil
	}
	gen := s.gen
	snapshot := make(map[string]Entry, len(s.entries))
	for w, e := range s.entries {
		snapshot[w] = e
	}
	s.mu.RUnlock()

	data, err := Encode(snapshot)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistenceWrite, s.lang, err)
	}
	if err := s.backend.Write(s.lang, data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistenceWrite, s.lang, err)
	}

	s.mu.Lock()
	s.flushed = gen
	s.mu.Unlock()

	s.logger.Debug("learning flushed", slog.Int("words", len(snapshot)))
	return nil
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
