package ime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"t9d/internal/learning"
	"t9d/internal/t9"
)

// Defaults applied by New when options leave them unset.
const (
	DefaultMaxCandidates = 6
	DefaultFlushInterval = 30 * time.Second
	DefaultBatchSize     = 20
)

// DefaultPunctuation is the punctuation cycle of a fresh install.
var DefaultPunctuation = []string{".", ",", "!", "?", "-", "'", "\"", "(", ")", ":", ";", "@", "#"}

var (
	// ErrInvalidDigit is returned by AppendDigit for anything outside 2-9.
	ErrInvalidDigit = errors.New("ime: digit must be 2-9")

	// ErrEmptyLanguageSet is reported as a warning when no active language
	// has any words. The engine keeps running and confirms raw digits.
	ErrEmptyLanguageSet = errors.New("ime: no active language has words")

	// ErrUnknownLanguage is returned when a language is not active.
	ErrUnknownLanguage = errors.New("ime: language not active")
)

// State is the composition state of the engine.
type State int

const (
	// Idle means no digits are buffered.
	Idle State = iota
	// Composing means digits are buffered and candidates are shown.
	Composing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures an Engine.
type Options struct {
	// Languages in activation order. Earlier languages win ranking ties.
	Languages []string

	// MaxCandidates caps the candidate list.
	MaxCandidates int

	// Punctuation is the cycle of marks offered by CyclePunctuation.
	Punctuation []string

	// DiacriticOverrides maps single characters to digits, replacing or
	// extending the default table.
	DiacriticOverrides map[string]string

	// CommentPrefix marks ignored wordlist lines.
	CommentPrefix string

	// FlushInterval and BatchSize control when learning is persisted.
	FlushInterval time.Duration
	BatchSize     int
}

// Output is the text produced by a confirm.
type Output struct {
	Text string

	// TrailingSpace is set by ConfirmWithSpace.
	TrailingSpace bool

	// Fallback is set when no candidate existed and Text holds the digits.
	Fallback bool

	// Learned is set when the word was recorded in Language's store.
	Learned  bool
	Language string
}

// String returns the text to insert, including the trailing space.
func (o Output) String() string {
	if o.TrailingSpace {
		return o.Text + " "
	}
	return o.Text
}

// Snapshot is a read-only view of the engine for renderers.
type Snapshot struct {
	State      State
	Digits     string
	Candidates []t9.Candidate
	// Cursor indexes Candidates, -1 when there are none.
	Cursor int

	// Punctuation is the mark last returned by CyclePunctuation since the
	// previous confirm, empty if none.
	Punctuation       string
	PunctuationCursor int

	RawDigitMode bool
}

// Selected returns the candidate under the cursor.
func (s Snapshot) Selected() (t9.Candidate, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Candidates) {
		return t9.Candidate{}, false
	}
	return s.Candidates[s.Cursor], true
}

// language is one activated language.
type language struct {
	code  string
	index *t9.Index
	store *learning.Store
}

// Engine is the keypad composition state machine. All methods are safe to
// call from multiple goroutines, but key events are expected one at a time.
// No method performs I/O while holding the engine lock.
type Engine struct {
	id      string
	opts    Options
	table   *t9.Table
	logger  *slog.Logger
	clock   *learning.Clock
	flusher *learning.Flusher

	mu            sync.RWMutex
	langs         []*language
	rawDigits     bool
	sequence      []byte
	candidates    []t9.Candidate
	cursor        int
	cursorStack   []int
	punctCursor   int
	punctSelected string
	lastConfirmed int
	warnings      []error
}

// New builds the indexes of opts.Languages from wordlists, loads their
// learning stores from backend and starts background persistence.
//
// Missing wordlists, missing or unreadable learning data and an empty
// language set are not fatal; they are logged and returned by Warnings. New fails only on
// invalid options or when ctx is cancelled during indexing.
func New(ctx context.Context, opts Options, wordlists map[string][]string, backend learning.Backend, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.Punctuation == nil {
		opts.Punctuation = DefaultPunctuation
	}
	opts.Punctuation = append([]string(nil), opts.Punctuation...)
	if opts.FlushInterval == 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}

	table, err := t9.NewTable(opts.DiacriticOverrides)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger = logger.With(slog.String("engine", id))

	e := &Engine{
		id:     id,
		opts:   opts,
		table:  table,
		logger: logger,
		clock:  &learning.Clock{},
		cursor: -1,
	}

	codes := e.activationOrder(opts.Languages)
	indexes := make([]*t9.Index, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	for i, code := range codes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			indexes[i] = t9.Build(code, wordlists[code], t9.BuildOptions{
				CommentPrefix: opts.CommentPrefix,
				Table:         table,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}

	e.flusher = learning.NewFlusher(opts.FlushInterval, opts.BatchSize, logger)
	keyOf := learning.TableKeyFunc(table)
	for i, code := range codes {
		if _, ok := wordlists[code]; !ok {
			e.warn(fmt.Errorf("ime: no wordlist for language %q", code))
		}
		e.reportSkipped(indexes[i])

		store := learning.NewStore(code, backend, e.clock, keyOf, logger)
		if err := store.Load(); errors.Is(err, learning.ErrNoStoredData) {
			e.note(err)
		} else if err != nil {
			e.warn(err)
		}
		e.flusher.Add(store)

		e.langs = append(e.langs, &language{code: code, index: indexes[i], store: store})
		logger.Info("language activated",
			slog.String("lang", code),
			slog.Int("words", indexes[i].Len()),
			slog.Int("learned", store.Len()),
		)
	}

	e.updateRawDigitsLocked()
	if e.rawDigits {
		e.warn(ErrEmptyLanguageSet)
	}

	e.flusher.Start()
	return e, nil
}

// activationOrder drops duplicate codes, keeping the first occurrence.
func (e *Engine) activationOrder(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if seen[code] {
			e.warn(fmt.Errorf("ime: language %q listed twice", code))
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

func (e *Engine) reportSkipped(idx *t9.Index) {
	skipped := idx.Skipped()
	if len(skipped) == 0 {
		return
	}
	for _, s := range skipped {
		e.logger.Debug("wordlist line skipped",
			slog.String("lang", idx.Language()),
			slog.Int("line", s.Line),
			slog.String("word", s.Text),
			slog.String("char", string(s.Rune)),
		)
	}
	e.warn(fmt.Errorf("ime: %s: skipped %d unmappable words", idx.Language(), len(skipped)))
}

func (e *Engine) warn(err error) {
	e.logger.Warn("engine warning", slog.Any("error", err))
	e.warnings = append(e.warnings, err)
}

// note records a warning that is expected in normal use, such as a
// language nobody has typed in yet, and logs it at INFO.
func (e *Engine) note(err error) {
	e.logger.Info("engine warning", slog.Any("error", err))
	e.warnings = append(e.warnings, err)
}

// ID identifies the engine instance in logs.
func (e *Engine) ID() string {
	return e.id
}

// Warnings returns the non-fatal problems found during construction.
func (e *Engine) Warnings() []error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]error(nil), e.warnings...)
}

// Languages returns the active language codes in activation order.
func (e *Engine) Languages() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.langs))
	for i, l := range e.langs {
		out[i] = l.code
	}
	return out
}

// Store returns the learning store of lang.
func (e *Engine) Store(lang string) (*learning.Store, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, l := range e.langs {
		if l.code == lang {
			return l.store, true
		}
	}
	return nil, false
}

// Table returns the character table in use.
func (e *Engine) Table() *t9.Table {
	return e.table
}

// RawDigitMode reports whether no active language has words, in which case
// confirms emit the typed digits.
func (e *Engine) RawDigitMode() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rawDigits
}

func (e *Engine) updateRawDigitsLocked() {
	e.rawDigits = true
	for _, l := range e.langs {
		if l.index.Len() > 0 {
			e.rawDigits = false
			return
		}
	}
}

// State returns Idle or Composing.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	if len(e.sequence) == 0 {
		return Idle
	}
	return Composing
}

// AppendDigit adds d to the sequence and reranks. The cursor moves to the
// first candidate.
func (e *Engine) AppendDigit(d rune) error {
	if !t9.IsKeypadDigit(d) {
		return fmt.Errorf("%w: %q", ErrInvalidDigit, d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cursorStack = append(e.cursorStack, e.cursor)
	e.sequence = append(e.sequence, byte(d))
	e.refreshLocked()
	return nil
}

// DeleteDigit removes the last digit. The candidate list and cursor return
// to what they were before that digit was appended. No-op when idle.
func (e *Engine) DeleteDigit() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.sequence) == 0 {
		return
	}
	e.sequence = e.sequence[:len(e.sequence)-1]
	prev := e.cursorStack[len(e.cursorStack)-1]
	e.cursorStack = e.cursorStack[:len(e.cursorStack)-1]

	if len(e.sequence) == 0 {
		e.resetLocked()
		return
	}
	e.refreshLocked()
	if prev >= 0 && prev < len(e.candidates) {
		e.cursor = prev
	}
}

// NextCandidate moves the cursor forward, wrapping at the end.
func (e *Engine) NextCandidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.candidates); n > 0 {
		e.cursor = (e.cursor + 1) % n
	}
}

// PrevCandidate moves the cursor back, wrapping at the start.
func (e *Engine) PrevCandidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.candidates); n > 0 {
		e.cursor = (e.cursor - 1 + n) % n
	}
}

// Confirm finishes the current word. It returns false when idle.
// With learn set, the word is recorded in the learning store of the
// language it is attributed to.
func (e *Engine) Confirm(learn bool) (Output, bool) {
	return e.confirm(learn, false)
}

// ConfirmWithSpace is Confirm for the space key: the output carries a
// trailing space.
func (e *Engine) ConfirmWithSpace(learn bool) (Output, bool) {
	return e.confirm(learn, true)
}

func (e *Engine) confirm(learn, space bool) (Output, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.sequence) == 0 {
		return Output{}, false
	}

	out := Output{TrailingSpace: space}
	if e.cursor >= 0 && e.cursor < len(e.candidates) {
		c := e.candidates[e.cursor]
		out.Text = c.Text
		out.Language = c.Language
		if learn {
			l := e.attributeLocked(t9.DigitKey(e.sequence), c)
			l.store.Record(c.Text)
			out.Learned = true
			out.Language = l.code
		}
	} else {
		out.Text = string(e.sequence)
		out.Fallback = true
	}

	e.lastConfirmed = utf8.RuneCountInString(out.Text)
	e.resetLocked()
	e.punctCursor = 0
	e.punctSelected = ""
	return out, true
}

// attributeLocked picks the language a confirmed word is learned in: the
// one whose wordlist ranks that exact text best, earlier languages winning
// ties. Without an exact match the text is compared ignoring case. Words
// only known from learning stay with the language that offered them.
func (e *Engine) attributeLocked(key t9.DigitKey, c t9.Candidate) *language {
	if l := e.bestRankLocked(key, c.Text, (*t9.Index).ExactRankOf); l != nil {
		return l
	}
	if l := e.bestRankLocked(key, c.Text, (*t9.Index).RankOf); l != nil {
		return l
	}
	for _, l := range e.langs {
		if l.code == c.Language {
			return l
		}
	}
	return e.langs[0]
}

func (e *Engine) bestRankLocked(key t9.DigitKey, text string, rankOf func(*t9.Index, t9.DigitKey, string) (int, bool)) *language {
	var best *language
	bestRank := 0
	for _, l := range e.langs {
		rank, ok := rankOf(l.index, key, text)
		if !ok {
			continue
		}
		if best == nil || rank < bestRank {
			best, bestRank = l, rank
		}
	}
	return best
}

// Cancel drops the sequence and candidates without output or learning.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// DeleteLastWordSignal returns the length in characters of the most
// recently confirmed word, 0 if nothing was confirmed. It does not change
// engine state; erasing the text is up to the output side.
func (e *Engine) DeleteLastWordSignal() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastConfirmed
}

// CyclePunctuation returns the mark under the punctuation cursor and
// advances the cursor, wrapping at the end. It is independent of the digit
// sequence. It returns false when no marks are configured.
func (e *Engine) CyclePunctuation() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.opts.Punctuation)
	if n == 0 {
		return "", false
	}
	mark := e.opts.Punctuation[e.punctCursor]
	e.punctCursor = (e.punctCursor + 1) % n
	e.punctSelected = mark
	return mark, true
}

// Snapshot returns a copy of the state a renderer needs.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var cands []t9.Candidate
	if len(e.candidates) > 0 {
		cands = make([]t9.Candidate, len(e.candidates))
		copy(cands, e.candidates)
	}
	return Snapshot{
		State:             e.stateLocked(),
		Digits:            string(e.sequence),
		Candidates:        cands,
		Cursor:            e.cursor,
		Punctuation:       e.punctSelected,
		PunctuationCursor: e.punctCursor,
		RawDigitMode:      e.rawDigits,
	}
}

// ReloadLanguage rebuilds the index of an active language from new lines.
// Learning data is kept. A composing sequence is reranked and keeps its
// cursor when still in range.
func (e *Engine) ReloadLanguage(lang string, lines []string) error {
	idx := t9.Build(lang, lines, t9.BuildOptions{
		CommentPrefix: e.opts.CommentPrefix,
		Table:         e.table,
	})

	e.mu.Lock()
	var target *language
	for _, l := range e.langs {
		if l.code == lang {
			target = l
		}
	}
	if target == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	target.index = idx
	e.updateRawDigitsLocked()
	if len(e.sequence) > 0 {
		cursor := e.cursor
		e.refreshLocked()
		if cursor >= 0 && cursor < len(e.candidates) {
			e.cursor = cursor
		}
	}
	e.mu.Unlock()

	e.logger.Info("language reloaded", slog.String("lang", lang), slog.Int("words", idx.Len()))
	if n := len(idx.Skipped()); n > 0 {
		e.logger.Warn("wordlist lines skipped", slog.String("lang", lang), slog.Int("count", n))
	}
	return nil
}

// Flush persists all learning stores now.
func (e *Engine) Flush() error {
	return e.flusher.FlushAll()
}

// Close stops background persistence after a final flush.
func (e *Engine) Close() error {
	return e.flusher.Close()
}

// refreshLocked reranks for the current sequence and puts the cursor on
// the first candidate.
func (e *Engine) refreshLocked() {
	sources := make([]t9.Source, len(e.langs))
	for i, l := range e.langs {
		sources[i] = t9.Source{Index: l.index, Boosts: l.store}
	}
	e.candidates = t9.Rank(t9.DigitKey(e.sequence), sources, e.opts.MaxCandidates)
	if len(e.candidates) > 0 {
		e.cursor = 0
	} else {
		e.cursor = -1
	}
}

// resetLocked returns to Idle.
func (e *Engine) resetLocked() {
	e.sequence = e.sequence[:0]
	e.cursorStack = e.cursorStack[:0]
	e.candidates = nil
	e.cursor = -1
}
