package t9

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultCommentPrefix marks wordlist lines that are ignored.
const DefaultCommentPrefix = "#"

// Word is one wordlist entry.
type Word struct {
	Text     string
	Language string
	// Rank is the position among accepted words of the source list.
	// Lower is more frequent.
	Rank int
}

// SkippedWord records a wordlist line that could not be indexed because
// one of its characters has no digit.
type SkippedWord struct {
	Line int // 1-based line number in the source
	Text string
	Rune rune
}

// BuildOptions configures Build.
type BuildOptions struct {
	// CommentPrefix defaults to DefaultCommentPrefix.
	CommentPrefix string

	// Table defaults to DefaultTable().
	Table *Table
}

// Index maps digit keys to the words of one language. It is immutable
// after Build and safe for concurrent reads.
type Index struct {
	language string
	words    map[DigitKey][]Word
	skipped  []SkippedWord
	count    int
}

// Build indexes lines for language. Blank lines and lines starting with
// the comment prefix are ignored; every other line is one word whose rank
// is its position among accepted lines. Unmappable words are skipped and
// reported by Skipped. A word repeated in the same list, ignoring case, keeps its first rank.
func Build(language string, lines []string, opts BuildOptions) *Index {
	prefix := opts.CommentPrefix
	if prefix == "" {
		prefix = DefaultCommentPrefix
	}
	table := opts.Table
	if table == nil {
		table = DefaultTable()
	}

	idx := &Index{
		language: language,
		words:    make(map[DigitKey][]Word),
	}

	fold := cases.Fold()
	seen := make(map[string]struct{}, len(lines))
	rank := 0
	for i, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" || strings.HasPrefix(text, prefix) {
			continue
		}

		key, bad, ok := table.DigitKey(text)
		if !ok {
			idx.skipped = append(idx.skipped, SkippedWord{Line: i + 1, Text: text, Rune: bad})
			continue
		}

		// Full folding maps ß to "ss", so duplicates are only looked for
		// under the same key.
		dupKey := string(key) + "\x00" + fold.String(text)
		if _, dup := seen[dupKey]; dup {
			continue
		}
		seen[dupKey] = struct{}{}

		idx.words[key] = append(idx.words[key], Word{Text: text, Language: language, Rank: rank})
		idx.count++
		rank++
	}

	return idx
}

// Language returns the language code the index was built for.
func (x *Index) Language() string {
	return x.language
}

// Lookup returns the words typed with key, best rank first. The result is
// a copy; it is empty when the key is unknown.
func (x *Index) Lookup(key DigitKey) []Word {
	if x == nil {
		return nil
	}
	bucket := x.words[key]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]Word, len(bucket))
	copy(out, bucket)
	return out
}

// RankOf returns the best rank of text under key, matching case-insensitively.
func (x *Index) RankOf(key DigitKey, text string) (int, bool) {
	if x == nil {
		return 0, false
	}
	for _, w := range x.words[key] {
		if strings.EqualFold(w.Text, text) {
			return w.Rank, true
		}
	}
	return 0, false
}

// ExactRankOf is RankOf matching text exactly.
func (x *Index) ExactRankOf(key DigitKey, text string) (int, bool) {
	if x == nil {
		return 0, false
	}
	for _, w := range x.words[key] {
		if w.Text == text {
			return w.Rank, true
		}
	}
	return 0, false
}

// Len returns the number of indexed words.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return x.count
}

// Keys returns the number of distinct digit keys.
func (x *Index) Keys() int {
	if x == nil {
		return 0
	}
	return len(x.words)
}

// Skipped returns the lines rejected during Build.
func (x *Index) Skipped() []SkippedWord {
	if x == nil {
		return nil
	}
	out := make([]SkippedWord, len(x.skipped))
	copy(out, x.skipped)
	return out
}
