package wordlist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"t9d/internal/learning"
	"t9d/internal/t9"
)

// ImportOptions controls Import.
type ImportOptions struct {
	// Language is the code of the list to write.
	Language string

	// Dir is the wordlist directory.
	Dir string

	// Append merges with the existing list instead of replacing it.
	// Existing words keep their position; new words follow.
	Append bool

	// Sort orders the result alphabetically. By default source order is
	// kept, since line order is the frequency rank.
	Sort bool

	// Table decides which words are mappable. Nil means the default table.
	Table *t9.Table

	// CommentPrefix marks ignored lines. Defaults to "#".
	CommentPrefix string
}

// ImportStats reports what Import did.
type ImportStats struct {
	Path       string
	Mappable   int
	Skipped    []t9.SkippedWord
	Duplicates int
	Existing   int
	Added      int
	Total      int
}

// Clean lowercases and trims lines, drops blanks and comments, and keeps
// the first occurrence of each mappable word. Unmappable words are
// returned as skipped with their source line.
func Clean(lines []string, table *t9.Table, commentPrefix string) (words []string, skipped []t9.SkippedWord, duplicates int) {
	if table == nil {
		table = t9.DefaultTable()
	}
	if commentPrefix == "" {
		commentPrefix = t9.DefaultCommentPrefix
	}

	seen := make(map[string]struct{}, len(lines))
	for i, line := range lines {
		w := norm.NFC.String(strings.ToLower(strings.TrimSpace(line)))
		if w == "" || strings.HasPrefix(w, commentPrefix) {
			continue
		}
		if _, bad, ok := table.DigitKey(w); !ok {
			skipped = append(skipped, t9.SkippedWord{Line: i + 1, Text: w, Rune: bad})
			continue
		}
		if _, dup := seen[w]; dup {
			duplicates++
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words, skipped, duplicates
}

// Import reads a word list from src, cleans it and writes it to
// <Dir>/<Language>.txt atomically.
func Import(src io.Reader, opts ImportOptions) (ImportStats, error) {
	var stats ImportStats
	if err := learning.ValidateLanguage(opts.Language); err != nil {
		return stats, err
	}
	prefix := opts.CommentPrefix
	if prefix == "" {
		prefix = t9.DefaultCommentPrefix
	}

	lines, err := ReadLines(src)
	if err != nil {
		return stats, fmt.Errorf("wordlist: read source: %w", err)
	}
	words, skipped, dups := Clean(lines, opts.Table, prefix)
	stats.Mappable = len(words)
	stats.Skipped = skipped
	stats.Duplicates = dups
	stats.Path = Path(opts.Dir, opts.Language)

	var combined []string
	if opts.Append {
		existingLines, err := ReadFile(stats.Path)
		if err != nil && !errors.Is(err, ErrMissing) {
			return stats, err
		}
		// Existing words are kept without a mappability check.
		seen := make(map[string]struct{}, len(existingLines)+len(words))
		for _, line := range existingLines {
			w := strings.ToLower(strings.TrimSpace(line))
			if w == "" || strings.HasPrefix(w, prefix) {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			combined = append(combined, w)
		}
		stats.Existing = len(combined)
		for _, w := range words {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			combined = append(combined, w)
		}
	} else {
		combined = words
	}

	if opts.Sort {
		sort.Strings(combined)
	}
	stats.Total = len(combined)
	stats.Added = stats.Total - stats.Existing

	var b strings.Builder
	b.WriteString(Header(opts.Language, len(combined), prefix))
	for _, w := range combined {
		b.WriteString(w)
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return stats, fmt.Errorf("wordlist: create dir: %w", err)
	}
	if err := writeAtomic(stats.Path, []byte(b.String())); err != nil {
		return stats, err
	}
	return stats, nil
}

// Header returns the comment block written at the top of imported lists.
func Header(lang string, words int, commentPrefix string) string {
	p := message.NewPrinter(language.English)
	lines := []string{
		fmt.Sprintf("%s word list for t9d", lang),
		"Imported by t9-wordlist",
		p.Sprintf("Words: %d", words),
		fmt.Sprintf("One word per line. Lines starting with %s are ignored.", commentPrefix),
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(commentPrefix)
		b.WriteByte(' ')
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// writeAtomic replaces path with data through a synced temporary file in
// the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("wordlist: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("wordlist: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("wordlist: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("wordlist: close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("wordlist: chmod: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("wordlist: rename: %w", err)
	}
	return nil
}
