// Package wordlist reads, lists, imports and watches the plain text word
// lists the engine is built from. A wordlist is <dir>/<lang>.txt with one
// word per line, most frequent first.
package wordlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"t9d/internal/learning"
)

// Ext is the wordlist file extension.
const Ext = ".txt"

// ErrMissing is returned when a language has no wordlist file.
var ErrMissing = errors.New("wordlist: not found")

// Path returns the wordlist file of lang in dir.
func Path(dir, lang string) string {
	return filepath.Join(dir, lang+Ext)
}

// ReadLines returns the lines of r with line endings and a UTF-8 byte
// order mark removed.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		lines = append(lines, strings.TrimRight(line, "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// ReadFile reads the lines of a wordlist file.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("wordlist: %w", err)
	}
	defer f.Close()

	lines, err := ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("wordlist: read %s: %w", path, err)
	}
	return lines, nil
}

// Load reads the wordlists of langs from dir. Languages whose file cannot
// be read are left out of the map and reported in the returned errors;
// the engine treats them as empty.
func Load(dir string, langs []string) (map[string][]string, []error) {
	lists := make(map[string][]string, len(langs))
	var errs []error
	for _, lang := range langs {
		if err := learning.ValidateLanguage(lang); err != nil {
			errs = append(errs, err)
			continue
		}
		lines, err := ReadFile(Path(dir, lang))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lists[lang] = lines
	}
	return lists, errs
}

// Language describes one wordlist file.
type Language struct {
	Code  string
	Path  string
	Words int
}

// ListLanguages returns the wordlists in dir sorted by code. Words counts
// non-blank lines that do not start with commentPrefix.
func ListLanguages(dir, commentPrefix string) ([]Language, error) {
	if commentPrefix == "" {
		commentPrefix = "#"
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("wordlist: %w", err)
	}

	langs := make([]Language, 0, len(matches))
	for _, path := range matches {
		lines, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, commentPrefix) {
				n++
			}
		}
		langs = append(langs, Language{
			Code:  strings.TrimSuffix(filepath.Base(path), Ext),
			Path:  path,
			Words: n,
		})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return langs, nil
}
