package t9

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DigitKey is the digit sequence a word is typed with, e.g. "228" for "cat".
type DigitKey string

// Valid reports whether k is non-empty and contains only digits 2-9.
func (k DigitKey) Valid() bool {
	if k == "" {
		return false
	}
	for i := 0; i < len(k); i++ {
		if !IsKeypadDigit(rune(k[i])) {
			return false
		}
	}
	return true
}

// IsKeypadDigit reports whether r is one of the letter-bearing keys 2-9.
func IsKeypadDigit(r rune) bool {
	return r >= '2' && r <= '9'
}

// letterGroups is the standard keypad letter assignment.
var letterGroups = map[byte]string{
	'2': "abc",
	'3': "def",
	'4': "ghi",
	'5': "jkl",
	'6': "mno",
	'7': "pqrs",
	'8': "tuv",
	'9': "wxyz",
}

// DefaultDiacritics maps accented letters to the key of their base letter.
var DefaultDiacritics = map[rune]byte{
	// Nordic
	'å': '2', 'ä': '2', 'ö': '6', 'æ': '2', 'ø': '6',
	// German
	'ü': '8', 'ß': '7',
	// French / Spanish
	'é': '3', 'è': '3', 'ê': '3', 'ë': '3',
	'à': '2', 'â': '2',
	'î': '4', 'ï': '4',
	'ô': '6', 'œ': '6',
	'ù': '8', 'û': '8',
	'ç': '2',
	'ñ': '6',
}

// Table maps characters to keypad digits. It is immutable after
// construction and safe for concurrent use.
type Table struct {
	digits map[rune]byte
}

// DefaultTable returns the letter groups plus DefaultDiacritics.
func DefaultTable() *Table {
	t, _ := NewTable(nil)
	return t
}

// NewTable builds a table from the defaults merged with overrides. Each
// override key must be a single character and each value a digit 2-9;
// overrides replace default entries for the same character.
func NewTable(overrides map[string]string) (*Table, error) {
	digits := make(map[rune]byte, 64)
	for d, letters := range letterGroups {
		for _, r := range letters {
			digits[r] = d
		}
	}
	for r, d := range DefaultDiacritics {
		digits[r] = d
	}

	for char, digit := range overrides {
		r, size := utf8.DecodeRuneInString(char)
		if size == 0 || size != len(char) || r == utf8.RuneError {
			return nil, fmt.Errorf("t9: override key %q must be a single character", char)
		}
		if len(digit) != 1 || !IsKeypadDigit(rune(digit[0])) {
			return nil, fmt.Errorf("t9: override for %q: digit %q not in 2-9", char, digit)
		}
		digits[unicode.ToLower(r)] = digit[0]
	}

	return &Table{digits: digits}, nil
}

// DigitFor returns the digit for r, folding case first.
func (t *Table) DigitFor(r rune) (byte, bool) {
	if d, ok := t.digits[r]; ok {
		return d, true
	}
	d, ok := t.digits[unicode.ToLower(r)]
	return d, ok
}

// DigitKey derives the key for word. When a character has no mapping it
// returns false together with that character.
func (t *Table) DigitKey(word string) (DigitKey, rune, bool) {
	word = norm.NFC.String(strings.TrimSpace(word))
	if word == "" {
		return "", 0, false
	}

	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		d, ok := t.DigitFor(r)
		if !ok {
			return "", r, false
		}
		b.WriteByte(d)
	}
	return DigitKey(b.String()), 0, true
}

// Mappable reports whether every character of word has a digit.
func (t *Table) Mappable(word string) bool {
	_, _, ok := t.DigitKey(word)
	return ok
}

// Len returns the number of mapped characters.
func (t *Table) Len() int {
	return len(t.digits)
}
