package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"t9d/internal/ime"
)

// session is a terminal stand-in for the focused text field. It applies
// keypad effects to a line of text and draws the candidate strip.
type session struct {
	keypad *ime.Keypad
	out    io.Writer
	width  int

	text  []rune
	toast string
}

func newSession(k *ime.Keypad, out io.Writer, width int) *session {
	if width <= 0 {
		width = 80
	}
	return &session{keypad: k, out: out, width: width}
}

// handle presses the keys of one input token. A token is either a key
// name ("next", "enter", "page_up") or a run of single-character keys
// ("4663", "228*").
func (s *session) handle(token string) error {
	if a, ok := ime.ParseAction(token); ok {
		s.press(a)
		return nil
	}
	for _, r := range token {
		a, ok := ime.ParseAction(string(r))
		if !ok {
			return fmt.Errorf("unknown key %q in %q", r, token)
		}
		s.press(a)
	}
	return nil
}

func (s *session) press(a ime.Action) {
	eff := s.keypad.Press(a)
	if !eff.Handled {
		return
	}
	s.apply(eff)
}

func (s *session) apply(eff ime.Effect) {
	n := min(eff.Erase, len(s.text))
	s.text = s.text[:len(s.text)-n]
	s.text = append(s.text, []rune(eff.Text)...)
	if eff.Toast != "" {
		s.toast = eff.Toast
	}
}

// Text returns the committed text.
func (s *session) Text() string {
	return string(s.text)
}

// render draws the text line, the strip while composing and any toast.
func (s *session) render() {
	fmt.Fprintf(s.out, "> %s_\n", s.Text())
	snap := s.keypad.Engine().Snapshot()
	if snap.State == ime.Composing {
		fmt.Fprintln(s.out, renderStrip(snap, s.width))
	}
	if s.toast != "" {
		fmt.Fprintf(s.out, "  (%s)\n", s.toast)
		s.toast = ""
	}
}

// renderStrip lays out the candidates in one line of at most width
// columns, the selected one in brackets and learned ones starred. Widths
// are display cells so wide characters line up.
func renderStrip(snap ime.Snapshot, width int) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(snap.Digits)
	b.WriteString(" |")

	if len(snap.Candidates) == 0 {
		b.WriteString(" (no match)")
		return runewidth.Truncate(b.String(), width, "…")
	}

	labels := make([]string, len(snap.Candidates))
	cell := 0
	for i, c := range snap.Candidates {
		labels[i] = c.Text
		if c.Learned() {
			labels[i] += "*"
		}
		cell = max(cell, runewidth.StringWidth(labels[i]))
	}
	for i, label := range labels {
		pad := strings.Repeat(" ", cell-runewidth.StringWidth(label))
		if i == snap.Cursor {
			b.WriteString(" [" + label + "]" + pad)
		} else {
			b.WriteString("  " + label + " " + pad)
		}
	}
	return runewidth.Truncate(strings.TrimRight(b.String(), " "), width, "…")
}

func printLegend(w io.Writer) {
	fmt.Fprint(w, `Keys (separate with spaces, Ctrl-D to quit):
  2-9          type             0 / insert   confirm + space
  + / next     next candidate   - / prev     previous candidate
  enter        confirm          . / delete   confirm and learn
  1 / end      punctuation      * / backspace  delete digit or char
  / / delete_word  delete word  esc / cancel   cancel composition
`)
}
