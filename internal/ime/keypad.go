package ime

import (
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Action is what a numpad key does.
type Action string

// Digit actions are the digits themselves, "0" through "9".
const (
	ActionSpace       Action = "0"
	ActionPunctuation Action = "1"
	ActionNext        Action = "next"
	ActionPrev        Action = "prev"
	ActionConfirm     Action = "confirm"
	ActionLearn       Action = "punct_confirm"
	ActionBackspace   Action = "backspace"
	ActionDeleteWord  Action = "delete_word"
	ActionCancel      Action = "cancel"
)

// keyNames maps key names, as reported by keyboard hooks or typed on the
// command line, to actions. Navigation names cover the numpad with
// NumLock off.
var keyNames = map[string]Action{
	"*":         ActionBackspace,
	"/":         ActionDeleteWord,
	"+":         ActionNext,
	"-":         ActionPrev,
	".":         ActionLearn,
	"enter":     ActionConfirm,
	"return":    ActionConfirm,
	"esc":       ActionCancel,
	"escape":    ActionCancel,
	"delete":    ActionLearn,
	"insert":    "0",
	"end":       "1",
	"down":      "2",
	"page_down": "3",
	"pagedown":  "3",
	"left":      "4",
	"clear":     "5",
	"begin":     "5",
	"right":     "6",
	"home":      "7",
	"up":        "8",
	"page_up":   "9",
	"pageup":    "9",
}

// Windows virtual key codes of the numpad.
var virtualKeys = map[uint16]Action{
	13:  ActionConfirm,
	106: ActionBackspace,
	107: ActionNext,
	109: ActionPrev,
	110: ActionLearn,
	111: ActionDeleteWord,
}

// Key is a numpad key event.
type Key struct {
	// Code is the platform virtual key code, 0 if unknown.
	Code uint16

	// Name is the key name or the character it produces.
	Name string
}

// ParseAction maps a key name to its action. Digits and action names map
// to themselves.
func ParseAction(name string) (Action, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		return Action(name), true
	}
	if a, ok := keyNames[name]; ok {
		return a, true
	}
	switch a := Action(name); a {
	case ActionNext, ActionPrev, ActionConfirm, ActionLearn,
		ActionBackspace, ActionDeleteWord, ActionCancel:
		return a, true
	}
	return "", false
}

// ActionFor resolves a key event, trying the virtual key code first.
func ActionFor(k Key) (Action, bool) {
	if k.Code >= 96 && k.Code <= 105 {
		return Action(string(rune('0' + k.Code - 96))), true
	}
	if a, ok := virtualKeys[k.Code]; ok {
		return a, true
	}
	return ParseAction(k.Name)
}

// Effect tells the output side what to do after a key.
type Effect struct {
	// Erase is the number of characters to delete before inserting Text.
	Erase int
	Text  string

	// Toast is a short message for the user, e.g. after learning a word.
	Toast string

	// Refresh asks for the candidate strip to be redrawn; Hide asks for
	// it to be removed.
	Refresh bool
	Hide    bool

	// Handled is false when the key should pass through unchanged.
	Handled bool
}

// Keypad turns numpad actions into engine calls and text effects.
type Keypad struct {
	engine         *Engine
	learnOnConfirm atomic.Bool

	// Characters emitted after the last confirmed word, or -1 when that
	// word can no longer be erased as a unit.
	trailing int
	// Length of the punctuation mark inserted by the previous action, if
	// that action was a punctuation press.
	lastMark int
}

// NewKeypad wraps e. With learnOnConfirm, every confirm records the word;
// otherwise only the learn key does.
func NewKeypad(e *Engine, learnOnConfirm bool) *Keypad {
	k := &Keypad{engine: e, trailing: -1}
	k.learnOnConfirm.Store(learnOnConfirm)
	return k
}

// SetLearnOnConfirm changes whether plain confirms record words. It may be
// called from another goroutine than the one pressing keys.
func (k *Keypad) SetLearnOnConfirm(v bool) {
	k.learnOnConfirm.Store(v)
}

// Engine returns the wrapped engine.
func (k *Keypad) Engine() *Engine {
	return k.engine
}

// Press applies a.
func (k *Keypad) Press(a Action) Effect {
	mark := k.lastMark
	k.lastMark = 0
	composing := k.engine.State() == Composing

	switch a {
	case "2", "3", "4", "5", "6", "7", "8", "9":
		if err := k.engine.AppendDigit(rune(a[0])); err != nil {
			return Effect{}
		}
		return Effect{Refresh: true, Handled: true}

	case ActionSpace:
		if !composing {
			k.emitted(1)
			return Effect{Text: " ", Handled: true}
		}
		out, _ := k.engine.ConfirmWithSpace(k.learnOnConfirm.Load())
		k.confirmed(out)
		return Effect{Text: out.String(), Hide: true, Handled: true}

	case ActionPunctuation:
		var eff Effect
		if composing {
			out, _ := k.engine.Confirm(k.learnOnConfirm.Load())
			k.confirmed(out)
			eff.Text = out.String()
			eff.Hide = true
			mark = 0
		}
		p, ok := k.engine.CyclePunctuation()
		if !ok {
			eff.Handled = composing
			return eff
		}
		// Repeated presses replace the previous mark.
		eff.Erase = mark
		eff.Text += p
		eff.Handled = true
		n := utf8.RuneCountInString(p)
		k.lastMark = n
		if mark > 0 && k.trailing >= 0 {
			k.trailing -= mark
		}
		k.emitted(n)
		return eff

	case ActionNext, ActionPrev:
		if !composing {
			return Effect{}
		}
		if a == ActionNext {
			k.engine.NextCandidate()
		} else {
			k.engine.PrevCandidate()
		}
		return Effect{Refresh: true, Handled: true}

	case ActionConfirm:
		if !composing {
			return Effect{}
		}
		out, _ := k.engine.Confirm(k.learnOnConfirm.Load())
		k.confirmed(out)
		return Effect{Text: out.String(), Hide: true, Handled: true}

	case ActionLearn:
		if !composing {
			k.emitted(1)
			return Effect{Text: ".", Handled: true}
		}
		out, _ := k.engine.Confirm(true)
		k.confirmed(out)
		eff := Effect{Text: out.String(), Hide: true, Handled: true}
		if out.Learned {
			eff.Toast = "Learned: " + out.Text
		}
		return eff

	case ActionBackspace:
		if !composing {
			k.trailing = -1
			return Effect{Erase: 1, Handled: true}
		}
		k.engine.DeleteDigit()
		if k.engine.State() == Idle {
			return Effect{Hide: true, Handled: true}
		}
		return Effect{Refresh: true, Handled: true}

	case ActionDeleteWord:
		if composing {
			k.engine.Cancel()
			return Effect{Hide: true, Handled: true}
		}
		if k.trailing < 0 {
			return Effect{Erase: 1, Handled: true}
		}
		n := k.engine.DeleteLastWordSignal() + k.trailing
		k.trailing = -1
		return Effect{Erase: n, Handled: true}

	case ActionCancel:
		if !composing {
			return Effect{}
		}
		k.engine.Cancel()
		return Effect{Hide: true, Handled: true}
	}
	return Effect{}
}

func (k *Keypad) confirmed(out Output) {
	k.trailing = 0
	if out.TrailingSpace {
		k.trailing = 1
	}
}

func (k *Keypad) emitted(n int) {
	if k.trailing >= 0 {
		k.trailing += n
	}
}
