// Package ime is the composition side of the keypad input method.
//
// An Engine holds the digit sequence being typed, the ranked candidates for
// it and the punctuation cursor. It owns one word index and one learning
// store per active language:
//
//	key ─► Keypad ─► Engine ─► t9.Rank(index, learning) ─► candidates
//	                   │
//	                   └─► Confirm ─► learning.Store.Record ─► Flusher
//
// A Keypad maps numpad keys to engine calls and reports the resulting text
// edits as an Effect. Rendering and key capture live outside this package.
//
// The keypad layout, with NumLock on:
//
//	┌─────┬─────┬─────┬─────┐
//	│ num │  /  │  *  │  -  │
//	│     │ del │ bksp│ prev│
//	├─────┼─────┼─────┼─────┤
//	│  7  │  8  │  9  │  +  │
//	│ pqrs│ tuv │ wxyz│ next│
//	├─────┼─────┼─────┤     │
//	│  4  │  5  │  6  │     │
//	│ ghi │ jkl │ mno │     │
//	├─────┼─────┼─────┼─────┤
//	│  1  │  2  │  3  │enter│
//	│ .,!?│ abc │ def │     │
//	├─────┴─────┼─────┤     │
//	│     0     │  .  │     │
//	│   space   │learn│     │
//	└───────────┴─────┴─────┘
package ime
