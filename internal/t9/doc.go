// Package t9 implements the keypad prediction core: the character to digit
// table, per-language word indexes keyed by digit sequence, and the ranker
// that merges several indexes and learned boosts into one candidate list.
//
// Keypad layout:
//
//	2=abc  3=def  4=ghi  5=jkl  6=mno  7=pqrs  8=tuv  9=wxyz
//
// Accented and special letters are mapped through the same table. The
// defaults cover Nordic, German, French and Spanish; callers extend or
// replace entries with overrides at construction time.
package t9
