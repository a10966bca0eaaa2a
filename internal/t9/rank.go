package t9

import (
	"math"
	"sort"

	"golang.org/x/text/cases"
)

// Boosts exposes the learned usage of one language to the ranker.
type Boosts interface {
	// Boost returns the confirm count and last confirm sequence number of
	// word, or zeros when it was never learned.
	Boost(word string) (count, seq uint64)

	// Lookup returns learned words typed with key.
	Lookup(key DigitKey) []string
}

// Source is one active language: its index and, optionally, its boosts.
type Source struct {
	Index  *Index
	Boosts Boosts
}

// Candidate is one ranked suggestion.
type Candidate struct {
	Text     string
	Language string
	Rank     int
	Count    uint64
	Seq      uint64
}

// Learned reports whether the candidate carries a learning boost.
func (c Candidate) Learned() bool {
	return c.Count > 0
}

// learnedOnlyRank places learned words missing from the wordlist after
// every indexed word of their language.
const learnedOnlyRank = math.MaxInt32

type ranked struct {
	Candidate
	order int // activation order of the language
}

// Rank merges the words typed with key across sources, given in activation
// order, into at most limit candidates:
//
//  1. learned words first, by confirm count then most recent confirm;
//  2. unlearned words after, by activation order then rank;
//  3. duplicates by case-insensitive text collapse to their first occurrence.
//
// The result is deterministic for a fixed key, source order and boosts.
func Rank(key DigitKey, sources []Source, limit int) []Candidate {
	if limit <= 0 || key == "" {
		return nil
	}

	var learned, unlearned []ranked
	for order, src := range sources {
		if src.Index == nil {
			continue
		}
		lang := src.Index.Language()
		words := src.Index.Lookup(key)

		if src.Boosts != nil {
			for _, text := range src.Boosts.Lookup(key) {
				if _, ok := src.Index.RankOf(key, text); ok {
					continue
				}
				words = append(words, Word{Text: text, Language: lang, Rank: learnedOnlyRank})
			}
		}

		for _, w := range words {
			c := ranked{
				Candidate: Candidate{Text: w.Text, Language: lang, Rank: w.Rank},
				order:     order,
			}
			if src.Boosts != nil {
				c.Count, c.Seq = src.Boosts.Boost(w.Text)
			}
			if c.Count > 0 {
				learned = append(learned, c)
			} else {
				unlearned = append(unlearned, c)
			}
		}
	}

	sort.SliceStable(learned, func(i, j int) bool {
		a, b := learned[i], learned[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Seq != b.Seq {
			return a.Seq > b.Seq
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Rank < b.Rank
	})
	sort.SliceStable(unlearned, func(i, j int) bool {
		a, b := unlearned[i], unlearned[j]
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Rank < b.Rank
	})

	fold := cases.Fold()
	seen := make(map[string]struct{}, len(learned)+len(unlearned))
	out := make([]Candidate, 0, min(limit, len(learned)+len(unlearned)))
	for _, group := range [][]ranked{learned, unlearned} {
		for _, c := range group {
			if len(out) == limit {
				return out
			}
			k := fold.String(c.Text)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, c.Candidate)
		}
	}
	return out
}
