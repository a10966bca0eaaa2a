package t9

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLookup(t *testing.T) {
	idx := Build("en", []string{"home", "good", "gone", "hood"}, BuildOptions{})

	words := idx.Lookup("4663")
	require.Len(t, words, 4)
	assert.Equal(t, "home", words[0].Text)
	assert.Equal(t, "good", words[1].Text)
	assert.Equal(t, "gone", words[2].Text)
	assert.Equal(t, "hood", words[3].Text)
	for i, w := range words {
		assert.Equal(t, i, w.Rank)
		assert.Equal(t, "en", w.Language)
	}

	assert.Empty(t, idx.Lookup("9999"))
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 1, idx.Keys())
	assert.Equal(t, "en", idx.Language())
}

func TestBuildSkipsCommentsAndBlanks(t *testing.T) {
	lines := []string{
		"# en word list",
		"",
		"   ",
		"  cat  ",
		"#dog",
		"bat",
	}
	idx := Build("en", lines, BuildOptions{})

	assert.Equal(t, 2, idx.Len())
	words := idx.Lookup("228")
	require.Len(t, words, 2)
	assert.Equal(t, "cat", words[0].Text)
	assert.Equal(t, 0, words[0].Rank)
	assert.Equal(t, "bat", words[1].Text)
	assert.Equal(t, 1, words[1].Rank)
	assert.Empty(t, idx.Lookup("364"))
}

func TestBuildCustomCommentPrefix(t *testing.T) {
	idx := Build("en", []string{"; note", "#hash"}, BuildOptions{CommentPrefix: ";"})

	// "#hash" is not a comment here, but '#' has no digit.
	assert.Equal(t, 0, idx.Len())
	skipped := idx.Skipped()
	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].Line)
	assert.Equal(t, '#', skipped[0].Rune)
}

func TestBuildRecordsSkippedWords(t *testing.T) {
	idx := Build("en", []string{"cat", "don't", "dog", "r2d2"}, BuildOptions{})

	assert.Equal(t, 2, idx.Len())
	skipped := idx.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, SkippedWord{Line: 2, Text: "don't", Rune: '\''}, skipped[0])
	assert.Equal(t, SkippedWord{Line: 4, Text: "r2d2", Rune: '2'}, skipped[1])

	// Skipped lines do not consume ranks.
	dog := idx.Lookup("364")
	require.Len(t, dog, 1)
	assert.Equal(t, 1, dog[0].Rank)
}

func TestBuildDuplicateKeepsFirstRank(t *testing.T) {
	idx := Build("en", []string{"cat", "bat", "Cat"}, BuildOptions{})

	words := idx.Lookup("228")
	require.Len(t, words, 2)
	assert.Equal(t, "cat", words[0].Text)
	assert.Equal(t, "bat", words[1].Text)
}

func TestBuildKeepsWordsThatFoldAlikeUnderDifferentKeys(t *testing.T) {
	idx := Build("de", []string{"straße", "strasse"}, BuildOptions{})

	require.Equal(t, 2, idx.Len())
	assert.Empty(t, idx.Skipped())

	sharp := idx.Lookup("787273")
	require.Len(t, sharp, 1)
	assert.Equal(t, "straße", sharp[0].Text)
	assert.Equal(t, 0, sharp[0].Rank)

	plain := idx.Lookup("7872773")
	require.Len(t, plain, 1)
	assert.Equal(t, "strasse", plain[0].Text)
	assert.Equal(t, 1, plain[0].Rank)
}

func TestBuildUsesTable(t *testing.T) {
	table, err := NewTable(map[string]string{"ş": "7"})
	require.NoError(t, err)

	idx := Build("tr", []string{"şu"}, BuildOptions{Table: table})
	words := idx.Lookup("78")
	require.Len(t, words, 1)
	assert.Equal(t, "şu", words[0].Text)
}

func TestLookupReturnsCopy(t *testing.T) {
	idx := Build("en", []string{"cat"}, BuildOptions{})

	words := idx.Lookup("228")
	words[0].Text = "mutated"
	assert.Equal(t, "cat", idx.Lookup("228")[0].Text)
}

func TestRankOf(t *testing.T) {
	idx := Build("en", []string{"cat", "bat"}, BuildOptions{})

	rank, ok := idx.RankOf("228", "BAT")
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	_, ok = idx.RankOf("228", "act")
	assert.False(t, ok)
}

func TestExactRankOf(t *testing.T) {
	idx := Build("de", []string{"hand", "Hand"}, BuildOptions{})

	rank, ok := idx.ExactRankOf("4263", "hand")
	require.True(t, ok)
	assert.Equal(t, 0, rank)

	// "Hand" folded onto "hand" at build time.
	_, ok = idx.ExactRankOf("4263", "Hand")
	assert.False(t, ok)
	_, ok = idx.ExactRankOf("4263", "HAND")
	assert.False(t, ok)
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	assert.Empty(t, idx.Lookup("2"))
	assert.Zero(t, idx.Len())
	assert.Zero(t, idx.Keys())
	assert.Empty(t, idx.Skipped())
}
