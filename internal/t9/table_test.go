package t9

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigitKeyStandardGroups(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		word string
		key  DigitKey
	}{
		{"cat", "228"},
		{"dog", "364"},
		{"home", "4663"},
		{"good", "4663"},
		{"CAT", "228"},
		{"Quiz", "7849"},
		{"hallå", "42552"},
		{"öl", "65"},
		{"straße", "787273"},
		{"café", "2233"},
		{"niño", "6466"},
	}

	for _, tt := range tests {
		got, _, ok := table.DigitKey(tt.word)
		if !ok {
			t.Errorf("DigitKey(%q) not mappable", tt.word)
			continue
		}
		if got != tt.key {
			t.Errorf("DigitKey(%q) = %s, want %s", tt.word, got, tt.key)
		}
	}
}

func TestDigitKeyUnmappable(t *testing.T) {
	table := DefaultTable()

	for _, word := range []string{"don't", "e-mail", "ab1", "日本", ""} {
		_, _, ok := table.DigitKey(word)
		assert.False(t, ok, "word %q should not map", word)
	}

	_, bad, ok := table.DigitKey("x-ray")
	require.False(t, ok)
	assert.Equal(t, '-', bad)
}

func TestDigitKeyDecomposedInput(t *testing.T) {
	table := DefaultTable()

	// "café" with a combining acute accent instead of the precomposed é.
	got, _, ok := table.DigitKey("cafe\u0301")
	require.True(t, ok)
	assert.Equal(t, DigitKey("2233"), got)
}

func TestDigitKeyDeterministic(t *testing.T) {
	table := DefaultTable()
	first, _, _ := table.DigitKey("smörgåsbord")
	for i := 0; i < 50; i++ {
		again, _, _ := table.DigitKey("smörgåsbord")
		require.Equal(t, first, again)
	}
}

func TestNewTableOverrides(t *testing.T) {
	table, err := NewTable(map[string]string{
		"ş": "7",
		"é": "9", // replaces the default
		"Ğ": "4",
	})
	require.NoError(t, err)

	d, ok := table.DigitFor('ş')
	require.True(t, ok)
	assert.Equal(t, byte('7'), d)

	d, _ = table.DigitFor('é')
	assert.Equal(t, byte('9'), d)

	// Keys are stored folded, so both cases resolve.
	d, ok = table.DigitFor('ğ')
	require.True(t, ok)
	assert.Equal(t, byte('4'), d)

	// Untouched defaults survive the merge.
	d, _ = table.DigitFor('å')
	assert.Equal(t, byte('2'), d)
}

func TestNewTableRejectsBadOverrides(t *testing.T) {
	cases := []map[string]string{
		{"ab": "2"},
		{"": "2"},
		{"x": "1"},
		{"x": "0"},
		{"x": "22"},
		{"x": "a"},
	}
	for _, overrides := range cases {
		_, err := NewTable(overrides)
		assert.Error(t, err, "overrides %v", overrides)
	}
}

func TestDigitKeyValid(t *testing.T) {
	assert.True(t, DigitKey("2345").Valid())
	assert.False(t, DigitKey("").Valid())
	assert.False(t, DigitKey("21").Valid())
	assert.False(t, DigitKey("2a").Valid())
}
