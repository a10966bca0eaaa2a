package wordlist

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	lines := []string{"  Hello ", "# comment", "", "hello", "w0rd", "café", "zoo"}
	words, skipped, dups := Clean(lines, nil, "")

	assert.Equal(t, []string{"hello", "café", "zoo"}, words)
	assert.Equal(t, 1, dups)
	require.Len(t, skipped, 1)
	assert.Equal(t, 5, skipped[0].Line)
	assert.Equal(t, "w0rd", skipped[0].Text)
	assert.Equal(t, '0', skipped[0].Rune)
}

func TestImportReplace(t *testing.T) {
	dir := t.TempDir()
	writeList(t, dir, "en", "old\n")

	stats, err := Import(strings.NewReader("the\nof\nThe\nx-ray\n"), ImportOptions{Language: "en", Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Mappable)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Len(t, stats.Skipped, 1)
	assert.Equal(t, 0, stats.Existing)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 2, stats.Total)

	lines, err := ReadFile(stats.Path)
	require.NoError(t, err)
	words, _, _ := Clean(lines, nil, "")
	assert.Equal(t, []string{"the", "of"}, words)
}

func TestImportAppend(t *testing.T) {
	dir := t.TempDir()
	writeList(t, dir, "en", "# list\nthe\nof\n")

	stats, err := Import(strings.NewReader("and\nof\nto\n"), ImportOptions{Language: "en", Dir: dir, Append: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Existing)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 4, stats.Total)

	lines, err := ReadFile(stats.Path)
	require.NoError(t, err)
	words, _, _ := Clean(lines, nil, "")
	assert.Equal(t, []string{"the", "of", "and", "to"}, words)
}

func TestImportAppendCreatesList(t *testing.T) {
	dir := t.TempDir() + "/lists"
	stats, err := Import(strings.NewReader("hej\n"), ImportOptions{Language: "sv", Dir: dir, Append: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	_, err = os.Stat(stats.Path)
	assert.NoError(t, err)
}

func TestImportSort(t *testing.T) {
	dir := t.TempDir()
	stats, err := Import(strings.NewReader("zoo\napple\nmoon\n"), ImportOptions{Language: "en", Dir: dir, Sort: true})
	require.NoError(t, err)

	lines, err := ReadFile(stats.Path)
	require.NoError(t, err)
	words, _, _ := Clean(lines, nil, "")
	assert.Equal(t, []string{"apple", "moon", "zoo"}, words)
}

func TestImportInvalidLanguage(t *testing.T) {
	_, err := Import(strings.NewReader("a\n"), ImportOptions{Language: "../x", Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestImportLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Import(strings.NewReader("a\n"), ImportOptions{Language: "en", Dir: dir})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "en.txt", entries[0].Name())
}

func TestHeader(t *testing.T) {
	h := Header("en", 12345, "#")
	assert.Contains(t, h, "# Words: 12,345\n")
	assert.True(t, strings.HasSuffix(h, "\n\n"))
	for _, line := range strings.Split(strings.TrimSpace(h), "\n") {
		assert.True(t, strings.HasPrefix(line, "# "), line)
	}
}
