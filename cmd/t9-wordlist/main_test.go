package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunImportsFromStdin(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run([]string{"-dir", dir, "-verbose", "en", "-"},
		strings.NewReader("the\nof\nThe\nr2d2\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "mappable:   2")
	assert.Contains(t, stdout.String(), "skipped:    1")
	assert.Contains(t, stdout.String(), "duplicates: 1")
	assert.Contains(t, stdout.String(), `"r2d2"`)

	data, err := os.ReadFile(filepath.Join(dir, "en.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "the\nof\n"))
}

func TestRunAppendFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sv.txt"), []byte("och\n"), 0644))
	src := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("att\noch\n"), 0644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-dir", dir, "-append", "sv", src}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "existing:   1")
	assert.Contains(t, stdout.String(), "added:      1")
	assert.Contains(t, stdout.String(), "total:      2")
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"en"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage:")
}

func TestRunMissingSource(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-dir", t.TempDir(), "en", filepath.Join(t.TempDir(), "none.txt")},
		strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 1, code)
}
