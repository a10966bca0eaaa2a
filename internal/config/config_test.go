package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvLanguages, EnvMaxCandidates, EnvWordlistDir, EnvUserDictDir, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, []string{"en"}, cfg.Languages)
	assert.Equal(t, 6, cfg.MaxCandidates)
	assert.Equal(t, "#", cfg.CommentPrefix)
	assert.Len(t, cfg.Punctuation, 13)
	assert.Equal(t, "file", cfg.Learning.Backend)
	assert.InDelta(t, 0.93, cfg.Overlay.Opacity, 1e-9)
	assert.True(t, strings.Contains(cfg.WordlistDir, "t9d"), cfg.WordlistDir)
}

func TestLoadNonexistent(t *testing.T) {
	clearEnv(t)

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.toml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Languages, cfg.Languages)
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
version = 1
languages = ["sv", "en"]
wordlist_dir = "/opt/t9/words"
max_candidates = 4
learn_on_confirm = true

[diacritic_overrides]
"ş" = "7"

[learning]
backend = "memory"
batch_size = 5

[logging]
level = "debug"
`)

	l := NewLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Nil(t, l.Migration())
	assert.Same(t, cfg, l.Config())

	assert.Equal(t, []string{"sv", "en"}, cfg.Languages)
	assert.Equal(t, "/opt/t9/words", cfg.WordlistDir)
	assert.Equal(t, 4, cfg.MaxCandidates)
	assert.True(t, cfg.LearnOnConfirm)
	assert.Equal(t, map[string]string{"ş": "7"}, cfg.DiacriticOverrides)
	assert.Equal(t, "memory", cfg.Learning.Backend)
	assert.Equal(t, 5, cfg.Learning.BatchSize)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset values keep their defaults.
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Len(t, cfg.Punctuation, 13)
}

func TestLoadLegacyJSON(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
  "_comment": "languages in priority order",
  "languages": ["en", "fr"],
  "wordlist_dir": "wordlists",
  "user_dict_dir": "~/.config/numpad_t9",
  "overlay": {"max_candidates": 8, "opacity": 0.5},
  "punctuation": [".", ","]
}`)

	l := NewLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, 8, cfg.MaxCandidates)
	assert.Zero(t, cfg.Overlay.MaxCandidates)
	assert.InDelta(t, 0.5, cfg.Overlay.Opacity, 1e-9)
	assert.Equal(t, 16, cfg.Overlay.OffsetX, "partial overlay keeps defaults")
	assert.Equal(t, []string{".", ","}, cfg.Punctuation)
	assert.Equal(t, filepath.Join(dir, "wordlists"), cfg.WordlistDir)

	m := l.Migration()
	require.NotNil(t, m)
	assert.Equal(t, 0, m.FromVersion)
	assert.Equal(t, Version, m.ToVersion)
	assert.Contains(t, m.Changes, "moved overlay.max_candidates to max_candidates")
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.yaml", `
version: 1
languages: [de]
learning:
  backend: sqlite
  sqlite_path: /tmp/t9d-test/learning.db
`)

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"de"}, cfg.Languages)
	assert.Equal(t, "sqlite", cfg.Learning.Backend)
}

func TestLoadAutoDetect(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tomlPath := writeFile(t, dir, "t9d.conf", "version = 1\nlanguages = [\"nl\"]\n")
	cfg, err := NewLoader(tomlPath).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"nl"}, cfg.Languages)

	jsonPath := writeFile(t, dir, "t9d.cfg", `{"version": 1, "languages": ["it"]}`)
	cfg, err = NewLoader(jsonPath).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"it"}, cfg.Languages)
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name   string
		file   string
		fields []string
	}{
		{
			name:   "no languages",
			file:   "version = 1\nlanguages = []\n",
			fields: []string{"languages"},
		},
		{
			name:   "bad backend and opacity",
			file:   "version = 1\n[learning]\nbackend = \"redis\"\n[overlay]\nopacity = 1.5\n",
			fields: []string{"learning.backend", "overlay.opacity"},
		},
		{
			name:   "sqlite without path",
			file:   "version = 1\n[learning]\nbackend = \"sqlite\"\nsqlite_path = \"\"\n",
			fields: []string{"learning.sqlite_path"},
		},
		{
			name:   "bad override",
			file:   "version = 1\n[diacritic_overrides]\n\"ab\" = \"2\"\n",
			fields: []string{`diacritic_overrides["ab"]`},
		},
		{
			name:   "duplicate and bad language",
			file:   "version = 1\nlanguages = [\"en\", \"en\", \"e n\"]\n",
			fields: []string{"languages[1]", "languages[2]"},
		},
		{
			name:   "future version",
			file:   "version = 99\n",
			fields: []string{"version"},
		},
		{
			name:   "log file missing",
			file:   "version = 1\n[logging]\noutput = \"file\"\nfile_path = \"\"\n",
			fields: []string{"logging.file_path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "config.toml", tt.file)
			_, err := NewLoader(path).Load()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.ElementsMatch(t, tt.fields, verrs.Fields())
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.toml", "languages = [\n")
	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode TOML")
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLanguages, "sv, en,,de")
	t.Setenv(EnvMaxCandidates, "9")
	t.Setenv(EnvWordlistDir, "/srv/words")
	t.Setenv(EnvUserDictDir, "/srv/user")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.Equal(t, []string{"sv", "en", "de"}, cfg.Languages)
	assert.Equal(t, 9, cfg.MaxCandidates)
	assert.Equal(t, "/srv/words", cfg.WordlistDir)
	assert.Equal(t, "/srv/user", cfg.UserDictDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvOverridesBadInt(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMaxCandidates, "many")

	cfg := DefaultConfig()
	err := cfg.ApplyEnvOverrides()
	require.Error(t, err)
	assert.Equal(t, 6, cfg.MaxCandidates)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLanguages, "de,fr")
	t.Setenv(EnvMaxCandidates, "4")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "fr"}, cfg.Languages)
	assert.Equal(t, 4, cfg.MaxCandidates)
	assert.Equal(t, DefaultConfig().Punctuation, cfg.Punctuation)

	t.Setenv(EnvMaxCandidates, "lots")
	_, err = LoadFromEnv()
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.toml", "version = 1\nlanguages = [\"en\"]\n")
	t.Setenv(EnvLanguages, "fr")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"fr"}, cfg.Languages)
}

func TestFindConfigFileEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfig, "/etc/t9d/custom.toml")
	assert.Equal(t, "/etc/t9d/custom.toml", FindConfigFile())
}

func TestSaveConfigRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Languages = []string{"sv"}
	cfg.DiacriticOverrides = map[string]string{"ğ": "4"}

	for _, name := range []string{"out.toml", "out.json", "out.yaml"} {
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, SaveConfig(cfg, path))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		got, err := NewLoader(path).Load()
		require.NoError(t, err, name)
		assert.Equal(t, cfg.Languages, got.Languages, name)
		assert.Equal(t, cfg.DiacriticOverrides, got.DiacriticOverrides, name)
		assert.Equal(t, Version, got.Version, name)
	}
}

func TestLoadOrCreate(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	_, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"en"}, cfg.Languages)
}

func TestEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Learning.FlushIntervalMs = 0
	cfg.Learning.BatchSize = 0

	opts := cfg.EngineOptions()
	assert.Equal(t, cfg.Languages, opts.Languages)
	assert.Equal(t, cfg.MaxCandidates, opts.MaxCandidates)
	assert.Negative(t, opts.FlushInterval)
	assert.Negative(t, opts.BatchSize)

	cfg.Learning.FlushIntervalMs = 1500
	assert.Equal(t, 1500*time.Millisecond, cfg.EngineOptions().FlushInterval)
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiacriticOverrides = map[string]string{"ş": "7"}

	clone := cfg.Clone()
	clone.Languages[0] = "xx"
	clone.DiacriticOverrides["ş"] = "2"

	assert.Equal(t, "en", cfg.Languages[0])
	assert.Equal(t, "7", cfg.DiacriticOverrides["ş"])
}

func TestWatchReloads(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "version = 1\nlanguages = [\"en\"]\n")

	l := NewLoader(path)
	l.debounce = 10 * time.Millisecond
	_, err := l.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 16)
	l.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	require.NoError(t, l.Watch())
	defer l.Close()

	writeFile(t, dir, "config.toml", "version = 1\nlanguages = [\"sv\"]\n")

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if len(cfg.Languages) == 1 && cfg.Languages[0] == "sv" {
				assert.Equal(t, []string{"sv"}, l.Config().Languages)
				return
			}
		case <-timeout:
			t.Fatal("no reload after write")
		}
	}
}

func TestWatchKeepsConfigOnInvalidEdit(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "version = 1\nlanguages = [\"en\"]\n")

	l := NewLoader(path)
	l.debounce = 10 * time.Millisecond
	_, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, l.Watch())
	defer l.Close()

	writeFile(t, dir, "config.toml", "version = 1\nmax_candidates = 0\n")

	select {
	case err := <-l.Errors():
		assert.Contains(t, err.Error(), "reload config")
	case <-time.After(5 * time.Second):
		t.Fatal("no error after invalid write")
	}
	assert.Equal(t, 6, l.Config().MaxCandidates)
}
