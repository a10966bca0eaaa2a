package main

import (
	"log/slog"
	"slices"
	"sync"

	"t9d/internal/config"
	"t9d/internal/ime"
	"t9d/internal/logging"
	"t9d/internal/wordlist"
)

// liveSettings applies an edited config file to the running engine.
// Learn-on-confirm, the log level and the wordlist directory take effect
// at once; the language set and the learning backend need a restart. The
// wordlist watcher keeps watching the directory it was started on.
type liveSettings struct {
	keypad *ime.Keypad
	engine *ime.Engine
	logger *logging.Logger

	mu          sync.Mutex
	wordlistDir string
	languages   []string
	backend     string
}

func newLiveSettings(k *ime.Keypad, e *ime.Engine, logger *logging.Logger, cfg *config.Config) *liveSettings {
	return &liveSettings{
		keypad:      k,
		engine:      e,
		logger:      logger,
		wordlistDir: cfg.WordlistDirPath(),
		languages:   slices.Clone(cfg.Languages),
		backend:     cfg.Learning.Backend,
	}
}

func (l *liveSettings) apply(cfg *config.Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.keypad.SetLearnOnConfirm(cfg.LearnOnConfirm)

	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil && level != l.logger.Level() {
		l.logger.SetLevel(level)
		l.logger.Info("log level changed", slog.String("level", logging.LevelString(level)))
	}

	if dir := cfg.WordlistDirPath(); dir != l.wordlistDir {
		l.wordlistDir = dir
		lists, errs := wordlist.Load(dir, l.engine.Languages())
		for _, err := range errs {
			l.logger.Warn("wordlist unavailable", slog.Any("error", err))
		}
		for lang, lines := range lists {
			if err := l.engine.ReloadLanguage(lang, lines); err != nil {
				l.logger.Warn("wordlist reload failed", slog.String("lang", lang), slog.Any("error", err))
			}
		}
	}

	if !slices.Equal(cfg.Languages, l.languages) || cfg.Learning.Backend != l.backend {
		l.languages = slices.Clone(cfg.Languages)
		l.backend = cfg.Learning.Backend
		l.logger.Info("languages and learning backend change after a restart")
	}
}
