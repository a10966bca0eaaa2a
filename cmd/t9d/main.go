// Command t9d is a T9 predictive text engine driven from the terminal.
//
// Keys are read from standard input, one or more per line, and applied to
// a line of text the way the numpad overlay applies them to the focused
// field. It is useful for trying wordlists and learning settings.
//
// Usage:
//
//	t9d [flags]
//
// Examples:
//
//	# Type with the configured languages
//	t9d
//
//	# English and Swedish, learning kept in memory only
//	t9d -lang en,sv -ephemeral
//
//	# List installed wordlists
//	t9d -list-langs
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"t9d/internal/config"
	"t9d/internal/ime"
	"t9d/internal/learning"
	"t9d/internal/logging"
	"t9d/internal/wordlist"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("t9d", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default: search $T9D_CONFIG, ./config.*, platform dir)")
	langs := fs.String("lang", "", "comma separated languages, overrides the config")
	listLangs := fs.Bool("list-langs", false, "list installed wordlists and exit")
	ephemeral := fs.Bool("ephemeral", false, "keep learned words in memory only")
	initConfig := fs.Bool("init-config", false, "write the default config if none exists and exit")
	width := fs.Int("width", 80, "candidate strip width in columns")
	versionFlag := fs.Bool("version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "t9d - T9 predictive text engine\n\n")
		fmt.Fprintf(stderr, "Usage: t9d [flags]\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *versionFlag {
		fmt.Fprintf(stdout, "t9d %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return 0
	}

	// Optional; the environment may already carry the settings.
	_ = godotenv.Load(".env")

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.FindConfigFile()
		}
		cfg, created, err := config.LoadOrCreate(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if created {
			fmt.Fprintf(stdout, "Wrote default config (languages: %s)\n", strings.Join(cfg.Languages, ", "))
		} else {
			fmt.Fprintln(stdout, "Config already exists")
		}
		return 0
	}

	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	var loader *config.Loader
	var cfg *config.Config
	var err error
	if path != "" {
		loader = config.NewLoader(path)
		cfg, err = loader.Load()
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	fileCfg := cfg.Clone()
	if *langs != "" {
		cfg.Languages = strings.Split(*langs, ",")
		for i := range cfg.Languages {
			cfg.Languages[i] = strings.TrimSpace(cfg.Languages[i])
		}
	}
	if *ephemeral {
		cfg.Learning.Backend = "memory"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if *listLangs {
		return listLanguages(cfg, stdout, stderr)
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Close()
	logging.SetDefault(logger)

	var engine *ime.Engine
	crash := logging.NewCrashHandler(&logging.CrashHandlerConfig{
		Version:   version,
		Component: "t9d",
		Stderr:    stderr,
		OnCrash: func(logging.CrashReport) {
			if engine != nil {
				_ = engine.Flush()
			}
		},
	})
	defer crash.Recover(nil)

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeBackend()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lists, errs := wordlist.Load(cfg.WordlistDirPath(), cfg.Languages)
	for _, err := range errs {
		logger.Warn("wordlist unavailable", slog.Any("error", err))
	}

	engine, err = ime.New(ctx, cfg.EngineOptions(), lists, backend, logger.Logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("flush learned words", slog.Any("error", err))
		}
	}()
	crash.SetEngineID(engine.ID())

	for _, w := range engine.Warnings() {
		if errors.Is(w, learning.ErrNoStoredData) {
			logger.Info("starting without learned words", slog.Any("reason", w))
			continue
		}
		fmt.Fprintf(stderr, "warning: %v\n", w)
	}
	if engine.RawDigitMode() {
		fmt.Fprintln(stderr, "warning: no words loaded, digits are typed as they are")
	}

	if cfg.Watch.Wordlists {
		if w, err := startWordlistWatcher(cfg, engine); err != nil {
			logger.Warn("wordlist watch disabled", slog.Any("error", err))
		} else {
			go wordlist.Follow(w, engine, logger.Logger)
			defer w.Stop()
		}
	}

	keypad := ime.NewKeypad(engine, cfg.LearnOnConfirm)
	if loader != nil {
		defer loader.Close()
		live := newLiveSettings(keypad, engine, logger, fileCfg)
		loader.OnChange(live.apply)
		if err := loader.Watch(); err != nil {
			logger.Warn("config watch disabled", slog.Any("error", err))
		} else {
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case err := <-loader.Errors():
						logger.Warn("config reload failed", slog.Any("error", err))
					}
				}
			}()
		}
	}

	fmt.Fprintf(stdout, "t9d %s  languages: %s\n", version, strings.Join(engine.Languages(), ", "))
	printLegend(stdout)

	s := newSession(keypad, stdout, *width)
	if err := loop(ctx, s, stdin, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "\n%s\n", s.Text())
	return 0
}

// loop feeds input lines to the session until EOF or ctx is cancelled.
func loop(ctx context.Context, s *session, stdin io.Reader, stderr io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			for _, tok := range strings.Fields(line) {
				if err := s.handle(tok); err != nil {
					fmt.Fprintf(stderr, "%v\n", err)
				}
			}
			s.render()
		}
	}
}

// startWordlistWatcher watches the wordlists of the active languages. The
// watcher is released when it cannot start.
func startWordlistWatcher(cfg *config.Config, engine *ime.Engine) (*wordlist.Watcher, error) {
	w, err := wordlist.NewWatcher(cfg.WordlistDirPath(), engine.Languages(), cfg.Debounce())
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

func newLogger(lc config.LoggingConfig, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	if lc.Output != "" {
		cfg.Output = lc.Output
	}
	if lc.FilePath != "" {
		cfg.FilePath = lc.FilePath
	}
	cfg.MaxSize = int64(lc.MaxSizeMB)
	cfg.MaxBackups = lc.MaxBackups
	cfg.Compress = true
	if cfg.Output == "stderr" {
		cfg.Writer = stderr
	}
	return logging.New(cfg)
}

// openBackend returns the learning backend selected by the config and a
// function releasing it.
func openBackend(cfg *config.Config) (learning.Backend, func() error, error) {
	switch cfg.Learning.Backend {
	case "memory":
		return learning.NewMemoryBackend(), func() error { return nil }, nil
	case "sqlite":
		db, err := learning.OpenSQLite(cfg.Learning.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "file", "":
		fb, err := learning.NewFileBackend(cfg.UserDictPath())
		if err != nil {
			return nil, nil, err
		}
		return fb, func() error { return nil }, nil
	}
	return nil, nil, errors.New("unknown learning backend " + cfg.Learning.Backend)
}

func listLanguages(cfg *config.Config, stdout, stderr io.Writer) int {
	langs, err := wordlist.ListLanguages(cfg.WordlistDirPath(), cfg.CommentPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(langs) == 0 {
		fmt.Fprintf(stdout, "No wordlists in %s\n", cfg.WordlistDirPath())
		return 0
	}
	active := make(map[string]bool, len(cfg.Languages))
	for _, l := range cfg.Languages {
		active[l] = true
	}
	for _, l := range langs {
		mark := " "
		if active[l.Code] {
			mark = "*"
		}
		fmt.Fprintf(stdout, "%s %-8s %8d words  %s\n", mark, l.Code, l.Words, l.Path)
	}
	return 0
}
