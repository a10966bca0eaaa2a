// Command t9-wordlist imports a plain word list into the t9d wordlist
// directory.
//
// The source has one word per line, most frequent first. Words are
// lowercased and deduplicated; words containing characters without a key
// are reported and left out.
//
// Usage:
//
//	t9-wordlist [flags] <lang> <source|->
//
// Examples:
//
//	# Replace the English list
//	t9-wordlist en ~/Downloads/en_50k.txt
//
//	# Add words to the Swedish list from stdin
//	cat extra.txt | t9-wordlist -append sv -
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"t9d/internal/config"
	"t9d/internal/t9"
	"t9d/internal/wordlist"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("t9-wordlist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file supplying wordlist_dir and diacritic_overrides")
	dir := fs.String("dir", "", "wordlist directory (default: from config)")
	appendFlag := fs.Bool("append", false, "merge with the existing list")
	sortFlag := fs.Bool("sort", false, "sort words alphabetically instead of keeping source order")
	verbose := fs.Bool("verbose", false, "list every skipped word")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "t9-wordlist - Import a word list for t9d\n\n")
		fmt.Fprintf(stderr, "Usage: t9-wordlist [flags] <lang> <source|->\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	lang, source := fs.Arg(0), fs.Arg(1)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if *dir == "" {
		*dir = cfg.WordlistDirPath()
	}
	table, err := t9.NewTable(cfg.DiacriticOverrides)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var src io.Reader = stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
		src = f
	}

	stats, err := wordlist.Import(src, wordlist.ImportOptions{
		Language:      lang,
		Dir:           *dir,
		Append:        *appendFlag,
		Sort:          *sortFlag,
		Table:         table,
		CommentPrefix: cfg.CommentPrefix,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %s\n", stats.Path)
	fmt.Fprintf(stdout, "  mappable:   %d\n", stats.Mappable)
	fmt.Fprintf(stdout, "  skipped:    %d\n", len(stats.Skipped))
	fmt.Fprintf(stdout, "  duplicates: %d\n", stats.Duplicates)
	if *appendFlag {
		fmt.Fprintf(stdout, "  existing:   %d\n", stats.Existing)
		fmt.Fprintf(stdout, "  added:      %d\n", stats.Added)
	}
	fmt.Fprintf(stdout, "  total:      %d\n", stats.Total)

	if *verbose {
		for _, s := range stats.Skipped {
			fmt.Fprintf(stdout, "  line %d: %q (no key for %q)\n", s.Line, s.Text, s.Rune)
		}
	}
	return 0
}
