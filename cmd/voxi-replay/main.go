package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/voxilabs/voxi-core/internal/classify"
	"github.com/voxilabs/voxi-core/internal/config"
	"github.com/voxilabs/voxi-core/internal/sentiment"
	"github.com/voxilabs/voxi-core/internal/transcript"
)

var version = "0.1.0-dev"

func main() {
	var (
		mergeFile  string
		mergeTrace bool
		configPath string
		text       string
		categories string
	)
	mergeCmd := flag.NewFlagSet("merge", flag.ExitOnError)
	mergeCmd.StringVar(&mergeFile, "file", "-", "File with one partial result per line (- for stdin)")
	mergeCmd.BoolVar(&mergeTrace, "trace", false, "Print the merge rule applied to each line")

	classifyCmd := flag.NewFlagSet("classify", flag.ExitOnError)
	classifyCmd.StringVar(&configPath, "config", "", "Optional configuration file for sentiment and categories")
	classifyCmd.StringVar(&text, "text", "", "Transcript to classify (defaults to stdin)")
	classifyCmd.StringVar(&categories, "categories", "", "Comma-separated user categories to add")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'merge', 'classify' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "merge":
		mergeCmd.Parse(os.Args[2:])
		if err := runMerge(mergeFile, mergeTrace, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "classify":
		classifyCmd.Parse(os.Args[2:])
		if err := runClassify(configPath, text, categories, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func runMerge(path string, trace bool, out io.Writer) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	m := transcript.NewMerger()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text, outcome := m.Consume(scanner.Text())
		if trace {
			fmt.Fprintf(out, "%-8s %q\n", outcome, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read partials: %w", err)
	}
	fmt.Fprintln(out, strings.TrimSpace(m.Text()))
	return nil
}

func runClassify(configPath, text, extra string, out io.Writer) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		text = string(data)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	scorer, err := sentiment.New(cfg.Sentiment, logger)
	if err != nil {
		return err
	}
	set := classify.NewCategorySet(cfg.Classification.BuiltinCategories, cfg.Classification.FallbackCategory)
	for _, name := range strings.Split(extra, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := set.Add(name); err != nil && !errors.Is(err, classify.ErrDuplicateCategory) {
			return fmt.Errorf("category %q: %w", name, err)
		}
	}

	note, err := classify.NewPipeline(scorer, set, logger).Classify(context.Background(), text)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(note)
}
