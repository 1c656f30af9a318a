// Command recap summarizes a long document with an OpenAI-compatible backend,
// reducing chunk summaries recursively until they fit the model context.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"

	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/llm"
	"github.com/dgallion1/recap/internal/output"
	"github.com/dgallion1/recap/internal/parser"
	"github.com/dgallion1/recap/internal/pipeline"
	"github.com/dgallion1/recap/internal/summarize"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type cli struct {
	File string `arg:"" type:"existingfile" help:"Document to summarize (.txt, .md, .html, .csv, .pdf, .docx)."`

	Summary int  `short:"s" default:"5" help:"Summary level, 1 (shortest) to 5 (full summary only)."`
	Keep    bool `short:"k" help:"Keep the intermediate chunk summaries."`
	Context int  `short:"c" default:"${context}" help:"Model context window in tokens."`

	BaseURL     string        `name:"base-url" default:"${base_url}" env:"RECAP_BASE_URL" help:"OpenAI-compatible backend URL."`
	Model       string        `default:"${model}" env:"RECAP_MODEL" help:"Model identifier sent to the backend."`
	APIKey      string        `name:"api-key" env:"RECAP_API_KEY" help:"Backend API key, if required."`
	Timeout     time.Duration `default:"${timeout}" help:"Timeout for each completion call."`
	Concurrency int           `default:"1" help:"Concurrent completion calls per level."`
	Retries     int           `default:"${retries}" help:"Retries per call for transient backend errors."`
	Prompts     string        `type:"path" help:"YAML or TOML file overriding the built-in prompts."`
	OutDir      string        `short:"o" name:"out-dir" default:"." type:"path" help:"Directory for the summary files."`
	NoPolish    bool          `name:"no-polish" help:"Skip the final rewrite of the converged summaries."`
	PDFFallback bool          `name:"pdf-fallback" default:"true" negatable:"" help:"Use pdftotext when the built-in PDF reader fails."`
	Verbose     bool          `short:"v" help:"Debug logging."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var c cli
	exited, exitCode := false, exitOK
	k, err := kong.New(&c,
		kong.Name("recap"),
		kong.Description("Recursively summarize long documents with a local or remote LLM."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exited, exitCode = true, code }),
		kong.Vars{
			"context":  fmt.Sprint(config.DefaultContextWindow),
			"base_url": config.DefaultBaseURL,
			"model":    config.DefaultModel,
			"timeout":  config.DefaultTimeout.String(),
			"retries":  fmt.Sprint(config.DefaultMaxRetries),
		},
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	if _, err := k.Parse(args); exited {
		return exitCode
	} else if err != nil {
		fmt.Fprintf(stderr, "recap: %v\n", err)
		return exitUsage
	}

	level := charmlog.InfoLevel
	if c.Verbose {
		level = charmlog.DebugLevel
	}
	log := slog.New(charmlog.NewWithOptions(stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	}))

	cfg := config.RunConfig{
		ContextWindow:    c.Context,
		Detail:           c.Summary,
		KeepIntermediate: c.Keep,
		BaseURL:          c.BaseURL,
		Model:            c.Model,
		APIKey:           c.APIKey,
		Timeout:          c.Timeout,
		Concurrency:      c.Concurrency,
		MaxRetries:       c.Retries,
		Polish:           !c.NoPolish,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "recap: %v\n", err)
		return exitUsage
	}

	prompts, err := summarize.LoadPrompts(c.Prompts)
	if err != nil {
		fmt.Fprintf(stderr, "recap: %v\n", err)
		return exitUsage
	}

	text, err := parser.ReadFile(c.File, parser.Options{PDFFallbackPdftotext: c.PDFFallback})
	if err != nil {
		log.Error("could not load document", "file", c.File, "error", err)
		return exitFailure
	}

	client := llm.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	defer client.Close()

	start := time.Now()
	log.Info("summarization started", "at", start.Format("2006-01-02 15:04"))

	res, runErr := pipeline.NewRunner(client, cfg, prompts, log).Run(ctx, summarize.Document{Name: c.File, Text: text})

	paths, err := output.Write(c.OutDir, res.Plan)
	for _, p := range paths {
		log.Info("written", "path", p)
	}
	if err != nil {
		log.Error("could not write summaries", "error", err)
		return exitFailure
	}

	stats := client.Stats.Snapshot()
	log.Debug("backend calls", "count", stats.Count, "failures", stats.Failures, "p50_ms", stats.P50Ms, "p95_ms", stats.P95Ms)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("interrupted", "elapsed", time.Since(start).Round(time.Second))
		}
		log.Error("summarization failed", "error", runErr)
		return exitFailure
	}
	log.Info("finished summarizing", "elapsed", time.Since(start).Round(time.Millisecond))
	return exitOK
}
