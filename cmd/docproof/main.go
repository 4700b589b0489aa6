// Command docproof checks a document page by page with LanguageTool and an
// Ollama-served model and writes a report of the pages with findings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgallion1/docproof/internal/check"
	"github.com/dgallion1/docproof/internal/config"
	"github.com/dgallion1/docproof/internal/discovery"
	"github.com/dgallion1/docproof/internal/metrics"
	"github.com/dgallion1/docproof/internal/parser"
	"github.com/dgallion1/docproof/internal/pipeline"
	"github.com/dgallion1/docproof/internal/report"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitInit        = 3
	exitConnect       = 4
	exitRange       = 5
	exitWrite       = 6
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	input      string
	configPath string
	metricsOut string
	start, end *int
}

// run returns the process exit code. Cancelling ctx interrupts the
// analysis between pages.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, opts, code := parseArgs(args, stderr)
	if code != exitOK {
		return code
	}

	log := cfg.Logging.NewLogger(stderr).With("run_id", uuid.NewString())

	info, err := os.Stat(opts.input)
	if err != nil || info.IsDir() {
		log.Error("input file does not exist or is not a file", "path", opts.input)
		return exitUsage
	}
	if !parser.IsSupportedExtension(opts.input) {
		log.Error("unsupported input file type", "path", opts.input)
		return exitUsage
	}
	if err := pipeline.ValidateRequested(opts.start, opts.end); err != nil {
		log.Error("invalid page range", "error", err)
		return exitRange
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if opts.metricsOut != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(opts.metricsOut, reg); err != nil {
				log.Warn("failed to write metrics", "path", opts.metricsOut, "error", err)
			}
		}()
	}

	log.Info("analyzing document", "input", opts.input, "output", cfg.Output.Path, "format", cfg.Output.Format)

	lt := check.NewLanguageTool(check.LanguageToolConfig{
		Language:     cfg.LanguageTool.Language,
		CacheDir:     cfg.LanguageTool.CacheDir,
		ServerURL:    cfg.LanguageTool.ServerURL,
		JavaPath:     cfg.LanguageTool.JavaPath,
		DownloadURL:  cfg.LanguageTool.DownloadURL,
		StartTimeout: cfg.LanguageTool.StartTimeout,
	}, log)
	if err := lt.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			log.Warn("interrupted during startup")
			return exitInterrupted
		}
		log.Error("failed to initialize languagetool", "error", err)
		m.Run("error")
		return exitInit
	}
	defer func() {
		if err := lt.Cleanup(); err != nil {
			log.Warn("languagetool cleanup failed", "error", err)
		}
	}()

	host := discovery.OllamaHost(cfg.Ollama.Host)
	stats := check.NewLLMStats(time.Hour)
	ollama := check.NewOllama(check.OllamaConfig{
		Host:          host,
		Model:         cfg.Ollama.Model,
		Timeout:       cfg.Ollama.Timeout,
		ConnectTimeout:  cfg.Ollama.ConnectTimeout,
		MaxInputChars: cfg.Ollama.MaxInputChars,
	}, stats, log)
	if err := ollama.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			log.Warn("interrupted during startup")
			return exitInterrupted
		}
		log.Error("cannot reach ollama", "host", host, "error", err, "hint", "ollama pull "+cfg.Ollama.Model)
		m.Run("error")
		return exitConnect
	}
	defer ollama.Cleanup()

	doc, err := parser.Open(opts.input, parser.Options{FallbackPdftotext: cfg.PDF.FallbackPdftotext})
	if err != nil {
		log.Error("failed to open document", "error", err)
		m.Run("error")
		return exitUsage
	}
	defer doc.Close()

	total, err := doc.PageCount()
	if err != nil {
		log.Error("failed to read page count", "error", err)
		m.Run("error")
		return exitUsage
	}
	r, err := pipeline.ResolveRange(opts.start, opts.end, total)
	if err != nil {
		log.Error("invalid page range", "error", err)
		m.Run("error")
		return exitRange
	}
	log.Info("document opened", "pages", total, "start", r.Start, "end", r.End, "selected", r.Len())

	runOpts := pipeline.Options{
		Progress: pipeline.NewTerminalProgress(stderr),
		Metrics:  m,
	}
	if cfg.Debug.Enabled {
		sink, err := pipeline.NewDirSink(cfg.Debug.Dir, opts.input, time.Now())
		if err != nil {
			log.Warn("debug output disabled", "error", err)
		} else {
			runOpts.Debug = sink
			log.Info("debug output enabled", "dir", sink.Dir)
		}
	}

	agg, err := pipeline.NewOrchestrator(lt, ollama, log, runOpts).Run(ctx, doc, r)
	if errors.Is(err, pipeline.ErrInterrupted) {
		log.Warn("analysis interrupted, no report written")
		return exitInterrupted
	}
	if err != nil {
		log.Error("analysis failed", "error", err)
		return exitError
	}

	format, _ := report.ParseFormat(cfg.Output.Format)
	body, err := report.Render(agg, format)
	if err != nil {
		log.Error("failed to render report", "error", err)
		return exitWrite
	}
	if err := os.WriteFile(cfg.Output.Path, body, 0o644); err != nil {
		log.Error("failed to write report", "path", cfg.Output.Path, "error", err)
		return exitWrite
	}

	snap := stats.Snapshot()
	log.Info("analysis completed",
		"languagetool_findings", agg.Totals[report.Deterministic],
		"llm_findings", agg.Totals[report.Advisory],
		"pages_with_findings", len(agg.Pages),
		"pages_analyzed", agg.PagesAnalyzed,
		"pages_skipped", agg.PagesSkipped,
		"pages_failed", agg.PagesFailed,
		"output", cfg.Output.Path,
	)
	log.Info("llm latency",
		"calls", snap.Count,
		"failures", snap.Failures,
		"avg_ms", snap.AvgMs,
		"p50_ms", snap.P50Ms,
		"p95_ms", snap.P95Ms,
		"max_ms", snap.MaxMs,
	)
	return exitOK
}

// parseArgs layers explicitly set flags over the loaded configuration.
func parseArgs(args []string, stderr io.Writer) (config.Config, options, int) {
	fs := flag.NewFlagSet("docproof", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: docproof -pdf <file> [flags]")
		fmt.Fprintln(stderr, "\nExamples:")
		fmt.Fprintln(stderr, "  docproof -pdf documento.pdf")
		fmt.Fprintln(stderr, "  docproof -pdf documento.pdf -model mistral:latest")
		fmt.Fprintln(stderr, "  docproof -pdf documento.pdf -start-page 10 -end-page 20")
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.input, "pdf", "", "document to analyze (pdf, docx, md, html, txt)")
	fs.StringVar(&opts.input, "doc", "", "alias for -pdf")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	fs.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics to this file")
	out := fs.String("out", config.DefaultOutput, "report file")
	format := fs.String("format", "text", "report format: text, markdown, html, json")
	fs.Int("start-page", 0, "first page to analyze (1-based)")
	fs.Int("end-page", 0, "last page to analyze (inclusive)")
	debug := fs.Bool("debug", false, "save the extracted text of each page")
	model := fs.String("model", config.DefaultModel, "Ollama model")
	host := fs.String("ollama-host", "", "Ollama host (default: auto-detected)")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, opts, exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return config.Config{}, opts, exitUsage
	}
	if opts.input == "" {
		fmt.Fprintln(stderr, "-pdf is required")
		fs.Usage()
		return config.Config{}, opts, exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return config.Config{}, opts, exitUsage
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Path = *out
		case "format":
			cfg.Output.Format = *format
		case "debug":
			cfg.Debug.Enabled = *debug
		case "model":
			cfg.Ollama.Model = *model
		case "ollama-host":
			cfg.Ollama.Host = *host
		case "start-page", "end-page":
			n, err := strconv.Atoi(f.Value.String())
			if err != nil {
				flagErr = err
				return
			}
			if f.Name == "start-page" {
				opts.start = &n
			} else {
				opts.end = &n
			}
		}
	})
	if flagErr != nil {
		fmt.Fprintln(stderr, flagErr)
		return config.Config{}, opts, exitUsage
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "invalid configuration:", err)
		return config.Config{}, opts, exitUsage
	}
	return cfg, opts, exitOK
}
