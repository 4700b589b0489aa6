package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dgallion1/docproof/internal/api"
	"github.com/dgallion1/docproof/internal/check"
	"github.com/dgallion1/docproof/internal/config"
	"github.com/dgallion1/docproof/internal/discovery"
	"github.com/dgallion1/docproof/internal/metrics"
	"github.com/dgallion1/docproof/internal/parser"
	"github.com/dgallion1/docproof/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg.Logging.Format = "json"
	log = cfg.Logging.NewLogger(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize checkers.
	lt := check.NewLanguageTool(check.LanguageToolConfig{
		Language:     cfg.LanguageTool.Language,
		CacheDir:     cfg.LanguageTool.CacheDir,
		ServerURL:    cfg.LanguageTool.ServerURL,
		JavaPath:     cfg.LanguageTool.JavaPath,
		DownloadURL:  cfg.LanguageTool.DownloadURL,
		StartTimeout: cfg.LanguageTool.StartTimeout,
	}, log)
	if err := lt.Initialize(ctx); err != nil {
		log.Error("failed to initialize languagetool", "error", err)
		os.Exit(1)
	}

	stats := check.NewLLMStats(time.Hour)
	ollama := check.NewOllama(check.OllamaConfig{
		Host:          discovery.OllamaHost(cfg.Ollama.Host),
		Model:         cfg.Ollama.Model,
		Timeout:       cfg.Ollama.Timeout,
		ConnectTimeout:  cfg.Ollama.ConnectTimeout,
		MaxInputChars: cfg.Ollama.MaxInputChars,
	}, stats, log)
	if err := ollama.Initialize(ctx); err != nil {
		log.Error("cannot reach ollama", "error", err)
		lt.Cleanup()
		os.Exit(1)
	}

	// Initialize pipeline.
	worker := pipeline.NewWorker(lt, ollama, log, m,
		parser.Options{FallbackPdftotext: cfg.PDF.FallbackPdftotext}, cfg.Server.TmpDir)
	queue := pipeline.NewQueue(pipeline.QueueConfig{
		MaxQueueSize: cfg.Server.MaxQueueSize,
		JobTTL:       cfg.Server.JobTTL,
	}, worker, log)
	queue.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(queue, stats, reg, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		queue.Stop()
		ollama.Cleanup()
		if err := lt.Cleanup(); err != nil {
			log.Warn("languagetool cleanup failed", "error", err)
		}
	}()

	log.Info("starting docproof", "port", cfg.Server.Port, "model", cfg.Ollama.Model)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		queue.Stop()
		lt.Cleanup()
		os.Exit(1)
	}
	<-done
}
