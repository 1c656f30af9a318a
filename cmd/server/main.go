package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/recap/internal/api"
	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/llm"
	"github.com/dgallion1/recap/internal/pipeline"
	"github.com/dgallion1/recap/internal/summarize"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Run(config.MaxDetail, false).Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	prompts, err := summarize.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		log.Error("invalid prompts file", "path", cfg.PromptsFile, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	client := llm.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, client, prompts, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, client, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting uploads before the queue closes.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		client.Close()
	}()

	log.Info("starting recap server",
		"port", cfg.Port,
		"base_url", client.BaseURL(),
		"model", cfg.Model,
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
