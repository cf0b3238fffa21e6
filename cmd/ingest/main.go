package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"consdocs/internal/ai"
	"consdocs/internal/config"
	"consdocs/internal/embedder"
	"consdocs/internal/ingest"
	"consdocs/internal/storage"
)

// Logs go to stderr; the final JSON report is the only thing written to
// stdout, so runs can be piped into other tools.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		return errors.New("usage: ingest <source_path> [system_hint]")
	}
	path := os.Args[1]
	systemHint := ""
	if len(os.Args) == 3 {
		systemHint = os.Args[2]
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open index database %s: %w", cfg.DBPath, err)
	}
	defer func() {
		_ = store.Close()
	}()

	client, err := ai.NewClient(cfg.AI.ClientConfig())
	if err != nil {
		if !errors.Is(err, ai.ErrNotConfigured) {
			return err
		}
		logger.Warn("ai service not configured, falling back to preview summaries and heuristic tags")
	}
	if client != nil {
		defer func() {
			_ = client.Close()
		}()
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return fmt.Errorf("initialize embedding provider: %w", err)
	}
	defer func() {
		_ = emb.Close()
	}()
	logger.Info("embedding provider ready", "provider", emb.Provider(), "enabled", emb.Enabled())

	ing := ingest.New(store, ai.NewSummarizer(client), ai.NewTagger(client), emb, logger)

	report, err := ing.Ingest(ctx, path, systemHint)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
