// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/lexmap"
	"github.com/poiesic/lexmap/ai"
	"github.com/poiesic/lexmap/api"
)

// config is read from the environment, after .env has been applied.
type config struct {
	Port           string
	DBPath         string
	OffensesPath   string
	SuccessorsPath string
	EmbeddingHost  string
	EmbeddingModel string
	LogLevel       slog.Level
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func loadConfig() (*config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &config{
		Port:           getenv("PORT", "8080"),
		DBPath:         getenv("LEXMAP_DB", "./lexmap_db"),
		OffensesPath:   getenv("LEXMAP_OFFENSES", "ipc_sections.csv"),
		SuccessorsPath: getenv("LEXMAP_SUCCESSORS", "bns_sections.csv"),
		EmbeddingHost:  getenv("LEXMAP_EMBEDDING_HOST", ai.DefaultEmbeddingHost),
		EmbeddingModel: getenv("LEXMAP_EMBEDDING_MODEL", ai.DefaultEmbeddingModel),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LEXMAP_LOG_LEVEL", "info"))); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := run(cfg); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config) error {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.EmbeddingHost),
		ai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err := aiConfig.Validate(); err != nil {
		return err
	}

	assistant, err := lexmap.Open(cfg.DBPath, lexmap.WithAIConfig(aiConfig))
	if err != nil {
		return err
	}
	defer assistant.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	idx, err := assistant.LoadCorpus(ctx, cfg.OffensesPath, cfg.SuccessorsPath)
	if err != nil {
		return err
	}
	slog.Info("corpus ready",
		"offenses", idx.Len(),
		"successors", len(idx.Successors()),
		"model", idx.Model(),
		"elapsed", time.Since(start))

	router, err := api.NewRouter(assistant)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
