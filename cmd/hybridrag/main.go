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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/hybridrag"
	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/ai/openai"
	"github.com/poiesic/hybridrag/reembed"
	"github.com/urfave/cli/v2"
)

// newEmbedder builds the embedding client used by every command.
var newEmbedder = func(cfg *ai.Config) (ai.Embedder, error) {
	return openai.NewEmbedder(cfg)
}

func main() {
	// A missing .env file is fine
	_ = godotenv.Load(".env")

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hybridrag",
		Usage: "Hybrid keyword and embedding retrieval over your documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"HYBRIDRAG_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./hybridrag_db",
				EnvVars: []string{"HYBRIDRAG_DB"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"HYBRIDRAG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL (overrides the config file)",
				EnvVars: []string{"HYBRIDRAG_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name (overrides the config file)",
				EnvVars: []string{"HYBRIDRAG_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "embedding-token",
				Usage:   "API token for the embedding service",
				EnvVars: []string{"HYBRIDRAG_EMBEDDING_TOKEN", "OPENAI_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Chunk, embed and store documents as one upload session",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Upload session id (a new one is generated if empty)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Retrieve the passages most relevant to a question",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Maximum number of citations (default from config)",
					},
					&cli.Float64Flag{
						Name:  "bm25-weight",
						Usage: "Weight of keyword scores (default from config)",
					},
					&cli.Float64Flag{
						Name:  "embedding-weight",
						Usage: "Weight of embedding scores (default from config)",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Only search the chunks of this upload session",
					},
					&cli.StringSliceFlag{
						Name:  "document",
						Usage: "Only search documents with this filename (repeatable)",
					},
				},
			},
			{
				Name:   "documents",
				Usage:  "List ingested documents",
				Action: documentsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Only list documents of this upload session",
					},
				},
			},
			{
				Name:   "sessions",
				Usage:  "List upload sessions",
				Action: sessionsCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show corpus statistics",
				Action: statsCommand,
			},
			{
				Name:   "clear",
				Usage:  "Delete every document, chunk and session",
				Action: clearCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every chunk embedding with the configured model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

// loadConfig reads the --config file, if any, and applies the embedding
// flags on top of it.
func loadConfig(c *cli.Context) (*hybridrag.Config, error) {
	cfg := hybridrag.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = hybridrag.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("embedding-token") {
		cfg.Embedding.Token = c.String("embedding-token")
	}
	return cfg, nil
}

func openEngine(c *cli.Context) (*hybridrag.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	engine, err := hybridrag.Open(c.String("db"), hybridrag.WithConfig(cfg), hybridrag.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

func createEmbedder(cfg *hybridrag.Config) (ai.Embedder, error) {
	embeddingConfig := cfg.Embedding
	if err := embeddingConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	embedder, err := newEmbedder(&embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
