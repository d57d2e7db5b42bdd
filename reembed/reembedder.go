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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarizes a reembedding run. On failure it describes the work
// completed before the error.
type Result struct {
	// Chunks is the number of chunks whose vectors were rewritten.
	Chunks int
	// LastID is the highest rewritten chunk ID, or zero if none was.
	// Chunks are rewritten in ID order, so every chunk up to LastID holds a
	// new vector.
	LastID core.ID
	// Dimensions is the length of the new vectors.
	Dimensions int
	Elapsed    time.Duration
}

// Reembedder orchestrates the reembedding of all chunks in a store.
type Reembedder struct {
	repo      storage.ChunkRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr, io.Discard to silence)
func NewReembedder(repo storage.ChunkRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewChunkIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembedder"),
	}, nil
}

// Run rewrites the vector of every stored chunk with the configured embedder.
// All new vectors must share one dimensionality. The returned Result is never
// nil.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	totalChunks, err := r.repo.CountChunks(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count chunks: %w", err)
	}
	if totalChunks == 0 {
		fmt.Fprintf(r.progress, "No chunks found in corpus (0 chunks)\n")
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n",
		totalChunks, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, totalChunks, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		dims, err := r.processor.Process(ctx, chunks, result.Dimensions)
		if err != nil {
			return fmt.Errorf("failed to process batch after chunk %d: %w", result.LastID, err)
		}

		result.Dimensions = dims
		result.Chunks += len(chunks)
		result.LastID = chunks[len(chunks)-1].ID
		tracker.Update(result.Chunks, result.LastID)
		return nil
	})
	result.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("reembedding stopped", "chunks", result.Chunks, "lastID", result.LastID, "err", err)
		return result, err
	}

	tracker.Finish()

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		result.Chunks, result.Elapsed.Round(time.Second), float64(result.Chunks)/max(result.Elapsed.Seconds(), 1e-9))

	return result, nil
}
