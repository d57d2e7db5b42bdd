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


package hybridrag

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/chunking"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/dense"
	"github.com/poiesic/hybridrag/fusion"
	"github.com/poiesic/hybridrag/search"
	"github.com/poiesic/hybridrag/sparse"
	"gopkg.in/yaml.v3"
)

// BM25Config tunes the keyword index.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
	// StopWords replaces the built-in English list when set. An empty list
	// indexes every word.
	StopWords []string `yaml:"stop_words"`
}

// DenseConfig tunes the vector index.
type DenseConfig struct {
	// MinSimilarity is the raw cosine below which neighbours are dropped.
	// -1 disables the threshold.
	MinSimilarity float64 `yaml:"min_similarity"`
}

// QueryConfig holds the defaults applied to every query.
type QueryConfig struct {
	TopK                int     `yaml:"top_k"`
	BM25Weight          float64 `yaml:"bm25_weight"`
	EmbeddingWeight     float64 `yaml:"embedding_weight"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
}

// IngestionConfig sizes the ingestion pipeline.
type IngestionConfig struct {
	Workers int `yaml:"workers"`
}

// Config is the complete engine configuration.
type Config struct {
	Chunking  chunking.Config `yaml:"chunking"`
	BM25      BM25Config      `yaml:"bm25"`
	Dense     DenseConfig     `yaml:"dense"`
	Query     QueryConfig     `yaml:"query"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Embedding ai.Config       `yaml:"embedding"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	weights := fusion.DefaultWeights()
	return &Config{
		Chunking: chunking.DefaultConfig(),
		BM25: BM25Config{
			K1: sparse.DefaultK1,
			B:  sparse.DefaultB,
		},
		Dense: DenseConfig{
			MinSimilarity: dense.DefaultMinSimilarity,
		},
		Query: QueryConfig{
			TopK:                search.DefaultTopK,
			BM25Weight:          weights.BM25,
			EmbeddingWeight:     weights.Embedding,
			CandidateMultiplier: search.DefaultCandidateMultiplier,
		},
		Ingestion: IngestionConfig{
			Workers: 4,
		},
		Embedding: *ai.DefaultConfig(),
	}
}

// Validate checks every section. Errors wrap core.ErrInvalidConfiguration or
// core.ErrInvalidWeights.
func (c *Config) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if c.BM25.K1 < 0 {
		return fmt.Errorf("%w: bm25.k1 must be non-negative, got %v", core.ErrInvalidConfiguration, c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("%w: bm25.b must be within [0,1], got %v", core.ErrInvalidConfiguration, c.BM25.B)
	}
	if c.Dense.MinSimilarity < -1 || c.Dense.MinSimilarity > 1 {
		return fmt.Errorf("%w: dense.min_similarity must be within [-1,1], got %v",
			core.ErrInvalidConfiguration, c.Dense.MinSimilarity)
	}
	if c.Query.TopK <= 0 {
		return fmt.Errorf("%w: query.top_k must be positive, got %d", core.ErrInvalidConfiguration, c.Query.TopK)
	}
	if c.Query.CandidateMultiplier < 1 {
		return fmt.Errorf("%w: query.candidate_multiplier must be at least 1, got %d",
			core.ErrInvalidConfiguration, c.Query.CandidateMultiplier)
	}
	if err := (fusion.Weights{BM25: c.Query.BM25Weight, Embedding: c.Query.EmbeddingWeight}).Validate(); err != nil {
		return err
	}
	if c.Ingestion.Workers < 1 {
		return fmt.Errorf("%w: ingestion.workers must be at least 1, got %d", core.ErrInvalidConfiguration, c.Ingestion.Workers)
	}
	return nil
}

// LoadConfig reads a YAML configuration file. Keys absent from the file keep
// their default values; unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes YAML configuration from r over the defaults and
// validates the result.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unable to parse config file: %v", core.ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
