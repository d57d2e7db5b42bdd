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


// Package ai provides the embedding abstraction used by ingestion and
// querying.
//
// The retrieval engine stores and searches vectors but never computes them.
// Callers embed chunk text and questions through an Embedder:
//
//   - ai/openai: OpenAI-compatible services (OpenAI, Ollama, LocalAI, vLLM)
//   - ai/mock: deterministic test doubles
//
// CachingEmbedder wraps any Embedder with an LRU cache, which suits query
// embedding where the same question is often asked more than once.
//
// # Constructor Return Type Pattern
//
// Public constructors such as openai.NewEmbedder return the ai.Embedder
// INTERFACE. Test utility constructors (mock.NewMockEmbedder) return CONCRETE
// types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text"))
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "What is attention?")
package ai
