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


// Package search retrieves cited passages by fusing keyword and semantic
// rankings.
//
// The Searcher runs one query in four stages:
//   - Scope resolution: global, one upload session, or named documents
//   - Parallel BM25 and vector search over the resolved candidates
//   - Min-max normalized score fusion
//   - Citation assembly from stored chunks and documents
//
// An empty corpus or an empty scope is not an error; the query simply
// returns no citations. A SearchMonitor can observe every stage.
package search
