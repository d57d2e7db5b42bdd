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


// Package sparse implements a keyword-statistics index scored with BM25.
//
// Chunk text is analyzed into lowercase terms with surrounding punctuation and
// stop words removed. Scores use the Okapi BM25 formula with
// idf(t) = ln((N - n(t) + 0.5)/(n(t) + 0.5) + 1), and the average chunk
// length is maintained incrementally as chunks are inserted and removed.
//
// Searches may be restricted to a candidate set of chunk IDs. The restriction
// is applied after scoring, so corpus statistics never depend on the scope of
// a query.
package sparse
