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


// Package fusion merges sparse and dense rankings into one list.
//
// BM25 scores and cosine similarities live on unrelated scales, so each side
// is min-max normalized within the current query's result set before the
// weighted sum is taken:
//
//	fused = wBM25*normSparse + wEmbedding*normDense
//
// The weights are normalized to sum to one, which keeps every fused score in
// [0,1]. A chunk missing from one side simply gets nothing from that side.
package fusion
