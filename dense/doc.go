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


// Package dense implements an exhaustive cosine-similarity vector index.
//
// The first inserted vector fixes the index's dimensionality; any later
// insert or query of a different length fails with core.ErrDimensionMismatch
// and leaves the index untouched. Vectors are stored unit-normalized, so a
// search is a dot product against every stored record.
//
// Similarities in [-1,1] are reported mapped into [0,1] as (sim+1)/2.
package dense
