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


package search

import "errors"

var (
	// ErrSparseIndexRequired is returned when a sparse index is not provided.
	ErrSparseIndexRequired = errors.New("sparse index required")

	// ErrDenseIndexRequired is returned when a dense index is not provided.
	ErrDenseIndexRequired = errors.New("dense index required")

	// ErrRegistryRequired is returned when a session registry is not provided.
	ErrRegistryRequired = errors.New("session registry required")

	// ErrResolverRequired is returned when a chunk resolver is not provided.
	ErrResolverRequired = errors.New("chunk resolver required")
)
