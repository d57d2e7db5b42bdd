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


// Package storage defines the persistence contract used by the retrieval
// engine.
//
// The engine keeps its sparse and dense indices in memory and rebuilds them
// from a Store when it opens. A Store holds:
//   - Documents, with their filename, page count and content checksum
//   - Chunks, in insertion (ID) order
//   - One embedding vector per chunk
//   - Upload sessions and their chunk IDs
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := badger.NewStore(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Atomicity
//
// Commit writes a whole ingestion batch in one transaction, so a crash never
// leaves a chunk without its vector or its document.
//
// # Thread Safety
//
// All Store implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
