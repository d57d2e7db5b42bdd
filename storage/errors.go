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


package storage

import "errors"

var (
	// ErrNotFound is returned when a document, chunk, vector or session
	// record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed is returned by every operation on a closed store.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrCorruptRecord is returned when a stored value cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrTrailingData is returned when a stored value decodes cleanly but
	// has bytes left over.
	ErrTrailingData = errors.New("record has trailing data")

	// ErrIncompleteBatch is returned by Commit when a batch chunk has no
	// vector. Nothing is written.
	ErrIncompleteBatch = errors.New("incomplete batch")
)
