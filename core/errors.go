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


package core

import "errors"

// Engine errors. Callers match them with errors.Is.
var (
	// ErrInvalidConfiguration indicates rejected chunking, index or engine settings.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// dense index's fixed dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnknownSession indicates a session id that was never registered.
	ErrUnknownSession = errors.New("unknown session")

	// ErrInvalidSession indicates an empty or malformed session id.
	ErrInvalidSession = errors.New("invalid session id")

	// ErrSessionSealed indicates an attempt to append to a finished upload session.
	ErrSessionSealed = errors.New("session is sealed")

	// ErrInvalidWeights indicates negative fusion weights or both weights zero.
	ErrInvalidWeights = errors.New("invalid fusion weights")

	// ErrInvalidQueryOptions indicates an unsupported combination of query options.
	ErrInvalidQueryOptions = errors.New("invalid query options")

	// ErrEmptyQuery indicates a query without question text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidDocument indicates a Document or DocumentInput failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")
)
