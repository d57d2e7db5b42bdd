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

import (
	"fmt"
	"strings"
)

// ValidateDocumentInput checks that input can be chunked and stored.
func ValidateDocumentInput(input *DocumentInput) error {
	if input == nil {
		return fmt.Errorf("%w: input is nil", ErrInvalidDocument)
	}
	if strings.TrimSpace(input.Filename) == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrInvalidDocument)
	}
	return nil
}

// ValidateChunk checks a chunk before it is committed.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidChunk)
	}
	if chunk.PageNumber < 1 {
		return fmt.Errorf("%w: page number %d must be positive", ErrInvalidChunk, chunk.PageNumber)
	}
	if chunk.Ordinal < 0 {
		return fmt.Errorf("%w: ordinal %d cannot be negative", ErrInvalidChunk, chunk.Ordinal)
	}
	return nil
}

// ValidatePreparedDocument checks a chunked document and its vectors.
// Every chunk needs exactly one non-empty vector, and all vectors must share
// one length.
func ValidatePreparedDocument(doc *PreparedDocument) error {
	if doc == nil || doc.Document == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Document.Filename) == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrInvalidDocument)
	}
	if len(doc.Vectors) != len(doc.Chunks) {
		return fmt.Errorf("%w: %s has %d chunks but %d vectors",
			ErrInvalidDocument, doc.Document.Filename, len(doc.Chunks), len(doc.Vectors))
	}
	for i, chunk := range doc.Chunks {
		if err := ValidateChunk(chunk); err != nil {
			return fmt.Errorf("%s chunk %d: %w", doc.Document.Filename, i, err)
		}
		if len(doc.Vectors[i]) == 0 {
			return fmt.Errorf("%w: %s chunk %d has no vector", ErrInvalidChunk, doc.Document.Filename, i)
		}
		if len(doc.Vectors[i]) != len(doc.Vectors[0]) {
			return fmt.Errorf("%w: %s chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, doc.Document.Filename, i, len(doc.Vectors[i]), len(doc.Vectors[0]))
		}
	}
	return nil
}
