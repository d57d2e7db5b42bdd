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


// Package chunking splits extracted document text into overlapping,
// fixed-size token windows.
//
// A token is a maximal run of non-whitespace characters. Each chunk holds
// Size tokens, and successive chunks share Overlap tokens:
//
//	c, err := chunking.New(chunking.Config{Size: 500, Overlap: 50})
//	text, pageStarts := chunking.JoinPages(pages)
//	chunks := c.Split(text, pageStarts)
//
// Chunk text is the verbatim slice of the source between the window's first
// and last token, so original line breaks survive into citations.
package chunking
