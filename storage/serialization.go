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

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/hybridrag/core"
)

// maxVectorLen bounds decoded vector and id-list lengths so corrupt data
// cannot trigger huge allocations.
const maxVectorLen = 1 << 20

// encoder appends MUS-encoded fields to a growing buffer.
type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) reserve(size int) []byte {
	if need := e.n + size; need > len(e.bs) {
		e.bs = append(e.bs, make([]byte, need-len(e.bs))...)
	}
	return e.bs[e.n:]
}

func (e *encoder) uint64(v uint64) {
	e.n += varint.Uint64.Marshal(v, e.reserve(varint.Uint64.Size(v)))
}

func (e *encoder) int(v int) {
	e.n += varint.Int.Marshal(v, e.reserve(varint.Int.Size(v)))
}

func (e *encoder) time(t time.Time) {
	v := t.UnixMicro()
	e.n += varint.Int64.Marshal(v, e.reserve(varint.Int64.Size(v)))
}

func (e *encoder) string(s string) {
	e.n += ord.String.Marshal(s, e.reserve(ord.String.Size(s)))
}

func (e *encoder) bool(b bool) {
	e.n += ord.Bool.Marshal(b, e.reserve(ord.Bool.Size(b)))
}

func (e *encoder) float32(f float32) {
	e.n += raw.Float32.Marshal(f, e.reserve(raw.Float32.Size(f)))
}

func (e *encoder) bytes() []byte {
	return e.bs[:e.n]
}

// decoder reads MUS-encoded fields, remembering the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) length() int {
	l := d.int()
	if d.err == nil && (l < 0 || l > maxVectorLen) {
		d.err = fmt.Errorf("%w: invalid length %d", ErrCorruptRecord, l)
		return 0
	}
	return l
}

func (d *decoder) time() time.Time {
	if d.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return time.UnixMicro(v).UTC()
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) float32() float32 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) finish(what string) error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorruptRecord, what, d.err)
	}
	if d.n != len(d.bs) {
		return fmt.Errorf("%w: %s has %d trailing bytes", ErrTrailingData, what, len(d.bs)-d.n)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	var e encoder
	e.uint64(uint64(id))
	return e.bytes()
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := core.ID(d.uint64())
	return id, d.finish("id")
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	var e encoder
	e.uint64(uint64(doc.ID))
	e.string(doc.Filename)
	e.int(doc.PageCount)
	e.int(doc.ChunkCount)
	e.uint64(doc.Checksum)
	e.string(doc.SessionID)
	e.time(doc.IngestedAt)
	return e.bytes()
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d := decoder{bs: data}
	doc := &core.Document{
		ID:         core.ID(d.uint64()),
		Filename:   d.string(),
		PageCount:  d.int(),
		ChunkCount: d.int(),
		Checksum:   d.uint64(),
		SessionID:  d.string(),
		IngestedAt: d.time(),
	}
	if err := d.finish("document"); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	var e encoder
	e.uint64(uint64(chunk.ID))
	e.uint64(uint64(chunk.DocumentID))
	e.int(chunk.PageNumber)
	e.int(chunk.Ordinal)
	e.string(chunk.Text)
	e.int(chunk.TokenCount)
	return e.bytes()
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	d := decoder{bs: data}
	chunk := &core.Chunk{
		ID:         core.ID(d.uint64()),
		DocumentID: core.ID(d.uint64()),
		PageNumber: d.int(),
		Ordinal:    d.int(),
		Text:       d.string(),
		TokenCount: d.int(),
	}
	if err := d.finish("chunk"); err != nil {
		return nil, err
	}
	return chunk, nil
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vector []float32) []byte {
	var e encoder
	e.int(len(vector))
	for _, f := range vector {
		e.float32(f)
	}
	return e.bytes()
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	d := decoder{bs: data}
	l := d.length()
	vector := make([]float32, l)
	for i := range vector {
		vector[i] = d.float32()
	}
	if err := d.finish("vector"); err != nil {
		return nil, err
	}
	return vector, nil
}

// MarshalSession serializes a Session to bytes.
func MarshalSession(session *core.Session) []byte {
	var e encoder
	e.string(session.ID)
	e.int(len(session.ChunkIDs))
	for _, id := range session.ChunkIDs {
		e.uint64(uint64(id))
	}
	e.time(session.CreatedAt)
	e.bool(session.Sealed)
	return e.bytes()
}

// UnmarshalSession deserializes a Session from bytes.
func UnmarshalSession(data []byte) (*core.Session, error) {
	d := decoder{bs: data}
	session := &core.Session{ID: d.string()}
	if l := d.length(); l > 0 {
		session.ChunkIDs = make([]core.ID, l)
		for i := range session.ChunkIDs {
			session.ChunkIDs[i] = core.ID(d.uint64())
		}
	}
	session.CreatedAt = d.time()
	session.Sealed = d.bool()
	if err := d.finish("session"); err != nil {
		return nil, err
	}
	return session, nil
}
