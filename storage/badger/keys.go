package badger

import (
	"encoding/binary"

	"github.com/poiesic/hybridrag/core"
)

// Key prefixes for different data types
const (
	documentPrefix      = "doc:"
	documentSumPrefix   = "dsum:"
	documentChunkPrefix = "dchk:"
	chunkPrefix         = "chk:"
	vectorPrefix        = "vec:"
	sessionPrefix       = "ses:"
	documentIDSeq       = "docseq"
	chunkIDSeq          = "chkseq"
)

// idKey builds prefix followed by ids in BigEndian order so that
// lexicographic key order matches numeric order.
func idKey(prefix string, ids ...uint64) []byte {
	buf := make([]byte, len(prefix)+8*len(ids))
	offset := copy(buf, prefix)
	for _, id := range ids {
		binary.BigEndian.PutUint64(buf[offset:], id)
		offset += 8
	}
	return buf
}

func makeDocumentKey(id core.ID) []byte {
	return idKey(documentPrefix, uint64(id))
}

// makeDocumentSumKey indexes documents by checksum.
// Format: prefix:checksum:documentID
func makeDocumentSumKey(checksum uint64, id core.ID) []byte {
	return idKey(documentSumPrefix, checksum, uint64(id))
}

func makePartialDocumentSumKey(checksum uint64) []byte {
	return idKey(documentSumPrefix, checksum)
}

// makeDocumentChunkKey indexes chunks by owning document.
// Format: prefix:documentID:chunkID
func makeDocumentChunkKey(documentID, chunkID core.ID) []byte {
	return idKey(documentChunkPrefix, uint64(documentID), uint64(chunkID))
}

func makePartialDocumentChunkKey(documentID core.ID) []byte {
	return idKey(documentChunkPrefix, uint64(documentID))
}

func makeChunkKey(id core.ID) []byte {
	return idKey(chunkPrefix, uint64(id))
}

func makeVectorKey(id core.ID) []byte {
	return idKey(vectorPrefix, uint64(id))
}

func makeSessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

// trailingID decodes the final 8 bytes of a composite key.
func trailingID(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
