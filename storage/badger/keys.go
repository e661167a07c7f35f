package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/lexmap/core"
)

// Key prefixes for different data types
const (
	embeddingPrefix      = "embvec:"
	historyPrefix        = "hist:"
	historySessionPrefix = "histss:"
)

// makeModelPrefix generates the key prefix shared by every vector of a model.
// Format: prefix + modelHash
func makeModelPrefix(model string) []byte {
	buf := make([]byte, len(embeddingPrefix)+8)
	offset := copy(buf, embeddingPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.IDFromContent(model)))
	return buf
}

// makeEmbeddingKey generates a key for a cached vector.
// Format: prefix + modelHash + textID
func makeEmbeddingKey(model string, id core.ID) []byte {
	prefix := makeModelPrefix(model)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeHistoryKey generates the primary key for a history entry.
// Format: prefix + timestamp + id
func makeHistoryKey(timestamp time.Time, id core.ID) []byte {
	buf := make([]byte, len(historyPrefix)+16)
	offset := copy(buf, historyPrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeSessionPrefix generates the partial key for one session's index.
// Format: prefix + sessionHash
func makeSessionPrefix(sessionID string) []byte {
	buf := make([]byte, len(historySessionPrefix)+8)
	offset := copy(buf, historySessionPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.IDFromContent(sessionID)))
	return buf
}

// makeSessionKey generates a composite key for the session index.
// Format: prefix + sessionHash + timestamp + id
func makeSessionKey(sessionID string, timestamp time.Time, id core.ID) []byte {
	prefix := makeSessionPrefix(sessionID)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
