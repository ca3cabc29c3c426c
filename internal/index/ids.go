package index

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChunkID derives a stable entry ID from the source path and chunk text:
// the first 16 hex digits of sha256(path), a colon, and the first 16 of
// sha256(content). Re-indexing unchanged content yields the same ID, so the
// store's upsert replaces rather than duplicates. Identical content in the
// same file maps to one ID (last write wins).
func ChunkID(path, content string) string {
	p := sha256.Sum256([]byte(path))
	c := sha256.Sum256([]byte(content))
	return hex.EncodeToString(p[:8]) + ":" + hex.EncodeToString(c[:8])
}
