package cache

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Hash returns the content hash of a source file.
func Hash(source []byte) uint64 {
	return xxh3.Hash(source)
}

// HashString renders a content hash as fixed-width hex.
func HashString(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// Key returns the cache key for a file: its path plus the hash of its
// content. Editing a file yields a new key, so stale entries are never hit.
func Key(path string, source []byte) string {
	return path + "@" + HashString(Hash(source))
}
