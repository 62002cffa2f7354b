package snapshot

import (
	"github.com/benbjohnson/immutable"
	"github.com/cespare/xxhash/v2"

	"github.com/sutradb/sutra/types"
)

// conceptIDHasher implements immutable.Hasher[types.ConceptId] using
// xxhash so the HAMT backing GraphSnapshot's concept map gets a
// well-distributed, fast hash instead of the library's generic reflection
// fallback. ConceptId is a fixed 16-byte array so hashing its raw bytes
// is all that's needed — no separate serialization step.
type conceptIDHasher struct{}

var _ immutable.Hasher[types.ConceptId] = conceptIDHasher{}

func (conceptIDHasher) Hash(key types.ConceptId) uint32 {
	return uint32(xxhash.Sum64(key[:]))
}

func (conceptIDHasher) Equal(a, b types.ConceptId) bool {
	return a == b
}
