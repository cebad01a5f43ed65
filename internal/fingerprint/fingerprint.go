// Package fingerprint computes the stable cache keys used by the
// classifier ("intent" namespace) and the orchestrator ("enhancement"
// namespace), grounded on the hash-strategy pattern in
// llm/cache/hash_key.go.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strings"

	"github.com/BaSui01/promptenhancer/internal/pool"
)

// hasherPool reuses sha256 state across calls. Of() runs on every
// classify and enhance request, so pooling the hasher avoids an
// allocation per call on what is otherwise the hottest path in both C3
// and C5.
var hasherPool = pool.NewPool(
	func() hash.Hash { return sha256.New() },
	func(h *hash.Hash) { (*h).Reset() },
)

// Of hashes parts into a stable hex digest. Parts are joined with a NUL
// separator so "ab"+"c" and "a"+"bc" never collide.
func Of(parts ...string) string {
	h := hasherPool.Get()
	defer hasherPool.Put(h)
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SortedIDs returns ids sorted and joined, for use as one Of() part
// when a fingerprint must be order-independent (spec glossary:
// "sorted technique ids").
func SortedIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
