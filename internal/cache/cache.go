// Package cache memoizes oracle and knowledge-base responses keyed by a
// content hash of the request. A miss is never an error: backends degrade
// to a miss on failure so the pipeline runs correctly, just slower, when
// the cache is absent or broken.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}

// Key derives a stable cache key from the request content. Parts are
// hashed with a separator so ("ab","c") and ("a","bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
