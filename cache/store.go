// Package cache implements spec §4.9's caching middleware: a request
// fingerprint keys a stored, ordered list of serialized messages, replayed
// verbatim on a hit instead of invoking the wrapped agent again.
package cache

import "context"

// Store is the key-value collaborator a cache.Middleware memoizes against.
// Per spec §5's shared-resource policy, implementations must be safe for
// concurrent Get/Set.
type Store interface {
	// Get returns the stored, ordered list of serialized messages for key,
	// and false if there is no entry.
	Get(ctx context.Context, key string) ([][]byte, bool, error)
	// Set stores an ordered list of serialized messages under key.
	Set(ctx context.Context, key string, serialized [][]byte) error
}
