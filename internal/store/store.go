// Package store defines the durable key-value port that session state is
// persisted through, together with the built-in drivers.
package store

import "context"

// Store is a per-key durable value store. Values are opaque blobs; callers
// own serialization. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. The second result reports
	// whether the key existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key, overwriting any prior value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the store.
	Close() error
}
