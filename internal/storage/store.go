// Package storage writes generated artifacts to durable blob storage and
// reports the public URL for each key.
package storage

import "context"

// BlobStore persists artifacts by key.
type BlobStore interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Exists reports whether key is stored, and its URL when it is.
	Exists(ctx context.Context, key string) (string, bool, error)
}
