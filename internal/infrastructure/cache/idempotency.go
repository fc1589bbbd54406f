package cache

import (
	"context"
	"time"
)

// IdempotencyStore remembers the outcome of requests that carry an Idempotency-Key.
// A key is first claimed, then either completed with the serialized response
// or released so the client can retry.
type IdempotencyStore interface {
	// Claim reserves key. Returns false if the key is already claimed or completed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Complete stores the response payload for a claimed key.
	Complete(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Lookup returns the stored payload. done is false while the key is pending or absent.
	Lookup(ctx context.Context, key string) (payload []byte, done bool, err error)
	// Release drops a claim so the request can be retried.
	Release(ctx context.Context, key string) error
	Close() error
}

// pendingMarker is stored while a claimed request is still running.
// Completed payloads are JSON, so they never collide with it.
const pendingMarker = "\x00pending"
