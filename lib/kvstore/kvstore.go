package kvstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store is the minimal persistence surface shared by the session
// manager and the result cache. Values are opaque bytes; callers are
// responsible for serialization.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns every stored key beginning with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
