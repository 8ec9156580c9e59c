package repository

import "context"

// DraftStorage is a persistent key-value slot holding serialized drafts.
type DraftStorage interface {
	// Get returns the stored payload; found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
