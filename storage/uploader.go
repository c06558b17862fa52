package storage

import (
	"context"
	"io"
)

type PutResult struct {
	Key      string
	Location string
	ETag     string
}

// ArchiveStore persists immutable blobs, used to keep a copy of a session's
// raw data before it is deleted from the database.
type ArchiveStore interface {
	Put(ctx context.Context, key string, contentType string, reader io.Reader) (*PutResult, error)

	GetPublicURL(key string) string
}
