package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver copies finished evaluations to cold storage.
type Archiver interface {
	ArchiveAccount(ctx context.Context, acct Account, trades []Trade) (path string, err error)
}
