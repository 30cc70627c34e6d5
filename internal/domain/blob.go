package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo is the listing metadata of one archived object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter stores whole objects. A Put to an existing path replaces it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads archived objects back. Get and Exists report a missing
// path as ErrNotFound and false respectively.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver drains rows older than a cutoff into cold storage and returns how
// many it moved.
type Archiver interface {
	ArchiveRedemptions(ctx context.Context, before time.Time) (int64, error)
	ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error)
}
