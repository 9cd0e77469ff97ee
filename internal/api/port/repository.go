package port

import (
	"context"
	"io"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
)

//go:generate mockgen -destination=../service/mocks/repository_mock.go -package=mocks -source=repository.go

// BlobHost is the external object store holding chunk ciphertext.
type BlobHost interface {
	// PutBlob stores data under name and returns its durable handle and a signed url.
	PutBlob(ctx context.Context, name string, data []byte) (domain.BlobLocation, error)

	// GetBlobURL returns a fresh signed url for blobRef.
	GetBlobURL(ctx context.Context, blobRef string) (string, error)

	// DeleteBlobs removes blobs best-effort and returns how many were deleted.
	DeleteBlobs(ctx context.Context, blobRefs []string) (int, error)
}

// BlobFetcher streams ciphertext from a signed url.
type BlobFetcher interface {
	// Fetch opens url. Refused links yield domain.ErrUpstreamLinkExpired and
	// network or 5xx failures yield domain.ErrUpstreamTransient.
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// MetadataStore persists files, chunks and usage counters.
type MetadataStore interface {
	// SaveFileTransactional inserts the file and all chunks atomically. When the file has
	// an owner, the owner's usage grows by file.Size in the same transaction, guarded by
	// the quota; a guard failure yields domain.ErrQuotaExceeded and writes nothing.
	SaveFileTransactional(ctx context.Context, file *domain.File, chunks []domain.Chunk) error

	// GetFileByName resolves a live file with its chunks in index order. Files owned by
	// ownerID win over public files, which win over anything else with that name.
	GetFileByName(ctx context.Context, name string, ownerID string) (*domain.File, error)

	// GetOwnedFile returns ownerID's file named name, including soft-deleted ones.
	GetOwnedFile(ctx context.Context, name string, ownerID string) (*domain.File, error)

	// GetUsage returns the owner's usage; unknown owners have zero usage and the default quota.
	GetUsage(ctx context.Context, ownerID string) (domain.Usage, error)

	// UpdateUsage adds deltaBytes (may be negative) to the owner's usage, floored at zero.
	UpdateUsage(ctx context.Context, ownerID string, deltaBytes int64) error

	// SoftDeleteFile marks a live file deleted.
	SoftDeleteFile(ctx context.Context, fileID string, at time.Time) error

	// DeleteFile removes the file and chunk rows.
	DeleteFile(ctx context.Context, fileID string) error
}

// IngestLedger remembers blobs stored by ingest that no finalize has claimed yet.
type IngestLedger interface {
	// Track records a freshly stored blob with its owner, size and iv.
	Track(ctx context.Context, blob domain.PendingBlob) error
	Release(ctx context.Context, blobRefs []string) error
	// Pending returns the entries of blobRefs still unclaimed, in the order asked.
	Pending(ctx context.Context, blobRefs []string) ([]domain.PendingBlob, error)
	// Expired lists up to limit unclaimed blobs tracked before the given time.
	Expired(ctx context.Context, before time.Time, limit int) ([]string, error)
}
