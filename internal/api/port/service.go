package port

import (
	"context"
	"io"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
)

// IngestRequest carries one plaintext chunk from an authenticated caller.
type IngestRequest struct {
	OwnerID  string
	FileName string
	Body     io.Reader
}

// FinalizeRequest commits a file out of previously ingested chunks.
type FinalizeRequest struct {
	OwnerID  string
	Name     string
	Size     int64
	MimeType string
	Folder   string
	IsPublic bool
	Chunks   []domain.Chunk
}

// DownloadRequest describes a read of a file by name.
type DownloadRequest struct {
	Name        string
	CallerID    string
	ForceStream bool
	Attachment  bool
}

// DownloadPlan is the resolved outcome of a DownloadRequest.
type DownloadPlan struct {
	File        *domain.File
	RedirectURL string // set when the caller should be redirected instead of streamed
	ContentType string
	Disposition string
}

// FileService defines the business logic of the chunked transfer protocol.
type FileService interface {
	// IngestChunk encrypts one chunk, stores it and returns its descriptor.
	IngestChunk(ctx context.Context, req IngestRequest) (domain.Chunk, error)

	// FinalizeUpload validates the chunk set and quota and persists the file atomically.
	FinalizeUpload(ctx context.Context, req FinalizeRequest) (*domain.File, error)

	// CancelUpload deletes still-unclaimed blobs that ownerID ingested and returns the count.
	CancelUpload(ctx context.Context, ownerID string, blobRefs []string) (int, error)

	// ResolveDownload looks up and authorizes a file and picks redirect or stream mode.
	ResolveDownload(ctx context.Context, req DownloadRequest) (*DownloadPlan, error)

	// OpenDownload streams the plaintext of plan's file, or of rng within it when rng is set.
	// Closing the reader aborts every upstream fetch.
	OpenDownload(plan *DownloadPlan, rng *domain.ByteRange) (io.ReadCloser, error)

	// SoftDeleteFile moves the caller's file to trash.
	SoftDeleteFile(ctx context.Context, ownerID, name string) error

	// PermanentDeleteFile deletes the blobs, then the rows, then gives the bytes back to the quota.
	PermanentDeleteFile(ctx context.Context, ownerID, name string) (*domain.File, error)

	// SweepOrphans deletes blobs that were ingested but never finalized within the grace period.
	SweepOrphans(ctx context.Context) (int, error)
}
