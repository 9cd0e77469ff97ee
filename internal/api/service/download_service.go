package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

// downloadService resolves files for reading and builds their plaintext streams.
type downloadService struct {
	core *FileServiceImpl
}

// newDownloadService creates the download use-case service.
func newDownloadService(core *FileServiceImpl) *downloadService {
	return &downloadService{core: core}
}

// resolve looks the file up, authorizes the caller and selects redirect or stream mode.
func (s *downloadService) resolve(ctx context.Context, req port.DownloadRequest) (*port.DownloadPlan, error) {
	file, err := s.core.store.GetFileByName(ctx, req.Name, req.CallerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup file: %w", err)
	}

	if !file.ReadableBy(req.CallerID) {
		logger.Warnw("Download denied", "file", req.Name, "caller", req.CallerID)
		return nil, fmt.Errorf("%w: %s is private", domain.ErrAccessDenied, req.Name)
	}

	plan := &port.DownloadPlan{
		File:        file,
		ContentType: downloadContentType(file.Name, file.MimeType),
		Disposition: "inline",
	}
	if req.Attachment {
		plan.Disposition = "attachment"
	}

	if !req.ForceStream && redirectable(file) {
		plan.RedirectURL = s.core.liveURL(ctx, file.Chunks[0])
		logger.Debugw("Download redirected", "file_id", file.ID)
	}
	return plan, nil
}

// open builds the plaintext stream for plan, limited to rng when set.
func (s *downloadService) open(plan *port.DownloadPlan, rng *domain.ByteRange) (io.ReadCloser, error) {
	file := plan.File
	full := domain.ByteRange{Start: 0, End: file.Size - 1}
	if rng == nil {
		rng = &full
	}
	if file.Size > 0 && (rng.Start < 0 || rng.End >= file.Size || rng.Start > rng.End) {
		return nil, fmt.Errorf("%w: range %d-%d outside %d bytes", domain.ErrValidation, rng.Start, rng.End, file.Size)
	}

	return newChunkStream(s.core, file, planSegments(file.Chunks, *rng)), nil
}

// redirectable reports whether the blob can be handed to the caller as is:
// a single chunk stored without encryption.
func redirectable(file *domain.File) bool {
	return len(file.Chunks) == 1 && file.ChunkIV(file.Chunks[0]) == ""
}

// liveURL returns the chunk's url, refreshed first when it is about to expire.
// A failed refresh falls back to the stored url.
func (s *FileServiceImpl) liveURL(ctx context.Context, c domain.Chunk) string {
	if !linkNeedsRefresh(c.URL, s.now(), s.cfg.App.LinkRefreshMargin()) {
		return c.URL
	}

	fresh, err := s.refreshURL(ctx, c.BlobRef)
	if err != nil {
		logger.Warnw("Link refresh failed, using stored url", "blob_ref", c.BlobRef, "error", err.Error())
		return c.URL
	}
	return fresh
}

// openChunk fetches a chunk's ciphertext. A link the host refuses is refreshed
// once and retried, so expiry never reaches the caller.
func (s *FileServiceImpl) openChunk(ctx context.Context, c domain.Chunk) (io.ReadCloser, error) {
	body, err := s.fetchBlob(ctx, s.liveURL(ctx, c))
	if !errors.Is(err, domain.ErrUpstreamLinkExpired) {
		return body, err
	}

	logger.Infow("Blob link rejected, refreshing", "blob_ref", c.BlobRef, "chunk", c.Index)
	fresh, rerr := s.refreshURL(ctx, c.BlobRef)
	if rerr != nil {
		return nil, fmt.Errorf("refresh link for chunk %d: %w", c.Index, rerr)
	}
	return s.fetchBlob(ctx, fresh)
}
