package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunkcipher"
	"github.com/anthanhphan/gosdk/logger"
)

// finalizeService turns a complete set of ingested chunks into a visible file.
type finalizeService struct {
	core *FileServiceImpl
}

// newFinalizeService creates the finalize use-case service.
func newFinalizeService(core *FileServiceImpl) *finalizeService {
	return &finalizeService{core: core}
}

// finalize validates the chunk set and quota, then persists file and chunks in one transaction.
func (s *finalizeService) finalize(ctx context.Context, req port.FinalizeRequest) (*domain.File, error) {
	name, err := validateFileName(req.Name)
	if err != nil {
		return nil, err
	}

	chunks, err := domain.AssembleChunks(req.Chunks, req.Size)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.IV == "" {
			continue
		}
		if _, err := chunkcipher.ParseIV(c.IV); err != nil {
			return nil, fmt.Errorf("%w: chunk %d has an invalid iv", domain.ErrValidation, c.Index)
		}
	}

	chunks, err = s.claimableChunks(ctx, req.OwnerID, chunks)
	if err != nil {
		return nil, err
	}

	if req.OwnerID != "" {
		if err := s.checkQuota(ctx, req.OwnerID, req.Size); err != nil {
			return nil, err
		}
	}

	fileID, err := s.core.idGen.NextString(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate file id: %w", err)
	}

	file := &domain.File{
		ID:         fileID,
		Name:       name,
		Size:       req.Size,
		MimeType:   mimeTypeFor(name, req.MimeType),
		FolderPath: domain.CleanFolder(req.Folder),
		OwnerID:    req.OwnerID,
		IsPublic:   req.IsPublic,
		CreatedAt:  s.core.now().UTC(),
		Chunks:     chunks,
	}

	if err := s.core.store.SaveFileTransactional(ctx, file, chunks); err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) || errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		logger.Errorw("Finalize failed", "file", name, "owner", req.OwnerID, "error", err.Error())
		return nil, fmt.Errorf("save file: %w", err)
	}

	if err := s.core.ledger.Release(ctx, file.BlobRefs()); err != nil {
		logger.Warnw("Ingest ledger release failed", "file_id", file.ID, "error", err.Error())
	}

	logger.Infow("File finalized", "file_id", file.ID, "file", name, "owner", req.OwnerID, "chunks", len(chunks), "size_bytes", req.Size)
	return file, nil
}

// claimableChunks checks every descriptor against what ingest recorded for its
// blob: the blob must still be pending, belong to ownerID and match in size and
// iv. The returned chunks carry the recorded url, never the caller's.
func (s *finalizeService) claimableChunks(ctx context.Context, ownerID string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	refs := make([]string, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		if _, dup := seen[c.BlobRef]; dup {
			return nil, fmt.Errorf("%w: chunk %d repeats blob %s", domain.ErrValidation, c.Index, c.BlobRef)
		}
		seen[c.BlobRef] = struct{}{}
		refs[i] = c.BlobRef
	}

	pending, err := s.core.ledger.Pending(ctx, refs)
	if err != nil {
		logger.Errorw("Ingest ledger lookup failed", "owner", ownerID, "chunks", len(chunks), "error", err.Error())
		return nil, fmt.Errorf("check pending blobs: %w", err)
	}
	byRef := make(map[string]domain.PendingBlob, len(pending))
	for _, blob := range pending {
		byRef[blob.BlobRef] = blob
	}

	claimed := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		blob, ok := byRef[c.BlobRef]
		switch {
		case !ok || blob.OwnerID != ownerID:
			return nil, fmt.Errorf("%w: chunk %d is not a pending upload of this account", domain.ErrValidation, c.Index)
		case blob.Size != c.Size:
			return nil, fmt.Errorf("%w: chunk %d declares %d bytes, %d were stored", domain.ErrValidation, c.Index, c.Size, blob.Size)
		case !strings.EqualFold(blob.IV, c.IV):
			return nil, fmt.Errorf("%w: chunk %d iv does not match the stored chunk", domain.ErrValidation, c.Index)
		}

		c.IV = blob.IV
		c.URL = blob.URL
		if c.URL == "" {
			if c.URL, err = s.core.refreshURL(ctx, c.BlobRef); err != nil {
				return nil, fmt.Errorf("resolve url of chunk %d: %w", c.Index, err)
			}
		}
		claimed[i] = c
	}
	return claimed, nil
}

// checkQuota rejects uploads that would push the owner past the limit. A failed
// usage read is allowed or denied according to FailOpenOnQuotaCheckError.
func (s *finalizeService) checkQuota(ctx context.Context, ownerID string, size int64) error {
	usage, err := s.core.store.GetUsage(ctx, ownerID)
	if err != nil {
		if s.core.cfg.App.FailOpenOnQuotaCheckError {
			logger.Warnw("Quota check failed, allowing upload", "owner", ownerID, "error", err.Error())
			return nil
		}
		logger.Errorw("Quota check failed, denying upload", "owner", ownerID, "error", err.Error())
		return fmt.Errorf("%w: usage unavailable", domain.ErrQuotaExceeded)
	}

	if !usage.Allows(size) {
		return fmt.Errorf("%w: %d of %d bytes used, %d requested", domain.ErrQuotaExceeded, usage.Used, usage.Limit, size)
	}
	return nil
}

// validateFileName trims name and rejects empty names and path separators.
func validateFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: missing file name", domain.ErrValidation)
	case strings.ContainsAny(name, `/\`), name == ".", name == "..":
		return "", fmt.Errorf("%w: invalid file name %q", domain.ErrValidation, name)
	}
	return name, nil
}
