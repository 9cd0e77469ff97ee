package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/gosdk/logger"
)

// cleanupService removes blobs and rows: cancelled uploads, trash and permanent deletes.
type cleanupService struct {
	core *FileServiceImpl
}

// newCleanupService creates the cleanup use-case service.
func newCleanupService(core *FileServiceImpl) *cleanupService {
	return &cleanupService{core: core}
}

// cancelUpload deletes the still-unclaimed blobs among blobRefs that ownerID
// ingested, in one bulk call. Blobs already claimed by a finalized file or
// ingested by someone else are never touched.
func (s *cleanupService) cancelUpload(ctx context.Context, ownerID string, blobRefs []string) (int, error) {
	refs := uniqueRefs(blobRefs)
	if len(refs) == 0 {
		return 0, nil
	}

	pending, err := s.core.ledger.Pending(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("check pending blobs: %w", err)
	}
	owned := make([]string, 0, len(pending))
	for _, blob := range pending {
		if blob.OwnerID == ownerID {
			owned = append(owned, blob.BlobRef)
		}
	}
	if skipped := len(refs) - len(owned); skipped > 0 {
		logger.Warnw("Cancel skipped blobs not pending for caller", "owner", ownerID, "requested", len(refs), "skipped", skipped)
	}
	if len(owned) == 0 {
		return 0, nil
	}

	deleted, err := s.core.deleteBlobs(ctx, owned)
	if err != nil {
		logger.Warnw("Cancel cleanup failed", "blobs", len(owned), "error", err.Error())
		return deleted, err
	}
	if err := s.core.ledger.Release(ctx, owned); err != nil {
		logger.Warnw("Ingest ledger release failed", "blobs", len(owned), "error", err.Error())
	}

	logger.Infow("Cancelled upload cleaned", "owner", ownerID, "requested", len(refs), "deleted", deleted)
	return deleted, nil
}

// softDelete moves a live file of ownerID to the trash.
func (s *cleanupService) softDelete(ctx context.Context, ownerID, name string) error {
	file, err := s.core.store.GetOwnedFile(ctx, name, ownerID)
	if err != nil {
		return err
	}
	if !file.Live() {
		return fmt.Errorf("%w: %s is already in trash", domain.ErrNotFound, name)
	}

	if err := s.core.store.SoftDeleteFile(ctx, file.ID, s.core.now().UTC()); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	logger.Infow("File moved to trash", "file_id", file.ID, "owner", ownerID)
	return nil
}

// permanentDelete removes the blobs first, then the rows, then returns the bytes
// to the owner's quota. A blob host failure keeps the rows so the delete can be retried.
func (s *cleanupService) permanentDelete(ctx context.Context, ownerID, name string) (*domain.File, error) {
	file, err := s.core.store.GetOwnedFile(ctx, name, ownerID)
	if err != nil {
		return nil, err
	}

	if refs := file.BlobRefs(); len(refs) > 0 {
		deleted, err := s.core.deleteBlobs(ctx, refs)
		if err != nil {
			logger.Errorw("Blob delete failed, keeping metadata", "file_id", file.ID, "error", err.Error())
			return nil, fmt.Errorf("delete blobs: %w", err)
		}
		if deleted < len(refs) {
			logger.Warnw("Blob host deleted fewer blobs than requested", "file_id", file.ID, "requested", len(refs), "deleted", deleted)
		}
	}

	if err := s.core.store.DeleteFile(ctx, file.ID); err != nil {
		return nil, fmt.Errorf("delete file rows: %w", err)
	}

	if file.OwnerID != "" {
		if err := s.core.store.UpdateUsage(ctx, file.OwnerID, -file.Size); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("Usage decrement failed", "owner", file.OwnerID, "size_bytes", file.Size, "error", err.Error())
		}
	}

	logger.Infow("File permanently deleted", "file_id", file.ID, "owner", ownerID, "chunks", len(file.Chunks))
	return file, nil
}

// uniqueRefs drops empty and repeated refs, keeping first-seen order.
func uniqueRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
