package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunkcipher"
	"github.com/anthanhphan/gosdk/logger"
)

// ingestService encrypts single chunks and stores them on the blob host.
// It never writes metadata; an ingest without finalize only leaves an orphan blob.
type ingestService struct {
	core *FileServiceImpl
}

// newIngestService creates the ingest use-case service.
func newIngestService(core *FileServiceImpl) *ingestService {
	return &ingestService{core: core}
}

// ingestChunk reads, encrypts and stores one chunk and returns its descriptor.
func (s *ingestService) ingestChunk(ctx context.Context, req port.IngestRequest) (domain.Chunk, error) {
	if req.Body == nil {
		return domain.Chunk{}, fmt.Errorf("%w: no file", domain.ErrValidation)
	}

	bufPtr := s.core.pool.Get().(*[]byte)
	buf := *bufPtr
	defer func() {
		// Plaintext must not outlive the request.
		clear(buf)
		s.core.pool.Put(bufPtr)
	}()

	data, err := readChunk(req.Body, buf)
	if err != nil {
		return domain.Chunk{}, err
	}

	iv, err := chunkcipher.NewIV()
	if err != nil {
		return domain.Chunk{}, err
	}
	if err := s.core.cipher.XORKeyStream(iv, data, data); err != nil {
		return domain.Chunk{}, fmt.Errorf("encrypt chunk: %w", err)
	}

	name := buildBlobName(req.FileName)
	var loc domain.BlobLocation
	err = s.core.callBlobHost(ctx, "put", func(ctx context.Context) error {
		var err error
		loc, err = s.core.blobs.PutBlob(ctx, name, data)
		return err
	})
	if err != nil {
		logger.Errorw("Chunk upload to blob host failed", "blob", name, "owner", req.OwnerID, "error", err.Error())
		return domain.Chunk{}, fmt.Errorf("store chunk: %w", err)
	}

	chunk := domain.Chunk{
		BlobRef: loc.BlobRef,
		URL:     loc.URL,
		IV:      hex.EncodeToString(iv),
		Size:    int64(len(data)),
	}

	// Finalize only accepts tracked blobs, so an untracked one is useless to the caller.
	err = s.core.ledger.Track(ctx, domain.PendingBlob{
		BlobRef:   chunk.BlobRef,
		OwnerID:   req.OwnerID,
		Size:      chunk.Size,
		IV:        chunk.IV,
		URL:       chunk.URL,
		TrackedAt: s.core.now(),
	})
	if err != nil {
		logger.Errorw("Ingest ledger track failed, removing blob", "blob_ref", loc.BlobRef, "error", err.Error())
		if _, delErr := s.core.deleteBlobs(ctx, []string{loc.BlobRef}); delErr != nil {
			logger.Warnw("Untracked blob delete failed", "blob_ref", loc.BlobRef, "error", delErr.Error())
		}
		return domain.Chunk{}, fmt.Errorf("track chunk: %w", err)
	}

	logger.Debugw("Chunk ingested", "blob_ref", loc.BlobRef, "owner", req.OwnerID, "size_bytes", len(data))
	return chunk, nil
}

// readChunk fills buf from r. buf is one byte longer than the largest accepted
// chunk, so a full buffer means the chunk is too large.
func readChunk(r io.Reader, buf []byte) ([]byte, error) {
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: chunk exceeds %d bytes", domain.ErrValidation, len(buf)-1)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
	default:
		return nil, fmt.Errorf("read chunk: %w", err)
	}

	if n == 0 {
		return nil, fmt.Errorf("%w: empty chunk", domain.ErrValidation)
	}
	return buf[:n], nil
}
