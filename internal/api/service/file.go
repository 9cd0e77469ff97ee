package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunkcipher"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/resilience"
)

// Dependencies are the collaborators of the file service.
type Dependencies struct {
	Blobs   port.BlobHost
	Fetcher port.BlobFetcher
	Store   port.MetadataStore
	Ledger  port.IngestLedger
	Cipher  *chunkcipher.Cipher
	IDGen   IDGenerator
}

// FileServiceImpl is the facade that wires use-case services for file operations.
type FileServiceImpl struct {
	cfg     *config.Config
	blobs   port.BlobHost
	fetcher port.BlobFetcher
	store   port.MetadataStore
	ledger  port.IngestLedger
	cipher  *chunkcipher.Cipher
	idGen   IDGenerator
	breaker *resilience.CircuitBreaker
	pool    *sync.Pool
	now     func() time.Time

	ingestUseCase   *ingestService
	finalizeUseCase *finalizeService
	downloadUseCase *downloadService
	cleanupUseCase  *cleanupService
	janitor         *janitorService
}

// Ensure FileServiceImpl implements port.FileService.
var _ port.FileService = (*FileServiceImpl)(nil)

// NewFileService builds the file service facade and all use-case services.
func NewFileService(cfg *config.Config, deps Dependencies) *FileServiceImpl {
	maxChunk := cfg.App.MaxChunkSize
	svc := &FileServiceImpl{
		cfg:     cfg,
		blobs:   deps.Blobs,
		fetcher: deps.Fetcher,
		store:   deps.Store,
		ledger:  deps.Ledger,
		cipher:  deps.Cipher,
		idGen:   deps.IDGen,
		now:     time.Now,
		pool: &sync.Pool{
			New: func() interface{} {
				// One spare byte detects oversized chunks without reading them whole.
				b := make([]byte, maxChunk+1)
				return &b
			},
		},
	}
	svc.breaker = newBlobHostBreaker(cfg)

	svc.ingestUseCase = newIngestService(svc)
	svc.finalizeUseCase = newFinalizeService(svc)
	svc.downloadUseCase = newDownloadService(svc)
	svc.cleanupUseCase = newCleanupService(svc)
	svc.janitor = newJanitorService(svc)

	return svc
}

// IngestChunk delegates to the ingest use-case service.
func (s *FileServiceImpl) IngestChunk(ctx context.Context, req port.IngestRequest) (domain.Chunk, error) {
	return s.ingestUseCase.ingestChunk(ctx, req)
}

// FinalizeUpload delegates to the finalize use-case service.
func (s *FileServiceImpl) FinalizeUpload(ctx context.Context, req port.FinalizeRequest) (*domain.File, error) {
	return s.finalizeUseCase.finalize(ctx, req)
}

// CancelUpload delegates orphan cleanup to the cleanup use-case service.
func (s *FileServiceImpl) CancelUpload(ctx context.Context, ownerID string, blobRefs []string) (int, error) {
	return s.cleanupUseCase.cancelUpload(ctx, ownerID, blobRefs)
}

// ResolveDownload delegates lookup and mode selection to the download use-case service.
func (s *FileServiceImpl) ResolveDownload(ctx context.Context, req port.DownloadRequest) (*port.DownloadPlan, error) {
	return s.downloadUseCase.resolve(ctx, req)
}

// OpenDownload delegates stream construction to the download use-case service.
func (s *FileServiceImpl) OpenDownload(plan *port.DownloadPlan, rng *domain.ByteRange) (io.ReadCloser, error) {
	return s.downloadUseCase.open(plan, rng)
}

// SoftDeleteFile delegates to the cleanup use-case service.
func (s *FileServiceImpl) SoftDeleteFile(ctx context.Context, ownerID, name string) error {
	return s.cleanupUseCase.softDelete(ctx, ownerID, name)
}

// PermanentDeleteFile delegates to the cleanup use-case service.
func (s *FileServiceImpl) PermanentDeleteFile(ctx context.Context, ownerID, name string) (*domain.File, error) {
	return s.cleanupUseCase.permanentDelete(ctx, ownerID, name)
}

// SweepOrphans runs one janitor pass.
func (s *FileServiceImpl) SweepOrphans(ctx context.Context) (int, error) {
	return s.janitor.sweep(ctx)
}

// RunJanitor sweeps orphans every interval until ctx ends.
func (s *FileServiceImpl) RunJanitor(ctx context.Context, interval time.Duration) {
	s.janitor.run(ctx, interval)
}

// maxRetries returns blob host retry count with safe default.
func (s *FileServiceImpl) maxRetries() int {
	if s.cfg.App.MaxRetries > 0 {
		return s.cfg.App.MaxRetries
	}
	return 3
}

// retryBaseDelay returns the first backoff delay with safe default.
func (s *FileServiceImpl) retryBaseDelay() time.Duration {
	if s.cfg.App.RetryBaseDelayMS > 0 {
		return time.Duration(s.cfg.App.RetryBaseDelayMS) * time.Millisecond
	}
	return 200 * time.Millisecond
}
