// Package uploader drives resumable chunked uploads against the gateway.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/client/ledger"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunking"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// State is the coordinator lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateQueued     State = "queued"
	StateUploading  State = "uploading"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateError      State = "error"
)

var ErrBusy = errors.New("uploader is busy")

// Item is one local file to upload.
type Item struct {
	Name     string
	Size     int64
	ModTime  time.Time
	MimeType string
	// Folder overrides the queue's destination folder when set.
	Folder string
	// Data is closed once the file is done when it is also an io.Closer.
	Data io.ReaderAt
}

type Options struct {
	// Concurrency is the number of chunks in flight per file. Defaults to 1.
	Concurrency int
	Retry       resilience.RetryPolicy
	IsPublic    bool
	// SampleInterval is the minimum spacing of throughput samples.
	SampleInterval time.Duration
	// OnProgress is called on every progress change, serialized per file.
	OnProgress func(Progress)
	Now        func() time.Time
}

// Coordinator uploads a queue of files one after another. Chunks of a file are
// sent through a worker pool, every committed chunk is recorded in the resume
// ledger at once, and the file is finalized after its last chunk.
type Coordinator struct {
	transport Transport
	ledger    ledger.Ledger
	opts      Options

	mu              sync.Mutex
	state           State
	queue           []Item
	folder          string
	cancelRun       context.CancelFunc
	cancelRequested bool

	// Chunks committed for the file in progress, including resumed ones.
	current   string
	committed map[int]domain.Chunk
}

func New(transport Transport, l ledger.Ledger, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = resilience.DefaultRetryPolicy
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		transport: transport,
		ledger:    l,
		opts:      opts,
		state:     StateIdle,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enqueue replaces the queue. Nothing is sent until Start.
func (c *Coordinator) Enqueue(items []Item, folder string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUploading || c.state == StateFinalizing {
		return ErrBusy
	}
	c.queue = append([]Item(nil), items...)
	c.folder = domain.CleanFolder(folder)
	c.cancelRequested = false
	c.state = StateQueued
	return nil
}

// Start uploads the queue and blocks until every file is finalized, the run
// is cancelled or a file fails. A cancelled run returns domain.ErrCancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateQueued {
		c.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrBusy, c.state)
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.state = StateUploading
	queue, folder := c.queue, c.folder
	c.mu.Unlock()
	defer cancel()

	for i, item := range queue {
		if c.aborted(runCtx) {
			break
		}

		dest := folder
		if item.Folder != "" {
			dest = domain.CleanFolder(item.Folder)
		}
		err := c.uploadFile(runCtx, i, len(queue), item, dest)
		if closer, ok := item.Data.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			if c.aborted(runCtx) {
				return c.finishCancelled()
			}
			logger.Errorw("Upload failed", "file", item.Name, "error", err.Error())
			c.setState(StateError)
			return err
		}
	}

	if c.aborted(runCtx) {
		return c.finishCancelled()
	}

	c.mu.Lock()
	c.state = StateDone
	c.queue = nil
	c.mu.Unlock()
	return nil
}

// Cancel aborts the run: in-flight chunk requests are cancelled, the file in
// progress is not finalized and its committed chunks are deleted in one bulk
// call. A finalize already sent is left to complete, since its chunks may be
// committed server-side at any moment; the queue stops after it.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateQueued:
		c.queue = nil
		c.state = StateCancelled
	case StateUploading:
		c.cancelRequested = true
		if c.cancelRun != nil {
			c.cancelRun()
		}
	case StateFinalizing:
		c.cancelRequested = true
	}
}

func (c *Coordinator) aborted(ctx context.Context) bool {
	c.mu.Lock()
	requested := c.cancelRequested
	c.mu.Unlock()
	return requested || ctx.Err() != nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finishCancelled deletes the committed blobs of the interrupted file. The
// request runs on its own context since the run's context is already done.
func (c *Coordinator) finishCancelled() error {
	c.mu.Lock()
	fingerprint := c.current
	refs := make([]string, 0, len(c.committed))
	for _, ch := range c.committed {
		refs = append(refs, ch.BlobRef)
	}
	c.committed = nil
	c.current = ""
	c.mu.Unlock()
	sort.Strings(refs)

	if len(refs) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		logger.Infow("Cleaning up cancelled upload", "chunks", len(refs))
		if err := c.transport.Cancel(ctx, refs); err != nil {
			logger.Warnw("Cancel cleanup failed", "chunks", len(refs), "error", err.Error())
		}
		// The blobs are gone, so resuming from this entry would finalize dead refs.
		if err := c.ledger.Delete(ctx, fingerprint); err != nil {
			logger.Warnw("Resume ledger delete failed", "fingerprint", fingerprint, "error", err.Error())
		}
	}

	c.setState(StateCancelled)
	return domain.ErrCancelled
}

// uploadFile sends the chunks of item the ledger does not have yet, then finalizes.
func (c *Coordinator) uploadFile(ctx context.Context, fileIndex, fileCount int, item Item, folder string) error {
	fingerprint := Fingerprint(item.Name, item.Size, item.ModTime, folder)
	spans := chunking.Split(item.Size)

	stored, err := c.ledger.Load(ctx, fingerprint)
	if err != nil {
		logger.Warnw("Resume ledger unavailable, starting over", "file", item.Name, "error", err.Error())
		stored = nil
	}

	committed := make(map[int]domain.Chunk, len(spans))
	for _, ch := range stored {
		if ch.Index >= 0 && ch.Index < len(spans) && ch.Size == spans[ch.Index].Length {
			committed[ch.Index] = ch
		}
	}
	c.mu.Lock()
	c.current = fingerprint
	c.committed = committed
	c.state = StateUploading
	c.mu.Unlock()

	if len(committed) > 0 {
		logger.Infow("Resuming upload", "file", item.Name, "chunks_done", len(committed), "chunks_total", len(spans))
	}

	var emitMu sync.Mutex
	report := func(state State, sent int64, percent int, speed float64, eta time.Duration) {
		if c.opts.OnProgress == nil {
			return
		}
		emitMu.Lock()
		defer emitMu.Unlock()
		c.opts.OnProgress(Progress{
			File: item.Name, FileIndex: fileIndex, FileCount: fileCount, State: state,
			Sent: sent, Total: item.Size, Percent: percent, BytesPerSecond: speed, ETA: eta,
		})
	}
	tracker := newProgressTracker(item.Size, ledger.CommittedBytes(c.committedChunks()), c.opts.SampleInterval, c.opts.Now,
		func(sent int64, percent int, speed float64, eta time.Duration) {
			report(StateUploading, sent, percent, speed, eta)
		})

	if err := c.sendChunks(ctx, item, fingerprint, spans, tracker); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.cancelRequested {
		c.mu.Unlock()
		return domain.ErrCancelled
	}
	c.state = StateFinalizing
	c.mu.Unlock()
	report(StateFinalizing, item.Size, 99, 0, 0)

	chunks := c.committedChunks()
	err = resilience.Retry(ctx, c.opts.Retry, IsRetryable, func(ctx context.Context) error {
		return c.transport.Finalize(ctx, FinalizeRequest{
			Name:     item.Name,
			Size:     item.Size,
			Type:     item.MimeType,
			Folder:   folder,
			IsPublic: c.opts.IsPublic,
			Chunks:   chunks,
		})
	})
	if err != nil {
		return fmt.Errorf("finalize %s: %w", item.Name, err)
	}

	if err := c.ledger.Delete(ctx, fingerprint); err != nil {
		logger.Warnw("Resume ledger delete failed", "file", item.Name, "error", err.Error())
	}
	c.mu.Lock()
	c.committed = nil
	c.current = ""
	c.mu.Unlock()

	report(StateDone, item.Size, 100, 0, 0)
	logger.Infow("Upload finished", "file", item.Name, "folder", folder, "chunks", len(chunks), "size_bytes", item.Size)
	return nil
}

// sendChunks uploads the missing spans through a worker pool. The first failure
// stops the remaining chunks of the file.
func (c *Coordinator) sendChunks(ctx context.Context, item Item, fingerprint string, spans []chunking.Span, tracker *progressTracker) error {
	workerPool := resilience.NewWorkerPool(c.opts.Concurrency, c.opts.Concurrency)
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var uploadErr error
	var errOnce sync.Once
	reportErr := func(err error) {
		errOnce.Do(func() {
			uploadErr = err
			cancelWorkers()
		})
	}

	for _, span := range spans {
		if c.isCommitted(span.Index) {
			continue
		}
		if workerCtx.Err() != nil {
			break
		}

		span := span
		err := workerPool.Submit(workerCtx, func() {
			if workerCtx.Err() != nil {
				return
			}
			chunk, err := c.sendChunk(workerCtx, item, span, tracker)
			if err != nil {
				reportErr(err)
				return
			}
			// The ledger write uses ctx so a cancel right after the response still records it.
			if err := c.ledger.Append(ctx, fingerprint, chunk); err != nil {
				logger.Warnw("Resume ledger append failed", "file", item.Name, "chunk", chunk.Index, "error", err.Error())
			}
			c.mu.Lock()
			if c.committed != nil {
				c.committed[chunk.Index] = chunk
			}
			c.mu.Unlock()
		})
		if err != nil {
			reportErr(err)
			break
		}
	}

	workerPool.Close()
	workerPool.Wait()
	return uploadErr
}

// sendChunk uploads one span, retrying transport failures only.
func (c *Coordinator) sendChunk(ctx context.Context, item Item, span chunking.Span, tracker *progressTracker) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := resilience.Retry(ctx, c.opts.Retry, IsRetryable, func(ctx context.Context) error {
		res, err := c.transport.UploadChunk(ctx, ChunkUpload{
			FileName: fmt.Sprintf("part-%d_%s", span.Index, item.Name),
			Body:     io.NewSectionReader(item.Data, span.Offset, span.Length),
			Size:     span.Length,
			OnSent:   func(n int64) { tracker.sent(span.Index, n) },
		})
		if err != nil {
			tracker.drop(span.Index)
			if IsRetryable(err) && ctx.Err() == nil {
				logger.Warnw("Chunk upload failed, retrying", "file", item.Name, "chunk", span.Index, "error", err.Error())
			}
			return err
		}
		chunk = res
		return nil
	})
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("chunk %d of %s: %w", span.Index, item.Name, err)
	}
	if chunk.Size != span.Length {
		return domain.Chunk{}, fmt.Errorf("chunk %d of %s: gateway stored %d bytes, sent %d", span.Index, item.Name, chunk.Size, span.Length)
	}

	chunk.Index = span.Index
	tracker.commit(span.Index, span.Length)
	return chunk, nil
}

func (c *Coordinator) isCommitted(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.committed[index]
	return ok
}

// committedChunks returns the committed chunks in index order.
func (c *Coordinator) committedChunks() []domain.Chunk {
	c.mu.Lock()
	chunks := make([]domain.Chunk, 0, len(c.committed))
	for _, ch := range c.committed {
		chunks = append(chunks, ch)
	}
	c.mu.Unlock()

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks
}
