package uploader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/client/ledger"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunking"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport stores nothing; each chunk's blob ref is derived from its part name.
type fakeTransport struct {
	mu         sync.Mutex
	onUpload   func(ctx context.Context, up ChunkUpload) error
	onFinalize func(ctx context.Context)
	attempts   map[string]int
	finalizes  []FinalizeRequest
	cancels    [][]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{attempts: make(map[string]int)}
}

func (f *fakeTransport) UploadChunk(ctx context.Context, up ChunkUpload) (domain.Chunk, error) {
	f.mu.Lock()
	f.attempts[up.FileName]++
	hook := f.onUpload
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, up); err != nil {
			return domain.Chunk{}, err
		}
	}

	data, err := io.ReadAll(up.Body)
	if err != nil {
		return domain.Chunk{}, err
	}
	if up.OnSent != nil {
		up.OnSent(int64(len(data)))
	}
	return domain.Chunk{
		BlobRef: up.FileName + ".bin",
		URL:     "https://blobs.test/" + up.FileName + ".bin",
		IV:      "00112233445566778899aabbccddeeff",
		Size:    int64(len(data)),
	}, nil
}

func (f *fakeTransport) Finalize(ctx context.Context, req FinalizeRequest) error {
	if f.onFinalize != nil {
		f.onFinalize(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizes = append(f.finalizes, req)
	return nil
}

func (f *fakeTransport) Cancel(_ context.Context, blobRefs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, blobRefs)
	return nil
}

func (f *fakeTransport) attemptsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[name]
}

var fastRetry = resilience.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

var testModTime = time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)

// fiveMiB splits into chunks of 2, 2 and 1 MiB.
func fiveMiB(name string) Item {
	data := bytes.Repeat([]byte{0xAB}, int(5*chunking.MiB))
	return Item{Name: name, Size: int64(len(data)), ModTime: testModTime, MimeType: "application/octet-stream", Data: bytes.NewReader(data)}
}

func TestCoordinator_UploadAndFinalize(t *testing.T) {
	transport := newFakeTransport()
	l := ledger.NewMemory()

	var progress []Progress
	coord := New(transport, l, Options{
		Retry:      fastRetry,
		OnProgress: func(p Progress) { progress = append(progress, p) },
	})
	assert.Equal(t, StateIdle, coord.State())

	a, b := fiveMiB("a.bin"), fiveMiB("b.bin")
	b.Folder = "/other"
	require.NoError(t, coord.Enqueue([]Item{a, b}, "docs"))
	assert.Equal(t, StateQueued, coord.State())

	require.NoError(t, coord.Start(context.Background()))
	assert.Equal(t, StateDone, coord.State())

	require.Len(t, transport.finalizes, 2)
	first := transport.finalizes[0]
	assert.Equal(t, "a.bin", first.Name)
	assert.Equal(t, "/docs", first.Folder)
	assert.Equal(t, 5*chunking.MiB, first.Size)
	require.Len(t, first.Chunks, 3)
	for i, ch := range first.Chunks {
		assert.Equal(t, i, ch.Index)
	}
	assert.Equal(t, []int64{2 * chunking.MiB, 2 * chunking.MiB, chunking.MiB},
		[]int64{first.Chunks[0].Size, first.Chunks[1].Size, first.Chunks[2].Size})
	assert.Equal(t, "/other", transport.finalizes[1].Folder)
	assert.Empty(t, transport.cancels)

	// Finalized uploads leave nothing to resume.
	stored, err := l.Load(context.Background(), Fingerprint("a.bin", a.Size, testModTime, "/docs"))
	require.NoError(t, err)
	assert.Empty(t, stored)

	require.NotEmpty(t, progress)
	for _, p := range progress {
		if p.State != StateDone {
			assert.LessOrEqual(t, p.Percent, 99)
		}
	}
	last := progress[len(progress)-1]
	assert.Equal(t, StateDone, last.State)
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, "b.bin", last.File)
	assert.Equal(t, 1, last.FileIndex)
	assert.Equal(t, 2, last.FileCount)
}

func TestCoordinator_ResumeIsIdempotent(t *testing.T) {
	ctx := context.Background()

	// Single pass.
	single := newFakeTransport()
	coord := New(single, ledger.NewMemory(), Options{Retry: fastRetry})
	require.NoError(t, coord.Enqueue([]Item{fiveMiB("r.bin")}, "/"))
	require.NoError(t, coord.Start(ctx))
	require.Len(t, single.finalizes, 1)

	// Interrupted after two chunks, then resumed with the same ledger.
	l := ledger.NewMemory()
	broken := newFakeTransport()
	broken.onUpload = func(_ context.Context, up ChunkUpload) error {
		if up.FileName == "part-2_r.bin" {
			return &StatusError{StatusCode: 500, Message: "Failed to upload chunk"}
		}
		return nil
	}
	coord = New(broken, l, Options{Retry: fastRetry})
	require.NoError(t, coord.Enqueue([]Item{fiveMiB("r.bin")}, "/"))
	require.Error(t, coord.Start(ctx))
	assert.Equal(t, StateError, coord.State())
	assert.Empty(t, broken.finalizes)

	stored, err := l.Load(ctx, Fingerprint("r.bin", 5*chunking.MiB, testModTime, "/"))
	require.NoError(t, err)
	require.Len(t, stored, 2)

	resumed := newFakeTransport()
	coord = New(resumed, l, Options{Retry: fastRetry})
	require.NoError(t, coord.Enqueue([]Item{fiveMiB("r.bin")}, "/"))
	require.NoError(t, coord.Start(ctx))

	assert.Zero(t, resumed.attemptsFor("part-0_r.bin"))
	assert.Zero(t, resumed.attemptsFor("part-1_r.bin"))
	assert.Equal(t, 1, resumed.attemptsFor("part-2_r.bin"))
	require.Len(t, resumed.finalizes, 1)
	assert.Equal(t, single.finalizes[0], resumed.finalizes[0])
}

func TestCoordinator_CancelDeletesCommittedChunks(t *testing.T) {
	transport := newFakeTransport()
	l := ledger.NewMemory()
	started := make(chan struct{})
	transport.onUpload = func(ctx context.Context, up ChunkUpload) error {
		if up.FileName != "part-2_c.bin" {
			return nil
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	coord := New(transport, l, Options{Retry: fastRetry})
	require.NoError(t, coord.Enqueue([]Item{fiveMiB("c.bin"), fiveMiB("never.bin")}, "/"))

	done := make(chan error, 1)
	go func() { done <- coord.Start(context.Background()) }()

	<-started
	coord.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Cancel")
	}

	assert.Equal(t, StateCancelled, coord.State())
	assert.Empty(t, transport.finalizes)
	require.Len(t, transport.cancels, 1)
	assert.Equal(t, []string{"part-0_c.bin.bin", "part-1_c.bin.bin"}, transport.cancels[0])
	assert.Zero(t, transport.attemptsFor("part-0_never.bin"))

	stored, err := l.Load(context.Background(), Fingerprint("c.bin", 5*chunking.MiB, testModTime, "/"))
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCoordinator_CancelDuringFinalizeLetsItComplete(t *testing.T) {
	transport := newFakeTransport()
	var coord *Coordinator
	transport.onFinalize = func(context.Context) {
		assert.Equal(t, StateFinalizing, coord.State())
		coord.Cancel()
	}

	coord = New(transport, ledger.NewMemory(), Options{Retry: fastRetry})
	require.NoError(t, coord.Enqueue([]Item{fiveMiB("f.bin"), fiveMiB("next.bin")}, "/"))

	err := coord.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, StateCancelled, coord.State())

	require.Len(t, transport.finalizes, 1, "the finalize in flight is not aborted")
	assert.Equal(t, "f.bin", transport.finalizes[0].Name)
	assert.Empty(t, transport.cancels, "committed chunks of a finalized file are never cancelled")
	assert.Zero(t, transport.attemptsFor("part-0_next.bin"))
}

func TestCoordinator_CancelBeforeStart(t *testing.T) {
	transport := newFakeTransport()
	coord := New(transport, ledger.NewMemory(), Options{})
	require.NoError(t, coord.Enqueue([]Item{fiveMiB("q.bin")}, "/"))

	coord.Cancel()
	assert.Equal(t, StateCancelled, coord.State())
	assert.ErrorIs(t, coord.Start(context.Background()), ErrBusy)
	assert.Empty(t, transport.cancels)
}

func TestCoordinator_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		err          error
		wantAttempts int
		wantErr      bool
	}{
		{
			name:         "network error is retried",
			failures:     2,
			err:          errors.New("connection reset by peer"),
			wantAttempts: 3,
		},
		{
			name:         "network error exhausts budget",
			failures:     10,
			err:          errors.New("connection refused"),
			wantAttempts: 3,
			wantErr:      true,
		},
		{
			name:         "status error is not retried",
			failures:     10,
			err:          &StatusError{StatusCode: 429, Message: "Too many requests"},
			wantAttempts: 1,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport()
			var calls int
			transport.onUpload = func(context.Context, ChunkUpload) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			}

			coord := New(transport, ledger.NewMemory(), Options{Retry: fastRetry})
			small := Item{Name: "s.txt", Size: 3, ModTime: testModTime, Data: bytes.NewReader([]byte("abc"))}
			require.NoError(t, coord.Enqueue([]Item{small}, "/"))

			err := coord.Start(context.Background())
			assert.Equal(t, tt.wantAttempts, transport.attemptsFor("part-0_s.txt"))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, StateError, coord.State())
				assert.Empty(t, transport.finalizes)
				return
			}
			require.NoError(t, err)
			require.Len(t, transport.finalizes, 1)
		})
	}
}

func TestCoordinator_ParallelChunks(t *testing.T) {
	transport := newFakeTransport()
	coord := New(transport, ledger.NewMemory(), Options{Concurrency: 3, Retry: fastRetry})
	require.NoError(t, coord.Enqueue([]Item{fiveMiB("p.bin")}, "/"))
	require.NoError(t, coord.Start(context.Background()))

	require.Len(t, transport.finalizes, 1)
	chunks := transport.finalizes[0].Chunks
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestCoordinator_EmptyFile(t *testing.T) {
	transport := newFakeTransport()
	coord := New(transport, ledger.NewMemory(), Options{})
	require.NoError(t, coord.Enqueue([]Item{{Name: "empty.txt", ModTime: testModTime, Data: bytes.NewReader(nil)}}, "/"))
	require.NoError(t, coord.Start(context.Background()))

	require.Len(t, transport.finalizes, 1)
	assert.NotNil(t, transport.finalizes[0].Chunks)
	assert.Empty(t, transport.finalizes[0].Chunks)
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("a.txt", 10, testModTime, "/")
	assert.Len(t, base, 32)
	assert.Equal(t, base, Fingerprint("a.txt", 10, testModTime, "/"))
	assert.NotEqual(t, base, Fingerprint("a.txt", 10, testModTime, "/docs"))
	assert.NotEqual(t, base, Fingerprint("a.txt", 11, testModTime, "/"))
	assert.NotEqual(t, base, Fingerprint("a.txt", 10, testModTime.Add(time.Second), "/"))
	assert.NotEqual(t, base, Fingerprint("b.txt", 10, testModTime, "/"))
}

// closingReader records Close on an in-memory item body.
type closingReader struct {
	*bytes.Reader
	closed bool
}

func (r *closingReader) Close() error {
	r.closed = true
	return nil
}

func TestCoordinator_PerItemFolderAndClose(t *testing.T) {
	transport := newFakeTransport()
	coord := New(transport, ledger.NewMemory(), Options{Retry: fastRetry})

	top := &closingReader{Reader: bytes.NewReader([]byte("top"))}
	nested := &closingReader{Reader: bytes.NewReader([]byte("nested"))}
	items := []Item{
		{Name: "top.txt", Size: 3, ModTime: testModTime, Data: top},
		{Name: "deep.txt", Size: 6, ModTime: testModTime, Folder: "/backup/photos/2024", Data: nested},
	}
	require.NoError(t, coord.Enqueue(items, "/backup"))
	require.NoError(t, coord.Start(context.Background()))

	require.Len(t, transport.finalizes, 2)
	assert.Equal(t, "/backup", transport.finalizes[0].Folder)
	assert.Equal(t, "/backup/photos/2024", transport.finalizes[1].Folder)
	assert.True(t, top.closed)
	assert.True(t, nested.closed)
}
