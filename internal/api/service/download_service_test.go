package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// encryptedFile builds a file whose chunks have the given sizes, returning the
// plaintext of every chunk and the ciphertext keyed by chunk url.
func encryptedFile(t *testing.T, f *fixture, sizes ...int) (*domain.File, [][]byte, map[string][]byte) {
	t.Helper()
	file := &domain.File{ID: "f1", Name: "movie.mp4", OwnerID: "user-1"}
	plain := make([][]byte, len(sizes))
	blobs := make(map[string][]byte, len(sizes))
	for i, n := range sizes {
		plain[i] = patterned(n, byte(i+1))
		ct, iv := f.encrypt(t, plain[i])
		url := fmt.Sprintf("https://cdn/blob-%d", i)
		blobs[url] = ct
		file.Chunks = append(file.Chunks, domain.Chunk{Index: i, BlobRef: fmt.Sprintf("ref-%d", i), URL: url, IV: iv, Size: int64(n)})
		file.Size += int64(n)
	}
	return file, plain, blobs
}

func TestDownloadService_RangeFetchesOnlyOverlappingChunk(t *testing.T) {
	f := newFixture(t)
	mb8 := int(8 * chunking.MiB)
	file, plain, blobs := encryptedFile(t, f, mb8, mb8, mb8, int(chunking.MiB))

	// Only chunk 1 may be fetched.
	b := newBody(blobs["https://cdn/blob-1"])
	f.fetcher.EXPECT().Fetch(gomock.Any(), "https://cdn/blob-1").Return(b, nil).Times(1)

	plan := &port.DownloadPlan{File: file}
	rng := &domain.ByteRange{Start: 10_000_000, End: 10_000_999}
	stream, err := f.svc.OpenDownload(plan, rng)
	require.NoError(t, err)

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	skip := 10_000_000 - mb8
	assert.Len(t, got, 1000)
	assert.Equal(t, plain[1][skip:skip+1000], got)
	assert.True(t, b.closed)
}

func TestDownloadService_FullStreamAcrossChunks(t *testing.T) {
	f := newFixture(t)
	file, plain, blobs := encryptedFile(t, f, 17, 5, 33)
	for url, ct := range blobs {
		f.fetcher.EXPECT().Fetch(gomock.Any(), url).Return(newBody(ct), nil)
	}

	stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, nil)
	require.NoError(t, err)
	defer stream.Close()

	got, err := io.ReadAll(stream)
	require.NoError(t, err)

	var want []byte
	for _, p := range plain {
		want = append(want, p...)
	}
	assert.Equal(t, want, got)
}

func TestDownloadService_RangesSpanningBoundaries(t *testing.T) {
	sizes := []int{10, 10, 10}
	tests := []struct {
		name       string
		start, end int64
	}{
		{name: "FirstByte", start: 0, end: 0},
		{name: "LastByte", start: 29, end: 29},
		{name: "AcrossOneBoundary", start: 8, end: 12},
		{name: "AcrossAll", start: 5, end: 25},
		{name: "ExactChunk", start: 10, end: 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			file, plain, blobs := encryptedFile(t, f, sizes...)
			for url, ct := range blobs {
				f.fetcher.EXPECT().Fetch(gomock.Any(), url).Return(newBody(ct), nil).MaxTimes(1)
			}

			stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, &domain.ByteRange{Start: tt.start, End: tt.end})
			require.NoError(t, err)
			defer stream.Close()

			got, err := io.ReadAll(stream)
			require.NoError(t, err)

			var all []byte
			for _, p := range plain {
				all = append(all, p...)
			}
			assert.Equal(t, all[tt.start:tt.end+1], got)
		})
	}
}

func TestDownloadService_RangeOutOfBounds(t *testing.T) {
	f := newFixture(t)
	file, _, _ := encryptedFile(t, f, 10)

	_, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, &domain.ByteRange{Start: 5, End: 10})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDownloadService_ExpiredLinkRefreshedOnce(t *testing.T) {
	f := newFixture(t)
	file, plain, blobs := encryptedFile(t, f, 12)
	fresh := "https://cdn/blob-0?fresh=1"

	gomock.InOrder(
		f.fetcher.EXPECT().Fetch(gomock.Any(), "https://cdn/blob-0").
			Return(nil, fmt.Errorf("%w: 403", domain.ErrUpstreamLinkExpired)),
		f.blobs.EXPECT().GetBlobURL(gomock.Any(), "ref-0").Return(fresh, nil),
		f.fetcher.EXPECT().Fetch(gomock.Any(), fresh).Return(newBody(blobs["https://cdn/blob-0"]), nil),
	)

	stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, nil)
	require.NoError(t, err)
	defer stream.Close()

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, plain[0], got)
}

func TestDownloadService_StaleLinkRefreshedBeforeFetch(t *testing.T) {
	f := newFixture(t)
	file, plain, blobs := encryptedFile(t, f, 8)
	file.Chunks[0].URL = fmt.Sprintf("https://cdn/blob-0?ex=%x", testNow.Add(time.Minute).Unix())
	fresh := fmt.Sprintf("https://cdn/blob-0?ex=%x", testNow.Add(24*time.Hour).Unix())

	f.blobs.EXPECT().GetBlobURL(gomock.Any(), "ref-0").Return(fresh, nil)
	f.fetcher.EXPECT().Fetch(gomock.Any(), fresh).Return(newBody(blobs["https://cdn/blob-0"]), nil)

	stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, nil)
	require.NoError(t, err)
	defer stream.Close()

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, plain[0], got)
}

func TestDownloadService_RefusedAfterRefreshFails(t *testing.T) {
	f := newFixture(t)
	file, _, _ := encryptedFile(t, f, 8)

	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, domain.ErrUpstreamLinkExpired).Times(2)
	f.blobs.EXPECT().GetBlobURL(gomock.Any(), "ref-0").Return("https://cdn/again", nil)

	stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, nil)
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	assert.ErrorIs(t, err, domain.ErrUpstreamLinkExpired)
}

func TestDownloadService_LegacyPlaintextChunk(t *testing.T) {
	f := newFixture(t)
	data := []byte("legacy bytes stored as is")
	file := &domain.File{ID: "old", Name: "old.txt", IsPublic: true, Size: int64(len(data)),
		Chunks: []domain.Chunk{{Index: 0, BlobRef: "r", URL: "https://cdn/old", Size: int64(len(data))}}}
	f.fetcher.EXPECT().Fetch(gomock.Any(), "https://cdn/old").Return(newBody(data), nil)

	stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, &domain.ByteRange{Start: 7, End: 11})
	require.NoError(t, err)
	defer stream.Close()

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(got))
}

func TestDownloadService_TruncatedUpstream(t *testing.T) {
	f := newFixture(t)
	file, _, blobs := encryptedFile(t, f, 20)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(newBody(blobs["https://cdn/blob-0"][:12]), nil)

	stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, nil)
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDownloadService_CloseCancelsUpstream(t *testing.T) {
	f := newFixture(t)
	file, _, blobs := encryptedFile(t, f, 32, 32)

	var fetchCtx context.Context
	b := newBody(blobs["https://cdn/blob-0"])
	f.fetcher.EXPECT().Fetch(gomock.Any(), "https://cdn/blob-0").
		DoAndReturn(func(ctx context.Context, _ string) (io.ReadCloser, error) {
			fetchCtx = ctx
			return b, nil
		})

	stream, err := f.svc.OpenDownload(&port.DownloadPlan{File: file}, nil)
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = stream.Read(buf)
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NotNil(t, fetchCtx)
	assert.ErrorIs(t, fetchCtx.Err(), context.Canceled)
	assert.True(t, b.closed)

	_, err = stream.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadService_Resolve(t *testing.T) {
	plainSingle := func() *domain.File {
		return &domain.File{ID: "p", Name: "hi.txt", OwnerID: "user-1", IsPublic: true, Size: 2,
			Chunks: []domain.Chunk{{Index: 0, BlobRef: "r0", URL: "https://cdn/r0", Size: 2}}}
	}
	encryptedSingle := func() *domain.File {
		f := plainSingle()
		f.Chunks[0].IV = testIV
		return f
	}
	private := func() *domain.File {
		f := encryptedSingle()
		f.IsPublic = false
		return f
	}

	tests := []struct {
		name         string
		file         *domain.File
		req          port.DownloadRequest
		wantErr      error
		wantRedirect string
		wantDisp     string
	}{
		{
			name:         "Plaintext single chunk redirects",
			file:         plainSingle(),
			req:          port.DownloadRequest{Name: "hi.txt"},
			wantRedirect: "https://cdn/r0",
			wantDisp:     "inline",
		},
		{
			name:     "Stream forced",
			file:     plainSingle(),
			req:      port.DownloadRequest{Name: "hi.txt", ForceStream: true, Attachment: true},
			wantDisp: "attachment",
		},
		{
			name:     "Encrypted streams",
			file:     encryptedSingle(),
			req:      port.DownloadRequest{Name: "hi.txt"},
			wantDisp: "inline",
		},
		{
			name:    "Private file of someone else",
			file:    private(),
			req:     port.DownloadRequest{Name: "hi.txt", CallerID: "user-2"},
			wantErr: domain.ErrAccessDenied,
		},
		{
			name:    "Private file anonymous",
			file:    private(),
			req:     port.DownloadRequest{Name: "hi.txt"},
			wantErr: domain.ErrAccessDenied,
		},
		{
			name:     "Private file owner",
			file:     private(),
			req:      port.DownloadRequest{Name: "hi.txt", CallerID: "user-1"},
			wantDisp: "inline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.EXPECT().GetFileByName(gomock.Any(), tt.req.Name, tt.req.CallerID).Return(tt.file, nil)

			plan, err := f.svc.ResolveDownload(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRedirect, plan.RedirectURL)
			assert.Equal(t, tt.wantDisp, plan.Disposition)
			assert.Equal(t, "text/plain; charset=utf-8", plan.ContentType)
		})
	}
}

func TestDownloadService_ResolveNotFound(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().GetFileByName(gomock.Any(), "nope", "").Return(nil, domain.ErrNotFound)

	_, err := f.svc.ResolveDownload(context.Background(), port.DownloadRequest{Name: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlanSegments(t *testing.T) {
	chunks := []domain.Chunk{{Index: 0, Size: 4}, {Index: 1, Size: 0}, {Index: 2, Size: 4}, {Index: 3, Size: 4}}

	segs := planSegments(chunks, domain.ByteRange{Start: 3, End: 8})
	require.Len(t, segs, 3)
	assert.Equal(t, segment{chunk: chunks[0], skip: 3, take: 1}, segs[0])
	assert.Equal(t, segment{chunk: chunks[2], skip: 0, take: 4}, segs[1])
	assert.Equal(t, segment{chunk: chunks[3], skip: 0, take: 1}, segs[2])
}
